//go:build !production

// Package debug serves a read-mostly inspection API over a session: the
// subscriber map, the tracking flag, tracker history and metrics, the store
// and a websocket stream of dispatched actions. Building with the
// "production" tag replaces it with a stub.
package debug

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/grovetools/prodtrack/logging"
	"github.com/grovetools/prodtrack/pkg/pages"
	"github.com/grovetools/prodtrack/pkg/tracker"
	"github.com/sirupsen/logrus"
)

// Available reports whether the debug surface is compiled in.
const Available = true

// Server exposes a session for inspection.
type Server struct {
	logger  *logrus.Entry
	session *pages.Session
	server  *http.Server
	hub     *hub
	logs    *logTail
	detach  func()
	untap   func()
}

// logTailSize is the number of recent log lines served by /api/logs.
const logTailSize = 500

// New creates a server over sess and starts observing its bus.
func New(sess *pages.Session, logger *logrus.Entry) *Server {
	s := &Server{
		logger:  logger,
		session: sess,
		hub:     newHub(logger),
		logs:    newLogTail(logTailSize),
	}
	s.detach = sess.Bus.Observe(s.hub)
	s.untap = logging.AddOutput(s.logs)
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/subscribers", s.handleSubscribers)
	mux.HandleFunc("/api/tracking", s.handleTracking)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/metrics", s.handleMetrics)
	mux.HandleFunc("/api/store", s.handleStore)
	mux.HandleFunc("/api/pages", s.handlePages)
	mux.HandleFunc("/api/logs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.logs.snapshot())
	})
	mux.HandleFunc("/api/stream", s.hub.serveWS)
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled or the server fails.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Shutdown(shutdownCtx)
	}()

	s.logger.WithField("addr", listener.Addr().String()).Info("Debug server listening")
	if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server and the action stream.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down debug server...")
	s.detach()
	s.untap()
	s.hub.close()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleSubscribers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.session.Bus.Subscribers())
}

// handleTracking reads or sets the process-wide tracking flag.
func (s *Server) handleTracking(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, map[string]bool{"enabled": tracker.Enabled()})

	case http.MethodPost, http.MethodPut:
		var req struct {
			Enabled *bool `json:"enabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		tracker.SetEnabled(*req.Enabled)
		s.logger.WithField("enabled", *req.Enabled).Info("Tracking toggled")
		writeJSON(w, map[string]bool{"enabled": *req.Enabled})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, sanitizeRecords(s.session.Tracker.History()))
	case http.MethodDelete:
		s.session.Tracker.ClearHistory()
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, s.session.Tracker.SortedMetrics())
	case http.MethodDelete:
		if err := s.session.Tracker.ClearMetrics(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, sanitize(map[string]interface{}(s.session.Store.Snapshot())))
}

func (s *Server) handlePages(w http.ResponseWriter, r *http.Request) {
	type pageInfo struct {
		Name    string      `json:"name"`
		Title   string      `json:"title"`
		Mode    string      `json:"mode"`
		Mounted bool        `json:"mounted"`
		View    interface{} `json:"view,omitempty"`
	}
	var out []pageInfo
	for _, def := range s.session.Definitions() {
		info := pageInfo{Name: def.Name, Title: def.Title, Mode: def.Mode.Name()}
		if p, ok := s.session.Page(def.Name); ok {
			info.Mounted = true
			info.View = p.Controller.View()
		}
		out = append(out, info)
	}
	writeJSON(w, out)
}

// sanitize replaces values that cannot be encoded as JSON with their
// formatted text.
func sanitize(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(map[string]interface{}, len(m))
	for _, k := range keys {
		v := m[k]
		if _, err := json.Marshal(v); err != nil {
			out[k] = fmt.Sprintf("%v", v)
			continue
		}
		out[k] = v
	}
	return out
}

func sanitizeRecords(records []tracker.Record) []tracker.Record {
	for i := range records {
		records[i].Context = sanitize(records[i].Context)
	}
	return records
}
