//go:build production

package debug

import (
	"context"
	"net/http"

	"github.com/grovetools/prodtrack/errors"
	"github.com/grovetools/prodtrack/pkg/pages"
	"github.com/sirupsen/logrus"
)

// Available reports whether the debug surface is compiled in.
const Available = false

// Server is a stub in production builds.
type Server struct{}

// New returns the stub.
func New(*pages.Session, *logrus.Entry) *Server { return &Server{} }

// Handler serves 404 for every route.
func (s *Server) Handler() http.Handler { return http.NotFoundHandler() }

// ListenAndServe always fails.
func (s *Server) ListenAndServe(context.Context, string) error {
	return errors.New(errors.ErrCodeInvalidInput, "debug surface is not available in production builds")
}

// Shutdown is a no-op.
func (s *Server) Shutdown(context.Context) error { return nil }
