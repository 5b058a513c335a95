package pages

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/grovetools/prodtrack/config"
	"github.com/grovetools/prodtrack/errors"
	"github.com/grovetools/prodtrack/logging"
	"github.com/grovetools/prodtrack/pkg/bus"
	"github.com/grovetools/prodtrack/pkg/fetch"
	"github.com/grovetools/prodtrack/pkg/presenter"
	"github.com/grovetools/prodtrack/pkg/store"
	"github.com/grovetools/prodtrack/pkg/tabs"
	"github.com/grovetools/prodtrack/pkg/tracker"
	"github.com/sirupsen/logrus"
)

// Store variables maintained by the session.
const (
	VarAccount   = "acctID"
	VarPageTitle = "pageTitle"
)

// Page is a mounted page.
type Page struct {
	Definition Definition
	Presenter  *presenter.Presenter
	Controller *tabs.Controller
}

// Session owns the store, bus and tracker of one signed-in user and the
// pages currently mounted.
type Session struct {
	Store   *store.Store
	Bus     *bus.Bus
	Tracker *tracker.Tracker
	Fetcher fetch.Fetcher

	defs   map[string]Definition
	logger *logrus.Entry

	mountMu sync.Mutex
	mu      sync.Mutex
	mounted map[string]*Page
	closed  bool
}

// Option configures a Session.
type Option func(*sessionOptions)

type sessionOptions struct {
	fetcher   fetch.Fetcher
	persister tracker.Persister
	noPersist bool
	logger    *logrus.Entry
}

// WithFetcher uses f instead of the configured fetch backend.
func WithFetcher(f fetch.Fetcher) Option {
	return func(o *sessionOptions) { o.fetcher = f }
}

// WithPersister uses p instead of the configured metrics backend. A nil p
// keeps metrics in memory.
func WithPersister(p tracker.Persister) Option {
	return func(o *sessionOptions) {
		o.persister = p
		o.noPersist = p == nil
	}
}

// WithLogger sets the logger shared by every component of the session.
func WithLogger(logger *logrus.Entry) Option {
	return func(o *sessionOptions) { o.logger = logger }
}

// NewSession builds a session from cfg. A nil cfg uses defaults.
func NewSession(ctx context.Context, cfg *config.Config, opts ...Option) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	var o sessionOptions
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	component := func(name string) *logrus.Entry {
		if logger != nil {
			return logger.WithField("component", name)
		}
		return logging.NewLogger(name)
	}

	persister := o.persister
	if persister == nil && !o.noPersist {
		p, err := tracker.NewPersister(cfg.Tracker.Persist)
		if err != nil {
			return nil, err
		}
		persister = p
	}

	fetcher := o.fetcher
	if fetcher == nil {
		f, err := fetch.New(ctx, cfg.Fetch)
		if err != nil {
			return nil, err
		}
		fetcher = f
	}

	tracker.SetEnabled(cfg.TrackingEnabled())
	tr := tracker.New(persister, tracker.WithCapacity(cfg.Tracker.Capacity), tracker.WithLogger(component("tracker")))

	log := component("session")
	var unstored []bus.Kind
	for _, name := range cfg.Bus.Unstored {
		k, err := bus.ParseKind(name)
		if err != nil {
			log.WithError(err).Warn("Ignoring unknown unstored action")
			continue
		}
		unstored = append(unstored, k)
	}

	st := store.New(store.WithLogger(component("store")))
	b := bus.New(st,
		bus.WithLogger(component("bus")),
		bus.WithObserver(tr),
		bus.WithMaxQueued(cfg.Bus.MaxQueued),
		bus.WithUnstored(unstored...),
	)

	s := &Session{
		Store:   st,
		Bus:     b,
		Tracker: tr,
		Fetcher: fetcher,
		defs:    Resolve(cfg.Pages),
		logger:  log,
		mounted: make(map[string]*Page),
	}
	s.registerHandlers()
	return s, nil
}

func (s *Session) registerHandlers() {
	invalidate := bus.Handler{
		Name: "session.invalidateList",
		Fn: func(ctx context.Context, a bus.Action) error {
			if list := a.Payload.Str("listEvent"); list != "" {
				s.Store.Clear(store.VarKey(list))
			}
			return nil
		},
	}
	s.Bus.Handle(bus.RecordSaved, invalidate)
	s.Bus.Handle(bus.RecordDeleted, invalidate)

	s.Bus.Handle(bus.AccountChanged, bus.Handler{
		Name: "session.clearAccountData",
		Fn: func(ctx context.Context, a bus.Action) error {
			s.Store.Clear(s.listKeys()...)
			return nil
		},
	})
}

// listKeys returns the store keys of every list a page of this session can
// load.
func (s *Session) listKeys() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, name := range Names(s.defs) {
		for _, tab := range s.defs[name].Tabs {
			if tab.ListEvent == "" || seen[tab.ListEvent] {
				continue
			}
			seen[tab.ListEvent] = true
			keys = append(keys, store.VarKey(tab.ListEvent))
		}
	}
	return keys
}

// Definitions returns the page layouts sorted by name.
func (s *Session) Definitions() []Definition {
	out := make([]Definition, 0, len(s.defs))
	for _, name := range Names(s.defs) {
		out = append(out, s.defs[name])
	}
	return out
}

// Definition returns the layout of name.
func (s *Session) Definition(name string) (Definition, bool) {
	d, ok := s.defs[name]
	return d, ok
}

// Mount creates the presenter and controller of page name. Mounting an
// already mounted page returns it unchanged.
func (s *Session) Mount(ctx context.Context, name string) (*Page, error) {
	def, ok := s.defs[name]
	if !ok {
		return nil, errors.InvalidInput("Mount", "unknown page").WithDetail("page", name)
	}

	s.mountMu.Lock()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.mountMu.Unlock()
		return nil, errors.InvalidInput("Mount", "session closed")
	}
	if p, ok := s.mounted[name]; ok {
		s.mu.Unlock()
		s.mountMu.Unlock()
		return p, nil
	}
	s.mu.Unlock()

	pres := presenter.New(name, def.Tabs, s.Store,
		presenter.WithMode(def.Mode),
		presenter.WithLogger(s.logger.WithField("component", "presenter")))
	ctrl, err := tabs.New(pres, s.Bus, s.Fetcher, s.Store,
		tabs.WithLogger(s.logger.WithField("component", "tabs")))
	if err != nil {
		s.mountMu.Unlock()
		pres.Destroy()
		return nil, err
	}

	page := &Page{Definition: def, Presenter: pres, Controller: ctrl}
	s.mu.Lock()
	s.mounted[name] = page
	s.mu.Unlock()
	s.mountMu.Unlock()

	s.Store.Set(store.VarKey(VarPageTitle), def.Title)
	s.Bus.Trigger(ctx, bus.PageMounted, bus.Payload{"page": name, "tabs": len(def.Tabs)}, bus.Context{"page": name})
	return page, nil
}

// Page returns a mounted page.
func (s *Session) Page(name string) (*Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.mounted[name]
	return p, ok
}

// Mounted returns the names of mounted pages.
func (s *Session) Mounted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.mounted))
	for n := range s.mounted {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Unmount releases every bus subscription of page name.
func (s *Session) Unmount(ctx context.Context, name string) {
	s.mu.Lock()
	p, ok := s.mounted[name]
	delete(s.mounted, name)
	s.mu.Unlock()
	if !ok {
		return
	}

	p.Controller.Close()
	p.Presenter.Destroy()
	s.Bus.Trigger(ctx, bus.PageUnmounted, bus.Payload{"page": name}, bus.Context{"page": name})
}

// SwitchAccount selects another account. Mounted pages drop their
// selections and every loaded list is cleared.
func (s *Session) SwitchAccount(ctx context.Context, acctID interface{}) {
	s.Store.Set(store.VarKey(VarAccount), acctID)
	s.Bus.Trigger(ctx, bus.AccountChanged, bus.Payload{VarAccount: acctID}, nil)
}

// Logout resets mounted pages and empties the store.
func (s *Session) Logout(ctx context.Context) {
	s.Bus.Trigger(ctx, bus.Logout, nil, nil)
	s.Store.ClearAll()
}

// Teardown unmounts every page and releases the bus, tracker, fetcher and
// store. It is safe to call more than once.
func (s *Session) Teardown(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	for _, name := range s.Mounted() {
		s.Unmount(ctx, name)
	}
	s.Bus.Close()
	if err := s.Tracker.Close(); err != nil {
		s.logger.WithError(err).Warn("Failed to close metrics backend")
	}
	if c, ok := s.Fetcher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			s.logger.WithError(err).Warn("Failed to close fetcher")
		}
	}
	s.Store.Teardown()
}
