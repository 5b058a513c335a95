// Package bus implements the typed action bus layered on the reactive store.
//
// Trigger runs synchronously: the payload is stamped and written to the
// store under "%<name>", observers see the action, then static handlers and
// dynamic subscribers run in their declared order. Failures in one handler
// are logged and never stop the others.
package bus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/grovetools/prodtrack/errors"
	"github.com/grovetools/prodtrack/logging"
	"github.com/grovetools/prodtrack/pkg/store"
	"github.com/sirupsen/logrus"
)

// DefaultMaxQueued bounds same-kind re-dispatches drained per Trigger.
const DefaultMaxQueued = 16

// idseq numbers subscriptions for the lifetime of the process.
var idseq atomic.Uint64

func nextSubscriberID() string {
	return fmt.Sprintf("%08x", idseq.Add(1))
}

type registered struct {
	id    string
	name  string
	after []string
	fn    HandlerFunc
}

type observerEntry struct {
	id uint64
	o  Observer
}

type pending struct {
	ctx    context.Context
	action Action
}

// Bus dispatches actions to handlers and records their payloads in a store.
type Bus struct {
	mu        sync.RWMutex
	store     *store.Store
	statics   map[Kind][]registered
	subs      map[Kind][]registered
	unstored  map[Kind]bool
	observers []observerEntry
	maxQueued int

	active map[Kind]bool
	queue  map[Kind][]pending

	now    func() time.Time
	logger *logrus.Entry
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger overrides the bus logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(b *Bus) { b.logger = logger }
}

// WithObserver adds an observer, e.g. the action tracker.
func WithObserver(o Observer) Option {
	return func(b *Bus) {
		if o != nil {
			b.observers = append(b.observers, observerEntry{id: idseq.Add(1), o: o})
		}
	}
}

// WithMaxQueued overrides DefaultMaxQueued.
func WithMaxQueued(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.maxQueued = n
		}
	}
}

// WithUnstored exempts additional kinds from the store write.
func WithUnstored(kinds ...Kind) Option {
	return func(b *Bus) {
		for _, k := range kinds {
			b.unstored[k] = true
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(b *Bus) { b.now = now }
}

// New creates a bus writing action payloads into st.
func New(st *store.Store, opts ...Option) *Bus {
	b := &Bus{
		store:     st,
		statics:   make(map[Kind][]registered),
		subs:      make(map[Kind][]registered),
		unstored:  make(map[Kind]bool),
		maxQueued: DefaultMaxQueued,
		active:    make(map[Kind]bool),
		queue:     make(map[Kind][]pending),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logging.NewLogger("bus")
	}
	return b
}

// Store returns the store the bus writes to.
func (b *Bus) Store() *store.Store {
	return b.store
}

// Handle registers a static handler for kind. Static handlers run before
// dynamic subscribers. Registering a name twice replaces the earlier handler.
func (b *Bus) Handle(kind Kind, h Handler) error {
	if !kind.Valid() {
		err := errors.UnknownAction(kind.String())
		b.logger.WithError(err).Error("Rejected handler registration")
		return err
	}
	if h.Fn == nil || h.Name == "" {
		err := errors.InvalidInput("Handle", "handler needs a name and a function").
			WithDetail("action", kind.String())
		b.logger.WithError(err).Error("Rejected handler registration")
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	reg := registered{id: "static:" + h.Name, name: h.Name, after: h.After, fn: h.Fn}
	list := b.statics[kind]
	for i, existing := range list {
		if existing.name == h.Name {
			list[i] = reg
			b.logger.WithField("action", kind).WithField("handler", h.Name).Warn("Replaced static handler")
			return nil
		}
	}
	b.statics[kind] = append(list, reg)
	return nil
}

// SubscribeOption configures a subscription.
type SubscribeOption func(*registered)

// WithName names a subscription so others can order themselves after it.
func WithName(name string) SubscribeOption {
	return func(r *registered) { r.name = name }
}

// After declares handler names that must complete before this subscriber
// runs within the same dispatch.
func After(names ...string) SubscribeOption {
	return func(r *registered) { r.after = append(r.after, names...) }
}

// Subscribe adds a dynamic subscriber and returns its unsubscribe function.
// Invalid input is logged and yields a no-op unsubscribe function.
// Unsubscribing more than once is a no-op.
func (b *Bus) Subscribe(kind Kind, fn HandlerFunc, opts ...SubscribeOption) func() {
	if !kind.Valid() || fn == nil {
		b.logger.WithError(errors.InvalidInput("Subscribe", "invalid action or nil callback")).
			WithField("action", kind.String()).
			Error("Rejected subscription")
		return func() {}
	}

	reg := registered{id: nextSubscriberID(), fn: fn}
	for _, opt := range opts {
		opt(&reg)
	}
	if reg.name == "" {
		reg.name = reg.id
	}

	b.mu.Lock()
	b.subs[kind] = append(b.subs[kind], reg)
	b.mu.Unlock()

	b.logger.WithField("action", kind).WithField("subscriber", reg.id).Debug("Subscribed")

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(kind, reg.id) })
	}
}

func (b *Bus) unsubscribe(kind Kind, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[kind]
	for i, r := range list {
		if r.id == id {
			b.subs[kind] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(b.subs[kind]) == 0 {
		delete(b.subs, kind)
	}
}

// Trigger dispatches kind synchronously and returns a diagnostic action id.
//
// A handler that triggers the kind currently being dispatched has its action
// queued and run after the current dispatch completes, at most MaxQueued
// times per outer Trigger; further re-dispatches are logged and dropped.
// Other kinds dispatch immediately (nested).
func (b *Bus) Trigger(ctx context.Context, kind Kind, payload Payload, actx Context) string {
	if !kind.Valid() {
		b.logger.WithError(errors.UnknownAction(kind.String())).Error("Rejected trigger")
		return ""
	}

	a := Action{
		ID:      fmt.Sprintf("%s-%s", kind, uuid.NewString()[:8]),
		Kind:    kind,
		Payload: enrich(payload, kind, b.now()),
		Context: actx,
	}

	b.mu.Lock()
	if b.active[kind] {
		b.queue[kind] = append(b.queue[kind], pending{ctx: ctx, action: a})
		b.mu.Unlock()
		b.logger.WithField("action", kind).WithField("id", a.ID).Debug("Re-entrant dispatch queued")
		return a.ID
	}
	b.active[kind] = true
	b.mu.Unlock()

	b.dispatch(ctx, a)

	for rounds := 0; ; rounds++ {
		b.mu.Lock()
		q := b.queue[kind]
		if len(q) == 0 {
			delete(b.queue, kind)
			delete(b.active, kind)
			b.mu.Unlock()
			break
		}
		if rounds >= b.maxQueued {
			delete(b.queue, kind)
			delete(b.active, kind)
			b.mu.Unlock()
			err := errors.New(errors.ErrCodeQueueOverflow, "re-entrant dispatch limit reached").
				WithDetail("action", kind.String()).
				WithDetail("dropped", len(q))
			b.logger.WithFields(err.Fields()).Error(err.Message)
			break
		}
		next := q[0]
		b.queue[kind] = q[1:]
		b.mu.Unlock()

		b.dispatch(next.ctx, next.action)
	}

	return a.ID
}

// GetAction returns the last stored payload for kind, or nil.
func (b *Bus) GetAction(kind Kind) Payload {
	p, _ := store.Get[Payload](b.store, store.ActionKey(kind.String()))
	return p
}

func (b *Bus) dispatch(ctx context.Context, a Action) {
	b.mu.RLock()
	stored := a.Kind.Stored() && !b.unstored[a.Kind]
	observers := append([]observerEntry(nil), b.observers...)
	statics := append([]registered(nil), b.statics[a.Kind]...)
	subs := append([]registered(nil), b.subs[a.Kind]...)
	b.mu.RUnlock()

	if stored {
		b.store.Set(store.ActionKey(a.Kind.String()), a.Payload)
	}

	for _, e := range observers {
		b.observe(e.o, a)
	}

	for _, group := range [][]registered{statics, subs} {
		ordered, err := order(a.Kind, group)
		if err != nil {
			b.logger.WithFields(err.Fields()).Error(err.Message)
		}
		for _, h := range ordered {
			b.run(ctx, a, h)
		}
	}

	b.logger.WithField("action", a.Kind).WithField("id", a.ID).Debug("Action dispatched")
}

func (b *Bus) run(ctx context.Context, a Action, h registered) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.HandlerFailed(a.Kind.String(), h.name, fmt.Errorf("panic: %v", r))
			b.logger.WithFields(err.Fields()).WithField("id", a.ID).Error(err.Message)
		}
	}()
	if err := h.fn(ctx, a); err != nil {
		e := errors.HandlerFailed(a.Kind.String(), h.name, err)
		b.logger.WithFields(e.Fields()).WithError(err).WithField("id", a.ID).Error(e.Message)
	}
}

func (b *Bus) observe(o Observer, a Action) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.WithField("action", a.Kind).WithField("panic", r).Error("Action observer panicked")
		}
	}()
	o.ObserveAction(a)
}

// Observe adds an observer after construction and returns a function that
// removes it.
func (b *Bus) Observe(o Observer) func() {
	if o == nil {
		return func() {}
	}
	id := idseq.Add(1)

	b.mu.Lock()
	b.observers = append(b.observers, observerEntry{id: id, o: o})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, e := range b.observers {
				if e.id == id {
					b.observers = append(b.observers[:i:i], b.observers[i+1:]...)
					return
				}
			}
		})
	}
}

// SubscriberInfo describes one registration for diagnostics.
type SubscriberInfo struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	After  []string `json:"after,omitempty"`
	Static bool     `json:"static"`
}

// Subscribers returns every registration keyed by action name.
func (b *Bus) Subscribers() map[string][]SubscriberInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string][]SubscriberInfo)
	for kind, list := range b.statics {
		for _, r := range list {
			out[kind.String()] = append(out[kind.String()], SubscriberInfo{ID: r.id, Name: r.name, After: r.after, Static: true})
		}
	}
	for kind, list := range b.subs {
		for _, r := range list {
			out[kind.String()] = append(out[kind.String()], SubscriberInfo{ID: r.id, Name: r.name, After: r.after})
		}
	}
	return out
}

// SubscriberCount returns the number of dynamic subscribers for kind.
func (b *Bus) SubscriberCount(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[kind])
}

// Close drops every handler and subscription.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statics = make(map[Kind][]registered)
	b.subs = make(map[Kind][]registered)
	b.observers = nil
}
