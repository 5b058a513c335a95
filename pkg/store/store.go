// Package store provides the reactive key/value state container shared by
// the action bus, presenters and tab controllers.
//
// Keys prefixed with ":" hold durable variables (current account, loaded
// reference lists, propagated ancestor keys). Keys prefixed with "%" hold the
// last payload of a dispatched action. Writes always replace the whole value.
package store

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/grovetools/prodtrack/errors"
	"github.com/grovetools/prodtrack/logging"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
)

const (
	// VarPrefix marks durable variables.
	VarPrefix = ":"
	// ActionPrefix marks last-payload slots written by the action bus.
	ActionPrefix = "%"
)

// Vars is a batch of key/value writes.
type Vars map[string]interface{}

// Change describes one observed write.
type Change struct {
	Key string
	Old interface{}
	New interface{}
}

type watcher struct {
	id uint64
	fn func(Change)
}

// Store is an in-memory reactive state container.
// It is safe for concurrent use; watchers run on the writing goroutine after
// the store lock has been released, so they may write back into the store.
type Store struct {
	mu       sync.RWMutex
	vars     Vars
	watchers map[string][]watcher
	all      []watcher
	nextID   uint64
	closed   bool
	logger   *logrus.Entry
}

// Option configures a Store.
type Option func(*Store)

// WithLogger overrides the store logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a new Store instance.
func New(opts ...Option) *Store {
	s := &Store{
		vars:     make(Vars),
		watchers: make(map[string][]watcher),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewLogger("store")
	}
	return s
}

// VarKey returns name as a variable key, adding the ":" prefix if needed.
func VarKey(name string) string {
	if len(name) > 0 && name[:1] == VarPrefix {
		return name
	}
	return VarPrefix + name
}

// ActionKey returns the last-payload key for an action name.
func ActionKey(name string) string {
	return ActionPrefix + name
}

// SetVars merge-writes vars. Each key's previous value is replaced and
// watchers of every changed key are notified in key order. Empty keys are
// rejected and logged; the remaining keys still apply.
func (s *Store) SetVars(vars Vars) {
	if len(vars) == 0 {
		return
	}

	keys := make([]string, 0, len(vars))
	for key := range vars {
		if key == "" {
			s.logger.WithError(errors.InvalidInput("SetVars", "empty key")).Error("Rejected store write")
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.WithField("keys", keys).Warn("Write to torn-down store ignored")
		return
	}
	changes := make([]Change, 0, len(keys))
	for _, key := range keys {
		old := s.vars[key]
		value := vars[key]
		s.vars[key] = value
		s.logWrite(key, old, value)
		if hasChanged(old, value) {
			changes = append(changes, Change{Key: key, Old: old, New: value})
		}
	}
	s.mu.Unlock()

	s.notify(changes)
}

// Set writes a single key.
func (s *Store) Set(key string, value interface{}) {
	s.SetVars(Vars{key: value})
}

// Assign writes the fields of a struct (or the entries of a string-keyed map)
// as store entries. Field names come from the `var` struct tag, falling back
// to the field name. Anything that is not an object is logged and ignored.
func (s *Store) Assign(v interface{}) error {
	switch m := v.(type) {
	case Vars:
		s.SetVars(m)
		return nil
	case map[string]interface{}:
		s.SetVars(Vars(m))
		return nil
	}

	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			break
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() || (rv.Kind() != reflect.Struct && rv.Kind() != reflect.Map) {
		err := errors.InvalidInput("Assign", fmt.Sprintf("expected an object, got %T", v))
		s.logger.WithError(err).Error("Rejected store write")
		return err
	}

	out := make(map[string]interface{})
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &out,
		TagName: "var",
	})
	if err == nil {
		err = decoder.Decode(rv.Interface())
	}
	if err != nil {
		wrapped := errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to decode store write")
		s.logger.WithError(wrapped).Error("Rejected store write")
		return wrapped
	}

	s.SetVars(Vars(out))
	return nil
}

// GetVar returns the current value of key, or nil when absent.
func (s *Store) GetVar(key string) interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vars[key]
}

// Lookup returns the value of key and whether it is present.
func (s *Store) Lookup(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vars[key]
	return v, ok
}

// Get returns the value of key converted to T. The second result is false
// when the key is absent, nil, or holds another type.
func Get[T any](s *Store, key string) (T, bool) {
	var zero T
	v, ok := s.Lookup(key)
	if !ok || v == nil {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// Snapshot returns a copy of all entries.
func (s *Store) Snapshot() Vars {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(Vars, len(s.vars))
	for k, v := range s.vars {
		result[k] = v
	}
	return result
}

// Keys returns all present keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.vars))
	for k := range s.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ClearAll empties the store. Watchers of non-nil keys see a change to nil.
func (s *Store) ClearAll() {
	s.mu.Lock()
	changes := make([]Change, 0, len(s.vars))
	for key, old := range s.vars {
		if old != nil {
			changes = append(changes, Change{Key: key, Old: old})
		}
	}
	s.vars = make(Vars)
	s.mu.Unlock()

	sort.Slice(changes, func(i, j int) bool { return changes[i].Key < changes[j].Key })
	s.logger.WithField("cleared", len(changes)).Debug("Store cleared")
	s.notify(changes)
}

// Clear removes the listed keys. Unknown keys are ignored.
func (s *Store) Clear(keys ...string) {
	s.mu.Lock()
	changes := make([]Change, 0, len(keys))
	for _, key := range keys {
		old, ok := s.vars[key]
		if !ok {
			continue
		}
		delete(s.vars, key)
		if old != nil {
			changes = append(changes, Change{Key: key, Old: old})
		}
	}
	s.mu.Unlock()

	s.logger.WithField("keys", keys).Debug("Store keys cleared")
	s.notify(changes)
}

// Watch registers fn for changes to key and returns a function that removes
// it. Removing twice is a no-op.
func (s *Store) Watch(key string, fn func(Change)) func() {
	if fn == nil {
		s.logger.WithError(errors.InvalidInput("Watch", "nil callback")).WithField("key", key).Error("Rejected watch")
		return func() {}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.watchers[key] = append(s.watchers[key], watcher{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		list := s.watchers[key]
		for i, w := range list {
			if w.id == id {
				s.watchers[key] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
		if len(s.watchers[key]) == 0 {
			delete(s.watchers, key)
		}
	}
}

// WatchAll registers fn for changes to any key.
func (s *Store) WatchAll(fn func(Change)) func() {
	if fn == nil {
		return func() {}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.all = append(s.all, watcher{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, w := range s.all {
			if w.id == id {
				s.all = append(s.all[:i:i], s.all[i+1:]...)
				return
			}
		}
	}
}

// Teardown clears the store and drops every watcher. Later writes are ignored.
func (s *Store) Teardown() {
	s.mu.Lock()
	s.vars = make(Vars)
	s.watchers = make(map[string][]watcher)
	s.all = nil
	s.closed = true
	s.mu.Unlock()
	s.logger.Debug("Store torn down")
}

func (s *Store) notify(changes []Change) {
	for _, c := range changes {
		s.mu.RLock()
		keyed := append([]watcher(nil), s.watchers[c.Key]...)
		global := append([]watcher(nil), s.all...)
		s.mu.RUnlock()

		for _, w := range keyed {
			s.invoke(w, c)
		}
		for _, w := range global {
			s.invoke(w, c)
		}
	}
}

func (s *Store) invoke(w watcher, c Change) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("key", c.Key).WithField("panic", r).Error("Store watcher panicked")
		}
	}()
	w.fn(c)
}

func (s *Store) logWrite(key string, old, value interface{}) {
	if !s.logger.Logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	entry := s.logger.WithField("key", key).WithField("value", value)
	if n, ok := length(value); ok {
		prev, _ := length(old)
		entry = entry.WithField("len_delta", n-prev)
	}
	entry.Debug("Var written")
}

// hasChanged is a cheap change test: comparable values use ==, slices and maps
// compare length and backing pointer, everything else counts as changed.
func hasChanged(old, value interface{}) bool {
	if old == nil || value == nil {
		return old != value
	}

	ot, vt := reflect.TypeOf(old), reflect.TypeOf(value)
	if ot != vt {
		return true
	}

	switch vt.Kind() {
	case reflect.Slice, reflect.Map:
		ov, vv := reflect.ValueOf(old), reflect.ValueOf(value)
		if ov.Len() != vv.Len() {
			return true
		}
		return ov.Pointer() != vv.Pointer()
	case reflect.Func:
		return true
	}

	if !vt.Comparable() {
		return true
	}
	return !safeEqual(old, value)
}

// safeEqual guards against comparable types whose interface fields hold
// uncomparable values, which panic under ==.
func safeEqual(a, b interface{}) (equal bool) {
	defer func() {
		if recover() != nil {
			equal = false
		}
	}()
	return a == b
}

func length(v interface{}) (int, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Len(), true
	}
	return 0, false
}
