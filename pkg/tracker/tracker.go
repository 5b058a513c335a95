// Package tracker keeps a bounded history of dispatched actions and per
// page/module/function call metrics for diagnostics.
package tracker

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/grovetools/prodtrack/errors"
	"github.com/grovetools/prodtrack/logging"
	"github.com/sirupsen/logrus"
)

// DefaultCapacity is the history size when none is configured.
const DefaultCapacity = 100

// Payload fields the tracker reads.
const (
	FieldPage      = "page"
	FieldModule    = "module"
	FieldComponent = "component"
	FieldAction    = "action"
	FieldFunction  = "function"
	FieldAcctID    = "acctID"
)

var enabled atomic.Bool

func init() {
	enabled.Store(true)
}

// Enabled reports whether tracking is on for the process.
func Enabled() bool {
	return enabled.Load()
}

// SetEnabled turns tracking on or off for the process.
func SetEnabled(on bool) {
	enabled.Store(on)
}

// Record is one tracked call.
type Record struct {
	ID         string                 `json:"id"`
	Timestamp  time.Time              `json:"timestamp"`
	ActionType string                 `json:"actionType"`
	Page       string                 `json:"page,omitempty"`
	Module     string                 `json:"module,omitempty"`
	Function   string                 `json:"function,omitempty"`
	AcctID     interface{}            `json:"acctID,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
}

// Metric aggregates calls for one page|module|function triple.
type Metric struct {
	Page     string    `yaml:"page" json:"page"`
	Module   string    `yaml:"module" json:"module"`
	Function string    `yaml:"function" json:"function"`
	Calls    int       `yaml:"calls" json:"calls"`
	Created  time.Time `yaml:"created" json:"created"`
	LastCall time.Time `yaml:"last_call" json:"lastCall"`
}

// MetricKey returns the aggregate key for a triple.
func MetricKey(page, module, function string) string {
	return strings.Join([]string{page, module, function}, "|")
}

// Tracker records actions. It is safe for concurrent use.
type Tracker struct {
	mu       sync.RWMutex
	ring     []Record
	head     int
	size     int
	metrics  map[string]Metric
	version  uint64
	persist  Persister

	saveMu sync.Mutex
	saved  uint64
	now      func() time.Time
	logger   *logrus.Entry
	capacity int
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithCapacity sets the history size.
func WithCapacity(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.capacity = n
		}
	}
}

// WithLogger overrides the tracker logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(t *Tracker) { t.logger = logger }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New creates a tracker and loads persisted metrics once. A nil persister
// keeps metrics in memory only. A failed load is logged and starts empty.
func New(p Persister, opts ...Option) *Tracker {
	t := &Tracker{
		capacity: DefaultCapacity,
		metrics:  make(map[string]Metric),
		persist:  p,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = logging.NewLogger("tracker")
	}
	t.ring = make([]Record, t.capacity)

	if t.persist != nil {
		loaded, err := t.persist.Load()
		if err != nil {
			t.logger.WithError(err).Warn("Failed to load persisted metrics")
		} else if loaded != nil {
			t.metrics = loaded
		}
	}
	return t
}

// DisplayName picks the name shown for a tracked call: the function field,
// then component:action, then the raw action type.
func DisplayName(actionType string, payload map[string]interface{}) string {
	if fn := stringField(payload, FieldFunction); fn != "" {
		return fn
	}
	component := stringField(payload, FieldComponent)
	action := stringField(payload, FieldAction)
	if component != "" && action != "" {
		return component + ":" + action
	}
	return actionType
}

// Track records one call and returns the record. When tracking is disabled
// nothing is recorded and the zero Record is returned.
func (t *Tracker) Track(actionType string, payload map[string]interface{}) Record {
	if !Enabled() {
		return Record{}
	}

	name := DisplayName(actionType, payload)
	module := stringField(payload, FieldModule)
	if module == "" {
		module = stringField(payload, FieldComponent)
	}
	function := stringField(payload, FieldFunction)
	if function == "" {
		function = name
	}

	rec := Record{
		ID:         uuid.NewString(),
		Timestamp:  t.now(),
		ActionType: name,
		Page:       stringField(payload, FieldPage),
		Module:     module,
		Function:   function,
		AcctID:     payload[FieldAcctID],
		Context:    cloneMap(payload),
	}

	t.mu.Lock()
	t.ring[t.head] = rec
	t.head = (t.head + 1) % t.capacity
	if t.size < t.capacity {
		t.size++
	}

	key := MetricKey(rec.Page, rec.Module, rec.Function)
	next := make(map[string]Metric, len(t.metrics)+1)
	for k, m := range t.metrics {
		next[k] = m
	}
	m, ok := next[key]
	if !ok {
		m = Metric{Page: rec.Page, Module: rec.Module, Function: rec.Function, Created: rec.Timestamp}
	}
	m.Calls++
	m.LastCall = rec.Timestamp
	next[key] = m
	t.metrics = next
	t.version++
	version := t.version
	t.mu.Unlock()

	t.save(next, version)

	t.logger.WithFields(logrus.Fields{
		"action_type": name,
		"metric":      key,
		"calls":       m.Calls,
	}).Debug("Tracked action")

	return rec
}

// History returns tracked records newest first.
func (t *Tracker) History() []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Record, 0, t.size)
	for i := 1; i <= t.size; i++ {
		rec := t.ring[(t.head-i+t.capacity)%t.capacity]
		rec.Context = cloneMap(rec.Context)
		out = append(out, rec)
	}
	return out
}

// Metrics returns a copy of the aggregate.
func (t *Tracker) Metrics() map[string]Metric {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]Metric, len(t.metrics))
	for k, m := range t.metrics {
		out[k] = m
	}
	return out
}

// SortedMetrics returns the aggregate ordered by call count, busiest first.
func (t *Tracker) SortedMetrics() []Metric {
	m := t.Metrics()
	out := make([]Metric, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Calls != out[j].Calls {
			return out[i].Calls > out[j].Calls
		}
		return MetricKey(out[i].Page, out[i].Module, out[i].Function) <
			MetricKey(out[j].Page, out[j].Module, out[j].Function)
	})
	return out
}

// ClearHistory drops every record.
func (t *Tracker) ClearHistory() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ring = make([]Record, t.capacity)
	t.head = 0
	t.size = 0
}

// ClearMetrics drops the aggregate and its persisted copy.
func (t *Tracker) ClearMetrics() error {
	t.mu.Lock()
	t.metrics = make(map[string]Metric)
	t.version++
	version := t.version
	t.mu.Unlock()

	if t.persist == nil {
		return nil
	}
	t.saveMu.Lock()
	defer t.saveMu.Unlock()
	t.saved = version
	if err := t.persist.Clear(); err != nil {
		t.logger.WithError(err).Error("Failed to clear persisted metrics")
		return err
	}
	return nil
}

// Close releases the persister if it holds resources.
func (t *Tracker) Close() error {
	if c, ok := t.persist.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// save persists snapshot version unless a newer one has already been saved.
func (t *Tracker) save(m map[string]Metric, version uint64) {
	if t.persist == nil {
		return
	}
	t.saveMu.Lock()
	defer t.saveMu.Unlock()
	if version <= t.saved {
		return
	}
	if err := t.persist.Save(m); err != nil {
		t.logger.WithError(err).Warn("Failed to persist metrics")
		return
	}
	t.saved = version
}

// safeTrack tracks and swallows any panic so the caller always proceeds.
func (t *Tracker) safeTrack(actionType string, payload map[string]interface{}) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.New(errors.ErrCodeInternal, fmt.Sprintf("tracking panicked: %v", r)).
				WithDetail("action_type", actionType)
			t.logger.WithFields(err.Fields()).Error(err.Message)
		}
	}()
	t.Track(actionType, payload)
}

func stringField(m map[string]interface{}, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
