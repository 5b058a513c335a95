package bus

import (
	"context"
	"fmt"
	"time"
)

// Payload keys stamped on every dispatch.
const (
	KeyTimestamp  = "timestamp"
	KeyActionType = "actionType"
)

// Payload is the data carried by an action. It is copied at dispatch, so
// handlers never share a map with the caller.
type Payload map[string]interface{}

// Context carries caller-supplied collaborators for the duration of one
// dispatch. It is never written to the store or the tracker.
type Context map[string]interface{}

// Action is one dispatch.
type Action struct {
	ID      string
	Kind    Kind
	Payload Payload
	Context Context
}

// HandlerFunc handles one action. Returned errors and panics are logged by
// the bus and never reach the caller of Trigger.
type HandlerFunc func(ctx context.Context, a Action) error

// Handler is a named handler with optional ordering constraints. After lists
// the names of handlers of the same kind that must complete first.
type Handler struct {
	Name  string
	After []string
	Fn    HandlerFunc
}

// Observer sees every dispatched action after its store write and before any
// handler runs.
type Observer interface {
	ObserveAction(a Action)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(a Action)

// ObserveAction implements Observer.
func (f ObserverFunc) ObserveAction(a Action) { f(a) }

// Str returns payload[key] formatted as a string, or "" when absent.
func (p Payload) Str(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// Int returns payload[key] as an int when it holds any integer type.
func (p Payload) Int(key string) (int, bool) {
	switch v := p[key].(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint:
		return int(v), true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	}
	return 0, false
}

// Timestamp returns the dispatch time stamped on the payload.
func (p Payload) Timestamp() time.Time {
	t, _ := p[KeyTimestamp].(time.Time)
	return t
}

// Clone returns a shallow copy.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p)+2)
	for k, v := range p {
		out[k] = v
	}
	return out
}

func enrich(p Payload, k Kind, now time.Time) Payload {
	out := p.Clone()
	out[KeyTimestamp] = now
	out[KeyActionType] = k.String()
	return out
}
