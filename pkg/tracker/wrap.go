package tracker

import (
	"github.com/grovetools/prodtrack/pkg/bus"
)

// Wrap returns fn with a tracking call in front of it. Tracking never stops
// fn from running and fn's result passes through unchanged.
func Wrap[R any](t *Tracker, actionType string, info map[string]interface{}, fn func() R) func() R {
	return func() R {
		t.safeTrack(actionType, info)
		return fn()
	}
}

// WrapFunc is Wrap for single-argument functions.
func WrapFunc[A, R any](t *Tracker, actionType string, info map[string]interface{}, fn func(A) R) func(A) R {
	return func(a A) R {
		t.safeTrack(actionType, info)
		return fn(a)
	}
}

// ObserveAction tracks a bus dispatch. Page and module fall back to the
// action context when the payload does not carry them.
func (t *Tracker) ObserveAction(a bus.Action) {
	info := make(map[string]interface{}, len(a.Payload)+2)
	for _, key := range []string{FieldPage, FieldModule} {
		if v, ok := a.Context[key].(string); ok {
			info[key] = v
		}
	}
	for k, v := range a.Payload {
		info[k] = v
	}
	t.safeTrack(a.Kind.String(), info)
}

var _ bus.Observer = (*Tracker)(nil)
