package store

import "sync"

// PollVar is a read binding to one store key. Value re-evaluates whenever
// the key changes and falls back to the default while the key is nil or
// absent.
type PollVar struct {
	mu      sync.RWMutex
	key     string
	value   interface{}
	def     interface{}
	changed chan struct{}
	stop    func()
}

// Poll binds to key with the given default.
func (s *Store) Poll(key string, def interface{}) *PollVar {
	p := &PollVar{
		key:     key,
		value:   s.GetVar(key),
		def:     def,
		changed: make(chan struct{}, 1),
	}
	p.stop = s.Watch(key, p.update)
	return p
}

func (p *PollVar) update(c Change) {
	p.mu.Lock()
	p.value = c.New
	p.mu.Unlock()

	// Coalesce: one pending signal is enough for a poller.
	select {
	case p.changed <- struct{}{}:
	default:
	}
}

// Key returns the bound key.
func (p *PollVar) Key() string {
	return p.key
}

// Value returns the current value or the default.
func (p *PollVar) Value() interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.value == nil {
		return p.def
	}
	return p.value
}

// Changed is signalled after the value changes. Signals are coalesced.
func (p *PollVar) Changed() <-chan struct{} {
	return p.changed
}

// Close detaches the binding from the store. The last value stays readable.
func (p *PollVar) Close() {
	if p.stop != nil {
		p.stop()
		p.stop = nil
	}
}
