package logging

import (
	"io"
	"os"
	"sync"
)

// sink is the process-wide output shared by every logger from NewLogger.
// The console writer only receives records when Configure decides stderr
// should be used; taps receive every record.
type sink struct {
	mu      sync.RWMutex
	console io.Writer
	taps    map[int]io.Writer
	nextTap int
}

var shared = &sink{console: os.Stderr, taps: make(map[int]io.Writer)}

type consoleWriter struct{ s *sink }

func (c consoleWriter) Write(p []byte) (int, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	return c.s.console.Write(p)
}

type tapWriter struct{ s *sink }

// Write copies p to every tap. Tap errors are ignored so a failing tap
// never blocks logging.
func (t tapWriter) Write(p []byte) (int, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	for _, w := range t.s.taps {
		w.Write(p)
	}
	return len(p), nil
}

// GetGlobalOutput returns the console writer used for stderr output.
func GetGlobalOutput() io.Writer {
	return consoleWriter{shared}
}

// AddOutput copies every record of every logger, including loggers created
// earlier, to w until the returned function is called.
func AddOutput(w io.Writer) (remove func()) {
	shared.mu.Lock()
	id := shared.nextTap
	shared.nextTap++
	shared.taps[id] = w
	shared.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			shared.mu.Lock()
			delete(shared.taps, id)
			shared.mu.Unlock()
		})
	}
}
