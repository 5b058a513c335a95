//go:build !production

package debug

import (
	"bytes"
	"sync"
)

// logTail keeps the last lines written by the process loggers.
type logTail struct {
	mu      sync.Mutex
	lines   []string
	max     int
	partial []byte
}

func newLogTail(max int) *logTail {
	return &logTail{max: max}
}

// Write splits p into lines; an unterminated tail is held until the next write.
func (l *logTail) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data := append(l.partial, p...)
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		l.lines = append(l.lines, string(data[:i]))
		data = data[i+1:]
	}
	l.partial = append([]byte(nil), data...)

	if over := len(l.lines) - l.max; over > 0 {
		l.lines = append([]string(nil), l.lines[over:]...)
	}
	return len(p), nil
}

func (l *logTail) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string{}, l.lines...)
}
