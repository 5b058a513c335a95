package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reloads struct {
	mu   sync.Mutex
	seen []*Config
}

func (r *reloads) add(cfg *Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, cfg)
}

func (r *reloads) all() []*Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Config(nil), r.seen...)
}

func startWatcher(t *testing.T, path string, r *reloads) {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	w, err := NewWatcher(path, 200, logrus.NewEntry(logger), r.add)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestWatcherLoadsFinalContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prodtrack.yml")
	require.NoError(t, os.WriteFile(path, []byte("tracker:\n  capacity: 5\n"), 0644))

	r := &reloads{}
	startWatcher(t, path, r)

	// truncate then write, as editors saving in place do
	require.NoError(t, os.WriteFile(path, nil, 0644))
	require.NoError(t, os.WriteFile(path, []byte("tracker:\n  enabled: false\n  capacity: 9\n"), 0644))

	require.Eventually(t, func() bool { return len(r.all()) > 0 }, 3*time.Second, 20*time.Millisecond)
	time.Sleep(300 * time.Millisecond)

	for _, cfg := range r.all() {
		assert.Equal(t, 9, cfg.Tracker.Capacity)
		assert.False(t, cfg.TrackingEnabled())
	}
}

func TestWatcherKeepsPreviousOnInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prodtrack.yml")
	require.NoError(t, os.WriteFile(path, []byte("tracker:\n  capacity: 5\n"), 0644))

	r := &reloads{}
	startWatcher(t, path, r)

	require.NoError(t, os.WriteFile(path, []byte("fetch:\n  backend: carrier-pigeon\n"), 0644))
	assert.Never(t, func() bool { return len(r.all()) > 0 }, 600*time.Millisecond, 50*time.Millisecond)
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prodtrack.yml")
	require.NoError(t, os.WriteFile(path, []byte("tracker:\n  capacity: 5\n"), 0644))

	r := &reloads{}
	startWatcher(t, path, r)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.yml"), []byte("a: 1\n"), 0644))
	assert.Never(t, func() bool { return len(r.all()) > 0 }, 500*time.Millisecond, 50*time.Millisecond)
}
