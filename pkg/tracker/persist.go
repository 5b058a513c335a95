package tracker

import (
	"path/filepath"
	"strings"

	"github.com/grovetools/prodtrack/config"
	"github.com/grovetools/prodtrack/errors"
)

// Persister stores the metrics aggregate between sessions. Load is called
// once at startup, Save after every tracked call, Clear on ClearMetrics.
type Persister interface {
	Load() (map[string]Metric, error)
	Save(map[string]Metric) error
	Clear() error
}

// NewPersister builds the persister selected by cfg. The "none" backend
// returns nil.
func NewPersister(cfg config.PersistConfig) (Persister, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "file":
		path := cfg.Path
		if path == "" {
			path = filepath.Join(config.StateDir(), "metrics.yml")
		}
		return NewFilePersister(path), nil
	case "bolt":
		path := cfg.Path
		if path == "" {
			path = filepath.Join(config.StateDir(), "metrics.db")
		}
		p, err := OpenBoltPersister(path)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "redis":
		return NewRedisPersister(cfg.RedisAddr, cfg.RedisDB, cfg.Key), nil
	case "none":
		return nil, nil
	default:
		return nil, errors.ConfigInvalid("unknown persist backend: " + cfg.Backend)
	}
}
