package config

import (
	"fmt"

	"github.com/grovetools/prodtrack/errors"
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Tracker.Capacity < 1 {
		return errors.New(errors.ErrCodeConfigValidation, "tracker.capacity must be at least 1").
			WithDetail("capacity", c.Tracker.Capacity)
	}

	switch c.Tracker.Persist.Backend {
	case "file", "bolt", "none":
	case "redis":
		if c.Tracker.Persist.RedisAddr == "" {
			return errors.New(errors.ErrCodeConfigValidation, "tracker.persist.redis_addr is required for the redis backend")
		}
	default:
		return errors.New(errors.ErrCodeConfigValidation,
			fmt.Sprintf("unknown tracker.persist.backend '%s'", c.Tracker.Persist.Backend))
	}

	if c.Bus.MaxQueued < 1 {
		return errors.New(errors.ErrCodeConfigValidation, "bus.max_queued must be at least 1")
	}

	switch c.Fetch.Backend {
	case "memory":
	case "postgres":
		if c.Fetch.DSN == "" {
			return errors.New(errors.ErrCodeConfigValidation, "fetch.dsn is required for the postgres backend")
		}
	case "http":
		if c.Fetch.BaseURL == "" {
			return errors.New(errors.ErrCodeConfigValidation, "fetch.base_url is required for the http backend")
		}
	default:
		return errors.New(errors.ErrCodeConfigValidation,
			fmt.Sprintf("unknown fetch.backend '%s'", c.Fetch.Backend))
	}

	for name, page := range c.Pages {
		if page.Mode != "hierarchical" && page.Mode != "flat" {
			return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("page '%s' has unknown mode '%s'", name, page.Mode)).
				WithDetail("page", name)
		}
		if len(page.Tabs) == 0 {
			return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("page '%s' defines no tabs", name)).
				WithDetail("page", name)
		}
	}

	return nil
}
