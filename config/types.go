package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Config is the top-level prodtrack configuration loaded from prodtrack.yml
// or prodtrack.toml.
type Config struct {
	Version string                `yaml:"version,omitempty" toml:"version" jsonschema:"description=Configuration version (e.g. '1.0')"`
	Tracker TrackerConfig         `yaml:"tracker,omitempty" toml:"tracker" jsonschema:"description=Action tracker settings"`
	Bus     BusConfig             `yaml:"bus,omitempty" toml:"bus" jsonschema:"description=Action bus settings"`
	Fetch   FetchConfig           `yaml:"fetch,omitempty" toml:"fetch" jsonschema:"description=Data-fetch backend used by tab list queries"`
	Debug   DebugConfig           `yaml:"debug,omitempty" toml:"debug" jsonschema:"description=Debug inspection surface"`
	Pages   map[string]PageConfig `yaml:"pages,omitempty" toml:"pages" jsonschema:"description=Tab definitions per page; entries replace the built-in page of the same name"`

	// Extensions captures all other top-level keys (e.g. "logging").
	Extensions map[string]interface{} `yaml:",inline" toml:"-" jsonschema:"-"`
}

// TrackerConfig configures the action tracker.
type TrackerConfig struct {
	// Enabled toggles tracking globally. Defaults to true.
	Enabled *bool `yaml:"enabled,omitempty" toml:"enabled" jsonschema:"description=Record dispatched actions"`
	// Capacity is the size of the history ring. Defaults to 100.
	Capacity int           `yaml:"capacity,omitempty" toml:"capacity" jsonschema:"minimum=1,description=History ring capacity"`
	Persist  PersistConfig `yaml:"persist,omitempty" toml:"persist"`
}

// PersistConfig selects where tracker metrics survive between sessions.
type PersistConfig struct {
	// Backend is one of "file" (default), "bolt", "redis" or "none".
	Backend   string `yaml:"backend,omitempty" toml:"backend" jsonschema:"enum=file,enum=bolt,enum=redis,enum=none"`
	Path      string `yaml:"path,omitempty" toml:"path" jsonschema:"description=File path for the file and bolt backends"`
	RedisAddr string `yaml:"redis_addr,omitempty" toml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db,omitempty" toml:"redis_db"`
	Key       string `yaml:"key,omitempty" toml:"key" jsonschema:"description=Session key the metrics are stored under"`
}

// BusConfig configures the action bus.
type BusConfig struct {
	// MaxQueued bounds same-action re-dispatches queued during a dispatch.
	MaxQueued int `yaml:"max_queued,omitempty" toml:"max_queued" jsonschema:"minimum=1"`
	// Unstored lists additional action names whose payloads are not written to the store.
	Unstored []string `yaml:"unstored,omitempty" toml:"unstored"`
}

// FetchConfig configures the data-fetch collaborator.
type FetchConfig struct {
	// Backend is one of "memory" (default), "postgres" or "http".
	Backend string `yaml:"backend,omitempty" toml:"backend" jsonschema:"enum=memory,enum=postgres,enum=http"`
	DSN     string `yaml:"dsn,omitempty" toml:"dsn"`
	BaseURL string `yaml:"base_url,omitempty" toml:"base_url"`
	// RowsPath is the gjson path of the row array in HTTP responses.
	RowsPath  string `yaml:"rows_path,omitempty" toml:"rows_path"`
	TimeoutMS int    `yaml:"timeout_ms,omitempty" toml:"timeout_ms"`
	// Queries maps list query names to SQL text for the postgres backend.
	Queries map[string]string `yaml:"queries,omitempty" toml:"queries"`
}

// DebugConfig configures the debug inspection server.
type DebugConfig struct {
	Enabled bool   `yaml:"enabled,omitempty" toml:"enabled"`
	Addr    string `yaml:"addr,omitempty" toml:"addr"`
}

// PageConfig describes one tabbed page.
type PageConfig struct {
	// Mode is "hierarchical" (default) or "flat".
	Mode string      `yaml:"mode,omitempty" toml:"mode" jsonschema:"enum=hierarchical,enum=flat"`
	Tabs []TabConfig `yaml:"tabs" toml:"tabs"`
}

// TabConfig describes one tab of a page.
type TabConfig struct {
	Label        string   `yaml:"label" toml:"label"`
	ListEvent    string   `yaml:"list_event" toml:"list_event"`
	KeyField     string   `yaml:"key_field,omitempty" toml:"key_field"`
	ParentKey    string   `yaml:"parent_key,omitempty" toml:"parent_key"`
	SelectionKey string   `yaml:"selection_key,omitempty" toml:"selection_key"`
	Columns      []string `yaml:"columns,omitempty" toml:"columns"`
}

// SetDefaults sets default values for configuration
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = "1.0"
	}
	if c.Tracker.Enabled == nil {
		enabled := true
		c.Tracker.Enabled = &enabled
	}
	if c.Tracker.Capacity == 0 {
		c.Tracker.Capacity = 100
	}
	if c.Tracker.Persist.Backend == "" {
		c.Tracker.Persist.Backend = "file"
	}
	if c.Tracker.Persist.Key == "" {
		c.Tracker.Persist.Key = "prodtrack:metrics"
	}
	if c.Bus.MaxQueued == 0 {
		c.Bus.MaxQueued = 16
	}
	if c.Fetch.Backend == "" {
		c.Fetch.Backend = "memory"
	}
	if c.Fetch.RowsPath == "" {
		c.Fetch.RowsPath = "rows"
	}
	if c.Fetch.TimeoutMS == 0 {
		c.Fetch.TimeoutMS = 10000
	}
	if c.Debug.Addr == "" {
		c.Debug.Addr = "127.0.0.1:7878"
	}
	for name, page := range c.Pages {
		if page.Mode == "" {
			page.Mode = "hierarchical"
			c.Pages[name] = page
		}
	}
}

// TrackingEnabled reports the effective tracker.enabled value.
func (c *Config) TrackingEnabled() bool {
	return c.Tracker.Enabled == nil || *c.Tracker.Enabled
}

// UnmarshalExtension decodes a specific extension's configuration from the
// loaded prodtrack.yml into the provided target struct. The target must be a
// pointer. Missing keys leave the target zero-valued.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  target,
		TagName: "yaml",
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
