package config

import (
	"os"
	"path/filepath"

	"github.com/grovetools/prodtrack/errors"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// overrideNames lists local override files applied on top of the base file.
var overrideNames = []string{
	"prodtrack.override.yml",
	"prodtrack.override.yaml",
	"prodtrack.override.toml",
	".prodtrack.override.yml",
}

// LoadWithOverrides loads baseFile and merges any override file found next
// to it. Overrides are not schema-validated; the merged result is.
func LoadWithOverrides(baseFile string) (*Config, error) {
	cfg, err := Load(baseFile)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(baseFile)
	for _, name := range overrideNames {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		expanded := []byte(expandEnvVars(string(data)))
		var override Config
		if FormatFor(path) == FormatTOML {
			err = toml.Unmarshal(expanded, &override)
		} else {
			err = yaml.Unmarshal(expanded, &override)
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse override").
				WithDetail("path", path)
		}

		cfg = mergeConfigs(cfg, &override)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeConfigs returns base with every non-zero override field applied.
// Pages are replaced per name; extension maps are merged one level deep.
func mergeConfigs(base, override *Config) *Config {
	result := *base

	if override.Version != "" {
		result.Version = override.Version
	}

	if override.Tracker.Enabled != nil {
		result.Tracker.Enabled = override.Tracker.Enabled
	}
	if override.Tracker.Capacity != 0 {
		result.Tracker.Capacity = override.Tracker.Capacity
	}
	result.Tracker.Persist = mergePersist(result.Tracker.Persist, override.Tracker.Persist)

	if override.Bus.MaxQueued != 0 {
		result.Bus.MaxQueued = override.Bus.MaxQueued
	}
	if len(override.Bus.Unstored) > 0 {
		result.Bus.Unstored = append(append([]string{}, result.Bus.Unstored...), override.Bus.Unstored...)
	}

	result.Fetch = mergeFetch(result.Fetch, override.Fetch)

	if override.Debug.Enabled {
		result.Debug.Enabled = true
	}
	if override.Debug.Addr != "" {
		result.Debug.Addr = override.Debug.Addr
	}

	if len(override.Pages) > 0 {
		pages := make(map[string]PageConfig, len(result.Pages)+len(override.Pages))
		for name, page := range result.Pages {
			pages[name] = page
		}
		for name, page := range override.Pages {
			pages[name] = page
		}
		result.Pages = pages
	}

	if override.Extensions != nil {
		extensions := make(map[string]interface{}, len(result.Extensions))
		for key, value := range result.Extensions {
			extensions[key] = value
		}
		for key, value := range override.Extensions {
			baseMap, baseOk := extensions[key].(map[string]interface{})
			overrideMap, overrideOk := value.(map[string]interface{})
			if baseOk && overrideOk {
				merged := make(map[string]interface{}, len(baseMap)+len(overrideMap))
				for k, v := range baseMap {
					merged[k] = v
				}
				for k, v := range overrideMap {
					merged[k] = v
				}
				extensions[key] = merged
				continue
			}
			extensions[key] = value
		}
		result.Extensions = extensions
	}

	return &result
}

func mergePersist(base, override PersistConfig) PersistConfig {
	result := base
	if override.Backend != "" {
		result.Backend = override.Backend
	}
	if override.Path != "" {
		result.Path = override.Path
	}
	if override.RedisAddr != "" {
		result.RedisAddr = override.RedisAddr
	}
	if override.RedisDB != 0 {
		result.RedisDB = override.RedisDB
	}
	if override.Key != "" {
		result.Key = override.Key
	}
	return result
}

func mergeFetch(base, override FetchConfig) FetchConfig {
	result := base
	if override.Backend != "" {
		result.Backend = override.Backend
	}
	if override.DSN != "" {
		result.DSN = override.DSN
	}
	if override.BaseURL != "" {
		result.BaseURL = override.BaseURL
	}
	if override.RowsPath != "" {
		result.RowsPath = override.RowsPath
	}
	if override.TimeoutMS != 0 {
		result.TimeoutMS = override.TimeoutMS
	}
	if len(override.Queries) > 0 {
		queries := make(map[string]string, len(result.Queries)+len(override.Queries))
		for name, sql := range result.Queries {
			queries[name] = sql
		}
		for name, sql := range override.Queries {
			queries[name] = sql
		}
		result.Queries = queries
	}
	return result
}
