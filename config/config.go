package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/grovetools/prodtrack/errors"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// configNames lists the file names searched for, in precedence order.
var configNames = []string{
	"prodtrack.yml",
	"prodtrack.yaml",
	"prodtrack.toml",
	".prodtrack.yml",
	".prodtrack.yaml",
}

// knownKeys are the top-level keys owned by Config itself; everything else
// lands in Extensions.
var knownKeys = map[string]bool{
	"version": true,
	"tracker": true,
	"bus":     true,
	"fetch":   true,
	"debug":   true,
	"pages":   true,
}

// Format identifies the encoding of a configuration document.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFor returns the document format implied by a file name.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// Load reads and parses a prodtrack configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}

	cfg, err := LoadFromBytes(data, FormatFor(path))
	if err != nil {
		if e, ok := err.(*errors.Error); ok {
			return nil, e.WithDetail("path", path)
		}
		return nil, err
	}
	return cfg, nil
}

// LoadDefault locates a configuration file starting at the working directory.
// PRODTRACK_CONFIG overrides the search. When no file exists the defaults are
// returned.
func LoadDefault() (*Config, error) {
	if path := os.Getenv("PRODTRACK_CONFIG"); path != "" {
		return Load(path)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to get current directory")
	}

	path, err := FindConfigFile(cwd)
	if err != nil {
		if errors.Is(err, errors.ErrCodeConfigNotFound) {
			logrus.WithField("dir", cwd).Debug("No prodtrack configuration found, using defaults")
			return Default(), nil
		}
		return nil, err
	}
	return Load(path)
}

// LoadFromBytes parses configuration from byte array
func LoadFromBytes(data []byte, format Format) (*Config, error) {
	expanded := []byte(expandEnvVars(string(data)))

	var raw map[string]interface{}
	var cfg Config
	unmarshal := yaml.Unmarshal
	if format == FormatTOML {
		unmarshal = toml.Unmarshal
	}

	if err := unmarshal(expanded, &raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse configuration").
			WithDetail("format", string(format))
	}

	if raw != nil {
		validator, err := NewSchemaValidator()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to create validator")
		}
		if err := validator.Validate(raw); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigValidation, "schema validation failed")
		}
	}

	if err := unmarshal(expanded, &cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to decode configuration").
			WithDetail("format", string(format))
	}

	// yaml.v3 fills Extensions through the inline tag; TOML has no
	// equivalent, so unknown keys are collected by hand.
	if format == FormatTOML {
		for key, value := range raw {
			if knownKeys[key] {
				continue
			}
			if cfg.Extensions == nil {
				cfg.Extensions = make(map[string]interface{})
			}
			cfg.Extensions[key] = value
		}
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// FindConfigFile searches from startDir up to the filesystem root, then the
// XDG config directory.
func FindConfigFile(startDir string) (string, error) {
	dir := startDir
	for {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	if xdgConfigPath := getXDGConfigPath(); xdgConfigPath != "" {
		if info, err := os.Stat(xdgConfigPath); err == nil && !info.IsDir() {
			return xdgConfigPath, nil
		}
	}

	return "", errors.ConfigNotFound(startDir).WithDetail("searchPath", startDir)
}

// expandEnvVars replaces ${VAR} with environment variable values
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		varName := envVarRegex.FindStringSubmatch(match)[1]

		// Handle default values: ${VAR:-default}
		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]
		defaultValue := ""
		if len(parts) > 1 {
			defaultValue = parts[1]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}

// getXDGConfigPath returns the XDG config path for prodtrack
func getXDGConfigPath() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "prodtrack", "prodtrack.yml")
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config", "prodtrack", "prodtrack.yml")
	}

	return ""
}

// StateDir returns the directory used for persisted session data such as
// tracker metrics.
func StateDir() string {
	if xdgState := os.Getenv("XDG_STATE_HOME"); xdgState != "" {
		return filepath.Join(xdgState, "prodtrack")
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".local", "state", "prodtrack")
	}
	return filepath.Join(os.TempDir(), "prodtrack")
}
