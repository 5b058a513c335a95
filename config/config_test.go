package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/grovetools/prodtrack/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestExtensions verifies that unknown top-level sections are kept for their owners
func TestExtensions(t *testing.T) {
	yamlContent := []byte(`
version: "1.0"
logging:
  level: debug
  report_caller: true
`)

	cfg, err := LoadFromBytes(yamlContent, FormatYAML)
	require.NoError(t, err)
	require.Contains(t, cfg.Extensions, "logging")

	var logCfg struct {
		Level        string `yaml:"level"`
		ReportCaller bool   `yaml:"report_caller"`
	}
	require.NoError(t, cfg.UnmarshalExtension("logging", &logCfg))
	assert.Equal(t, "debug", logCfg.Level)
	assert.True(t, logCfg.ReportCaller)

	// Missing extensions leave the target untouched
	var other struct{ Value string }
	require.NoError(t, cfg.UnmarshalExtension("missing", &other))
	assert.Empty(t, other.Value)
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "1.0", cfg.Version)
	assert.True(t, cfg.TrackingEnabled())
	assert.Equal(t, 100, cfg.Tracker.Capacity)
	assert.Equal(t, "file", cfg.Tracker.Persist.Backend)
	assert.Equal(t, 16, cfg.Bus.MaxQueued)
	assert.Equal(t, "memory", cfg.Fetch.Backend)
	require.NoError(t, cfg.Validate())
}

func TestLoadPagesYAML(t *testing.T) {
	yamlContent := []byte(`
tracker:
  enabled: false
  capacity: 20
pages:
  suppliers:
    tabs:
      - label: Suppliers
        list_event: suppliersList
        key_field: supplierID
      - label: Deliveries
        list_event: deliveriesList
        parent_key: supplierID
`)

	cfg, err := LoadFromBytes(yamlContent, FormatYAML)
	require.NoError(t, err)
	assert.False(t, cfg.TrackingEnabled())
	assert.Equal(t, 20, cfg.Tracker.Capacity)

	page := cfg.Pages["suppliers"]
	assert.Equal(t, "hierarchical", page.Mode)
	require.Len(t, page.Tabs, 2)
	assert.Equal(t, "supplierID", page.Tabs[1].ParentKey)
}

func TestLoadTOML(t *testing.T) {
	tomlContent := []byte(`
version = "1.0"

[bus]
max_queued = 4
unstored = ["formSubmitted"]

[logging]
level = "warn"

[pages.recipes]
mode = "flat"

[[pages.recipes.tabs]]
label = "Recipes"
list_event = "recipesList"
`)

	cfg, err := LoadFromBytes(tomlContent, FormatTOML)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Bus.MaxQueued)
	assert.Equal(t, []string{"formSubmitted"}, cfg.Bus.Unstored)
	assert.Equal(t, "flat", cfg.Pages["recipes"].Mode)
	assert.Contains(t, cfg.Extensions, "logging")
	assert.NotContains(t, cfg.Extensions, "bus")
}

func TestEnvExpansion(t *testing.T) {
	t.Setenv("PRODTRACK_TEST_DSN", "postgres://localhost/prod")

	cfg, err := LoadFromBytes([]byte(`
fetch:
  backend: postgres
  dsn: ${PRODTRACK_TEST_DSN}
  base_url: ${PRODTRACK_UNSET:-http://fallback}
`), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/prod", cfg.Fetch.DSN)
	assert.Equal(t, "http://fallback", cfg.Fetch.BaseURL)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		code errors.ErrorCode
	}{
		{
			name: "schema rejects unknown backend",
			yaml: "tracker:\n  persist:\n    backend: floppy\n",
			code: errors.ErrCodeConfigValidation,
		},
		{
			name: "schema rejects wrong type",
			yaml: "tracker:\n  capacity: lots\n",
			code: errors.ErrCodeConfigValidation,
		},
		{
			name: "redis needs an address",
			yaml: "tracker:\n  persist:\n    backend: redis\n",
			code: errors.ErrCodeConfigValidation,
		},
		{
			name: "postgres needs a dsn",
			yaml: "fetch:\n  backend: postgres\n",
			code: errors.ErrCodeConfigValidation,
		},
		{
			name: "page without tabs",
			yaml: "pages:\n  empty:\n    mode: flat\n    tabs: []\n",
			code: errors.ErrCodeConfigValidation,
		},
		{
			name: "malformed yaml",
			yaml: "tracker: [unterminated\n",
			code: errors.ErrCodeConfigInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.yaml), FormatYAML)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.code), "got %v", err)
		})
	}
}

func TestFindConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	_, err := FindConfigFile(nested)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigNotFound))

	path := filepath.Join(root, "prodtrack.toml")
	require.NoError(t, os.WriteFile(path, []byte("version = \"1.0\"\n"), 0644))

	found, err := FindConfigFile(nested)
	require.NoError(t, err)
	assert.Equal(t, path, found)

	cfg, err := Load(found)
	require.NoError(t, err)
	assert.Equal(t, "1.0", cfg.Version)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.True(t, errors.Is(err, errors.ErrCodeConfigNotFound))
}

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	require.NoError(t, err)
	assert.Contains(t, string(data), "\"tracker\"")
	assert.Contains(t, string(data), "\"max_queued\"")
	assert.NotContains(t, string(data), "Extensions")
}
