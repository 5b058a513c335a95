package logging

// Config is the "logging" section of prodtrack.yml, decoded through
// config.UnmarshalExtension. PRODTRACK_LOG_LEVEL and PRODTRACK_LOG_CALLER
// take precedence over Level and ReportCaller.
type Config struct {
	Level        string         `yaml:"level"`
	ReportCaller bool           `yaml:"report_caller"`
	File         FileSinkConfig `yaml:"file"`
	Format       FormatConfig   `yaml:"format"`
}

// FileSinkConfig appends every record to Path when Enabled.
type FileSinkConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// FormatConfig selects the record layout.
type FormatConfig struct {
	// Preset is "default", "simple" or "json".
	Preset           string `yaml:"preset"`
	DisableTimestamp bool   `yaml:"disable_timestamp"`
	DisableComponent bool   `yaml:"disable_component"`
	// StructuredToStderr is "auto" (default), "always" or "never". In auto
	// mode an interactive stderr only gets records at debug level.
	StructuredToStderr string `yaml:"structured_to_stderr"`
}
