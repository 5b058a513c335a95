package cli

import (
	"os"
	"strconv"

	"github.com/grovetools/prodtrack/config"
	"github.com/grovetools/prodtrack/errors"
	"github.com/grovetools/prodtrack/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// CommandOptions holds the options shared by every prodtrack command.
type CommandOptions struct {
	ConfigFile string
	Verbose    bool
	JSONOutput bool
}

// NewStandardCommand creates a root command with the standard flags.
func NewStandardCommand(use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().StringP("config", "c", "", "Path to prodtrack.yml or prodtrack.toml")

	return cmd
}

// GetLogger returns the component logger with the level and format implied
// by the command flags.
func GetLogger(cmd *cobra.Command, component string) *logrus.Entry {
	entry := logging.NewLogger(component)

	opts := GetOptions(cmd)
	if opts.Verbose {
		entry.Logger.SetLevel(logrus.DebugLevel)
	}
	if opts.JSONOutput {
		entry.Logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return entry
}

// GetOptions extracts the standard options from a command. Flags are
// resolved through the command and its parents, so persistent flags are seen
// before cobra has merged them into the local flag set.
func GetOptions(cmd *cobra.Command) CommandOptions {
	verbose, _ := strconv.ParseBool(flagValue(cmd, "verbose"))
	jsonOutput, _ := strconv.ParseBool(flagValue(cmd, "json"))

	return CommandOptions{
		ConfigFile: flagValue(cmd, "config"),
		Verbose:    verbose,
		JSONOutput: jsonOutput,
	}
}

func flagValue(cmd *cobra.Command, name string) string {
	if f := cmd.Flag(name); f != nil {
		return f.Value.String()
	}
	return ""
}

// InitConfig resolves the configuration file path: the flag value if set,
// otherwise the nearest prodtrack config above the working directory. An
// empty result means no file was found.
func InitConfig(configFile string) (string, error) {
	if configFile != "" {
		return configFile, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	found, err := config.FindConfigFile(cwd)
	if err != nil {
		return "", nil
	}
	return found, nil
}

// LoadConfig loads the configuration selected by the command flags and
// returns it with the path it came from. Without a file, defaults are used.
func LoadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path, err := InitConfig(GetOptions(cmd).ConfigFile)
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		return config.Default(), "", nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, path, errors.ConfigNotFound(path)
	}
	cfg, err := config.LoadWithOverrides(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}
