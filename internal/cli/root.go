// Package cli implements the frisk command line.
package cli

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eargollo/frisk/internal/config"
)

// app is the state shared by every subcommand once the config is loaded.
type app struct {
	version    string
	configPath string
	logLevel   string

	store *config.Store
}

// Execute runs the root command.
func Execute(version string) error {
	return NewRootCmd(version).Execute()
}

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	a := &app{version: version}

	root := &cobra.Command{
		Use:   "frisk",
		Short: "Search and replace text across directory trees",
		Long: `frisk searches files below one or more directories for a literal
string or a regular expression, optionally replacing every match.

Results are printed per file with line numbers. A replace rewrites matching
files in place, keeping a backup copy next to each one unless disabled.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", defaultConfigPath(),
		"path to config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "",
		"log level: debug, info, warn, error (default from config)")

	root.AddCommand(
		newSearchCmd(a),
		newServeCmd(a),
		newSavedCmd(a),
		newOpenCmd(a),
		newRestoreCmd(a),
	)
	return root
}

// load reads the config file and configures logging.
func (a *app) load(stderr io.Writer) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	level := cfg.LogLevel
	if a.logLevel != "" {
		level = a.logLevel
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: parseLogLevel(level),
	})))
	slog.Debug("config loaded", "path", a.configPath, "log_level", level)
	a.store = config.NewStore(a.configPath, cfg)
	return nil
}

// defaultConfigPath is config.yaml in the user's config directory, or in the
// working directory when that is unknown.
func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "frisk", "config.yaml")
}

// parseLogLevel converts a config string ("debug", "info", "warn", "error")
// to its slog.Level equivalent. Unknown values default to Info.
func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// saveConfig applies fn to the config and writes it back. A failure is only
// logged: the command itself already succeeded.
func (a *app) saveConfig(fn func(*config.Config) error) {
	if err := a.store.Update(fn); err != nil {
		slog.Warn("could not save config", "path", a.store.Path(), "error", err)
	}
}
