package cli

import (
	"context"
	"errors"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/crateindex/pkg/buildinfo"
	errs "github.com/matzehuels/crateindex/pkg/errors"
)

// =============================================================================
// Constants
// =============================================================================

const appName = "crateindex"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// Exit statuses returned by [ExitCode].
const (
	ExitOK             = 0
	ExitError          = 1
	ExitNotModified    = 20
	ExitNoLastModified = 21
	ExitCancelled      = 130
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "crateindex ranks crates.io libraries by dependents",
		Long: `crateindex downloads the crates.io database dump, counts how many crates
depend on each library through their most recent version, and publishes the
ranked list as a compact binary index.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default ./"+defaultConfigFile+" if present)")

	root.AddCommand(c.fetchCommand())
	root.AddCommand(c.buildCommand())
	root.AddCommand(c.updateCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.browseCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig reads the configuration selected by --config.
func (c *CLI) loadConfig() (Config, error) {
	return LoadConfig(c.configPath)
}

// =============================================================================
// Exit Codes
// =============================================================================

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitCancelled
	case errs.Is(err, errs.ErrCodeNotModified):
		return ExitNotModified
	case errs.Is(err, errs.ErrCodeNoLastModified):
		return ExitNoLastModified
	default:
		return ExitError
	}
}

// Quiet reports whether err is an expected outcome that should not be
// printed as a failure.
func Quiet(err error) bool {
	switch ExitCode(err) {
	case ExitNotModified, ExitCancelled:
		return true
	}
	return false
}
