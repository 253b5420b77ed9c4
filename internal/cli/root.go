// Package cli provides the command-line interface for the service catalog.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/williamsiker/practicas/internal/config"
	"github.com/williamsiker/practicas/internal/observability"
)

var (
	// Version information set by main.
	versionInfo struct {
		Version string
		Commit  string
		Date    string
	}

	// Global flags
	cfgFile      string
	verbose      bool
	noColor      bool
	logLevel     string
	outputFormat string
	actorID      int64
	actorRole    string

	// Global config
	cfg       *config.Config
	cfgLoader *config.Loader

	// Logger
	logger *log.Logger

	metrics *observability.Metrics

	// Styles
	styles = struct {
		Title   lipgloss.Style
		Success lipgloss.Style
		Error   lipgloss.Style
		Warning lipgloss.Style
		Info    lipgloss.Style
		Subtle  lipgloss.Style
		Bold    lipgloss.Style
	}{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Info:    lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
		Subtle:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Bold:    lipgloss.NewStyle().Bold(true),
	}
)

// SetVersionInfo sets the version information from main.
func SetVersionInfo(version, commit, date string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.Date = date
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = newRootCmd()

// newRootCmd builds the command tree. Tests build a fresh tree per case so
// subcommand flags start from their defaults.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Service catalog with publisher requests and admin approval",
		Long: `catalog runs a marketplace of internal web services.

Publishers submit service requests, administrators review them, and every
approved request becomes a service with a managed endpoint that can be
configured and published to the public catalog.

Start the API with 'catalog serve' or drive the workflow directly from the
command line with the request and service commands.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}
			if err := initConfig(cmd); err != nil {
				return err
			}
			metrics = observability.InitGlobal(versionInfo.Version)
			metrics.RecordCommandInvocation(cmd.CommandPath())
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default: .catalog.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&noColor, "no-color", false, "disable colored output")
	flags.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides log.level")
	flags.StringVarP(&outputFormat, "format", "o", formatTable, "output format (table, json, yaml, toml)")
	flags.Int64Var(&actorID, "as", 0, "user id to act as")
	flags.StringVar(&actorRole, "role", "publisher", "role of the acting user (publisher, admin)")

	cmd.AddCommand(
		newVersionCmd(),
		newServeCmd(),
		newRequestCmd(),
		newServiceCmd(),
		newListingCmd(),
		newMachineCmd(),
		newConfigCmd(),
	)
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with a context for graceful shutdown.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// loadAndValidateConfig loads and validates the configuration. Warnings are
// logged and never fail the command.
func loadAndValidateConfig(cmd *cobra.Command) error {
	loader := config.NewLoader()

	if cfgFile != "" {
		loader.WithConfigPath(cfgFile)
	}
	if cmd.Flags().Changed("log-level") {
		loader.MergeConfig(map[string]any{"log.level": logLevel})
	}

	loaded, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	validator := config.NewValidator()
	if err := validator.Validate(loaded); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	for _, w := range validator.Warnings() {
		slog.Warn("configuration warning", "warning", w)
	}

	cfg = loaded
	cfgLoader = loader
	return nil
}

// applyGlobalFlags applies global CLI flags that are not config keys.
func applyGlobalFlags() {
	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// configureLogger installs a charmbracelet logger as the slog default.
func configureLogger(out io.Writer) {
	logger = log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		ReportCaller:    false,
	})
	if cfg.Log.Format == "json" {
		logger.SetFormatter(log.JSONFormatter)
	}
	setLogLevel(cfg.Log.Level)
	slog.SetDefault(slog.New(logger))
}

// setLogLevel sets the logger level; unknown levels fall back to info.
func setLogLevel(level string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	if verbose {
		lvl = log.DebugLevel
	}
	logger.SetLevel(lvl)
}

// initConfig reads in config file and ENV variables if set.
func initConfig(cmd *cobra.Command) error {
	if err := loadAndValidateConfig(cmd); err != nil {
		return err
	}

	applyGlobalFlags()
	configureLogger(os.Stderr)
	return nil
}

// versionCmd prints version information.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "catalog %s\n", versionInfo.Version)
			if verbose {
				fmt.Fprintf(out, "  commit: %s\n", versionInfo.Commit)
				fmt.Fprintf(out, "  built:  %s\n", versionInfo.Date)
			}
		},
	}
}
