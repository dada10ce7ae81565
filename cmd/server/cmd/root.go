package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Togather-Foundation/tsukuyomi/internal/config"
)

var (
	// Global flags
	configPath string
	logLevel   string
	logFormat  string
)

// newRootCommand builds the command tree. Running the root command without
// a subcommand serves.
func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "tsukuyomi",
		Short: "tsukuyomi example server",
		Long: `tsukuyomi runs the example application of the tsukuyomi web framework.

The server demonstrates:
- Typed routing with path parameters, scopes and fallbacks
- JSON APIs with validation, bearer tokens and cursor pagination
- CORS, cookie sessions with CSRF protection and template pages
- WebSocket echo, GraphQL with GraphiQL and static files`,
		SilenceUsage: true,
	}
	serve := newServeCommand()
	root.RunE = serve.RunE

	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file overlaid on environment variables")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error) (default: info)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (json, console) (default: json)")

	root.AddCommand(serve)
	root.AddCommand(newVersionCommand())
	root.AddCommand(newHealthcheckCommand())
	root.AddCommand(newRoutesCommand())
	root.AddCommand(newTokenCommand())
	root.AddCommand(newHashPasswordCommand())
	root.AddCommand(newMigrateCommand())
	return root
}

// Execute runs the command line. Called by main.main.
func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and applies the logging flags.
func loadConfig() (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return config.Config{}, err
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	return cfg, nil
}
