package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"deskhogd/internal/config"
)

// flags holds command-line overrides. Empty values leave the config file
// (or its defaults) in charge.
type flags struct {
	configPath  string
	addr        string
	dbPath      string
	logLevel    string
	corsOrigins string
}

func newRootCmd() *cobra.Command {
	var f flags
	root := &cobra.Command{
		Use:           "deskhogd",
		Short:         "DeskHog device daemon: configuration portal, action queue and firmware updates",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, f)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "Config file (.yaml, .yml, .json or .toml)")
	pf.StringVar(&f.addr, "addr", "", "HTTP listen address, e.g. :8080")
	pf.StringVar(&f.dbPath, "db", "", "SQLite settings database path")
	pf.StringVar(&f.logLevel, "log-level", "", "Log level: debug|info|warn|error")
	pf.StringVar(&f.corsOrigins, "cors-origins", "", "Comma-separated allowed CORS origins; enables CORS when set")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, f)
		},
	}
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the daemon version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
	root.AddCommand(serve, versionCmd)
	return root
}

// loadConfig reads the config file if one is given, applies flag overrides
// and fills defaults.
func loadConfig(f flags) (config.Config, error) {
	var cfg config.Config
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if f.addr != "" {
		cfg.Addr = f.addr
	}
	if f.dbPath != "" {
		cfg.DBPath = f.dbPath
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if origins := splitCSV(f.corsOrigins); len(origins) > 0 {
		cfg.CORS.Enabled = true
		cfg.CORS.Origins = origins
	}
	if cfg.Update.CurrentVersion == "" {
		cfg.Update.CurrentVersion = version
	}
	cfg = cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
