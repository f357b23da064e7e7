package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/chrissnell/rainseason/internal/constants"
	"github.com/chrissnell/rainseason/internal/log"
	"github.com/chrissnell/rainseason/pkg/config"
)

type rootOptions struct {
	cfgFile    string
	cfgBackend string
	profile    string
	debug      bool
	logFile    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "rainseason",
		Short: "Detect rainy-season onset and cessation from daily precipitation",
		Long: `rainseason finds the long-term and year-by-year onset and cessation of the
rainy season(s) of every pixel in a daily precipitation record, and writes the
season variables and rainfall covariates as tables and rasters.`,
		Version:       constants.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Set up logging
			if err := log.InitWithFile(opts.debug, log.FileOptions{Path: opts.logFile, MaxBackups: 5, Compress: true}); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			log.Sync()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "config.yaml", "Path to configuration source (YAML file or SQLite database)")
	rootCmd.PersistentFlags().StringVar(&opts.cfgBackend, "config-backend", "yaml", "Configuration backend type: 'yaml' for YAML files, 'sqlite' for SQLite databases")
	rootCmd.PersistentFlags().StringVar(&opts.profile, "profile", config.DefaultProfile, "Configuration profile (SQLite backend only)")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Turn on debugging output")
	rootCmd.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "Also write logs to this file, rotated")

	rootCmd.AddCommand(
		newDetectCmd(opts),
		newSynthCmd(),
		newMaskCmd(opts),
		newServeCmd(opts),
		newCacheCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rainseason %s\n", constants.Version)
		},
	}
}

// openProvider opens the configuration source named by the global flags
func openProvider(opts *rootOptions) (config.ConfigProvider, error) {
	filename, _ := filepath.Abs(opts.cfgFile)

	switch opts.cfgBackend {
	case "yaml":
		return config.NewYAMLProvider(filename), nil
	case "sqlite":
		provider, err := config.NewSQLiteProvider(filename, opts.profile)
		if err != nil {
			return nil, fmt.Errorf("error creating SQLite provider: %w", err)
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unsupported configuration backend: %s. Use 'yaml' or 'sqlite'", opts.cfgBackend)
	}
}

func loadConfig(opts *rootOptions) (*config.ConfigData, error) {
	provider, err := openProvider(opts)
	if err != nil {
		return nil, err
	}
	defer provider.Close()

	cfgData, err := provider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error reading configuration. Did you pass the --config flag? Run with -h for help: %w", err)
	}
	return cfgData, nil
}
