package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/praetorian-inc/hsmatch/pkg/log"
)

var (
	verbose    bool
	quiet      bool
	configFile string

	// cfg is replaced by loadConfig before any command runs.
	cfg = DefaultConfig()
)

var rootCmd = &cobra.Command{
	Use:   "hsmatch",
	Short: "hsmatch - multi-pattern regex databases",
	Long: `hsmatch compiles sets of regular expressions into a single database that
scans input once and reports every match of every pattern.

Databases can be serialized, stored in a catalog and reloaded later. Builds
tagged "hyperscan" use the Hyperscan/Vectorscan library; other builds use a
portable engine with the same interface.`,
	SilenceUsage:      true,
	PersistentPreRunE: initCommand,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default ./hsmatch.yaml)")
	rootCmd.PersistentFlags().String("catalog", cfg.Catalog, "Catalog path (SQLite file, :memory:, or postgres:// URL)")
	rootCmd.PersistentFlags().String("format", cfg.Format, "Output format: auto, human, json")
	rootCmd.PersistentFlags().String("color", cfg.Color, "Color output: auto, always, never")

	// Add subcommands
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(exprInfoCmd)
	rootCmd.AddCommand(platformCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(setsCmd)
	rootCmd.AddCommand(serveCmd)
}

func initCommand(cmd *cobra.Command, args []string) error {
	loaded, err := loadConfig(cmd, configFile)
	if err != nil {
		return err
	}
	cfg = loaded

	switch {
	case verbose:
		log.SetStd(zerolog.DebugLevel)
	case quiet:
		log.SetStd(zerolog.ErrorLevel)
	default:
		log.SetStd(log.ParseLevel(cfg.LogLevel))
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
