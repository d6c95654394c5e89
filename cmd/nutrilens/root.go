package main

import (
	"fmt"

	"github.com/anantham/nutrilens"
	"github.com/spf13/cobra"
)

var (
	cfgFile     string
	cfgDBPath   string
	cfgStore    string
	cfgLogLevel string
	outputJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "nutrilens",
	Short: "nutrilens - nutrition estimate validation and learning CLI",
	Long: `nutrilens checks AI nutrition estimates for implausible values, logs
user corrections, learns per-user ingredient profiles from them, and
reports how accurate the AI has been.

Configuration comes from NUTRILENS_* environment variables, an optional
--config file (YAML, JSON, TOML or .env), and the flags below, in
increasing priority.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (yaml, json, toml or .env)")
	rootCmd.PersistentFlags().StringVar(&cfgDBPath, "db", "", "Path to the SQLite database (overrides --store)")
	rootCmd.PersistentFlags().StringVar(&cfgStore, "store", "", "Store ID (default: $NUTRILENS_STORE or \"default\")")
	rootCmd.PersistentFlags().StringVar(&cfgLogLevel, "log-level", "", "Log to stderr at debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output as JSON")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(correctCmd)
	rootCmd.AddCommand(learnCmd)
	rootCmd.AddCommand(libraryCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(storeCmd)
}

// loadConfig layers flags over the file and environment configuration.
func loadConfig() (nutrilens.Config, error) {
	cfg, err := nutrilens.LoadConfig(cfgFile)
	if err != nil {
		return nutrilens.Config{}, err
	}

	if cfgStore != "" {
		cfg.Store = cfgStore
		if cfgDBPath == "" {
			// an explicit store outranks a db path inherited from env or file
			cfg.DBPath = ""
		}
	}
	if cfgDBPath != "" {
		cfg.DBPath = cfgDBPath
	}
	if cfgLogLevel != "" {
		cfg.LogLevel = cfgLogLevel
	}
	return cfg, nil
}

func newClient() (*nutrilens.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	client, err := nutrilens.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize client: %w", err)
	}
	return client, nil
}
