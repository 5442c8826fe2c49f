package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"markestedt/keyroute/config"
)

var (
	verbose    bool
	configPath string

	// logLevel follows daemon.log_level across reloads unless --verbose
	logLevel = new(slog.LevelVar)
)

var rootCmd = &cobra.Command{
	Use:   "keyroute",
	Short: "Route spare keys to media and browser actions",
	Long: `keyroute watches spare keys (F13-F24, mouse buttons mapped to keys)
and turns them into media, volume or browser navigation actions,
optionally depending on the focused window. Bouncy keys such as tilt
wheels are filtered by named debounce profiles.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logLevel.Set(slog.LevelDebug)
		}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		}))
		slog.SetDefault(logger)
	},
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// resolveConfigPath returns --config or the default location.
func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.ConfigPath()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the configuration file (.toml, .yaml)")
}
