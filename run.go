package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"markestedt/keyroute/config"
	"markestedt/keyroute/systray"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the key routing daemon",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		path, err := resolveConfigPath()
		if err != nil {
			fatal("Error locating configuration", err)
		}

		snap, err := config.Load(path)
		if err != nil {
			fatal("Error loading configuration", err)
		}
		if !verbose {
			logLevel.Set(snap.Level())
		}
		slog.Info("Configuration loaded", "path", snap.Source(), "bindings", len(snap.Keys()))

		agent, err := NewAgent(snap)
		if err != nil {
			fatal("Error starting agent", err)
		}

		// Setup signal handling for graceful shutdown
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if !snap.Daemon().Tray {
			if err := agent.Run(ctx); err != nil {
				fatal("Agent error", err)
			}
			slog.Info("keyroute stopped")
			return
		}

		tray := systray.NewSystrayManager(agent.StatusURL(), func() { agent.Reload() })

		errCh := make(chan error, 1)
		go func() {
			errCh <- agent.Run(ctx)
			tray.Stop()
		}()
		go func() {
			select {
			case <-tray.WaitForQuit():
				cancel()
			case <-ctx.Done():
			}
		}()

		// the tray owns the main goroutine until it quits
		tray.Run()
		cancel()

		if err := <-errCh; err != nil {
			fatal("Agent error", err)
		}
		slog.Info("keyroute stopped")
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
