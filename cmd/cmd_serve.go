package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"deckforge/internal/bootstrap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the HTTP API with POST /research/presentation and POST /edit,
plus /health, /ready and /metrics. Stops on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	c := bootstrap.NewContainer()
	c.MustInit()

	if err := c.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		c.Log.Info("Shutdown signal received")
	case <-c.Context.Done():
		c.Log.Warn("Server stopped unexpectedly")
	}

	c.Shutdown()
	return nil
}
