package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"deckforge/internal/bootstrap"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the research tools over MCP stdio",
	Long: `Starts a Model Context Protocol server over stdin/stdout exposing the
research_presentation and edit_deck tools. Logs go to stderr.`,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, _ []string) error {
	c := bootstrap.NewContainer()
	c.MustInitPipeline()
	c.MustInitMCP()
	defer c.Shutdown()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c.Log.Info("Starting MCP server over stdio")
	return c.Application.MCPServer.Run(ctx)
}
