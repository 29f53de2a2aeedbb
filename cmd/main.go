package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "deckforge",
	Short: "Research a market and turn the findings into a reveal.js deck",
	Long: "deckforge runs a web research agent over an industry or market, writes a\n" +
		"sourced Markdown report and lays it out as a reveal.js presentation.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(researchCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
