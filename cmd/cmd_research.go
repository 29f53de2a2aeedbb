package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"deckforge/internal/bootstrap"
	"deckforge/internal/services/pipeline"
)

var researchFlags struct {
	out      string
	markdown string
	plain    bool
}

var researchCmd = &cobra.Command{
	Use:   "research <prompt>",
	Short: "Research a market and write the deck to a file",
	Example: `  deckforge research "electric scooter market in Vietnam" --out scooters.html
  deckforge research "B2B payroll software in Germany" --markdown payroll.md`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResearch,
}

func init() {
	researchCmd.Flags().StringVarP(&researchFlags.out, "out", "o", "deck.html", "path of the generated reveal.js deck")
	researchCmd.Flags().StringVar(&researchFlags.markdown, "markdown", "", "also write the Markdown report to this path")
	researchCmd.Flags().BoolVar(&researchFlags.plain, "plain", false, "print the report without styling")
}

func runResearch(cmd *cobra.Command, args []string) error {
	prompt := strings.Join(args, " ")

	c := bootstrap.NewContainer()
	c.MustInitPipeline()
	defer c.Shutdown()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, faint("researching: "+prompt))

	report, err := c.Business.Pipeline.Research(ctx, prompt)
	if err != nil {
		printFailure(out, err)
		return err
	}

	if report.Status == pipeline.StatusRefused {
		fmt.Fprintln(out, warn("refused: ")+report.Reason)
		return nil
	}

	if err := os.WriteFile(researchFlags.out, []byte(report.RevealJS), 0o644); err != nil {
		return fmt.Errorf("write deck: %w", err)
	}
	if researchFlags.markdown != "" {
		if err := os.WriteFile(researchFlags.markdown, []byte(report.Markdown), 0o644); err != nil {
			return fmt.Errorf("write markdown: %w", err)
		}
	}

	rendered, err := renderMarkdown(report.Markdown, researchFlags.plain)
	if err != nil {
		rendered = report.Markdown
	}
	fmt.Fprintln(out, rendered)
	fmt.Fprintln(out, summaryLine(report))
	fmt.Fprintln(out, ok("deck written to ")+researchFlags.out)
	return nil
}
