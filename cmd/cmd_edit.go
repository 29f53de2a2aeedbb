package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"deckforge/internal/bootstrap"
)

var editFlags struct {
	deck   string
	prompt string
	out    string
}

var editCmd = &cobra.Command{
	Use:     "edit",
	Short:   "Apply an instruction to an existing deck",
	Example: `  deckforge edit --deck scooters.html --prompt "add a closing slide with next steps"`,
	RunE:    runEdit,
}

func init() {
	editCmd.Flags().StringVar(&editFlags.deck, "deck", "", "path of the deck to edit")
	editCmd.Flags().StringVarP(&editFlags.prompt, "prompt", "p", "", "what to change")
	editCmd.Flags().StringVarP(&editFlags.out, "out", "o", "", "where to write the revised deck (defaults to --deck)")
	_ = editCmd.MarkFlagRequired("deck")
	_ = editCmd.MarkFlagRequired("prompt")
}

func runEdit(cmd *cobra.Command, _ []string) error {
	current, err := os.ReadFile(editFlags.deck)
	if err != nil {
		return fmt.Errorf("read deck: %w", err)
	}

	c := bootstrap.NewContainer()
	c.MustInitPipeline()
	defer c.Shutdown()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	res, err := c.Business.Pipeline.Edit(ctx, string(current), editFlags.prompt)
	if err != nil {
		printFailure(out, err)
		return err
	}

	target := editFlags.out
	if target == "" {
		target = editFlags.deck
	}
	if err := os.WriteFile(target, []byte(res.Deck.HTML), 0o644); err != nil {
		return fmt.Errorf("write deck: %w", err)
	}

	fmt.Fprintln(out, res.Explanation)
	fmt.Fprintf(out, "%s %d → %d slides, +%d/-%d chars\n",
		faint("changes:"), res.Summary.SlidesBefore, res.Summary.SlidesAfter, res.Summary.Inserted, res.Summary.Deleted)
	fmt.Fprintln(out, ok("deck written to ")+target)
	return nil
}
