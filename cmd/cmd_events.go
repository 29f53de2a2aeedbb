package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"

	"deckforge/internal/adapters/config"
	"deckforge/internal/adapters/kafka"
	"deckforge/internal/events"
	"deckforge/pkg/logger"
)

var eventsFlags struct {
	group         string
	fromBeginning bool
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect pipeline events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow the pipeline event topic",
	RunE:  runEventsTail,
}

func init() {
	eventsTailCmd.Flags().StringVar(&eventsFlags.group, "group", "", "consumer group (a throwaway group by default)")
	eventsTailCmd.Flags().BoolVar(&eventsFlags.fromBeginning, "from-beginning", false, "replay the topic instead of following new events")
	eventsCmd.AddCommand(eventsTailCmd)
}

func runEventsTail(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	group := eventsFlags.group
	if group == "" {
		group = "deckforge-tail-" + uuid.NewString()[:8]
	}

	consumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:    cfg.Kafka.Brokers,
		GroupID:    group,
		Topic:      cfg.Kafka.Topic,
		FromLatest: !eventsFlags.fromBeginning,
	})
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, faint(fmt.Sprintf("following %s on %v", cfg.Kafka.Topic, cfg.Kafka.Brokers)))

	err = consumer.Consume(ctx, func(_ context.Context, msg kafkago.Message) error {
		var ev events.PipelineEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			return fmt.Errorf("decode event at offset %d: %w", msg.Offset, err)
		}
		fmt.Fprintln(out, formatEvent(&ev))
		return nil
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}
