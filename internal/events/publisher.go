package events

import (
	"context"
	"sync"

	"deckforge/internal/adapters/kafka"
	"deckforge/internal/metrics"
	"deckforge/pkg/logger"
)

// Publisher emits pipeline events.
type Publisher interface {
	Publish(ctx context.Context, event *PipelineEvent) error
}

// KafkaPublisher publishes events to Kafka, keyed by run ID.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
	log      *logger.Logger
}

// NewKafkaPublisher creates a new event publisher
func NewKafkaPublisher(producer *kafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		topic:    topic,
		log:      logger.Get().With("component", "event_publisher", "topic", topic),
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event *PipelineEvent) error {
	event.Detail = SanitizeUTF8(event.Detail)

	err := p.producer.Publish(ctx, p.topic, event.RunID, event)
	metrics.RecordKafkaMessage(p.topic, err)
	if err != nil {
		p.log.WithContext(ctx).Warnw("failed to publish pipeline event", "type", event.Type, "error", err)
	}
	return err
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, *PipelineEvent) error { return nil }

// MemoryPublisher keeps events in memory. Used by tests and the CLI.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []*PipelineEvent
}

func (p *MemoryPublisher) Publish(_ context.Context, event *PipelineEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns a copy of the recorded events.
func (p *MemoryPublisher) Events() []*PipelineEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*PipelineEvent(nil), p.events...)
}

var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = NoopPublisher{}
	_ Publisher = (*MemoryPublisher)(nil)
)
