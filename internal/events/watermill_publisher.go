package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type PublisherConfig struct {
	// Brokers selects kafka; empty means the in-process gochannel
	Brokers     []string
	TopicPrefix string
}

// WatermillPublisher publishes events as JSON messages, one topic per event type
type WatermillPublisher struct {
	publisher   message.Publisher
	topicPrefix string
	logger      *slog.Logger
}

// NewWatermillPublisher builds a kafka publisher when brokers are configured,
// and an in-process gochannel otherwise
func NewWatermillPublisher(cfg PublisherConfig, logger *slog.Logger) (*WatermillPublisher, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	var publisher message.Publisher
	if len(cfg.Brokers) > 0 {
		kafkaPublisher, err := kafka.NewPublisher(kafka.PublisherConfig{
			Brokers:   cfg.Brokers,
			Marshaler: kafka.DefaultMarshaler{},
		}, wmLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
		}
		publisher = kafkaPublisher
		logger.Info("Event publisher using kafka", "brokers", strings.Join(cfg.Brokers, ","))
	} else {
		publisher = gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
		logger.Info("Event publisher using in-process channel")
	}

	return NewPublisherFrom(publisher, cfg.TopicPrefix, logger), nil
}

// NewPublisherFrom wraps an existing watermill publisher
func NewPublisherFrom(publisher message.Publisher, topicPrefix string, logger *slog.Logger) *WatermillPublisher {
	return &WatermillPublisher{
		publisher:   publisher,
		topicPrefix: topicPrefix,
		logger:      logger,
	}
}

// Topic maps an event type to its topic name
func (p *WatermillPublisher) Topic(eventType string) string {
	if p.topicPrefix == "" {
		return eventType
	}
	return p.topicPrefix + "." + eventType
}

func (p *WatermillPublisher) Publish(ctx context.Context, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.Type, err)
	}

	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("event_type", event.Type)
	msg.Metadata.Set("source", event.Source)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.Topic(event.Type), msg); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.Type, err)
	}

	p.logger.Debug("Event published", "event_id", event.ID, "event_type", event.Type)
	return nil
}

func (p *WatermillPublisher) Close() error {
	return p.publisher.Close()
}
