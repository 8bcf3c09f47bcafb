package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWatermillPublisher_PublishesJSON(t *testing.T) {
	logger := discardLogger()
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewSlogLogger(logger))
	defer pubSub.Close()

	publisher := NewPublisherFrom(pubSub, "quiz", logger)
	topic := publisher.Topic(AttemptFinished)
	if topic != "quiz.attempt.finished" {
		t.Fatalf("Topic() = %q, want quiz.attempt.finished", topic)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	messages, err := pubSub.Subscribe(ctx, topic)
	if err != nil {
		t.Fatal(err)
	}

	event := NewEvent(AttemptFinished, AttemptFinishedEvent{AttemptID: 9, Score: 7, Passed: true})
	if err := publisher.Publish(ctx, event); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-messages:
		msg.Ack()
		if msg.UUID != event.ID {
			t.Errorf("message uuid = %q, want %q", msg.UUID, event.ID)
		}
		if got := msg.Metadata.Get("event_type"); got != AttemptFinished {
			t.Errorf("event_type metadata = %q", got)
		}
		var decoded struct {
			Type string               `json:"type"`
			Data AttemptFinishedEvent `json:"data"`
		}
		if err := json.Unmarshal(msg.Payload, &decoded); err != nil {
			t.Fatal(err)
		}
		if decoded.Type != AttemptFinished || decoded.Data.AttemptID != 9 || !decoded.Data.Passed {
			t.Errorf("decoded = %+v", decoded)
		}
	case <-ctx.Done():
		t.Fatal("message not delivered")
	}
}

func TestNewEvent(t *testing.T) {
	event := NewEvent(AttemptStarted, nil)
	if event.ID == "" {
		t.Error("Event ID should not be empty")
	}
	if event.Source != SourceQuizService || event.Version != EventVersion {
		t.Errorf("Source/Version = %q/%q", event.Source, event.Version)
	}
	if event.Timestamp.IsZero() {
		t.Error("Event timestamp should not be zero")
	}
}

func TestMockEventPublisher(t *testing.T) {
	mock := NewMockEventPublisher(discardLogger())
	ctx := context.Background()

	_ = mock.Publish(ctx, NewEvent(AttemptStarted, nil))
	_ = mock.Publish(ctx, NewEvent(AttemptFinished, nil))
	if got := len(mock.EventsOfType(AttemptFinished)); got != 1 {
		t.Errorf("EventsOfType() = %d, want 1", got)
	}

	mock.ClearEvents()
	boom := errors.New("broker down")
	mock.FailWith(boom)
	if err := mock.Publish(ctx, NewEvent(AttemptStarted, nil)); !errors.Is(err, boom) {
		t.Errorf("Publish() error = %v, want %v", err, boom)
	}
	if len(mock.GetPublishedEvents()) != 0 {
		t.Error("failed publish should not be recorded")
	}
}
