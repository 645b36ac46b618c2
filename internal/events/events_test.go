package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/docregistry/apiserver/internal/logger"
	"github.com/docregistry/apiserver/internal/mq"
)

type capturingBackend struct {
	channel string
	data    []byte
	attrs   map[string]string
	err     error
}

func (c *capturingBackend) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.channel, c.data, c.attrs = channel, data, attrs
	return "msg-1", nil
}

func (c *capturingBackend) Subscribe(context.Context, string, mq.Handler) error { return nil }
func (c *capturingBackend) Close() error                                        { return nil }

func TestMQPublisherRoundTrip(t *testing.T) {
	backend := &capturingBackend{}
	publisher := NewMQPublisher(mq.New(backend), "", logger.Nop())
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	publisher.now = func() time.Time { return fixed }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	publisher.Publish(ctx, Event{Type: PersonMoved, ActorID: 1, SubjectID: 5, Data: map[string]any{"address_id": 2}})

	if backend.channel != DefaultChannel {
		t.Fatalf("expected channel %q, got %q", DefaultChannel, backend.channel)
	}
	if backend.attrs["event-type"] != string(PersonMoved) || backend.attrs[mq.ContentTypeAttr] != "application/json" {
		t.Fatalf("unexpected attributes: %v", backend.attrs)
	}

	event, err := Decode(mq.Message{ID: "msg-1", Data: backend.data})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.Type != PersonMoved || event.SubjectID != 5 || event.ActorID != 1 {
		t.Fatalf("unexpected event: %+v", event)
	}
	if len(event.ID) != 26 {
		t.Fatalf("expected a ULID, got %q", event.ID)
	}
	if !event.OccurredAt.Equal(fixed) {
		t.Fatalf("expected occurred_at %v, got %v", fixed, event.OccurredAt)
	}
	if event.Data["address_id"] != float64(2) {
		t.Fatalf("unexpected data: %v", event.Data)
	}
}

func TestMQPublisherSwallowsErrors(t *testing.T) {
	backend := &capturingBackend{err: errors.New("broker down")}
	publisher := NewMQPublisher(mq.New(backend), "custom", nil)
	publisher.Publish(context.Background(), Event{Type: DocumentDeleted, SubjectID: 1})
	if backend.data != nil {
		t.Fatal("nothing should be recorded on failure")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode(mq.Message{ID: "x", Data: []byte("not json")}); err == nil {
		t.Fatal("expected decode error")
	}
}
