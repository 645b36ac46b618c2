package mq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/docregistry/apiserver/config"
)

func TestMemoryBackendDelivers(t *testing.T) {
	queue := New(NewMemoryBackend())
	defer queue.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	received := make(chan Message, 1)
	subscribed := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- queue.Subscribe(ctx, "events", func(_ context.Context, msg Message) error {
			select {
			case received <- msg:
			default:
			}
			return nil
		})
	}()

	// Subscribe registers asynchronously; publish until the subscriber sees a message.
	go func() {
		defer close(subscribed)
		for {
			if _, err := queue.Publish(ctx, "events", []byte("hello"), map[string]string{ContentTypeAttr: "text/plain"}); err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(10 * time.Millisecond):
			}
			if len(received) > 0 {
				return
			}
		}
	}()

	select {
	case msg := <-received:
		if string(msg.Data) != "hello" || msg.Attributes[ContentTypeAttr] != "text/plain" {
			t.Fatalf("unexpected message: %+v", msg)
		}
		if msg.ID == "" {
			t.Fatal("expected a message id")
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	<-subscribed
}

func TestMemoryBackendIgnoresOtherChannels(t *testing.T) {
	backend := NewMemoryBackend()
	if _, err := backend.Publish(context.Background(), "nobody-listens", []byte("x"), nil); err != nil {
		t.Fatalf("publish without subscribers: %v", err)
	}
	_ = backend.Close()
	if _, err := backend.Publish(context.Background(), "events", []byte("x"), nil); err == nil {
		t.Fatal("expected publish on closed backend to fail")
	}
}

func TestOpenNone(t *testing.T) {
	for _, backend := range []string{"", "none", " NONE "} {
		queue, err := Open(context.Background(), configFor(backend))
		if err != nil || queue != nil {
			t.Fatalf("%q: expected nil queue, got %v %v", backend, queue, err)
		}
	}
	if _, err := Open(context.Background(), configFor("kafka")); err == nil {
		t.Fatal("expected unknown backend to fail")
	}
}

func configFor(backend string) config.MQConfig {
	return config.MQConfig{Backend: backend}
}
