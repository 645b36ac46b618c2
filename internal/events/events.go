// Package events publishes registry audit events to the message queue.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/docregistry/apiserver/internal/logger"
	"github.com/docregistry/apiserver/internal/metrics"
	"github.com/docregistry/apiserver/internal/mq"
)

// Type names an audit event.
type Type string

const (
	PersonMoved        Type = "person.moved"
	DocumentRegistered Type = "document.registered"
	DocumentDeleted    Type = "document.deleted"
	SessionsRevoked    Type = "identity.sessions_revoked"
)

// DefaultChannel is the queue or topic events are published to.
const DefaultChannel = "registry.events"

// Event is the JSON envelope put on the queue.
type Event struct {
	// ID is a ULID, so events sort by creation time.
	ID         string         `json:"id"`
	Type       Type           `json:"type"`
	ActorID    int            `json:"actor_id,omitempty"`
	SubjectID  int            `json:"subject_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

// Publisher hands events to a transport. Publish never fails the caller;
// implementations log and count delivery problems themselves.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

// MQPublisher publishes events as JSON on one channel.
type MQPublisher struct {
	queue   *mq.MQ
	channel string
	log     *logger.Logger
	now     func() time.Time
}

func NewMQPublisher(queue *mq.MQ, channel string, log *logger.Logger) *MQPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = logger.Nop()
	}
	return &MQPublisher{queue: queue, channel: channel, log: log.Named("events"), now: time.Now}
}

// Publish stamps the event with an ID and timestamp when missing and sends
// it.
func (p *MQPublisher) Publish(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = p.now().UTC()
	}
	if event.ID == "" {
		event.ID = ulid.MustNew(ulid.Timestamp(event.OccurredAt), ulid.DefaultEntropy()).String()
	}

	data, err := json.Marshal(event)
	if err != nil {
		metrics.EventsPublished.WithLabelValues(string(event.Type), "error").Inc()
		p.log.WithContext(ctx).Error("encode event", zap.String("type", string(event.Type)), zap.Error(err))
		return
	}

	attrs := map[string]string{
		"event-type":       string(event.Type),
		mq.ContentTypeAttr: "application/json",
	}
	// Use a context that survives the request being cancelled right after
	// the mutation returns.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if _, err := p.queue.Publish(pubCtx, p.channel, data, attrs); err != nil {
		metrics.EventsPublished.WithLabelValues(string(event.Type), "error").Inc()
		p.log.WithContext(ctx).Warn("publish event",
			zap.String("type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
		return
	}
	metrics.EventsPublished.WithLabelValues(string(event.Type), "ok").Inc()
	p.log.WithContext(ctx).Debug("event published",
		zap.String("type", string(event.Type)),
		zap.String("event_id", event.ID),
	)
}

// Decode parses a queued message back into an Event.
func Decode(msg mq.Message) (Event, error) {
	var event Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return Event{}, fmt.Errorf("decode event %s: %w", msg.ID, err)
	}
	return event, nil
}
