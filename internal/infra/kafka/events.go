package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dreamwise/dreamwise-api/internal/core/domain"
	"github.com/dreamwise/dreamwise-api/internal/core/port"
	"github.com/dreamwise/dreamwise-api/internal/infra/config"
)

const schemaVersion = "1.0"

const (
	topicUserRegistered = "user.registered"
	topicJournalEntry   = "journal.entry"
	topicCommunityPost  = "community.post"
	topicEmailRequested = "notification.email.requested"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, key, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}
	if key != "" {
		message.Key = sarama.StringEncoder(key)
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishUserRegistered publishes user.registered events.
func (p *EventPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	payload := struct {
		UserID       string    `json:"user_id"`
		Username     string    `json:"username"`
		Email        string    `json:"email"`
		RegisteredAt time.Time `json:"registered_at"`
	}{
		UserID:       event.UserID,
		Username:     event.Username,
		Email:        event.Email,
		RegisteredAt: event.RegisteredAt.UTC(),
	}

	return p.publish(ctx, event.EventID, topicUserRegistered, event.UserID, event.UserID, event.RegisteredAt, payload)
}

// PublishJournalEntry publishes journal.entry.<action> events keyed by entry id.
func (p *EventPublisher) PublishJournalEntry(ctx context.Context, event domain.JournalEntryEvent) error {
	payload := struct {
		EntryID    string    `json:"entry_id"`
		OwnerID    string    `json:"owner_id"`
		ActorID    string    `json:"actor_id,omitempty"`
		Action     string    `json:"action"`
		Privacy    string    `json:"privacy,omitempty"`
		OccurredAt time.Time `json:"occurred_at"`
	}{
		EntryID:    event.EntryID,
		OwnerID:    event.OwnerID,
		ActorID:    event.ActorID,
		Action:     string(event.Action),
		Privacy:    string(event.Privacy),
		OccurredAt: event.OccurredAt.UTC(),
	}

	eventType := fmt.Sprintf("%s.%s", topicJournalEntry, event.Action)
	return p.publish(ctx, event.EventID, eventType, event.EntryID, event.ActorID, event.OccurredAt, payload)
}

// PublishPost publishes community.post.<action> events keyed by post id.
func (p *EventPublisher) PublishPost(ctx context.Context, event domain.PostEvent) error {
	payload := struct {
		PostID     string    `json:"post_id"`
		AuthorID   string    `json:"author_id"`
		ActorID    string    `json:"actor_id,omitempty"`
		Action     string    `json:"action"`
		Pinned     bool      `json:"pinned"`
		Featured   bool      `json:"featured"`
		OccurredAt time.Time `json:"occurred_at"`
	}{
		PostID:     event.PostID,
		AuthorID:   event.AuthorID,
		ActorID:    event.ActorID,
		Action:     string(event.Action),
		Pinned:     event.Pinned,
		Featured:   event.Featured,
		OccurredAt: event.OccurredAt.UTC(),
	}

	eventType := fmt.Sprintf("%s.%s", topicCommunityPost, event.Action)
	return p.publish(ctx, event.EventID, eventType, event.PostID, event.ActorID, event.OccurredAt, payload)
}

// PublishEmailRequested hands a templated message to the mail worker.
func (p *EventPublisher) PublishEmailRequested(ctx context.Context, event domain.EmailRequestedEvent) error {
	payload := struct {
		Template    string    `json:"template"`
		Email       string    `json:"email"`
		Username    string    `json:"username"`
		Code        string    `json:"code,omitempty"`
		RequestedAt time.Time `json:"requested_at"`
	}{
		Template:    event.Template,
		Email:       event.Email,
		Username:    event.Username,
		Code:        event.Code,
		RequestedAt: event.RequestedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, topicEmailRequested, event.Email, "", event.RequestedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
