package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dreamwise/dreamwise-api/internal/core/domain"
	"github.com/dreamwise/dreamwise-api/internal/core/port"
	"github.com/dreamwise/dreamwise-api/internal/infra/logger"
)

// StubPublisher logs events instead of sending them. It is used when no
// brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(log *zap.Logger) *StubPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &StubPublisher{logger: log}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	base := []zap.Field{
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
	}
	p.logger.Info("Stub event published", append(base, fields...)...)
}

func (p *StubPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	p.logEvent(topicUserRegistered, event.UserID, event.RegisteredAt,
		zap.String("username", event.Username),
		zap.String("email", logger.MaskEmail(event.Email)),
	)
	return nil
}

func (p *StubPublisher) PublishJournalEntry(_ context.Context, event domain.JournalEntryEvent) error {
	p.logEvent(topicJournalEntry+"."+string(event.Action), event.ActorID, event.OccurredAt,
		zap.String("entry_id", event.EntryID),
		zap.String("owner_id", event.OwnerID),
		zap.String("privacy", string(event.Privacy)),
	)
	return nil
}

func (p *StubPublisher) PublishPost(_ context.Context, event domain.PostEvent) error {
	p.logEvent(topicCommunityPost+"."+string(event.Action), event.ActorID, event.OccurredAt,
		zap.String("post_id", event.PostID),
		zap.String("author_id", event.AuthorID),
		zap.Bool("pinned", event.Pinned),
		zap.Bool("featured", event.Featured),
	)
	return nil
}

// PublishEmailRequested never logs the code itself.
func (p *StubPublisher) PublishEmailRequested(_ context.Context, event domain.EmailRequestedEvent) error {
	p.logEvent(topicEmailRequested, "", event.RequestedAt,
		zap.String("template", event.Template),
		zap.String("email", logger.MaskEmail(event.Email)),
	)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
