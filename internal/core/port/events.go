package port

import (
	"context"

	"github.com/dreamwise/dreamwise-api/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error
	PublishJournalEntry(ctx context.Context, event domain.JournalEntryEvent) error
	PublishPost(ctx context.Context, event domain.PostEvent) error
	PublishEmailRequested(ctx context.Context, event domain.EmailRequestedEvent) error
}
