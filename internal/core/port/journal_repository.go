package port

import (
	"context"
	"time"

	"github.com/dreamwise/dreamwise-api/internal/core/domain"
)

// JournalRepository persists dream journal entries.
type JournalRepository interface {
	Create(ctx context.Context, entry domain.JournalEntry) error
	// GetByID returns soft-deleted rows as well; callers decide visibility.
	GetByID(ctx context.Context, id string) (*domain.JournalEntry, error)
	// Update writes the mutable columns only; user_id is never touched.
	Update(ctx context.Context, entry domain.JournalEntry) error
	// SoftDelete reports false when the entry was already deleted.
	SoftDelete(ctx context.Context, id string, at time.Time) (bool, error)
	List(ctx context.Context, filter domain.JournalFilter) ([]domain.JournalEntry, int, error)
	Stats(ctx context.Context, userID string) (domain.JournalStats, error)
}
