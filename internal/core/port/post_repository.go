package port

import (
	"context"
	"time"

	"github.com/dreamwise/dreamwise-api/internal/core/domain"
)

// PostRepository persists community posts.
type PostRepository interface {
	Create(ctx context.Context, post domain.Post) error
	GetByID(ctx context.Context, id string) (*domain.Post, error)
	Update(ctx context.Context, post domain.Post) error
	SoftDelete(ctx context.Context, id string, at time.Time) (bool, error)
	List(ctx context.Context, filter domain.PostFilter) ([]domain.Post, int, error)
	SetPinned(ctx context.Context, id string, pinned bool, at time.Time) error
	SetFeatured(ctx context.Context, id string, featured bool, at time.Time) error
	IncrementViews(ctx context.Context, id string) error
}
