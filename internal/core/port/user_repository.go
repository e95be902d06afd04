package port

import (
	"context"
	"time"

	"github.com/dreamwise/dreamwise-api/internal/core/domain"
)

// UserRepository exposes persistence behavior for users.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByIdentifier matches a username or email, case-insensitively.
	GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error)
	UpdateProfile(ctx context.Context, id string, profile domain.Profile, at time.Time) error
	UpdatePreferences(ctx context.Context, id string, prefs domain.Preferences, at time.Time) error
	// UpdatePassword also moves tokens_valid_after to at, invalidating earlier tokens.
	UpdatePassword(ctx context.Context, id string, passwordHash string, at time.Time) error
	UpdateRole(ctx context.Context, id string, role domain.Role, at time.Time) error
	UpdateActive(ctx context.Context, id string, active bool, at time.Time) error
	MarkEmailVerified(ctx context.Context, id string, at time.Time) error
	TouchLastActive(ctx context.Context, id string, at time.Time) error
	// AdjustStat adds delta to the counter, flooring the result at zero.
	AdjustStat(ctx context.Context, id string, field domain.StatField, delta int) error
	List(ctx context.Context, filter domain.UserFilter) ([]domain.User, int, error)
}
