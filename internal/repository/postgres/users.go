package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/dreamwise/dreamwise-api/internal/core/domain"
	"github.com/dreamwise/dreamwise-api/internal/core/port"
	"github.com/dreamwise/dreamwise-api/internal/repository"
)

var userColumns = []string{
	"id",
	"username",
	"email",
	"password_hash",
	"role",
	"is_active",
	"email_verified",
	"profile",
	"preferences",
	"journal_entries",
	"community_posts",
	"last_active",
	"tokens_valid_after",
	"created_at",
	"updated_at",
}

type profileDoc struct {
	DisplayName          string `json:"displayName,omitempty"`
	Bio                  string `json:"bio,omitempty"`
	AvatarURL            string `json:"avatarUrl,omitempty"`
	Location             string `json:"location,omitempty"`
	Website              string `json:"website,omitempty"`
	SpiritualPerspective string `json:"spiritualPerspective,omitempty"`
}

type preferencesDoc struct {
	Theme              string `json:"theme"`
	Language           string `json:"language"`
	EmailNotifications bool   `json:"emailNotifications"`
	DefaultPrivacy     string `json:"defaultPrivacy"`
}

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewUserRepository(exec pgExecutor) *UserRepository {
	return &UserRepository{exec: exec, builder: newBuilder()}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *UserRepository) WithTx(tx pgx.Tx) *UserRepository {
	if tx == nil {
		return r
	}
	return &UserRepository{exec: tx, builder: r.builder}
}

// Create inserts a new user row. Duplicate usernames or emails yield repository.ErrConflict.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	profile, prefs, err := encodeUserDocs(user.Profile, user.Preferences)
	if err != nil {
		return err
	}

	stmt, args, err := r.builder.Insert("users").
		Columns(userColumns...).
		Values(
			user.ID,
			user.Username,
			user.Email,
			user.PasswordHash,
			string(user.Role),
			user.IsActive,
			user.EmailVerified,
			profile,
			prefs,
			user.Stats.JournalEntries,
			user.Stats.CommunityPosts,
			user.LastActive,
			user.TokensValidAfter,
			user.CreatedAt,
			user.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return mapWriteError("insert user", err)
	}
	return nil
}

// GetByID retrieves a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}
	stmt, args, err := r.builder.Select(userColumns...).
		From("users").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	user, err := scanUser(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		return nil, mapReadError("scan user", err)
	}
	return user, nil
}

// GetByIdentifier retrieves a user by username or email, ignoring case.
func (r *UserRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	stmt, args, err := r.builder.Select(userColumns...).
		From("users").
		Where(squirrel.Or{
			squirrel.Expr("lower(username) = lower(?)", identifier),
			squirrel.Expr("lower(email) = lower(?)", identifier),
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user by identifier sql: %w", err)
	}

	user, err := scanUser(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		return nil, mapReadError("scan user by identifier", err)
	}
	return user, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id string, profile domain.Profile, at time.Time) error {
	doc, err := json.Marshal(profileDoc(profile))
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	return r.update(ctx, "update profile", id, map[string]any{
		"profile":    doc,
		"updated_at": at,
	})
}

func (r *UserRepository) UpdatePreferences(ctx context.Context, id string, prefs domain.Preferences, at time.Time) error {
	doc, err := json.Marshal(toPreferencesDoc(prefs))
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	return r.update(ctx, "update preferences", id, map[string]any{
		"preferences": doc,
		"updated_at":  at,
	})
}

// UpdatePassword stores the new hash and moves tokens_valid_after to at.
func (r *UserRepository) UpdatePassword(ctx context.Context, id string, passwordHash string, at time.Time) error {
	return r.update(ctx, "update password", id, map[string]any{
		"password_hash":      passwordHash,
		"tokens_valid_after": at,
		"updated_at":         at,
	})
}

// UpdateRole changes the role and invalidates outstanding tokens.
func (r *UserRepository) UpdateRole(ctx context.Context, id string, role domain.Role, at time.Time) error {
	return r.update(ctx, "update role", id, map[string]any{
		"role":               string(role),
		"tokens_valid_after": at,
		"updated_at":         at,
	})
}

// UpdateActive toggles the account and invalidates outstanding tokens.
func (r *UserRepository) UpdateActive(ctx context.Context, id string, active bool, at time.Time) error {
	return r.update(ctx, "update active", id, map[string]any{
		"is_active":          active,
		"tokens_valid_after": at,
		"updated_at":         at,
	})
}

func (r *UserRepository) MarkEmailVerified(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, "mark email verified", id, map[string]any{
		"email_verified": true,
		"updated_at":     at,
	})
}

func (r *UserRepository) TouchLastActive(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, "touch last active", id, map[string]any{
		"last_active": at,
	})
}

// AdjustStat adds delta to a denormalized counter, never going below zero.
func (r *UserRepository) AdjustStat(ctx context.Context, id string, field domain.StatField, delta int) error {
	switch field {
	case domain.StatJournalEntries, domain.StatCommunityPosts:
	default:
		return fmt.Errorf("adjust stat: unknown field %q", field)
	}

	column := string(field)
	return r.update(ctx, "adjust stat", id, map[string]any{
		column: squirrel.Expr(fmt.Sprintf("GREATEST(%s + ?, 0)", column), delta),
	})
}

// List returns the page of users matching filter plus the total match count.
func (r *UserRepository) List(ctx context.Context, filter domain.UserFilter) ([]domain.User, int, error) {
	where := squirrel.And{}
	if filter.Role != "" {
		where = append(where, squirrel.Eq{"role": string(filter.Role)})
	}
	if filter.Active != nil {
		where = append(where, squirrel.Eq{"is_active": *filter.Active})
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		where = append(where, squirrel.Or{
			squirrel.ILike{"username": pattern},
			squirrel.ILike{"email": pattern},
			squirrel.Expr("profile->>'displayName' ILIKE ?", pattern),
		})
	}

	total, err := count(ctx, r.exec, r.builder.Select("COUNT(*)").From("users").Where(where))
	if err != nil {
		return nil, 0, err
	}

	page := filter.Page.Normalized()
	stmt, args, err := r.builder.Select(userColumns...).
		From("users").
		Where(where).
		OrderBy("created_at DESC", "id").
		Limit(uint64(page.Limit)).
		Offset(page.Offset()).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list users sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0, page.Limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate users: %w", err)
	}

	return users, total, nil
}

func (r *UserRepository) update(ctx context.Context, op, id string, set map[string]any) error {
	stmt, args, err := r.builder.Update("users").
		SetMap(set).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build %s sql: %w", op, err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return mapWriteError(op, err)
	}
	return requireAffected(tag)
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user        domain.User
		role        string
		profile     []byte
		preferences []byte
		lastActive  *time.Time
	)

	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.IsActive,
		&user.EmailVerified,
		&profile,
		&preferences,
		&user.Stats.JournalEntries,
		&user.Stats.CommunityPosts,
		&lastActive,
		&user.TokensValidAfter,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}

	user.Role = domain.Role(role)
	user.LastActive = lastActive

	var pd profileDoc
	if len(profile) > 0 {
		if err := json.Unmarshal(profile, &pd); err != nil {
			return nil, fmt.Errorf("decode profile: %w", err)
		}
	}
	user.Profile = domain.Profile(pd)

	user.Preferences = domain.DefaultPreferences()
	if len(preferences) > 0 {
		doc := toPreferencesDoc(user.Preferences)
		if err := json.Unmarshal(preferences, &doc); err != nil {
			return nil, fmt.Errorf("decode preferences: %w", err)
		}
		user.Preferences = domain.Preferences{
			Theme:              doc.Theme,
			Language:           doc.Language,
			EmailNotifications: doc.EmailNotifications,
			DefaultPrivacy:     domain.Privacy(doc.DefaultPrivacy),
		}
	}

	return &user, nil
}

func encodeUserDocs(profile domain.Profile, prefs domain.Preferences) ([]byte, []byte, error) {
	p, err := json.Marshal(profileDoc(profile))
	if err != nil {
		return nil, nil, fmt.Errorf("encode profile: %w", err)
	}
	q, err := json.Marshal(toPreferencesDoc(prefs))
	if err != nil {
		return nil, nil, fmt.Errorf("encode preferences: %w", err)
	}
	return p, q, nil
}

func toPreferencesDoc(prefs domain.Preferences) preferencesDoc {
	return preferencesDoc{
		Theme:              prefs.Theme,
		Language:           prefs.Language,
		EmailNotifications: prefs.EmailNotifications,
		DefaultPrivacy:     string(prefs.DefaultPrivacy),
	}
}

var _ port.UserRepository = (*UserRepository)(nil)
