package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/dreamwise/dreamwise-api/internal/core/domain"
	"github.com/dreamwise/dreamwise-api/internal/repository"
)

const (
	testUserID  = "0b6f4c1e-2d7a-4f3b-9c8e-5a1d2e3f4b6c"
	testEntryID = "5e8d9c2b-7a41-4b6f-8e3d-2c1b0a9f8e7d"
	testPostID  = "9a3b5c7d-1e2f-4a6b-8c0d-e1f2a3b4c5d6"
)

// anyArgs matches n placeholders of any value.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func userRow(now time.Time) []any {
	return []any{
		testUserID, "alice", "alice@example.com", "hash", "moderator", true, false,
		[]byte(`{"displayName":"Alice","bio":"lucid dreamer"}`),
		[]byte(`{"theme":"dark","language":"en","emailNotifications":false,"defaultPrivacy":"friends"}`),
		3, 1, nil, now, now, now,
	}
}

func TestUserRepository_GetByID(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)
	now := time.Now().UTC()

	rows := pgxmock.NewRows(userColumns).AddRow(userRow(now)...)
	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).WithArgs(testUserID).WillReturnRows(rows)

	user, err := repo.GetByID(context.Background(), testUserID)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if user.Role != domain.RoleModerator {
		t.Fatalf("expected moderator role, got %s", user.Role)
	}
	if user.Profile.DisplayName != "Alice" || user.Profile.Bio != "lucid dreamer" {
		t.Fatalf("unexpected profile: %+v", user.Profile)
	}
	if user.Preferences.Theme != "dark" || user.Preferences.DefaultPrivacy != domain.PrivacyFriends || user.Preferences.EmailNotifications {
		t.Fatalf("unexpected preferences: %+v", user.Preferences)
	}
	if user.Stats.JournalEntries != 3 || user.Stats.CommunityPosts != 1 {
		t.Fatalf("unexpected stats: %+v", user.Stats)
	}
	if user.LastActive != nil {
		t.Fatalf("expected nil last active")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_GetByIDNotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery(`SELECT .* FROM users`).WithArgs(testUserID).WillReturnError(pgx.ErrNoRows)

	if _, err := repo.GetByID(context.Background(), testUserID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_GetByIDMalformedSkipsQuery(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	if _, err := repo.GetByID(context.Background(), "abc"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_InvalidUUIDFromDriverIsNotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)
	at := time.Now().UTC()

	mock.ExpectExec(`UPDATE users SET last_active = \$1 WHERE id = \$2`).
		WithArgs(at, "abc").
		WillReturnError(&pgconn.PgError{Code: "22P02", Message: "invalid input syntax for type uuid"})
	mock.ExpectQuery(`SELECT .* FROM users WHERE \(lower\(username\)`).
		WithArgs(anyArgs(2)...).
		WillReturnError(&pgconn.PgError{Code: "22P02"})

	if err := repo.TouchLastActive(context.Background(), "abc", at); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from write, got %v", err)
	}
	if _, err := repo.GetByIdentifier(context.Background(), "abc"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from read, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_GetByIdentifierIgnoresCase(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)
	now := time.Now().UTC()

	rows := pgxmock.NewRows(userColumns).AddRow(userRow(now)...)
	mock.ExpectQuery(`WHERE \(lower\(username\) = lower\(\$1\) OR lower\(email\) = lower\(\$2\)\) LIMIT 1`).
		WithArgs("ALICE", "ALICE").
		WillReturnRows(rows)

	if _, err := repo.GetByIdentifier(context.Background(), "ALICE"); err != nil {
		t.Fatalf("GetByIdentifier returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_CreateConflict(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(anyArgs(len(userColumns))...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_lower_idx"})

	err := repo.Create(context.Background(), domain.User{ID: "u1", Username: "alice", Email: "a@example.com", Role: domain.RoleUser})
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_UpdatePasswordMovesValidAfter(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)
	at := time.Now().UTC()

	mock.ExpectExec(`UPDATE users SET password_hash = \$1, tokens_valid_after = \$2, updated_at = \$3 WHERE id = \$4`).
		WithArgs("new-hash", at, at, testUserID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.UpdatePassword(context.Background(), testUserID, "new-hash", at); err != nil {
		t.Fatalf("UpdatePassword returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_UpdateMissingRow(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectExec(`UPDATE users SET role`).
		WithArgs("admin", pgxmock.AnyArg(), pgxmock.AnyArg(), testUserID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateRole(context.Background(), testUserID, domain.RoleAdmin, time.Now())
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_AdjustStatFloorsAtZero(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectExec(`UPDATE users SET journal_entries = GREATEST\(journal_entries \+ \$1, 0\) WHERE id = \$2`).
		WithArgs(-1, testUserID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.AdjustStat(context.Background(), testUserID, domain.StatJournalEntries, -1); err != nil {
		t.Fatalf("AdjustStat returned error: %v", err)
	}
	if err := repo.AdjustStat(context.Background(), testUserID, domain.StatField("password_hash"), 1); err == nil {
		t.Fatalf("expected error for unknown stat column")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_List(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users WHERE \(role = \$1\)`).
		WithArgs("moderator").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT .* FROM users WHERE \(role = \$1\) ORDER BY created_at DESC, id LIMIT 10 OFFSET 0`).
		WithArgs("moderator").
		WillReturnRows(pgxmock.NewRows(userColumns).AddRow(userRow(now)...))

	users, total, err := repo.List(context.Background(), domain.UserFilter{Role: domain.RoleModerator, Page: domain.DefaultPage()})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if total != 1 || len(users) != 1 {
		t.Fatalf("expected one user, got total=%d len=%d", total, len(users))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
