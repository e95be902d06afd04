package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/dreamwise/dreamwise-api/internal/core/domain"
	"github.com/dreamwise/dreamwise-api/internal/core/port"
	"github.com/dreamwise/dreamwise-api/internal/repository"
)

func TestJournalRepository_GetByIDReturnsDeletedRows(t *testing.T) {
	mock := newMock(t)
	repo := NewJournalRepository(mock)
	now := time.Now().UTC()

	rows := pgxmock.NewRows(journalColumns).AddRow(
		testEntryID, testUserID, "Flying", "Over the sea", now, "calm", "lucid", "adventure",
		[]string{"flying", "sea"}, "jungian", "freedom", "felt light", 7, "private", "deleted",
		now, now, &now,
	)
	mock.ExpectQuery(`SELECT .* FROM journal_entries WHERE id = \$1`).WithArgs(testEntryID).WillReturnRows(rows)

	entry, err := repo.GetByID(context.Background(), testEntryID)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if !entry.IsDeleted() {
		t.Fatalf("expected deleted entry to be returned")
	}
	if entry.DreamType != domain.DreamTypeLucid || entry.Privacy != domain.PrivacyPrivate {
		t.Fatalf("unexpected enums: %s %s", entry.DreamType, entry.Privacy)
	}
	if len(entry.Tags) != 2 || entry.DeletedAt == nil {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestJournalRepository_SoftDeleteIsIdempotent(t *testing.T) {
	mock := newMock(t)
	repo := NewJournalRepository(mock)
	at := time.Now().UTC()

	mock.ExpectExec(`UPDATE journal_entries SET deleted_at = \$1, status = \$2, updated_at = \$3 WHERE id = \$4 AND status = \$5`).
		WithArgs(at, "deleted", at, testEntryID, "active").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE journal_entries`).
		WithArgs(at, "deleted", at, testEntryID, "active").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	deleted, err := repo.SoftDelete(context.Background(), testEntryID, at)
	if err != nil || !deleted {
		t.Fatalf("first SoftDelete: deleted=%v err=%v", deleted, err)
	}
	deleted, err = repo.SoftDelete(context.Background(), testEntryID, at)
	if err != nil || deleted {
		t.Fatalf("second SoftDelete: deleted=%v err=%v", deleted, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestJournalRepository_UpdateNeverWritesOwner(t *testing.T) {
	mock := newMock(t)
	repo := NewJournalRepository(mock)
	now := time.Now().UTC()

	mock.ExpectExec(`UPDATE journal_entries SET category = \$1, content = \$2, dream_date = \$3, dream_type = \$4, interpretation = \$5, lucidity = \$6, mood = \$7, personal_notes = \$8, privacy = \$9, spiritual_perspective = \$10, tags = \$11, title = \$12, updated_at = \$13 WHERE id = \$14 AND status = \$15`).
		WithArgs(append(anyArgs(13), testEntryID, "active")...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.Update(context.Background(), domain.JournalEntry{
		ID: testEntryID, UserID: "8c7b6a5d-4e3f-4a2b-9c1d-0e9f8a7b6c5d", Title: "t", Content: "c", DreamDate: now,
		DreamType: domain.DreamTypeNormal, Privacy: domain.PrivacyPublic, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestJournalRepository_ListFilters(t *testing.T) {
	mock := newMock(t)
	repo := NewJournalRepository(mock)

	filter := domain.JournalFilter{
		Privacy: []domain.Privacy{domain.PrivacyPublic, domain.PrivacyFriends},
		Tag:     "flying",
		Search:  "50%",
		Page:    domain.Page{Number: 2, Limit: 5},
	}

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM journal_entries WHERE \(status = \$1 AND privacy IN \(\$2,\$3\) AND \$4 = ANY\(tags\) AND \(title ILIKE \$5 OR content ILIKE \$6\)\)`).
		WithArgs("active", "public", "friends", "flying", `%50\%%`, `%50\%%`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(6))
	mock.ExpectQuery(`ORDER BY dream_date DESC, created_at DESC LIMIT 5 OFFSET 5`).
		WithArgs("active", "public", "friends", "flying", `%50\%%`, `%50\%%`).
		WillReturnRows(pgxmock.NewRows(journalColumns))

	entries, total, err := repo.List(context.Background(), filter)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if total != 6 || len(entries) != 0 {
		t.Fatalf("unexpected result total=%d len=%d", total, len(entries))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestJournalRepository_Stats(t *testing.T) {
	mock := newMock(t)
	repo := NewJournalRepository(mock)

	rows := pgxmock.NewRows([]string{"dream_type", "privacy", "count"}).
		AddRow("lucid", "private", 2).
		AddRow("lucid", "public", 1).
		AddRow("nightmare", "private", 3)
	mock.ExpectQuery(`SELECT dream_type, privacy, COUNT\(\*\) FROM journal_entries .* GROUP BY dream_type, privacy`).
		WithArgs("active", testUserID).
		WillReturnRows(rows)

	stats, err := repo.Stats(context.Background(), testUserID)
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if stats.Total != 6 || stats.ByDreamType[domain.DreamTypeLucid] != 3 || stats.ByPrivacy[domain.PrivacyPrivate] != 5 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestStore_WithinTxCommitsCreateAndCounter(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO journal_entries`).
		WithArgs(append([]any{testEntryID, testUserID}, anyArgs(len(journalColumns)-2)...)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE users SET journal_entries = GREATEST`).
		WithArgs(1, testUserID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := store.WithinTx(context.Background(), func(ctx context.Context, stores port.Stores) error {
		entry := domain.JournalEntry{ID: testEntryID, UserID: testUserID, Title: "t", Content: "c", DreamDate: now,
			DreamType: domain.DreamTypeNormal, Privacy: domain.PrivacyPrivate, Status: domain.StatusActive, CreatedAt: now, UpdatedAt: now}
		if err := stores.Journal.Create(ctx, entry); err != nil {
			return err
		}
		return stores.Users.AdjustStat(ctx, testUserID, domain.StatJournalEntries, 1)
	})
	if err != nil {
		t.Fatalf("WithinTx returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStore_WithinTxRollsBackOnError(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE users SET journal_entries`).
		WithArgs(1, testUserID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(ctx context.Context, stores port.Stores) error {
		return stores.Users.AdjustStat(ctx, testUserID, domain.StatJournalEntries, 1)
	})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
