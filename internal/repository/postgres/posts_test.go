package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/dreamwise/dreamwise-api/internal/core/domain"
	"github.com/dreamwise/dreamwise-api/internal/repository"
)

func TestPostRepository_ListOrdersPinnedFirst(t *testing.T) {
	mock := newMock(t)
	repo := NewPostRepository(mock)
	now := time.Now().UTC()
	featured := true

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM community_posts WHERE \(status = \$1 AND author_id = \$2 AND featured = \$3\)`).
		WithArgs("active", testUserID, true).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`ORDER BY pinned DESC, created_at DESC LIMIT 10 OFFSET 0`).
		WithArgs("active", testUserID, true).
		WillReturnRows(pgxmock.NewRows(postColumns).AddRow(
			testPostID, testUserID, "Recurring stairs", "Anyone else?", "question", "question",
			[]string{"stairs"}, "", nil, true, true, 12, "active", now, now, nil,
		))

	posts, total, err := repo.List(context.Background(), domain.PostFilter{AuthorID: testUserID, Featured: &featured, Page: domain.DefaultPage()})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if total != 1 || len(posts) != 1 {
		t.Fatalf("unexpected result total=%d len=%d", total, len(posts))
	}
	if !posts[0].Pinned || posts[0].JournalEntryID != nil || posts[0].Category != domain.PostCategoryQuestion {
		t.Fatalf("unexpected post: %+v", posts[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostRepository_SetPinnedOnDeletedPost(t *testing.T) {
	mock := newMock(t)
	repo := NewPostRepository(mock)
	at := time.Now().UTC()

	mock.ExpectExec(`UPDATE community_posts SET pinned = \$1, updated_at = \$2 WHERE id = \$3 AND status = \$4`).
		WithArgs(true, at, testPostID, "active").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.SetPinned(context.Background(), testPostID, true, at); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostRepository_IncrementViews(t *testing.T) {
	mock := newMock(t)
	repo := NewPostRepository(mock)

	mock.ExpectExec(`UPDATE community_posts SET view_count = view_count \+ 1 WHERE`).
		WithArgs(testPostID, "active").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.IncrementViews(context.Background(), testPostID); err != nil {
		t.Fatalf("IncrementViews returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostRepository_MalformedIDs(t *testing.T) {
	mock := newMock(t)
	repo := NewPostRepository(mock)

	if _, err := repo.GetByID(context.Background(), "abc"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	posts, total, err := repo.List(context.Background(), domain.PostFilter{AuthorID: "abc", Page: domain.DefaultPage()})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if total != 0 || len(posts) != 0 {
		t.Fatalf("expected no posts, got total=%d len=%d", total, len(posts))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
