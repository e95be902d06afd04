package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/dreamwise/dreamwise-api/internal/core/domain"
	"github.com/dreamwise/dreamwise-api/internal/core/port"
	"github.com/dreamwise/dreamwise-api/internal/repository"
)

var postColumns = []string{
	"id",
	"author_id",
	"title",
	"content",
	"category",
	"post_type",
	"tags",
	"spiritual_perspective",
	"journal_entry_id",
	"pinned",
	"featured",
	"view_count",
	"status",
	"created_at",
	"updated_at",
	"deleted_at",
}

// PostRepository implements port.PostRepository using PostgreSQL.
type PostRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewPostRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewPostRepository(exec pgExecutor) *PostRepository {
	return &PostRepository{exec: exec, builder: newBuilder()}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *PostRepository) WithTx(tx pgx.Tx) *PostRepository {
	if tx == nil {
		return r
	}
	return &PostRepository{exec: tx, builder: r.builder}
}

func (r *PostRepository) Create(ctx context.Context, post domain.Post) error {
	stmt, args, err := r.builder.Insert("community_posts").
		Columns(postColumns...).
		Values(
			post.ID,
			post.AuthorID,
			post.Title,
			post.Content,
			string(post.Category),
			string(post.PostType),
			nonNilTags(post.Tags),
			post.SpiritualPerspective,
			post.JournalEntryID,
			post.Pinned,
			post.Featured,
			post.ViewCount,
			string(post.Status),
			post.CreatedAt,
			post.UpdatedAt,
			post.DeletedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert post sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return mapWriteError("insert post", err)
	}
	return nil
}

// GetByID returns the post regardless of status.
func (r *PostRepository) GetByID(ctx context.Context, id string) (*domain.Post, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}
	stmt, args, err := r.builder.Select(postColumns...).
		From("community_posts").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select post sql: %w", err)
	}

	post, err := scanPost(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		return nil, mapReadError("scan post", err)
	}
	return post, nil
}

// Update writes the author-editable columns. author_id, pin and feature flags are untouched.
func (r *PostRepository) Update(ctx context.Context, post domain.Post) error {
	return r.update(ctx, "update post", post.ID, map[string]any{
		"title":                 post.Title,
		"content":               post.Content,
		"category":              string(post.Category),
		"post_type":             string(post.PostType),
		"tags":                  nonNilTags(post.Tags),
		"spiritual_perspective": post.SpiritualPerspective,
		"updated_at":            post.UpdatedAt,
	})
}

// SoftDelete flips an active post to deleted. It reports false when nothing changed.
func (r *PostRepository) SoftDelete(ctx context.Context, id string, at time.Time) (bool, error) {
	stmt, args, err := r.builder.Update("community_posts").
		SetMap(map[string]any{
			"status":     string(domain.StatusDeleted),
			"deleted_at": at,
			"updated_at": at,
		}).
		Where(squirrel.Eq{"id": id, "status": string(domain.StatusActive)}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build soft delete post sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("soft delete post: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostRepository) SetPinned(ctx context.Context, id string, pinned bool, at time.Time) error {
	return r.update(ctx, "set post pinned", id, map[string]any{"pinned": pinned, "updated_at": at})
}

func (r *PostRepository) SetFeatured(ctx context.Context, id string, featured bool, at time.Time) error {
	return r.update(ctx, "set post featured", id, map[string]any{"featured": featured, "updated_at": at})
}

// IncrementViews bumps the view counter without touching updated_at.
func (r *PostRepository) IncrementViews(ctx context.Context, id string) error {
	return r.update(ctx, "increment post views", id, map[string]any{
		"view_count": squirrel.Expr("view_count + 1"),
	})
}

// List returns active posts matching filter, pinned first then newest.
func (r *PostRepository) List(ctx context.Context, filter domain.PostFilter) ([]domain.Post, int, error) {
	if filter.AuthorID != "" && !validID(filter.AuthorID) {
		return []domain.Post{}, 0, nil
	}
	where := postFilterClause(filter)

	total, err := count(ctx, r.exec, r.builder.Select("COUNT(*)").From("community_posts").Where(where))
	if err != nil {
		return nil, 0, err
	}

	page := filter.Page.Normalized()
	stmt, args, err := r.builder.Select(postColumns...).
		From("community_posts").
		Where(where).
		OrderBy("pinned DESC", "created_at DESC").
		Limit(uint64(page.Limit)).
		Offset(page.Offset()).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list posts sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	posts := make([]domain.Post, 0, page.Limit)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan post row: %w", err)
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate posts: %w", err)
	}

	return posts, total, nil
}

func (r *PostRepository) update(ctx context.Context, op, id string, set map[string]any) error {
	stmt, args, err := r.builder.Update("community_posts").
		SetMap(set).
		Where(squirrel.Eq{"id": id, "status": string(domain.StatusActive)}).
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

func postFilterClause(filter domain.PostFilter) squirrel.And {
	where := squirrel.And{squirrel.Eq{"status": string(domain.StatusActive)}}
	if filter.AuthorID != "" {
		where = append(where, squirrel.Eq{"author_id": filter.AuthorID})
	}
	if filter.Category != "" {
		where = append(where, squirrel.Eq{"category": string(filter.Category)})
	}
	if filter.PostType != "" {
		where = append(where, squirrel.Eq{"post_type": string(filter.PostType)})
	}
	if filter.SpiritualPerspective != "" {
		where = append(where, squirrel.Eq{"spiritual_perspective": filter.SpiritualPerspective})
	}
	if filter.Featured != nil {
		where = append(where, squirrel.Eq{"featured": *filter.Featured})
	}
	if filter.Tag != "" {
		where = append(where, squirrel.Expr("? = ANY(tags)", filter.Tag))
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		where = append(where, squirrel.Or{
			squirrel.ILike{"title": pattern},
			squirrel.ILike{"content": pattern},
		})
	}
	return where
}

func scanPost(row pgx.Row) (*domain.Post, error) {
	var (
		post     domain.Post
		category string
		postType string
		status   string
	)

	if err := row.Scan(
		&post.ID,
		&post.AuthorID,
		&post.Title,
		&post.Content,
		&category,
		&postType,
		&post.Tags,
		&post.SpiritualPerspective,
		&post.JournalEntryID,
		&post.Pinned,
		&post.Featured,
		&post.ViewCount,
		&status,
		&post.CreatedAt,
		&post.UpdatedAt,
		&post.DeletedAt,
	); err != nil {
		return nil, err
	}

	post.Category = domain.PostCategory(category)
	post.PostType = domain.PostType(postType)
	post.Status = domain.ResourceStatus(status)
	return &post, nil
}

var _ port.PostRepository = (*PostRepository)(nil)
