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

var journalColumns = []string{
	"id",
	"user_id",
	"title",
	"content",
	"dream_date",
	"mood",
	"dream_type",
	"category",
	"tags",
	"spiritual_perspective",
	"interpretation",
	"personal_notes",
	"lucidity",
	"privacy",
	"status",
	"created_at",
	"updated_at",
	"deleted_at",
}

// JournalRepository implements port.JournalRepository using PostgreSQL.
type JournalRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewJournalRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewJournalRepository(exec pgExecutor) *JournalRepository {
	return &JournalRepository{exec: exec, builder: newBuilder()}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *JournalRepository) WithTx(tx pgx.Tx) *JournalRepository {
	if tx == nil {
		return r
	}
	return &JournalRepository{exec: tx, builder: r.builder}
}

func (r *JournalRepository) Create(ctx context.Context, entry domain.JournalEntry) error {
	stmt, args, err := r.builder.Insert("journal_entries").
		Columns(journalColumns...).
		Values(
			entry.ID,
			entry.UserID,
			entry.Title,
			entry.Content,
			entry.DreamDate,
			entry.Mood,
			string(entry.DreamType),
			entry.Category,
			nonNilTags(entry.Tags),
			entry.SpiritualPerspective,
			entry.Interpretation,
			entry.PersonalNotes,
			entry.Lucidity,
			string(entry.Privacy),
			string(entry.Status),
			entry.CreatedAt,
			entry.UpdatedAt,
			entry.DeletedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert journal entry sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return mapWriteError("insert journal entry", err)
	}
	return nil
}

// GetByID returns the entry regardless of status.
func (r *JournalRepository) GetByID(ctx context.Context, id string) (*domain.JournalEntry, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}
	stmt, args, err := r.builder.Select(journalColumns...).
		From("journal_entries").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select journal entry sql: %w", err)
	}

	entry, err := scanJournalEntry(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		return nil, mapReadError("scan journal entry", err)
	}
	return entry, nil
}

// Update writes the mutable columns of an active entry. user_id is not part of the statement.
func (r *JournalRepository) Update(ctx context.Context, entry domain.JournalEntry) error {
	stmt, args, err := r.builder.Update("journal_entries").
		SetMap(map[string]any{
			"title":                 entry.Title,
			"content":               entry.Content,
			"dream_date":            entry.DreamDate,
			"mood":                  entry.Mood,
			"dream_type":            string(entry.DreamType),
			"category":              entry.Category,
			"tags":                  nonNilTags(entry.Tags),
			"spiritual_perspective": entry.SpiritualPerspective,
			"interpretation":        entry.Interpretation,
			"personal_notes":        entry.PersonalNotes,
			"lucidity":              entry.Lucidity,
			"privacy":               string(entry.Privacy),
			"updated_at":            entry.UpdatedAt,
		}).
		Where(squirrel.Eq{"id": entry.ID, "status": string(domain.StatusActive)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update journal entry sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return mapWriteError("update journal entry", err)
	}
	return requireAffected(tag)
}

// SoftDelete flips an active entry to deleted. It reports false when nothing changed.
func (r *JournalRepository) SoftDelete(ctx context.Context, id string, at time.Time) (bool, error) {
	stmt, args, err := r.builder.Update("journal_entries").
		SetMap(map[string]any{
			"status":     string(domain.StatusDeleted),
			"deleted_at": at,
			"updated_at": at,
		}).
		Where(squirrel.Eq{"id": id, "status": string(domain.StatusActive)}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build soft delete journal entry sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("soft delete journal entry: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// List returns active entries matching filter, newest dream first.
func (r *JournalRepository) List(ctx context.Context, filter domain.JournalFilter) ([]domain.JournalEntry, int, error) {
	where := journalFilterClause(filter)

	total, err := count(ctx, r.exec, r.builder.Select("COUNT(*)").From("journal_entries").Where(where))
	if err != nil {
		return nil, 0, err
	}

	page := filter.Page.Normalized()
	stmt, args, err := r.builder.Select(journalColumns...).
		From("journal_entries").
		Where(where).
		OrderBy("dream_date DESC", "created_at DESC").
		Limit(uint64(page.Limit)).
		Offset(page.Offset()).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list journal entries sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query journal entries: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.JournalEntry, 0, page.Limit)
	for rows.Next() {
		entry, err := scanJournalEntry(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan journal entry row: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate journal entries: %w", err)
	}

	return entries, total, nil
}

// Stats counts a user's active entries by dream type and privacy.
func (r *JournalRepository) Stats(ctx context.Context, userID string) (domain.JournalStats, error) {
	stmt, args, err := r.builder.Select("dream_type", "privacy", "COUNT(*)").
		From("journal_entries").
		Where(squirrel.Eq{"user_id": userID, "status": string(domain.StatusActive)}).
		GroupBy("dream_type", "privacy").
		ToSql()
	if err != nil {
		return domain.JournalStats{}, fmt.Errorf("build journal stats sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return domain.JournalStats{}, fmt.Errorf("query journal stats: %w", err)
	}
	defer rows.Close()

	stats := domain.JournalStats{
		ByDreamType: make(map[domain.DreamType]int),
		ByPrivacy:   make(map[domain.Privacy]int),
	}
	for rows.Next() {
		var (
			dreamType string
			privacy   string
			n         int
		)
		if err := rows.Scan(&dreamType, &privacy, &n); err != nil {
			return domain.JournalStats{}, fmt.Errorf("scan journal stats row: %w", err)
		}
		stats.Total += n
		stats.ByDreamType[domain.DreamType(dreamType)] += n
		stats.ByPrivacy[domain.Privacy(privacy)] += n
	}
	if err := rows.Err(); err != nil {
		return domain.JournalStats{}, fmt.Errorf("iterate journal stats: %w", err)
	}
	return stats, nil
}

func journalFilterClause(filter domain.JournalFilter) squirrel.And {
	where := squirrel.And{squirrel.Eq{"status": string(domain.StatusActive)}}
	if filter.UserID != "" {
		where = append(where, squirrel.Eq{"user_id": filter.UserID})
	}
	if len(filter.Privacy) > 0 {
		values := make([]string, len(filter.Privacy))
		for i, p := range filter.Privacy {
			values[i] = string(p)
		}
		where = append(where, squirrel.Eq{"privacy": values})
	}
	if filter.Category != "" {
		where = append(where, squirrel.Eq{"category": filter.Category})
	}
	if filter.DreamType != "" {
		where = append(where, squirrel.Eq{"dream_type": string(filter.DreamType)})
	}
	if filter.SpiritualPerspective != "" {
		where = append(where, squirrel.Eq{"spiritual_perspective": filter.SpiritualPerspective})
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

func scanJournalEntry(row pgx.Row) (*domain.JournalEntry, error) {
	var (
		entry     domain.JournalEntry
		dreamType string
		privacy   string
		status    string
	)

	if err := row.Scan(
		&entry.ID,
		&entry.UserID,
		&entry.Title,
		&entry.Content,
		&entry.DreamDate,
		&entry.Mood,
		&dreamType,
		&entry.Category,
		&entry.Tags,
		&entry.SpiritualPerspective,
		&entry.Interpretation,
		&entry.PersonalNotes,
		&entry.Lucidity,
		&privacy,
		&status,
		&entry.CreatedAt,
		&entry.UpdatedAt,
		&entry.DeletedAt,
	); err != nil {
		return nil, err
	}

	entry.DreamType = domain.DreamType(dreamType)
	entry.Privacy = domain.Privacy(privacy)
	entry.Status = domain.ResourceStatus(status)
	return &entry, nil
}

var _ port.JournalRepository = (*JournalRepository)(nil)
