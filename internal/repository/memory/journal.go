package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dreamwise/dreamwise-api/internal/core/domain"
	"github.com/dreamwise/dreamwise-api/internal/core/port"
	"github.com/dreamwise/dreamwise-api/internal/repository"
)

// JournalRepository implements port.JournalRepository in memory.
type JournalRepository struct {
	store *Store
	undo  *undoLog
}

func (r *JournalRepository) remember(id string) {
	if r.undo != nil {
		remember(r.undo.entries, r.store.data.entries, id)
	}
}

func (r *JournalRepository) Create(_ context.Context, entry domain.JournalEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.data.entries[entry.ID]; ok {
		return fmt.Errorf("insert journal entry: %w", repository.ErrConflict)
	}
	entry.Tags = copyTags(entry.Tags)
	r.remember(entry.ID)
	r.store.data.entries[entry.ID] = entry
	return nil
}

func (r *JournalRepository) GetByID(_ context.Context, id string) (*domain.JournalEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	entry, ok := r.store.data.entries[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	entry.Tags = copyTags(entry.Tags)
	return &entry, nil
}

func (r *JournalRepository) Update(_ context.Context, entry domain.JournalEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.data.entries[entry.ID]
	if !ok || current.IsDeleted() {
		return repository.ErrNotFound
	}

	current.Title = entry.Title
	current.Content = entry.Content
	current.DreamDate = entry.DreamDate
	current.Mood = entry.Mood
	current.DreamType = entry.DreamType
	current.Category = entry.Category
	current.Tags = copyTags(entry.Tags)
	current.SpiritualPerspective = entry.SpiritualPerspective
	current.Interpretation = entry.Interpretation
	current.PersonalNotes = entry.PersonalNotes
	current.Lucidity = entry.Lucidity
	current.Privacy = entry.Privacy
	current.UpdatedAt = entry.UpdatedAt
	r.remember(entry.ID)
	r.store.data.entries[entry.ID] = current
	return nil
}

func (r *JournalRepository) SoftDelete(_ context.Context, id string, at time.Time) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	entry, ok := r.store.data.entries[id]
	if !ok || entry.IsDeleted() {
		return false, nil
	}
	deletedAt := at
	entry.Status = domain.StatusDeleted
	entry.DeletedAt = &deletedAt
	entry.UpdatedAt = at
	r.remember(id)
	r.store.data.entries[id] = entry
	return true, nil
}

func (r *JournalRepository) List(_ context.Context, filter domain.JournalFilter) ([]domain.JournalEntry, int, error) {
	r.store.mu.RLock()
	matched := make([]domain.JournalEntry, 0)
	for _, entry := range r.store.data.entries {
		if matchesJournal(entry, filter) {
			entry.Tags = copyTags(entry.Tags)
			matched = append(matched, entry)
		}
	}
	r.store.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].DreamDate.Equal(matched[j].DreamDate) {
			return matched[i].DreamDate.After(matched[j].DreamDate)
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return paginate(matched, filter.Page), len(matched), nil
}

func (r *JournalRepository) Stats(_ context.Context, userID string) (domain.JournalStats, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	stats := domain.JournalStats{
		ByDreamType: make(map[domain.DreamType]int),
		ByPrivacy:   make(map[domain.Privacy]int),
	}
	for _, entry := range r.store.data.entries {
		if entry.UserID != userID || entry.IsDeleted() {
			continue
		}
		stats.Total++
		stats.ByDreamType[entry.DreamType]++
		stats.ByPrivacy[entry.Privacy]++
	}
	return stats, nil
}

func matchesJournal(entry domain.JournalEntry, filter domain.JournalFilter) bool {
	if entry.IsDeleted() {
		return false
	}
	if filter.UserID != "" && entry.UserID != filter.UserID {
		return false
	}
	if len(filter.Privacy) > 0 {
		allowed := false
		for _, p := range filter.Privacy {
			if entry.Privacy == p {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}
	if filter.Category != "" && entry.Category != filter.Category {
		return false
	}
	if filter.DreamType != "" && entry.DreamType != filter.DreamType {
		return false
	}
	if filter.SpiritualPerspective != "" && entry.SpiritualPerspective != filter.SpiritualPerspective {
		return false
	}
	if filter.Tag != "" && !hasTag(entry.Tags, filter.Tag) {
		return false
	}
	if filter.Search != "" && !containsFold(strings.ToLower(filter.Search), entry.Title, entry.Content) {
		return false
	}
	return true
}

var _ port.JournalRepository = (*JournalRepository)(nil)
