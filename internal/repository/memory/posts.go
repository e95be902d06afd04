package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dreamwise/dreamwise-api/internal/core/domain"
	"github.com/dreamwise/dreamwise-api/internal/core/port"
	"github.com/dreamwise/dreamwise-api/internal/repository"
)

// PostRepository implements port.PostRepository in memory.
type PostRepository struct {
	store *Store
	undo  *undoLog
}

func (r *PostRepository) remember(id string) {
	if r.undo != nil {
		remember(r.undo.posts, r.store.data.posts, id)
	}
}

func (r *PostRepository) Create(_ context.Context, post domain.Post) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.data.posts[post.ID]; ok {
		return fmt.Errorf("insert post: %w", repository.ErrConflict)
	}
	post.Tags = copyTags(post.Tags)
	r.remember(post.ID)
	r.store.data.posts[post.ID] = post
	return nil
}

func (r *PostRepository) GetByID(_ context.Context, id string) (*domain.Post, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	post, ok := r.store.data.posts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	post.Tags = copyTags(post.Tags)
	return &post, nil
}

func (r *PostRepository) Update(_ context.Context, post domain.Post) error {
	return r.mutate(post.ID, func(p *domain.Post) {
		p.Title = post.Title
		p.Content = post.Content
		p.Category = post.Category
		p.PostType = post.PostType
		p.Tags = copyTags(post.Tags)
		p.SpiritualPerspective = post.SpiritualPerspective
		p.UpdatedAt = post.UpdatedAt
	})
}

func (r *PostRepository) SoftDelete(_ context.Context, id string, at time.Time) (bool, error) {
	err := r.mutate(id, func(p *domain.Post) {
		deletedAt := at
		p.Status = domain.StatusDeleted
		p.DeletedAt = &deletedAt
		p.UpdatedAt = at
	})
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *PostRepository) SetPinned(_ context.Context, id string, pinned bool, at time.Time) error {
	return r.mutate(id, func(p *domain.Post) {
		p.Pinned = pinned
		p.UpdatedAt = at
	})
}

func (r *PostRepository) SetFeatured(_ context.Context, id string, featured bool, at time.Time) error {
	return r.mutate(id, func(p *domain.Post) {
		p.Featured = featured
		p.UpdatedAt = at
	})
}

func (r *PostRepository) IncrementViews(_ context.Context, id string) error {
	return r.mutate(id, func(p *domain.Post) {
		p.ViewCount++
	})
}

func (r *PostRepository) List(_ context.Context, filter domain.PostFilter) ([]domain.Post, int, error) {
	r.store.mu.RLock()
	matched := make([]domain.Post, 0)
	for _, post := range r.store.data.posts {
		if matchesPost(post, filter) {
			post.Tags = copyTags(post.Tags)
			matched = append(matched, post)
		}
	}
	r.store.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Pinned != matched[j].Pinned {
			return matched[i].Pinned
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return paginate(matched, filter.Page), len(matched), nil
}

// mutate applies fn to an active post.
func (r *PostRepository) mutate(id string, fn func(*domain.Post)) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	post, ok := r.store.data.posts[id]
	if !ok || post.IsDeleted() {
		return repository.ErrNotFound
	}
	fn(&post)
	r.remember(id)
	r.store.data.posts[id] = post
	return nil
}

func matchesPost(post domain.Post, filter domain.PostFilter) bool {
	if post.IsDeleted() {
		return false
	}
	if filter.AuthorID != "" && post.AuthorID != filter.AuthorID {
		return false
	}
	if filter.Category != "" && post.Category != filter.Category {
		return false
	}
	if filter.PostType != "" && post.PostType != filter.PostType {
		return false
	}
	if filter.SpiritualPerspective != "" && post.SpiritualPerspective != filter.SpiritualPerspective {
		return false
	}
	if filter.Featured != nil && post.Featured != *filter.Featured {
		return false
	}
	if filter.Tag != "" && !hasTag(post.Tags, filter.Tag) {
		return false
	}
	if filter.Search != "" && !containsFold(strings.ToLower(filter.Search), post.Title, post.Content) {
		return false
	}
	return true
}

var _ port.PostRepository = (*PostRepository)(nil)
