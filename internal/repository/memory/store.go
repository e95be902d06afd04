package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dreamwise/dreamwise-api/internal/core/domain"
	"github.com/dreamwise/dreamwise-api/internal/core/port"
	"github.com/dreamwise/dreamwise-api/internal/repository"
)

type dataset struct {
	users   map[string]domain.User
	entries map[string]domain.JournalEntry
	posts   map[string]domain.Post
}

// undoLog holds the pre-transaction value of each row a unit of work wrote.
// A nil entry marks a row the unit of work inserted.
type undoLog struct {
	users   map[string]*domain.User
	entries map[string]*domain.JournalEntry
	posts   map[string]*domain.Post
}

func newUndoLog() *undoLog {
	return &undoLog{
		users:   make(map[string]*domain.User),
		entries: make(map[string]*domain.JournalEntry),
		posts:   make(map[string]*domain.Post),
	}
}

// rollback must run with the store write lock held.
func (u *undoLog) rollback(d dataset) {
	restore(u.users, d.users)
	restore(u.entries, d.entries)
	restore(u.posts, d.posts)
}

// remember must run with the store write lock held, before the row changes.
func remember[T any](log map[string]*T, rows map[string]T, id string) {
	if log == nil {
		return
	}
	if _, seen := log[id]; seen {
		return
	}
	if prior, ok := rows[id]; ok {
		log[id] = &prior
		return
	}
	log[id] = nil
}

func restore[T any](log map[string]*T, rows map[string]T) {
	for id, prior := range log {
		if prior == nil {
			delete(rows, id)
			continue
		}
		rows[id] = *prior
	}
}

// Store keeps users, journal entries and posts in process memory. Units of
// work are serialized and a failed one reverts only the rows it wrote.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data dataset

	Users   *UserRepository
	Journal *JournalRepository
	Posts   *PostRepository
}

func NewStore() *Store {
	s := &Store{data: dataset{
		users:   make(map[string]domain.User),
		entries: make(map[string]domain.JournalEntry),
		posts:   make(map[string]domain.Post),
	}}
	s.Users = &UserRepository{store: s}
	s.Journal = &JournalRepository{store: s}
	s.Posts = &PostRepository{store: s}
	return s
}

func (s *Store) Stores() port.Stores {
	return port.Stores{Users: s.Users, Journal: s.Journal, Posts: s.Posts}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, stores port.Stores) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	undo := newUndoLog()
	stores := port.Stores{
		Users:   &UserRepository{store: s, undo: undo},
		Journal: &JournalRepository{store: s, undo: undo},
		Posts:   &PostRepository{store: s, undo: undo},
	}
	if err := fn(ctx, stores); err != nil {
		s.mu.Lock()
		undo.rollback(s.data)
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

// UserRepository implements port.UserRepository in memory.
type UserRepository struct {
	store *Store
	undo  *undoLog
}

func (r *UserRepository) remember(id string) {
	if r.undo != nil {
		remember(r.undo.users, r.store.data.users, id)
	}
}

func (r *UserRepository) Create(_ context.Context, user domain.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.data.users[user.ID]; ok {
		return fmt.Errorf("insert user: %w", repository.ErrConflict)
	}
	for _, existing := range r.store.data.users {
		if strings.EqualFold(existing.Username, user.Username) || strings.EqualFold(existing.Email, user.Email) {
			return fmt.Errorf("insert user: %w", repository.ErrConflict)
		}
	}
	r.remember(user.ID)
	r.store.data.users[user.ID] = user
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	user, ok := r.store.data.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (r *UserRepository) GetByIdentifier(_ context.Context, identifier string) (*domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, user := range r.store.data.users {
		if strings.EqualFold(user.Username, identifier) || strings.EqualFold(user.Email, identifier) {
			u := user
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *UserRepository) UpdateProfile(_ context.Context, id string, profile domain.Profile, at time.Time) error {
	return r.mutate(id, func(u *domain.User) error {
		u.Profile = profile
		u.UpdatedAt = at
		return nil
	})
}

func (r *UserRepository) UpdatePreferences(_ context.Context, id string, prefs domain.Preferences, at time.Time) error {
	return r.mutate(id, func(u *domain.User) error {
		u.Preferences = prefs
		u.UpdatedAt = at
		return nil
	})
}

func (r *UserRepository) UpdatePassword(_ context.Context, id string, passwordHash string, at time.Time) error {
	return r.mutate(id, func(u *domain.User) error {
		u.PasswordHash = passwordHash
		u.TokensValidAfter = at
		u.UpdatedAt = at
		return nil
	})
}

func (r *UserRepository) UpdateRole(_ context.Context, id string, role domain.Role, at time.Time) error {
	return r.mutate(id, func(u *domain.User) error {
		u.Role = role
		u.TokensValidAfter = at
		u.UpdatedAt = at
		return nil
	})
}

func (r *UserRepository) UpdateActive(_ context.Context, id string, active bool, at time.Time) error {
	return r.mutate(id, func(u *domain.User) error {
		u.IsActive = active
		u.TokensValidAfter = at
		u.UpdatedAt = at
		return nil
	})
}

func (r *UserRepository) MarkEmailVerified(_ context.Context, id string, at time.Time) error {
	return r.mutate(id, func(u *domain.User) error {
		u.EmailVerified = true
		u.UpdatedAt = at
		return nil
	})
}

func (r *UserRepository) TouchLastActive(_ context.Context, id string, at time.Time) error {
	return r.mutate(id, func(u *domain.User) error {
		t := at
		u.LastActive = &t
		return nil
	})
}

func (r *UserRepository) AdjustStat(_ context.Context, id string, field domain.StatField, delta int) error {
	return r.mutate(id, func(u *domain.User) error {
		var counter *int
		switch field {
		case domain.StatJournalEntries:
			counter = &u.Stats.JournalEntries
		case domain.StatCommunityPosts:
			counter = &u.Stats.CommunityPosts
		default:
			return fmt.Errorf("unknown stat field %q", field)
		}
		*counter += delta
		if *counter < 0 {
			*counter = 0
		}
		return nil
	})
}

func (r *UserRepository) List(_ context.Context, filter domain.UserFilter) ([]domain.User, int, error) {
	r.store.mu.RLock()
	matched := make([]domain.User, 0)
	search := strings.ToLower(filter.Search)
	for _, user := range r.store.data.users {
		if filter.Role != "" && user.Role != filter.Role {
			continue
		}
		if filter.Active != nil && user.IsActive != *filter.Active {
			continue
		}
		if search != "" && !containsFold(search, user.Username, user.Email, user.Profile.DisplayName) {
			continue
		}
		matched = append(matched, user)
	}
	r.store.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	return paginate(matched, filter.Page), len(matched), nil
}

func (r *UserRepository) mutate(id string, fn func(*domain.User) error) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	user, ok := r.store.data.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	if err := fn(&user); err != nil {
		return err
	}
	r.remember(id)
	r.store.data.users[id] = user
	return nil
}

func containsFold(needle string, haystacks ...string) bool {
	for _, h := range haystacks {
		if strings.Contains(strings.ToLower(h), needle) {
			return true
		}
	}
	return false
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func copyTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return append([]string(nil), tags...)
}

func paginate[T any](items []T, page domain.Page) []T {
	n := page.Normalized()
	start := int(n.Offset())
	if start >= len(items) {
		return []T{}
	}
	end := start + n.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

var (
	_ port.UnitOfWork     = (*Store)(nil)
	_ port.UserRepository = (*UserRepository)(nil)
)
