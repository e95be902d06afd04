package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dreamwise/dreamwise-api/internal/core/domain"
	"github.com/dreamwise/dreamwise-api/internal/core/port"
	"github.com/dreamwise/dreamwise-api/internal/repository"
)

const (
	maxTitleLength   = 200
	maxContentLength = 10000
	maxNotesLength   = 5000
	maxShortField    = 100
	maxTags          = 20
	maxTagLength     = 50
	maxLucidity      = 10
)

// JournalInput carries the fields of a new journal entry.
type JournalInput struct {
	Title                string
	Content              string
	DreamDate            *time.Time
	Mood                 string
	DreamType            string
	Category             string
	Tags                 []string
	SpiritualPerspective string
	Interpretation       string
	PersonalNotes        string
	Lucidity             *int
	Privacy              string
}

// JournalPatch lists the fields an update may change. Nil means unchanged.
type JournalPatch struct {
	Title                *string
	Content              *string
	DreamDate            *time.Time
	Mood                 *string
	DreamType            *string
	Category             *string
	Tags                 *[]string
	SpiritualPerspective *string
	Interpretation       *string
	PersonalNotes        *string
	Lucidity             *int
	Privacy              *string
}

// JournalQuery carries list filters as received from the client.
type JournalQuery struct {
	Privacy              string
	Category             string
	Tag                  string
	DreamType            string
	SpiritualPerspective string
	Search               string
	Page                 domain.Page
}

// JournalService implements journal entry workflows.
type JournalService struct {
	uow     port.UnitOfWork
	entries port.JournalRepository
	users   port.UserRepository
	events  port.EventPublisher
	logger  *zap.Logger
	now     func() time.Time
}

// NewJournalService constructs a JournalService.
func NewJournalService(uow port.UnitOfWork, entries port.JournalRepository, users port.UserRepository, events port.EventPublisher, logger *zap.Logger) *JournalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JournalService{
		uow:     uow,
		entries: entries,
		users:   users,
		events:  events,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock for deterministic tests.
func (s *JournalService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Create stores an entry owned by the principal and bumps the owner's counter
// in the same transaction. An empty privacy takes the owner's default.
func (s *JournalService) Create(ctx context.Context, principal domain.Principal, in JournalInput) (domain.JournalEntry, error) {
	if principal.ID == "" {
		return domain.JournalEntry{}, ErrUnauthenticated
	}

	now := s.now()
	entry := domain.JournalEntry{
		ID:                   uuid.NewString(),
		UserID:               principal.ID,
		Title:                strings.TrimSpace(in.Title),
		Content:              strings.TrimSpace(in.Content),
		DreamDate:            now,
		Mood:                 strings.TrimSpace(in.Mood),
		DreamType:            domain.DreamTypeNormal,
		Category:             strings.TrimSpace(in.Category),
		Tags:                 normalizeTags(in.Tags),
		SpiritualPerspective: strings.TrimSpace(in.SpiritualPerspective),
		Interpretation:       strings.TrimSpace(in.Interpretation),
		PersonalNotes:        strings.TrimSpace(in.PersonalNotes),
		Status:               domain.StatusActive,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if in.DreamDate != nil {
		entry.DreamDate = in.DreamDate.UTC()
	}
	if in.Lucidity != nil {
		entry.Lucidity = *in.Lucidity
	}

	var errs fieldErrors
	if in.DreamType != "" {
		entry.DreamType = domain.DreamType(strings.ToLower(strings.TrimSpace(in.DreamType)))
	}
	if in.Privacy != "" {
		p, ok := domain.ParsePrivacy(in.Privacy)
		if !ok {
			errs.add("privacy", "privacy must be private, friends or public", in.Privacy)
		}
		entry.Privacy = p
	}
	validateEntry(&errs, entry, in.Tags)
	if err := errs.err(); err != nil {
		return domain.JournalEntry{}, err
	}

	if entry.Privacy == "" {
		entry.Privacy = s.defaultPrivacy(ctx, principal.ID)
	}

	err := s.uow.WithinTx(ctx, func(ctx context.Context, stores port.Stores) error {
		if err := stores.Journal.Create(ctx, entry); err != nil {
			return err
		}
		return stores.Users.AdjustStat(ctx, principal.ID, domain.StatJournalEntries, 1)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.JournalEntry{}, ErrUnauthenticated
		}
		return domain.JournalEntry{}, fmt.Errorf("create journal entry: %w", err)
	}

	s.publish(ctx, domain.ActionCreated, entry, principal.ID)
	return entry, nil
}

func (s *JournalService) defaultPrivacy(ctx context.Context, userID string) domain.Privacy {
	if s.users != nil {
		if user, err := s.users.GetByID(ctx, userID); err == nil && user.Preferences.DefaultPrivacy.Valid() {
			return user.Preferences.DefaultPrivacy
		}
	}
	return domain.PrivacyPrivate
}

// Load returns an active entry for authorization gates. Absent and deleted
// entries both yield ErrNotFound.
func (s *JournalService) Load(ctx context.Context, id string) (domain.JournalEntry, error) {
	entry, err := s.entries.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.JournalEntry{}, ErrNotFound
		}
		return domain.JournalEntry{}, fmt.Errorf("load journal entry: %w", err)
	}
	if entry.IsDeleted() {
		return domain.JournalEntry{}, ErrNotFound
	}
	return *entry, nil
}

// Get applies the read-path privacy rule for viewer, which may be nil.
// Owner-only fields are stripped unless the viewer may mutate the entry.
func (s *JournalService) Get(ctx context.Context, viewer *domain.Principal, id string) (domain.JournalEntry, error) {
	entry, err := s.Load(ctx, id)
	if err != nil {
		return domain.JournalEntry{}, err
	}
	return present(viewer, entry)
}

func present(viewer *domain.Principal, entry domain.JournalEntry) (domain.JournalEntry, error) {
	if !domain.CanView(viewer, entry.UserID, entry.Privacy) {
		return domain.JournalEntry{}, ErrForbidden
	}
	if !domain.SeesOwnerFields(viewer, entry.UserID) {
		return entry.Redacted(), nil
	}
	return entry, nil
}

// List returns the principal's own entries.
func (s *JournalService) List(ctx context.Context, principal domain.Principal, q JournalQuery) ([]domain.JournalEntry, domain.PageInfo, error) {
	if principal.ID == "" {
		return nil, domain.PageInfo{}, ErrUnauthenticated
	}
	filter, err := journalFilter(q)
	if err != nil {
		return nil, domain.PageInfo{}, err
	}
	filter.UserID = principal.ID

	entries, total, err := s.entries.List(ctx, filter)
	if err != nil {
		return nil, domain.PageInfo{}, fmt.Errorf("list journal entries: %w", err)
	}
	return entries, domain.NewPageInfo(filter.Page, total), nil
}

// ListPublic returns entries shared with viewer. Anonymous readers see public
// entries only; authenticated readers also see friends entries.
func (s *JournalService) ListPublic(ctx context.Context, viewer *domain.Principal, q JournalQuery) ([]domain.JournalEntry, domain.PageInfo, error) {
	filter, err := journalFilter(q)
	if err != nil {
		return nil, domain.PageInfo{}, err
	}

	scopes := domain.VisibleScopes(viewer)
	if len(filter.Privacy) > 0 {
		requested := filter.Privacy[0]
		filter.Privacy = nil
		for _, scope := range scopes {
			if scope == requested {
				filter.Privacy = []domain.Privacy{requested}
			}
		}
		if filter.Privacy == nil {
			return []domain.JournalEntry{}, domain.NewPageInfo(filter.Page, 0), nil
		}
	} else {
		filter.Privacy = scopes
	}

	entries, total, err := s.entries.List(ctx, filter)
	if err != nil {
		return nil, domain.PageInfo{}, fmt.Errorf("list shared journal entries: %w", err)
	}
	for i := range entries {
		if !domain.SeesOwnerFields(viewer, entries[i].UserID) {
			entries[i] = entries[i].Redacted()
		}
	}
	return entries, domain.NewPageInfo(filter.Page, total), nil
}

// Update applies patch to entry. The owner is never changed.
func (s *JournalService) Update(ctx context.Context, actor domain.Principal, entry domain.JournalEntry, patch JournalPatch) (domain.JournalEntry, error) {
	if !domain.CanMutate(&actor, entry.UserID) {
		return domain.JournalEntry{}, ErrForbidden
	}

	var errs fieldErrors
	if patch.Title != nil {
		entry.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Content != nil {
		entry.Content = strings.TrimSpace(*patch.Content)
	}
	if patch.DreamDate != nil {
		entry.DreamDate = patch.DreamDate.UTC()
	}
	if patch.Mood != nil {
		entry.Mood = strings.TrimSpace(*patch.Mood)
	}
	if patch.DreamType != nil {
		entry.DreamType = domain.DreamType(strings.ToLower(strings.TrimSpace(*patch.DreamType)))
	}
	if patch.Category != nil {
		entry.Category = strings.TrimSpace(*patch.Category)
	}
	var rawTags []string
	if patch.Tags != nil {
		rawTags = *patch.Tags
		entry.Tags = normalizeTags(rawTags)
	}
	if patch.SpiritualPerspective != nil {
		entry.SpiritualPerspective = strings.TrimSpace(*patch.SpiritualPerspective)
	}
	if patch.Interpretation != nil {
		entry.Interpretation = strings.TrimSpace(*patch.Interpretation)
	}
	if patch.PersonalNotes != nil {
		entry.PersonalNotes = strings.TrimSpace(*patch.PersonalNotes)
	}
	if patch.Lucidity != nil {
		entry.Lucidity = *patch.Lucidity
	}
	if patch.Privacy != nil {
		p, ok := domain.ParsePrivacy(*patch.Privacy)
		if !ok {
			errs.add("privacy", "privacy must be private, friends or public", *patch.Privacy)
		}
		entry.Privacy = p
	}
	validateEntry(&errs, entry, rawTags)
	if err := errs.err(); err != nil {
		return domain.JournalEntry{}, err
	}

	entry.UpdatedAt = s.now()
	if err := s.entries.Update(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.JournalEntry{}, ErrNotFound
		}
		return domain.JournalEntry{}, fmt.Errorf("update journal entry: %w", err)
	}

	s.publish(ctx, domain.ActionUpdated, entry, actor.ID)
	return entry, nil
}

// Delete soft-deletes entry and decrements the owner's counter in one
// transaction. Deleting twice yields ErrNotFound.
func (s *JournalService) Delete(ctx context.Context, actor domain.Principal, entry domain.JournalEntry) error {
	if !domain.CanMutate(&actor, entry.UserID) {
		return ErrForbidden
	}

	now := s.now()
	err := s.uow.WithinTx(ctx, func(ctx context.Context, stores port.Stores) error {
		deleted, err := stores.Journal.SoftDelete(ctx, entry.ID, now)
		if err != nil {
			return err
		}
		if !deleted {
			return ErrNotFound
		}
		return stores.Users.AdjustStat(ctx, entry.UserID, domain.StatJournalEntries, -1)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete journal entry: %w", err)
	}

	s.publish(ctx, domain.ActionDeleted, entry, actor.ID)
	return nil
}

// Stats summarizes the principal's active entries.
func (s *JournalService) Stats(ctx context.Context, principal domain.Principal) (domain.JournalStats, error) {
	if principal.ID == "" {
		return domain.JournalStats{}, ErrUnauthenticated
	}
	stats, err := s.entries.Stats(ctx, principal.ID)
	if err != nil {
		return domain.JournalStats{}, fmt.Errorf("journal stats: %w", err)
	}
	return stats, nil
}

func (s *JournalService) publish(ctx context.Context, action domain.ResourceAction, entry domain.JournalEntry, actorID string) {
	if s.events == nil {
		return
	}
	event := domain.JournalEntryEvent{
		EventID:    uuid.NewString(),
		Action:     action,
		EntryID:    entry.ID,
		OwnerID:    entry.UserID,
		ActorID:    actorID,
		Privacy:    entry.Privacy,
		OccurredAt: s.now(),
	}
	if err := s.events.PublishJournalEntry(ctx, event); err != nil {
		s.logger.Warn("publish journal event failed",
			zap.String("entry_id", entry.ID),
			zap.String("action", string(action)),
			zap.Error(err),
		)
	}
}

func validateEntry(errs *fieldErrors, entry domain.JournalEntry, rawTags []string) {
	if entry.Title == "" {
		errs.add("title", "title is required", nil)
	} else if len(entry.Title) > maxTitleLength {
		errs.add("title", "title must be at most 200 characters", nil)
	}
	if entry.Content == "" {
		errs.add("content", "content is required", nil)
	} else if len(entry.Content) > maxContentLength {
		errs.add("content", "content must be at most 10000 characters", nil)
	}
	if !entry.DreamType.Valid() {
		errs.add("dreamType", "dreamType must be one of normal, lucid, nightmare, recurring, prophetic, other", string(entry.DreamType))
	}
	if entry.Lucidity < 0 || entry.Lucidity > maxLucidity {
		errs.add("lucidity", "lucidity must be between 0 and 10", entry.Lucidity)
	}
	if len(entry.Mood) > maxShortField {
		errs.add("mood", "mood must be at most 100 characters", nil)
	}
	if len(entry.Category) > maxShortField {
		errs.add("category", "category must be at most 100 characters", nil)
	}
	if len(entry.Interpretation) > maxNotesLength {
		errs.add("interpretation", "interpretation must be at most 5000 characters", nil)
	}
	if len(entry.PersonalNotes) > maxNotesLength {
		errs.add("personalNotes", "personalNotes must be at most 5000 characters", nil)
	}
	validateTags(errs, rawTags)
}

func validateTags(errs *fieldErrors, raw []string) {
	if len(raw) > maxTags {
		errs.add("tags", "at most 20 tags are allowed", len(raw))
		return
	}
	for _, tag := range raw {
		if len(strings.TrimSpace(tag)) > maxTagLength {
			errs.add("tags", "tags must be at most 50 characters", tag)
			return
		}
	}
}

// normalizeTags lowercases, trims and de-duplicates tags, keeping their order.
func normalizeTags(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, tag := range raw {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func journalFilter(q JournalQuery) (domain.JournalFilter, error) {
	filter := domain.JournalFilter{
		Category:             strings.TrimSpace(q.Category),
		Tag:                  strings.ToLower(strings.TrimSpace(q.Tag)),
		SpiritualPerspective: strings.TrimSpace(q.SpiritualPerspective),
		Search:               strings.TrimSpace(q.Search),
		Page:                 q.Page,
	}
	if filter.Page == (domain.Page{}) {
		filter.Page = domain.DefaultPage()
	}

	var errs fieldErrors
	if q.Privacy != "" {
		p, ok := domain.ParsePrivacy(q.Privacy)
		if !ok {
			errs.add("privacy", "privacy must be private, friends or public", q.Privacy)
		}
		filter.Privacy = []domain.Privacy{p}
	}
	if q.DreamType != "" {
		t := domain.DreamType(strings.ToLower(strings.TrimSpace(q.DreamType)))
		if !t.Valid() {
			errs.add("dreamType", "dreamType must be one of normal, lucid, nightmare, recurring, prophetic, other", q.DreamType)
		}
		filter.DreamType = t
	}
	if err := errs.err(); err != nil {
		return domain.JournalFilter{}, err
	}
	return filter, nil
}
