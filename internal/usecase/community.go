package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dreamwise/dreamwise-api/internal/core/domain"
	"github.com/dreamwise/dreamwise-api/internal/core/port"
	"github.com/dreamwise/dreamwise-api/internal/repository"
)

// PostInput carries the fields of a new community post.
type PostInput struct {
	Title                string
	Content              string
	Category             string
	PostType             string
	Tags                 []string
	SpiritualPerspective string
	JournalEntryID       string
}

// PostPatch lists the author-editable fields. Nil means unchanged.
type PostPatch struct {
	Title                *string
	Content              *string
	Category             *string
	PostType             *string
	Tags                 *[]string
	SpiritualPerspective *string
}

// PostQuery carries list filters as received from the client.
type PostQuery struct {
	Author               string
	Category             string
	PostType             string
	Tag                  string
	SpiritualPerspective string
	Search               string
	Featured             string
	Page                 domain.Page
}

// CommunityService implements community post workflows.
type CommunityService struct {
	uow     port.UnitOfWork
	posts   port.PostRepository
	entries port.JournalRepository
	events  port.EventPublisher
	logger  *zap.Logger
	now     func() time.Time
}

// NewCommunityService constructs a CommunityService.
func NewCommunityService(uow port.UnitOfWork, posts port.PostRepository, entries port.JournalRepository, events port.EventPublisher, logger *zap.Logger) *CommunityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommunityService{
		uow:     uow,
		posts:   posts,
		entries: entries,
		events:  events,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock for deterministic tests.
func (s *CommunityService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Create publishes a post authored by the principal. A referenced journal
// entry must be active and owned by the author.
func (s *CommunityService) Create(ctx context.Context, principal domain.Principal, in PostInput) (domain.Post, error) {
	if principal.ID == "" {
		return domain.Post{}, ErrUnauthenticated
	}

	now := s.now()
	post := domain.Post{
		ID:                   uuid.NewString(),
		AuthorID:             principal.ID,
		Title:                strings.TrimSpace(in.Title),
		Content:              strings.TrimSpace(in.Content),
		Category:             domain.PostCategoryGeneral,
		PostType:             domain.PostTypeDiscussion,
		Tags:                 normalizeTags(in.Tags),
		SpiritualPerspective: strings.TrimSpace(in.SpiritualPerspective),
		Status:               domain.StatusActive,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if in.Category != "" {
		post.Category = domain.PostCategory(strings.ToLower(strings.TrimSpace(in.Category)))
	}
	if in.PostType != "" {
		post.PostType = domain.PostType(strings.ToLower(strings.TrimSpace(in.PostType)))
	}

	var errs fieldErrors
	validatePost(&errs, post, in.Tags)
	if id := strings.TrimSpace(in.JournalEntryID); id != "" {
		if err := s.checkSharedEntry(ctx, principal.ID, id, &errs); err != nil {
			return domain.Post{}, err
		}
		post.JournalEntryID = &id
	}
	if err := errs.err(); err != nil {
		return domain.Post{}, err
	}

	err := s.uow.WithinTx(ctx, func(ctx context.Context, stores port.Stores) error {
		if err := stores.Posts.Create(ctx, post); err != nil {
			return err
		}
		return stores.Users.AdjustStat(ctx, principal.ID, domain.StatCommunityPosts, 1)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Post{}, ErrUnauthenticated
		}
		return domain.Post{}, fmt.Errorf("create post: %w", err)
	}

	s.publish(ctx, domain.ActionCreated, post, principal.ID)
	return post, nil
}

func (s *CommunityService) checkSharedEntry(ctx context.Context, authorID, entryID string, errs *fieldErrors) error {
	if s.entries == nil {
		errs.add("journalEntryId", "journal entry sharing is unavailable", entryID)
		return nil
	}
	entry, err := s.entries.GetByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			errs.add("journalEntryId", "journal entry not found", entryID)
			return nil
		}
		return fmt.Errorf("load shared journal entry: %w", err)
	}
	if entry.IsDeleted() {
		errs.add("journalEntryId", "journal entry not found", entryID)
	} else if entry.UserID != authorID {
		errs.add("journalEntryId", "only your own journal entries can be shared", entryID)
	}
	return nil
}

// Load returns an active post for authorization gates.
func (s *CommunityService) Load(ctx context.Context, id string) (domain.Post, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Post{}, ErrNotFound
		}
		return domain.Post{}, fmt.Errorf("load post: %w", err)
	}
	if post.IsDeleted() {
		return domain.Post{}, ErrNotFound
	}
	return *post, nil
}

// Get returns an active post and counts the view. A failed view count does
// not fail the read.
func (s *CommunityService) Get(ctx context.Context, id string) (domain.Post, error) {
	post, err := s.Load(ctx, id)
	if err != nil {
		return domain.Post{}, err
	}
	if err := s.posts.IncrementViews(ctx, post.ID); err != nil {
		s.logger.Warn("increment post views failed", zap.String("post_id", post.ID), zap.Error(err))
	} else {
		post.ViewCount++
	}
	return post, nil
}

// List returns active posts, pinned first then newest.
func (s *CommunityService) List(ctx context.Context, q PostQuery) ([]domain.Post, domain.PageInfo, error) {
	filter := domain.PostFilter{
		AuthorID:             strings.TrimSpace(q.Author),
		Tag:                  strings.ToLower(strings.TrimSpace(q.Tag)),
		SpiritualPerspective: strings.TrimSpace(q.SpiritualPerspective),
		Search:               strings.TrimSpace(q.Search),
		Page:                 q.Page,
	}
	if filter.Page == (domain.Page{}) {
		filter.Page = domain.DefaultPage()
	}

	var errs fieldErrors
	if q.Category != "" {
		filter.Category = domain.PostCategory(strings.ToLower(strings.TrimSpace(q.Category)))
		if !filter.Category.Valid() {
			errs.add("category", "unknown category", q.Category)
		}
	}
	if q.PostType != "" {
		filter.PostType = domain.PostType(strings.ToLower(strings.TrimSpace(q.PostType)))
		if !filter.PostType.Valid() {
			errs.add("postType", "unknown post type", q.PostType)
		}
	}
	if q.Featured != "" {
		featured, err := strconv.ParseBool(q.Featured)
		if err != nil {
			errs.add("featured", "featured must be true or false", q.Featured)
		}
		filter.Featured = &featured
	}
	if err := errs.err(); err != nil {
		return nil, domain.PageInfo{}, err
	}

	posts, total, err := s.posts.List(ctx, filter)
	if err != nil {
		return nil, domain.PageInfo{}, fmt.Errorf("list posts: %w", err)
	}
	return posts, domain.NewPageInfo(filter.Page, total), nil
}

// Update applies patch to post. Author, pin and feature flags never change here.
func (s *CommunityService) Update(ctx context.Context, actor domain.Principal, post domain.Post, patch PostPatch) (domain.Post, error) {
	if !domain.CanMutate(&actor, post.AuthorID) {
		return domain.Post{}, ErrForbidden
	}

	if patch.Title != nil {
		post.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Content != nil {
		post.Content = strings.TrimSpace(*patch.Content)
	}
	if patch.Category != nil {
		post.Category = domain.PostCategory(strings.ToLower(strings.TrimSpace(*patch.Category)))
	}
	if patch.PostType != nil {
		post.PostType = domain.PostType(strings.ToLower(strings.TrimSpace(*patch.PostType)))
	}
	var rawTags []string
	if patch.Tags != nil {
		rawTags = *patch.Tags
		post.Tags = normalizeTags(rawTags)
	}
	if patch.SpiritualPerspective != nil {
		post.SpiritualPerspective = strings.TrimSpace(*patch.SpiritualPerspective)
	}

	var errs fieldErrors
	validatePost(&errs, post, rawTags)
	if err := errs.err(); err != nil {
		return domain.Post{}, err
	}

	post.UpdatedAt = s.now()
	if err := s.posts.Update(ctx, post); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Post{}, ErrNotFound
		}
		return domain.Post{}, fmt.Errorf("update post: %w", err)
	}

	s.publish(ctx, domain.ActionUpdated, post, actor.ID)
	return post, nil
}

// Delete soft-deletes post and decrements the author's counter in one transaction.
func (s *CommunityService) Delete(ctx context.Context, actor domain.Principal, post domain.Post) error {
	if !domain.CanMutate(&actor, post.AuthorID) {
		return ErrForbidden
	}

	now := s.now()
	err := s.uow.WithinTx(ctx, func(ctx context.Context, stores port.Stores) error {
		deleted, err := stores.Posts.SoftDelete(ctx, post.ID, now)
		if err != nil {
			return err
		}
		if !deleted {
			return ErrNotFound
		}
		return stores.Users.AdjustStat(ctx, post.AuthorID, domain.StatCommunityPosts, -1)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete post: %w", err)
	}

	s.publish(ctx, domain.ActionDeleted, post, actor.ID)
	return nil
}

// SetPinned pins or unpins a post. Moderators and admins only.
func (s *CommunityService) SetPinned(ctx context.Context, actor domain.Principal, id string, pinned bool) (domain.Post, error) {
	return s.moderate(ctx, actor, id, func(ctx context.Context, post *domain.Post, at time.Time) error {
		post.Pinned = pinned
		return s.posts.SetPinned(ctx, post.ID, pinned, at)
	})
}

// SetFeatured features or unfeatures a post. Moderators and admins only.
func (s *CommunityService) SetFeatured(ctx context.Context, actor domain.Principal, id string, featured bool) (domain.Post, error) {
	return s.moderate(ctx, actor, id, func(ctx context.Context, post *domain.Post, at time.Time) error {
		post.Featured = featured
		return s.posts.SetFeatured(ctx, post.ID, featured, at)
	})
}

func (s *CommunityService) moderate(ctx context.Context, actor domain.Principal, id string, apply func(context.Context, *domain.Post, time.Time) error) (domain.Post, error) {
	if actor.ID == "" {
		return domain.Post{}, ErrUnauthenticated
	}
	if !actor.Role.IsElevated() {
		return domain.Post{}, ErrForbidden
	}

	post, err := s.Load(ctx, id)
	if err != nil {
		return domain.Post{}, err
	}

	now := s.now()
	if err := apply(ctx, &post, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Post{}, ErrNotFound
		}
		return domain.Post{}, fmt.Errorf("moderate post: %w", err)
	}
	post.UpdatedAt = now

	s.publish(ctx, domain.ActionModerated, post, actor.ID)
	return post, nil
}

func (s *CommunityService) publish(ctx context.Context, action domain.ResourceAction, post domain.Post, actorID string) {
	if s.events == nil {
		return
	}
	event := domain.PostEvent{
		EventID:    uuid.NewString(),
		Action:     action,
		PostID:     post.ID,
		AuthorID:   post.AuthorID,
		ActorID:    actorID,
		Pinned:     post.Pinned,
		Featured:   post.Featured,
		OccurredAt: s.now(),
	}
	if err := s.events.PublishPost(ctx, event); err != nil {
		s.logger.Warn("publish post event failed",
			zap.String("post_id", post.ID),
			zap.String("action", string(action)),
			zap.Error(err),
		)
	}
}

func validatePost(errs *fieldErrors, post domain.Post, rawTags []string) {
	if post.Title == "" {
		errs.add("title", "title is required", nil)
	} else if len(post.Title) > maxTitleLength {
		errs.add("title", "title must be at most 200 characters", nil)
	}
	if post.Content == "" {
		errs.add("content", "content is required", nil)
	} else if len(post.Content) > maxContentLength {
		errs.add("content", "content must be at most 10000 characters", nil)
	}
	if !post.Category.Valid() {
		errs.add("category", "category must be one of general, interpretation, experience, question, discussion", string(post.Category))
	}
	if !post.PostType.Valid() {
		errs.add("postType", "postType must be one of discussion, question, dream_share, insight", string(post.PostType))
	}
	validateTags(errs, rawTags)
}
