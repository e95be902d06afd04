package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dreamwise/dreamwise-api/internal/core/domain"
	"github.com/dreamwise/dreamwise-api/internal/core/port"
	"github.com/dreamwise/dreamwise-api/internal/repository"
)

const (
	maxBioLength     = 500
	maxWebsiteLength = 200
)

var allowedThemes = map[string]struct{}{"light": {}, "dark": {}, "auto": {}}

// ProfilePatch lists the profile fields a user may change. Nil means unchanged.
type ProfilePatch struct {
	DisplayName          *string
	Bio                  *string
	Location             *string
	Website              *string
	SpiritualPerspective *string
}

// PreferencesPatch lists the preference fields a user may change.
type PreferencesPatch struct {
	Theme              *string
	Language           *string
	EmailNotifications *bool
	DefaultPrivacy     *string
}

// StatsSummary combines the denormalized counters with journal aggregates.
type StatsSummary struct {
	Counters domain.UserStats
	Journal  domain.JournalStats
}

// UserService implements self-service profile workflows.
type UserService struct {
	users   port.UserRepository
	entries port.JournalRepository
	files   port.FileStore
	cache   *PrincipalCache
	logger  *zap.Logger
	now     func() time.Time
}

// NewUserService constructs a UserService. files may be nil, in which case
// avatar uploads report ErrFeatureUnavailable.
func NewUserService(users port.UserRepository, entries port.JournalRepository, files port.FileStore, cache *PrincipalCache, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		users:   users,
		entries: entries,
		files:   files,
		cache:   cache,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock for deterministic tests.
func (s *UserService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Profile returns the principal's own account.
func (s *UserService) Profile(ctx context.Context, principal domain.Principal) (domain.User, error) {
	user, err := s.load(ctx, principal.ID)
	if err != nil {
		return domain.User{}, err
	}
	return user.Sanitized(), nil
}

// PublicProfile returns the view of id exposed to other readers. Inactive
// accounts are reported as absent.
func (s *UserService) PublicProfile(ctx context.Context, id string) (domain.PublicProfile, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return domain.PublicProfile{}, err
	}
	if !user.IsActive {
		return domain.PublicProfile{}, ErrNotFound
	}
	return domain.PublicProfile{
		ID:        user.ID,
		Username:  user.Username,
		Role:      user.Role,
		Profile:   user.Profile,
		Stats:     user.Stats,
		CreatedAt: user.CreatedAt,
	}, nil
}

// UpdateProfile applies patch to the principal's profile.
func (s *UserService) UpdateProfile(ctx context.Context, principal domain.Principal, patch ProfilePatch) (domain.User, error) {
	user, err := s.load(ctx, principal.ID)
	if err != nil {
		return domain.User{}, err
	}

	profile := user.Profile
	if patch.DisplayName != nil {
		profile.DisplayName = strings.TrimSpace(*patch.DisplayName)
	}
	if patch.Bio != nil {
		profile.Bio = strings.TrimSpace(*patch.Bio)
	}
	if patch.Location != nil {
		profile.Location = strings.TrimSpace(*patch.Location)
	}
	if patch.Website != nil {
		profile.Website = strings.TrimSpace(*patch.Website)
	}
	if patch.SpiritualPerspective != nil {
		profile.SpiritualPerspective = strings.TrimSpace(*patch.SpiritualPerspective)
	}

	var errs fieldErrors
	if profile.DisplayName == "" {
		errs.add("displayName", "display name is required", nil)
	} else if len(profile.DisplayName) > maxShortField {
		errs.add("displayName", "display name must be at most 100 characters", nil)
	}
	if len(profile.Bio) > maxBioLength {
		errs.add("bio", "bio must be at most 500 characters", nil)
	}
	if len(profile.Location) > maxShortField {
		errs.add("location", "location must be at most 100 characters", nil)
	}
	if len(profile.SpiritualPerspective) > maxShortField {
		errs.add("spiritualPerspective", "spiritualPerspective must be at most 100 characters", nil)
	}
	if profile.Website != "" && !validWebsite(profile.Website) {
		errs.add("website", "website must be an http or https URL", profile.Website)
	}
	if err := errs.err(); err != nil {
		return domain.User{}, err
	}

	now := s.now()
	if err := s.users.UpdateProfile(ctx, user.ID, profile, now); err != nil {
		return domain.User{}, mapUserWrite("update profile", err)
	}
	user.Profile = profile
	user.UpdatedAt = now
	return user.Sanitized(), nil
}

func validWebsite(raw string) bool {
	if len(raw) > maxWebsiteLength {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// UpdatePreferences applies patch to the principal's preferences.
func (s *UserService) UpdatePreferences(ctx context.Context, principal domain.Principal, patch PreferencesPatch) (domain.User, error) {
	user, err := s.load(ctx, principal.ID)
	if err != nil {
		return domain.User{}, err
	}

	prefs := user.Preferences
	var errs fieldErrors
	if patch.Theme != nil {
		theme := strings.ToLower(strings.TrimSpace(*patch.Theme))
		if _, ok := allowedThemes[theme]; !ok {
			errs.add("theme", "theme must be light, dark or auto", *patch.Theme)
		}
		prefs.Theme = theme
	}
	if patch.Language != nil {
		lang := strings.ToLower(strings.TrimSpace(*patch.Language))
		if len(lang) < 2 || len(lang) > 10 {
			errs.add("language", "language must be a 2-10 character code", *patch.Language)
		}
		prefs.Language = lang
	}
	if patch.EmailNotifications != nil {
		prefs.EmailNotifications = *patch.EmailNotifications
	}
	if patch.DefaultPrivacy != nil {
		p, ok := domain.ParsePrivacy(*patch.DefaultPrivacy)
		if !ok {
			errs.add("defaultPrivacy", "defaultPrivacy must be private, friends or public", *patch.DefaultPrivacy)
		}
		prefs.DefaultPrivacy = p
	}
	if err := errs.err(); err != nil {
		return domain.User{}, err
	}

	now := s.now()
	if err := s.users.UpdatePreferences(ctx, user.ID, prefs, now); err != nil {
		return domain.User{}, mapUserWrite("update preferences", err)
	}
	user.Preferences = prefs
	user.UpdatedAt = now
	return user.Sanitized(), nil
}

// Stats returns the principal's counters and journal breakdown.
func (s *UserService) Stats(ctx context.Context, principal domain.Principal) (StatsSummary, error) {
	user, err := s.load(ctx, principal.ID)
	if err != nil {
		return StatsSummary{}, err
	}
	summary := StatsSummary{Counters: user.Stats}
	if s.entries != nil {
		journal, err := s.entries.Stats(ctx, user.ID)
		if err != nil {
			return StatsSummary{}, fmt.Errorf("journal stats: %w", err)
		}
		summary.Journal = journal
	}
	return summary, nil
}

// AvatarUploadURL hands out a presigned upload location for the principal's avatar.
func (s *UserService) AvatarUploadURL(ctx context.Context, principal domain.Principal, contentType string) (domain.UploadTarget, error) {
	if principal.ID == "" {
		return domain.UploadTarget{}, ErrUnauthenticated
	}
	if s.files == nil {
		return domain.UploadTarget{}, ErrFeatureUnavailable
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if contentType == "" {
		return domain.UploadTarget{}, invalidField("contentType", "contentType is required", nil)
	}

	target, err := s.files.PresignUpload(ctx, principal.ID, contentType)
	if err != nil {
		if errors.Is(err, port.ErrUnsupportedContentType) {
			return domain.UploadTarget{}, invalidField("contentType", "contentType must be image/jpeg, image/png, image/webp or image/gif", contentType)
		}
		return domain.UploadTarget{}, fmt.Errorf("presign avatar upload: %w", err)
	}
	s.logger.Debug("avatar upload url issued", zap.String("user_id", principal.ID), zap.String("key", target.Key))
	return target, nil
}

func (s *UserService) load(ctx context.Context, id string) (domain.User, error) {
	if id == "" {
		return domain.User{}, ErrUnauthenticated
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	return *user, nil
}

// UserQuery carries admin listing filters as received from the client.
type UserQuery struct {
	Role   string
	Active string
	Search string
	Page   domain.Page
}

// AdminService implements account administration.
type AdminService struct {
	users  port.UserRepository
	cache  *PrincipalCache
	logger *zap.Logger
	now    func() time.Time
}

// NewAdminService constructs an AdminService.
func NewAdminService(users port.UserRepository, cache *PrincipalCache, logger *zap.Logger) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminService{
		users:  users,
		cache:  cache,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock for deterministic tests.
func (s *AdminService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// ListUsers returns accounts newest first.
func (s *AdminService) ListUsers(ctx context.Context, q UserQuery) ([]domain.User, domain.PageInfo, error) {
	filter := domain.UserFilter{Search: strings.TrimSpace(q.Search), Page: q.Page}
	if filter.Page == (domain.Page{}) {
		filter.Page = domain.DefaultPage()
	}

	var errs fieldErrors
	if q.Role != "" {
		role, ok := domain.ParseRole(q.Role)
		if !ok {
			errs.add("role", "role must be user, moderator or admin", q.Role)
		}
		filter.Role = role
	}
	if q.Active != "" {
		active, err := strconv.ParseBool(q.Active)
		if err != nil {
			errs.add("active", "active must be true or false", q.Active)
		}
		filter.Active = &active
	}
	if err := errs.err(); err != nil {
		return nil, domain.PageInfo{}, err
	}

	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, domain.PageInfo{}, fmt.Errorf("list users: %w", err)
	}
	for i := range users {
		users[i] = users[i].Sanitized()
	}
	return users, domain.NewPageInfo(filter.Page, total), nil
}

// ChangeRole sets the role of target. The new role only applies to tokens
// issued afterwards.
func (s *AdminService) ChangeRole(ctx context.Context, actor domain.Principal, targetID, rawRole string) (domain.User, error) {
	role, ok := domain.ParseRole(rawRole)
	if !ok {
		return domain.User{}, invalidField("role", "role must be user, moderator or admin", rawRole)
	}
	user, err := s.target(ctx, actor, targetID)
	if err != nil {
		return domain.User{}, err
	}
	if user.Role == role {
		return user.Sanitized(), nil
	}

	now := s.now()
	if err := s.users.UpdateRole(ctx, user.ID, role, now); err != nil {
		return domain.User{}, mapUserWrite("update role", err)
	}
	s.cache.Invalidate(user.ID)
	s.logger.Info("user role changed",
		zap.String("actor_id", actor.ID),
		zap.String("user_id", user.ID),
		zap.String("from", string(user.Role)),
		zap.String("to", string(role)),
	)

	user.Role = role
	user.TokensValidAfter = now
	user.UpdatedAt = now
	return user.Sanitized(), nil
}

// SetActive activates or deactivates target. Deactivation ends every session.
func (s *AdminService) SetActive(ctx context.Context, actor domain.Principal, targetID string, active bool) (domain.User, error) {
	user, err := s.target(ctx, actor, targetID)
	if err != nil {
		return domain.User{}, err
	}
	if user.IsActive == active {
		return user.Sanitized(), nil
	}

	now := s.now()
	if err := s.users.UpdateActive(ctx, user.ID, active, now); err != nil {
		return domain.User{}, mapUserWrite("update status", err)
	}
	s.cache.Invalidate(user.ID)
	s.logger.Info("user status changed",
		zap.String("actor_id", actor.ID),
		zap.String("user_id", user.ID),
		zap.Bool("active", active),
	)

	user.IsActive = active
	user.TokensValidAfter = now
	user.UpdatedAt = now
	return user.Sanitized(), nil
}

func (s *AdminService) target(ctx context.Context, actor domain.Principal, targetID string) (domain.User, error) {
	if actor.ID == "" {
		return domain.User{}, ErrUnauthenticated
	}
	if actor.Role != domain.RoleAdmin {
		return domain.User{}, ErrForbidden
	}
	if actor.ID == targetID {
		return domain.User{}, ErrForbidden
	}
	user, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	return *user, nil
}

func mapUserWrite(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
