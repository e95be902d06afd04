package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dreamwise/dreamwise-api/internal/core/domain"
	"github.com/dreamwise/dreamwise-api/internal/core/port"
	"github.com/dreamwise/dreamwise-api/internal/infra/config"
	"github.com/dreamwise/dreamwise-api/internal/infra/logger"
	"github.com/dreamwise/dreamwise-api/internal/infra/security"
	"github.com/dreamwise/dreamwise-api/internal/repository"
)

const (
	PurposeEmailVerification = "email_verification"
	PurposePasswordReset     = "password_reset"

	verificationCodeLength = 6
	touchTimeout           = 2 * time.Second
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)

// AuthResult is returned by flows that end with a fresh token.
type AuthResult struct {
	Token IssuedToken
	User  domain.User
}

// RegisterInput carries the registration form.
type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
}

// ResolvedPrincipal is the outcome of authenticating a bearer token.
type ResolvedPrincipal struct {
	Principal domain.Principal
	Claims    *security.Claims
}

// AuthDependencies groups the collaborators of AuthService.
type AuthDependencies struct {
	Settings config.AuthSettings
	Users    port.UserRepository
	Hasher   *security.PasswordHasher
	Policy   *security.PasswordPolicy
	Tokens   *TokenService
	OTPs     port.OTPStore
	Codes    *security.CodeHasher
	Mailer   port.Mailer
	Events   port.EventPublisher
	Cache    *PrincipalCache
	Logger   *zap.Logger
}

// AuthService coordinates registration, login, credential recovery and
// principal resolution for authenticated requests.
type AuthService struct {
	settings config.AuthSettings
	users    port.UserRepository
	hasher   *security.PasswordHasher
	policy   *security.PasswordPolicy
	tokens   *TokenService
	otps     port.OTPStore
	codes    *security.CodeHasher
	mailer   port.Mailer
	events   port.EventPublisher
	cache    *PrincipalCache
	logger   *zap.Logger
	validate *validator.Validate
	now      func() time.Time
	// background runs fire-and-forget work; tests replace it to run inline.
	background func(func())

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(deps AuthDependencies) (*AuthService, error) {
	if deps.Users == nil || deps.Hasher == nil || deps.Tokens == nil || deps.OTPs == nil || deps.Codes == nil {
		return nil, fmt.Errorf("auth service: users, hasher, tokens, otp store and code hasher are required")
	}
	if deps.Policy == nil {
		deps.Policy = security.NewPasswordPolicy(security.DefaultPasswordPolicyConfig())
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Settings.VerificationTTL <= 0 {
		deps.Settings.VerificationTTL = 24 * time.Hour
	}
	if deps.Settings.ResetCodeTTL <= 0 {
		deps.Settings.ResetCodeTTL = 15 * time.Minute
	}

	return &AuthService{
		settings:   deps.Settings,
		users:      deps.Users,
		hasher:     deps.Hasher,
		policy:     deps.Policy,
		tokens:     deps.Tokens,
		otps:       deps.OTPs,
		codes:      deps.Codes,
		mailer:     deps.Mailer,
		events:     deps.Events,
		cache:      deps.Cache,
		logger:     deps.Logger,
		validate:   validator.New(),
		now:        func() time.Time { return time.Now().UTC() },
		background: func(fn func()) { go fn() },
	}, nil
}

// WithClock overrides the service clock for deterministic tests.
func (s *AuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Register creates an account, sends a verification code and signs the user in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	displayName := strings.TrimSpace(in.DisplayName)

	var errs fieldErrors
	if !usernamePattern.MatchString(username) {
		errs.add("username", "username must be 3-30 letters, digits or underscores", in.Username)
	}
	if err := s.validate.Var(email, "required,email,max=254"); err != nil {
		errs.add("email", "a valid email address is required", in.Email)
	}
	if len(displayName) > 100 {
		errs.add("displayName", "display name must be at most 100 characters", nil)
	}
	if err := s.policy.Validate(in.Password, username, email); err != nil {
		errs.add("password", passwordMessage(err), nil)
	}
	if err := errs.err(); err != nil {
		return AuthResult{}, err
	}

	if err := s.ensureAvailable(ctx, username, email); err != nil {
		return AuthResult{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	if displayName == "" {
		displayName = username
	}
	user := domain.User{
		ID:               uuid.NewString(),
		Username:         username,
		Email:            email,
		PasswordHash:     hash,
		Role:             domain.RoleUser,
		IsActive:         true,
		Profile:          domain.Profile{DisplayName: displayName},
		Preferences:      domain.DefaultPreferences(),
		TokensValidAfter: now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return AuthResult{}, &ConflictError{Field: "username", Message: "username or email already registered"}
		}
		return AuthResult{}, fmt.Errorf("create user: %w", err)
	}

	if err := s.sendVerification(ctx, user); err != nil {
		s.logger.Warn("verification email not sent",
			zap.String("user_id", user.ID),
			zap.String("email", logger.MaskEmail(user.Email)),
			zap.Error(err),
		)
	}

	if s.events != nil {
		event := domain.UserRegisteredEvent{
			EventID:      uuid.NewString(),
			UserID:       user.ID,
			Username:     user.Username,
			Email:        user.Email,
			RegisteredAt: now,
		}
		if err := s.events.PublishUserRegistered(ctx, event); err != nil {
			s.logger.Warn("publish user registered failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{Token: token, User: user.Sanitized()}, nil
}

func (s *AuthService) ensureAvailable(ctx context.Context, username, email string) error {
	for _, candidate := range []struct{ field, value, message string }{
		{"username", username, "username already taken"},
		{"email", email, "email already registered"},
	} {
		existing, err := s.users.GetByIdentifier(ctx, candidate.value)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return fmt.Errorf("lookup %s: %w", candidate.field, err)
		}
		if strings.EqualFold(existing.Username, candidate.value) || strings.EqualFold(existing.Email, candidate.value) {
			return &ConflictError{Field: candidate.field, Message: candidate.message}
		}
	}
	return nil
}

// Login authenticates by username or email.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (AuthResult, error) {
	identifier = strings.TrimSpace(identifier)
	var errs fieldErrors
	if identifier == "" {
		errs.add("identifier", "username or email is required", nil)
	}
	if password == "" {
		errs.add("password", "password is required", nil)
	}
	if err := errs.err(); err != nil {
		return AuthResult{}, err
	}

	user, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.burnHash(password)
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return AuthResult{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return AuthResult{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return AuthResult{}, ErrAccountDisabled
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return AuthResult{}, err
	}
	s.touch(user.ID)
	return AuthResult{Token: token, User: user.Sanitized()}, nil
}

// burnHash spends one hash verification so unknown identifiers take as long
// as wrong passwords.
func (s *AuthService) burnHash(password string) {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(uuid.NewString())
		if err == nil {
			s.dummyHash = hash
		}
	})
	if s.dummyHash != "" {
		_, _ = s.hasher.Verify(password, s.dummyHash)
	}
}

// Me returns the current user.
func (s *AuthService) Me(ctx context.Context, principal domain.Principal) (domain.User, error) {
	user, err := s.loadUser(ctx, principal.ID)
	if err != nil {
		return domain.User{}, err
	}
	return user.Sanitized(), nil
}

// Refresh rotates the presented token.
func (s *AuthService) Refresh(ctx context.Context, claims *security.Claims) (IssuedToken, error) {
	return s.tokens.Refresh(ctx, claims)
}

// Logout revokes the presented token.
func (s *AuthService) Logout(ctx context.Context, claims *security.Claims) error {
	return s.tokens.Revoke(ctx, claims, RevokeReasonLogout)
}

// VerifyEmail consumes the verification code. Verifying twice is a no-op.
func (s *AuthService) VerifyEmail(ctx context.Context, principal domain.Principal, code string) (domain.User, error) {
	user, err := s.loadUser(ctx, principal.ID)
	if err != nil {
		return domain.User{}, err
	}
	if user.EmailVerified {
		return user.Sanitized(), nil
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return domain.User{}, invalidField("code", "verification code is required", nil)
	}

	ok, err := s.otps.Consume(ctx, PurposeEmailVerification, user.ID, s.codes.Hash(PurposeEmailVerification, code))
	if err != nil {
		return domain.User{}, fmt.Errorf("consume verification code: %w", err)
	}
	if !ok {
		return domain.User{}, invalidField("code", "verification code is invalid or expired", nil)
	}

	now := s.now()
	if err := s.users.MarkEmailVerified(ctx, user.ID, now); err != nil {
		return domain.User{}, fmt.Errorf("mark email verified: %w", err)
	}
	user.EmailVerified = true
	user.UpdatedAt = now
	return user.Sanitized(), nil
}

// ResendVerification issues a new verification code, replacing the previous one.
func (s *AuthService) ResendVerification(ctx context.Context, principal domain.Principal) error {
	user, err := s.loadUser(ctx, principal.ID)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return invalidField("email", "email is already verified", nil)
	}
	return s.sendVerification(ctx, user)
}

func (s *AuthService) sendVerification(ctx context.Context, user domain.User) error {
	code, err := security.GenerateNumericCode(verificationCodeLength)
	if err != nil {
		return fmt.Errorf("generate verification code: %w", err)
	}
	if err := s.otps.Save(ctx, PurposeEmailVerification, user.ID, s.codes.Hash(PurposeEmailVerification, code), s.settings.VerificationTTL); err != nil {
		return fmt.Errorf("store verification code: %w", err)
	}
	if s.mailer == nil {
		return nil
	}
	if err := s.mailer.SendVerificationEmail(ctx, user.Email, user.Username, code); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	return nil
}

// ForgotPassword mails a reset code when the email belongs to an active
// account. It never reports whether the account exists.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) {
	email = strings.ToLower(strings.TrimSpace(email))
	log := s.logger.With(zap.String("email", logger.MaskEmail(email)))

	if err := s.validate.Var(email, "required,email"); err != nil {
		log.Debug("password reset requested for malformed email")
		return
	}

	user, err := s.users.GetByIdentifier(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Error("password reset lookup failed", zap.Error(err))
		}
		return
	}
	if !user.IsActive || !strings.EqualFold(user.Email, email) {
		return
	}

	code, err := security.GenerateNumericCode(verificationCodeLength)
	if err != nil {
		log.Error("generate reset code failed", zap.Error(err))
		return
	}
	if err := s.otps.Save(ctx, PurposePasswordReset, email, s.codes.Hash(PurposePasswordReset, code), s.settings.ResetCodeTTL); err != nil {
		log.Error("store reset code failed", zap.Error(err))
		return
	}
	if s.mailer == nil {
		return
	}
	if err := s.mailer.SendPasswordResetEmail(ctx, user.Email, user.Username, code); err != nil {
		log.Error("send reset email failed", zap.Error(err))
	}
}

// ResetPassword sets a new password using a mailed code. Every token issued
// before the reset stops working.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	code = strings.TrimSpace(code)

	var errs fieldErrors
	if email == "" {
		errs.add("email", "email is required", nil)
	}
	if code == "" {
		errs.add("code", "reset code is required", nil)
	}
	if err := errs.err(); err != nil {
		return err
	}

	badCode := invalidField("code", "reset code is invalid or expired", nil)

	user, err := s.users.GetByIdentifier(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return badCode
		}
		return fmt.Errorf("lookup user: %w", err)
	}
	if !user.IsActive || !strings.EqualFold(user.Email, email) {
		return badCode
	}

	if err := s.policy.Validate(newPassword, user.Username, user.Email); err != nil {
		return invalidField("newPassword", passwordMessage(err), nil)
	}

	ok, err := s.otps.Consume(ctx, PurposePasswordReset, email, s.codes.Hash(PurposePasswordReset, code))
	if err != nil {
		return fmt.Errorf("consume reset code: %w", err)
	}
	if !ok {
		return badCode
	}

	return s.setPassword(ctx, user.ID, newPassword)
}

// ChangePassword requires the current password, invalidates earlier tokens and
// returns a replacement for the caller.
func (s *AuthService) ChangePassword(ctx context.Context, principal domain.Principal, claims *security.Claims, currentPassword, newPassword string) (IssuedToken, error) {
	user, err := s.loadUser(ctx, principal.ID)
	if err != nil {
		return IssuedToken{}, err
	}

	if currentPassword == "" {
		return IssuedToken{}, invalidField("currentPassword", "current password is required", nil)
	}
	ok, err := s.hasher.Verify(currentPassword, user.PasswordHash)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return IssuedToken{}, invalidField("currentPassword", "current password is incorrect", nil)
	}
	if newPassword == currentPassword {
		return IssuedToken{}, invalidField("newPassword", "new password must differ from the current password", nil)
	}
	if err := s.policy.Validate(newPassword, user.Username, user.Email); err != nil {
		return IssuedToken{}, invalidField("newPassword", passwordMessage(err), nil)
	}

	if err := s.setPassword(ctx, user.ID, newPassword); err != nil {
		return IssuedToken{}, err
	}
	if claims != nil {
		if err := s.tokens.Revoke(ctx, claims, RevokeReasonChange); err != nil {
			s.logger.Warn("revoke token after password change failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	return s.tokens.Issue(user.ID)
}

func (s *AuthService) setPassword(ctx context.Context, userID, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}
	s.cache.Invalidate(userID)
	return nil
}

// ResolvePrincipal authenticates a bearer token. It rejects revoked tokens,
// missing or inactive users, and tokens issued before tokens_valid_after.
// last_active is written only when the principal is loaded from the store,
// so it trails real activity by at most the principal cache TTL.
func (s *AuthService) ResolvePrincipal(ctx context.Context, raw string) (ResolvedPrincipal, error) {
	claims, err := s.tokens.Verify(ctx, raw)
	if err != nil {
		return ResolvedPrincipal{}, err
	}

	snapshot, cached := s.cache.get(claims.UserID)
	if !cached {
		user, err := s.users.GetByID(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ResolvedPrincipal{}, ErrUnauthenticated
			}
			return ResolvedPrincipal{}, fmt.Errorf("load principal: %w", err)
		}
		s.cache.add(*user)
		snapshot = principalSnapshot{
			Principal:        user.Principal(),
			IsActive:         user.IsActive,
			TokensValidAfter: user.TokensValidAfter,
		}
		s.touch(user.ID)
	}

	if !snapshot.IsActive {
		return ResolvedPrincipal{}, ErrAccountDisabled
	}
	if claims.IssuedAtTime().Before(snapshot.TokensValidAfter.Truncate(time.Second)) {
		return ResolvedPrincipal{}, ErrTokenStale
	}

	return ResolvedPrincipal{Principal: snapshot.Principal, Claims: claims}, nil
}

// touch records last activity without delaying the request.
func (s *AuthService) touch(userID string) {
	at := s.now()
	s.background(func() {
		ctx, cancel := context.WithTimeout(context.Background(), touchTimeout)
		defer cancel()
		if err := s.users.TouchLastActive(ctx, userID, at); err != nil {
			s.logger.Warn("touch last active failed", zap.String("user_id", userID), zap.Error(err))
		}
	})
}

func (s *AuthService) loadUser(ctx context.Context, id string) (domain.User, error) {
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

func passwordMessage(err error) string {
	var pve *security.PasswordValidationError
	if errors.As(err, &pve) {
		return pve.Message
	}
	return "password does not meet requirements"
}
