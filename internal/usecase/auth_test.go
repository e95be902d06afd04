package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamwise/dreamwise-api/internal/core/domain"
)

func TestRegisterSignsInAndVerifiesEmail(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	result, err := e.auth.Register(ctx, RegisterInput{
		Username: "alice",
		Email:    "Alice@Example.com",
		Password: "Dreams4ever!",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", result.User.Email)
	assert.Equal(t, domain.RoleUser, result.User.Role)
	assert.Empty(t, result.User.PasswordHash)
	assert.Equal(t, "alice", result.User.Profile.DisplayName)

	resolved, err := e.auth.ResolvePrincipal(ctx, result.Token.Token)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, resolved.Principal.ID)

	principal := resolved.Principal
	_, err = e.auth.VerifyEmail(ctx, principal, "000000x")
	require.ErrorIs(t, err, ErrValidation)

	code := e.mailer.last(t, "verify")
	user, err := e.auth.VerifyEmail(ctx, principal, code)
	require.NoError(t, err)
	assert.True(t, user.EmailVerified)

	user, err = e.auth.VerifyEmail(ctx, principal, "anything")
	require.NoError(t, err, "verifying twice must be a no-op")
	assert.True(t, user.EmailVerified)

	err = e.auth.ResendVerification(ctx, principal)
	require.ErrorIs(t, err, ErrValidation)
}

func TestRegisterRejectsTakenUsernameAndEmail(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seedUser(t, "alice", domain.RoleUser)

	_, err := e.auth.Register(ctx, RegisterInput{Username: "ALICE", Email: "new@example.com", Password: "Dreams4ever!"})
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "username", conflict.Field)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = e.auth.Register(ctx, RegisterInput{Username: "alice2", Email: "alice@example.com", Password: "Dreams4ever!"})
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "email", conflict.Field)
}

func TestRegisterCollectsFieldErrors(t *testing.T) {
	e := newEnv(t)

	_, err := e.auth.Register(context.Background(), RegisterInput{Username: "a!", Email: "not-an-email", Password: "short"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	fields := make([]string, 0, len(verr.Details))
	for _, d := range verr.Details {
		fields = append(fields, d.Field)
	}
	assert.ElementsMatch(t, []string{"username", "email", "password"}, fields)
}

func TestLoginFailures(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	bob := e.seedUser(t, "bob", domain.RoleUser)

	_, err := e.auth.Login(ctx, "nobody", "Dreams4ever!")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = e.auth.Login(ctx, "bob", "wrong-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = e.auth.Login(ctx, "", "")
	require.ErrorIs(t, err, ErrValidation)

	require.NoError(t, e.store.Users.UpdateActive(ctx, bob.ID, false, e.clock.Now()))
	_, err = e.auth.Login(ctx, "bob@example.com", "Dreams4ever!")
	require.ErrorIs(t, err, ErrAccountDisabled)
}

func TestLoginTouchesLastActive(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seedUser(t, "carol", domain.RoleUser)

	_, err := e.auth.Login(ctx, "carol", "Dreams4ever!")
	require.NoError(t, err)

	user, err := e.store.Users.GetByID(ctx, "carol-id")
	require.NoError(t, err)
	require.NotNil(t, user.LastActive)
	assert.True(t, user.LastActive.Equal(e.clock.Now()))
}

func TestLogoutRevokesPresentedToken(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seedUser(t, "dave", domain.RoleUser)

	login, err := e.auth.Login(ctx, "dave", "Dreams4ever!")
	require.NoError(t, err)

	resolved, err := e.auth.ResolvePrincipal(ctx, login.Token.Token)
	require.NoError(t, err)

	require.NoError(t, e.auth.Logout(ctx, resolved.Claims))

	_, err = e.auth.ResolvePrincipal(ctx, login.Token.Token)
	require.ErrorIs(t, err, ErrTokenRevoked)
}

func TestRefreshRotatesToken(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seedUser(t, "erin", domain.RoleUser)

	login, err := e.auth.Login(ctx, "erin", "Dreams4ever!")
	require.NoError(t, err)
	resolved, err := e.auth.ResolvePrincipal(ctx, login.Token.Token)
	require.NoError(t, err)

	e.clock.Advance(time.Minute)
	fresh, err := e.auth.Refresh(ctx, resolved.Claims)
	require.NoError(t, err)
	assert.NotEqual(t, login.Token.Token, fresh.Token)
	assert.True(t, fresh.ExpiresAt.After(login.Token.ExpiresAt))

	_, err = e.auth.ResolvePrincipal(ctx, login.Token.Token)
	require.ErrorIs(t, err, ErrTokenRevoked)

	_, err = e.auth.ResolvePrincipal(ctx, fresh.Token)
	require.NoError(t, err)
}

func TestResetPasswordInvalidatesEarlierTokens(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seedUser(t, "frank", domain.RoleUser)

	login, err := e.auth.Login(ctx, "frank", "Dreams4ever!")
	require.NoError(t, err)

	e.clock.Advance(2 * time.Second)
	e.auth.ForgotPassword(ctx, "FRANK@example.com")
	code := e.mailer.last(t, "reset")

	err = e.auth.ResetPassword(ctx, "frank@example.com", "999999", "Nightfall#2026")
	require.ErrorIs(t, err, ErrValidation)

	require.NoError(t, e.auth.ResetPassword(ctx, "frank@example.com", code, "Nightfall#2026"))

	_, err = e.auth.ResolvePrincipal(ctx, login.Token.Token)
	require.ErrorIs(t, err, ErrTokenStale)

	_, err = e.auth.Login(ctx, "frank", "Dreams4ever!")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	relogin, err := e.auth.Login(ctx, "frank", "Nightfall#2026")
	require.NoError(t, err)
	_, err = e.auth.ResolvePrincipal(ctx, relogin.Token.Token)
	require.NoError(t, err)

	err = e.auth.ResetPassword(ctx, "frank@example.com", code, "Another#Pass99")
	require.ErrorIs(t, err, ErrValidation, "a reset code is single use")
}

func TestForgotPasswordIgnoresUnknownEmail(t *testing.T) {
	e := newEnv(t)

	e.auth.ForgotPassword(context.Background(), "ghost@example.com")
	e.auth.ForgotPassword(context.Background(), "not an email")

	assert.Empty(t, e.mailer.sent)
}

func TestChangePasswordReturnsFreshToken(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seedUser(t, "gina", domain.RoleUser)

	login, err := e.auth.Login(ctx, "gina", "Dreams4ever!")
	require.NoError(t, err)
	resolved, err := e.auth.ResolvePrincipal(ctx, login.Token.Token)
	require.NoError(t, err)

	e.clock.Advance(time.Second)
	_, err = e.auth.ChangePassword(ctx, resolved.Principal, resolved.Claims, "wrong", "Nightfall#2026")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "currentPassword", verr.Details[0].Field)

	fresh, err := e.auth.ChangePassword(ctx, resolved.Principal, resolved.Claims, "Dreams4ever!", "Nightfall#2026")
	require.NoError(t, err)

	_, err = e.auth.ResolvePrincipal(ctx, login.Token.Token)
	assert.True(t, errors.Is(err, ErrTokenRevoked) || errors.Is(err, ErrTokenStale), "old token accepted: %v", err)

	_, err = e.auth.ResolvePrincipal(ctx, fresh.Token)
	require.NoError(t, err)
}

func TestResolvePrincipalRejectsBadTokens(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	henry := e.seedUser(t, "henry", domain.RoleUser)

	_, err := e.auth.ResolvePrincipal(ctx, "not-a-jwt")
	require.ErrorIs(t, err, ErrTokenInvalid)

	issued, err := e.tokens.Issue(henry.ID)
	require.NoError(t, err)

	e.clock.Advance(2 * time.Hour)
	_, err = e.auth.ResolvePrincipal(ctx, issued.Token)
	require.ErrorIs(t, err, ErrTokenExpired)

	ghost, err := e.tokens.Issue("ghost-id")
	require.NoError(t, err)
	_, err = e.auth.ResolvePrincipal(ctx, ghost.Token)
	require.ErrorIs(t, err, ErrUnauthenticated)

	fresh, err := e.tokens.Issue(henry.ID)
	require.NoError(t, err)
	require.NoError(t, e.store.Users.UpdateActive(ctx, henry.ID, false, e.clock.Now()))
	_, err = e.auth.ResolvePrincipal(ctx, fresh.Token)
	require.ErrorIs(t, err, ErrAccountDisabled)
}

func TestResolvePrincipalUsesCacheUntilInvalidated(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ivy := e.seedUser(t, "ivy", domain.RoleUser)

	cache := NewPrincipalCache(16, time.Minute)
	e.auth.cache = cache

	issued, err := e.tokens.Issue(ivy.ID)
	require.NoError(t, err)
	resolved, err := e.auth.ResolvePrincipal(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, resolved.Principal.Role)

	require.NoError(t, e.store.Users.UpdateRole(ctx, ivy.ID, domain.RoleModerator, ivy.TokensValidAfter))
	resolved, err = e.auth.ResolvePrincipal(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, resolved.Principal.Role, "cached snapshot expected")

	cache.Invalidate(ivy.ID)
	resolved, err = e.auth.ResolvePrincipal(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleModerator, resolved.Principal.Role)
}

func TestResolvePrincipalTouchesLastActiveOnCacheMiss(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	jay := e.seedUser(t, "jay", domain.RoleUser)

	cache := NewPrincipalCache(16, time.Minute)
	e.auth.cache = cache

	issued, err := e.tokens.Issue(jay.ID)
	require.NoError(t, err)
	first := e.clock.Now()
	_, err = e.auth.ResolvePrincipal(ctx, issued.Token)
	require.NoError(t, err)

	lastActive := func() time.Time {
		t.Helper()
		user, err := e.store.Users.GetByID(ctx, jay.ID)
		require.NoError(t, err)
		require.NotNil(t, user.LastActive)
		return *user.LastActive
	}
	assert.True(t, lastActive().Equal(first))

	e.clock.Advance(5 * time.Second)
	_, err = e.auth.ResolvePrincipal(ctx, issued.Token)
	require.NoError(t, err)
	assert.True(t, lastActive().Equal(first), "cache hits do not write last_active")

	cache.Invalidate(jay.ID)
	_, err = e.auth.ResolvePrincipal(ctx, issued.Token)
	require.NoError(t, err)
	assert.True(t, lastActive().Equal(e.clock.Now()))
}
