package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamwise/dreamwise-api/internal/core/domain"
	"github.com/dreamwise/dreamwise-api/internal/core/port"
)

type fakeFileStore struct{}

func (fakeFileStore) PresignUpload(_ context.Context, ownerID, contentType string) (domain.UploadTarget, error) {
	if contentType != "image/png" {
		return domain.UploadTarget{}, fmt.Errorf("%w: %s", port.ErrUnsupportedContentType, contentType)
	}
	key := "avatars/" + ownerID + "/a.png"
	return domain.UploadTarget{
		Key:       key,
		UploadURL: "https://bucket.example.com/" + key + "?sig=1",
		PublicURL: "https://cdn.example.com/" + key,
		ExpiresAt: time.Now().Add(time.Minute),
	}, nil
}

func strPtr(s string) *string { return &s }

func TestUpdateProfileValidatesWebsite(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.seedUser(t, "alice", domain.RoleUser)
	svc := NewUserService(e.store.Users, e.store.Journal, nil, nil, nil)

	_, err := svc.UpdateProfile(ctx, alice.Principal(), ProfilePatch{Website: strPtr("javascript:alert(1)")})
	require.ErrorIs(t, err, ErrValidation)

	user, err := svc.UpdateProfile(ctx, alice.Principal(), ProfilePatch{
		Bio:     strPtr("  I dream in colour  "),
		Website: strPtr("https://alice.example.com"),
	})
	require.NoError(t, err)
	assert.Equal(t, "I dream in colour", user.Profile.Bio)
	assert.Equal(t, "alice", user.Profile.DisplayName)

	stored, err := e.store.Users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://alice.example.com", stored.Profile.Website)
}

func TestUpdatePreferences(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.seedUser(t, "alice", domain.RoleUser)
	svc := NewUserService(e.store.Users, e.store.Journal, nil, nil, nil)

	_, err := svc.UpdatePreferences(ctx, alice.Principal(), PreferencesPatch{Theme: strPtr("neon"), DefaultPrivacy: strPtr("everyone")})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Details, 2)

	off := false
	user, err := svc.UpdatePreferences(ctx, alice.Principal(), PreferencesPatch{
		Theme:              strPtr("Dark"),
		EmailNotifications: &off,
		DefaultPrivacy:     strPtr("public"),
	})
	require.NoError(t, err)
	assert.Equal(t, "dark", user.Preferences.Theme)
	assert.False(t, user.Preferences.EmailNotifications)
	assert.Equal(t, domain.PrivacyPublic, user.Preferences.DefaultPrivacy)
	assert.Equal(t, "en", user.Preferences.Language)
}

func TestPublicProfileHidesInactiveUsers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.seedUser(t, "alice", domain.RoleUser)
	svc := NewUserService(e.store.Users, e.store.Journal, nil, nil, nil)

	profile, err := svc.PublicProfile(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Username)

	require.NoError(t, e.store.Users.UpdateActive(ctx, alice.ID, false, e.clock.Now()))
	_, err = svc.PublicProfile(ctx, alice.ID)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.PublicProfile(ctx, "nobody")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUserStatsCombinesCounters(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.seedUser(t, "alice", domain.RoleUser)
	journal := newJournalService(e)
	svc := NewUserService(e.store.Users, e.store.Journal, nil, nil, nil)

	_, err := journal.Create(ctx, alice.Principal(), JournalInput{Title: "t", Content: "c", DreamType: "lucid"})
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, alice.Principal())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Counters.JournalEntries)
	assert.Equal(t, 1, stats.Journal.ByDreamType[domain.DreamTypeLucid])
}

func TestAvatarUploadURL(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.seedUser(t, "alice", domain.RoleUser)

	disabled := NewUserService(e.store.Users, e.store.Journal, nil, nil, nil)
	_, err := disabled.AvatarUploadURL(ctx, alice.Principal(), "image/png")
	require.ErrorIs(t, err, ErrFeatureUnavailable)

	svc := NewUserService(e.store.Users, e.store.Journal, fakeFileStore{}, nil, nil)
	_, err = svc.AvatarUploadURL(ctx, alice.Principal(), "application/pdf")
	require.ErrorIs(t, err, ErrValidation)

	target, err := svc.AvatarUploadURL(ctx, alice.Principal(), "IMAGE/PNG")
	require.NoError(t, err)
	assert.Contains(t, target.Key, alice.ID)
}

func TestAdminChangeRoleInvalidatesSessions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.seedUser(t, "root", domain.RoleAdmin)
	mod := e.seedUser(t, "mod", domain.RoleModerator)
	alice := e.seedUser(t, "alice", domain.RoleUser)

	cache := NewPrincipalCache(16, time.Minute)
	e.auth.cache = cache
	svc := NewAdminService(e.store.Users, cache, nil)
	svc.WithClock(e.clock.Now)

	issued, err := e.tokens.Issue(alice.ID)
	require.NoError(t, err)
	_, err = e.auth.ResolvePrincipal(ctx, issued.Token)
	require.NoError(t, err)

	_, err = svc.ChangeRole(ctx, mod.Principal(), alice.ID, "moderator")
	require.ErrorIs(t, err, ErrForbidden)
	_, err = svc.ChangeRole(ctx, admin.Principal(), admin.ID, "user")
	require.ErrorIs(t, err, ErrForbidden)
	_, err = svc.ChangeRole(ctx, admin.Principal(), alice.ID, "overlord")
	require.ErrorIs(t, err, ErrValidation)

	e.clock.Advance(time.Second)
	updated, err := svc.ChangeRole(ctx, admin.Principal(), alice.ID, "moderator")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleModerator, updated.Role)

	_, err = e.auth.ResolvePrincipal(ctx, issued.Token)
	require.ErrorIs(t, err, ErrTokenStale)

	fresh, err := e.tokens.Issue(alice.ID)
	require.NoError(t, err)
	resolved, err := e.auth.ResolvePrincipal(ctx, fresh.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleModerator, resolved.Principal.Role)
}

func TestAdminSetActiveAndList(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.seedUser(t, "root", domain.RoleAdmin)
	e.seedUser(t, "alice", domain.RoleUser)
	e.seedUser(t, "bob", domain.RoleUser)
	svc := NewAdminService(e.store.Users, nil, nil)
	svc.WithClock(e.clock.Now)

	updated, err := svc.SetActive(ctx, admin.Principal(), "bob-id", false)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	_, err = svc.SetActive(ctx, admin.Principal(), "ghost-id", false)
	require.ErrorIs(t, err, ErrNotFound)

	inactive, info, err := svc.ListUsers(ctx, UserQuery{Active: "false"})
	require.NoError(t, err)
	require.Len(t, inactive, 1)
	assert.Equal(t, "bob", inactive[0].Username)
	assert.Empty(t, inactive[0].PasswordHash)
	assert.Equal(t, 1, info.Total)

	users, _, err := svc.ListUsers(ctx, UserQuery{Role: "user", Page: domain.Page{Number: 1, Limit: 1}})
	require.NoError(t, err)
	assert.Len(t, users, 1)

	_, _, err = svc.ListUsers(ctx, UserQuery{Role: "king"})
	require.ErrorIs(t, err, ErrValidation)
}
