package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamwise/dreamwise-api/internal/core/domain"
)

func newJournalService(e *env) *JournalService {
	svc := NewJournalService(e.store, e.store.Journal, e.store.Users, nil, nil)
	svc.WithClock(e.clock.Now)
	return svc
}

func TestJournalCreateAppliesDefaultsAndCounts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.seedUser(t, "alice", domain.RoleUser)
	svc := newJournalService(e)

	entry, err := svc.Create(ctx, alice.Principal(), JournalInput{
		Title:   "Flying over the sea",
		Content: "I was weightless.",
		Tags:    []string{" Flying", "flying", "Sea "},
	})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, entry.UserID)
	assert.Equal(t, domain.PrivacyPrivate, entry.Privacy)
	assert.Equal(t, domain.DreamTypeNormal, entry.DreamType)
	assert.Equal(t, []string{"flying", "sea"}, entry.Tags)
	assert.True(t, entry.DreamDate.Equal(e.clock.Now()))

	user, err := e.store.Users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, user.Stats.JournalEntries)
}

func TestJournalCreateUsesPreferredPrivacy(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.seedUser(t, "alice", domain.RoleUser)
	prefs := domain.DefaultPreferences()
	prefs.DefaultPrivacy = domain.PrivacyFriends
	require.NoError(t, e.store.Users.UpdatePreferences(ctx, alice.ID, prefs, e.clock.Now()))

	entry, err := newJournalService(e).Create(ctx, alice.Principal(), JournalInput{Title: "t", Content: "c"})
	require.NoError(t, err)
	assert.Equal(t, domain.PrivacyFriends, entry.Privacy)
}

func TestJournalCreateValidates(t *testing.T) {
	e := newEnv(t)
	alice := e.seedUser(t, "alice", domain.RoleUser)
	lucidity := 11

	_, err := newJournalService(e).Create(context.Background(), alice.Principal(), JournalInput{
		DreamType: "daydream",
		Privacy:   "secret",
		Lucidity:  &lucidity,
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	fields := map[string]bool{}
	for _, d := range verr.Details {
		fields[d.Field] = true
	}
	for _, f := range []string{"title", "content", "dreamType", "privacy", "lucidity"} {
		assert.True(t, fields[f], "missing detail for %s", f)
	}

	user, err := e.store.Users.GetByID(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Zero(t, user.Stats.JournalEntries)
}

func TestJournalPrivacyOnReadPath(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.seedUser(t, "alice", domain.RoleUser)
	bob := e.seedUser(t, "bob", domain.RoleUser)
	mod := e.seedUser(t, "mod", domain.RoleModerator)
	svc := newJournalService(e)

	private, err := svc.Create(ctx, alice.Principal(), JournalInput{
		Title:          "Private dream",
		Content:        "secret",
		Interpretation: "only mine",
		PersonalNotes:  "notes",
		Privacy:        "private",
	})
	require.NoError(t, err)
	friends, err := svc.Create(ctx, alice.Principal(), JournalInput{Title: "Friends", Content: "c", Interpretation: "meaning", Privacy: "friends"})
	require.NoError(t, err)
	public, err := svc.Create(ctx, alice.Principal(), JournalInput{Title: "Public", Content: "c", PersonalNotes: "notes", Privacy: "public"})
	require.NoError(t, err)

	bobP := bob.Principal()
	modP := mod.Principal()
	aliceP := alice.Principal()

	_, err = svc.Get(ctx, &bobP, private.ID)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Get(ctx, nil, private.ID)
	require.ErrorIs(t, err, ErrForbidden)

	got, err := svc.Get(ctx, &modP, private.ID)
	require.NoError(t, err)
	assert.Equal(t, "only mine", got.Interpretation)
	assert.Equal(t, "notes", got.PersonalNotes)

	got, err = svc.Get(ctx, &aliceP, private.ID)
	require.NoError(t, err)
	assert.Equal(t, "only mine", got.Interpretation)

	got, err = svc.Get(ctx, &bobP, friends.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Interpretation)
	_, err = svc.Get(ctx, nil, friends.ID)
	require.ErrorIs(t, err, ErrForbidden)

	got, err = svc.Get(ctx, nil, public.ID)
	require.NoError(t, err)
	assert.Empty(t, got.PersonalNotes)

	_, err = svc.Get(ctx, &bobP, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestJournalListPublicScopes(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.seedUser(t, "alice", domain.RoleUser)
	bob := e.seedUser(t, "bob", domain.RoleUser)
	svc := newJournalService(e)

	for _, privacy := range []string{"private", "friends", "public"} {
		_, err := svc.Create(ctx, alice.Principal(), JournalInput{Title: privacy, Content: "c", Interpretation: "i", Privacy: privacy})
		require.NoError(t, err)
	}

	entries, info, err := svc.ListPublic(ctx, nil, JournalQuery{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.PrivacyPublic, entries[0].Privacy)
	assert.Empty(t, entries[0].Interpretation)
	assert.Equal(t, 1, info.Total)

	bobP := bob.Principal()
	entries, _, err = svc.ListPublic(ctx, &bobP, JournalQuery{})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, _, err = svc.ListPublic(ctx, &bobP, JournalQuery{Privacy: "private"})
	require.NoError(t, err)
	assert.Empty(t, entries)

	own, info, err := svc.List(ctx, alice.Principal(), JournalQuery{})
	require.NoError(t, err)
	assert.Len(t, own, 3)
	assert.Equal(t, 3, info.Total)

	none, _, err := svc.List(ctx, bob.Principal(), JournalQuery{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestJournalUpdateRequiresOwnerOrModerator(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.seedUser(t, "alice", domain.RoleUser)
	bob := e.seedUser(t, "bob", domain.RoleUser)
	admin := e.seedUser(t, "root", domain.RoleAdmin)
	svc := newJournalService(e)

	entry, err := svc.Create(ctx, alice.Principal(), JournalInput{Title: "t", Content: "c"})
	require.NoError(t, err)

	title := "stolen"
	_, err = svc.Update(ctx, bob.Principal(), entry, JournalPatch{Title: &title})
	require.ErrorIs(t, err, ErrForbidden)

	e.clock.Advance(time.Minute)
	title = "edited by admin"
	updated, err := svc.Update(ctx, admin.Principal(), entry, JournalPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, updated.UserID)
	assert.Equal(t, "edited by admin", updated.Title)

	stored, err := svc.Load(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited by admin", stored.Title)
	assert.Equal(t, alice.ID, stored.UserID)
}

func TestJournalDeleteIsSoftAndDecrements(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.seedUser(t, "alice", domain.RoleUser)
	svc := newJournalService(e)

	entry, err := svc.Create(ctx, alice.Principal(), JournalInput{Title: "t", Content: "c"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, alice.Principal(), entry))
	require.ErrorIs(t, svc.Delete(ctx, alice.Principal(), entry), ErrNotFound)

	_, err = svc.Load(ctx, entry.ID)
	require.ErrorIs(t, err, ErrNotFound)

	row, err := e.store.Journal.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, row.IsDeleted())

	user, err := e.store.Users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, user.Stats.JournalEntries)
}

func TestJournalStatsAndFilters(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.seedUser(t, "alice", domain.RoleUser)
	svc := newJournalService(e)

	_, err := svc.Create(ctx, alice.Principal(), JournalInput{Title: "Lucid one", Content: "c", DreamType: "lucid", Tags: []string{"water"}})
	require.NoError(t, err)
	_, err = svc.Create(ctx, alice.Principal(), JournalInput{Title: "Nightmare", Content: "c", DreamType: "nightmare", Privacy: "public"})
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, alice.Principal())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByDreamType[domain.DreamTypeLucid])
	assert.Equal(t, 1, stats.ByPrivacy[domain.PrivacyPublic])

	lucid, _, err := svc.List(ctx, alice.Principal(), JournalQuery{DreamType: "lucid"})
	require.NoError(t, err)
	require.Len(t, lucid, 1)
	assert.Equal(t, "Lucid one", lucid[0].Title)

	tagged, _, err := svc.List(ctx, alice.Principal(), JournalQuery{Tag: "WATER"})
	require.NoError(t, err)
	assert.Len(t, tagged, 1)

	_, _, err = svc.List(ctx, alice.Principal(), JournalQuery{DreamType: "daydream"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Details, 1)
	assert.Equal(t, "dreamType", verr.Details[0].Field, "detail names the query parameter")
}
