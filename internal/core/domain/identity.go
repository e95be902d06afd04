package domain

import (
	"strings"
	"time"
)

// Role enumerates the privilege levels a principal can hold.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// ParseRole normalizes the supplied value into a known role.
func ParseRole(value string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	return role, role.Valid()
}

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// IsElevated reports whether the role may act on resources owned by others.
func (r Role) IsElevated() bool {
	return r == RoleModerator || r == RoleAdmin
}

// Profile holds the free-form public profile of a user.
type Profile struct {
	DisplayName          string
	Bio                  string
	AvatarURL            string
	Location             string
	Website              string
	SpiritualPerspective string
}

// Preferences holds per-user settings that drive client behaviour.
type Preferences struct {
	Theme              string
	Language           string
	EmailNotifications bool
	DefaultPrivacy     Privacy
}

// DefaultPreferences returns the preferences assigned at registration.
func DefaultPreferences() Preferences {
	return Preferences{
		Theme:              "light",
		Language:           "en",
		EmailNotifications: true,
		DefaultPrivacy:     PrivacyPrivate,
	}
}

// StatField names a denormalized counter on the user row.
type StatField string

const (
	StatJournalEntries StatField = "journal_entries"
	StatCommunityPosts StatField = "community_posts"
)

// UserStats aggregates counters maintained alongside resource writes.
type UserStats struct {
	JournalEntries int
	CommunityPosts int
}

// User mirrors the persisted representation in the users table.
type User struct {
	ID               string
	Username         string
	Email            string
	PasswordHash     string
	Role             Role
	IsActive         bool
	EmailVerified    bool
	Profile          Profile
	Preferences      Preferences
	Stats            UserStats
	LastActive       *time.Time
	TokensValidAfter time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Sanitized returns a copy safe to hand to the transport layer.
func (u User) Sanitized() User {
	u.PasswordHash = ""
	return u
}

// Principal returns the authorization view of the user.
func (u User) Principal() Principal {
	return Principal{ID: u.ID, Role: u.Role}
}

// UserFilter narrows admin user listings.
type UserFilter struct {
	Role   Role
	Active *bool
	Search string
	Page   Page
}

// PublicProfile is the view of a user exposed to other readers.
type PublicProfile struct {
	ID        string
	Username  string
	Role      Role
	Profile   Profile
	Stats     UserStats
	CreatedAt time.Time
}
