package handlers

import (
	"time"

	"github.com/dreamwise/dreamwise-api/internal/core/domain"
	"github.com/dreamwise/dreamwise-api/internal/usecase"
)

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// PaginationResponse describes the page returned by list endpoints.
type PaginationResponse struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func toPagination(info domain.PageInfo) PaginationResponse {
	return PaginationResponse{Page: info.Page, Limit: info.Limit, Total: info.Total, Pages: info.Pages}
}

// ProfileBody is the public profile blob.
type ProfileBody struct {
	DisplayName          string `json:"displayName"`
	Bio                  string `json:"bio"`
	AvatarURL            string `json:"avatarUrl"`
	Location             string `json:"location"`
	Website              string `json:"website"`
	SpiritualPerspective string `json:"spiritualPerspective"`
}

// PreferencesBody is the preference blob returned to the owner.
type PreferencesBody struct {
	Theme              string         `json:"theme"`
	Language           string         `json:"language"`
	EmailNotifications bool           `json:"emailNotifications"`
	DefaultPrivacy     domain.Privacy `json:"defaultPrivacy"`
}

// StatsBody carries the denormalized counters.
type StatsBody struct {
	JournalEntries int `json:"journalEntries"`
	CommunityPosts int `json:"communityPosts"`
}

// UserResponse is the owner's (or an admin's) view of an account.
type UserResponse struct {
	ID            string          `json:"id"`
	Username      string          `json:"username"`
	Email         string          `json:"email"`
	Role          domain.Role     `json:"role"`
	IsActive      bool            `json:"isActive"`
	EmailVerified bool            `json:"emailVerified"`
	Profile       ProfileBody     `json:"profile"`
	Preferences   PreferencesBody `json:"preferences"`
	Stats         StatsBody       `json:"stats"`
	LastActive    *time.Time      `json:"lastActive,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func toProfileBody(p domain.Profile) ProfileBody {
	return ProfileBody{
		DisplayName:          p.DisplayName,
		Bio:                  p.Bio,
		AvatarURL:            p.AvatarURL,
		Location:             p.Location,
		Website:              p.Website,
		SpiritualPerspective: p.SpiritualPerspective,
	}
}

func toUserResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		Role:          u.Role,
		IsActive:      u.IsActive,
		EmailVerified: u.EmailVerified,
		Profile:       toProfileBody(u.Profile),
		Preferences: PreferencesBody{
			Theme:              u.Preferences.Theme,
			Language:           u.Preferences.Language,
			EmailNotifications: u.Preferences.EmailNotifications,
			DefaultPrivacy:     u.Preferences.DefaultPrivacy,
		},
		Stats:      StatsBody{JournalEntries: u.Stats.JournalEntries, CommunityPosts: u.Stats.CommunityPosts},
		LastActive: u.LastActive,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

// PublicProfileResponse is what other readers see of an account.
type PublicProfileResponse struct {
	ID        string      `json:"id"`
	Username  string      `json:"username"`
	Role      domain.Role `json:"role"`
	Profile   ProfileBody `json:"profile"`
	Stats     StatsBody   `json:"stats"`
	CreatedAt time.Time   `json:"createdAt"`
}

func toPublicProfile(p domain.PublicProfile) PublicProfileResponse {
	return PublicProfileResponse{
		ID:        p.ID,
		Username:  p.Username,
		Role:      p.Role,
		Profile:   toProfileBody(p.Profile),
		Stats:     StatsBody{JournalEntries: p.Stats.JournalEntries, CommunityPosts: p.Stats.CommunityPosts},
		CreatedAt: p.CreatedAt,
	}
}

// TokenResponse describes a freshly issued bearer token.
type TokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	ExpiresAt time.Time `json:"expiresAt"`
	ExpiresIn int       `json:"expiresIn"`
}

func toTokenResponse(t usecase.IssuedToken) TokenResponse {
	issuedAt := time.Now()
	if t.Claims != nil {
		issuedAt = t.Claims.IssuedAtTime()
	}
	expiresIn := int(t.ExpiresAt.Sub(issuedAt).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}
	return TokenResponse{Token: t.Token, TokenType: "Bearer", ExpiresAt: t.ExpiresAt, ExpiresIn: expiresIn}
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	TokenResponse
	User UserResponse `json:"user"`
}

// RegisterRequest defines the account registration payload.
type RegisterRequest struct {
	Username    string `json:"username" binding:"required"`
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"displayName"`
}

// LoginRequest accepts a username or email as identifier.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	Password   string `json:"password" binding:"required"`
}

func (r LoginRequest) identifier() string {
	switch {
	case r.Identifier != "":
		return r.Identifier
	case r.Email != "":
		return r.Email
	default:
		return r.Username
	}
}

// VerifyEmailRequest carries the mailed verification code.
type VerifyEmailRequest struct {
	Code string `json:"code" binding:"required"`
}

// ForgotPasswordRequest starts a password reset.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest completes a password reset.
type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required"`
	Code        string `json:"code" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// ChangePasswordRequest changes the password of the current user.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

// JournalEntryRequest is the create payload; on update every field is optional.
type JournalEntryRequest struct {
	Title                *string    `json:"title"`
	Content              *string    `json:"content"`
	DreamDate            *time.Time `json:"dreamDate"`
	Mood                 *string    `json:"mood"`
	DreamType            *string    `json:"dreamType"`
	Category             *string    `json:"category"`
	Tags                 *[]string  `json:"tags"`
	SpiritualPerspective *string    `json:"spiritualPerspective"`
	Interpretation       *string    `json:"interpretation"`
	PersonalNotes        *string    `json:"personalNotes"`
	Lucidity             *int       `json:"lucidity"`
	Privacy              *string    `json:"privacy"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (r JournalEntryRequest) input() usecase.JournalInput {
	in := usecase.JournalInput{
		Title:                deref(r.Title),
		Content:              deref(r.Content),
		DreamDate:            r.DreamDate,
		Mood:                 deref(r.Mood),
		DreamType:            deref(r.DreamType),
		Category:             deref(r.Category),
		SpiritualPerspective: deref(r.SpiritualPerspective),
		Interpretation:       deref(r.Interpretation),
		PersonalNotes:        deref(r.PersonalNotes),
		Lucidity:             r.Lucidity,
		Privacy:              deref(r.Privacy),
	}
	if r.Tags != nil {
		in.Tags = *r.Tags
	}
	return in
}

func (r JournalEntryRequest) patch() usecase.JournalPatch {
	return usecase.JournalPatch{
		Title:                r.Title,
		Content:              r.Content,
		DreamDate:            r.DreamDate,
		Mood:                 r.Mood,
		DreamType:            r.DreamType,
		Category:             r.Category,
		Tags:                 r.Tags,
		SpiritualPerspective: r.SpiritualPerspective,
		Interpretation:       r.Interpretation,
		PersonalNotes:        r.PersonalNotes,
		Lucidity:             r.Lucidity,
		Privacy:              r.Privacy,
	}
}

// JournalEntryResponse is a journal entry as seen by the caller. Owner-only
// fields are omitted when redacted.
type JournalEntryResponse struct {
	ID                   string           `json:"id"`
	UserID               string           `json:"userId"`
	Title                string           `json:"title"`
	Content              string           `json:"content"`
	DreamDate            time.Time        `json:"dreamDate"`
	Mood                 string           `json:"mood,omitempty"`
	DreamType            domain.DreamType `json:"dreamType"`
	Category             string           `json:"category,omitempty"`
	Tags                 []string         `json:"tags"`
	SpiritualPerspective string           `json:"spiritualPerspective,omitempty"`
	Interpretation       string           `json:"interpretation,omitempty"`
	PersonalNotes        string           `json:"personalNotes,omitempty"`
	Lucidity             int              `json:"lucidity"`
	Privacy              domain.Privacy   `json:"privacy"`
	CreatedAt            time.Time        `json:"createdAt"`
	UpdatedAt            time.Time        `json:"updatedAt"`
}

func toJournalEntry(e domain.JournalEntry) JournalEntryResponse {
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	return JournalEntryResponse{
		ID:                   e.ID,
		UserID:               e.UserID,
		Title:                e.Title,
		Content:              e.Content,
		DreamDate:            e.DreamDate,
		Mood:                 e.Mood,
		DreamType:            e.DreamType,
		Category:             e.Category,
		Tags:                 tags,
		SpiritualPerspective: e.SpiritualPerspective,
		Interpretation:       e.Interpretation,
		PersonalNotes:        e.PersonalNotes,
		Lucidity:             e.Lucidity,
		Privacy:              e.Privacy,
		CreatedAt:            e.CreatedAt,
		UpdatedAt:            e.UpdatedAt,
	}
}

func toJournalEntries(entries []domain.JournalEntry) []JournalEntryResponse {
	out := make([]JournalEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toJournalEntry(e))
	}
	return out
}

// JournalListResponse is the paginated journal envelope.
type JournalListResponse struct {
	Entries    []JournalEntryResponse `json:"entries"`
	Pagination PaginationResponse     `json:"pagination"`
}

// JournalStatsResponse summarizes the caller's entries.
type JournalStatsResponse struct {
	Total       int                      `json:"total"`
	ByDreamType map[domain.DreamType]int `json:"byDreamType"`
	ByPrivacy   map[domain.Privacy]int   `json:"byPrivacy"`
}

func toJournalStats(s domain.JournalStats) JournalStatsResponse {
	resp := JournalStatsResponse{Total: s.Total, ByDreamType: s.ByDreamType, ByPrivacy: s.ByPrivacy}
	if resp.ByDreamType == nil {
		resp.ByDreamType = map[domain.DreamType]int{}
	}
	if resp.ByPrivacy == nil {
		resp.ByPrivacy = map[domain.Privacy]int{}
	}
	return resp
}

// PostRequest is the create payload; on update every field is optional.
type PostRequest struct {
	Title                *string   `json:"title"`
	Content              *string   `json:"content"`
	Category             *string   `json:"category"`
	PostType             *string   `json:"postType"`
	Tags                 *[]string `json:"tags"`
	SpiritualPerspective *string   `json:"spiritualPerspective"`
	JournalEntryID       *string   `json:"journalEntryId"`
}

func (r PostRequest) input() usecase.PostInput {
	in := usecase.PostInput{
		Title:                deref(r.Title),
		Content:              deref(r.Content),
		Category:             deref(r.Category),
		PostType:             deref(r.PostType),
		SpiritualPerspective: deref(r.SpiritualPerspective),
		JournalEntryID:       deref(r.JournalEntryID),
	}
	if r.Tags != nil {
		in.Tags = *r.Tags
	}
	return in
}

func (r PostRequest) patch() usecase.PostPatch {
	return usecase.PostPatch{
		Title:                r.Title,
		Content:              r.Content,
		Category:             r.Category,
		PostType:             r.PostType,
		Tags:                 r.Tags,
		SpiritualPerspective: r.SpiritualPerspective,
	}
}

// ToggleRequest sets a boolean moderation flag. A missing value means true.
type ToggleRequest struct {
	Value *bool `json:"value"`
}

func (r ToggleRequest) value() bool {
	return r.Value == nil || *r.Value
}

// PostResponse is a community post.
type PostResponse struct {
	ID                   string              `json:"id"`
	AuthorID             string              `json:"authorId"`
	Title                string              `json:"title"`
	Content              string              `json:"content"`
	Category             domain.PostCategory `json:"category"`
	PostType             domain.PostType     `json:"postType"`
	Tags                 []string            `json:"tags"`
	SpiritualPerspective string              `json:"spiritualPerspective,omitempty"`
	JournalEntryID       *string             `json:"journalEntryId,omitempty"`
	Pinned               bool                `json:"pinned"`
	Featured             bool                `json:"featured"`
	ViewCount            int                 `json:"viewCount"`
	CreatedAt            time.Time           `json:"createdAt"`
	UpdatedAt            time.Time           `json:"updatedAt"`
}

func toPost(p domain.Post) PostResponse {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return PostResponse{
		ID:                   p.ID,
		AuthorID:             p.AuthorID,
		Title:                p.Title,
		Content:              p.Content,
		Category:             p.Category,
		PostType:             p.PostType,
		Tags:                 tags,
		SpiritualPerspective: p.SpiritualPerspective,
		JournalEntryID:       p.JournalEntryID,
		Pinned:               p.Pinned,
		Featured:             p.Featured,
		ViewCount:            p.ViewCount,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
}

// PostListResponse is the paginated community envelope.
type PostListResponse struct {
	Posts      []PostResponse     `json:"posts"`
	Pagination PaginationResponse `json:"pagination"`
}

// ProfileRequest updates profile fields.
type ProfileRequest struct {
	DisplayName          *string `json:"displayName"`
	Bio                  *string `json:"bio"`
	Location             *string `json:"location"`
	Website              *string `json:"website"`
	SpiritualPerspective *string `json:"spiritualPerspective"`
}

// PreferencesRequest updates preference fields.
type PreferencesRequest struct {
	Theme              *string `json:"theme"`
	Language           *string `json:"language"`
	EmailNotifications *bool   `json:"emailNotifications"`
	DefaultPrivacy     *string `json:"defaultPrivacy"`
}

// UserStatsResponse combines counters and journal aggregates.
type UserStatsResponse struct {
	Counters StatsBody            `json:"counters"`
	Journal  JournalStatsResponse `json:"journal"`
}

// AvatarUploadRequest names the content type of the avatar to upload.
type AvatarUploadRequest struct {
	ContentType string `json:"contentType" binding:"required"`
}

// AvatarUploadResponse is a presigned upload location.
type AvatarUploadResponse struct {
	Key       string    `json:"key"`
	UploadURL string    `json:"uploadUrl"`
	PublicURL string    `json:"publicUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// UserListResponse is the paginated admin listing.
type UserListResponse struct {
	Users      []UserResponse     `json:"users"`
	Pagination PaginationResponse `json:"pagination"`
}

// RoleRequest changes a user's role.
type RoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// StatusRequest activates or deactivates a user.
type StatusRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status    string            `json:"status"`
	StartedAt time.Time         `json:"started_at"`
	Checks    map[string]string `json:"checks,omitempty"`
}
