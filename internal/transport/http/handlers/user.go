package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dreamwise/dreamwise-api/internal/transport/http/middleware"
	"github.com/dreamwise/dreamwise-api/internal/usecase"
)

// UserHandler exposes profile, preference and public profile endpoints.
type UserHandler struct {
	users     *usecase.UserService
	responder *Responder
}

// NewUserHandler constructs UserHandler.
func NewUserHandler(users *usecase.UserService, responder *Responder) *UserHandler {
	return &UserHandler{users: users, responder: responder}
}

func (h *UserHandler) Profile(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)
	user, err := h.users.Profile(c.Request.Context(), principal)
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req ProfileRequest
	if err := bindJSON(c, &req); err != nil {
		h.responder.Error(c, err)
		return
	}
	principal, _ := middleware.PrincipalFrom(c)

	user, err := h.users.UpdateProfile(c.Request.Context(), principal, usecase.ProfilePatch{
		DisplayName:          req.DisplayName,
		Bio:                  req.Bio,
		Location:             req.Location,
		Website:              req.Website,
		SpiritualPerspective: req.SpiritualPerspective,
	})
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

func (h *UserHandler) UpdatePreferences(c *gin.Context) {
	var req PreferencesRequest
	if err := bindJSON(c, &req); err != nil {
		h.responder.Error(c, err)
		return
	}
	principal, _ := middleware.PrincipalFrom(c)

	user, err := h.users.UpdatePreferences(c.Request.Context(), principal, usecase.PreferencesPatch{
		Theme:              req.Theme,
		Language:           req.Language,
		EmailNotifications: req.EmailNotifications,
		DefaultPrivacy:     req.DefaultPrivacy,
	})
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

func (h *UserHandler) Stats(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)
	summary, err := h.users.Stats(c.Request.Context(), principal)
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, UserStatsResponse{
		Counters: StatsBody{
			JournalEntries: summary.Counters.JournalEntries,
			CommunityPosts: summary.Counters.CommunityPosts,
		},
		Journal: toJournalStats(summary.Journal),
	})
}

// AvatarUploadURL godoc
// @Summary Presign an avatar upload
// @Tags Users
// @Accept json
// @Produce json
// @Param request body AvatarUploadRequest true "Content type"
// @Success 200 {object} AvatarUploadResponse
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/user/avatar/upload-url [post]
func (h *UserHandler) AvatarUploadURL(c *gin.Context) {
	var req AvatarUploadRequest
	if err := bindJSON(c, &req); err != nil {
		h.responder.Error(c, err)
		return
	}
	principal, _ := middleware.PrincipalFrom(c)

	target, err := h.users.AvatarUploadURL(c.Request.Context(), principal, req.ContentType)
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, AvatarUploadResponse{
		Key:       target.Key,
		UploadURL: target.UploadURL,
		PublicURL: target.PublicURL,
		ExpiresAt: target.ExpiresAt,
	})
}

// PublicProfile returns another user's public view.
func (h *UserHandler) PublicProfile(c *gin.Context) {
	profile, err := h.users.PublicProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toPublicProfile(profile))
}
