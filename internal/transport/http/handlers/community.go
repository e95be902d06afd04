package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dreamwise/dreamwise-api/internal/core/domain"
	"github.com/dreamwise/dreamwise-api/internal/transport/http/middleware"
	"github.com/dreamwise/dreamwise-api/internal/usecase"
)

// CommunityHandler exposes community post endpoints.
type CommunityHandler struct {
	community *usecase.CommunityService
	responder *Responder
}

// NewCommunityHandler constructs CommunityHandler.
func NewCommunityHandler(community *usecase.CommunityService, responder *Responder) *CommunityHandler {
	return &CommunityHandler{community: community, responder: responder}
}

// LoadPost loads the post named by :id for the ownership gate.
func (h *CommunityHandler) LoadPost() gin.HandlerFunc {
	return middleware.LoadResource[domain.Post]("id", h.community.Load, h.responder.Error)
}

// List godoc
// @Summary Browse community posts
// @Tags Community
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size (1-100)"
// @Param category query string false "Category filter"
// @Param featured query bool false "Featured only"
// @Success 200 {object} PostListResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/community/posts [get]
func (h *CommunityHandler) List(c *gin.Context) {
	page, err := usecase.ParsePage(c.Query("page"), c.Query("limit"))
	if err != nil {
		h.responder.Error(c, err)
		return
	}

	posts, info, err := h.community.List(c.Request.Context(), usecase.PostQuery{
		Author:               c.Query("author"),
		Category:             c.Query("category"),
		PostType:             c.Query("postType"),
		Tag:                  c.Query("tag"),
		SpiritualPerspective: c.Query("spiritualPerspective"),
		Search:               c.Query("search"),
		Featured:             c.Query("featured"),
		Page:                 page,
	})
	if err != nil {
		h.responder.Error(c, err)
		return
	}

	out := make([]PostResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, toPost(p))
	}
	c.JSON(http.StatusOK, PostListResponse{Posts: out, Pagination: toPagination(info)})
}

func (h *CommunityHandler) Create(c *gin.Context) {
	var req PostRequest
	if err := bindJSON(c, &req); err != nil {
		h.responder.Error(c, err)
		return
	}
	principal, _ := middleware.PrincipalFrom(c)

	post, err := h.community.Create(c.Request.Context(), principal, req.input())
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, toPost(post))
}

// Get counts a view on every successful read.
func (h *CommunityHandler) Get(c *gin.Context) {
	post, err := h.community.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toPost(post))
}

// Update expects LoadPost and the ownership gate to have run.
func (h *CommunityHandler) Update(c *gin.Context) {
	post, ok := middleware.ResourceFrom[domain.Post](c)
	if !ok {
		h.responder.Error(c, usecase.ErrNotFound)
		return
	}
	var req PostRequest
	if err := bindJSON(c, &req); err != nil {
		h.responder.Error(c, err)
		return
	}
	principal, _ := middleware.PrincipalFrom(c)

	updated, err := h.community.Update(c.Request.Context(), principal, post, req.patch())
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toPost(updated))
}

func (h *CommunityHandler) Delete(c *gin.Context) {
	post, ok := middleware.ResourceFrom[domain.Post](c)
	if !ok {
		h.responder.Error(c, usecase.ErrNotFound)
		return
	}
	principal, _ := middleware.PrincipalFrom(c)

	if err := h.community.Delete(c.Request.Context(), principal, post); err != nil {
		h.responder.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "post deleted"})
}

// Pin sets the pinned flag. The body is optional and defaults to true.
func (h *CommunityHandler) Pin(c *gin.Context) {
	h.toggle(c, h.community.SetPinned)
}

// Feature sets the featured flag. The body is optional and defaults to true.
func (h *CommunityHandler) Feature(c *gin.Context) {
	h.toggle(c, h.community.SetFeatured)
}

type toggleFunc func(ctx context.Context, actor domain.Principal, id string, value bool) (domain.Post, error)

func (h *CommunityHandler) toggle(c *gin.Context, apply toggleFunc) {
	var req ToggleRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		h.responder.Error(c, err)
		return
	}
	principal, _ := middleware.PrincipalFrom(c)

	post, err := apply(c.Request.Context(), principal, c.Param("id"), req.value())
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toPost(post))
}
