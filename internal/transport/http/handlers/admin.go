package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dreamwise/dreamwise-api/internal/transport/http/middleware"
	"github.com/dreamwise/dreamwise-api/internal/usecase"
)

// AdminHandler exposes user administration endpoints.
type AdminHandler struct {
	admin     *usecase.AdminService
	responder *Responder
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(admin *usecase.AdminService, responder *Responder) *AdminHandler {
	return &AdminHandler{admin: admin, responder: responder}
}

// ListUsers godoc
// @Summary List accounts
// @Tags Admin
// @Produce json
// @Param role query string false "Role filter"
// @Param active query bool false "Active filter"
// @Param search query string false "Username or email fragment"
// @Success 200 {object} UserListResponse
// @Failure 403 {object} ErrorResponse
// @Router /api/admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, err := usecase.ParsePage(c.Query("page"), c.Query("limit"))
	if err != nil {
		h.responder.Error(c, err)
		return
	}

	users, info, err := h.admin.ListUsers(c.Request.Context(), usecase.UserQuery{
		Role:   c.Query("role"),
		Active: c.Query("active"),
		Search: c.Query("search"),
		Page:   page,
	})
	if err != nil {
		h.responder.Error(c, err)
		return
	}

	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	c.JSON(http.StatusOK, UserListResponse{Users: out, Pagination: toPagination(info)})
}

func (h *AdminHandler) ChangeRole(c *gin.Context) {
	var req RoleRequest
	if err := bindJSON(c, &req); err != nil {
		h.responder.Error(c, err)
		return
	}
	actor, _ := middleware.PrincipalFrom(c)

	user, err := h.admin.ChangeRole(c.Request.Context(), actor, c.Param("id"), req.Role)
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

func (h *AdminHandler) SetStatus(c *gin.Context) {
	var req StatusRequest
	if err := bindJSON(c, &req); err != nil {
		h.responder.Error(c, err)
		return
	}
	actor, _ := middleware.PrincipalFrom(c)

	user, err := h.admin.SetActive(c.Request.Context(), actor, c.Param("id"), *req.IsActive)
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}
