package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dreamwise/dreamwise-api/internal/core/domain"
	"github.com/dreamwise/dreamwise-api/internal/transport/http/middleware"
	"github.com/dreamwise/dreamwise-api/internal/usecase"
)

// JournalHandler exposes dream journal endpoints.
type JournalHandler struct {
	journal   *usecase.JournalService
	responder *Responder
}

// NewJournalHandler constructs JournalHandler.
func NewJournalHandler(journal *usecase.JournalService, responder *Responder) *JournalHandler {
	return &JournalHandler{journal: journal, responder: responder}
}

// LoadEntry loads the entry named by :id for the ownership gate.
func (h *JournalHandler) LoadEntry() gin.HandlerFunc {
	return middleware.LoadResource[domain.JournalEntry]("id", h.journal.Load, h.responder.Error)
}

func journalQuery(c *gin.Context) (usecase.JournalQuery, error) {
	page, err := usecase.ParsePage(c.Query("page"), c.Query("limit"))
	if err != nil {
		return usecase.JournalQuery{}, err
	}
	return usecase.JournalQuery{
		Privacy:              c.Query("privacy"),
		Category:             c.Query("category"),
		Tag:                  c.Query("tag"),
		DreamType:            c.Query("dreamType"),
		SpiritualPerspective: c.Query("spiritualPerspective"),
		Search:               c.Query("search"),
		Page:                 page,
	}, nil
}

// List godoc
// @Summary List the caller's journal entries
// @Tags Journal
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size (1-100)"
// @Success 200 {object} JournalListResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/journal [get]
func (h *JournalHandler) List(c *gin.Context) {
	q, err := journalQuery(c)
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	principal, _ := middleware.PrincipalFrom(c)

	entries, info, err := h.journal.List(c.Request.Context(), principal, q)
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, JournalListResponse{Entries: toJournalEntries(entries), Pagination: toPagination(info)})
}

// ListPublic returns entries visible to the (possibly anonymous) caller.
func (h *JournalHandler) ListPublic(c *gin.Context) {
	q, err := journalQuery(c)
	if err != nil {
		h.responder.Error(c, err)
		return
	}

	entries, info, err := h.journal.ListPublic(c.Request.Context(), middleware.OptionalPrincipal(c), q)
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, JournalListResponse{Entries: toJournalEntries(entries), Pagination: toPagination(info)})
}

func (h *JournalHandler) Stats(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)
	stats, err := h.journal.Stats(c.Request.Context(), principal)
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toJournalStats(stats))
}

// Create godoc
// @Summary Record a dream
// @Tags Journal
// @Accept json
// @Produce json
// @Param request body JournalEntryRequest true "Entry"
// @Success 201 {object} JournalEntryResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/journal [post]
func (h *JournalHandler) Create(c *gin.Context) {
	var req JournalEntryRequest
	if err := bindJSON(c, &req); err != nil {
		h.responder.Error(c, err)
		return
	}
	principal, _ := middleware.PrincipalFrom(c)

	entry, err := h.journal.Create(c.Request.Context(), principal, req.input())
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, toJournalEntry(entry))
}

// Get applies the privacy rule for the caller.
func (h *JournalHandler) Get(c *gin.Context) {
	entry, err := h.journal.Get(c.Request.Context(), middleware.OptionalPrincipal(c), c.Param("id"))
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toJournalEntry(entry))
}

// Update expects LoadEntry and the ownership gate to have run.
func (h *JournalHandler) Update(c *gin.Context) {
	entry, ok := middleware.ResourceFrom[domain.JournalEntry](c)
	if !ok {
		h.responder.Error(c, usecase.ErrNotFound)
		return
	}
	var req JournalEntryRequest
	if err := bindJSON(c, &req); err != nil {
		h.responder.Error(c, err)
		return
	}
	principal, _ := middleware.PrincipalFrom(c)

	updated, err := h.journal.Update(c.Request.Context(), principal, entry, req.patch())
	if err != nil {
		h.responder.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toJournalEntry(updated))
}

func (h *JournalHandler) Delete(c *gin.Context) {
	entry, ok := middleware.ResourceFrom[domain.JournalEntry](c)
	if !ok {
		h.responder.Error(c, usecase.ErrNotFound)
		return
	}
	principal, _ := middleware.PrincipalFrom(c)

	if err := h.journal.Delete(c.Request.Context(), principal, entry); err != nil {
		h.responder.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "journal entry deleted"})
}
