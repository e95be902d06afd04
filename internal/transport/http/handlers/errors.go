package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dreamwise/dreamwise-api/internal/transport/http/middleware"
	"github.com/dreamwise/dreamwise-api/internal/usecase"
)

// ErrorResponse is the error envelope shared by every endpoint.
type ErrorResponse struct {
	Error   string        `json:"error"`
	Details []FieldDetail `json:"details,omitempty"`
	TraceID string        `json:"trace_id,omitempty"`
}

// FieldDetail describes one rejected input field.
type FieldDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: middleware.GetTraceID(c),
	}
}

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

var defaultCases = []ErrorCase{
	{Err: usecase.ErrUnauthenticated, Status: http.StatusUnauthorized, Message: "authentication required"},
	{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid credentials"},
	{Err: usecase.ErrAccountDisabled, Status: http.StatusUnauthorized, Message: "account is disabled"},
	{Err: usecase.ErrTokenInvalid, Status: http.StatusUnauthorized, Message: "invalid or expired token"},
	{Err: usecase.ErrTokenExpired, Status: http.StatusUnauthorized, Message: "invalid or expired token"},
	{Err: usecase.ErrTokenRevoked, Status: http.StatusUnauthorized, Message: "invalid or expired token"},
	{Err: usecase.ErrTokenStale, Status: http.StatusUnauthorized, Message: "invalid or expired token"},
	{Err: usecase.ErrForbidden, Status: http.StatusForbidden, Message: "forbidden"},
	{Err: usecase.ErrNotFound, Status: http.StatusNotFound, Message: "resource not found"},
	{Err: usecase.ErrTooManyAttempts, Status: http.StatusTooManyRequests, Message: "too many attempts"},
	{Err: usecase.ErrFeatureUnavailable, Status: http.StatusServiceUnavailable, Message: "feature unavailable"},
}

// Responder writes error envelopes. Unmapped errors become 500s whose
// message is only exposed outside production.
type Responder struct {
	exposeInternal bool
	logger         *zap.Logger
}

// NewResponder builds a Responder.
func NewResponder(exposeInternal bool, logger *zap.Logger) *Responder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Responder{exposeInternal: exposeInternal, logger: logger}
}

// Error resolves err against the default cases.
func (r *Responder) Error(c *gin.Context, err error) {
	r.RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "internal server error")
}

// RespondWithMappedError resolves err against cases first, then the default
// cases, and falls back to fallbackStatus.
func (r *Responder) RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	var verr *usecase.ValidationError
	if errors.As(err, &verr) {
		resp := NewErrorResponse(c, verr.Message)
		for _, d := range verr.Details {
			resp.Details = append(resp.Details, FieldDetail{Field: d.Field, Message: d.Message, Value: d.Value})
		}
		c.JSON(http.StatusBadRequest, resp)
		return
	}

	var conflict *usecase.ConflictError
	if errors.As(err, &conflict) {
		resp := NewErrorResponse(c, conflict.Message)
		if conflict.Field != "" {
			resp.Details = []FieldDetail{{Field: conflict.Field, Message: conflict.Message}}
		}
		c.JSON(http.StatusBadRequest, resp)
		return
	}

	for _, list := range [][]ErrorCase{cases, defaultCases} {
		for _, cs := range list {
			if cs.Err != nil && errors.Is(err, cs.Err) {
				c.JSON(cs.Status, NewErrorResponse(c, cs.Message))
				return
			}
		}
	}

	_ = c.Error(err)
	r.logger.Error("unhandled request error",
		zap.String("trace_id", middleware.GetTraceID(c)),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)

	message := fallbackMessage
	if r.exposeInternal {
		message = err.Error()
	}
	c.JSON(fallbackStatus, NewErrorResponse(c, message))
}
