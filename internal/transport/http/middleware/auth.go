package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dreamwise/dreamwise-api/internal/core/domain"
	"github.com/dreamwise/dreamwise-api/internal/usecase"
)

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// PrincipalResolver authenticates a raw bearer token.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, raw string) (usecase.ResolvedPrincipal, error)
}

// AuthFailureRecorder counts rejected authentications by reason.
type AuthFailureRecorder interface {
	AuthFailure(reason string)
}

// Authenticator builds the mandatory and optional authentication middleware.
type Authenticator struct {
	resolver PrincipalResolver
	metrics  AuthFailureRecorder
	logger   *zap.Logger
}

// NewAuthenticator wires the resolver. metrics may be nil.
func NewAuthenticator(resolver PrincipalResolver, metrics AuthFailureRecorder, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{resolver: resolver, metrics: metrics, logger: logger}
}

type authFailure struct {
	status  int
	reason  string
	message string
}

// RequireAuth rejects the request with 401 unless it carries a valid token
// for an active principal.
func (a *Authenticator) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if failure := a.authenticate(c); failure != nil {
			a.record(c, failure)
			c.AbortWithStatusJSON(failure.status, newErrorResponse(c, failure.message))
			return
		}
		c.Next()
	}
}

// OptionalAuth attaches the principal when the request carries a valid token
// and otherwise continues anonymously.
func (a *Authenticator) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}
		if failure := a.authenticate(c); failure != nil {
			a.logger.Debug("optional authentication ignored",
				zap.String("trace_id", GetTraceID(c)),
				zap.String("reason", failure.reason),
			)
		}
		c.Next()
	}
}

func (a *Authenticator) authenticate(c *gin.Context) *authFailure {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return &authFailure{http.StatusUnauthorized, "missing_header", "missing authorization header"}
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return &authFailure{http.StatusUnauthorized, "malformed_header", "invalid authorization format: expected 'Bearer <token>'"}
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return &authFailure{http.StatusUnauthorized, "malformed_header", "missing access token"}
	}

	resolved, err := a.resolver.ResolvePrincipal(c.Request.Context(), token)
	if err != nil {
		return classifyAuthError(err)
	}

	setPrincipal(c, resolved.Principal, resolved.Claims)
	return nil
}

func classifyAuthError(err error) *authFailure {
	switch {
	case errors.Is(err, usecase.ErrTokenExpired):
		return &authFailure{http.StatusUnauthorized, "expired", "invalid or expired token"}
	case errors.Is(err, usecase.ErrTokenInvalid):
		return &authFailure{http.StatusUnauthorized, "invalid", "invalid or expired token"}
	case errors.Is(err, usecase.ErrTokenRevoked):
		return &authFailure{http.StatusUnauthorized, "revoked", "invalid or expired token"}
	case errors.Is(err, usecase.ErrTokenStale):
		return &authFailure{http.StatusUnauthorized, "stale", "invalid or expired token"}
	case errors.Is(err, usecase.ErrAccountDisabled):
		return &authFailure{http.StatusUnauthorized, "disabled", "account is disabled"}
	case errors.Is(err, usecase.ErrUnauthenticated):
		return &authFailure{http.StatusUnauthorized, "unknown_principal", "authentication required"}
	default:
		return &authFailure{http.StatusInternalServerError, "error", "authentication failed"}
	}
}

func (a *Authenticator) record(c *gin.Context, failure *authFailure) {
	if a.metrics != nil {
		a.metrics.AuthFailure(failure.reason)
	}
	log := a.logger.With(
		zap.String("trace_id", GetTraceID(c)),
		zap.String("path", c.Request.URL.Path),
		zap.String("reason", failure.reason),
	)
	if failure.status >= http.StatusInternalServerError {
		log.Error("authentication failed")
		return
	}
	log.Debug("authentication rejected")
}

// RequireRole checks if the authenticated principal holds any of the specified roles
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	allowed := make(map[domain.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *gin.Context) {
		principal, ok := PrincipalFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "authentication required"))
			return
		}

		if _, ok := allowed[principal.Role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden,
				newErrorResponse(c, "insufficient permissions"))
			return
		}

		c.Next()
	}
}

// RequireOwnershipOrModerator lets the request through when the principal owns
// the loaded resource or holds an elevated role.
func RequireOwnershipOrModerator() gin.HandlerFunc {
	return func(c *gin.Context) {
		resource, ok := ownedResource(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusNotFound,
				newErrorResponse(c, "resource not found"))
			return
		}

		principal, ok := PrincipalFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "authentication required"))
			return
		}

		if !domain.CanMutate(&principal, resource.OwnerID()) {
			c.AbortWithStatusJSON(http.StatusForbidden,
				newErrorResponse(c, "you do not have permission to modify this resource"))
			return
		}

		c.Next()
	}
}
