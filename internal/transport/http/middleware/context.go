package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dreamwise/dreamwise-api/internal/core/domain"
	"github.com/dreamwise/dreamwise-api/internal/infra/logger"
	"github.com/dreamwise/dreamwise-api/internal/infra/security"
)

const (
	// TraceIDHeader is the HTTP header name for trace ID
	TraceIDHeader = "X-Trace-ID"
	// TraceIDKey is the context key for trace ID
	TraceIDKey = "trace_id"

	requestContextKey = "request_context"
	principalKey      = "principal"
	claimsKey         = "claims"
	resourceKey       = "resource"
)

// RequestContext holds request-scoped information
type RequestContext struct {
	TraceID   string
	UserID    string
	IP        string
	UserAgent string
}

// EnrichContext adds trace ID and request context to each request
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), logger.TraceIDKey{}, traceID))

		c.Set(requestContextKey, &RequestContext{
			TraceID:   traceID,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})

		c.Next()
	}
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(c *gin.Context) string {
	if traceID, exists := c.Get(TraceIDKey); exists {
		if id, ok := traceID.(string); ok {
			return id
		}
	}
	return ""
}

// GetRequestContext retrieves the full request context
func GetRequestContext(c *gin.Context) *RequestContext {
	if ctx, exists := c.Get(requestContextKey); exists {
		if reqCtx, ok := ctx.(*RequestContext); ok {
			return reqCtx
		}
	}
	return &RequestContext{}
}

func setPrincipal(c *gin.Context, principal domain.Principal, claims *security.Claims) {
	c.Set(principalKey, principal)
	c.Set(claimsKey, claims)
	GetRequestContext(c).UserID = principal.ID
}

// PrincipalFrom returns the authenticated principal, if any.
func PrincipalFrom(c *gin.Context) (domain.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return domain.Principal{}, false
	}
	p, ok := v.(domain.Principal)
	return p, ok && p.ID != ""
}

// OptionalPrincipal returns nil for anonymous requests.
func OptionalPrincipal(c *gin.Context) *domain.Principal {
	p, ok := PrincipalFrom(c)
	if !ok {
		return nil
	}
	return &p
}

// ClaimsFrom returns the verified claims of the presented token.
func ClaimsFrom(c *gin.Context) (*security.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*security.Claims)
	return claims, ok && claims != nil
}

// SetResource stores the loaded resource for later gates and handlers.
func SetResource[T domain.Owned](c *gin.Context, resource T) {
	c.Set(resourceKey, resource)
}

// ResourceFrom returns the resource stored by SetResource when it has type T.
func ResourceFrom[T domain.Owned](c *gin.Context) (T, bool) {
	var zero T
	v, ok := c.Get(resourceKey)
	if !ok {
		return zero, false
	}
	resource, ok := v.(T)
	return resource, ok
}

func ownedResource(c *gin.Context) (domain.Owned, bool) {
	v, ok := c.Get(resourceKey)
	if !ok {
		return nil, false
	}
	owned, ok := v.(domain.Owned)
	return owned, ok
}

// LoaderFunc fetches the resource named by a path parameter.
type LoaderFunc[T domain.Owned] func(ctx context.Context, id string) (T, error)

// LoadResource loads the resource named by the param path parameter and
// stores it with SetResource. Failures are handed to onError, which must
// write the response.
func LoadResource[T domain.Owned](param string, load LoaderFunc[T], onError func(*gin.Context, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		resource, err := load(c.Request.Context(), c.Param(param))
		if err != nil {
			onError(c, err)
			c.Abort()
			return
		}
		SetResource(c, resource)
		c.Next()
	}
}
