package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dreamwise/dreamwise-api/internal/core/port"
	"github.com/dreamwise/dreamwise-api/internal/usecase"
)

// IdentifierFunc extracts the identifier used to scope rate limits (e.g., client IP).
type IdentifierFunc func(*gin.Context) (string, bool)

// RateLimitRule configures a sliding-window limit for a particular identifier.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
}

// RateLimitRecorder counts rejected requests by rule.
type RateLimitRecorder interface {
	RateLimited(rule string)
}

type RateLimiter struct {
	store   port.RateLimitStore
	metrics RateLimitRecorder
	logger  *zap.Logger
	now     func() time.Time
}

type ruleResult struct {
	rule       RateLimitRule
	allowed    bool
	remaining  int
	reset      time.Time
	retryAfter time.Duration
}

// RateLimitResponse is the 429 payload.
type RateLimitResponse struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retry_after"`
	TraceID    string `json:"trace_id,omitempty"`
}

// NewRateLimiter builds a reusable rate limiter middleware helper.
func NewRateLimiter(store port.RateLimitStore, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RateLimiter{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// WithMetrics records every rejection on m.
func (rl *RateLimiter) WithMetrics(m RateLimitRecorder) *RateLimiter {
	rl.metrics = m
	return rl
}

// ClientIPIdentifier builds an IdentifierFunc using the request's client IP.
func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		if ip == "" {
			return "", false
		}
		return "ip:" + ip, true
	}
}

// PrincipalOrIPIdentifier keys authenticated requests by principal and
// anonymous ones by client IP. It must run after the auth middleware.
func PrincipalOrIPIdentifier() IdentifierFunc {
	byIP := ClientIPIdentifier()
	return func(c *gin.Context) (string, bool) {
		if p, ok := PrincipalFrom(c); ok {
			return "user:" + p.ID, true
		}
		return byIP(c)
	}
}

// RateLimit returns a Gin middleware enforcing the provided rules. Store
// failures let the request through.
func (rl *RateLimiter) RateLimit(rules ...RateLimitRule) gin.HandlerFunc {
	filtered := make([]RateLimitRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Identifier == nil || rule.Limit <= 0 || rule.Window <= 0 {
			continue
		}
		if rule.Name == "" {
			rule.Name = "default"
		}
		filtered = append(filtered, rule)
	}

	return func(c *gin.Context) {
		if len(filtered) == 0 || rl.store == nil {
			c.Next()
			return
		}

		now := rl.now()
		var bestResult *ruleResult

		for _, rule := range filtered {
			identifier, ok := rule.Identifier(c)
			if !ok || identifier == "" {
				continue
			}

			key := fmt.Sprintf("%s:%s", rule.Name, identifier)

			res, err := rl.evaluateRule(c, rule, key, now)
			if err != nil {
				rl.logger.Warn("rate limit check failed",
					zap.String("rule", rule.Name),
					zap.String("trace_id", GetTraceID(c)),
					zap.Error(err),
				)
				continue
			}

			if !res.allowed {
				if rl.metrics != nil {
					rl.metrics.RateLimited(rule.Name)
				}
				rl.applyHeaders(c, res)
				rl.respondRateLimited(c, res)
				return
			}

			if bestResult == nil || res.remaining < bestResult.remaining ||
				(res.remaining == bestResult.remaining && res.reset.Before(bestResult.reset)) {
				snapshot := res
				bestResult = &snapshot
			}
		}

		if bestResult != nil {
			rl.applyHeaders(c, *bestResult)
		}

		c.Next()
	}
}

func (rl *RateLimiter) evaluateRule(c *gin.Context, rule RateLimitRule, key string, now time.Time) (ruleResult, error) {
	attempt, err := rl.store.Attempt(c.Request.Context(), key, rule.Limit, rule.Window, now)
	if err != nil {
		return ruleResult{}, err
	}

	result := ruleResult{
		rule:    rule,
		allowed: attempt.Allowed,
		reset:   now.Add(rule.Window),
	}
	if attempt.HasOldest {
		result.reset = attempt.Oldest.Add(rule.Window)
	}

	if attempt.Allowed {
		result.remaining = rule.Limit - attempt.Count
		if result.remaining < 0 {
			result.remaining = 0
		}
	}

	result.retryAfter = result.reset.Sub(now)
	if result.retryAfter < 0 {
		result.retryAfter = 0
	}
	return result, nil
}

func retrySeconds(d time.Duration) int {
	seconds := int(math.Ceil(d.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

func (rl *RateLimiter) applyHeaders(c *gin.Context, res ruleResult) {
	headers := c.Writer.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(res.rule.Limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(res.remaining))
	headers.Set("X-RateLimit-Reset", strconv.FormatInt(res.reset.Unix(), 10))

	if !res.allowed {
		headers.Set("Retry-After", strconv.Itoa(retrySeconds(res.retryAfter)))
	}
}

func (rl *RateLimiter) respondRateLimited(c *gin.Context, res ruleResult) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, RateLimitResponse{
		Error:      usecase.ErrTooManyAttempts.Error(),
		RetryAfter: retrySeconds(res.retryAfter),
		TraceID:    GetTraceID(c),
	})
}
