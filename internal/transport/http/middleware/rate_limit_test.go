package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/dreamwise/dreamwise-api/internal/core/domain"
	"github.com/dreamwise/dreamwise-api/internal/core/port"
	"github.com/dreamwise/dreamwise-api/internal/repository/memory"
)

type failingRateLimitStore struct{ calls int }

func (f *failingRateLimitStore) Attempt(context.Context, string, int, time.Duration, time.Time) (port.RateLimitResult, error) {
	f.calls++
	return port.RateLimitResult{}, errors.New("redis down")
}

type countingRecorder struct{ rules []string }

func (r *countingRecorder) RateLimited(rule string) { r.rules = append(r.rules, rule) }

func fixedIdentifier(id string) IdentifierFunc {
	return func(*gin.Context) (string, bool) { return id, true }
}

func newLimitedRouter(t *testing.T, limiter *RateLimiter, rules ...RateLimitRule) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(limiter.RateLimit(rules...))
	router.POST("/login", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func post(router http.Handler) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/login", nil))
	return rr
}

func TestRateLimiterWindowBoundary(t *testing.T) {
	now := time.Date(2025, 10, 12, 10, 0, 0, 0, time.UTC)
	recorder := &countingRecorder{}
	limiter := NewRateLimiter(memory.NewRateLimitStore(), zaptest.NewLogger(t)).
		WithClock(func() time.Time { return now }).
		WithMetrics(recorder)

	router := newLimitedRouter(t, limiter, RateLimitRule{
		Name:       "login",
		Limit:      3,
		Window:     time.Minute,
		Identifier: fixedIdentifier("ip:192.0.2.1"),
	})

	for i := 0; i < 3; i++ {
		rr := post(router)
		if rr.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200, got %d", i+1, rr.Code)
		}
		if got, want := rr.Header().Get("X-RateLimit-Remaining"), strconv.Itoa(2-i); got != want {
			t.Fatalf("attempt %d: expected remaining %s, got %q", i+1, want, got)
		}
		now = now.Add(10 * time.Second)
	}

	rr := post(router)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after limit, got %d", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "30" {
		t.Fatalf("expected retry-after 30, got %q", got)
	}
	if got := rr.Header().Get("X-RateLimit-Limit"); got != "3" {
		t.Fatalf("expected limit header 3, got %q", got)
	}

	var body RateLimitResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.RetryAfter != 30 || body.Error == "" {
		t.Fatalf("unexpected 429 body %+v", body)
	}
	if len(recorder.rules) != 1 || recorder.rules[0] != "login" {
		t.Fatalf("expected one login rejection recorded, got %v", recorder.rules)
	}

	now = now.Add(31 * time.Second)
	if rr := post(router); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 once the oldest attempt left the window, got %d", rr.Code)
	}
}

func TestRateLimiterKeysRulesSeparately(t *testing.T) {
	now := time.Date(2025, 10, 12, 10, 0, 0, 0, time.UTC)
	store := memory.NewRateLimitStore()
	limiter := NewRateLimiter(store, zaptest.NewLogger(t)).WithClock(func() time.Time { return now })

	first := newLimitedRouter(t, limiter, RateLimitRule{Name: "login", Limit: 1, Window: time.Minute, Identifier: fixedIdentifier("ip:a")})
	second := newLimitedRouter(t, limiter, RateLimitRule{Name: "login", Limit: 1, Window: time.Minute, Identifier: fixedIdentifier("ip:b")})
	other := newLimitedRouter(t, limiter, RateLimitRule{Name: "register", Limit: 1, Window: time.Minute, Identifier: fixedIdentifier("ip:a")})

	if rr := post(first); rr.Code != http.StatusOK {
		t.Fatalf("expected first attempt allowed, got %d", rr.Code)
	}
	if rr := post(first); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second attempt for ip:a rejected, got %d", rr.Code)
	}
	if rr := post(second); rr.Code != http.StatusOK {
		t.Fatalf("expected ip:b unaffected, got %d", rr.Code)
	}
	if rr := post(other); rr.Code != http.StatusOK {
		t.Fatalf("expected register rule unaffected, got %d", rr.Code)
	}
}

func TestRateLimiterFailsOpenOnStoreError(t *testing.T) {
	store := &failingRateLimitStore{}
	limiter := NewRateLimiter(store, zaptest.NewLogger(t))

	router := newLimitedRouter(t, limiter, RateLimitRule{
		Name:       "login",
		Limit:      1,
		Window:     time.Minute,
		Identifier: fixedIdentifier("ip:192.0.2.1"),
	})

	for i := 0; i < 3; i++ {
		if rr := post(router); rr.Code != http.StatusOK {
			t.Fatalf("expected 200 when failing open, got %d", rr.Code)
		}
	}
	if store.calls != 3 {
		t.Fatalf("expected the store to be consulted every time, got %d", store.calls)
	}
}

func TestPrincipalOrIPIdentifier(t *testing.T) {
	gin.SetMode(gin.TestMode)
	identify := PrincipalOrIPIdentifier()

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "198.51.100.7:4000"

	if id, ok := identify(c); !ok || id != "ip:198.51.100.7" {
		t.Fatalf("expected ip identifier, got %q ok=%v", id, ok)
	}

	setPrincipal(c, domain.Principal{ID: "alice-id", Role: domain.RoleUser}, nil)
	if id, ok := identify(c); !ok || id != "user:alice-id" {
		t.Fatalf("expected principal identifier, got %q ok=%v", id, ok)
	}
}
