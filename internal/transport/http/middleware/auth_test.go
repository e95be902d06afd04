package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/dreamwise/dreamwise-api/internal/core/domain"
	"github.com/dreamwise/dreamwise-api/internal/infra/security"
	"github.com/dreamwise/dreamwise-api/internal/usecase"
)

type stubResolver struct {
	principals map[string]domain.Principal
	errs       map[string]error
}

func (s stubResolver) ResolvePrincipal(_ context.Context, raw string) (usecase.ResolvedPrincipal, error) {
	if err, ok := s.errs[raw]; ok {
		return usecase.ResolvedPrincipal{}, err
	}
	p, ok := s.principals[raw]
	if !ok {
		return usecase.ResolvedPrincipal{}, usecase.ErrTokenInvalid
	}
	return usecase.ResolvedPrincipal{Principal: p, Claims: &security.Claims{UserID: p.ID}}, nil
}

type reasonRecorder struct{ reasons []string }

func (r *reasonRecorder) AuthFailure(reason string) { r.reasons = append(r.reasons, reason) }

type ownedThing struct{ owner string }

func (o ownedThing) OwnerID() string { return o.owner }

func newStubResolver() stubResolver {
	return stubResolver{
		principals: map[string]domain.Principal{
			"alice-token": {ID: "alice", Role: domain.RoleUser},
			"bob-token":   {ID: "bob", Role: domain.RoleUser},
			"mod-token":   {ID: "mod", Role: domain.RoleModerator},
			"admin-token": {ID: "root", Role: domain.RoleAdmin},
		},
		errs: map[string]error{
			"expired-token":  usecase.ErrTokenExpired,
			"revoked-token":  usecase.ErrTokenRevoked,
			"stale-token":    usecase.ErrTokenStale,
			"disabled-token": usecase.ErrAccountDisabled,
			"broken-token":   errors.New("database unavailable"),
		},
	}
}

func doRequest(router http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestRequireAuthRejections(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := &reasonRecorder{}
	auth := NewAuthenticator(newStubResolver(), recorder, zaptest.NewLogger(t))

	router := gin.New()
	router.Use(EnrichContext())
	router.GET("/me", auth.RequireAuth(), func(c *gin.Context) {
		p, _ := PrincipalFrom(c)
		claims, _ := ClaimsFrom(c)
		c.JSON(http.StatusOK, gin.H{"id": p.ID, "uid": claims.UserID})
	})

	tests := []struct {
		name   string
		header string
		status int
		reason string
	}{
		{name: "missing header", status: http.StatusUnauthorized, reason: "missing_header"},
		{name: "wrong scheme", header: "Basic abc", status: http.StatusUnauthorized, reason: "malformed_header"},
		{name: "no token", header: "Bearer ", status: http.StatusUnauthorized, reason: "malformed_header"},
		{name: "garbage", header: "Bearer nope", status: http.StatusUnauthorized, reason: "invalid"},
		{name: "expired", header: "Bearer expired-token", status: http.StatusUnauthorized, reason: "expired"},
		{name: "revoked", header: "Bearer revoked-token", status: http.StatusUnauthorized, reason: "revoked"},
		{name: "stale", header: "Bearer stale-token", status: http.StatusUnauthorized, reason: "stale"},
		{name: "disabled", header: "Bearer disabled-token", status: http.StatusUnauthorized, reason: "disabled"},
		{name: "store failure", header: "Bearer broken-token", status: http.StatusInternalServerError, reason: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder.reasons = nil
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rr.Code)
			}
			var body ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Error == "" || body.TraceID == "" {
				t.Fatalf("expected error and trace id, got %+v", body)
			}
			if len(recorder.reasons) != 1 || recorder.reasons[0] != tt.reason {
				t.Fatalf("expected reason %q, got %v", tt.reason, recorder.reasons)
			}
		})
	}

	rr := doRequest(router, http.MethodGet, "/me", "alice-token")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for valid token, got %d", rr.Code)
	}
}

func TestOptionalAuthContinuesAnonymously(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := NewAuthenticator(newStubResolver(), nil, zaptest.NewLogger(t))

	router := gin.New()
	router.GET("/feed", auth.OptionalAuth(), func(c *gin.Context) {
		if p := OptionalPrincipal(c); p != nil {
			c.String(http.StatusOK, p.ID)
			return
		}
		c.String(http.StatusOK, "anonymous")
	})

	for token, want := range map[string]string{"": "anonymous", "nope": "anonymous", "expired-token": "anonymous", "bob-token": "bob"} {
		rr := doRequest(router, http.MethodGet, "/feed", token)
		if rr.Code != http.StatusOK || rr.Body.String() != want {
			t.Fatalf("token %q: expected 200 %q, got %d %q", token, want, rr.Code, rr.Body.String())
		}
	}
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := NewAuthenticator(newStubResolver(), nil, nil)

	router := gin.New()
	router.GET("/admin", auth.RequireAuth(), RequireRole(domain.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.GET("/unguarded", RequireRole(domain.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	if rr := doRequest(router, http.MethodGet, "/admin", "mod-token"); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for moderator, got %d", rr.Code)
	}
	if rr := doRequest(router, http.MethodGet, "/admin", "admin-token"); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", rr.Code)
	}
	if rr := doRequest(router, http.MethodGet, "/unguarded", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without principal, got %d", rr.Code)
	}
}

func TestRequireOwnershipOrModerator(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := NewAuthenticator(newStubResolver(), nil, nil)

	load := func(_ context.Context, id string) (ownedThing, error) {
		if id == "missing" {
			return ownedThing{}, usecase.ErrNotFound
		}
		return ownedThing{owner: "alice"}, nil
	}
	onError := func(c *gin.Context, err error) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	}

	router := gin.New()
	router.PUT("/things/:id",
		auth.RequireAuth(),
		LoadResource[ownedThing]("id", load, onError),
		RequireOwnershipOrModerator(),
		func(c *gin.Context) {
			thing, ok := ResourceFrom[ownedThing](c)
			if !ok {
				c.Status(http.StatusInternalServerError)
				return
			}
			c.String(http.StatusOK, thing.owner)
		},
	)
	router.DELETE("/unloaded", auth.RequireAuth(), RequireOwnershipOrModerator(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	cases := []struct {
		path   string
		token  string
		status int
	}{
		{"/things/1", "alice-token", http.StatusOK},
		{"/things/1", "bob-token", http.StatusForbidden},
		{"/things/1", "mod-token", http.StatusOK},
		{"/things/1", "admin-token", http.StatusOK},
		{"/things/missing", "alice-token", http.StatusNotFound},
	}
	for _, tc := range cases {
		if rr := doRequest(router, http.MethodPut, tc.path, tc.token); rr.Code != tc.status {
			t.Fatalf("%s as %s: expected %d, got %d", tc.path, tc.token, tc.status, rr.Code)
		}
	}

	if rr := doRequest(router, http.MethodDelete, "/unloaded", "alice-token"); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when no resource was loaded, got %d", rr.Code)
	}
}
