package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/dreamwise/dreamwise-api/internal/core/domain"
	"github.com/dreamwise/dreamwise-api/internal/infra/config"
	"github.com/dreamwise/dreamwise-api/internal/infra/security"
	"github.com/dreamwise/dreamwise-api/internal/repository/memory"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sentCode struct {
	template string
	email    string
	code     string
}

type captureMailer struct {
	mu   sync.Mutex
	sent []sentCode
}

func (m *captureMailer) SendVerificationEmail(_ context.Context, email, _ string, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentCode{template: "verify", email: email, code: code})
	return nil
}

func (m *captureMailer) SendPasswordResetEmail(_ context.Context, email, _ string, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentCode{template: "reset", email: email, code: code})
	return nil
}

func (m *captureMailer) last(t *testing.T, template string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].template == template {
			return m.sent[i].code
		}
	}
	t.Fatalf("no %s email captured", template)
	return ""
}

type env struct {
	clock  *fakeClock
	store  *memory.Store
	revoke *memory.RevocationStore
	mailer *captureMailer
	tokens *TokenService
	auth   *AuthService
	hasher *security.PasswordHasher
}

func newEnv(t *testing.T) *env {
	t.Helper()

	clock := newFakeClock()
	log := zaptest.NewLogger(t)

	manager, err := security.NewTokenManager(testSecret, "dreamwise-test", time.Hour)
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	manager.WithClock(clock.Now)

	hasher, err := security.NewPasswordHasher(security.Argon2Config{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("password hasher: %v", err)
	}

	store := memory.NewStore()
	revocations := memory.NewRevocationStore()
	revocations.WithClock(clock.Now)
	otps := memory.NewOTPStore(3)
	otps.WithClock(clock.Now)

	tokens := NewTokenService(manager, revocations, log)
	tokens.WithClock(clock.Now)

	mailer := &captureMailer{}
	auth, err := NewAuthService(AuthDependencies{
		Settings: config.AuthSettings{VerificationTTL: time.Hour, ResetCodeTTL: 15 * time.Minute},
		Users:    store.Users,
		Hasher:   hasher,
		Tokens:   tokens,
		OTPs:     otps,
		Codes:    security.NewCodeHasher(testSecret),
		Mailer:   mailer,
		Logger:   log,
	})
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	auth.WithClock(clock.Now)
	auth.background = func(fn func()) { fn() }

	return &env{
		clock:  clock,
		store:  store,
		revoke: revocations,
		mailer: mailer,
		tokens: tokens,
		auth:   auth,
		hasher: hasher,
	}
}

// seedUser stores an active user directly, bypassing registration.
func (e *env) seedUser(t *testing.T, username string, role domain.Role) domain.User {
	t.Helper()
	hash, err := e.hasher.Hash("Dreams4ever!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	now := e.clock.Now()
	user := domain.User{
		ID:               username + "-id",
		Username:         username,
		Email:            username + "@example.com",
		PasswordHash:     hash,
		Role:             role,
		IsActive:         true,
		Profile:          domain.Profile{DisplayName: username},
		Preferences:      domain.DefaultPreferences(),
		TokensValidAfter: now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := e.store.Users.Create(context.Background(), user); err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return user
}
