package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dreamwise/dreamwise-api/internal/core/port"
	"github.com/dreamwise/dreamwise-api/internal/infra/security"
)

const (
	RevokeReasonLogout  = "logout"
	RevokeReasonRefresh = "refresh"
	RevokeReasonChange  = "password_change"
)

// IssuedToken is a signed bearer token and its claims.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
	Claims    *security.Claims
}

// TokenRevocationObserver is notified after a token is revoked.
type TokenRevocationObserver interface {
	TokenRevoked()
}

// TokenService issues, verifies, refreshes and revokes bearer tokens.
type TokenService struct {
	manager     *security.TokenManager
	revocations port.RevocationStore
	observer    TokenRevocationObserver
	logger      *zap.Logger
	now         func() time.Time
}

// NewTokenService constructs a TokenService. A nil revocation store disables
// revocation checks, which leaves logout without effect until expiry.
func NewTokenService(manager *security.TokenManager, revocations port.RevocationStore, logger *zap.Logger) *TokenService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenService{
		manager:     manager,
		revocations: revocations,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock for deterministic tests.
func (s *TokenService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithObserver registers a revocation observer such as a metrics sink.
func (s *TokenService) WithObserver(observer TokenRevocationObserver) {
	s.observer = observer
}

// Issue signs a new token for userID.
func (s *TokenService) Issue(userID string) (IssuedToken, error) {
	raw, claims, err := s.manager.Issue(userID)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("issue token: %w", err)
	}
	return IssuedToken{Token: raw, ExpiresAt: claims.ExpiresAtTime(), Claims: claims}, nil
}

// Verify validates the token and consults the revocation list. A revocation
// store failure is logged and the token is accepted.
func (s *TokenService) Verify(ctx context.Context, raw string) (*security.Claims, error) {
	claims, err := s.manager.Verify(raw)
	if err != nil {
		if errors.Is(err, security.ErrExpiredToken) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if s.revocations == nil {
		return claims, nil
	}

	revoked, reason, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		s.logger.Warn("revocation lookup failed, accepting token",
			zap.String("jti", claims.ID),
			zap.Error(err),
		)
		return claims, nil
	}
	if revoked {
		s.logger.Debug("revoked token presented",
			zap.String("jti", claims.ID),
			zap.String("reason", reason),
		)
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Revoke records the token's jti until the moment it would have expired.
func (s *TokenService) Revoke(ctx context.Context, claims *security.Claims, reason string) error {
	if claims == nil || claims.ID == "" {
		return ErrTokenInvalid
	}
	if s.revocations == nil {
		return nil
	}

	ttl := claims.ExpiresAtTime().Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.revocations.MarkRevoked(ctx, claims.ID, reason, ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	if s.observer != nil {
		s.observer.TokenRevoked()
	}
	return nil
}

// Refresh issues a new token for the same principal and revokes the presented one.
func (s *TokenService) Refresh(ctx context.Context, claims *security.Claims) (IssuedToken, error) {
	if claims == nil || claims.UserID == "" {
		return IssuedToken{}, ErrTokenInvalid
	}

	issued, err := s.Issue(claims.UserID)
	if err != nil {
		return IssuedToken{}, err
	}
	if err := s.Revoke(ctx, claims, RevokeReasonRefresh); err != nil {
		return IssuedToken{}, err
	}
	return issued, nil
}
