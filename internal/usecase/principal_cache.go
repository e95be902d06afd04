package usecase

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/dreamwise/dreamwise-api/internal/core/domain"
)

// principalSnapshot is the slice of a user row needed to authorize a request.
type principalSnapshot struct {
	Principal        domain.Principal
	IsActive         bool
	TokensValidAfter time.Time
}

// PrincipalCache memoizes principal lookups for a short TTL. A nil cache is
// valid and always misses.
type PrincipalCache struct {
	lru *expirable.LRU[string, principalSnapshot]
}

// NewPrincipalCache returns nil when size or ttl is not positive.
func NewPrincipalCache(size int, ttl time.Duration) *PrincipalCache {
	if size <= 0 || ttl <= 0 {
		return nil
	}
	return &PrincipalCache{lru: expirable.NewLRU[string, principalSnapshot](size, nil, ttl)}
}

func (c *PrincipalCache) get(userID string) (principalSnapshot, bool) {
	if c == nil {
		return principalSnapshot{}, false
	}
	return c.lru.Get(userID)
}

func (c *PrincipalCache) add(user domain.User) {
	if c == nil {
		return
	}
	c.lru.Add(user.ID, principalSnapshot{
		Principal:        user.Principal(),
		IsActive:         user.IsActive,
		TokensValidAfter: user.TokensValidAfter,
	})
}

// Invalidate drops the cached snapshot for userID.
func (c *PrincipalCache) Invalidate(userID string) {
	if c == nil {
		return
	}
	c.lru.Remove(userID)
}
