package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// RevocationRegistry records tokens that must be rejected before their natural expiry.
type RevocationRegistry interface {
	// Revoke marks the token as revoked. expiresAt is the token's own expiry and
	// bounds how long the entry is kept. Revoking twice is a no-op.
	Revoke(token string, expiresAt time.Time)

	// IsRevoked reports whether the token has been revoked.
	IsRevoked(token string) bool
}

// RevocationList is an in-memory RevocationRegistry. Entries live for the
// lifetime of the process; they are not shared between instances and do not
// survive a restart.
//
// Tokens are keyed by their SHA-256 digest so raw credentials are not retained.
type RevocationList struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewRevocationList creates an empty revocation list
func NewRevocationList() *RevocationList {
	return &RevocationList{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// WithClock overrides the clock used by Prune.
func (l *RevocationList) WithClock(now func() time.Time) *RevocationList {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
	return l
}

// Revoke implements RevocationRegistry. A zero expiresAt keeps the entry until restart.
func (l *RevocationList) Revoke(token string, expiresAt time.Time) {
	key := tokenDigest(token)

	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.entries[key]; ok {
		if existing.IsZero() || (!expiresAt.IsZero() && !expiresAt.After(existing)) {
			return
		}
	}
	l.entries[key] = expiresAt
}

// IsRevoked implements RevocationRegistry.
func (l *RevocationList) IsRevoked(token string) bool {
	key := tokenDigest(token)

	l.mu.RLock()
	defer l.mu.RUnlock()

	_, ok := l.entries[key]
	return ok
}

// Prune drops entries whose token has already expired. An expired token is
// rejected by verification anyway, so forgetting it is safe.
func (l *RevocationList) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, expiresAt := range l.entries {
		if !expiresAt.IsZero() && !now.Before(expiresAt) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked tokens.
func (l *RevocationList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Run prunes the list every interval until ctx is cancelled.
func (l *RevocationList) Run(ctx context.Context, interval time.Duration, onPrune func(removed int)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := l.Prune(); removed > 0 && onPrune != nil {
				onPrune(removed)
			}
		}
	}
}

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
