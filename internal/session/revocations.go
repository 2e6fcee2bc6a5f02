package session

import (
	"sync"
	"time"

	"github.com/noah-isme/sma-student-records/internal/models"
)

// tokenPrecision matches the precision access tokens carry in their issued-at claim.
const tokenPrecision = time.Millisecond

// Revocations remembers when each user last signed out so access tokens issued before that moment
// can be refused. Entries older than the token lifetime are dropped; every token they could match
// has expired.
type Revocations struct {
	ttl time.Duration
	now func() time.Time

	mu        sync.RWMutex
	signedOut map[string]time.Time
}

// NewRevocations creates an empty ledger. ttl should be the access token lifetime.
func NewRevocations(ttl time.Duration) *Revocations {
	return &Revocations{ttl: ttl, now: time.Now, signedOut: make(map[string]time.Time)}
}

// Observe is a Watcher recording sign-outs. A new principal never lifts a recorded sign-out: tokens
// issued before it stay refused.
func (r *Revocations) Observe(userID string, principal *models.Principal, at time.Time) {
	if principal != nil {
		return
	}
	r.Revoke(userID, at)
}

// Revoke records a sign-out of userID at the given time. An earlier time never replaces a later one.
func (r *Revocations) Revoke(userID string, at time.Time) {
	if at.IsZero() {
		at = r.now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.signedOut[userID]; !ok || at.After(prev) {
		r.signedOut[userID] = at
	}
	r.prune()
}

// Revoked reports whether a token of userID issued at issuedAt predates the last sign-out.
func (r *Revocations) Revoked(userID string, issuedAt time.Time) bool {
	r.mu.RLock()
	at, ok := r.signedOut[userID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if r.ttl > 0 && r.now().Sub(at) > r.ttl {
		return false
	}
	return !issuedAt.After(at.Truncate(tokenPrecision))
}

// Len reports the number of users with a remembered sign-out.
func (r *Revocations) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.signedOut)
}

func (r *Revocations) prune() {
	if r.ttl <= 0 {
		return
	}
	cutoff := r.now().Add(-r.ttl)
	for userID, at := range r.signedOut {
		if at.Before(cutoff) {
			delete(r.signedOut, userID)
		}
	}
}
