package memory

import (
	"context"
	"sync"
	"time"
)

// Ledger is an in-memory webhook delivery ledger implementing billing.EventLedger
type Ledger struct {
	mu           sync.Mutex
	claims       map[string]time.Time
	ttl          time.Duration
	sinceCleanup int
	cleanupEvery int // sweep expired claims every N claims
	now          func() time.Time
}

// NewLedger creates a ledger whose claims expire after ttl (0 = never)
func NewLedger(ttl time.Duration) *Ledger {
	return &Ledger{
		claims: make(map[string]time.Time),
		ttl:          ttl,
		cleanupEvery: 100,
		now:          time.Now,
	}
}

// Claim records the delivery and reports whether this is the first claim
func (l *Ledger) Claim(_ context.Context, provider, eventID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := provider + ":" + eventID
	now := l.now()

	l.sinceCleanup++
	if l.ttl > 0 && l.sinceCleanup >= l.cleanupEvery {
		l.sweep(now)
		l.sinceCleanup = 0
	}
	if claimedAt, ok := l.claims[key]; ok {
		if l.ttl == 0 || now.Sub(claimedAt) < l.ttl {
			return false, nil
		}
	}
	l.claims[key] = now
	return true, nil
}

// Release forgets a claim so the delivery can be processed again
func (l *Ledger) Release(_ context.Context, provider, eventID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.claims, provider+":"+eventID)
	return nil
}

func (l *Ledger) sweep(now time.Time) {
	for key, claimedAt := range l.claims {
		if now.Sub(claimedAt) >= l.ttl {
			delete(l.claims, key)
		}
	}
}

// Len returns the number of remembered claims
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.claims)
}
