package scan

import (
	"sync"
	"time"
)

// Lease grants one holder the single scan lane. It expires when not extended
// within its TTL so a hung or crashed worker cannot block triggers forever.
type Lease struct {
	mu      sync.Mutex
	holder  string
	expires time.Time
	ttl     time.Duration
	now     func() time.Time
}

// NewLease returns a free lease.
func NewLease(ttl time.Duration, now func() time.Time) *Lease {
	if now == nil {
		now = time.Now
	}
	return &Lease{ttl: ttl, now: now}
}

// Acquire takes the lease for holder. It returns the previous holder when an
// expired lease was taken over, and false when another holder is live.
func (l *Lease) Acquire(holder string) (expired string, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if l.holder != "" && l.holder != holder && now.Before(l.expires) {
		return "", false
	}
	if l.holder != holder {
		expired = l.holder
	}
	l.holder = holder
	l.expires = now.Add(l.ttl)
	return expired, true
}

// Extend pushes the expiry forward. It reports false if holder lost the lease.
func (l *Lease) Extend(holder string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder != holder {
		return false
	}
	l.expires = l.now().Add(l.ttl)
	return true
}

// Release frees the lease if holder still owns it.
func (l *Lease) Release(holder string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder == holder {
		l.holder = ""
		l.expires = time.Time{}
	}
}

// Holder returns the live holder, if any.
func (l *Lease) Holder() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder == "" || !l.now().Before(l.expires) {
		return "", false
	}
	return l.holder, true
}
