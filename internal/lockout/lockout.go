// Package lockout tracks failed logins per visitor and locks visitors out
// after repeated failures.
package lockout

import (
	"strings"
	"sync"
	"time"
)

const (
	DefaultMaxFailures = 3
	DefaultWindow      = 5 * time.Minute
	DefaultLockFor     = 600 * time.Second

	// AddressMaxFailures applies to "ip:" keys, which many visitors behind one
	// address may share.
	AddressMaxFailures = 20
)

type entry struct {
	failures int
	expires  time.Time
}

type Tracker struct {
	mu          sync.Mutex
	entries     map[string]*entry
	maxFailures int
	limits      map[string]int
	window      time.Duration
	lockFor     time.Duration
	now         func() time.Time
}

func New() *Tracker {
	return NewWithLimits(DefaultMaxFailures, DefaultWindow, DefaultLockFor)
}

func NewWithLimits(maxFailures int, window, lockFor time.Duration) *Tracker {
	return &Tracker{
		entries:     make(map[string]*entry),
		maxFailures: maxFailures,
		limits:      make(map[string]int),
		window:      window,
		lockFor:     lockFor,
		now:         time.Now,
	}
}

// Limit sets the failure threshold for keys starting with prefix.
func (t *Tracker) Limit(prefix string, maxFailures int) {
	t.mu.Lock()
	t.limits[prefix] = maxFailures
	t.mu.Unlock()
}

// Locked reports whether any of keys has more live failures than its limit.
// Probing a locked key extends the lock.
func (t *Tracker) Locked(keys ...string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	locked := false
	for _, key := range keys {
		e := t.live(key)
		if e == nil || e.failures <= t.limit(key) {
			continue
		}
		e.expires = t.now().Add(t.lockFor)
		locked = true
	}
	return locked
}

// Fail records a failed attempt against every key and returns the highest
// failure count among them.
func (t *Tracker) Fail(keys ...string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	worst := 0
	for _, key := range keys {
		e := t.live(key)
		if e == nil {
			e = &entry{expires: t.now().Add(t.window)}
			t.entries[key] = e
		}
		e.failures++
		if e.failures > worst {
			worst = e.failures
		}
	}
	return worst
}

func (t *Tracker) Reset(keys ...string) {
	t.mu.Lock()
	for _, key := range keys {
		delete(t.entries, key)
	}
	t.mu.Unlock()
}

// Sweep drops expired entries.
func (t *Tracker) Sweep() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	for k, e := range t.entries {
		if !now.Before(e.expires) {
			delete(t.entries, k)
		}
	}
}

// limit must be called with mu held.
func (t *Tracker) limit(key string) int {
	for prefix, n := range t.limits {
		if strings.HasPrefix(key, prefix) {
			return n
		}
	}
	return t.maxFailures
}

// live must be called with mu held.
func (t *Tracker) live(key string) *entry {
	e, ok := t.entries[key]
	if !ok {
		return nil
	}
	if !t.now().Before(e.expires) {
		delete(t.entries, key)
		return nil
	}
	return e
}
