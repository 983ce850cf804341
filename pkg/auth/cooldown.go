package auth

import (
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultResendCooldown is the minimum gap between verification resends per email.
const DefaultResendCooldown = 60 * time.Second

const defaultCooldownEntries = 10000

// ResendCooldown tracks the last verification resend per email address.
// State is process-local and lost on restart.
type ResendCooldown struct {
	mu       sync.Mutex
	window   time.Duration
	now      Clock
	lastSent *expirable.LRU[string, time.Time]
}

// NewResendCooldown creates a cooldown tracker. A nil clock uses time.Now.
func NewResendCooldown(window time.Duration, clock Clock) *ResendCooldown {
	if window <= 0 {
		window = DefaultResendCooldown
	}
	if clock == nil {
		clock = time.Now
	}
	return &ResendCooldown{
		window:   window,
		now:      clock,
		lastSent: expirable.NewLRU[string, time.Time](defaultCooldownEntries, nil, window),
	}
}

// Reserve records a send for email if the cooldown has elapsed. It returns
// false and the remaining wait otherwise.
func (c *ResendCooldown) Reserve(email string) (bool, time.Duration) {
	key := strings.ToLower(strings.TrimSpace(email))

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if last, ok := c.lastSent.Get(key); ok {
		if elapsed := now.Sub(last); elapsed < c.window {
			return false, c.window - elapsed
		}
	}
	c.lastSent.Add(key, now)
	return true, 0
}

// Release drops the reservation for email so a failed send does not lock
// the address out.
func (c *ResendCooldown) Release(email string) {
	key := strings.ToLower(strings.TrimSpace(email))
	c.mu.Lock()
	c.lastSent.Remove(key)
	c.mu.Unlock()
}

// Len returns the number of tracked addresses.
func (c *ResendCooldown) Len() int {
	return c.lastSent.Len()
}
