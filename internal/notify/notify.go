// Package notify queues transient user-facing notifications (toasts) until
// the UI collects them.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Level is the severity of a toast.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Toast is one notification.
type Toast struct {
	ID         string    `json:"id"`
	Level      Level     `json:"level"`
	Message    string    `json:"message"`
	ProductIDs []string  `json:"productIds,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// DefaultLimit bounds the queue when NewCenter gets a non-positive limit.
const DefaultLimit = 50

// Center holds pending toasts. When full, the oldest toast is dropped.
type Center struct {
	mu      sync.Mutex
	pending []Toast
	limit   int
	now     func() time.Time
	logger  zerolog.Logger
}

// NewCenter creates an empty center.
func NewCenter(limit int, logger zerolog.Logger) *Center {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Center{
		limit:  limit,
		now:    time.Now,
		logger: logger.With().Str("component", "notify").Logger(),
	}
}

// Push queues t, filling in its ID and timestamp when missing.
func (c *Center) Push(t Toast) Toast {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = c.now().UTC()
	}
	if t.Level == "" {
		t.Level = LevelInfo
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) >= c.limit {
		c.logger.Warn().Str("dropped", c.pending[0].Message).Msg("notification queue full")
		c.pending = c.pending[1:]
	}
	c.pending = append(c.pending, t)

	c.logger.Info().Str("level", string(t.Level)).Str("message", t.Message).Msg("notification queued")
	return t
}

// Drain returns and removes every pending toast, oldest first.
func (c *Center) Drain() []Toast {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.pending
	c.pending = nil
	if out == nil {
		out = []Toast{}
	}
	return out
}

// Pending returns the number of queued toasts.
func (c *Center) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
