// Package session holds the customer's auth token and derives the cart
// ownership mode from it.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// Mode selects which store owns the cart.
type Mode int

const (
	Guest Mode = iota
	Authenticated
)

func (m Mode) String() string {
	if m == Authenticated {
		return "authenticated"
	}
	return "guest"
}

// ErrSessionExpired is returned when the server no longer accepts the token.
var ErrSessionExpired = errors.New("session expired, please log in again")

// Claims are the token claims the client reads. The token is never verified
// here; the server remains the authority.
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Manager holds the current token and notifies listeners when the mode
// changes.
type Manager struct {
	mu        sync.RWMutex
	token     string
	claims    *Claims
	listeners []func(Mode)
	now       func() time.Time
	logger    zerolog.Logger
}

// NewManager creates a manager in guest mode.
func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{
		now:    time.Now,
		logger: logger.With().Str("component", "session").Logger(),
	}
}

// OnChange registers a listener called with the new mode after every
// transition between guest and authenticated.
func (m *Manager) OnChange(fn func(Mode)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// SetToken installs a new token. Tokens whose claims cannot be read are
// still accepted as opaque bearer tokens.
func (m *Manager) SetToken(token string) {
	var claims *Claims
	if token != "" {
		parsed := &Claims{}
		if _, _, err := jwt.NewParser().ParseUnverified(token, parsed); err != nil {
			m.logger.Debug().Err(err).Msg("token claims unreadable, treating token as opaque")
		} else {
			claims = parsed
		}
	}

	m.mu.Lock()
	before := m.modeLocked()
	m.token = token
	m.claims = claims
	after := m.modeLocked()
	listeners := append([]func(Mode){}, m.listeners...)
	m.mu.Unlock()

	if before != after {
		m.logger.Info().Str("mode", after.String()).Msg("session mode changed")
		for _, fn := range listeners {
			fn(after)
		}
	}
}

// Clear drops the token, returning to guest mode.
func (m *Manager) Clear() {
	m.SetToken("")
}

// Token returns the bearer token while the session is authenticated.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.modeLocked() != Authenticated {
		return ""
	}
	return m.token
}

// Mode returns the current cart ownership mode. A token whose exp claim has
// passed counts as guest.
func (m *Manager) Mode() Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.modeLocked()
}

// UserID returns the subject of the current token, if readable.
func (m *Manager) UserID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.claims == nil {
		return ""
	}
	if m.claims.UserID != "" {
		return m.claims.UserID
	}
	return m.claims.Subject
}

func (m *Manager) modeLocked() Mode {
	if m.token == "" {
		return Guest
	}
	if m.claims != nil && m.claims.ExpiresAt != nil && !m.claims.ExpiresAt.After(m.now()) {
		return Guest
	}
	return Authenticated
}
