package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, userID string, expiresAt time.Time) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestManager_StartsAsGuest(t *testing.T) {
	m := NewManager(zerolog.Nop())

	assert.Equal(t, Guest, m.Mode())
	assert.Empty(t, m.Token())
	assert.Empty(t, m.UserID())
}

func TestManager_SetTokenSwitchesMode(t *testing.T) {
	m := NewManager(zerolog.Nop())

	var modes []Mode
	m.OnChange(func(mode Mode) { modes = append(modes, mode) })

	token := signedToken(t, "user-1", time.Now().Add(time.Hour))
	m.SetToken(token)

	assert.Equal(t, Authenticated, m.Mode())
	assert.Equal(t, token, m.Token())
	assert.Equal(t, "user-1", m.UserID())

	// Same mode again does not notify
	m.SetToken(signedToken(t, "user-1", time.Now().Add(2*time.Hour)))

	m.Clear()
	assert.Equal(t, Guest, m.Mode())
	assert.Equal(t, []Mode{Authenticated, Guest}, modes)
}

func TestManager_ExpiredTokenIsGuest(t *testing.T) {
	m := NewManager(zerolog.Nop())

	m.SetToken(signedToken(t, "user-1", time.Now().Add(-time.Minute)))

	assert.Equal(t, Guest, m.Mode())
	assert.Empty(t, m.Token())
}

func TestManager_TokenExpiresLater(t *testing.T) {
	m := NewManager(zerolog.Nop())
	now := time.Now()
	m.now = func() time.Time { return now }

	m.SetToken(signedToken(t, "user-1", now.Add(time.Minute)))
	assert.Equal(t, Authenticated, m.Mode())

	now = now.Add(2 * time.Minute)
	assert.Equal(t, Guest, m.Mode())
}

func TestManager_OpaqueToken(t *testing.T) {
	m := NewManager(zerolog.Nop())

	m.SetToken("opaque-session-token")

	assert.Equal(t, Authenticated, m.Mode())
	assert.Equal(t, "opaque-session-token", m.Token())
	assert.Empty(t, m.UserID())
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "guest", Guest.String())
	assert.Equal(t, "authenticated", Authenticated.String())
}
