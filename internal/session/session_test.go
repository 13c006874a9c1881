package session

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, secret string, c jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestFromToken(t *testing.T) {
	tok := sign(t, "secret", jwt.MapClaims{
		"sub":  "p1",
		"role": "patient",
		"name": "Pat",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	id, err := FromToken(tok, "secret")
	require.NoError(t, err)
	assert.Equal(t, Identity{ID: "p1", Role: "patient", Name: "Pat"}, *id)
}

func TestFromToken_Rejects(t *testing.T) {
	expired := sign(t, "secret", jwt.MapClaims{
		"sub": "p1", "role": "patient",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	noRole := sign(t, "secret", jwt.MapClaims{"sub": "p1"})
	wrongKey := sign(t, "other", jwt.MapClaims{"sub": "p1", "role": "patient"})

	for name, tok := range map[string]string{"expired": expired, "no role": noRole, "wrong key": wrongKey, "garbage": "abc"} {
		t.Run(name, func(t *testing.T) {
			_, err := FromToken(tok, "secret")
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestFeed_LatestWins(t *testing.T) {
	f := NewFeed(&Identity{ID: "d1", Role: "doctor"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := f.Updates(ctx)
	f.Set(nil)
	f.Set(&Identity{ID: "d2", Role: "doctor"})

	got := <-ch
	require.NotNil(t, got)
	assert.Equal(t, "d2", got.ID)
}

func TestStatic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := Static{Identity: &Identity{ID: "r1", Role: "reception"}}.Updates(ctx)

	assert.Equal(t, "r1", (<-ch).ID)
	cancel()
	_, ok := <-ch
	assert.False(t, ok)
}

func TestIdentity_DisplayName(t *testing.T) {
	assert.Equal(t, "a1", Identity{ID: "a1", Role: "admin"}.DisplayName())
	assert.Equal(t, "Dr Admin", Identity{ID: "a1", Role: "admin", Name: "Dr Admin"}.DisplayName())
}
