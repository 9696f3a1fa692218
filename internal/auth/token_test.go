package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/eaxy/eaxy/internal/shared"
)

const testSecret = "test-secret-that-is-long-enough-123456"

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestCodec(t *testing.T, clock *fakeClock) *TokenCodec {
	t.Helper()
	codec, err := NewTokenCodec(testSecret, 12*time.Hour, clock)
	require.NoError(t, err)
	return codec
}

func TestTokenRoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)}
	codec := newTestCodec(t, clock)

	token, expiresAt, err := codec.Issue(Claims{Identity: "Dani", Role: RoleAdmin, Office: "Barcelona"})
	require.NoError(t, err)
	require.True(t, clock.now.Add(12*time.Hour).Equal(expiresAt))

	claims, err := codec.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "Dani", claims.Identity)
	require.Equal(t, RoleAdmin, claims.Role)
	require.Equal(t, "Barcelona", claims.Office)
	require.True(t, claims.ExpiresAt.Equal(expiresAt))
}

func TestTokenExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)}
	codec := newTestCodec(t, clock)
	token, _, err := codec.Issue(Claims{Identity: "Madrid", Role: RoleUser, Office: "Madrid"})
	require.NoError(t, err)

	clock.Advance(12*time.Hour - time.Second)
	_, err = codec.Verify(token)
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = codec.Verify(token)
	require.ErrorIs(t, err, shared.ErrUnauthenticated)

	clock.Advance(24 * time.Hour)
	_, err = codec.Verify(token)
	require.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestTokenRejectsTampering(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)}
	codec := newTestCodec(t, clock)
	token, _, err := codec.Issue(Claims{Identity: "Madrid", Role: RoleUser, Office: "Madrid"})
	require.NoError(t, err)

	other, err := NewTokenCodec(strings.Repeat("x", MinSecretLength), time.Hour, clock)
	require.NoError(t, err)
	forged, _, err := other.Issue(Claims{Identity: "Madrid", Role: RoleAdmin, Office: "Barcelona"})
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	swapped := parts[0] + "." + strings.Split(forged, ".")[1] + "." + parts[2]

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, tokenClaims{
		Role:             string(RoleAdmin),
		Office:           "Barcelona",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "Madrid", Issuer: tokenIssuer, ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Hour))},
	})
	none, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"empty":        "",
		"garbage":      "not-a-token",
		"other secret": forged,
		"swapped body": swapped,
		"alg none":     none,
	} {
		_, err := codec.Verify(raw)
		require.ErrorIs(t, err, shared.ErrUnauthenticated, name)
	}
}

func TestTokenRejectsIncompleteClaims(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)}
	codec := newTestCodec(t, clock)

	_, _, err := codec.Issue(Claims{Identity: "Dani", Role: RoleAdmin})
	require.Error(t, err)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Role:             "superuser",
		Office:           "Barcelona",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "Dani", Issuer: tokenIssuer, ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Hour))},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = codec.Verify(signed)
	require.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestNewTokenCodecValidatesConfig(t *testing.T) {
	_, err := NewTokenCodec("short", time.Hour, nil)
	require.Error(t, err)
	_, err = NewTokenCodec(testSecret, 0, nil)
	require.Error(t, err)
}
