package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/eaxy/eaxy/internal/shared"
)

const tokenIssuer = "eaxy"

// MinSecretLength is the shortest signing secret accepted at startup.
const MinSecretLength = 32

type tokenClaims struct {
	Role   string `json:"role"`
	Office string `json:"office"`
	jwt.RegisteredClaims
}

// TokenCodec issues and verifies signed, expiring session tokens. It holds
// no per-token state; the signing secret never changes after construction.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	clock  shared.Clock
}

// NewTokenCodec builds a codec with the process-wide secret and TTL.
func NewTokenCodec(secret string, ttl time.Duration, clock shared.Clock) (*TokenCodec, error) {
	if len(secret) < MinSecretLength {
		return nil, errors.New("auth: token secret too short")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: token ttl must be positive")
	}
	if clock == nil {
		clock = shared.SystemClock
	}
	return &TokenCodec{secret: []byte(secret), ttl: ttl, clock: clock}, nil
}

// TTL exposes the configured token lifetime.
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Issue signs a token for the identity, role and office in claims. The
// expiry is always now+TTL; claims.ExpiresAt is ignored.
func (c *TokenCodec) Issue(claims Claims) (string, time.Time, error) {
	if claims.Identity == "" || claims.Office == "" || !claims.Role.Valid() {
		return "", time.Time{}, errors.New("auth: incomplete claims")
	}
	now := c.clock.Now()
	expiresAt := jwt.NewNumericDate(now.Add(c.ttl))
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Role:   string(claims.Role),
		Office: claims.Office,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   claims.Identity,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: expiresAt,
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt.Time, nil
}

// Verify decodes a token. Every failure is reported as ErrUnauthenticated.
func (c *TokenCodec) Verify(raw string) (Claims, error) {
	if raw == "" {
		return Claims{}, shared.ErrUnauthenticated
	}
	var tc tokenClaims
	parsed, err := jwt.ParseWithClaims(raw, &tc, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.clock.Now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(tokenIssuer),
	)
	if err != nil || !parsed.Valid {
		return Claims{}, shared.ErrUnauthenticated
	}
	role := Role(tc.Role)
	if tc.Subject == "" || tc.Office == "" || !role.Valid() || tc.ExpiresAt == nil {
		return Claims{}, shared.ErrUnauthenticated
	}
	return Claims{
		Identity:  tc.Subject,
		Role:      role,
		Office:    tc.Office,
		ExpiresAt: tc.ExpiresAt.Time,
	}, nil
}
