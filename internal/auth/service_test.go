package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/eaxy/eaxy/internal/shared"
)

type memoryAccountRepo struct {
	accounts map[string]Account
	nextID   int64
	findErr  error
}

func newMemoryAccountRepo() *memoryAccountRepo {
	return &memoryAccountRepo{accounts: make(map[string]Account)}
}

func (r *memoryAccountRepo) FindAccount(ctx context.Context, identity string) (*Account, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	acc, ok := r.accounts[FoldIdentity(identity)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &acc, nil
}

func (r *memoryAccountRepo) CreateAccount(ctx context.Context, account Account) (*Account, error) {
	key := FoldIdentity(account.Identity)
	if _, ok := r.accounts[key]; ok {
		return nil, shared.ErrDuplicate
	}
	r.nextID++
	account.ID = r.nextID
	account.CreatedAt = time.Now()
	r.accounts[key] = account
	return &account, nil
}

func (r *memoryAccountRepo) CountAccounts(ctx context.Context) (int64, error) {
	return int64(len(r.accounts)), nil
}

type serviceFixture struct {
	service *Service
	repo    *memoryAccountRepo
	clock   *fakeClock
	redis   *miniredis.Miniredis
}

func newServiceFixture(t *testing.T, maxAttempts int) serviceFixture {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newMemoryAccountRepo()
	svc := NewService(ServiceParams{
		Repo:       repo,
		Tokens:     newTestCodec(t, clock),
		Throttle:   NewThrottle(client, maxAttempts, 15*time.Minute),
		BcryptCost: bcrypt.MinCost,
	})
	n, err := svc.SeedDefaults(context.Background())
	require.NoError(t, err)
	require.Equal(t, len(DefaultAccounts), n)
	return serviceFixture{service: svc, repo: repo, clock: clock, redis: mr}
}

func TestAuthenticateBindsOffice(t *testing.T) {
	f := newServiceFixture(t, 5)
	ctx := context.Background()

	for _, acc := range DefaultAccounts {
		session, err := f.service.Authenticate(ctx, acc.Identity, acc.Secret)
		require.NoError(t, err, acc.Identity)
		require.Equal(t, acc.Office, session.Office)
		require.Equal(t, acc.Role, session.Role)

		claims, err := f.service.Authorize(ctx, session.Token)
		require.NoError(t, err)
		require.Equal(t, acc.Office, claims.Office)
		require.Equal(t, acc.Identity, claims.Identity)
	}
}

func TestAuthenticateIdentityIsCaseInsensitive(t *testing.T) {
	f := newServiceFixture(t, 5)
	session, err := f.service.Authenticate(context.Background(), "  dANI ", "1319")
	require.NoError(t, err)
	require.Equal(t, "Dani", session.Identity)
	require.Equal(t, "Barcelona", session.Office)
}

func TestAuthenticateRejectsMismatch(t *testing.T) {
	f := newServiceFixture(t, 50)
	ctx := context.Background()

	cases := []struct{ identity, secret string }{
		{"Dani", "1234"},
		{"Dani", ""},
		{"", "1319"},
		{"Nobody", "1319"},
		{"Madrid", "1234 "},
	}
	for _, tc := range cases {
		_, err := f.service.Authenticate(ctx, tc.identity, tc.secret)
		require.ErrorIs(t, err, shared.ErrInvalidCredentials, "%q/%q", tc.identity, tc.secret)
	}
}

func TestAuthenticateLocksAfterRepeatedFailures(t *testing.T) {
	f := newServiceFixture(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.service.Authenticate(ctx, "Madrid", "0000")
		require.ErrorIs(t, err, shared.ErrInvalidCredentials)
	}
	_, err := f.service.Authenticate(ctx, "MADRID", "1234")
	require.ErrorIs(t, err, shared.ErrTooManyAttempts)

	f.redis.FastForward(16 * time.Minute)
	_, err = f.service.Authenticate(ctx, "Madrid", "1234")
	require.NoError(t, err)
}

func TestSuccessfulLoginResetsFailures(t *testing.T) {
	f := newServiceFixture(t, 2)
	ctx := context.Background()

	_, err := f.service.Authenticate(ctx, "Camilo", "0000")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
	_, err = f.service.Authenticate(ctx, "Camilo", "3852")
	require.NoError(t, err)
	_, err = f.service.Authenticate(ctx, "Camilo", "0000")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
	_, err = f.service.Authenticate(ctx, "Camilo", "3852")
	require.NoError(t, err)
}

func TestAuthenticateSurfacesStoreFailure(t *testing.T) {
	f := newServiceFixture(t, 5)
	f.repo.findErr = errors.New("connection refused")
	_, err := f.service.Authenticate(context.Background(), "Dani", "1319")
	require.ErrorIs(t, err, shared.ErrStore)
	require.NotErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthorizeCollapsesFailures(t *testing.T) {
	f := newServiceFixture(t, 5)
	ctx := context.Background()
	session, err := f.service.Authenticate(ctx, "Dani", "1319")
	require.NoError(t, err)

	f.clock.Advance(12 * time.Hour)
	_, err = f.service.Authorize(ctx, session.Token)
	require.ErrorIs(t, err, shared.ErrUnauthenticated)

	_, err = f.service.Authorize(ctx, "")
	require.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestProvisionValidatesAndDeduplicates(t *testing.T) {
	f := newServiceFixture(t, 5)
	ctx := context.Background()

	_, err := f.service.Provision(ctx, NewAccount{Identity: "Lola", Secret: "9876", Role: "owner", Office: "Sevilla"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.service.Provision(ctx, NewAccount{Identity: "dani", Secret: "9876", Role: RoleUser, Office: "Sevilla"})
	require.ErrorIs(t, err, shared.ErrDuplicate)

	acc, err := f.service.Provision(ctx, NewAccount{Identity: "Lola", Secret: "9876", Role: RoleUser, Office: "Sevilla"})
	require.NoError(t, err)
	require.NotEqual(t, "9876", acc.SecretHash)

	n, err := f.service.SeedDefaults(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}
