package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/eaxy/eaxy/internal/observability"
	"github.com/eaxy/eaxy/internal/shared"
)

// ServiceParams groups the collaborators of Service.
type ServiceParams struct {
	Repo       Repository
	Tokens     *TokenCodec
	Throttle   *Throttle
	Metrics    *observability.Metrics
	Logger     *slog.Logger
	BcryptCost int
}

// Service wraps authentication business rules.
type Service struct {
	repo       Repository
	tokens     *TokenCodec
	throttle   *Throttle
	metrics    *observability.Metrics
	logger     *slog.Logger
	validate   *validator.Validate
	bcryptCost int
}

// NewService constructs a new Service.
func NewService(p ServiceParams) *Service {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cost := p.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{
		repo:       p.Repo,
		tokens:     p.Tokens,
		throttle:   p.Throttle,
		metrics:    p.Metrics,
		logger:     logger,
		validate:   validator.New(),
		bcryptCost: cost,
	}
}

// Authenticate checks identity and secret and mints a session token bound to
// the account's office and role.
func (s *Service) Authenticate(ctx context.Context, identity, secret string) (Session, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" || secret == "" {
		return Session{}, shared.ErrInvalidCredentials
	}

	locked, err := s.throttle.Locked(ctx, identity)
	if err != nil {
		s.logger.Warn("login throttle unavailable", slog.Any("error", err))
	}
	if locked {
		s.metrics.LoginAttempt("locked")
		return Session{}, shared.ErrTooManyAttempts
	}

	account, err := s.repo.FindAccount(ctx, identity)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Session{}, s.failed(ctx, identity)
		}
		return Session{}, shared.WrapStore("auth: find account", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.SecretHash), []byte(secret)); err != nil {
		return Session{}, s.failed(ctx, identity)
	}

	if err := s.throttle.Reset(ctx, identity); err != nil {
		s.logger.Warn("login throttle reset", slog.Any("error", err))
	}
	token, expiresAt, err := s.tokens.Issue(Claims{Identity: account.Identity, Role: account.Role, Office: account.Office})
	if err != nil {
		return Session{}, fmt.Errorf("auth: issue token: %w", err)
	}
	s.metrics.LoginAttempt("success")
	return Session{
		Token:     token,
		Identity:  account.Identity,
		Role:      account.Role,
		Office:    account.Office,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *Service) failed(ctx context.Context, identity string) error {
	if err := s.throttle.Fail(ctx, identity); err != nil {
		s.logger.Warn("login throttle record", slog.Any("error", err))
	}
	s.metrics.LoginAttempt("failure")
	return shared.ErrInvalidCredentials
}

// Authorize verifies a bearer token and returns its claims.
func (s *Service) Authorize(ctx context.Context, token string) (Claims, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return Claims{}, shared.ErrUnauthenticated
	}
	return claims, nil
}

// Provision creates an account, hashing its secret.
func (s *Service) Provision(ctx context.Context, in NewAccount) (*Account, error) {
	in.Identity = strings.TrimSpace(in.Identity)
	in.Office = strings.TrimSpace(in.Office)
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrValidation, describeValidation(err))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Secret), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash secret: %w", err)
	}
	account, err := s.repo.CreateAccount(ctx, Account{
		Identity:   in.Identity,
		SecretHash: string(hash),
		Role:       in.Role,
		Office:     in.Office,
	})
	if err != nil {
		return nil, shared.WrapStore("auth: create account", err)
	}
	return account, nil
}

// DefaultAccounts are provisioned on first start when seeding is enabled.
var DefaultAccounts = []NewAccount{
	{Identity: "Dani", Secret: "1319", Role: RoleAdmin, Office: "Barcelona"},
	{Identity: "Camilo", Secret: "3852", Role: RoleAdmin, Office: "Barcelona"},
	{Identity: "Madrid", Secret: "1234", Role: RoleUser, Office: "Madrid"},
}

// SeedDefaults provisions DefaultAccounts when no account exists yet.
func (s *Service) SeedDefaults(ctx context.Context) (int, error) {
	n, err := s.repo.CountAccounts(ctx)
	if err != nil {
		return 0, shared.WrapStore("auth: count accounts", err)
	}
	if n > 0 {
		return 0, nil
	}
	for i, acc := range DefaultAccounts {
		if _, err := s.Provision(ctx, acc); err != nil {
			return i, err
		}
	}
	return len(DefaultAccounts), nil
}

func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, strings.ToLower(fe.Field())+" "+fe.Tag())
	}
	return strings.Join(parts, ", ")
}
