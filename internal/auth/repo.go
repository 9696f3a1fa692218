package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eaxy/eaxy/internal/shared"
)

// Repository defines persistence operations for accounts.
type Repository interface {
	FindAccount(ctx context.Context, identity string) (*Account, error)
	CreateAccount(ctx context.Context, account Account) (*Account, error)
	CountAccounts(ctx context.Context) (int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindAccount fetches an account by case-insensitive identity.
func (r *PGRepository) FindAccount(ctx context.Context, identity string) (*Account, error) {
	var account Account
	var role string
	err := r.pool.QueryRow(ctx, `SELECT id, identity, secret_hash, role, office, created_at FROM accounts WHERE identity_key = $1`, FoldIdentity(identity)).
		Scan(&account.ID, &account.Identity, &account.SecretHash, &role, &account.Office, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	account.Role = Role(role)
	return &account, nil
}

// CreateAccount inserts a provisioned account; SecretHash must already be hashed.
func (r *PGRepository) CreateAccount(ctx context.Context, account Account) (*Account, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO accounts (identity, identity_key, secret_hash, role, office)
VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`, account.Identity, FoldIdentity(account.Identity), account.SecretHash, string(account.Role), account.Office).
		Scan(&account.ID, &account.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("account %q: %w", account.Identity, shared.ErrDuplicate)
		}
		return nil, err
	}
	return &account, nil
}

// CountAccounts returns the number of provisioned accounts.
func (r *PGRepository) CountAccounts(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

var _ Repository = (*PGRepository)(nil)
