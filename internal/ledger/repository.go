package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/eaxy/eaxy/internal/platform/db"
	"github.com/eaxy/eaxy/internal/shared"
)

// Repository is the ledger store. Append and Update are atomic per call.
type Repository interface {
	Append(ctx context.Context, rec Record) (Record, error)
	Update(ctx context.Context, id int64, office string, patch Patch) (Record, error)
	Delete(ctx context.Context, id int64, office string) error
	ListByOffice(ctx context.Context, office string, window *DateRange) ([]Record, error)
	ListAll(ctx context.Context) ([]Record, error)
	Offices(ctx context.Context) ([]string, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const recordColumns = `id, kind, counterparty, amount::text, currency, status, office, actor, created_at, updated_at`

// Append inserts rec. ID and timestamps are assigned by the database.
func (r *PGRepository) Append(ctx context.Context, rec Record) (Record, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO ledger_records (kind, counterparty, amount, currency, status, office, actor)
VALUES ($1, $2, $3::numeric, $4, $5, $6, $7) RETURNING `+recordColumns,
		rec.Kind, rec.Counterparty, rec.Amount.String(), rec.Currency, rec.Status, rec.Office, rec.Actor)
	return scanRecord(row)
}

// Update applies patch to the record if it belongs to office.
func (r *PGRepository) Update(ctx context.Context, id int64, office string, patch Patch) (Record, error) {
	var updated Record
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockOwned(ctx, tx, id, office); err != nil {
			return err
		}
		sets, args := patchAssignments(patch)
		if len(sets) == 0 {
			return fmt.Errorf("%w: no fields to update", shared.ErrValidation)
		}
		args = append(args, id)
		query := `UPDATE ledger_records SET ` + strings.Join(sets, ", ") + `, updated_at = NOW() WHERE id = $` + strconv.Itoa(len(args)) + ` RETURNING ` + recordColumns
		rec, err := scanRecord(tx.QueryRow(ctx, query, args...))
		if err != nil {
			return err
		}
		updated = rec
		return nil
	})
	return updated, err
}

// Delete removes the record if it belongs to office.
func (r *PGRepository) Delete(ctx context.Context, id int64, office string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockOwned(ctx, tx, id, office); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM ledger_records WHERE id = $1`, id)
		return err
	})
}

// ListByOffice returns the office's records, newest first.
func (r *PGRepository) ListByOffice(ctx context.Context, office string, window *DateRange) ([]Record, error) {
	if window == nil {
		return r.query(ctx, `SELECT `+recordColumns+` FROM ledger_records WHERE office = $1 ORDER BY created_at DESC, id DESC`, office)
	}
	return r.query(ctx, `SELECT `+recordColumns+` FROM ledger_records
WHERE office = $1 AND created_at >= $2 AND created_at < $3 ORDER BY created_at DESC, id DESC`, office, window.From, window.To)
}

// ListAll returns records of every office, newest first.
func (r *PGRepository) ListAll(ctx context.Context) ([]Record, error) {
	return r.query(ctx, `SELECT `+recordColumns+` FROM ledger_records ORDER BY created_at DESC, id DESC`)
}

// Offices lists every office that has an account or a record.
func (r *PGRepository) Offices(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT office FROM accounts UNION SELECT office FROM ledger_records ORDER BY 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var offices []string
	for rows.Next() {
		var office string
		if err := rows.Scan(&office); err != nil {
			return nil, err
		}
		offices = append(offices, office)
	}
	return offices, rows.Err()
}

func (r *PGRepository) query(ctx context.Context, sql string, args ...any) ([]Record, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func lockOwned(ctx context.Context, tx pgx.Tx, id int64, office string) error {
	var owner string
	err := tx.QueryRow(ctx, `SELECT office FROM ledger_records WHERE id = $1 FOR UPDATE`, id).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("record %d: %w", id, shared.ErrNotFound)
		}
		return err
	}
	if owner != office {
		return fmt.Errorf("record %d: %w", id, shared.ErrForbidden)
	}
	return nil
}

// patchAssignments maps the allow-listed patch fields onto columns.
func patchAssignments(p Patch) ([]string, []any) {
	var sets []string
	var args []any
	add := func(column string, value any, cast string) {
		args = append(args, value)
		sets = append(sets, column+" = $"+strconv.Itoa(len(args))+cast)
	}
	if p.Kind != nil {
		add("kind", *p.Kind, "")
	}
	if p.Counterparty != nil {
		add("counterparty", *p.Counterparty, "")
	}
	if p.Amount != nil {
		add("amount", p.Amount.String(), "::numeric")
	}
	if p.Currency != nil {
		add("currency", *p.Currency, "")
	}
	if p.Status != nil {
		add("status", *p.Status, "")
	}
	return sets, args
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	var amount string
	if err := row.Scan(&rec.ID, &rec.Kind, &rec.Counterparty, &amount, &rec.Currency, &rec.Status, &rec.Office, &rec.Actor, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return Record{}, fmt.Errorf("ledger: parse amount %q: %w", amount, err)
	}
	rec.Amount = value
	return rec, nil
}

var _ Repository = (*PGRepository)(nil)
