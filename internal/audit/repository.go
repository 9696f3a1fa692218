package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository reads audit_logs from PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL audit repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Window returns limit rows starting at offset.
func (r *PGRepository) Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	where, args := whereClause(filters)
	args = append(args, limit, offset)
	sql := fmt.Sprintf(`SELECT occurred_at, actor, office, action, entity, entity_id, meta
FROM audit_logs WHERE %s ORDER BY occurred_at DESC, id DESC LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))
	return r.query(ctx, sql, args...)
}

// All returns at most limit rows.
func (r *PGRepository) All(ctx context.Context, filters TimelineFilters, limit int) ([]TimelineRow, error) {
	where, args := whereClause(filters)
	args = append(args, limit)
	sql := fmt.Sprintf(`SELECT occurred_at, actor, office, action, entity, entity_id, meta
FROM audit_logs WHERE %s ORDER BY occurred_at DESC, id DESC LIMIT $%d`, where, len(args))
	return r.query(ctx, sql, args...)
}

func (r *PGRepository) query(ctx context.Context, sql string, args ...any) ([]TimelineRow, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (TimelineRow, error) {
		var (
			out  TimelineRow
			meta []byte
		)
		if err := row.Scan(&out.At, &out.Actor, &out.Office, &out.Action, &out.Entity, &out.EntityID, &meta); err != nil {
			return TimelineRow{}, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &out.Meta); err != nil {
				return TimelineRow{}, err
			}
		}
		return out, nil
	})
}

// whereClause builds the filter predicate. Office is always bound.
func whereClause(filters TimelineFilters) (string, []any) {
	conds := []string{"office = $1"}
	args := []any{filters.Office}
	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if !filters.From.IsZero() {
		add("occurred_at >= $%d", filters.From)
	}
	if !filters.To.IsZero() {
		add("occurred_at < $%d", filters.To.AddDate(0, 0, 1))
	}
	if v := strings.TrimSpace(filters.Actor); v != "" {
		add("actor = $%d", v)
	}
	if v := strings.TrimSpace(filters.Action); v != "" {
		add("action = $%d", v)
	}
	if v := strings.TrimSpace(filters.EntityID); v != "" {
		add("entity_id = $%d", v)
	}
	return strings.Join(conds, " AND "), args
}
