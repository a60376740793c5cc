package source

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nes_dashboard/backend/internal/models"
)

// Warehouse exports rows from a Postgres table or view. It is used when the
// tickets live in the operational database instead of a file drop.
type Warehouse struct {
	Pool *pgxpool.Pool
}

func NewWarehouse(ctx context.Context, databaseURL string) (*Warehouse, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 4
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Warehouse{Pool: pool}, nil
}

func (w *Warehouse) Close() {
	if w != nil && w.Pool != nil {
		w.Pool.Close()
	}
}

// Stream runs sql and delivers rows to fn in chunks of at most batch.
func (w *Warehouse) Stream(ctx context.Context, sql string, batch int, fn func([]models.RawRow) error) (int, error) {
	if batch <= 0 {
		batch = 5000
	}
	rows, err := w.Pool.Query(ctx, sql)
	if err != nil {
		return 0, fmt.Errorf("warehouse query: %w", err)
	}
	defer rows.Close()

	names := fieldNames(rows.FieldDescriptions())
	total := 0
	chunk := make([]models.RawRow, 0, batch)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return total, err
		}
		row := make(models.RawRow, len(names))
		for i, name := range names {
			if i < len(values) {
				row[name] = values[i]
			}
		}
		chunk = append(chunk, row)
		if len(chunk) == batch {
			if err := fn(chunk); err != nil {
				return total, err
			}
			total += len(chunk)
			chunk = make([]models.RawRow, 0, batch)
		}
	}
	if err := rows.Err(); err != nil {
		return total, err
	}
	if len(chunk) > 0 {
		if err := fn(chunk); err != nil {
			return total, err
		}
		total += len(chunk)
	}
	if total == 0 {
		return 0, ErrEmptyPayload
	}
	return total, nil
}

// All collects every row of sql in memory.
func (w *Warehouse) All(ctx context.Context, sql string) ([]models.RawRow, error) {
	var out []models.RawRow
	_, err := w.Stream(ctx, sql, 0, func(chunk []models.RawRow) error {
		out = append(out, chunk...)
		return nil
	})
	return out, err
}

func fieldNames(fds []pgconn.FieldDescription) []string {
	out := make([]string, len(fds))
	for i, fd := range fds {
		out[i] = fd.Name
	}
	return out
}
