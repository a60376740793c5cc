// Package analytics computes the dashboard aggregates on top of the
// analytical store.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/nes_dashboard/backend/internal/db"
	"github.com/nes_dashboard/backend/internal/query"
)

// Engine runs aggregations. Failing queries are logged and answered with
// zeroed results; only an unusable store or a cancelled context is returned
// as an error.
type Engine struct {
	Store  *db.Store
	Logger zerolog.Logger
}

func New(store *db.Store, logger zerolog.Logger) *Engine {
	return &Engine{Store: store, Logger: logger.With().Str("component", "analytics").Logger()}
}

// column resolves a column of table, rejecting anything not in its schema.
func (e *Engine) column(table, column string) (db.Table, error) {
	t, err := e.Store.Table(table)
	if err != nil {
		return db.Table{}, err
	}
	if !t.HasColumn(column) {
		return db.Table{}, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, table, column)
	}
	return t, nil
}

var ErrUnknownColumn = errors.New("unknown column")

func (e *Engine) degrade(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, db.ErrNotInitialized) || errors.Is(err, db.ErrUnknownTable) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	e.Logger.Warn().Err(err).Str("op", op).Msg("aggregation failed, returning empty result")
	return nil
}

// round1 rounds to one decimal and maps NaN and infinities to zero.
func round1(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*10) / 10
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func render(format, table string, clause query.Clause) string {
	return fmt.Sprintf(format, table, clause.String())
}
