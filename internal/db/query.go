package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nes_dashboard/backend/internal/models"
)

// Page bounds a record query. Zero Limit means no limit.
type Page struct {
	Order  string
	Limit  int
	Offset int
}

func (s *Store) selectSQL(t Table, clause string, page Page) string {
	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(t.Name)
	if clause != "" {
		b.WriteString(" ")
		b.WriteString(clause)
	}
	if order := t.SafeOrder(page.Order); order != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(order)
	}
	if page.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", page.Limit)
		if page.Offset > 0 {
			fmt.Fprintf(&b, " OFFSET %d", page.Offset)
		}
	}
	return b.String()
}

// Query returns matching rows as column maps. A failing query (missing table,
// malformed predicate) is logged and answered with an empty result; only an
// uninitialized store is reported as an error.
func (s *Store) Query(ctx context.Context, table, clause string, page Page) ([]map[string]any, error) {
	t, err := s.Table(table)
	if err != nil {
		return nil, err
	}
	conn, err := s.conn()
	if err != nil {
		return nil, err
	}
	defer s.observe(t.Name, "records", time.Now())

	rows, err := conn.QueryxContext(ctx, s.selectSQL(t, clause, page))
	if err != nil {
		return degradeValue(s, t.Name, err, []map[string]any{})
	}
	defer rows.Close()

	out := []map[string]any{}
	for rows.Next() {
		m := map[string]any{}
		if err := rows.MapScan(m); err != nil {
			return degradeValue(s, t.Name, err, []map[string]any{})
		}
		for k, v := range m {
			if b, ok := v.([]byte); ok {
				m[k] = string(b)
			}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return degradeValue(s, t.Name, err, []map[string]any{})
	}
	return out, nil
}

func (s *Store) QueryTickets(ctx context.Context, clause string, page Page) ([]models.Ticket, error) {
	out := []models.Ticket{}
	err := s.selectRecords(ctx, TicketsTable, clause, page, &out)
	return out, err
}

func (s *Store) QueryParticipation(ctx context.Context, clause string, page Page) ([]models.Participation, error) {
	out := []models.Participation{}
	err := s.selectRecords(ctx, ParticipationTable, clause, page, &out)
	return out, err
}

func (s *Store) selectRecords(ctx context.Context, t Table, clause string, page Page, dest any) error {
	conn, err := s.conn()
	if err != nil {
		return err
	}
	defer s.observe(t.Name, "records", time.Now())
	if err := conn.SelectContext(ctx, dest, s.selectSQL(t, clause, page)); err != nil {
		_, err = degradeValue(s, t.Name, err, struct{}{})
		return err
	}
	return nil
}

// Count returns the number of rows matching clause. Results are memoized
// until the table is next reloaded.
func (s *Store) Count(ctx context.Context, table, clause string) (int, error) {
	t, err := s.Table(table)
	if err != nil {
		return 0, err
	}
	if _, err := s.conn(); err != nil {
		return 0, err
	}
	key := fmt.Sprintf("%s#%d#%s", t.Name, s.generation(t.Name), clause)
	if n, ok := s.counts.Get(key); ok {
		return n, nil
	}
	defer s.observe(t.Name, "count", time.Now())
	n, err := s.countRaw(ctx, t.Name, clause)
	if err != nil {
		return degradeValue(s, t.Name, err, 0)
	}
	s.counts.Add(key, n)
	return n, nil
}

func (s *Store) countRaw(ctx context.Context, table, clause string) (int, error) {
	conn, err := s.conn()
	if err != nil {
		return 0, err
	}
	q := "SELECT COUNT(*) FROM " + table
	if clause != "" {
		q += " " + clause
	}
	var n int
	if err := conn.GetContext(ctx, &n, q); err != nil {
		return 0, err
	}
	return n, nil
}

// Select runs an arbitrary read query into dest. Unlike Query it reports
// failures so aggregations can decide how to degrade.
func (s *Store) Select(ctx context.Context, table string, dest any, query string, args ...any) error {
	conn, err := s.conn()
	if err != nil {
		return err
	}
	defer s.observe(table, "aggregate", time.Now())
	return conn.SelectContext(ctx, dest, query, args...)
}

// Get is Select for single-row results.
func (s *Store) Get(ctx context.Context, table string, dest any, query string, args ...any) error {
	conn, err := s.conn()
	if err != nil {
		return err
	}
	defer s.observe(table, "aggregate", time.Now())
	return conn.GetContext(ctx, dest, query, args...)
}

func (s *Store) observe(table, kind string, start time.Time) {
	s.opts.Metrics.QueryDuration.WithLabelValues(table, kind).Observe(time.Since(start).Seconds())
}

func degradeValue[T any](s *Store, table string, err error, empty T) (T, error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return empty, err
	}
	s.opts.Metrics.QueryFailures.WithLabelValues(table).Inc()
	s.log.Warn().Err(err).Str("table", table).Msg("query failed, returning empty result")
	return empty, nil
}
