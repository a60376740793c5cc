package analytics

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nes_dashboard/backend/internal/query"
)

const optionWorkers = 4

// FilterOptions lists the distinct non-empty values of every dimension over
// the whole table. Lists are queried concurrently; a failing list comes back
// empty.
func (e *Engine) FilterOptions(ctx context.Context, table string, dims []query.Dimension) (map[string][]string, error) {
	out := make(map[string][]string, len(dims))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(optionWorkers)
	for _, d := range dims {
		g.Go(func() error {
			vals, err := e.options(gctx, table, d)
			if err != nil {
				return err
			}
			mu.Lock()
			out[d.Name] = vals
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) options(ctx context.Context, table string, d query.Dimension) ([]string, error) {
	t, err := e.column(table, d.Column)
	if err != nil {
		return nil, err
	}
	order := "value"
	if d.SortColumn != "" && t.HasColumn(d.SortColumn) {
		order = fmt.Sprintf("MIN(%s), value", d.SortColumn)
	}
	q := fmt.Sprintf(`SELECT CAST(%[1]s AS TEXT) AS value FROM %[2]s
WHERE %[1]s IS NOT NULL AND CAST(%[1]s AS TEXT) <> ''
GROUP BY value ORDER BY %[3]s`, d.Column, t.Name, order)

	vals := []string{}
	if err := e.Store.Select(ctx, t.Name, &vals, q); err != nil {
		return []string{}, e.degrade("filter_options", err)
	}
	return vals, nil
}
