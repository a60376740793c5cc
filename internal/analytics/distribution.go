package analytics

import (
	"context"
	"fmt"
	"sort"

	"github.com/nes_dashboard/backend/internal/models"
	"github.com/nes_dashboard/backend/internal/query"
)

// Distribution groups the filtered rows of table by column. Counts are
// ordered descending with ties broken by value; they sum to the filtered
// row count. Null values are reported as "Unknown".
func (e *Engine) Distribution(ctx context.Context, table, column string, clause query.Clause) ([]models.Count, error) {
	t, err := e.column(table, column)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT COALESCE(CAST(%[1]s AS TEXT), 'Unknown') AS value, COUNT(*) AS count
FROM %[2]s %[3]s GROUP BY value ORDER BY count DESC, value ASC`, column, t.Name, clause.String())

	out := []models.Count{}
	if err := e.Store.Select(ctx, t.Name, &out, q); err != nil {
		return []models.Count{}, e.degrade("distribution", err)
	}
	return out, nil
}

// TimeSeries counts rows per month key in chronological order, keeping the
// last lastN periods when lastN is positive. Rows without a month are
// skipped.
func (e *Engine) TimeSeries(ctx context.Context, table, monthColumn string, clause query.Clause, lastN int) ([]models.SeriesPoint, error) {
	t, err := e.column(table, monthColumn)
	if err != nil {
		return nil, err
	}
	clause = clause.And(
		monthColumn+" IS NOT NULL",
		monthColumn+" NOT IN ('', 'Unknown')",
	)
	q := fmt.Sprintf(`SELECT %[1]s AS period, COUNT(*) AS count
FROM %[2]s %[3]s GROUP BY period ORDER BY period ASC`, monthColumn, t.Name, clause.String())

	out := []models.SeriesPoint{}
	if err := e.Store.Select(ctx, t.Name, &out, q); err != nil {
		return []models.SeriesPoint{}, e.degrade("timeseries", err)
	}
	if lastN > 0 && len(out) > lastN {
		out = out[len(out)-lastN:]
	}
	return out, nil
}

type cell struct {
	Row   string `db:"row_value"`
	Col   string `db:"col_value"`
	Count int    `db:"count"`
}

// Crosstab counts rows for every (rowColumn, colColumn) pair. Rows and
// columns are ordered by their totals, largest first.
func (e *Engine) Crosstab(ctx context.Context, table, rowColumn, colColumn string, clause query.Clause) (models.Crosstab, error) {
	empty := models.Crosstab{Rows: []string{}, Cols: []string{}, Cells: [][]int{}, RowTotals: []int{}, ColTotals: []int{}}
	t, err := e.column(table, rowColumn)
	if err != nil {
		return empty, err
	}
	if _, err := e.column(table, colColumn); err != nil {
		return empty, err
	}

	q := fmt.Sprintf(`SELECT COALESCE(CAST(%[1]s AS TEXT), 'Unknown') AS row_value,
	COALESCE(CAST(%[2]s AS TEXT), 'Unknown') AS col_value, COUNT(*) AS count
FROM %[3]s %[4]s GROUP BY row_value, col_value`, rowColumn, colColumn, t.Name, clause.String())

	var cells []cell
	if err := e.Store.Select(ctx, t.Name, &cells, q); err != nil {
		return empty, e.degrade("crosstab", err)
	}
	return buildCrosstab(cells), nil
}

func buildCrosstab(cells []cell) models.Crosstab {
	rowTotals := map[string]int{}
	colTotals := map[string]int{}
	total := 0
	for _, c := range cells {
		rowTotals[c.Row] += c.Count
		colTotals[c.Col] += c.Count
		total += c.Count
	}

	rows := byTotal(rowTotals)
	cols := byTotal(colTotals)
	rowIdx := indexOf(rows)
	colIdx := indexOf(cols)

	x := models.Crosstab{
		Rows:      rows,
		Cols:      cols,
		Cells:     make([][]int, len(rows)),
		RowTotals: make([]int, len(rows)),
		ColTotals: make([]int, len(cols)),
		Total:     total,
	}
	for i := range x.Cells {
		x.Cells[i] = make([]int, len(cols))
	}
	for _, c := range cells {
		x.Cells[rowIdx[c.Row]][colIdx[c.Col]] += c.Count
	}
	for i, r := range rows {
		x.RowTotals[i] = rowTotals[r]
	}
	for j, c := range cols {
		x.ColTotals[j] = colTotals[c]
	}
	return x
}

func byTotal(totals map[string]int) []string {
	keys := make([]string, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if totals[keys[i]] != totals[keys[j]] {
			return totals[keys[i]] > totals[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

func indexOf(keys []string) map[string]int {
	m := make(map[string]int, len(keys))
	for i, k := range keys {
		m[k] = i
	}
	return m
}
