// Package query turns filter state into SQL predicates for the analytical
// store.
package query

import (
	"strconv"
	"strings"
	"time"

	"github.com/nes_dashboard/backend/internal/filter"
	"github.com/nes_dashboard/backend/internal/models"
)

// Dimension binds a filter dimension to the column it restricts.
type Dimension struct {
	Name    string
	Column  string
	Numeric bool
	Label   string

	// SortColumn orders option lists when Column does not sort naturally
	// (month names by month number).
	SortColumn string
}

// Clause is a conjunction of SQL conditions. The zero value matches every row.
type Clause struct {
	conds []string
}

// Build emits one condition per restricted dimension plus the date bounds.
// Values are quoted with doubled single quotes; numeric dimensions are left
// unquoted when every value is an integer.
func Build(state *filter.State, dims []Dimension, dateColumn string) Clause {
	var c Clause
	for _, d := range dims {
		vals := state.Selected(d.Name)
		if len(vals) == 0 {
			continue
		}
		c.conds = append(c.conds, In(d.Column, vals, d.Numeric))
	}

	r := state.DateRange()
	if dateColumn != "" {
		if !r.Start.IsZero() {
			c.conds = append(c.conds, dateColumn+" >= "+Quote(formatBound(r.Start)))
		}
		if !r.End.IsZero() {
			c.conds = append(c.conds, dateColumn+" <= "+Quote(formatBound(r.End)))
		}
	}
	return c
}

// And returns a copy of c with extra conditions appended.
func (c Clause) And(extra ...string) Clause {
	out := Clause{conds: make([]string, 0, len(c.conds)+len(extra))}
	out.conds = append(out.conds, c.conds...)
	for _, e := range extra {
		if e = strings.TrimSpace(e); e != "" {
			out.conds = append(out.conds, e)
		}
	}
	return out
}

func (c Clause) Empty() bool { return len(c.conds) == 0 }

func (c Clause) Conditions() []string {
	return append([]string(nil), c.conds...)
}

func (c Clause) String() string {
	if len(c.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(c.conds, " AND ")
}

// In renders column membership for vals; a single value renders as equality.
func In(column string, vals []string, numeric bool) string {
	numeric = numeric && allIntegers(vals)
	parts := make([]string, len(vals))
	for i, v := range vals {
		if numeric {
			parts[i] = strings.TrimSpace(v)
		} else {
			parts[i] = Quote(v)
		}
	}
	if len(parts) == 1 {
		return column + " = " + parts[0]
	}
	return column + " IN (" + strings.Join(parts, ", ") + ")"
}

// Quote wraps s as a SQL string literal.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func allIntegers(vals []string) bool {
	for _, v := range vals {
		if _, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err != nil {
			return false
		}
	}
	return true
}

// Dates are stored as UTC text, so bounds compare lexicographically.
func formatBound(t time.Time) string {
	return t.UTC().Format(models.DateLayout)
}

// Lookup finds a dimension by filter name.
func Lookup(dims []Dimension, name string) (Dimension, bool) {
	for _, d := range dims {
		if d.Name == name {
			return d, true
		}
	}
	return Dimension{}, false
}

// Names lists the filter names of dims in order.
func Names(dims []Dimension) []string {
	out := make([]string, len(dims))
	for i, d := range dims {
		out[i] = d.Name
	}
	return out
}
