// Package filter holds the per-dashboard filter selections and the rules for
// changing them.
package filter

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"
)

// All is the sentinel value used by the SentinelAll convention.
const All = "All"

var ErrUnknownDimension = errors.New("unknown filter dimension")

// Convention decides how "no restriction" is spelled for a dimension.
type Convention int

const (
	// EmptyMeansAll treats an empty selection as unrestricted.
	EmptyMeansAll Convention = iota
	// SentinelAll keeps {"All"} as the unrestricted selection. Toggling "All"
	// clears specific values; removing the last specific value restores "All".
	SentinelAll
)

func (c Convention) String() string {
	if c == SentinelAll {
		return "sentinel-all"
	}
	return "empty-means-all"
}

type DateRange struct {
	Start time.Time
	End   time.Time
}

func (r DateRange) IsZero() bool { return r.Start.IsZero() && r.End.IsZero() }

// State is the set of selected values per dimension plus an optional date
// range. It is not safe for concurrent use; sessions guard it.
type State struct {
	convention Convention
	dims       []string
	values     map[string][]string
	dates      DateRange
}

func New(convention Convention, dims ...string) *State {
	s := &State{
		convention: convention,
		dims:       slices.Clone(dims),
		values:     make(map[string][]string, len(dims)),
	}
	s.Reset()
	return s
}

func (s *State) Convention() Convention { return s.convention }

func (s *State) Dimensions() []string { return slices.Clone(s.dims) }

func (s *State) unrestricted() []string {
	if s.convention == SentinelAll {
		return []string{All}
	}
	return []string{}
}

func (s *State) check(dim string) error {
	if _, ok := s.values[dim]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDimension, dim)
	}
	return nil
}

// Toggle adds value to dim's selection, or removes it if already selected.
func (s *State) Toggle(dim, value string) error {
	if err := s.check(dim); err != nil {
		return err
	}
	cur := s.values[dim]

	if s.convention == SentinelAll {
		if value == All {
			s.values[dim] = []string{All}
			return nil
		}
		if slices.Contains(cur, value) {
			next := lo.Without(cur, value)
			if len(next) == 0 {
				next = []string{All}
			}
			s.values[dim] = next
			return nil
		}
		s.values[dim] = append(lo.Without(cur, All), value)
		return nil
	}

	if slices.Contains(cur, value) {
		s.values[dim] = lo.Without(cur, value)
		return nil
	}
	s.values[dim] = append(slices.Clone(cur), value)
	return nil
}

// SetValues replaces dim's selection. Duplicates are dropped; under
// SentinelAll an empty list or one containing "All" means unrestricted.
func (s *State) SetValues(dim string, values []string) error {
	if err := s.check(dim); err != nil {
		return err
	}
	values = lo.Uniq(lo.Compact(values))
	if s.convention == SentinelAll && (len(values) == 0 || slices.Contains(values, All)) {
		s.values[dim] = []string{All}
		return nil
	}
	s.values[dim] = values
	return nil
}

// Values returns a copy of dim's raw selection.
func (s *State) Values(dim string) []string {
	return slices.Clone(s.values[dim])
}

// Restricted reports whether dim limits the result set.
func (s *State) Restricted(dim string) bool {
	v := s.values[dim]
	if len(v) == 0 {
		return false
	}
	if s.convention == SentinelAll {
		return !slices.Contains(v, All)
	}
	return true
}

// Selected returns dim's values when it is restricted, nil otherwise.
func (s *State) Selected(dim string) []string {
	if !s.Restricted(dim) {
		return nil
	}
	return s.Values(dim)
}

func (s *State) Reset() {
	for _, d := range s.dims {
		s.values[d] = s.unrestricted()
	}
	s.dates = DateRange{}
}

func (s *State) SetDateRange(r DateRange) { s.dates = r }

func (s *State) DateRange() DateRange { return s.dates }

// ActiveCount is the number of restricted dimensions, plus one when a date
// bound is set.
func (s *State) ActiveCount() int {
	n := lo.CountBy(s.dims, s.Restricted)
	if !s.dates.IsZero() {
		n++
	}
	return n
}

func (s *State) Clone() *State {
	c := &State{
		convention: s.convention,
		dims:       slices.Clone(s.dims),
		values:     make(map[string][]string, len(s.values)),
		dates:      s.dates,
	}
	for k, v := range s.values {
		c.values[k] = slices.Clone(v)
	}
	return c
}
