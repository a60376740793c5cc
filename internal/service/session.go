package service

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/nes_dashboard/backend/internal/analytics"
	"github.com/nes_dashboard/backend/internal/db"
	"github.com/nes_dashboard/backend/internal/filter"
	"github.com/nes_dashboard/backend/internal/query"
	"github.com/nes_dashboard/backend/internal/scheduler"
)

const (
	DefaultDebounce = 250 * time.Millisecond
	DefaultRowCap   = 2000
)

// Snapshot is the committed result of the latest settled filter state.
type Snapshot struct {
	Generation    uint64    `json:"generation"`
	Query         string    `json:"query"`
	ActiveFilters int       `json:"active_filters"`
	Total         int       `json:"total"`
	Filtered      int       `json:"filtered"`
	Records       any       `json:"records"`
	Summary       any       `json:"summary,omitempty"`
	ComputedAt    time.Time `json:"computed_at"`
	Pending       bool      `json:"pending"`
}

type fetchRecords func(ctx context.Context, clause string, page db.Page) (any, error)
type fetchSummary func(ctx context.Context, clause query.Clause) (any, error)

type SessionOptions struct {
	Debounce time.Duration
	RowCap   int
	Clock    quartz.Clock
	Logger   zerolog.Logger
	Location *time.Location
}

// Session is one dashboard's filter state plus the results computed for it.
// Mutations re-query after the debounce window; results computed for a state
// that has since changed are dropped.
type Session struct {
	name       string
	table      string
	dims       []query.Dimension
	dateColumn string
	store      *db.Store
	records    fetchRecords
	summary    fetchSummary
	opts       SessionOptions
	log        zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	state *filter.State

	gen       scheduler.Generation
	debouncer *scheduler.Debouncer

	snapMu   sync.RWMutex
	snapshot Snapshot
}

func newSession(name, table string, conv filter.Convention, dims []query.Dimension, dateColumn string,
	store *db.Store, records fetchRecords, summary fetchSummary, opts SessionOptions) *Session {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.RowCap <= 0 {
		opts.RowCap = DefaultRowCap
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		name:       name,
		table:      table,
		dims:       dims,
		dateColumn: dateColumn,
		store:      store,
		records:    records,
		summary:    summary,
		opts:       opts,
		log:        opts.Logger.With().Str("session", name).Logger(),
		ctx:        ctx,
		cancel:     cancel,
		state:      filter.New(conv, query.Names(dims)...),
	}
	s.debouncer = scheduler.NewDebouncer(opts.Clock, opts.Debounce, s.recompute)
	return s
}

// NewTicketSession builds the maintenance ticket dashboard session. Ticket
// filters treat an empty selection as unrestricted.
func NewTicketSession(store *db.Store, engine *analytics.Engine, opts SessionOptions) *Session {
	return newSession(DatasetTickets, db.TicketsTable.Name, filter.EmptyMeansAll,
		query.TicketDimensions, query.TicketDateColumn, store,
		func(ctx context.Context, clause string, page db.Page) (any, error) {
			return store.QueryTickets(ctx, clause, page)
		},
		func(ctx context.Context, clause query.Clause) (any, error) {
			return engine.TicketSummary(ctx, clause)
		}, opts)
}

// NewParticipationSession builds the NES participation dashboard session.
// Its filters use the {"All"} sentinel.
func NewParticipationSession(store *db.Store, engine *analytics.Engine, opts SessionOptions) *Session {
	return newSession(DatasetParticipation, db.ParticipationTable.Name, filter.SentinelAll,
		query.ParticipationDimensions, query.ParticipationDateColumn, store,
		func(ctx context.Context, clause string, page db.Page) (any, error) {
			return store.QueryParticipation(ctx, clause, page)
		},
		func(ctx context.Context, clause query.Clause) (any, error) {
			return engine.ParticipationKPIs(ctx, clause)
		}, opts)
}

func (s *Session) Name() string { return s.name }

func (s *Session) Dimensions() []query.Dimension { return s.dims }

func (s *Session) mutate(fn func(st *filter.State) error) error {
	s.mu.Lock()
	err := fn(s.state)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.gen.Next()
	s.debouncer.Trigger()
	return nil
}

func (s *Session) Toggle(dim, value string) error {
	return s.mutate(func(st *filter.State) error { return st.Toggle(dim, value) })
}

func (s *Session) SetValues(dim string, values []string) error {
	return s.mutate(func(st *filter.State) error { return st.SetValues(dim, values) })
}

func (s *Session) SetDateRange(r filter.DateRange) error {
	return s.mutate(func(st *filter.State) error {
		st.SetDateRange(r)
		return nil
	})
}

func (s *Session) SetQuickDateRange(period string, now time.Time) error {
	return s.mutate(func(st *filter.State) error { return st.SetQuickDateRange(period, now.In(s.opts.Location)) })
}

func (s *Session) Reset() error {
	return s.mutate(func(st *filter.State) error {
		st.Reset()
		return nil
	})
}

// Apply replaces the state with the one encoded in values.
func (s *Session) Apply(values url.Values) error {
	return s.mutate(func(st *filter.State) error {
		st.Reset()
		filter.Decode(values, st, s.opts.Location)
		return nil
	})
}

// State returns a copy of the current filter state.
func (s *Session) State() *filter.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

func (s *Session) Encoded() url.Values {
	return filter.Encode(s.State())
}

// Clause builds the predicate for the current state.
func (s *Session) Clause() query.Clause {
	return query.Build(s.State(), s.dims, s.dateColumn)
}

// Invalidate schedules a recompute of the unchanged state, e.g. after the
// underlying table was reloaded.
func (s *Session) Invalidate() {
	s.gen.Next()
	s.debouncer.Trigger()
}

// Snapshot returns the last committed result.
func (s *Session) Snapshot() Snapshot {
	s.snapMu.RLock()
	snap := s.snapshot
	s.snapMu.RUnlock()
	snap.Pending = s.debouncer.Pending() || !s.gen.IsCurrent(snap.Generation)
	return snap
}

// Refresh computes the current state right away instead of waiting for the
// debounce window, and returns the committed snapshot.
func (s *Session) Refresh(ctx context.Context) (Snapshot, error) {
	s.debouncer.Cancel()
	if err := s.compute(ctx); err != nil {
		return Snapshot{}, err
	}
	return s.Snapshot(), nil
}

func (s *Session) recompute() {
	if err := s.compute(s.ctx); err != nil && s.ctx.Err() == nil {
		s.log.Warn().Err(err).Msg("recompute failed")
	}
}

func (s *Session) compute(ctx context.Context) error {
	tag := s.gen.Current()
	st := s.State()
	clause := query.Build(st, s.dims, s.dateColumn)

	total, err := s.store.Count(ctx, s.table, "")
	if err != nil {
		return err
	}
	filtered, err := s.store.Count(ctx, s.table, clause.String())
	if err != nil {
		return err
	}
	records, err := s.records(ctx, clause.String(), db.Page{Limit: s.opts.RowCap})
	if err != nil {
		return err
	}
	summary, err := s.summary(ctx, clause)
	if err != nil {
		return err
	}

	if !s.gen.IsCurrent(tag) {
		s.log.Debug().Uint64("generation", tag).Msg("discarding stale result")
		return nil
	}
	s.snapMu.Lock()
	defer s.snapMu.Unlock()
	if s.snapshot.Generation > tag {
		return nil
	}
	s.snapshot = Snapshot{
		Generation:    tag,
		Query:         filter.Encode(st).Encode(),
		ActiveFilters: st.ActiveCount(),
		Total:         total,
		Filtered:      filtered,
		Records:       records,
		Summary:       summary,
		ComputedAt:    time.Now().UTC(),
	}
	return nil
}

// Close stops pending recomputation. The session must not be used afterwards.
func (s *Session) Close() {
	s.debouncer.Stop()
	s.cancel()
}
