package service

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/nes_dashboard/backend/internal/analytics"
	"github.com/nes_dashboard/backend/internal/db"
	"github.com/nes_dashboard/backend/internal/filter"
	"github.com/nes_dashboard/backend/internal/models"
)

func newTicketSession(t *testing.T, clock quartz.Clock) *Session {
	t.Helper()
	store := db.New(db.Options{Logger: zerolog.Nop()})
	require.NoError(t, store.Initialize(context.Background()))
	t.Cleanup(func() { _ = store.Close() })

	_, err := store.Load(context.Background(), db.TicketsTable.Name, db.TicketRows([]models.Ticket{
		{ReferenceID: "A", Status: "Open", State: "Johor"},
		{ReferenceID: "B", Status: "Open", State: "Perak"},
		{ReferenceID: "C", Status: "Closed", State: "Johor"},
	}), db.LoadOptions{})
	require.NoError(t, err)

	s := NewTicketSession(store, analytics.New(store, zerolog.Nop()), SessionOptions{
		Clock:    clock,
		Logger:   zerolog.Nop(),
		Location: time.UTC,
	})
	t.Cleanup(s.Close)
	return s
}

func TestSessionDebouncedRecompute(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	clock := quartz.NewMock(t)
	s := newTicketSession(t, clock)

	require.NoError(t, s.Toggle("status", "Open"))
	clock.Advance(100 * time.Millisecond).MustWait(ctx)
	require.NoError(t, s.Toggle("state", "Johor"))
	require.True(t, s.Snapshot().Pending)
	require.Zero(t, s.Snapshot().Total)

	clock.Advance(DefaultDebounce).MustWait(ctx)
	snap := s.Snapshot()
	require.False(t, snap.Pending)
	require.Equal(t, 3, snap.Total)
	require.Equal(t, 1, snap.Filtered)
	require.Equal(t, 2, snap.ActiveFilters)
	require.Len(t, snap.Records, 1)

	q, err := url.ParseQuery(snap.Query)
	require.NoError(t, err)
	require.Equal(t, "Open", q.Get("status"))
	require.Equal(t, "Johor", q.Get("state"))

	summary, ok := snap.Summary.(models.TicketSummary)
	require.True(t, ok)
	require.Equal(t, 1, summary.Total)
}

func TestSessionRefreshSkipsDebounce(t *testing.T) {
	s := newTicketSession(t, quartz.NewMock(t))

	require.NoError(t, s.Toggle("status", "Closed"))
	snap, err := s.Refresh(context.Background())
	require.NoError(t, err)
	require.False(t, snap.Pending)
	require.Equal(t, 1, snap.Filtered)

	require.NoError(t, s.Reset())
	snap, err = s.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, snap.Filtered)
	require.Zero(t, snap.ActiveFilters)
}

func TestSessionDiscardsStaleResult(t *testing.T) {
	s := newTicketSession(t, quartz.NewMock(t))

	_, err := s.Refresh(context.Background())
	require.NoError(t, err)
	committed := s.Snapshot()
	require.Equal(t, 3, committed.Filtered)

	// A mutation landing while records are being fetched makes the result
	// stale; it must not replace the committed snapshot.
	records := s.records
	s.records = func(ctx context.Context, clause string, page db.Page) (any, error) {
		s.gen.Next()
		return records(ctx, clause, page)
	}
	require.NoError(t, s.SetValues("status", []string{"Closed"}))
	require.NoError(t, s.compute(context.Background()))

	snap := s.Snapshot()
	require.Equal(t, committed.Generation, snap.Generation)
	require.Equal(t, 3, snap.Filtered)
	require.True(t, snap.Pending)

	s.records = records
	snap, err = s.Refresh(context.Background())
	require.NoError(t, err)
	require.False(t, snap.Pending)
	require.Equal(t, 1, snap.Filtered)
}

func TestSessionApplyAndErrors(t *testing.T) {
	s := newTicketSession(t, quartz.NewMock(t))

	require.ErrorIs(t, s.Toggle("colour", "red"), filter.ErrUnknownDimension)
	require.ErrorIs(t, s.SetQuickDateRange("fortnight", time.Now()), filter.ErrUnknownPeriod)

	require.NoError(t, s.Apply(url.Values{"status": {"Open,Closed"}, "start": {"2024-03-01"}}))
	st := s.State()
	require.Equal(t, []string{"Open", "Closed"}, st.Values("status"))
	require.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), st.DateRange().Start)
	require.Equal(t, "Open,Closed", s.Encoded().Get("status"))

	require.NoError(t, s.SetQuickDateRange(filter.CurrentMonth, time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)))
	require.Equal(t, time.Date(2024, 3, 31, 23, 59, 59, 999_000_000, time.UTC), s.State().DateRange().End)
}

func TestSessionInvalidateRecomputes(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	clock := quartz.NewMock(t)
	s := newTicketSession(t, clock)

	_, err := s.Refresh(ctx)
	require.NoError(t, err)
	gen := s.Snapshot().Generation

	s.Invalidate()
	require.True(t, s.Snapshot().Pending)
	clock.Advance(DefaultDebounce).MustWait(ctx)

	snap := s.Snapshot()
	require.False(t, snap.Pending)
	require.Greater(t, snap.Generation, gen)
	require.Equal(t, 3, snap.Total)
}
