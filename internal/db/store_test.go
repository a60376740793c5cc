package db

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/nes_dashboard/backend/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(Options{Logger: zerolog.Nop()})
	require.NoError(t, s.Initialize(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleTickets() []models.Ticket {
	reg := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)
	return []models.Ticket{
		{Title: "Leak", Status: "Open", ReferenceID: "R1", RegisteredAt: models.NewDate(reg), RegisteredMonth: "2024-03",
			Actions: models.Actions{{ID: 1, Text: "Checked", Files: []string{"https://x.test/a.jpg"}}}},
		{Title: "Fan", Status: "Open", ReferenceID: "R2"},
		{Title: "Door", Status: "Closed", ReferenceID: "R3", RegisteredAt: models.NewDate(reg.AddDate(0, 0, 1))},
	}
}

func TestQueryBeforeInitialize(t *testing.T) {
	s := New(Options{Logger: zerolog.Nop()})
	_, err := s.Query(context.Background(), TicketsTable.Name, "", Page{})
	require.ErrorIs(t, err, ErrNotInitialized)
	_, err = s.Load(context.Background(), TicketsTable.Name, nil, LoadOptions{})
	require.ErrorIs(t, err, ErrNotInitialized)
}

func TestInitializeConcurrent(t *testing.T) {
	s := New(Options{Logger: zerolog.Nop()})
	defer s.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, s.Initialize(context.Background()))
		}()
	}
	wg.Wait()
	require.True(t, s.Initialized())

	require.NoError(t, s.Close())
	require.False(t, s.Initialized())
	require.NoError(t, s.Initialize(context.Background()))
}

func TestLoadIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var progress []int
	res, err := s.Load(ctx, TicketsTable.Name, TicketRows(sampleTickets()), LoadOptions{
		OnProgress: func(n int) { progress = append(progress, n) },
	})
	require.NoError(t, err)
	require.Equal(t, 3, res.Rows)
	require.False(t, res.Skipped)
	require.Equal(t, []int{3}, progress)

	exists, err := s.TableExists(ctx, TicketsTable.Name)
	require.NoError(t, err)
	require.True(t, exists)

	res, err = s.Load(ctx, TicketsTable.Name, TicketRows(sampleTickets()[:1]), LoadOptions{})
	require.NoError(t, err)
	require.True(t, res.Skipped)
	require.Equal(t, 3, res.Rows)

	res, err = s.Load(ctx, TicketsTable.Name, TicketRows(sampleTickets()[:1]), LoadOptions{Force: true})
	require.NoError(t, err)
	require.Equal(t, 1, res.Rows)

	n, err := s.Count(ctx, TicketsTable.Name, "")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestCountCachePurgedOnReload(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Load(ctx, TicketsTable.Name, TicketRows(sampleTickets()), LoadOptions{})
	require.NoError(t, err)
	n, err := s.Count(ctx, TicketsTable.Name, "WHERE status IN ('Open')")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	_, err = s.DropAndReload(ctx, TicketsTable.Name, func(_ context.Context, emit func([][]any) error) error {
		return emit(TicketRows(sampleTickets()[2:]))
	}, nil)
	require.NoError(t, err)
	n, err = s.Count(ctx, TicketsTable.Name, "WHERE status IN ('Open')")
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestStreamedLoadInChunks(t *testing.T) {
	s := newTestStore(t)
	rows := TicketRows(sampleTickets())

	var progress []int
	res, err := s.LoadStream(context.Background(), TicketsTable.Name, func(_ context.Context, emit func([][]any) error) error {
		for _, r := range rows {
			if err := emit([][]any{r}); err != nil {
				return err
			}
		}
		return nil
	}, LoadOptions{OnProgress: func(n int) { progress = append(progress, n) }})
	require.NoError(t, err)
	require.Equal(t, 3, res.Rows)
	require.Equal(t, []int{1, 2, 3}, progress)
}

func TestTypedQueryRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Load(ctx, TicketsTable.Name, TicketRows(sampleTickets()), LoadOptions{})
	require.NoError(t, err)

	got, err := s.QueryTickets(ctx, "WHERE status IN ('Open')", Page{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "R1", got[0].ReferenceID)
	require.True(t, got[0].RegisteredAt.Valid)
	require.Equal(t, 2, got[0].RegisteredAt.Time.Day())
	require.Len(t, got[0].Actions, 1)
	require.Equal(t, "Checked", got[0].Actions[0].Text)
	require.False(t, got[1].RegisteredAt.Valid)
}

func TestPaging(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Load(ctx, TicketsTable.Name, TicketRows(sampleTickets()), LoadOptions{})
	require.NoError(t, err)

	rows, err := s.Query(ctx, TicketsTable.Name, "", Page{Order: "refid_mcmc DESC", Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "R2", rows[0]["refid_mcmc"])
	require.Equal(t, "R1", rows[1]["refid_mcmc"])
}

func TestQueryFailuresDegrade(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rows, err := s.Query(ctx, TicketsTable.Name, "", Page{})
	require.NoError(t, err)
	require.Empty(t, rows)

	_, err = s.Load(ctx, TicketsTable.Name, TicketRows(sampleTickets()), LoadOptions{})
	require.NoError(t, err)
	rows, err = s.Query(ctx, TicketsTable.Name, "WHERE no_such_column = 1", Page{})
	require.NoError(t, err)
	require.Empty(t, rows)

	n, err := s.Count(ctx, TicketsTable.Name, "WHERE (")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestUnknownTable(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Query(context.Background(), "nope", "", Page{})
	require.ErrorIs(t, err, ErrUnknownTable)
}

func TestSafeOrder(t *testing.T) {
	require.Equal(t, "status DESC, title", TicketsTable.SafeOrder("status desc, title"))
	require.Equal(t, TicketsTable.DefaultOrder, TicketsTable.SafeOrder("status; DROP TABLE x"))
	require.Equal(t, TicketsTable.DefaultOrder, TicketsTable.SafeOrder("status sideways"))
	require.Equal(t, TicketsTable.DefaultOrder, TicketsTable.SafeOrder(""))
}

func TestParticipationRowWidth(t *testing.T) {
	require.Len(t, ParticipationRow(models.Participation{}), len(ParticipationTable.Columns))
	require.Len(t, TicketRow(models.Ticket{}), len(TicketsTable.Columns))
}

func TestReadsDuringReload(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Load(ctx, TicketsTable.Name, TicketRows(sampleTickets()), LoadOptions{})
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := s.DropAndReload(ctx, TicketsTable.Name, func(_ context.Context, emit func([][]any) error) error {
			if err := emit(TicketRows(sampleTickets()[:1])); err != nil {
				return err
			}
			close(started)
			<-release
			return nil
		}, nil)
		done <- err
	}()
	<-started

	readCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	got, err := s.QueryTickets(readCtx, "", Page{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	n, err := s.countRaw(readCtx, TicketsTable.Name, "")
	require.NoError(t, err)
	require.Equal(t, 3, n)

	close(release)
	require.NoError(t, <-done)
	n, err = s.Count(ctx, TicketsTable.Name, "")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	exists, err := s.TableExists(ctx, TicketsTable.Name+"_staging")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestFailedReloadKeepsPreviousTable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Load(ctx, TicketsTable.Name, TicketRows(sampleTickets()), LoadOptions{})
	require.NoError(t, err)

	boom := errors.New("source went away")
	_, err = s.DropAndReload(ctx, TicketsTable.Name, func(_ context.Context, emit func([][]any) error) error {
		if err := emit(TicketRows(sampleTickets()[:1])); err != nil {
			return err
		}
		return boom
	}, nil)
	require.ErrorIs(t, err, boom)

	n, err := s.Count(ctx, TicketsTable.Name, "")
	require.NoError(t, err)
	require.Equal(t, 3, n)
	exists, err := s.TableExists(ctx, TicketsTable.Name+"_staging")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestLoadCreatesIndexes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, tbl := range []Table{TicketsTable, ParticipationTable} {
		_, err := s.Load(ctx, tbl.Name, nil, LoadOptions{})
		require.NoError(t, err)

		conn, err := s.conn()
		require.NoError(t, err)
		var names []string
		require.NoError(t, conn.SelectContext(ctx, &names,
			`SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = ?`, tbl.Name))

		for _, col := range tbl.Indexes {
			require.Contains(t, names, "idx_"+tbl.Name+"_"+col)
		}
		for _, term := range strings.Split(tbl.DefaultOrder, ",") {
			col := strings.Fields(term)[0]
			require.Contains(t, names, "idx_"+tbl.Name+"_"+col)
		}
	}
	require.Contains(t, ParticipationTable.IndexColumns(), "event_id")
	require.Contains(t, TicketsTable.IndexColumns(), "refid_mcmc")
}
