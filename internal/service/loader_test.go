package service

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/nes_dashboard/backend/internal/cache"
	"github.com/nes_dashboard/backend/internal/config"
	"github.com/nes_dashboard/backend/internal/db"
	"github.com/nes_dashboard/backend/internal/demo"
	"github.com/nes_dashboard/backend/internal/source"
)

const ticketCSV = `Title,Refid_MCMC,Status,State,Registered_Date
Leak,R1,Open,Johor,2024-03-02 09:00:00
Fan,R2,Open,Perak,2024-03-05 10:00:00
Door,R3,Closed,Johor,2024-02-01 08:00:00
`

func newLoader(t *testing.T, cfg config.Config) *Loader {
	t.Helper()
	store := db.New(db.Options{Logger: zerolog.Nop()})
	t.Cleanup(func() { _ = store.Close() })
	c, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"), cache.Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	if cfg.CacheMaxAge == 0 {
		cfg.CacheMaxAge = time.Hour
	}
	return &Loader{
		Store:   store,
		Cache:   c,
		Fetcher: &source.Fetcher{},
		Config:  cfg,
		Logger:  zerolog.Nop(),
	}
}

// flakyServer serves body until fail is set, then answers 500.
func flakyServer(t *testing.T, body string, fail *atomic.Bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "down", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLoadTicketsFromCSV(t *testing.T) {
	var fail atomic.Bool
	srv := flakyServer(t, ticketCSV, &fail)
	l := newLoader(t, config.Config{TicketsURL: srv.URL + "/tickets.csv"})
	ctx := context.Background()

	sum, err := l.Load(ctx, DatasetTickets, false)
	require.NoError(t, err)
	require.Equal(t, SourceRemote, sum.Source)
	require.Equal(t, 3, sum.Rows)
	require.NotEmpty(t, sum.Events)

	st := l.Status(DatasetTickets)
	require.Equal(t, StageReady, st.Stage)
	require.Equal(t, 100, st.Progress)
	require.Empty(t, st.Error)

	sum, err = l.Load(ctx, DatasetTickets, false)
	require.NoError(t, err)
	require.True(t, sum.Skipped)
	require.Equal(t, 3, sum.Rows)

	// Same payload again: the normalized copy comes from the cache.
	sum, err = l.Load(ctx, DatasetTickets, true)
	require.NoError(t, err)
	require.Equal(t, SourceCache, sum.Source)
	require.Equal(t, 3, sum.Rows)

	tickets, err := l.Store.QueryTickets(ctx, "WHERE status = 'Open'", db.Page{})
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	require.Equal(t, "2024-03", tickets[0].RegisteredMonth)
}

func TestLoadFallsBackToCache(t *testing.T) {
	var fail atomic.Bool
	srv := flakyServer(t, ticketCSV, &fail)
	l := newLoader(t, config.Config{TicketsURL: srv.URL, DemoFallback: true})
	ctx := context.Background()

	_, err := l.Load(ctx, DatasetTickets, false)
	require.NoError(t, err)

	fail.Store(true)
	sum, err := l.Load(ctx, DatasetTickets, true)
	require.NoError(t, err)
	require.Equal(t, SourceCache, sum.Source)
	require.Equal(t, 3, sum.Rows)

	st := l.Status(DatasetTickets)
	require.Equal(t, StageReady, st.Stage)
	require.Contains(t, st.Error, "500")
}

func TestLoadFallsBackToDemo(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	srv := flakyServer(t, "", &fail)
	l := newLoader(t, config.Config{TicketsURL: srv.URL, DemoFallback: true})

	sum, err := l.Load(context.Background(), DatasetTickets, false)
	require.NoError(t, err)
	require.Equal(t, SourceDemo, sum.Source)
	require.Equal(t, demo.TicketCount, sum.Rows)
	require.NotEmpty(t, l.Status(DatasetTickets).Error)
}

func TestLoadWithoutCache(t *testing.T) {
	var fail atomic.Bool
	srv := flakyServer(t, ticketCSV, &fail)
	l := newLoader(t, config.Config{TicketsURL: srv.URL})
	l.Cache = nil
	ctx := context.Background()

	sum, err := l.Load(ctx, DatasetTickets, false)
	require.NoError(t, err)
	require.Equal(t, SourceRemote, sum.Source)
	require.Equal(t, 3, sum.Rows)
	require.Equal(t, StageReady, l.Status(DatasetTickets).Stage)

	sum, err = l.Load(ctx, DatasetTickets, true)
	require.NoError(t, err)
	require.Equal(t, SourceRemote, sum.Source)
	require.Equal(t, 3, sum.Rows)
}

func TestLoadWithoutFallbackFails(t *testing.T) {
	l := newLoader(t, config.Config{})

	_, err := l.Load(context.Background(), DatasetTickets, false)
	require.ErrorIs(t, err, ErrNoSource)
	st := l.Status(DatasetTickets)
	require.Equal(t, StageFailed, st.Stage)
	require.NotEmpty(t, st.Error)
}

func TestLoadTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	l := newLoader(t, config.Config{TicketsURL: srv.URL, LoadTimeout: 50 * time.Millisecond, DemoFallback: true})
	sum, err := l.Load(context.Background(), DatasetTickets, false)
	require.NoError(t, err)
	require.Equal(t, SourceDemo, sum.Source)
	require.Contains(t, l.Status(DatasetTickets).Error, "deadline")
}

type nesRow struct {
	ParticipantID string  `parquet:"participant_id"`
	EventID       string  `parquet:"event_id"`
	State         string  `parquet:"state_name"`
	EventDate     string  `parquet:"event_date"`
	Attendance    float64 `parquet:"attendance_rate_percent"`
}

func TestLoadParticipationFromParquet(t *testing.T) {
	var buf bytes.Buffer
	w := parquet.NewGenericWriter[nesRow](&buf)
	_, err := w.Write([]nesRow{
		{ParticipantID: "1", EventID: "E1", State: "Johor", EventDate: "2024-01-15", Attendance: 80},
		{ParticipantID: "2", EventID: "E1", State: "Johor", EventDate: "2024-01-15", Attendance: 60},
		{ParticipantID: "3", EventID: "E2", State: "Perak", EventDate: "2024-02-20", Attendance: 90},
	})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	data := buf.Bytes()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "nes.parquet", time.Time{}, bytes.NewReader(data))
	}))
	defer srv.Close()

	l := newLoader(t, config.Config{ParticipationParquetURL: srv.URL, ParquetBatch: 2})
	sum, err := l.Load(context.Background(), DatasetParticipation, false)
	require.NoError(t, err)
	require.Equal(t, SourceParquet, sum.Source)
	require.Equal(t, 3, sum.Rows)

	rows, err := l.Store.QueryParticipation(context.Background(), "WHERE state_name = 'Johor'", db.Page{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, 2024, rows[0].EventYear)
	require.Equal(t, "2024-01", rows[0].EventMonthKey)
}

func TestParquetFailureFallsBackToCSV(t *testing.T) {
	csvSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("participant_id,event_id,state_name\n1,E1,Johor\n"))
	}))
	defer csvSrv.Close()
	noRange := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer noRange.Close()

	l := newLoader(t, config.Config{ParticipationParquetURL: noRange.URL, ParticipationCSVURL: csvSrv.URL})
	sum, err := l.Load(context.Background(), DatasetParticipation, false)
	require.NoError(t, err)
	require.Equal(t, SourceRemote, sum.Source)
	require.Equal(t, 1, sum.Rows)
	require.Contains(t, l.Status(DatasetParticipation).Error, "range")
}

func TestLoadAllAndClearCache(t *testing.T) {
	l := newLoader(t, config.Config{DemoFallback: true})
	ctx := context.Background()

	require.Empty(t, l.LoadAll(ctx, false))
	for _, st := range l.Statuses() {
		require.Equal(t, StageReady, st.Stage)
		require.Equal(t, SourceDemo, st.Source)
	}
	require.Empty(t, l.ClearCache(ctx))
	require.Equal(t, demo.ParticipationCount, l.Status(DatasetParticipation).Rows)
}
