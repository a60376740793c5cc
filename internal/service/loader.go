package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/nes_dashboard/backend/internal/cache"
	"github.com/nes_dashboard/backend/internal/config"
	"github.com/nes_dashboard/backend/internal/csvparse"
	"github.com/nes_dashboard/backend/internal/db"
	"github.com/nes_dashboard/backend/internal/demo"
	"github.com/nes_dashboard/backend/internal/metrics"
	"github.com/nes_dashboard/backend/internal/models"
	"github.com/nes_dashboard/backend/internal/normalize"
	"github.com/nes_dashboard/backend/internal/source"
)

const (
	DatasetTickets       = "tickets"
	DatasetParticipation = "participation"
)

const (
	StageInitializing = "initializing"
	StageChecking     = "checking"
	StageDownloading  = "downloading"
	StageLoading      = "loading-db"
	StageReady        = "ready"
	StageFailed       = "failed"
)

const (
	SourceRemote    = "remote"
	SourceWarehouse = "warehouse"
	SourceParquet   = "parquet"
	SourceCache     = "cache"
	SourceDemo      = "demo"
	SourceExisting  = "existing"
)

// DefaultLoadTimeout bounds a fetch when none is configured.
const DefaultLoadTimeout = 8 * time.Second

var ErrNoSource = errors.New("no source configured")

// Status is the observable load state of one dataset.
type Status struct {
	Dataset  string    `json:"dataset"`
	Stage    string    `json:"stage"`
	Progress int       `json:"progress"`
	Rows     int       `json:"rows"`
	Source   string    `json:"source,omitempty"`
	Error    string    `json:"error,omitempty"`
	LoadedAt time.Time `json:"loaded_at,omitempty"`
}

// LoadSummary reports what one load did, stage by stage.
type LoadSummary struct {
	Dataset string           `json:"dataset"`
	Source  string           `json:"source"`
	Rows    int              `json:"rows"`
	Skipped bool             `json:"skipped"`
	Events  []map[string]any `json:"events"`
}

// Loader moves datasets from their sources into the analytical store. A
// dataset has at most one load in flight; concurrent callers share it.
type Loader struct {
	Store     *db.Store
	Cache     *cache.Cache
	Fetcher   *source.Fetcher
	Warehouse *source.Warehouse
	Config    config.Config
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
	Clock     quartz.Clock

	// OnReady runs after a dataset finished loading, skipped loads included.
	OnReady func(dataset string)

	group singleflight.Group
	mu    sync.RWMutex
	state map[string]Status
}

var (
	realClock  = quartz.NewReal()
	nopMetrics = sync.OnceValue(metrics.Nop)
)

func (l *Loader) clock() quartz.Clock {
	if l.Clock == nil {
		return realClock
	}
	return l.Clock
}

func (l *Loader) metrics() *metrics.Metrics {
	if l.Metrics == nil {
		return nopMetrics()
	}
	return l.Metrics
}

func (l *Loader) timeout() time.Duration {
	if l.Config.LoadTimeout <= 0 {
		return DefaultLoadTimeout
	}
	return l.Config.LoadTimeout
}

func (l *Loader) normalizeOptions() normalize.Options {
	return normalize.Options{
		Attachments: normalize.AttachmentRewriter{BaseURL: l.Config.AttachmentBaseURL, Token: l.Config.AttachmentToken},
		Location:    time.UTC,
	}
}

// Status returns the last reported state of dataset.
func (l *Loader) Status(dataset string) Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if st, ok := l.state[dataset]; ok {
		return st
	}
	return Status{Dataset: dataset, Stage: StageInitializing}
}

func (l *Loader) Statuses() []Status {
	return []Status{l.Status(DatasetTickets), l.Status(DatasetParticipation)}
}

func (l *Loader) update(dataset string, fn func(*Status)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == nil {
		l.state = map[string]Status{}
	}
	st, ok := l.state[dataset]
	if !ok {
		st = Status{Dataset: dataset}
	}
	fn(&st)
	l.state[dataset] = st
}

func (l *Loader) stage(dataset, stage string, progress int) {
	l.update(dataset, func(st *Status) {
		st.Stage = stage
		st.Progress = progress
	})
}

// Load brings dataset into the store. Without force an already loaded table
// is left alone.
func (l *Loader) Load(ctx context.Context, dataset string, force bool) (LoadSummary, error) {
	key := dataset
	if force {
		key += "#force"
	}
	v, err, _ := l.group.Do(key, func() (any, error) {
		switch dataset {
		case DatasetTickets:
			return l.run(ctx, dataset, db.TicketsTable, force, l.loadTickets)
		case DatasetParticipation:
			return l.run(ctx, dataset, db.ParticipationTable, force, l.loadParticipation)
		}
		return LoadSummary{}, fmt.Errorf("unknown dataset %q", dataset)
	})
	if err != nil {
		return LoadSummary{}, err
	}
	return v.(LoadSummary), nil
}

// LoadAll loads both datasets. A failure in one does not stop the other.
func (l *Loader) LoadAll(ctx context.Context, force bool) []error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, name := range []string{DatasetTickets, DatasetParticipation} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Load(ctx, name, force); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return errs
}

// ClearCache empties the local cache and reloads everything from source.
func (l *Loader) ClearCache(ctx context.Context) []error {
	if err := l.Cache.Clear(); err != nil {
		return []error{err}
	}
	return l.LoadAll(ctx, true)
}

type pipeline func(ctx context.Context, summary *LoadSummary) error

func (l *Loader) run(ctx context.Context, dataset string, table db.Table, force bool, load pipeline) (LoadSummary, error) {
	start := l.clock().Now()
	summary := LoadSummary{Dataset: dataset}
	event := func(stage, msg string, extra map[string]any) {
		ev := map[string]any{"stage": stage, "message": msg, "time": l.clock().Now().UTC()}
		for k, v := range extra {
			ev[k] = v
		}
		summary.Events = append(summary.Events, ev)
	}
	l.update(dataset, func(st *Status) { st.Error = "" })

	l.stage(dataset, StageInitializing, 0)
	if err := l.Store.Initialize(ctx); err != nil {
		l.fail(dataset, err)
		return summary, err
	}

	l.stage(dataset, StageChecking, 0)
	if !force {
		exists, err := l.Store.TableExists(ctx, table.Name)
		if err != nil {
			l.fail(dataset, err)
			return summary, err
		}
		if exists {
			n, err := l.Store.Count(ctx, table.Name, "")
			if err != nil {
				l.fail(dataset, err)
				return summary, err
			}
			summary.Skipped, summary.Rows, summary.Source = true, n, SourceExisting
			event(StageChecking, "Dataset already loaded", map[string]any{"rows": n})
			l.ready(dataset, summary)
			return summary, nil
		}
	}

	if err := load(ctx, &summary); err != nil {
		l.fail(dataset, err)
		return summary, err
	}
	event(StageReady, "Dataset ready", map[string]any{
		"rows":       summary.Rows,
		"source":     summary.Source,
		"elapsed_ms": l.clock().Since(start).Milliseconds(),
	})
	l.metrics().LoadDuration.WithLabelValues(dataset, summary.Source).Observe(l.clock().Since(start).Seconds())
	l.ready(dataset, summary)
	l.Logger.Info().Str("dataset", dataset).Str("source", summary.Source).Int("rows", summary.Rows).
		Dur("elapsed", l.clock().Since(start)).Msg("dataset loaded")
	return summary, nil
}

func (l *Loader) ready(dataset string, summary LoadSummary) {
	now := l.clock().Now().UTC()
	l.update(dataset, func(st *Status) {
		st.Stage = StageReady
		st.Progress = 100
		st.Rows = summary.Rows
		st.Source = summary.Source
		st.LoadedAt = now
	})
	if l.OnReady != nil {
		l.OnReady(dataset)
	}
}

func (l *Loader) fail(dataset string, err error) {
	l.Logger.Error().Err(err).Str("dataset", dataset).Msg("dataset load failed")
	l.update(dataset, func(st *Status) {
		st.Stage = StageFailed
		st.Error = err.Error()
	})
}

// fetchFailed records a source error while the load carries on with a
// fallback.
func (l *Loader) fetchFailed(dataset string, err error) {
	l.Logger.Warn().Err(err).Str("dataset", dataset).Msg("source unavailable, using fallback")
	l.update(dataset, func(st *Status) { st.Error = err.Error() })
}

func (l *Loader) downloadProgress(dataset string) func(rows, percent int) {
	return func(_, percent int) { l.stage(dataset, StageDownloading, percent) }
}

func (l *Loader) loadProgress(dataset string, total int) func(int) {
	return func(n int) {
		pct := 100
		if total > 0 {
			pct = n * 100 / total
		}
		l.stage(dataset, StageLoading, pct)
	}
}

// fetchText downloads a CSV or XLSX file and splits it into raw rows.
func (l *Loader) fetchText(ctx context.Context, dataset, rawURL string) ([]models.RawRow, []byte, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, l.timeout())
	defer cancel()

	data, err := l.Fetcher.Bytes(fetchCtx, source.CacheBust(rawURL, l.clock().Now()))
	if err != nil {
		return nil, nil, err
	}
	var rows []models.RawRow
	if source.IsXLSX(rawURL) {
		rows, err = source.ParseXLSX(data)
	} else {
		rows, err = csvparse.Parse(ctx, data, l.downloadProgress(dataset))
	}
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, source.ErrEmptyPayload
	}
	return rows, data, nil
}

func (l *Loader) loadTickets(ctx context.Context, summary *LoadSummary) error {
	const dataset = DatasetTickets
	l.stage(dataset, StageDownloading, 0)

	tickets, src, err := l.fetchTickets(ctx)
	if err != nil {
		l.fetchFailed(dataset, err)
		tickets, src, err = l.ticketFallback()
		if err != nil {
			return err
		}
	}
	summary.Source = src
	summary.Events = append(summary.Events, map[string]any{
		"stage": StageDownloading, "message": "Tickets fetched", "source": src, "count": len(tickets),
		"time": l.clock().Now().UTC(),
	})

	l.stage(dataset, StageLoading, 0)
	res, err := l.Store.Load(ctx, db.TicketsTable.Name, db.TicketRows(tickets), db.LoadOptions{
		Force:      true,
		OnProgress: l.loadProgress(dataset, len(tickets)),
	})
	if err != nil {
		return fmt.Errorf("load tickets: %w", err)
	}
	summary.Rows = res.Rows
	return nil
}

func (l *Loader) fetchTickets(ctx context.Context) ([]models.Ticket, string, error) {
	opts := l.normalizeOptions()
	if l.Warehouse != nil {
		fetchCtx, cancel := context.WithTimeout(ctx, l.timeout())
		defer cancel()
		rows, err := l.Warehouse.All(fetchCtx, l.Config.TicketsQuery)
		if err != nil {
			return nil, "", err
		}
		if len(rows) == 0 {
			return nil, "", source.ErrEmptyPayload
		}
		return normalize.Tickets(rows, opts), SourceWarehouse, nil
	}
	if l.Config.TicketsURL == "" {
		return nil, "", ErrNoSource
	}

	rows, raw, err := l.fetchText(ctx, DatasetTickets, l.Config.TicketsURL)
	if err != nil {
		return nil, "", err
	}
	var cached []models.Ticket
	if l.Cache.IsValid(DatasetTickets, raw, l.Config.CacheMaxAge) && l.Cache.Load(DatasetTickets, &cached) {
		return cached, SourceCache, nil
	}
	tickets := normalize.Tickets(rows, opts)
	if err := l.Cache.Store(DatasetTickets, raw, tickets); err != nil {
		l.Logger.Warn().Err(err).Msg("could not cache tickets")
	}
	return tickets, SourceRemote, nil
}

func (l *Loader) ticketFallback() ([]models.Ticket, string, error) {
	var cached []models.Ticket
	if l.Cache.Load(DatasetTickets, &cached) && len(cached) > 0 {
		l.metrics().Fallbacks.WithLabelValues(DatasetTickets, SourceCache).Inc()
		return cached, SourceCache, nil
	}
	if l.Config.DemoFallback {
		l.metrics().Fallbacks.WithLabelValues(DatasetTickets, SourceDemo).Inc()
		return demo.Tickets(l.clock().Now()), SourceDemo, nil
	}
	return nil, "", fmt.Errorf("tickets: %w", ErrNoSource)
}

func (l *Loader) loadParticipation(ctx context.Context, summary *LoadSummary) error {
	const dataset = DatasetParticipation
	l.stage(dataset, StageDownloading, 0)

	if l.Config.ParticipationParquetURL != "" {
		n, err := l.streamParquet(ctx)
		if err == nil {
			summary.Source, summary.Rows = SourceParquet, n
			return nil
		}
		if errors.Is(err, context.Canceled) {
			return err
		}
		l.fetchFailed(dataset, err)
	}

	rows, src, err := l.fetchParticipation(ctx)
	if err != nil {
		l.fetchFailed(dataset, err)
		rows, src, err = l.participationFallback()
		if err != nil {
			return err
		}
	}
	summary.Source = src

	l.stage(dataset, StageLoading, 0)
	res, err := l.Store.Load(ctx, db.ParticipationTable.Name, db.ParticipationRows(rows), db.LoadOptions{
		Force:      true,
		OnProgress: l.loadProgress(dataset, len(rows)),
	})
	if err != nil {
		return fmt.Errorf("load participation: %w", err)
	}
	summary.Rows = res.Rows
	return nil
}

// streamParquet decodes the Parquet object in row group chunks straight into
// the store. Only opening the object is bounded by the load timeout.
func (l *Loader) streamParquet(ctx context.Context) (int, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, l.timeout())
	reader, err := l.Fetcher.OpenRange(fetchCtx, l.Config.ParticipationParquetURL)
	cancel()
	if err != nil {
		return 0, err
	}
	reader = reader.WithContext(ctx)

	opts := l.normalizeOptions()
	l.stage(DatasetParticipation, StageLoading, 0)
	res, err := l.Store.LoadStream(ctx, db.ParticipationTable.Name, func(ctx context.Context, emit func([][]any) error) error {
		_, err := source.ParquetStream(ctx, reader, reader.Size(), l.Config.ParquetBatch, func(raw []models.RawRow) error {
			return emit(db.ParticipationRows(normalize.Participations(raw, opts)))
		})
		return err
	}, db.LoadOptions{Force: true, OnProgress: func(n int) {
		l.update(DatasetParticipation, func(st *Status) { st.Rows = n })
	}})
	if err != nil {
		return 0, err
	}
	return res.Rows, nil
}

func (l *Loader) fetchParticipation(ctx context.Context) ([]models.Participation, string, error) {
	if l.Config.ParticipationCSVURL == "" {
		return nil, "", ErrNoSource
	}
	rows, raw, err := l.fetchText(ctx, DatasetParticipation, l.Config.ParticipationCSVURL)
	if err != nil {
		return nil, "", err
	}
	var cached []models.Participation
	if l.Cache.IsValid(DatasetParticipation, raw, l.Config.CacheMaxAge) && l.Cache.Load(DatasetParticipation, &cached) {
		return cached, SourceCache, nil
	}
	out := normalize.Participations(rows, l.normalizeOptions())
	if err := l.Cache.Store(DatasetParticipation, raw, out); err != nil {
		l.Logger.Warn().Err(err).Msg("could not cache participation")
	}
	return out, SourceRemote, nil
}

func (l *Loader) participationFallback() ([]models.Participation, string, error) {
	var cached []models.Participation
	if l.Cache.Load(DatasetParticipation, &cached) && len(cached) > 0 {
		l.metrics().Fallbacks.WithLabelValues(DatasetParticipation, SourceCache).Inc()
		return cached, SourceCache, nil
	}
	if l.Config.DemoFallback {
		l.metrics().Fallbacks.WithLabelValues(DatasetParticipation, SourceDemo).Inc()
		return demo.Participation(l.clock().Now()), SourceDemo, nil
	}
	return nil, "", fmt.Errorf("participation: %w", ErrNoSource)
}
