package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"

	"github.com/nes_dashboard/backend/internal/metrics"
)

var (
	ErrNotInitialized = errors.New("analytical store is not initialized")
	ErrUnknownTable   = errors.New("unknown table")
)

type Options struct {
	// Path is an on-disk database file. Empty keeps everything in memory.
	Path           string
	Logger         zerolog.Logger
	Metrics        *metrics.Metrics
	CountCacheSize int
}

// Store is the embedded analytical engine. One Store is shared by every
// dashboard in the process; datasets are read-only between loads.
type Store struct {
	opts Options
	log  zerolog.Logger

	mu     sync.RWMutex
	db     *sqlx.DB
	tables map[string]Table
	gens   map[string]uint64

	initGroup singleflight.Group
	loadGroup singleflight.Group
	counts    *lru.Cache[string, int]
}

func New(opts Options) *Store {
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop()
	}
	if opts.CountCacheSize <= 0 {
		opts.CountCacheSize = 512
	}
	counts, _ := lru.New[string, int](opts.CountCacheSize)
	return &Store{
		opts:   opts,
		log:    opts.Logger.With().Str("component", "store").Logger(),
		tables: map[string]Table{TicketsTable.Name: TicketsTable, ParticipationTable.Name: ParticipationTable},
		gens:   map[string]uint64{},
		counts: counts,
	}
}

// Initialize opens the engine. Concurrent callers share one attempt; a failed
// attempt leaves the store closed so the next call retries.
func (s *Store) Initialize(ctx context.Context) error {
	_, err, _ := s.initGroup.Do("init", func() (any, error) {
		s.mu.RLock()
		open := s.db != nil
		s.mu.RUnlock()
		if open {
			return nil, nil
		}

		dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
		if s.opts.Path != "" {
			dsn = fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", s.opts.Path)
		}
		conn, err := sqlx.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		if s.opts.Path == "" {
			// The in-memory database lives as long as its single connection.
			conn.SetMaxOpenConns(1)
			conn.SetMaxIdleConns(1)
			conn.SetConnMaxLifetime(0)
		} else {
			conn.SetMaxOpenConns(4)
		}
		if err := conn.PingContext(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ping store: %w", err)
		}

		s.mu.Lock()
		s.db = conn
		s.mu.Unlock()
		s.log.Info().Bool("in_memory", s.opts.Path == "").Msg("analytical store initialized")
		return nil, nil
	})
	return err
}

// Close releases the engine. The store may be initialized again afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	conn := s.db
	s.db = nil
	s.gens = map[string]uint64{}
	s.mu.Unlock()
	s.counts.Purge()
	if conn == nil {
		return nil
	}
	var err error
	if _, execErr := conn.Exec("PRAGMA optimize"); execErr != nil {
		err = multierr.Append(err, execErr)
	}
	err = multierr.Append(err, conn.Close())
	return err
}

func (s *Store) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db != nil
}

func (s *Store) Ping(ctx context.Context) error {
	conn, err := s.conn()
	if err != nil {
		return err
	}
	return conn.PingContext(ctx)
}

func (s *Store) conn() (*sqlx.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

func (s *Store) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	conn, err := s.conn()
	if err != nil {
		return err
	}
	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Table looks up a registered table descriptor by name.
func (s *Store) Table(name string) (Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	if !ok {
		return Table{}, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	return t, nil
}

// Register adds a table descriptor so it can be loaded and queried.
func (s *Store) Register(t Table) {
	s.mu.Lock()
	s.tables[t.Name] = t
	s.mu.Unlock()
}

func (s *Store) TableExists(ctx context.Context, name string) (bool, error) {
	conn, err := s.conn()
	if err != nil {
		return false, err
	}
	var n int
	err = conn.GetContext(ctx, &n, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) generation(table string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gens[table]
}

func (s *Store) bumpGeneration(table string) {
	s.mu.Lock()
	s.gens[table]++
	s.mu.Unlock()
	s.counts.Purge()
}
