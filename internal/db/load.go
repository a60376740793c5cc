package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Producer feeds a load. It calls emit once per chunk of rows, each row laid
// out in table column order. Returning an error aborts the load.
type Producer func(ctx context.Context, emit func(rows [][]any) error) error

type LoadOptions struct {
	// Force drops and rebuilds an existing table.
	Force bool
	// OnProgress receives the running row count after every chunk.
	OnProgress func(rows int)
}

type LoadResult struct {
	Rows    int
	Skipped bool
}

// Load bulk creates table from rows that are already in memory.
func (s *Store) Load(ctx context.Context, table string, rows [][]any, opts LoadOptions) (LoadResult, error) {
	return s.LoadStream(ctx, table, func(_ context.Context, emit func([][]any) error) error {
		return emit(rows)
	}, opts)
}

// LoadStream creates table from a chunked producer. Without Force an existing
// table makes this a no-op. Concurrent loads of one table share a single
// in-flight operation. Rows land in a staging table first, so readers never
// observe a half loaded dataset and are not blocked for the whole load.
func (s *Store) LoadStream(ctx context.Context, table string, produce Producer, opts LoadOptions) (LoadResult, error) {
	t, err := s.Table(table)
	if err != nil {
		return LoadResult{}, err
	}
	if _, err := s.conn(); err != nil {
		return LoadResult{}, err
	}

	v, err, _ := s.loadGroup.Do(t.Name, func() (any, error) {
		exists, err := s.TableExists(ctx, t.Name)
		if err != nil {
			return LoadResult{}, err
		}
		if exists && !opts.Force {
			n, err := s.countRaw(ctx, t.Name, "")
			if err != nil {
				return LoadResult{}, err
			}
			s.log.Debug().Str("table", t.Name).Int("rows", n).Msg("table already loaded, skipping")
			return LoadResult{Rows: n, Skipped: true}, nil
		}
		return s.rebuild(ctx, t, produce, opts.OnProgress)
	})
	if err != nil {
		return LoadResult{}, err
	}
	return v.(LoadResult), nil
}

// DropAndReload rebuilds table unconditionally.
func (s *Store) DropAndReload(ctx context.Context, table string, produce Producer, onProgress func(int)) (LoadResult, error) {
	return s.LoadStream(ctx, table, produce, LoadOptions{Force: true, OnProgress: onProgress})
}

// Drop removes a table if present.
func (s *Store) Drop(ctx context.Context, table string) error {
	t, err := s.Table(table)
	if err != nil {
		return err
	}
	err = s.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+t.Name)
		return err
	})
	if err == nil {
		s.bumpGeneration(t.Name)
	}
	return err
}

// rebuild fills a staging table chunk by chunk, one short transaction per
// chunk, then swaps it in. Readers keep seeing the previous table until the
// swap commits and can interleave with the inserts.
func (s *Store) rebuild(ctx context.Context, t Table, produce Producer, onProgress func(int)) (LoadResult, error) {
	start := time.Now()
	staging := t
	staging.Name = t.Name + "_staging"

	err := s.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+staging.Name); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, createTableSQL(staging)); err != nil {
			return fmt.Errorf("create %s: %w", staging.Name, err)
		}
		return nil
	})
	if err != nil {
		return LoadResult{}, err
	}

	total := 0
	width := len(t.Columns)
	err = produce(ctx, func(rows [][]any) error {
		err := s.WithTx(ctx, func(tx *sqlx.Tx) error {
			stmt, err := tx.PreparexContext(ctx, insertSQL(staging))
			if err != nil {
				return fmt.Errorf("prepare insert %s: %w", t.Name, err)
			}
			defer stmt.Close()
			for _, row := range rows {
				if len(row) != width {
					return fmt.Errorf("insert %s: row has %d values, want %d", t.Name, len(row), width)
				}
				if _, err := stmt.ExecContext(ctx, row...); err != nil {
					return fmt.Errorf("insert %s: %w", t.Name, err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		total += len(rows)
		if onProgress != nil {
			onProgress(total)
		}
		return nil
	})
	if err == nil {
		err = s.swap(ctx, t, staging.Name)
	}
	if err != nil {
		s.dropStaging(ctx, staging.Name)
		return LoadResult{}, err
	}

	s.bumpGeneration(t.Name)
	s.opts.Metrics.RowsLoaded.WithLabelValues(t.Name).Add(float64(total))
	s.log.Info().Str("table", t.Name).Int("rows", total).Dur("took", time.Since(start)).Msg("table loaded")
	return LoadResult{Rows: total}, nil
}

// swap replaces t with the staging table and indexes the result.
func (s *Store) swap(ctx context.Context, t Table, staging string) error {
	return s.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+t.Name); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", staging, t.Name)); err != nil {
			return fmt.Errorf("swap %s: %w", t.Name, err)
		}
		for _, col := range t.IndexColumns() {
			q := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s)", t.Name, col, t.Name, col)
			if _, err := tx.ExecContext(ctx, q); err != nil {
				return fmt.Errorf("index %s.%s: %w", t.Name, col, err)
			}
		}
		return nil
	})
}

func (s *Store) dropStaging(ctx context.Context, staging string) {
	ctx = context.WithoutCancel(ctx)
	err := s.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+staging)
		return err
	})
	if err != nil {
		s.log.Warn().Err(err).Str("table", staging).Msg("drop staging table")
	}
}

func createTableSQL(t Table) string {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = c.Name + " " + c.Type
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", t.Name, strings.Join(cols, ", "))
}

func insertSQL(t Table) string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(t.Columns)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.Name, strings.Join(t.columnNames(), ", "), marks)
}
