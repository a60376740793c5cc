// Package csvparse parses large CSV payloads off the caller's goroutine and
// reports back over a channel.
package csvparse

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nes_dashboard/backend/internal/models"
)

// ProgressEvery is how many rows are parsed between progress messages.
const ProgressEvery = 10000

type Kind int

const (
	KindProgress Kind = iota
	KindComplete
	KindError
)

// Message is what the worker sends back. Progress messages carry Rows and
// Percent; exactly one Complete (with Data) or Error (with Err) ends the stream.
type Message struct {
	Kind    Kind
	Rows    int
	Percent int
	Data    []models.RawRow
	Err     error
}

var ErrNoHeader = errors.New("csv payload has no header row")

// Start parses data in a new goroutine. The returned channel is closed after
// the terminal message. Cancelling ctx stops the worker with ctx.Err().
func Start(ctx context.Context, data []byte) <-chan Message {
	out := make(chan Message, 4)
	go func() {
		defer close(out)
		rows, err := parse(ctx, data, func(n, pct int) {
			select {
			case out <- Message{Kind: KindProgress, Rows: n, Percent: pct}:
			case <-ctx.Done():
			}
		})
		var msg Message
		if err != nil {
			msg = Message{Kind: KindError, Err: err}
		} else {
			msg = Message{Kind: KindComplete, Rows: len(rows), Percent: 100, Data: rows}
		}
		select {
		case out <- msg:
		case <-ctx.Done():
		}
	}()
	return out
}

// Parse runs the worker and waits for its result. onProgress may be nil.
func Parse(ctx context.Context, data []byte, onProgress func(rows, percent int)) ([]models.RawRow, error) {
	for msg := range Start(ctx, data) {
		switch msg.Kind {
		case KindProgress:
			if onProgress != nil {
				onProgress(msg.Rows, msg.Percent)
			}
		case KindComplete:
			return msg.Data, nil
		case KindError:
			return nil, msg.Err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, errors.New("csv worker exited without a result")
}

func parse(ctx context.Context, data []byte, progress func(n, pct int)) ([]models.RawRow, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, h := range headers {
		headers[i] = strings.Trim(strings.TrimSpace(h), `"`)
	}

	total := int64(len(data))
	var out []models.RawRow
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if emptyRecord(rec) {
			continue
		}
		row := make(models.RawRow, len(headers))
		for i, h := range headers {
			if i < len(rec) {
				row[h] = strings.TrimSpace(rec[i])
			} else {
				row[h] = ""
			}
		}
		out = append(out, row)

		if len(out)%ProgressEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			pct := 0
			if total > 0 {
				pct = int(reader.InputOffset() * 100 / total)
			}
			progress(len(out), pct)
		}
	}
	return out, nil
}

func emptyRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
