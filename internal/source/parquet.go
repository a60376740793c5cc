package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/nes_dashboard/backend/internal/models"
)

// RangeReader is an io.ReaderAt over an HTTP object that supports byte range
// requests. Only the footer and the column chunks actually read are fetched.
type RangeReader struct {
	ctx    context.Context
	client *http.Client
	url    string
	size   int64
}

// OpenRange issues a HEAD request to learn the object size and confirm range
// support.
func (f *Fetcher) OpenRange(ctx context.Context, rawURL string) (*RangeReader, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client().Do(req)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("head %s: http error: %s", redact(rawURL), resp.Status)
	}
	if resp.Header.Get("Accept-Ranges") != "bytes" {
		return nil, ErrRangeUnsupported
	}
	size, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	if err != nil || size <= 0 {
		return nil, fmt.Errorf("head %s: missing content length", redact(rawURL))
	}
	return &RangeReader{ctx: ctx, client: f.client(), url: rawURL, size: size}, nil
}

func (r *RangeReader) Size() int64 { return r.size }

func (r *RangeReader) ReadAt(p []byte, off int64) (int, error) {
	if off >= r.size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	end := off + int64(len(p)) - 1
	if end >= r.size {
		end = r.size - 1
	}
	req, err := http.NewRequestWithContext(r.ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", off, end))
	resp, err := r.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPartialContent {
		return 0, fmt.Errorf("range read %s: unexpected status %s", redact(r.url), resp.Status)
	}
	want := int(end - off + 1)
	n, err := io.ReadFull(resp.Body, p[:want])
	if err != nil {
		return n, err
	}
	if want < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// ParquetStream decodes a Parquet object row group by row group and hands the
// rows to fn in chunks of at most batch rows. It returns the number of rows
// delivered.
func ParquetStream(ctx context.Context, r io.ReaderAt, size int64, batch int, fn func([]models.RawRow) error) (int, error) {
	if batch <= 0 {
		batch = 5000
	}
	file, err := parquet.OpenFile(r, size, parquet.SkipPageIndex(true), parquet.SkipBloomFilters(true))
	if err != nil {
		return 0, fmt.Errorf("open parquet: %w", err)
	}
	cols := columnsOf(file.Schema())

	total := 0
	buf := make([]parquet.Row, batch)
	for _, rg := range file.RowGroups() {
		rows := rg.Rows()
		for {
			if err := ctx.Err(); err != nil {
				rows.Close()
				return total, err
			}
			n, readErr := rows.ReadRows(buf)
			if n > 0 {
				chunk := make([]models.RawRow, n)
				for i := 0; i < n; i++ {
					chunk[i] = cols.decode(buf[i])
				}
				if err := fn(chunk); err != nil {
					rows.Close()
					return total, err
				}
				total += n
			}
			if readErr == io.EOF {
				break
			}
			if readErr != nil {
				rows.Close()
				return total, fmt.Errorf("read row group: %w", readErr)
			}
		}
		if err := rows.Close(); err != nil {
			return total, err
		}
	}
	if total == 0 {
		return 0, ErrEmptyPayload
	}
	return total, nil
}

type columnKind int

const (
	plainColumn columnKind = iota
	dateColumn
	millisColumn
	microsColumn
	nanosColumn
)

type column struct {
	name string
	kind columnKind
}

type columnSet []column

func columnsOf(schema *parquet.Schema) columnSet {
	paths := schema.Columns()
	out := make(columnSet, len(paths))
	for i, path := range paths {
		c := column{name: path[0]}
		if leaf, ok := schema.Lookup(path...); ok {
			if lt := leaf.Node.Type().LogicalType(); lt != nil {
				switch {
				case lt.Date != nil:
					c.kind = dateColumn
				case lt.Timestamp != nil && lt.Timestamp.Unit.Millis != nil:
					c.kind = millisColumn
				case lt.Timestamp != nil && lt.Timestamp.Unit.Micros != nil:
					c.kind = microsColumn
				case lt.Timestamp != nil && lt.Timestamp.Unit.Nanos != nil:
					c.kind = nanosColumn
				}
			}
		}
		out[i] = c
	}
	return out
}

// decode flattens a row into a RawRow. Repeated leaves are collected into a
// slice under their top-level field name.
func (cs columnSet) decode(row parquet.Row) models.RawRow {
	out := make(models.RawRow, len(cs))
	for _, v := range row {
		idx := v.Column()
		if idx < 0 || idx >= len(cs) {
			continue
		}
		c := cs[idx]
		val := c.convert(v)
		if v.RepetitionLevel() > 0 {
			if list, ok := out[c.name].([]any); ok {
				out[c.name] = append(list, val)
				continue
			}
			out[c.name] = []any{out[c.name], val}
			continue
		}
		out[c.name] = val
	}
	return out
}

func (c column) convert(v parquet.Value) any {
	if v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		if c.kind == dateColumn {
			return time.Unix(int64(v.Int32())*86400, 0).UTC()
		}
		return int64(v.Int32())
	case parquet.Int64:
		n := v.Int64()
		switch c.kind {
		case millisColumn:
			return time.UnixMilli(n).UTC()
		case microsColumn:
			return time.UnixMicro(n).UTC()
		case nanosColumn:
			return time.Unix(0, n).UTC()
		}
		return n
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return v.String()
	}
}

// WithContext returns a copy of r whose reads are bound to ctx.
func (r *RangeReader) WithContext(ctx context.Context) *RangeReader {
	c := *r
	c.ctx = ctx
	return &c
}
