package pipeline

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/shaclpipe/shaclpipe/mapping"
)

// Source is the producer contract: a finite, single-pass sequence of raw
// records. Implementations must check ctx between records so cancellation
// takes effect promptly.
type Source interface {
	// Records yields each raw record in order, or a terminal error. The
	// sequence is not restartable unless the Source also implements
	// [Resettable].
	Records(ctx context.Context) iter.Seq2[mapping.RawRecord, error]

	// Count returns the exact record count when known.
	Count() (int, bool)
}

// Resettable is implemented by sources that can be rewound, allowing a
// Pipeline to run more than once.
type Resettable interface {
	Reset() error
}

// Batches regroups a source's records into slices of at most n, for sinks
// that prefer batch writes. The grouping preserves record order.
func Batches(ctx context.Context, src Source, n int) iter.Seq2[[]mapping.RawRecord, error] {
	return func(yield func([]mapping.RawRecord, error) bool) {
		batch := make([]mapping.RawRecord, 0, n)

		for rec, err := range src.Records(ctx) {
			if err != nil {
				yield(nil, err)

				return
			}

			batch = append(batch, rec)

			if len(batch) == n {
				if !yield(batch, nil) {
					return
				}

				batch = make([]mapping.RawRecord, 0, n)
			}
		}

		if len(batch) > 0 {
			yield(batch, nil)
		}
	}
}

// SliceSource serves records from memory. It is restartable.
type SliceSource struct {
	Rows []mapping.RawRecord
}

// Records yields each row in order.
func (s *SliceSource) Records(ctx context.Context) iter.Seq2[mapping.RawRecord, error] {
	return func(yield func(mapping.RawRecord, error) bool) {
		for _, row := range s.Rows {
			select {
			case <-ctx.Done():
				return
			default:
			}

			if !yield(row, nil) {
				return
			}
		}
	}
}

// Count reports the exact row count.
func (s *SliceSource) Count() (int, bool) { return len(s.Rows), true }

// Reset is a no-op; slice sources are naturally restartable.
func (s *SliceSource) Reset() error { return nil }

// CSVSource reads raw records from a comma-separated file whose first row
// is the header. Every cell is kept as its string form.
type CSVSource struct {
	Path string
}

// Records opens the file and yields one record per data row. An open
// failure is an [*AdapterError] with kind NotFound; a mid-stream parse
// failure is kind Read and terminates the sequence.
func (s *CSVSource) Records(ctx context.Context) iter.Seq2[mapping.RawRecord, error] {
	return func(yield func(mapping.RawRecord, error) bool) {
		f, err := os.Open(s.Path)
		if err != nil {
			yield(nil, &AdapterError{Kind: AdapterNotFound, Source: s.Path, Message: err.Error(), Err: err})

			return
		}
		defer f.Close()

		r := csv.NewReader(f)
		r.FieldsPerRecord = -1

		header, err := r.Read()
		if err != nil {
			yield(nil, &AdapterError{Kind: AdapterRead, Source: s.Path, Message: "reading header: " + err.Error(), Err: err})

			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			row, err := r.Read()
			if err == io.EOF {
				return
			} else if err != nil {
				yield(nil, &AdapterError{Kind: AdapterRead, Source: s.Path, Message: err.Error(), Err: err})

				return
			}

			rec := make(mapping.RawRecord, len(header))

			for i, col := range header {
				if i < len(row) {
					rec[strings.TrimSpace(col)] = row[i]
				}
			}

			if !yield(rec, nil) {
				return
			}
		}
	}
}

// Count is unknown without a full pass.
func (s *CSVSource) Count() (int, bool) { return 0, false }

// Reset is a no-op; each Records call reopens the file.
func (s *CSVSource) Reset() error { return nil }

// NDJSONSource reads one flat JSON object per line. Scalar values are
// rendered to strings; nested structures are a per-sequence error, since
// raw records are flat by contract.
type NDJSONSource struct {
	Path string
}

// Records opens the file and yields one record per line.
func (s *NDJSONSource) Records(ctx context.Context) iter.Seq2[mapping.RawRecord, error] {
	return func(yield func(mapping.RawRecord, error) bool) {
		f, err := os.Open(s.Path)
		if err != nil {
			yield(nil, &AdapterError{Kind: AdapterNotFound, Source: s.Path, Message: err.Error(), Err: err})

			return
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

		line := 0

		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			line++

			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}

			var row map[string]any
			if err := json.Unmarshal([]byte(text), &row); err != nil {
				yield(nil, &AdapterError{Kind: AdapterRead, Source: s.Path,
					Message: fmt.Sprintf("line %d: %v", line, err), Err: err})

				return
			}

			rec := make(mapping.RawRecord, len(row))

			for k, v := range row {
				sv, err := scalarString(v)
				if err != nil {
					yield(nil, &AdapterError{Kind: AdapterRead, Source: s.Path,
						Message: fmt.Sprintf("line %d: column %q: %v", line, k, err), Err: err})

					return
				}

				rec[k] = sv
			}

			if !yield(rec, nil) {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			yield(nil, &AdapterError{Kind: AdapterRead, Source: s.Path, Message: err.Error(), Err: err})
		}
	}
}

// Count is unknown without a full pass.
func (s *NDJSONSource) Count() (int, bool) { return 0, false }

// Reset is a no-op; each Records call reopens the file.
func (s *NDJSONSource) Reset() error { return nil }

// scalarString renders a flat JSON value to its raw-record string form.
func scalarString(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case bool:
		if val {
			return "true", nil
		}

		return "false", nil
	case float64:
		// Round-trip through json.Number semantics: integral floats render
		// without an exponent or trailing zeros.
		data, err := json.Marshal(val)
		if err != nil {
			return "", err
		}

		return string(data), nil
	default:
		return "", fmt.Errorf("nested structures are not allowed in raw records, found %T", v)
	}
}
