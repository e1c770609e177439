package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/shaclpipe/shaclpipe/mapping"
)

// deadLetter is the append-only failure log: one JSON object per rejected
// record. Writes are serialized by a mutex so the bulk-upsert path can
// share one writer across workers.
type deadLetter struct {
	mu    sync.Mutex
	f     *os.File
	path  string
	count int64
}

// dlqEntry is the persisted line format.
type dlqEntry struct {
	Reason    string `json:"reason"`
	ErrorKind string `json:"error_kind"`
	Message   string `json:"message"`
	RawRow    any    `json:"raw_row"`
}

func openDeadLetter(path string) (*deadLetter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: opening dead-letter file %s: %w", ErrConfig, path, err)
	}

	return &deadLetter{f: f, path: path}, nil
}

// Write appends one failure entry. A raw row that cannot be JSON-encoded
// falls back to its string rendering so the entry is never lost.
func (d *deadLetter) Write(reason, errorKind, message string, raw mapping.RawRecord) error {
	entry := dlqEntry{Reason: reason, ErrorKind: errorKind, Message: message, RawRow: raw}

	data, err := json.Marshal(entry)
	if err != nil {
		entry.RawRow = fmt.Sprint(raw)

		data, err = json.Marshal(entry)
		if err != nil {
			return err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.f.Write(append(data, '\n')); err != nil {
		return err
	}

	d.count++

	return nil
}

// Count returns the number of entries written so far.
func (d *deadLetter) Count() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.count
}

// Close closes the underlying file. Idempotent enough for deferred use.
func (d *deadLetter) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.f == nil {
		return nil
	}

	err := d.f.Close()
	d.f = nil

	return err
}
