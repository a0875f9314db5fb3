// Package store reads and writes newline-delimited JSON record files.
package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// LineError describes a line that could not be decoded.
type LineError struct {
	Line int
	Err  error
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e LineError) Unwrap() error { return e.Err }

// ReadJSONL loads every record of a JSONL file. The first malformed line
// aborts the read.
func ReadJSONL[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	items, err := DecodeJSONL[T](f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return items, nil
}

// DecodeJSONL decodes one record per non-blank line.
func DecodeJSONL[T any](r io.Reader) ([]T, error) {
	items, bad, err := DecodeJSONLLenient[T](r)
	if err != nil {
		return nil, err
	}
	if len(bad) > 0 {
		return nil, bad[0]
	}
	return items, nil
}

// DecodeJSONLLenient decodes what it can and reports the lines it skipped.
// The returned error is reserved for read failures.
func DecodeJSONLLenient[T any](r io.Reader) ([]T, []LineError, error) {
	var (
		items []T
		bad   []LineError
	)

	br := bufio.NewReader(r)
	for lineNum := 1; ; lineNum++ {
		line, err := br.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			var item T
			if decErr := json.Unmarshal(trimmed, &item); decErr != nil {
				bad = append(bad, LineError{Line: lineNum, Err: decErr})
			} else {
				items = append(items, item)
			}
		}

		if errors.Is(err, io.EOF) {
			break
		}
	}

	return items, bad, nil
}

// WriteJSONL replaces path with one line per item.
func WriteJSONL[T any](path string, items []T) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := EncodeJSONL(f, items); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

// EncodeJSONL writes one line per item.
func EncodeJSONL[T any](w io.Writer, items []T) error {
	bw := bufio.NewWriter(w)
	enc := newEncoder(bw)
	for i := range items {
		if err := enc.Encode(items[i]); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return bw.Flush()
}

func newEncoder(w io.Writer) *json.Encoder {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc
}

// Writer streams records to a JSONL file, flushing after every record so an
// interrupted run keeps what it already produced. Safe for concurrent use.
type Writer[T any] struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
	n   int
}

// Create truncates path and returns a Writer for it.
func Create[T any](path string) (*Writer[T], error) {
	return open[T](path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY)
}

// Append opens path for appending, creating it if needed.
func Append[T any](path string) (*Writer[T], error) {
	return open[T](path, os.O_CREATE|os.O_APPEND|os.O_WRONLY)
}

func open[T any](path string, flag int) (*Writer[T], error) {
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return &Writer[T]{f: f, enc: newEncoder(f)}, nil
}

// Write appends one record.
func (w *Writer[T]) Write(item T) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.enc.Encode(item); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	w.n++
	return nil
}

// Count returns the number of records written so far.
func (w *Writer[T]) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

// Close closes the underlying file.
func (w *Writer[T]) Close() error {
	return w.f.Close()
}
