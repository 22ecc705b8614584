// Package artifact reads and writes the files stages hand to each other.
package artifact

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"alertlens/internal/logger"
)

const maxLineSize = 16 * 1024 * 1024

// ReadJSONL decodes one T per non-blank line of path.
func ReadJSONL[T any](path string) ([]T, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows := make([]T, 0, 256)
	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 0, 1024*1024), maxLineSize)

	line := 0
	for s.Scan() {
		line++
		b := bytes.TrimSpace(s.Bytes())
		if len(b) == 0 {
			continue
		}
		var row T
		if err := json.Unmarshal(b, &row); err != nil {
			return nil, fmt.Errorf("%s:%d: decode row: %w", path, line, err)
		}
		rows = append(rows, row)
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	return rows, nil
}

// WriteJSONL replaces path with one JSON document per row.
func WriteJSONL[T any](path string, rows []T) error {
	w, err := NewWriter[T](path)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

// WriteJSON replaces path with a single indented JSON document.
func WriteJSON(path string, v any) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ReadJSON decodes a single JSON document from path into v.
func ReadJSON(path string, v any) error {
	b, err := readFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Writer streams rows to a JSON lines file. It is safe for concurrent use.
type Writer[T any] struct {
	path    string
	file    *os.File
	buf     *bufio.Writer
	encoder *json.Encoder
	count   int
	mu      sync.Mutex
}

// NewWriter creates (or truncates) path.
func NewWriter[T any](path string) (*Writer[T], error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	buf := bufio.NewWriter(f)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)

	logger.Debugf("JSONL writer initialized: %s", path)
	return &Writer[T]{path: path, file: f, buf: buf, encoder: enc}, nil
}

// Write appends one row.
func (w *Writer[T]) Write(row T) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.encoder.Encode(row); err != nil {
		return fmt.Errorf("failed to encode row for %s: %w", w.path, err)
	}
	w.count++
	return nil
}

// Count returns the number of rows written so far.
func (w *Writer[T]) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close flushes buffered rows and closes the file.
func (w *Writer[T]) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	ferr := w.buf.Flush()
	cerr := w.file.Close()
	w.file = nil
	if ferr != nil {
		return fmt.Errorf("flush %s: %w", w.path, ferr)
	}
	return cerr
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrInputMissing, path)
	}
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}

func readFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrInputMissing, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return b, nil
}
