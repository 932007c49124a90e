// Package jsonldb implements storage of typed rows in JSONL files, with an
// in-memory cache guarded by a read-write lock. Appends are O(1); updates and
// deletes rewrite the file, which is fine for the small tables stored here.
package jsonldb

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sync"

	"github.com/maruel/mdwiki/internal/ksid"
)

// Row is implemented by table row types. Rows handed out by a Table are
// always clones so callers cannot mutate the cache.
type Row[T any] interface {
	Clone() T
	GetID() ksid.ID
}

// ErrNotFound is returned when a row ID is not in the table.
var ErrNotFound = errors.New("row not found")

// Table handles storage and in-memory caching for a single JSONL table.
type Table[T Row[T]] struct {
	path string
	mu   sync.RWMutex

	rows []T
	byID map[ksid.ID]int
}

// NewTable creates a Table backed by path and loads all existing rows.
func NewTable[T Row[T]](path string) (*Table[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	t := &Table[T]{path: path}
	if err := t.load(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table[T]) load() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			t.rows = []T{}
			t.byID = map[ksid.ID]int{}
			return nil
		}
		return fmt.Errorf("failed to open table file %s: %w", t.path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	var rows []T
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var row T
		if err := json.Unmarshal(line, &row); err != nil {
			return fmt.Errorf("failed to unmarshal row in %s: %w", t.path, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read table file %s: %w", t.path, err)
	}

	t.rows = rows
	t.reindexLocked()
	return nil
}

func (t *Table[T]) reindexLocked() {
	t.byID = make(map[ksid.ID]int, len(t.rows))
	for i, row := range t.rows {
		t.byID[row.GetID()] = i
	}
}

// Len returns the number of rows.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Get returns a clone of the row with the given ID.
func (t *Table[T]) Get(id ksid.ID) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var zero T
	i, ok := t.byID[id]
	if !ok {
		return zero, false
	}
	return t.rows[i].Clone(), true
}

// All returns an iterator over clones of all rows.
func (t *Table[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		t.mu.RLock()
		defer t.mu.RUnlock()
		for _, row := range t.rows {
			if !yield(row.Clone()) {
				return
			}
		}
	}
}

// Append adds a new row to the table and persists it.
func (t *Table[T]) Append(row T) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.byID[row.GetID()]; ok {
		return fmt.Errorf("duplicate row id %s", row.GetID())
	}

	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal row: %w", err)
	}

	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open table file for append: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	if _, err := f.WriteString("\n"); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	t.byID[row.GetID()] = len(t.rows)
	t.rows = append(t.rows, row.Clone())
	return nil
}

// Modify applies fn to the row with the given ID and persists the table.
// Returns a clone of the updated row.
func (t *Table[T]) Modify(id ksid.ID, fn func(T) error) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero T
	i, ok := t.byID[id]
	if !ok {
		return zero, ErrNotFound
	}
	updated := t.rows[i].Clone()
	if err := fn(updated); err != nil {
		return zero, err
	}
	old := t.rows[i]
	t.rows[i] = updated
	if err := t.persistLocked(); err != nil {
		t.rows[i] = old
		return zero, err
	}
	return updated.Clone(), nil
}

// Delete removes the row with the given ID and persists the table.
func (t *Table[T]) Delete(id ksid.ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	i, ok := t.byID[id]
	if !ok {
		return ErrNotFound
	}
	old := t.rows
	t.rows = append(t.rows[:i:i], t.rows[i+1:]...)
	t.reindexLocked()
	if err := t.persistLocked(); err != nil {
		t.rows = old
		t.reindexLocked()
		return err
	}
	return nil
}

// persistLocked rewrites the whole file from the cache. Caller holds the lock.
func (t *Table[T]) persistLocked() error {
	f, err := os.Create(t.path)
	if err != nil {
		return fmt.Errorf("failed to create table file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	w := bufio.NewWriter(f)
	for _, row := range t.rows {
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("failed to marshal row: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("failed to write newline: %w", err)
		}
	}
	return w.Flush()
}
