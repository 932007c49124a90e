package jsonldb

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/maruel/mdwiki/internal/ksid"
)

// testRow is a simple row type for testing.
type testRow struct {
	ID   ksid.ID `json:"id"`
	Name string  `json:"name"`
}

func (r *testRow) Clone() *testRow {
	c := *r
	return &c
}

func (r *testRow) GetID() ksid.ID {
	return r.ID
}

func newTestTable(t *testing.T) (*Table[*testRow], string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rows.jsonl")
	table, err := NewTable[*testRow](path)
	if err != nil {
		t.Fatal(err)
	}
	return table, path
}

func TestTableAppendGet(t *testing.T) {
	t.Parallel()
	table, _ := newTestTable(t)

	row := &testRow{ID: ksid.NewID(), Name: "alice"}
	if err := table.Append(row); err != nil {
		t.Fatal(err)
	}
	if table.Len() != 1 {
		t.Errorf("Len = %d", table.Len())
	}

	got, ok := table.Get(row.ID)
	if !ok {
		t.Fatal("Get returned not found")
	}
	if got.Name != "alice" {
		t.Errorf("Name = %q", got.Name)
	}
	// Mutating the returned clone must not affect the cache.
	got.Name = "mallory"
	again, _ := table.Get(row.ID)
	if again.Name != "alice" {
		t.Errorf("cache mutated through clone: %q", again.Name)
	}

	if _, ok := table.Get(ksid.NewID()); ok {
		t.Error("Get of unknown ID succeeded")
	}
}

func TestTableAppendDuplicate(t *testing.T) {
	t.Parallel()
	table, _ := newTestTable(t)
	row := &testRow{ID: ksid.NewID(), Name: "a"}
	if err := table.Append(row); err != nil {
		t.Fatal(err)
	}
	if err := table.Append(row.Clone()); err == nil {
		t.Error("duplicate Append succeeded")
	}
}

func TestTablePersistence(t *testing.T) {
	t.Parallel()
	table, path := newTestTable(t)

	ids := make([]ksid.ID, 3)
	for i, name := range []string{"a", "b", "c"} {
		ids[i] = ksid.NewID()
		if err := table.Append(&testRow{ID: ids[i], Name: name}); err != nil {
			t.Fatal(err)
		}
	}

	reloaded, err := NewTable[*testRow](path)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Len() != 3 {
		t.Fatalf("reloaded Len = %d", reloaded.Len())
	}
	row, ok := reloaded.Get(ids[1])
	if !ok || row.Name != "b" {
		t.Errorf("reloaded row = %+v", row)
	}
}

func TestTableModify(t *testing.T) {
	t.Parallel()
	table, path := newTestTable(t)
	id := ksid.NewID()
	if err := table.Append(&testRow{ID: id, Name: "before"}); err != nil {
		t.Fatal(err)
	}

	updated, err := table.Modify(id, func(r *testRow) error {
		r.Name = "after"
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Name != "after" {
		t.Errorf("Modify returned %q", updated.Name)
	}

	// Modification is persisted.
	reloaded, err := NewTable[*testRow](path)
	if err != nil {
		t.Fatal(err)
	}
	row, _ := reloaded.Get(id)
	if row == nil || row.Name != "after" {
		t.Errorf("persisted row = %+v", row)
	}

	// fn error leaves the row untouched.
	wantErr := errors.New("nope")
	if _, err := table.Modify(id, func(*testRow) error { return wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("Modify = %v", err)
	}
	row, _ = table.Get(id)
	if row.Name != "after" {
		t.Errorf("row changed despite fn error: %q", row.Name)
	}

	if _, err := table.Modify(ksid.NewID(), func(*testRow) error { return nil }); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Modify unknown = %v", err)
	}
}

func TestTableDelete(t *testing.T) {
	t.Parallel()
	table, path := newTestTable(t)
	keep := ksid.NewID()
	drop := ksid.NewID()
	if err := table.Append(&testRow{ID: keep, Name: "keep"}); err != nil {
		t.Fatal(err)
	}
	if err := table.Append(&testRow{ID: drop, Name: "drop"}); err != nil {
		t.Fatal(err)
	}

	if err := table.Delete(drop); err != nil {
		t.Fatal(err)
	}
	if _, ok := table.Get(drop); ok {
		t.Error("deleted row still present")
	}
	if _, ok := table.Get(keep); !ok {
		t.Error("surviving row lost")
	}
	if err := table.Delete(drop); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete = %v", err)
	}

	reloaded, err := NewTable[*testRow](path)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Len() != 1 {
		t.Errorf("reloaded Len = %d", reloaded.Len())
	}
}

func TestTableSkipsBlankLines(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "rows.jsonl")
	if err := os.WriteFile(path, []byte("\n\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	table, err := NewTable[*testRow](path)
	if err != nil {
		t.Fatal(err)
	}
	if table.Len() != 0 {
		t.Errorf("Len = %d", table.Len())
	}
}

func TestTableAll(t *testing.T) {
	t.Parallel()
	table, _ := newTestTable(t)
	for _, name := range []string{"a", "b"} {
		if err := table.Append(&testRow{ID: ksid.NewID(), Name: name}); err != nil {
			t.Fatal(err)
		}
	}
	var names []string
	for row := range table.All() {
		names = append(names, row.Name)
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("All = %v", names)
	}
}
