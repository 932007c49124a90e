package wiki

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestExecBuilder(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	b := NewExecBuilder(dir, []string{"sh", "-c", "echo built > out.txt"}, slog.Default())

	if err := b.Build(t.Context()); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "out.txt")); err != nil {
		t.Errorf("build command did not run in the wiki root: %v", err)
	}
}

func TestExecBuilderFailure(t *testing.T) {
	t.Parallel()
	b := NewExecBuilder(t.TempDir(), []string{"sh", "-c", "exit 3"}, slog.Default())
	if err := b.Build(t.Context()); err == nil {
		t.Fatal("Build succeeded, want error")
	}
}
