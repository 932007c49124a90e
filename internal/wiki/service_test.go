package wiki

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	apierrors "github.com/maruel/mdwiki/internal/errors"
	"github.com/maruel/mdwiki/internal/storage/git"
)

func newTestService(t *testing.T) (*Service, *stubRepo) {
	t.Helper()
	store, repo := newTestStore(t)
	return NewService(store, NopBuilder{}, slog.Default()), repo
}

func TestServiceCreatePage(t *testing.T) {
	t.Parallel()
	svc, repo := newTestService(t)

	p, err := svc.CreatePage(t.Context(), "my page", []byte("# Hi\n"), git.Author{Name: "alice"})
	if err != nil {
		t.Fatalf("CreatePage failed: %v", err)
	}
	if p.String() != "my_page.md" {
		t.Errorf("resolved path = %q", p.String())
	}
	if p.RenderedURL() != "/my_page.html" {
		t.Errorf("RenderedURL = %q", p.RenderedURL())
	}
	if len(repo.commits) != 1 {
		t.Fatalf("got %d commits", len(repo.commits))
	}
}

func TestServiceCreatePageMissingFile(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	_, err := svc.CreatePage(t.Context(), "", []byte("x"), git.Author{})
	apiErr, ok := apierrors.AsAPIError(err)
	if !ok || apiErr.Code() != apierrors.ErrMissingField {
		t.Fatalf("CreatePage(\"\") = %v, want MISSING_FIELD", err)
	}
}

func TestServiceEditPage(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)

	if _, err := svc.CreatePage(t.Context(), "notes", []byte("v1"), git.Author{}); err != nil {
		t.Fatal(err)
	}
	p, err := svc.EditPage(t.Context(), "notes.md", []byte("v2"), git.Author{})
	if err != nil {
		t.Fatalf("EditPage failed: %v", err)
	}
	_, content, err := svc.GetPage(p.String())
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "v2" {
		t.Errorf("content = %q", content)
	}
}

func TestServiceGetPageTraversal(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	_, _, err := svc.GetPage("../etc/passwd")
	apiErr, ok := apierrors.AsAPIError(err)
	if !ok || apiErr.Code() != apierrors.ErrTraversal {
		t.Fatalf("GetPage traversal = %v, want TRAVERSAL", err)
	}
}

func TestServicePageHistory(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)

	p, err := svc.CreatePage(t.Context(), "notes", []byte("v1"), git.Author{Name: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.EditPage(t.Context(), "notes.md", []byte("v2"), git.Author{Name: "bob"}); err != nil {
		t.Fatal(err)
	}
	commits, err := svc.PageHistory(t.Context(), p)
	if err != nil {
		t.Fatal(err)
	}
	if len(commits) != 2 {
		t.Fatalf("got %d commits, want 2", len(commits))
	}
	// Newest first.
	if commits[0].Author != "bob" || commits[1].Author != "alice" {
		t.Errorf("history order: %v, %v", commits[0].Author, commits[1].Author)
	}
}

// gateBuilder blocks each build until released, counting runs.
type gateBuilder struct {
	started chan struct{}
	release chan struct{}
	mu      sync.Mutex
	n       int
}

func (b *gateBuilder) Build(context.Context) error {
	b.mu.Lock()
	b.n++
	b.mu.Unlock()
	b.started <- struct{}{}
	<-b.release
	return nil
}

func (b *gateBuilder) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.n
}

func TestRebuildCoalescesBursts(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	builder := &gateBuilder{started: make(chan struct{}, 16), release: make(chan struct{})}
	svc := NewService(store, builder, slog.Default())

	ctx := t.Context()
	svc.rebuild(ctx)
	<-builder.started

	// Saves landing while the first build runs must coalesce.
	for range 5 {
		svc.rebuild(ctx)
	}
	close(builder.release)

	select {
	case <-builder.started:
	case <-time.After(5 * time.Second):
		t.Fatal("no follow-up build after burst")
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		svc.buildMu.Lock()
		idle := !svc.building
		svc.buildMu.Unlock()
		if idle {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("builder never settled")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if n := builder.count(); n != 2 {
		t.Errorf("ran %d builds for a burst of 6 saves, want 2", n)
	}
}
