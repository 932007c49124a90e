package wiki

import (
	"slices"
	"testing"

	apierrors "github.com/maruel/mdwiki/internal/errors"
)

func TestResolve(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		requested string
		want      string
	}{
		{"simple page", "notes.md", "notes.md"},
		{"nested page", "guide/intro.md", "guide/intro.md"},
		{"no extension appends md", "guide/setup", "guide/setup.md"},
		{"empty is root index", "", "README.md"},
		{"trailing slash is directory", "guide/", "guide/README.md"},
		{"nested directory", "a/b/", "a/b/README.md"},
		{"resolution is idempotent", "guide/README.md", "guide/README.md"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, err := Resolve(tt.requested)
			if err != nil {
				t.Fatalf("Resolve(%q) failed: %v", tt.requested, err)
			}
			if p.String() != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.requested, p.String(), tt.want)
			}
		})
	}
}

func TestResolveRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		requested string
		code      apierrors.ErrorCode
	}{
		{"absolute path", "/etc/passwd", apierrors.ErrTraversal},
		{"parent escape", "../secrets.md", apierrors.ErrTraversal},
		{"embedded dotdot", "a/../../b.md", apierrors.ErrTraversal},
		{"dot segment", "a/./b.md", apierrors.ErrTraversal},
		{"empty segment", "a//b.md", apierrors.ErrTraversal},
		{"backslash", "a\\b.md", apierrors.ErrTraversal},
		{"wrong extension", "page.txt", apierrors.ErrTraversal},
		{"summary reserved", "SUMMARY.md", apierrors.ErrTraversal},
		{"nested summary reserved", "guide/SUMMARY.md", apierrors.ErrTraversal},
		{"index reserved", "index.md", apierrors.ErrTraversal},
		{"new route collision", "new/page.md", apierrors.ErrTraversal},
		{"edit route collision", "edit/page.md", apierrors.ErrTraversal},
		{"upload route collision", "upload/page.md", apierrors.ErrTraversal},
		{"asset dir collision", "images/page.md", apierrors.ErrTraversal},
		{"too deep", "a/b/c/d/e.md", apierrors.ErrValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Resolve(tt.requested)
			if err == nil {
				t.Fatalf("Resolve(%q) succeeded, want error", tt.requested)
			}
			apiErr, ok := apierrors.AsAPIError(err)
			if !ok {
				t.Fatalf("Resolve(%q) returned unstructured error: %v", tt.requested, err)
			}
			if apiErr.Code() != tt.code {
				t.Errorf("Resolve(%q) code = %s, want %s", tt.requested, apiErr.Code(), tt.code)
			}
		})
	}
}

func TestWikiPathAncestors(t *testing.T) {
	t.Parallel()
	p, err := Resolve("a/b/c.md")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a", "a/b"}
	if got := p.Ancestors(); !slices.Equal(got, want) {
		t.Errorf("Ancestors() = %v, want %v", got, want)
	}

	p, err = Resolve("top.md")
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Ancestors(); got != nil {
		t.Errorf("Ancestors() = %v, want nil", got)
	}
}

func TestWikiPathRenderedURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		requested string
		want      string
	}{
		{"guide/intro.md", "/guide/intro.html"},
		{"guide/", "/guide/"},
		{"", "/"},
		{"notes.md", "/notes.html"},
	}
	for _, tt := range tests {
		p, err := Resolve(tt.requested)
		if err != nil {
			t.Fatalf("Resolve(%q) failed: %v", tt.requested, err)
		}
		if got := p.RenderedURL(); got != tt.want {
			t.Errorf("RenderedURL(%q) = %q, want %q", tt.requested, got, tt.want)
		}
	}
}

func TestNormalizeRequested(t *testing.T) {
	t.Parallel()
	if got := NormalizeRequested("  my new page "); got != "my_new_page" {
		t.Errorf("NormalizeRequested = %q", got)
	}
}
