package wiki

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apierrors "github.com/maruel/mdwiki/internal/errors"
)

func newTestUploader(t *testing.T, maxBytes int64) (*Uploader, string) {
	t.Helper()
	dir := t.TempDir()
	return NewUploader(dir, maxBytes, nil, slog.Default()), dir
}

func TestUploaderSave(t *testing.T) {
	t.Parallel()
	u, dir := newTestUploader(t, 0)

	ref, err := u.Save("image/png", strings.NewReader("pngdata"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !strings.HasPrefix(ref, "/images/") || !strings.HasSuffix(ref, ".png") {
		t.Errorf("ref = %q", ref)
	}

	name := strings.TrimPrefix(ref, "/images/")
	b, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "pngdata" {
		t.Errorf("stored content = %q", b)
	}

	// Identical content deduplicates to the same reference.
	ref2, err := u.Save("image/png", strings.NewReader("pngdata"))
	if err != nil {
		t.Fatal(err)
	}
	if ref2 != ref {
		t.Errorf("dedupe: %q != %q", ref2, ref)
	}

	// Different content gets a different name.
	ref3, err := u.Save("image/png", strings.NewReader("other"))
	if err != nil {
		t.Fatal(err)
	}
	if ref3 == ref {
		t.Errorf("distinct content mapped to same ref %q", ref)
	}
}

func TestUploaderContentTypes(t *testing.T) {
	t.Parallel()
	u, _ := newTestUploader(t, 0)

	for ct, ext := range DefaultUploadTypes {
		ref, err := u.Save(ct, strings.NewReader("data-"+ct))
		if err != nil {
			t.Errorf("Save(%s) failed: %v", ct, err)
			continue
		}
		if !strings.HasSuffix(ref, "."+ext) {
			t.Errorf("Save(%s) = %q, want extension %q", ct, ref, ext)
		}
	}

	// Parameters on the content type are fine.
	if _, err := u.Save("image/png; charset=binary", strings.NewReader("x")); err != nil {
		t.Errorf("Save with params failed: %v", err)
	}

	_, err := u.Save("application/pdf", strings.NewReader("x"))
	apiErr, ok := apierrors.AsAPIError(err)
	if !ok || apiErr.Code() != apierrors.ErrUnsupportedType {
		t.Fatalf("Save(application/pdf) = %v, want UNSUPPORTED_TYPE", err)
	}
}

func TestUploaderTooLarge(t *testing.T) {
	t.Parallel()
	u, dir := newTestUploader(t, 16)

	_, err := u.Save("image/gif", bytes.NewReader(make([]byte, 17)))
	apiErr, ok := apierrors.AsAPIError(err)
	if !ok || apiErr.Code() != apierrors.ErrTooLarge {
		t.Fatalf("oversized Save = %v, want TOO_LARGE", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("rejected upload left files: %v", entries)
	}

	// At the limit is fine.
	if _, err := u.Save("image/gif", bytes.NewReader(make([]byte, 16))); err != nil {
		t.Errorf("Save at limit failed: %v", err)
	}
}

func TestUploaderEmptyBody(t *testing.T) {
	t.Parallel()
	u, _ := newTestUploader(t, 0)
	_, err := u.Save("image/png", strings.NewReader(""))
	apiErr, ok := apierrors.AsAPIError(err)
	if !ok || apiErr.Code() != apierrors.ErrValidationFailed {
		t.Fatalf("empty Save = %v, want VALIDATION_FAILED", err)
	}
}
