// Image upload handling: typed, size-capped, content-addressed.

package wiki

import (
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"

	apierrors "github.com/maruel/mdwiki/internal/errors"
)

// DefaultMaxUploadBytes caps image uploads at 8 MiB.
const DefaultMaxUploadBytes = 8 << 20

// DefaultUploadTypes maps accepted content types to file extensions.
var DefaultUploadTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/bmp":  "bmp",
	"image/webp": "webp",
}

// Uploader stores images under the assets directory. Names derive from the
// content hash: identical uploads deduplicate and distinct content can never
// overwrite an existing asset. Uploads are not committed; the asset directory
// lives in the working tree but history only tracks pages.
type Uploader struct {
	dir      string
	maxBytes int64
	types    map[string]string
	log      *slog.Logger
}

// NewUploader returns an Uploader writing into dir. Zero maxBytes or nil types
// select the defaults.
func NewUploader(dir string, maxBytes int64, types map[string]string, log *slog.Logger) *Uploader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	if types == nil {
		types = DefaultUploadTypes
	}
	return &Uploader{dir: dir, maxBytes: maxBytes, types: types, log: log}
}

// MaxBytes returns the configured upload size ceiling.
func (u *Uploader) MaxBytes() int64 {
	return u.maxBytes
}

// Save reads an image body and writes it under the assets directory, returning
// the site-relative reference ("/images/<name>.<ext>") to embed in Markdown.
// The size ceiling is enforced while reading so an oversized body is rejected
// without buffering it fully.
func (u *Uploader) Save(contentType string, body io.Reader) (string, error) {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", apierrors.UnsupportedType(contentType)
	}
	ext, ok := u.types[mt]
	if !ok {
		return "", apierrors.UnsupportedType(mt)
	}

	data, err := io.ReadAll(io.LimitReader(body, u.maxBytes+1))
	if err != nil {
		return "", apierrors.InternalWithError("failed to read upload body", err)
	}
	if int64(len(data)) > u.maxBytes {
		return "", apierrors.TooLarge(u.maxBytes)
	}
	if len(data) == 0 {
		return "", apierrors.BadRequest("empty upload body")
	}

	sum := sha256.Sum256(data)
	name := fmt.Sprintf("%x.%s", sum[:8], ext)
	dst := filepath.Join(u.dir, name)
	if _, err := os.Stat(dst); err == nil {
		// Same hash, same content.
		return "/" + imagesDirName + "/" + name, nil
	}
	if err := writeFileAtomic(dst, data); err != nil {
		return "", apierrors.WriteFailed(err)
	}
	u.log.Info("image uploaded", "name", name, "bytes", len(data), "type", mt)
	return "/" + imagesDirName + "/" + name, nil
}
