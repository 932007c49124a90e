// Package wiki implements the content repository: page path resolution,
// git-committed page writes, image uploads, and coordination with the
// external site generator.
package wiki

import (
	gopath "path"
	"strings"

	apierrors "github.com/maruel/mdwiki/internal/errors"
)

// IndexFilename is the fixed filename a directory-style path maps to. It
// mirrors the generator's convention so both sides agree on the layout.
const IndexFilename = "README.md"

// maxPathSegments caps page nesting at three directory levels plus the file.
const maxPathSegments = 4

// reservedNames are filenames maintained by the server itself.
var reservedNames = []string{"SUMMARY.md", "index.md"}

// reservedPrefixes are first segments that collide with server routes or the
// asset directory.
var reservedPrefixes = []string{"new", "edit", "upload", "images"}

// WikiPath is a validated page path relative to the source directory, always
// slash-separated and ending in ".md". Constructed only by Resolve.
type WikiPath struct {
	rel string
}

// String returns the source-relative path, e.g. "guide/intro.md".
func (p WikiPath) String() string {
	return p.rel
}

// IsZero reports whether the path is the zero value.
func (p WikiPath) IsZero() bool {
	return p.rel == ""
}

// IsIndex reports whether the path is a directory index file.
func (p WikiPath) IsIndex() bool {
	return gopath.Base(p.rel) == IndexFilename
}

// Ancestors returns the parent directories of the page, outermost first,
// excluding the root. For "a/b/c.md" it returns ["a", "a/b"].
func (p WikiPath) Ancestors() []string {
	dir := gopath.Dir(p.rel)
	if dir == "." {
		return nil
	}
	parts := strings.Split(dir, "/")
	out := make([]string, len(parts))
	for i := range parts {
		out[i] = strings.Join(parts[:i+1], "/")
	}
	return out
}

// RenderedURL returns the URL of the generator's rendered output for this
// page: ".md" becomes ".html" and a trailing index file collapses to its
// directory.
func (p WikiPath) RenderedURL() string {
	if p.IsIndex() {
		dir := gopath.Dir(p.rel)
		if dir == "." {
			return "/"
		}
		return "/" + dir + "/"
	}
	return "/" + strings.TrimSuffix(p.rel, ".md") + ".html"
}

// Resolve validates a requested page path and applies the directory-index
// convention. It is pure: no filesystem access. Rejections:
//   - absolute paths, "." or ".." segments, empty segments (TRAVERSAL)
//   - extensions other than ".md" (TRAVERSAL)
//   - reserved names and reserved first segments (TRAVERSAL)
//   - nesting deeper than maxPathSegments (VALIDATION_FAILED)
//
// An empty path or one ending in "/" is treated as a directory and rewritten
// to "<path>/README.md". A final segment with no extension is a page and gets
// ".md" appended. Both rewrites are idempotent under repeated resolution.
func Resolve(requested string) (WikiPath, error) {
	isDir := requested == "" || strings.HasSuffix(requested, "/")
	trimmed := strings.TrimSuffix(requested, "/")
	if strings.HasPrefix(requested, "/") || strings.Contains(requested, "\\") {
		return WikiPath{}, apierrors.Traversal(requested)
	}

	var segments []string
	if trimmed != "" {
		segments = strings.Split(trimmed, "/")
		for _, seg := range segments {
			if seg == "" || seg == "." || seg == ".." {
				return WikiPath{}, apierrors.Traversal(requested)
			}
		}
	}

	switch {
	case isDir:
		segments = append(segments, IndexFilename)
	default:
		if last := segments[len(segments)-1]; !strings.Contains(last, ".") {
			segments[len(segments)-1] = last + ".md"
		}
	}

	rel := strings.Join(segments, "/")
	if gopath.Ext(rel) != ".md" {
		return WikiPath{}, apierrors.Traversal(requested)
	}
	for _, name := range reservedNames {
		if gopath.Base(rel) == name {
			return WikiPath{}, apierrors.Traversal(requested)
		}
	}
	for _, prefix := range reservedPrefixes {
		if segments[0] == prefix {
			return WikiPath{}, apierrors.Traversal(requested)
		}
	}
	if len(segments) > maxPathSegments {
		return WikiPath{}, apierrors.BadRequest("page path is nested too deeply")
	}
	return WikiPath{rel: rel}, nil
}

// NormalizeRequested prepares raw form input for Resolve: trims surrounding
// whitespace and replaces spaces with underscores, matching how page titles
// are conventionally mapped to filenames.
func NormalizeRequested(raw string) string {
	return strings.ReplaceAll(strings.TrimSpace(raw), " ", "_")
}
