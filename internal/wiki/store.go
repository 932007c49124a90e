// Store reads and writes pages in the git-backed source tree.

package wiki

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	gopath "path"
	"path/filepath"
	"sort"
	"strings"

	"context"

	apierrors "github.com/maruel/mdwiki/internal/errors"
	"github.com/maruel/mdwiki/internal/storage/git"
)

// srcDirName is the source subdirectory of the wiki root, per the generator's
// layout. All page paths are relative to it; commits address files relative to
// the wiki root.
const srcDirName = "src"

// imagesDirName holds uploaded assets under the source directory.
const imagesDirName = "images"

// summaryFilename is the generated table of contents, never edited directly.
const summaryFilename = "SUMMARY.md"

// Store implements page persistence: every successful mutation is exactly one
// commit in the underlying repository. Reads go straight to the working tree.
type Store struct {
	repo    git.Repository
	rootDir string
	srcDir  string
}

// NewStore returns a Store over repo whose working tree is rootDir.
func NewStore(repo git.Repository, rootDir string) *Store {
	return &Store{
		repo:    repo,
		rootDir: rootDir,
		srcDir:  filepath.Join(rootDir, srcDirName),
	}
}

// SrcDir returns the absolute path of the source directory.
func (s *Store) SrcDir() string {
	return s.srcDir
}

// ImagesDir returns the absolute path of the uploaded assets directory.
func (s *Store) ImagesDir() string {
	return filepath.Join(s.srcDir, imagesDirName)
}

// Read returns the current content of a page, or NOT_FOUND. Reads go through
// the repository's filesystem view and never take the commit lock.
func (s *Store) Read(p WikiPath) ([]byte, error) {
	b, err := fs.ReadFile(s.repo.FS(), gopath.Join(srcDirName, p.String()))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apierrors.NotFound(fmt.Sprintf("page %q", p))
		}
		return nil, apierrors.InternalWithError("failed to read page", err)
	}
	return b, nil
}

// Exists reports whether the page is present in the working tree.
func (s *Store) Exists(p WikiPath) bool {
	_, err := fs.Stat(s.repo.FS(), gopath.Join(srcDirName, p.String()))
	return err == nil
}

// Create writes a new page and commits it together with any missing ancestor
// index pages and the regenerated summary. Fails with CONFLICT if the page
// already exists. The existence check runs under the commit lock so two
// concurrent creates of the same path cannot both succeed.
func (s *Store) Create(ctx context.Context, author git.Author, p WikiPath, content []byte) error {
	err := s.repo.CommitTx(ctx, author, func() (string, []string, error) {
		if s.Exists(p) {
			return "", nil, apierrors.Conflict(fmt.Sprintf("page %q already exists", p))
		}

		var files []string
		for _, dir := range p.Ancestors() {
			idx := gopath.Join(dir, IndexFilename)
			if _, err := os.Stat(s.abs(idx)); err == nil {
				continue
			}
			title := strings.ReplaceAll(gopath.Base(dir), "_", " ")
			if err := writeFileAtomic(s.abs(idx), []byte("# "+title+"\n")); err != nil {
				return "", nil, apierrors.WriteFailed(err)
			}
			files = append(files, gopath.Join(srcDirName, idx))
		}

		if err := writeFileAtomic(s.abs(p.String()), content); err != nil {
			return "", nil, apierrors.WriteFailed(err)
		}
		files = append(files, gopath.Join(srcDirName, p.String()))

		if err := s.writeSummary(); err != nil {
			return "", nil, apierrors.WriteFailed(err)
		}
		files = append(files, gopath.Join(srcDirName, summaryFilename))

		return "Create " + p.String(), files, nil
	})
	return classifyCommitErr(err)
}

// Edit overwrites an existing page and commits it. Fails with NOT_FOUND if the
// page does not exist.
func (s *Store) Edit(ctx context.Context, author git.Author, p WikiPath, content []byte) error {
	err := s.repo.CommitTx(ctx, author, func() (string, []string, error) {
		if !s.Exists(p) {
			return "", nil, apierrors.NotFound(fmt.Sprintf("page %q", p))
		}
		if err := writeFileAtomic(s.abs(p.String()), content); err != nil {
			return "", nil, apierrors.WriteFailed(err)
		}
		return "Edit " + p.String(), []string{gopath.Join(srcDirName, p.String())}, nil
	})
	return classifyCommitErr(err)
}

// History returns the commits touching a page, newest first, up to n.
func (s *Store) History(ctx context.Context, p WikiPath, n int) ([]*git.Commit, error) {
	return s.repo.GetHistory(ctx, gopath.Join(srcDirName, p.String()), n)
}

// ReadAt returns the content of a page at a specific commit.
func (s *Store) ReadAt(ctx context.Context, hash string, p WikiPath) ([]byte, error) {
	b, err := s.repo.GetFileAtCommit(ctx, hash, gopath.Join(srcDirName, p.String()))
	if err != nil {
		return nil, apierrors.NotFound(fmt.Sprintf("page %q at %s", p, hash))
	}
	return b, nil
}

func (s *Store) abs(rel string) string {
	return filepath.Join(s.srcDir, filepath.FromSlash(rel))
}

// classifyCommitErr distinguishes errors raised inside the commit transaction
// (already structured, nothing was committed) from failures of the commit step
// itself (content is on disk but not in history).
func classifyCommitErr(err error) error {
	if err == nil {
		return nil
	}
	var ews apierrors.ErrorWithStatus
	if errors.As(err, &ews) {
		return err
	}
	return apierrors.CommitFailed(err)
}

// writeSummary regenerates SUMMARY.md from the source tree: a Home link to the
// root index, then one nested list entry per page, directories represented by
// their index page. The assets directory and the summary itself are skipped.
func (s *Store) writeSummary() error {
	var b strings.Builder
	b.WriteString("# Summary\n\n[Home](" + IndexFilename + ")\n\n")
	if err := s.summarizeDir(&b, "", 0); err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(s.srcDir, summaryFilename), []byte(b.String()))
}

func (s *Store) summarizeDir(b *strings.Builder, dir string, depth int) error {
	entries, err := os.ReadDir(filepath.Join(s.srcDir, filepath.FromSlash(dir)))
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	indent := strings.Repeat("  ", depth)
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		rel := gopath.Join(dir, name)
		if e.IsDir() {
			if dir == "" && name == imagesDirName {
				continue
			}
			title := strings.ReplaceAll(name, "_", " ")
			fmt.Fprintf(b, "%s- [%s](%s)\n", indent, title, gopath.Join(rel, IndexFilename))
			if err := s.summarizeDir(b, rel, depth+1); err != nil {
				return err
			}
			continue
		}
		if !strings.HasSuffix(name, ".md") || name == IndexFilename || name == summaryFilename {
			continue
		}
		title := strings.ReplaceAll(strings.TrimSuffix(name, ".md"), "_", " ")
		fmt.Fprintf(b, "%s- [%s](%s)\n", indent, title, rel)
	}
	return nil
}

// writeFileAtomic writes data to path via a temp file and rename so readers
// never observe a partial page. Parent directories are created as needed.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".wiki-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return err
	}
	return nil
}
