// Creates the initial book skeleton on first run.

package wiki

import (
	"context"
	"errors"
	"io/fs"
	"os"
	gopath "path"
	"path/filepath"

	apierrors "github.com/maruel/mdwiki/internal/errors"
	"github.com/maruel/mdwiki/internal/storage/git"
)

const bookToml = `[book]
title = "wiki"
src = "src"

[output.html]
additional-js = ["mdwiki.js"]
`

// Bootstrap lays out the generator skeleton if the wiki root does not have one
// yet and commits it. It is a no-op on an already initialized root, so it is
// safe to call on every startup.
func (s *Store) Bootstrap(ctx context.Context) error {
	marker := filepath.Join(s.rootDir, "book.toml")
	if _, err := os.Stat(marker); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return apierrors.InternalWithError("failed to inspect wiki root", err)
	}

	err := s.repo.CommitTx(ctx, git.Author{}, func() (string, []string, error) {
		files := []string{"book.toml", ".gitignore"}
		if err := writeFileAtomic(marker, []byte(bookToml)); err != nil {
			return "", nil, apierrors.WriteFailed(err)
		}
		// The rendered output never belongs in history.
		if err := writeFileAtomic(filepath.Join(s.rootDir, ".gitignore"), []byte("book/\n")); err != nil {
			return "", nil, apierrors.WriteFailed(err)
		}
		if !s.Exists(WikiPath{rel: IndexFilename}) {
			if err := writeFileAtomic(s.abs(IndexFilename), []byte("# Home\n")); err != nil {
				return "", nil, apierrors.WriteFailed(err)
			}
			files = append(files, gopath.Join(srcDirName, IndexFilename))
		}
		if err := os.MkdirAll(s.ImagesDir(), 0o755); err != nil {
			return "", nil, apierrors.WriteFailed(err)
		}
		if err := s.writeSummary(); err != nil {
			return "", nil, apierrors.WriteFailed(err)
		}
		files = append(files, gopath.Join(srcDirName, summaryFilename))
		return "Initial wiki commit", files, nil
	})
	return classifyCommitErr(err)
}
