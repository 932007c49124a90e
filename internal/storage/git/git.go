// Defines the Repository interface and shared types for git operations.

// Package git wraps version-control operations on the wiki working tree
// behind a small interface, with two interchangeable backends: the git CLI
// via os/exec (default) and go-git (pure Go, no git binary needed).
package git

import (
	"context"
	"fmt"
	"io/fs"
	"time"
)

// opTimeout bounds every git invocation so a stuck subprocess cannot hold
// the commit lock indefinitely.
const opTimeout = time.Minute

// Repository is the interface for git operations on a single repository.
// Mutations are serialized: CommitTx holds an exclusive lock for the whole
// write-stage-commit sequence. Reads do not take the lock.
type Repository interface {
	// FS returns a read-only filesystem view of the working directory.
	FS() fs.FS
	// CommitTx executes fn while holding the repository lock and commits the
	// returned files as a single commit attributed to author. If fn returns
	// an error or no files, no commit is made.
	CommitTx(ctx context.Context, author Author, fn func() (msg string, files []string, err error)) error
	// CommitCount returns the total number of commits in the repository.
	CommitCount(ctx context.Context) (int, error)
	// GetHistory returns commit history for a specific path, newest first,
	// limited to n commits. n is capped at 1000; if n <= 0 it defaults to 1000.
	GetHistory(ctx context.Context, path string, n int) ([]*Commit, error)
	// GetFileAtCommit retrieves the content of a file at a specific commit.
	GetFileAtCommit(ctx context.Context, hash, filePath string) ([]byte, error)
}

// Backend selects which git implementation to use.
type Backend int

const (
	// BackendExec uses the git CLI via os/exec (default).
	BackendExec Backend = iota
	// BackendGoGit uses go-git (pure Go, no git binary needed).
	BackendGoGit
)

// ParseBackend maps a configuration string to a Backend.
func ParseBackend(s string) (Backend, error) {
	switch s {
	case "", "exec":
		return BackendExec, nil
	case "gogit":
		return BackendGoGit, nil
	default:
		return BackendExec, fmt.Errorf("unknown git backend: %q", s)
	}
}

// Open returns a Repository for dir, initializing a repository there if none
// exists. defaultName and defaultEmail are used as the committer identity and
// as the author fallback.
func Open(ctx context.Context, dir, defaultName, defaultEmail string, backend Backend) (Repository, error) {
	if defaultName == "" {
		defaultName = "mdwiki"
	}
	if defaultEmail == "" {
		defaultEmail = "mdwiki@localhost"
	}
	switch backend {
	case BackendGoGit:
		return newGoGitRepo(ctx, dir, defaultName, defaultEmail)
	default:
		return newExecRepo(ctx, dir, defaultName, defaultEmail)
	}
}

// Author identifies who made a change for git commits.
type Author struct {
	Name  string
	Email string
}

// Commit represents a commit in git history.
type Commit struct {
	Hash        string    `json:"hash"`
	Message     string    `json:"message"` // Subject line.
	Author      string    `json:"author"`
	AuthorEmail string    `json:"author_email"`
	AuthorDate  time.Time `json:"author_date"`
}
