// Implements Repository using os/exec git commands.

package git

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ExecRepo implements Repository using os/exec git commands.
type ExecRepo struct {
	dir          string
	defaultName  string
	defaultEmail string
	mu           sync.Mutex
}

func newExecRepo(ctx context.Context, dir, defaultName, defaultEmail string) (*ExecRepo, error) {
	r := &ExecRepo{
		dir:          dir,
		defaultName:  defaultName,
		defaultEmail: defaultEmail,
	}
	if err := r.init(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *ExecRepo) init(ctx context.Context) error {
	gitDir := filepath.Join(r.dir, ".git")
	if _, err := os.Stat(gitDir); os.IsNotExist(err) {
		if err := os.MkdirAll(r.dir, 0o755); err != nil {
			return fmt.Errorf("failed to create repo directory: %w", err)
		}
		if err := r.gitRun(ctx, "init"); err != nil {
			return fmt.Errorf("failed to initialize git repo: %w", err)
		}
		if err := r.gitRun(ctx, "config", "user.email", r.defaultEmail); err != nil {
			return fmt.Errorf("failed to configure git user.email: %w", err)
		}
		if err := r.gitRun(ctx, "config", "user.name", r.defaultName); err != nil {
			return fmt.Errorf("failed to configure git user.name: %w", err)
		}
	}
	return nil
}

// FS returns a read-only filesystem view of the working directory.
func (r *ExecRepo) FS() fs.FS {
	return os.DirFS(r.dir)
}

// CommitTx executes fn while holding the repository lock and commits the
// returned files. If fn returns an error or no files, no commit is made.
func (r *ExecRepo) CommitTx(ctx context.Context, author Author, fn func() (msg string, files []string, err error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg, files, err := fn()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}

	return r.commit(ctx, author, msg, files)
}

func (r *ExecRepo) commit(ctx context.Context, author Author, message string, files []string) error {
	args := append([]string{"add", "--"}, files...)
	if out, err := r.gitCombinedOutput(ctx, args...); err != nil {
		return fmt.Errorf("failed to stage files: %w\nOutput: %s", err, string(out))
	}

	// Nothing staged for these paths means the content was already
	// committed. The data dir also holds untracked files (config, tables),
	// so whole-tree status is never clean and cannot be used here.
	staged, err := r.hasStagedChanges(ctx, files)
	if err != nil {
		return err
	}
	if !staged {
		return nil
	}

	name := author.Name
	email := author.Email
	if name == "" {
		name = r.defaultName
	}
	if email == "" {
		email = r.defaultEmail
	}

	authorStr := fmt.Sprintf("%s <%s>", name, email)
	if err := r.gitRun(ctx, "commit", "-m", message, "--author", authorStr); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// hasStagedChanges reports whether any of files differ between the index and
// HEAD. diff --quiet exits 1 on differences, 0 on none.
func (r *ExecRepo) hasStagedChanges(ctx context.Context, files []string) (bool, error) {
	args := append([]string{"diff", "--cached", "--quiet", "--"}, files...)
	err := r.gitRun(ctx, args...)
	if err == nil {
		return false, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return true, nil
	}
	return false, fmt.Errorf("failed to check staged changes: %w", err)
}

// CommitCount returns the total number of commits in the repository.
func (r *ExecRepo) CommitCount(ctx context.Context) (int, error) {
	out, err := r.gitOutput(ctx, "rev-list", "--count", "HEAD")
	if err != nil {
		return 0, nil //nolint:nilerr // no commits yet is not an error
	}
	n := 0
	for _, b := range out {
		if b >= '0' && b <= '9' {
			n = n*10 + int(b-'0')
		}
	}
	return n, nil
}

// GetHistory returns commit history for a specific path, limited to n commits.
func (r *ExecRepo) GetHistory(ctx context.Context, path string, n int) ([]*Commit, error) {
	if n <= 0 || n > 1000 {
		n = 1000
	}

	format := "%H%x00%an%x00%ae%x00%ai%x00%s%x1e"
	args := []string{"log", "--pretty=format:" + format, fmt.Sprintf("-n%d", n), "--", path}
	out, err := r.gitCombinedOutput(ctx, args...)
	if err != nil {
		return nil, nil //nolint:nilerr // git log fails for paths with no history, which is not an error
	}

	var commits []*Commit
	for record := range strings.SplitSeq(string(out), "\x1e") {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}
		parts := strings.Split(record, "\x00")
		if len(parts) < 5 {
			continue
		}
		authorDate, _ := time.Parse("2006-01-02 15:04:05 -0700", parts[3])
		commits = append(commits, &Commit{
			Hash:        parts[0],
			Author:      parts[1],
			AuthorEmail: parts[2],
			AuthorDate:  authorDate,
			Message:     parts[4],
		})
	}
	return commits, nil
}

// GetFileAtCommit retrieves the content of a file at a specific commit.
func (r *ExecRepo) GetFileAtCommit(ctx context.Context, hash, filePath string) ([]byte, error) {
	out, err := r.gitOutput(ctx, "show", fmt.Sprintf("%s:%s", hash, filePath))
	if err != nil {
		return nil, fmt.Errorf("failed to get file at commit: %w", err)
	}
	return out, nil
}

// gitCmd creates an exec.Cmd for git with standard environment settings.
// Host and user git configuration is masked so behavior is reproducible.
func (r *ExecRepo) gitCmd(ctx context.Context, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.dir
	cmd.Env = append(os.Environ(),
		"GIT_CONFIG_GLOBAL=/dev/null",
		"GIT_CONFIG_SYSTEM=/dev/null",
	)
	return cmd
}

// gitRun executes a git command using a detached context with timeout.
//
// The command is NOT tied to the HTTP request's cancellation, so git
// operations complete even if the client disconnects.
func (r *ExecRepo) gitRun(ctx context.Context, args ...string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opTimeout)
	defer cancel()
	return r.gitCmd(ctx, args...).Run()
}

// gitOutput executes a git command and returns its stdout.
func (r *ExecRepo) gitOutput(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opTimeout)
	defer cancel()
	return r.gitCmd(ctx, args...).Output()
}

// gitCombinedOutput executes a git command and returns combined stdout/stderr.
func (r *ExecRepo) gitCombinedOutput(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opTimeout)
	defer cancel()
	return r.gitCmd(ctx, args...).CombinedOutput()
}
