package git

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
)

func TestParseBackend(t *testing.T) {
	t.Parallel()
	for s, want := range map[string]Backend{"": BackendExec, "exec": BackendExec, "gogit": BackendGoGit} {
		got, err := ParseBackend(s)
		if err != nil {
			t.Errorf("ParseBackend(%q) failed: %v", s, err)
		}
		if got != want {
			t.Errorf("ParseBackend(%q) = %v, want %v", s, got, want)
		}
	}
	if _, err := ParseBackend("svn"); err == nil {
		t.Error("ParseBackend(\"svn\") succeeded, want error")
	}
}

// testRepo runs the Repository contract tests against one backend.
func testRepo(t *testing.T, open func(t *testing.T) Repository) {
	t.Run("CommitAndHistory", func(t *testing.T) {
		t.Parallel()
		repo := open(t)
		ctx := t.Context()

		writeAndCommit(t, repo, "a.md", "v1", "Create a.md", Author{Name: "alice", Email: "alice@example.com"})
		writeAndCommit(t, repo, "a.md", "v2", "Edit a.md", Author{Name: "bob", Email: "bob@example.com"})
		writeAndCommit(t, repo, "b.md", "other", "Create b.md", Author{})

		n, err := repo.CommitCount(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if n != 3 {
			t.Errorf("CommitCount = %d, want 3", n)
		}

		commits, err := repo.GetHistory(ctx, "a.md", 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(commits) != 2 {
			t.Fatalf("got %d commits for a.md, want 2", len(commits))
		}
		if commits[0].Message != "Edit a.md" || commits[1].Message != "Create a.md" {
			t.Errorf("history order: %q, %q", commits[0].Message, commits[1].Message)
		}
		if commits[0].Author != "bob" {
			t.Errorf("author = %q, want bob", commits[0].Author)
		}
		if commits[0].Hash == "" || commits[0].AuthorDate.IsZero() {
			t.Error("commit metadata incomplete")
		}

		// Content at the older commit.
		b, err := repo.GetFileAtCommit(ctx, commits[1].Hash, "a.md")
		if err != nil {
			t.Fatal(err)
		}
		if string(b) != "v1" {
			t.Errorf("content at first commit = %q", b)
		}
	})

	t.Run("EmptyAuthorUsesDefaults", func(t *testing.T) {
		t.Parallel()
		repo := open(t)
		writeAndCommit(t, repo, "x.md", "x", "Create x.md", Author{})
		commits, err := repo.GetHistory(t.Context(), "x.md", 1)
		if err != nil {
			t.Fatal(err)
		}
		if len(commits) != 1 {
			t.Fatalf("got %d commits", len(commits))
		}
		if commits[0].Author != "tester" || commits[0].AuthorEmail != "tester@example.com" {
			t.Errorf("default author = %s <%s>", commits[0].Author, commits[0].AuthorEmail)
		}
	})

	t.Run("FnErrorAbortsCommit", func(t *testing.T) {
		t.Parallel()
		repo := open(t)
		wantErr := os.ErrPermission
		err := repo.CommitTx(t.Context(), Author{}, func() (string, []string, error) {
			return "", nil, wantErr
		})
		if err != wantErr {
			t.Fatalf("CommitTx = %v, want %v", err, wantErr)
		}
		if n, _ := repo.CommitCount(t.Context()); n != 0 {
			t.Errorf("CommitCount = %d after aborted tx", n)
		}
	})

	t.Run("NoFilesNoCommit", func(t *testing.T) {
		t.Parallel()
		repo := open(t)
		err := repo.CommitTx(t.Context(), Author{}, func() (string, []string, error) {
			return "nothing", nil, nil
		})
		if err != nil {
			t.Fatal(err)
		}
		if n, _ := repo.CommitCount(t.Context()); n != 0 {
			t.Errorf("CommitCount = %d, want 0", n)
		}
	})

	t.Run("NoChangeNoCommit", func(t *testing.T) {
		t.Parallel()
		repo := open(t)
		// A live data dir always carries untracked files next to the
		// sources; they must not defeat the no-change detection.
		dir := repoDir(repo)
		if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("jwt_secret: x\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		if err := os.MkdirAll(filepath.Join(dir, "db"), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "db", "users.jsonl"), []byte("{}\n"), 0o600); err != nil {
			t.Fatal(err)
		}

		writeAndCommit(t, repo, "a.md", "same", "Create a.md", Author{})
		// Saving the identical content again stages nothing and must
		// succeed without a commit.
		writeAndCommit(t, repo, "a.md", "same", "Edit a.md", Author{})
		if n, _ := repo.CommitCount(t.Context()); n != 1 {
			t.Errorf("CommitCount = %d, want 1", n)
		}
	})

	t.Run("ConcurrentCommits", func(t *testing.T) {
		t.Parallel()
		repo := open(t)
		const writers = 8
		errs := make([]error, writers)
		var wg sync.WaitGroup
		for i := range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				rel := fmt.Sprintf("p%d.md", i)
				errs[i] = repo.CommitTx(context.Background(), Author{}, func() (string, []string, error) {
					if err := os.WriteFile(filepath.Join(repoDir(repo), rel), []byte(rel), 0o644); err != nil {
						return "", nil, err
					}
					return "Create " + rel, []string{rel}, nil
				})
			}()
		}
		wg.Wait()
		for i, err := range errs {
			if err != nil {
				t.Fatalf("writer %d: %v", i, err)
			}
		}

		if n, err := repo.CommitCount(t.Context()); err != nil || n != writers {
			t.Errorf("CommitCount = %d (%v), want %d", n, err, writers)
		}
		for i := range writers {
			rel := fmt.Sprintf("p%d.md", i)
			commits, err := repo.GetHistory(t.Context(), rel, 10)
			if err != nil {
				t.Fatal(err)
			}
			if len(commits) != 1 || commits[0].Message != "Create "+rel {
				t.Errorf("history for %s: %+v", rel, commits)
			}
		}
	})
}

func writeAndCommit(t *testing.T, repo Repository, rel, content, msg string, author Author) {
	t.Helper()
	err := repo.CommitTx(context.Background(), author, func() (string, []string, error) {
		dir := repoDir(repo)
		if err := os.WriteFile(filepath.Join(dir, rel), []byte(content), 0o644); err != nil {
			return "", nil, err
		}
		return msg, []string{rel}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func repoDir(repo Repository) string {
	switch r := repo.(type) {
	case *ExecRepo:
		return r.dir
	case *GoGitRepo:
		return r.dir
	}
	panic("unknown repository type")
}

func TestGoGitRepo(t *testing.T) {
	t.Parallel()
	testRepo(t, func(t *testing.T) Repository {
		t.Helper()
		repo, err := Open(t.Context(), t.TempDir(), "tester", "tester@example.com", BackendGoGit)
		if err != nil {
			t.Fatal(err)
		}
		return repo
	})
}

func TestExecRepo(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not installed")
	}
	testRepo(t, func(t *testing.T) Repository {
		t.Helper()
		repo, err := Open(t.Context(), t.TempDir(), "tester", "tester@example.com", BackendExec)
		if err != nil {
			t.Fatal(err)
		}
		return repo
	})
}

func TestOpenReusesExistingRepo(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	repo, err := Open(t.Context(), dir, "tester", "tester@example.com", BackendGoGit)
	if err != nil {
		t.Fatal(err)
	}
	writeAndCommit(t, repo, "a.md", "v1", "Create a.md", Author{})

	again, err := Open(t.Context(), dir, "tester", "tester@example.com", BackendGoGit)
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := again.CommitCount(t.Context()); n != 1 {
		t.Errorf("CommitCount after reopen = %d, want 1", n)
	}
}
