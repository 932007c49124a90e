// Invokes the external site generator.

package wiki

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"
)

// buildTimeout bounds a single generator run.
const buildTimeout = 2 * time.Minute

// Builder renders the source tree into the static site. Implementations must
// be safe for concurrent use.
type Builder interface {
	Build(ctx context.Context) error
}

// ExecBuilder runs the configured generator command (default "mdbook build")
// in the wiki root. Runs are serialized; the generator rewrites its output
// directory in place and concurrent runs corrupt it.
type ExecBuilder struct {
	dir  string
	argv []string
	log  *slog.Logger
	mu   sync.Mutex
}

// NewExecBuilder returns a builder running argv in dir. An empty argv selects
// the default generator command.
func NewExecBuilder(dir string, argv []string, log *slog.Logger) *ExecBuilder {
	if len(argv) == 0 {
		argv = []string{"mdbook", "build"}
	}
	return &ExecBuilder{dir: dir, argv: argv, log: log}
}

// Build runs the generator once. The run is detached from the caller's
// cancellation so a client disconnect cannot leave a half-written site.
func (b *ExecBuilder) Build(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), buildTimeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, b.argv[0], b.argv[1:]...)
	cmd.Dir = b.dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		b.log.Error("site build failed", "cmd", b.argv[0], "err", err, "output", string(out))
		return fmt.Errorf("site build failed: %w", err)
	}
	b.log.Info("site built", "cmd", b.argv[0], "dur", time.Since(start).Round(time.Millisecond))
	return nil
}

// NopBuilder does nothing. Used in tests and when no generator is installed.
type NopBuilder struct{}

// Build implements Builder.
func (NopBuilder) Build(context.Context) error { return nil }
