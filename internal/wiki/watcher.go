// Watches the source tree and rebuilds on external changes.

package wiki

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces bursts of filesystem events (a git pull touches many
// files) into a single rebuild.
const watchDebounce = 2 * time.Second

// Watcher rebuilds the site when the source tree changes outside the server,
// e.g. an operator editing files or pulling commits directly.
type Watcher struct {
	srcDir string
	svc    *Service
	log    *slog.Logger
}

// NewWatcher wires a Watcher over the service's source directory.
func NewWatcher(svc *Service, log *slog.Logger) *Watcher {
	return &Watcher{srcDir: svc.Store().SrcDir(), svc: svc, log: log}
}

// Run watches until ctx is canceled. New subdirectories are added to the watch
// set as they appear; fsnotify does not recurse on its own.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fw.Close() }()

	if err := w.addRecursive(fw, w.srcDir); err != nil {
		return err
	}

	var timer *time.Timer
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if strings.HasPrefix(filepath.Base(ev.Name), ".") {
				continue
			}
			if ev.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = w.addRecursive(fw, ev.Name)
				}
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			pending = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "err", err)
		case <-pending:
			pending = nil
			w.log.Debug("source tree changed, rebuilding")
			w.svc.Rebuild(ctx)
		}
	}
}

func (w *Watcher) addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return err
		}
		return fw.Add(path)
	})
}
