// Service coordinates page saves: resolve, persist, rebuild.

package wiki

import (
	"context"
	"log/slog"
	"sync"

	apierrors "github.com/maruel/mdwiki/internal/errors"
	"github.com/maruel/mdwiki/internal/storage/git"
)

// historyLimit is how many commits the edit form shows.
const historyLimit = 20

// Service is the write path of the wiki: it resolves requested paths, applies
// mutations through the Store, and schedules a site rebuild after each
// successful commit. Authorization happens in the HTTP layer before any
// Service call.
type Service struct {
	store   *Store
	builder Builder
	log     *slog.Logger

	buildMu  sync.Mutex
	building bool
	dirty    bool
}

// NewService wires a Service.
func NewService(store *Store, builder Builder, log *slog.Logger) *Service {
	return &Service{store: store, builder: builder, log: log}
}

// Store exposes the underlying store for read-only consumers.
func (s *Service) Store() *Store {
	return s.store
}

// CreatePage resolves requested, writes a new page and returns the resolved
// path. The rebuild is asynchronous; the save response never waits on the
// generator.
func (s *Service) CreatePage(ctx context.Context, requested string, content []byte, author git.Author) (WikiPath, error) {
	if requested == "" {
		return WikiPath{}, apierrors.MissingField("file")
	}
	p, err := Resolve(NormalizeRequested(requested))
	if err != nil {
		return WikiPath{}, err
	}
	if err := s.store.Create(ctx, author, p, content); err != nil {
		return WikiPath{}, err
	}
	s.log.Info("page created", "path", p.String(), "author", author.Name)
	s.rebuild(ctx)
	return p, nil
}

// EditPage resolves requested and overwrites an existing page.
func (s *Service) EditPage(ctx context.Context, requested string, content []byte, author git.Author) (WikiPath, error) {
	p, err := Resolve(NormalizeRequested(requested))
	if err != nil {
		return WikiPath{}, err
	}
	if err := s.store.Edit(ctx, author, p, content); err != nil {
		return WikiPath{}, err
	}
	s.log.Info("page edited", "path", p.String(), "author", author.Name)
	s.rebuild(ctx)
	return p, nil
}

// GetPage resolves requested and returns the page content.
func (s *Service) GetPage(requested string) (WikiPath, []byte, error) {
	p, err := Resolve(requested)
	if err != nil {
		return WikiPath{}, nil, err
	}
	b, err := s.store.Read(p)
	if err != nil {
		return WikiPath{}, nil, err
	}
	return p, b, nil
}

// PageHistory returns recent commits touching the page.
func (s *Service) PageHistory(ctx context.Context, p WikiPath) ([]*git.Commit, error) {
	return s.store.History(ctx, p, historyLimit)
}

// PageAt returns the page content at a specific commit.
func (s *Service) PageAt(ctx context.Context, hash string, p WikiPath) ([]byte, error) {
	return s.store.ReadAt(ctx, hash, p)
}

// Rebuild runs the generator once, logging failure. Exposed for startup and
// the source watcher.
func (s *Service) Rebuild(ctx context.Context) {
	if err := s.builder.Build(ctx); err != nil {
		s.log.Warn("rebuild failed", "err", err)
	}
}

// rebuild schedules an asynchronous rebuild. Saves landing while a build is
// running set a dirty flag and coalesce into one follow-up build, so a burst
// of N saves costs at most two generator runs.
func (s *Service) rebuild(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	s.buildMu.Lock()
	if s.building {
		s.dirty = true
		s.buildMu.Unlock()
		return
	}
	s.building = true
	s.buildMu.Unlock()

	go func() {
		for {
			s.Rebuild(ctx)
			s.buildMu.Lock()
			if !s.dirty {
				s.building = false
				s.buildMu.Unlock()
				return
			}
			s.dirty = false
			s.buildMu.Unlock()
		}
	}()
}
