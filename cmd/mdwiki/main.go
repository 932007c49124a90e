// Package main is the entry point for the mdwiki server.
//
// mdwiki serves a git-backed wiki: the data directory is both an mdbook
// source tree and a git working tree. Authenticated users create and edit
// pages from the browser; every save is one commit, and the external
// generator rebuilds the rendered site after each change. Configuration is
// read from CLI flags, a .env file, and config.yaml in the data directory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"

	"github.com/maruel/mdwiki/internal/server"
	"github.com/maruel/mdwiki/internal/server/handlers"
	"github.com/maruel/mdwiki/internal/server/ipgeo"
	"github.com/maruel/mdwiki/internal/storage"
	"github.com/maruel/mdwiki/internal/storage/git"
	"github.com/maruel/mdwiki/internal/storage/identity"
	"github.com/maruel/mdwiki/internal/wiki"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "mdwiki: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	httpAddr := flag.String("http", "localhost:8080", "Address to listen on (use 0.0.0.0:port to listen on all interfaces)")
	dataDir := flag.String("data-dir", "./wiki", "Wiki root: mdbook source tree and git repository")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	geoDB := flag.String("geo-db", "", "Path to MaxMind MMDB file for IP geolocation (optional)")
	gitBackend := flag.String("git-backend", "", "Git backend: exec or gogit (default from config.yaml)")
	allowAnonymous := flag.Bool("allow-anonymous", false, "Serve the rendered site without login (overrides config.yaml)")
	addUser := flag.String("add-user", "", "Create or update a user as user:password, then exit")
	flag.Parse()
	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}

	if *version {
		printVersion()
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	ll.Set(slog.LevelInfo)
	// Skip timestamps when running under systemd (it adds its own).
	underSystemd := os.Getenv("JOURNAL_STREAM") != ""
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if underSystemd && a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			// Drop localhost IPs (not useful in logs).
			if a.Key == "ip" {
				if v := a.Value.String(); v == "127.0.0.1" || v == "::1" {
					return slog.Attr{}
				}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(*dataDir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// Load .env for environment overrides; flags explicitly set still win.
	if err := godotenv.Load(filepath.Join(*dataDir, ".env")); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if !set["http"] {
		if v := os.Getenv("HTTP"); v != "" {
			*httpAddr = v
		}
	}
	if !set["log-level"] {
		if v := os.Getenv("LOG_LEVEL"); v != "" {
			*logLevel = v
		}
	}
	if !set["geo-db"] {
		if v := os.Getenv("GEO_DB"); v != "" {
			*geoDB = v
		}
	}

	switch *logLevel {
	case "debug":
		ll.Set(slog.LevelDebug)
	case "info":
	case "warn":
		ll.Set(slog.LevelWarn)
	case "error":
		ll.Set(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level: %q", *logLevel)
	}

	cfg, err := storage.LoadServerConfig(*dataDir)
	if err != nil {
		return err
	}
	if set["allow-anonymous"] {
		cfg.AllowAnonymous = *allowAnonymous
	}

	dbDir := filepath.Join(*dataDir, "db")
	userService, err := identity.NewUserService(filepath.Join(dbDir, "users.jsonl"))
	if err != nil {
		return fmt.Errorf("failed to initialize user service: %w", err)
	}
	sessionService, err := identity.NewSessionService(filepath.Join(dbDir, "sessions.jsonl"))
	if err != nil {
		return fmt.Errorf("failed to initialize session service: %w", err)
	}

	if *addUser != "" {
		return provisionUser(userService, *addUser)
	}

	// Cleanup old expired sessions (older than 7 days past expiration).
	if count, err := sessionService.CleanupExpired(7 * 24 * time.Hour); err != nil {
		slog.WarnContext(ctx, "failed to cleanup expired sessions", "err", err)
	} else if count > 0 {
		slog.InfoContext(ctx, "cleaned up expired sessions", "count", count)
	}

	backendName := cfg.GitBackend
	if *gitBackend != "" {
		backendName = *gitBackend
	}
	backend, err := git.ParseBackend(backendName)
	if err != nil {
		return err
	}
	repo, err := git.Open(ctx, *dataDir, cfg.CommitName, cfg.CommitEmail, backend)
	if err != nil {
		return fmt.Errorf("failed to open wiki repository: %w", err)
	}

	store := wiki.NewStore(repo, *dataDir)
	if err := store.Bootstrap(ctx); err != nil {
		return fmt.Errorf("failed to bootstrap wiki: %w", err)
	}

	builder := wiki.NewExecBuilder(*dataDir, cfg.BuildCommand, logger)
	wikiSvc := wiki.NewService(store, builder, logger)
	uploader := wiki.NewUploader(store.ImagesDir(), cfg.MaxUploadBytes, cfg.UploadTypes, logger)

	var geoChecker *ipgeo.Checker
	if *geoDB != "" {
		geoChecker, err = ipgeo.Open(*geoDB)
		if err != nil {
			return fmt.Errorf("failed to open geo database: %w", err)
		}
		defer func() { _ = geoChecker.Close() }()
		slog.InfoContext(ctx, "IP geolocation enabled", "db", *geoDB)
	}

	if userService.Count() == 0 {
		slog.WarnContext(ctx, "no users exist; run with -add-user user:password to provision one")
	}

	// Watch own executable for modifications (for development restarts).
	if err := watchExecutable(ctx, stop); err != nil {
		return fmt.Errorf("failed to watch executable: %w", err)
	}

	h := &handlers.Handlers{
		Log:      logger,
		Config:   cfg,
		Users:    userService,
		Sessions: sessionService,
		Wiki:     wikiSvc,
		Uploader: uploader,
		Geo:      geoChecker,
		BookDir:  filepath.Join(*dataDir, "book"),
	}

	addr := *httpAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.New(h),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Initial render so the site is up to date with the working tree.
	wikiSvc.Rebuild(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		w := wiki.NewWatcher(wikiSvc, logger)
		if err := w.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("source watcher: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		slog.InfoContext(ctx, "starting server", "addr", addr, "data", *dataDir)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// provisionUser creates the user or resets its password, for bootstrapping
// credentials without a register endpoint.
func provisionUser(users *identity.UserService, spec string) error {
	username, password, ok := strings.Cut(spec, ":")
	if !ok || username == "" || password == "" {
		return errors.New("-add-user expects user:password")
	}
	if existing, err := users.GetByUsername(username); err == nil {
		if err := users.SetPassword(existing.ID, password); err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}
		fmt.Printf("updated password for %s\n", username)
		return nil
	}
	if _, err := users.Create(username, password); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	fmt.Printf("created user %s\n", username)
	return nil
}

func printVersion() {
	version, goVersion, revision, dirty := getBuildInfo()
	fmt.Printf("mdwiki %s\n", version)
	fmt.Printf("  Go version: %s\n", goVersion)
	fmt.Printf("  Revision:   %s\n", revision)
	if dirty {
		fmt.Printf("  Modified:   true\n")
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}

// watchExecutable watches the current executable for modifications and calls
// stop to trigger graceful shutdown when detected. This enables seamless
// restarts during development.
func watchExecutable(ctx context.Context, stop context.CancelFunc) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(exe); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Chmod) {
					slog.InfoContext(ctx, "executable modified, initiating shutdown")
					stop()
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "error watching executable", "err", err)
			}
		}
	}()
	return nil
}
