package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/conorfennell/tango/internal/config"
	"github.com/conorfennell/tango/internal/jobs"
	"github.com/conorfennell/tango/internal/knol"
	"github.com/conorfennell/tango/internal/parser"
	"github.com/conorfennell/tango/internal/storage"
	"github.com/conorfennell/tango/internal/study"
	"github.com/conorfennell/tango/internal/sync"
	"github.com/conorfennell/tango/internal/web"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "tango:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	// 1. Define and parse command-line flags
	flags := config.NewFlagSet("tango")
	addSource := flags.String("add-source", "", "Register a local directory or git URL as a card source")
	doSync := flags.Bool("sync", false, "Reconcile all sources into the database")
	importFile := flags.String("import", "", "Import a single .md or .xlsx deck file")
	importSource := flags.String("source", "", "Source path the imported cards belong to (default: the file itself)")
	serve := flags.Bool("serve", false, "Start the web UI")
	showStats := flags.Bool("stats", false, "Print collection statistics")
	if err := flags.Parse(args); err != nil {
		return err
	}

	// 2. Load layered configuration
	cfg, err := config.Load(flags)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	// 3. Open the database
	db, err := storage.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("database opened", "path", cfg.DB)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	syncer := sync.New(db, cfg.ReposDir, logger)
	svc := study.NewService(db, cfg.Scheduler, study.WithLogger(logger))

	if *addSource != "" {
		id, err := syncer.AddSource(*addSource)
		if err != nil {
			return fmt.Errorf("failed to add source: %w", err)
		}
		logger.Info("source registered", "id", id, "path", *addSource, "type", sync.SourceType(*addSource))
	}

	if *importFile != "" {
		n, err := importDeck(db, syncer, *importFile, *importSource)
		if err != nil {
			return err
		}
		logger.Info("import complete", "file", *importFile, "inserted", n)
	}

	if *doSync {
		if err := syncer.RunSync(ctx); err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
	}

	if *showStats {
		st, err := svc.Stats(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Cards: %d  Due: %d  New: %d  Favorites: %d\n", st.Total, st.Due, st.New, st.Favorites)
	}

	if *serve {
		return serveHTTP(ctx, cfg, db, svc, syncer, logger)
	}
	return nil
}

// importDeck parses one deck file and inserts its new cards under source.
func importDeck(db *storage.DB, syncer *sync.Syncer, path, source string) (int, error) {
	cards, err := parser.ParseFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if source == "" {
		source = path
	}
	sourceID, err := syncer.AddSource(source)
	if err != nil {
		return 0, fmt.Errorf("failed to register source %s: %w", source, err)
	}

	var inserted int
	for _, card := range cards {
		card.Hash = knol.Hash(card)
		existing, err := db.FindCardByHash(card.Hash)
		if err != nil {
			return inserted, err
		}
		if existing != nil {
			continue
		}
		if err := db.InsertCard(card, sourceID); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

func serveHTTP(ctx context.Context, cfg config.Config, db *storage.DB, svc *study.Service, syncer *sync.Syncer, logger *slog.Logger) error {
	server, err := web.NewServer(db, svc, syncer, logger)
	if err != nil {
		return err
	}

	scheduler := jobs.New(syncer, cfg.SyncInterval, logger)
	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	defer scheduler.Stop()

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("web server listening", "addr", cfg.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}
