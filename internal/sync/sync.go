package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/conorfennell/tango/internal/gitsource"
	"github.com/conorfennell/tango/internal/knol"
	"github.com/conorfennell/tango/internal/parser"
	"github.com/conorfennell/tango/internal/storage"
	"github.com/spf13/afero"
)

// Source types stored in the sources table.
const (
	TypeLocal = "local"
	TypeGit   = "git"
)

// Syncer reconciles card sources into the database.
type Syncer struct {
	DB       *storage.DB
	FS       afero.Fs
	ReposDir string
	Logger   *slog.Logger

	// GitSync fetches a git source into a local path; defaults to gitsource.Sync.
	GitSync func(ctx context.Context, url, localPath string, logger *slog.Logger) error
	Now     func() time.Time
}

// New returns a Syncer working on the real filesystem.
func New(db *storage.DB, reposDir string, logger *slog.Logger) *Syncer {
	return &Syncer{
		DB:       db,
		FS:       afero.NewOsFs(),
		ReposDir: reposDir,
		Logger:   logger,
		GitSync:  gitsource.Sync,
		Now:      time.Now,
	}
}

// SourceType classifies a path as a git URL or a local directory.
func SourceType(path string) string {
	if strings.HasSuffix(path, ".git") || strings.HasPrefix(path, "git@") || strings.HasPrefix(path, "https://") {
		return TypeGit
	}
	return TypeLocal
}

// AddSource registers a new source and returns its ID. Adding a path that is
// already registered returns the existing ID.
func (s *Syncer) AddSource(path string) (int64, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return 0, errors.New("source path cannot be empty")
	}
	existing, err := s.DB.FindSourceByPath(path)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return existing.ID, nil
	}
	return s.DB.InsertSource(path, SourceType(path))
}

// RunSync iterates over all sources and reconciles them. A failing source is
// logged and skipped; the returned error joins every such failure.
func (s *Syncer) RunSync(ctx context.Context) error {
	s.Logger.Info("starting sync process for all sources")
	sources, err := s.DB.GetAllSources()
	if err != nil {
		return fmt.Errorf("failed to get sources: %w", err)
	}

	if len(sources) == 0 {
		s.Logger.Info("no sources configured, add one with --add-source <path/or/url.git>")
		return nil
	}

	var errs []error
	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.Logger.Info("syncing source", "id", source.ID, "type", source.Type, "path", source.Path)

		root := source.Path
		if source.Type == TypeGit {
			localRepoPath, err := gitURLToLocalPath(s.ReposDir, source.Path)
			if err != nil {
				s.Logger.Error("error determining local path for git repo", "url", source.Path, "error", err)
				errs = append(errs, err)
				continue
			}
			if err := s.FS.MkdirAll(filepath.Dir(localRepoPath), os.ModePerm); err != nil {
				errs = append(errs, fmt.Errorf("failed to create repos directory: %w", err))
				continue
			}
			if err := s.GitSync(ctx, source.Path, localRepoPath, s.Logger); err != nil {
				s.Logger.Error("error syncing git repo", "url", source.Path, "error", err)
				errs = append(errs, err)
				continue
			}
			root = localRepoPath
		}

		if err := s.reconcile(source, root); err != nil {
			s.Logger.Error("error reconciling source", "path", root, "error", err)
			errs = append(errs, err)
		}
	}
	s.Logger.Info("sync process complete", "failed_sources", len(errs))
	return errors.Join(errs...)
}

func (s *Syncer) reconcile(source storage.Source, root string) error {
	var parsedCards, insertedCards int
	var parseErrors, fileErrors []error
	found := make(map[string]bool)

	walkErr := afero.Walk(s.FS, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !parser.IsDeckFile(info.Name()) {
			return nil
		}

		f, err := s.FS.Open(path)
		if err != nil {
			fileErrors = append(fileErrors, fmt.Errorf("opening %s: %w", path, err))
			return nil
		}
		fileCards, parseErr := parser.ParseDeck(path, f)
		f.Close()
		if parseErr != nil {
			fileErrors = append(fileErrors, fmt.Errorf("parsing %s: %w", path, parseErr))
		}

		for _, card := range fileCards {
			card.Hash = knol.Hash(card)
			parsedCards++
			if found[card.Hash] {
				continue
			}
			found[card.Hash] = true

			existing, findErr := s.DB.FindCardByHash(card.Hash)
			if findErr != nil {
				parseErrors = append(parseErrors, fmt.Errorf("db check for %s: %w", card.Hash, findErr))
				continue
			}
			if existing == nil {
				s.Logger.Debug("new card found, inserting", "hash", card.Hash, "word", card.Word)
				if insertErr := s.DB.InsertCard(card, source.ID); insertErr != nil {
					parseErrors = append(parseErrors, fmt.Errorf("db insert for %s: %w", card.Hash, insertErr))
					continue
				}
				insertedCards++
			}
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("error walking directory %s: %w", root, walkErr)
	}

	for _, e := range parseErrors {
		s.Logger.Warn("card import problem", "source_id", source.ID, "error", e)
	}

	// Cards of an unreadable file are missing from found; deleting them would
	// cascade to their schedules and review logs.
	if len(fileErrors) > 0 {
		for _, e := range fileErrors {
			s.Logger.Warn("deck file problem", "source_id", source.ID, "error", e)
		}
		s.Logger.Warn("skipping orphan deletion", "path", root, "failed_files", len(fileErrors), "inserted", insertedCards)
		return fmt.Errorf("source %s has unreadable deck files: %w", root, errors.Join(fileErrors...))
	}

	dbCards, err := s.DB.GetCardsBySourceID(source.ID)
	if err != nil {
		return fmt.Errorf("error getting cards for source %d: %w", source.ID, err)
	}

	var orphanedCards int
	for _, dbCard := range dbCards {
		if found[dbCard.Hash] {
			continue
		}
		s.Logger.Info("orphaned card, deleting", "hash", dbCard.Hash, "word", dbCard.Word)
		orphanedCards++
		if err := s.DB.DeleteCardByHash(dbCard.Hash); err != nil {
			s.Logger.Warn("failed to delete orphaned card", "hash", dbCard.Hash, "error", err)
		}
	}

	if err := s.DB.UpdateSourceLastScanned(source.ID, s.Now()); err != nil {
		s.Logger.Warn("failed to update last scanned for source", "source_id", source.ID, "error", err)
	}

	s.Logger.Info("reconciliation complete",
		"path", root,
		"parsed_cards", parsedCards,
		"inserted", insertedCards,
		"orphaned_deleted", orphanedCards,
		"errors", len(parseErrors),
	)
	return nil
}

// gitURLToLocalPath maps a repo URL to baseDir/<host>/<path>. Paths that
// would resolve outside baseDir are rejected.
func gitURLToLocalPath(baseDir, repoURL string) (string, error) {
	p, err := repoLocalPath(baseDir, repoURL)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(filepath.Clean(baseDir), p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("git URL %s resolves outside %s", repoURL, baseDir)
	}
	return p, nil
}

func repoLocalPath(baseDir, repoURL string) (string, error) {
	parsedURL, err := url.Parse(repoURL)
	if err != nil || (parsedURL.Scheme != "https" && parsedURL.Scheme != "http") {
		// scp-like syntax: git@github.com:user/repo.git
		if strings.Contains(repoURL, "@") {
			parts := strings.SplitN(repoURL, ":", 2)
			if len(parts) == 2 {
				hostAndUser := strings.Split(parts[0], "@")
				if len(hostAndUser) == 2 && hostAndUser[1] != "" && parts[1] != "" {
					repoPath := strings.TrimSuffix(parts[1], ".git")
					return filepath.Join(baseDir, hostAndUser[1], repoPath), nil
				}
			}
		}
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}

	sanitizedPath := strings.TrimSuffix(parsedURL.Path, ".git")
	return filepath.Join(baseDir, parsedURL.Host, sanitizedPath), nil
}
