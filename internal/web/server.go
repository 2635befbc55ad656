package web

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/conorfennell/tango/internal/srs"
	"github.com/conorfennell/tango/internal/storage"
	"github.com/conorfennell/tango/internal/study"
	"github.com/conorfennell/tango/internal/sync"
	"github.com/dustin/go-humanize"
)

//go:embed all:static
var staticFiles embed.FS

//go:embed all:templates
var templateFiles embed.FS

var funcs = template.FuncMap{
	"interval": srs.IntervalLabel,
	"ago":      func(t time.Time) string { return humanize.Time(t) },
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	db        *storage.DB
	study     *study.Service
	syncer    *sync.Syncer
	router    *http.ServeMux
	templates *template.Template
	logger    *slog.Logger
}

// NewServer creates and configures a new server.
func NewServer(db *storage.DB, svc *study.Service, syncer *sync.Syncer, logger *slog.Logger) (*Server, error) {
	tpl, err := template.New("").Funcs(funcs).ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		db:        db,
		study:     svc,
		syncer:    syncer,
		router:    http.NewServeMux(),
		templates: tpl,
		logger:    logger,
	}
	if err := s.routes(); err != nil {
		return nil, err
	}
	return s, nil
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() error {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return fmt.Errorf("failed to create sub-filesystem for static assets: %w", err)
	}
	fileServer := http.FileServer(http.FS(staticFS))

	s.router.Handle("/static/", http.StripPrefix("/static/", fileServer))
	s.router.Handle("/", fileServer)

	// HTMX-based routes
	s.router.HandleFunc("/deck", s.handleGetDeck())
	s.router.HandleFunc("/review/next", s.handleGetNextReview())
	s.router.HandleFunc("/review/answer/", s.handleShowAnswer())
	s.router.HandleFunc("/review/", s.handlePostReview())
	s.router.HandleFunc("/favorites", s.handleGetFavorites())
	s.router.HandleFunc("/favorites/", s.handleToggleFavorite())

	// Source management routes
	s.router.HandleFunc("/sources", s.handleSources())
	s.router.HandleFunc("/sources/", s.handleDeleteSource())
	s.router.HandleFunc("/sync", s.handlePostSync())
	return nil
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("failed to render template", "template", name, "error", err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, msg string, err error) {
	s.logger.Error(msg, "error", err)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

// handlePostSync triggers a manual sync and re-renders the source list.
func (s *Server) handlePostSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		// Runs in the foreground so the user sees the result.
		syncErr := s.syncer.RunSync(r.Context())

		sources, err := s.db.GetAllSources()
		if err != nil {
			s.internalError(w, "error getting sources after sync", err)
			return
		}

		if syncErr != nil {
			s.render(w, "sync_failed", syncErr.Error())
		} else {
			s.render(w, "sync_success", nil)
		}
		s.render(w, "source_list", map[string]any{"Sources": sources})
	}
}

// handleSources handles both GET and POST for the sources page.
func (s *Server) handleSources() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			s.handleGetSources(w, r)
		case http.MethodPost:
			s.handlePostSource(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// handleGetSources renders the main sources management page.
func (s *Server) handleGetSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.db.GetAllSources()
	if err != nil {
		s.internalError(w, "error getting sources", err)
		return
	}
	s.render(w, "sources", map[string]any{"Sources": sources})
}

// handlePostSource adds a new source and re-renders the source list.
func (s *Server) handlePostSource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSpace(r.PostFormValue("path"))
	if path == "" {
		http.Error(w, "Path cannot be empty", http.StatusBadRequest)
		return
	}

	if _, err := s.syncer.AddSource(path); err != nil {
		s.internalError(w, "error inserting new source", err)
		return
	}

	sources, err := s.db.GetAllSources()
	if err != nil {
		s.internalError(w, "error getting sources after add", err)
		return
	}
	s.render(w, "source_list", map[string]any{"Sources": sources})
}

// handleDeleteSource deletes a source and re-renders the source list.
func (s *Server) handleDeleteSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		idStr := strings.TrimPrefix(r.URL.Path, "/sources/")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			http.Error(w, "Invalid source ID", http.StatusBadRequest)
			return
		}

		if err := s.db.DeleteSource(id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			s.internalError(w, "error deleting source", err)
			return
		}

		sources, err := s.db.GetAllSources()
		if err != nil {
			s.internalError(w, "error getting sources after delete", err)
			return
		}
		s.render(w, "source_list", map[string]any{"Sources": sources})
	}
}

// handleGetDeck renders the deck view, showing the number of due cards.
func (s *Server) handleGetDeck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := s.study.Stats(r.Context())
		if err != nil {
			s.internalError(w, "error getting stats for deck view", err)
			return
		}
		s.render(w, "deck", deckData(stats))
	}
}

func deckData(stats study.Stats) map[string]any {
	return map[string]any{
		"DueCount":    stats.Due,
		"Total":       stats.Total,
		"HasDueCards": stats.Due > 0,
	}
}

// handleGetNextReview renders the front of the next due card.
func (s *Server) handleGetNextReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		next, err := s.study.NextDue(r.Context())
		if err != nil {
			s.internalError(w, "error getting next due card", err)
			return
		}
		if next == nil {
			stats, err := s.study.Stats(r.Context())
			if err != nil {
				s.internalError(w, "error getting stats", err)
				return
			}
			s.render(w, "deck", deckData(stats))
			return
		}
		s.render(w, "card_front", next)
	}
}

// handleShowAnswer renders the back of a card with the interval each answer would give.
func (s *Server) handleShowAnswer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hash := strings.TrimPrefix(r.URL.Path, "/review/answer/")
		card, err := s.db.FindCardByHash(hash)
		if err != nil {
			s.internalError(w, "error finding card", err)
			return
		}
		if card == nil {
			http.NotFound(w, r)
			return
		}
		preview, err := s.study.Preview(r.Context(), hash)
		if err != nil {
			s.internalError(w, "error previewing card", err)
			return
		}
		s.render(w, "card_back", map[string]any{
			"Card":    card,
			"Preview": preview,
		})
	}
}

// handlePostReview records an answer and renders the next card. The form
// carries either correct=true|false or a 0-5 grade.
func (s *Server) handlePostReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		hash := strings.TrimPrefix(r.URL.Path, "/review/")

		var err error
		if gradeStr := r.PostFormValue("grade"); gradeStr != "" {
			grade, convErr := strconv.Atoi(gradeStr)
			if convErr != nil || grade < int(srs.GradeBlackout) || grade > int(srs.GradePerfect) {
				http.Error(w, "Invalid grade", http.StatusBadRequest)
				return
			}
			_, err = s.study.ReviewGrade(r.Context(), hash, srs.Grade(grade))
		} else {
			correct, convErr := strconv.ParseBool(r.PostFormValue("correct"))
			if convErr != nil {
				http.Error(w, "Invalid answer", http.StatusBadRequest)
				return
			}
			_, err = s.study.Review(r.Context(), hash, correct)
		}

		if err != nil {
			if errors.Is(err, study.ErrUnknownCard) {
				http.NotFound(w, r)
				return
			}
			s.internalError(w, "error recording review", err)
			return
		}

		s.handleGetNextReview()(w, r)
	}
}

// handleGetFavorites lists favorite cards.
func (s *Server) handleGetFavorites() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cards, err := s.db.GetFavorites()
		if err != nil {
			s.internalError(w, "error getting favorites", err)
			return
		}
		s.render(w, "favorites", map[string]any{"Cards": cards})
	}
}

// handleToggleFavorite flips a card's favorite flag and re-renders its button.
func (s *Server) handleToggleFavorite() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		hash := strings.TrimPrefix(r.URL.Path, "/favorites/")
		favorite, err := s.db.ToggleFavorite(hash)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			s.internalError(w, "error toggling favorite", err)
			return
		}
		s.render(w, "favorite_button", map[string]any{"Hash": hash, "Favorite": favorite})
	}
}
