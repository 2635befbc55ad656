package web

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/conorfennell/tango/internal/domain"
	"github.com/conorfennell/tango/internal/knol"
	"github.com/conorfennell/tango/internal/srs"
	"github.com/conorfennell/tango/internal/storage"
	"github.com/conorfennell/tango/internal/study"
	"github.com/conorfennell/tango/internal/sync"
	"github.com/spf13/afero"
)

type fixture struct {
	server *Server
	db     *storage.DB
	fs     afero.Fs
	hash   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "web.db"))
	if err != nil {
		t.Fatalf("storage.Open() returned an unexpected error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fs := afero.NewMemMapFs()
	syncer := &sync.Syncer{
		DB:       db,
		FS:       fs,
		ReposDir: "/repos",
		Logger:   logger,
		GitSync: func(context.Context, string, string, *slog.Logger) error {
			return nil
		},
		Now: time.Now,
	}

	sourceID, err := db.InsertSource("/decks", sync.TypeLocal)
	if err != nil {
		t.Fatal(err)
	}
	card := domain.Card{Word: "猫", Reading: "ねこ", Meaning: "cat"}
	card.Hash = knol.Hash(card)
	if err := db.InsertCard(card, sourceID); err != nil {
		t.Fatal(err)
	}

	now := time.Date(2026, time.October, 1, 9, 0, 0, 0, time.UTC)
	svc := study.NewService(db, srs.DefaultConfig(), study.WithClock(func() time.Time { return now }), study.WithLogger(logger))

	server, err := NewServer(db, svc, syncer, logger)
	if err != nil {
		t.Fatalf("NewServer() returned an unexpected error: %v", err)
	}
	return &fixture{server: server, db: db, fs: fs, hash: card.Hash}
}

func (f *fixture) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func TestDeckAndReviewFlow(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/deck", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "1 card due") {
		t.Fatalf("Unexpected deck response %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(http.MethodGet, "/review/next", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "猫") {
		t.Fatalf("Expected the due card front, but got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(http.MethodGet, "/review/answer/"+f.hash, nil)
	body := rec.Body.String()
	if rec.Code != http.StatusOK || !strings.Contains(body, "ねこ") || !strings.Contains(body, "1 day") {
		t.Fatalf("Expected the card back with interval labels, but got %d: %s", rec.Code, body)
	}

	rec = f.do(http.MethodPost, "/review/"+f.hash, url.Values{"correct": {"true"}})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Nothing due") {
		t.Fatalf("Expected an empty deck after the review, but got %d: %s", rec.Code, rec.Body.String())
	}

	state, err := f.db.FindSchedule(f.hash)
	if err != nil || state == nil || state.Repetitions != 1 {
		t.Errorf("Expected the review to be stored, but got %+v, %v", state, err)
	}
}

func TestPostReviewWithGrade(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/review/"+f.hash, url.Values{"grade": {"1"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, but got %d: %s", rec.Code, rec.Body.String())
	}
	state, _ := f.db.FindSchedule(f.hash)
	if state == nil || state.TotalReviews != 1 || state.Repetitions != 0 {
		t.Errorf("Expected a failed graded review, but got %+v", state)
	}
}

func TestPostReviewErrors(t *testing.T) {
	f := newFixture(t)

	testCases := []struct {
		name   string
		method string
		target string
		form   url.Values
		want   int
	}{
		{"bad answer", http.MethodPost, "/review/" + f.hash, url.Values{"correct": {"maybe"}}, http.StatusBadRequest},
		{"grade out of range", http.MethodPost, "/review/" + f.hash, url.Values{"grade": {"7"}}, http.StatusBadRequest},
		{"unknown card", http.MethodPost, "/review/missing", url.Values{"correct": {"true"}}, http.StatusNotFound},
		{"wrong method", http.MethodGet, "/review/" + f.hash, nil, http.StatusMethodNotAllowed},
		{"unknown answer card", http.MethodGet, "/review/answer/missing", nil, http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(tc.method, tc.target, tc.form)
			if rec.Code != tc.want {
				t.Errorf("Expected status %d, but got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestToggleFavorite(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/favorites/"+f.hash, url.Values{})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "★") {
		t.Fatalf("Expected a filled star, but got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(http.MethodGet, "/favorites", nil)
	if !strings.Contains(rec.Body.String(), "猫") {
		t.Errorf("Expected favorite list to contain the card, but got %s", rec.Body.String())
	}

	rec = f.do(http.MethodPost, "/favorites/missing", url.Values{})
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for a missing card, but got %d", rec.Code)
	}
}

func TestSourcesAndSync(t *testing.T) {
	f := newFixture(t)
	if err := afero.WriteFile(f.fs, "/more/deck.md", []byte("W: 犬\nM: dog\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(f.fs, "/decks/deck.md", []byte("W: 猫\nR: ねこ\nM: cat\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := f.do(http.MethodPost, "/sources", url.Values{"path": {"/more"}})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "/more") {
		t.Fatalf("Expected the new source to be listed, but got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(http.MethodPost, "/sources", url.Values{"path": {"  "}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for an empty path, but got %d", rec.Code)
	}

	rec = f.do(http.MethodPost, "/sync", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Sync complete") {
		t.Fatalf("Expected a successful sync, but got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(http.MethodGet, "/deck", nil)
	if !strings.Contains(rec.Body.String(), "2 cards due") {
		t.Errorf("Expected both cards due after sync, but got %s", rec.Body.String())
	}

	src, err := f.db.FindSourceByPath("/more")
	if err != nil || src == nil {
		t.Fatalf("FindSourceByPath() = %v, %v", src, err)
	}
	rec = f.do(http.MethodDelete, "/sources/"+strconv.FormatInt(src.ID, 10), nil)
	if rec.Code != http.StatusOK || strings.Contains(rec.Body.String(), "/more") {
		t.Errorf("Expected the source to be removed, but got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(http.MethodDelete, "/sources/abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a bad ID, but got %d", rec.Code)
	}
	rec = f.do(http.MethodDelete, "/sources/999", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for a missing source, but got %d", rec.Code)
	}
}

func TestStaticIndex(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "htmx") {
		t.Errorf("Expected the index page, but got %d", rec.Code)
	}
}
