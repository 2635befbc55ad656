package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/conorfennell/tango/internal/domain"
	"github.com/conorfennell/tango/internal/knol"
	"github.com/conorfennell/tango/internal/srs"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "tango.db"))
	if err != nil {
		t.Fatalf("Open() returned an unexpected error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedCard(t *testing.T, db *DB, word string) (domain.Card, int64) {
	t.Helper()
	sourceID, err := db.InsertSource("decks/"+word, "local")
	if err != nil {
		t.Fatalf("InsertSource() returned an unexpected error: %v", err)
	}
	card := domain.Card{Word: word, Reading: "よみ", Meaning: "meaning of " + word}
	card.Hash = knol.Hash(card)
	if err := db.InsertCard(card, sourceID); err != nil {
		t.Fatalf("InsertCard() returned an unexpected error: %v", err)
	}
	return card, sourceID
}

func TestSources(t *testing.T) {
	db := openTestDB(t)

	id, err := db.InsertSource("/home/me/decks", "local")
	if err != nil {
		t.Fatalf("InsertSource() returned an unexpected error: %v", err)
	}
	if _, err := db.InsertSource("/home/me/decks", "local"); err == nil {
		t.Error("Expected duplicate source path to fail, but it succeeded")
	}

	src, err := db.FindSourceByPath("/home/me/decks")
	if err != nil || src == nil {
		t.Fatalf("FindSourceByPath() = %v, %v", src, err)
	}
	if src.ID != id || src.Type != "local" || src.LastScanned.Valid {
		t.Errorf("Unexpected source: %+v", src)
	}

	missing, err := db.FindSourceByPath("/nowhere")
	if err != nil || missing != nil {
		t.Errorf("Expected nil, nil for a missing source, but got %v, %v", missing, err)
	}

	scanned := time.Date(2026, time.May, 1, 12, 0, 0, 0, time.UTC)
	if err := db.UpdateSourceLastScanned(id, scanned); err != nil {
		t.Fatalf("UpdateSourceLastScanned() returned an unexpected error: %v", err)
	}
	all, err := db.GetAllSources()
	if err != nil {
		t.Fatalf("GetAllSources() returned an unexpected error: %v", err)
	}
	if len(all) != 1 || !all[0].LastScanned.Valid || !all[0].LastScanned.Time.Equal(scanned) {
		t.Errorf("Unexpected sources after scan: %+v", all)
	}

	if err := db.DeleteSource(id); err != nil {
		t.Fatalf("DeleteSource() returned an unexpected error: %v", err)
	}
	if err := db.DeleteSource(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound deleting twice, but got %v", err)
	}
}

func TestCards(t *testing.T) {
	db := openTestDB(t)
	card, sourceID := seedCard(t, db, "猫")

	got, err := db.FindCardByHash(card.Hash)
	if err != nil || got == nil {
		t.Fatalf("FindCardByHash() = %v, %v", got, err)
	}
	if got.Word != "猫" || got.Favorite || !got.SourceID.Valid || got.SourceID.Int64 != sourceID {
		t.Errorf("Unexpected card: %+v", got)
	}

	bySource, err := db.GetCardsBySourceID(sourceID)
	if err != nil || len(bySource) != 1 {
		t.Fatalf("GetCardsBySourceID() = %v, %v", bySource, err)
	}

	if err := db.DeleteCardByHash(card.Hash); err != nil {
		t.Fatalf("DeleteCardByHash() returned an unexpected error: %v", err)
	}
	got, err = db.FindCardByHash(card.Hash)
	if err != nil || got != nil {
		t.Errorf("Expected card to be gone, but got %v, %v", got, err)
	}
}

func TestToggleFavorite(t *testing.T) {
	db := openTestDB(t)
	card, _ := seedCard(t, db, "犬")

	on, err := db.ToggleFavorite(card.Hash)
	if err != nil || !on {
		t.Fatalf("Expected first toggle to set favorite, but got %v, %v", on, err)
	}
	favs, err := db.GetFavorites()
	if err != nil || len(favs) != 1 || favs[0].Hash != card.Hash {
		t.Errorf("Unexpected favorites: %v, %v", favs, err)
	}

	off, err := db.ToggleFavorite(card.Hash)
	if err != nil || off {
		t.Fatalf("Expected second toggle to clear favorite, but got %v, %v", off, err)
	}

	if _, err := db.ToggleFavorite("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for a missing card, but got %v", err)
	}
}

func TestSaveReviewRoundTrip(t *testing.T) {
	db := openTestDB(t)
	card, sourceID := seedCard(t, db, "水")

	none, err := db.FindSchedule(card.Hash)
	if err != nil || none != nil {
		t.Fatalf("Expected no schedule before first review, but got %v, %v", none, err)
	}

	now := time.Date(2026, time.June, 3, 8, 15, 0, 0, time.UTC)
	cfg := srs.DefaultConfig()
	state := srs.RecordReview(srs.NewState(card.Hash), true, now, cfg)

	log := domain.NewReviewLog(card.Hash, now, true)
	log.IntervalDays = state.IntervalDays
	log.EaseFactor = state.EaseFactor
	if err := db.SaveReview(state, log); err != nil {
		t.Fatalf("SaveReview() returned an unexpected error: %v", err)
	}

	second := srs.RecordReview(state, false, now.AddDate(0, 0, 1), cfg)
	log2 := domain.NewReviewLog(card.Hash, second.LastReviewedAt, false)
	if err := db.SaveReview(second, log2); err != nil {
		t.Fatalf("SaveReview() returned an unexpected error: %v", err)
	}

	stored, err := db.FindSchedule(card.Hash)
	if err != nil || stored == nil {
		t.Fatalf("FindSchedule() = %v, %v", stored, err)
	}
	if stored.TotalReviews != 2 || stored.Repetitions != 0 || stored.IntervalDays != 1 {
		t.Errorf("Unexpected stored schedule: %+v", stored)
	}
	if !stored.NextReviewAt.Equal(second.NextReviewAt) || !stored.LastReviewedAt.Equal(second.LastReviewedAt) {
		t.Errorf("Expected timestamps %v/%v, but got %v/%v",
			second.LastReviewedAt, second.NextReviewAt, stored.LastReviewedAt, stored.NextReviewAt)
	}

	logs, err := db.ReviewLogs(card.Hash)
	if err != nil {
		t.Fatalf("ReviewLogs() returned an unexpected error: %v", err)
	}
	if len(logs) != 2 || logs[0].ID != log2.ID || logs[0].Correct || !logs[1].Correct {
		t.Errorf("Unexpected review logs: %+v", logs)
	}

	// Deleting the source removes the card, its schedule and its logs.
	if err := db.DeleteSource(sourceID); err != nil {
		t.Fatalf("DeleteSource() returned an unexpected error: %v", err)
	}
	stored, err = db.FindSchedule(card.Hash)
	if err != nil || stored != nil {
		t.Errorf("Expected schedule to cascade away, but got %v, %v", stored, err)
	}
	logs, err = db.ReviewLogs(card.Hash)
	if err != nil || len(logs) != 0 {
		t.Errorf("Expected logs to cascade away, but got %v, %v", logs, err)
	}
}

func TestListStudyCards(t *testing.T) {
	db := openTestDB(t)
	reviewed, _ := seedCard(t, db, "山")
	fresh, _ := seedCard(t, db, "川")

	now := time.Date(2026, time.July, 1, 10, 0, 0, 0, time.UTC)
	state := srs.RecordReview(srs.NewState(reviewed.Hash), true, now, srs.DefaultConfig())
	if err := db.SaveReview(state, domain.NewReviewLog(reviewed.Hash, now, true)); err != nil {
		t.Fatalf("SaveReview() returned an unexpected error: %v", err)
	}

	cards, err := db.ListStudyCards()
	if err != nil {
		t.Fatalf("ListStudyCards() returned an unexpected error: %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("Expected 2 cards, but got %d", len(cards))
	}
	for _, c := range cards {
		switch c.Hash {
		case reviewed.Hash:
			if c.Schedule == nil || c.Schedule.Repetitions != 1 {
				t.Errorf("Expected reviewed card to carry its schedule, but got %+v", c.Schedule)
			}
		case fresh.Hash:
			if c.Schedule != nil {
				t.Errorf("Expected fresh card without schedule, but got %+v", c.Schedule)
			}
		}
	}
}
