package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/tango/internal/domain"
	"github.com/conorfennell/tango/internal/srs"
)

// scheduleRow is the persisted shape of an srs.State.
type scheduleRow struct {
	CardHash       string       `db:"card_hash"`
	IntervalDays   int          `db:"interval_days"`
	Repetitions    int          `db:"repetitions"`
	EaseFactor     float64      `db:"ease_factor"`
	Streak         int          `db:"streak"`
	TotalReviews   int          `db:"total_reviews"`
	LastReviewedAt sql.NullTime `db:"last_reviewed_at"`
	NextReviewAt   sql.NullTime `db:"next_review_at"`
}

const scheduleColumns = `card_hash, interval_days, repetitions, ease_factor, streak, total_reviews, last_reviewed_at, next_review_at`

func newScheduleRow(s srs.State) scheduleRow {
	return scheduleRow{
		CardHash:       s.CardID,
		IntervalDays:   s.IntervalDays,
		Repetitions:    s.Repetitions,
		EaseFactor:     s.EaseFactor,
		Streak:         s.Streak,
		TotalReviews:   s.TotalReviews,
		LastReviewedAt: nullTime(s.LastReviewedAt),
		NextReviewAt:   nullTime(s.NextReviewAt),
	}
}

func (r scheduleRow) state() srs.State {
	return srs.State{
		CardID:         r.CardHash,
		IntervalDays:   r.IntervalDays,
		Repetitions:    r.Repetitions,
		EaseFactor:     r.EaseFactor,
		Streak:         r.Streak,
		TotalReviews:   r.TotalReviews,
		LastReviewedAt: r.LastReviewedAt.Time,
		NextReviewAt:   r.NextReviewAt.Time,
	}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// FindSchedule returns the stored schedule of a card, or nil if the card
// has never been reviewed.
func (db *DB) FindSchedule(hash string) (*srs.State, error) {
	var row scheduleRow
	err := db.conn.Get(&row, `SELECT `+scheduleColumns+` FROM schedules WHERE card_hash = ?`, hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find schedule for %s: %w", hash, err)
	}
	state := row.state()
	return &state, nil
}

// SaveReview stores the new schedule of a card and appends the review log
// in a single transaction. Concurrent writers resolve as last write wins.
func (db *DB) SaveReview(state srs.State, log domain.ReviewLog) error {
	row := newScheduleRow(state)

	tx, err := db.conn.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO schedules (`+scheduleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(card_hash) DO UPDATE SET
			interval_days = excluded.interval_days,
			repetitions = excluded.repetitions,
			ease_factor = excluded.ease_factor,
			streak = excluded.streak,
			total_reviews = excluded.total_reviews,
			last_reviewed_at = excluded.last_reviewed_at,
			next_review_at = excluded.next_review_at
	`,
		row.CardHash,
		row.IntervalDays,
		row.Repetitions,
		row.EaseFactor,
		row.Streak,
		row.TotalReviews,
		row.LastReviewedAt,
		row.NextReviewAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save schedule for %s: %w", state.CardID, err)
	}

	_, err = tx.Exec(`
		INSERT INTO review_logs (id, card_hash, reviewed_at, correct, interval_days, ease_factor)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		log.ID,
		log.CardHash,
		log.ReviewedAt.UTC(),
		log.Correct,
		log.IntervalDays,
		log.EaseFactor,
	)
	if err != nil {
		return fmt.Errorf("failed to insert review log for %s: %w", log.CardHash, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit review for %s: %w", state.CardID, err)
	}
	return nil
}

type reviewLogRow struct {
	ID           string    `db:"id"`
	CardHash     string    `db:"card_hash"`
	ReviewedAt   time.Time `db:"reviewed_at"`
	Correct      bool      `db:"correct"`
	IntervalDays int       `db:"interval_days"`
	EaseFactor   float64   `db:"ease_factor"`
}

// ReviewLogs returns the review history of a card, newest first.
func (db *DB) ReviewLogs(hash string) ([]domain.ReviewLog, error) {
	var rows []reviewLogRow
	err := db.conn.Select(&rows, `
		SELECT id, card_hash, reviewed_at, correct, interval_days, ease_factor
		FROM review_logs WHERE card_hash = ?
		ORDER BY reviewed_at DESC, rowid DESC
	`, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get review logs for %s: %w", hash, err)
	}

	logs := make([]domain.ReviewLog, 0, len(rows))
	for _, r := range rows {
		logs = append(logs, domain.ReviewLog(r))
	}
	return logs, nil
}

// StudyCard is a card together with its schedule. Schedule is nil for a card
// that has never been reviewed.
type StudyCard struct {
	Card
	Schedule *srs.State
}

// ListStudyCards returns every card with its schedule, if any.
func (db *DB) ListStudyCards() ([]StudyCard, error) {
	var cards []Card
	if err := db.conn.Select(&cards, `SELECT `+cardColumns+` FROM cards ORDER BY word`); err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}

	var rows []scheduleRow
	if err := db.conn.Select(&rows, `SELECT `+scheduleColumns+` FROM schedules`); err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	byHash := make(map[string]srs.State, len(rows))
	for _, r := range rows {
		byHash[r.CardHash] = r.state()
	}

	out := make([]StudyCard, 0, len(cards))
	for _, c := range cards {
		sc := StudyCard{Card: c}
		if s, ok := byHash[c.Hash]; ok {
			sc.Schedule = &s
		}
		out = append(out, sc)
	}
	return out, nil
}
