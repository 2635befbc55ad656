package domain

import (
	"time"

	"github.com/google/uuid"
)

// Card is a single vocabulary entry.
type Card struct {
	Word    string // 猫
	Reading string // ねこ
	Meaning string // cat
	Example string
	Hash    string
}

// ReviewLog records a single answered review of a card.
type ReviewLog struct {
	ID           string
	CardHash     string
	ReviewedAt   time.Time
	Correct      bool
	IntervalDays int
	EaseFactor   float64
}

// NewReviewLog returns a log entry with a fresh random ID.
func NewReviewLog(cardHash string, reviewedAt time.Time, correct bool) ReviewLog {
	return ReviewLog{
		ID:         uuid.NewString(),
		CardHash:   cardHash,
		ReviewedAt: reviewedAt,
		Correct:    correct,
	}
}
