package srs

import (
	"math"
	"time"
)

// State is the scheduling state of one card for one learner.
// The zero LastReviewedAt means the card has never been reviewed.
type State struct {
	CardID         string
	IntervalDays   int
	Repetitions    int
	EaseFactor     float64
	Streak         int
	TotalReviews   int
	LastReviewedAt time.Time
	NextReviewAt   time.Time
}

// NewState returns the default state of a card that has never been reviewed.
func NewState(cardID string) State {
	return State{
		CardID:       cardID,
		IntervalDays: 1,
		EaseFactor:   DefaultConfig().StartingEaseFactor,
	}
}

// Reviewed reports whether the state has recorded at least one review.
func (s State) Reviewed() bool {
	return !s.LastReviewedAt.IsZero()
}

// Normalize repairs a state loaded from untrusted storage. Ease is clamped
// into the configured bounds, NaN or infinite ease becomes the starting ease,
// the interval is kept within one day and MaxInterval, and negative counters
// become zero.
func Normalize(s State, cfg Config) State {
	if math.IsNaN(s.EaseFactor) || math.IsInf(s.EaseFactor, 0) {
		s.EaseFactor = cfg.StartingEaseFactor
	}
	s.EaseFactor = clampEase(s.EaseFactor, cfg)
	s.IntervalDays = cfg.clampInterval(s.IntervalDays)
	if s.Repetitions < 0 {
		s.Repetitions = 0
	}
	if s.Streak < 0 {
		s.Streak = 0
	}
	if s.TotalReviews < 0 {
		s.TotalReviews = 0
	}
	return s
}

func clampEase(ease float64, cfg Config) float64 {
	return math.Max(cfg.MinEaseFactor, math.Min(cfg.MaxEaseFactor, ease))
}
