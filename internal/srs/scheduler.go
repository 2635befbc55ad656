// Package srs implements a SuperMemo-2 style review scheduler: given a card's
// scheduling state and the outcome of a review, it computes the next interval,
// ease factor and due date. Everything here is pure; callers own storage.
package srs

import (
	"math"
	"time"
)

// Grade is an answer on the SM-2 0-5 quality scale.
type Grade int

const (
	GradeBlackout          Grade = 0 // no recall at all
	GradeIncorrect         Grade = 1 // wrong, remembered on seeing the answer
	GradeIncorrectFamiliar Grade = 2 // wrong, but the answer felt familiar
	GradeCorrectDifficult  Grade = 3 // right with serious effort
	GradeCorrectHesitation Grade = 4 // right after a hesitation
	GradePerfect           Grade = 5
)

// RecordReview applies one review outcome to state and returns the new state.
// The input is never modified.
func RecordReview(state State, isCorrect bool, now time.Time, cfg Config) State {
	next := Normalize(state, cfg)
	next.TotalReviews++

	if isCorrect {
		next.Repetitions++
		next.Streak++
		next.EaseFactor = clampEase(next.EaseFactor+cfg.EaseFactorIncrease, cfg)
		next.IntervalDays = nextInterval(next.IntervalDays, next.Repetitions, next.EaseFactor, cfg)
	} else {
		next.Repetitions = 0
		next.Streak = 0
		next.EaseFactor = clampEase(next.EaseFactor-cfg.EaseFactorDecrease, cfg)
		next.IntervalDays = cfg.restartInterval()
	}

	next.LastReviewedAt = now
	// Calendar days, not multiples of 24h.
	next.NextReviewAt = now.AddDate(0, 0, next.IntervalDays)
	return next
}

// RecordGrade records a review graded on the 0-5 scale. Grades at or above
// cfg.PassGrade count as correct; out of range grades are clamped.
func RecordGrade(state State, grade Grade, now time.Time, cfg Config) State {
	if grade < GradeBlackout {
		grade = GradeBlackout
	}
	if grade > GradePerfect {
		grade = GradePerfect
	}
	return RecordReview(state, int(grade) >= cfg.PassGrade, now, cfg)
}

// nextInterval picks the interval after a correct answer. While repetitions
// indexes the graded table the table entry wins, afterwards the previous
// interval grows by the ease factor.
func nextInterval(prev, repetitions int, ease float64, cfg Config) int {
	if cfg.UseGradedIntervals && repetitions < len(cfg.GradedIntervals) {
		return cfg.clampInterval(cfg.GradedIntervals[repetitions])
	}
	grown := math.Round(float64(prev) * ease)
	if cfg.MaxInterval > 0 && grown > float64(cfg.MaxInterval) {
		return cfg.MaxInterval
	}
	return cfg.clampInterval(int(grown))
}

// IsDue reports whether the card should be reviewed at now. A card that has
// never been reviewed is always due.
func IsDue(state State, now time.Time) bool {
	if !state.Reviewed() {
		return true
	}
	return !now.Before(state.NextReviewAt)
}
