// Package study drives reviews: it loads a card's schedule, runs it through
// the scheduler and persists the result.
package study

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/conorfennell/tango/internal/domain"
	"github.com/conorfennell/tango/internal/srs"
	"github.com/conorfennell/tango/internal/storage"
)

// ErrUnknownCard is returned when a review names a card that does not exist.
var ErrUnknownCard = errors.New("unknown card")

// Store is the persistence the service needs. *storage.DB satisfies it.
type Store interface {
	FindCardByHash(hash string) (*storage.Card, error)
	FindSchedule(hash string) (*srs.State, error)
	SaveReview(state srs.State, log domain.ReviewLog) error
	ListStudyCards() ([]storage.StudyCard, error)
}

// Service records reviews and builds the due queue.
type Service struct {
	store  Store
	cfg    srs.Config
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger used for review events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service using cfg for every review.
func NewService(store Store, cfg srs.Config, opts ...Option) *Service {
	s := &Service{
		store:  store,
		cfg:    cfg,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the scheduler configuration in use.
func (s *Service) Config() srs.Config {
	return s.cfg
}

// Review records a correct or incorrect answer for the card with the given hash.
func (s *Service) Review(ctx context.Context, hash string, correct bool) (srs.State, error) {
	return s.review(ctx, hash, correct, func(prev srs.State, now time.Time) srs.State {
		return srs.RecordReview(prev, correct, now, s.cfg)
	})
}

// ReviewGrade records an answer graded on the 0-5 scale.
func (s *Service) ReviewGrade(ctx context.Context, hash string, grade srs.Grade) (srs.State, error) {
	correct := int(grade) >= s.cfg.PassGrade
	return s.review(ctx, hash, correct, func(prev srs.State, now time.Time) srs.State {
		return srs.RecordGrade(prev, grade, now, s.cfg)
	})
}

func (s *Service) review(ctx context.Context, hash string, correct bool, apply func(srs.State, time.Time) srs.State) (srs.State, error) {
	if err := ctx.Err(); err != nil {
		return srs.State{}, err
	}

	card, err := s.findCard(hash)
	if err != nil {
		return srs.State{}, err
	}

	current, err := s.currentState(hash)
	if err != nil {
		return srs.State{}, err
	}

	now := s.now()
	next := apply(current, now)

	log := domain.NewReviewLog(hash, now, correct)
	log.IntervalDays = next.IntervalDays
	log.EaseFactor = next.EaseFactor
	if err := s.store.SaveReview(next, log); err != nil {
		return srs.State{}, fmt.Errorf("failed to save review for %s: %w", hash, err)
	}

	s.logger.Info("review recorded",
		"card", hash,
		"word", card.Word,
		"correct", correct,
		"interval_days", next.IntervalDays,
		"ease", next.EaseFactor,
		"streak", next.Streak,
	)
	return next, nil
}

// DueCards returns cards due for review. Never reviewed cards come first,
// then harder cards (lower ease), then the longest overdue. A limit of zero
// or less returns every due card.
func (s *Service) DueCards(ctx context.Context, limit int) ([]storage.StudyCard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cards, err := s.store.ListStudyCards()
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}

	now := s.now()
	var due []storage.StudyCard
	for _, c := range cards {
		if srs.IsDue(s.stateOf(c), now) {
			due = append(due, c)
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		a, b := due[i].Schedule, due[j].Schedule
		if (a == nil) != (b == nil) {
			return a == nil
		}
		if a == nil {
			return false
		}
		if a.EaseFactor != b.EaseFactor {
			return a.EaseFactor < b.EaseFactor
		}
		return a.NextReviewAt.Before(b.NextReviewAt)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// NextDue returns the first card of the due queue, or nil when nothing is due.
func (s *Service) NextDue(ctx context.Context) (*storage.StudyCard, error) {
	due, err := s.DueCards(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(due) == 0 {
		return nil, nil
	}
	return &due[0], nil
}

// Stats summarises the collection.
type Stats struct {
	Total     int
	Due       int
	New       int
	Favorites int
}

// Stats counts all, due, never reviewed and favorite cards.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	cards, err := s.store.ListStudyCards()
	if err != nil {
		return Stats{}, fmt.Errorf("failed to list cards: %w", err)
	}

	now := s.now()
	st := Stats{Total: len(cards)}
	for _, c := range cards {
		if c.Schedule == nil {
			st.New++
		}
		if c.Favorite {
			st.Favorites++
		}
		if srs.IsDue(s.stateOf(c), now) {
			st.Due++
		}
	}
	return st, nil
}

func (s *Service) stateOf(c storage.StudyCard) srs.State {
	if c.Schedule == nil {
		return srs.NewState(c.Hash)
	}
	return *c.Schedule
}

// Preview is what a card's schedule would become for each answer.
type Preview struct {
	Current   srs.State
	Correct   srs.State
	Incorrect srs.State
}

// Preview computes both possible outcomes of reviewing a card now without
// storing anything.
func (s *Service) Preview(ctx context.Context, hash string) (Preview, error) {
	if err := ctx.Err(); err != nil {
		return Preview{}, err
	}
	if _, err := s.findCard(hash); err != nil {
		return Preview{}, err
	}
	current, err := s.currentState(hash)
	if err != nil {
		return Preview{}, err
	}
	now := s.now()
	return Preview{
		Current:   current,
		Correct:   srs.RecordReview(current, true, now, s.cfg),
		Incorrect: srs.RecordReview(current, false, now, s.cfg),
	}, nil
}

func (s *Service) findCard(hash string) (*storage.Card, error) {
	card, err := s.store.FindCardByHash(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to load card %s: %w", hash, err)
	}
	if card == nil {
		return nil, fmt.Errorf("card %s: %w", hash, ErrUnknownCard)
	}
	return card, nil
}

// currentState loads the stored schedule, or the default one for a card
// that has never been reviewed.
func (s *Service) currentState(hash string) (srs.State, error) {
	prev, err := s.store.FindSchedule(hash)
	if err != nil {
		return srs.State{}, fmt.Errorf("failed to load schedule for %s: %w", hash, err)
	}
	if prev != nil {
		return *prev, nil
	}
	state := srs.NewState(hash)
	state.EaseFactor = s.cfg.StartingEaseFactor
	return state, nil
}
