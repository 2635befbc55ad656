package srs

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config holds the tunable constants of the review scheduler.
type Config struct {
	EaseFactorIncrease float64 `koanf:"ease-increase" validate:"gte=0"`
	EaseFactorDecrease float64 `koanf:"ease-decrease" validate:"gte=0"`
	MinEaseFactor      float64 `koanf:"min-ease" validate:"gt=0"`
	MaxEaseFactor      float64 `koanf:"max-ease" validate:"gtefield=MinEaseFactor"`
	StartingEaseFactor float64 `koanf:"starting-ease" validate:"gtefield=MinEaseFactor,ltefield=MaxEaseFactor"`

	// GradedIntervals is indexed by the repetition count. Entry 0 is the
	// interval a card restarts at after a lapse.
	GradedIntervals    []int `koanf:"graded-intervals" validate:"min=1,dive,min=1"`
	UseGradedIntervals bool  `koanf:"use-graded-intervals"`
	MaxInterval        int   `koanf:"max-interval" validate:"min=1"`

	// PassGrade is the lowest grade on the 0-5 scale counted as correct.
	PassGrade int `koanf:"pass-grade" validate:"min=0,max=5"`
}

// DefaultConfig returns the scheduler defaults.
func DefaultConfig() Config {
	return Config{
		EaseFactorIncrease: 0.1,
		EaseFactorDecrease: 0.15,
		MinEaseFactor:      1.3,
		MaxEaseFactor:      3.0,
		StartingEaseFactor: 2.5,
		GradedIntervals:    []int{1, 1, 3, 7, 14, 30, 90},
		UseGradedIntervals: true,
		MaxInterval:        180,
		PassGrade:          3,
	}
}

// Validate reports the first field that is out of range.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("invalid scheduler config: %s failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value())
	}
	return fmt.Errorf("invalid scheduler config: %w", err)
}

// restartInterval is the interval a card falls back to after a lapse.
func (c Config) restartInterval() int {
	if len(c.GradedIntervals) == 0 {
		return 1
	}
	return c.clampInterval(c.GradedIntervals[0])
}

func (c Config) clampInterval(days int) int {
	if c.MaxInterval > 0 && days > c.MaxInterval {
		days = c.MaxInterval
	}
	if days < 1 {
		days = 1
	}
	return days
}
