package srs

import (
	"fmt"
	"math"
)

// IntervalLabel renders a day count in the largest fitting unit, e.g.
// "3 days", "2 weeks", "4 months", "1 year".
func IntervalLabel(days int) string {
	if days < 0 {
		days = 0
	}
	switch {
	case days < 7:
		return unit(days, "day")
	case days < 30:
		return unit(roundDiv(days, 7), "week")
	case days < 365:
		return unit(roundDiv(days, 30), "month")
	default:
		return unit(roundDiv(days, 365), "year")
	}
}

func roundDiv(n, d int) int {
	return int(math.Round(float64(n) / float64(d)))
}

func unit(n int, name string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", name)
	}
	return fmt.Sprintf("%d %ss", n, name)
}
