package room

import "time"

// Scoring is the answer scoring policy.
type Scoring struct {
	BasePoints int
	SpeedBonus int
	Budget     time.Duration
}

// Points returns the score for one answer. A correct answer earns
// BasePoints plus SpeedBonus scaled by the fraction of the budget left;
// a wrong answer earns nothing.
func (s Scoring) Points(correct bool, elapsed time.Duration) int {
	if !correct {
		return 0
	}
	if s.Budget <= 0 || s.SpeedBonus <= 0 {
		return s.BasePoints
	}

	remaining := s.Budget - elapsed
	if remaining < 0 {
		remaining = 0
	}
	if remaining > s.Budget {
		remaining = s.Budget
	}
	return s.BasePoints + int(int64(s.SpeedBonus)*int64(remaining)/int64(s.Budget))
}
