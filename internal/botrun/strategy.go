package botrun

import "math/rand"

// Strategy picks guesses and learns from the distance each one scored.
type Strategy interface {
	// Range narrows guesses to the contest's inclusive range.
	Range(minValue, maxValue int)
	// Next returns the guess for the coming round.
	Next() int
	// Observe reports how far the last guess was from the secret value.
	Observe(guess, distance int)
}

// NewStrategy returns the strategy called name, falling back to bisect.
func NewStrategy(name string, rng *rand.Rand, minValue, maxValue int) Strategy {
	if name == StrategyRandom {
		return &randomStrategy{rng: rng, lo: minValue, hi: maxValue}
	}
	return &bisectStrategy{lo: minValue, hi: maxValue}
}

// bisectStrategy uses the distance of each guess. A distance d from guess g
// leaves at most two candidates, g-d and g+d, so it needs at most three rounds.
type bisectStrategy struct {
	lo, hi     int
	candidates []int
	solved     bool
	target     int
}

func (s *bisectStrategy) Range(minValue, maxValue int) {
	s.lo, s.hi = minValue, maxValue
}

func (s *bisectStrategy) Next() int {
	switch {
	case s.solved:
		return s.target
	case len(s.candidates) > 0:
		return s.candidates[0]
	default:
		return s.lo + (s.hi-s.lo)/2
	}
}

func (s *bisectStrategy) Observe(guess, distance int) {
	if distance == 0 {
		s.solved, s.target = true, guess
		return
	}

	var next []int
	for _, c := range []int{guess - distance, guess + distance} {
		if c < s.lo || c > s.hi {
			continue
		}
		if len(s.candidates) > 0 && !contains(s.candidates, c) {
			continue
		}
		next = append(next, c)
	}
	s.candidates = next
	if len(next) == 1 {
		s.solved, s.target = true, next[0]
	}
}

func contains(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

type randomStrategy struct {
	rng    *rand.Rand
	lo, hi int
}

func (s *randomStrategy) Range(minValue, maxValue int) {
	s.lo, s.hi = minValue, maxValue
}

func (s *randomStrategy) Next() int {
	if s.hi <= s.lo {
		return s.lo
	}
	return s.lo + s.rng.Intn(s.hi-s.lo+1)
}

func (s *randomStrategy) Observe(int, int) {}
