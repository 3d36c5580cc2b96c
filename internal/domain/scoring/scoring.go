// Package scoring maps a guess and the secret value to a score change.
package scoring

import "math"

// PerfectScore is awarded for an exact guess.
const PerfectScore = 100

// Default guessing range (inclusive).
const (
	DefaultMin = 1
	DefaultMax = 100
)

// Policy scores guesses for a fixed inclusive range.
// The zero value is not usable; build one with NewPolicy.
type Policy struct {
	minValue int
	maxValue int
	half     int
}

// NewPolicy creates a policy for [minValue, maxValue].
// Bounds are swapped when given in the wrong order.
func NewPolicy(minValue, maxValue int) Policy {
	if minValue > maxValue {
		minValue, maxValue = maxValue, minValue
	}
	return Policy{
		minValue: minValue,
		maxValue: maxValue,
		half:     (maxValue - minValue + 1) / 2,
	}
}

// Default returns the policy for the 1..100 range.
func Default() Policy { return NewPolicy(DefaultMin, DefaultMax) }

// Min returns the lower bound of the range.
func (p Policy) Min() int { return p.minValue }

// Max returns the upper bound of the range.
func (p Policy) Max() int { return p.maxValue }

// HalfRange returns the break-even distance: guesses farther away lose points.
func (p Policy) HalfRange() int { return p.half }

// Contains reports whether v lies inside the range.
func (p Policy) Contains(v int) bool { return v >= p.minValue && v <= p.maxValue }

// Delta returns the score change for guess against target, ignoring mode.
func (p Policy) Delta(guess, target int) int {
	d := Distance(guess, target)
	if d == 0 {
		return PerfectScore
	}
	return p.half - d
}

// Score returns the score change for a guess. Unranked play never changes scores.
func (p Policy) Score(guess, target int, ranked bool) int {
	if !ranked {
		return 0
	}
	return p.Delta(guess, target)
}

// Distance returns |guess - target|, saturating at math.MaxInt.
func Distance(guess, target int) int {
	d := target - guess
	if guess > target {
		d = guess - target
	}
	if d < 0 {
		return math.MaxInt
	}
	return d
}

// Apply adds delta to current and clamps the result at zero.
func Apply(current, delta int) int {
	next := current + delta
	if next < 0 {
		return 0
	}
	return next
}
