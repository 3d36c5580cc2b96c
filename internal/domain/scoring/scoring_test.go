package scoring_test

import (
	"math"
	"testing"

	"github.com/okian/tally/internal/domain/scoring"
	"github.com/smartystreets/goconvey/convey"
)

func TestDistance(t *testing.T) {
	convey.Convey("Given guesses around a target", t, func() {
		convey.So(scoring.Distance(42, 42), convey.ShouldEqual, 0)
		convey.So(scoring.Distance(30, 42), convey.ShouldEqual, 12)
		convey.So(scoring.Distance(52, 42), convey.ShouldEqual, 10)
		convey.So(scoring.Distance(-5, 5), convey.ShouldEqual, 10)

		for g := -20; g <= 120; g += 7 {
			d := scoring.Distance(g, 42)
			convey.So(d, convey.ShouldBeGreaterThanOrEqualTo, 0)
			convey.So(d, convey.ShouldEqual, scoring.Distance(42, g))
		}
	})

	convey.Convey("Given guesses at the limits of int", t, func() {
		convey.So(scoring.Distance(math.MinInt+10, 42), convey.ShouldEqual, math.MaxInt)
		convey.So(scoring.Distance(42, math.MinInt+10), convey.ShouldEqual, math.MaxInt)
		convey.So(scoring.Distance(math.MaxInt, math.MinInt), convey.ShouldEqual, math.MaxInt)
		convey.So(scoring.Distance(math.MinInt, 0), convey.ShouldEqual, math.MaxInt)
		convey.So(scoring.Distance(math.MaxInt, math.MaxInt-3), convey.ShouldEqual, 3)

		p := scoring.Default()
		delta := p.Delta(math.MinInt+10, 42)
		convey.So(delta, convey.ShouldBeLessThan, 0)
		convey.So(scoring.Apply(5, delta), convey.ShouldEqual, 0)
	})
}

func TestPolicy(t *testing.T) {
	convey.Convey("Given the default policy for 1..100", t, func() {
		p := scoring.Default()

		convey.So(p.HalfRange(), convey.ShouldEqual, 50)
		convey.So(p.Contains(1), convey.ShouldBeTrue)
		convey.So(p.Contains(100), convey.ShouldBeTrue)
		convey.So(p.Contains(0), convey.ShouldBeFalse)
		convey.So(p.Contains(101), convey.ShouldBeFalse)

		convey.Convey("When the guess matches the target", func() {
			convey.So(p.Score(42, 42, true), convey.ShouldEqual, scoring.PerfectScore)
		})

		convey.Convey("When the guess is ten away", func() {
			convey.So(p.Score(52, 42, true), convey.ShouldEqual, 40)
			convey.So(p.Score(32, 42, true), convey.ShouldEqual, 40)
		})

		convey.Convey("When the guess is sixty away", func() {
			delta := p.Score(100, 40, true)
			convey.So(delta, convey.ShouldEqual, -10)

			convey.Convey("Then a score of five clamps to zero", func() {
				convey.So(scoring.Apply(5, delta), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the contest is unranked", func() {
			convey.So(p.Score(42, 42, false), convey.ShouldEqual, 0)
			convey.So(p.Score(1, 100, false), convey.ShouldEqual, 0)
		})
	})

	convey.Convey("Given a policy built with reversed bounds", t, func() {
		p := scoring.NewPolicy(20, 11)

		convey.So(p.Min(), convey.ShouldEqual, 11)
		convey.So(p.Max(), convey.ShouldEqual, 20)
		convey.So(p.HalfRange(), convey.ShouldEqual, 5)
		convey.So(p.Delta(12, 18), convey.ShouldEqual, -1)
	})
}

func TestApply(t *testing.T) {
	convey.Convey("Given a running score", t, func() {
		convey.So(scoring.Apply(0, 100), convey.ShouldEqual, 100)
		convey.So(scoring.Apply(10, -3), convey.ShouldEqual, 7)
		convey.So(scoring.Apply(3, -3), convey.ShouldEqual, 0)
		convey.So(scoring.Apply(0, -50), convey.ShouldEqual, 0)
	})
}
