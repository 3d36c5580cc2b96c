package waitpoint_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/waitpoint"
)

func TestWaitPoint(t *testing.T) {
	Convey("Given a wait point set", t, func() {
		set := waitpoint.NewSet()
		ctx := context.Background()

		Convey("When the point is requested twice", func() {
			a := set.Get("p1")
			b := set.Get("p1")

			Convey("Then the same point is returned", func() {
				So(a, ShouldEqual, b)
			})
		})

		Convey("When the condition already holds", func() {
			err := set.Get("p1").Wait(ctx, func() bool { return true }, nil)

			Convey("Then Wait returns immediately", func() {
				So(err, ShouldBeNil)
			})
		})

		Convey("When the signal is sent before the wait begins", func() {
			var ready atomic.Bool
			ready.Store(true)
			set.Signal("p1")

			done := make(chan error, 1)
			go func() { done <- set.Get("p1").Wait(ctx, ready.Load, nil) }()

			Convey("Then the waiter is not stuck", func() {
				select {
				case err := <-done:
					So(err, ShouldBeNil)
				case <-time.After(time.Second):
					So("waiter blocked", ShouldBeEmpty)
				}
			})
		})

		Convey("When the condition becomes true between check and wait", func() {
			var ready atomic.Bool
			checks := make(chan struct{}, 1)
			cond := func() bool {
				select {
				case checks <- struct{}{}:
				default:
				}
				return ready.Load()
			}

			done := make(chan error, 1)
			go func() { done <- set.Get("p1").Wait(ctx, cond, nil) }()

			<-checks
			ready.Store(true)
			set.Signal("p1")

			Convey("Then the wake-up is not lost", func() {
				select {
				case err := <-done:
					So(err, ShouldBeNil)
				case <-time.After(time.Second):
					So("lost wake-up", ShouldBeEmpty)
				}
			})
		})

		Convey("When signal is called many times with no waiter", func() {
			for i := 0; i < 10; i++ {
				set.Signal("p1")
			}

			Convey("Then only one wake-up is pending", func() {
				var calls atomic.Int32
				cond := func() bool { return calls.Add(1) > 2 }
				ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
				defer cancel()

				err := set.Get("p1").Wait(ctx, cond, nil)
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
				So(calls.Load(), ShouldEqual, 2)
			})
		})

		Convey("When a point without a pending wake-up is waited on", func() {
			expired := make(chan struct{})
			close(expired)

			err := set.Get("p1").Wait(ctx, func() bool { return false }, expired)

			Convey("Then only the deadline releases it", func() {
				So(errors.Is(err, waitpoint.ErrDeadline), ShouldBeTrue)
			})
		})

		Convey("When a point is removed", func() {
			before := set.Get("p1")
			set.Signal("p1")
			set.Remove("p1")

			Convey("Then a fresh point without the old wake-up replaces it", func() {
				after := set.Get("p1")
				So(after, ShouldNotEqual, before)
				ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
				defer cancel()
				err := after.Wait(ctx, func() bool { return false }, nil)
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
			})
		})

		Convey("When the context is cancelled", func() {
			ctx, cancel := context.WithCancel(ctx)
			cancel()

			err := set.Get("p1").Wait(ctx, func() bool { return false }, nil)

			Convey("Then Wait reports the cancellation", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})

		Convey("When many participants are released concurrently", func() {
			const n = 64
			var mu sync.Mutex
			guessed := make(map[model.ParticipantID]bool)
			var wg sync.WaitGroup
			errs := make(chan error, n)

			for i := 0; i < n; i++ {
				id := model.ParticipantID(string(rune('A' + i)))
				wg.Add(1)
				go func() {
					defer wg.Done()
					errs <- set.Get(id).Wait(ctx, func() bool {
						mu.Lock()
						defer mu.Unlock()
						return guessed[id]
					}, nil)
				}()
				go func() {
					mu.Lock()
					guessed[id] = true
					mu.Unlock()
					set.Signal(id)
				}()
			}
			wg.Wait()
			close(errs)

			Convey("Then every waiter returns without error", func() {
				for err := range errs {
					So(err, ShouldBeNil)
				}
			})
		})
	})
}
