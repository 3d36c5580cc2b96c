package repository

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tally/internal/domain/model"
)

func TestTreapStore_BasicOperations(t *testing.T) {
	Convey("Given an empty store", t, func() {
		ctx := context.Background()
		store := NewTreapStore(WithSeed(1))

		So(store.Count(ctx), ShouldEqual, 0)

		Convey("When a participant is set", func() {
			So(store.Set(ctx, "p1", "ada", 85), ShouldBeNil)

			Convey("Then it ranks first", func() {
				So(store.Count(ctx), ShouldEqual, 1)
				e, err := store.Rank(ctx, "p1")
				So(err, ShouldBeNil)
				So(e, ShouldResemble, Entry{Rank: 1, ParticipantID: "p1", Name: "ada", Score: 85})

				top, err := store.TopN(ctx, 10)
				So(err, ShouldBeNil)
				So(top, ShouldResemble, []Entry{{Rank: 1, ParticipantID: "p1", Name: "ada", Score: 85}})
			})

			Convey("Then a lower score replaces the previous one", func() {
				So(store.Set(ctx, "p1", "ada", 10), ShouldBeNil)
				e, _ := store.Rank(ctx, "p1")
				So(e.Score, ShouldEqual, 10)
				So(store.Count(ctx), ShouldEqual, 1)
			})
		})

		Convey("When querying unknown participants or bad limits", func() {
			_, err := store.Rank(ctx, "missing")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)

			_, err = store.TopN(ctx, 0)
			So(errors.Is(err, ErrInvalidLimit), ShouldBeTrue)
		})
	})
}

func TestTreapStore_Ties(t *testing.T) {
	Convey("Given participants with tied scores", t, func() {
		ctx := context.Background()
		store := NewTreapStore(WithSeed(2))
		So(store.Set(ctx, "c", "c", 100), ShouldBeNil)
		So(store.Set(ctx, "a", "a", 100), ShouldBeNil)
		So(store.Set(ctx, "b", "b", 40), ShouldBeNil)
		So(store.Set(ctx, "d", "d", 40), ShouldBeNil)
		So(store.Set(ctx, "e", "e", 0), ShouldBeNil)

		Convey("Then ties share a rank and order by id", func() {
			top, err := store.TopN(ctx, 5)
			So(err, ShouldBeNil)
			ids := make([]string, 0, len(top))
			ranks := make([]int, 0, len(top))
			for _, e := range top {
				ids = append(ids, e.ParticipantID)
				ranks = append(ranks, e.Rank)
			}
			So(ids, ShouldResemble, []string{"a", "c", "b", "d", "e"})
			So(ranks, ShouldResemble, []int{1, 1, 3, 3, 5})

			for _, e := range top {
				got, err := store.Rank(ctx, model.ParticipantID(e.ParticipantID))
				So(err, ShouldBeNil)
				So(got.Rank, ShouldEqual, e.Rank)
			}
		})

		Convey("Then a limit smaller than the store returns a prefix", func() {
			top, err := store.TopN(ctx, 3)
			So(err, ShouldBeNil)
			So(len(top), ShouldEqual, 3)
			So(top[2].Rank, ShouldEqual, 3)
		})
	})
}

func TestTreapStore_RandomizedAgainstSort(t *testing.T) {
	Convey("Given many random updates", t, func() {
		ctx := context.Background()
		store := NewTreapStore(WithSeed(3))
		rng := rand.New(rand.NewSource(99))
		want := make(map[string]int)

		for i := 0; i < 2000; i++ {
			id := fmt.Sprintf("p%03d", rng.Intn(300))
			score := rng.Intn(500)
			want[id] = score
			So(store.Set(ctx, model.ParticipantID(id), id, score), ShouldBeNil)
		}

		Convey("Then TopN matches a sorted reference", func() {
			ref := make([]Entry, 0, len(want))
			for id, s := range want {
				ref = append(ref, Entry{ParticipantID: id, Name: id, Score: s})
			}
			sort.Slice(ref, func(i, j int) bool { return less(ref[i].Score, ref[i].ParticipantID, ref[j].Score, ref[j].ParticipantID) })
			assignRanksWithTies(ref)

			got, err := store.TopN(ctx, len(ref)+10)
			So(err, ShouldBeNil)
			So(got, ShouldResemble, ref)
			So(store.Count(ctx), ShouldEqual, len(want))

			for _, e := range ref[:50] {
				r, err := store.Rank(ctx, model.ParticipantID(e.ParticipantID))
				So(err, ShouldBeNil)
				So(r.Rank, ShouldEqual, e.Rank)
			}
		})
	})
}

func TestTreapStore_Concurrent(t *testing.T) {
	Convey("Given concurrent writers and readers", t, func() {
		ctx := context.Background()
		store := NewTreapStore()
		var wg sync.WaitGroup

		for w := 0; w < 8; w++ {
			wg.Add(2)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < 200; i++ {
					_ = store.Set(ctx, model.ParticipantID(fmt.Sprintf("w%d-%d", w, i%20)), "x", i)
				}
			}(w)
			go func() {
				defer wg.Done()
				for i := 0; i < 200; i++ {
					_, _ = store.TopN(ctx, 10)
				}
			}()
		}
		wg.Wait()

		Convey("Then every participant is tracked once", func() {
			So(store.Count(ctx), ShouldEqual, 8*20)
		})
	})
}

func BenchmarkTreapStore_Set(b *testing.B) {
	ctx := context.Background()
	store := NewTreapStore(WithSeed(4))
	ids := make([]model.ParticipantID, 10000)
	for i := range ids {
		ids[i] = model.ParticipantID(fmt.Sprintf("p%05d", i))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = store.Set(ctx, ids[i%len(ids)], "bench", i%1000)
	}
}

func BenchmarkTreapStore_Rank(b *testing.B) {
	ctx := context.Background()
	store := NewTreapStore(WithSeed(5))
	for i := 0; i < 10000; i++ {
		_ = store.Set(ctx, model.ParticipantID(fmt.Sprintf("p%05d", i)), "bench", i%1000)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.Rank(ctx, model.ParticipantID(fmt.Sprintf("p%05d", i%10000)))
	}
}
