package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tally/internal/adapters/http/api"
	"github.com/okian/tally/internal/adapters/repository"
	service "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/domain/contest"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/types"
)

// Mock implementations for testing
type mockDeps struct {
	topN    []types.Entry
	topNErr error
	rank    types.Entry
	rankErr error

	guessErr      error
	disconnectErr error
	guesses       map[model.ParticipantID]int
	departed      []model.ParticipantID

	stats service.Stats
}

func (m *mockDeps) TopN(_ context.Context, n int) ([]types.Entry, error) {
	if m.topNErr != nil {
		return nil, m.topNErr
	}
	if n > len(m.topN) {
		return m.topN, nil
	}
	return m.topN[:n], nil
}

func (m *mockDeps) Rank(_ context.Context, _ string) (types.Entry, error) {
	if m.rankErr != nil {
		return types.Entry{}, m.rankErr
	}
	return m.rank, nil
}

func (m *mockDeps) SubmitGuess(_ context.Context, id model.ParticipantID, value int) error {
	if m.guessErr != nil {
		return m.guessErr
	}
	if m.guesses == nil {
		m.guesses = make(map[model.ParticipantID]int)
	}
	m.guesses[id] = value
	return nil
}

func (m *mockDeps) Disconnect(_ context.Context, id model.ParticipantID) error {
	if m.disconnectErr != nil {
		return m.disconnectErr
	}
	m.departed = append(m.departed, id)
	return nil
}

func (m *mockDeps) GetStats(context.Context) service.Stats { return m.stats }

func newMux(deps *mockDeps, opts ...api.Option) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, opts...).Register(mux)
	return mux
}

func serve(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeError(w *httptest.ResponseRecorder) map[string]string {
	var out map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

func TestServer_Register(t *testing.T) {
	Convey("Given a new API server", t, func() {
		deps := &mockDeps{stats: service.Stats{Started: true, Lobby: 2, ContestSize: 3}}
		mux := newMux(deps)

		Convey("Then health returns ok as JSON", func() {
			w := serve(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldContainSubstring, "application/json")
			So(w.Body.String(), ShouldContainSubstring, `"ok"`)
		})

		Convey("And metrics are exposed in the Prometheus format", func() {
			w := serve(mux, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "# HELP")
		})

		Convey("And stats reflect the lobby", func() {
			w := serve(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var stats service.Stats
			So(json.Unmarshal(w.Body.Bytes(), &stats), ShouldBeNil)
			So(stats.Lobby, ShouldEqual, 2)
			So(stats.Started, ShouldBeTrue)
		})

		Convey("And wrong methods are refused", func() {
			So(serve(mux, http.MethodPost, "/stats", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
			So(serve(mux, http.MethodGet, "/guess", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestLeaderboardHandler(t *testing.T) {
	Convey("Given standings with three entries", t, func() {
		deps := &mockDeps{topN: []types.Entry{
			{Rank: 1, ParticipantID: "a", Name: "ann", Score: 200},
			{Rank: 2, ParticipantID: "b", Name: "bob", Score: 150},
			{Rank: 3, ParticipantID: "c", Name: "cy", Score: 10},
		}}
		mux := newMux(deps, api.WithMaxLimit(50))

		Convey("When asking for the top two", func() {
			w := serve(mux, http.MethodGet, "/leaderboard?limit=2", "")

			Convey("Then two entries are returned in order", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var entries []types.Entry
				So(json.Unmarshal(w.Body.Bytes(), &entries), ShouldBeNil)
				So(entries, ShouldHaveLength, 2)
				So(entries[0].Name, ShouldEqual, "ann")
				So(entries[1].Rank, ShouldEqual, 2)
			})
		})

		Convey("When the limit is omitted", func() {
			w := serve(mux, http.MethodGet, "/leaderboard", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("When the limit is invalid", func() {
			So(serve(mux, http.MethodGet, "/leaderboard?limit=abc", "").Code, ShouldEqual, http.StatusBadRequest)
			So(serve(mux, http.MethodGet, "/leaderboard?limit=0", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the limit exceeds the maximum", func() {
			w := serve(mux, http.MethodGet, "/leaderboard?limit=51", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeError(w)["code"], ShouldEqual, "limit_exceeded")
		})

		Convey("When the store fails", func() {
			deps.topNErr = errors.New("boom")
			So(serve(mux, http.MethodGet, "/leaderboard?limit=1", "").Code, ShouldEqual, http.StatusInternalServerError)
		})
	})
}

func TestRankHandler(t *testing.T) {
	Convey("Given a rank handler", t, func() {
		deps := &mockDeps{rank: types.Entry{Rank: 4, ParticipantID: "p1", Name: "pat", Score: 77}}
		mux := newMux(deps)

		Convey("When the participant is ranked", func() {
			w := serve(mux, http.MethodGet, "/rank/p1", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var entry types.Entry
			So(json.Unmarshal(w.Body.Bytes(), &entry), ShouldBeNil)
			So(entry.Rank, ShouldEqual, 4)
			So(entry.Score, ShouldEqual, 77)
		})

		Convey("When the participant is unknown", func() {
			deps.rankErr = repository.ErrNotFound
			w := serve(mux, http.MethodGet, "/rank/nobody", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decodeError(w)["code"], ShouldEqual, "not_found")
		})

		Convey("When the store fails", func() {
			deps.rankErr = errors.New("boom")
			So(serve(mux, http.MethodGet, "/rank/p1", "").Code, ShouldEqual, http.StatusInternalServerError)
		})
	})
}

func TestGuessHandler(t *testing.T) {
	Convey("Given a guess handler", t, func() {
		deps := &mockDeps{}
		mux := newMux(deps)

		Convey("When a valid guess is posted", func() {
			w := serve(mux, http.MethodPost, "/guess", `{"participant_id":"p1","value":42}`)

			Convey("Then it is accepted and routed", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(deps.guesses["p1"], ShouldEqual, 42)
			})
		})

		Convey("When the body is malformed", func() {
			So(serve(mux, http.MethodPost, "/guess", `{`).Code, ShouldEqual, http.StatusBadRequest)
			So(serve(mux, http.MethodPost, "/guess", `{"value":1}`).Code, ShouldEqual, http.StatusBadRequest)
			So(serve(mux, http.MethodPost, "/guess", `{"participant_id":"p1"}`).Code, ShouldEqual, http.StatusBadRequest)
			So(serve(mux, http.MethodPost, "/guess", `{"participant_id":"p1","value":"42"}`).Code, ShouldEqual, http.StatusBadRequest)
			So(deps.guesses, ShouldBeEmpty)
		})

		Convey("When the contest refuses the guess", func() {
			cases := []struct {
				err    error
				status int
				code   string
			}{
				{contest.ErrOutOfRange, http.StatusUnprocessableEntity, "out_of_range"},
				{contest.ErrDuplicateGuess, http.StatusConflict, "duplicate_guess"},
				{contest.ErrNotActive, http.StatusConflict, "not_active"},
				{contest.ErrRoundClosed, http.StatusConflict, "round_closed"},
				{contest.ErrContestOver, http.StatusConflict, "contest_over"},
				{service.ErrNotInContest, http.StatusConflict, "not_in_contest"},
				{service.ErrUnknownParticipant, http.StatusNotFound, "unknown_participant"},
				{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
			}
			for _, tc := range cases {
				deps.guessErr = tc.err
				w := serve(mux, http.MethodPost, "/guess", `{"participant_id":"p1","value":1}`)
				So(w.Code, ShouldEqual, tc.status)
				So(decodeError(w)["code"], ShouldEqual, tc.code)
			}
		})

		Convey("When a participant is disconnected", func() {
			w := serve(mux, http.MethodPost, "/disconnect/p9", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.departed, ShouldResemble, []model.ParticipantID{"p9"})

			Convey("And the participant is unknown", func() {
				deps.disconnectErr = contest.ErrUnknownParticipant
				So(serve(mux, http.MethodPost, "/disconnect/p9", "").Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}
