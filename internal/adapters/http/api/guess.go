package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	service "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/domain/contest"
	"github.com/okian/tally/internal/domain/model"
)

// guessRequest is the body of POST /guess.
type guessRequest struct {
	ParticipantID string `json:"participant_id"`
	Value         *int   `json:"value"`
}

func (g guessRequest) validate() error {
	switch {
	case strings.TrimSpace(g.ParticipantID) == "":
		return errors.New("missing participant_id")
	case g.Value == nil:
		return errors.New("missing value")
	}
	return nil
}

// GuessHandler accepts guesses and departures over HTTP.
type GuessHandler struct {
	deps GuessDependencies
}

// NewGuessHandler creates a new guess handler.
func NewGuessHandler(deps GuessDependencies) *GuessHandler {
	return &GuessHandler{deps: deps}
}

// HandlePostGuess handles POST /guess requests.
func (h *GuessHandler) HandlePostGuess(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_guess"

	var req guessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	if err := h.deps.SubmitGuess(r.Context(), model.ParticipantID(req.ParticipantID), *req.Value); err != nil {
		status, code := classify(err)
		writeError(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}

// HandleDisconnect handles POST /disconnect/{id} requests.
func (h *GuessHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	const op = "api.disconnect"

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	if err := h.deps.Disconnect(r.Context(), model.ParticipantID(id)); err != nil {
		status, code := classify(err)
		writeError(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "disconnected"})
}

// classify maps lobby and contest errors to a status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrUnknownParticipant), errors.Is(err, contest.ErrUnknownParticipant):
		return http.StatusNotFound, "unknown_participant"
	case errors.Is(err, contest.ErrOutOfRange):
		return http.StatusUnprocessableEntity, "out_of_range"
	case errors.Is(err, contest.ErrDuplicateGuess):
		return http.StatusConflict, "duplicate_guess"
	case errors.Is(err, service.ErrNotInContest):
		return http.StatusConflict, "not_in_contest"
	case errors.Is(err, contest.ErrNotActive):
		return http.StatusConflict, "not_active"
	case errors.Is(err, contest.ErrRoundClosed):
		return http.StatusConflict, "round_closed"
	case errors.Is(err, contest.ErrContestOver):
		return http.StatusConflict, "contest_over"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
