package botrun

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
)

// ErrAborted is reported when the service tears a contest down.
var ErrAborted = errors.New("contest aborted")

// envelope is the outbound message shape of the service.
type envelope struct {
	Type      model.MessageType `json:"type"`
	ContestID string            `json:"contest_id"`
	Round     int               `json:"round"`
	Payload   json.RawMessage   `json:"payload"`
}

type queuedPayload struct {
	ParticipantID string `json:"participant_id"`
}

type rangePayload struct {
	RangeMin int `json:"range_min"`
	RangeMax int `json:"range_max"`
}

type guessFrame struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Bot plays one contest over the websocket transport.
type Bot struct {
	name     string
	endpoint string
	strategy Strategy
	timeout  time.Duration
	logger   logger.Logger
}

// NewBot creates a bot that connects to baseURL.
func NewBot(name, baseURL string, strategy Strategy, timeout time.Duration, log logger.Logger) *Bot {
	return &Bot{
		name:     name,
		endpoint: wsURL(baseURL, name),
		strategy: strategy,
		timeout:  timeout,
		logger:   log,
	}
}

// wsURL maps http(s)://host to ws(s)://host/ws?name=<name>.
func wsURL(baseURL, name string) string {
	base := strings.TrimSuffix(baseURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws?name=" + url.QueryEscape(name)
}

// Play joins, answers every guess prompt and returns when the contest ends.
func (b *Bot) Play(ctx context.Context) Result {
	res := Result{Name: b.name}

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.endpoint, nil)
	if err != nil {
		res.Err = fmt.Errorf("dial %s: %w", b.endpoint, err)
		return res
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	var lastGuess int
	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			res.Err = fmt.Errorf("read: %w", err)
			return res
		}

		switch env.Type {
		case model.MessageQueued:
			var p queuedPayload
			if err := json.Unmarshal(env.Payload, &p); err == nil {
				res.ParticipantID = p.ParticipantID
			}
		case model.MessageContestStart:
			res.ContestID = env.ContestID
			b.applyRange(env.Payload)
		case model.MessageGuessPrompt:
			b.applyRange(env.Payload)
			lastGuess = b.strategy.Next()
			if err := conn.WriteJSON(guessFrame{Type: "guess", Value: strconv.Itoa(lastGuess)}); err != nil {
				res.Err = fmt.Errorf("send guess: %w", err)
				return res
			}
			res.Guesses = append(res.Guesses, lastGuess)
		case model.MessageRoundResult:
			var rr model.RoundResult
			if err := json.Unmarshal(env.Payload, &rr); err != nil {
				res.Err = fmt.Errorf("decode round result: %w", err)
				return res
			}
			res.Rounds = rr.Round
			if o, ok := rr.Outcome(model.ParticipantID(res.ParticipantID)); ok {
				b.strategy.Observe(o.Guess, o.Distance)
				res.Distances = append(res.Distances, o.Distance)
				res.Score = o.Score
			}
		case model.MessageContestOver:
			b.logger.Debug(ctx, "contest over",
				logger.String("bot", b.name),
				logger.String("contest", env.ContestID),
				logger.Int("score", res.Score),
			)
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
			return res
		case model.MessageContestAborted:
			res.Aborted = true
			res.Err = ErrAborted
			return res
		case model.MessageError:
			b.logger.Warn(ctx, "service reported an error",
				logger.String("bot", b.name),
				logger.String("payload", string(env.Payload)),
			)
		}
	}
}

func (b *Bot) applyRange(raw json.RawMessage) {
	var r rangePayload
	if err := json.Unmarshal(raw, &r); err != nil || r.RangeMax < r.RangeMin || (r.RangeMin == 0 && r.RangeMax == 0) {
		return
	}
	b.strategy.Range(r.RangeMin, r.RangeMax)
}
