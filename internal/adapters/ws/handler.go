// Package ws is the participant transport: one websocket per participant,
// JSON frames in both directions.
package ws

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	replyBuffer    = 8
)

// Lobby is what a connection drives.
type Lobby interface {
	Join(ctx context.Context, name string, opts ...model.ParticipantOption) (*model.Participant, error)
	Requeue(ctx context.Context, id model.ParticipantID) error
	SubmitGuess(ctx context.Context, id model.ParticipantID, value int) error
	Leave(ctx context.Context, id model.ParticipantID) error
}

// Subscriber opens the outbound stream of a participant.
type Subscriber interface {
	Subscribe(id model.ParticipantID) (<-chan model.Message, func())
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithAllowedOrigins restricts the Origin header; "*" or an empty list allows any.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Handler) { h.origins = origins }
}

// Handler upgrades /ws requests and runs one session per connection.
type Handler struct {
	lobby    Lobby
	subs     Subscriber
	logger   logger.Logger
	origins  []string
	upgrader websocket.Upgrader
}

// NewHandler creates a websocket handler.
func NewHandler(lobby Lobby, subs Subscriber, opts ...Option) *Handler {
	h := &Handler{lobby: lobby, subs: subs}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logger.Get().Named("ws")
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.origins) == 0 || slices.Contains(h.origins, "*") {
		return true
	}
	return slices.Contains(h.origins, origin)
}

// ServeHTTP handles GET /ws?name=<display>[&token=<session>].
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		metrics.RecordErrorByComponent("ws", "upgrade")
		h.logger.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}

	ctx := context.WithoutCancel(r.Context())
	id := model.NewParticipantID()
	stream, unsubscribe := h.subs.Subscribe(id)

	p, err := h.lobby.Join(ctx, name,
		model.WithParticipantID(id),
		model.WithSession(r.URL.Query().Get("token")),
	)
	if err != nil {
		unsubscribe()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteJSON(errorFrame(err))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()))
		_ = conn.Close()
		return
	}

	s := &session{
		id:      p.ID,
		conn:    conn,
		lobby:   h.lobby,
		logger:  h.logger,
		stream:  stream,
		replies: make(chan model.Message, replyBuffer),
		done:    make(chan struct{}),
	}

	metrics.AddWSConnections(1)
	h.logger.Debug(ctx, "participant connected",
		logger.String("participant", string(p.ID)),
		logger.String("name", name),
	)

	s.run(ctx)

	unsubscribe()
	if err := h.lobby.Leave(ctx, p.ID); err != nil {
		h.logger.Debug(ctx, "leave after close", logger.String("participant", string(p.ID)), logger.Error(err))
	}
	metrics.AddWSConnections(-1)
	h.logger.Debug(ctx, "participant disconnected", logger.String("participant", string(p.ID)))
}

type session struct {
	id      model.ParticipantID
	conn    *websocket.Conn
	lobby   Lobby
	logger  logger.Logger
	stream  <-chan model.Message
	replies chan model.Message
	done    chan struct{}
}

// run blocks until the connection closes in either direction.
func (s *session) run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writeLoop()
	}()

	s.readLoop(ctx)
	close(s.done)
	wg.Wait()
	_ = s.conn.Close()
}

func (s *session) readLoop(ctx context.Context) {
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug(ctx, "websocket read failed", logger.String("participant", string(s.id)), logger.Error(err))
			}
			return
		}
		if err := s.handle(ctx, data); err != nil {
			s.reply(errorFrame(err))
		}
	}
}

func (s *session) handle(ctx context.Context, data []byte) error {
	frame, err := ParseFrame(data)
	if err != nil {
		metrics.RecordErrorByComponent("ws", "malformed_frame")
		return err
	}
	switch frame.Type {
	case FrameGuess:
		return s.lobby.SubmitGuess(ctx, s.id, frame.Value)
	case FrameRequeue:
		return s.lobby.Requeue(ctx, s.id)
	}
	return nil
}

// reply never blocks the read loop; a client that does not read loses replies.
func (s *session) reply(msg model.Message) {
	select {
	case s.replies <- msg:
	default:
	}
}

func (s *session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-s.stream:
			if !ok {
				_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = s.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replaced"))
				_ = s.conn.Close()
				return
			}
			if !s.write(msg) {
				return
			}
		case msg := <-s.replies:
			if !s.write(msg) {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = s.conn.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

// write closes the connection on failure so the read loop ends too.
func (s *session) write(msg model.Message) bool {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(msg); err != nil {
		_ = s.conn.Close()
		return false
	}
	return true
}

func errorFrame(err error) model.Message {
	return model.Message{Type: model.MessageError, Payload: map[string]string{"error": err.Error()}}
}
