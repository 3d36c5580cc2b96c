// Package service runs the lobby: it queues participants, starts contests
// when enough are waiting and routes guesses and departures to the contest
// that owns each participant.
package service

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/contest"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/types"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

const (
	defaultContestSize = 3
	defaultMaxRounds   = 3
	defaultRangeMin    = 1
	defaultRangeMax    = 100
)

// Binder tracks which participants receive a contest's broadcasts.
type Binder interface {
	Bind(contestID string, ids ...model.ParticipantID)
	Unbind(contestID string)
}

// Stats is a point-in-time view of the lobby.
type Stats struct {
	Started          bool `json:"started"`
	Lobby            int  `json:"lobby"`
	Participants     int  `json:"participants"`
	RunningContests  int  `json:"running_contests"`
	ContestsStarted  int  `json:"contests_started"`
	ContestsFinished int  `json:"contests_finished"`
	ContestsAborted  int  `json:"contests_aborted"`
	Standings        int  `json:"standings"`
	ContestSize      int  `json:"contest_size"`
	MaxRounds        int  `json:"max_rounds"`
	Ranked           bool `json:"ranked"`
}

// Service implements the lobby and the dependencies required by the transports.
type Service struct {
	mu sync.Mutex

	// Configuration
	contestSize  int
	maxRounds    int
	rangeMin     int
	rangeMax     int
	ranked       bool
	roundTimeout time.Duration
	seed         int64

	// Collaborators
	pool      contest.Executor
	notifier  contest.Notifier
	binder    Binder
	standings repository.Store
	clock     clockwork.Clock
	logger    logger.Logger
	rng       *rand.Rand

	// State
	started  bool
	runCtx   context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	lobby    []*model.Participant
	players  map[model.ParticipantID]*model.Participant
	owners   map[model.ParticipantID]*contest.Contest
	contests map[string]*contest.Contest

	contestsStarted  int
	contestsFinished int
	contestsAborted  int
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		contestSize: defaultContestSize,
		maxRounds:   defaultMaxRounds,
		rangeMin:    defaultRangeMin,
		rangeMax:    defaultRangeMax,
		ranked:      true,
		clock:       clockwork.NewRealClock(),
		players:     make(map[model.ParticipantID]*model.Participant),
		owners:      make(map[model.ParticipantID]*contest.Contest),
		contests:    make(map[string]*contest.Contest),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.standings == nil {
		s.standings = repository.NewTreapStore()
	}
	seed := s.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // game randomness, not security

	return s
}

// Start opens the lobby. Contests run until Stop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("lobby")
	}

	s.runCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.started = true
	metrics.UpdateLobbySize(0)

	s.logger.Info(ctx, "lobby started",
		logger.Int("contest_size", s.contestSize),
		logger.Int("max_rounds", s.maxRounds),
		logger.Bool("ranked", s.ranked),
		logger.Duration("round_timeout", s.roundTimeout),
	)
	return nil
}

// Stop cancels running contests and waits for them to unwind, or for ctx.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.cancel()
	for _, p := range s.lobby {
		p.Disconnect()
	}
	s.lobby = nil
	metrics.UpdateLobbySize(0)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info(ctx, "lobby stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Join creates a participant and queues it. The participant id may be
// fixed with model.WithParticipantID so a transport can subscribe first.
func (s *Service) Join(ctx context.Context, name string, opts ...model.ParticipantOption) (*model.Participant, error) {
	if name == "" {
		return nil, ErrInvalidName
	}
	opts = append([]model.ParticipantOption{model.WithClock(s.clock)}, opts...)
	p := model.NewParticipant(name, opts...)

	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil, ErrNotStarted
	}
	if _, dup := s.players[p.ID]; dup {
		s.mu.Unlock()
		return nil, ErrAlreadyJoined
	}
	s.players[p.ID] = p
	s.enqueueLocked(ctx, p)
	s.mu.Unlock()

	s.logger.Debug(ctx, "participant joined",
		logger.String("participant", string(p.ID)),
		logger.String("name", name),
	)
	return p, nil
}

// Requeue puts a participant whose contest ended back in the lobby.
func (s *Service) Requeue(ctx context.Context, id model.ParticipantID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return ErrNotStarted
	}
	p, ok := s.players[id]
	if !ok {
		return ErrUnknownParticipant
	}
	if !p.Requeue() {
		return ErrCannotRequeue
	}
	s.enqueueLocked(ctx, p)
	return nil
}

// enqueueLocked appends p to the lobby and starts a contest when enough
// participants wait. s.mu must be held.
func (s *Service) enqueueLocked(ctx context.Context, p *model.Participant) {
	s.lobby = append(s.lobby, p)
	queued := len(s.lobby)

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, p.ID, model.Message{
			Type:    model.MessageQueued,
			Payload: map[string]any{"participant_id": p.ID, "name": p.Name, "position": queued},
		}); err != nil {
			s.logger.Debug(ctx, "queued notice not delivered",
				logger.String("participant", string(p.ID)),
				logger.Error(err),
			)
		}
	}

	if queued >= s.contestSize {
		roster := make([]*model.Participant, s.contestSize)
		copy(roster, s.lobby[:s.contestSize])
		s.lobby = append(s.lobby[:0], s.lobby[s.contestSize:]...)
		s.launchLocked(roster)
	}
	metrics.UpdateLobbySize(len(s.lobby))
}

// launchLocked creates a contest for roster and runs it in the background.
func (s *Service) launchLocked(roster []*model.Participant) {
	opts := []contest.Option{
		contest.WithRanked(s.ranked),
		contest.WithMaxRounds(s.maxRounds),
		contest.WithRange(s.rangeMin, s.rangeMax),
		contest.WithRand(rand.New(rand.NewSource(s.rng.Int63()))), //nolint:gosec // game randomness, not security
		contest.WithStandings(s.standings),
		contest.WithClock(s.clock),
		contest.WithRoundTimeout(s.roundTimeout),
		contest.WithLogger(s.logger.Named("contest")),
	}
	if s.pool != nil {
		opts = append(opts, contest.WithPool(s.pool))
	}
	if s.notifier != nil {
		opts = append(opts, contest.WithNotifier(s.notifier))
	}

	c := contest.New("", roster, opts...)
	ids := make([]model.ParticipantID, len(roster))
	for i, p := range roster {
		ids[i] = p.ID
		s.owners[p.ID] = c
	}
	if s.binder != nil {
		s.binder.Bind(c.ID(), ids...)
	}
	s.contests[c.ID()] = c
	s.contestsStarted++

	s.wg.Add(1)
	go s.run(s.runCtx, c, ids)
}

func (s *Service) run(ctx context.Context, c *contest.Contest, ids []model.ParticipantID) {
	defer s.wg.Done()

	summary, err := c.Run(ctx)

	s.mu.Lock()
	delete(s.contests, c.ID())
	for _, id := range ids {
		if s.owners[id] == c {
			delete(s.owners, id)
		}
	}
	if err != nil {
		s.contestsAborted++
	} else {
		s.contestsFinished++
	}
	s.mu.Unlock()

	if s.binder != nil {
		s.binder.Unbind(c.ID())
	}

	if err != nil {
		s.logger.Warn(ctx, "contest ended early",
			logger.String("contest", c.ID()),
			logger.Int("rounds", summary.Rounds),
			logger.Error(err),
		)
		return
	}
	s.logger.Info(ctx, "contest completed",
		logger.String("contest", c.ID()),
		logger.Int("rounds", summary.Rounds),
	)
}

// Leave removes the participant from the lobby or its contest and forgets it.
func (s *Service) Leave(ctx context.Context, id model.ParticipantID) error {
	s.mu.Lock()
	p, ok := s.players[id]
	if !ok {
		s.mu.Unlock()
		return ErrUnknownParticipant
	}
	delete(s.players, id)
	for i, q := range s.lobby {
		if q.ID == id {
			s.lobby = append(s.lobby[:i], s.lobby[i+1:]...)
			break
		}
	}
	metrics.UpdateLobbySize(len(s.lobby))
	c := s.owners[id]
	s.mu.Unlock()

	if c != nil {
		return c.Disconnect(ctx, id)
	}
	p.Disconnect()
	return nil
}

// SubmitGuess routes value to the contest that owns id.
func (s *Service) SubmitGuess(ctx context.Context, id model.ParticipantID, value int) error {
	c, err := s.owner(id)
	if err != nil {
		return err
	}
	return c.SubmitGuess(ctx, id, value)
}

// Disconnect marks id as departed in its contest. The participant stays
// known to the lobby until Leave.
func (s *Service) Disconnect(ctx context.Context, id model.ParticipantID) error {
	c, err := s.owner(id)
	if err != nil {
		return err
	}
	return c.Disconnect(ctx, id)
}

func (s *Service) owner(id model.ParticipantID) (*contest.Contest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.owners[id]; ok {
		return c, nil
	}
	if _, ok := s.players[id]; !ok {
		return nil, ErrUnknownParticipant
	}
	return nil, ErrNotInContest
}

// Participant returns a known participant.
func (s *Service) Participant(id model.ParticipantID) (*model.Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[id]
	return p, ok
}

// ContestOf returns the contest id is playing in.
func (s *Service) ContestOf(id model.ParticipantID) (*contest.Contest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.owners[id]
	return c, ok
}

// TopN returns the top N standings entries.
func (s *Service) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	return s.standings.TopN(ctx, n)
}

// Rank returns the standing of one participant.
func (s *Service) Rank(ctx context.Context, id string) (types.Entry, error) {
	return s.standings.Rank(ctx, model.ParticipantID(id))
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Started:          s.started,
		Lobby:            len(s.lobby),
		Participants:     len(s.players),
		RunningContests:  len(s.contests),
		ContestsStarted:  s.contestsStarted,
		ContestsFinished: s.contestsFinished,
		ContestsAborted:  s.contestsAborted,
		Standings:        s.standings.Count(ctx),
		ContestSize:      s.contestSize,
		MaxRounds:        s.maxRounds,
		Ranked:           s.ranked,
	}
}
