package game

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// SeatTokens issues and checks the tokens a seated client uses to get its
// slot back after a reconnect.
type SeatTokens interface {
	Issue(matchID string, slot int) (string, error)
	Verify(token string) (matchID string, slot int, err error)
}

// MatchResult is what is archived when a match ends.
type MatchResult struct {
	MatchID string         `json:"matchId"`
	Reason  string         `json:"reason"`
	Level   int            `json:"level"`
	Scores  []ColoredScore `json:"scores"`
	EndedAt time.Time      `json:"endedAt"`
}

type ResultArchive interface {
	SaveResult(ctx context.Context, r MatchResult) error
}

const (
	EndReasonInactivity = "inactivity"
	EndReasonRequested  = "requested"
)

const resultQueue = 8

type Options struct {
	Clock  Clock
	Rand   *rand.Rand
	Logger *slog.Logger

	// optional
	Tokens  SeatTokens
	Archive ResultArchive
	Mirror  SnapshotSink
}

// Session is the single authority over the running match. Inbound messages
// and timer callbacks all take mu and run to completion, so components below
// it never see concurrent calls.
type Session struct {
	mu     sync.Mutex
	cfg    Config
	log    *slog.Logger
	clock  Clock
	timers Clock
	rng    *rand.Rand

	reg     *Registry
	notify  *mirrorNotifier
	tokens  SeatTokens
	archive ResultArchive
	results chan MatchResult
	mirror  *snapshotWriter
	stopped bool

	// matchGen changes on every Lobby and Active entry; timers scheduled
	// under an older value are dropped.
	matchGen  uint64
	matchID   string
	endReason string

	phase     *PhaseTracker
	admission *AdmissionQueue
	score     *ScoreModel
	level     *LevelProgression
	voting    *VotingController
	trades    *TradeBroker
	watchdog  *Watchdog

	lobbyTimer Timer
	pairTimer  Timer
}

func NewSession(cfg Config, opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Session{
		cfg:     cfg.normalized(),
		log:     opts.Logger,
		clock:   opts.Clock,
		rng:     opts.Rand,
		tokens:  opts.Tokens,
		archive: opts.Archive,
		results: make(chan MatchResult, resultQueue),
	}
	s.timers = sessionClock{s: s}
	s.reg = NewRegistry(s.log)
	s.notify = &mirrorNotifier{Notifier: s.reg}
	if opts.Mirror != nil {
		s.mirror = newSnapshotWriter(opts.Mirror, s.log)
	}

	s.phase = NewPhaseTracker(s.notify)
	s.phase.OnEnter(PhaseActive, s.enterActive)
	s.phase.OnEnter(PhaseEnded, s.enterEnded)
	s.phase.OnEnter(PhaseLobby, s.enterLobby)

	s.resetLocked()
	s.buildMatchLocked()
	return s
}

// Run drives the background writers until ctx is cancelled, then stops every
// pending timer.
func (s *Session) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	if s.mirror != nil {
		g.Go(func() error {
			s.mirror.run(gctx)
			return nil
		})
	}
	if s.archive != nil {
		g.Go(func() error {
			s.drainResults(gctx)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		s.stop()
		return nil
	})
	return g.Wait()
}

func (s *Session) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.voting.StopLoop()
	s.watchdog.Disarm()
	stopTimer(s.lobbyTimer)
	stopTimer(s.pairTimer)
}

// Snapshot returns the current observable state.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase.Current()
}

// Connect registers a new connection as a spectator and tells it where the
// session stands so it can jump to the right view.
func (s *Session) Connect(cc *ClientConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.flushLocked()

	s.reg.Add(cc)
	s.notify.mark()
	s.notify.Reply(cc.id, EvPhaseChanged, s.phase.Current())
	s.notify.Reply(cc.id, EvRemainingSlotsChanged, s.admission.Remaining())
	if s.phase.Current() == PhaseActive {
		s.notify.Reply(cc.id, EvScoreboardChanged, s.score.Board(s.level.Level()))
		s.notify.Reply(cc.id, EvFallRateChanged, s.level.FallRateMs())
	}
}

// Disconnect forgets a connection. A seat taken during Lobby is given back;
// seats in a running match stay reserved for reclaimSeat.
func (s *Session) Disconnect(id ConnID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.flushLocked()

	slot := s.reg.Remove(id)
	s.notify.mark()
	switch s.phase.Current() {
	case PhaseLobby:
		if s.admission.Release(slot) {
			s.log.Info("seat released", "slot", slot, "conn", id)
			s.notify.Broadcast(EvRemainingSlotsChanged, s.admission.Remaining())
		}
	case PhaseActive:
		s.trades.ClearConn(id)
		if slot.Valid() {
			s.log.Info("seat vacated", "slot", slot, "conn", id)
			s.notify.Broadcast(EvSeatVacated, slot)
		}
	}
}

// Handle dispatches one inbound message. Anything malformed, out of phase or
// from the wrong identity is dropped.
func (s *Session) Handle(id ConnID, env Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.flushLocked()

	a := args(env.Args)
	switch env.Type {
	case MsgAdmit:
		s.admitLocked(id)
	case MsgReportMove:
		s.relayLocked(id, a, EvMoveRebroadcast)
	case MsgReportPlace:
		s.relayLocked(id, a, EvPlaceRebroadcast)
	case MsgAwardPoints:
		s.pointsLocked(id, a, true)
	case MsgDeductPoints:
		s.pointsLocked(id, a, false)
	case MsgRequestScoreboard:
		s.notify.Reply(id, EvScoreboardChanged, s.score.Board(s.level.Level()))
	case MsgRequestActiveVote:
		if stage, kind, opts, drawn, ok := s.voting.Active(); ok {
			s.notify.Reply(id, EvVoteOpened, stage, kind, opts, drawn)
		}
	case MsgCastVote:
		s.voteLocked(id, a)
	case MsgRequestCountdown:
		if n, ok := s.voting.Countdown(); ok {
			s.notify.Reply(id, EvCountdownTick, n)
		}
	case MsgOfferTrade:
		s.offerDirectLocked(id, a)
	case MsgOfferRandomTrade:
		s.offerRandomLocked(id, a)
	case MsgCancelTrade:
		s.cancelTradeLocked(id, a)
	case MsgEndMatch:
		s.endMatchLocked(EndReasonRequested)
	case MsgRequestCurrentPhase:
		s.notify.Reply(id, EvPhaseChanged, s.phase.Current())
		if s.phase.Current() == PhaseEnded {
			s.notify.Reply(id, EvMatchEnded, s.score.Final())
		}
	case MsgReclaimSeat:
		s.reclaimLocked(id, a)
	default:
		s.log.Debug("unknown message", "conn", id, "type", env.Type)
	}
}

func (s *Session) admitLocked(id ConnID) {
	if cur := s.reg.Identity(id); s.phase.Current() != PhaseLobby || cur.Valid() {
		s.notify.Reply(id, EvAssignedIdentity, cur)
		return
	}

	slot, full := s.admission.Admit()
	s.reg.Bind(id, slot)
	s.notify.Reply(id, EvAssignedIdentity, slot)
	if s.tokens != nil {
		tok, err := s.tokens.Issue(s.matchID, int(slot))
		if err != nil {
			s.log.Warn("seat token", "slot", slot, "err", err)
		} else {
			s.notify.Reply(id, EvSeatToken, tok)
		}
	}
	s.log.Info("player admitted", "slot", slot, "conn", id)
	s.notify.Broadcast(EvRemainingSlotsChanged, s.admission.Remaining())

	if full {
		s.phase.Set(PhaseActive)
	}
}

// seatedAs checks that a message claiming identity arg i comes from the
// connection actually holding that slot.
func (s *Session) seatedAs(id ConnID, a args, i int) (Slot, bool) {
	n, ok := a.intAt(i)
	if !ok {
		return Spectator, false
	}
	slot := s.reg.Identity(id)
	return slot, slot.Valid() && Slot(n) == slot
}

func (s *Session) relayLocked(id ConnID, a args, event string) {
	if s.phase.Current() != PhaseActive {
		return
	}
	slot, ok := s.seatedAs(id, a, 0)
	state, hasState := a.rawAt(1)
	if !ok || !hasState {
		s.log.Debug("dropping piece report", "conn", id, "event", event)
		return
	}
	s.notify.BroadcastExcept([]ConnID{id}, event, slot, state)
	s.watchdog.Feed()
}

func (s *Session) pointsLocked(id ConnID, a args, award bool) {
	if s.phase.Current() != PhaseActive {
		return
	}
	slot, ok := s.seatedAs(id, a, 0)
	amount, hasAmount := a.intAt(1)
	if !ok || !hasAmount || amount <= 0 {
		s.log.Debug("dropping score report", "conn", id)
		return
	}

	if award {
		if s.score.Increment(slot, amount, s.level) {
			s.log.Info("level up", "level", s.level.Level(), "fallRateMs", s.level.FallRateMs())
			s.notify.Broadcast(EvFallRateChanged, s.level.FallRateMs())
		}
	} else if !s.score.Decrement(slot, amount) {
		return
	}
	s.notify.Broadcast(EvScoreboardChanged, s.score.Board(s.level.Level()))
}

func (s *Session) voteLocked(id ConnID, a args) {
	opt, ok := a.stringAt(0)
	if !ok || s.phase.Current() != PhaseActive {
		return
	}
	if !s.voting.Submit(voterKey(id, s.reg.Identity(id)), VoteOption(opt)) {
		s.log.Debug("vote ignored", "conn", id, "option", opt)
	}
}

// voterKey identifies a seated voter by slot so a reclaimed seat cannot vote
// twice in one round. Spectators are keyed by connection.
func voterKey(id ConnID, slot Slot) string {
	if slot.Valid() {
		return "slot:" + strconv.Itoa(int(slot))
	}
	return "conn:" + string(id)
}

func (s *Session) offerDirectLocked(id ConnID, a args) {
	if s.phase.Current() != PhaseActive {
		return
	}
	slot, ok := s.seatedAs(id, a, 0)
	p, hasPiece := a.stringAt(1)
	if !ok || !hasPiece || !Piece(p).Valid() {
		s.log.Debug("dropping trade offer", "conn", id)
		return
	}
	s.trades.OfferDirect(slot, id, Piece(p))
}

func (s *Session) offerRandomLocked(id ConnID, a args) {
	if s.phase.Current() != PhaseActive {
		return
	}
	slot := s.reg.Identity(id)
	p, hasPiece := a.stringAt(0)
	pair, hasPair := a.intAt(1)
	if !slot.Valid() || !hasPiece || !hasPair || !Piece(p).Valid() {
		s.log.Debug("dropping random trade offer", "conn", id)
		return
	}
	if s.trades.OfferRandom(slot, id, Piece(p), pair) == OfferIgnored {
		s.log.Debug("random trade offer ignored", "conn", id, "pair", pair)
	}
}

// cancelTradeLocked clears the direct slot, or the random pair given as the
// optional first argument. Any seat may clear the direct slot.
func (s *Session) cancelTradeLocked(id ConnID, a args) {
	if s.phase.Current() != PhaseActive || !s.reg.Identity(id).Valid() {
		return
	}
	pair, ok := a.intAt(0)
	if !ok {
		pair = directPair
	}
	if !s.trades.Cancel(s.reg.Identity(id), pair) {
		s.log.Debug("trade cancel ignored", "conn", id, "pair", pair)
	}
}

func (s *Session) reclaimLocked(id ConnID, a args) {
	tok, ok := a.stringAt(0)
	if !ok || s.tokens == nil || s.phase.Current() != PhaseActive || s.reg.Identity(id).Valid() {
		return
	}
	matchID, n, err := s.tokens.Verify(tok)
	slot := Slot(n)
	if err != nil || matchID != s.matchID || !slot.Valid() {
		s.log.Debug("seat reclaim rejected", "conn", id, "err", err)
		return
	}
	if _, taken := s.reg.ConnOf(slot); taken {
		s.log.Debug("seat reclaim rejected", "conn", id, "slot", slot, "reason", "seat in use")
		return
	}

	s.reg.Bind(id, slot)
	s.log.Info("seat reclaimed", "slot", slot, "conn", id)
	s.notify.Reply(id, EvAssignedIdentity, slot)
	s.notify.Reply(id, EvScoreboardChanged, s.score.Board(s.level.Level()))
	s.notify.Reply(id, EvFallRateChanged, s.level.FallRateMs())
}

// endMatchLocked is the match-end sequence shared by the watchdog and the
// endMatch message.
func (s *Session) endMatchLocked(reason string) {
	if s.phase.Current() != PhaseActive {
		return
	}
	s.endReason = reason
	s.score.Finalize()
	s.phase.Set(PhaseEnded)
}

func (s *Session) enterActive() {
	s.matchGen++
	s.buildMatchLocked()
	s.log.Info("match started", "match", s.matchID)

	s.notify.Broadcast(EvScoreboardChanged, s.score.Board(s.level.Level()))
	s.notify.Broadcast(EvFallRateChanged, s.level.FallRateMs())
	s.watchdog.Arm()
	s.voting.StartLoop()
	if s.cfg.RandomPairInterval > 0 {
		s.pairLocked()
	}
}

func (s *Session) enterEnded() {
	s.voting.StopLoop()
	s.watchdog.Disarm()
	stopTimer(s.pairTimer)
	s.trades.ClearAll()

	final := s.score.Final()
	s.log.Info("match ended", "match", s.matchID, "reason", s.endReason, "level", s.level.Level())
	s.notify.Broadcast(EvMatchEnded, final)
	s.queueResult(MatchResult{
		MatchID: s.matchID,
		Reason:  s.endReason,
		Level:   s.level.Level(),
		Scores:  final,
		EndedAt: s.clock.Now().UTC(),
	})

	s.lobbyTimer = s.timers.AfterFunc(s.cfg.MatchEndToLobbyDelay, func() {
		if s.phase.Current() == PhaseEnded {
			s.phase.Set(PhaseLobby)
		}
	})
}

func (s *Session) enterLobby() {
	s.matchGen++
	s.lobbyTimer = nil
	s.reg.UnbindAll()
	s.resetLocked()
	s.log.Info("back to lobby", "match", s.matchID)
	s.notify.Broadcast(EvRemainingSlotsChanged, s.admission.Remaining())
}

// resetLocked gives the next match a fresh queue, score and level.
func (s *Session) resetLocked() {
	s.matchID = uuid.NewString()
	s.endReason = ""
	s.admission = NewAdmissionQueue()
	s.score = NewScoreModel()
	s.level = NewLevelProgression(s.cfg)
}

func (s *Session) buildMatchLocked() {
	s.voting = NewVotingController(s.cfg, s.timers, s.notify, s.level, s.rng, s.log)
	s.trades = NewTradeBroker(s.cfg.TradeSamePolicy, s.notify)
	s.watchdog = NewWatchdog(s.timers, s.cfg.WatchdogTimeout, func() {
		s.log.Info("inactivity watchdog fired", "match", s.matchID)
		s.endMatchLocked(EndReasonInactivity)
	})
}

// pairLocked shuffles the seats into trade pairs and schedules the next round.
func (s *Session) pairLocked() {
	pairs := s.trades.AssignPairs(s.rng, s.reg.ConnOf)
	s.log.Debug("trade pairs assigned", "pairs", pairs)
	s.pairTimer = s.timers.AfterFunc(s.cfg.RandomPairInterval, func() {
		if s.phase.Current() == PhaseActive {
			s.pairLocked()
		}
	})
}

func (s *Session) queueResult(r MatchResult) {
	if s.archive == nil {
		return
	}
	select {
	case s.results <- r:
	default:
		s.log.Warn("result archive queue full, dropping", "match", r.MatchID)
	}
}

func (s *Session) drainResults(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-s.results:
			saveCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := s.archive.SaveResult(saveCtx, r); err != nil {
				s.log.Warn("archive match result", "match", r.MatchID, "err", err)
			}
			cancel()
		}
	}
}

func (s *Session) flushLocked() {
	if !s.notify.dirty {
		return
	}
	s.notify.dirty = false
	if s.mirror != nil {
		s.mirror.push(s.snapshotLocked())
	}
}

// sessionClock runs timer callbacks under the session lock and drops those
// scheduled for a match that is already over.
type sessionClock struct{ s *Session }

func (c sessionClock) Now() time.Time { return c.s.clock.Now() }

// AfterFunc must be called with the session lock held.
func (c sessionClock) AfterFunc(d time.Duration, f func()) Timer {
	gen := c.s.matchGen
	return c.s.clock.AfterFunc(d, func() {
		s := c.s
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.stopped || gen != s.matchGen {
			return
		}
		defer s.flushLocked()
		f()
	})
}

// mirrorNotifier marks the session dirty whenever a broadcast changes state
// that the snapshot mirror carries.
type mirrorNotifier struct {
	Notifier
	dirty bool
}

func (m *mirrorNotifier) mark() { m.dirty = true }

func (m *mirrorNotifier) Broadcast(event string, args ...any) {
	m.observe(event)
	m.Notifier.Broadcast(event, args...)
}

func (m *mirrorNotifier) BroadcastExcept(skip []ConnID, event string, args ...any) {
	m.observe(event)
	m.Notifier.BroadcastExcept(skip, event, args...)
}

func (m *mirrorNotifier) observe(event string) {
	switch event {
	case EvPhaseChanged, EvScoreboardChanged, EvFallRateChanged,
		EvRemainingSlotsChanged, EvVoteOpened, EvVoteClosed, EvMatchEnded:
		m.dirty = true
	}
}
