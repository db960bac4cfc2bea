package game

import (
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"
)

type VoteStage string

const (
	StageFirst  VoteStage = "first"
	StageSecond VoteStage = "second"
)

// SecondKind tells clients which buttons the second round offers.
type SecondKind string

const (
	KindNone        SecondKind = ""
	KindFallRate    SecondKind = "fallRate"
	KindPieceSelect SecondKind = "tetrominoSelection"
)

type VoteOption string

const (
	NoAction VoteOption = "noAction"
	Option1  VoteOption = "option1"
	Option2  VoteOption = "option2"
	Option3  VoteOption = "option3"
)

var (
	firstRoundOptions  = []VoteOption{NoAction, Option1, Option2, Option3}
	fallRateOptions    = []VoteOption{NoAction, Option1, Option2}
	pieceSelectOptions = []VoteOption{NoAction, Option1, Option2, Option3}
)

const drawnPieceCount = 3

type votingState int

const (
	voteIdle votingState = iota
	voteFirstOpen
	voteFirstClosed
	voteSecondOpen
	voteSecondClosed
)

func (s votingState) open() bool { return s == voteFirstOpen || s == voteSecondOpen }

// VotingController runs the two-stage voting loop for as long as a match is
// active. Each round counts down once per second, stops accepting votes at
// zero and decides after a short tail. Ties are broken uniformly at random
// among the options sharing the top count.
type VotingController struct {
	cfg    Config
	clock  Clock
	notify Notifier
	level  *LevelProgression
	rng    *rand.Rand
	log    *slog.Logger

	state     votingState
	kind      SecondKind
	tally     map[VoteOption]int
	voters    map[string]struct{}
	countdown int
	accepting bool
	previous  VoteOption
	drawn     []Piece

	running bool
	gen     uint64
	timer   Timer
}

func NewVotingController(cfg Config, clock Clock, n Notifier, lv *LevelProgression, rng *rand.Rand, log *slog.Logger) *VotingController {
	if log == nil {
		log = slog.Default()
	}
	return &VotingController{
		cfg:    cfg,
		clock:  clock,
		notify: n,
		level:  lv,
		rng:    rng,
		log:    log,
		tally:  make(map[VoteOption]int),
		voters: make(map[string]struct{}),
	}
}

func (v *VotingController) Running() bool { return v.running }

// StartLoop opens the first round. It is a no-op when already running.
func (v *VotingController) StartLoop() {
	if v.running {
		return
	}
	v.running = true
	v.gen++
	v.openFirst()
}

// StopLoop halts the loop and discards any round in flight. Timers scheduled
// before the stop see a stale generation and do nothing.
func (v *VotingController) StopLoop() {
	if !v.running {
		return
	}
	v.running = false
	v.gen++
	stopTimer(v.timer)
	v.timer = nil
	v.state = voteIdle
	v.accepting = false
	v.kind = KindNone
	v.drawn = nil
	clear(v.tally)
	clear(v.voters)
}

// Submit counts a vote for the open round. Votes outside a round, for options
// the round does not offer, or repeated by the same voter are dropped.
func (v *VotingController) Submit(voter string, option VoteOption) bool {
	if !v.accepting || !slices.Contains(v.options(), option) {
		return false
	}
	if v.cfg.VoteDedup {
		if _, dup := v.voters[voter]; dup {
			return false
		}
		v.voters[voter] = struct{}{}
	}
	v.tally[option]++
	return true
}

// Active describes the open round for late joiners.
func (v *VotingController) Active() (VoteStage, SecondKind, []VoteOption, []Piece, bool) {
	if !v.state.open() {
		return "", KindNone, nil, nil, false
	}
	return v.stage(), v.kind, v.options(), append([]Piece{}, v.drawn...), true
}

// Countdown returns the seconds left in the open round.
func (v *VotingController) Countdown() (int, bool) {
	if !v.state.open() {
		return 0, false
	}
	return v.countdown, true
}

// Tally is a copy of the current counts.
func (v *VotingController) Tally() map[VoteOption]int {
	out := make(map[VoteOption]int, len(v.tally))
	for k, n := range v.tally {
		out[k] = n
	}
	return out
}

func (v *VotingController) stage() VoteStage {
	if v.state == voteSecondOpen || v.state == voteSecondClosed {
		return StageSecond
	}
	return StageFirst
}

func (v *VotingController) options() []VoteOption {
	switch v.kind {
	case KindFallRate:
		return fallRateOptions
	case KindPieceSelect:
		return pieceSelectOptions
	default:
		return firstRoundOptions
	}
}

func (v *VotingController) openFirst() {
	v.kind = KindNone
	v.previous = ""
	v.drawn = nil
	v.open(voteFirstOpen)
}

func (v *VotingController) openSecond(kind SecondKind) {
	v.kind = kind
	v.open(voteSecondOpen)
}

func (v *VotingController) open(state votingState) {
	v.state = state
	clear(v.tally)
	for _, o := range v.options() {
		v.tally[o] = 0
	}
	clear(v.voters)
	v.accepting = true
	v.countdown = v.cfg.VoteRoundSeconds

	v.notify.Broadcast(EvVoteOpened, v.stage(), v.kind, v.options(), append([]Piece{}, v.drawn...))
	v.notify.Broadcast(EvCountdownTick, v.countdown)
	v.schedule(time.Second, v.tick)
}

func (v *VotingController) schedule(d time.Duration, fn func()) {
	gen := v.gen
	v.timer = v.clock.AfterFunc(d, func() {
		if gen != v.gen || !v.running {
			return
		}
		fn()
	})
}

func (v *VotingController) tick() {
	v.countdown--
	v.notify.Broadcast(EvCountdownTick, v.countdown)
	if v.countdown > 0 {
		v.schedule(time.Second, v.tick)
		return
	}
	v.close()
}

func (v *VotingController) close() {
	v.accepting = false
	if v.state == voteFirstOpen {
		v.state = voteFirstClosed
	} else {
		v.state = voteSecondClosed
	}
	v.notify.Broadcast(EvVoteClosed)
	v.schedule(v.cfg.VoteDecisionDelay, v.Decide)
}

// Decide closes voting if still open, applies the winning option and opens the
// next round.
func (v *VotingController) Decide() {
	if !v.running {
		return
	}
	v.gen++
	stopTimer(v.timer)
	v.accepting = false
	first := v.stage() == StageFirst
	winner, top := pickWinner(v.rng, v.tally, v.options())
	v.log.Debug("vote decided", "stage", v.stage(), "kind", v.kind, "winner", winner, "votes", top)

	if first {
		if top == 0 {
			v.openFirst()
			return
		}
		v.previous = winner
		switch winner {
		case Option1:
			v.openSecond(KindFallRate)
			return
		case Option2:
			v.drawn = drawPieces(v.rng, drawnPieceCount)
			v.openSecond(KindPieceSelect)
			return
		case Option3:
			v.notify.Broadcast(EvBlocksRandomized)
		}
		v.openFirst()
		return
	}

	switch v.previous {
	case Option1:
		switch winner {
		case Option1:
			v.notify.Broadcast(EvFallRateChanged, v.level.IncreaseFallRate())
		case Option2:
			v.notify.Broadcast(EvFallRateChanged, v.level.DecreaseFallRate())
		}
	case Option2:
		if i := pieceIndex(winner); i >= 0 && i < len(v.drawn) {
			v.notify.Broadcast(EvPieceGranted, v.drawn[i])
		}
	}
	v.openFirst()
}

// pickWinner returns a uniformly random option among those with the highest
// count, and that count. Options are scanned in the given order so a seeded
// generator gives repeatable results.
func pickWinner(rng *rand.Rand, tally map[VoteOption]int, options []VoteOption) (VoteOption, int) {
	top := 0
	for _, o := range options {
		top = max(top, tally[o])
	}
	var tied []VoteOption
	for _, o := range options {
		if tally[o] == top {
			tied = append(tied, o)
		}
	}
	return tied[rng.IntN(len(tied))], top
}

// drawPieces samples n distinct piece types.
func drawPieces(rng *rand.Rand, n int) []Piece {
	perm := rng.Perm(len(AllPieces))
	out := make([]Piece, 0, n)
	for _, i := range perm[:min(n, len(perm))] {
		out = append(out, AllPieces[i])
	}
	return out
}

func pieceIndex(o VoteOption) int {
	switch o {
	case Option1:
		return 0
	case Option2:
		return 1
	case Option3:
		return 2
	default:
		return -1
	}
}
