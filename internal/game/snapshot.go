package game

import (
	"context"
	"log/slog"
	"time"
)

// SessionSnapshot is the observable state of the session. It is mirrored to
// external stores for dashboards; nothing reads it back to rebuild a session.
type SessionSnapshot struct {
	MatchID string `json:"matchId"`
	Phase   Phase  `json:"phase"`

	Connections    int `json:"connections"`
	RemainingSlots int `json:"remainingSlots"`

	Level      int            `json:"level"`
	FallRateMs int            `json:"fallRateMs"`
	Scoreboard []ColoredScore `json:"scoreboard"`
	Final      []ColoredScore `json:"final,omitempty"`

	Vote *VoteSnapshot `json:"vote,omitempty"`

	UpdatedAtMs int64 `json:"updatedAtMs"`
}

type VoteSnapshot struct {
	Stage     VoteStage          `json:"stage"`
	Kind      SecondKind         `json:"kind,omitempty"`
	Options   []VoteOption       `json:"options"`
	Drawn     []Piece            `json:"drawn,omitempty"`
	Countdown int                `json:"countdown"`
	Tally     map[VoteOption]int `json:"tally"`
}

// SnapshotSink stores the latest snapshot somewhere outside the process.
type SnapshotSink interface {
	Save(ctx context.Context, snap SessionSnapshot) error
}

func (s *Session) snapshotLocked() SessionSnapshot {
	snap := SessionSnapshot{
		MatchID:        s.matchID,
		Phase:          s.phase.Current(),
		Connections:    s.reg.Count(),
		RemainingSlots: s.admission.Remaining(),
		Level:          s.level.Level(),
		FallRateMs:     s.level.FallRateMs(),
		Scoreboard:     s.score.Board(s.level.Level()),
		Final:          s.score.Final(),
		UpdatedAtMs:    s.clock.Now().UnixMilli(),
	}
	if stage, kind, opts, drawn, ok := s.voting.Active(); ok {
		n, _ := s.voting.Countdown()
		snap.Vote = &VoteSnapshot{
			Stage:     stage,
			Kind:      kind,
			Options:   opts,
			Drawn:     drawn,
			Countdown: n,
			Tally:     s.voting.Tally(),
		}
	}
	return snap
}

// snapshotWriter hands snapshots to a sink from a single goroutine so the
// session never waits on I/O. Only the newest pending snapshot is kept.
type snapshotWriter struct {
	sink    SnapshotSink
	pending chan SessionSnapshot
	timeout time.Duration
	log     *slog.Logger
}

func newSnapshotWriter(sink SnapshotSink, log *slog.Logger) *snapshotWriter {
	return &snapshotWriter{
		sink:    sink,
		pending: make(chan SessionSnapshot, 1),
		timeout: 2 * time.Second,
		log:     log,
	}
}

// push is called with the session lock held, so there is a single producer.
func (w *snapshotWriter) push(snap SessionSnapshot) {
	select {
	case <-w.pending:
	default:
	}
	select {
	case w.pending <- snap:
	default:
	}
}

func (w *snapshotWriter) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-w.pending:
			saveCtx, cancel := context.WithTimeout(ctx, w.timeout)
			if err := w.sink.Save(saveCtx, snap); err != nil {
				w.log.Warn("snapshot save failed", "match", snap.MatchID, "err", err)
			}
			cancel()
		}
	}
}
