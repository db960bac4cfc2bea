package game

import "encoding/json"

// Envelope WS frame: {"type":"...","args":[...]}
type Envelope struct {
	Type string            `json:"type"`
	Args []json.RawMessage `json:"args,omitempty"`
}

// ConnID identifies one live connection for the lifetime of the process.
type ConnID string

// Slot is a participant identity 0..3. Spectators hold no slot.
type Slot int

const (
	NumSlots = 4

	Spectator Slot = -1
)

func (s Slot) Valid() bool { return s >= 0 && s < NumSlots }

type Phase string

const (
	PhaseLobby  Phase = "lobby"
	PhaseActive Phase = "active"
	PhaseEnded  Phase = "ended"
)

// next is the only phase this one may move to.
func (p Phase) next() Phase {
	switch p {
	case PhaseLobby:
		return PhaseActive
	case PhaseActive:
		return PhaseEnded
	default:
		return PhaseLobby
	}
}

// Piece is a tetromino type.
type Piece string

const (
	PieceI Piece = "I"
	PieceO Piece = "O"
	PieceT Piece = "T"
	PieceS Piece = "S"
	PieceZ Piece = "Z"
	PieceJ Piece = "J"
	PieceL Piece = "L"
)

var AllPieces = []Piece{PieceI, PieceO, PieceT, PieceS, PieceZ, PieceJ, PieceL}

func (p Piece) Valid() bool {
	for _, q := range AllPieces {
		if p == q {
			return true
		}
	}
	return false
}

type ColoredScore struct {
	Color  string `json:"color"`
	Hex    int    `json:"hex"`
	Points int    `json:"points"`
}

// inbound
const (
	MsgAdmit               = "admit"
	MsgReportMove          = "reportMove"
	MsgReportPlace         = "reportPlace"
	MsgAwardPoints         = "awardPoints"
	MsgDeductPoints        = "deductPoints"
	MsgRequestScoreboard   = "requestScoreboard"
	MsgRequestActiveVote   = "requestActiveVote"
	MsgCastVote            = "castVote"
	MsgRequestCountdown    = "requestCountdown"
	MsgOfferTrade          = "offerTrade"
	MsgOfferRandomTrade    = "offerRandomTrade"
	MsgCancelTrade         = "cancelTrade"
	MsgEndMatch            = "endMatch"
	MsgRequestCurrentPhase = "requestCurrentPhase"
	MsgReclaimSeat         = "reclaimSeat"
)

// outbound
const (
	EvAssignedIdentity      = "assignedIdentity"
	EvSeatToken             = "seatToken"
	EvRemainingSlotsChanged = "remainingSlotsChanged"
	EvPhaseChanged          = "phaseChanged"
	EvScoreboardChanged     = "scoreboardChanged"
	EvFallRateChanged       = "fallRateChanged"
	EvVoteOpened            = "voteOpened"
	EvVoteClosed            = "voteClosed"
	EvCountdownTick         = "countdownTick"
	EvBlocksRandomized      = "blocksRandomized"
	EvPieceGranted          = "pieceGranted"
	EvMoveRebroadcast       = "moveRebroadcast"
	EvPlaceRebroadcast      = "placeRebroadcast"
	EvTradeOffered          = "tradeOffered"
	EvTradeCompleted        = "tradeCompleted"
	EvTradeCancelled        = "tradeCancelled"
	EvRandomTradePaired     = "randomTradePaired"
	EvMatchEnded            = "matchEnded"
	EvSeatVacated           = "seatVacated"
)

// encodeFrame marshals an outbound event with positional args.
func encodeFrame(event string, vals []any) ([]byte, error) {
	env := Envelope{Type: event}
	if len(vals) > 0 {
		env.Args = make([]json.RawMessage, len(vals))
		for i, a := range vals {
			if raw, ok := a.(json.RawMessage); ok {
				env.Args[i] = raw
				continue
			}
			b, err := json.Marshal(a)
			if err != nil {
				return nil, err
			}
			env.Args[i] = b
		}
	}
	return json.Marshal(env)
}

// args gives typed, bounds-checked access to positional arguments.
// Every accessor reports false on a missing or mistyped argument.
type args []json.RawMessage

func (a args) rawAt(i int) (json.RawMessage, bool) {
	if i < 0 || i >= len(a) || len(a[i]) == 0 || string(a[i]) == "null" {
		return nil, false
	}
	return a[i], true
}

func (a args) intAt(i int) (int, bool) {
	r, ok := a.rawAt(i)
	if !ok {
		return 0, false
	}
	var n int
	if err := json.Unmarshal(r, &n); err != nil {
		return 0, false
	}
	return n, true
}

func (a args) stringAt(i int) (string, bool) {
	r, ok := a.rawAt(i)
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(r, &s); err != nil {
		return "", false
	}
	return s, true
}
