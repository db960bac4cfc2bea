package game

import (
	"cmp"
	"slices"
)

const (
	levelLabel = "Level"
	totalLabel = "TEAM SCORE"
)

var slotColors = [NumSlots]ColoredScore{
	{Color: "Orange", Hex: 0xffa500},
	{Color: "Green", Hex: 0x00ff00},
	{Color: "Pink", Hex: 0xff00ff},
	{Color: "Blue", Hex: 0x00bfff},
}

// ScoreModel holds per-slot points and the match-wide accumulator that drives
// level-ups. Scores never go negative. Once finalized the model is frozen.
type ScoreModel struct {
	points      [NumSlots]int
	accumulated int

	final []ColoredScore
}

func NewScoreModel() *ScoreModel { return &ScoreModel{} }

func (m *ScoreModel) Points(slot Slot) int {
	if !slot.Valid() {
		return 0
	}
	return m.points[slot]
}

func (m *ScoreModel) Accumulated() int { return m.accumulated }

func (m *ScoreModel) Frozen() bool { return m.final != nil }

func (m *ScoreModel) Total() int {
	t := 0
	for _, p := range m.points {
		t += p
	}
	return t
}

// Increment adds amount to the slot and the accumulator. It reports whether the
// level advanced; on a level-up the accumulator restarts from zero and any
// overflow is dropped.
func (m *ScoreModel) Increment(slot Slot, amount int, lv *LevelProgression) bool {
	if m.Frozen() || !slot.Valid() || amount <= 0 {
		return false
	}
	m.points[slot] += amount
	m.accumulated += amount
	if lv != nil && lv.CheckLevelUp(m.accumulated) {
		m.accumulated = 0
		return true
	}
	return false
}

// Decrement subtracts amount from the slot, flooring at zero. The accumulator
// is not touched.
func (m *ScoreModel) Decrement(slot Slot, amount int) bool {
	if m.Frozen() || !slot.Valid() || amount <= 0 {
		return false
	}
	m.points[slot] = max(m.points[slot]-amount, 0)
	return true
}

func (m *ScoreModel) rows() []ColoredScore {
	rows := make([]ColoredScore, 0, NumSlots+1)
	for i, c := range slotColors {
		c.Points = m.points[i]
		rows = append(rows, c)
	}
	return rows
}

// Board is the live scoreboard: the four slots in slot order plus the level.
func (m *ScoreModel) Board(level int) []ColoredScore {
	return append(m.rows(), ColoredScore{Color: levelLabel, Hex: 0xffffff, Points: level})
}

// Finalize freezes the model and returns the slots ordered by points
// (descending, ties keep slot order) followed by the team total. Later calls
// return the cached result.
func (m *ScoreModel) Finalize() []ColoredScore {
	if m.final == nil {
		rows := m.rows()
		slices.SortStableFunc(rows, func(a, b ColoredScore) int {
			return cmp.Compare(b.Points, a.Points)
		})
		m.final = append(rows, ColoredScore{Color: totalLabel, Hex: 0xffff00, Points: m.Total()})
	}
	return slices.Clone(m.final)
}

// Final returns the cached final scoreboard, or nil before Finalize.
func (m *ScoreModel) Final() []ColoredScore {
	if m.final == nil {
		return nil
	}
	return slices.Clone(m.final)
}
