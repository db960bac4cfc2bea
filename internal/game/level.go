package game

// LevelProgression owns the level number and the fall rate (milliseconds per
// row; smaller is faster).
type LevelProgression struct {
	level      int
	fallRateMs int

	threshold int
	step      int
	floor     int
	ceiling   int
}

func NewLevelProgression(cfg Config) *LevelProgression {
	return &LevelProgression{
		level:      1,
		fallRateMs: cfg.InitialFallRateMs,
		threshold:  cfg.LevelUpThreshold,
		step:       cfg.FallRateStepMs,
		floor:      cfg.FallRateFloorMs,
		ceiling:    cfg.FallRateCeilingMs,
	}
}

func (l *LevelProgression) Level() int      { return l.level }
func (l *LevelProgression) FallRateMs() int { return l.fallRateMs }

// CheckLevelUp advances the level when the accumulated score reached the
// threshold. Each level speeds the fall rate by one step.
func (l *LevelProgression) CheckLevelUp(accumulated int) bool {
	if accumulated < l.threshold {
		return false
	}
	l.level++
	l.fallRateMs = clamp(l.fallRateMs-l.step, l.floor, l.ceiling)
	return true
}

// IncreaseFallRate makes pieces fall faster.
func (l *LevelProgression) IncreaseFallRate() int {
	l.fallRateMs = clamp(l.fallRateMs-l.step, l.floor, l.ceiling)
	return l.fallRateMs
}

// DecreaseFallRate makes pieces fall slower.
func (l *LevelProgression) DecreaseFallRate() int {
	l.fallRateMs = clamp(l.fallRateMs+l.step, l.floor, l.ceiling)
	return l.fallRateMs
}
