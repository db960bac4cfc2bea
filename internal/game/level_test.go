package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevel_FallRateIsClamped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialFallRateMs = 300
	cfg.FallRateStepMs = 100
	cfg.FallRateFloorMs = 150
	cfg.FallRateCeilingMs = 500
	lv := NewLevelProgression(cfg.normalized())

	assert.Equal(t, 200, lv.IncreaseFallRate())
	assert.Equal(t, 150, lv.IncreaseFallRate())
	assert.Equal(t, 150, lv.IncreaseFallRate())

	for i := 0; i < 10; i++ {
		lv.DecreaseFallRate()
	}
	assert.Equal(t, 500, lv.FallRateMs())
	assert.Equal(t, 1, lv.Level(), "voting never touches the level")
}

func TestLevel_CheckLevelUp(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LevelUpThreshold = 50
	lv := NewLevelProgression(cfg.normalized())

	assert.False(t, lv.CheckLevelUp(49))
	assert.True(t, lv.CheckLevelUp(50))
	assert.True(t, lv.CheckLevelUp(120))
	assert.Equal(t, 3, lv.Level())
	assert.Equal(t, cfg.InitialFallRateMs-2*cfg.FallRateStepMs, lv.FallRateMs())
}

func TestConfig_Normalized(t *testing.T) {
	c := Config{}.normalized()
	d := DefaultConfig()

	assert.Equal(t, d.VoteRoundSeconds, c.VoteRoundSeconds)
	assert.Equal(t, d.WatchdogTimeout, c.WatchdogTimeout)
	assert.Equal(t, d.LevelUpThreshold, c.LevelUpThreshold)
	assert.Equal(t, d.FallRateFloorMs, c.FallRateFloorMs)
	assert.Equal(t, d.FallRateCeilingMs, c.FallRateCeilingMs)
	assert.Equal(t, d.InitialFallRateMs, c.InitialFallRateMs)
	assert.Equal(t, SameOfferIgnore, c.TradeSamePolicy)
	assert.Zero(t, c.RandomPairInterval)

	c = Config{FallRateFloorMs: 400, FallRateCeilingMs: 200, InitialFallRateMs: 50}.normalized()
	assert.Equal(t, 400, c.FallRateCeilingMs)
	assert.Equal(t, 400, c.InitialFallRateMs)
}
