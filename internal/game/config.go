package game

import "time"

// SameOfferPolicy decides what happens when the current holder of a trade
// slot offers again before anyone accepts.
type SameOfferPolicy string

const (
	SameOfferIgnore    SameOfferPolicy = "ignore"
	SameOfferOverwrite SameOfferPolicy = "overwrite"
)

type Config struct {
	VoteRoundSeconds  int           // countdown length of one voting round
	VoteDecisionDelay time.Duration // tail between voting closing and the decision
	VoteDedup         bool          // one vote per connection per round

	WatchdogTimeout      time.Duration
	MatchEndToLobbyDelay time.Duration

	LevelUpThreshold  int
	InitialFallRateMs int
	FallRateStepMs    int
	FallRateFloorMs   int
	FallRateCeilingMs int

	RandomPairInterval time.Duration // 0 => no system-assigned trade pairs
	TradeSamePolicy    SameOfferPolicy
}

func DefaultConfig() Config {
	return Config{
		VoteRoundSeconds:     10,
		VoteDecisionDelay:    2 * time.Second,
		VoteDedup:            true,
		WatchdogTimeout:      5 * time.Second,
		MatchEndToLobbyDelay: 30 * time.Second,
		LevelUpThreshold:     100,
		InitialFallRateMs:    1000,
		FallRateStepMs:       100,
		FallRateFloorMs:      100,
		FallRateCeilingMs:    2000,
		RandomPairInterval:   45 * time.Second,
		TradeSamePolicy:      SameOfferIgnore,
	}
}

// normalized replaces values that would break the state machines with defaults.
func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.VoteRoundSeconds <= 0 {
		c.VoteRoundSeconds = d.VoteRoundSeconds
	}
	if c.VoteDecisionDelay < 0 {
		c.VoteDecisionDelay = 0
	}
	if c.WatchdogTimeout <= 0 {
		c.WatchdogTimeout = d.WatchdogTimeout
	}
	if c.MatchEndToLobbyDelay < 0 {
		c.MatchEndToLobbyDelay = 0
	}
	if c.LevelUpThreshold <= 0 {
		c.LevelUpThreshold = d.LevelUpThreshold
	}
	if c.FallRateFloorMs <= 0 {
		c.FallRateFloorMs = d.FallRateFloorMs
	}
	if c.FallRateCeilingMs <= 0 {
		c.FallRateCeilingMs = d.FallRateCeilingMs
	}
	if c.FallRateCeilingMs < c.FallRateFloorMs {
		c.FallRateCeilingMs = c.FallRateFloorMs
	}
	if c.InitialFallRateMs <= 0 {
		c.InitialFallRateMs = d.InitialFallRateMs
	}
	c.InitialFallRateMs = clamp(c.InitialFallRateMs, c.FallRateFloorMs, c.FallRateCeilingMs)
	if c.FallRateStepMs < 0 {
		c.FallRateStepMs = 0
	}
	if c.RandomPairInterval < 0 {
		c.RandomPairInterval = 0
	}
	if c.TradeSamePolicy != SameOfferOverwrite {
		c.TradeSamePolicy = SameOfferIgnore
	}
	return c
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
