package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"example.com/tetra-coop/internal/game"
	"github.com/caarlos0/env/v11"
)

const devSecret = "dev-secret-change-me"

// Config describes all runtime settings for the server. It is loaded once in
// main, validated, and handed down explicitly.
type Config struct {
	Env string `env:"APP_ENV" envDefault:"dev"` // dev|stage|prod

	Log      Log
	HTTP     HTTP
	Postgres Postgres
	Redis    Redis
	Auth     Auth
	Game     Game
}

type Log struct {
	Format string `env:"LOG_FORMAT" envDefault:"text"` // text|json
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
}

type HTTP struct {
	Addr              string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT"`
	WriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout   time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Postgres holds the match result archive. An empty URL disables it.
type Postgres struct {
	URL           string `env:"DATABASE_URL"`
	RunMigrations bool   `env:"RUN_MIGRATIONS" envDefault:"false"`
}

// Redis holds the live session mirror. An empty address disables it.
type Redis struct {
	Addr        string        `env:"REDIS_ADDR"`
	DB          int           `env:"REDIS_DB" envDefault:"0"`
	SnapshotTTL time.Duration `env:"SNAPSHOT_TTL" envDefault:"24h"`
}

type Auth struct {
	Secret       string        `env:"SEAT_TOKEN_SECRET" envDefault:"dev-secret-change-me"`
	SeatTokenTTL time.Duration `env:"SEAT_TOKEN_TTL" envDefault:"2h"`
}

type Game struct {
	VoteRoundSeconds     int           `env:"VOTE_ROUND_SECONDS" envDefault:"10"`
	VoteDecisionDelay    time.Duration `env:"VOTE_DECISION_DELAY" envDefault:"2s"`
	VoteDedup            bool          `env:"VOTE_DEDUP" envDefault:"true"`
	WatchdogTimeout      time.Duration `env:"WATCHDOG_TIMEOUT" envDefault:"5s"`
	MatchEndToLobbyDelay time.Duration `env:"MATCH_END_TO_LOBBY_DELAY" envDefault:"30s"`
	LevelUpThreshold     int           `env:"LEVEL_UP_THRESHOLD" envDefault:"100"`
	InitialFallRateMs    int           `env:"INITIAL_FALL_RATE_MS" envDefault:"1000"`
	FallRateStepMs       int           `env:"FALL_RATE_STEP_MS" envDefault:"100"`
	FallRateFloorMs      int           `env:"FALL_RATE_FLOOR_MS" envDefault:"100"`
	FallRateCeilingMs    int           `env:"FALL_RATE_CEILING_MS" envDefault:"2000"`
	RandomPairInterval   time.Duration `env:"RANDOM_PAIR_INTERVAL" envDefault:"45s"`
	TradeSameOffer       string        `env:"TRADE_SAME_OFFER" envDefault:"ignore"` // ignore|overwrite
}

func LoadFromEnv() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("HTTP_ADDR is empty")
	}
	if c.Auth.Secret == "" {
		return errors.New("SEAT_TOKEN_SECRET is empty")
	}
	if c.Env != "dev" && c.Auth.Secret == devSecret {
		return fmt.Errorf("refuse to run with default SEAT_TOKEN_SECRET in %s", c.Env)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("unsupported LOG_FORMAT=%q (want text|json)", c.Log.Format)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	if c.Postgres.RunMigrations && c.Postgres.URL == "" {
		return errors.New("RUN_MIGRATIONS needs DATABASE_URL")
	}

	g := c.Game
	if g.VoteRoundSeconds <= 0 {
		return fmt.Errorf("VOTE_ROUND_SECONDS must be positive, got %d", g.VoteRoundSeconds)
	}
	if g.WatchdogTimeout <= 0 {
		return fmt.Errorf("WATCHDOG_TIMEOUT must be positive, got %s", g.WatchdogTimeout)
	}
	if g.LevelUpThreshold <= 0 {
		return fmt.Errorf("LEVEL_UP_THRESHOLD must be positive, got %d", g.LevelUpThreshold)
	}
	if g.FallRateFloorMs <= 0 || g.FallRateCeilingMs < g.FallRateFloorMs {
		return fmt.Errorf("fall rate bounds [%d, %d] are invalid", g.FallRateFloorMs, g.FallRateCeilingMs)
	}
	switch game.SameOfferPolicy(g.TradeSameOffer) {
	case game.SameOfferIgnore, game.SameOfferOverwrite:
	default:
		return fmt.Errorf("unsupported TRADE_SAME_OFFER=%q (want ignore|overwrite)", g.TradeSameOffer)
	}
	return nil
}

func (l Log) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(l.Level))); err != nil {
		return 0, fmt.Errorf("unsupported LOG_LEVEL=%q: %w", l.Level, err)
	}
	return lvl, nil
}

// GameConfig maps the env settings onto the session configuration.
func (c Config) GameConfig() game.Config {
	g := c.Game
	return game.Config{
		VoteRoundSeconds:     g.VoteRoundSeconds,
		VoteDecisionDelay:    g.VoteDecisionDelay,
		VoteDedup:            g.VoteDedup,
		WatchdogTimeout:      g.WatchdogTimeout,
		MatchEndToLobbyDelay: g.MatchEndToLobbyDelay,
		LevelUpThreshold:     g.LevelUpThreshold,
		InitialFallRateMs:    g.InitialFallRateMs,
		FallRateStepMs:       g.FallRateStepMs,
		FallRateFloorMs:      g.FallRateFloorMs,
		FallRateCeilingMs:    g.FallRateCeilingMs,
		RandomPairInterval:   g.RandomPairInterval,
		TradeSamePolicy:      game.SameOfferPolicy(g.TradeSameOffer),
	}
}
