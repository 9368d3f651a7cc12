package weather

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"floodloop/internal/config"
	"floodloop/internal/risk"
	"floodloop/internal/types"
)

// Event is one tick of the live feed. Either Err is set (the upstream fetch
// failed) or Observation and Risk carry the tick's data. The feed keeps
// running after error ticks; only context cancellation stops it.
type Event struct {
	Observation types.Observation
	Risk        types.RiskScore
	Timestamp   time.Time
	Err         error
}

// EmitFunc receives each feed event. It is called from the feed's goroutine;
// implementations that write to a network stream must handle their own
// flushing.
type EmitFunc func(Event)

// LiveFeed polls the upstream weather provider at a fixed interval, scores
// every observation, and emits the results until the context is cancelled.
type LiveFeed struct {
	fetcher Fetcher
	cfg     config.FeedConfig
	clock   clockwork.Clock
	logger  *slog.Logger
}

// NewLiveFeed creates a LiveFeed. The clock is injectable for tests; pass
// clockwork.NewRealClock() in production.
func NewLiveFeed(fetcher Fetcher, cfg config.FeedConfig, clock clockwork.Clock, logger *slog.Logger) *LiveFeed {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LiveFeed{
		fetcher: fetcher,
		cfg:     cfg,
		clock:   clock,
		logger:  logger,
	}
}

// ClampInterval forces a requested polling interval into the configured
// [MinInterval, MaxInterval] window. A zero or negative interval falls back
// to the default.
func (f *LiveFeed) ClampInterval(interval time.Duration) time.Duration {
	if interval <= 0 {
		interval = f.cfg.DefaultInterval
	}
	if interval < f.cfg.MinInterval {
		return f.cfg.MinInterval
	}
	if interval > f.cfg.MaxInterval {
		return f.cfg.MaxInterval
	}
	return interval
}

// Run polls until ctx is cancelled, emitting one Event per tick. The first
// tick happens immediately; subsequent ticks follow every interval. Fetch
// failures emit an error Event and the loop continues; the next tick still
// waits the full interval.
//
// Run returns ctx.Err() once the context is cancelled, including when the
// cancellation arrives mid-delay.
func (f *LiveFeed) Run(ctx context.Context, lat, lon float64, interval time.Duration, emit EmitFunc) error {
	interval = f.ClampInterval(interval)

	f.logger.InfoContext(ctx, "live feed started",
		"lat", lat,
		"lon", lon,
		"interval", interval.String(),
	)

	for {
		f.tick(ctx, lat, lon, emit)

		select {
		case <-ctx.Done():
			f.logger.InfoContext(ctx, "live feed stopped", "lat", lat, "lon", lon)
			return ctx.Err()
		case <-f.clock.After(interval):
		}
	}
}

func (f *LiveFeed) tick(ctx context.Context, lat, lon float64, emit EmitFunc) {
	obs, err := f.fetcher.Fetch(ctx, lat, lon)
	now := f.clock.Now().UTC()

	// A fetch aborted by cancellation is not an upstream failure; emitting
	// nothing lets Run's select terminate the loop silently.
	if ctx.Err() != nil {
		return
	}

	if err != nil {
		f.logger.WarnContext(ctx, "live feed fetch failed",
			"lat", lat,
			"lon", lon,
			"error", err,
		)
		emit(Event{Err: err, Timestamp: now})
		return
	}

	emit(Event{
		Observation: obs,
		Risk:        risk.Score(obs),
		Timestamp:   now,
	})
}
