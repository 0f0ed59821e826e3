package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var standardCronParser = cron.NewParser(
	cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow,
)

// ParseRefreshSchedule parses a UTC-only five-field cron expression.
func ParseRefreshSchedule(expr string) (cron.Schedule, error) {
	clean := strings.TrimSpace(expr)
	if clean == "" {
		return nil, fmt.Errorf("market: refresh schedule is required")
	}

	upper := strings.ToUpper(clean)
	if strings.Contains(upper, "CRON_TZ=") || strings.Contains(upper, "TZ=") {
		return nil, fmt.Errorf("market: refresh schedule must be UTC-only (timezone prefixes are not allowed)")
	}

	schedule, err := standardCronParser.Parse(clean)
	if err != nil {
		return nil, fmt.Errorf("market: invalid refresh schedule: %w", err)
	}
	return schedule, nil
}

// RefresherConfig configures the background cache refresher.
type RefresherConfig struct {
	Provider *CachingProvider
	Schedule string
	Logger   *slog.Logger
	Now      func() time.Time
}

// Refresher re-warms the quote cache on a cron schedule so agents querying
// popular tickers mostly hit fresh data.
type Refresher struct {
	provider *CachingProvider
	schedule cron.Schedule
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRefresher creates a refresher for the given cron expression.
func NewRefresher(cfg RefresherConfig) (*Refresher, error) {
	if cfg.Provider == nil {
		return nil, errors.New("market: refresher provider is nil")
	}
	schedule, err := ParseRefreshSchedule(cfg.Schedule)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Refresher{
		provider: cfg.Provider,
		schedule: schedule,
		logger:   logger,
		now:      now,
	}, nil
}

// Start begins the refresh loop. Calling Start on a running refresher is a
// no-op.
func (r *Refresher) Start(_ context.Context) error {
	if r == nil {
		return errors.New("market: refresher is nil")
	}

	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return nil
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done
	r.mu.Unlock()

	go r.loop(loopCtx, done)
	return nil
}

// Stop halts the loop and waits for it to drain, bounded by ctx.
func (r *Refresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	cancel := r.cancel
	done := r.done
	r.cancel = nil
	r.done = nil
	r.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Refresher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		next := r.schedule.Next(r.now().UTC())
		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if err := r.provider.Refresh(ctx); err != nil {
			r.logger.Warn("quote cache refresh failed", "error", err)
			continue
		}
		r.logger.Debug("quote cache refreshed", "at", r.now())
	}
}
