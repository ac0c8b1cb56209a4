package session

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextCronDuration parses a 5-field cron expression and returns the duration
// until the next fire time. Returns 0 on parse error.
func nextCronDuration(expr string, now time.Time) time.Duration {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0
	}
	d := sched.Next(now).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Sweeper periodically expires idle sessions on a cron schedule.
type Sweeper struct {
	manager *Manager
	expr    string
	logger  *zap.Logger
}

// SweeperOpts holds parameters for creating a Sweeper.
type SweeperOpts struct {
	Manager *Manager
	Cron    string // 5-field cron expression, e.g. "*/5 * * * *"
	Logger  *zap.Logger
}

// NewSweeper creates a Sweeper, validating the cron expression up front.
func NewSweeper(opts SweeperOpts) (*Sweeper, error) {
	if opts.Manager == nil {
		return nil, fmt.Errorf("session: sweeper: manager is required")
	}
	if opts.Cron == "" {
		return nil, fmt.Errorf("session: sweeper: cron expression is required")
	}
	if _, err := cronParser.Parse(opts.Cron); err != nil {
		return nil, fmt.Errorf("session: sweeper: invalid cron %q: %w", opts.Cron, err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{manager: opts.Manager, expr: opts.Cron, logger: logger}, nil
}

// Run sweeps on the configured schedule until the context is canceled. A
// failed sweep is logged and the schedule continues.
func (s *Sweeper) Run(ctx context.Context) {
	timer := time.NewTimer(nextCronDuration(s.expr, time.Now()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			n, err := s.manager.Sweep(ctx)
			if err != nil {
				s.logger.Error("session sweep", zap.Error(err))
			} else if n > 0 {
				s.logger.Info("session sweep", zap.Int64("expired", n))
			}
			timer.Reset(nextCronDuration(s.expr, time.Now()))
		}
	}
}
