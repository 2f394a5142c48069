// Package jobs runs the in-process periodic work: the optional monthly
// quota rollover and rate limiter housekeeping.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"sportclub/internal/logging"
	quotamodule "sportclub/internal/modules/quota"
)

type Rollover interface {
	AdvanceAllToNextMonth(ctx context.Context, actorID int64) (*quotamodule.RolloverResult, error)
}

type Sweeper interface {
	Sweep()
}

type Scheduler struct {
	cron *cron.Cron
}

// New registers the jobs. rolloverSpec empty leaves the rollover to the
// admin endpoint and cmd/rollover.
func New(location *time.Location, rolloverSpec string, rollover Rollover, sweeper Sweeper) (*Scheduler, error) {
	c := cron.New(cron.WithLocation(location))

	if rolloverSpec != "" {
		if _, err := c.AddFunc(rolloverSpec, func() { runRollover(rollover) }); err != nil {
			return nil, fmt.Errorf("invalid ROLLOVER_CRON %q: %w", rolloverSpec, err)
		}
		logging.Info().Str("spec", rolloverSpec).Msg("rollover job scheduled")
	}
	if sweeper != nil {
		if _, err := c.AddFunc("@every 10m", sweeper.Sweep); err != nil {
			return nil, err
		}
	}
	return &Scheduler{cron: c}, nil
}

func runRollover(r Rollover) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	res, err := r.AdvanceAllToNextMonth(ctx, 0)
	if err != nil {
		logging.Error().Err(err).Msg("scheduled rollover failed")
		return
	}
	logging.Info().Int("created", res.Created).Int("members", res.Members).Msg("scheduled rollover done")
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
