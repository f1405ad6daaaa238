package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/resumegate/internal/logging"
)

// Sweeper periodically drops lock records that expired more than grace ago.
// Lockout decisions never depend on it; it only keeps the store small.
type Sweeper struct {
	gate     *GateService
	interval time.Duration
	grace    time.Duration
	log      logging.Logger
}

func NewSweeper(gate *GateService, interval, grace time.Duration, log logging.Logger) *Sweeper {
	return &Sweeper{gate: gate, interval: interval, grace: grace, log: log.With("module", "sweeper")}
}

// Run sweeps every interval until ctx is done. A non-positive interval
// disables sweeping.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.log.Info(ctx, "sweeper disabled")
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single pass and reports how many records went away.
func (s *Sweeper) SweepOnce(ctx context.Context) int64 {
	n, err := s.gate.SweepExpired(ctx, timeNow().Add(-s.grace))
	if err != nil {
		s.log.Warn(ctx, "sweep failed", "error", err)
		return 0
	}
	return n
}
