// Package retention evicts old job records and their unclaimed results.
// Job records are otherwise kept indefinitely, so a sweeper bounds store
// growth without touching live work.
package retention

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/you/taskconvert/internal/results"
	"github.com/you/taskconvert/internal/storage"
)

// Janitor periodically deletes jobs older than MaxAge.
type Janitor struct {
	store   storage.Store
	results results.Store
	maxAge  time.Duration
	every   time.Duration
	log     *zap.Logger
}

// New constructs a Janitor sweeping every interval for jobs older than maxAge.
func New(store storage.Store, res results.Store, maxAge, interval time.Duration, log *zap.Logger) *Janitor {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &Janitor{store: store, results: res, maxAge: maxAge, every: interval, log: log}
}

// Run sweeps on a ticker until ctx is cancelled. The first sweep happens
// after one full interval so startup is not delayed.
func (j *Janitor) Run(ctx context.Context) error {
	tick := time.NewTicker(j.every)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
			if err := j.Sweep(ctx); err != nil {
				j.log.Error("retention sweep", zap.Error(err))
			}
		}
	}
}

// Sweep deletes expired jobs and whatever results they left behind.
func (j *Janitor) Sweep(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-j.maxAge)
	deleted, err := j.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	var errs error
	for _, jobID := range deleted {
		errs = multierr.Append(errs, j.results.Delete(ctx, jobID))
	}
	if len(deleted) > 0 {
		j.log.Info("retention sweep complete",
			zap.Int("deleted", len(deleted)),
			zap.Time("cutoff", cutoff))
	}
	return errs
}
