package scheduler

import (
	"context"
	"time"

	"github.com/fadedpez/clubwheel/internal/logging"
)

const (
	BanSweepInterval    = 15 * time.Minute
	PINBackfillInterval = 6 * time.Hour
	IndexPruneInterval  = 24 * time.Hour
)

// BanSweeper lifts bans whose expiry has passed
type BanSweeper interface {
	LiftExpiredBans(ctx context.Context) (int, error)
}

// ClubBackfiller assigns missing PINs and join tokens
type ClubBackfiller interface {
	BackfillMissing(ctx context.Context) (int, error)
}

// IndexPruner deletes spin indices past their retention
type IndexPruner interface {
	PruneOldIndices(ctx context.Context, now time.Time) ([]string, error)
}

// Maintenance wires the periodic housekeeping jobs onto a Scheduler
type Maintenance struct {
	scheduler *Scheduler
	log       *logging.Logger
	now       func() time.Time
}

// NewMaintenance registers the housekeeping tasks. Nil dependencies are skipped.
func NewMaintenance(bans BanSweeper, clubs ClubBackfiller, indices IndexPruner, logger *logging.Logger) *Maintenance {
	if logger == nil {
		logger = logging.Default
	}
	m := &Maintenance{
		scheduler: NewScheduler(logger),
		log:       logger.With("maintenance"),
		now:       time.Now,
	}

	if bans != nil {
		m.scheduler.AddTask("ban_sweep", BanSweepInterval, func(ctx context.Context) error {
			lifted, err := bans.LiftExpiredBans(ctx)
			if err != nil {
				return err
			}
			if lifted > 0 {
				m.log.Info("Lifted %d expired bans", lifted)
			}
			return nil
		})
	}
	if clubs != nil {
		m.scheduler.AddTask("club_pin_backfill", PINBackfillInterval, func(ctx context.Context) error {
			updated, err := clubs.BackfillMissing(ctx)
			if err != nil {
				return err
			}
			if updated > 0 {
				m.log.Info("Backfilled identifiers for %d clubs", updated)
			}
			return nil
		})
	}
	if indices != nil {
		m.scheduler.AddTask("index_pruning", IndexPruneInterval, func(ctx context.Context) error {
			deleted, err := indices.PruneOldIndices(ctx, m.now())
			if err != nil {
				return err
			}
			for _, index := range deleted {
				m.log.Info("Deleted expired spin index %s", index)
			}
			return nil
		})
	}
	return m
}

// Tasks returns the names of the registered tasks
func (m *Maintenance) Tasks() []string {
	return m.scheduler.Tasks()
}

// Start begins running the housekeeping tasks
func (m *Maintenance) Start(ctx context.Context) {
	m.scheduler.Start(ctx)
}

// Stop halts the housekeeping tasks
func (m *Maintenance) Stop() {
	m.scheduler.Stop()
}
