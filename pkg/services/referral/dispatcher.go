package referral

import (
	"context"

	"github.com/fadedpez/clubwheel/internal/logging"
	"github.com/fadedpez/clubwheel/pkg/worker"
)

// Approver is what the dispatcher runs in the background
type Approver interface {
	TryApprove(ctx context.Context, spenderID string) error
}

// Dispatcher queues referral approvals so spins never wait on them
type Dispatcher struct {
	approver Approver
	pool     *worker.Pool
	log      *logging.Logger
}

// NewDispatcher creates a dispatcher running approvals on pool
func NewDispatcher(approver Approver, pool *worker.Pool, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default
	}
	return &Dispatcher{
		approver: approver,
		pool:     pool,
		log:      logger.With("referral"),
	}
}

// Dispatch queues an approval attempt for the spender; a full queue drops it with a warning
func (d *Dispatcher) Dispatch(spenderID string) {
	err := d.pool.Submit(worker.Job{
		Name: "referral:" + spenderID,
		Fn: func(ctx context.Context) error {
			return d.approver.TryApprove(ctx, spenderID)
		},
	})
	if err != nil {
		d.log.Warn("Dropped referral approval for %s: %v", spenderID, err)
	}
}
