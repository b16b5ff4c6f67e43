package spin

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/fadedpez/clubwheel/internal/types"
	spinRepo "github.com/fadedpez/clubwheel/pkg/repositories/spin"
)

const DefaultCooldown = 23 * time.Second

// CooldownGate lets a club's wheel run at most once per window
type CooldownGate struct {
	spins  spinRepo.Repository
	window time.Duration
	now    func() time.Time
}

// NewCooldownGate creates a gate over the club's spin history. A non-positive window means DefaultCooldown.
func NewCooldownGate(spins spinRepo.Repository, window time.Duration, now func() time.Time) *CooldownGate {
	if now == nil {
		now = time.Now
	}
	if window <= 0 {
		window = DefaultCooldown
	}
	return &CooldownGate{
		spins:  spins,
		window: window,
		now:    now,
	}
}

// Check fails with RouletteBusy while the club's last spin is younger than the window
func (g *CooldownGate) Check(ctx context.Context, clubID string) error {
	last, err := g.spins.LatestForClub(ctx, clubID)
	if errors.Is(err, spinRepo.ErrSpinNotFound) {
		return nil
	}
	if err != nil {
		return types.Wrap(types.ErrDatabaseError, "error loading last spin", err)
	}

	elapsed := g.now().Sub(last.CreatedAt)
	if elapsed >= g.window {
		return nil
	}

	retry := int(math.Ceil((g.window - elapsed).Seconds()))
	if retry < 1 {
		retry = 1
	}
	return types.Busy(retry)
}
