package referral

import (
	"bytes"
	"context"
	"testing"

	"github.com/fadedpez/clubwheel/internal/logging"
	"github.com/fadedpez/clubwheel/pkg/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockApprover struct {
	mock.Mock
}

func (m *MockApprover) TryApprove(ctx context.Context, spenderID string) error {
	return m.Called(spenderID).Error(0)
}

func TestDispatcherRunsApprovalInBackground(t *testing.T) {
	logger := logging.NewLoggerTo(&bytes.Buffer{}, logging.DEBUG)
	approver := new(MockApprover)
	approver.On("TryApprove", "player-1").Return(nil).Once()

	pool := worker.NewPool(1, 4, logger)
	pool.Start(context.Background())

	NewDispatcher(approver, pool, logger).Dispatch("player-1")
	pool.Stop()

	approver.AssertExpectations(t)
}

func TestDispatcherDropsWhenPoolStopped(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLoggerTo(&buf, logging.DEBUG)
	approver := new(MockApprover)

	pool := worker.NewPool(1, 1, logger)
	pool.Stop()

	NewDispatcher(approver, pool, logger).Dispatch("player-1")

	approver.AssertNotCalled(t, "TryApprove", mock.Anything)
	assert.Contains(t, buf.String(), "Dropped referral approval for player-1")
}
