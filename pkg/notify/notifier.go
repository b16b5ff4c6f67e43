// Package notify delivers win announcements to the audiences watching a club's wheel.
package notify

import (
	"context"
	"errors"

	"github.com/fadedpez/clubwheel/internal/logging"
	"github.com/fadedpez/clubwheel/pkg/entities"
)

//go:generate mockgen -source=$GOFILE -destination=mock/mock.go -package=mock_notify

// WinEvent is broadcast after every successful spin
type WinEvent struct {
	ClubID        string               `json:"clubId"`
	PrizeName     string               `json:"prizeName"`
	PlayerDisplay string               `json:"playerDisplay"`
	Recent        []entities.RecentWin `json:"recentWins"`
}

// Notifier delivers win events. Delivery failures never undo a spin.
type Notifier interface {
	NotifyWin(ctx context.Context, event WinEvent) error
}

// LogNotifier writes win events to the application log
type LogNotifier struct {
	log *logging.Logger
}

// NewLogNotifier creates a notifier that only logs
func NewLogNotifier(logger *logging.Logger) *LogNotifier {
	if logger == nil {
		logger = logging.Default
	}
	return &LogNotifier{log: logger.With("notify")}
}

// NotifyWin implements Notifier
func (n *LogNotifier) NotifyWin(ctx context.Context, event WinEvent) error {
	n.log.Info("club %s: %s won %s (%d recent)", event.ClubID, event.PlayerDisplay, event.PrizeName, len(event.Recent))
	return nil
}

// Multi fans an event out to several notifiers
type Multi []Notifier

// NotifyWin delivers to every notifier and joins their errors
func (m Multi) NotifyWin(ctx context.Context, event WinEvent) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.NotifyWin(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
