// Package feed keeps the short list of latest wins shown on club screens.
package feed

import (
	"context"
	"strings"
	"time"

	"github.com/fadedpez/clubwheel/pkg/entities"
)

const (
	DefaultCapacity  = 10
	DefaultPrizeName = "Приз"
	maskedFallback   = "+7 *** *** **"
)

// Feed is a bounded, shared list of recent wins, oldest first
type Feed interface {
	// Push appends a win, evicting the oldest beyond capacity, and returns the new contents
	Push(ctx context.Context, win entities.RecentWin) ([]entities.RecentWin, error)

	// Snapshot returns the current contents
	Snapshot(ctx context.Context) ([]entities.RecentWin, error)
}

// MaskPhone hides the middle of a phone number: "+77711234567" becomes "+7 771 *** 4567"
func MaskPhone(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)

	if len(digits) < 4 {
		return maskedFallback
	}
	if digits[0] == '7' || digits[0] == '8' {
		digits = digits[1:]
	}

	first := digits
	if len(first) > 3 {
		first = first[:3]
	}
	last := digits
	if len(last) > 4 {
		last = last[len(last)-4:]
	}
	return "+7 " + first + " *** " + last
}

// NewWin builds the ticker line for a win
func NewWin(phone, playerName, accountID, prizeName string, wonAt time.Time) entities.RecentWin {
	prizeName = strings.TrimSpace(prizeName)
	if prizeName == "" {
		prizeName = DefaultPrizeName
	}
	masked := MaskPhone(phone)

	return entities.RecentWin{
		PrizeName:   prizeName,
		MaskedPhone: masked,
		PlayerName:  strings.TrimSpace(playerName),
		AccountID:   accountID,
		Text:        masked + " выиграл " + prizeName,
		WonAt:       wonAt,
	}
}
