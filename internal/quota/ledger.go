// Package quota tracks per-key usage against rolling UTC daily and monthly
// windows. The reset, limit check and charge are a single atomic step inside
// the storage layer; this package supplies the clock and the client-facing
// error shape.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"snipr/internal/repository"
)

// Window names the quota window that was exhausted.
type Window string

const (
	WindowDaily   Window = "daily"
	WindowMonthly Window = "monthly"
)

// RateLimitError reports which window a caller ran into so clients can back
// off appropriately.
type RateLimitError struct {
	Window Window
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %s", e.Window)
}

// Ledger charges quota-consuming operations against a key's rolling windows.
type Ledger struct {
	storage repository.Storage
	now     func() time.Time
}

func NewLedger(storage repository.Storage) *Ledger {
	return &Ledger{
		storage: storage,
		now:     time.Now,
	}
}

// WithClock overrides the ledger's clock. Used in tests to simulate window
// rollovers.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// CheckAndConsume charges units against the key identified by token,
// applying lazy window resets first. It fails with a *RateLimitError when a
// limit is hit, in which case nothing is charged.
func (l *Ledger) CheckAndConsume(ctx context.Context, token string, units int) error {
	err := l.storage.ConsumeQuota(ctx, token, units, l.now().UTC())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrDailyLimitExceeded):
		return &RateLimitError{Window: WindowDaily}
	case errors.Is(err, repository.ErrMonthlyLimitExceeded):
		return &RateLimitError{Window: WindowMonthly}
	default:
		return fmt.Errorf("failed to consume quota: %w", err)
	}
}
