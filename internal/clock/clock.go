// Package clock abstracts time so timestamping and poll waits are testable.
package clock

import (
	"context"
	"time"
)

// Clock supplies the current time and context-aware waits.
type Clock interface {
	// Now returns the current time in UTC.
	Now() time.Time
	// Sleep blocks for d or until the context finishes, whichever is first.
	Sleep(ctx context.Context, d time.Duration)
}

// System implements Clock with the real wall clock.
type System struct{}

// NewSystem creates a System clock.
func NewSystem() *System {
	return &System{}
}

// Now returns the current UTC time.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Sleep waits for d, returning early if ctx finishes.
func (System) Sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
