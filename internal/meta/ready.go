package meta

import (
	"context"
	"time"
)

// Readiness polling budget: 50 attempts at 100ms, roughly 5 seconds.
const (
	readyPollInterval = 100 * time.Millisecond
	readyPollAttempts = 50
)

// waitForFlag polls flag at the given interval until it reports true,
// the attempt budget is exhausted (ErrSDKTimeout) or the context is
// cancelled. It is the only network-adjacent wait in the system that
// carries a deadline.
func waitForFlag(ctx context.Context, flag func() bool, interval time.Duration, attempts int) error {
	if flag() {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 0; i < attempts; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if flag() {
				return nil
			}
		}
	}
	return ErrSDKTimeout
}
