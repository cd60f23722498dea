// Package refresher keeps the access token fresh in the background while the
// CLI is running.
package refresher

import (
	"context"
	"time"

	"github.com/dmitrijs2005/dulo/internal/logging"
)

// DefaultInterval is how often the token age is checked.
const DefaultInterval = 2 * time.Minute

// TokenClient is the part of the API client the refresher drives.
type TokenClient interface {
	ShouldRefresh(ctx context.Context) bool
	Refresh(ctx context.Context) (string, error)
}

type Refresher struct {
	client   TokenClient
	interval time.Duration
	log      logging.Logger
}

func New(c TokenClient, interval time.Duration, log logging.Logger) *Refresher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Refresher{client: c, interval: interval, log: log}
}

// Run checks once immediately and then on every tick until ctx is done.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Trigger(ctx)
	for {
		select {
		case <-ticker.C:
			r.Trigger(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Trigger refreshes the token now if it is due. Failures are logged only;
// the next protected command sends the user to login.
func (r *Refresher) Trigger(ctx context.Context) bool {
	if ctx.Err() != nil || !r.client.ShouldRefresh(ctx) {
		return false
	}
	if _, err := r.client.Refresh(ctx); err != nil {
		r.log.Warn(ctx, "background token refresh failed", "error", err)
		return false
	}
	r.log.Debug(ctx, "access token refreshed in background")
	return true
}
