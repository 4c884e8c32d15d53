package session

import (
	"context"
	"log/slog"
	"time"
)

// Expirer is a store that can purge expired sessions in bulk.
type Expirer interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Sweep purges expired sessions every interval until ctx is done.
func Sweep(ctx context.Context, e Expirer, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := e.DeleteExpired(ctx)
			if err != nil {
				if ctx.Err() == nil {
					slog.Warn("session sweep failed", "error", err)
				}
				continue
			}
			if n > 0 {
				slog.Debug("expired sessions removed", "count", n)
			}
		}
	}
}
