package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Refresher reloads the session from the catalog on a fixed interval.
type Refresher struct {
	session  *Session
	interval time.Duration
	logger   *slog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewRefresher(s *Session, interval time.Duration, logger *slog.Logger) *Refresher {
	return &Refresher{
		session:  s,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start is a no-op when the interval is not positive.
func (r *Refresher) Start(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	r.wg.Add(1)
	go r.refreshLoop(ctx)
}

func (r *Refresher) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}

func (r *Refresher) refreshLoop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.session.Load(ctx); err != nil {
				r.logger.Error("failed to refresh catalog", "error", err)
			}
		}
	}
}
