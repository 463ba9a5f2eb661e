package uniquestore

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Maintainer runs periodic maintenance rounds against a store: compaction of
// degraded value buffers, snapshot publication, and reclamation of memory no
// reader can still observe. It shares the writer role with the owning
// goroutine through the store's internal mutex.
type Maintainer struct {
	store   *Store
	limiter *rate.Limiter
	logger  *Logger
}

// NewMaintainer creates a maintainer that runs one maintenance round per
// interval.
func NewMaintainer(s *Store, interval time.Duration) *Maintainer {
	return &Maintainer{
		store:   s,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		logger:  s.logger,
	}
}

// Run executes maintenance rounds until ctx is cancelled, then returns nil.
// A final Commit and ReclaimMemory run on the way out so everything retired
// before cancellation still gets released.
func (m *Maintainer) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			if err := m.limiter.Wait(ctx); err != nil {
				return err
			}
			start := time.Now()
			m.store.Maintain()
			m.logger.Debug("maintenance round completed", "duration", time.Since(start))
		}
	})
	err := g.Wait()

	m.store.Commit()
	m.store.ReclaimMemory()

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
