package items

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/shelf/pkg/observability"
)

// Sweeper permanently deletes items that have been sitting in the recycle
// bin longer than the retention window. This is the only code path that
// hard-deletes content.
type Sweeper struct {
	store     *Store
	retention time.Duration
	schedule  string
	cron      *cron.Cron
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewSweeper creates a retention sweeper. schedule is a cron expression;
// retention is how long recycled items are kept before purging.
func NewSweeper(store *Store, retention time.Duration, schedule string, logger *observability.Logger, metrics *observability.Metrics) *Sweeper {
	return &Sweeper{
		store:     store,
		retention: retention,
		schedule:  schedule,
		cron:      cron.New(),
		logger:    logger,
		metrics:   metrics,
	}
}

// Start registers and starts the cron schedule.
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if _, err := s.SweepOnce(ctx); err != nil {
			s.logger.WithError(err).Error("recycle bin sweep failed")
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.WithField("schedule", s.schedule).Info("recycle bin sweeper started")
	return nil
}

// Stop stops the cron scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// SweepOnce purges everything recycled before the retention cutoff and
// returns the number of purged items.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.retention)

	purged, err := s.store.HardDeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		s.store.PurgeCache()
	}

	if purged > 0 {
		s.logger.WithFields(map[string]interface{}{
			"purged": purged,
			"cutoff": cutoff,
		}).Info("recycle bin swept")
	}
	if s.metrics != nil {
		s.metrics.ItemsPurgedTotal.Add(float64(purged))
	}
	return purged, nil
}
