package workers

import (
	"context"
	"time"

	"github.com/dalemusser/taskhub/internal/app/system/metrics"
	"go.uber.org/zap"
)

// Sweeper finishes interrupted workspace deletions and removes scoped
// documents whose workspace is gone.
type Sweeper interface {
	FinishDeleting(ctx context.Context) (int, error)
	SweepOrphans(ctx context.Context) (map[string]int64, error)
}

// OrphanSweep is the cleanup pass behind workspace deletion.
type OrphanSweep struct {
	*runner
	registry Sweeper
}

func NewOrphanSweep(registry Sweeper, m *metrics.Metrics, logger *zap.Logger, interval time.Duration) *OrphanSweep {
	w := &OrphanSweep{registry: registry}
	w.runner = newRunner("orphan_sweep", interval, m, logger, w.sweep)
	return w
}

func (w *OrphanSweep) sweep(ctx context.Context) error {
	finished, err := w.registry.FinishDeleting(ctx)
	if err != nil {
		return err
	}
	removed, err := w.registry.SweepOrphans(ctx)
	if err != nil {
		return err
	}
	var total int64
	fields := make([]zap.Field, 0, len(removed)+1)
	for coll, n := range removed {
		total += n
		if n > 0 {
			fields = append(fields, zap.Int64(coll, n))
		}
	}
	if finished > 0 || total > 0 {
		fields = append(fields, zap.Int("finished_deletions", finished))
		w.log.Info("orphan sweep removed documents", fields...)
	}
	return nil
}
