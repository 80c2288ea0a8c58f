// internal/app/system/workers/runner.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/taskhub/internal/app/system/metrics"
	"go.uber.org/zap"
)

// runner is the ticker loop every worker is built on. Each tick runs the
// job under its own timeout and records the outcome.
type runner struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger
	metrics  *metrics.Metrics
	job      func(ctx context.Context) error

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newRunner(name string, interval time.Duration, m *metrics.Metrics, log *zap.Logger, job func(ctx context.Context) error) *runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &runner{
		name:     name,
		interval: interval,
		timeout:  30 * time.Second,
		log:      log.With(zap.String("worker", name)),
		metrics:  m,
		job:      job,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background loop.
func (r *runner) Start() {
	r.wg.Add(1)
	go r.run()
	r.log.Info("worker started", zap.Duration("interval", r.interval))
}

// Stop signals the loop to stop and waits for the running tick to finish.
func (r *runner) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
	r.log.Info("worker stopped")
}

// RunOnce runs one tick now.
func (r *runner) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	err := r.job(ctx)
	r.metrics.WorkerRun(r.name, err)
	if err != nil {
		r.log.Error("worker run failed", zap.Error(err))
	}
	return err
}

func (r *runner) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			_ = r.RunOnce(context.Background())
		}
	}
}
