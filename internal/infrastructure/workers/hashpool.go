package workers

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/worldlaptopcare/auth-service/internal/api/metrics"
)

const (
	defaultWorkers = 4
	queueBuffer    = 64
)

type hashJob struct {
	fn   func()
	done chan struct{}
}

// HashPool runs password-hashing jobs on a fixed set of workers with a
// bounded queue, so a burst of login attempts is limited to defaultWorkers
// concurrent bcrypt computations instead of one goroutine per request.
type HashPool struct {
	jobs chan hashJob
	log  zerolog.Logger
}

// NewHashPool creates a HashPool with numWorkers workers. If
// numWorkers <= 0, defaultWorkers is used.
func NewHashPool(numWorkers int, log zerolog.Logger) *HashPool {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	p := &HashPool{
		jobs: make(chan hashJob, queueBuffer),
		log:  log,
	}
	for i := 0; i < numWorkers; i++ {
		go p.runWorker(i)
	}
	return p
}

// Run submits a job and blocks until it completes. Waiting for a free
// queue slot respects ctx; once a worker has picked the job up it runs
// to completion (bcrypt is not interruptible).
func (p *HashPool) Run(ctx context.Context, job func()) error {
	timer := prometheus.NewTimer(metrics.HashDuration)
	defer timer.ObserveDuration()

	j := hashJob{fn: job, done: make(chan struct{})}

	select {
	case p.jobs <- j:
		metrics.HashQueueDepth.Set(float64(len(p.jobs)))
	case <-ctx.Done():
		return ctx.Err()
	}

	<-j.done
	return nil
}

func (p *HashPool) runWorker(id int) {
	log := p.log.With().Str("hash_worker", strconv.Itoa(id)).Logger()
	for j := range p.jobs {
		j.fn()
		close(j.done)
		metrics.HashQueueDepth.Set(float64(len(p.jobs)))
	}
	log.Debug().Msg("hash worker stopped")
}

// Close stops the workers after draining queued jobs. Jobs submitted
// after Close panic; call only during shutdown.
func (p *HashPool) Close() {
	close(p.jobs)
}
