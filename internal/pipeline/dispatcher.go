package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultQueueSize = 64

type job struct {
	sessionID string
	run       func(ctx context.Context)
	enqueued  time.Time
}

// Dispatcher owns the single background worker that executes pipeline runs.
// Dispatch is fire-and-forget: the HTTP layer returns immediately and the
// worker drains the queue in arrival order. A panicking job is recovered and
// logged; it never takes the worker down.
type Dispatcher struct {
	jobs   chan job
	cancel context.CancelFunc
	doneCh chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewDispatcher creates a dispatcher with a bounded queue. queueSize <= 0
// selects the default.
func NewDispatcher(queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Dispatcher{
		jobs:   make(chan job, queueSize),
		doneCh: make(chan struct{}),
	}
}

// Start launches the worker goroutine. Subsequent calls are no-ops.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		ctx, d.cancel = context.WithCancel(ctx)
		go d.worker(ctx)
	})
}

// Stop cancels the worker and waits for it to exit. The in-flight job
// observes the cancelled context through its outbound calls.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		if d.cancel == nil {
			close(d.doneCh)
			return
		}
		d.cancel()
		<-d.doneCh
	})
}

// Dispatch enqueues a run for the worker. It reports false when the queue is
// full, in which case the job was not accepted.
func (d *Dispatcher) Dispatch(sessionID string, run func(ctx context.Context)) bool {
	select {
	case d.jobs <- job{sessionID: sessionID, run: run, enqueued: time.Now()}:
		return true
	default:
		log.Warn().
			Str("sessionId", sessionID).
			Int("queueSize", cap(d.jobs)).
			Msg("Pipeline queue full, job rejected")
		return false
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer close(d.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-d.jobs:
			d.execute(ctx, j)
		}
	}
}

func (d *Dispatcher) execute(ctx context.Context, j job) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("sessionId", j.sessionID).
				Interface("panic", r).
				Msg("Pipeline job panicked")
		}
	}()

	start := time.Now()
	j.run(ctx)
	log.Info().
		Str("sessionId", j.sessionID).
		Dur("queueWait", start.Sub(j.enqueued)).
		Dur("duration", time.Since(start)).
		Msg("Pipeline job finished")
}
