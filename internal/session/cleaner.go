package session

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Cleaner periodically reclaims idle sessions, including their remote
// namespace data, via the registry's delete path.
type Cleaner struct {
	registry *Registry
	interval time.Duration
	timeout  time.Duration
	cancel   context.CancelFunc
	doneCh   chan struct{}
}

// NewCleaner creates a cleaner sweeping every interval and expiring sessions
// idle longer than timeout.
func NewCleaner(registry *Registry, interval, timeout time.Duration) *Cleaner {
	return &Cleaner{
		registry: registry,
		interval: interval,
		timeout:  timeout,
		doneCh:   make(chan struct{}),
	}
}

// Start launches the sweep loop in its own goroutine. Call Stop to shut it
// down; cancellation is observed between sweeps, so shutdown never waits out
// a full interval.
func (c *Cleaner) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)

	log.Info().
		Dur("interval", c.interval).
		Dur("idleTimeout", c.timeout).
		Msg("Session cleanup scheduler started")

	go func() {
		defer close(c.doneCh)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Sweep(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for the in-flight sweep, if any, to finish.
func (c *Cleaner) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.doneCh
}

// Sweep deletes every session idle past the timeout. Each deletion is
// isolated: one failure is logged and the rest of the sweep continues.
func (c *Cleaner) Sweep(ctx context.Context) {
	expired := c.registry.expired(time.Now(), c.timeout)
	for _, id := range expired {
		log.Info().
			Str("sessionId", id).
			Dur("idleTimeout", c.timeout).
			Msg("Session expired, cleaning up")
		c.deleteOne(ctx, id)
	}
}

func (c *Cleaner) deleteOne(ctx context.Context, id string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("sessionId", id).
				Interface("panic", r).
				Msg("Session cleanup panicked")
		}
	}()
	c.registry.Delete(ctx, id)
}
