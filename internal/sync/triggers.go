package sync

import (
	"context"
	"log/slog"
	"time"
)

// Arm starts the periodic trigger. While the remote store is unreachable a
// faster probe runs; its first success is treated as a reconnection. Arming
// an armed coordinator restarts the timers.
func (c *Coordinator) Arm() {
	c.Disarm()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx.Err() != nil || c.disarm != nil {
		return
	}
	ctx, cancel := context.WithCancel(c.ctx)
	done := make(chan struct{})
	c.disarm = func() {
		cancel()
		<-done
	}
	go func() {
		defer close(done)
		c.tick(ctx)
	}()
	slog.Debug("sync: armed", "interval", c.opts.Interval, "probe", c.opts.ProbeInterval)
}

// Disarm stops the periodic trigger and waits for it to exit. A pass
// already running completes.
func (c *Coordinator) Disarm() {
	c.mu.Lock()
	stop := c.disarm
	c.disarm = nil
	c.mu.Unlock()
	if stop != nil {
		stop()
		slog.Debug("sync: disarmed")
	}
}

// Armed reports whether the periodic trigger is running.
func (c *Coordinator) Armed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disarm != nil
}

// NotifyReconnected is the reconnection signal: it marks the remote store
// reachable and requests a pass.
func (c *Coordinator) NotifyReconnected() {
	c.setOnline(true)
	slog.Debug("sync: reconnected")
	c.TriggerSync()
}

func (c *Coordinator) tick(ctx context.Context) {
	c.TriggerSync()

	interval := time.NewTicker(c.opts.Interval)
	defer interval.Stop()

	var probe <-chan time.Time
	if c.opts.Probe != nil {
		t := time.NewTicker(c.opts.ProbeInterval)
		defer t.Stop()
		probe = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-interval.C:
			c.TriggerSync()
		case <-probe:
			if c.isOnline() {
				continue
			}
			if c.probe(ctx) {
				c.NotifyReconnected()
			}
		}
	}
}

func (c *Coordinator) probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
	defer cancel()
	if err := c.opts.Probe(ctx); err != nil {
		slog.Debug("sync: probe failed", "err", err)
		return false
	}
	return true
}
