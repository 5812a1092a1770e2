package fetcher

import (
	"context"
	"sync"
	"time"

	"carbon_dashboard/internal/logger"
)

// Poller calls a function on a fixed interval until stopped. Each Start owns
// a fresh ticker and cancel func, so Stop is deterministic: once it returns,
// no further tick fires.
type Poller struct {
	name     string
	interval time.Duration
	tick     func(ctx context.Context)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a stopped poller.
func NewPoller(name string, interval time.Duration, tick func(ctx context.Context)) *Poller {
	return &Poller{name: name, interval: interval, tick: tick}
}

func (p *Poller) Interval() time.Duration { return p.interval }

// Running reports whether the ticker loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Start launches the ticker loop. Calling Start on a running poller is a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	go p.run(ctx, done)
}

// Stop cancels the loop, including a tick in progress, and waits for it to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	log := logger.Log.WithFields(logger.Fields{
		"service":  "poller",
		"view":     p.name,
		"interval": p.interval.String(),
	})

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	log.Debug("Auto-refresh started")
	for {
		select {
		case <-ticker.C:
			// a Stop racing with the tick wins
			if ctx.Err() != nil {
				return
			}
			log.Info("Starting auto-refresh cycle")
			p.tick(ctx)

		case <-ctx.Done():
			log.Debug("Auto-refresh stopped")
			return
		}
	}
}
