package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

const (
	// DefaultPollInterval is the delay between two status polls.
	DefaultPollInterval = 3 * time.Second
)

// poller runs a tick function on a fixed interval with an explicit Start/Stop lifecycle.
// At most one tick runs at a time across restarts: a tick that finds the previous one
// still outstanding is dropped.
type poller struct {
	interval time.Duration
	tick     func(ctx context.Context)
	inflight *semaphore.Weighted
	logger   Logger
	cancel   context.CancelFunc
	mu       sync.Mutex
	wg       sync.WaitGroup
}

func newPoller(interval time.Duration, inflight *semaphore.Weighted, tick func(ctx context.Context), logger Logger) *poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &poller{
		interval: interval,
		tick:     tick,
		inflight: inflight,
		logger:   logger,
	}
}

// Start launches the polling loop unless it is already running. The first tick fires immediately.
func (p *poller) Start(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return false
	}
	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg.Add(1)
	go p.loop(loopCtx)
	return true
}

// Stop cancels the loop without waiting for it, so it is safe to call from inside a tick.
func (p *poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Wait blocks until every loop started so far has returned.
func (p *poller) Wait() {
	p.wg.Wait()
}

func (p *poller) loop(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.fire(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.fire(ctx)
		}
	}
}

func (p *poller) fire(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if !p.inflight.TryAcquire(1) {
		p.logger.Debugf("Dropping poll tick: previous poll still in flight")
		return
	}
	defer p.inflight.Release(1)
	p.tick(ctx)
}
