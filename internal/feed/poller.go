package feed

import (
	"context"
	"sync"
	"time"
)

// Poller pulls new activities into a Feed on a fixed interval
type Poller struct {
	feed     *Feed
	interval time.Duration
	debounce time.Duration

	mu       sync.Mutex
	pending  bool
	onUpdate func() // called when a poll changed the feed

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller starts polling feed every interval until Stop
func NewPoller(feed *Feed, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Poller{
		feed:     feed,
		interval: interval,
		debounce: time.Second,
		ctx:      ctx,
		cancel:   cancel,
	}

	p.wg.Add(1)
	go p.pollLoop()

	return p
}

// SetOnUpdate sets the callback run after a poll brought in new activities
func (p *Poller) SetOnUpdate(callback func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onUpdate = callback
}

func (p *Poller) pollLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.pollOnce()
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Poller) pollOnce() {
	if p.feed.tokens.Token() == "" {
		return
	}
	changed, err := p.feed.poll(p.ctx)
	if err != nil || !changed {
		return
	}

	p.mu.Lock()
	callback := p.onUpdate
	p.mu.Unlock()

	if callback != nil {
		callback()
	}
}

// Trigger schedules an early poll, coalescing bursts of calls
func (p *Poller) Trigger() {
	p.mu.Lock()
	if !p.pending && p.ctx.Err() == nil {
		p.pending = true
		p.wg.Add(1)
		go p.debouncedPoll()
	}
	p.mu.Unlock()
}

func (p *Poller) debouncedPoll() {
	defer p.wg.Done()

	timer := time.NewTimer(p.debounce)
	defer timer.Stop()

	select {
	case <-timer.C:
		p.mu.Lock()
		p.pending = false
		p.mu.Unlock()
		p.pollOnce()
	case <-p.ctx.Done():
	}
}

// Stop ends polling and waits for a poll in progress to finish
func (p *Poller) Stop() {
	p.mu.Lock()
	p.cancel()
	p.mu.Unlock()
	p.wg.Wait()
}
