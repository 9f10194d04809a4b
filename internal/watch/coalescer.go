package watch

import (
	"sync"
	"time"
)

// coalescer folds bursts of change notifications into single rebuild
// triggers. Notifications within the debounce window reset a timer; when the
// timer fires, one token is placed in a capacity-one channel. While a build
// consumes a token, further notifications queue at most one more, which
// gives the two guarantees the scheduler needs: at most one build in flight,
// and every notification reflected in some subsequent rebuild.
type coalescer struct {
	delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	trigger chan struct{}
}

func newCoalescer(delay time.Duration) *coalescer {
	return &coalescer{
		delay:   delay,
		trigger: make(chan struct{}, 1),
	}
}

// Notify records a change event, restarting the debounce window.
func (c *coalescer) Notify() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.delay, c.fire)
}

func (c *coalescer) fire() {
	select {
	case c.trigger <- struct{}{}:
	default:
		// A rebuild is already queued; this burst is covered by it.
	}
}

// C delivers one token per pending rebuild.
func (c *coalescer) C() <-chan struct{} {
	return c.trigger
}

// Stop cancels any pending timer.
func (c *coalescer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
