// Package timer is the countdown that supervises an attempt. Remaining time
// is always derived from the clock, never from counting ticks, so a paused
// or throttled process cannot stretch the deadline.
package timer

import (
	"fmt"
	"sync"
	"time"

	"github.com/facebookgo/clock"
)

// Unlimited is what Remaining reports for a test without a time limit.
const Unlimited = -1

const (
	lowThreshold      = 5 * 60
	criticalThreshold = 60
)

type Band int

const (
	Normal Band = iota
	Low
	Critical
)

func (b Band) String() string {
	switch b {
	case Low:
		return "low"
	case Critical:
		return "critical"
	default:
		return "normal"
	}
}

// BandFor classifies remaining seconds for display.
func BandFor(seconds int) Band {
	switch {
	case seconds < 0:
		return Normal
	case seconds < criticalThreshold:
		return Critical
	case seconds < lowThreshold:
		return Low
	default:
		return Normal
	}
}

// Format renders seconds as MM:SS; minutes are not wrapped at 60.
func Format(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

type Option func(*Controller)

// WithOnTick registers a display callback invoked about once per second and
// once more with zero when time runs out.
func WithOnTick(fn func(remaining int, band Band)) Option {
	return func(c *Controller) { c.onTick = fn }
}

// Controller counts down from startedAt. A limit of zero or less disables
// it entirely: Start does nothing and onTimeUp never fires.
type Controller struct {
	clk       clock.Clock
	startedAt time.Time
	limit     time.Duration
	onTimeUp  func()
	onTick    func(int, Band)

	stopOnce sync.Once
	tickMu   sync.Mutex

	mu       sync.Mutex
	started  bool
	fired    bool
	stopped  bool
	deadline *clock.Timer
	ticker   *clock.Ticker
	done     chan struct{}
}

func New(clk clock.Clock, limitMinutes int, startedAt time.Time, onTimeUp func(), opts ...Option) *Controller {
	if clk == nil {
		clk = clock.New()
	}
	c := &Controller{
		clk:       clk,
		startedAt: startedAt,
		onTimeUp:  onTimeUp,
		done:      make(chan struct{}),
	}
	if limitMinutes > 0 {
		c.limit = time.Duration(limitMinutes) * time.Minute
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Controller) Enabled() bool { return c.limit > 0 }

// Remaining is max(0, limit - floor(elapsed seconds)), or Unlimited.
func (c *Controller) Remaining() int {
	if !c.Enabled() {
		return Unlimited
	}
	elapsed := int(c.clk.Now().Sub(c.startedAt) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	left := int(c.limit/time.Second) - elapsed
	if left < 0 {
		return 0
	}
	return left
}

func (c *Controller) Band() Band { return BandFor(c.Remaining()) }

func (c *Controller) Expired() bool { return c.Enabled() && c.Remaining() == 0 }

// Start arms the deadline and the display ticker. If the deadline has
// already passed, onTimeUp runs before Start returns. Calling Start twice
// is a no-op.
func (c *Controller) Start() {
	if !c.Enabled() {
		return
	}
	c.mu.Lock()
	if c.started || c.stopped {
		c.mu.Unlock()
		return
	}
	c.started = true

	until := c.startedAt.Add(c.limit).Sub(c.clk.Now())
	if until <= 0 {
		c.mu.Unlock()
		c.fire()
		return
	}
	c.deadline = c.clk.AfterFunc(until, c.fire)
	c.ticker = c.clk.Ticker(time.Second)
	ticker := c.ticker
	c.mu.Unlock()

	go c.loop(ticker)
}

func (c *Controller) loop(ticker *clock.Ticker) {
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			// the deadline timer owns expiry; the ticker only feeds the display
			if left := c.Remaining(); left > 0 {
				c.tick(left)
			}
		}
	}
}

func (c *Controller) tick(left int) {
	if c.onTick == nil {
		return
	}
	c.tickMu.Lock()
	defer c.tickMu.Unlock()
	if left > 0 && c.Fired() {
		return
	}
	c.onTick(left, BandFor(left))
}

// fire runs onTimeUp at most once, and never after Stop.
func (c *Controller) fire() {
	c.mu.Lock()
	if c.fired || c.stopped {
		c.mu.Unlock()
		return
	}
	c.fired = true
	c.mu.Unlock()

	c.teardown()
	c.tick(0)
	if c.onTimeUp != nil {
		c.onTimeUp()
	}
}

// Fired reports whether onTimeUp has been invoked.
func (c *Controller) Fired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fired
}

// Stop tears the controller down. onTimeUp will not fire afterwards.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	c.teardown()
}

func (c *Controller) teardown() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.deadline != nil {
			c.deadline.Stop()
		}
		if c.ticker != nil {
			c.ticker.Stop()
		}
		close(c.done)
	})
}
