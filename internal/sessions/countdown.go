package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/codekids/quiz-backend/internal/quiz"
	"github.com/codekids/quiz-backend/pkg/monitoring"
)

// DefaultTickInterval is the countdown cadence.
const DefaultTickInterval = time.Second

// Countdown drives Session.Tick from a ticker until the session completes or Stop is called.
// remaining is recomputed from the recorded start time on every tick.
type Countdown struct {
	session  *quiz.Session
	interval time.Duration
	now      func() time.Time
	onTick   func(remaining int)
	onDone   func(quiz.Result)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCountdown creates a countdown for a session whose timer has been started.
// onDone runs on the countdown goroutine when a tick completes the session; it must not call Stop.
func NewCountdown(session *quiz.Session, interval time.Duration, now func() time.Time, onTick func(int), onDone func(quiz.Result)) *Countdown {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if now == nil {
		now = time.Now
	}
	return &Countdown{
		session:  session,
		interval: interval,
		now:      now,
		onTick:   onTick,
		onDone:   onDone,
		done:     make(chan struct{}),
	}
}

// Start begins the tick loop. Call Stop() to release resources.
func (c *Countdown) Start() {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()

	monitoring.ActiveCountdowns.Inc()
	go c.run(ctx)
}

// Stop cancels the loop and waits for it to exit. Safe to call more than once.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}

// Done is closed once the loop has exited.
func (c *Countdown) Done() <-chan struct{} { return c.done }

func (c *Countdown) run(ctx context.Context) {
	defer close(c.done)
	defer monitoring.ActiveCountdowns.Dec()
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := c.session.State()
			if st.Completed || !st.TimerStarted || st.StartTime == nil {
				return
			}
			elapsed := int(c.now().Sub(*st.StartTime) / time.Second)
			if elapsed < 0 {
				elapsed = 0
			}
			remaining := max(st.Duration-elapsed, 0)
			result, completed := c.session.Tick(remaining)
			if c.onTick != nil {
				c.onTick(remaining)
			}
			if completed {
				if c.onDone != nil {
					c.onDone(result)
				}
				return
			}
		}
	}
}
