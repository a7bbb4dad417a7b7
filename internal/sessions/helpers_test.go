package sessions

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/codekids/quiz-backend/internal/quiz"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixedDuration int

func (d fixedDuration) DurationSeconds(context.Context) int { return int(d) }

type fakeDispatcher struct {
	mu      sync.Mutex
	results []quiz.Result
	calls   chan uuid.UUID
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{calls: make(chan uuid.UUID, 16)}
}

func (d *fakeDispatcher) Dispatch(_ context.Context, id uuid.UUID, r quiz.Result) error {
	d.mu.Lock()
	d.results = append(d.results, r)
	d.mu.Unlock()
	d.calls <- id
	return nil
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.results)
}

func (d *fakeDispatcher) wait(t *testing.T) {
	t.Helper()
	select {
	case <-d.calls:
	case <-time.After(3 * time.Second):
		t.Fatal("dispatch not called")
	}
}

type publishedEvent struct {
	id    uuid.UUID
	event string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(id uuid.UUID, event string, _ interface{}) {
	p.mu.Lock()
	p.events = append(p.events, publishedEvent{id: id, event: event})
	p.mu.Unlock()
}

func (p *recordingPublisher) count(event string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.event == event {
			n++
		}
	}
	return n
}

func testBank(t *testing.T) *quiz.Bank {
	t.Helper()
	bank, err := quiz.DefaultBank()
	if err != nil {
		t.Fatalf("DefaultBank: %v", err)
	}
	return bank
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}
