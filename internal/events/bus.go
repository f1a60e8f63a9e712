package events

import (
	"sort"
	"sync"
	"time"
)

// Bus delivers events to subscribers.
//
// Publish never blocks: every subscriber owns an unbounded queue drained by
// its own goroutine, so a slow subscriber delays only itself and nothing is
// dropped. Events are delivered to each subscriber in publish order, which
// gives per-task ordering as long as a task's events are published in order.
//
// The bus remembers the latest event of every task. A new subscriber first
// receives those, then live events, so it observes terminal states that were
// published before it subscribed. Tasks marked with Expire are remembered
// only until the expired limit is exceeded, oldest first.
type Bus struct {
	mu      sync.Mutex
	subs    map[*Subscription]struct{}
	latest  map[int64]Event
	expired []expiry
	limit   int
	closed  bool
}

type expiry struct {
	chapterID int64
	taskID    string
}

// DefaultExpiredLimit is the number of expired tasks a bus remembers.
const DefaultExpiredLimit = 64

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithExpiredLimit sets how many expired tasks are kept for replay. A
// negative n is treated as 0.
func WithExpiredLimit(n int) BusOption {
	return func(b *Bus) { b.limit = max(n, 0) }
}

// NewBus creates an empty bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		subs:   make(map[*Subscription]struct{}),
		latest: make(map[int64]Event),
		limit:  DefaultExpiredLimit,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Publish appends e to every subscriber's queue. Once Publish returns, the
// event is recorded for replay.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if e.IsTask() {
		b.latest[e.ChapterID] = e
	}
	for s := range b.subs {
		s.push(e)
	}
}

// Subscribe registers a subscriber that receives every event.
func (b *Bus) Subscribe() *Subscription {
	return b.subscribe(nil)
}

// SubscribeChapter registers a subscriber that receives only the events of
// one chapter.
func (b *Bus) SubscribeChapter(chapterID int64) *Subscription {
	return b.subscribe(func(e Event) bool { return e.ChapterID == chapterID })
}

func (b *Bus) subscribe(filter func(Event) bool) *Subscription {
	s := newSubscription(b, filter)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		s.stop()
		close(s.out)
		return s
	}
	for _, e := range b.replay() {
		s.push(e)
	}
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go s.pump()
	return s
}

// replay returns the remembered task events, oldest task first.
// b.mu must be held.
func (b *Bus) replay() []Event {
	out := make([]Event, 0, len(b.latest))
	for _, e := range b.latest {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Task.CreatedAt.Before(out[j].Task.CreatedAt)
	})
	return out
}

// Latest returns the remembered event of a chapter.
func (b *Bus) Latest(chapterID int64) (Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.latest[chapterID]
	return e, ok
}

// Forget drops the remembered event of a chapter.
func (b *Bus) Forget(chapterID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.latest[chapterID]
	delete(b.latest, chapterID)
	return ok
}

// Expire marks the remembered event of a finished task as evictable. Once
// more than the expired limit have been marked, the oldest is dropped unless
// a newer task of the same chapter has replaced it.
func (b *Bus) Expire(chapterID int64, taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expired = append(b.expired, expiry{chapterID: chapterID, taskID: taskID})
	for len(b.expired) > b.limit {
		old := b.expired[0]
		b.expired[0] = expiry{}
		b.expired = b.expired[1:]
		if e, ok := b.latest[old.chapterID]; ok && e.Task.TaskID == old.taskID {
			delete(b.latest, old.chapterID)
		}
	}
}

// Close stops every subscription. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[*Subscription]struct{})
	b.closed = true
	b.mu.Unlock()

	for s := range subs {
		s.stop()
	}
}

func (b *Bus) unsubscribe(s *Subscription) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
}
