package events

import "sync"

// Subscription is one subscriber's view of the bus.
type Subscription struct {
	bus    *Bus
	filter func(Event) bool

	mu    sync.Mutex
	queue []Event
	wake  chan struct{}

	out      chan Event
	done     chan struct{}
	stopOnce sync.Once
}

func newSubscription(b *Bus, filter func(Event) bool) *Subscription {
	return &Subscription{
		bus:    b,
		filter: filter,
		wake:   make(chan struct{}, 1),
		out:    make(chan Event),
		done:   make(chan struct{}),
	}
}

// C returns the delivery channel. It is closed when the subscription ends.
func (s *Subscription) C() <-chan Event {
	return s.out
}

// Close ends the subscription. Undelivered events are discarded.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s)
	s.stop()
}

func (s *Subscription) stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

func (s *Subscription) push(e Event) {
	if s.filter != nil && !s.filter(e) {
		return
	}
	s.mu.Lock()
	s.queue = append(s.queue, e)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		e := s.queue[0]
		s.queue[0] = Event{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- e:
		case <-s.done:
			return
		}
	}
}
