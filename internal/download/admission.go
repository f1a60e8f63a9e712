package download

import (
	"context"
	"sync"

	"github.com/handiism/manhua-downloader/internal/pool"
)

type ticketState int

const (
	ticketWaiting ticketState = iota
	ticketGranted
	ticketWithdrawn
)

// ticket is a task's place in the chapter queue. granted is closed once the
// slot has been acquired on the task's behalf.
type ticket struct {
	chapterID int64
	state     ticketState
	granted   chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
}

// admission hands chapter slots to tasks in the order they were queued.
// A single goroutine acquires slots, so the order of Acquire calls on the
// pool is the queue order and not the order goroutines happen to run.
type admission struct {
	pool *pool.Pool
	wake chan struct{}

	mu    sync.Mutex
	queue []*ticket
}

func newAdmission(p *pool.Pool) *admission {
	return &admission{pool: p, wake: make(chan struct{}, 1)}
}

// push appends a ticket for chapterID to the back of the queue.
func (a *admission) push(ctx context.Context, chapterID int64) *ticket {
	tctx, cancel := context.WithCancel(ctx)
	tk := &ticket{chapterID: chapterID, granted: make(chan struct{}), ctx: tctx, cancel: cancel}

	a.mu.Lock()
	a.queue = append(a.queue, tk)
	a.mu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}
	return tk
}

// withdraw takes tk out of the queue. A slot already granted to it is
// released.
func (a *admission) withdraw(tk *ticket) {
	a.mu.Lock()
	prev := tk.state
	tk.state = ticketWithdrawn
	a.mu.Unlock()

	tk.cancel()
	if prev == ticketGranted {
		a.pool.Release()
	}
}

func (a *admission) next() *ticket {
	a.mu.Lock()
	defer a.mu.Unlock()
	for len(a.queue) > 0 {
		tk := a.queue[0]
		a.queue[0] = nil
		a.queue = a.queue[1:]
		if tk.state == ticketWaiting {
			return tk
		}
	}
	return nil
}

// run grants slots until ctx is done.
func (a *admission) run(ctx context.Context) {
	for {
		tk := a.next()
		if tk == nil {
			select {
			case <-a.wake:
				continue
			case <-ctx.Done():
				return
			}
		}

		err := a.pool.Acquire(tk.ctx)
		tk.cancel()
		if err != nil {
			continue
		}

		a.mu.Lock()
		withdrawn := tk.state == ticketWithdrawn
		if !withdrawn {
			tk.state = ticketGranted
			close(tk.granted)
		}
		a.mu.Unlock()
		if withdrawn {
			a.pool.Release()
		}
	}
}
