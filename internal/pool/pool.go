package pool

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/handiism/manhua-downloader/internal/metrics"
)

// Pool is a bounded set of slots with FIFO admission.
//
// A politeness interval can be attached: ReleaseAfterInterval holds the
// slot for that long before freeing it, so the delay is charged to the unit
// of work that just finished rather than to the next one.
type Pool struct {
	name     string
	size     int64
	interval time.Duration
	sem      *semaphore.Weighted
	inUse    atomic.Int64
}

// New creates a pool with size slots. A size below 1 is treated as 1.
func New(name string, size int, interval time.Duration) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		name:     name,
		size:     int64(size),
		interval: interval,
		sem:      semaphore.NewWeighted(int64(size)),
	}
}

// Acquire blocks until a slot is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	p.track(1)
	return nil
}

// Release frees a slot immediately.
func (p *Pool) Release() {
	p.track(-1)
	p.sem.Release(1)
}

// ReleaseAfterInterval waits for the politeness interval, then frees the
// slot. It blocks the caller for the duration of the interval; a done ctx
// frees the slot at once.
func (p *Pool) ReleaseAfterInterval(ctx context.Context) {
	defer p.Release()
	if p.interval <= 0 {
		return
	}
	timer := time.NewTimer(p.interval)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// InUse returns the number of occupied slots.
func (p *Pool) InUse() int {
	return int(p.inUse.Load())
}

// Size returns the capacity of the pool.
func (p *Pool) Size() int {
	return int(p.size)
}

// Interval returns the politeness interval.
func (p *Pool) Interval() time.Duration {
	return p.interval
}

func (p *Pool) track(delta int64) {
	n := p.inUse.Add(delta)
	metrics.PoolInUse.WithLabelValues(p.name).Set(float64(n))
}
