package download

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/handiism/manhua-downloader/internal/model"
	"github.com/handiism/manhua-downloader/internal/source"
)

// control is a request routed to a task's worker.
type control int

const (
	ctlNone control = iota
	ctlPause
	ctlResume
	ctlCancel
)

// task is the runtime state of one chapter download. Fields under mu are
// shared with control callers; the rest belong to the worker goroutine.
type task struct {
	id        string
	createdAt time.Time

	mu         sync.Mutex
	ref        model.ChapterRef
	state      model.TaskState
	downloaded int
	total      int
	retryAfter int
	errKind    source.Kind
	errMsg     string
	updatedAt  time.Time
	seq        uint64
	ctl        control
	sig        chan struct{}

	// fetchCtx bounds every network call of the task. It is cancelled on
	// Cancel and on failure, never on pause.
	fetchCtx   context.Context
	abortFetch context.CancelFunc

	// Worker-owned.
	images []model.ImageDescriptor
	done   map[int]struct{}
	listed bool
}

func newTask(parent context.Context, ref model.ChapterRef, now time.Time) *task {
	ctx, cancel := context.WithCancel(parent)
	return &task{
		id:         uuid.NewString(),
		createdAt:  now,
		ref:        ref,
		state:      model.StatePending,
		updatedAt:  now,
		sig:        make(chan struct{}),
		fetchCtx:   ctx,
		abortFetch: cancel,
		done:       make(map[int]struct{}),
	}
}

// snapshotLocked returns an immutable view. t.mu must be held.
func (t *task) snapshotLocked() model.TaskSnapshot {
	return model.TaskSnapshot{
		TaskID:             t.id,
		Chapter:            t.ref,
		State:              t.state,
		DownloadedImgCount: t.downloaded,
		TotalImgCount:      t.total,
		RetryAfter:         t.retryAfter,
		ErrKind:            string(t.errKind),
		ErrMsg:             t.errMsg,
		CreatedAt:          t.createdAt,
		UpdatedAt:          t.updatedAt,
		Seq:                t.seq,
	}
}

func (t *task) snapshot() model.TaskSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *task) currentState() model.TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// signalLocked wakes every waiter of the current signal channel.
// t.mu must be held.
func (t *task) signalLocked() {
	close(t.sig)
	t.sig = make(chan struct{})
}

// takeControl returns the pending request and the channel that is closed on
// the next one. Pause and resume are consumed; cancel stays pending.
func (t *task) takeControl() (control, <-chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := t.ctl
	if c != ctlCancel {
		t.ctl = ctlNone
	}
	return c, t.sig
}

func (t *task) requestPause() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.state.IsTerminal():
		return ErrTaskFinished
	case t.ctl == ctlCancel:
		return nil
	case t.state == model.StatePaused && t.ctl != ctlResume:
		return nil
	}
	t.ctl = ctlPause
	t.signalLocked()
	return nil
}

func (t *task) requestResume() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.state.IsTerminal():
		return ErrTaskFinished
	case t.ctl == ctlCancel:
		return nil
	case t.ctl == ctlPause:
		// The worker has not acted on the pause yet; withdraw it.
		t.ctl = ctlNone
		return nil
	}
	t.ctl = ctlResume
	t.signalLocked()
	return nil
}

func (t *task) requestCancel() error {
	t.mu.Lock()
	if t.state.IsTerminal() {
		t.mu.Unlock()
		return ErrTaskFinished
	}
	t.ctl = ctlCancel
	t.signalLocked()
	t.mu.Unlock()

	t.abortFetch()
	return nil
}

func (t *task) cancelRequested() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ctl == ctlCancel
}
