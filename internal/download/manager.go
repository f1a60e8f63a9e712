package download

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/handiism/manhua-downloader/internal/config"
	"github.com/handiism/manhua-downloader/internal/events"
	ioutils "github.com/handiism/manhua-downloader/internal/io"
	"github.com/handiism/manhua-downloader/internal/metrics"
	"github.com/handiism/manhua-downloader/internal/model"
	"github.com/handiism/manhua-downloader/internal/pool"
	"github.com/handiism/manhua-downloader/internal/source"
)

// Recorder persists chapter completion.
type Recorder interface {
	MarkDownloaded(chapter model.ChapterRef) error
}

// EnqueueResult reports the outcome of Enqueue per chapter.
type EnqueueResult struct {
	Accepted []int64
	Rejected map[int64]error
}

// Manager coordinates chapter downloads.
//
// The manager owns the task registry. Callers interact with tasks only
// through Enqueue, Pause, Resume, Cancel and Dismiss, and observe them
// through snapshots and the event bus.
type Manager struct {
	settings *config.Settings
	fetcher  source.Fetcher
	recorder Recorder
	images   *ioutils.ImageService
	bus      *events.Bus
	log      *slog.Logger

	chapterPool *pool.Pool
	imagePool   *pool.Pool
	admission   *admission

	countdownUnit time.Duration
	speedInterval time.Duration
	now           func() time.Time

	mu     sync.RWMutex
	tasks  map[int64]*task
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	receivedBytes atomic.Int64
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithBus publishes events on an existing bus.
func WithBus(b *events.Bus) Option {
	return func(m *Manager) { m.bus = b }
}

// WithCountdownUnit sets the length of one rate-limit countdown step.
// Retry-after values are counted in these steps; the default is one second.
func WithCountdownUnit(d time.Duration) Option {
	return func(m *Manager) { m.countdownUnit = d }
}

// NewManager creates a new download Manager.
//
// Pool sizes and intervals are taken from settings here and never re-read.
func NewManager(settings *config.Settings, fetcher source.Fetcher, recorder Recorder, opts ...Option) (*Manager, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		settings:      settings,
		fetcher:       fetcher,
		recorder:      recorder,
		images:        ioutils.NewImageService(),
		countdownUnit: time.Second,
		speedInterval: settings.SpeedSampleInterval(),
		now:           time.Now,
		tasks:         make(map[int64]*task),
		ctx:           ctx,
		cancel:        cancel,
		log:           slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.bus == nil {
		m.bus = events.NewBus()
	}
	m.log = m.log.With("component", "download", "operation_id", uuid.NewString())
	m.chapterPool = pool.New("chapter", settings.ChapterConcurrency, settings.ChapterInterval())
	m.imagePool = pool.New("image", settings.ImageConcurrency, settings.ImageInterval())
	m.admission = newAdmission(m.chapterPool)
	go m.admission.run(m.ctx)
	return m, nil
}

// Events returns the bus the manager publishes on.
func (m *Manager) Events() *events.Bus {
	return m.bus
}

// Enqueue creates a Pending task for every chapter that is not downloaded
// and has no active task. A terminal task for the same chapter is replaced.
func (m *Manager) Enqueue(chapters []model.ChapterRef) EnqueueResult {
	res := EnqueueResult{Rejected: make(map[int64]error)}
	var (
		created []*task
		tickets []*ticket
	)

	m.mu.Lock()
	for _, ch := range chapters {
		switch {
		case m.closed:
			res.Rejected[ch.ID] = ErrShuttingDown
			continue
		case ch.IsDownloaded:
			res.Rejected[ch.ID] = ErrAlreadyDownloaded
			continue
		}
		if old, ok := m.tasks[ch.ID]; ok && !old.currentState().IsTerminal() {
			res.Rejected[ch.ID] = ErrDuplicateTask
			continue
		}

		t := newTask(m.ctx, ch, m.now())
		m.tasks[ch.ID] = t
		created = append(created, t)
		tickets = append(tickets, m.admission.push(m.ctx, ch.ID))
		res.Accepted = append(res.Accepted, ch.ID)
	}
	m.wg.Add(len(created))
	m.mu.Unlock()

	for i, t := range created {
		t.mu.Lock()
		m.publishLocked(t, events.TaskCreated)
		t.mu.Unlock()
		m.log.Info("task created", "chapter_id", t.ref.ID, "task_id", t.id, "chapter", t.ref.Title)
		go m.runTask(t, tickets[i])
	}
	for id, err := range res.Rejected {
		m.log.Debug("enqueue rejected", "chapter_id", id, "reason", err)
	}
	return res
}

// Pause asks a task to suspend. In-flight image writes complete first.
func (m *Manager) Pause(chapterID int64) error {
	t, err := m.lookup(chapterID)
	if err != nil {
		return err
	}
	return t.requestPause()
}

// Resume puts a paused task back into the chapter queue.
func (m *Manager) Resume(chapterID int64) error {
	t, err := m.lookup(chapterID)
	if err != nil {
		return err
	}
	return t.requestResume()
}

// Cancel stops a task at its next suspension point. Files already written
// stay on disk.
func (m *Manager) Cancel(chapterID int64) error {
	t, err := m.lookup(chapterID)
	if err != nil {
		return err
	}
	return t.requestCancel()
}

// Dismiss removes a terminal task from the registry and from the bus
// replay cache.
func (m *Manager) Dismiss(chapterID int64) error {
	m.mu.Lock()
	t, ok := m.tasks[chapterID]
	if ok {
		if !t.currentState().IsTerminal() {
			m.mu.Unlock()
			return ErrTaskActive
		}
		delete(m.tasks, chapterID)
	}
	m.mu.Unlock()

	if forgotten := m.bus.Forget(chapterID); !ok && !forgotten {
		return ErrTaskNotFound
	}
	return nil
}

// Snapshot returns the current view of every registered task, oldest first.
func (m *Manager) Snapshot() []model.TaskSnapshot {
	m.mu.RLock()
	out := make([]model.TaskSnapshot, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t.snapshot())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Chapter.ID < out[j].Chapter.ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Task returns the snapshot of one task.
func (m *Manager) Task(chapterID int64) (model.TaskSnapshot, error) {
	t, err := m.lookup(chapterID)
	if err != nil {
		return model.TaskSnapshot{}, err
	}
	return t.snapshot(), nil
}

// Run publishes an aggregate speed sample on a fixed cadence until ctx is
// done.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.speedInterval)
	defer ticker.Stop()

	last := m.now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.ctx.Done():
			return nil
		case now := <-ticker.C:
			elapsed := now.Sub(last).Seconds()
			last = now
			if elapsed <= 0 {
				continue
			}
			bps := float64(m.receivedBytes.Swap(0)) / elapsed
			metrics.DownloadSpeed.Set(bps)
			m.bus.Publish(events.Event{
				Type:        events.Speed,
				Speed:       FormatSpeed(bps),
				BytesPerSec: bps,
			})
		}
	}
}

// FormatSpeed renders bytes per second as megabytes per second.
func FormatSpeed(bytesPerSec float64) string {
	return fmt.Sprintf("%.2f MB/s", bytesPerSec/1024/1024)
}

// Shutdown cancels every task and waits for the workers to finish or for
// ctx to be done. No task can be enqueued afterwards. Shutdown may be called
// more than once.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	tasks := make([]*task, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, t)
	}
	m.mu.Unlock()

	for _, t := range tasks {
		t.requestCancel()
	}
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.log.Info("download manager stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) lookup(chapterID int64) (*task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[chapterID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return t, nil
}

// retire removes a finished task from the registry unless it was already
// replaced by a newer task for the same chapter.
func (m *Manager) retire(t *task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tasks[t.ref.ID] == t {
		delete(m.tasks, t.ref.ID)
	}
}

// publishLocked stamps and publishes the task's current snapshot.
// t.mu must be held, which keeps a task's events in order.
func (m *Manager) publishLocked(t *task, typ events.Type) {
	t.seq++
	t.updatedAt = m.now()
	snap := t.snapshotLocked()
	m.bus.Publish(events.Event{
		Type:         typ,
		ChapterID:    t.ref.ID,
		Task:         &snap,
		RemainingSec: snap.RetryAfter,
	})
}

// transition moves t to state to, applies mutate and publishes. Illegal
// edges are logged and ignored.
func (m *Manager) transition(t *task, to model.TaskState, mutate func()) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := model.Transition(t.state, to); err != nil {
		m.log.Error("rejected state change", "chapter_id", t.ref.ID, "task_id", t.id, "error", err)
		return false
	}
	t.state = to
	if mutate != nil {
		mutate()
	}

	typ := events.TaskProgress
	switch {
	case to.IsTerminal():
		typ = events.TaskTerminal
	case to == model.StateSleeping:
		typ = events.TaskSleeping
	}
	m.publishLocked(t, typ)
	metrics.TaskTransitions.WithLabelValues(string(to)).Inc()
	return true
}

// update applies mutate to the counters and publishes a progress or
// sleeping event.
func (m *Manager) update(t *task, typ events.Type, mutate func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	mutate()
	m.publishLocked(t, typ)
}

// finish moves t to a terminal state and retires it. Failed tasks stay in
// the registry until dismissed or replaced.
func (m *Manager) finish(t *task, to model.TaskState, cause error) {
	ok := m.transition(t, to, func() {
		t.retryAfter = 0
		if cause != nil {
			t.errKind = source.Classify(cause)
			t.errMsg = cause.Error()
		}
	})
	if !ok {
		return
	}
	t.abortFetch()

	attrs := []any{"chapter_id", t.ref.ID, "task_id", t.id, "state", to}
	if cause != nil {
		attrs = append(attrs, "error", cause)
	}
	if to == model.StateFailed {
		m.log.Error("task finished", attrs...)
	} else {
		m.log.Info("task finished", attrs...)
	}

	if to != model.StateFailed {
		m.retire(t)
		m.bus.Expire(t.ref.ID, t.id)
	}
}
