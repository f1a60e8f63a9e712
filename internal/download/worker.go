package download

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/handiism/manhua-downloader/internal/events"
	ioutils "github.com/handiism/manhua-downloader/internal/io"
	"github.com/handiism/manhua-downloader/internal/metrics"
	"github.com/handiism/manhua-downloader/internal/model"
	"github.com/handiism/manhua-downloader/internal/source"
)

type imageResult struct {
	index int
	bytes int
	err   error
}

// runTask drives one task from Pending to a terminal state. tk is the
// task's place in the chapter queue.
func (m *Manager) runTask(t *task, tk *ticket) {
	defer m.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("task worker panicked", "chapter_id", t.ref.ID, "task_id", t.id, "panic", r)
			to := model.StateFailed
			if !model.CanTransition(t.currentState(), to) {
				to = model.StateCancelled
			}
			m.finish(t, to, fmt.Errorf("worker panic: %v", r))
		}
	}()

	for m.admit(t, tk) {
		if !m.download(t) || !m.park(t) {
			return
		}
		tk = m.admission.push(m.ctx, t.ref.ID)
	}
}

// admit waits until tk is granted a chapter slot. A task paused while
// queued gives up its place and rejoins at the back once resumed. admit
// returns false when the task ended while queued.
func (m *Manager) admit(t *task, tk *ticket) bool {
	for {
		c, sig := t.takeControl()
		switch c {
		case ctlCancel:
			m.admission.withdraw(tk)
			m.finish(t, model.StateCancelled, nil)
			return false
		case ctlPause:
			m.admission.withdraw(tk)
			m.transition(t, model.StatePaused, nil)
			if !m.park(t) {
				return false
			}
			tk = m.admission.push(m.ctx, t.ref.ID)
			continue
		}

		select {
		case <-tk.granted:
			return true
		case <-sig:
		case <-m.ctx.Done():
			m.admission.withdraw(tk)
			m.finish(t, model.StateCancelled, nil)
			return false
		}
	}
}

// park blocks a paused task until it is resumed or cancelled. It returns
// true when the task went back to Pending.
func (m *Manager) park(t *task) bool {
	for {
		c, sig := t.takeControl()
		switch c {
		case ctlCancel:
			m.finish(t, model.StateCancelled, nil)
			return false
		case ctlResume:
			return m.transition(t, model.StatePending, func() { t.retryAfter = 0 })
		}

		select {
		case <-sig:
		case <-m.ctx.Done():
			m.finish(t, model.StateCancelled, nil)
			return false
		}
	}
}

// download runs the task while it holds a chapter slot. It returns true
// when the task was paused.
func (m *Manager) download(t *task) (paused bool) {
	completed := false
	defer func() {
		if completed {
			m.cooldown(t.ref.ID)
			return
		}
		m.chapterPool.Release()
	}()

	switch c, _ := t.takeControl(); c {
	case ctlCancel:
		m.finish(t, model.StateCancelled, nil)
		return false
	case ctlPause:
		m.transition(t, model.StatePaused, nil)
		return true
	}
	if !m.transition(t, model.StateDownloading, nil) {
		return false
	}

	if !t.listed {
		images, c, err := m.listImages(t)
		switch {
		case err != nil:
			m.finish(t, model.StateFailed, err)
			return false
		case c != ctlNone:
			return m.stop(t, c)
		}
		t.images = images
		t.listed = true
		m.update(t, events.TaskProgress, func() { t.total = len(images) })
	}

	dir := t.ref.Dir(m.settings.DownloadDir)
	present, err := ioutils.Reconcile(dir, t.images)
	if err != nil {
		m.finish(t, model.StateFailed, err)
		return false
	}
	t.done = present
	metrics.ImagesSkipped.Add(float64(len(present)))
	m.update(t, events.TaskProgress, func() { t.downloaded = len(present) })

	if err := ioutils.EnsureDir(dir); err != nil {
		m.finish(t, model.StateFailed, err)
		return false
	}

	c, err := m.fetchImages(t, dir)
	switch {
	case err != nil:
		m.finish(t, model.StateFailed, err)
		return false
	case c != ctlNone:
		return m.stop(t, c)
	}

	if err := m.recorder.MarkDownloaded(t.ref); err != nil {
		m.finish(t, model.StateFailed, fmt.Errorf("record chapter: %w", err))
		return false
	}
	t.mu.Lock()
	t.ref.IsDownloaded = true
	t.mu.Unlock()

	completed = true
	m.finish(t, model.StateCompleted, nil)
	return false
}

// stop applies a pause or cancel request taken by the worker.
func (m *Manager) stop(t *task, c control) (paused bool) {
	if c == ctlPause {
		m.transition(t, model.StatePaused, func() { t.retryAfter = 0 })
		return true
	}
	m.finish(t, model.StateCancelled, nil)
	return false
}

// listImages fetches the chapter's image list, sleeping through rate
// limits. A non-none control means the wait was interrupted.
func (m *Manager) listImages(t *task) ([]model.ImageDescriptor, control, error) {
	for attempt := 1; ; attempt++ {
		images, err := m.fetcher.ListImages(t.fetchCtx, t.ref)
		if err == nil {
			if len(images) == 0 {
				return nil, ctlNone, fmt.Errorf("%w: chapter %d has no images", source.ErrParse, t.ref.ID)
			}
			return images, ctlNone, nil
		}
		if t.cancelRequested() || m.ctx.Err() != nil {
			return nil, ctlCancel, nil
		}

		rl, ok := source.AsRateLimit(err)
		if !ok {
			return nil, ctlNone, fmt.Errorf("list images: %w", err)
		}
		metrics.RateLimited.Inc()
		if attempt > m.settings.MaxRateLimitRetries {
			return nil, ctlNone, fmt.Errorf("list images: %w", err)
		}

		secs := m.retrySeconds(rl)
		m.log.Warn("rate limited", "chapter_id", t.ref.ID, "stage", "list", "retry_after", secs)
		m.enterSleep(t, secs)
		if c := m.countdown(t, secs); c != ctlNone {
			return nil, c, nil
		}
	}
}

// fetchImages downloads every missing image of t into dir. It returns
// when all images are present, when a pause or cancel request has been
// taken and in-flight fetches have drained, or on the first hard error.
func (m *Manager) fetchImages(t *task, dir string) (control, error) {
	pending := make([]int, 0, len(t.images))
	byIndex := make(map[int]model.ImageDescriptor, len(t.images))
	for _, img := range t.images {
		byIndex[img.Index] = img
		if _, ok := t.done[img.Index]; !ok {
			pending = append(pending, img.Index)
		}
	}

	var (
		results  = make(chan imageResult, len(t.images))
		retries  = make(map[int]int)
		inflight int
		sleepFor int
		stop     control
		failure  error
		shutdown = m.ctx.Done()
	)
	canStart := func() bool {
		return failure == nil && stop == ctlNone && sleepFor == 0 && len(pending) > 0
	}
	start := func() {
		idx := pending[0]
		pending = pending[1:]
		inflight++
		m.wg.Add(1)
		go m.fetchImage(t, dir, byIndex[idx], results)
	}

	for {
		c, sig := t.takeControl()
		switch {
		case c == ctlCancel, c == ctlPause && stop == ctlNone:
			stop = c
		case c == ctlResume && stop == ctlPause:
			// Resumed before in-flight fetches drained.
			stop = ctlNone
		}

		if inflight == 0 && !canStart() {
			switch {
			case failure != nil:
				return ctlNone, failure
			case stop != ctlNone:
				return stop, nil
			case sleepFor > 0:
				if c := m.countdown(t, sleepFor); c != ctlNone {
					return c, nil
				}
				sleepFor = 0
				continue
			}
			return ctlNone, nil
		}

		var acquired chan error
		cancelAcquire := func() {}
		if canStart() {
			ctx, cancel := context.WithCancel(m.ctx)
			ch := make(chan error, 1)
			go func() { ch <- m.imagePool.Acquire(ctx) }()
			acquired, cancelAcquire = ch, cancel
		}

		select {
		case err := <-acquired:
			acquired = nil
			if err == nil {
				start()
			}
		case r := <-results:
			inflight--
			var err error
			sleepFor, err = m.handleResult(t, r, &pending, retries, sleepFor, failure == nil && stop == ctlNone)
			if err != nil && failure == nil {
				failure = err
				t.abortFetch()
			}
		case <-sig:
		case <-shutdown:
			shutdown = nil
			stop = ctlCancel
		}

		cancelAcquire()
		if acquired != nil {
			if err := <-acquired; err == nil {
				if canStart() {
					start()
				} else {
					m.imagePool.Release()
				}
			}
		}
	}
}

// handleResult applies one fetch outcome and returns the updated sleep
// length. A rate-limited index goes back to the front of pending.
func (m *Manager) handleResult(t *task, r imageResult, pending *[]int, retries map[int]int, sleepFor int, running bool) (int, error) {
	rl, limited := source.AsRateLimit(r.err)
	switch {
	case r.err == nil:
		t.done[r.index] = struct{}{}
		m.receivedBytes.Add(int64(r.bytes))
		metrics.ImagesDownloaded.Inc()
		metrics.BytesDownloaded.Add(float64(r.bytes))
		m.update(t, events.TaskProgress, func() { t.downloaded = len(t.done) })
		return sleepFor, nil

	case limited:
		*pending = append([]int{r.index}, *pending...)
		metrics.RateLimited.Inc()
		retries[r.index]++
		if retries[r.index] > m.settings.MaxRateLimitRetries {
			return sleepFor, fmt.Errorf("image %d: %w", r.index, r.err)
		}
		if !running {
			return sleepFor, nil
		}
		secs := m.retrySeconds(rl)
		m.log.Warn("rate limited", "chapter_id", t.ref.ID, "image", r.index, "retry_after", secs)
		m.enterSleep(t, secs)
		return max(sleepFor, secs), nil

	case errors.Is(r.err, context.Canceled):
		*pending = append([]int{r.index}, *pending...)
		return sleepFor, nil
	}
	return sleepFor, fmt.Errorf("image %d: %w", r.index, r.err)
}

// fetchImage downloads one image while holding an image slot. The slot is
// held through the politeness interval only after a successful write.
func (m *Manager) fetchImage(t *task, dir string, img model.ImageDescriptor, results chan<- imageResult) {
	defer m.wg.Done()

	data, err := m.fetcher.FetchImage(t.fetchCtx, img)
	n := len(data)
	if err == nil && m.settings.ConvertWebPToJPEG {
		data, err = m.images.Normalize(t.fetchCtx, data)
	}
	if err == nil {
		err = ioutils.WriteFileAtomic(filepath.Join(dir, img.FileName), data)
	}
	if err != nil {
		m.imagePool.Release()
		results <- imageResult{index: img.Index, err: err}
		return
	}

	results <- imageResult{index: img.Index, bytes: n}
	m.imagePool.ReleaseAfterInterval(m.ctx)
}

// enterSleep moves t to Sleeping, or extends the current countdown.
func (m *Manager) enterSleep(t *task, secs int) {
	if t.currentState() == model.StateSleeping {
		m.update(t, events.TaskSleeping, func() { t.retryAfter = max(t.retryAfter, secs) })
		return
	}
	m.transition(t, model.StateSleeping, func() { t.retryAfter = secs })
}

// countdown waits secs units while Sleeping, publishing the remaining time
// on every unit, then returns t to Downloading. A pause or cancel request
// interrupts the wait and is returned.
func (m *Manager) countdown(t *task, secs int) control {
	ticker := time.NewTicker(m.countdownUnit)
	defer ticker.Stop()

	for left := secs; left > 0; {
		c, sig := t.takeControl()
		if c == ctlPause || c == ctlCancel {
			return c
		}
		select {
		case <-ticker.C:
			left--
			if left > 0 {
				m.update(t, events.TaskSleeping, func() { t.retryAfter = left })
			}
		case <-sig:
		case <-m.ctx.Done():
			return ctlCancel
		}
	}
	m.transition(t, model.StateDownloading, func() { t.retryAfter = 0 })
	return ctlNone
}

// cooldown holds the chapter slot of a completed chapter through the
// chapter interval, publishing the remaining units on every unit. Shutdown
// ends it early.
func (m *Manager) cooldown(chapterID int64) {
	defer m.chapterPool.Release()

	interval := m.chapterPool.Interval()
	if interval <= 0 {
		return
	}
	left := int(math.Ceil(float64(interval) / float64(m.countdownUnit)))
	ticker := time.NewTicker(m.countdownUnit)
	defer ticker.Stop()

	for ; left > 0; left-- {
		m.bus.Publish(events.Event{Type: events.Cooldown, ChapterID: chapterID, RemainingSec: left})
		select {
		case <-ticker.C:
		case <-m.ctx.Done():
			return
		}
	}
}

func (m *Manager) retrySeconds(rl *source.RateLimitError) int {
	if rl.RetryAfter > 0 {
		return int(math.Ceil(rl.RetryAfter.Seconds()))
	}
	return max(m.settings.DefaultRetryAfter, 1)
}
