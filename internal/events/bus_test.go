package events

import (
	"testing"
	"time"

	"github.com/handiism/manhua-downloader/internal/model"
)

func taskEvent(chapterID int64, seq uint64, state model.TaskState) Event {
	return Event{
		Type:      TaskProgress,
		ChapterID: chapterID,
		Task: &model.TaskSnapshot{
			TaskID:    "t",
			Chapter:   model.ChapterRef{ID: chapterID},
			State:     state,
			Seq:       seq,
			CreatedAt: time.Unix(chapterID, 0),
		},
	}
}

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case e, ok := <-sub.C():
		if !ok {
			t.Fatal("subscription closed")
		}
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestBus_OrderedDelivery(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	sub := bus.Subscribe()

	// Publishing never blocks even though nobody is reading yet.
	for i := uint64(1); i <= 500; i++ {
		bus.Publish(taskEvent(1, i, model.StateDownloading))
	}

	for i := uint64(1); i <= 500; i++ {
		e := receive(t, sub)
		if e.Task.Seq != i {
			t.Fatalf("event %d has seq %d", i, e.Task.Seq)
		}
		if e.At.IsZero() {
			t.Fatal("At should be stamped on publish")
		}
	}
}

func TestBus_ReplaysLatestToLateSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	bus.Publish(taskEvent(2, 1, model.StateDownloading))
	bus.Publish(taskEvent(1, 1, model.StateDownloading))
	bus.Publish(taskEvent(1, 2, model.StateCompleted))
	bus.Publish(Event{Type: Speed, Speed: "1.00 MB/s"})

	sub := bus.Subscribe()
	first := receive(t, sub)
	second := receive(t, sub)

	if first.ChapterID != 1 || first.Task.State != model.StateCompleted {
		t.Errorf("first replayed = chapter %d %s, want chapter 1 Completed", first.ChapterID, first.Task.State)
	}
	if second.ChapterID != 2 {
		t.Errorf("second replayed = chapter %d, want 2", second.ChapterID)
	}

	bus.Publish(Event{Type: Speed, Speed: "2.00 MB/s"})
	if e := receive(t, sub); e.Type != Speed {
		t.Errorf("live event type = %s, want speed (speed samples are not replayed)", e.Type)
	}
}

func TestBus_SubscribeChapter(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	sub := bus.SubscribeChapter(7)

	bus.Publish(taskEvent(1, 1, model.StateDownloading))
	bus.Publish(Event{Type: Speed})
	bus.Publish(taskEvent(7, 1, model.StateDownloading))

	if e := receive(t, sub); e.ChapterID != 7 {
		t.Errorf("got chapter %d, want 7", e.ChapterID)
	}
}

func TestBus_Forget(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	bus.Publish(taskEvent(1, 1, model.StateFailed))

	if _, ok := bus.Latest(1); !ok {
		t.Fatal("Latest(1) missing")
	}
	if !bus.Forget(1) {
		t.Error("Forget(1) = false")
	}
	if bus.Forget(1) {
		t.Error("second Forget(1) = true")
	}
	if _, ok := bus.Latest(1); ok {
		t.Error("Latest(1) present after Forget")
	}
}

func TestBus_ExpireEvictsOldest(t *testing.T) {
	bus := NewBus(WithExpiredLimit(2))
	defer bus.Close()

	finished := func(chapterID int64, taskID string) {
		e := taskEvent(chapterID, 1, model.StateCompleted)
		e.Task.TaskID = taskID
		bus.Publish(e)
		bus.Expire(chapterID, taskID)
	}
	finished(1, "a")
	finished(2, "b")
	if _, ok := bus.Latest(1); !ok {
		t.Fatal("Latest(1) evicted before the limit was exceeded")
	}

	finished(3, "c")
	if _, ok := bus.Latest(1); ok {
		t.Error("Latest(1) kept past the expired limit")
	}

	// A newer task of chapter 2 replaces the expired one and survives its
	// eviction.
	bus.Publish(taskEvent(2, 1, model.StateDownloading))
	finished(4, "d")
	e, ok := bus.Latest(2)
	if !ok || e.Task.State != model.StateDownloading {
		t.Errorf("Latest(2) = %v, %v; want the live task", e.Task, ok)
	}
	for _, id := range []int64{3, 4} {
		if _, ok := bus.Latest(id); !ok {
			t.Errorf("Latest(%d) missing", id)
		}
	}
}

func TestBus_UnexpiredTasksAreKept(t *testing.T) {
	bus := NewBus(WithExpiredLimit(0))
	defer bus.Close()

	bus.Publish(taskEvent(1, 1, model.StateFailed))
	bus.Publish(taskEvent(2, 1, model.StateCompleted))
	bus.Expire(2, "t")

	if _, ok := bus.Latest(1); !ok {
		t.Error("failed task dropped without Expire")
	}
	if _, ok := bus.Latest(2); ok {
		t.Error("expired task kept with a zero limit")
	}
}

func TestSubscription_Close(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	sub.Close()
	sub.Close()

	select {
	case _, ok := <-sub.C():
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed")
	}

	bus.Close()
	late := bus.Subscribe()
	if _, ok := <-late.C(); ok {
		t.Error("subscription on a closed bus should be closed")
	}
}
