package events

import (
	"time"

	"github.com/handiism/manhua-downloader/internal/model"
)

// Type identifies the kind of an Event.
type Type string

const (
	// TaskCreated is published once when a task is enqueued.
	TaskCreated Type = "taskCreated"
	// TaskProgress carries a snapshot after a state or counter change.
	TaskProgress Type = "taskProgress"
	// TaskSleeping is published every second of a rate-limit countdown.
	TaskSleeping Type = "taskSleeping"
	// TaskTerminal carries the final snapshot of a task.
	TaskTerminal Type = "taskTerminal"
	// Speed is the periodic aggregate throughput sample.
	Speed Type = "speed"
	// Cooldown is published every second a completed chapter holds its
	// slot through the chapter interval. It carries no snapshot.
	Cooldown Type = "chapterCooldown"
)

// Event is a message published on the Bus.
//
// Task events carry an immutable snapshot; consumers key them by ChapterID
// and overwrite, so applying the same event twice is harmless.
type Event struct {
	Type         Type                `json:"type"`
	ChapterID    int64               `json:"chapterId,omitempty"`
	Task         *model.TaskSnapshot `json:"task,omitempty"`
	RemainingSec int                 `json:"remainingSec,omitempty"`
	Speed        string              `json:"speed,omitempty"`
	BytesPerSec  float64             `json:"bytesPerSec,omitempty"`
	At           time.Time           `json:"at"`
}

// IsTask reports whether the event belongs to a task.
func (e Event) IsTask() bool {
	return e.Task != nil
}
