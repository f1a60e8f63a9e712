package model

import (
	"errors"
	"fmt"
)

// TaskState is the lifecycle state of a chapter download task.
type TaskState string

const (
	// StatePending means the task is queued and holds no resources.
	StatePending TaskState = "Pending"
	// StateDownloading means the task holds a chapter slot and is issuing
	// or awaiting image fetches.
	StateDownloading TaskState = "Downloading"
	// StateSleeping means the task holds its chapter slot but waits out a
	// rate-limit backoff before retrying the current image.
	StateSleeping TaskState = "Sleeping"
	// StatePaused means the task was suspended by the user and released
	// its chapter slot.
	StatePaused TaskState = "Paused"
	// StateCancelled is terminal.
	StateCancelled TaskState = "Cancelled"
	// StateCompleted is terminal.
	StateCompleted TaskState = "Completed"
	// StateFailed is terminal.
	StateFailed TaskState = "Failed"
)

// ErrIllegalTransition is returned by Transition for edges that are not
// part of the task lifecycle.
var ErrIllegalTransition = errors.New("illegal task state transition")

var transitions = map[TaskState][]TaskState{
	StatePending:     {StateDownloading, StatePaused, StateCancelled},
	StateDownloading: {StateSleeping, StatePaused, StateCancelled, StateCompleted, StateFailed},
	StateSleeping:    {StateDownloading, StatePaused, StateCancelled, StateFailed},
	StatePaused:      {StatePending, StateDownloading, StateCancelled},
}

// IsTerminal reports whether no further transitions are possible.
func (s TaskState) IsTerminal() bool {
	switch s {
	case StateCancelled, StateCompleted, StateFailed:
		return true
	}
	return false
}

// IsActive reports whether the state holds a chapter slot.
func (s TaskState) IsActive() bool {
	return s == StateDownloading || s == StateSleeping
}

// Valid reports whether s is a known state.
func (s TaskState) Valid() bool {
	switch s {
	case StatePending, StateDownloading, StateSleeping, StatePaused,
		StateCancelled, StateCompleted, StateFailed:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to TaskState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition validates the edge from -> to.
func Transition(from, to TaskState) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	return nil
}
