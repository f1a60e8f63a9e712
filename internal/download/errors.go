package download

import "errors"

var (
	// ErrAlreadyDownloaded rejects chapters whose IsDownloaded flag is set.
	ErrAlreadyDownloaded = errors.New("chapter already downloaded")
	// ErrDuplicateTask rejects chapters that already have an active task.
	ErrDuplicateTask = errors.New("chapter already has an active task")
	// ErrTaskNotFound is reported for control requests on unknown chapters.
	ErrTaskNotFound = errors.New("no task for chapter")
	// ErrTaskFinished is reported for control requests on terminal tasks.
	ErrTaskFinished = errors.New("task already finished")
	// ErrTaskActive is reported when dismissing a task that is not terminal.
	ErrTaskActive = errors.New("task is still active")
	// ErrShuttingDown rejects work after Shutdown.
	ErrShuttingDown = errors.New("download manager is shutting down")
)
