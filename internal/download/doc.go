// Package download provides the orchestration logic for downloading comic
// chapters.
//
// # Manager
//
// The Manager owns a registry of tasks, one per chapter. Each task runs in
// its own goroutine and walks this lifecycle:
//
//	Pending -> Downloading <-> Sleeping
//	   |           |              |
//	   +-> Paused <+--------------+
//	          |
//	          +-> Pending (resume)
//
// and ends in Completed, Cancelled or Failed. Completed and Cancelled tasks
// leave the registry after their terminal event is published; Failed tasks
// stay until dismissed or enqueued again.
//
// A task downloads as follows:
//
//  1. Wait for a chapter slot
//  2. Fetch the image list once and set the total
//  3. Reconcile the images already on disk
//  4. Fetch every missing image through the shared image pool
//  5. Record the chapter as downloaded
//
// # Basic Usage
//
//	mgr, err := download.NewManager(settings, fetcher, store)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go mgr.Run(ctx)
//
//	sub := mgr.Events().Subscribe()
//	defer sub.Close()
//
//	mgr.Enqueue(comic.Chapters())
//
// # Concurrency
//
// Two independent pools bound the work:
//   - ChapterConcurrency: how many tasks may hold a chapter slot
//   - ImageConcurrency: how many image fetches may run across all tasks
//
// The politeness intervals are charged to the unit that just finished: an
// image slot is held for ImageDownloadInterval after a successful write and
// a chapter slot for ChapterDownloadInterval after completion.
//
// # Rate Limits
//
// A rate-limited fetch puts the task to Sleeping. The task keeps its chapter
// slot but takes no image slot until the countdown runs out; then the same
// image is retried. More than MaxRateLimitRetries limits on one image fail
// the task.
//
// # Control
//
// Pause, Resume and Cancel are requests. The worker acts on them at its next
// suspension point: while queued, before taking an image slot, while
// sleeping or parked, and while a fetch is in flight. In-flight writes are
// never interrupted; files already written stay on disk.
package download
