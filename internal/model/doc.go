// Package model defines the core data structures used throughout
// the manhua-downloader application.
//
// # Comic
//
// Comic is a content unit with chapters organized by group:
//
//	comic.Normalize()              // fill owner fields of nested chapters
//	chapters := comic.Chapters()   // every ChapterRef, stable order
//	comic.MarkDownloaded(chapterID)
//
// # ChapterRef
//
// ChapterRef identifies one chapter and computes its local directory:
//
//	dir := ch.Dir("/downloads") // "/downloads/<comic>/<group>/<order> <title>"
//
// # ImageDescriptor
//
// ImageDescriptor carries the 1-based index of an image and the file name
// derived from it ("001.jpg", "002.jpg", ...).
//
// # Task lifecycle
//
// TaskState and Transition define the legal lifecycle of a download task:
//
//	Pending -> Downloading -> (Sleeping <-> Downloading)* -> Completed
//	Pending/Downloading/Sleeping -> Paused -> Pending (resume)
//	Pending/Downloading/Sleeping/Paused -> Cancelled
//	Downloading/Sleeping -> Failed
//
// TaskSnapshot is the immutable view of a task published to observers.
package model
