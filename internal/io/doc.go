// Package ioutils provides file system and image processing utilities.
//
// # File Operations
//
//	// Write a page so a crash never leaves a truncated file behind
//	err := ioutils.WriteFileAtomic("/downloads/Comic/单话/001 第1话/001.jpg", data)
//
//	// Ensure directory exists
//	err := ioutils.EnsureDir("/downloads/Comic/单话/001 第1话")
//
// # Resume Reconciliation
//
// Reconcile derives which pages of a chapter already exist from the chapter
// directory alone. The directory is the durable log; there is no journal.
//
//	present, err := ioutils.Reconcile(dir, descriptors)
//	if err != nil {
//	    // unreadable directory: fail the task
//	}
//	for _, d := range descriptors {
//	    if _, ok := present[d.Index]; ok {
//	        continue // already downloaded
//	    }
//	}
//
// # Image Processing
//
//	svc := ioutils.NewImageService()
//	page, _ := svc.Normalize(ctx, webpData)       // WebP -> JPEG
//	thumb, _ := svc.ResizeImage(ctx, cover, 300, 400)
package ioutils
