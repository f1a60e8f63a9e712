// Package metadata persists comic records next to the downloaded images.
//
// The record is the authority for chapter-level completeness: a chapter is
// downloaded when its IsDownloaded flag is set in metadata.json. Image-level
// resume is derived from the chapter directory instead (see ioutils.Reconcile).
//
//	store := metadata.NewFileStore(settings.DownloadDir, logger)
//	_ = store.Save(comic)               // when downloads are requested
//	_ = store.MarkDownloaded(chapter)   // when a chapter completes
//	stored, _ := store.Load(comic.Title)
//	comic.ApplyDownloaded(stored)       // on the next run
package metadata
