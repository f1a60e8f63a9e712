// Package pool provides the bounded concurrency pools of the downloader.
//
// The download manager uses two independent pools: one admits chapters, the
// other admits image fetches across all chapters combined. They must stay
// separate so that one large chapter cannot take every image slot.
//
//	chapters := pool.New("chapter", settings.ChapterConcurrency, settings.ChapterInterval())
//	images := pool.New("image", settings.ImageConcurrency, settings.ImageInterval())
//
//	if err := images.Acquire(ctx); err != nil {
//	    return err // ctx done while waiting
//	}
//	fetch()
//	images.ReleaseAfterInterval(ctx)
package pool
