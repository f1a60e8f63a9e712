package source

import (
	"context"

	"github.com/handiism/manhua-downloader/internal/model"
)

// Fetcher is the content fetch port consumed by the download manager.
//
// Both methods may return a *RateLimitError to signal throttling on an
// otherwise successful exchange. Transient transport failures are retried
// inside the implementation and surface only once retries are exhausted.
type Fetcher interface {
	// ListImages returns the ordered image descriptors of a chapter.
	ListImages(ctx context.Context, chapter model.ChapterRef) ([]model.ImageDescriptor, error)
	// FetchImage returns the raw bytes of one image.
	FetchImage(ctx context.Context, image model.ImageDescriptor) ([]byte, error)
}

// SessionProvider supplies the credentials the fetcher needs.
type SessionProvider interface {
	Cookie(ctx context.Context) (string, error)
}

// StaticSession is a SessionProvider backed by a fixed cookie string.
type StaticSession string

// Cookie returns the configured cookie.
func (s StaticSession) Cookie(context.Context) (string, error) {
	return string(s), nil
}
