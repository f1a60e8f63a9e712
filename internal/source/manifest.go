package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	httpclient "github.com/handiism/manhua-downloader/internal/http"
	"github.com/handiism/manhua-downloader/internal/model"
)

// Manifest describes a comic and the image URLs of its chapters.
//
// It replaces site scraping: whatever produces the page lists (a scraper,
// an export from another tool, a hand-written file) only has to emit this
// document.
//
//	{
//	  "comic": {"id": 1, "title": "...", "groups": {"单话": [{"chapterId": 10, "chapterTitle": "第1话"}]}},
//	  "imageBase": "https://i.example.com/",
//	  "images": {"10": ["ps1/a/001.jpg.webp", "ps1/a/002.jpg.webp"]}
//	}
type Manifest struct {
	Comic     model.Comic        `json:"comic"`
	ImageBase string             `json:"imageBase,omitempty"`
	Images    map[int64][]string `json:"images"`
}

// ParseManifest decodes a manifest and fills in the chapter owner fields.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: manifest: %v", ErrParse, err)
	}
	if m.Comic.Title == "" {
		return nil, fmt.Errorf("%w: manifest has no comic title", ErrParse)
	}
	m.Comic.Normalize()
	return &m, nil
}

// LoadManifest reads a manifest from a local path or an http(s) URL.
func LoadManifest(ctx context.Context, client *httpclient.Client, location string) (*Manifest, error) {
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		data, err = client.Get(ctx, location)
		err = mapError(err)
	} else {
		data, err = os.ReadFile(location)
	}
	if err != nil {
		return nil, fmt.Errorf("load manifest %s: %w", location, err)
	}
	return ParseManifest(data)
}

// ManifestSource is a Fetcher that lists images from a Manifest and fetches
// them over HTTP.
type ManifestSource struct {
	manifest *Manifest
	client   *httpclient.Client
	base     *url.URL
}

// NewManifestSource creates a fetcher for the given manifest.
func NewManifestSource(m *Manifest, client *httpclient.Client) (*ManifestSource, error) {
	s := &ManifestSource{manifest: m, client: client}
	if m.ImageBase != "" {
		base, err := url.Parse(m.ImageBase)
		if err != nil {
			return nil, fmt.Errorf("%w: imageBase: %v", ErrParse, err)
		}
		s.base = base
	}
	return s, nil
}

// Comic returns the manifest's comic.
func (s *ManifestSource) Comic() *model.Comic {
	return &s.manifest.Comic
}

// ListImages implements Fetcher.
func (s *ManifestSource) ListImages(ctx context.Context, chapter model.ChapterRef) ([]model.ImageDescriptor, error) {
	urls, ok := s.manifest.Images[chapter.ID]
	if !ok {
		return nil, fmt.Errorf("%w: chapter %d has no image list", ErrParse, chapter.ID)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: chapter %d has no images", ErrParse, chapter.ID)
	}

	resolved := make([]string, len(urls))
	for i, u := range urls {
		r, err := s.resolve(u)
		if err != nil {
			return nil, fmt.Errorf("%w: chapter %d image %d: %v", ErrParse, chapter.ID, i+1, err)
		}
		resolved[i] = r
	}
	return model.NewImageDescriptors(resolved), nil
}

// FetchImage implements Fetcher.
func (s *ManifestSource) FetchImage(ctx context.Context, image model.ImageDescriptor) ([]byte, error) {
	data, err := s.client.Get(ctx, image.URL)
	if err != nil {
		return nil, mapError(err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body for image %d", ErrParse, image.Index)
	}
	return data, nil
}

// FetchCover returns the cover image bytes, or nil when the comic has none.
func (s *ManifestSource) FetchCover(ctx context.Context) ([]byte, error) {
	if s.manifest.Comic.Cover == "" {
		return nil, nil
	}
	u, err := s.resolve(s.manifest.Comic.Cover)
	if err != nil {
		return nil, fmt.Errorf("%w: cover: %v", ErrParse, err)
	}
	data, err := s.client.Get(ctx, u)
	return data, mapError(err)
}

func (s *ManifestSource) resolve(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if s.base == nil || u.IsAbs() {
		return u.String(), nil
	}
	return s.base.ResolveReference(u).String(), nil
}

// mapError translates transport errors into the source error taxonomy.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var se *httpclient.StatusError
	if !errors.As(err, &se) {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	switch {
	case se.Code == http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: se.RetryAfter}
	case se.Code == http.StatusServiceUnavailable && se.HasRetryAfter():
		return &RateLimitError{RetryAfter: se.RetryAfter}
	case se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden:
		return fmt.Errorf("%w: %v", ErrAuthRequired, se)
	case se.Code == http.StatusNotFound || se.Code == http.StatusGone:
		return fmt.Errorf("%w: %v", ErrParse, se)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, se)
}
