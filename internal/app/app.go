package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/handiism/manhua-downloader/internal/config"
	"github.com/handiism/manhua-downloader/internal/download"
	httpclient "github.com/handiism/manhua-downloader/internal/http"
	ioutils "github.com/handiism/manhua-downloader/internal/io"
	"github.com/handiism/manhua-downloader/internal/logging"
	"github.com/handiism/manhua-downloader/internal/metadata"
	"github.com/handiism/manhua-downloader/internal/metrics"
	"github.com/handiism/manhua-downloader/internal/model"
	"github.com/handiism/manhua-downloader/internal/source"
)

// ErrUnknownChapter is returned when a requested chapter is not in the
// manifest.
var ErrUnknownChapter = errors.New("chapter not in manifest")

// App holds the components shared by the commands.
type App struct {
	Settings *config.Settings
	Log      *slog.Logger
	Client   *httpclient.Client
	Store    *metadata.FileStore

	logger *logging.Logger
}

// New builds an App from settings. Log records go to console and to the
// configured log directory.
func New(s *config.Settings, console io.Writer) (*App, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	logger, err := logging.New(s, console)
	if err != nil {
		return nil, err
	}
	log := logger.Logger
	slog.SetDefault(log)

	metrics.Register()
	client := httpclient.FromSettings(s,
		httpclient.WithLogger(log.With("component", "http")),
		httpclient.WithCookie(source.StaticSession(s.Cookie).Cookie),
	)

	return &App{
		Settings: s,
		Log:      log,
		Client:   client,
		Store:    metadata.NewFileStore(s.DownloadDir, log),
		logger:   logger,
	}, nil
}

// Close releases the log file.
func (a *App) Close() error {
	return a.logger.Close()
}

// OpenManifest loads a manifest, merges the stored downloaded flags into
// its comic and persists the comic record next to the chapters. The cover
// is saved once when enabled.
func (a *App) OpenManifest(ctx context.Context, location string) (*source.ManifestSource, error) {
	m, err := source.LoadManifest(ctx, a.Client, location)
	if err != nil {
		return nil, err
	}
	src, err := source.NewManifestSource(m, a.Client)
	if err != nil {
		return nil, err
	}

	comic := src.Comic()
	if err := a.Store.Save(comic); err != nil {
		return nil, fmt.Errorf("save comic record: %w", err)
	}
	done, total := comic.DownloadedCount()
	a.Log.Info("manifest loaded", "comic", comic.Title, "chapters", total, "downloaded", done)

	if a.Settings.SaveCover {
		if err := a.saveCover(ctx, src); err != nil {
			a.Log.Warn("cover not saved", "comic", comic.Title, "err", err)
		}
	}
	return src, nil
}

func (a *App) saveCover(ctx context.Context, src *source.ManifestSource) error {
	title := src.Comic().Title
	path := filepath.Join(model.ComicDir(a.Settings.DownloadDir, title), metadata.CoverFileName)
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	data, err := src.FetchCover(ctx)
	if err != nil || data == nil {
		return err
	}
	thumb, err := ioutils.NewImageService().ResizeImage(ctx, data, a.Settings.CoverMaxWidth, a.Settings.CoverMaxHeight)
	if err != nil {
		return fmt.Errorf("resize cover: %w", err)
	}
	return a.Store.SaveCover(title, thumb)
}

// NewManager creates a download manager that fetches through fetcher and
// records completion in the store.
func (a *App) NewManager(fetcher source.Fetcher, opts ...download.Option) (*download.Manager, error) {
	opts = append([]download.Option{download.WithLogger(a.Log)}, opts...)
	return download.NewManager(a.Settings, fetcher, a.Store, opts...)
}

// Catalog resolves chapter ids against a comic, reading the downloaded flag
// from the store so chapters finished in this session are seen as done.
type Catalog struct {
	comic *model.Comic
	store metadata.Store
}

// NewCatalog creates a Catalog.
func NewCatalog(comic *model.Comic, store metadata.Store) *Catalog {
	return &Catalog{comic: comic, store: store}
}

// Chapter returns the chapter with the given id.
func (c *Catalog) Chapter(id int64) (model.ChapterRef, bool) {
	ch, ok := c.comic.Chapter(id)
	if !ok {
		return model.ChapterRef{}, false
	}
	if stored, err := c.store.Load(c.comic.Title); err == nil {
		if sc, ok := stored.Chapter(id); ok && sc.IsDownloaded {
			ch.IsDownloaded = true
		}
	}
	return ch, true
}

// Select returns the chapters to enqueue: the listed ids in order, or every
// chapter not yet downloaded when ids is empty.
func (c *Catalog) Select(ids []int64) ([]model.ChapterRef, error) {
	if len(ids) == 0 {
		var out []model.ChapterRef
		for _, ch := range c.comic.Chapters() {
			if ch, _ := c.Chapter(ch.ID); !ch.IsDownloaded {
				out = append(out, ch)
			}
		}
		return out, nil
	}

	out := make([]model.ChapterRef, 0, len(ids))
	for _, id := range ids {
		ch, ok := c.Chapter(id)
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownChapter, id)
		}
		out = append(out, ch)
	}
	return out, nil
}
