package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	ioutils "github.com/handiism/manhua-downloader/internal/io"
	"github.com/handiism/manhua-downloader/internal/model"
)

// FileName is the name of the record stored in every comic directory.
const FileName = "metadata.json"

// CoverFileName is the name of the cover thumbnail in a comic directory.
const CoverFileName = "cover.jpg"

// ErrNotFound is returned when a comic has no stored record.
var ErrNotFound = errors.New("comic metadata not found")

// Store persists comic records.
type Store interface {
	Save(comic *model.Comic) error
	Load(comicTitle string) (*model.Comic, error)
	MarkDownloaded(chapter model.ChapterRef) error
	List() ([]*model.Comic, error)
}

// FileStore keeps one JSON record per comic next to the downloaded files:
//
//	<root>/<comic title>/metadata.json
//
// Writes are serialized and atomic.
type FileStore struct {
	root string
	log  *slog.Logger
	mu   sync.Mutex
}

// NewFileStore creates a store rooted at the download directory.
func NewFileStore(root string, log *slog.Logger) *FileStore {
	if log == nil {
		log = slog.Default()
	}
	return &FileStore{root: root, log: log.With("component", "metadata")}
}

// Path returns the record path of a comic.
func (s *FileStore) Path(comicTitle string) string {
	return filepath.Join(model.ComicDir(s.root, comicTitle), FileName)
}

// Save writes the full record of a comic. Chapters already marked
// downloaded in the stored record stay marked, and comic is updated to
// reflect that.
func (s *FileStore) Save(comic *model.Comic) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.read(s.Path(comic.Title))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	comic.ApplyDownloaded(stored)
	return s.write(comic)
}

// Load reads the record of a comic.
func (s *FileStore) Load(comicTitle string) (*model.Comic, error) {
	return s.read(s.Path(comicTitle))
}

// MarkDownloaded flips the IsDownloaded flag of one chapter. When the comic
// has no record yet a minimal one is created from the chapter's owner fields.
func (s *FileStore) MarkDownloaded(chapter model.ChapterRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	comic, err := s.read(s.Path(chapter.ComicTitle))
	switch {
	case errors.Is(err, ErrNotFound):
		comic = &model.Comic{
			ID:     chapter.ComicID,
			Title:  chapter.ComicTitle,
			Groups: map[string][]model.ChapterRef{},
		}
	case err != nil:
		return err
	}

	if !comic.MarkDownloaded(chapter.ID) {
		chapter.IsDownloaded = true
		if comic.Groups == nil {
			comic.Groups = map[string][]model.ChapterRef{}
		}
		comic.Groups[chapter.GroupName] = append(comic.Groups[chapter.GroupName], chapter)
	}

	if err := s.write(comic); err != nil {
		return err
	}
	s.log.Debug("chapter marked downloaded", "comic", chapter.ComicTitle, "chapter_id", chapter.ID)
	return nil
}

// List returns every stored comic, sorted by title. Unreadable records are
// skipped and logged.
func (s *FileStore) List() ([]*model.Comic, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var comics []*model.Comic
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(s.root, e.Name(), FileName)
		comic, err := s.read(path)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			s.log.Warn("skipping unreadable metadata", "path", path, "error", err)
			continue
		}
		comics = append(comics, comic)
	}
	sort.Slice(comics, func(i, j int) bool { return comics[i].Title < comics[j].Title })
	return comics, nil
}

// SaveCover writes the cover image of a comic.
func (s *FileStore) SaveCover(comicTitle string, data []byte) error {
	dir := model.ComicDir(s.root, comicTitle)
	if err := ioutils.EnsureDir(dir); err != nil {
		return err
	}
	return ioutils.WriteFileAtomic(filepath.Join(dir, CoverFileName), data)
}

func (s *FileStore) read(path string) (*model.Comic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var comic model.Comic
	if err := json.Unmarshal(data, &comic); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &comic, nil
}

// write must be called with s.mu held.
func (s *FileStore) write(comic *model.Comic) error {
	dir := model.ComicDir(s.root, comic.Title)
	if err := ioutils.EnsureDir(dir); err != nil {
		return err
	}
	data, err := json.MarshalIndent(comic, "", "  ")
	if err != nil {
		return err
	}
	return ioutils.WriteFileAtomic(filepath.Join(dir, FileName), data)
}
