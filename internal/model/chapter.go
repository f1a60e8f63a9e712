package model

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// ChapterRef identifies one downloadable chapter.
//
// The chapter identifier is unique across the whole system and is the
// dedup key for download tasks.
//
// The local directory of a chapter is computed from the download root:
//
//	<root>/<comic title>/<group name>/<order> <chapter title>
//
// Example:
//
//	ch := ChapterRef{ID: 7, Title: "第1话", GroupName: "单话", ComicTitle: "Foo", Order: 1}
//	ch.Dir("/downloads") // "/downloads/Foo/单话/001 第1话"
type ChapterRef struct {
	ID           int64  `json:"chapterId"`
	Title        string `json:"chapterTitle"`
	GroupName    string `json:"groupName"`
	ComicID      int64  `json:"comicId"`
	ComicTitle   string `json:"comicTitle"`
	Order        int    `json:"order"`
	IsDownloaded bool   `json:"isDownloaded"`
}

// PrefixedTitle returns the chapter title prefixed with its zero-padded
// order, so directory listings sort in reading order.
func (c ChapterRef) PrefixedTitle() string {
	if c.Order <= 0 {
		return c.Title
	}
	return fmt.Sprintf("%03d %s", c.Order, c.Title)
}

// ComicDir returns the directory holding every chapter of the owning comic.
func (c ChapterRef) ComicDir(root string) string {
	return ComicDir(root, c.ComicTitle)
}

// Dir returns the directory the chapter's images are written to.
func (c ChapterRef) Dir(root string) string {
	return filepath.Join(
		c.ComicDir(root),
		sanitizeFileName(c.GroupName),
		sanitizeFileName(c.PrefixedTitle()),
	)
}

// ComicDir returns the directory of a comic below the download root.
func ComicDir(root, comicTitle string) string {
	return filepath.Join(root, sanitizeFileName(comicTitle))
}

var (
	invalidChars  = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	trailingDots  = regexp.MustCompile(`\.+$`)
	repeatedSpace = regexp.MustCompile(`\s+`)
)

// sanitizeFileName removes or replaces characters that are invalid in file/folder names.
//
// The following transformations are applied:
//   - Invalid characters (<>:"/\|?* and control chars) are replaced with underscore
//   - Trailing dots are removed (Windows limitation)
//   - Multiple whitespace is collapsed to single space
//   - Leading and trailing whitespace is removed
//
// An empty result becomes "_" so it never collapses a path segment.
func sanitizeFileName(name string) string {
	name = invalidChars.ReplaceAllString(name, "_")
	name = trailingDots.ReplaceAllString(name, "")
	name = repeatedSpace.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	if name == "" {
		return "_"
	}
	return name
}
