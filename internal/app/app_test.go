package app

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handiism/manhua-downloader/internal/config"
	"github.com/handiism/manhua-downloader/internal/metadata"
	"github.com/handiism/manhua-downloader/internal/model"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testApp(t *testing.T) *App {
	t.Helper()
	s := config.DefaultSettings()
	s.DownloadDir = t.TempDir()
	s.LogDir = ""
	s.CoverMaxWidth, s.CoverMaxHeight = 30, 40

	a, err := New(s, io.Discard)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func writeManifest(t *testing.T, coverURL string) string {
	t.Helper()
	doc := fmt.Sprintf(`{
		"comic": {
			"id": 1,
			"title": "Test Comic",
			"cover": %q,
			"groups": {"单话": [
				{"chapterId": 10, "chapterTitle": "第1话"},
				{"chapterId": 11, "chapterTitle": "第2话"},
				{"chapterId": 12, "chapterTitle": "第3话"}
			]}
		},
		"images": {"10": ["1.png"], "11": ["1.png"], "12": ["1.png"]}
	}`, coverURL)
	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestNew_RejectsInvalidSettings(t *testing.T) {
	s := config.DefaultSettings()
	s.ChapterConcurrency = 0
	_, err := New(s, io.Discard)
	assert.Error(t, err)
}

func TestOpenManifest_SavesRecordAndCover(t *testing.T) {
	cover := pngBytes(t, 300, 400)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(cover)
	}))
	defer srv.Close()

	a := testApp(t)
	src, err := a.OpenManifest(context.Background(), writeManifest(t, srv.URL+"/cover.png"))
	require.NoError(t, err)
	assert.Equal(t, "Test Comic", src.Comic().Title)

	stored, err := a.Store.Load("Test Comic")
	require.NoError(t, err)
	_, total := stored.DownloadedCount()
	assert.Equal(t, 3, total)

	data, err := os.ReadFile(filepath.Join(model.ComicDir(a.Settings.DownloadDir, "Test Comic"), metadata.CoverFileName))
	require.NoError(t, err)
	thumb, _, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.LessOrEqual(t, thumb.Bounds().Dx(), 30)
	assert.LessOrEqual(t, thumb.Bounds().Dy(), 40)
}

func TestOpenManifest_CoverFailureIsNotFatal(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	a := testApp(t)
	_, err := a.OpenManifest(context.Background(), writeManifest(t, srv.URL+"/cover.png"))
	require.NoError(t, err)
}

func TestOpenManifest_KeepsDownloadedFlags(t *testing.T) {
	a := testApp(t)
	a.Settings.SaveCover = false
	path := writeManifest(t, "")

	src, err := a.OpenManifest(context.Background(), path)
	require.NoError(t, err)
	ch, _ := src.Comic().Chapter(11)
	require.NoError(t, a.Store.MarkDownloaded(ch))

	src, err = a.OpenManifest(context.Background(), path)
	require.NoError(t, err)
	ch, _ = src.Comic().Chapter(11)
	assert.True(t, ch.IsDownloaded)
}

func TestCatalog_Select(t *testing.T) {
	a := testApp(t)
	a.Settings.SaveCover = false
	src, err := a.OpenManifest(context.Background(), writeManifest(t, ""))
	require.NoError(t, err)
	catalog := NewCatalog(src.Comic(), a.Store)

	// Marked after the catalog was built: the store is consulted.
	ch, _ := src.Comic().Chapter(11)
	require.NoError(t, a.Store.MarkDownloaded(ch))

	pending, err := catalog.Select(nil)
	require.NoError(t, err)
	var ids []int64
	for _, ch := range pending {
		ids = append(ids, ch.ID)
	}
	assert.Equal(t, []int64{10, 12}, ids)

	explicit, err := catalog.Select([]int64{11, 10})
	require.NoError(t, err)
	require.Len(t, explicit, 2)
	assert.True(t, explicit[0].IsDownloaded)
	assert.Equal(t, "Test Comic", explicit[1].ComicTitle)

	_, err = catalog.Select([]int64{99})
	assert.ErrorIs(t, err, ErrUnknownChapter)
}

func TestNewManager(t *testing.T) {
	a := testApp(t)
	a.Settings.SaveCover = false
	src, err := a.OpenManifest(context.Background(), writeManifest(t, ""))
	require.NoError(t, err)

	mgr, err := a.NewManager(src)
	require.NoError(t, err)
	require.NoError(t, mgr.Shutdown(context.Background()))
}
