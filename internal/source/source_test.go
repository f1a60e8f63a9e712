package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpclient "github.com/handiism/manhua-downloader/internal/http"
	"github.com/handiism/manhua-downloader/internal/model"
)

const manifestJSON = `{
  "comic": {
    "id": 1,
    "title": "Test Comic",
    "cover": "cover.jpg",
    "groups": {"单话": [{"chapterId": 10, "chapterTitle": "第1话"}, {"chapterId": 11, "chapterTitle": "第2话"}]}
  },
  "imageBase": "%s/img/",
  "images": {"10": ["001.webp", "002.webp", "https://other.example.com/003.jpg"], "11": []}
}`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/img/001.webp", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("image-1"))
	})
	mux.HandleFunc("/img/limited", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "12")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	mux.HandleFunc("/img/busy", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/img/forbidden", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	mux.HandleFunc("/img/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/img/empty", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/img/cover.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("cover"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestSource(t *testing.T, srv *httptest.Server) *ManifestSource {
	t.Helper()
	m, err := ParseManifest([]byte(fmt.Sprintf(manifestJSON, srv.URL)))
	require.NoError(t, err)
	src, err := NewManifestSource(m, httpclient.NewClient())
	require.NoError(t, err)
	return src
}

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(fmt.Sprintf(manifestJSON, "http://x")))
	require.NoError(t, err)

	ch, ok := m.Comic.Chapter(11)
	require.True(t, ok)
	assert.Equal(t, "Test Comic", ch.ComicTitle)
	assert.Equal(t, "单话", ch.GroupName)
	assert.Equal(t, 2, ch.Order)

	_, err = ParseManifest([]byte(`{`))
	assert.ErrorIs(t, err, ErrParse)

	_, err = ParseManifest([]byte(`{"comic": {}}`))
	assert.ErrorIs(t, err, ErrParse)
}

func TestLoadManifest_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "comic.json")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(manifestJSON, "http://x")), 0644))

	m, err := LoadManifest(context.Background(), httpclient.NewClient(), path)
	require.NoError(t, err)
	assert.Len(t, m.Images[10], 3)

	_, err = LoadManifest(context.Background(), httpclient.NewClient(), filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadManifest_URL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, manifestJSON, "http://x")
	}))
	defer srv.Close()

	m, err := LoadManifest(context.Background(), httpclient.NewClient(), srv.URL+"/comic.json")
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.Comic.ID)
}

func TestManifestSource_ListImages(t *testing.T) {
	srv := newTestServer(t)
	src := newTestSource(t, srv)
	ctx := context.Background()

	descs, err := src.ListImages(ctx, model.ChapterRef{ID: 10})
	require.NoError(t, err)
	require.Len(t, descs, 3)
	assert.Equal(t, srv.URL+"/img/001.webp", descs[0].URL)
	assert.Equal(t, "https://other.example.com/003.jpg", descs[2].URL)
	assert.Equal(t, "003.jpg", descs[2].FileName)

	_, err = src.ListImages(ctx, model.ChapterRef{ID: 11})
	assert.ErrorIs(t, err, ErrParse)

	_, err = src.ListImages(ctx, model.ChapterRef{ID: 99})
	assert.ErrorIs(t, err, ErrParse)
}

func TestManifestSource_FetchImage(t *testing.T) {
	srv := newTestServer(t)
	src := newTestSource(t, srv)
	ctx := context.Background()
	img := func(p string) model.ImageDescriptor { return model.NewImageDescriptor(1, srv.URL+p) }

	data, err := src.FetchImage(ctx, img("/img/001.webp"))
	require.NoError(t, err)
	assert.Equal(t, "image-1", string(data))

	_, err = src.FetchImage(ctx, img("/img/limited"))
	rl, ok := AsRateLimit(err)
	require.True(t, ok, "expected rate limit, got %v", err)
	assert.Equal(t, 12*time.Second, rl.RetryAfter)

	_, err = src.FetchImage(ctx, img("/img/busy"))
	assert.Equal(t, KindRateLimit, Classify(err))

	_, err = src.FetchImage(ctx, img("/img/forbidden"))
	assert.ErrorIs(t, err, ErrAuthRequired)

	_, err = src.FetchImage(ctx, img("/img/gone"))
	assert.ErrorIs(t, err, ErrParse)

	_, err = src.FetchImage(ctx, img("/img/empty"))
	assert.ErrorIs(t, err, ErrParse)

	_, err = src.FetchImage(ctx, model.NewImageDescriptor(1, "http://127.0.0.1:1/unreachable"))
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestManifestSource_FetchCover(t *testing.T) {
	srv := newTestServer(t)
	src := newTestSource(t, srv)

	data, err := src.FetchCover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cover", string(data))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{nil, KindNone},
		{&RateLimitError{RetryAfter: time.Second}, KindRateLimit},
		{fmt.Errorf("wrapped: %w", ErrParse), KindParse},
		{ErrAuthRequired, KindAuth},
		{ErrNetwork, KindNetwork},
		{context.Canceled, KindCancelled},
		{context.DeadlineExceeded, KindNetwork},
		{&fs.PathError{Op: "open", Path: "/x", Err: fs.ErrPermission}, KindIO},
		{fmt.Errorf("write image: %w", &os.LinkError{Op: "rename", Old: "/x/.001.jpg.tmp", New: "/x/001.jpg", Err: fs.ErrPermission}), KindIO},
		{errors.New("boom"), KindUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err), "Classify(%v)", tt.err)
	}
}

func TestStaticSession(t *testing.T) {
	c, err := StaticSession("a=b").Cookie(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a=b", c)
}
