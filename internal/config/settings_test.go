package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.ChapterConcurrency != 1 || s.ImageConcurrency != 10 {
		t.Errorf("unexpected defaults: chapters=%d images=%d", s.ChapterConcurrency, s.ImageConcurrency)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"chapter_concurrency": 3, "download_dir": "/data"}`), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.ChapterConcurrency != 3 || s.DownloadDir != "/data" {
		t.Errorf("file values not applied: %+v", s)
	}
	if s.ImageConcurrency != 10 {
		t.Errorf("ImageConcurrency = %d, want default 10", s.ImageConcurrency)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	s := DefaultSettings()
	s.Cookie = "session=abc"
	if err := s.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Cookie != "session=abc" {
		t.Errorf("Cookie = %q", got.Cookie)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		ok     bool
	}{
		{"defaults", func(*Settings) {}, true},
		{"no dir", func(s *Settings) { s.DownloadDir = "" }, false},
		{"zero chapters", func(s *Settings) { s.ChapterConcurrency = 0 }, false},
		{"zero images", func(s *Settings) { s.ImageConcurrency = 0 }, false},
		{"negative interval", func(s *Settings) { s.ImageDownloadInterval = -1 }, false},
		{"zero retry after", func(s *Settings) { s.DefaultRetryAfter = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(s)
			err := s.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() error = %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() error = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestRetryCooldown(t *testing.T) {
	s := &Settings{DownloadRetryCooldown: 0.5, DownloadRetryExponent: 2}
	want := []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second}
	for tries, w := range want {
		if got := s.RetryCooldown(tries); got != w {
			t.Errorf("RetryCooldown(%d) = %v, want %v", tries, got, w)
		}
	}
}
