package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Settings holds all configuration options.
//
// Concurrency limits and politeness intervals are read once when the
// download manager is created; changing them requires a restart.
type Settings struct {
	// Download settings
	DownloadDir                string  `json:"download_dir"`
	ChapterConcurrency         int     `json:"chapter_concurrency"`
	ImageConcurrency           int     `json:"image_concurrency"`
	ImageDownloadInterval      float64 `json:"image_download_interval_sec"`
	ChapterDownloadInterval    float64 `json:"chapter_download_interval_sec"`
	MaxRateLimitRetries        int     `json:"max_rate_limit_retries"`
	DefaultRetryAfter          int     `json:"default_retry_after_sec"`
	ConvertWebPToJPEG          bool    `json:"convert_webp_to_jpeg"`
	SaveCover                  bool    `json:"save_cover"`
	CoverMaxWidth              int     `json:"cover_max_width"`
	CoverMaxHeight             int     `json:"cover_max_height"`
	SpeedSampleIntervalSeconds float64 `json:"speed_sample_interval_sec"`

	// HTTP settings
	HTTPTimeout           float64 `json:"http_timeout_sec"`
	DownloadMaxRetries    int     `json:"download_max_retries"`
	DownloadRetryCooldown float64 `json:"download_retry_cooldown"`
	DownloadRetryExponent float64 `json:"download_retry_exponent"`
	RequestsPerSecond     float64 `json:"requests_per_second"`
	UserAgent             string  `json:"user_agent"`
	Referer               string  `json:"referer"`

	// Session
	Cookie string `json:"cookie"`

	// Logging
	LogDir        string `json:"log_dir"`
	LogLevel      string `json:"log_level"`
	LogMaxSizeMB  int    `json:"log_max_size_mb"`
	LogMaxBackups int    `json:"log_max_backups"`
	LogMaxAgeDays int    `json:"log_max_age_days"`

	// Control API
	ListenAddr string `json:"listen_addr"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	homeDir, _ := os.UserHomeDir()
	return &Settings{
		DownloadDir:                filepath.Join(homeDir, "Downloads", "manhua"),
		ChapterConcurrency:         1,
		ImageConcurrency:           10,
		ImageDownloadInterval:      0,
		ChapterDownloadInterval:    0,
		MaxRateLimitRetries:        5,
		DefaultRetryAfter:          30,
		ConvertWebPToJPEG:          true,
		SaveCover:                  true,
		CoverMaxWidth:              300,
		CoverMaxHeight:             400,
		SpeedSampleIntervalSeconds: 1,

		HTTPTimeout:           30,
		DownloadMaxRetries:    3,
		DownloadRetryCooldown: 0.5,
		DownloadRetryExponent: 2,
		RequestsPerSecond:     0,
		UserAgent:             "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36",
		Referer:               "https://www.manhuagui.com/",

		LogDir:        filepath.Join(homeDir, ".local", "state", "manhua-dl", "logs"),
		LogLevel:      "info",
		LogMaxSizeMB:  10,
		LogMaxBackups: 5,
		LogMaxAgeDays: 28,

		ListenAddr: "127.0.0.1:8089",
	}
}

// DefaultPath returns the default location of the settings file.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "manhua-dl", "config.json")
}

// Load reads settings from a JSON file.
//
// A missing file yields DefaultSettings. Keys absent from the file keep
// their default value.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, err
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return settings, nil
}

// Save writes settings to a JSON file.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ErrInvalid is wrapped by every error returned from Validate.
var ErrInvalid = errors.New("invalid settings")

// Validate checks the values the download manager relies on.
func (s *Settings) Validate() error {
	switch {
	case s.DownloadDir == "":
		return fmt.Errorf("%w: download_dir is empty", ErrInvalid)
	case s.ChapterConcurrency < 1:
		return fmt.Errorf("%w: chapter_concurrency must be at least 1", ErrInvalid)
	case s.ImageConcurrency < 1:
		return fmt.Errorf("%w: image_concurrency must be at least 1", ErrInvalid)
	case s.ImageDownloadInterval < 0 || s.ChapterDownloadInterval < 0:
		return fmt.Errorf("%w: download intervals must not be negative", ErrInvalid)
	case s.MaxRateLimitRetries < 0:
		return fmt.Errorf("%w: max_rate_limit_retries must not be negative", ErrInvalid)
	case s.DefaultRetryAfter < 1:
		return fmt.Errorf("%w: default_retry_after_sec must be at least 1", ErrInvalid)
	}
	return nil
}

// ImageInterval returns the politeness delay applied after each image.
func (s *Settings) ImageInterval() time.Duration {
	return seconds(s.ImageDownloadInterval)
}

// ChapterInterval returns the politeness delay applied after each chapter.
func (s *Settings) ChapterInterval() time.Duration {
	return seconds(s.ChapterDownloadInterval)
}

// SpeedSampleInterval returns the cadence of aggregate speed events.
func (s *Settings) SpeedSampleInterval() time.Duration {
	if s.SpeedSampleIntervalSeconds <= 0 {
		return time.Second
	}
	return seconds(s.SpeedSampleIntervalSeconds)
}

// Timeout returns the per-request HTTP timeout.
func (s *Settings) Timeout() time.Duration {
	return seconds(s.HTTPTimeout)
}

// RetryCooldown returns the wait before transient retry number tries
// (0-based): cooldown * exponent^tries.
func (s *Settings) RetryCooldown(tries int) time.Duration {
	c := s.DownloadRetryCooldown
	for i := 0; i < tries; i++ {
		c *= s.DownloadRetryExponent
	}
	return seconds(c)
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
