// Package config provides configuration management for manhua-downloader.
//
// This package handles:
//   - Loading and saving settings from JSON files
//   - Default configuration values
//   - Validation of the values the download manager depends on
//
// # Default Settings
//
//	settings := config.DefaultSettings()
//	// One chapter at a time, ten images in flight across all chapters
//	// WebP pages converted to JPEG
//
// # Loading from File
//
//	settings, err := config.Load(config.DefaultPath())
//	if err != nil {
//	    // Uses defaults if file doesn't exist
//	}
//	if err := settings.Validate(); err != nil {
//	    return err
//	}
//
// # Configuration Options
//
// Settings includes options for:
//   - Download root and concurrency limits
//   - Politeness intervals between images and between chapters
//   - Rate-limit backoff (default delay, retries per image)
//   - HTTP timeout, transient retry and request pacing
//   - Session cookie
//   - Log rotation
//   - Control API listen address
package config
