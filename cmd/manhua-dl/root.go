package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/handiism/manhua-downloader/internal/app"
	"github.com/handiism/manhua-downloader/internal/config"
)

var (
	configPath  string
	outputDir   string
	chapterJobs int
	imageJobs   int
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:          "manhua-dl",
	Short:        "Download manhua chapters",
	Long:         "Download comic chapters listed in a manifest, politely and resumably",
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "path to config file (default "+config.DefaultPath()+")")
	flags.StringVarP(&outputDir, "output", "o", "", "download directory (overrides config)")
	flags.IntVar(&chapterJobs, "chapters", 0, "concurrent chapters (overrides config)")
	flags.IntVar(&imageJobs, "images", 0, "concurrent images (overrides config)")
	flags.StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides config)")

	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(configCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func settingsPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath()
}

// loadSettings reads the config file and applies command line overrides.
func loadSettings() (*config.Settings, error) {
	settings, err := config.Load(settingsPath())
	if err != nil {
		return nil, err
	}
	if outputDir != "" {
		settings.DownloadDir = outputDir
	}
	if chapterJobs > 0 {
		settings.ChapterConcurrency = chapterJobs
	}
	if imageJobs > 0 {
		settings.ImageConcurrency = imageJobs
	}
	if logLevel != "" {
		settings.LogLevel = logLevel
	}
	return settings, nil
}

func newApp() (*app.App, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}
	return app.New(settings, os.Stderr)
}
