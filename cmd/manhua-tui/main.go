package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/handiism/manhua-downloader/internal/app"
	"github.com/handiism/manhua-downloader/internal/config"
	"github.com/handiism/manhua-downloader/internal/tui"
)

var (
	configPath   string
	manifestPath string
	chapterIDs   []int64
)

var rootCmd = &cobra.Command{
	Use:           "manhua-tui --manifest <file|url>",
	Short:         "Download manhua chapters with a terminal dashboard",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		settings, err := config.Load(path)
		if err != nil {
			return err
		}

		// The dashboard owns the terminal; records go to the log file only.
		a, err := app.New(settings, io.Discard)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		src, err := a.OpenManifest(ctx, manifestPath)
		if err != nil {
			return err
		}
		chapters, err := app.NewCatalog(src.Comic(), a.Store).Select(chapterIDs)
		if err != nil {
			return err
		}

		mgr, err := a.NewManager(src)
		if err != nil {
			return err
		}
		go func() { _ = mgr.Run(ctx) }()
		mgr.Enqueue(chapters)

		uiErr := tui.Run(src.Comic().Title, mgr, mgr.Events())

		sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer scancel()
		if err := mgr.Shutdown(sctx); err != nil {
			return err
		}
		return uiErr
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "manifest file or URL")
	rootCmd.Flags().Int64SliceVarP(&chapterIDs, "chapter", "c", nil, "chapter id to download (repeatable)")
	_ = rootCmd.MarkFlagRequired("manifest")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
