package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/handiism/manhua-downloader/internal/app"
	"github.com/handiism/manhua-downloader/internal/download"
	"github.com/handiism/manhua-downloader/internal/events"
	"github.com/handiism/manhua-downloader/internal/model"
)

const shutdownTimeout = 10 * time.Second

var (
	manifestPath string
	chapterIDs   []int64
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download chapters of a comic",
	Long: "Download the chapters listed in a manifest. Without --chapter every chapter\n" +
		"not yet downloaded is fetched.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		src, err := a.OpenManifest(ctx, manifestPath)
		if err != nil {
			return err
		}
		chapters, err := app.NewCatalog(src.Comic(), a.Store).Select(chapterIDs)
		if err != nil {
			return err
		}
		if len(chapters) == 0 {
			fmt.Println("Nothing to download.")
			return nil
		}

		mgr, err := a.NewManager(src)
		if err != nil {
			return err
		}
		return runDownload(ctx, mgr, chapters)
	},
}

func init() {
	downloadCmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "manifest file or URL")
	downloadCmd.Flags().Int64SliceVarP(&chapterIDs, "chapter", "c", nil, "chapter id to download (repeatable)")
	_ = downloadCmd.MarkFlagRequired("manifest")
}

// runDownload enqueues chapters and prints state changes until every
// accepted task is terminal or ctx is done.
func runDownload(ctx context.Context, mgr *download.Manager, chapters []model.ChapterRef) error {
	sub := mgr.Events().Subscribe()
	defer sub.Close()
	go func() { _ = mgr.Run(ctx) }()

	res := mgr.Enqueue(chapters)
	for id, err := range res.Rejected {
		fmt.Printf("skip chapter %d: %v\n", id, err)
	}

	pending := make(map[int64]bool, len(res.Accepted))
	for _, id := range res.Accepted {
		pending[id] = true
	}
	shown := make(map[int64]model.TaskState)
	var failed int

	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			fmt.Println("\nInterrupted, cancelling...")
			return shutdown(mgr)
		case e, ok := <-sub.C():
			if !ok {
				return shutdown(mgr)
			}
			if !e.IsTask() || !pending[e.ChapterID] {
				continue
			}
			printTransition(e, shown)
			if e.Task.State.IsTerminal() {
				delete(pending, e.ChapterID)
				if e.Task.State == model.StateFailed {
					failed++
				}
			}
		}
	}

	if err := shutdown(mgr); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d chapters failed", failed, len(res.Accepted))
	}
	fmt.Printf("Done: %d chapters.\n", len(res.Accepted))
	return nil
}

func shutdown(mgr *download.Manager) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := mgr.Shutdown(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("downloads still running after %s", shutdownTimeout)
	}
	return err
}

func printTransition(e events.Event, shown map[int64]model.TaskState) {
	s := e.Task
	if prev, ok := shown[e.ChapterID]; ok && prev == s.State {
		return
	}
	shown[e.ChapterID] = s.State

	line := fmt.Sprintf("[%s] %s", s.State, s.Chapter.PrefixedTitle())
	switch s.State {
	case model.StateSleeping:
		line += fmt.Sprintf(" (rate limited, retry in %ds)", s.RetryAfter)
	case model.StateCompleted:
		line += fmt.Sprintf(" (%d images)", s.TotalImgCount)
	case model.StateFailed:
		line += ": " + s.ErrMsg
	}
	fmt.Println(line)
}
