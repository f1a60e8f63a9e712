package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/handiism/manhua-downloader/internal/api"
	"github.com/handiism/manhua-downloader/internal/app"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the control API",
	Long: "Load a manifest and expose the download manager over HTTP.\n" +
		"Progress events stream on /v1/events; metrics are on /metrics.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if listenAddr != "" {
			a.Settings.ListenAddr = listenAddr
		}

		src, err := a.OpenManifest(ctx, manifestPath)
		if err != nil {
			return err
		}
		mgr, err := a.NewManager(src)
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              a.Settings.ListenAddr,
			Handler:           api.New(a.Log, mgr, app.NewCatalog(src.Comic(), a.Store), a.Store),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			a.Log.Info("control api listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			return mgr.Run(gctx)
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			// Close long-lived event streams before waiting on in-flight requests.
			mgr.Events().Close()
			return errors.Join(srv.Shutdown(sctx), mgr.Shutdown(sctx))
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "manifest file or URL")
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "listen address (overrides config)")
	_ = serveCmd.MarkFlagRequired("manifest")
}
