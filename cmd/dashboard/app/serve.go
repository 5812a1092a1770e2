package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"carbon_dashboard/internal/logger"
	"carbon_dashboard/internal/server"
	"carbon_dashboard/internal/view"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve both views over HTTP",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("address", "", "Address to listen on (default :8080)")
	if err := v.BindPFlag("server.address", serveCmd.Flags().Lookup("address")); err != nil {
		logger.Log.Errorf("Error binding address flag: %v", err)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	defer logger.Log.Info("Application stopped")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := newRuntime(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	// mount in the background so the server answers while the first cycles run
	go func() {
		if err := rt.catalog.Load(ctx); err != nil && !errors.Is(err, view.ErrUnmounted) {
			logger.Log.WithField("service", "catalog").Warnf("Initial load failed: %v", err)
		}
	}()
	go func() {
		if err := rt.news.Mount(ctx); err != nil && !errors.Is(err, view.ErrUnmounted) {
			logger.Log.WithField("service", "news").Warnf("Initial cycle failed: %v", err)
		}
	}()

	var archive server.Archive
	if rt.database != nil {
		archive = rt.database
	}
	srv := server.NewServer(rt.catalog, rt.news, archive)

	httpServer := &http.Server{
		Addr:              rt.cfg.Server.Address,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Infof("Starting HTTP server on %s", rt.cfg.Server.Address)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return err
	}

	logger.Log.Info("Shutting down...")
	cancel()
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	return httpServer.Shutdown(ctxShutdown)
}
