package app

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"carbon_dashboard/internal/catalog"
	"carbon_dashboard/internal/config"
	"carbon_dashboard/internal/db"
	"carbon_dashboard/internal/fetcher"
	"carbon_dashboard/internal/logger"
	"carbon_dashboard/internal/news"
	"carbon_dashboard/internal/registry"
	"carbon_dashboard/internal/sources"
	"carbon_dashboard/internal/tracing"
	"carbon_dashboard/internal/worker"
)

// runtime is everything one command invocation builds from the config.
type runtime struct {
	cfg     *config.Config
	catalog *catalog.View
	news    *news.View

	database    *db.Database
	stopArchive context.CancelFunc
	archiveDone chan struct{}
	stopTracing tracing.ShutdownFunc
}

// newRuntime loads and validates the config, then wires views, the optional
// archive and tracing. autoRefresh=false overrides the configured toggle.
func newRuntime(ctx context.Context, cmd *cobra.Command, autoRefresh bool) (*runtime, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadWith(v, path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger.Init(cfg.LogLevel)

	stopTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("tracing setup: %w", err)
	}
	rt := &runtime{cfg: cfg, stopTracing: stopTracing}

	var (
		catalogOpts []catalog.Option
		newsOpts    = []news.Option{
			news.WithInterval(cfg.News.RefreshInterval),
			news.WithAutoRefresh(cfg.News.AutoRefresh && autoRefresh),
		}
	)

	if cfg.Database.DSN != "" {
		database, err := db.NewDB(ctx, cfg.Database.DSN)
		if err != nil {
			rt.Close()
			return nil, err
		}
		if err := database.EnsureSchema(ctx); err != nil {
			database.Close()
			rt.Close()
			return nil, err
		}
		rt.database = database

		archive := worker.NewWorker(database, worker.DefaultQueueSize)
		archiveCtx, cancel := context.WithCancel(context.Background())
		rt.stopArchive = cancel
		rt.archiveDone = make(chan struct{})
		go func() {
			defer close(rt.archiveDone)
			archive.Run(archiveCtx)
		}()

		catalogOpts = append(catalogOpts, catalog.WithArchiver(archive))
		newsOpts = append(newsOpts, news.WithArchiver(archive))
		logger.Log.Info("Archive enabled")
	}

	client := fetcher.NewClient(cfg.HTTPTimeout)
	pricer := registry.NewRandomPricer(cfg.Catalog.PriceMin, cfg.Catalog.PriceMax, time.Now().UnixNano())

	rt.catalog = catalog.NewView(
		registry.NewPrimary(client, cfg.Catalog.PrimaryURL, cfg.Catalog.ProjectType, registry.PrimaryPageSize, pricer),
		registry.NewSecondary(client, cfg.Catalog.SecondaryURL, cfg.Catalog.SecondaryStatus, cfg.Catalog.SecondaryPageSize, cfg.Catalog.ProjectType, pricer),
		catalogOpts...,
	)
	rt.news = news.NewView([]sources.Fetcher{
		sources.NewNewsData(client, cfg.News.NewsData, cfg.News.Query),
		sources.NewGNews(client, cfg.News.GNews, cfg.News.Query),
		sources.NewCurated(cfg.News.CuratedDelay),
	}, newsOpts...)

	return rt, nil
}

// Close unmounts the views, flushes the archive and stops tracing.
func (rt *runtime) Close() {
	if rt.catalog != nil {
		rt.catalog.Unmount()
	}
	if rt.news != nil {
		rt.news.Unmount()
	}
	if rt.stopArchive != nil {
		rt.stopArchive()
		<-rt.archiveDone
	}
	if rt.database != nil {
		rt.database.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.stopTracing(ctx); err != nil {
		logger.Log.Warnf("Tracing shutdown: %v", err)
	}
}
