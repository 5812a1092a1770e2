package worker

import (
	"context"
	"time"

	"carbon_dashboard/internal/logger"
	"carbon_dashboard/internal/models"
)

// DefaultQueueSize bounds the jobs waiting for the store.
const DefaultQueueSize = 16

// Store persists archive batches. *db.Database satisfies it.
type Store interface {
	SaveArticles(ctx context.Context, articles []models.NewsArticle, fetchedAt time.Time) (int64, error)
	SaveProjects(ctx context.Context, projects []models.OffsetProject, fetchedAt time.Time) error
}

type task struct {
	articles  []models.NewsArticle
	projects  []models.OffsetProject
	fetchedAt time.Time
}

// Worker archives view results in the background so a slow database never
// holds up a refresh cycle.
type Worker struct {
	store   Store
	tasks   chan task
	timeout time.Duration
}

func NewWorker(store Store, queueSize int) *Worker {
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	return &Worker{
		store:   store,
		tasks:   make(chan task, queueSize),
		timeout: 10 * time.Second,
	}
}

// ArchiveArticles queues articles. A full queue drops the batch.
func (w *Worker) ArchiveArticles(articles []models.NewsArticle, fetchedAt time.Time) {
	w.enqueue(task{articles: articles, fetchedAt: fetchedAt}, "articles", len(articles))
}

// ArchiveProjects queues a catalog snapshot. A full queue drops it.
func (w *Worker) ArchiveProjects(projects []models.OffsetProject, fetchedAt time.Time) {
	w.enqueue(task{projects: projects, fetchedAt: fetchedAt}, "projects", len(projects))
}

func (w *Worker) enqueue(t task, kind string, n int) {
	select {
	case w.tasks <- t:
	default:
		logger.Log.WithFields(logger.Fields{
			"service": "archive",
			"kind":    kind,
			"items":   n,
		}).Warn("Archive queue full, dropping batch")
	}
}

// Run drains the queue until ctx is done. Jobs still queued at that point
// are written before Run returns.
func (w *Worker) Run(ctx context.Context) {
	log := logger.Log.WithField("service", "archive")
	log.Info("Archive worker started")
	defer log.Info("Archive worker stopped")

	for {
		select {
		case t := <-w.tasks:
			w.handle(t)
		case <-ctx.Done():
			for {
				select {
				case t := <-w.tasks:
					w.handle(t)
				default:
					return
				}
			}
		}
	}
}

func (w *Worker) handle(t task) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	log := logger.Log.WithField("service", "archive")

	if t.articles != nil {
		inserted, err := w.store.SaveArticles(ctx, t.articles, t.fetchedAt)
		if err != nil {
			log.Errorf("Save articles failed: %v", err)
			return
		}
		log.WithField("inserted", inserted).Infof("Archived %d articles", len(t.articles))
		return
	}

	if err := w.store.SaveProjects(ctx, t.projects, t.fetchedAt); err != nil {
		log.Errorf("Save projects failed: %v", err)
		return
	}
	log.Infof("Archived %d projects", len(t.projects))
}
