package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"carbon_dashboard/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS articles (
	id SERIAL PRIMARY KEY,
	article_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT,
	link VARCHAR(2048) UNIQUE NOT NULL,
	source TEXT NOT NULL,
	source_label TEXT,
	category TEXT,
	image_url TEXT,
	published_at TIMESTAMP WITH TIME ZONE NOT NULL,
	fetched_at TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE TABLE IF NOT EXISTS project_snapshots (
	id SERIAL PRIMARY KEY,
	project_id TEXT NOT NULL,
	name TEXT NOT NULL,
	location TEXT,
	category TEXT,
	registry TEXT NOT NULL,
	standard TEXT,
	credits_available BIGINT NOT NULL DEFAULT 0,
	price_per_credit NUMERIC(10, 2) NOT NULL,
	price_simulated BOOLEAN NOT NULL DEFAULT FALSE,
	url TEXT,
	fetched_at TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE INDEX IF NOT EXISTS articles_published_at_idx ON articles (published_at DESC);
`

// Database wraps the Postgres pool backing the archive.
type Database struct {
	Pool *pgxpool.Pool
}

// NewDB creates a pool for connString.
func NewDB(ctx context.Context, connString string) (*Database, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	return &Database{Pool: pool}, nil
}

func (db *Database) Close() {
	db.Pool.Close()
}

func (db *Database) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// EnsureSchema creates the archive tables if they are missing.
func (db *Database) EnsureSchema(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SaveArticles stores one cycle's articles. Links already archived are
// ignored. Articles without a link are skipped. Returns the number of new rows.
func (db *Database) SaveArticles(ctx context.Context, articles []models.NewsArticle, fetchedAt time.Time) (int64, error) {
	batch := &pgx.Batch{}
	for _, a := range articles {
		if a.Link == "" {
			continue
		}
		batch.Queue(`
			INSERT INTO articles (article_id, title, description, link, source, source_label, category, image_url, published_at, fetched_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (link) DO NOTHING
		`, a.ID, a.Title, a.Description, a.Link, string(a.Source), a.SourceLabel, a.Category, a.ImageURL, a.PublishedAt, fetchedAt)
	}
	if batch.Len() == 0 {
		return 0, nil
	}

	results := db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	var inserted int64
	for i := 0; i < batch.Len(); i++ {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("save article: %w", err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

// SaveProjects appends one snapshot row per project.
func (db *Database) SaveProjects(ctx context.Context, projects []models.OffsetProject, fetchedAt time.Time) error {
	if len(projects) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range projects {
		batch.Queue(`
			INSERT INTO project_snapshots (project_id, name, location, category, registry, standard, credits_available, price_per_credit, price_simulated, url, fetched_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, p.ID, p.Name, p.Location, p.Category, p.Registry, p.Standard, p.CreditsAvailable, p.PricePerCredit, p.PriceSimulated, p.URL, fetchedAt)
	}

	if err := db.Pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save projects: %w", err)
	}
	return nil
}

// RecentArticles returns the newest archived articles, at most limit of them.
func (db *Database) RecentArticles(ctx context.Context, limit int) ([]models.NewsArticle, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT article_id, title, COALESCE(description, ''), link, source,
		       COALESCE(source_label, ''), COALESCE(category, ''), COALESCE(image_url, ''), published_at
		FROM articles
		ORDER BY published_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	articles := make([]models.NewsArticle, 0, limit)
	for rows.Next() {
		var (
			a   models.NewsArticle
			src string
		)
		if err := rows.Scan(&a.ID, &a.Title, &a.Description, &a.Link, &src,
			&a.SourceLabel, &a.Category, &a.ImageURL, &a.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		a.Source = models.Source(src)
		articles = append(articles, a)
	}
	return articles, rows.Err()
}
