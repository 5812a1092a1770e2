package sources

import (
	"context"
	"time"

	"carbon_dashboard/internal/models"
)

// Curated is source C. It has no live API: after an artificial delay it
// returns a fixed set of three placeholder articles.
type Curated struct {
	delay time.Duration
	now   func() time.Time
}

func NewCurated(delay time.Duration) *Curated {
	return &Curated{delay: delay, now: time.Now}
}

// WithClock replaces the clock used to date the placeholder articles.
func (c *Curated) WithClock(now func() time.Time) *Curated {
	c.now = now
	return c
}

func (c *Curated) Source() models.Source { return models.SourceCurated }

func (c *Curated) Fetch(ctx context.Context) ([]models.NewsArticle, error) {
	if c.delay > 0 {
		timer := time.NewTimer(c.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	now := c.now().UTC()
	fixtures := []struct {
		slug, title, description string
		age                      time.Duration
	}{
		{
			slug:        "voluntary-market-outlook",
			title:       "Voluntary carbon market outlook: integrity labels reshape demand",
			description: "Buyers are shifting toward carbon credits carrying integrity labels, pushing prices apart between legacy and newly verified supply.",
			age:         30 * time.Minute,
		},
		{
			slug:        "article-6-update",
			title:       "Article 6 negotiations edge toward common emissions trading rules",
			description: "Negotiators report progress on authorisation and corresponding adjustments, a prerequisite for cross-border climate finance flows.",
			age:         2 * time.Hour,
		},
		{
			slug:        "nature-based-removals",
			title:       "Reforestation and carbon capture projects compete for removal budgets",
			description: "Corporate net zero strategies increasingly pair nature-based reforestation with engineered removals to hedge delivery risk.",
			age:         5 * time.Hour,
		},
	}

	articles := make([]models.NewsArticle, 0, len(fixtures))
	for _, f := range fixtures {
		articles = append(articles, models.NewsArticle{
			ID:          articleID(models.SourceCurated, f.slug),
			Title:       f.title,
			Description: f.description,
			Link:        "https://example.org/carbon-digest/" + f.slug,
			PublishedAt: now.Add(-f.age),
			SourceLabel: "Carbon Digest",
			Source:      models.SourceCurated,
			Category:    "analysis",
		})
	}
	return articles, nil
}
