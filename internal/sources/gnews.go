package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"carbon_dashboard/internal/config"
	"carbon_dashboard/internal/fetcher"
	"carbon_dashboard/internal/models"
)

// GNews is source B: a keyword search whose response is {articles[]}.
type GNews struct {
	client *fetcher.Client
	cfg    config.GNewsConfig
	query  string
}

func NewGNews(client *fetcher.Client, cfg config.GNewsConfig, query string) *GNews {
	return &GNews{client: client, cfg: cfg, query: query}
}

func (g *GNews) Source() models.Source { return models.SourceGNews }

func (g *GNews) Fetch(ctx context.Context) ([]models.NewsArticle, error) {
	if g.cfg.APIKey == "" {
		return nil, fmt.Errorf("gnews: %w", ErrMissingAPIKey)
	}

	params := url.Values{
		"q":      {g.query},
		"lang":   {g.cfg.Language},
		"max":    {strconv.Itoa(g.cfg.Max)},
		"apikey": {g.cfg.APIKey},
	}
	root, err := g.client.FetchJSON(ctx, g.cfg.URL, params)
	if err != nil {
		return nil, fmt.Errorf("gnews: %w", err)
	}
	if !root.Get("articles").IsArray() {
		return nil, fmt.Errorf("gnews: %w: missing articles", ErrUpstreamStatus)
	}

	items := root.Get("articles").Array()
	articles := make([]models.NewsArticle, 0, len(items))
	for _, a := range items {
		title := str(a, "title", "")
		if title == "" {
			continue
		}
		articles = append(articles, models.NewsArticle{
			ID:          articleID(models.SourceGNews, a.Get("id").String()),
			Title:       title,
			Description: str(a, "description", ""),
			Link:        str(a, "url", ""),
			PublishedAt: parseTime(a.Get("publishedAt")),
			SourceLabel: str(a, "source.name", "GNews"),
			Source:      models.SourceGNews,
			Category:    "financial",
			ImageURL:    str(a, "image", ""),
		})
	}
	return articles, nil
}
