package sources

import (
	"context"
	"fmt"
	"net/url"

	"carbon_dashboard/internal/config"
	"carbon_dashboard/internal/fetcher"
	"carbon_dashboard/internal/models"
)

// NewsData is source A: a keyword search whose response is {status, results[]}.
type NewsData struct {
	client *fetcher.Client
	cfg    config.NewsDataConfig
	query  string
}

func NewNewsData(client *fetcher.Client, cfg config.NewsDataConfig, query string) *NewsData {
	return &NewsData{client: client, cfg: cfg, query: query}
}

func (n *NewsData) Source() models.Source { return models.SourceNewsData }

func (n *NewsData) Fetch(ctx context.Context) ([]models.NewsArticle, error) {
	if n.cfg.APIKey == "" {
		return nil, fmt.Errorf("newsdata: %w", ErrMissingAPIKey)
	}

	params := url.Values{
		"apikey":   {n.cfg.APIKey},
		"q":        {n.query},
		"language": {n.cfg.Language},
	}
	if n.cfg.Category != "" {
		params.Set("category", n.cfg.Category)
	}

	root, err := n.client.FetchJSON(ctx, n.cfg.URL, params)
	if err != nil {
		return nil, fmt.Errorf("newsdata: %w", err)
	}
	if status := root.Get("status").String(); status != "success" {
		return nil, fmt.Errorf("newsdata: %w: status %q", ErrUpstreamStatus, status)
	}

	results := root.Get("results").Array()
	articles := make([]models.NewsArticle, 0, len(results))
	for _, r := range results {
		title := str(r, "title", "")
		if title == "" {
			continue
		}
		articles = append(articles, models.NewsArticle{
			ID:          articleID(models.SourceNewsData, r.Get("article_id").String()),
			Title:       title,
			Description: str(r, "description", ""),
			Link:        str(r, "link", ""),
			PublishedAt: parseTime(r.Get("pubDate")),
			SourceLabel: str(r, "source_name", str(r, "source_id", "NewsData")),
			Source:      models.SourceNewsData,
			Category:    "general",
			ImageURL:    str(r, "image_url", ""),
		})
	}
	return articles, nil
}
