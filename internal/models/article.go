package models

import (
	"fmt"
	"time"
)

// Source identifies one of the news feeds aggregated by the news view.
type Source string

const (
	SourceNewsData Source = "newsdata"
	SourceGNews    Source = "gnews"
	SourceCurated  Source = "curated"
)

// AllSources lists the sources in display order.
var AllSources = []Source{SourceNewsData, SourceGNews, SourceCurated}

// ParseSource converts a raw string into a known Source.
func ParseSource(s string) (Source, error) {
	for _, src := range AllSources {
		if string(src) == s {
			return src, nil
		}
	}
	return "", fmt.Errorf("unknown news source %q", s)
}

// RecentWindow is how fresh an article must be to be flagged as recent.
const RecentWindow = time.Hour

// NewsArticle is a display-only article produced by a single fetch cycle.
// Articles are never mutated or looked up by ID after creation.
type NewsArticle struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Link        string    `json:"link"`
	PublishedAt time.Time `json:"published_at"`
	SourceLabel string    `json:"source_label"`
	Source      Source    `json:"source"`
	Category    string    `json:"category,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	IsRecent    bool      `json:"is_recent"`
}

// MarkRecent sets IsRecent relative to the fetch time.
func (a *NewsArticle) MarkRecent(fetchedAt time.Time) {
	a.IsRecent = fetchedAt.Sub(a.PublishedAt) < RecentWindow
}
