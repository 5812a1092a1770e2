// Package sources implements the news feeds aggregated by the news view.
package sources

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"carbon_dashboard/internal/models"
)

var (
	// ErrUpstreamStatus is returned when a source answers with a non-success status field.
	ErrUpstreamStatus = errors.New("upstream reported failure")
	// ErrMissingAPIKey is returned without any network call when a keyed source has no key.
	ErrMissingAPIKey = errors.New("api key not configured")
)

// Fetcher produces one source's articles for a single cycle.
type Fetcher interface {
	Source() models.Source
	Fetch(ctx context.Context) ([]models.NewsArticle, error)
}

// articleID prefixes the source tag onto the upstream id, or onto a random
// token when the upstream has none.
func articleID(src models.Source, upstream string) string {
	upstream = strings.TrimSpace(upstream)
	if upstream == "" {
		upstream = uuid.NewString()
	}
	return string(src) + "-" + upstream
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC1123Z,
	time.RFC1123,
}

// parseTime reads upstream timestamps; naive ones are taken as UTC. An
// unparseable value yields the zero time, which sorts last.
func parseTime(r gjson.Result) time.Time {
	s := strings.TrimSpace(r.String())
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func str(r gjson.Result, path, def string) string {
	if s := strings.TrimSpace(r.Get(path).String()); s != "" {
		return s
	}
	return def
}
