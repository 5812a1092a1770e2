// Package news implements the news aggregator view: a settle-all fetch of
// every source, merge-and-sort, trending topic extraction, client-side
// filtering and a cancellable auto-refresh loop.
package news

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"carbon_dashboard/internal/models"
	"carbon_dashboard/internal/settle"
)

// ErrNoArticles means no source produced a single article in a cycle.
var ErrNoArticles = errors.New("no articles from any source")

// Vocabulary is the fixed set of phrases scanned for trending topics.
var Vocabulary = []string{
	"carbon credits",
	"carbon offset",
	"net zero",
	"emissions trading",
	"renewable energy",
	"climate finance",
	"reforestation",
	"carbon capture",
	"carbon tax",
	"sustainability",
	"climate policy",
}

// MaxTopics caps the trending list.
const MaxTopics = 6

// Merge concatenates the successful branches and sorts newest first.
// Failed branches are reported per source; the merge only fails when the
// result is empty.
func Merge(srcs []models.Source, outcomes []settle.Outcome[[]models.NewsArticle]) ([]models.NewsArticle, map[models.Source]error, error) {
	var merged []models.NewsArticle
	failures := make(map[models.Source]error)

	for i, o := range outcomes {
		if !o.OK() {
			failures[srcs[i]] = o.Err
			continue
		}
		merged = append(merged, o.Value...)
	}

	if len(merged) == 0 {
		causes := make([]error, 0, len(failures))
		for _, src := range srcs {
			if err, ok := failures[src]; ok {
				causes = append(causes, err)
			}
		}
		if len(causes) == 0 {
			return nil, failures, ErrNoArticles
		}
		return nil, failures, fmt.Errorf("%w: %w", ErrNoArticles, errors.Join(causes...))
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].PublishedAt.After(merged[j].PublishedAt)
	})
	return merged, failures, nil
}

// ExtractTopics returns the vocabulary phrases found in at least one
// article's title or description, in vocabulary order, at most limit of them.
func ExtractTopics(articles []models.NewsArticle, vocabulary []string, limit int) []string {
	texts := make([]string, len(articles))
	for i, a := range articles {
		texts[i] = strings.ToLower(a.Title + " " + a.Description)
	}

	topics := make([]string, 0, limit)
	for _, phrase := range vocabulary {
		if len(topics) == limit {
			break
		}
		needle := strings.ToLower(phrase)
		for _, text := range texts {
			if strings.Contains(text, needle) {
				topics = append(topics, phrase)
				break
			}
		}
	}
	return topics
}

// Filter keeps articles whose source is selected and, when topic is not
// empty, whose title or description contains it (case-insensitive).
func Filter(articles []models.NewsArticle, selected map[models.Source]bool, topic string) []models.NewsArticle {
	needle := strings.ToLower(strings.TrimSpace(topic))

	out := make([]models.NewsArticle, 0, len(articles))
	for _, a := range articles {
		if !selected[a.Source] {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(a.Title), needle) &&
			!strings.Contains(strings.ToLower(a.Description), needle) {
			continue
		}
		out = append(out, a)
	}
	return out
}
