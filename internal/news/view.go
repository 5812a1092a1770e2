package news

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"carbon_dashboard/internal/fetcher"
	"carbon_dashboard/internal/logger"
	"carbon_dashboard/internal/metrics"
	"carbon_dashboard/internal/models"
	"carbon_dashboard/internal/settle"
	"carbon_dashboard/internal/sources"
	"carbon_dashboard/internal/tracing"
	"carbon_dashboard/internal/view"
)

// DefaultInterval is the auto-refresh period.
const DefaultInterval = 5 * time.Minute

// ErrorMessage is the only failure text shown to users.
const ErrorMessage = "Unable to load carbon market news. Please try again."

const (
	TriggerMount  = "mount"
	TriggerManual = "manual"
	TriggerAuto   = "auto"
	TriggerRetry  = "retry"
)

var ErrUnknownSource = errors.New("unknown news source")

var tracer = tracing.Tracer("news")

// Archiver receives each successful cycle. Implementations must not block.
type Archiver interface {
	ArchiveArticles(articles []models.NewsArticle, fetchedAt time.Time)
}

// Snapshot is a consistent copy of the view's state with filters applied.
type Snapshot struct {
	Status          view.Status              `json:"status"`
	Articles        []models.NewsArticle     `json:"articles"`
	Total           int                      `json:"total"`
	Topics          []string                 `json:"topics"`
	SelectedTopic   string                   `json:"selected_topic"`
	SelectedSources []models.Source          `json:"selected_sources"`
	AutoRefresh     bool                     `json:"auto_refresh"`
	Error           string                   `json:"error,omitempty"`
	SourceErrors    map[models.Source]string `json:"source_errors,omitempty"`
	SourcesOK       int                      `json:"sources_ok"`
	UpdatedAt       time.Time                `json:"updated_at"`
}

type Option func(*View)

// WithClock replaces the clock used for recency flags.
func WithClock(now func() time.Time) Option {
	return func(v *View) { v.now = now }
}

// WithArchiver hands every successful cycle to a.
func WithArchiver(a Archiver) Option {
	return func(v *View) { v.archive = a }
}

// WithAutoRefresh sets the initial auto-refresh toggle (on by default).
func WithAutoRefresh(enabled bool) Option {
	return func(v *View) { v.autoRefresh = enabled }
}

// WithInterval overrides the auto-refresh period.
func WithInterval(d time.Duration) Option {
	return func(v *View) { v.interval = d }
}

// View aggregates every configured source into one filterable list.
type View struct {
	fetchers []sources.Fetcher
	srcs     []models.Source
	interval time.Duration
	now      func() time.Time
	archive  Archiver
	poller   *fetcher.Poller

	// pollMu serializes toggling the poller so Start/Stop match the flag.
	pollMu sync.Mutex

	mu          sync.Mutex
	machine     view.Machine
	articles    []models.NewsArticle
	topics      []string
	selected    map[models.Source]bool
	topic       string
	autoRefresh bool
	mounted     bool
	unmounted   bool
	gen         uint64
	sourceErrs  map[models.Source]string
	errMsg      string
	updatedAt   time.Time
}

func NewView(fetchers []sources.Fetcher, opts ...Option) *View {
	v := &View{
		fetchers:    fetchers,
		interval:    DefaultInterval,
		now:         time.Now,
		autoRefresh: true,
		selected:    make(map[models.Source]bool, len(fetchers)),
	}
	for _, f := range fetchers {
		v.srcs = append(v.srcs, f.Source())
		v.selected[f.Source()] = true
	}
	for _, opt := range opts {
		opt(v)
	}
	v.poller = fetcher.NewPoller("news", v.interval, v.autoTick)
	return v
}

// Mount runs the first cycle and starts auto-refresh when it is enabled.
func (v *View) Mount(ctx context.Context) error {
	v.pollMu.Lock()
	v.mu.Lock()
	if v.unmounted {
		v.mu.Unlock()
		v.pollMu.Unlock()
		return view.ErrUnmounted
	}
	v.mounted = true
	auto := v.autoRefresh
	v.mu.Unlock()
	if auto {
		v.poller.Start()
	}
	v.pollMu.Unlock()

	return v.cycle(ctx, TriggerMount, false)
}

// Refresh runs a cycle now. It fails with view.ErrRefreshInFlight while
// another cycle runs and with view.ErrRetryRequired in the error state.
func (v *View) Refresh(ctx context.Context) error {
	return v.cycle(ctx, TriggerManual, false)
}

// Retry is the way out of the error state.
func (v *View) Retry(ctx context.Context) error {
	return v.cycle(ctx, TriggerRetry, true)
}

// Unmount stops auto-refresh and discards any cycle still in flight.
func (v *View) Unmount() {
	v.pollMu.Lock()
	defer v.pollMu.Unlock()

	v.mu.Lock()
	v.unmounted = true
	v.gen++
	v.mu.Unlock()

	v.poller.Stop()
}

// SetAutoRefresh toggles the timer. Disabling cancels the pending tick.
func (v *View) SetAutoRefresh(enabled bool) error {
	v.pollMu.Lock()
	defer v.pollMu.Unlock()

	v.mu.Lock()
	if v.unmounted {
		v.mu.Unlock()
		return view.ErrUnmounted
	}
	v.autoRefresh = enabled
	mounted := v.mounted
	v.mu.Unlock()

	switch {
	case enabled && mounted:
		v.poller.Start()
	case !enabled:
		v.poller.Stop()
	}
	return nil
}

// ToggleSource flips src in the selection. Turning off the last selected
// source is refused and reported as false.
func (v *View) ToggleSource(src models.Source) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.selected[src]; !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownSource, src)
	}
	if v.selected[src] && v.selectedCount() == 1 {
		return false, nil
	}
	v.selected[src] = !v.selected[src]
	return true, nil
}

// SelectTopic restricts the list to one topic; "" means all topics.
func (v *View) SelectTopic(topic string) {
	v.mu.Lock()
	v.topic = topic
	v.mu.Unlock()
}

func (v *View) AutoRefresh() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.autoRefresh
}

// Snapshot derives the filtered list from the current articles and selection.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	selected := make([]models.Source, 0, len(v.srcs))
	for _, src := range v.srcs {
		if v.selected[src] {
			selected = append(selected, src)
		}
	}

	var sourceErrs map[models.Source]string
	if len(v.sourceErrs) > 0 {
		sourceErrs = make(map[models.Source]string, len(v.sourceErrs))
		for k, e := range v.sourceErrs {
			sourceErrs[k] = e
		}
	}

	sourcesOK := 0
	if v.machine.Status() == view.StatusSuccess || v.machine.Status() == view.StatusRefreshing {
		sourcesOK = len(v.srcs) - len(v.sourceErrs)
	}

	return Snapshot{
		Status:          v.machine.Status(),
		Articles:        Filter(v.articles, v.selected, v.topic),
		Total:           len(v.articles),
		Topics:          append([]string(nil), v.topics...),
		SelectedTopic:   v.topic,
		SelectedSources: selected,
		AutoRefresh:     v.autoRefresh,
		Error:           v.errMsg,
		SourceErrors:    sourceErrs,
		SourcesOK:       sourcesOK,
		UpdatedAt:       v.updatedAt,
	}
}

func (v *View) selectedCount() int {
	n := 0
	for _, on := range v.selected {
		if on {
			n++
		}
	}
	return n
}

func (v *View) autoTick(ctx context.Context) {
	err := v.cycle(ctx, TriggerAuto, false)
	switch {
	case err == nil:
	case errors.Is(err, view.ErrRefreshInFlight), errors.Is(err, view.ErrRetryRequired):
		logger.Log.WithFields(logger.Fields{
			"service": "news",
			"reason":  err.Error(),
		}).Debug("Skipping auto-refresh tick")
	default:
		logger.Log.WithField("service", "news").Warnf("Auto-refresh failed: %v", err)
	}
}

func (v *View) cycle(ctx context.Context, trigger string, retry bool) error {
	log := logger.Log.WithFields(logger.Fields{
		"service": "news",
		"trigger": trigger,
	})

	v.mu.Lock()
	if v.unmounted {
		v.mu.Unlock()
		return view.ErrUnmounted
	}
	var err error
	if retry {
		err = v.machine.Retry()
	} else {
		err = v.machine.Begin()
	}
	if err != nil {
		v.mu.Unlock()
		return err
	}
	gen := v.gen
	v.mu.Unlock()

	ctx, span := tracer.Start(ctx, "news.cycle", trace.WithAttributes(attribute.String("trigger", trigger)))
	defer span.End()

	start := time.Now()
	outcomes := settle.All(ctx, v.branches()...)
	fetchedAt := v.now()
	articles, failures, mergeErr := Merge(v.srcs, outcomes)

	v.mu.Lock()
	defer v.mu.Unlock()

	if gen != v.gen {
		metrics.ObserveCycle("news", trigger, metrics.OutcomeAborted)
		return view.ErrUnmounted
	}
	if ctx.Err() != nil {
		v.machine.Abort()
		metrics.ObserveCycle("news", trigger, metrics.OutcomeAborted)
		return ctx.Err()
	}

	v.sourceErrs = make(map[models.Source]string, len(failures))
	for src, ferr := range failures {
		v.sourceErrs[src] = ferr.Error()
		log.WithField("source", src).Warnf("Source failed: %v", ferr)
	}

	if mergeErr != nil {
		v.machine.Fail()
		v.articles = nil
		v.topics = nil
		v.errMsg = ErrorMessage
		metrics.SetArticleCounts(nil)
		metrics.ObserveCycle("news", trigger, metrics.CycleOutcome(mergeErr))
		span.RecordError(mergeErr)
		span.SetStatus(codes.Error, "no articles")
		log.Errorf("News cycle failed: %v", mergeErr)
		return mergeErr
	}

	counts := make(map[string]int, len(v.srcs))
	for i := range articles {
		articles[i].MarkRecent(fetchedAt)
		counts[string(articles[i].Source)]++
	}
	v.articles = articles
	v.topics = ExtractTopics(articles, Vocabulary, MaxTopics)
	v.errMsg = ""
	v.updatedAt = fetchedAt
	v.machine.Succeed()

	metrics.SetArticleCounts(counts)
	metrics.ObserveCycle("news", trigger, metrics.CycleOutcome(nil))
	span.SetAttributes(attribute.Int("articles", len(articles)))
	log.WithFields(logger.Fields{
		"articles":       len(articles),
		"failed_sources": len(failures),
		"duration":       time.Since(start).String(),
	}).Info("News cycle completed")

	if v.archive != nil {
		v.archive.ArchiveArticles(articles, fetchedAt)
	}
	return nil
}

func (v *View) branches() []func(ctx context.Context) ([]models.NewsArticle, error) {
	branches := make([]func(ctx context.Context) ([]models.NewsArticle, error), len(v.fetchers))
	for i, f := range v.fetchers {
		branches[i] = func(ctx context.Context) ([]models.NewsArticle, error) {
			ctx, span := tracer.Start(ctx, "news.source", trace.WithAttributes(
				attribute.String("source", string(f.Source())),
			))
			defer span.End()

			start := time.Now()
			articles, err := f.Fetch(ctx)
			metrics.ObserveSourceFetch(string(f.Source()), time.Since(start), err)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "fetch failed")
			}
			return articles, err
		}
	}
	return branches
}
