package news_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"carbon_dashboard/internal/models"
	"carbon_dashboard/internal/news"
	"carbon_dashboard/internal/sources"
	"carbon_dashboard/internal/view"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	src   models.Source
	calls atomic.Int32

	mu       sync.Mutex
	articles []models.NewsArticle
	err      error
	gate     chan struct{}
}

func (f *fakeSource) Source() models.Source { return f.src }

func (f *fakeSource) Fetch(ctx context.Context) ([]models.NewsArticle, error) {
	f.calls.Add(1)

	f.mu.Lock()
	gate, articles, err := f.gate, f.articles, f.err
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return append([]models.NewsArticle(nil), articles...), nil
}

func (f *fakeSource) set(articles []models.NewsArticle, err error) {
	f.mu.Lock()
	f.articles, f.err = articles, err
	f.mu.Unlock()
}

func (f *fakeSource) hold() chan struct{} {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gate = gate
	f.mu.Unlock()
	return gate
}

type fixture struct {
	newsdata, gnews, curated *fakeSource
}

func newFixture() *fixture {
	return &fixture{
		newsdata: &fakeSource{src: models.SourceNewsData, articles: []models.NewsArticle{
			article(models.SourceNewsData, "1", 20*time.Minute, "Carbon credits rally", "EU prices climb"),
			article(models.SourceNewsData, "2", 4*time.Hour, "Offsets under review", "Net zero claims questioned"),
		}},
		gnews: &fakeSource{src: models.SourceGNews, articles: []models.NewsArticle{
			article(models.SourceGNews, "1", 2*time.Hour, "Climate finance flows", "Banks eye carbon credits"),
		}},
		curated: &fakeSource{src: models.SourceCurated, articles: []models.NewsArticle{
			article(models.SourceCurated, "1", 30*time.Minute, "Reforestation digest", "Removal budgets"),
		}},
	}
}

func (f *fixture) fetchers() []sources.Fetcher {
	return []sources.Fetcher{f.newsdata, f.gnews, f.curated}
}

type recordingArchiver struct {
	mu      sync.Mutex
	batches [][]models.NewsArticle
}

func (r *recordingArchiver) ArchiveArticles(articles []models.NewsArticle, fetchedAt time.Time) {
	r.mu.Lock()
	r.batches = append(r.batches, articles)
	r.mu.Unlock()
}

func newView(f *fixture, opts ...news.Option) *news.View {
	opts = append([]news.Option{
		news.WithClock(func() time.Time { return base }),
		news.WithAutoRefresh(false),
	}, opts...)
	return news.NewView(f.fetchers(), opts...)
}

func TestView_MountMergesAndFlagsRecent(t *testing.T) {
	f := newFixture()
	archive := &recordingArchiver{}
	v := newView(f, news.WithArchiver(archive))
	defer v.Unmount()

	require.NoError(t, v.Mount(context.Background()))

	snap := v.Snapshot()
	require.Equal(t, view.StatusSuccess, snap.Status)
	require.Equal(t, []string{"newsdata-1", "curated-1", "gnews-1", "newsdata-2"}, ids(snap.Articles))
	require.Equal(t, 4, snap.Total)
	require.Equal(t, 3, snap.SourcesOK)
	require.True(t, snap.Articles[0].IsRecent)
	require.True(t, snap.Articles[1].IsRecent)
	require.False(t, snap.Articles[2].IsRecent)
	require.Equal(t, []string{"carbon credits", "net zero", "climate finance", "reforestation"}, snap.Topics)
	require.Equal(t, base, snap.UpdatedAt)

	require.Len(t, archive.batches, 1)
	require.Len(t, archive.batches[0], 4)
}

func TestView_OneSourceFails(t *testing.T) {
	f := newFixture()
	f.gnews.set(nil, errors.New("quota exceeded"))
	v := newView(f)
	defer v.Unmount()

	require.NoError(t, v.Mount(context.Background()))

	snap := v.Snapshot()
	require.Equal(t, view.StatusSuccess, snap.Status)
	require.Equal(t, []string{"newsdata-1", "curated-1", "newsdata-2"}, ids(snap.Articles))
	require.Empty(t, snap.Error)
	require.Contains(t, snap.SourceErrors[models.SourceGNews], "quota exceeded")
	require.Equal(t, 2, snap.SourcesOK)
}

func TestView_AllSourcesFail(t *testing.T) {
	f := newFixture()
	for _, s := range []*fakeSource{f.newsdata, f.gnews, f.curated} {
		s.set(nil, errors.New("unreachable"))
	}
	v := newView(f)
	defer v.Unmount()

	err := v.Mount(context.Background())
	require.ErrorIs(t, err, news.ErrNoArticles)

	snap := v.Snapshot()
	require.Equal(t, view.StatusError, snap.Status)
	require.Equal(t, news.ErrorMessage, snap.Error)
	require.Empty(t, snap.Articles)

	require.ErrorIs(t, v.Refresh(context.Background()), view.ErrRetryRequired)

	f.curated.set(newFixture().curated.articles, nil)
	require.NoError(t, v.Retry(context.Background()))

	snap = v.Snapshot()
	require.Equal(t, view.StatusSuccess, snap.Status)
	require.Equal(t, []string{"curated-1"}, ids(snap.Articles))
}

func TestView_EmptySourcesAreAnError(t *testing.T) {
	f := newFixture()
	f.newsdata.set(nil, nil)
	f.gnews.set(nil, nil)
	f.curated.set(nil, nil)
	v := newView(f)
	defer v.Unmount()

	require.ErrorIs(t, v.Mount(context.Background()), news.ErrNoArticles)
	require.Equal(t, view.StatusError, v.Snapshot().Status)
}

func TestView_RefreshFailureDropsList(t *testing.T) {
	f := newFixture()
	v := newView(f)
	defer v.Unmount()
	require.NoError(t, v.Mount(context.Background()))

	for _, s := range []*fakeSource{f.newsdata, f.gnews, f.curated} {
		s.set(nil, errors.New("down"))
	}
	require.Error(t, v.Refresh(context.Background()))

	snap := v.Snapshot()
	require.Equal(t, view.StatusError, snap.Status)
	require.Empty(t, snap.Articles)
	require.Empty(t, snap.Topics)
}

func TestView_ToggleSource(t *testing.T) {
	f := newFixture()
	v := newView(f)
	defer v.Unmount()
	require.NoError(t, v.Mount(context.Background()))

	changed, err := v.ToggleSource(models.SourceNewsData)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, []string{"curated-1", "gnews-1"}, ids(v.Snapshot().Articles))

	changed, err = v.ToggleSource(models.SourceGNews)
	require.NoError(t, err)
	require.True(t, changed)

	// curated is the last one left
	changed, err = v.ToggleSource(models.SourceCurated)
	require.NoError(t, err)
	require.False(t, changed)
	snap := v.Snapshot()
	require.Equal(t, []models.Source{models.SourceCurated}, snap.SelectedSources)
	require.Equal(t, []string{"curated-1"}, ids(snap.Articles))

	changed, err = v.ToggleSource(models.SourceNewsData)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, []models.Source{models.SourceNewsData, models.SourceCurated}, v.Snapshot().SelectedSources)

	_, err = v.ToggleSource(models.Source("reuters"))
	require.ErrorIs(t, err, news.ErrUnknownSource)
}

func TestView_SelectTopic(t *testing.T) {
	f := newFixture()
	v := newView(f)
	defer v.Unmount()
	require.NoError(t, v.Mount(context.Background()))

	v.SelectTopic("CARBON CREDITS")
	snap := v.Snapshot()
	require.Equal(t, "CARBON CREDITS", snap.SelectedTopic)
	require.Equal(t, []string{"newsdata-1", "gnews-1"}, ids(snap.Articles))
	require.Equal(t, 4, snap.Total)

	v.SelectTopic("")
	require.Len(t, v.Snapshot().Articles, 4)
}

func TestView_RefreshInFlightIsRejected(t *testing.T) {
	f := newFixture()
	v := newView(f)
	defer v.Unmount()
	require.NoError(t, v.Mount(context.Background()))

	gate := f.curated.hold()
	done := make(chan error, 1)
	go func() { done <- v.Refresh(context.Background()) }()

	require.Eventually(t, func() bool {
		return v.Snapshot().Status == view.StatusRefreshing
	}, time.Second, 5*time.Millisecond)

	// the previous list stays visible while refreshing
	require.Len(t, v.Snapshot().Articles, 4)
	require.ErrorIs(t, v.Refresh(context.Background()), view.ErrRefreshInFlight)

	close(gate)
	require.NoError(t, <-done)
	require.Equal(t, view.StatusSuccess, v.Snapshot().Status)
}

func TestView_CancelledRefreshRestoresState(t *testing.T) {
	f := newFixture()
	v := newView(f)
	defer v.Unmount()
	require.NoError(t, v.Mount(context.Background()))

	f.gnews.hold()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- v.Refresh(ctx) }()

	require.Eventually(t, func() bool {
		return v.Snapshot().Status == view.StatusRefreshing
	}, time.Second, 5*time.Millisecond)
	cancel()

	require.ErrorIs(t, <-done, context.Canceled)
	snap := v.Snapshot()
	require.Equal(t, view.StatusSuccess, snap.Status)
	require.Len(t, snap.Articles, 4)
}

func TestView_UnmountDiscardsInFlightCycle(t *testing.T) {
	f := newFixture()
	archive := &recordingArchiver{}
	v := newView(f, news.WithArchiver(archive))

	gate := f.newsdata.hold()
	done := make(chan error, 1)
	go func() { done <- v.Mount(context.Background()) }()

	require.Eventually(t, func() bool {
		return v.Snapshot().Status == view.StatusLoading
	}, time.Second, 5*time.Millisecond)

	v.Unmount()
	close(gate)

	require.ErrorIs(t, <-done, view.ErrUnmounted)
	require.Empty(t, v.Snapshot().Articles)
	require.Empty(t, archive.batches)
	require.ErrorIs(t, v.Refresh(context.Background()), view.ErrUnmounted)
	require.ErrorIs(t, v.SetAutoRefresh(true), view.ErrUnmounted)
}

func TestView_AutoRefresh(t *testing.T) {
	f := newFixture()
	v := newView(f, news.WithAutoRefresh(true), news.WithInterval(20*time.Millisecond))
	defer v.Unmount()

	require.NoError(t, v.Mount(context.Background()))
	require.True(t, v.AutoRefresh())

	require.Eventually(t, func() bool {
		return f.curated.calls.Load() >= 3
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, v.SetAutoRefresh(false))
	require.False(t, v.Snapshot().AutoRefresh)
	stopped := f.curated.calls.Load()

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, stopped, f.curated.calls.Load())

	require.NoError(t, v.SetAutoRefresh(true))
	require.Eventually(t, func() bool {
		return f.curated.calls.Load() > stopped
	}, time.Second, 5*time.Millisecond)
}

func TestView_AutoRefreshSkipsErrorState(t *testing.T) {
	f := newFixture()
	for _, s := range []*fakeSource{f.newsdata, f.gnews, f.curated} {
		s.set(nil, errors.New("down"))
	}
	v := newView(f, news.WithAutoRefresh(true), news.WithInterval(10*time.Millisecond))
	defer v.Unmount()

	require.Error(t, v.Mount(context.Background()))
	time.Sleep(60 * time.Millisecond)

	// only the mount cycle reached the sources
	assert.Equal(t, int32(1), f.curated.calls.Load())
	assert.Equal(t, view.StatusError, v.Snapshot().Status)
}

func TestView_UnmountStopsAutoRefresh(t *testing.T) {
	f := newFixture()
	v := newView(f, news.WithAutoRefresh(true), news.WithInterval(10*time.Millisecond))

	require.NoError(t, v.Mount(context.Background()))
	require.Eventually(t, func() bool {
		return f.curated.calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)

	v.Unmount()
	after := f.curated.calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, f.curated.calls.Load())
}
