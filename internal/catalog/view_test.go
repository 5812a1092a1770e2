package catalog_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"carbon_dashboard/internal/catalog"
	"carbon_dashboard/internal/fetcher"
	"carbon_dashboard/internal/models"
	"carbon_dashboard/internal/registry"
	"carbon_dashboard/internal/view"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeRegistry struct {
	name  string
	calls atomic.Int32

	mu       sync.Mutex
	projects []models.OffsetProject
	err      error
	gate     chan struct{}
}

func (f *fakeRegistry) Name() string { return f.name }

func (f *fakeRegistry) Projects(ctx context.Context) ([]models.OffsetProject, error) {
	f.calls.Add(1)
	f.mu.Lock()
	gate, projects, err := f.gate, f.projects, f.err
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return projects, err
}

func (f *fakeRegistry) set(projects []models.OffsetProject, err error) {
	f.mu.Lock()
	f.projects, f.err = projects, err
	f.mu.Unlock()
}

func projects(registryName string, n int) []models.OffsetProject {
	out := make([]models.OffsetProject, n)
	for i := range out {
		out[i] = models.OffsetProject{
			ID:       fmt.Sprintf("%s-%d", registryName, i),
			Name:     fmt.Sprintf("Project %d", i),
			Registry: registryName,
		}
	}
	return out
}

type recordingArchiver struct {
	mu    sync.Mutex
	loads [][]models.OffsetProject
}

func (r *recordingArchiver) ArchiveProjects(projects []models.OffsetProject, fetchedAt time.Time) {
	r.mu.Lock()
	r.loads = append(r.loads, projects)
	r.mu.Unlock()
}

func clock() catalog.Option {
	return catalog.WithClock(func() time.Time { return base })
}

func TestLoad_PrimaryRegistry(t *testing.T) {
	var body strings.Builder
	body.WriteString("[")
	for i := 0; i < 7; i++ {
		if i > 0 {
			body.WriteString(",")
		}
		fmt.Fprintf(&body, `{"resourceIdentifier":"%d","resourceName":"Mangroves %d","country":"Kenya"}`, 100+i, i)
	}
	body.WriteString("]")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body.String()))
	}))
	defer server.Close()

	client := fetcher.NewClient(time.Second)
	pricer := registry.NewRandomPricer(10, 25, 7)
	secondary := &fakeRegistry{name: registry.NameSecondary}
	archive := &recordingArchiver{}
	v := catalog.NewView(
		registry.NewPrimary(client, server.URL, "AFOLU", 9, pricer),
		secondary,
		clock(), catalog.WithArchiver(archive),
	)

	require.Equal(t, view.StatusIdle, v.Snapshot().Status)
	require.NoError(t, v.Load(context.Background()))

	snap := v.Snapshot()
	require.Equal(t, view.StatusSuccess, snap.Status)
	require.Equal(t, registry.NamePrimary, snap.Registry)
	require.Equal(t, base, snap.UpdatedAt)
	require.Len(t, snap.Projects, 7)
	for _, p := range snap.Projects {
		assert.True(t, p.PriceSimulated)
		assert.GreaterOrEqual(t, p.PricePerCredit, 10.0)
		assert.LessOrEqual(t, p.PricePerCredit, 25.0)
	}

	require.Zero(t, secondary.calls.Load())
	require.Len(t, archive.loads, 1)
}

func TestLoad_FallsBackToSecondary(t *testing.T) {
	primary := &fakeRegistry{name: registry.NamePrimary, err: fetcher.ErrUnexpectedStatus}
	secondary := &fakeRegistry{name: registry.NameSecondary, projects: projects(registry.NameSecondary, 3)}
	v := catalog.NewView(primary, secondary, clock())

	require.NoError(t, v.Load(context.Background()))

	snap := v.Snapshot()
	require.Equal(t, view.StatusSuccess, snap.Status)
	require.Equal(t, registry.NameSecondary, snap.Registry)
	require.Len(t, snap.Projects, 3)
	for _, p := range snap.Projects {
		assert.Equal(t, registry.NameSecondary, p.Registry)
	}
	require.Equal(t, int32(1), primary.calls.Load())
	require.Equal(t, int32(1), secondary.calls.Load())
}

func TestLoad_EmptyPrimaryFallsBack(t *testing.T) {
	primary := &fakeRegistry{name: registry.NamePrimary}
	secondary := &fakeRegistry{name: registry.NameSecondary, projects: projects(registry.NameSecondary, 2)}
	v := catalog.NewView(primary, secondary, clock())

	require.NoError(t, v.Load(context.Background()))
	require.Equal(t, registry.NameSecondary, v.Snapshot().Registry)
}

func TestLoad_BothRegistriesFail(t *testing.T) {
	primaryErr := errors.New("primary down")
	secondaryErr := errors.New("secondary down")
	primary := &fakeRegistry{name: registry.NamePrimary, err: primaryErr}
	secondary := &fakeRegistry{name: registry.NameSecondary, err: secondaryErr}
	v := catalog.NewView(primary, secondary, clock())

	err := v.Load(context.Background())
	require.ErrorIs(t, err, catalog.ErrAllRegistriesFailed)
	require.ErrorIs(t, err, primaryErr)
	require.ErrorIs(t, err, secondaryErr)

	snap := v.Snapshot()
	require.Equal(t, view.StatusError, snap.Status)
	require.Equal(t, catalog.ErrorMessage, snap.Error)
	require.Empty(t, snap.Projects)
	require.Empty(t, snap.Registry)

	// Retry is a full reload: loading first, then primary again.
	gate := make(chan struct{})
	primary.mu.Lock()
	primary.gate = gate
	primary.err = nil
	primary.projects = projects(registry.NamePrimary, 9)
	primary.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- v.Retry(context.Background()) }()
	require.Eventually(t, func() bool {
		return v.Snapshot().Status == view.StatusLoading
	}, time.Second, 5*time.Millisecond)

	close(gate)
	require.NoError(t, <-done)

	snap = v.Snapshot()
	require.Equal(t, view.StatusSuccess, snap.Status)
	require.Empty(t, snap.Error)
	require.Len(t, snap.Projects, 9)
	require.Equal(t, int32(2), primary.calls.Load())
}

func TestLoad_InFlightIsRejected(t *testing.T) {
	gate := make(chan struct{})
	primary := &fakeRegistry{name: registry.NamePrimary, projects: projects(registry.NamePrimary, 1), gate: gate}
	v := catalog.NewView(primary, &fakeRegistry{name: registry.NameSecondary}, clock())

	done := make(chan error, 1)
	go func() { done <- v.Load(context.Background()) }()
	require.Eventually(t, func() bool {
		return v.Snapshot().Status == view.StatusLoading
	}, time.Second, 5*time.Millisecond)

	require.ErrorIs(t, v.Retry(context.Background()), view.ErrRefreshInFlight)
	close(gate)
	require.NoError(t, <-done)
}

func TestUnmount_DiscardsInFlightLoad(t *testing.T) {
	gate := make(chan struct{})
	primary := &fakeRegistry{name: registry.NamePrimary, projects: projects(registry.NamePrimary, 4), gate: gate}
	archive := &recordingArchiver{}
	v := catalog.NewView(primary, &fakeRegistry{name: registry.NameSecondary}, clock(), catalog.WithArchiver(archive))

	done := make(chan error, 1)
	go func() { done <- v.Load(context.Background()) }()
	require.Eventually(t, func() bool {
		return primary.calls.Load() == 1
	}, time.Second, 5*time.Millisecond)

	v.Unmount()
	close(gate)

	require.ErrorIs(t, <-done, view.ErrUnmounted)
	require.Empty(t, v.Snapshot().Projects)
	require.Empty(t, archive.loads)
	require.ErrorIs(t, v.Retry(context.Background()), view.ErrUnmounted)
}

func TestLoad_CancelledSkipsFallback(t *testing.T) {
	primary := &fakeRegistry{name: registry.NamePrimary, gate: make(chan struct{})}
	secondary := &fakeRegistry{name: registry.NameSecondary, projects: projects(registry.NameSecondary, 1)}
	v := catalog.NewView(primary, secondary, clock())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- v.Load(ctx) }()
	require.Eventually(t, func() bool {
		return primary.calls.Load() == 1
	}, time.Second, 5*time.Millisecond)
	cancel()

	require.ErrorIs(t, <-done, context.Canceled)
	require.Zero(t, secondary.calls.Load())
	require.Equal(t, view.StatusIdle, v.Snapshot().Status)
}

func TestLoad_ErrorStateRequiresRetry(t *testing.T) {
	primary := &fakeRegistry{name: registry.NamePrimary, err: errors.New("primary down")}
	secondary := &fakeRegistry{name: registry.NameSecondary, err: errors.New("secondary down")}
	v := catalog.NewView(primary, secondary, clock())

	require.ErrorIs(t, v.Load(context.Background()), catalog.ErrAllRegistriesFailed)

	primary.set(projects(registry.NamePrimary, 2), nil)
	require.ErrorIs(t, v.Load(context.Background()), view.ErrRetryRequired)
	require.Equal(t, view.StatusError, v.Snapshot().Status)
	require.Equal(t, int32(1), primary.calls.Load())

	require.NoError(t, v.Retry(context.Background()))
	require.Equal(t, view.StatusSuccess, v.Snapshot().Status)
}

func TestSnapshot_ProjectsNeverNull(t *testing.T) {
	primary := &fakeRegistry{name: registry.NamePrimary, err: errors.New("down")}
	secondary := &fakeRegistry{name: registry.NameSecondary, err: errors.New("down")}
	v := catalog.NewView(primary, secondary, clock())

	idle, err := json.Marshal(v.Snapshot())
	require.NoError(t, err)
	assert.Contains(t, string(idle), `"projects":[]`)

	require.Error(t, v.Load(context.Background()))
	failed, err := json.Marshal(v.Snapshot())
	require.NoError(t, err)
	assert.Contains(t, string(failed), `"projects":[]`)
	assert.Contains(t, string(failed), `"status":"error"`)
}
