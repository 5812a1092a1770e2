// Package catalog shows one page of carbon-offset projects, loaded from the
// primary registry with a single fallback to the secondary one.
package catalog

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"carbon_dashboard/internal/logger"
	"carbon_dashboard/internal/metrics"
	"carbon_dashboard/internal/models"
	"carbon_dashboard/internal/registry"
	"carbon_dashboard/internal/tracing"
	"carbon_dashboard/internal/view"
)

// ErrorMessage is the only failure text shown to users.
const ErrorMessage = "Unable to load carbon offset projects. Please try again."

const (
	TriggerMount = "mount"
	TriggerRetry = "retry"
)

var ErrAllRegistriesFailed = errors.New("all registries failed")

var tracer = tracing.Tracer("catalog")

// Archiver receives each successful load. Implementations must not block.
type Archiver interface {
	ArchiveProjects(projects []models.OffsetProject, fetchedAt time.Time)
}

type Snapshot struct {
	Status    view.Status            `json:"status"`
	Projects  []models.OffsetProject `json:"projects"`
	Error     string                 `json:"error,omitempty"`
	Registry  string                 `json:"registry,omitempty"`
	UpdatedAt time.Time              `json:"updated_at"`
}

type Option func(*View)

func WithClock(now func() time.Time) Option {
	return func(v *View) { v.now = now }
}

// WithArchiver hands every successful load to a.
func WithArchiver(a Archiver) Option {
	return func(v *View) { v.archive = a }
}

// View holds the catalog page. It has no cache: every Load goes upstream.
type View struct {
	primary   registry.Registry
	secondary registry.Registry
	now       func() time.Time
	archive   Archiver

	mu        sync.Mutex
	machine   view.Machine
	projects  []models.OffsetProject
	used      string
	errMsg    string
	updatedAt time.Time
	unmounted bool
	gen       uint64
}

func NewView(primary, secondary registry.Registry, opts ...Option) *View {
	v := &View{
		primary:   primary,
		secondary: secondary,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Load fetches the page on mount. It fails with view.ErrRetryRequired in the
// error state.
func (v *View) Load(ctx context.Context) error {
	return v.load(ctx, TriggerMount)
}

// Retry repeats the whole primary then fallback sequence.
func (v *View) Retry(ctx context.Context) error {
	return v.load(ctx, TriggerRetry)
}

// Unmount releases the view; a load still in flight is discarded.
func (v *View) Unmount() {
	v.mu.Lock()
	v.unmounted = true
	v.gen++
	v.mu.Unlock()
}

func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	return Snapshot{
		Status:    v.machine.Status(),
		Projects:  append(make([]models.OffsetProject, 0, len(v.projects)), v.projects...),
		Error:     v.errMsg,
		Registry:  v.used,
		UpdatedAt: v.updatedAt,
	}
}

func (v *View) load(ctx context.Context, trigger string) error {
	log := logger.Log.WithFields(logger.Fields{
		"service": "catalog",
		"trigger": trigger,
	})

	v.mu.Lock()
	if v.unmounted {
		v.mu.Unlock()
		return view.ErrUnmounted
	}
	begin := v.machine.Begin
	if trigger == TriggerRetry {
		begin = v.machine.Retry
	}
	if err := begin(); err != nil {
		v.mu.Unlock()
		return err
	}
	gen := v.gen
	v.mu.Unlock()

	ctx, span := tracer.Start(ctx, "catalog.load")
	defer span.End()

	projects, used, err := v.fetch(ctx, log)
	fetchedAt := v.now()

	v.mu.Lock()
	defer v.mu.Unlock()

	if gen != v.gen {
		metrics.ObserveCycle("catalog", trigger, metrics.OutcomeAborted)
		return view.ErrUnmounted
	}
	if ctx.Err() != nil {
		v.machine.Abort()
		metrics.ObserveCycle("catalog", trigger, metrics.OutcomeAborted)
		return ctx.Err()
	}

	if err != nil {
		v.machine.Fail()
		v.projects = nil
		v.used = ""
		v.errMsg = ErrorMessage
		metrics.ObserveCycle("catalog", trigger, metrics.CycleOutcome(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "no projects")
		log.Errorf("Catalog load failed: %v", err)
		return err
	}

	v.projects = projects
	v.used = used
	v.errMsg = ""
	v.updatedAt = fetchedAt
	v.machine.Succeed()

	metrics.ObserveCycle("catalog", trigger, metrics.CycleOutcome(nil))
	span.SetAttributes(attribute.String("registry", used), attribute.Int("projects", len(projects)))
	log.WithFields(logger.Fields{
		"registry": used,
		"projects": len(projects),
	}).Info("Catalog loaded")

	if v.archive != nil {
		v.archive.ArchiveProjects(projects, fetchedAt)
	}
	return nil
}

// fetch tries the primary registry, then the secondary exactly once.
func (v *View) fetch(ctx context.Context, log *logger.Entry) ([]models.OffsetProject, string, error) {
	projects, primaryErr := v.request(ctx, v.primary)
	if primaryErr == nil {
		return projects, v.primary.Name(), nil
	}
	log.WithField("registry", v.primary.Name()).Warnf("Primary registry failed, falling back: %v", primaryErr)

	if ctx.Err() != nil {
		return nil, "", ctx.Err()
	}

	projects, secondaryErr := v.request(ctx, v.secondary)
	if secondaryErr == nil {
		return projects, v.secondary.Name(), nil
	}
	log.WithField("registry", v.secondary.Name()).Warnf("Secondary registry failed: %v", secondaryErr)

	return nil, "", errors.Join(ErrAllRegistriesFailed, primaryErr, secondaryErr)
}

func (v *View) request(ctx context.Context, r registry.Registry) ([]models.OffsetProject, error) {
	ctx, span := tracer.Start(ctx, "catalog.registry")
	span.SetAttributes(attribute.String("registry", r.Name()))
	defer span.End()

	projects, err := r.Projects(ctx)
	if err == nil && len(projects) == 0 {
		err = registry.ErrNoProjects
	}
	metrics.ObserveRegistryFetch(r.Name(), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "registry failed")
	}
	return projects, err
}
