// Package pipeline runs the hotspot, incident and risk paths of one refresh
// cycle and reports their progress and results.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/wildfire-etl/internal/config"
	"github.com/couchcryptid/wildfire-etl/internal/domain"
	"github.com/couchcryptid/wildfire-etl/internal/observability"
	"github.com/couchcryptid/wildfire-etl/internal/spatial"
)

// IncidentFeed returns the active-incident list.
type IncidentFeed interface {
	Incidents(ctx context.Context, rawURL string) ([]domain.Incident, error)
}

// Settings are the per-run parameters taken from configuration.
type Settings struct {
	Sources      []domain.Source
	DayRange     int
	IncidentsURL string
	Horizons     []config.RiskHorizon
	// PlaceWorkers bounds concurrent place lookups.
	PlaceWorkers int
}

// Deps are the collaborators a Pipeline drives. Boundary and AdminUnits may
// be nil, in which case the hotspot and risk stages fail with
// domain.ErrNoBoundary on every run.
type Deps struct {
	Hotspots      HotspotFeed
	Incidents     IncidentFeed
	Risk          RiskFeed
	Boundary      *spatial.BoundaryIndex
	AdminUnits    []domain.AdminUnit
	Reconstructor AreaReconstructor
	Places        domain.PlaceEnricher
	Scorer        *domain.ImportanceScorer
	Labels        *domain.Labeler
	Reporter      Reporter
	Clock         clockwork.Clock
}

// StageStatus is the outcome of one stage in a run.
type StageStatus struct {
	OK     bool   `json:"ok"`
	Count  int    `json:"count"`
	Errors int    `json:"errors"`
	Error  string `json:"error,omitempty"`
}

// RunSummary describes a finished run.
type RunSummary struct {
	RunID      string                 `json:"run_id"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	Outcome    string                 `json:"outcome"`
	Stages     map[string]StageStatus `json:"stages"`
}

// Pipeline orchestrates refresh cycles. Each cycle is a fresh run with its
// own ID, buckets and importance stats; nothing is carried between runs.
type Pipeline struct {
	deps     Deps
	settings Settings
	logger   *slog.Logger
	metrics  *observability.Metrics

	runMu sync.Mutex
	ready atomic.Bool
	last  atomic.Pointer[RunSummary]
}

// New creates a Pipeline with the given collaborators and observability.
func New(deps Deps, settings Settings, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Reporter == nil {
		deps.Reporter = LogReporter{Logger: logger}
	}
	if deps.Reconstructor == nil {
		deps.Reconstructor = spatial.NewReconstructor(0, 0, 0)
	}
	if deps.Scorer == nil {
		deps.Scorer = domain.NewImportanceScorer(deps.Clock, time.UTC)
	}
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}
	if settings.DayRange < 1 {
		settings.DayRange = 1
	}
	if settings.PlaceWorkers < 1 {
		settings.PlaceWorkers = 4
	}
	if len(settings.Sources) == 0 {
		settings.Sources = domain.AllSources
	}
	return &Pipeline{
		deps:     deps,
		settings: settings,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once a run has completed, or an error
// describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// LastRun returns the summary of the most recent run, if any.
func (p *Pipeline) LastRun() (RunSummary, bool) {
	s := p.last.Load()
	if s == nil {
		return RunSummary{}, false
	}
	return *s, true
}

// RunOnce executes one refresh cycle. The hotspot, incident and risk paths
// run concurrently and report independently; a failing path never cancels
// the others. Only one cycle runs at a time.
func (p *Pipeline) RunOnce(ctx context.Context) RunSummary {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	r := &run{
		id:      uuid.NewString(),
		started: p.deps.Clock.Now(),
		p:       p,
		stages:  make(map[string]StageStatus, 3),
	}
	logger := p.logger.With("run_id", r.id)
	logger.Info("run started")
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	r.progress(ctx, "", "refresh started")

	var g errgroup.Group
	g.Go(func() error { r.hotspots(ctx); return nil })
	g.Go(func() error { r.incidents(ctx); return nil })
	g.Go(func() error { r.risk(ctx); return nil })
	_ = g.Wait()

	summary := r.summary(p.deps.Clock.Now())
	p.metrics.RunDuration.Observe(summary.FinishedAt.Sub(summary.StartedAt).Seconds())
	p.metrics.RunsTotal.WithLabelValues(summary.Outcome).Inc()
	p.last.Store(&summary)
	if ctx.Err() == nil {
		p.ready.Store(true)
	}

	logger.Info("run finished",
		"outcome", summary.Outcome,
		"duration", summary.FinishedAt.Sub(summary.StartedAt),
	)
	return summary
}

// run carries the state of one refresh cycle.
type run struct {
	id      string
	started time.Time
	p       *Pipeline

	mu     sync.Mutex
	stages map[string]StageStatus
}

func (r *run) report(ctx context.Context, msg domain.Message) {
	msg.RunID = r.id
	msg.Time = r.p.deps.Clock.Now()
	if err := r.p.deps.Reporter.Report(ctx, msg); err != nil {
		r.p.logger.Warn("report failed", "run_id", r.id, "type", msg.Type, "error", err)
	}
}

func (r *run) progress(ctx context.Context, stage, text string) {
	r.report(ctx, domain.Message{Type: domain.MessageProgress, Stage: stage, Text: text})
}

func (r *run) recoverable(ctx context.Context, stage string, err error) {
	r.mu.Lock()
	st := r.stages[stage]
	st.Errors++
	r.stages[stage] = st
	r.mu.Unlock()
	r.report(ctx, domain.Message{Type: domain.MessageError, Stage: stage, Text: err.Error()})
}

func (r *run) fail(ctx context.Context, stage string, err error) {
	r.p.metrics.StageFailures.WithLabelValues(stage).Inc()
	r.mu.Lock()
	st := r.stages[stage]
	st.OK = false
	st.Error = err.Error()
	r.stages[stage] = st
	r.mu.Unlock()
	r.report(ctx, domain.Message{Type: domain.MessageFailure, Stage: stage, Text: err.Error()})
}

func (r *run) succeed(ctx context.Context, stage string, count int, data any) {
	r.mu.Lock()
	st := r.stages[stage]
	st.OK = true
	st.Count = count
	r.stages[stage] = st
	r.mu.Unlock()
	r.report(ctx, domain.Message{Type: domain.MessageResult, Stage: stage, Data: data})
}

func (r *run) summary(finished time.Time) RunSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	stages := make(map[string]StageStatus, len(r.stages))
	ok := 0
	for name, st := range r.stages {
		stages[name] = st
		if st.OK {
			ok++
		}
	}
	outcome := "partial"
	switch ok {
	case len(stages):
		outcome = "success"
	case 0:
		outcome = "failed"
	}
	return RunSummary{
		RunID:      r.id,
		StartedAt:  r.started,
		FinishedAt: finished,
		Outcome:    outcome,
		Stages:     stages,
	}
}

// hotspots fetches every source, classifies the observations, labels them
// with places and reconstructs each region's burnt area.
func (r *run) hotspots(ctx context.Context) {
	const stage = domain.StageHotspots
	d := r.p.deps

	if d.Boundary == nil {
		r.fail(ctx, stage, fmt.Errorf("hotspots cannot be classified: %w", domain.ErrNoBoundary))
		return
	}
	if d.Hotspots == nil {
		r.fail(ctx, stage, errors.New("no hotspot feed configured"))
		return
	}

	window := domain.WindowEndingAt(r.started, r.p.settings.DayRange)
	r.progress(ctx, stage, fmt.Sprintf("fetching hotspots from %d sources", len(r.p.settings.Sources)))

	ingestor := NewIngestor(d.Hotspots, d.Labels, r.p.logger, r.p.metrics)
	ing, err := ingestor.FetchObservations(ctx, d.Boundary.Bound(), window, r.p.settings.Sources)
	for _, se := range ing.Failed {
		r.recoverable(ctx, stage, se)
	}
	if err != nil {
		// ErrNoData included: the cycle simply has no hotspot layer.
		r.fail(ctx, stage, err)
		return
	}
	if ing.Skipped > 0 {
		r.progress(ctx, stage, fmt.Sprintf("skipped %d malformed detections", ing.Skipped))
	}

	r.progress(ctx, stage, fmt.Sprintf("classifying %d observations", len(ing.Observations)))
	regions := d.Boundary.Group(ing.Observations)

	if d.Places.Resolver != nil {
		r.progress(ctx, stage, "resolving nearest places")
		if err := r.enrich(ctx, regions); err != nil {
			r.fail(ctx, stage, err)
			return
		}
	}

	r.progress(ctx, stage, "reconstructing burnt areas")
	for _, err := range ReconstructAreas(regions, d.Reconstructor) {
		r.p.metrics.GeometryErrors.Inc()
		r.recoverable(ctx, stage, err)
	}
	for _, b := range regions {
		if b.Area != nil {
			r.p.metrics.ClustersBuilt.Add(float64(b.Area.Clusters))
		}
	}

	r.succeed(ctx, stage, regions.Total(), domain.HotspotResult{
		Window:  window,
		Sources: ing.Counts,
		Regions: regions,
	})
}

// enrich resolves places for every observation with a bounded number of
// concurrent lookups. Lookup failures degrade per observation; only
// cancellation aborts.
func (r *run) enrich(ctx context.Context, regions domain.Regions) error {
	var g errgroup.Group
	g.SetLimit(r.p.settings.PlaceWorkers)
	for _, b := range regions {
		for i := range b.Observations {
			g.Go(func() error {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				b.Observations[i] = r.p.deps.Places.Enrich(ctx, b.Observations[i], b.Key)
				return nil
			})
		}
	}
	return g.Wait()
}

// incidents fetches and scores the active incidents.
func (r *run) incidents(ctx context.Context) {
	const stage = domain.StageIncidents
	d := r.p.deps

	if d.Incidents == nil || r.p.settings.IncidentsURL == "" {
		r.fail(ctx, stage, errors.New("no incident feed configured"))
		return
	}

	r.progress(ctx, stage, "fetching active incidents")
	incidents, err := d.Incidents.Incidents(ctx, r.p.settings.IncidentsURL)
	if err != nil {
		r.fail(ctx, stage, fmt.Errorf("fetch incidents: %w", err))
		return
	}

	scored, stats := d.Scorer.ScoreAll(incidents)
	r.p.metrics.IncidentsScored.Add(float64(len(scored)))
	r.succeed(ctx, stage, len(scored), domain.IncidentResult{Incidents: scored, Stats: stats})
}

// risk builds one colored unit layer per forecast horizon.
func (r *run) risk(ctx context.Context) {
	const stage = domain.StageRisk
	d := r.p.deps

	if len(d.AdminUnits) == 0 {
		r.fail(ctx, stage, fmt.Errorf("risk layers cannot be built: %w", domain.ErrNoBoundary))
		return
	}
	if d.Risk == nil || len(r.p.settings.Horizons) == 0 {
		r.fail(ctx, stage, errors.New("no risk horizons configured"))
		return
	}

	r.progress(ctx, stage, fmt.Sprintf("fetching %d risk forecasts", len(r.p.settings.Horizons)))
	result, failed := BuildRiskLayers(ctx, d.Risk, d.AdminUnits, r.p.settings.Horizons, d.Labels)
	for _, he := range failed {
		r.p.metrics.RiskLayers.WithLabelValues("failed").Inc()
		r.recoverable(ctx, stage, he)
	}
	r.p.metrics.RiskLayers.WithLabelValues("built").Add(float64(len(result.Layers)))

	if len(result.Layers) == 0 {
		r.fail(ctx, stage, errors.New("no risk layer could be loaded"))
		return
	}
	r.succeed(ctx, stage, len(result.Layers), result)
}
