package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wildfire_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	PipelineRunning prometheus.Gauge
	RunsTotal       *prometheus.CounterVec // labels: outcome={completed,canceled}
	RunDuration     prometheus.Histogram
	StageFailures   *prometheus.CounterVec // labels: stage={hotspots,incidents,risk}

	// Hotspot path.
	ObservationsIngested *prometheus.CounterVec // labels: source
	SourceErrors         *prometheus.CounterVec // labels: source
	ClustersBuilt        prometheus.Counter
	GeometryErrors       prometheus.Counter

	// Incident and risk paths.
	IncidentsScored prometheus.Counter
	RiskLayers      *prometheus.CounterVec // labels: outcome={built,failed}

	// Retrying fetch client.
	FetchRequests *prometheus.CounterVec // labels: outcome={success,retry,exhausted}
	FetchDuration prometheus.Histogram

	// Place enrichment.
	PlaceRequests    *prometheus.CounterVec   // labels: provider, outcome={success,error,empty}
	PlaceCache       *prometheus.CounterVec   // labels: result={hit,miss}
	PlaceAPIDuration *prometheus.HistogramVec // labels: provider
	PlaceEnabled     prometheus.Gauge

	// Result transport.
	MessagesProduced *prometheus.CounterVec // labels: type
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}
	return &Metrics{
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      help("1 while the scheduler is active, 0 when shut down."),
		}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      help("Pipeline runs by outcome."),
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      help("Duration of a complete pipeline run."),
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		StageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      help("Stages that produced no output, by stage."),
		}, []string{"stage"}),
		ObservationsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_ingested_total",
			Help:      help("Normalized hotspot observations by source."),
		}, []string{"source"}),
		SourceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_errors_total",
			Help:      help("Hotspot source failures by source."),
		}, []string{"source"}),
		ClustersBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clusters_built_total",
			Help:      help("Burnt-area clusters reconstructed."),
		}),
		GeometryErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geometry_errors_total",
			Help:      help("Clusters skipped because their polygon could not be built."),
		}),
		IncidentsScored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incidents_scored_total",
			Help:      help("Active incidents scored for importance."),
		}),
		RiskLayers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_layers_total",
			Help:      help("Risk horizons processed by outcome."),
		}, []string{"outcome"}),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      help("Outbound feed requests by outcome."),
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      help("Duration of a single outbound feed request."),
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		PlaceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "place_requests_total",
			Help:      help("Place provider requests by provider and outcome."),
		}, []string{"provider", "outcome"}),
		PlaceCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "place_cache_total",
			Help:      help("Place cache lookups by result."),
		}, []string{"result"}),
		PlaceAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "place_api_duration_seconds",
			Help:      help("Place provider request duration in seconds."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"provider"}),
		PlaceEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "place_enabled",
			Help:      help("1 when place enrichment is enabled, 0 otherwise."),
		}),
		MessagesProduced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_produced_total",
			Help:      help("Reporter messages written to Kafka by message type."),
		}, []string{"type"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.PipelineRunning,
		m.RunsTotal,
		m.RunDuration,
		m.StageFailures,
		m.ObservationsIngested,
		m.SourceErrors,
		m.ClustersBuilt,
		m.GeometryErrors,
		m.IncidentsScored,
		m.RiskLayers,
		m.FetchRequests,
		m.FetchDuration,
		m.PlaceRequests,
		m.PlaceCache,
		m.PlaceAPIDuration,
		m.PlaceEnabled,
		m.MessagesProduced,
	}
}
