package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/wildfire-etl/internal/domain"
	"github.com/couchcryptid/wildfire-etl/internal/observability"
)

// HotspotFeed returns the raw detections of one source.
type HotspotFeed interface {
	Detections(ctx context.Context, source domain.Source, bbox orb.Bound, window domain.TimeWindow) ([]domain.RawDetection, error)
}

// Ingestion is what FetchObservations gathered: the normalized observations
// in source order, per-source counts and the sources that failed.
type Ingestion struct {
	Observations []domain.Observation
	Counts       map[domain.Source]int
	Failed       []*domain.SourceError
	Skipped      int
}

// Ingestor queries every hotspot source and normalizes the results.
type Ingestor struct {
	feed    HotspotFeed
	labels  *domain.Labeler
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewIngestor creates an ingestor over feed.
func NewIngestor(feed HotspotFeed, labels *domain.Labeler, logger *slog.Logger, metrics *observability.Metrics) *Ingestor {
	return &Ingestor{feed: feed, labels: labels, logger: logger, metrics: metrics}
}

// FetchObservations queries each source concurrently. A failing source is
// recorded in Failed and never cancels the others. When no source yields a
// single usable observation the error wraps domain.ErrNoData.
func (in *Ingestor) FetchObservations(ctx context.Context, bbox orb.Bound, window domain.TimeWindow, sources []domain.Source) (Ingestion, error) {
	type sourceResult struct {
		observations []domain.Observation
		skipped      int
		err          error
	}
	results := make([]sourceResult, len(sources))

	var g errgroup.Group
	for i, src := range sources {
		g.Go(func() error {
			raw, err := in.feed.Detections(ctx, src, bbox, window)
			if err != nil {
				results[i].err = err
				return nil
			}
			obs := make([]domain.Observation, 0, len(raw))
			for _, r := range raw {
				o, err := domain.Normalize(r, in.labels)
				if err != nil {
					results[i].skipped++
					in.logger.Debug("detection skipped", "source", src, "error", err)
					continue
				}
				obs = append(obs, o)
			}
			results[i].observations = obs
			return nil
		})
	}
	_ = g.Wait()

	out := Ingestion{Counts: make(map[domain.Source]int, len(sources))}
	for i, src := range sources {
		r := results[i]
		if r.err != nil {
			in.metrics.SourceErrors.WithLabelValues(string(src)).Inc()
			out.Failed = append(out.Failed, &domain.SourceError{Source: src, Err: r.err})
			continue
		}
		in.metrics.ObservationsIngested.WithLabelValues(string(src)).Add(float64(len(r.observations)))
		out.Counts[src] = len(r.observations)
		out.Skipped += r.skipped
		out.Observations = append(out.Observations, r.observations...)
	}

	if len(out.Observations) == 0 {
		return out, fmt.Errorf("%d of %d sources answered: %w", len(sources)-len(out.Failed), len(sources), domain.ErrNoData)
	}
	return out, nil
}
