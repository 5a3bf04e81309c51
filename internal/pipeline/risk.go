package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/wildfire-etl/internal/config"
	"github.com/couchcryptid/wildfire-etl/internal/domain"
)

// RiskFeed returns the forecast behind one horizon URL.
type RiskFeed interface {
	Risk(ctx context.Context, rawURL string) (domain.RiskForecast, error)
}

// BuildRiskLayers fetches every horizon concurrently and colors units by
// each forecast. Layers come back in horizon order; horizons that failed
// are returned as errors and leave no layer behind.
func BuildRiskLayers(ctx context.Context, feed RiskFeed, units []domain.AdminUnit, horizons []config.RiskHorizon, labels *domain.Labeler) (domain.RiskResult, []*domain.HorizonError) {
	forecasts := make([]domain.RiskForecast, len(horizons))
	errs := make([]error, len(horizons))

	var g errgroup.Group
	for i, h := range horizons {
		g.Go(func() error {
			forecasts[i], errs[i] = feed.Risk(ctx, h.URL)
			return nil
		})
	}
	_ = g.Wait()

	var (
		result domain.RiskResult
		failed []*domain.HorizonError
	)
	for i, h := range horizons {
		if errs[i] != nil {
			failed = append(failed, &domain.HorizonError{Horizon: h.Name, Err: errs[i]})
			continue
		}
		result.Layers = append(result.Layers, domain.BuildRiskLayer(h.Name, units, forecasts[i], labels))
	}
	return result, failed
}
