// Package app assembles the pipeline and its adapters from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/wildfire-etl/internal/adapter/arcgis"
	"github.com/couchcryptid/wildfire-etl/internal/adapter/fetch"
	"github.com/couchcryptid/wildfire-etl/internal/adapter/fogos"
	"github.com/couchcryptid/wildfire-etl/internal/adapter/geosource"
	"github.com/couchcryptid/wildfire-etl/internal/adapter/mapbox"
	"github.com/couchcryptid/wildfire-etl/internal/adapter/overpass"
	"github.com/couchcryptid/wildfire-etl/internal/adapter/placecache"
	"github.com/couchcryptid/wildfire-etl/internal/config"
	"github.com/couchcryptid/wildfire-etl/internal/domain"
	"github.com/couchcryptid/wildfire-etl/internal/observability"
	"github.com/couchcryptid/wildfire-etl/internal/pipeline"
	"github.com/couchcryptid/wildfire-etl/internal/spatial"
)

const userAgent = "wildfire-etl"

// NewPipeline builds a pipeline reporting to reporter. Reference data that
// cannot be loaded is logged and left out; the affected stages then fail on
// every run instead of the service refusing to start.
func NewPipeline(ctx context.Context, cfg *config.Config, reporter pipeline.Reporter, logger *slog.Logger, metrics *observability.Metrics) (*pipeline.Pipeline, error) {
	fetcher := fetch.NewClient(fetch.Settings{
		MaxAttempts: cfg.FetchMaxAttempts,
		BaseDelay:   cfg.FetchBaseDelay,
		Timeout:     cfg.FetchTimeout,
		RateLimit:   cfg.FetchRateLimit,
		UserAgent:   userAgent,
	}, logger, metrics)
	loader := geosource.NewLoader(fetcher)
	labels := domain.NewLabeler(cfg.LabelLanguage)

	boundary, err := LoadBoundary(ctx, loader, cfg.BoundarySource)
	if err != nil {
		logger.Error("boundary not loaded, hotspots will not be classified", "source", cfg.BoundarySource, "error", err)
	} else {
		logger.Info("boundary loaded", "source", cfg.BoundarySource, "features", boundary.Len(), "binary", boundary.Binary())
	}

	var units []domain.AdminUnit
	if cfg.AdminUnitsSource != "" {
		if units, err = LoadAdminUnits(ctx, loader, cfg.AdminUnitsSource); err != nil {
			logger.Error("admin units not loaded, risk layers will not be built", "source", cfg.AdminUnitsSource, "error", err)
		} else {
			logger.Info("admin units loaded", "source", cfg.AdminUnitsSource, "units", len(units))
		}
	}

	resolver, err := PlaceResolver(cfg, logger, metrics)
	if err != nil {
		return nil, err
	}
	if resolver != nil {
		metrics.PlaceEnabled.Set(1)
		logger.Info("place enrichment enabled", "provider", cfg.PlaceProvider, "cache_size", cfg.PlaceCacheSize)
	} else {
		metrics.PlaceEnabled.Set(0)
		logger.Info("place enrichment disabled")
	}

	feeds := fogos.NewClient(fetcher, cfg.LocalTimezone)
	deps := pipeline.Deps{
		Hotspots:      arcgis.NewClient(fetcher, cfg.HotspotURLs),
		Incidents:     feeds,
		Risk:          feeds,
		Boundary:      boundary,
		AdminUnits:    units,
		Reconstructor: spatial.NewReconstructor(cfg.ClusterEpsilonKm, cfg.ClusterMinPoints, cfg.BufferRadiusKm),
		Places: domain.PlaceEnricher{
			Resolver:      resolver,
			MaxDistanceKm: cfg.PlaceMaxDistanceKm,
			Labels:        labels,
			Logger:        logger,
		},
		Scorer:   domain.NewImportanceScorer(nil, cfg.LocalTimezone),
		Labels:   labels,
		Reporter: reporter,
	}
	settings := pipeline.Settings{
		Sources:      cfg.HotspotSources,
		DayRange:     cfg.DayRange,
		IncidentsURL: cfg.IncidentsURL,
		Horizons:     cfg.RiskHorizons,
	}
	return pipeline.New(deps, settings, logger, metrics), nil
}

// LoadBoundary reads src and indexes its features.
func LoadBoundary(ctx context.Context, loader *geosource.Loader, src string) (*spatial.BoundaryIndex, error) {
	fc, err := loader.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	return spatial.NewBoundaryIndex(fc)
}

// LoadAdminUnits reads src and extracts its administrative units.
func LoadAdminUnits(ctx context.Context, loader *geosource.Loader, src string) ([]domain.AdminUnit, error) {
	fc, err := loader.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	return spatial.AdminUnits(fc)
}

// PlaceResolver returns the configured cached place provider, or nil when
// enrichment is disabled.
func PlaceResolver(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (domain.PlaceResolver, error) {
	var inner domain.PlaceResolver
	switch cfg.PlaceProvider {
	case config.PlaceProviderMapbox:
		inner = mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger, metrics)
	case config.PlaceProviderOverpass:
		inner = overpass.NewClient(cfg.OverpassURL, cfg.PlaceMaxDistanceKm, cfg.FetchTimeout, logger, metrics)
	case config.PlaceProviderNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown place provider %q", cfg.PlaceProvider)
	}
	cached, err := placecache.NewCachedResolver(inner, cfg.PlaceCacheSize, metrics)
	if err != nil {
		return nil, err
	}
	return cached, nil
}
