package domain

import (
	"context"
	"log/slog"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Place enrichment outcomes recorded on Observation.PlaceSource.
const (
	PlaceFromResolver = "resolver"
	PlaceRemote       = "remote"
	PlaceFromRegion   = "region"
	PlaceFailed       = "failed"
)

// PlaceEnricher labels observations with their nearest settlement.
type PlaceEnricher struct {
	Resolver      PlaceResolver
	MaxDistanceKm float64
	Labels        *Labeler
	Logger        *slog.Logger
}

// Enrich attempts to attach a place label to obs. If the resolver is nil or
// the lookup fails, the observation is returned with PlaceSource set
// accordingly (graceful degradation). Observations in the fallback region of
// a multi-feature boundary are labelled as ocean without a lookup.
func (e PlaceEnricher) Enrich(ctx context.Context, obs Observation, region RegionKey) Observation {
	if e.Resolver == nil {
		return obs
	}

	if region.IsFallback() && !region.Binary {
		obs.Place = e.Labels.InOcean()
		obs.PlaceSource = PlaceFromRegion
		return obs
	}

	place, err := e.Resolver.NearestPlace(ctx, obs.Latitude, obs.Longitude)
	if err != nil {
		if e.Logger != nil {
			e.Logger.Warn("place lookup failed",
				"lat", obs.Latitude,
				"lon", obs.Longitude,
				"error", err,
			)
		}
		obs.PlaceSource = PlaceFailed
		return obs
	}

	if place.Name == "" || !e.withinRange(obs, place) {
		obs.Place = e.Labels.RemoteArea()
		obs.PlaceSource = PlaceRemote
		return obs
	}

	obs.Place = place.Label()
	obs.PlaceSource = PlaceFromResolver
	return obs
}

func (e PlaceEnricher) withinRange(obs Observation, place Place) bool {
	if e.MaxDistanceKm <= 0 {
		return true
	}
	d := geo.Distance(obs.Point(), orb.Point{place.Longitude, place.Latitude})
	return d/1000 <= e.MaxDistanceKm
}
