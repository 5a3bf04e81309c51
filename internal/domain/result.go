package domain

import (
	"encoding/json"
	"time"

	"github.com/paulmach/orb/geojson"
)

// HotspotResult is the output of one hotspot path: every region bucket with
// its observations and reconstructed burnt area.
type HotspotResult struct {
	Window  TimeWindow
	Sources map[Source]int
	Regions Regions
}

// IncidentResult is the scored incident list with the run's stats.
type IncidentResult struct {
	Incidents []ScoredIncident `json:"incidents"`
	Stats     ImportanceStats  `json:"stats"`
}

// RiskResult holds one layer per horizon that loaded, in horizon order.
type RiskResult struct {
	Layers []RiskLayer
}

type regionJSON struct {
	Region    string                     `json:"region"`
	Key       RegionKey                  `json:"key"`
	Count     int                        `json:"count"`
	Hotspots  *geojson.FeatureCollection `json:"hotspots"`
	AreaKm2   float64                    `json:"area_km2"`
	Clusters  int                        `json:"clusters"`
	BurntArea *geojson.FeatureCollection `json:"burnt_area,omitempty"`
}

// MarshalJSON renders each region's hotspots and burnt area as GeoJSON.
func (r HotspotResult) MarshalJSON() ([]byte, error) {
	out := struct {
		Start   time.Time      `json:"start"`
		End     time.Time      `json:"end"`
		Sources map[Source]int `json:"sources"`
		Total   int            `json:"total"`
		Regions []regionJSON   `json:"regions"`
	}{
		Start:   r.Window.Start.UTC(),
		End:     r.Window.End.UTC(),
		Sources: r.Sources,
		Total:   r.Regions.Total(),
		Regions: make([]regionJSON, 0, len(r.Regions)),
	}
	for _, b := range r.Regions.Sorted() {
		rj := regionJSON{
			Region:   b.Key.String(),
			Key:      b.Key,
			Count:    len(b.Observations),
			Hotspots: b.HotspotFeatures(),
		}
		if b.Area != nil {
			rj.AreaKm2 = b.Area.AreaKm2
			rj.Clusters = b.Area.Clusters
			rj.BurntArea = b.Area.FeatureCollection()
		}
		out.Regions = append(out.Regions, rj)
	}
	return json.Marshal(out)
}

// HotspotFeatures renders the bucket's observations as point features.
func (b *RegionBucket) HotspotFeatures() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, o := range b.Observations {
		f := geojson.NewFeature(o.Point())
		f.Properties["source"] = string(o.Source)
		f.Properties["brightness"] = o.Brightness
		if !o.AcquiredAt.IsZero() {
			f.Properties["acquired_at"] = o.AcquiredAt.UTC().Format(time.RFC3339)
		}
		f.Properties["satellite"] = o.Satellite.Label
		f.Properties["confidence"] = o.Confidence.Label
		f.Properties["day_night"] = o.DayNightLabel
		f.Properties["frp"] = o.RadiativePower
		if o.Place != "" {
			f.Properties["place"] = o.Place
		}
		fc.Append(f)
	}
	return fc
}

// FeatureCollection renders the burnt area as a single MultiPolygon feature,
// or an empty collection when no polygon survived.
func (a *BurntArea) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if a == nil || len(a.Polygons) == 0 {
		return fc
	}
	f := geojson.NewFeature(a.Polygons)
	f.Properties["area_km2"] = a.AreaKm2
	f.Properties["clusters"] = a.Clusters
	fc.Append(f)
	return fc
}

// FeatureCollection renders the layer with each unit's class and fill color.
func (l RiskLayer) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, u := range l.Units {
		if u.Geometry == nil {
			continue
		}
		f := geojson.NewFeature(u.Geometry)
		f.Properties["code"] = u.Code
		f.Properties["name"] = u.Name
		f.Properties["class"] = u.Class
		f.Properties["fill_color"] = u.Color
		fc.Append(f)
	}
	return fc
}

type riskLayerJSON struct {
	Horizon string                     `json:"horizon"`
	Label   string                     `json:"label"`
	Date    string                     `json:"date,omitempty"`
	Units   *geojson.FeatureCollection `json:"units"`
}

// MarshalJSON renders each layer as a labelled FeatureCollection.
func (r RiskResult) MarshalJSON() ([]byte, error) {
	layers := make([]riskLayerJSON, 0, len(r.Layers))
	for _, l := range r.Layers {
		layers = append(layers, riskLayerJSON{
			Horizon: l.Horizon,
			Label:   l.Label,
			Date:    l.Date,
			Units:   l.FeatureCollection(),
		})
	}
	return json.Marshal(struct {
		Layers []riskLayerJSON `json:"layers"`
	}{layers})
}
