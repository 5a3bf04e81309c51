package spatial

import (
	"fmt"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/wildfire-etl/internal/domain"
)

var (
	unitCodeProps = []string{"DICO", "dico", "code"}
	unitNameProps = []string{"NAME_2", "Concelho", "CONCELHO", "name", "NAME"}
)

// AdminUnits extracts the polygonal administrative units of fc. A unit code
// may be a string or a number; features without a code are skipped.
func AdminUnits(fc *geojson.FeatureCollection) ([]domain.AdminUnit, error) {
	if fc == nil {
		return nil, fmt.Errorf("admin units: %w", domain.ErrNoBoundary)
	}
	units := make([]domain.AdminUnit, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			continue
		}
		code := unitCode(f.Properties)
		if code == "" {
			continue
		}
		units = append(units, domain.AdminUnit{
			Code:     code,
			Name:     stringProp(f.Properties, unitNameProps),
			Geometry: f.Geometry,
		})
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("admin units: %w", domain.ErrNoBoundary)
	}
	return units, nil
}

func unitCode(props geojson.Properties) string {
	if s := stringProp(props, unitCodeProps); s != "" {
		return s
	}
	for _, n := range unitCodeProps {
		if v, ok := props[n].(float64); ok {
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}
