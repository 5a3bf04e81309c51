package domain

import "context"

// Place is a named settlement returned by a place provider.
type Place struct {
	Name      string
	Country   string
	Latitude  float64
	Longitude float64
}

// Label renders the place as "<name>, <country>", or just the name when the
// provider has no country.
func (p Place) Label() string {
	if p.Country == "" {
		return p.Name
	}
	return p.Name + ", " + p.Country
}

// PlaceResolver finds the settlement nearest to a coordinate. A zero Place
// with a nil error means the provider knows of none.
type PlaceResolver interface {
	NearestPlace(ctx context.Context, lat, lon float64) (Place, error)
}
