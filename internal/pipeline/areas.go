package pipeline

import (
	"errors"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/wildfire-etl/internal/domain"
)

// AreaReconstructor turns a bucket's points into a burnt area.
type AreaReconstructor interface {
	Reconstruct(points []orb.Point) (*domain.BurntArea, error)
}

// ReconstructAreas fills in Area for every bucket with enough clustered
// points. Degenerate clusters are skipped and returned so the caller can
// report them; the rest of the bucket's area is kept.
func ReconstructAreas(regions domain.Regions, r AreaReconstructor) []error {
	var errs []error
	for _, b := range regions.Sorted() {
		area, err := r.Reconstruct(b.Points())
		if err != nil {
			errs = append(errs, splitJoined(err)...)
		}
		b.Area = area
	}
	return errs
}

// splitJoined unpacks an errors.Join result into its parts.
func splitJoined(err error) []error {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		return joined.Unwrap()
	}
	return []error{err}
}
