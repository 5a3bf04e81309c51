package spatial

import (
	"errors"
	"fmt"
	"math"

	polyclip "github.com/ctessum/polyclip-go"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/couchcryptid/wildfire-etl/internal/domain"
)

// Reconstruction defaults.
const (
	DefaultEpsilonKm = 15.0
	DefaultMinPoints = 3
	DefaultBufferKm  = 1.0

	diskSegments = 32
	capSegments  = 8
)

// Reconstructor derives burnt-area polygons from hotspot locations:
//
//  1. DBSCAN groups the points (great-circle distance, noise dropped).
//  2. Every point of a cluster is buffered by BufferKm into a disk and the
//     disks are unioned.
//  3. The union is closed: dilated by BufferKm, then eroded by BufferKm, which
//     fills gaps and notches narrower than twice the buffer. The closing is
//     computed in closed form from the disk centres and always lies between
//     the disk union and its convex hull.
//
// Steps 2 and 3 run in a local metric plane around the cluster centroid.
type Reconstructor struct {
	EpsilonKm float64
	MinPoints int
	BufferKm  float64
}

// NewReconstructor returns a Reconstructor, substituting the defaults for
// non-positive parameters.
func NewReconstructor(epsilonKm float64, minPoints int, bufferKm float64) Reconstructor {
	r := Reconstructor{EpsilonKm: epsilonKm, MinPoints: minPoints, BufferKm: bufferKm}
	if r.EpsilonKm <= 0 {
		r.EpsilonKm = DefaultEpsilonKm
	}
	if r.MinPoints <= 0 {
		r.MinPoints = DefaultMinPoints
	}
	if r.BufferKm <= 0 {
		r.BufferKm = DefaultBufferKm
	}
	return r
}

// Reconstruct returns the burnt area covered by points, or nil when there are
// fewer than three points or no cluster. Clusters whose polygon cannot be
// built are skipped; their *domain.GeometryError values are joined into the
// returned error alongside whatever area the other clusters produced.
func (r Reconstructor) Reconstruct(points []orb.Point) (*domain.BurntArea, error) {
	if len(points) < 3 || len(points) < r.MinPoints {
		return nil, nil
	}

	var (
		polys orb.MultiPolygon
		errs  []error
		built int
	)
	for i, members := range DBSCAN(points, r.EpsilonKm, r.MinPoints) {
		clusterPts := make([]orb.Point, len(members))
		for k, m := range members {
			clusterPts[k] = points[m]
		}
		cp, err := r.clusterPolygons(i, clusterPts)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		polys = append(polys, cp...)
		built++
	}
	if built == 0 {
		return nil, errors.Join(errs...)
	}

	return &domain.BurntArea{
		Polygons: polys,
		AreaKm2:  AreaKm2(polys),
		Clusters: built,
	}, errors.Join(errs...)
}

func (r Reconstructor) clusterPolygons(id int, pts []orb.Point) (polys []orb.Polygon, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			polys = nil
			err = &domain.GeometryError{Cluster: id, Reason: fmt.Sprint(rec)}
		}
	}()

	radius := r.BufferKm * 1000
	if radius <= 0 || math.IsNaN(radius) {
		return nil, &domain.GeometryError{Cluster: id, Reason: "buffer radius must be positive"}
	}
	proj := newProjection(centroid(pts))
	projected := make([]polyclip.Point, len(pts))
	for i, p := range pts {
		projected[i] = proj.forward(p)
	}

	shape, err := closedDisks(snapCentres(projected, radius*snapFraction), radius)
	if err != nil {
		return nil, &domain.GeometryError{Cluster: id, Reason: err.Error()}
	}
	polys = toPolygons(shape, proj)
	if len(polys) == 0 {
		return nil, &domain.GeometryError{Cluster: id, Reason: "no outer ring"}
	}
	return polys, nil
}

// AreaKm2 returns the geodesic area of mp in square kilometres. Holes are
// subtracted.
func AreaKm2(mp orb.MultiPolygon) float64 {
	total := 0.0
	for _, poly := range mp {
		for i, ring := range poly {
			a := math.Abs(geo.Area(ring))
			if i == 0 {
				total += a
			} else {
				total -= a
			}
		}
	}
	return math.Max(total, 0) / 1e6
}
