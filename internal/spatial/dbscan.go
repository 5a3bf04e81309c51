package spatial

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/tidwall/rtree"
)

const (
	unvisited = -1
	noise     = -2
)

// metersPerDegree is the length of one degree of latitude on orb's sphere.
var metersPerDegree = orb.EarthRadius * math.Pi / 180

// DBSCAN groups pts into density-connected clusters using great-circle
// distance. A point's neighbourhood includes the point itself, so a core
// point needs minPoints-1 other points within epsilonKm. Border points join
// the first cluster that reaches them; noise is dropped. Each cluster is
// returned as indexes into pts, in discovery order.
func DBSCAN(pts []orb.Point, epsilonKm float64, minPoints int) [][]int {
	if len(pts) == 0 || epsilonKm <= 0 {
		return nil
	}
	if minPoints < 1 {
		minPoints = 1
	}
	epsM := epsilonKm * 1000

	var tree rtree.RTreeG[int]
	for i, p := range pts {
		tree.Insert(p, p, i)
	}

	neighbours := func(i int) []int {
		p := pts[i]
		lo, hi := searchBox(p, epsM)
		var out []int
		tree.Search(lo, hi, func(_, _ [2]float64, j int) bool {
			if geo.Distance(p, pts[j]) <= epsM {
				out = append(out, j)
			}
			return true
		})
		return out
	}

	labels := make([]int, len(pts))
	for i := range labels {
		labels[i] = unvisited
	}

	var clusters [][]int
	for i := range pts {
		if labels[i] != unvisited {
			continue
		}
		seeds := neighbours(i)
		if len(seeds) < minPoints {
			labels[i] = noise
			continue
		}

		c := len(clusters)
		labels[i] = c
		members := []int{i}
		for k := 0; k < len(seeds); k++ {
			q := seeds[k]
			if labels[q] == noise {
				labels[q] = c
				members = append(members, q)
			}
			if labels[q] != unvisited {
				continue
			}
			labels[q] = c
			members = append(members, q)
			if n := neighbours(q); len(n) >= minPoints {
				seeds = append(seeds, n...)
			}
		}
		clusters = append(clusters, members)
	}
	return clusters
}

// searchBox returns a lon/lat box guaranteed to enclose every point within
// radius metres of p.
func searchBox(p orb.Point, radius float64) (lo, hi [2]float64) {
	dLat := radius / metersPerDegree
	dLon := 180.0
	// Use the poleward edge of the box, where a degree of longitude is shortest.
	edge := math.Min(math.Abs(p.Lat())+dLat, 90)
	if c := math.Cos(edge * math.Pi / 180); c > 1e-6 {
		dLon = math.Min(dLat/c, 180)
	}
	lo = [2]float64{p.Lon() - dLon, p.Lat() - dLat}
	hi = [2]float64{p.Lon() + dLon, p.Lat() + dLat}
	return lo, hi
}
