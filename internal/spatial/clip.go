package spatial

import (
	"math"
	"sort"

	polyclip "github.com/ctessum/polyclip-go"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// projection is a local equirectangular plane in metres centred on a
// cluster.
type projection struct {
	origin orb.Point
	kx, ky float64
}

func newProjection(origin orb.Point) projection {
	return projection{
		origin: origin,
		kx:     metersPerDegree * math.Cos(origin.Lat()*math.Pi/180),
		ky:     metersPerDegree,
	}
}

func (p projection) forward(pt orb.Point) polyclip.Point {
	return polyclip.Point{
		X: (pt.Lon() - p.origin.Lon()) * p.kx,
		Y: (pt.Lat() - p.origin.Lat()) * p.ky,
	}
}

func (p projection) inverse(pt polyclip.Point) orb.Point {
	return orb.Point{p.origin.Lon() + pt.X/p.kx, p.origin.Lat() + pt.Y/p.ky}
}

func centroid(pts []orb.Point) orb.Point {
	var c orb.Point
	for _, p := range pts {
		c[0] += p[0]
		c[1] += p[1]
	}
	n := float64(len(pts))
	return orb.Point{c[0] / n, c[1] / n}
}

// disk returns the counter-clockwise n-gon circumscribing the circle of
// radius r around c, so the whole circle lies inside it.
func disk(c polyclip.Point, r float64, n int) polyclip.Polygon {
	circ := r / math.Cos(math.Pi/float64(n))
	ring := make(polyclip.Contour, n)
	for i := range ring {
		a := 2 * math.Pi * float64(i) / float64(n)
		ring[i] = polyclip.Point{X: c.X + circ*math.Cos(a), Y: c.Y + circ*math.Sin(a)}
	}
	return polyclip.Polygon{ring}
}

// unionAll merges polygons pairwise in a balanced tree.
func unionAll(polys []polyclip.Polygon) polyclip.Polygon {
	switch len(polys) {
	case 0:
		return nil
	case 1:
		return polys[0]
	}
	mid := len(polys) / 2
	left := unionAll(polys[:mid])
	right := unionAll(polys[mid:])
	return left.Construct(polyclip.UNION, right)
}

func contourArea(c polyclip.Contour) float64 {
	s := 0.0
	for i := range c {
		j := (i + 1) % len(c)
		s += c[i].X*c[j].Y - c[j].X*c[i].Y
	}
	return s / 2
}

// dropSlivers removes contours that are degenerate or smaller than minArea.
func dropSlivers(p polyclip.Polygon, minArea float64) polyclip.Polygon {
	out := p[:0:0]
	for _, c := range p {
		if len(c) >= 3 && math.Abs(contourArea(c)) > minArea {
			out = append(out, c)
		}
	}
	return out
}

// nestedRing is a polyclip contour placed in the containment hierarchy:
// even depth is an outer boundary, odd depth a hole.
type nestedRing struct {
	planar orb.Ring
	area   float64
	depth  int
	parent int
}

// nest sorts the flat contour list returned by polyclip into outer rings and
// holes by containment depth and assigns each hole to its smallest enclosing
// outer ring. Contours with fewer than three vertices are ignored.
func nest(p polyclip.Polygon) []nestedRing {
	rings := make([]nestedRing, 0, len(p))
	for _, c := range p {
		if len(c) < 3 {
			continue
		}
		r := make(orb.Ring, 0, len(c)+1)
		for _, pt := range c {
			r = append(r, orb.Point{pt.X, pt.Y})
		}
		r = append(r, r[0])
		rings = append(rings, nestedRing{planar: r, area: math.Abs(contourArea(c)), parent: -1})
	}

	for i := range rings {
		vertex := rings[i].planar[0]
		for j := range rings {
			if i == j || rings[j].area <= rings[i].area {
				continue
			}
			if planar.RingContains(rings[j].planar, vertex) {
				rings[i].depth++
			}
		}
	}
	for i := range rings {
		if rings[i].depth%2 == 0 {
			continue
		}
		vertex := rings[i].planar[0]
		best := -1
		for j := range rings {
			if rings[j].depth != rings[i].depth-1 || !planar.RingContains(rings[j].planar, vertex) {
				continue
			}
			if best < 0 || rings[j].area < rings[best].area {
				best = j
			}
		}
		rings[i].parent = best
	}
	return rings
}

// shapeArea returns the planar area of p with holes subtracted.
func shapeArea(p polyclip.Polygon) float64 {
	total := 0.0
	for _, r := range nest(p) {
		if r.depth%2 == 0 {
			total += r.area
		} else {
			total -= r.area
		}
	}
	return total
}

// parts counts the outer rings of p.
func parts(p polyclip.Polygon) int {
	n := 0
	for _, r := range nest(p) {
		if r.depth%2 == 0 {
			n++
		}
	}
	return n
}

// toPolygons unprojects p into polygons, largest first. Outer rings are
// counter-clockwise and holes clockwise.
func toPolygons(p polyclip.Polygon, proj projection) []orb.Polygon {
	rings := nest(p)

	var order []int
	for i := range rings {
		if rings[i].depth%2 == 0 {
			order = append(order, i)
		}
	}
	sort.Slice(order, func(a, b int) bool { return rings[order[a]].area > rings[order[b]].area })

	outerIdx := make(map[int]int, len(order))
	polys := make([]orb.Polygon, 0, len(order))
	for _, i := range order {
		outerIdx[i] = len(polys)
		polys = append(polys, orb.Polygon{orient(unproject(rings[i].planar, proj), orb.CCW)})
	}
	for i := range rings {
		if rings[i].depth%2 == 0 || rings[i].parent < 0 {
			continue
		}
		k := outerIdx[rings[i].parent]
		polys[k] = append(polys[k], orient(unproject(rings[i].planar, proj), orb.CW))
	}
	return polys
}

func unproject(r orb.Ring, proj projection) orb.Ring {
	out := make(orb.Ring, len(r))
	for i, pt := range r {
		out[i] = proj.inverse(polyclip.Point{X: pt[0], Y: pt[1]})
	}
	return out
}

func orient(r orb.Ring, want orb.Orientation) orb.Ring {
	if r.Orientation() != want {
		r.Reverse()
	}
	return r
}

func cross(o, a, b polyclip.Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// convexHull returns the counter-clockwise convex hull of pts (monotone
// chain).
func convexHull(pts []polyclip.Point) polyclip.Contour {
	ps := make([]polyclip.Point, len(pts))
	copy(ps, pts)
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].X != ps[j].X {
			return ps[i].X < ps[j].X
		}
		return ps[i].Y < ps[j].Y
	})
	if len(ps) < 3 {
		return ps
	}

	hull := make(polyclip.Contour, 0, 2*len(ps))
	for _, p := range ps {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(ps) - 2; i >= 0; i-- {
		p := ps[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// insideHull reports whether p lies inside the counter-clockwise convex hull
// or within tol of it.
func insideHull(hull polyclip.Contour, p polyclip.Point, tol float64) bool {
	for i := range hull {
		a, b := hull[i], hull[(i+1)%len(hull)]
		if cross(a, b, p) < -tol*math.Hypot(b.X-a.X, b.Y-a.Y) {
			return false
		}
	}
	return true
}
