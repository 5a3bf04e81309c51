package spatial

import (
	"errors"
	"math"

	polyclip "github.com/ctessum/polyclip-go"
)

// Closing a union of radius-r disks with a radius-r disk has a closed form.
// Two disks whose centres are at most 2√3·r apart are joined by the fillet
// the rolling disk cannot enter; farther apart, the waist of the dilated pair
// is narrower than the rolling disk and erosion separates them again. A
// triangle of centres whose sides are all bridged holds no gap the rolling
// disk fits in, so it is filled. The result is the union of disks, fillets
// and triangles, built with union alone.
const (
	// Centres closer than snapFraction·r are treated as one.
	snapFraction = 1e-3
	// Pairs closer than minBridge·r overlap enough that the fillet is
	// negligible.
	minBridge = 0.5
	// maxBridge·r is the longest bridged span. It stays short of 2√3 so the
	// fillet keeps a positive width at its waist.
	maxBridge = 3.4
	// Filled triangles shrink by inset·r towards their centroid so that no
	// two inputs of the union share a vertex.
	inset = 1e-3
	// Relative tolerance of the containment checks.
	checkTolerance = 1e-6
)

// closedDisks returns the union of radius-r disks around centres closed by a
// radius-r disk. A clipped result that escapes the convex hull of the disks,
// loses disk area or splits a connected part is discarded in favour of the
// plain disk union.
func closedDisks(centres []polyclip.Point, r float64) (polyclip.Polygon, error) {
	if len(centres) == 0 {
		return nil, errors.New("no centres")
	}
	disks := make([]polyclip.Polygon, len(centres))
	var vertices []polyclip.Point
	for i, c := range centres {
		disks[i] = disk(c, r, diskSegments)
		vertices = append(vertices, disks[i][0]...)
	}
	if len(disks) == 1 {
		return disks[0], nil
	}

	minArea := r * r * 1e-4
	hull := convexHull(vertices)
	union := dropSlivers(unionAll(disks), minArea)
	if !bounded(union, hull, r, math.Abs(contourArea(disks[0][0])), len(centres)) {
		return nil, errors.New("disk union left the hull of its disks")
	}

	extra := bridges(centres, r)
	if len(extra) == 0 {
		return union, nil
	}
	closed := dropSlivers(union.Construct(polyclip.UNION, unionAll(extra)), minArea)
	if !bounded(closed, hull, r, shapeArea(union), parts(union)) {
		return union, nil
	}
	return closed, nil
}

// bounded reports whether p has between one and maxParts outer rings, at
// least minArea of area, and lies within hull.
func bounded(p polyclip.Polygon, hull polyclip.Contour, r, minArea float64, maxParts int) bool {
	n := parts(p)
	if n == 0 || n > maxParts {
		return false
	}
	area := shapeArea(p)
	if area < minArea*(1-checkTolerance) || area > math.Abs(contourArea(hull))*(1+checkTolerance) {
		return false
	}
	tol := r * checkTolerance
	for _, c := range p {
		for _, pt := range c {
			if !insideHull(hull, pt, tol) {
				return false
			}
		}
	}
	return true
}

// bridges returns the fillets between neighbouring centres and the filled
// triangles between them. Neighbours are the edges of a Delaunay
// triangulation plus those of a minimum spanning tree, which keeps every
// chain of bridgeable centres connected even when the triangulation is
// imprecise.
func bridges(centres []polyclip.Point, r float64) []polyclip.Polygon {
	n := len(centres)
	var out []polyclip.Polygon
	seen := make(map[[2]int]bool)
	edge := func(i, j int) {
		if i > j {
			i, j = j, i
		}
		if j >= n || seen[[2]int{i, j}] {
			return
		}
		seen[[2]int{i, j}] = true
		if f, ok := fillet(centres[i], centres[j], r, capSegments); ok {
			out = append(out, f)
		}
	}

	for _, t := range delaunay(centres) {
		edge(t[0], t[1])
		edge(t[1], t[2])
		edge(t[2], t[0])
		if t[0] < n && t[1] < n && t[2] < n {
			if tri, ok := filledTriangle(centres[t[0]], centres[t[1]], centres[t[2]], r); ok {
				out = append(out, tri)
			}
		}
	}
	for _, e := range spanningTree(centres) {
		edge(e[0], e[1])
	}
	return out
}

func dist(a, b polyclip.Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

func midpoint(a, b polyclip.Point) polyclip.Point {
	return polyclip.Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

// fillet returns the region between the radius-r circles around a and b that
// a rolling radius-r disk cannot reach. The rolling disk touches both circles
// when centred on c±, the points at distance 2r from a and b; the fillet is
// the rhombus a c+ b c− less the rolling disks, with its corners at a and b
// trimmed inside the circles.
func fillet(a, b polyclip.Point, r float64, n int) (polyclip.Polygon, bool) {
	d := dist(a, b)
	if d < minBridge*r || d > maxBridge*r {
		return nil, false
	}
	h := math.Sqrt(4*r*r - d*d/4)
	nx, ny := -(b.Y-a.Y)/d, (b.X-a.X)/d
	m := midpoint(a, b)
	cp := polyclip.Point{X: m.X + h*nx, Y: m.Y + h*ny}
	cm := polyclip.Point{X: m.X - h*nx, Y: m.Y - h*ny}

	// Tangent points, each at distance r from its disk centre and from c±.
	t1, t2 := midpoint(a, cp), midpoint(b, cp)
	t3, t4 := midpoint(b, cm), midpoint(a, cm)

	ring := polyclip.Contour{midpoint(a, t1), midpoint(a, t4)}
	ring = append(ring, arc(cm, t4, t3, n)...)
	ring = append(ring, midpoint(b, t3), midpoint(b, t2))
	ring = append(ring, arc(cp, t2, t1, n)...)
	return polyclip.Polygon{ring}, true
}

// arc returns n+1 points along the shorter arc around c from one point to
// another at the same distance from c.
func arc(c, from, to polyclip.Point, n int) polyclip.Contour {
	a0 := math.Atan2(from.Y-c.Y, from.X-c.X)
	sweep := math.Remainder(math.Atan2(to.Y-c.Y, to.X-c.X)-a0, 2*math.Pi)
	r := dist(c, from)
	out := make(polyclip.Contour, 0, n+1)
	out = append(out, from)
	for i := 1; i < n; i++ {
		a := a0 + sweep*float64(i)/float64(n)
		out = append(out, polyclip.Point{X: c.X + r*math.Cos(a), Y: c.Y + r*math.Sin(a)})
	}
	return append(out, to)
}

// filledTriangle returns triangle abc shrunk slightly towards its centroid
// when all of its sides are bridged. Triangles too thin to matter are
// skipped; the fillets along their sides already cover them.
func filledTriangle(a, b, c polyclip.Point, r float64) (polyclip.Polygon, bool) {
	if dist(a, b) > maxBridge*r || dist(b, c) > maxBridge*r || dist(c, a) > maxBridge*r {
		return nil, false
	}
	area := cross(a, b, c) / 2
	if math.Abs(area) < r*r*1e-4 {
		return nil, false
	}
	g := polyclip.Point{X: (a.X + b.X + c.X) / 3, Y: (a.Y + b.Y + c.Y) / 3}
	ring := make(polyclip.Contour, 0, 3)
	for _, v := range []polyclip.Point{a, b, c} {
		k := inset * r / dist(v, g)
		ring = append(ring, polyclip.Point{X: v.X + (g.X-v.X)*k, Y: v.Y + (g.Y-v.Y)*k})
	}
	if area < 0 {
		ring[1], ring[2] = ring[2], ring[1]
	}
	return polyclip.Polygon{ring}, true
}

// snapCentres drops centres within tol of an earlier one.
func snapCentres(pts []polyclip.Point, tol float64) []polyclip.Point {
	out := make([]polyclip.Point, 0, len(pts))
	for _, p := range pts {
		dup := false
		for _, q := range out {
			if dist(p, q) <= tol {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, p)
		}
	}
	return out
}

// spanningTree returns the edges of a Euclidean minimum spanning tree of pts
// (Prim).
func spanningTree(pts []polyclip.Point) [][2]int {
	n := len(pts)
	if n < 2 {
		return nil
	}
	inTree := make([]bool, n)
	best := make([]float64, n)
	from := make([]int, n)
	for i := range best {
		best[i] = math.Inf(1)
	}
	best[0] = 0
	from[0] = -1

	edges := make([][2]int, 0, n-1)
	for range n {
		u := -1
		for i := range n {
			if !inTree[i] && (u < 0 || best[i] < best[u]) {
				u = i
			}
		}
		inTree[u] = true
		if from[u] >= 0 {
			edges = append(edges, [2]int{from[u], u})
		}
		for v := range n {
			if d := dist(pts[u], pts[v]); !inTree[v] && d < best[v] {
				best[v], from[v] = d, u
			}
		}
	}
	return edges
}

type circumTriangle struct {
	v      [3]int
	cx, cy float64
	r2     float64
}

func circumscribe(pts []polyclip.Point, v [3]int) circumTriangle {
	a, b, c := pts[v[0]], pts[v[1]], pts[v[2]]
	t := circumTriangle{v: v}
	d := 2 * (a.X*(b.Y-c.Y) + b.X*(c.Y-a.Y) + c.X*(a.Y-b.Y))
	if math.Abs(d) < 1e-9 {
		// Collinear: every later point falls inside, so it is replaced.
		t.r2 = math.Inf(1)
		return t
	}
	a2 := a.X*a.X + a.Y*a.Y
	b2 := b.X*b.X + b.Y*b.Y
	c2 := c.X*c.X + c.Y*c.Y
	t.cx = (a2*(b.Y-c.Y) + b2*(c.Y-a.Y) + c2*(a.Y-b.Y)) / d
	t.cy = (a2*(c.X-b.X) + b2*(a.X-c.X) + c2*(b.X-a.X)) / d
	t.r2 = (a.X-t.cx)*(a.X-t.cx) + (a.Y-t.cy)*(a.Y-t.cy)
	return t
}

// delaunay triangulates pts with the Bowyer-Watson algorithm. Indexes at or
// above len(pts) refer to the vertices of the enclosing super triangle.
func delaunay(pts []polyclip.Point) [][3]int {
	n := len(pts)
	if n == 0 {
		return nil
	}
	minX, minY, maxX, maxY := pts[0].X, pts[0].Y, pts[0].X, pts[0].Y
	for _, p := range pts[1:] {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	span := math.Max(math.Max(maxX-minX, maxY-minY), 1)
	mx, my := (minX+maxX)/2, (minY+maxY)/2

	all := make([]polyclip.Point, n, n+3)
	copy(all, pts)
	all = append(all,
		polyclip.Point{X: mx - 100*span, Y: my - 50*span},
		polyclip.Point{X: mx + 100*span, Y: my - 50*span},
		polyclip.Point{X: mx, Y: my + 100*span},
	)
	tris := []circumTriangle{circumscribe(all, [3]int{n, n + 1, n + 2})}

	for i := range n {
		p := all[i]
		var bad, keep []circumTriangle
		for _, t := range tris {
			dx, dy := p.X-t.cx, p.Y-t.cy
			if dx*dx+dy*dy < t.r2 {
				bad = append(bad, t)
			} else {
				keep = append(keep, t)
			}
		}

		count := make(map[[2]int]int)
		var order [][2]int
		for _, t := range bad {
			for k := range 3 {
				e := [2]int{t.v[k], t.v[(k+1)%3]}
				if e[0] > e[1] {
					e[0], e[1] = e[1], e[0]
				}
				if count[e] == 0 {
					order = append(order, e)
				}
				count[e]++
			}
		}
		for _, e := range order {
			if count[e] == 1 {
				keep = append(keep, circumscribe(all, [3]int{e[0], e[1], i}))
			}
		}
		tris = keep
	}

	out := make([][3]int, len(tris))
	for i, t := range tris {
		out[i] = t.v
	}
	return out
}
