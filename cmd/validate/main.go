// Command validate checks the reference documents the service loads at
// startup: the boundary set used to classify hotspots and the
// administrative units used to build risk layers. It reports, per phase,
// whether the documents decode, index and carry the properties the pipeline
// relies on.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -boundary data/boundaries.geojson \
//	  -admin-units data/admin_units.geojson
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/couchcryptid/wildfire-etl/internal/adapter/geosource"
	"github.com/couchcryptid/wildfire-etl/internal/spatial"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	boundary := flag.String("boundary", "", "boundary GeoJSON file or URL")
	adminUnits := flag.String("admin-units", "", "administrative units GeoJSON file or URL")
	flag.Parse()

	if *boundary == "" && *adminUnits == "" {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(*boundary, *adminUnits))
}

func run(boundarySrc, unitsSrc string) int {
	ctx := context.Background()
	loader := geosource.NewLoader(nil)
	var phases []*phase

	if boundarySrc != "" {
		fc, load := loadPhase(ctx, loader, "Boundary decodes", boundarySrc)
		phases = append(phases, load)
		if fc != nil {
			phases = append(phases, checkBoundary(fc))
		}
	}
	if unitsSrc != "" {
		fc, load := loadPhase(ctx, loader, "Admin units decode", unitsSrc)
		phases = append(phases, load)
		if fc != nil {
			phases = append(phases, checkAdminUnits(fc))
		}
	}

	fmt.Println()
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	failed := false
	for _, p := range phases {
		if p.passed() {
			continue
		}
		failed = true
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if failed {
		fmt.Println("\nValidation FAILED.")
		return 1
	}
	fmt.Println("\nValidation passed.")
	return 0
}

func loadPhase(ctx context.Context, loader *geosource.Loader, name, src string) (*geojson.FeatureCollection, *phase) {
	p := &phase{name: name}
	fc, err := loader.Load(ctx, src)
	if err != nil {
		p.errorf("%v", err)
		return nil, p
	}
	fmt.Printf("%s: %d features\n", src, len(fc.Features))
	return fc, p
}

// checkBoundary indexes the boundary and verifies every feature is a
// non-degenerate polygon whose interior classifies to a named region.
func checkBoundary(fc *geojson.FeatureCollection) *phase {
	p := &phase{name: "Boundary indexes and classifies"}
	idx, err := spatial.NewBoundaryIndex(fc)
	if err != nil {
		p.errorf("index: %v", err)
		return p
	}
	for i, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			p.errorf("feature %d: no geometry", i)
			continue
		}
		if planar.Area(f.Geometry) == 0 {
			p.errorf("feature %d: %s has no area", i, f.Geometry.GeoJSONType())
			continue
		}
		inner, ok := interiorPoint(f.Geometry)
		if !ok {
			continue
		}
		key := idx.Classify(inner)
		if key.IsFallback() {
			p.errorf("feature %d: interior point %v falls outside every feature", i, inner)
			continue
		}
		if !idx.Binary() && (key.Continent == "" || key.Country == "") {
			p.errorf("feature %d: region %q is missing a continent or country name", i, key.String())
		}
	}
	return p
}

// checkAdminUnits verifies units extract with unique codes.
func checkAdminUnits(fc *geojson.FeatureCollection) *phase {
	p := &phase{name: "Admin units have unique codes"}
	units, err := spatial.AdminUnits(fc)
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	if skipped := len(fc.Features) - len(units); skipped > 0 {
		p.errorf("%d features have no code or no polygon", skipped)
	}
	seen := make(map[string]int, len(units))
	for _, u := range units {
		seen[u.Code]++
		if u.Name == "" {
			p.errorf("unit %s: no name", u.Code)
		}
	}
	for code, n := range seen {
		if n > 1 {
			p.errorf("unit code %s appears %d times", code, n)
		}
	}
	fmt.Printf("admin units: %d\n", len(units))
	return p
}

// interiorPoint returns the centroid of the largest polygon when it lies
// inside that polygon.
func interiorPoint(g orb.Geometry) (orb.Point, bool) {
	var poly orb.Polygon
	switch v := g.(type) {
	case orb.Polygon:
		poly = v
	case orb.MultiPolygon:
		best := 0.0
		for _, candidate := range v {
			if a := planar.Area(candidate); a > best {
				best, poly = a, candidate
			}
		}
	default:
		return orb.Point{}, false
	}
	c, _ := planar.CentroidArea(poly)
	if !planar.PolygonContains(poly, c) {
		return orb.Point{}, false
	}
	return c, true
}
