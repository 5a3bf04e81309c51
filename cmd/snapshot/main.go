// Command snapshot runs a single refresh cycle with the service
// configuration and writes every result to a directory: one GeoJSON file of
// hotspots and one of burnt areas per region, one GeoJSON file per risk
// horizon, the scored incidents and the run summary.
//
// Usage:
//
//	go run ./cmd/snapshot -out data/snapshot
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/wildfire-etl/internal/app"
	"github.com/couchcryptid/wildfire-etl/internal/config"
	"github.com/couchcryptid/wildfire-etl/internal/domain"
	"github.com/couchcryptid/wildfire-etl/internal/observability"
	"github.com/couchcryptid/wildfire-etl/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "directory to write the snapshot files to")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rep := pipeline.NewChannelReporter(64)
	reporters := pipeline.MultiReporter{pipeline.LogReporter{Logger: logger}, rep}
	p, err := app.NewPipeline(ctx, cfg, reporters, logger, observability.NewMetricsForTesting())
	if err != nil {
		return err
	}

	written := make(chan error, 1)
	go func() {
		var errs []error
		for msg := range rep.Messages() {
			if msg.Type != domain.MessageResult {
				continue
			}
			if err := writeResult(*out, msg.Data); err != nil {
				errs = append(errs, err)
			}
		}
		if len(errs) > 0 {
			written <- errs[0]
			return
		}
		written <- nil
	}()

	summary := p.RunOnce(ctx)
	rep.Close()
	if err := <-written; err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(*out, "summary.json"), summary); err != nil {
		return err
	}

	log.Printf("run %s: %s", summary.RunID, summary.Outcome)
	for name, st := range summary.Stages {
		log.Printf("  %-10s ok=%t count=%d errors=%d %s", name, st.OK, st.Count, st.Errors, st.Error)
	}
	if summary.Outcome == "failed" {
		return fmt.Errorf("run failed")
	}
	return nil
}

func writeResult(dir string, data any) error {
	switch r := data.(type) {
	case domain.HotspotResult:
		for _, b := range r.Regions.Sorted() {
			name := fileName(b.Key.String())
			if err := writeJSON(filepath.Join(dir, "hotspots-"+name+".geojson"), b.HotspotFeatures()); err != nil {
				return err
			}
			if b.Area == nil {
				continue
			}
			if err := writeJSON(filepath.Join(dir, "burnt-"+name+".geojson"), b.Area.FeatureCollection()); err != nil {
				return err
			}
		}
		return nil
	case domain.IncidentResult:
		return writeJSON(filepath.Join(dir, "incidents.json"), r)
	case domain.RiskResult:
		for _, l := range r.Layers {
			if err := writeJSON(filepath.Join(dir, "risk-"+fileName(l.Horizon)+".geojson"), l.FeatureCollection()); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unexpected result payload %T", data)
	}
}

func fileName(s string) string {
	return strings.NewReplacer("/", "-", " ", "_").Replace(strings.ToLower(s))
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // snapshot output is meant to be shared
		return err
	}
	log.Printf("wrote %s", path)
	return nil
}
