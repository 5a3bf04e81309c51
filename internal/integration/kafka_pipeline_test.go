//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/wildfire-etl/internal/adapter/kafka"
	"github.com/couchcryptid/wildfire-etl/internal/app"
	"github.com/couchcryptid/wildfire-etl/internal/config"
	"github.com/couchcryptid/wildfire-etl/internal/domain"
	"github.com/couchcryptid/wildfire-etl/internal/observability"
)

var testTopics = config.Topics{
	Hotspots:  "test-hotspots",
	Incidents: "test-incidents",
	Risk:      "test-risk",
	Status:    "test-status",
}

const (
	boundaryDoc = `{"type":"Feature","properties":{"name":"Portugal"},
 "geometry":{"type":"Polygon","coordinates":[[[-9.6,36.9],[-6.1,36.9],[-6.1,42.2],[-9.6,42.2],[-9.6,36.9]]]}}`

	unitsDoc = `{"type":"FeatureCollection","features":[
  {"type":"Feature","properties":{"DICO":1824,"NAME_2":"Tondela"},
   "geometry":{"type":"Polygon","coordinates":[[[-8.2,40.4],[-8.0,40.4],[-8.0,40.6],[-8.2,40.4]]]}}]}`

	viirsDoc = `{"type":"FeatureCollection","features":[
  {"type":"Feature","geometry":{"type":"Point","coordinates":[-8.10,40.50]},"properties":{"BRIGHT_TI4":340,"CONFIDENCE":"h","DAYNIGHT":"D"}},
  {"type":"Feature","geometry":{"type":"Point","coordinates":[-8.11,40.50]},"properties":{"BRIGHT_TI4":341,"CONFIDENCE":"n","DAYNIGHT":"D"}},
  {"type":"Feature","geometry":{"type":"Point","coordinates":[-8.10,40.51]},"properties":{"BRIGHT_TI4":342,"CONFIDENCE":"l","DAYNIGHT":"N"}},
  {"type":"Feature","geometry":{"type":"Point","coordinates":[-7.00,37.20]},"properties":{"BRIGHT_TI4":300}}]}`
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("wildfire-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate kafka container: %v", err)
		}
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// readAll consumes topic until want messages arrived or the context ends.
func readAll(ctx context.Context, t *testing.T, broker, topic string, want int) []kafkago.Message {
	t.Helper()
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   []string{broker},
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer r.Close()

	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var out []kafkago.Message
	for len(out) < want {
		msg, err := r.ReadMessage(readCtx)
		require.NoError(t, err, "read from %s after %d messages", topic, len(out))
		out = append(out, msg)
	}
	return out
}

func headers(msg kafkago.Message) map[string]string {
	out := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		out[h.Key] = string(h.Value)
	}
	return out
}

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/viirs/query", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(viirsDoc))
	})
	mux.HandleFunc("/modis/query", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	mux.HandleFunc("/fires", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":[
		  {"id":"a","lat":40.5,"lng":-8.1,"man":20,"terrain":4,"aerial":1,"statusCode":5},
		  {"id":"b","lat":41.1,"lng":-7.5,"man":5,"terrain":1,"statusCode":12}]}`))
	})
	mux.HandleFunc("/risk-today", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"dataPrev":"2026-08-10","local":{"1824":{"data":{"rcm":4}}}}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// TestPipelinePublishesRun drives one full refresh cycle against stub feeds
// and checks that every stage result and status message reaches Kafka.
func TestPipelinePublishesRun(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	for _, topic := range []string{testTopics.Hotspots, testTopics.Incidents, testTopics.Risk, testTopics.Status} {
		createTopic(t, broker, topic)
	}

	srv := feedServer(t)
	cfg := &config.Config{
		BoundarySource:   writeFile(t, "boundary.geojson", boundaryDoc),
		AdminUnitsSource: writeFile(t, "units.geojson", unitsDoc),
		HotspotSources:   domain.AllSources,
		HotspotURLs: map[domain.Source]string{
			domain.SourceMODIS: srv.URL + "/modis/query",
			domain.SourceVIIRS: srv.URL + "/viirs/query",
		},
		DayRange:         1,
		IncidentsURL:     srv.URL + "/fires",
		RiskHorizons:     []config.RiskHorizon{{Name: "today", URL: srv.URL + "/risk-today"}},
		FetchMaxAttempts: 2,
		FetchBaseDelay:   10 * time.Millisecond,
		FetchTimeout:     5 * time.Second,
		ClusterEpsilonKm: 15,
		ClusterMinPoints: 3,
		BufferRadiusKm:   1,
		LocalTimezone:    time.UTC,
		LabelLanguage:    "pt",
		PlaceProvider:    config.PlaceProviderNone,
		PlaceCacheSize:   10,
		KafkaEnabled:     true,
		KafkaBrokers:     []string{broker},
		KafkaTopics:      testTopics,
	}

	metrics := observability.NewMetricsForTesting()
	reporter := kafka.NewReporter(cfg, discardLogger(), metrics)
	t.Cleanup(func() { _ = reporter.Close() })

	p, err := app.NewPipeline(ctx, cfg, reporter, discardLogger(), metrics)
	require.NoError(t, err)

	summary := p.RunOnce(ctx)
	require.Equal(t, "success", summary.Outcome, "stages: %+v", summary.Stages)
	assert.Equal(t, 1, summary.Stages[domain.StageHotspots].Errors, "modis failure is recoverable")

	// Hotspots: one inside bucket of four points, three of them clustered.
	hot := readAll(ctx, t, broker, testTopics.Hotspots, 1)[0]
	assert.Equal(t, summary.RunID, string(hot.Key))
	h := headers(hot)
	assert.Equal(t, string(domain.MessageResult), h["message_type"])
	assert.Equal(t, domain.StageHotspots, h["stage"])

	var hotEnvelope struct {
		RunID string `json:"run_id"`
		Data  struct {
			Total   int            `json:"total"`
			Sources map[string]int `json:"sources"`
			Regions []struct {
				Region   string  `json:"region"`
				Count    int     `json:"count"`
				AreaKm2  float64 `json:"area_km2"`
				Clusters int     `json:"clusters"`
			} `json:"regions"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(hot.Value, &hotEnvelope))
	assert.Equal(t, summary.RunID, hotEnvelope.RunID)
	assert.Equal(t, 4, hotEnvelope.Data.Total)
	assert.Equal(t, map[string]int{"viirs": 4}, hotEnvelope.Data.Sources)
	require.Len(t, hotEnvelope.Data.Regions, 1)
	assert.Equal(t, "inside", hotEnvelope.Data.Regions[0].Region)
	assert.Equal(t, 1, hotEnvelope.Data.Regions[0].Clusters)
	assert.Greater(t, hotEnvelope.Data.Regions[0].AreaKm2, 0.0)

	// Incidents.
	inc := readAll(ctx, t, broker, testTopics.Incidents, 1)[0]
	var incEnvelope struct {
		Data domain.IncidentResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(inc.Value, &incEnvelope))
	require.Len(t, incEnvelope.Data.Incidents, 2)
	assert.Equal(t, 2, incEnvelope.Data.Stats.Count)

	// Risk.
	risk := readAll(ctx, t, broker, testTopics.Risk, 1)[0]
	var riskEnvelope struct {
		Data struct {
			Layers []struct {
				Horizon string `json:"horizon"`
				Label   string `json:"label"`
			} `json:"layers"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(risk.Value, &riskEnvelope))
	require.Len(t, riskEnvelope.Data.Layers, 1)
	assert.Equal(t, "Risco 2026-08-10", riskEnvelope.Data.Layers[0].Label)

	// Status: the run produced progress messages and one recoverable error.
	produced := 0.0
	for _, typ := range []domain.MessageType{domain.MessageProgress, domain.MessageError} {
		produced += testutil.ToFloat64(metrics.MessagesProduced.WithLabelValues(string(typ)))
	}
	statuses := readAll(ctx, t, broker, testTopics.Status, int(produced))
	var sawError bool
	for _, m := range statuses {
		assert.Equal(t, summary.RunID, string(m.Key))
		if headers(m)["message_type"] == string(domain.MessageError) {
			sawError = true
			assert.Contains(t, string(m.Value), "modis")
		}
	}
	assert.True(t, sawError, "the modis failure is published on the status topic")
}
