package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/wildfire-etl/internal/config"
	"github.com/couchcryptid/wildfire-etl/internal/domain"
	"github.com/couchcryptid/wildfire-etl/internal/observability"
)

type recordingWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

var testTopics = config.Topics{
	Hotspots:  "hotspots",
	Incidents: "incidents",
	Risk:      "risk",
	Status:    "status",
}

func testReporter(w messageWriter) (*Reporter, *observability.Metrics) {
	m := observability.NewMetricsForTesting()
	return newReporter(w, testTopics, slog.New(slog.NewTextHandler(io.Discard, nil)), m), m
}

func TestReporter_RoutesByTypeAndStage(t *testing.T) {
	w := &recordingWriter{}
	r, m := testReporter(w)
	ctx := context.Background()

	msgs := []domain.Message{
		{RunID: "r1", Type: domain.MessageProgress, Text: "fetching modis"},
		{RunID: "r1", Type: domain.MessageResult, Stage: domain.StageHotspots, Data: domain.HotspotResult{Regions: domain.Regions{}}},
		{RunID: "r1", Type: domain.MessageResult, Stage: domain.StageIncidents, Data: domain.IncidentResult{}},
		{RunID: "r1", Type: domain.MessageResult, Stage: domain.StageRisk, Data: domain.RiskResult{}},
		{RunID: "r1", Type: domain.MessageFailure, Stage: domain.StageRisk, Text: "no layers"},
	}
	for _, msg := range msgs {
		require.NoError(t, r.Report(ctx, msg))
	}

	require.Len(t, w.msgs, 5)
	topics := make([]string, len(w.msgs))
	for i, km := range w.msgs {
		topics[i] = km.Topic
		assert.Equal(t, []byte("r1"), km.Key)
	}
	assert.Equal(t, []string{"status", "hotspots", "incidents", "risk", "status"}, topics)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.MessagesProduced.WithLabelValues("result")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesProduced.WithLabelValues("failure")))
}

func TestReporter_Serialize(t *testing.T) {
	r, _ := testReporter(&recordingWriter{})
	now := time.Date(2026, 8, 10, 13, 5, 0, 0, time.UTC)

	km, err := r.serialize(domain.Message{
		RunID: "run-42",
		Type:  domain.MessageError,
		Stage: domain.StageHotspots,
		Text:  "source viirs failed",
		Time:  now,
	})
	require.NoError(t, err)

	assert.JSONEq(t,
		`{"run_id":"run-42","type":"error","stage":"hotspots","message":"source viirs failed","time":"2026-08-10T13:05:00Z"}`,
		string(km.Value))
	assert.Equal(t, now, km.Time)
	require.Len(t, km.Headers, 4)
	assert.Equal(t, "message_type", km.Headers[1].Key)
	assert.Equal(t, []byte("error"), km.Headers[1].Value)
	assert.Equal(t, []byte("2026-08-10T13:05:00Z"), km.Headers[3].Value)
}

func TestReporter_SerializeError(t *testing.T) {
	r, _ := testReporter(&recordingWriter{})

	_, err := r.serialize(domain.Message{Type: domain.MessageResult, Data: make(chan int)})
	require.Error(t, err)
}

func TestReporter_WriteError(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	r, m := testReporter(w)

	err := r.Report(context.Background(), domain.Message{RunID: "r1", Type: domain.MessageProgress})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Zero(t, testutil.ToFloat64(m.MessagesProduced.WithLabelValues("progress")))
}

func TestReporter_Close(t *testing.T) {
	w := &recordingWriter{}
	r, _ := testReporter(w)
	require.NoError(t, r.Close())
	assert.True(t, w.closed)
}
