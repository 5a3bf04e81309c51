package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/wildfire-etl/internal/domain"
	"github.com/couchcryptid/wildfire-etl/internal/pipeline"
)

func TestChannelReporter_DeliversInOrder(t *testing.T) {
	r := pipeline.NewChannelReporter(4)

	require.NoError(t, r.Report(context.Background(), domain.Message{Type: domain.MessageProgress, Text: "one"}))
	require.NoError(t, r.Report(context.Background(), domain.Message{Type: domain.MessageProgress, Text: "two"}))
	r.Close()

	var got []string
	for m := range r.Messages() {
		got = append(got, m.Text)
	}
	assert.Equal(t, []string{"one", "two"}, got)
}

func TestChannelReporter_ReportAfterClose(t *testing.T) {
	r := pipeline.NewChannelReporter(1)
	r.Close()
	r.Close()

	assert.Error(t, r.Report(context.Background(), domain.Message{}))
}

func TestChannelReporter_FullBufferHonorsContext(t *testing.T) {
	r := pipeline.NewChannelReporter(1)
	require.NoError(t, r.Report(context.Background(), domain.Message{}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := r.Report(ctx, domain.Message{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type failingReporter struct{ err error }

func (f failingReporter) Report(context.Context, domain.Message) error { return f.err }

func TestMultiReporter(t *testing.T) {
	first, second := &recordingReporter{}, &recordingReporter{}
	boom := errors.New("broker down")
	m := pipeline.MultiReporter{first, failingReporter{err: boom}, second}

	err := m.Report(context.Background(), domain.Message{Type: domain.MessageProgress, Text: "hi"})

	require.ErrorIs(t, err, boom)
	assert.Len(t, first.msgs, 1)
	assert.Len(t, second.msgs, 1, "a failing reporter does not stop the rest")
}

func TestLogReporter_Levels(t *testing.T) {
	var buf bytes.Buffer
	r := pipeline.LogReporter{Logger: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}
	ctx := context.Background()

	require.NoError(t, r.Report(ctx, domain.Message{RunID: "r1", Type: domain.MessageError, Stage: domain.StageHotspots, Text: "source viirs: timeout"}))
	require.NoError(t, r.Report(ctx, domain.Message{RunID: "r1", Type: domain.MessageFailure, Stage: domain.StageRisk, Text: "no risk layer could be loaded"}))
	require.NoError(t, r.Report(ctx, domain.Message{
		RunID: "r1", Type: domain.MessageResult, Stage: domain.StageIncidents,
		Data: domain.IncidentResult{
			Incidents: []domain.ScoredIncident{{Importance: 12}},
			Stats:     domain.ImportanceStats{Count: 1, Top: 12, Average: 12},
		},
	}))

	out := buf.String()
	assert.Contains(t, out, `level=WARN msg="source viirs: timeout" run_id=r1 stage=hotspots`)
	assert.Contains(t, out, `level=ERROR msg="no risk layer could be loaded" run_id=r1 stage=risk`)
	assert.Contains(t, out, `msg="stage result" run_id=r1 stage=incidents incidents=1 top_importance=12`)
}
