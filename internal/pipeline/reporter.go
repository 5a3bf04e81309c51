package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/couchcryptid/wildfire-etl/internal/domain"
)

// Reporter receives the messages of a run. Implementations must be safe for
// concurrent use; the three stages report independently.
type Reporter interface {
	Report(ctx context.Context, msg domain.Message) error
}

// ChannelReporter delivers messages on a buffered channel. Report blocks
// when the buffer is full until the consumer catches up or ctx ends.
type ChannelReporter struct {
	ch     chan domain.Message
	mu     sync.RWMutex
	closed bool
}

// NewChannelReporter creates a reporter with the given buffer size.
func NewChannelReporter(buffer int) *ChannelReporter {
	return &ChannelReporter{ch: make(chan domain.Message, buffer)}
}

// Messages returns the receive side of the channel.
func (r *ChannelReporter) Messages() <-chan domain.Message { return r.ch }

func (r *ChannelReporter) Report(ctx context.Context, msg domain.Message) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return errors.New("reporter closed")
	}
	select {
	case r.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the channel. Later reports fail.
func (r *ChannelReporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
}

// MultiReporter fans each message out to every reporter.
type MultiReporter []Reporter

func (m MultiReporter) Report(ctx context.Context, msg domain.Message) error {
	var errs []error
	for _, r := range m {
		if err := r.Report(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogReporter writes each message to a structured logger.
type LogReporter struct {
	Logger *slog.Logger
}

func (r LogReporter) Report(ctx context.Context, msg domain.Message) error {
	attrs := []any{"run_id", msg.RunID}
	if msg.Stage != "" {
		attrs = append(attrs, "stage", msg.Stage)
	}
	switch msg.Type {
	case domain.MessageError:
		r.Logger.WarnContext(ctx, msg.Text, attrs...)
	case domain.MessageFailure:
		r.Logger.ErrorContext(ctx, msg.Text, attrs...)
	case domain.MessageResult:
		r.Logger.InfoContext(ctx, "stage result", append(attrs, summarize(msg.Data)...)...)
	default:
		r.Logger.InfoContext(ctx, msg.Text, attrs...)
	}
	return nil
}

// summarize reduces a result payload to a few log fields.
func summarize(data any) []any {
	switch d := data.(type) {
	case domain.HotspotResult:
		area := 0.0
		for _, b := range d.Regions {
			if b.Area != nil {
				area += b.Area.AreaKm2
			}
		}
		return []any{"regions", len(d.Regions), "observations", d.Regions.Total(), "burnt_km2", area}
	case domain.IncidentResult:
		return []any{"incidents", len(d.Incidents), "top_importance", d.Stats.Top, "average_importance", d.Stats.Average}
	case domain.RiskResult:
		return []any{"layers", len(d.Layers)}
	default:
		return nil
	}
}
