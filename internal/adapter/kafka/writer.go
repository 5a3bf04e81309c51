// Package kafka publishes run reports to Kafka topics.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/wildfire-etl/internal/config"
	"github.com/couchcryptid/wildfire-etl/internal/domain"
	"github.com/couchcryptid/wildfire-etl/internal/observability"
)

// messageWriter is the subset of *kafkago.Writer the reporter uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Reporter publishes run messages. Results go to the topic of their stage;
// progress, errors and failures go to the status topic.
type Reporter struct {
	writer  messageWriter
	topics  config.Topics
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewReporter creates a Kafka producer for the configured topics.
func NewReporter(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Reporter {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	return newReporter(w, cfg.KafkaTopics, logger, metrics)
}

func newReporter(w messageWriter, topics config.Topics, logger *slog.Logger, metrics *observability.Metrics) *Reporter {
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}
	return &Reporter{writer: w, topics: topics, logger: logger, metrics: metrics}
}

// Report serializes msg and publishes it. Messages of one run share a key
// and so land on the same partition in order.
func (r *Reporter) Report(ctx context.Context, msg domain.Message) error {
	km, err := r.serialize(msg)
	if err != nil {
		return err
	}
	if err := r.writer.WriteMessages(ctx, km); err != nil {
		return fmt.Errorf("publish %s message to %s: %w", msg.Type, km.Topic, err)
	}
	r.metrics.MessagesProduced.WithLabelValues(string(msg.Type)).Inc()
	r.logger.Debug("message published", "run_id", msg.RunID, "type", msg.Type, "topic", km.Topic)
	return nil
}

func (r *Reporter) Close() error {
	return r.writer.Close()
}

// topicFor routes results by stage and everything else to the status topic.
func (r *Reporter) topicFor(msg domain.Message) string {
	if msg.Type != domain.MessageResult {
		return r.topics.Status
	}
	switch msg.Stage {
	case domain.StageHotspots:
		return r.topics.Hotspots
	case domain.StageIncidents:
		return r.topics.Incidents
	case domain.StageRisk:
		return r.topics.Risk
	default:
		return r.topics.Status
	}
}

// serialize marshals a run message into a Kafka message.
func (r *Reporter) serialize(msg domain.Message) (kafkago.Message, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s message: %w", msg.Type, err)
	}
	return kafkago.Message{
		Topic: r.topicFor(msg),
		Key:   []byte(msg.RunID),
		Value: data,
		Time:  msg.Time,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(msg.RunID)},
			{Key: "message_type", Value: []byte(msg.Type)},
			{Key: "stage", Value: []byte(msg.Stage)},
			{Key: "produced_at", Value: []byte(msg.Time.UTC().Format(time.RFC3339))},
		},
	}, nil
}
