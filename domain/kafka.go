package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"github.com/Biscgit/streamlet/frame"
	"github.com/Biscgit/streamlet/module"
)

// KafkaConfig is the `connection` block for broker.kafka.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// KafkaOutput publishes each Frame as a JSON-encoded sarama.ProducerMessage,
// one message per fire, keyed by the task name so a topic's partitions
// stay ordered per task. Grounded on the sync-producer half of
// `module/kafka_broker.go` (config.Producer.RequiredAcks/Retry.Max/
// Return.Successes, sarama.NewSyncProducer), stripped of the consumer
// group and SASL/TLS machinery that module also carries: an Output only
// ever produces, it never subscribes.
type KafkaOutput struct {
	module.NoopLifecycle
	name     string
	cfg      KafkaConfig
	logger   *slog.Logger
	producer sarama.SyncProducer
}

func NewKafkaOutput(name string, cfg KafkaConfig, logger *slog.Logger) *KafkaOutput {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaOutput{name: name, cfg: cfg, logger: logger}
}

func (k *KafkaOutput) Name() string { return k.name }

// OnConnect opens a synchronous producer against cfg.Brokers.
func (k *KafkaOutput) OnConnect(ctx context.Context) error {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(k.cfg.Brokers, cfg)
	if err != nil {
		return fmt.Errorf("broker.kafka %q: %w", k.name, err)
	}
	k.producer = producer
	k.logger.Info("broker.kafka connected", "module", k.name, "brokers", k.cfg.Brokers)
	return nil
}

// OnShutdown closes the producer.
func (k *KafkaOutput) OnShutdown(ctx context.Context) error {
	if k.producer != nil {
		return k.producer.Close()
	}
	return nil
}

// Emit serializes f and publishes it to cfg.Topic.
func (k *KafkaOutput) Emit(ctx context.Context, f *frame.Frame) error {
	if k.producer == nil {
		return fmt.Errorf("broker.kafka %q: not connected", k.name)
	}
	body, err := json.Marshal(kafkaFramePayload(f))
	if err != nil {
		return fmt.Errorf("broker.kafka %q: encode failed: %w", k.name, err)
	}
	msg := &sarama.ProducerMessage{
		Topic: k.cfg.Topic,
		Key:   sarama.StringEncoder(f.TaskName),
		Value: sarama.ByteEncoder(body),
	}
	if _, _, err := k.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("broker.kafka %q: publish failed: %w", k.name, err)
	}
	return nil
}

func kafkaFramePayload(f *frame.Frame) webhookFramePayload {
	payload := webhookFramePayload{Task: f.TaskName, Timestamp: f.Timestamp, Metrics: make([]webhookMetric, len(f.Metrics))}
	for i, m := range f.Metrics {
		payload.Metrics[i] = webhookMetric{Name: m.Name, Value: m.Value, Attributes: m.Attributes}
	}
	return payload
}
