package domain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Biscgit/streamlet/frame"
)

func TestKafkaOutput_Name(t *testing.T) {
	k := NewKafkaOutput("kafka1", KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "metrics"}, nil)
	assert.Equal(t, "kafka1", k.Name())
}

func TestKafkaOutput_Emit_RequiresConnection(t *testing.T) {
	k := NewKafkaOutput("kafka1", KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "metrics"}, nil)
	err := k.Emit(context.Background(), &frame.Frame{TaskName: "orders"})
	require.Error(t, err)
}

func TestKafkaOutput_OnShutdown_NoProducerIsNoop(t *testing.T) {
	k := NewKafkaOutput("kafka1", KafkaConfig{}, nil)
	assert.NoError(t, k.OnShutdown(context.Background()))
}

func TestKafkaFramePayload_ProjectsMetricsAndTimestamp(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := &frame.Frame{
		TaskName:  "orders",
		Timestamp: ts,
		Metrics: []frame.Metric{
			{Name: "count", Value: float64(3), Attributes: map[string]string{"region": "eu"}},
		},
	}

	payload := kafkaFramePayload(f)

	assert.Equal(t, "orders", payload.Task)
	assert.Equal(t, ts, payload.Timestamp)
	require.Len(t, payload.Metrics, 1)
	assert.Equal(t, "count", payload.Metrics[0].Name)
	assert.Equal(t, float64(3), payload.Metrics[0].Value)
	assert.Equal(t, "eu", payload.Metrics[0].Attributes["region"])
}
