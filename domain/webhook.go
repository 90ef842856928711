package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Biscgit/streamlet/frame"
	"github.com/Biscgit/streamlet/module"
)

// WebhookConfig is the `connection` block for http.webhook.
type WebhookConfig struct {
	URL     string
	Method  string
	Headers map[string]string
	Timeout time.Duration
}

// webhookFramePayload is the JSON body posted per Frame.
type webhookFramePayload struct {
	Task      string          `json:"task"`
	Timestamp time.Time       `json:"timestamp"`
	Metrics   []webhookMetric `json:"metrics"`
}

type webhookMetric struct {
	Name       string         `json:"name"`
	Value      any            `json:"value"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Webhook is the http.webhook Output: it POSTs (or PUTs, per configured
// Method) each Frame as a JSON document to an external HTTP endpoint,
// modeled on a dedicated
// dedicated *http.Client with an explicit timeout, rather than the
// package-level http.DefaultClient.
type Webhook struct {
	module.NoopLifecycle
	name   string
	cfg    WebhookConfig
	logger *slog.Logger
	client *http.Client
}

func NewWebhook(name string, cfg WebhookConfig, logger *slog.Logger) *Webhook {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Method == "" {
		cfg.Method = http.MethodPost
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Webhook{
		name:   name,
		cfg:    cfg,
		logger: logger,
		client: &http.Client{Timeout: timeout},
	}
}

func (w *Webhook) Name() string { return w.name }

// Emit serializes f and sends it to the configured URL. A non-2xx response
// is returned as an error so the dispatcher logs an OutputFailed line;
// other outputs in the chain still run.
func (w *Webhook) Emit(ctx context.Context, f *frame.Frame) error {
	payload := webhookFramePayload{
		Task:      f.TaskName,
		Timestamp: f.Timestamp,
		Metrics:   make([]webhookMetric, len(f.Metrics)),
	}
	for i, m := range f.Metrics {
		payload.Metrics[i] = webhookMetric{Name: m.Name, Value: m.Value, Attributes: m.Attributes}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("http.webhook %q: encode failed: %w", w.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, w.cfg.Method, w.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("http.webhook %q: %w", w.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("http.webhook %q: request failed: %w", w.name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("http.webhook %q: unexpected status %s", w.name, resp.Status)
	}
	return nil
}
