package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/opensearch-project/opensearch-go"
	"github.com/opensearch-project/opensearch-go/opensearchapi"

	"github.com/Biscgit/streamlet/module"
)

// OpensearchConfig is the `connection` block for search.opensearch.
type OpensearchConfig struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
}

// OpensearchInput runs a query DSL document against one index per fire and
// returns the matched hits as a record list. Grounded on the observer
// client used elsewhere in the pack for querying OpenSearch with the
// official opensearch-go client and opensearchapi request builders,
// adapted here into a polling Input instead of an ad hoc query helper.
type OpensearchInput struct {
	module.NoopLifecycle
	name   string
	cfg    OpensearchConfig
	logger *slog.Logger
	client *opensearch.Client
}

func NewOpensearchInput(name string, cfg OpensearchConfig, logger *slog.Logger) *OpensearchInput {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpensearchInput{name: name, cfg: cfg, logger: logger}
}

func (o *OpensearchInput) Name() string { return o.name }

func (o *OpensearchInput) OnConnect(ctx context.Context) error {
	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: o.cfg.Addresses,
		Username:  o.cfg.Username,
		Password:  o.cfg.Password,
	})
	if err != nil {
		return fmt.Errorf("search.opensearch %q: %w", o.name, err)
	}
	o.client = client
	o.logger.Info("search.opensearch connected", "module", o.name, "addresses", o.cfg.Addresses)
	return nil
}

// Run submits params["query"] (a JSON query DSL document, already decoded
// to a map by the config loader) as the request body and returns every hit
// source as a record list.
func (o *OpensearchInput) Run(ctx context.Context, params map[string]any) (any, error) {
	if o.client == nil {
		return nil, fmt.Errorf("search.opensearch %q: not connected", o.name)
	}
	index := o.cfg.Index
	if v, ok := params["index"].(string); ok && v != "" {
		index = v
	}
	if index == "" {
		return nil, fmt.Errorf("search.opensearch %q: no index configured or given in task params", o.name)
	}
	body, err := json.Marshal(params["query"])
	if err != nil {
		return nil, fmt.Errorf("search.opensearch %q: invalid query: %w", o.name, err)
	}

	req := opensearchapi.SearchRequest{
		Index: []string{index},
		Body:  strings.NewReader(string(body)),
	}
	res, err := req.Do(ctx, o.client)
	if err != nil {
		return nil, fmt.Errorf("search.opensearch %q: request failed: %w", o.name, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search.opensearch %q: %s", o.name, res.String())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("search.opensearch %q: decode failed: %w", o.name, err)
	}

	records := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		records = append(records, h.Source)
	}
	return records, nil
}
