package domain

import (
	"fmt"
	"log/slog"

	"github.com/Biscgit/streamlet/module"
	"github.com/Biscgit/streamlet/registry"
	"github.com/Biscgit/streamlet/schema"
)

// RegisterBuiltins adds the built-in connector module types to reg:
// sql.postgres and search.opensearch (Inputs), cache.redis (Transform),
// and broker.kafka and http.webhook (Outputs). Callers that want a leaner image can skip
// this and register only the types their own configuration needs.
func RegisterBuiltins(reg *registry.Registry, logger *slog.Logger) error {
	entries := []registry.Entry{
		{
			Type:    "sql.postgres",
			Variant: module.VariantInput,
			ConnectionSchema: schema.Obj{Fields: []schema.Field{
				schema.Required("dsn", schema.Scalar{Kind: schema.KindString}),
				schema.Optional("max_open_conns", schema.Scalar{Kind: schema.KindInt}, 0),
			}},
			Constructor: func(name string, connection map[string]any) (module.Module, error) {
				dsn, _ := connection["dsn"].(string)
				if dsn == "" {
					return nil, fmt.Errorf("sql.postgres %q: connection.dsn is required", name)
				}
				return NewPostgresInput(name, PostgresConfig{
					DSN:          dsn,
					MaxOpenConns: int32(intOf(connection["max_open_conns"])),
				}, logger), nil
			},
		},
		{
			Type:    "search.opensearch",
			Variant: module.VariantInput,
			ConnectionSchema: schema.Obj{Fields: []schema.Field{
				schema.Required("addresses", schema.ListNode{Elem: schema.Scalar{Kind: schema.KindString}}),
				schema.Optional("username", schema.Scalar{Kind: schema.KindString}, ""),
				schema.Optional("password", schema.Scalar{Kind: schema.KindString}, ""),
				schema.Optional("index", schema.Scalar{Kind: schema.KindString}, ""),
			}},
			Constructor: func(name string, connection map[string]any) (module.Module, error) {
				return NewOpensearchInput(name, OpensearchConfig{
					Addresses: stringsOf(connection["addresses"]),
					Username:  stringOf(connection["username"]),
					Password:  stringOf(connection["password"]),
					Index:     stringOf(connection["index"]),
				}, logger), nil
			},
		},
		{
			Type:    "cache.redis",
			Variant: module.VariantTransform,
			ConnectionSchema: schema.Obj{Fields: []schema.Field{
				schema.Required("addr", schema.Scalar{Kind: schema.KindString}),
				schema.Optional("password", schema.Scalar{Kind: schema.KindString}, ""),
				schema.Optional("db", schema.Scalar{Kind: schema.KindInt}, 0),
				schema.Optional("ttl", schema.Scalar{Kind: schema.KindDuration}, "5m"),
			}},
			ParamSchema: schema.Obj{Fields: []schema.Field{
				schema.Optional("attribute", schema.Scalar{Kind: schema.KindString}, "cached"),
			}},
			Constructor: func(name string, connection map[string]any) (module.Module, error) {
				ttl, err := schema.ParseDuration(defaultIfNil(connection["ttl"], "5m"))
				if err != nil {
					return nil, fmt.Errorf("cache.redis %q: ttl: %w", name, err)
				}
				attrKey, _ := connection["attribute"].(string)
				return NewRedisCache(name, RedisConfig{
					Addr:     stringOf(connection["addr"]),
					Password: stringOf(connection["password"]),
					DB:       intOf(connection["db"]),
					TTL:      ttl,
				}, attrKey, logger), nil
			},
		},
		{
			Type:    "broker.kafka",
			Variant: module.VariantOutput,
			ConnectionSchema: schema.Obj{Fields: []schema.Field{
				schema.Required("brokers", schema.ListNode{Elem: schema.Scalar{Kind: schema.KindString}}),
				schema.Required("topic", schema.Scalar{Kind: schema.KindString}),
			}},
			Constructor: func(name string, connection map[string]any) (module.Module, error) {
				return NewKafkaOutput(name, KafkaConfig{
					Brokers: stringsOf(connection["brokers"]),
					Topic:   stringOf(connection["topic"]),
				}, logger), nil
			},
		},
		{
			Type:    "http.webhook",
			Variant: module.VariantOutput,
			ConnectionSchema: schema.Obj{Fields: []schema.Field{
				schema.Required("url", schema.Scalar{Kind: schema.KindString}),
				schema.Optional("method", schema.Scalar{Kind: schema.KindString}, "POST"),
				schema.Optional("timeout", schema.Scalar{Kind: schema.KindDuration}, "10s"),
				schema.Optional("headers", schema.MapNode{Elem: schema.Scalar{Kind: schema.KindString}}, map[string]any{}),
			}},
			Constructor: func(name string, connection map[string]any) (module.Module, error) {
				timeout, err := schema.ParseDuration(defaultIfNil(connection["timeout"], "10s"))
				if err != nil {
					return nil, fmt.Errorf("http.webhook %q: timeout: %w", name, err)
				}
				return NewWebhook(name, WebhookConfig{
					URL:     stringOf(connection["url"]),
					Method:  stringOf(connection["method"]),
					Timeout: timeout,
					Headers: stringMapOf(connection["headers"]),
				}, logger), nil
			},
		},
	}

	for _, e := range entries {
		if err := reg.Register(e); err != nil {
			return err
		}
	}
	return nil
}

func defaultIfNil(v, def any) any {
	if v == nil {
		return def
	}
	return v
}

func intOf(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	default:
		return 0
	}
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}

func stringsOf(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func stringMapOf(v any) map[string]string {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		if s, ok := val.(string); ok {
			out[k] = s
		}
	}
	return out
}
