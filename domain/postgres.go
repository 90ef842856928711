// Package domain ships the built-in connector modules: sql.postgres and search.opensearch
// Inputs, cache.redis Transform, and broker.kafka and http.webhook Outputs.
package domain

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Biscgit/streamlet/module"
)

// PostgresConfig is the `connection` block for sql.postgres.
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
}

// PostgresInput runs a parameterized query per fire and returns the result
// rows as a record list, modeled on a database-backed query
// module (`module/database.go`) but driven by pgx/v5's pool instead of
// database/sql, since the connection is dedicated to one module instance.
type PostgresInput struct {
	module.NoopLifecycle
	name   string
	cfg    PostgresConfig
	logger *slog.Logger
	pool   *pgxpool.Pool
}

// NewPostgresInput creates a sql.postgres Input. The pool is opened lazily
// in OnConnect.
func NewPostgresInput(name string, cfg PostgresConfig, logger *slog.Logger) *PostgresInput {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresInput{name: name, cfg: cfg, logger: logger}
}

func (p *PostgresInput) Name() string { return p.name }

// OnConnect opens the connection pool.
func (p *PostgresInput) OnConnect(ctx context.Context) error {
	poolCfg, err := pgxpool.ParseConfig(p.cfg.DSN)
	if err != nil {
		return fmt.Errorf("sql.postgres %q: invalid dsn: %w", p.name, err)
	}
	if p.cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = p.cfg.MaxOpenConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("sql.postgres %q: %w", p.name, err)
	}
	p.pool = pool
	p.logger.Info("sql.postgres connected", "module", p.name)
	return nil
}

// OnShutdown closes the pool.
func (p *PostgresInput) OnShutdown(ctx context.Context) error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

// Run executes params["query"] (with optional params["args"]) and returns
// the result rows as a record list.
func (p *PostgresInput) Run(ctx context.Context, params map[string]any) (any, error) {
	if p.pool == nil {
		return nil, fmt.Errorf("sql.postgres %q: not connected", p.name)
	}
	query, _ := params["query"].(string)
	if query == "" {
		return nil, fmt.Errorf("sql.postgres %q: task params must include \"query\"", p.name)
	}
	args := argsOf(params["args"])

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sql.postgres %q: query failed: %w", p.name, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}

	var records []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("sql.postgres %q: scan failed: %w", p.name, err)
		}
		rec := make(map[string]any, len(values))
		for i, v := range values {
			rec[names[i]] = v
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sql.postgres %q: iteration error: %w", p.name, err)
	}

	sort.Strings(names) // sorted column names; not logged or returned
	return records, nil
}

func argsOf(raw any) []any {
	switch v := raw.(type) {
	case nil:
		return nil
	case []any:
		return v
	default:
		return []any{v}
	}
}
