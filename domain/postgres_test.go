package domain

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgsOf_Nil(t *testing.T) {
	assert.Nil(t, argsOf(nil))
}

func TestArgsOf_Slice(t *testing.T) {
	assert.Equal(t, []any{1, "a"}, argsOf([]any{1, "a"}))
}

func TestArgsOf_SingleValueWrapped(t *testing.T) {
	assert.Equal(t, []any{"x"}, argsOf("x"))
}

func TestPostgresInput_Run_RequiresConnection(t *testing.T) {
	p := NewPostgresInput("pg1", PostgresConfig{DSN: "postgres://localhost/db"}, nil)
	_, err := p.Run(context.Background(), map[string]any{"query": "select 1"})
	assert.Error(t, err)
}

func TestPostgresInput_Run_RequiresQueryParam(t *testing.T) {
	p := NewPostgresInput("pg1", PostgresConfig{}, nil)
	// pgxpool dials lazily, so a pool exists here without a live server.
	pool, err := pgxpool.New(context.Background(), "postgres://localhost/db")
	require.NoError(t, err)
	defer pool.Close()
	p.pool = pool
	_, err = p.Run(context.Background(), map[string]any{})
	assert.ErrorContains(t, err, "query")
}
