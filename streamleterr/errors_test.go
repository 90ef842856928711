package streamleterr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_FatalKinds(t *testing.T) {
	assert.True(t, New(KindConfigInvalid, "", nil).Fatal())
	assert.True(t, New(KindStartupHookFailed, "", nil).Fatal())
	assert.False(t, New(KindInputFailed, "", nil).Fatal())
	assert.False(t, New(KindOutputFailed, "", nil).Fatal())
}

func TestError_UnwrapAndFormatting(t *testing.T) {
	inner := errors.New("connection refused")
	err := New(KindInputFailed, "[inputs][0]", inner).WithTask("orders").WithModule("db1", "sql.postgres")

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "task=orders")
	assert.Contains(t, err.Error(), "module=db1(sql.postgres)")
	assert.Contains(t, err.Error(), "path=[inputs][0]")
}

func TestTerminal_MarksAndDetects(t *testing.T) {
	plain := errors.New("boom")
	assert.False(t, IsTerminal(plain))

	wrapped := Terminal(plain)
	assert.True(t, IsTerminal(wrapped))
	assert.ErrorIs(t, wrapped, plain)

	assert.Nil(t, Terminal(nil))
}

func TestConfigErrors_AggregatesAndFormats(t *testing.T) {
	errs := NewConfigErrors()
	assert.Equal(t, 0, errs.Len())
	assert.NoError(t, errs.ErrOrNil())

	errs.Add("[inputs][0][type]", "unknown module type \"db.posgres\"")
	errs.AddSuggestion("[inputs][1][type]", "unknown module type \"cache.reids\"", "cache.redis", "cache.redis")

	assert.Equal(t, 2, errs.Len())
	err := errs.ErrOrNil()
	require := err.Error()
	assert.Contains(t, require, "2 error(s)")
	assert.Contains(t, require, "did you mean \"cache.redis\"?")
}
