package query

import (
	"context"
	"errors"
	"testing"

	"github.com/DachengChen/paiCortex/warehouse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingExec struct {
	calls int
	fail  bool
	empty bool
}

func (c *countingExec) Execute(ctx context.Context, sql string) (*warehouse.Table, error) {
	c.calls++
	if c.fail {
		return nil, errors.New("SQL compilation error")
	}
	t := &warehouse.Table{Columns: []string{"N"}}
	if !c.empty {
		t.Rows = [][]string{{"1"}}
	}
	return t, nil
}

func TestPassThrough(t *testing.T) {
	exec := &countingExec{}
	b, err := New(exec, 0)
	require.NoError(t, err)

	for range 2 {
		table, err := b.Execute(context.Background(), "SELECT 1")
		require.NoError(t, err)
		assert.False(t, table.Empty())
	}
	assert.Equal(t, 2, exec.calls)
	assert.False(t, b.Cached("SELECT 1"))
}

func TestEmptyResultIsNotAnError(t *testing.T) {
	b, err := New(&countingExec{empty: true}, 0)
	require.NoError(t, err)

	table, err := b.Execute(context.Background(), "SELECT 1 WHERE FALSE")
	require.NoError(t, err)
	assert.True(t, table.Empty())
}

func TestCache(t *testing.T) {
	exec := &countingExec{}
	b, err := New(exec, 8)
	require.NoError(t, err)

	first, err := b.Execute(context.Background(), "SELECT 1")
	require.NoError(t, err)
	second, err := b.Execute(context.Background(), "  SELECT 1\n")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, exec.calls)
	assert.True(t, b.Cached("SELECT 1"))

	b.Purge()
	assert.False(t, b.Cached("SELECT 1"))
	_, err = b.Execute(context.Background(), "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, 2, exec.calls)
}

func TestErrorsAreNotCached(t *testing.T) {
	exec := &countingExec{fail: true}
	b, err := New(exec, 8)
	require.NoError(t, err)

	for range 2 {
		_, err := b.Execute(context.Background(), "SELECT nope")
		assert.EqualError(t, err, "SQL compilation error")
	}
	assert.Equal(t, 2, exec.calls)
	assert.False(t, b.Cached("SELECT nope"))
}
