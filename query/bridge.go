// Package query executes analyst-generated SQL against the warehouse
// session, optionally remembering results so re-rendering a transcript
// does not re-run every statement.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/DachengChen/paiCortex/warehouse"
	lru "github.com/hashicorp/golang-lru"
)

// Executor runs one SQL statement.
type Executor interface {
	Execute(ctx context.Context, sql string) (*warehouse.Table, error)
}

// Bridge is a pass-through to the session with an optional result cache.
type Bridge struct {
	exec  Executor
	cache *lru.Cache
}

// New returns a bridge over exec. A positive cacheSize enables the cache.
func New(exec Executor, cacheSize int) (*Bridge, error) {
	b := &Bridge{exec: exec}
	if cacheSize > 0 {
		cache, err := lru.New(cacheSize)
		if err != nil {
			return nil, fmt.Errorf("query cache: %w", err)
		}
		b.cache = cache
	}
	return b, nil
}

// Execute runs sql. Successful results are cached by statement text;
// errors are not.
func (b *Bridge) Execute(ctx context.Context, sql string) (*warehouse.Table, error) {
	key := strings.TrimSpace(sql)
	if b.cache != nil {
		if v, ok := b.cache.Get(key); ok {
			return v.(*warehouse.Table), nil
		}
	}

	start := time.Now()
	t, err := b.exec.Execute(ctx, sql)
	if err != nil {
		slog.Warn("query failed", "error", err, "elapsed", time.Since(start))
		return nil, err
	}
	slog.Debug("query executed", "rows", len(t.Rows), "truncated", t.Truncated, "elapsed", time.Since(start))

	if b.cache != nil {
		b.cache.Add(key, t)
	}
	return t, nil
}

// Cached reports whether sql already has a stored result.
func (b *Bridge) Cached(sql string) bool {
	return b.cache != nil && b.cache.Contains(strings.TrimSpace(sql))
}

// Purge drops every cached result.
func (b *Bridge) Purge() {
	if b.cache != nil {
		b.cache.Purge()
	}
}
