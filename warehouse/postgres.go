package warehouse

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/DachengChen/paiCortex/config"
	"github.com/DachengChen/paiCortex/ssh"
	pgx "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultDiscoveryQuery is used when no discovery query is configured. The
// result must carry database_name, schema_name and name columns.
const DefaultDiscoveryQuery = `SELECT database_name, schema_name, name FROM semantic_views ORDER BY 1, 2, 3`

// MaxRows caps how many rows a Postgres query collects.
const MaxRows = 10000

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Postgres runs SQL against a local Postgres mirror and authenticates the
// hosted analyst with a programmatic access token.
type Postgres struct {
	db     querier
	pool   *pgxpool.Pool
	tunnel *ssh.Tunnel
	cfg    config.PostgresConfig

	mu     sync.Mutex
	closed bool
}

// ConnectPostgres establishes the pool, optionally through an SSH tunnel.
func ConnectPostgres(ctx context.Context, cfg config.PostgresConfig) (*Postgres, error) {
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("%w: warehouse.postgres.access_token (SNOWFLAKE_PAT) is required for the analyst", ErrAuth)
	}
	if cfg.AnalystAccount == "" {
		return nil, fmt.Errorf("%w: warehouse.postgres.analyst_account is required", ErrAuth)
	}

	p := &Postgres{cfg: cfg}
	target := cfg
	if cfg.SSH.Enabled {
		tunnel, err := ssh.NewTunnel(cfg.SSH, cfg.Host, cfg.Port)
		if err != nil {
			return nil, fmt.Errorf("ssh tunnel: %w", err)
		}
		localAddr, err := tunnel.Start(ctx)
		if err != nil {
			return nil, fmt.Errorf("ssh tunnel start: %w", err)
		}
		p.tunnel = tunnel
		target.Host = localAddr.Host
		target.Port = localAddr.Port
	}

	pool, err := pgxpool.New(ctx, target.DSN())
	if err != nil {
		p.stopTunnel()
		return nil, fmt.Errorf("pgx connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		p.stopTunnel()
		return nil, fmt.Errorf("pgx ping: %w", err)
	}

	p.pool = pool
	p.db = pool
	slog.Info("postgres session opened", "host", cfg.Host, "database", cfg.Database, "ssh", cfg.SSH.Enabled)
	return p, nil
}

// Credential returns the configured programmatic access token.
func (p *Postgres) Credential(ctx context.Context) (Credential, error) {
	if p.isClosed() {
		return Credential{}, ErrNoSession
	}
	return Credential{
		Scheme:    "Bearer",
		Token:     p.cfg.AccessToken,
		TokenType: "PROGRAMMATIC_ACCESS_TOKEN",
	}, nil
}

// Execute runs an arbitrary SQL statement and returns results.
func (p *Postgres) Execute(ctx context.Context, sql string) (*Table, error) {
	if p.isClosed() {
		return nil, ErrNoSession
	}
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return nil, fmt.Errorf("empty query")
	}

	rows, err := p.db.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	t := &Table{}
	for _, fd := range rows.FieldDescriptions() {
		t.Columns = append(t.Columns, fd.Name)
	}
	for rows.Next() {
		t.Total++
		if len(t.Rows) >= MaxRows {
			t.Truncated = true
			continue
		}
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make([]string, len(values))
		for i, v := range values {
			if v == nil {
				row[i] = "NULL"
				continue
			}
			row[i] = fmt.Sprintf("%v", v)
		}
		t.Rows = append(t.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

// ListModels runs the discovery query.
func (p *Postgres) ListModels(ctx context.Context) ([]string, error) {
	q := p.cfg.DiscoveryQuery
	if q == "" {
		q = DefaultDiscoveryQuery
	}
	t, err := p.Execute(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("discover semantic views: %w", err)
	}
	return SemanticViewsFromTable(t)
}

func (p *Postgres) AccountURL() string {
	return AccountURL(p.cfg.AnalystAccount, "")
}

func (p *Postgres) Info() SessionInfo {
	return SessionInfo{
		Driver:    config.DriverPostgres,
		Account:   p.cfg.AnalystAccount,
		User:      p.cfg.User,
		Warehouse: p.cfg.Host,
		Database:  p.cfg.Database,
	}
}

// Close shuts down the pool and SSH tunnel.
func (p *Postgres) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.pool != nil {
		p.pool.Close()
	}
	p.stopTunnel()
	return nil
}

func (p *Postgres) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Postgres) stopTunnel() {
	if p.tunnel != nil {
		p.tunnel.Stop()
	}
}
