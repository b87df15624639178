// Package warehouse opens and holds the session the rest of the
// application talks to: it hands out credentials for the analyst API,
// executes SQL and discovers the semantic models available to the user.
//
// Two drivers exist. Snowflake speaks the Snowflake session REST protocol
// directly. Postgres runs SQL against a local mirror through pgx (optionally
// over an SSH tunnel) and pairs it with a programmatic access token for the
// hosted analyst.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/DachengChen/paiCortex/config"
)

var (
	// ErrNoSession is returned by operations on a closed session.
	ErrNoSession = errors.New("no active warehouse session")
	// ErrAuth marks credential failures (bad password, expired master token).
	ErrAuth = errors.New("warehouse authentication failed")
)

// Session is the capability set shared by the analyst client and the
// query bridge. Implementations are safe for concurrent use.
type Session interface {
	// Credential returns a token valid for at least the next request.
	Credential(ctx context.Context) (Credential, error)
	Execute(ctx context.Context, sql string) (*Table, error)
	ListModels(ctx context.Context) ([]string, error)
	// AccountURL is the scheme+host used for the analyst REST API.
	AccountURL() string
	Info() SessionInfo
	Close(ctx context.Context) error
}

// Credential is an opaque bearer of authority for the REST API.
type Credential struct {
	Scheme    string // "Snowflake" or "Bearer"
	Token     string
	TokenType string // optional X-Snowflake-Authorization-Token-Type
}

// Header renders the Authorization header value.
func (c Credential) Header() string {
	if c.Scheme == "Bearer" {
		return "Bearer " + c.Token
	}
	return fmt.Sprintf("Snowflake Token=%q", c.Token)
}

// SessionInfo describes the session for display.
type SessionInfo struct {
	Driver    string
	Account   string
	User      string
	Role      string
	Warehouse string
	Database  string
	Schema    string
}

// AccountURL derives https://<account>.snowflakecomputing.com. A non-empty
// host wins; it may carry its own scheme.
func AccountURL(account, host string) string {
	if host != "" {
		if strings.Contains(host, "://") {
			return strings.TrimRight(host, "/")
		}
		return "https://" + strings.TrimRight(host, "/")
	}
	account = strings.ToLower(strings.Trim(strings.TrimSpace(account), `"`))
	return "https://" + account + ".snowflakecomputing.com"
}

// Open connects the session selected by cfg.Warehouse.Driver.
func Open(ctx context.Context, cfg config.WarehouseConfig) (Session, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return ConnectPostgres(ctx, cfg.Postgres)
	case config.DriverSnowflake, "":
		return Login(ctx, cfg.Snowflake)
	default:
		return nil, fmt.Errorf("unknown warehouse driver %q", cfg.Driver)
	}
}
