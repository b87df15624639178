package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingDefaultFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DriverSnowflake, cfg.Warehouse.Driver)
	assert.Equal(t, AnalystCortex, cfg.Analyst.Mode)
	assert.Equal(t, 64, cfg.Query.CacheSize)
	assert.False(t, cfg.Implicit())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
warehouse:
  driver: Snowflake
  snowflake:
    account: myorg-acct
    user: alice
    role: ANALYST
analyst:
  semantic_view: SALES.PUBLIC.REVENUE
query:
  cache_size: 8
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	t.Setenv("SNOWFLAKE_PASSWORD", "s3cret")
	t.Setenv("SNOWFLAKE_ROLE", "SYSADMIN")

	cfg, err := Load(path)
	require.NoError(t, err)

	sf := cfg.Warehouse.Snowflake
	assert.Equal(t, DriverSnowflake, cfg.Warehouse.Driver)
	assert.Equal(t, "myorg-acct", sf.Account)
	assert.Equal(t, "alice", sf.User)
	assert.Equal(t, "s3cret", sf.Password)
	assert.Equal(t, "SYSADMIN", sf.Role, "environment wins over the file")
	assert.Equal(t, "SALES.PUBLIC.REVENUE", cfg.Analyst.SemanticView)
	assert.Equal(t, 8, cfg.Query.CacheSize)
	assert.True(t, cfg.Implicit())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"postgres", func(c *Config) { c.Warehouse.Driver = DriverPostgres }, true},
		{"unknown driver", func(c *Config) { c.Warehouse.Driver = "oracle" }, false},
		{"placeholder analyst", func(c *Config) { c.Analyst.Mode = AnalystPlaceholder }, true},
		{"unknown analyst", func(c *Config) { c.Analyst.Mode = "gpt" }, false},
		{"negative cache", func(c *Config) { c.Query.CacheSize = -1 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestSaveDropsPasswords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := Default()
	cfg.Warehouse.Snowflake.Account = "acct"
	cfg.Warehouse.Snowflake.Password = "hunter2"
	cfg.Warehouse.Postgres.Password = "pgpass"

	require.NoError(t, Save(cfg, path))
	assert.Equal(t, "hunter2", cfg.Warehouse.Snowflake.Password, "caller's config is untouched")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")
	assert.NotContains(t, string(data), "pgpass")
	assert.Contains(t, string(data), "acct")
}

func TestPostgresDSN(t *testing.T) {
	pg := PostgresConfig{Host: "db", Port: 6543, User: "u", Password: "p", Database: "wh", SSLMode: "require"}
	assert.Equal(t, "host=db port=6543 user=u password=p dbname=wh sslmode=require", pg.DSN())
}

func TestProfileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	store, err := OpenProfileStore(path)
	require.NoError(t, err)
	assert.Empty(t, store.Profiles)

	store.Add(Profile{Name: "prod", Account: "acct", User: "alice"})
	store.Add(Profile{Account: "dev", User: "bob"})
	store.Add(Profile{Name: "prod", Account: "acct", User: "alice", Role: "ANALYST"})
	require.Len(t, store.Profiles, 2)
	require.NoError(t, store.Save())

	reloaded, err := OpenProfileStore(path)
	require.NoError(t, err)
	p, ok := reloaded.Get("prod")
	require.True(t, ok)
	assert.Equal(t, "ANALYST", p.Role)

	_, ok = reloaded.Get("bob@dev")
	assert.True(t, ok)

	reloaded.Delete("prod")
	_, ok = reloaded.Get("prod")
	assert.False(t, ok)
}

func TestProfileApplyKeepsPassword(t *testing.T) {
	sf := SnowflakeConfig{Account: "old", Password: "pw"}
	p := Profile{Account: "new", User: "carol", Role: "R"}
	got := p.Apply(sf)
	assert.Equal(t, "new", got.Account)
	assert.Equal(t, "carol", got.User)
	assert.Equal(t, "pw", got.Password)
	assert.Equal(t, p, Profile{Account: "new", User: "carol", Role: "R"})
	assert.Equal(t, Profile{Account: "new", User: "carol", Role: "R"}, ProfileFrom(got))
}
