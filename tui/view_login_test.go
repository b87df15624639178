package tui

import (
	"path/filepath"
	"testing"

	"github.com/DachengChen/paiCortex/config"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loginKeys(v *LoginView, keys ...string) tea.Cmd {
	var cmd tea.Cmd
	for _, k := range keys {
		_, cmd = v.Update(key(k))
	}
	return cmd
}

func TestLoginViewInitialFocus(t *testing.T) {
	assert.Equal(t, fieldAccount, NewLoginView(nil, config.SnowflakeConfig{}).focusField)
	assert.Equal(t, fieldUser, NewLoginView(nil, config.SnowflakeConfig{Account: "a"}).focusField)
	assert.Equal(t, fieldPassword, NewLoginView(nil, config.SnowflakeConfig{Account: "a", User: "u"}).focusField)
}

func TestLoginViewRequiresCredentials(t *testing.T) {
	v := NewLoginView(nil, config.SnowflakeConfig{Account: "acct", User: "alice"})
	v.SetSize(100, 30)

	// move to the Log in button
	cmd := loginKeys(v, "down", "down", "down", "enter")
	assert.Nil(t, cmd)
	require.Error(t, v.err)
	assert.Contains(t, v.View(), "account, user and password are required")
}

func TestLoginViewEmitsRequest(t *testing.T) {
	base := config.SnowflakeConfig{Account: "acct", User: "alice", Role: "ANALYST", Host: "example.test"}
	v := NewLoginView(nil, base)

	cmd := loginKeys(v, "enter", "s", "e", "c", "r", "e", "t", "enter")
	require.NotNil(t, cmd)
	req, ok := cmd().(loginRequestMsg)
	require.True(t, ok)
	assert.Equal(t, "secret", req.Snowflake.Password)
	assert.Equal(t, "example.test", req.Snowflake.Host)
	assert.Equal(t, "ANALYST", req.Snowflake.Role)
	assert.Equal(t, "acct", req.Profile.Account)
	assert.True(t, v.loggingIn)

	v.Update(LoginErrorMsg{Err: assert.AnError})
	assert.False(t, v.loggingIn)
	assert.Equal(t, assert.AnError, v.err)
}

func TestLoginViewProfiles(t *testing.T) {
	store, err := config.OpenProfileStore(filepath.Join(t.TempDir(), "profiles.yaml"))
	require.NoError(t, err)
	store.Add(config.Profile{Name: "prod", Account: "acct1", User: "bob", Role: "R"})
	store.Add(config.Profile{Name: "dev", Account: "acct2", User: "eve"})

	v := NewLoginView(store, config.SnowflakeConfig{})
	assert.Equal(t, "acct1", v.fields[fieldAccount])
	assert.Equal(t, fieldPassword, v.focusField)

	v.focusField = fieldSaved
	loginKeys(v, "right")
	assert.Equal(t, "acct2", v.fields[fieldAccount])
	assert.Equal(t, "eve", v.fields[fieldUser])

	loginKeys(v, "left")
	assert.Equal(t, "acct1", v.fields[fieldAccount])
	assert.Equal(t, "R", v.fields[fieldRole])
}
