package warehouse

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/DachengChen/paiCortex/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSnowflake serves the handful of session endpoints the client uses.
type fakeSnowflake struct {
	mu          sync.Mutex
	renewals    int
	queries     []string
	authHeaders []string
	expireOnce  bool
	closed      bool
	queryReply  map[string]any
}

func (f *fakeSnowflake) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	reply := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(v))
	}

	mux.HandleFunc("/session/v1/login-request", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Data map[string]string `json:"data"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body.Data["PASSWORD"] != "secret" {
			reply(w, map[string]any{"success": false, "message": "Incorrect username or password was specified.", "code": "390100"})
			return
		}
		reply(w, map[string]any{
			"success": true,
			"data": map[string]any{
				"token":                   "session-1",
				"masterToken":             "master-1",
				"validityInSeconds":       3600,
				"masterValidityInSeconds": 14400,
				"sessionInfo": map[string]any{
					"warehouseName": "COMPUTE_WH",
					"roleName":      r.URL.Query().Get("roleName"),
				},
			},
		})
	})

	mux.HandleFunc("/session/token-request", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.renewals++
		f.mu.Unlock()
		assert.Equal(t, `Snowflake Token="master-1"`, r.Header.Get("Authorization"))
		reply(w, map[string]any{
			"success": true,
			"data": map[string]any{
				"sessionToken":        "session-2",
				"validityInSecondsST": 3600,
			},
		})
	})

	mux.HandleFunc("/queries/v1/query-request", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			SQLText string `json:"sqlText"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		f.mu.Lock()
		f.queries = append(f.queries, body.SQLText)
		f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))
		expire := f.expireOnce
		f.expireOnce = false
		out := f.queryReply
		f.mu.Unlock()

		if expire {
			reply(w, map[string]any{"success": false, "code": "390112", "message": "Your session has expired."})
			return
		}
		reply(w, out)
	})

	mux.HandleFunc("/session", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("delete"))
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
		reply(w, map[string]any{"success": true})
	})
	return mux
}

func startFake(t *testing.T, f *fakeSnowflake) config.SnowflakeConfig {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return config.SnowflakeConfig{
		Account:  "myorg-acct",
		User:     "alice",
		Password: "secret",
		Role:     "ANALYST",
		Host:     srv.URL,
	}
}

func rowsReply(cols []string, rows [][]any, total int) map[string]any {
	var rowtype []map[string]string
	for _, c := range cols {
		rowtype = append(rowtype, map[string]string{"name": c})
	}
	return map[string]any{
		"success": true,
		"data": map[string]any{
			"rowtype":  rowtype,
			"rowset":   rows,
			"total":    total,
			"returned": len(rows),
		},
	}
}

func TestLogin(t *testing.T) {
	cfg := startFake(t, &fakeSnowflake{})

	s, err := Login(context.Background(), cfg)
	require.NoError(t, err)

	info := s.Info()
	assert.Equal(t, "ANALYST", info.Role)
	assert.Equal(t, "COMPUTE_WH", info.Warehouse)
	assert.Equal(t, cfg.Host, s.AccountURL())

	cred, err := s.Credential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `Snowflake Token="session-1"`, cred.Header())
}

func TestLoginRejected(t *testing.T) {
	cfg := startFake(t, &fakeSnowflake{})
	cfg.Password = "wrong"

	_, err := Login(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuth)
	assert.Contains(t, err.Error(), "Incorrect username")
}

func TestLoginMissingFields(t *testing.T) {
	_, err := Login(context.Background(), config.SnowflakeConfig{Account: "a"})
	assert.ErrorIs(t, err, ErrAuth)
}

func TestCredentialRenewsNearExpiry(t *testing.T) {
	f := &fakeSnowflake{}
	s, err := Login(context.Background(), startFake(t, f))
	require.NoError(t, err)

	base := time.Now()
	s.now = func() time.Time { return base.Add(59*time.Minute + 30*time.Second) }

	cred, err := s.Credential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "session-2", cred.Token)
	assert.Equal(t, 1, f.renewals)
}

func TestCredentialMasterExpired(t *testing.T) {
	s, err := Login(context.Background(), startFake(t, &fakeSnowflake{}))
	require.NoError(t, err)

	s.now = func() time.Time { return time.Now().Add(5 * time.Hour) }
	_, err = s.Credential(context.Background())
	assert.ErrorIs(t, err, ErrAuth)
}

func TestExecute(t *testing.T) {
	ptr := func(s string) *string { return &s }
	f := &fakeSnowflake{queryReply: rowsReply(
		[]string{"REGION", "REVENUE"},
		[][]any{{ptr("EMEA"), ptr("10")}, {ptr("APAC"), nil}},
		5,
	)}
	s, err := Login(context.Background(), startFake(t, f))
	require.NoError(t, err)

	table, err := s.Execute(context.Background(), "SELECT region, revenue FROM sales")
	require.NoError(t, err)
	assert.Equal(t, []string{"REGION", "REVENUE"}, table.Columns)
	assert.Equal(t, [][]string{{"EMEA", "10"}, {"APAC", "NULL"}}, table.Rows)
	assert.True(t, table.Truncated)
	assert.Equal(t, "(2 of 5 rows)", table.Status())
	assert.Equal(t, `Snowflake Token="session-1"`, f.authHeaders[0])
}

func TestExecuteRenewsExpiredSession(t *testing.T) {
	f := &fakeSnowflake{expireOnce: true, queryReply: rowsReply([]string{"N"}, [][]any{{"1"}}, 1)}
	s, err := Login(context.Background(), startFake(t, f))
	require.NoError(t, err)

	table, err := s.Execute(context.Background(), "SELECT 1 AS n")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1"}}, table.Rows)
	assert.Equal(t, 1, f.renewals)
	require.Len(t, f.authHeaders, 2)
	assert.Equal(t, `Snowflake Token="session-2"`, f.authHeaders[1])
}

func TestExecuteFailure(t *testing.T) {
	f := &fakeSnowflake{queryReply: map[string]any{
		"success": false,
		"code":    "002003",
		"message": "SQL compilation error: Object 'NOPE' does not exist.",
	}}
	s, err := Login(context.Background(), startFake(t, f))
	require.NoError(t, err)

	_, err = s.Execute(context.Background(), "SELECT * FROM nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestListModels(t *testing.T) {
	f := &fakeSnowflake{queryReply: rowsReply(
		[]string{"created_on", `"database_name"`, "schema_name", "name"},
		[][]any{{"2024-01-01", "SALES", "PUBLIC", "REVENUE"}},
		1,
	)}
	s, err := Login(context.Background(), startFake(t, f))
	require.NoError(t, err)

	models, err := s.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"SALES.PUBLIC.REVENUE"}, models)
	assert.Equal(t, ShowSemanticViews, f.queries[0])
}

func TestClose(t *testing.T) {
	f := &fakeSnowflake{}
	s, err := Login(context.Background(), startFake(t, f))
	require.NoError(t, err)

	require.NoError(t, s.Close(context.Background()))
	assert.True(t, f.closed)
	require.NoError(t, s.Close(context.Background()))

	_, err = s.Credential(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}
