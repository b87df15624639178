package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/DachengChen/paiCortex/analyst"
	"github.com/DachengChen/paiCortex/config"
	"github.com/DachengChen/paiCortex/transcript"
	"github.com/DachengChen/paiCortex/warehouse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	models []string
	closed bool
}

func (f *fakeSession) Credential(ctx context.Context) (warehouse.Credential, error) {
	return warehouse.Credential{Scheme: "Snowflake", Token: "t"}, nil
}

func (f *fakeSession) Execute(ctx context.Context, sql string) (*warehouse.Table, error) {
	return &warehouse.Table{
		Columns: []string{"REGION", "REVENUE"},
		Rows:    [][]string{{"EMEA", "10"}, {"APAC", "20"}},
		Total:   2,
	}, nil
}

func (f *fakeSession) ListModels(ctx context.Context) ([]string, error) { return f.models, nil }
func (f *fakeSession) AccountURL() string                                { return "https://acct.snowflakecomputing.com" }
func (f *fakeSession) Info() warehouse.SessionInfo                       { return warehouse.SessionInfo{User: "alice"} }

func (f *fakeSession) Close(ctx context.Context) error {
	f.closed = true
	return nil
}

type sqlAnalyst struct{}

func (sqlAnalyst) Name() string { return "fake" }

func (sqlAnalyst) SendFeedback(context.Context, string, bool, string) error { return nil }

func (sqlAnalyst) Send(ctx context.Context, messages []analyst.Message, model string) (*analyst.Response, error) {
	return &analyst.Response{
		RequestID: "rid-1",
		Message: analyst.Message{Content: []analyst.ContentItem{
			analyst.Text{Text: "Revenue by region for " + model},
			analyst.SQL{Statement: "SELECT region, revenue FROM sales"},
		}},
		Warnings: []analyst.Warning{{Message: "large table"}},
	}, nil
}

type failingAnalyst struct{ sqlAnalyst }

func (failingAnalyst) Send(context.Context, []analyst.Message, string) (*analyst.Response, error) {
	return nil, &analyst.Error{Code: 500, Text: "Error 500: internal error", RequestID: "abc"}
}

// setup writes a config into a temp dir and swaps the session and analyst
// factories.
func setup(t *testing.T, sess *fakeSession, an analyst.Analyst, yaml string) string {
	t.Helper()
	for _, k := range []string{"SNOWFLAKE_ACCOUNT", "SNOWFLAKE_USER", "SNOWFLAKE_PASSWORD", "PAICORTEX_SEMANTIC_VIEW", "PAICORTEX_ANALYST_MODE"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "log:\n  file: " + filepath.Join(dir, "app.log") + "\n" +
		"transcripts:\n  enabled: true\n  path: " + filepath.Join(dir, "transcripts.bolt") + "\n" + yaml
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	origOpen, origAnalyst := openSession, newAnalyst
	openSession = func(ctx context.Context, wcfg config.WarehouseConfig) (warehouse.Session, error) {
		return sess, nil
	}
	newAnalyst = func(config.AnalystConfig, warehouse.Session) (analyst.Analyst, error) {
		return an, nil
	}
	t.Cleanup(func() {
		openSession, newAnalyst = origOpen, origAnalyst
	})
	return path
}

const credentials = `warehouse:
  snowflake:
    account: acct
    user: alice
    password: pw
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath, logLevel, modelFlag, loginForm = "", "", "", false
	askRun, askMaxRows = false, 50
	initForce = false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	_ = logCleanup()
	return out.String(), err
}

func TestAskPrintsAnswerAndRunsSQL(t *testing.T) {
	sess := &fakeSession{models: []string{"DB.S.SALES"}}
	path := setup(t, sess, sqlAnalyst{}, credentials)

	out, err := run(t, "--config", path, "ask", "--run", "revenue", "by", "region?")
	require.NoError(t, err)

	assert.Contains(t, out, "Revenue by region for DB.S.SALES")
	assert.Contains(t, out, "SELECT region, revenue FROM sales")
	assert.Contains(t, out, "request id: rid-1")
	assert.Contains(t, out, "⚠ large table")
	assert.Contains(t, out, "EMEA")
	assert.Contains(t, out, "(2 rows)")
	assert.True(t, sess.closed)

	// the turn was archived
	store, err := transcript.Open(filepath.Join(filepath.Dir(path), "transcripts.bolt"))
	require.NoError(t, err)
	records, err := store.List()
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.Len(t, records, 1)
	assert.Equal(t, "revenue by region?", records[0].Title())
	assert.Equal(t, "alice", records[0].User)

	out, err = run(t, "--config", path, "history")
	require.NoError(t, err)
	assert.Contains(t, out, records[0].ID)
	assert.Contains(t, out, "DB.S.SALES")

	out, err = run(t, "--config", path, "history", records[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, "> revenue by region?")
	assert.Contains(t, out, "request id: rid-1")
}

func TestAskWithoutRunSkipsExecution(t *testing.T) {
	sess := &fakeSession{}
	path := setup(t, sess, sqlAnalyst{}, credentials)

	out, err := run(t, "--config", path, "ask", "-m", "DB.S.OTHER", "revenue?")
	require.NoError(t, err)
	assert.Contains(t, out, "Revenue by region for DB.S.OTHER")
	assert.NotContains(t, out, "EMEA")
}

func TestAskReportsAnalystError(t *testing.T) {
	path := setup(t, &fakeSession{models: []string{"DB.S.SALES"}}, failingAnalyst{}, credentials)

	out, err := run(t, "--config", path, "ask", "revenue?")
	require.Error(t, err)
	assert.Contains(t, out, "Error 500: internal error")
	assert.Contains(t, out, "request id: abc")
}

func TestAskNeedsModelChoice(t *testing.T) {
	path := setup(t, &fakeSession{models: []string{"A.B.C", "A.B.D"}}, sqlAnalyst{}, credentials)

	_, err := run(t, "--config", path, "ask", "revenue?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "choose one with --model: A.B.C, A.B.D")
}

func TestAskNeedsCredentials(t *testing.T) {
	path := setup(t, &fakeSession{}, sqlAnalyst{}, "")

	_, err := run(t, "--config", path, "ask", "revenue?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no credentials configured")
}

func TestModels(t *testing.T) {
	path := setup(t, &fakeSession{models: []string{"A.B.C", "A.B.D"}}, sqlAnalyst{}, credentials)

	out, err := run(t, "--config", path, "models")
	require.NoError(t, err)
	assert.Contains(t, out, "A.B.C\nA.B.D\n")

	path = setup(t, &fakeSession{}, sqlAnalyst{}, credentials)
	out, err = run(t, "--config", path, "models")
	require.NoError(t, err)
	assert.Contains(t, out, "No semantic views found.")
}

func TestHistoryUnknownID(t *testing.T) {
	path := setup(t, &fakeSession{}, sqlAnalyst{}, credentials)

	out, err := run(t, "--config", path, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No archived conversations.")

	_, err = run(t, "--config", path, "history", "nope")
	require.ErrorIs(t, err, transcript.ErrNotFound)
}

func TestInitWritesConfigWithoutPassword(t *testing.T) {
	path := setup(t, &fakeSession{}, sqlAnalyst{}, credentials+"analyst:\n  semantic_view: DB.S.SALES\n")
	target := filepath.Join(t.TempDir(), "out.yaml")

	out, err := run(t, "--config", path, "init", target)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+target)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "semantic_view: DB.S.SALES")
	assert.Contains(t, string(data), "account: acct")
	assert.NotContains(t, string(data), "password: pw")

	_, err = run(t, "--config", path, "init", target)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = run(t, "--config", path, "init", "--force", target)
	require.NoError(t, err)

	loaded, err := config.Load(target)
	require.NoError(t, err)
	assert.Equal(t, "DB.S.SALES", loaded.Analyst.SemanticView)
	assert.Empty(t, loaded.Warehouse.Snowflake.Password)
}
