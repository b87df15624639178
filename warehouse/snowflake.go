package warehouse

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/DachengChen/paiCortex/config"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const (
	clientAppID      = "paiCortex"
	clientAppVersion = "0.1.0"

	// renewMargin is how long before expiry the session token is renewed.
	renewMargin = 60 * time.Second

	codeSessionExpired = "390112"
	codeMasterExpired  = "390114"
)

// Snowflake is a password-authenticated session speaking the Snowflake
// session REST protocol.
type Snowflake struct {
	http    *resty.Client
	baseURL string
	info    SessionInfo

	mu            sync.Mutex
	token         string
	masterToken   string
	expires       time.Time
	masterExpires time.Time
	seq           int64
	closed        bool

	now func() time.Time
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type loginResponse struct {
	envelope
	Data struct {
		Token                   string `json:"token"`
		MasterToken             string `json:"masterToken"`
		ValidityInSeconds       int64  `json:"validityInSeconds"`
		MasterValidityInSeconds int64  `json:"masterValidityInSeconds"`
		SessionInfo             struct {
			DatabaseName  string `json:"databaseName"`
			SchemaName    string `json:"schemaName"`
			WarehouseName string `json:"warehouseName"`
			RoleName      string `json:"roleName"`
		} `json:"sessionInfo"`
	} `json:"data"`
}

type renewResponse struct {
	envelope
	Data struct {
		SessionToken        string `json:"sessionToken"`
		ValidityInSecondsST int64  `json:"validityInSecondsST"`
		MasterToken         string `json:"masterToken"`
		ValidityInSecondsMT int64  `json:"validityInSecondsMT"`
	} `json:"data"`
}

type queryResponse struct {
	envelope
	Data struct {
		RowType []struct {
			Name string `json:"name"`
		} `json:"rowtype"`
		RowSet   [][]*string `json:"rowset"`
		Total    int64       `json:"total"`
		Returned int64       `json:"returned"`
		QueryID  string      `json:"queryId"`
	} `json:"data"`
}

// Login opens a session with the user's password.
func Login(ctx context.Context, cfg config.SnowflakeConfig) (*Snowflake, error) {
	if cfg.Account == "" || cfg.User == "" || cfg.Password == "" {
		return nil, fmt.Errorf("%w: account, user and password are required", ErrAuth)
	}

	baseURL := AccountURL(cfg.Account, cfg.Host)
	s := &Snowflake{
		http: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json").
			SetTimeout(60 * time.Second),
		baseURL: baseURL,
		now:     time.Now,
	}

	params := map[string]string{"request_id": uuid.NewString()}
	for k, v := range map[string]string{
		"warehouse":    cfg.Warehouse,
		"roleName":     cfg.Role,
		"databaseName": cfg.Database,
		"schemaName":   cfg.Schema,
	} {
		if v != "" {
			params[k] = v
		}
	}
	body := map[string]any{
		"data": map[string]any{
			"CLIENT_APP_ID":      clientAppID,
			"CLIENT_APP_VERSION": clientAppVersion,
			"ACCOUNT_NAME":       cfg.Account,
			"LOGIN_NAME":         cfg.User,
			"PASSWORD":           cfg.Password,
		},
	}

	var out loginResponse
	if err := s.post(ctx, "/session/v1/login-request", params, "", body, &out); err != nil {
		return nil, fmt.Errorf("snowflake login: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("%w: %s (code %s)", ErrAuth, out.Message, out.Code)
	}

	now := s.now()
	s.token = out.Data.Token
	s.masterToken = out.Data.MasterToken
	s.expires = now.Add(time.Duration(out.Data.ValidityInSeconds) * time.Second)
	s.masterExpires = now.Add(time.Duration(out.Data.MasterValidityInSeconds) * time.Second)

	si := out.Data.SessionInfo
	s.info = SessionInfo{
		Driver:    config.DriverSnowflake,
		Account:   cfg.Account,
		User:      cfg.User,
		Role:      firstNonEmpty(si.RoleName, cfg.Role),
		Warehouse: firstNonEmpty(si.WarehouseName, cfg.Warehouse),
		Database:  firstNonEmpty(si.DatabaseName, cfg.Database),
		Schema:    firstNonEmpty(si.SchemaName, cfg.Schema),
	}
	slog.Info("snowflake session opened", "account", cfg.Account, "user", cfg.User, "role", s.info.Role)
	return s, nil
}

// Credential returns the current session token, renewing it first when it
// is about to expire.
func (s *Snowflake) Credential(ctx context.Context) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Credential{}, ErrNoSession
	}
	if s.now().Add(renewMargin).After(s.expires) {
		if err := s.renewLocked(ctx); err != nil {
			return Credential{}, err
		}
	}
	return Credential{Scheme: "Snowflake", Token: s.token}, nil
}

// renewLocked exchanges the master token for a new session token.
// s.mu must be held.
func (s *Snowflake) renewLocked(ctx context.Context) error {
	if s.masterToken == "" || s.now().After(s.masterExpires) {
		return fmt.Errorf("%w: session expired, log in again", ErrAuth)
	}

	body := map[string]string{
		"oldSessionToken": s.token,
		"requestType":     "RENEW",
	}
	var out renewResponse
	params := map[string]string{"requestId": uuid.NewString()}
	if err := s.post(ctx, "/session/token-request", params, s.masterToken, body, &out); err != nil {
		return fmt.Errorf("renew session: %w", err)
	}
	if !out.Success {
		if out.Code == codeMasterExpired {
			return fmt.Errorf("%w: %s", ErrAuth, out.Message)
		}
		return fmt.Errorf("renew session: %s (code %s)", out.Message, out.Code)
	}

	now := s.now()
	s.token = out.Data.SessionToken
	s.expires = now.Add(time.Duration(out.Data.ValidityInSecondsST) * time.Second)
	if out.Data.MasterToken != "" {
		s.masterToken = out.Data.MasterToken
		s.masterExpires = now.Add(time.Duration(out.Data.ValidityInSecondsMT) * time.Second)
	}
	slog.Debug("snowflake session renewed", "valid_for", out.Data.ValidityInSecondsST)
	return nil
}

// Execute runs one statement synchronously. Only the first result chunk is
// read; Truncated is set when the server holds more rows.
func (s *Snowflake) Execute(ctx context.Context, sql string) (*Table, error) {
	out, err := s.query(ctx, sql)
	if err != nil {
		return nil, err
	}
	if !out.Success && out.Code == codeSessionExpired {
		s.mu.Lock()
		err = s.renewLocked(ctx)
		s.mu.Unlock()
		if err != nil {
			return nil, err
		}
		if out, err = s.query(ctx, sql); err != nil {
			return nil, err
		}
	}
	if !out.Success {
		return nil, fmt.Errorf("%s (code %s)", out.Message, out.Code)
	}

	t := &Table{Total: out.Data.Total}
	for _, rt := range out.Data.RowType {
		t.Columns = append(t.Columns, rt.Name)
	}
	for _, raw := range out.Data.RowSet {
		row := make([]string, len(t.Columns))
		for i := range row {
			row[i] = "NULL"
			if i < len(raw) && raw[i] != nil {
				row[i] = *raw[i]
			}
		}
		t.Rows = append(t.Rows, row)
	}
	if t.Total < int64(len(t.Rows)) {
		t.Total = int64(len(t.Rows))
	}
	t.Truncated = t.Total > int64(len(t.Rows))
	return t, nil
}

func (s *Snowflake) query(ctx context.Context, sql string) (*queryResponse, error) {
	cred, err := s.Credential(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	body := map[string]any{
		"sqlText":             sql,
		"asyncExec":           false,
		"sequenceId":          seq,
		"querySubmissionTime": s.now().UnixMilli(),
	}
	var out queryResponse
	params := map[string]string{"requestId": uuid.NewString()}
	if err := s.post(ctx, "/queries/v1/query-request", params, cred.Token, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListModels discovers the semantic views visible to the session role.
func (s *Snowflake) ListModels(ctx context.Context) ([]string, error) {
	t, err := s.Execute(ctx, ShowSemanticViews)
	if err != nil {
		return nil, fmt.Errorf("discover semantic views: %w", err)
	}
	return SemanticViewsFromTable(t)
}

func (s *Snowflake) AccountURL() string { return s.baseURL }

func (s *Snowflake) Info() SessionInfo { return s.info }

// Close deletes the server-side session. Further calls fail with ErrNoSession.
func (s *Snowflake) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	token := s.token
	s.mu.Unlock()

	var out envelope
	if err := s.post(ctx, "/session", map[string]string{"delete": "true"}, token, map[string]any{}, &out); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	slog.Info("snowflake session closed", "account", s.info.Account)
	return nil
}

func (s *Snowflake) post(ctx context.Context, path string, params map[string]string, token string, body, result any) error {
	req := s.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetBody(body).
		SetResult(result)
	if token != "" {
		req.SetHeader("Authorization", Credential{Token: token}.Header())
	}

	resp, err := req.Post(path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("HTTP %s", resp.Status())
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
