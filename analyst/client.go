package analyst

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/DachengChen/paiCortex/warehouse"
	"github.com/go-resty/resty/v2"
)

const (
	messagePath  = "/api/v2/cortex/analyst/message"
	feedbackPath = "/api/v2/cortex/analyst/feedback"

	// DefaultTimeout bounds one analyst call.
	DefaultTimeout = 60 * time.Second
)

// CredentialSource is the part of a warehouse session the client needs.
type CredentialSource interface {
	Credential(ctx context.Context) (warehouse.Credential, error)
	AccountURL() string
}

// Client calls the Cortex Analyst REST API.
type Client struct {
	session CredentialSource
	http    *resty.Client
	timeout time.Duration
}

var _ Analyst = (*Client)(nil)

// NewClient creates a Resty-backed client authenticated by session.
func NewClient(session CredentialSource) *Client {
	return &Client{
		session: session,
		http: resty.New().
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
		timeout: DefaultTimeout,
	}
}

// WithTimeout overrides the per-call timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.timeout = d
	return c
}

func (c *Client) Name() string { return "cortex" }

type messageRequest struct {
	Messages     []Message `json:"messages"`
	SemanticView string    `json:"semantic_view"`
}

type errorBody struct {
	Message   string    `json:"message"`
	Code      string    `json:"error_code"`
	RequestID string    `json:"request_id"`
	Warnings  []Warning `json:"warnings"`
}

// Send posts the conversation to the analyst.
func (c *Client) Send(ctx context.Context, messages []Message, model string) (*Response, error) {
	slog.Debug("analyst request", "op", "message", "model", model, "turns", len(messages))

	resp, err := c.send(ctx, messages, model)
	if err != nil {
		var aerr *Error
		errors.As(err, &aerr)
		slog.Warn("analyst request failed", "op", "message", "model", model,
			"status", aerr.Code, "request_id", aerr.RequestID, "error", aerr.Text)
		return nil, aerr
	}
	slog.Info("analyst response", "op", "message", "model", model,
		"request_id", resp.RequestID, "items", len(resp.Message.Content), "warnings", len(resp.Warnings))
	return resp, nil
}

func (c *Client) send(ctx context.Context, messages []Message, model string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []Message{}
	}
	res, err := req.
		SetBody(messageRequest{Messages: messages, SemanticView: model}).
		Post(c.session.AccountURL() + messagePath)
	if err != nil {
		return nil, networkError(err)
	}

	if res.StatusCode() != http.StatusOK {
		return nil, remoteError(res)
	}

	var out Response
	if err := json.Unmarshal(res.Body(), &out); err != nil {
		return nil, networkError(fmt.Errorf("decode response: %w", err))
	}
	if len(out.Message.Content) == 0 {
		return nil, networkError(errors.New("decode response: empty message content"))
	}
	out.Message.Role = RoleAnalyst
	out.Message.RequestID = out.RequestID
	return &out, nil
}

// remoteError builds the error for a non-200 reply. The body is decoded
// best effort.
func remoteError(res *resty.Response) *Error {
	var body errorBody
	_ = json.Unmarshal(res.Body(), &body)

	msg := body.Message
	if msg == "" {
		msg = "unknown error"
	}
	rid := body.RequestID
	if rid == "" {
		rid = NoRequestID
	}
	return &Error{
		Code:      res.StatusCode(),
		Text:      fmt.Sprintf("Error %d: %s", res.StatusCode(), msg),
		RequestID: rid,
		Warnings:  body.Warnings,
	}
}

type feedbackRequest struct {
	RequestID       string `json:"request_id"`
	Positive        bool   `json:"positive"`
	FeedbackMessage string `json:"feedback_message,omitempty"`
}

// SendFeedback rates the reply identified by requestID.
func (c *Client) SendFeedback(ctx context.Context, requestID string, positive bool, note string) error {
	if requestID == "" || requestID == NoRequestID {
		return errors.New("feedback needs a request id")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.request(ctx)
	if err != nil {
		return err
	}
	res, err := req.
		SetBody(feedbackRequest{RequestID: requestID, Positive: positive, FeedbackMessage: note}).
		Post(c.session.AccountURL() + feedbackPath)
	if err != nil {
		return networkError(err)
	}
	if res.StatusCode() != http.StatusOK {
		return remoteError(res)
	}
	slog.Info("analyst feedback sent", "op", "feedback", "request_id", requestID, "positive", positive)
	return nil
}

func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	cred, err := c.session.Credential(ctx)
	if err != nil {
		return nil, authError(err)
	}
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", cred.Header())
	if cred.TokenType != "" {
		req.SetHeader("X-Snowflake-Authorization-Token-Type", cred.TokenType)
	}
	return req, nil
}
