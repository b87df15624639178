// Package analyst talks to the hosted natural-language-to-SQL service.
//
// Every call carries the full conversation history; the service is
// stateless between calls. Failures never escape as raw transport errors:
// Send always reports them as *Error carrying the user-facing text and
// whatever request id and warnings the service returned.
package analyst

import (
	"context"
	"fmt"

	"github.com/DachengChen/paiCortex/config"
	"github.com/DachengChen/paiCortex/warehouse"
)

// Analyst is the interface all analyst backends implement.
type Analyst interface {
	// Send submits the conversation for the semantic model and returns the
	// analyst's reply. A non-nil error is always an *Error.
	Send(ctx context.Context, messages []Message, model string) (*Response, error)

	// SendFeedback rates a previous reply.
	SendFeedback(ctx context.Context, requestID string, positive bool, note string) error

	// Name returns the backend name for display.
	Name() string
}

// Response is a successful analyst reply.
type Response struct {
	Message   Message   `json:"message"`
	RequestID string    `json:"request_id"`
	Warnings  []Warning `json:"warnings,omitempty"`
}

// Warning is a non-fatal notice attached to a reply.
type Warning struct {
	Message string `json:"message"`
}

// Error is a failed analyst call. Code is the HTTP status, 0 when the
// request never got an answer.
type Error struct {
	Code      int
	Text      string
	RequestID string
	Warnings  []Warning
}

func (e *Error) Error() string { return e.Text }

func networkError(err error) *Error {
	return &Error{Text: fmt.Sprintf("network error: %v", err), RequestID: NoRequestID}
}

func authError(err error) *Error {
	return &Error{Text: fmt.Sprintf("authentication error: %v", err), RequestID: NoRequestID}
}

// New returns the analyst selected by cfg.Mode.
func New(cfg config.AnalystConfig, session warehouse.Session) (Analyst, error) {
	switch cfg.Mode {
	case config.AnalystPlaceholder:
		return NewPlaceholder(), nil
	case config.AnalystCortex, "":
		if session == nil {
			return nil, warehouse.ErrNoSession
		}
		return NewClient(session), nil
	default:
		return nil, fmt.Errorf("unknown analyst mode %q. Supported: cortex, placeholder", cfg.Mode)
	}
}
