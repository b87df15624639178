package analyst

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Placeholder is an offline analyst for development and demos. It never
// leaves the process.
type Placeholder struct {
	latency time.Duration
}

var _ Analyst = (*Placeholder)(nil)

func NewPlaceholder() *Placeholder {
	return &Placeholder{latency: 300 * time.Millisecond}
}

func (p *Placeholder) Name() string {
	return "placeholder"
}

func (p *Placeholder) Send(ctx context.Context, messages []Message, model string) (*Response, error) {
	// Simulate network latency
	select {
	case <-time.After(p.latency):
	case <-ctx.Done():
		return nil, networkError(ctx.Err())
	}

	var question string
	if n := len(messages); n > 0 {
		question = messages[n-1].PlainText()
	}
	view := model
	if i := strings.LastIndex(model, "."); i >= 0 {
		view = model[i+1:]
	}

	content := []ContentItem{
		Text{Text: fmt.Sprintf("[Placeholder analyst] You asked about %s: %q. "+
			"Set analyst.mode to cortex to get real answers.", model, question)},
	}
	if len(messages) <= 1 {
		content = append(content, Suggestions{Suggestions: []string{
			"How many rows are in " + view + "?",
			"Show the first 10 rows of " + view,
		}})
	} else {
		content = append(content, SQL{Statement: "SELECT COUNT(*) AS row_count FROM " + model})
	}

	rid := uuid.NewString()
	return &Response{
		Message:   Message{Role: RoleAnalyst, Content: content, RequestID: rid},
		RequestID: rid,
	}, nil
}

func (p *Placeholder) SendFeedback(ctx context.Context, requestID string, positive bool, note string) error {
	slog.Info("placeholder feedback", "request_id", requestID, "positive", positive)
	return nil
}
