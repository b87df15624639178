package analyst

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Roles of a conversation turn.
const (
	RoleUser    = "user"
	RoleAnalyst = "analyst"
)

// NoRequestID marks analyst turns that never got a remote request id.
const NoRequestID = "N/A"

// Message is one turn of the conversation. RequestID is local bookkeeping
// and is never sent back to the analyst.
type Message struct {
	Role      string        `json:"role"`
	Content   []ContentItem `json:"content"`
	RequestID string        `json:"-"`
}

// ContentItem is one element of a message: Text, Suggestions, SQL or Unknown.
type ContentItem interface {
	Kind() string
}

// Text is prose from the user or the analyst.
type Text struct {
	Text string
}

// Suggestions are follow-up questions the user can pick.
type Suggestions struct {
	Suggestions []string
}

// SQL is a statement generated by the analyst.
type SQL struct {
	Statement  string
	Confidence *Confidence
}

// Unknown keeps content types this client does not understand so they can
// be replayed verbatim in the history.
type Unknown struct {
	Type string
	Raw  json.RawMessage
}

// Confidence describes how a SQL statement was produced.
type Confidence struct {
	VerifiedQueryUsed *VerifiedQuery `json:"verified_query_used,omitempty"`
}

// VerifiedQuery is a curated query the analyst reused.
type VerifiedQuery struct {
	Name       string `json:"name"`
	Question   string `json:"question"`
	VerifiedBy string `json:"verified_by"`
	SQL        string `json:"sql"`
	VerifiedAt int64  `json:"verified_at,omitempty"`
}

func (Text) Kind() string        { return "text" }
func (Suggestions) Kind() string { return "suggestions" }
func (SQL) Kind() string         { return "sql" }
func (u Unknown) Kind() string   { return u.Type }

func (t Text) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{"text", t.Text})
}

func (s Suggestions) MarshalJSON() ([]byte, error) {
	list := s.Suggestions
	if list == nil {
		list = []string{}
	}
	return json.Marshal(struct {
		Type        string   `json:"type"`
		Suggestions []string `json:"suggestions"`
	}{"suggestions", list})
}

func (s SQL) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type       string      `json:"type"`
		Statement  string      `json:"statement"`
		Confidence *Confidence `json:"confidence,omitempty"`
	}{"sql", s.Statement, s.Confidence})
}

func (u Unknown) MarshalJSON() ([]byte, error) {
	if len(u.Raw) == 0 {
		return json.Marshal(map[string]string{"type": u.Type})
	}
	return u.Raw, nil
}

// NewUserMessage wraps a prompt as a user turn.
func NewUserMessage(prompt string) Message {
	return Message{Role: RoleUser, Content: []ContentItem{Text{Text: prompt}}}
}

// DecodeContent decodes one content element by its type tag.
func DecodeContent(raw json.RawMessage) (ContentItem, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}

	switch head.Type {
	case "":
		return nil, errors.New("content item has no type")
	case "text":
		var v struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("text item: %w", err)
		}
		return Text{Text: v.Text}, nil
	case "suggestions":
		var v struct {
			Suggestions []string `json:"suggestions"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("suggestions item: %w", err)
		}
		return Suggestions{Suggestions: v.Suggestions}, nil
	case "sql":
		var v struct {
			Statement  string      `json:"statement"`
			Confidence *Confidence `json:"confidence"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("sql item: %w", err)
		}
		return SQL{Statement: v.Statement, Confidence: v.Confidence}, nil
	default:
		return Unknown{Type: head.Type, Raw: append(json.RawMessage(nil), raw...)}, nil
	}
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var wire struct {
		Role    string            `json:"role"`
		Content []json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	m.Role = wire.Role
	m.Content = make([]ContentItem, 0, len(wire.Content))
	for i, raw := range wire.Content {
		item, err := DecodeContent(raw)
		if err != nil {
			return fmt.Errorf("content[%d]: %w", i, err)
		}
		m.Content = append(m.Content, item)
	}
	return nil
}

// Clone returns a deep copy.
func (m Message) Clone() Message {
	out := Message{Role: m.Role, RequestID: m.RequestID, Content: make([]ContentItem, len(m.Content))}
	for i, item := range m.Content {
		switch v := item.(type) {
		case Suggestions:
			out.Content[i] = Suggestions{Suggestions: append([]string(nil), v.Suggestions...)}
		case SQL:
			if v.Confidence != nil {
				c := *v.Confidence
				if c.VerifiedQueryUsed != nil {
					vq := *c.VerifiedQueryUsed
					c.VerifiedQueryUsed = &vq
				}
				v.Confidence = &c
			}
			out.Content[i] = v
		case Unknown:
			out.Content[i] = Unknown{Type: v.Type, Raw: append(json.RawMessage(nil), v.Raw...)}
		default:
			out.Content[i] = item
		}
	}
	return out
}

// PlainText joins every Text item of the message.
func (m Message) PlainText() string {
	var out string
	for _, item := range m.Content {
		if t, ok := item.(Text); ok {
			if out != "" {
				out += "\n"
			}
			out += t.Text
		}
	}
	return out
}
