package analyst

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageDecode(t *testing.T) {
	raw := `{
		"role": "analyst",
		"content": [
			{"type": "text", "text": "This is our interpretation."},
			{"type": "sql", "statement": "SELECT 1", "confidence": {"verified_query_used": {
				"name": "daily", "question": "daily revenue?", "verified_by": "ana", "sql": "SELECT 1", "verified_at": 1714497970
			}}},
			{"type": "suggestions", "suggestions": ["a", "b"]},
			{"type": "chart", "spec": {"mark": "bar"}}
		]
	}`

	var m Message
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	require.Len(t, m.Content, 4)

	assert.Equal(t, Text{Text: "This is our interpretation."}, m.Content[0])

	sql, ok := m.Content[1].(SQL)
	require.True(t, ok)
	assert.Equal(t, "SELECT 1", sql.Statement)
	require.NotNil(t, sql.Confidence)
	require.NotNil(t, sql.Confidence.VerifiedQueryUsed)
	assert.Equal(t, "daily", sql.Confidence.VerifiedQueryUsed.Name)
	assert.Equal(t, int64(1714497970), sql.Confidence.VerifiedQueryUsed.VerifiedAt)

	assert.Equal(t, Suggestions{Suggestions: []string{"a", "b"}}, m.Content[2])

	unknown, ok := m.Content[3].(Unknown)
	require.True(t, ok)
	assert.Equal(t, "chart", unknown.Kind())
	assert.JSONEq(t, `{"type": "chart", "spec": {"mark": "bar"}}`, string(unknown.Raw))
}

func TestMessageDecodeMissingType(t *testing.T) {
	var m Message
	err := json.Unmarshal([]byte(`{"role":"analyst","content":[{"text":"x"}]}`), &m)
	assert.Error(t, err)
}

func TestMessageEncodeOmitsRequestID(t *testing.T) {
	m := Message{
		Role:      RoleAnalyst,
		RequestID: "abc",
		Content: []ContentItem{
			Text{Text: "hi"},
			SQL{Statement: "SELECT 1"},
			Suggestions{},
			Unknown{Type: "chart", Raw: json.RawMessage(`{"type":"chart","spec":{}}`)},
		},
	}
	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"role": "analyst",
		"content": [
			{"type": "text", "text": "hi"},
			{"type": "sql", "statement": "SELECT 1"},
			{"type": "suggestions", "suggestions": []},
			{"type": "chart", "spec": {}}
		]
	}`, string(data))
}

func TestMessageClone(t *testing.T) {
	m := Message{Role: RoleAnalyst, Content: []ContentItem{
		Suggestions{Suggestions: []string{"a"}},
		SQL{Statement: "SELECT 1", Confidence: &Confidence{VerifiedQueryUsed: &VerifiedQuery{Name: "q"}}},
	}}
	c := m.Clone()

	m.Content[0].(Suggestions).Suggestions[0] = "changed"
	m.Content[1].(SQL).Confidence.VerifiedQueryUsed.Name = "changed"

	assert.Equal(t, "a", c.Content[0].(Suggestions).Suggestions[0])
	assert.Equal(t, "q", c.Content[1].(SQL).Confidence.VerifiedQueryUsed.Name)
}

func TestPlainText(t *testing.T) {
	m := Message{Content: []ContentItem{Text{Text: "one"}, SQL{Statement: "x"}, Text{Text: "two"}}}
	assert.Equal(t, "one\ntwo", m.PlainText())
	assert.Equal(t, "hello", NewUserMessage("hello").PlainText())
}
