// Package transcript archives completed conversations in a local BoltDB
// file so they can be listed and reopened from the CLI.
package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/DachengChen/paiCortex/analyst"
	"github.com/DachengChen/paiCortex/conversation"
	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("transcripts")

// ErrNotFound is returned by Get for unknown ids.
var ErrNotFound = errors.New("transcript not found")

// Record is one archived conversation.
type Record struct {
	ID        string
	Model     string
	User      string
	StartedAt time.Time
	UpdatedAt time.Time
	Messages  []analyst.Message
}

// Title is the first user prompt, shortened for listings.
func (r Record) Title() string {
	for _, m := range r.Messages {
		if m.Role == analyst.RoleUser {
			return truncate(m.PlainText(), 60)
		}
	}
	return "(empty)"
}

type recordJSON struct {
	ID        string          `json:"id"`
	Model     string          `json:"model"`
	User      string          `json:"user,omitempty"`
	StartedAt time.Time       `json:"started_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Messages  []messageRecord `json:"messages"`
}

// messageRecord keeps the request id, which the wire format omits.
type messageRecord struct {
	Role      string            `json:"role"`
	Content   []json.RawMessage `json:"content"`
	RequestID string            `json:"request_id,omitempty"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		ID:        r.ID,
		Model:     r.Model,
		User:      r.User,
		StartedAt: r.StartedAt,
		UpdatedAt: r.UpdatedAt,
		Messages:  make([]messageRecord, 0, len(r.Messages)),
	}
	for _, m := range r.Messages {
		mr := messageRecord{Role: m.Role, RequestID: m.RequestID}
		for _, item := range m.Content {
			raw, err := json.Marshal(item)
			if err != nil {
				return nil, err
			}
			mr.Content = append(mr.Content, raw)
		}
		out.Messages = append(out.Messages, mr)
	}
	return json.Marshal(out)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var in recordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = Record{
		ID:        in.ID,
		Model:     in.Model,
		User:      in.User,
		StartedAt: in.StartedAt,
		UpdatedAt: in.UpdatedAt,
		Messages:  make([]analyst.Message, 0, len(in.Messages)),
	}
	for _, mr := range in.Messages {
		m := analyst.Message{Role: mr.Role, RequestID: mr.RequestID}
		for _, raw := range mr.Content {
			item, err := analyst.DecodeContent(raw)
			if err != nil {
				return err
			}
			m.Content = append(m.Content, item)
		}
		r.Messages = append(r.Messages, m)
	}
	return nil
}

// Store is a BoltDB-backed transcript archive.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if needed) the archive at path. Only one process
// can hold the file; a second opener fails after a short timeout.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open transcripts %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Save inserts or replaces r.
func (s *Store) Save(r Record) error {
	enc, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(r.ID), enc)
	})
}

// Get loads one transcript.
func (s *Store) Get(id string) (Record, error) {
	var r Record
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get([]byte(id))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &r)
	})
	return r, err
}

// List returns every transcript, most recently updated first. Malformed
// entries are skipped.
func (s *Store) List() ([]Record, error) {
	var out []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).ForEach(func(k, v []byte) error {
			var r Record
			if err := json.Unmarshal(v, &r); err != nil {
				return nil
			}
			out = append(out, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b Record) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	return out, nil
}

// Close releases the file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// Recorder adapts the store to conversation.Recorder, stamping records
// with user.
func (s *Store) Recorder(user string) conversation.Recorder {
	return recorder{store: s, user: user}
}

type recorder struct {
	store *Store
	user  string
}

func (r recorder) Record(st conversation.State) error {
	return r.store.Save(Record{
		ID:        st.ID,
		Model:     st.Model,
		User:      r.user,
		StartedAt: st.StartedAt,
		UpdatedAt: st.UpdatedAt,
		Messages:  st.Messages,
	})
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
