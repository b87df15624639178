// Package conversation holds the chat state shared by every front end:
// the message log, the queued suggestion, the latest warnings and the
// one-shot error flag.
//
// A conversation is Idle or Awaiting. Begin moves it to Awaiting and
// returns a Turn; Turn.Run calls the analyst and moves it back to Idle.
// Reset bumps a generation counter so a turn that completes after a reset
// is dropped instead of landing in the new conversation.
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/DachengChen/paiCortex/analyst"
	"github.com/google/uuid"
)

// BootstrapPrompt is submitted once on a fresh conversation so the analyst
// introduces the selected semantic model.
const BootstrapPrompt = "What questions can I ask?"

var (
	ErrEmptyPrompt = errors.New("prompt is empty")
	ErrNoModel     = errors.New("no semantic model selected")
	ErrBusy        = errors.New("a request is already in flight")
	// ErrStale is returned by Turn.Run when the conversation was reset
	// while the request was in flight.
	ErrStale = errors.New("conversation was reset")
)

// State is a point-in-time copy of a conversation.
type State struct {
	ID               string
	Model            string
	Messages         []analyst.Message
	ActiveSuggestion string
	Warnings         []analyst.Warning
	LastError        bool
	Awaiting         bool
	Generation       uint64
	StartedAt        time.Time
	UpdatedAt        time.Time
}

// Recorder persists a conversation after each completed turn.
type Recorder interface {
	Record(s State) error
}

// Option configures a Conversation.
type Option func(*Conversation)

// WithModel preselects the semantic model.
func WithModel(model string) Option {
	return func(c *Conversation) { c.state.Model = model }
}

// WithRecorder archives every completed turn.
func WithRecorder(r Recorder) Option {
	return func(c *Conversation) { c.recorder = r }
}

// Conversation is safe for concurrent use.
type Conversation struct {
	analyst  analyst.Analyst
	recorder Recorder
	now      func() time.Time

	mu           sync.Mutex
	state        State
	bootstrapped bool
	subs         map[int]func(State)
	nextSub      int
}

// New creates an empty conversation backed by a.
func New(a analyst.Analyst, opts ...Option) *Conversation {
	c := &Conversation{
		analyst: a,
		now:     time.Now,
		subs:    map[int]func(State){},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.state.ID = uuid.NewString()
	c.state.StartedAt = c.now()
	return c
}

// Turn is one submitted prompt awaiting the analyst's reply.
type Turn struct {
	c       *Conversation
	gen     uint64
	model   string
	history []analyst.Message
}

// Begin appends the user prompt and enters Awaiting.
func (c *Conversation) Begin(prompt string) (*Turn, error) {
	c.mu.Lock()
	t, err := c.beginLocked(prompt)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	c.notify()
	return t, nil
}

func (c *Conversation) beginLocked(prompt string) (*Turn, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	if c.state.Model == "" {
		return nil, ErrNoModel
	}
	if c.state.Awaiting {
		return nil, ErrBusy
	}

	c.state.Warnings = nil
	c.state.Messages = append(c.state.Messages, analyst.NewUserMessage(prompt))
	c.state.Awaiting = true
	c.state.UpdatedAt = c.now()

	history := make([]analyst.Message, len(c.state.Messages))
	for i, m := range c.state.Messages {
		history[i] = m.Clone()
	}
	return &Turn{c: c, gen: c.state.Generation, model: c.state.Model, history: history}, nil
}

// Run sends the history to the analyst and appends its reply, or the error
// text when the call failed. The returned message is the appended one.
func (t *Turn) Run(ctx context.Context) (analyst.Message, error) {
	c := t.c
	var reply analyst.Message
	var warnings []analyst.Warning
	failed := false

	resp, err := c.analyst.Send(ctx, t.history, t.model)
	if err != nil {
		aerr := asAnalystError(err)
		failed = true
		reply = analyst.Message{
			Role:      analyst.RoleAnalyst,
			Content:   []analyst.ContentItem{analyst.Text{Text: aerr.Text}},
			RequestID: aerr.RequestID,
		}
		warnings = aerr.Warnings
	} else {
		reply = resp.Message
		reply.Role = analyst.RoleAnalyst
		reply.RequestID = resp.RequestID
		warnings = resp.Warnings
	}

	c.mu.Lock()
	if c.state.Generation != t.gen {
		c.mu.Unlock()
		slog.Debug("dropping reply for reset conversation", "request_id", reply.RequestID)
		return reply, ErrStale
	}
	c.state.Messages = append(c.state.Messages, reply)
	if len(warnings) > 0 {
		c.state.Warnings = append([]analyst.Warning(nil), warnings...)
	}
	if failed {
		c.state.LastError = true
	}
	c.state.Awaiting = false
	c.state.UpdatedAt = c.now()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if c.recorder != nil {
		if err := c.recorder.Record(snap); err != nil {
			slog.Warn("archive conversation", "id", snap.ID, "error", err)
		}
	}
	c.notify()
	return reply, nil
}

// asAnalystError normalises foreign errors from custom Analyst
// implementations.
func asAnalystError(err error) *analyst.Error {
	var aerr *analyst.Error
	if errors.As(err, &aerr) {
		return aerr
	}
	return &analyst.Error{Text: "network error: " + err.Error(), RequestID: analyst.NoRequestID}
}

// Submit is Begin followed by Run.
func (c *Conversation) Submit(ctx context.Context, prompt string) (analyst.Message, error) {
	t, err := c.Begin(prompt)
	if err != nil {
		return analyst.Message{}, err
	}
	return t.Run(ctx)
}

// SelectSuggestion queues text as the next prompt.
func (c *Conversation) SelectSuggestion(text string) {
	c.mu.Lock()
	c.state.ActiveSuggestion = text
	c.mu.Unlock()
	c.notify()
}

// TakeInput resolves the next prompt: typed text wins, otherwise the queued
// suggestion is consumed.
func (c *Conversation) TakeInput(typed string) (string, bool) {
	if typed != "" {
		return typed, true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.ActiveSuggestion == "" {
		return "", false
	}
	s := c.state.ActiveSuggestion
	c.state.ActiveSuggestion = ""
	return s, true
}

// BeginInput resolves the next prompt and begins its turn. A queued
// suggestion rejected with ErrBusy goes back into the queue unless another
// one was selected meanwhile. It returns nil, nil when there is nothing to
// submit.
func (c *Conversation) BeginInput(typed string) (*Turn, error) {
	prompt, ok := c.TakeInput(typed)
	if !ok {
		return nil, nil
	}
	t, err := c.Begin(prompt)
	if typed == "" && errors.Is(err, ErrBusy) {
		c.mu.Lock()
		if c.state.ActiveSuggestion == "" {
			c.state.ActiveSuggestion = prompt
		}
		c.mu.Unlock()
		c.notify()
	}
	return t, err
}

// HandleInput runs one input cycle. It reports false when there was
// nothing to submit.
func (c *Conversation) HandleInput(ctx context.Context, typed string) (bool, error) {
	t, err := c.BeginInput(typed)
	if t == nil && err == nil {
		return false, nil
	}
	if err != nil {
		return true, err
	}
	_, err = t.Run(ctx)
	return true, err
}

// Reset starts a new, empty conversation on the same model.
func (c *Conversation) Reset() {
	c.mu.Lock()
	c.resetLocked()
	c.mu.Unlock()
	c.notify()
}

func (c *Conversation) resetLocked() {
	c.state = State{
		ID:         uuid.NewString(),
		Model:      c.state.Model,
		Generation: c.state.Generation + 1,
		StartedAt:  c.now(),
	}
	c.bootstrapped = false
}

// SetModel selects the semantic model. Changing it resets the conversation.
func (c *Conversation) SetModel(model string) bool {
	c.mu.Lock()
	if model == c.state.Model {
		c.mu.Unlock()
		return false
	}
	c.state.Model = model
	c.resetLocked()
	c.mu.Unlock()

	slog.Info("semantic model selected", "model", model)
	c.notify()
	return true
}

// Model returns the selected semantic model.
func (c *Conversation) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Model
}

// BeginBootstrap begins the introductory turn if the conversation is fresh
// and has not been bootstrapped since the last reset.
func (c *Conversation) BeginBootstrap() (*Turn, bool) {
	c.mu.Lock()
	if c.bootstrapped || c.state.Model == "" || len(c.state.Messages) > 0 || c.state.Awaiting {
		c.mu.Unlock()
		return nil, false
	}
	t, err := c.beginLocked(BootstrapPrompt)
	if err != nil {
		c.mu.Unlock()
		return nil, false
	}
	c.bootstrapped = true
	c.mu.Unlock()

	c.notify()
	return t, true
}

// Bootstrap runs the introductory turn synchronously when one is due.
func (c *Conversation) Bootstrap(ctx context.Context) (bool, error) {
	t, ok := c.BeginBootstrap()
	if !ok {
		return false, nil
	}
	_, err := t.Run(ctx)
	return true, err
}

// TakeErrorNotification reports and clears the one-shot error flag.
func (c *Conversation) TakeErrorNotification() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	fired := c.state.LastError
	c.state.LastError = false
	return fired
}

// Snapshot returns a deep copy of the current state.
func (c *Conversation) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Conversation) snapshotLocked() State {
	s := c.state
	s.Messages = make([]analyst.Message, len(c.state.Messages))
	for i, m := range c.state.Messages {
		s.Messages[i] = m.Clone()
	}
	s.Warnings = append([]analyst.Warning(nil), c.state.Warnings...)
	return s
}

// Subscribe registers fn to be called with a snapshot after every state
// change. fn runs on the goroutine that made the change and must not block.
func (c *Conversation) Subscribe(fn func(State)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Conversation) notify() {
	c.mu.Lock()
	if len(c.subs) == 0 {
		c.mu.Unlock()
		return
	}
	snap := c.snapshotLocked()
	fns := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
