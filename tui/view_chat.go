// view_chat.go is the main screen: a sidebar with the session and the
// semantic models, the transcript, warnings, and the input line.
//
// The transcript is re-rendered from a conversation snapshot on every
// change. Analyst turns and SQL executions run as tea.Cmds.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DachengChen/paiCortex/analyst"
	"github.com/DachengChen/paiCortex/conversation"
	"github.com/DachengChen/paiCortex/query"
	"github.com/DachengChen/paiCortex/warehouse"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	sidebarWidth  = 32
	toastDuration = 4 * time.Second
)

type chatFocus int

const (
	focusInput chatFocus = iota
	focusTranscript
	focusSidebar
	focusCount
)

// ChatView is the conversation screen.
type ChatView struct {
	conv    *conversation.Conversation
	analyst analyst.Analyst
	bridge  *query.Bridge
	info    warehouse.SessionInfo

	models      []string
	modelCursor int
	modelsErr   error
	discovering bool

	state      conversation.State
	transcript *transcriptState
	items      []selectable
	selected   int
	viewport   *Viewport

	focus     chatFocus
	input     string
	statusMsg string
	toast     string
	toastID   int

	width  int
	height int
}

func NewChatView(conv *conversation.Conversation, a analyst.Analyst, bridge *query.Bridge, info warehouse.SessionInfo) *ChatView {
	v := &ChatView{
		conv:        conv,
		analyst:     a,
		bridge:      bridge,
		info:        info,
		transcript:  newTranscriptState(),
		selected:    -1,
		viewport:    NewViewport(80, 20),
		discovering: true,
	}
	v.refresh()
	return v
}

func (v *ChatView) Name() string { return "Chat" }

func (v *ChatView) WantsTextInput() bool { return v.focus == focusInput }

func (v *ChatView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.viewport.SetSize(v.transcriptWidth(), v.transcriptHeight())
	v.refresh()
}

func (v *ChatView) transcriptWidth() int {
	w := v.width - sidebarWidth - 3
	if w < 20 {
		w = 20
	}
	return w
}

func (v *ChatView) transcriptHeight() int {
	h := v.height - 2 - len(v.state.Warnings)
	if h < 3 {
		h = 3
	}
	return h
}

func (v *ChatView) ShortHelp() []KeyBinding {
	common := []KeyBinding{
		{Key: "Tab", Desc: "focus"},
		{Key: "Ctrl+L", Desc: "clear"},
		{Key: "Ctrl+O", Desc: "logout"},
	}
	switch v.focus {
	case focusTranscript:
		return append([]KeyBinding{
			{Key: "↑/↓", Desc: "select"},
			{Key: "Enter", Desc: "open"},
			{Key: "t", Desc: "data/chart"},
			{Key: "x/y/c", Desc: "axes/type"},
			{Key: "+/-", Desc: "feedback"},
		}, common...)
	case focusSidebar:
		return append([]KeyBinding{
			{Key: "↑/↓", Desc: "model"},
			{Key: "Enter", Desc: "select"},
		}, common...)
	default:
		return append([]KeyBinding{{Key: "Enter", Desc: "send"}}, common...)
	}
}

// Init starts semantic model discovery.
func (v *ChatView) Init() tea.Cmd {
	return nil
}

func (v *ChatView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return v.handleKey(msg)

	case ModelsMsg:
		return v, v.setModels(msg)

	case StateChangedMsg:
		v.refresh()
		return v, nil

	case TurnDoneMsg:
		v.refresh()
		var cmds []tea.Cmd
		if v.conv.TakeErrorNotification() {
			cmds = append(cmds, v.showToast("🚨 An API error has occurred!"))
		}
		cmds = append(cmds, v.executePending())
		if v.state.ActiveSuggestion != "" {
			cmds = append(cmds, v.submit(""))
		}
		return v, tea.Batch(cmds...)

	case QueryResultMsg:
		res := v.transcript.results[msg.Key]
		if res == nil {
			return v, nil
		}
		res.loading = false
		res.cached = msg.Cached
		res.table = msg.Table
		res.err = msg.Err
		res.x, res.y = defaultAxes(msg.Table)
		v.refresh()
		return v, nil

	case FeedbackMsg:
		if msg.Err != nil {
			v.statusMsg = "feedback failed: " + msg.Err.Error()
		} else {
			v.transcript.feedback[msg.RequestID] = msg.Positive
			v.statusMsg = "Feedback sent, thank you."
		}
		v.refresh()
		return v, nil

	case toastExpiredMsg:
		if msg.id == v.toastID {
			v.toast = ""
		}
		return v, nil
	}
	return v, nil
}

func (v *ChatView) handleKey(msg tea.KeyMsg) (View, tea.Cmd) {
	switch msg.String() {
	case "tab":
		v.focus = (v.focus + 1) % focusCount
		return v, nil
	case "shift+tab":
		v.focus = (v.focus + focusCount - 1) % focusCount
		return v, nil
	case "ctrl+l":
		v.conv.Reset()
		v.clearTranscript()
		return v, v.bootstrap()
	case "ctrl+o":
		return v, func() tea.Msg { return LogoutMsg{} }
	case "pgup":
		v.viewport.PageUp()
		return v, nil
	case "pgdown":
		v.viewport.PageDown()
		return v, nil
	}

	switch v.focus {
	case focusSidebar:
		return v.handleSidebarKey(msg)
	case focusTranscript:
		return v.handleTranscriptKey(msg)
	default:
		return v.handleInputKey(msg)
	}
}

func (v *ChatView) handleInputKey(msg tea.KeyMsg) (View, tea.Cmd) {
	switch msg.String() {
	case "enter":
		return v, v.submit(strings.TrimSpace(v.input))
	case "backspace":
		if r := []rune(v.input); len(r) > 0 {
			v.input = string(r[:len(r)-1])
		}
	case "ctrl+u":
		v.input = ""
	case "up":
		v.viewport.ScrollUp(1)
	case "down":
		v.viewport.ScrollDown(1)
	default:
		if msg.Type == tea.KeyRunes {
			v.input += string(msg.Runes)
		} else if msg.Type == tea.KeySpace {
			v.input += " "
		}
	}
	return v, nil
}

func (v *ChatView) handleSidebarKey(msg tea.KeyMsg) (View, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if v.modelCursor > 0 {
			v.modelCursor--
		}
	case "down", "j":
		if v.modelCursor < len(v.models)-1 {
			v.modelCursor++
		}
	case "enter":
		if v.modelCursor < len(v.models) {
			return v, v.selectModel(v.models[v.modelCursor])
		}
	}
	return v, nil
}

func (v *ChatView) handleTranscriptKey(msg tea.KeyMsg) (View, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if v.selected > 0 {
			v.selected--
		} else if len(v.items) > 0 {
			v.selected = 0
		}
	case "down", "j":
		if v.selected < len(v.items)-1 {
			v.selected++
		}
	case "home":
		v.viewport.Home()
		return v, nil
	case "end":
		v.viewport.End()
		return v, nil
	case "enter", " ":
		return v, v.activate()
	case "t":
		if res := v.selectedResult(); res != nil {
			res.showChart = !res.showChart
		}
	case "x":
		if res := v.selectedResult(); res != nil && res.table != nil {
			res.x = nextAxis(res.table, res.x, res.y)
		}
	case "y":
		if res := v.selectedResult(); res != nil && res.table != nil {
			res.y = nextAxis(res.table, res.y, res.x)
		}
	case "c":
		if res := v.selectedResult(); res != nil {
			res.kind = (res.kind + 1) % 2
		}
	case "+", "=":
		return v, v.sendFeedback(true)
	case "-":
		return v, v.sendFeedback(false)
	default:
		return v, nil
	}
	v.refresh()
	return v, nil
}

// activate runs the selected element: a suggestion is queued and
// submitted, an SQL expander toggles, a result panel flips Data/Chart.
func (v *ChatView) activate() tea.Cmd {
	if v.selected < 0 || v.selected >= len(v.items) {
		return nil
	}
	item := v.items[v.selected]
	switch item.kind {
	case itemSuggestion:
		v.conv.SelectSuggestion(item.text)
		return v.submit("")
	case itemSQL:
		v.transcript.expanded[item.key] = !v.transcript.expanded[item.key]
	case itemResult:
		if res := v.transcript.results[item.key]; res != nil {
			res.showChart = !res.showChart
		}
	}
	v.refresh()
	return nil
}

func (v *ChatView) selectedResult() *resultView {
	if v.selected < 0 || v.selected >= len(v.items) {
		return nil
	}
	item := v.items[v.selected]
	if item.kind == itemSQL || item.kind == itemResult {
		return v.transcript.results[item.key]
	}
	return nil
}

// submit runs one input cycle: typed text, else the queued suggestion.
func (v *ChatView) submit(typed string) tea.Cmd {
	turn, err := v.conv.BeginInput(typed)
	switch {
	case turn == nil && err == nil:
		return nil
	case errors.Is(err, conversation.ErrBusy):
		v.statusMsg = "Still waiting for the previous answer."
		return nil
	case errors.Is(err, conversation.ErrNoModel):
		v.statusMsg = "Select a semantic model first."
		v.focus = focusSidebar
		return nil
	case err != nil:
		return nil
	}
	if typed != "" {
		v.input = ""
	}
	v.statusMsg = ""
	v.viewport.End()
	v.refresh()
	return runTurn(turn)
}

func runTurn(turn *conversation.Turn) tea.Cmd {
	return func() tea.Msg {
		_, err := turn.Run(context.Background())
		return TurnDoneMsg{Err: err}
	}
}

// bootstrap issues the introductory prompt once per fresh conversation.
func (v *ChatView) bootstrap() tea.Cmd {
	turn, ok := v.conv.BeginBootstrap()
	v.refresh()
	if !ok {
		return nil
	}
	return runTurn(turn)
}

func (v *ChatView) selectModel(model string) tea.Cmd {
	if v.conv.SetModel(model) {
		v.bridge.Purge()
		v.clearTranscript()
	}
	v.focus = focusInput
	return v.bootstrap()
}

func (v *ChatView) clearTranscript() {
	v.transcript = newTranscriptState()
	v.selected = -1
	v.statusMsg = ""
	v.viewport.End()
	v.refresh()
}

// setModels installs the discovered semantic views and selects the
// preselected one (or the only one).
func (v *ChatView) setModels(msg ModelsMsg) tea.Cmd {
	v.discovering = false
	v.models = msg.Models
	v.modelsErr = msg.Err

	current := v.conv.Model()
	for i, m := range v.models {
		if strings.EqualFold(m, current) {
			v.modelCursor = i
		}
	}
	if current == "" && len(v.models) == 1 {
		return v.selectModel(v.models[0])
	}
	if current == "" {
		v.focus = focusSidebar
		return nil
	}
	return v.bootstrap()
}

// executePending starts execution for every SQL item without a result.
func (v *ChatView) executePending() tea.Cmd {
	var cmds []tea.Cmd
	for mi, m := range v.state.Messages {
		for ii, item := range m.Content {
			sql, ok := item.(analyst.SQL)
			if !ok {
				continue
			}
			key := resultKey{Msg: mi, Item: ii}
			if _, started := v.transcript.results[key]; started {
				continue
			}
			v.transcript.results[key] = &resultView{loading: true}
			cmds = append(cmds, v.execute(key, sql.Statement))
		}
	}
	v.refresh()
	return tea.Batch(cmds...)
}

func (v *ChatView) execute(key resultKey, statement string) tea.Cmd {
	bridge := v.bridge
	return func() tea.Msg {
		cached := bridge.Cached(statement)
		t, err := bridge.Execute(context.Background(), statement)
		return QueryResultMsg{Key: key, Table: t, Cached: cached && err == nil, Err: err}
	}
}

// sendFeedback rates the message of the selected element, or the latest
// analyst reply.
func (v *ChatView) sendFeedback(positive bool) tea.Cmd {
	mi := len(v.state.Messages) - 1
	if v.selected >= 0 && v.selected < len(v.items) {
		mi = v.items[v.selected].key.Msg
	}
	for ; mi >= 0; mi-- {
		if v.state.Messages[mi].Role == analyst.RoleAnalyst {
			break
		}
	}
	if mi < 0 {
		return nil
	}
	rid := v.state.Messages[mi].RequestID
	if rid == "" || rid == analyst.NoRequestID {
		v.statusMsg = "This reply has no request id to rate."
		return nil
	}
	a := v.analyst
	return func() tea.Msg {
		err := a.SendFeedback(context.Background(), rid, positive, "")
		return FeedbackMsg{RequestID: rid, Positive: positive, Err: err}
	}
}

func (v *ChatView) showToast(text string) tea.Cmd {
	v.toastID++
	v.toast = text
	id := v.toastID
	return tea.Tick(toastDuration, func(time.Time) tea.Msg {
		return toastExpiredMsg{id: id}
	})
}

// refresh re-renders the transcript from a fresh snapshot.
func (v *ChatView) refresh() {
	v.state = v.conv.Snapshot()
	v.viewport.SetSize(v.transcriptWidth(), v.transcriptHeight())

	var lines []string
	lines, v.items = v.transcript.render(v.state, v.transcriptWidth(), v.selected)
	if v.selected >= len(v.items) {
		v.selected = len(v.items) - 1
	}
	v.viewport.SetLines(lines)
	if v.focus == focusTranscript && v.selected >= 0 && v.selected < len(v.items) {
		v.viewport.Reveal(v.items[v.selected].from, v.items[v.selected].to)
	}
}

// Toast returns the pending error notification, if any.
func (v *ChatView) Toast() string { return v.toast }

// Status returns the transient status line.
func (v *ChatView) Status() string { return v.statusMsg }

func (v *ChatView) View() string {
	sidebar := v.renderSidebar()

	var right []string
	right = append(right, v.viewport.Render())
	for _, w := range v.state.Warnings {
		right = append(right, StyleWarning.Render("⚠ "+w.Message))
	}

	prompt := StylePrompt.Render("Ask> ")
	switch {
	case v.state.Awaiting:
		prompt += StyleDimmed.Render("waiting for response...")
	case v.focus == focusInput:
		prompt += v.input + "█"
	case v.input != "":
		prompt += StyleDimmed.Render(v.input)
	default:
		prompt += StyleDimmed.Render("What is your question?")
	}
	right = append(right, StyleDimmed.Render(strings.Repeat("─", v.transcriptWidth())), prompt)

	main := lipgloss.NewStyle().
		Width(v.transcriptWidth()).
		Height(v.height).
		PaddingLeft(1).
		Render(strings.Join(right, "\n"))

	return lipgloss.JoinHorizontal(lipgloss.Top, sidebar, main)
}

func (v *ChatView) renderSidebar() string {
	title := StyleBold
	if v.focus == focusSidebar {
		title = StyleListItemActive
	}

	lines := []string{
		StyleBold.Render("Session"),
		StyleDimmed.Render("user      ") + v.info.User,
		StyleDimmed.Render("account   ") + v.info.Account,
	}
	if v.info.Role != "" {
		lines = append(lines, StyleDimmed.Render("role      ")+v.info.Role)
	}
	if v.info.Warehouse != "" {
		lines = append(lines, StyleDimmed.Render("warehouse ")+v.info.Warehouse)
	}
	lines = append(lines, StyleDimmed.Render("analyst   ")+v.analyst.Name(), "", title.Render("Semantic models"))

	switch {
	case v.discovering:
		lines = append(lines, StyleDimmed.Render("⏳ discovering..."))
	case len(v.models) == 0:
		lines = append(lines, StyleWarning.Render("⚠ No semantic views found."))
		if v.modelsErr != nil {
			lines = append(lines, StyleDimmed.Render(clip(v.modelsErr.Error(), 3*(sidebarWidth-4))))
		}
	}

	current := v.conv.Model()
	for i, m := range v.models {
		name := clip(m, sidebarWidth-6)
		marker := "  "
		if strings.EqualFold(m, current) {
			marker = "● "
		}
		switch {
		case i == v.modelCursor && v.focus == focusSidebar:
			lines = append(lines, StyleSelected.Render(marker+name))
		case strings.EqualFold(m, current):
			lines = append(lines, StyleSuccess.Render(marker+name))
		default:
			lines = append(lines, StyleDimmed.Render(marker+name))
		}
	}
	if current != "" && !containsFold(v.models, current) {
		lines = append(lines, StyleSuccess.Render("● "+clip(current, sidebarWidth-6)))
	}

	if n := len(v.state.Messages); n > 0 {
		lines = append(lines, "", StyleDimmed.Render(fmt.Sprintf("%d message(s)", n)))
	}

	return lipgloss.NewStyle().
		Width(sidebarWidth).
		Height(v.height).
		Border(lipgloss.NormalBorder(), false, true, false, false).
		BorderForeground(ColorSecondary).
		PaddingRight(1).
		Render(strings.Join(lines, "\n"))
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
