// app.go is the top-level Bubble Tea model that orchestrates all views.
//
// Flow:
//  1. Implicit credentials configured → open the session right away;
//     otherwise show the LoginView.
//  2. On a successful login → build analyst, query bridge and
//     conversation, switch to the ChatView and discover semantic models.
//  3. Ctrl+O logs out: the session is closed and the login form returns.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/DachengChen/paiCortex/analyst"
	"github.com/DachengChen/paiCortex/config"
	"github.com/DachengChen/paiCortex/conversation"
	"github.com/DachengChen/paiCortex/query"
	"github.com/DachengChen/paiCortex/transcript"
	"github.com/DachengChen/paiCortex/warehouse"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const appVersion = "0.1.0"

// AppPhase tracks where the user is in the login → chat flow.
type AppPhase int

const (
	PhaseLogin AppPhase = iota
	PhaseConnecting
	PhaseChat
)

// Options configures the application.
type Options struct {
	Config      *config.Config
	Profiles    *config.ProfileStore
	Transcripts *transcript.Store // nil disables archiving

	// Model preselects a semantic view, overriding analyst.semantic_view.
	Model string
	// LoginForm forces the login form even with implicit credentials.
	LoginForm bool
}

// App is the root Bubble Tea model.
type App struct {
	opts  Options
	cfg   *config.Config
	phase AppPhase

	login *LoginView
	chat  *ChatView

	session     warehouse.Session
	bridge      *query.Bridge
	unsubscribe func()

	// send delivers messages from other goroutines; set by Start.
	send        func(tea.Msg)
	openSession func(ctx context.Context, cfg config.WarehouseConfig) (warehouse.Session, error)
	newAnalyst  func(cfg config.AnalystConfig, s warehouse.Session) (analyst.Analyst, error)

	width    int
	height   int
	showHelp bool
}

// NewApp creates the application in the login phase.
func NewApp(opts Options) *App {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	return &App{
		opts:        opts,
		cfg:         cfg,
		phase:       PhaseLogin,
		login:       NewLoginView(opts.Profiles, cfg.Warehouse.Snowflake),
		openSession: warehouse.Open,
		newAnalyst:  analyst.New,
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	if a.cfg.Implicit() && !a.opts.LoginForm {
		a.phase = PhaseConnecting
		return a.open(a.cfg.Warehouse, config.ProfileFrom(a.cfg.Warehouse.Snowflake))
	}
	return a.login.Init()
}

func (a *App) open(wcfg config.WarehouseConfig, profile config.Profile) tea.Cmd {
	openSession := a.openSession
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		s, err := openSession(ctx, wcfg)
		if err != nil {
			return LoginErrorMsg{Err: err}
		}
		return LoggedInMsg{Session: s, Profile: profile}
	}
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.resize()
		return a, nil

	case loginRequestMsg:
		a.cfg.Warehouse.Driver = config.DriverSnowflake
		a.cfg.Warehouse.Snowflake = msg.Snowflake
		return a, a.open(a.cfg.Warehouse, msg.Profile)

	case LoggedInMsg:
		return a, a.startChat(msg.Session)

	case LoginErrorMsg:
		// An implicit login that fails falls back to the form.
		a.phase = PhaseLogin
		updated, cmd := a.login.Update(msg)
		a.login = updated.(*LoginView)
		return a, cmd

	case LogoutMsg:
		return a, a.logout()

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if a.phase == PhaseChat && msg.String() == "?" && !a.chat.WantsTextInput() {
			a.showHelp = !a.showHelp
			return a, nil
		}
		if a.showHelp {
			if msg.String() == "esc" {
				a.showHelp = false
			}
			return a, nil
		}
	}

	switch a.phase {
	case PhaseChat:
		updated, cmd := a.chat.Update(msg)
		a.chat = updated.(*ChatView)
		return a, cmd
	case PhaseLogin:
		updated, cmd := a.login.Update(msg)
		a.login = updated.(*LoginView)
		return a, cmd
	}
	return a, nil
}

// startChat wires the session into a fresh conversation.
func (a *App) startChat(s warehouse.Session) tea.Cmd {
	an, err := a.newAnalyst(a.cfg.Analyst, s)
	if err != nil {
		_ = s.Close(context.Background())
		return func() tea.Msg { return LoginErrorMsg{Err: err} }
	}
	bridge, err := query.New(s, a.cfg.Query.CacheSize)
	if err != nil {
		_ = s.Close(context.Background())
		return func() tea.Msg { return LoginErrorMsg{Err: err} }
	}

	model := a.opts.Model
	if model == "" {
		model = a.cfg.Analyst.SemanticView
	}
	opts := []conversation.Option{conversation.WithModel(model)}
	if a.opts.Transcripts != nil {
		opts = append(opts, conversation.WithRecorder(a.opts.Transcripts.Recorder(s.Info().User)))
	}
	conv := conversation.New(an, opts...)
	if send := a.send; send != nil {
		a.unsubscribe = conv.Subscribe(func(conversation.State) {
			go send(StateChangedMsg{})
		})
	}

	if a.opts.Profiles != nil && a.cfg.Warehouse.Driver == config.DriverSnowflake {
		if _, known := a.opts.Profiles.Get(config.ProfileFrom(a.cfg.Warehouse.Snowflake).Label()); !known {
			a.opts.Profiles.Add(config.ProfileFrom(a.cfg.Warehouse.Snowflake))
			_ = a.opts.Profiles.Save()
		}
	}

	a.session = s
	a.bridge = bridge
	a.chat = NewChatView(conv, an, bridge, s.Info())
	a.phase = PhaseChat
	a.resize()
	return tea.Batch(a.chat.Init(), discoverModels(s))
}

func discoverModels(s warehouse.Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		models, err := s.ListModels(ctx)
		return ModelsMsg{Models: models, Err: err}
	}
}

// logout closes the session and returns to the login form.
func (a *App) logout() tea.Cmd {
	s := a.teardown()
	base := a.cfg.Warehouse.Snowflake
	base.Password = ""
	a.cfg.Warehouse.Snowflake = base
	a.login = NewLoginView(a.opts.Profiles, base)
	a.phase = PhaseLogin
	a.resize()
	if s == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Close(ctx)
		return nil
	}
}

// teardown detaches the chat from the session and returns it for closing.
func (a *App) teardown() warehouse.Session {
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
	if a.bridge != nil {
		a.bridge.Purge()
		a.bridge = nil
	}
	a.chat = nil
	a.showHelp = false
	s := a.session
	a.session = nil
	return s
}

// Close releases the session; called when the program exits.
func (a *App) Close() {
	if s := a.teardown(); s != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Close(ctx)
	}
}

func (a *App) resize() {
	// header(1) + border(2) + status bar(1)
	contentH := a.height - 4
	contentW := a.width - 2
	a.login.SetSize(contentW, contentH)
	if a.chat != nil {
		a.chat.SetSize(contentW, contentH)
	}
}

// View implements tea.Model.
func (a *App) View() string {
	if a.width == 0 {
		return "loading..."
	}

	header := a.renderHeader()

	var content string
	switch {
	case a.phase == PhaseConnecting:
		content = lipgloss.NewStyle().
			Width(a.width-2).
			Height(a.height-4).
			Align(lipgloss.Center, lipgloss.Center).
			Render(StyleDimmed.Render("⏳ Opening warehouse session..."))
	case a.phase == PhaseChat && a.showHelp:
		content = a.renderHelp()
	case a.phase == PhaseChat:
		content = a.chat.View()
	default:
		content = a.login.View()
	}

	frameHeight := a.height - 4
	if frameHeight < 0 {
		frameHeight = 0
	}
	frame := StyleBorder.
		Width(a.width - 2).
		Height(frameHeight).
		Render(content)

	return header + "\n" + frame + "\n" + a.renderStatusBar()
}

// renderHeader draws logo, version and session details.
func (a *App) renderHeader() string {
	left := StyleBold.Render("❄ paiCortex") + StyleDimmed.Render(" v"+appVersion)

	if a.phase == PhaseChat && a.session != nil {
		info := a.session.Info()
		details := info.User + "@" + info.Account
		if info.Role != "" {
			details += " · " + info.Role
		}
		if info.Warehouse != "" {
			details += " · " + info.Warehouse
		}
		left += StyleSuccess.Render("  ⚡ " + details)
	}

	var right string
	if a.chat != nil {
		if m := a.chat.conv.Model(); m != "" {
			right = StyleDimmed.Render(m)
		}
	}
	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return lipgloss.NewStyle().
		Width(a.width).
		Render(left + strings.Repeat(" ", gap) + right)
}

func (a *App) renderStatusBar() string {
	if a.phase == PhaseChat {
		if toast := a.chat.Toast(); toast != "" {
			return StyleToast.Render(toast)
		}
		if status := a.chat.Status(); status != "" {
			return StyleStatusBar.Width(a.width).Render(status)
		}
	}

	var items []KeyBinding
	switch a.phase {
	case PhaseChat:
		items = append(a.chat.ShortHelp(), KeyBinding{Key: "?", Desc: "help"})
	case PhaseLogin:
		items = a.login.ShortHelp()
	}
	items = append(items, KeyBinding{Key: "Ctrl+C", Desc: "quit"})

	parts := make([]string, 0, len(items))
	for _, h := range items {
		parts = append(parts, StyleHelpKey.Render(h.Key)+" "+StyleHelpDesc.Render(h.Desc))
	}
	return StyleStatusBar.Width(a.width).Render(strings.Join(parts, "  │  "))
}

func (a *App) renderHelp() string {
	row := func(key, desc string) string {
		return StyleHelpKey.Render(fmt.Sprintf("%-16s", key)) + " " + desc
	}
	help := []string{
		StyleTitle.Render("⌨ paiCortex Keyboard Shortcuts"),
		row("Tab / Shift+Tab", "Cycle focus: input, transcript, models"),
		row("Enter", "Send question / select model / open item"),
		row("PgUp / PgDn", "Scroll the transcript"),
		row("Ctrl+L", "Clear the conversation"),
		row("Ctrl+O", "Log out"),
		row("Ctrl+C", "Quit"),
		"",
		StyleTitle.Render("Transcript"),
		row("↑/↓ j/k", "Move between suggestions, SQL and results"),
		row("Enter", "Ask a suggestion, expand SQL, flip Data/Chart"),
		row("t", "Toggle Data/Chart"),
		row("x / y", "Cycle chart X / Y column"),
		row("c", "Toggle Bar/Line chart"),
		row("+ / -", "Rate the reply"),
		"",
		StyleDimmed.Render("Press ? or Esc to close"),
	}
	return lipgloss.NewStyle().
		Width(a.width-4).
		Height(a.height-4).
		Padding(1, 2).
		Render(strings.Join(help, "\n"))
}
