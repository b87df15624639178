// view_login.go is the login form shown when no implicit credentials are
// configured.
//
// Saved profiles are listed on top (←/→ to pick one). Passwords are typed
// for every login and never saved. Save stores the current fields as a
// profile in ~/.paicortex/profiles.yaml.
package tui

import (
	"fmt"
	"strings"

	"github.com/DachengChen/paiCortex/config"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	fieldSaved = iota
	fieldName
	fieldAccount
	fieldUser
	fieldPassword
	fieldRole
	fieldWarehouse
	fieldLogin
	fieldSave
	fieldDelete
	fieldCount // sentinel
)

var fieldLabels = map[int]string{
	fieldSaved:     "Saved",
	fieldName:      "Name",
	fieldAccount:   "Account",
	fieldUser:      "User",
	fieldPassword:  "Password",
	fieldRole:      "Role",
	fieldWarehouse: "Warehouse",
	fieldLogin:     "Log in",
	fieldSave:      "Save",
	fieldDelete:    "Delete",
}

// loginRequestMsg asks the App to open a session with the form's values.
type loginRequestMsg struct {
	Snowflake config.SnowflakeConfig
	Profile   config.Profile
}

// LoginView is the Snowflake login form.
type LoginView struct {
	store      *config.ProfileStore
	base       config.SnowflakeConfig
	fields     []string
	focusField int
	savedIdx   int
	editing    bool
	err        error
	statusMsg  string
	loggingIn  bool
	width      int
	height     int
}

// NewLoginView prefills the form from base (the configured account) or,
// when profiles exist, from the first saved profile.
func NewLoginView(store *config.ProfileStore, base config.SnowflakeConfig) *LoginView {
	v := &LoginView{
		store:      store,
		base:       base,
		fields:     make([]string, fieldCount),
		focusField: fieldAccount,
	}
	v.fields[fieldAccount] = base.Account
	v.fields[fieldUser] = base.User
	v.fields[fieldPassword] = base.Password
	v.fields[fieldRole] = base.Role
	v.fields[fieldWarehouse] = base.Warehouse

	if len(v.profiles()) > 0 && base.Account == "" {
		v.loadProfile(0)
	}
	if v.fields[fieldAccount] != "" && v.fields[fieldUser] != "" {
		v.focusField = fieldPassword
	}
	if v.fields[fieldUser] == "" {
		v.focusField = fieldUser
	}
	if v.fields[fieldAccount] == "" {
		v.focusField = fieldAccount
	}
	return v
}

func (v *LoginView) Name() string { return "Login" }

func (v *LoginView) WantsTextInput() bool { return v.editing }

func (v *LoginView) SetSize(width, height int) {
	v.width = width
	v.height = height
}

func (v *LoginView) ShortHelp() []KeyBinding {
	if v.editing {
		return []KeyBinding{
			{Key: "Enter/Esc", Desc: "done"},
			{Key: "Ctrl+U", Desc: "clear"},
		}
	}
	return []KeyBinding{
		{Key: "↑/↓", Desc: "move"},
		{Key: "←/→", Desc: "profile"},
		{Key: "Enter", Desc: "edit/select"},
		{Key: "Ctrl+C", Desc: "quit"},
	}
}

func (v *LoginView) Init() tea.Cmd { return nil }

func (v *LoginView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if v.editing {
			return v.handleEditing(msg)
		}
		return v.handleNavigation(msg)

	case LoginErrorMsg:
		v.loggingIn = false
		v.err = msg.Err
		v.statusMsg = ""
		return v, nil
	}
	return v, nil
}

func (v *LoginView) profiles() []config.Profile {
	if v.store == nil {
		return nil
	}
	return v.store.Profiles
}

func (v *LoginView) handleNavigation(msg tea.KeyMsg) (View, tea.Cmd) {
	switch msg.String() {
	case "up", "k", "shift+tab":
		v.move(-1)
	case "down", "j", "tab":
		v.move(1)
	case "left", "h":
		v.cycleProfile(-1)
	case "right", "l":
		v.cycleProfile(1)
	case "enter":
		return v.handleAction()
	case "q":
		return v, tea.Quit
	}
	return v, nil
}

func (v *LoginView) move(dir int) {
	v.focusField = (v.focusField + dir + fieldCount) % fieldCount
	if v.focusField == fieldSaved && len(v.profiles()) == 0 {
		v.focusField = (v.focusField + dir + fieldCount) % fieldCount
	}
}

func (v *LoginView) cycleProfile(dir int) {
	n := len(v.profiles())
	if v.focusField != fieldSaved || n == 0 {
		v.move(dir)
		return
	}
	v.loadProfile((v.savedIdx + dir + n) % n)
}

func (v *LoginView) handleEditing(msg tea.KeyMsg) (View, tea.Cmd) {
	field := v.focusField

	switch msg.String() {
	case "enter", "esc":
		v.editing = false
		if msg.String() == "enter" && field == fieldPassword {
			return v, v.login()
		}
		return v, nil
	case "backspace":
		if len(v.fields[field]) > 0 {
			v.fields[field] = v.fields[field][:len(v.fields[field])-1]
		}
	case "ctrl+u":
		v.fields[field] = ""
	default:
		if msg.Type == tea.KeyRunes {
			v.fields[field] += string(msg.Runes)
		} else if msg.Type == tea.KeySpace {
			v.fields[field] += " "
		}
	}
	return v, nil
}

func (v *LoginView) handleAction() (View, tea.Cmd) {
	switch v.focusField {
	case fieldSaved, fieldLogin:
		return v, v.login()
	case fieldSave:
		v.saveProfile()
		return v, nil
	case fieldDelete:
		v.deleteProfile()
		return v, nil
	default:
		v.editing = true
		return v, nil
	}
}

func (v *LoginView) login() tea.Cmd {
	sf := v.snowflakeConfig()
	if sf.Account == "" || sf.User == "" || sf.Password == "" {
		v.err = fmt.Errorf("account, user and password are required")
		return nil
	}
	v.loggingIn = true
	v.statusMsg = "Logging in..."
	v.err = nil

	profile := config.ProfileFrom(sf)
	profile.Name = strings.TrimSpace(v.fields[fieldName])
	return func() tea.Msg {
		return loginRequestMsg{Snowflake: sf, Profile: profile}
	}
}

// snowflakeConfig overlays the form on the configured base settings.
func (v *LoginView) snowflakeConfig() config.SnowflakeConfig {
	sf := v.base
	sf.Account = strings.TrimSpace(v.fields[fieldAccount])
	sf.User = strings.TrimSpace(v.fields[fieldUser])
	sf.Password = v.fields[fieldPassword]
	sf.Role = strings.TrimSpace(v.fields[fieldRole])
	sf.Warehouse = strings.TrimSpace(v.fields[fieldWarehouse])
	return sf
}

func (v *LoginView) saveProfile() {
	if v.store == nil {
		return
	}
	p := config.ProfileFrom(v.snowflakeConfig())
	p.Name = strings.TrimSpace(v.fields[fieldName])
	if p.Account == "" || p.User == "" {
		v.err = fmt.Errorf("enter an account and user first")
		return
	}
	v.store.Add(p)
	if err := v.store.Save(); err != nil {
		v.err = err
		return
	}
	v.err = nil
	v.statusMsg = fmt.Sprintf("Profile '%s' saved!", p.Label())
	for i, existing := range v.store.Profiles {
		if existing.Label() == p.Label() {
			v.savedIdx = i
		}
	}
}

func (v *LoginView) deleteProfile() {
	profiles := v.profiles()
	if len(profiles) == 0 {
		return
	}
	label := profiles[v.savedIdx].Label()
	v.store.Delete(label)
	if err := v.store.Save(); err != nil {
		v.err = err
		return
	}
	v.err = nil
	v.statusMsg = fmt.Sprintf("Profile '%s' deleted.", label)
	if v.savedIdx >= len(v.store.Profiles) {
		v.savedIdx = 0
	}
}

func (v *LoginView) loadProfile(idx int) {
	profiles := v.profiles()
	if idx < 0 || idx >= len(profiles) {
		return
	}
	p := profiles[idx]
	v.fields[fieldName] = p.Name
	v.fields[fieldAccount] = p.Account
	v.fields[fieldUser] = p.User
	v.fields[fieldRole] = p.Role
	v.fields[fieldWarehouse] = p.Warehouse
	v.fields[fieldPassword] = ""
	v.savedIdx = idx
}

func (v *LoginView) View() string {
	width := v.width / 2
	if width < 50 {
		width = 50
	}
	inputW := width - 24
	if inputW < 10 {
		inputW = 10
	}

	var lines []string
	lines = append(lines, StyleTitle.Render("❄ Snowflake Cortex Analyst"))

	if profiles := v.profiles(); len(profiles) > 0 {
		var saved string
		for i, p := range profiles {
			label := p.Label()
			switch {
			case i == v.savedIdx && v.focusField == fieldSaved:
				saved += StyleListItemActive.Render(" ► " + label + " ")
			case i == v.savedIdx:
				saved += StyleButton.Render(" ► " + label + " ")
			default:
				saved += StyleDimmed.Render("   " + label + " ")
			}
		}
		lines = append(lines, v.renderLabel(fieldSaved)+" "+saved, "")
	}

	for _, id := range []int{fieldName, fieldAccount, fieldUser, fieldPassword, fieldRole, fieldWarehouse} {
		lines = append(lines, v.renderField(id, inputW))
	}
	lines = append(lines, "",
		v.renderButton(fieldLogin)+"  "+v.renderButton(fieldSave)+"  "+v.renderButton(fieldDelete))

	var status string
	switch {
	case v.loggingIn:
		status = StyleDimmed.Render("⏳ " + v.statusMsg)
	case v.err != nil:
		status = StyleError.Render("✗ " + v.err.Error())
	case v.statusMsg != "":
		status = StyleSuccess.Render("✓ " + v.statusMsg)
	}
	if status != "" {
		lines = append(lines, "", status)
	}

	panel := StyleBorder.
		BorderForeground(ColorAccent).
		Padding(1, 2).
		Width(width).
		Render(strings.Join(lines, "\n"))

	return lipgloss.NewStyle().
		Width(v.width).
		Height(v.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(panel)
}

func (v *LoginView) renderLabel(id int) string {
	if v.focusField == id {
		return lipgloss.NewStyle().
			Width(16).
			Foreground(ColorAccent).
			Bold(true).
			Render("▸ " + fieldLabels[id])
	}
	return lipgloss.NewStyle().
		Width(16).
		Foreground(ColorDim).
		Render(fieldLabels[id])
}

func (v *LoginView) renderField(id, inputWidth int) string {
	value := v.fields[id]
	if id == fieldPassword {
		value = strings.Repeat("•", len([]rune(value)))
	}
	if v.focusField == id && v.editing {
		value += "█"
	}
	style := lipgloss.NewStyle().Width(inputWidth).Foreground(ColorPrimary)
	if v.focusField != id {
		style = style.Foreground(ColorDim)
	}
	return v.renderLabel(id) + " " + style.Render(value)
}

func (v *LoginView) renderButton(id int) string {
	label := fieldLabels[id]
	if v.focusField == id {
		return lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			Background(ColorAccent).
			Padding(0, 2).
			Render("⏎ " + label)
	}
	return lipgloss.NewStyle().
		Foreground(ColorDim).
		Padding(0, 2).
		Render("  " + label)
}
