// messages.go defines Bubble Tea messages used for async communication.
//
// Logins, analyst turns, SQL executions and feedback all run as tea.Cmds
// and report back through these types, so the UI never blocks.
package tui

import (
	"github.com/DachengChen/paiCortex/config"
	"github.com/DachengChen/paiCortex/warehouse"
)

// LoggedInMsg is sent when a warehouse session is open.
type LoggedInMsg struct {
	Session warehouse.Session
	Profile config.Profile
}

// LoginErrorMsg is sent when opening the session failed.
type LoginErrorMsg struct {
	Err error
}

// ModelsMsg carries the discovered semantic views.
type ModelsMsg struct {
	Models []string
	Err    error
}

// TurnDoneMsg is sent when an analyst turn has completed (or was dropped
// because the conversation was reset meanwhile).
type TurnDoneMsg struct {
	Err error
}

// StateChangedMsg wakes the renderer after the conversation changed on
// another goroutine.
type StateChangedMsg struct{}

// QueryResultMsg is sent when a generated statement has been executed.
type QueryResultMsg struct {
	Key    resultKey
	Table  *warehouse.Table
	Cached bool
	Err    error
}

// FeedbackMsg is sent when feedback for a reply was delivered.
type FeedbackMsg struct {
	RequestID string
	Positive  bool
	Err       error
}

// toastExpiredMsg hides the error toast.
type toastExpiredMsg struct {
	id int
}

// LogoutMsg returns to the login screen.
type LogoutMsg struct{}
