package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"mvave-bridge/bridge"
)

// UpdateMsg carries one engine notification into the program loop.
type UpdateMsg struct {
	Kind      UpdateKind
	ControlID string
	On        bool
	Field     bridge.Field
	Status    bridge.LearnStatus
}

type UpdateKind int

const (
	UpdateState UpdateKind = iota
	UpdateLearning
	UpdateConnection
)

const updateBuffer = 64

// Updates is the bridge.Observer that feeds the TUI. Notifications beyond
// the buffer are dropped; the view re-reads engine snapshots on every
// message, so only learn status texts can be lost.
type Updates struct {
	ch chan UpdateMsg
}

func NewUpdates() *Updates {
	return &Updates{ch: make(chan UpdateMsg, updateBuffer)}
}

func (u *Updates) send(m UpdateMsg) {
	select {
	case u.ch <- m:
	default:
	}
}

func (u *Updates) StateChanged(id string, on bool) {
	u.send(UpdateMsg{Kind: UpdateState, ControlID: id, On: on})
}

func (u *Updates) LearningProgress(id string, field bridge.Field, status bridge.LearnStatus) {
	u.send(UpdateMsg{Kind: UpdateLearning, ControlID: id, Field: field, Status: status})
}

func (u *Updates) ConnectionChanged(connected bool) {
	u.send(UpdateMsg{Kind: UpdateConnection, On: connected})
}

func ListenForUpdates(u *Updates) tea.Cmd {
	return func() tea.Msg {
		return <-u.ch
	}
}
