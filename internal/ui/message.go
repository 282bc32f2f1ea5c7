package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/calyptra/tunesync/internal/jobs"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var _ tea.Msg = Msg{}

const (
	MsgEvent MsgKind = iota
	MsgStreamClosed
	MsgActionDone
)

// eventMsg is the constructor for [MsgEvent]
func eventMsg(ev jobs.Event) Msg {
	return Msg{kind: MsgEvent, data: ev}
}

// streamClosedMsg is the constructor for [MsgStreamClosed]
func streamClosedMsg(err error) Msg {
	return Msg{kind: MsgStreamClosed, data: err}
}

// actionDoneMsg is the constructor for [MsgActionDone]
func actionDoneMsg(err error) Msg {
	return Msg{kind: MsgActionDone, data: err}
}
