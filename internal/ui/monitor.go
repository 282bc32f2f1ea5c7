package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/calyptra/tunesync/internal/jobs"
)

// Model represents the monitor application state.
type Model struct {
	ctx      context.Context
	client   *StreamClient
	events   <-chan jobs.Event
	jobs     []*jobs.Job
	cursor   int
	streamUp bool
	err      error
	width    int
	help     help.Model
	keys     keyMap
}

// NewModel creates the monitor model. Stream consumption starts in Init.
func NewModel(ctx context.Context, client *StreamClient) Model {
	return Model{
		ctx:    ctx,
		client: client,
		help:   help.New(),
		keys:   newKeyMap(),
	}
}

// Init opens the event stream.
func (m Model) Init() tea.Cmd {
	return m.connect
}

func (m Model) connect() tea.Msg {
	events, err := m.client.Stream(m.ctx)
	if err != nil {
		return streamClosedMsg(err)
	}
	return Msg{kind: msgConnected, data: events}
}

const msgConnected MsgKind = -1

// waitForEvent returns a command that delivers the next stream event.
func waitForEvent(events <-chan jobs.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamClosedMsg(nil)
		}
		return eventMsg(ev)
	}
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case Msg:
		return m.handleMsg(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.down):
		if m.cursor < len(m.jobs)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.cancel):
		if m.cursor < len(m.jobs) {
			id := m.jobs[m.cursor].ID
			return m, func() tea.Msg {
				return actionDoneMsg(m.client.CancelJob(m.ctx, id))
			}
		}
	case key.Matches(msg, m.keys.clear):
		return m, func() tea.Msg {
			return actionDoneMsg(m.client.ClearFinished(m.ctx))
		}
	}
	return m, nil
}

func (m Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case msgConnected:
		m.events = msg.data.(<-chan jobs.Event)
		m.streamUp = true
		m.err = nil
		return m, waitForEvent(m.events)
	case MsgEvent:
		m.applyEvent(msg.data.(jobs.Event))
		return m, waitForEvent(m.events)
	case MsgStreamClosed:
		m.streamUp = false
		if err, ok := msg.data.(error); ok && err != nil {
			m.err = err
		}
		return m, nil
	case MsgActionDone:
		if err, ok := msg.data.(error); ok && err != nil {
			m.err = err
		}
		return m, nil
	}
	return m, nil
}

// applyEvent patches the job table in place. Snapshots replace it wholesale,
// so a reconnect always converges to the server's state.
func (m *Model) applyEvent(ev jobs.Event) {
	switch ev.Type {
	case jobs.EventSnapshot:
		m.jobs = ev.Jobs
	case jobs.EventCreated:
		if ev.Job != nil {
			m.jobs = append(m.jobs, ev.Job)
		}
	case jobs.EventUpdated:
		if ev.Job == nil {
			return
		}
		for i, j := range m.jobs {
			if j.ID == ev.Job.ID {
				m.jobs[i] = ev.Job
				return
			}
		}
		m.jobs = append(m.jobs, ev.Job)
	case jobs.EventDeleted:
		for i, j := range m.jobs {
			if j.ID == ev.JobID {
				m.jobs = append(m.jobs[:i], m.jobs[i+1:]...)
				break
			}
		}
	case jobs.EventCleared:
		kept := m.jobs[:0]
		for _, j := range m.jobs {
			if !j.Status.Finished() {
				kept = append(kept, j)
			}
		}
		m.jobs = kept
	}

	if m.cursor >= len(m.jobs) && m.cursor > 0 {
		m.cursor = len(m.jobs) - 1
	}
}

// View renders the job table.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(styles.title.Render("tunesync jobs"))
	b.WriteString("\n")

	if !m.streamUp {
		b.WriteString(styles.warn.Render("disconnected"))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(styles.err.Render(fmt.Sprintf("error: %v", m.err)))
		b.WriteString("\n")
	}

	if len(m.jobs) == 0 {
		b.WriteString(styles.help.Render("no jobs"))
		b.WriteString("\n")
	}

	for i, job := range m.jobs {
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}

		line := fmt.Sprintf("%s%-12s %5.1f%%  %s", cursor,
			styles.status(job.Status).Render(string(job.Status)), job.Progress, jobTitle(job))
		if i == m.cursor {
			line = styles.selected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// jobTitle prefers the resolved playlist title over the raw URL.
func jobTitle(job *jobs.Job) string {
	if job.ContentInfo != nil && job.ContentInfo.Title != "" {
		return job.ContentInfo.Title
	}
	return job.URL
}
