package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// StatusKind indicates severity for status messages.
type StatusKind int

const (
	StatusInfo StatusKind = iota
	StatusSuccess
	StatusWarn
	StatusError
)

const (
	MsgLoadingSchool    = "Loading school…"
	MsgLoadingProfessor = "Loading professor…"
	MsgLoadingNotes     = "Loading notes…"
	MsgRendering        = "Rendering note…"
	MsgNoResults        = "No results"
	MsgNoAttachments    = "This note has no attachments"
	MsgOffline          = "offline"
)

func MsgResultsCount(n int) string {
	if n == 1 {
		return "1 result"
	}
	return fmt.Sprintf("%d results", n)
}

func MsgOpened(n int) string {
	if n == 1 {
		return "Opened 1 attachment"
	}
	return fmt.Sprintf("Opened %d attachments", n)
}

// toast is a transient status line. Each one carries an id so a timer set
// for an older toast cannot clear a newer one.
type toast struct {
	text string
	kind StatusKind
	id   int
}

type clearStatusMsg struct{ id int }

// setStatus shows text until ttl elapses. A zero ttl keeps it until the
// next status.
func (a *App) setStatus(text string, kind StatusKind, ttl time.Duration) tea.Cmd {
	a.statusSeq++
	a.status = toast{text: text, kind: kind, id: a.statusSeq}
	if ttl <= 0 {
		return nil
	}
	id := a.statusSeq
	return tea.Tick(ttl, func(time.Time) tea.Msg { return clearStatusMsg{id: id} })
}

// notify shows a failure toast that clears itself.
func (a *App) notify(err error) tea.Cmd {
	return a.setStatus(describeError(err), StatusError, a.cfg.UI.ToastDuration)
}

func (a *App) clearStatus(id int) {
	if a.status.id == id {
		a.status = toast{}
	}
}

func (t toast) render() string {
	if t.text == "" {
		return ""
	}
	switch t.kind {
	case StatusSuccess:
		return StatusSuccessStyle.Render("✓ " + t.text)
	case StatusWarn:
		return StatusWarnStyle.Render("! " + t.text)
	case StatusError:
		return StatusErrorStyle.Render("✗ " + t.text)
	default:
		return StatusInfoStyle.Render(t.text)
	}
}
