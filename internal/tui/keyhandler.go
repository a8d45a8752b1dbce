package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

type KeyHandler struct {
	app  *App
	keys keyMap
}

func NewKeyHandler(app *App) *KeyHandler {
	return &KeyHandler{app: app, keys: app.keys}
}

func (kh *KeyHandler) HandleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, kh.keys.ForceQuit) {
		return kh.app, tea.Quit
	}

	if kh.isInTextInputMode() {
		return kh.handleTextInputMode(msg)
	}

	if model, cmd, handled := kh.handleCustomKeys(msg); handled {
		return model, cmd
	}

	return kh.delegate(msg)
}

func (kh *KeyHandler) isInTextInputMode() bool {
	p := kh.app.activePane()
	return p != nil && p.focused()
}

func (kh *KeyHandler) handleTextInputMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := kh.app.activePane()
	km := kh.keys

	switch {
	case key.Matches(msg, km.Back):
		return kh.navigateBack()
	case msg.Type == tea.KeyEnter:
		p.submit()
		p.blur()
		return kh.app, nil
	case msg.Type == tea.KeyTab, msg.Type == tea.KeyDown:
		p.blur()
		return kh.app, nil
	case key.Matches(msg, km.PageDown):
		p.nextPage()
		return kh.app, nil
	case key.Matches(msg, km.PageUp):
		p.prevPage()
		return kh.app, nil
	}

	// Modified action keys still work while typing.
	if model, cmd, handled := kh.handleActionKeys(msg); handled {
		return model, cmd
	}
	return kh.app, p.updateInput(msg)
}

// handleActionKeys covers the modifier bindings shared by every mode.
func (kh *KeyHandler) handleActionKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	a, km := kh.app, kh.keys

	switch {
	case key.Matches(msg, km.Schools):
		return a, a.showRoot(ViewSchools), true
	case key.Matches(msg, km.Professors):
		return a, a.showRoot(ViewProfessors), true
	case key.Matches(msg, km.Random) && a.view == ViewSchools:
		return a, a.loadRandomSchools(), true
	case key.Matches(msg, km.Notes) && a.view == ViewProfessor && a.professor != nil:
		return a, a.openNotes(*a.professor), true
	case key.Matches(msg, km.Subject) && a.view == ViewNotes:
		return a, a.cycleSubject(), true
	case key.Matches(msg, km.Open) && a.view == ViewReader && a.note != nil:
		return a, a.openAttachments(a.note.FilesURL), true
	}
	return a, nil, false
}

func (kh *KeyHandler) handleCustomKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	a, km := kh.app, kh.keys

	if model, cmd, handled := kh.handleActionKeys(msg); handled {
		return model, cmd, true
	}

	switch {
	case key.Matches(msg, km.Quit):
		return a, tea.Quit, true
	case key.Matches(msg, km.Back):
		model, cmd := kh.navigateBack()
		return model, cmd, true
	case key.Matches(msg, km.Help):
		a.help.ShowAll = !a.help.ShowAll
		return a, nil, true
	}

	if a.view == ViewReader {
		return kh.handleReaderKeys(msg)
	}

	p := a.activePane()
	if p == nil {
		return a, nil, false
	}
	switch {
	case key.Matches(msg, km.Focus):
		return a, p.focus(), true
	case key.Matches(msg, km.Up):
		if p.atTop() {
			return a, p.focus(), true
		}
		p.move(-1)
		return a, nil, true
	case key.Matches(msg, km.Down):
		p.move(1)
		return a, nil, true
	case key.Matches(msg, km.NextPage), key.Matches(msg, km.PageDown):
		p.nextPage()
		return a, nil, true
	case key.Matches(msg, km.PrevPage), key.Matches(msg, km.PageUp):
		p.prevPage()
		return a, nil, true
	case key.Matches(msg, km.Select):
		model, cmd := kh.selectCurrent()
		return model, cmd, true
	}
	return a, nil, false
}

// handleReaderKeys opens a single attachment with its number key.
func (kh *KeyHandler) handleReaderKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	a := kh.app
	if a.note == nil || msg.Type != tea.KeyRunes || len(msg.Runes) != 1 {
		return a, nil, false
	}
	r := msg.Runes[0]
	if r < '1' || r > '9' {
		return a, nil, false
	}
	i := int(r - '1')
	if i >= len(a.note.FilesURL) {
		return a, nil, true
	}
	return a, a.openAttachments(a.note.FilesURL[i : i+1]), true
}

// delegate lets bubbles components handle keys we do not intercept.
func (kh *KeyHandler) delegate(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a := kh.app
	if a.view == ViewReader {
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd
	}
	if p := a.activePane(); p != nil && msg.Type == tea.KeyRunes {
		// Typing in list mode jumps back into the search box.
		cmd := p.focus()
		return a, tea.Batch(cmd, p.updateInput(msg))
	}
	return a, nil
}

func (kh *KeyHandler) selectCurrent() (tea.Model, tea.Cmd) {
	a := kh.app
	switch a.view {
	case ViewSchools:
		if s, ok := a.schools.selected(); ok {
			return a, a.openSchool(s)
		}
	case ViewProfessors:
		if p, ok := a.professors.selected(); ok {
			return a, a.openProfessor(p)
		}
	case ViewSchool:
		if a.staff != nil {
			if p, ok := a.staff.selected(); ok {
				return a, a.openProfessor(p)
			}
		}
	case ViewNotes:
		if n, ok := a.notes.selected(); ok {
			return a, a.openReader(n)
		}
	}
	return a, nil
}

func (kh *KeyHandler) navigateBack() (tea.Model, tea.Cmd) {
	a := kh.app
	if len(a.history) == 0 {
		if p := a.activePane(); p != nil && !p.focused() {
			return a, p.focus()
		}
		return a, nil
	}
	prev := a.history[len(a.history)-1]
	a.history = a.history[:len(a.history)-1]
	a.leave(a.view)
	a.view = prev
	return a, nil
}

// GetHelpForCurrentView lists the short help entries, for tests and the
// status bar.
func (kh *KeyHandler) GetHelpForCurrentView() []string {
	var out []string
	for _, b := range kh.app.viewKeys().ShortHelp() {
		h := b.Help()
		out = append(out, h.Key+": "+h.Desc)
	}
	return out
}
