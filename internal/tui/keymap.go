package tui

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/pders01/profe/internal/config"
)

type keyMap struct {
	ForceQuit  key.Binding
	Quit       key.Binding
	Back       key.Binding
	Help       key.Binding
	Schools    key.Binding
	Professors key.Binding
	Notes      key.Binding
	Subject    key.Binding
	Random     key.Binding
	Open       key.Binding
	NextPage   key.Binding
	PrevPage   key.Binding
	PageDown   key.Binding
	PageUp     key.Binding
	Up         key.Binding
	Down       key.Binding
	Select     key.Binding
	Focus      key.Binding
}

// newKeyMap builds bindings from the [keys] section. Action keys take the
// modifier; paging, back, help and quit are used as written.
func newKeyMap(k config.KeyConfig) keyMap {
	b := k.Bindings
	mod := func(s string) string {
		if s == "" || k.Modifier == "" {
			return s
		}
		return k.Modifier + "+" + s
	}
	bind := func(keys []string, label, desc string) key.Binding {
		return key.NewBinding(key.WithKeys(keys...), key.WithHelp(label, desc))
	}
	action := func(s, desc string) key.Binding {
		return bind([]string{mod(s)}, mod(s), desc)
	}

	return keyMap{
		ForceQuit:  key.NewBinding(key.WithKeys("ctrl+c")),
		Quit:       bind([]string{b.Quit}, b.Quit, "quit"),
		Back:       bind([]string{b.Back}, b.Back, "back"),
		Help:       bind([]string{b.Help}, b.Help, "more keys"),
		Schools:    action(b.Schools, "schools"),
		Professors: action(b.Professors, "professors"),
		Notes:      action(b.Notes, "notes"),
		Subject:    action(b.Subject, "subject"),
		Random:     action(b.Random, "shuffle"),
		Open:       action(b.OpenMedia, "open files"),
		NextPage:   bind([]string{b.NextPage}, b.NextPage, "next page"),
		PrevPage:   bind([]string{b.PrevPage}, b.PrevPage, "prev page"),
		PageDown:   bind([]string{"pgdown"}, "pgdn", "next page"),
		PageUp:     bind([]string{"pgup"}, "pgup", "prev page"),
		Up:         bind([]string{"up", "k"}, "↑/k", "up"),
		Down:       bind([]string{"down", "j"}, "↓/j", "down"),
		Select:     bind([]string{"enter"}, "enter", "open"),
		Focus:      bind([]string{"tab", "/"}, "tab", "search box"),
	}
}

// viewKeys adapts the key map to bubbles/help for the current view.
type viewKeys struct {
	km        keyMap
	view      View
	inputMode bool
}

func (v viewKeys) ShortHelp() []key.Binding {
	km := v.km
	if v.inputMode {
		return []key.Binding{
			key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "search now")),
			key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "results")),
			km.PageDown, km.Back,
		}
	}
	switch v.view {
	case ViewSchools:
		return []key.Binding{km.Select, km.Professors, km.Random, km.PageDown, km.Help}
	case ViewProfessors:
		return []key.Binding{km.Select, km.Schools, km.PageDown, km.Back, km.Help}
	case ViewSchool:
		return []key.Binding{km.Select, km.PageDown, km.Back, km.Help}
	case ViewProfessor:
		return []key.Binding{km.Notes, km.PageDown, km.Back, km.Help}
	case ViewNotes:
		return []key.Binding{km.Select, km.Subject, km.PageDown, km.Back, km.Help}
	case ViewReader:
		return []key.Binding{km.Open, km.Back, km.Help}
	}
	return nil
}

func (v viewKeys) FullHelp() [][]key.Binding {
	km := v.km
	nav := []key.Binding{km.Up, km.Down, km.Select, km.Focus}
	paging := []key.Binding{km.NextPage, km.PrevPage, km.PageDown, km.PageUp}
	global := []key.Binding{km.Schools, km.Professors, km.Back, km.Quit}
	switch v.view {
	case ViewProfessor:
		return [][]key.Binding{{km.Notes}, paging, global}
	case ViewNotes:
		return [][]key.Binding{nav, {km.Subject}, paging, global}
	case ViewReader:
		return [][]key.Binding{{km.Open}, global}
	case ViewSchools:
		return [][]key.Binding{nav, {km.Random}, paging, global}
	}
	return [][]key.Binding{nav, paging, global}
}
