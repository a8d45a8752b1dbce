package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/profe/internal/config"
	"github.com/pders01/profe/internal/storage"
)

func TestKeyMapUsesModifier(t *testing.T) {
	km := newKeyMap(config.TestConfig().Keys)

	assert.Equal(t, []string{"ctrl+s"}, km.Schools.Keys())
	assert.Equal(t, []string{"ctrl+p"}, km.Professors.Keys())
	assert.Equal(t, []string{"ctrl+o"}, km.Open.Keys())
	assert.Equal(t, []string{"q"}, km.Quit.Keys(), "quit is used as written")
	assert.Equal(t, []string{"right"}, km.NextPage.Keys())
}

func TestKeyMapWithoutModifier(t *testing.T) {
	kc := config.TestConfig().Keys
	kc.Modifier = ""
	km := newKeyMap(kc)
	assert.Equal(t, []string{"s"}, km.Schools.Keys())
}

func TestKeyHandler_ForceQuit(t *testing.T) {
	a, _ := newTestApp(t)
	cmd := press(a, tea.KeyCtrlC)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestKeyHandler_TypingFeedsTheController(t *testing.T) {
	a, _ := newTestApp(t)

	typeText(a, "uni")
	assert.Equal(t, "uni", a.schools.input.Value())
	assert.Equal(t, "uni", a.schools.ctl.Snapshot().Query)

	// q is text while the box has focus.
	typeText(a, "q")
	assert.Equal(t, "uniq", a.schools.input.Value())
	assert.Equal(t, ViewSchools, a.view)
}

func TestKeyHandler_ListNavigation(t *testing.T) {
	a, _ := newTestApp(t)
	loadRandom(t, a)

	press(a, tea.KeyTab)
	require.False(t, a.schools.focused())

	press(a, tea.KeyDown)
	assert.Equal(t, 1, a.schools.cursor)
	press(a, tea.KeyDown)
	assert.Equal(t, 1, a.schools.cursor, "cursor stops at the last row")

	press(a, tea.KeyUp)
	assert.Equal(t, 0, a.schools.cursor)
	press(a, tea.KeyUp)
	assert.True(t, a.schools.focused(), "up from the first row returns to the search box")
}

func TestKeyHandler_TabWithoutResultsKeepsFocus(t *testing.T) {
	a, _ := newTestApp(t)
	a.showRoot(ViewProfessors)

	press(a, tea.KeyTab)
	assert.True(t, a.professors.focused())
}

func TestKeyHandler_QuitOutsideInput(t *testing.T) {
	a, _ := newTestApp(t)
	loadRandom(t, a)
	press(a, tea.KeyTab)

	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestKeyHandler_TypingInListRefocuses(t *testing.T) {
	a, _ := newTestApp(t)
	loadRandom(t, a)
	press(a, tea.KeyTab)

	typeText(a, "x")
	assert.True(t, a.schools.focused())
	assert.Equal(t, "x", a.schools.input.Value())
}

func TestKeyHandler_HelpToggle(t *testing.T) {
	a, _ := newTestApp(t)
	loadRandom(t, a)
	press(a, tea.KeyTab)

	typeText(a, "?")
	assert.True(t, a.help.ShowAll)
	typeText(a, "?")
	assert.False(t, a.help.ShowAll)
}

func TestKeyHandler_SelectOpensSchool(t *testing.T) {
	a, _ := newTestApp(t)
	loadRandom(t, a)
	press(a, tea.KeyTab)
	press(a, tea.KeyDown)

	cmd := press(a, tea.KeyEnter)
	assert.NotNil(t, cmd)
	assert.Equal(t, ViewSchool, a.view)
	require.NotNil(t, a.school)
	assert.Equal(t, int64(4), a.school.ID)
	assert.Equal(t, []View{ViewSchools}, a.history)
}

func TestKeyHandler_BackAtRootFocusesInput(t *testing.T) {
	a, _ := newTestApp(t)
	loadRandom(t, a)
	press(a, tea.KeyTab)
	require.False(t, a.schools.focused())

	press(a, tea.KeyEsc)
	assert.Equal(t, ViewSchools, a.view)
	assert.True(t, a.schools.focused())

	press(a, tea.KeyEsc)
	assert.Equal(t, ViewSchools, a.view, "back at the root is a no-op")
}

func TestKeyHandler_RootSwitchWhileTyping(t *testing.T) {
	a, _ := newTestApp(t)
	typeText(a, "abc")

	press(a, tea.KeyCtrlP)
	assert.Equal(t, ViewProfessors, a.view)
	press(a, tea.KeyCtrlS)
	assert.Equal(t, ViewSchools, a.view)
	assert.Equal(t, "abc", a.schools.input.Value(), "each root keeps its query")
}

func TestKeyHandler_Paging(t *testing.T) {
	a, _ := newTestApp(t)
	var schools []storage.School
	for i := range 20 {
		schools = append(schools, storage.School{ID: int64(i + 1), Name: "Escuela"})
	}
	a.Update(randomSchoolsMsg{schools: schools})
	a.schools.pull()
	require.Equal(t, 3, a.schools.snap.TotalPages)

	press(a, tea.KeyPgDown)
	a.schools.pull()
	assert.Equal(t, 2, a.schools.snap.Page)

	press(a, tea.KeyTab)
	press(a, tea.KeyRight)
	a.schools.pull()
	assert.Equal(t, 3, a.schools.snap.Page)
	press(a, tea.KeyRight)
	a.schools.pull()
	assert.Equal(t, 3, a.schools.snap.Page, "paging clamps at the last page")

	press(a, tea.KeyLeft)
	a.schools.pull()
	assert.Equal(t, 2, a.schools.snap.Page)
}

func TestKeyHandler_ReaderDigits(t *testing.T) {
	a, _ := newTestApp(t)
	a.openReader(storage.Note{ID: 1, Title: "Parcial", FilesURL: []string{"https://cdn.profe.app/a.pdf"}})

	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("1")})
	assert.NotNil(t, cmd, "first attachment opens")

	_, cmd = a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("5")})
	assert.Nil(t, cmd, "missing attachment is ignored")
}

func TestKeyHandler_OpenWithoutAttachments(t *testing.T) {
	a, _ := newTestApp(t)
	a.openReader(storage.Note{ID: 1, Title: "Parcial"})

	press(a, tea.KeyCtrlO)
	assert.Equal(t, MsgNoAttachments, a.status.text)
}

func TestGetHelpForCurrentView(t *testing.T) {
	a, _ := newTestApp(t)

	assert.Contains(t, a.keyHandler.GetHelpForCurrentView(), "enter: search now")

	loadRandom(t, a)
	press(a, tea.KeyTab)
	assert.Contains(t, a.keyHandler.GetHelpForCurrentView(), "ctrl+r: shuffle")
}
