package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/pders01/profe/internal/api"
	"github.com/pders01/profe/internal/catalog"
	"github.com/pders01/profe/internal/config"
	"github.com/pders01/profe/internal/media"
	"github.com/pders01/profe/internal/searchctl"
	"github.com/pders01/profe/internal/storage"
)

type App struct {
	cfg        *config.Config
	catalog    *catalog.Manager
	launcher   *media.Launcher
	keys       keyMap
	keyHandler *KeyHandler
	offline    bool

	view    View
	history []View

	schools    *pane[storage.School]
	professors *pane[storage.Professor]
	staff      *pane[storage.Professor]
	reviews    *pane[storage.Review]
	notes      *pane[storage.Note]

	schoolNames     map[int64]string
	school          *storage.School
	loadingSchoolID int64
	professor       *storage.Professor
	detail          *api.ProfessorDetail
	notesProfessor  int64
	notesLoading    bool
	subjects        []string
	subject         int // index into subjects, -1 for all
	note            *storage.Note

	viewport      viewport.Model
	spinner       spinner.Model
	help          help.Model
	renderer      *glamour.TermRenderer
	rendererWidth int

	status    toast
	statusSeq int

	width  int
	height int
}

// NewApp builds the interactive browser. With offline set every search runs
// against the session index.
func NewApp(cat *catalog.Manager, launcher *media.Launcher, cfg *config.Config, offline bool) *App {
	ApplyTheme(cfg.UI.Colors)

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(AccentColor)

	a := &App{
		cfg:         cfg,
		catalog:     cat,
		launcher:    launcher,
		keys:        newKeyMap(cfg.Keys),
		offline:     offline,
		view:        ViewSchools,
		schoolNames: make(map[int64]string),
		subject:     -1,
		viewport:    viewport.New(0, 0),
		spinner:     sp,
		help:        help.New(),
	}
	a.keyHandler = NewKeyHandler(a)

	a.schools = newPane("schools", "Search schools…",
		cat.Schools(offline), controllerConfig(cfg, cfg.Search.Schools))
	a.professors = newPane("professors", "Search professors by name or subject…",
		cat.Professors(offline), controllerConfig(cfg, cfg.Search.Professors))
	a.professors.input.Blur()
	a.restoreProfessors()
	return a
}

// restoreProfessors shows the last professor search again while the
// professor search box is blank.
func (a *App) restoreProfessors() {
	a.professors.ctl.SetSource(a.catalog.LastProfessors())
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.loadRandomSchools(),
		a.schools.wait(),
		a.professors.wait(),
		a.spinner.Tick,
		textinput.Blink,
	)
}

// Close stops every search controller.
func (a *App) Close() {
	for _, p := range a.panes() {
		p.close()
	}
}

func (a *App) panes() []listPane {
	out := []listPane{a.schools, a.professors}
	if a.staff != nil {
		out = append(out, a.staff)
	}
	if a.reviews != nil {
		out = append(out, a.reviews)
	}
	if a.notes != nil {
		out = append(out, a.notes)
	}
	return out
}

// activePane returns the list of the current view, or nil when the view
// has none.
func (a *App) activePane() listPane {
	switch a.view {
	case ViewSchools:
		return a.schools
	case ViewProfessors:
		return a.professors
	case ViewSchool:
		if a.staff != nil {
			return a.staff
		}
	case ViewProfessor:
		if a.reviews != nil {
			return a.reviews
		}
	case ViewNotes:
		if a.notes != nil {
			return a.notes
		}
	}
	return nil
}

func (a *App) viewKeys() viewKeys {
	p := a.activePane()
	return viewKeys{km: a.keys, view: a.view, inputMode: p != nil && p.focused()}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.help.Width = msg.Width
		a.viewport.Width = msg.Width
		a.viewport.Height = max(msg.Height-6, 3)
		if a.view == ViewReader && a.note != nil {
			return a, a.renderNote(*a.note)
		}
		return a, nil

	case tea.KeyMsg:
		return a.keyHandler.HandleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case snapshotMsg:
		return a, a.handleSnapshot(msg)

	case randomSchoolsMsg:
		if msg.err != nil {
			return a, a.notify(msg.err)
		}
		a.schools.ctl.SetSource(msg.schools)
		return a, nil

	case schoolLoadedMsg:
		return a, a.handleSchool(msg)

	case professorLoadedMsg:
		return a, a.handleProfessor(msg)

	case notesLoadedMsg:
		return a, a.handleNotes(msg)

	case schoolNamesMsg:
		for id, name := range msg.names {
			a.schoolNames[id] = name
		}
		if msg.err != nil && !isMissing(msg.err) {
			return a, a.notify(msg.err)
		}
		return a, nil

	case noteRenderedMsg:
		if a.note != nil && a.note.ID == msg.noteID {
			a.viewport.SetContent(msg.content)
			a.viewport.GotoTop()
		}
		return a, nil

	case statusMsg:
		return a, a.setStatus(msg.text, msg.kind, a.cfg.UI.ToastDuration)

	case clearStatusMsg:
		a.clearStatus(msg.id)
		return a, nil

	case errorMsg:
		return a, a.notify(msg.err)
	}

	if p := a.activePane(); p != nil && p.focused() {
		return a, p.updateInput(msg)
	}
	return a, nil
}

// handleSnapshot pulls the pane's latest state and re-arms its wait. Each
// failure notice becomes one toast.
func (a *App) handleSnapshot(msg snapshotMsg) tea.Cmd {
	if msg.pane.closed() {
		return nil
	}
	cmds := []tea.Cmd{msg.pane.wait()}
	for _, err := range msg.pane.pull() {
		cmds = append(cmds, a.notify(err))
	}
	if msg.pane == listPane(a.professors) {
		cmds = append(cmds, a.resolveSchoolNames(a.professors.snap.Items))
	}
	return tea.Batch(cmds...)
}

func (a *App) handleSchool(msg schoolLoadedMsg) tea.Cmd {
	if msg.id != a.loadingSchoolID {
		return nil
	}
	a.loadingSchoolID = 0
	if msg.err != nil {
		if a.view == ViewSchool {
			a.popView()
		}
		return a.notify(msg.err)
	}

	a.school = msg.school
	a.schoolNames[msg.school.ID] = msg.school.Name
	a.closeStaff()
	professors := msg.school.Professors
	a.staff = newPane("staff", "Filter professors…",
		localSearch(professors, professorFields),
		a.localConfig(a.cfg.Search.Professors),
		searchctl.WithSource(professors))
	a.staff.input.Blur()
	return a.staff.wait()
}

func (a *App) handleProfessor(msg professorLoadedMsg) tea.Cmd {
	if a.professor == nil || a.professor.ID != msg.professor.ID {
		return nil
	}
	if msg.err != nil {
		if a.view == ViewProfessor {
			a.popView()
		}
		return a.notify(msg.err)
	}
	a.detail = msg.detail
	a.closeReviews()
	if msg.detail == nil {
		return nil
	}
	reviews := msg.detail.Reviews
	a.reviews = newPane("reviews", "Filter reviews…",
		localSearch(reviews, reviewFields),
		a.localConfig(a.cfg.Search.Reviews),
		searchctl.WithSource(reviews))
	a.reviews.input.Blur()
	return a.reviews.wait()
}

func (a *App) handleNotes(msg notesLoadedMsg) tea.Cmd {
	if msg.professorID != a.notesProfessor {
		return nil
	}
	a.notesLoading = false
	if msg.err != nil && !isMissing(msg.err) {
		return a.notify(msg.err)
	}
	a.subjects = subjectsOf(msg.notes)
	a.subject = -1
	if a.notes != nil {
		a.notes.ctl.SetSource(msg.notes)
	}
	return nil
}

func professorFields(p storage.Professor) []string { return []string{p.Name, p.Subject} }
func reviewFields(r storage.Review) []string {
	return append([]string{r.Subject, r.Text}, r.Tags...)
}

func subjectsOf(notes []storage.Note) []string {
	var out []string
	for _, n := range notes {
		if s := strings.TrimSpace(n.Subject); s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return out
}

// localConfig is the controller config for in-memory lists, which always
// show everything on a blank query.
func (a *App) localConfig(rc config.ResourceConfig) searchctl.Config {
	c := controllerConfig(a.cfg, rc)
	c.EmptyQuery = searchctl.EmptyShowsSource
	return c
}

// Navigation

func (a *App) pushView(v View) {
	if a.view == v {
		return
	}
	a.history = append(a.history, a.view)
	a.view = v
}

func (a *App) popView() {
	if len(a.history) == 0 {
		return
	}
	prev := a.history[len(a.history)-1]
	a.history = a.history[:len(a.history)-1]
	a.leave(a.view)
	a.view = prev
}

// leave releases what a view held once it is no longer reachable.
func (a *App) leave(v View) {
	switch v {
	case ViewSchool:
		a.closeStaff()
		a.school = nil
		a.loadingSchoolID = 0
	case ViewProfessor:
		a.closeReviews()
		a.professor = nil
		a.detail = nil
	case ViewNotes:
		if a.notes != nil {
			a.notes.close()
			a.notes = nil
		}
		a.notesProfessor = 0
		a.notesLoading = false
		a.subjects = nil
		a.subject = -1
	case ViewReader:
		a.note = nil
		a.viewport.SetContent("")
	}
}

func (a *App) closeStaff() {
	if a.staff != nil {
		a.staff.close()
		a.staff = nil
	}
}

func (a *App) closeReviews() {
	if a.reviews != nil {
		a.reviews.close()
		a.reviews = nil
	}
}

// showRoot switches to one of the two search views and forgets the path
// that led elsewhere.
func (a *App) showRoot(v View) tea.Cmd {
	for i := len(a.history) - 1; i >= 0; i-- {
		a.leave(a.view)
		a.view = a.history[i]
	}
	a.history = nil
	a.leave(a.view)
	a.view = v
	if v == ViewProfessors {
		a.restoreProfessors()
	}
	if p := a.activePane(); p != nil {
		return p.focus()
	}
	return nil
}

func (a *App) openSchool(s storage.School) tea.Cmd {
	a.pushView(ViewSchool)
	a.school = &s
	a.closeStaff()
	a.loadingSchoolID = s.ID
	return tea.Batch(a.loadSchool(s.ID), a.setStatus(MsgLoadingSchool, StatusInfo, 0))
}

func (a *App) openProfessor(p storage.Professor) tea.Cmd {
	a.pushView(ViewProfessor)
	a.professor = &p
	a.detail = nil
	a.closeReviews()
	return tea.Batch(a.loadProfessor(p), a.setStatus(MsgLoadingProfessor, StatusInfo, 0))
}

func (a *App) openNotes(p storage.Professor) tea.Cmd {
	a.pushView(ViewNotes)
	if a.notes != nil {
		a.notes.close()
	}
	a.notesProfessor = p.ID
	a.notesLoading = true
	a.subjects = nil
	a.subject = -1
	a.notes = newPane("notes", "Search "+p.Name+"'s notes…",
		a.catalog.Notes(p.ID, a.offline),
		controllerConfig(a.cfg, a.cfg.Search.Notes))
	return tea.Batch(a.loadNotes(p.ID), a.notes.wait(), a.notes.focus())
}

func (a *App) openReader(n storage.Note) tea.Cmd {
	a.pushView(ViewReader)
	a.note = &n
	a.viewport.SetContent(MsgRendering)
	return a.renderNote(n)
}

// cycleSubject steps the notes filter through every subject and back to
// all notes.
func (a *App) cycleSubject() tea.Cmd {
	if a.notes == nil || len(a.subjects) == 0 {
		return nil
	}
	a.subject++
	if a.subject >= len(a.subjects) {
		a.subject = -1
	}
	if a.subject < 0 {
		a.notes.ctl.SetFilter(nil)
		return a.setStatus("All subjects", StatusInfo, a.cfg.UI.ToastDuration)
	}
	want := a.subjects[a.subject]
	a.notes.ctl.SetFilter(func(n storage.Note) bool { return strings.EqualFold(n.Subject, want) })
	return a.setStatus("Subject: "+want, StatusInfo, a.cfg.UI.ToastDuration)
}

func (a *App) busy() bool {
	if a.loadingSchoolID != 0 || a.notesLoading {
		return true
	}
	if a.view == ViewProfessor && a.professor != nil && a.detail == nil && !a.offline {
		return true
	}
	p := a.activePane()
	return p != nil && p.loading()
}

// View

func (a *App) View() string {
	if a.width == 0 {
		return renderCentered(80, 10, GetWelcomeMessage(a.cfg.Keys.Modifier))
	}
	width := max(a.width-2, 20)

	header := a.viewHeader(width)
	footer := a.viewFooter()
	bodyHeight := max(a.height-lipgloss.Height(header)-lipgloss.Height(footer)-1, 1)

	var body string
	switch a.view {
	case ViewSchools:
		body = a.schools.view(width, a.renderSchool, "No schools to show yet")
	case ViewProfessors:
		body = a.professors.view(width, a.renderProfessor, "Type a name or subject")
	case ViewSchool:
		body = a.viewSchool(width)
	case ViewProfessor:
		body = a.viewProfessor(width)
	case ViewNotes:
		body = a.viewNotes(width)
	case ViewReader:
		a.viewport.Width = width
		a.viewport.Height = bodyHeight
		body = a.viewport.View()
	}
	body = lipgloss.NewStyle().MaxHeight(bodyHeight).Render(body)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, "", footer)
}

func (a *App) viewHeader(width int) string {
	title, subtitle := a.breadcrumb()
	var badges []string
	if a.offline {
		badges = append(badges, TagStyle.Render(MsgOffline))
	}
	if a.busy() {
		badges = append(badges, a.spinner.View())
	}
	head := renderHeader(CompactLogo+"  "+title, subtitle, width)
	if len(badges) == 0 {
		return head
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, head, "  ", strings.Join(badges, " "))
}

func (a *App) breadcrumb() (string, string) {
	switch a.view {
	case ViewSchools:
		return "Schools", ""
	case ViewProfessors:
		return "Professors", ""
	case ViewSchool:
		if a.school != nil {
			return a.school.Name, a.school.Address
		}
	case ViewProfessor:
		if a.professor != nil {
			return a.professor.Name, a.professorSubtitle(*a.professor)
		}
	case ViewNotes:
		if a.professor != nil {
			return "Notes · " + a.professor.Name, a.subjectLabel()
		}
		return "Notes", a.subjectLabel()
	case ViewReader:
		if a.note != nil {
			return a.note.Title, a.note.Subject
		}
	}
	return a.view.String(), ""
}

func (a *App) subjectLabel() string {
	if a.subject < 0 || a.subject >= len(a.subjects) {
		return ""
	}
	return "Subject: " + a.subjects[a.subject]
}

func (a *App) professorSubtitle(p storage.Professor) string {
	var parts []string
	if p.Subject != "" {
		parts = append(parts, p.Subject)
	}
	if name, ok := a.schoolNames[p.SchoolID]; ok {
		parts = append(parts, name)
	}
	return strings.Join(parts, " • ")
}

func (a *App) viewFooter() string {
	if line := a.status.render(); line != "" {
		return StatusBarStyle.Render(line)
	}
	return StatusBarStyle.Render(a.help.View(a.viewKeys()))
}

func (a *App) viewSchool(width int) string {
	if a.staff == nil {
		return renderMuted("  " + MsgLoadingSchool)
	}
	var rows []string
	if a.school != nil {
		rows = append(rows, renderMuted(fmt.Sprintf("  %s • %s",
			plural(len(a.school.Professors), "professor"), plural(a.school.TotalReviews, "review"))), "")
	}
	rows = append(rows, a.staff.view(width, a.renderProfessor, "No professors listed"))
	return strings.Join(rows, "\n")
}

func (a *App) viewProfessor(width int) string {
	if a.detail == nil {
		if a.offline {
			return renderMuted("  Reviews are not available offline")
		}
		return renderMuted("  " + MsgLoadingProfessor)
	}
	st := a.detail.Stats
	rows := []string{
		fmt.Sprintf("  %s %.1f • Difficulty %.1f • %.0f%% would take again • %s",
			StarStyle.Render("Quality"), st.AvgQuality, st.AvgDifficulty,
			st.WouldTakeAgainPercent, plural(st.Count, "review")),
	}
	if tags := renderTags(a.detail.Tags, width-2); tags != "" {
		rows = append(rows, "  "+tags)
	}
	rows = append(rows, "")
	if a.reviews != nil {
		rows = append(rows, a.reviews.view(width, renderReview, "No reviews yet"))
	}
	return strings.Join(rows, "\n")
}

func (a *App) viewNotes(width int) string {
	if a.notes == nil {
		return renderMuted("  " + MsgLoadingNotes)
	}
	empty := "No notes yet"
	if a.notesLoading {
		empty = MsgLoadingNotes
	}
	return a.notes.view(width, renderNoteItem, empty)
}

func (a *App) renderSchool(s storage.School, selected bool, width int) string {
	var detail []string
	if s.Address != "" {
		detail = append(detail, s.Address)
	}
	if s.TotalProfessors > 0 {
		detail = append(detail, plural(s.TotalProfessors, "professor"))
	}
	if s.TotalReviews > 0 {
		detail = append(detail, plural(s.TotalReviews, "review"))
	}
	return renderItem(s.Name, strings.Join(detail, " • "), selected, width)
}

func (a *App) renderProfessor(p storage.Professor, selected bool, width int) string {
	detail := a.professorSubtitle(p)
	if p.TotalReviews > 0 {
		if detail != "" {
			detail += " • "
		}
		detail += plural(p.TotalReviews, "review")
	}
	return renderItem(p.Name, detail, selected, width)
}

func renderReview(r storage.Review, selected bool, width int) string {
	title := StarStyle.Render(stars(r.Rating))
	if r.Subject != "" {
		title += " " + r.Subject
	}
	return renderItem(title, singleLine(r.Text), selected, width)
}

func renderNoteItem(n storage.Note, selected bool, width int) string {
	var detail []string
	if n.Subject != "" {
		detail = append(detail, n.Subject)
	}
	if len(n.FilesURL) > 0 {
		detail = append(detail, plural(len(n.FilesURL), "attachment"))
	}
	if c := singleLine(n.Content); c != "" {
		detail = append(detail, c)
	}
	return renderItem(n.Title, strings.Join(detail, " • "), selected, width)
}
