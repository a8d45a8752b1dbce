package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/pders01/profe/internal/api"
	"github.com/pders01/profe/internal/catalog"
	"github.com/pders01/profe/internal/storage"
)

// requestTimeout bounds page loads that are not driven by a search
// controller.
func (a *App) requestTimeout() time.Duration {
	if a.cfg.API.Timeout > 0 {
		return a.cfg.API.Timeout
	}
	return 10 * time.Second
}

func (a *App) loadRandomSchools() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), a.requestTimeout())
		defer cancel()
		schools, err := a.catalog.RandomSchools(ctx)
		return randomSchoolsMsg{schools: schools, err: err}
	}
}

// loadSchool fetches a school page. Offline, the remembered copy is used.
func (a *App) loadSchool(id int64) tea.Cmd {
	return func() tea.Msg {
		if a.offline {
			school, err := a.catalog.Store().GetSchool(id)
			if err == nil {
				catalog.SortProfessors(school.Professors)
			}
			return schoolLoadedMsg{id: id, school: school, err: err}
		}
		ctx, cancel := context.WithTimeout(context.Background(), a.requestTimeout())
		defer cancel()
		school, err := a.catalog.School(ctx, id, 0, 0)
		return schoolLoadedMsg{id: id, school: school, err: err}
	}
}

// loadProfessor fetches reviews and tags. They are never remembered, so
// offline the page shows the professor alone.
func (a *App) loadProfessor(p storage.Professor) tea.Cmd {
	return func() tea.Msg {
		if a.offline {
			return professorLoadedMsg{professor: p}
		}
		ctx, cancel := context.WithTimeout(context.Background(), a.requestTimeout())
		defer cancel()
		detail, err := a.catalog.Professor(ctx, p)
		return professorLoadedMsg{professor: p, detail: detail, err: err}
	}
}

// loadNotes lists a professor's notes. Without a token the notes
// remembered from earlier searches are used.
func (a *App) loadNotes(professorID int64) tea.Cmd {
	return func() tea.Msg {
		if a.offline || !a.catalog.Client().HasToken() {
			notes, err := a.catalog.Store().GetNotes(professorID)
			return notesLoadedMsg{professorID: professorID, notes: notes, err: err}
		}
		ctx, cancel := context.WithTimeout(context.Background(), a.requestTimeout())
		defer cancel()
		notes, err := a.catalog.AllNotes(ctx, professorID)
		return notesLoadedMsg{professorID: professorID, notes: notes, err: err}
	}
}

func (a *App) resolveSchoolNames(professors []storage.Professor) tea.Cmd {
	var missing []storage.Professor
	for _, p := range professors {
		if _, ok := a.schoolNames[p.SchoolID]; !ok && p.SchoolID > 0 {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), a.requestTimeout())
		defer cancel()
		names, err := a.catalog.SchoolNames(ctx, missing)
		return schoolNamesMsg{names: names, err: err}
	}
}

func (a *App) getRenderer() (*glamour.TermRenderer, error) {
	rc := a.cfg.UI.Reader
	width := (a.width * 9) / 10
	if rc.WordWrapMaxWidth > 0 {
		width = min(width, rc.WordWrapMaxWidth)
	}
	if rc.WordWrapMinWidth > 0 {
		width = max(width, rc.WordWrapMinWidth)
	}
	if a.width > 0 && a.width < 50 {
		width = max(a.width-4, 20)
	}

	if a.renderer == nil || abs(a.rendererWidth-width) > 10 {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return nil, err
		}
		a.renderer = r
		a.rendererWidth = width
	}
	return a.renderer, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// noteMarkdown lays a note out as a markdown document.
func noteMarkdown(n storage.Note) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", n.Title)
	var meta []string
	if n.Subject != "" {
		meta = append(meta, n.Subject)
	}
	if n.CreatedAt != "" {
		meta = append(meta, n.CreatedAt)
	}
	if len(meta) > 0 {
		fmt.Fprintf(&b, "*%s*\n\n", strings.Join(meta, " · "))
	}

	if len(n.FilesURL) > 0 {
		b.WriteString("**Attachments:**\n\n")
		for i, u := range n.FilesURL {
			fmt.Fprintf(&b, "%d. %s\n", i+1, u)
		}
		b.WriteString("\n")
	}

	b.WriteString("---\n\n")
	if strings.TrimSpace(n.Content) == "" {
		b.WriteString("_No text content._\n")
	} else {
		b.WriteString(n.Content)
	}
	return b.String()
}

func (a *App) renderNote(n storage.Note) tea.Cmd {
	r, err := a.getRenderer()
	return func() tea.Msg {
		if err != nil {
			return noteRenderedMsg{noteID: n.ID, content: "Error initializing renderer: " + err.Error()}
		}
		out, err := r.Render(noteMarkdown(n))
		if err != nil {
			return noteRenderedMsg{noteID: n.ID, content: fmt.Sprintf("Failed to render note: %v\n\n%s", err, n.Content)}
		}
		return noteRenderedMsg{noteID: n.ID, content: out}
	}
}

// openAttachments hands urls to the launcher.
func (a *App) openAttachments(urls []string) tea.Cmd {
	if len(urls) == 0 {
		return a.setStatus(MsgNoAttachments, StatusWarn, a.cfg.UI.ToastDuration)
	}
	return func() tea.Msg {
		if err := a.launcher.OpenAll(urls); err != nil {
			return errorMsg{err: err}
		}
		return statusMsg{text: MsgOpened(len(urls)), kind: StatusSuccess}
	}
}

// isMissing reports errors that mean "nothing there" rather than failure.
func isMissing(err error) bool {
	return api.IsNotFound(err) || errors.Is(err, storage.ErrNotFound)
}
