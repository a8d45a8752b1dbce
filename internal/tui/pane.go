package tui

import (
	"context"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pders01/profe/internal/config"
	"github.com/pders01/profe/internal/debuglog"
	"github.com/pders01/profe/internal/search"
	"github.com/pders01/profe/internal/searchctl"
)

// mailbox hands controller snapshots to the bubbletea loop. The controller
// listener must never block, so put only overwrites the latest snapshot and
// pokes a one-slot signal channel.
type mailbox[T any] struct {
	mu      sync.Mutex
	latest  searchctl.Snapshot[T]
	fresh   bool
	notices []error

	signal chan struct{}
	done   chan struct{}
}

func newMailbox[T any]() *mailbox[T] {
	return &mailbox[T]{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (m *mailbox[T]) put(s searchctl.Snapshot[T]) {
	m.mu.Lock()
	m.latest = s
	m.fresh = true
	if s.Notice != nil {
		m.notices = append(m.notices, s.Notice)
	}
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *mailbox[T]) take() (searchctl.Snapshot[T], []error, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, notices, ok := m.latest, m.notices, m.fresh
	m.fresh = false
	m.notices = nil
	return s, notices, ok
}

// snapshotMsg tells the loop that a pane has a new snapshot waiting.
type snapshotMsg struct {
	pane puller
}

type puller interface {
	pull() []error
	wait() tea.Cmd
	closed() bool
}

// pane is a search box over a paged result list, backed by a controller.
type pane[T any] struct {
	name   string
	input  textinput.Model
	ctl    *searchctl.Controller[T]
	box    *mailbox[T]
	snap   searchctl.Snapshot[T]
	cursor int
	once   sync.Once
}

func newPane[T any](name, placeholder string, fetch searchctl.SearchFunc[T], cfg searchctl.Config, opts ...searchctl.Option[T]) *pane[T] {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = "› "
	ti.CharLimit = maxQueryLength
	ti.Focus()

	p := &pane[T]{name: name, input: ti, box: newMailbox[T]()}
	cfg.Name = name
	opts = append(opts, searchctl.WithListener(p.box.put))
	p.ctl = searchctl.New(fetch, cfg, opts...)
	p.snap = p.ctl.Snapshot()
	return p
}

// controllerConfig maps a [search] resource section onto controller
// settings.
func controllerConfig(cfg *config.Config, rc config.ResourceConfig) searchctl.Config {
	policy, err := searchctl.ParseEmptyQueryPolicy(rc.EmptyQuery)
	if err != nil {
		debuglog.Warnf("%v; showing the source list", err)
	}
	return searchctl.Config{
		Debounce:   cfg.Search.Debounce,
		Timeout:    cfg.Search.Timeout,
		PageSize:   rc.PageSize,
		EmptyQuery: policy,
	}
}

// localSearch filters a fixed list in memory, for lists that are already
// fully loaded such as a school's staff.
func localSearch[T any](items []T, fields func(T) []string) searchctl.SearchFunc[T] {
	return func(ctx context.Context, q string) ([]T, error) {
		var out []T
		for _, item := range items {
			if search.Matches(q, fields(item)...) {
				out = append(out, item)
			}
		}
		return out, ctx.Err()
	}
}

func (p *pane[T]) wait() tea.Cmd {
	signal, done := p.box.signal, p.box.done
	return func() tea.Msg {
		select {
		case <-signal:
			return snapshotMsg{pane: p}
		case <-done:
			return nil
		}
	}
}

func (p *pane[T]) pull() []error {
	s, notices, ok := p.box.take()
	if !ok {
		return notices
	}
	if s.Version < p.snap.Version {
		return notices
	}
	if s.Page != p.snap.Page || s.Seq != p.snap.Seq {
		p.cursor = 0
	}
	p.snap = s
	p.cursor = max(0, min(p.cursor, len(s.Items)-1))
	return notices
}

// updateInput feeds a key to the text input and forwards changed text to
// the controller.
func (p *pane[T]) updateInput(msg tea.Msg) tea.Cmd {
	before := sanitizeQuery(p.input.Value())
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	if after := sanitizeQuery(p.input.Value()); after != before {
		p.ctl.SetQuery(after)
	}
	return cmd
}

func (p *pane[T]) focused() bool { return p.input.Focused() }

func (p *pane[T]) focus() tea.Cmd {
	return p.input.Focus()
}

// blur moves focus to the result list when there is one.
func (p *pane[T]) blur() bool {
	if len(p.snap.Items) == 0 {
		return false
	}
	p.input.Blur()
	return true
}

func (p *pane[T]) move(delta int) {
	if len(p.snap.Items) == 0 {
		p.cursor = 0
		return
	}
	p.cursor = max(0, min(p.cursor+delta, len(p.snap.Items)-1))
}

func (p *pane[T]) selected() (T, bool) {
	var zero T
	if p.cursor < 0 || p.cursor >= len(p.snap.Items) {
		return zero, false
	}
	return p.snap.Items[p.cursor], true
}

func (p *pane[T]) nextPage() { p.ctl.NextPage() }
func (p *pane[T]) prevPage() { p.ctl.PrevPage() }

func (p *pane[T]) close() {
	p.once.Do(func() {
		p.ctl.Close()
		close(p.box.done)
	})
}

func (p *pane[T]) closed() bool { return p.ctl.Closed() }

// view renders the input, the current page and the pager.
func (p *pane[T]) view(width int, render func(item T, selected bool, width int) string, empty string) string {
	p.input.Width = max(width-8, 10)
	rows := []string{renderInputFrame(p.input.View(), p.input.Focused(), width-8)}

	switch {
	case len(p.snap.Items) > 0:
		var b strings.Builder
		for i, item := range p.snap.Items {
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(render(item, !p.input.Focused() && i == p.cursor, width))
		}
		rows = append(rows, b.String())
	case p.snap.Loading:
		rows = append(rows, renderMuted("  Searching…"))
	case strings.TrimSpace(p.snap.DebouncedQuery) != "":
		rows = append(rows, renderMuted("  "+MsgNoResults))
	case empty != "":
		rows = append(rows, renderMuted("  "+empty))
	}

	footer := renderPager(p.snap.Page, p.snap.TotalPages)
	if n := len(p.snap.Results); n > 0 {
		footer = strings.TrimSpace(footer + "  " + renderMuted(MsgResultsCount(n)))
	}
	if footer != "" {
		rows = append(rows, "", footer)
	}
	return strings.Join(rows, "\n")
}

func (p *pane[T]) submit() { p.ctl.Submit() }

// atTop reports whether the cursor sits on the first row of the page.
func (p *pane[T]) atTop() bool { return p.cursor == 0 }

func (p *pane[T]) loading() bool { return p.snap.Loading }

// listPane is the type-erased view of a pane that key handling needs.
type listPane interface {
	puller
	focused() bool
	focus() tea.Cmd
	blur() bool
	updateInput(msg tea.Msg) tea.Cmd
	move(delta int)
	atTop() bool
	loading() bool
	nextPage()
	prevPage()
	submit()
	close()
}
