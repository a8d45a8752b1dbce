// Package searchctl turns free-text input into a paginated view of remote
// search results.
//
// Keystrokes go to SetQuery, which only records the text and (re)arms a
// quiet-period task. When the text has been stable for the debounce window the
// task fires and issues exactly one fetch. Every fetch carries a sequence
// number; a response is applied only if it belongs to the most recent request,
// so a slow earlier reply can never overwrite a newer one. Paging is pure
// slicing of the fetched result set.
package searchctl

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pders01/profe/internal/debuglog"
	"github.com/pders01/profe/internal/pagination"
)

const (
	DefaultDebounce = 500 * time.Millisecond
	DefaultTimeout  = 10 * time.Second
	DefaultPageSize = pagination.SchoolPageSize
)

// SearchFunc is the remote search collaborator. It returns a possibly empty
// ordered slice, or an error for transport failures and non-2xx replies.
type SearchFunc[T any] func(ctx context.Context, query string) ([]T, error)

// EmptyQueryPolicy decides what a blank query shows. No fetch is issued
// either way.
type EmptyQueryPolicy int

const (
	// EmptyShowsSource shows the unfiltered source list.
	EmptyShowsSource EmptyQueryPolicy = iota
	// EmptyShowsNothing shows no results.
	EmptyShowsNothing
)

func (p EmptyQueryPolicy) String() string {
	if p == EmptyShowsNothing {
		return "none"
	}
	return "source"
}

// ParseEmptyQueryPolicy accepts "source" (alias "all") and "none" (alias
// "nothing").
func ParseEmptyQueryPolicy(s string) (EmptyQueryPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "source", "all", "":
		return EmptyShowsSource, nil
	case "none", "nothing":
		return EmptyShowsNothing, nil
	default:
		return EmptyShowsSource, fmt.Errorf("%w: got %q", ErrInvalidPolicy, s)
	}
}

// Config tunes a controller. Zero values fall back to the defaults.
type Config struct {
	Name       string
	Debounce   time.Duration
	Timeout    time.Duration
	PageSize   int
	EmptyQuery EmptyQueryPolicy
	Scheduler  Scheduler
	// Notify is called once per failed fetch with a *FetchError.
	Notify func(error)
}

func (c Config) withDefaults() Config {
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.Scheduler == nil {
		c.Scheduler = WallClock()
	}
	if c.Name == "" {
		c.Name = "search"
	}
	return c
}

// Snapshot is an immutable copy of controller state.
type Snapshot[T any] struct {
	Query          string
	DebouncedQuery string
	Results        []T
	Items          []T
	Page           int
	PageSize       int
	TotalPages     int
	Loading        bool
	// Err is the last fetch failure; it stays set until the next result.
	Err error
	// Notice is set only on the snapshot emitted right after a failure.
	Notice  error
	Seq     uint64
	Version uint64
}

// Empty reports whether the result set has no items.
func (s Snapshot[T]) Empty() bool { return len(s.Results) == 0 }

type Option[T any] func(*Controller[T])

// WithFilter keeps only items for which keep returns true.
func WithFilter[T any](keep func(T) bool) Option[T] {
	return func(c *Controller[T]) { c.filter = keep }
}

// WithLess sorts the result set after filtering. The sort is stable.
func WithLess[T any](less func(a, b T) bool) Option[T] {
	return func(c *Controller[T]) { c.less = less }
}

// WithSource seeds the unfiltered default list.
func WithSource[T any](items []T) Option[T] {
	return func(c *Controller[T]) { c.source = slices.Clone(items) }
}

// WithListener is called after every state change, in mutation order. It
// must not call controller methods synchronously; hand the snapshot off to
// another goroutine instead.
func WithListener[T any](fn func(Snapshot[T])) Option[T] {
	return func(c *Controller[T]) { c.listener = fn }
}

// WithNotifier overrides Config.Notify.
func WithNotifier[T any](fn func(error)) Option[T] {
	return func(c *Controller[T]) { c.cfg.Notify = fn }
}

// Controller coordinates debounced search, stale-response rejection and
// client-side paging. It is safe for concurrent use.
type Controller[T any] struct {
	cfg      Config
	search   SearchFunc[T]
	filter   func(T) bool
	less     func(a, b T) bool
	listener func(Snapshot[T])
	log      *debuglog.FieldLogger

	mu        sync.Mutex
	query     string
	debounced string
	source    []T
	fetched   []T
	results   []T
	page      int
	loading   bool
	err       error
	seq       uint64
	version   uint64
	timer     Timer
	timerGen  uint64
	cancel    context.CancelFunc
	closed    bool

	emitMu sync.Mutex
	wg     sync.WaitGroup
}

// New builds a controller around search.
func New[T any](search SearchFunc[T], cfg Config, opts ...Option[T]) *Controller[T] {
	cfg = cfg.withDefaults()
	c := &Controller[T]{
		cfg:    cfg,
		search: search,
		page:   pagination.DefaultPage,
		log:    debuglog.WithFields(map[string]any{"controller": cfg.Name}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if cfg.EmptyQuery == EmptyShowsSource {
		c.fetched = slices.Clone(c.source)
		c.applyLocked()
	}
	return c
}

// SetQuery records new input. It never touches the network directly; it
// re-arms the quiet-period task.
func (c *Controller[T]) SetQuery(text string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.query = text
	c.stopTimerLocked()
	gen := c.timerGen
	c.timer = c.cfg.Scheduler.AfterFunc(c.cfg.Debounce, func() { c.onQuietPeriod(gen) })
	c.commit(nil)
}

// Submit fetches the current query immediately, dropping any pending
// quiet-period task.
func (c *Controller[T]) Submit() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.stopTimerLocked()
	c.beginLocked(c.query)
	c.commit(nil)
}

func (c *Controller[T]) onQuietPeriod(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.timerGen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.beginLocked(c.query)
	c.commit(nil)
}

func (c *Controller[T]) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerGen++
}

// beginLocked starts a new request generation for text. Blank text is
// resolved locally according to the empty-query policy.
func (c *Controller[T]) beginLocked(text string) {
	c.debounced = text
	c.seq++
	seq := c.seq
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}

	if strings.TrimSpace(text) == "" {
		c.loading = false
		c.err = nil
		if c.cfg.EmptyQuery == EmptyShowsSource {
			c.fetched = slices.Clone(c.source)
		} else {
			c.fetched = nil
		}
		c.applyLocked()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	c.cancel = cancel
	c.loading = true
	c.wg.Add(1)
	c.log.Debugf("fetch #%d %q", seq, text)
	go c.fetch(ctx, cancel, seq, text)
}

func (c *Controller[T]) fetch(ctx context.Context, cancel context.CancelFunc, seq uint64, text string) {
	defer c.wg.Done()
	defer cancel()

	start := time.Now()
	items, err := c.runSearch(ctx, text)

	c.mu.Lock()
	if c.closed || seq != c.seq {
		c.mu.Unlock()
		c.log.Debugf("%v: #%d %q dropped after %s", ErrStaleResponse, seq, text, debuglog.Since(start))
		return
	}
	c.cancel = nil
	c.loading = false

	if err != nil {
		ferr := &FetchError{Query: text, Err: err}
		c.err = ferr
		c.fetched = nil
		c.applyLocked()
		c.log.Warnf("fetch #%d failed: %v", seq, err)
		c.commit(ferr)
		return
	}

	c.err = nil
	c.fetched = items
	c.applyLocked()
	c.log.Debugf("fetch #%d %q: %d results in %s", seq, text, len(items), debuglog.Since(start))
	c.commit(nil)
}

func (c *Controller[T]) runSearch(ctx context.Context, text string) (items []T, err error) {
	defer func() {
		if r := recover(); r != nil {
			items, err = nil, fmt.Errorf("search panicked: %v", r)
		}
	}()
	return c.search(ctx, text)
}

// applyLocked derives the result set from the fetched list and resets the
// page.
func (c *Controller[T]) applyLocked() {
	out := make([]T, 0, len(c.fetched))
	for _, item := range c.fetched {
		if c.filter == nil || c.filter(item) {
			out = append(out, item)
		}
	}
	if c.less != nil {
		sort.SliceStable(out, func(i, j int) bool { return c.less(out[i], out[j]) })
	}
	c.results = out
	c.page = pagination.DefaultPage
}

// SetPage moves to page n clamped to the valid range and returns the page
// actually selected.
func (c *Controller[T]) SetPage(n int) int {
	c.mu.Lock()
	c.page = pagination.Clamp(n, len(c.results), c.cfg.PageSize)
	page := c.page
	c.commit(nil)
	return page
}

func (c *Controller[T]) NextPage() int {
	c.mu.Lock()
	n := c.page + 1
	c.mu.Unlock()
	return c.SetPage(n)
}

func (c *Controller[T]) PrevPage() int {
	c.mu.Lock()
	n := c.page - 1
	c.mu.Unlock()
	return c.SetPage(n)
}

// Page returns the items visible on the current page.
func (c *Controller[T]) Page() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(pagination.Slice(c.results, c.page, c.cfg.PageSize))
}

// SetSource replaces the unfiltered default list. It becomes the result set
// when the current query is blank and the policy shows the source.
func (c *Controller[T]) SetSource(items []T) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.source = slices.Clone(items)
	if strings.TrimSpace(c.debounced) == "" && c.cfg.EmptyQuery == EmptyShowsSource {
		c.fetched = slices.Clone(c.source)
		c.applyLocked()
	}
	c.commit(nil)
}

// SetFilter swaps the local filter and re-derives the result set.
func (c *Controller[T]) SetFilter(keep func(T) bool) {
	c.mu.Lock()
	c.filter = keep
	c.applyLocked()
	c.commit(nil)
}

// Snapshot returns the current state.
func (c *Controller[T]) Snapshot() Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked(nil)
}

func (c *Controller[T]) snapshotLocked(notice error) Snapshot[T] {
	return Snapshot[T]{
		Query:          c.query,
		DebouncedQuery: c.debounced,
		Results:        slices.Clone(c.results),
		Items:          slices.Clone(pagination.Slice(c.results, c.page, c.cfg.PageSize)),
		Page:           c.page,
		PageSize:       c.cfg.PageSize,
		TotalPages:     pagination.TotalPages(len(c.results), c.cfg.PageSize),
		Loading:        c.loading,
		Err:            c.err,
		Notice:         notice,
		Seq:            c.seq,
		Version:        c.version,
	}
}

// commit must be called with mu held; it releases mu. Listeners and the
// notifier run outside mu but under emitMu, so they observe changes in
// order.
func (c *Controller[T]) commit(notice error) {
	c.version++
	snap := c.snapshotLocked(notice)
	c.emitMu.Lock()
	c.mu.Unlock()
	defer c.emitMu.Unlock()

	if c.listener != nil {
		c.listener(snap)
	}
	if notice != nil && c.cfg.Notify != nil {
		c.cfg.Notify(notice)
	}
}

// Wait blocks until every fetch issued so far has settled. Pending
// quiet-period tasks are not waited for.
func (c *Controller[T]) Wait() {
	c.wg.Wait()
}

// Close discards all state. Responses that arrive afterwards are ignored and
// further input is a no-op.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.stopTimerLocked()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.seq++
	c.fetched = nil
	c.results = nil
	c.source = nil
	c.page = pagination.DefaultPage
	c.loading = false
}

// Closed reports whether Close was called.
func (c *Controller[T]) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
