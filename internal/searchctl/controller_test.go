package searchctl

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualClock fires scheduled tasks only when Advance moves past their due
// time. Tasks run synchronously on the caller's goroutine.
type manualClock struct {
	mu    sync.Mutex
	now   time.Duration
	tasks []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	due     time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, due: c.now + d, f: f}
	c.tasks = append(c.tasks, t)
	return t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*manualTimer
	for _, t := range c.tasks {
		if !t.stopped && !t.fired && t.due <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].due < due[j].due })
	for _, t := range due {
		t.f()
	}
}

// recorder is a SearchFunc that logs every call.
type recorder struct {
	mu    sync.Mutex
	calls []string
	fn    func(ctx context.Context, q string) ([]string, error)
}

func (r *recorder) search(ctx context.Context, q string) ([]string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, q)
	r.mu.Unlock()
	if r.fn != nil {
		return r.fn(ctx, q)
	}
	return []string{q + "-1", q + "-2"}, nil
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func numbered(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("item-%02d", i+1)
	}
	return out
}

func newTestController(t *testing.T, r *recorder, cfg Config, opts ...Option[string]) (*Controller[string], *manualClock) {
	t.Helper()
	clock := &manualClock{}
	cfg.Scheduler = clock
	c := New(r.search, cfg, opts...)
	t.Cleanup(func() {
		c.Close()
		c.Wait()
	})
	return c, clock
}

func TestDebounceIssuesSingleFetch(t *testing.T) {
	r := &recorder{}
	c, clock := newTestController(t, r, Config{})

	for _, q := range []string{"e", "en", "eng", "engineering"} {
		c.SetQuery(q)
		clock.Advance(100 * time.Millisecond)
	}
	assert.Empty(t, r.Calls(), "no fetch while typing")

	clock.Advance(399 * time.Millisecond)
	assert.Empty(t, r.Calls(), "quiet period not yet elapsed")

	clock.Advance(time.Millisecond)
	c.Wait()

	assert.Equal(t, []string{"engineering"}, r.Calls())
	snap := c.Snapshot()
	assert.Equal(t, "engineering", snap.DebouncedQuery)
	assert.Equal(t, []string{"engineering-1", "engineering-2"}, snap.Results)
	assert.False(t, snap.Loading)
	assert.NoError(t, snap.Err)
}

func TestQueryIsRecordedImmediately(t *testing.T) {
	r := &recorder{}
	c, _ := newTestController(t, r, Config{})

	c.SetQuery("math")
	snap := c.Snapshot()
	assert.Equal(t, "math", snap.Query)
	assert.Equal(t, "", snap.DebouncedQuery)
}

func TestStaleResponseIsDropped(t *testing.T) {
	releaseA := make(chan struct{})
	releaseB := make(chan struct{})
	r := &recorder{fn: func(_ context.Context, q string) ([]string, error) {
		// Server replies regardless of client-side cancellation.
		switch q {
		case "A":
			<-releaseA
			return []string{"from-A"}, nil
		default:
			<-releaseB
			return []string{"from-B"}, nil
		}
	}}
	c, clock := newTestController(t, r, Config{})

	c.SetQuery("A")
	clock.Advance(DefaultDebounce)
	c.SetQuery("B")
	clock.Advance(DefaultDebounce)

	close(releaseB)
	close(releaseA)
	c.Wait()

	assert.Equal(t, []string{"A", "B"}, r.Calls())
	snap := c.Snapshot()
	assert.Equal(t, []string{"from-B"}, snap.Results)
	assert.Equal(t, "B", snap.DebouncedQuery)
	assert.False(t, snap.Loading)
}

func TestSupersededFetchIsCancelled(t *testing.T) {
	cancelled := make(chan error, 1)
	release := make(chan struct{})
	r := &recorder{fn: func(ctx context.Context, q string) ([]string, error) {
		if q == "first" {
			<-ctx.Done()
			cancelled <- ctx.Err()
			return nil, ctx.Err()
		}
		<-release
		return []string{q}, nil
	}}
	var notified int
	c, clock := newTestController(t, r, Config{Notify: func(error) { notified++ }})

	c.SetQuery("first")
	clock.Advance(DefaultDebounce)
	c.SetQuery("second")
	clock.Advance(DefaultDebounce)

	select {
	case err := <-cancelled:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("superseded fetch was not cancelled")
	}

	close(release)
	c.Wait()
	assert.Equal(t, []string{"second"}, c.Snapshot().Results)
	assert.Zero(t, notified, "cancelled stale fetch must not notify")
}

func TestFetchErrorNotifiesOnce(t *testing.T) {
	boom := errors.New("connection refused")
	r := &recorder{fn: func(context.Context, string) ([]string, error) { return nil, boom }}

	var (
		mu       sync.Mutex
		notified []error
	)
	notify := func(err error) {
		mu.Lock()
		notified = append(notified, err)
		mu.Unlock()
	}
	c, clock := newTestController(t, r, Config{Notify: notify}, WithSource(numbered(3)))

	c.SetQuery("physics")
	clock.Advance(DefaultDebounce)
	c.Wait()

	mu.Lock()
	require.Len(t, notified, 1)
	mu.Unlock()

	var ferr *FetchError
	require.ErrorAs(t, notified[0], &ferr)
	assert.Equal(t, "physics", ferr.Query)
	assert.ErrorIs(t, ferr, boom)

	snap := c.Snapshot()
	assert.Empty(t, snap.Results)
	assert.Equal(t, 1, snap.Page)
	assert.False(t, snap.Loading)
	assert.ErrorIs(t, snap.Err, boom)

	// Controller stays usable.
	r.fn = nil
	c.SetQuery("chemistry")
	clock.Advance(DefaultDebounce)
	c.Wait()
	snap = c.Snapshot()
	assert.NoError(t, snap.Err)
	assert.Len(t, snap.Results, 2)
	mu.Lock()
	assert.Len(t, notified, 1)
	mu.Unlock()
}

func TestFetchTimeout(t *testing.T) {
	r := &recorder{fn: func(ctx context.Context, _ string) ([]string, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	errs := make(chan error, 1)
	c, clock := newTestController(t, r, Config{
		Timeout: 20 * time.Millisecond,
		Notify:  func(err error) { errs <- err },
	})

	c.SetQuery("slow")
	clock.Advance(DefaultDebounce)
	c.Wait()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	default:
		t.Fatal("timeout was not reported")
	}
	assert.False(t, c.Snapshot().Loading)
}

func TestSearchPanicBecomesError(t *testing.T) {
	r := &recorder{fn: func(context.Context, string) ([]string, error) { panic("bad payload") }}
	var notified int
	c, clock := newTestController(t, r, Config{Notify: func(error) { notified++ }})

	c.SetQuery("x")
	clock.Advance(DefaultDebounce)
	c.Wait()

	assert.Equal(t, 1, notified)
	assert.ErrorContains(t, c.Snapshot().Err, "bad payload")
}

func TestEmptyQueryShowsSourceWithoutFetching(t *testing.T) {
	release := make(chan struct{})
	r := &recorder{fn: func(_ context.Context, q string) ([]string, error) {
		<-release
		return []string{"remote-" + q}, nil
	}}
	source := numbered(3)
	c, clock := newTestController(t, r, Config{}, WithSource(source))
	assert.Equal(t, source, c.Snapshot().Results)

	c.SetQuery("x")
	clock.Advance(DefaultDebounce)
	assert.True(t, c.Snapshot().Loading)

	c.SetQuery("")
	clock.Advance(DefaultDebounce)
	close(release)
	c.Wait()

	assert.Equal(t, []string{"x"}, r.Calls(), "blank query must not fetch")
	snap := c.Snapshot()
	assert.Equal(t, source, snap.Results)
	assert.False(t, snap.Loading)
}

func TestEmptyQueryShowsNothing(t *testing.T) {
	r := &recorder{}
	c, clock := newTestController(t, r, Config{EmptyQuery: EmptyShowsNothing}, WithSource(numbered(3)))
	assert.Empty(t, c.Snapshot().Results)

	c.SetQuery("a")
	clock.Advance(DefaultDebounce)
	c.Wait()
	assert.NotEmpty(t, c.Snapshot().Results)

	c.SetQuery("   ")
	clock.Advance(DefaultDebounce)
	c.Wait()
	assert.Empty(t, c.Snapshot().Results)
	assert.Equal(t, []string{"a"}, r.Calls())
}

func TestPagingClampsAndSlices(t *testing.T) {
	r := &recorder{fn: func(context.Context, string) ([]string, error) { return numbered(17), nil }}
	c, clock := newTestController(t, r, Config{PageSize: 8})

	c.SetQuery("all")
	clock.Advance(DefaultDebounce)
	c.Wait()

	snap := c.Snapshot()
	assert.Equal(t, 3, snap.TotalPages)
	assert.Len(t, c.Page(), 8)

	assert.Equal(t, 3, c.SetPage(99))
	assert.Equal(t, []string{"item-17"}, c.Page())

	assert.Equal(t, 1, c.SetPage(0))
	assert.Equal(t, 1, c.SetPage(-4))
	assert.Equal(t, 2, c.NextPage())
	assert.Equal(t, numbered(17)[8:16], c.Page())
	assert.Equal(t, 3, c.NextPage())
	assert.Equal(t, 3, c.NextPage())
	assert.Equal(t, 2, c.PrevPage())
}

func TestPagesCoverAllResults(t *testing.T) {
	r := &recorder{fn: func(context.Context, string) ([]string, error) { return numbered(23), nil }}
	c, clock := newTestController(t, r, Config{PageSize: 6})

	c.SetQuery("all")
	clock.Advance(DefaultDebounce)
	c.Wait()

	var got []string
	for p := 1; p <= c.Snapshot().TotalPages; p++ {
		c.SetPage(p)
		page := c.Page()
		assert.LessOrEqual(t, len(page), 6)
		got = append(got, page...)
	}
	assert.Equal(t, numbered(23), got)
}

func TestNewResultsResetPage(t *testing.T) {
	r := &recorder{fn: func(context.Context, string) ([]string, error) { return numbered(20), nil }}
	c, clock := newTestController(t, r, Config{PageSize: 6})

	c.SetQuery("a")
	clock.Advance(DefaultDebounce)
	c.Wait()
	c.SetPage(3)

	c.SetQuery("ab")
	clock.Advance(DefaultDebounce)
	c.Wait()
	assert.Equal(t, 1, c.Snapshot().Page)
}

func TestEmptyResultsStillHaveOnePage(t *testing.T) {
	r := &recorder{fn: func(context.Context, string) ([]string, error) { return nil, nil }}
	c, clock := newTestController(t, r, Config{})

	c.SetQuery("zzz")
	clock.Advance(DefaultDebounce)
	c.Wait()

	snap := c.Snapshot()
	assert.True(t, snap.Empty())
	assert.Equal(t, 1, snap.Page)
	assert.Equal(t, 1, c.SetPage(5))
	assert.Empty(t, c.Page())
}

func TestSubmitSkipsQuietPeriod(t *testing.T) {
	r := &recorder{}
	c, clock := newTestController(t, r, Config{})

	c.SetQuery("smith")
	c.Submit()
	c.Wait()
	assert.Equal(t, []string{"smith"}, r.Calls())

	clock.Advance(time.Second)
	c.Wait()
	assert.Equal(t, []string{"smith"}, r.Calls(), "pending task must be dropped on submit")
}

func TestFilterAndOrder(t *testing.T) {
	r := &recorder{fn: func(context.Context, string) ([]string, error) {
		return []string{"cherry", "apple", "banana", "avocado"}, nil
	}}
	startsWithA := func(s string) bool { return s[0] == 'a' }
	c, clock := newTestController(t, r, Config{},
		WithFilter(startsWithA),
		WithLess(func(a, b string) bool { return a < b }),
	)

	c.SetQuery("fruit")
	clock.Advance(DefaultDebounce)
	c.Wait()
	assert.Equal(t, []string{"apple", "avocado"}, c.Snapshot().Results)

	c.SetFilter(nil)
	assert.Equal(t, []string{"apple", "avocado", "banana", "cherry"}, c.Snapshot().Results)
}

func TestSetSourceRefreshesBlankView(t *testing.T) {
	r := &recorder{}
	c, clock := newTestController(t, r, Config{})

	c.SetSource(numbered(2))
	assert.Equal(t, numbered(2), c.Snapshot().Results)

	c.SetQuery("q")
	clock.Advance(DefaultDebounce)
	c.Wait()

	c.SetSource(numbered(5))
	assert.Equal(t, []string{"q-1", "q-2"}, c.Snapshot().Results, "active query keeps its results")
}

func TestCloseIgnoresLateResponse(t *testing.T) {
	release := make(chan struct{})
	r := &recorder{fn: func(context.Context, string) ([]string, error) {
		<-release
		return []string{"late"}, nil
	}}
	var notified int
	c, clock := newTestController(t, r, Config{Notify: func(error) { notified++ }})

	c.SetQuery("q")
	clock.Advance(DefaultDebounce)
	c.Close()
	close(release)
	c.Wait()

	assert.True(t, c.Closed())
	assert.Empty(t, c.Snapshot().Results)
	assert.Zero(t, notified)

	c.SetQuery("after")
	clock.Advance(DefaultDebounce)
	c.Wait()
	assert.Equal(t, []string{"q"}, r.Calls())
}

func TestListenerSeesOrderedVersions(t *testing.T) {
	var (
		mu       sync.Mutex
		versions []uint64
	)
	r := &recorder{}
	listener := func(s Snapshot[string]) {
		mu.Lock()
		versions = append(versions, s.Version)
		mu.Unlock()
	}
	c, clock := newTestController(t, r, Config{}, WithListener(listener))

	c.SetQuery("a")
	c.SetQuery("ab")
	clock.Advance(DefaultDebounce)
	c.Wait()
	c.SetPage(1)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, versions)
	for i := 1; i < len(versions); i++ {
		assert.Greater(t, versions[i], versions[i-1])
	}
}

func TestParseEmptyQueryPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    EmptyQueryPolicy
		wantErr bool
	}{
		{"source", EmptyShowsSource, false},
		{"ALL", EmptyShowsSource, false},
		{"", EmptyShowsSource, false},
		{"none", EmptyShowsNothing, false},
		{" nothing ", EmptyShowsNothing, false},
		{"sometimes", EmptyShowsSource, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEmptyQueryPolicy(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPolicy)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
