package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/profe/internal/api"
	"github.com/pders01/profe/internal/config"
	"github.com/pders01/profe/internal/search"
	"github.com/pders01/profe/internal/storage"
)

type fixture struct {
	manager *Manager
	store   *storage.Store
	down    atomic.Bool
	calls   atomic.Int32
}

func writeData(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"data": v})
}

func newFixture(t *testing.T, withIndex bool) *fixture {
	t.Helper()
	f := &fixture{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		if f.down.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		switch r.URL.Path {
		case "/search/schools":
			writeData(w, []map[string]any{{"id": 1, "name": "Universidad Técnica", "address": "Quito"}})
		case "/search/professor":
			writeData(w, []map[string]any{
				{"id": 10, "name": "Ana Ruiz", "subject": "Física", "school_id": 1},
				{"id": 11, "name": "Luis Gómez", "subject": "Química", "school_id": 2},
			})
		case "/search/10/notes":
			writeData(w, []map[string]any{{"id": 100, "professor_id": 10, "title": "Cinemática", "subject": "Física"}})
		case "/school/random":
			writeData(w, []map[string]any{{"id": 3, "name": "Escuela Norte"}, {"id": 4, "name": "Escuela Sur"}})
		case "/school/1":
			writeData(w, map[string]any{"id": 1, "name": "Universidad Técnica", "professors": []map[string]any{
				{"id": 10, "name": "Ana Ruiz", "total_reviews": 2},
				{"id": 12, "name": "Eva Paz", "total_reviews": 9},
				{"id": 13, "name": "Omar Sol", "total_reviews": 2},
			}})
		case "/school/2":
			writeData(w, map[string]any{"id": 2, "name": "Instituto Sur"})
		case "/professor/10":
			writeData(w, []map[string]any{{"id": 1, "rating": 4, "difficulty": 3, "would_take_again": true}})
		case "/reviews/10/tags":
			writeData(w, []string{"clara"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	client, err := api.New(srv.URL)
	require.NoError(t, err)
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)

	var index *search.Index
	if withIndex {
		index, err = search.NewIndex(store)
		require.NoError(t, err)
	}
	f.store = store
	f.manager = NewManager(client, store, index)
	t.Cleanup(func() { _ = f.manager.Close() })
	return f
}

func TestSearchesAreRemembered(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.manager.Schools(false)(ctx, "tecnica")
	require.NoError(t, err)
	_, err = f.manager.Professors(false)(ctx, "ana")
	require.NoError(t, err)
	_, err = f.manager.Notes(10, false)(ctx, "cinematica")
	require.NoError(t, err)

	last, err := f.store.LastProfessors()
	require.NoError(t, err)
	assert.Len(t, last, 2)
	notes, err := f.store.GetNotes(10)
	require.NoError(t, err)
	assert.Len(t, notes, 1)

	f.down.Store(true)
	schools, err := f.manager.Schools(true)(ctx, "tecnica")
	require.NoError(t, err)
	require.Len(t, schools, 1)
	assert.Equal(t, "Universidad Técnica", schools[0].Name)

	professors, err := f.manager.Professors(true)(ctx, "fisica")
	require.NoError(t, err)
	require.Len(t, professors, 1)
	assert.Equal(t, int64(10), professors[0].ID)

	offlineNotes, err := f.manager.Notes(10, true)(ctx, "cinematica")
	require.NoError(t, err)
	assert.Len(t, offlineNotes, 1)
}

func TestOfflineWithoutIndex(t *testing.T) {
	f := newFixture(t, false)
	assert.False(t, f.manager.Offline())

	_, err := f.manager.Schools(true)(context.Background(), "x")
	assert.ErrorIs(t, err, ErrOfflineUnavailable)
	_, err = f.manager.Notes(1, true)(context.Background(), "x")
	assert.ErrorIs(t, err, ErrOfflineUnavailable)
}

func TestSchoolOrdersProfessorsByReviews(t *testing.T) {
	f := newFixture(t, true)

	school, err := f.manager.School(context.Background(), 1, 0, 0)
	require.NoError(t, err)
	var names []string
	for _, p := range school.Professors {
		names = append(names, p.Name)
		assert.Equal(t, int64(1), p.SchoolID)
	}
	assert.Equal(t, []string{"Eva Paz", "Ana Ruiz", "Omar Sol"}, names)

	p, err := f.store.GetProfessor(12)
	require.NoError(t, err, "school staff should be remembered")
	assert.Equal(t, "Eva Paz", p.Name)
}

func TestSchoolServedFromSessionWhenAPIDown(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.manager.School(ctx, 1, 0, 0)
	require.NoError(t, err)

	f.down.Store(true)
	school, err := f.manager.School(ctx, 1, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "Eva Paz", school.Professors[0].Name)

	_, err = f.manager.School(ctx, 2, 0, 0)
	assert.Error(t, err, "nothing remembered for school 2")
}

func TestRandomSchoolsFallsBackToLastList(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	f.down.Store(true)
	_, err := f.manager.RandomSchools(ctx)
	require.Error(t, err, "no remembered list yet")

	f.down.Store(false)
	schools, err := f.manager.RandomSchools(ctx)
	require.NoError(t, err)
	assert.Len(t, schools, 2)

	f.down.Store(true)
	schools, err = f.manager.RandomSchools(ctx)
	require.NoError(t, err)
	assert.Len(t, schools, 2)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = f.manager.RandomSchools(cctx)
	assert.Error(t, err, "a cancelled caller gets no fallback")
}

func TestProfessorRemembersSelection(t *testing.T) {
	f := newFixture(t, false)

	detail, err := f.manager.Professor(context.Background(), storage.Professor{ID: 10, Name: "Ana Ruiz"})
	require.NoError(t, err)
	assert.Equal(t, []string{"clara"}, detail.Tags)
	assert.Equal(t, 1, detail.Stats.Count)

	selected, err := f.store.SelectedProfessor()
	require.NoError(t, err)
	require.NotNil(t, selected)
	assert.Equal(t, "Ana Ruiz", selected.Name)
}

func TestLastProfessorsAndNames(t *testing.T) {
	f := newFixture(t, false)
	assert.Empty(t, f.manager.LastProfessors())
	assert.Equal(t, "", f.manager.ProfessorName(10))

	_, err := f.manager.SearchProfessors(context.Background(), "ana")
	require.NoError(t, err)
	last := f.manager.LastProfessors()
	require.NotEmpty(t, last)
	assert.Equal(t, "Ana Ruiz", f.manager.ProfessorName(last[0].ID))

	assert.Equal(t, "Luis Gómez", f.manager.ProfessorName(11))

	_, err = f.manager.Professor(context.Background(), storage.Professor{ID: 10, Name: "Ana María Ruiz"})
	require.NoError(t, err)
	assert.Equal(t, "Ana María Ruiz", f.manager.ProfessorName(10), "the selection comes first")
}

func TestAllNotesNeedsToken(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.manager.AllNotes(context.Background(), 10)
	assert.ErrorIs(t, err, api.ErrNoToken)
}

func TestSchoolNamesUsesSessionFirst(t *testing.T) {
	f := newFixture(t, false)
	require.NoError(t, f.store.SaveSchools([]storage.School{{ID: 1, Name: "Universidad Técnica"}}))
	before := f.calls.Load()

	names, err := f.manager.SchoolNames(context.Background(), []storage.Professor{
		{ID: 10, SchoolID: 1},
		{ID: 11, SchoolID: 2},
		{ID: 12, SchoolID: 2},
		{ID: 13},
	})
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{1: "Universidad Técnica", 2: "Instituto Sur"}, names)
	assert.Equal(t, int32(1), f.calls.Load()-before)
}

func TestLogoutClearsSession(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.manager.SearchSchools(ctx, "tecnica")
	require.NoError(t, err)
	require.NoError(t, f.manager.Logout())

	last, err := f.store.LastSchools()
	require.NoError(t, err)
	assert.Empty(t, last)

	schools, err := f.manager.Schools(true)(ctx, "tecnica")
	require.NoError(t, err)
	assert.Empty(t, schools)
}

func TestSortProfessorsIsStable(t *testing.T) {
	ps := []storage.Professor{
		{ID: 1, TotalReviews: 1},
		{ID: 2, TotalReviews: 5},
		{ID: 3, TotalReviews: 1},
		{ID: 4, TotalReviews: 5},
	}
	SortProfessors(ps)
	var ids []int64
	for _, p := range ps {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []int64{2, 4, 1, 3}, ids)
}

func TestOpenFromConfig(t *testing.T) {
	cfg := config.TestConfig()
	m, err := Open(cfg)
	require.NoError(t, err)
	defer m.Close()
	assert.True(t, m.Offline())

	cfg.Database.SearchIndex = false
	m2, err := Open(cfg)
	require.NoError(t, err)
	defer m2.Close()
	assert.False(t, m2.Offline())
}
