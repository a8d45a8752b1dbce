// Package catalog ties the API client, the session store and the offline
// index together. Online results are remembered so they can be searched
// again without a connection.
package catalog

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/pders01/profe/internal/api"
	"github.com/pders01/profe/internal/config"
	"github.com/pders01/profe/internal/debuglog"
	"github.com/pders01/profe/internal/search"
	"github.com/pders01/profe/internal/searchctl"
	"github.com/pders01/profe/internal/storage"
	"github.com/pders01/profe/internal/validation"
)

// ErrOfflineUnavailable is returned by offline searches when the index is
// disabled.
var ErrOfflineUnavailable = errors.New("offline search is disabled (database.search_index)")

type Manager struct {
	client *api.Client
	store  *storage.Store
	index  *search.Index
	log    *debuglog.FieldLogger
}

// NewManager wires existing components. index may be nil.
func NewManager(client *api.Client, store *storage.Store, index *search.Index) *Manager {
	return &Manager{
		client: client,
		store:  store,
		index:  index,
		log:    debuglog.WithFields(map[string]any{"component": "catalog"}),
	}
}

// Open builds the client, store and index described by cfg.
func Open(cfg *config.Config) (*Manager, error) {
	client, err := api.NewFromConfig(cfg.API)
	if err != nil {
		return nil, err
	}

	dbPath, err := validation.NewPathValidator().DBPath(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}
	store, err := storage.NewStoreWithTimeout(dbPath, cfg.Database.Timeout, storage.WithTTL(cfg.Database.TTL))
	if err != nil {
		return nil, err
	}
	if n, err := store.PurgeExpired(); err != nil {
		debuglog.Warnf("purging expired session entries: %v", err)
	} else if n > 0 {
		debuglog.Debugf("purged %d expired session entries", n)
	}

	var index *search.Index
	if cfg.Database.SearchIndex {
		index, err = search.NewIndex(store)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("building offline index: %w", err)
		}
	}
	return NewManager(client, store, index), nil
}

func (m *Manager) Client() *api.Client   { return m.client }
func (m *Manager) Store() *storage.Store { return m.store }

// Offline reports whether offline searches are possible.
func (m *Manager) Offline() bool { return m.index != nil }

func (m *Manager) remember(what string, err error) {
	if err != nil {
		m.log.Warnf("remembering %s: %v", what, err)
	}
}

func (m *Manager) SearchSchools(ctx context.Context, q string) ([]storage.School, error) {
	schools, err := m.client.SearchSchools(ctx, q)
	if err != nil {
		return nil, err
	}
	m.remember("schools", m.store.SaveSchools(schools))
	return schools, nil
}

func (m *Manager) SearchProfessors(ctx context.Context, q string) ([]storage.Professor, error) {
	professors, err := m.client.SearchProfessors(ctx, q)
	if err != nil {
		return nil, err
	}
	m.remember("professors", m.store.SaveProfessors(professors))
	return professors, nil
}

func (m *Manager) SearchNotes(ctx context.Context, professorID int64, q string) ([]storage.Note, error) {
	notes, err := m.client.SearchNotes(ctx, professorID, q)
	if err != nil {
		return nil, err
	}
	m.remember("notes", m.store.SaveNotes(notes))
	return notes, nil
}

// Schools returns the fetch function for school search controllers.
func (m *Manager) Schools(offline bool) searchctl.SearchFunc[storage.School] {
	if !offline {
		return m.SearchSchools
	}
	return func(ctx context.Context, q string) ([]storage.School, error) {
		if m.index == nil {
			return nil, ErrOfflineUnavailable
		}
		return m.index.SearchSchools(ctx, q)
	}
}

func (m *Manager) Professors(offline bool) searchctl.SearchFunc[storage.Professor] {
	if !offline {
		return m.SearchProfessors
	}
	return func(ctx context.Context, q string) ([]storage.Professor, error) {
		if m.index == nil {
			return nil, ErrOfflineUnavailable
		}
		return m.index.SearchProfessors(ctx, q)
	}
}

// Notes searches the notes of one professor.
func (m *Manager) Notes(professorID int64, offline bool) searchctl.SearchFunc[storage.Note] {
	return func(ctx context.Context, q string) ([]storage.Note, error) {
		if !offline {
			return m.SearchNotes(ctx, professorID, q)
		}
		if m.index == nil {
			return nil, ErrOfflineUnavailable
		}
		return m.index.SearchNotes(ctx, professorID, q)
	}
}

// unreachable reports whether err means the API could not be reached, as
// opposed to the caller giving up or the server rejecting the request.
func unreachable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var se *api.StatusError
	if errors.As(err, &se) {
		return se.Code >= 500
	}
	return api.IsNetwork(err)
}

// RandomSchools backs the landing view. When the API is unreachable the
// last remembered school list is shown instead.
func (m *Manager) RandomSchools(ctx context.Context) ([]storage.School, error) {
	schools, err := m.client.RandomSchools(ctx)
	if err == nil {
		m.remember("schools", m.store.SaveSchools(schools))
		return schools, nil
	}
	if !unreachable(ctx, err) {
		return nil, err
	}
	last, lerr := m.store.LastSchools()
	if lerr != nil || len(last) == 0 {
		return nil, err
	}
	m.log.Infof("API unreachable, showing %d remembered schools", len(last))
	return last, nil
}

// LastProfessors is the result list of the last professor search.
func (m *Manager) LastProfessors() []storage.Professor {
	last, err := m.store.LastProfessors()
	if err != nil {
		m.log.Warnf("reading remembered professors: %v", err)
		return nil
	}
	return last
}

// ProfessorName names a professor from what the session remembered, the
// last selection first. It is "" when the professor was never seen.
func (m *Manager) ProfessorName(id int64) string {
	if p, err := m.store.SelectedProfessor(); err == nil && p != nil && p.ID == id {
		return p.Name
	}
	if p, err := m.store.GetProfessor(id); err == nil {
		return p.Name
	}
	return ""
}

// School loads a school page with its professors ordered by review count,
// most reviewed first. A remembered copy is served when the API is down.
func (m *Manager) School(ctx context.Context, id int64, limit, offset int) (*storage.School, error) {
	school, err := m.client.School(ctx, id, limit, offset)
	if err != nil {
		if unreachable(ctx, err) {
			if cached, cerr := m.store.GetSchool(id); cerr == nil {
				SortProfessors(cached.Professors)
				return cached, nil
			}
		}
		return nil, err
	}

	for i := range school.Professors {
		if school.Professors[i].SchoolID == 0 {
			school.Professors[i].SchoolID = school.ID
		}
	}
	SortProfessors(school.Professors)
	m.remember("school", m.store.SaveSchool(school))
	m.remember("school professors", m.store.RecordProfessors(school.Professors))
	return school, nil
}

// SortProfessors orders by TotalReviews descending, keeping API order for
// ties.
func SortProfessors(professors []storage.Professor) {
	slices.SortStableFunc(professors, func(a, b storage.Professor) int {
		return cmp.Compare(b.TotalReviews, a.TotalReviews)
	})
}

// Professor loads a professor page and remembers it as the selection.
func (m *Manager) Professor(ctx context.Context, p storage.Professor) (*api.ProfessorDetail, error) {
	detail, err := m.client.Professor(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	m.remember("selected professor", m.store.SetSelectedProfessor(p))
	return detail, nil
}

// AllNotes lists every note of a professor. It needs an API token.
func (m *Manager) AllNotes(ctx context.Context, professorID int64) ([]storage.Note, error) {
	notes, err := m.client.Notes(ctx, professorID)
	if err != nil {
		return nil, err
	}
	m.remember("notes", m.store.SaveNotes(notes))
	return notes, nil
}

// SchoolNames maps the school IDs of professors to names. Remembered
// schools are answered locally; the rest are looked up once each.
func (m *Manager) SchoolNames(ctx context.Context, professors []storage.Professor) (map[int64]string, error) {
	names := make(map[int64]string)
	var missing []int64
	for _, p := range professors {
		if p.SchoolID <= 0 {
			continue
		}
		if _, ok := names[p.SchoolID]; ok {
			continue
		}
		if s, err := m.store.GetSchool(p.SchoolID); err == nil {
			names[p.SchoolID] = s.Name
			continue
		}
		missing = append(missing, p.SchoolID)
	}
	if len(missing) == 0 {
		return names, nil
	}

	fetched, err := m.client.SchoolNames(ctx, missing)
	maps.Copy(names, fetched)
	return names, err
}

// Logout forgets everything the session remembered.
func (m *Manager) Logout() error {
	m.client.Invalidate()
	if err := m.store.Clear(); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

func (m *Manager) Close() error {
	var errs []error
	if m.index != nil {
		errs = append(errs, m.index.Close())
	}
	errs = append(errs, m.store.Close())
	return errors.Join(errs...)
}
