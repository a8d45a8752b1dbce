package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	schoolsBucket    = []byte("schools")
	professorsBucket = []byte("professors")
	notesBucket      = []byte("notes")
	metaBucket       = []byte("metadata")

	allBuckets = [][]byte{schoolsBucket, professorsBucket, notesBucket, metaBucket}
)

const (
	lastSchoolsKey       = "last_schools"
	lastProfessorsKey    = "last_professors"
	selectedProfessorKey = "selected_professor"
)

// ErrNotFound is returned for missing or expired entries.
var ErrNotFound = errors.New("not found")

// entry wraps every stored value with its expiry. A zero ExpiresAt never
// expires.
type entry struct {
	Value     json.RawMessage `json:"value"`
	ExpiresAt time.Time       `json:"expires_at,omitzero"`
}

// Store is the app-scoped session store. It is created once and passed to
// whoever needs it.
type Store struct {
	db      *bolt.DB
	ttl     time.Duration
	now     func() time.Time
	tmpPath string
	onWrite []func()
}

type StoreOption func(*Store)

// WithTTL sets how long written entries stay readable. Zero keeps them
// forever.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		if ttl >= 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides time.Now for expiry checks.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore opens (or creates) the bbolt file at dbPath. The special path
// ":memory:" uses a temporary file removed on Close.
func NewStore(dbPath string, opts ...StoreOption) (*Store, error) {
	return NewStoreWithTimeout(dbPath, time.Second, opts...)
}

func NewStoreWithTimeout(dbPath string, timeout time.Duration, opts ...StoreOption) (*Store, error) {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if dbPath == ":memory:" {
		f, err := os.CreateTemp("", "profe-session-*.db")
		if err != nil {
			return nil, fmt.Errorf("creating temporary database: %w", err)
		}
		dbPath = f.Name()
		f.Close()
		os.Remove(dbPath)
		s.tmpPath = dbPath
	}

	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range allBuckets {
			if _, createErr := tx.CreateBucketIfNotExists(bucket); createErr != nil {
				return createErr
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	s.db = db
	return s, nil
}

func (s *Store) Close() error {
	err := s.db.Close()
	if s.tmpPath != "" {
		os.Remove(s.tmpPath)
	}
	return err
}

// OnWrite registers fn to run after every successful write. The offline
// index uses it to stay in sync.
func (s *Store) OnWrite(fn func()) {
	s.onWrite = append(s.onWrite, fn)
}

func (s *Store) notify() {
	for _, fn := range s.onWrite {
		fn()
	}
}

func idKey(id int64) []byte {
	return []byte(strconv.FormatInt(id, 10))
}

func (s *Store) wrap(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	e := entry{Value: raw}
	if s.ttl > 0 {
		e.ExpiresAt = s.now().Add(s.ttl)
	}
	return json.Marshal(e)
}

// unwrap decodes data into v. It reports false for expired entries.
func (s *Store) unwrap(data []byte, v any) (bool, error) {
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return false, err
	}
	if !e.ExpiresAt.IsZero() && !s.now().Before(e.ExpiresAt) {
		return false, nil
	}
	return true, json.Unmarshal(e.Value, v)
}

func (s *Store) put(bucket []byte, key []byte, v any) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		data, err := s.wrap(v)
		if err != nil {
			return err
		}
		return tx.Bucket(bucket).Put(key, data)
	})
	if err == nil {
		s.notify()
	}
	return err
}

func (s *Store) get(bucket []byte, key []byte, v any) error {
	return s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucket).Get(key)
		if data == nil {
			return ErrNotFound
		}
		ok, err := s.unwrap(data, v)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		return nil
	})
}

// SaveSchools records schools by ID and remembers them as the last school
// list shown.
func (s *Store) SaveSchools(schools []School) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(schoolsBucket)
		for _, school := range schools {
			data, err := s.wrap(school)
			if err != nil {
				return err
			}
			if err := b.Put(idKey(school.ID), data); err != nil {
				return err
			}
		}
		data, err := s.wrap(schools)
		if err != nil {
			return err
		}
		return tx.Bucket(metaBucket).Put([]byte(lastSchoolsKey), data)
	})
	if err != nil {
		return fmt.Errorf("saving schools: %w", err)
	}
	s.notify()
	return nil
}

// LastSchools returns the last school list saved, or nil when absent or
// expired.
func (s *Store) LastSchools() ([]School, error) {
	var schools []School
	err := s.get(metaBucket, []byte(lastSchoolsKey), &schools)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return schools, err
}

func (s *Store) GetSchool(id int64) (*School, error) {
	var school School
	if err := s.get(schoolsBucket, idKey(id), &school); err != nil {
		return nil, fmt.Errorf("school %d: %w", id, err)
	}
	return &school, nil
}

// SaveSchool stores a single school, including its professors.
func (s *Store) SaveSchool(school *School) error {
	if err := s.put(schoolsBucket, idKey(school.ID), school); err != nil {
		return fmt.Errorf("saving school %d: %w", school.ID, err)
	}
	return nil
}

// SaveProfessors records professors by ID and remembers them as the last
// professor search result.
func (s *Store) SaveProfessors(professors []Professor) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := s.putProfessors(tx, professors); err != nil {
			return err
		}
		data, err := s.wrap(professors)
		if err != nil {
			return err
		}
		return tx.Bucket(metaBucket).Put([]byte(lastProfessorsKey), data)
	})
	if err != nil {
		return fmt.Errorf("saving professors: %w", err)
	}
	s.notify()
	return nil
}

// RecordProfessors stores professors by ID without touching the last search
// result, e.g. the staff list of a school page.
func (s *Store) RecordProfessors(professors []Professor) error {
	if len(professors) == 0 {
		return nil
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return s.putProfessors(tx, professors)
	})
	if err != nil {
		return fmt.Errorf("recording professors: %w", err)
	}
	s.notify()
	return nil
}

func (s *Store) putProfessors(tx *bolt.Tx, professors []Professor) error {
	b := tx.Bucket(professorsBucket)
	for _, p := range professors {
		data, err := s.wrap(p)
		if err != nil {
			return err
		}
		if err := b.Put(idKey(p.ID), data); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) LastProfessors() ([]Professor, error) {
	var professors []Professor
	err := s.get(metaBucket, []byte(lastProfessorsKey), &professors)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return professors, err
}

func (s *Store) GetProfessor(id int64) (*Professor, error) {
	var p Professor
	if err := s.get(professorsBucket, idKey(id), &p); err != nil {
		return nil, fmt.Errorf("professor %d: %w", id, err)
	}
	return &p, nil
}

// SetSelectedProfessor remembers the professor whose detail page was last
// opened.
func (s *Store) SetSelectedProfessor(p Professor) error {
	return s.put(metaBucket, []byte(selectedProfessorKey), p)
}

// SelectedProfessor returns nil when nothing was selected.
func (s *Store) SelectedProfessor() (*Professor, error) {
	var p Professor
	err := s.get(metaBucket, []byte(selectedProfessorKey), &p)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) SaveNotes(notes []Note) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(notesBucket)
		for _, n := range notes {
			data, err := s.wrap(n)
			if err != nil {
				return err
			}
			if err := b.Put(idKey(n.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving notes: %w", err)
	}
	s.notify()
	return nil
}

// GetNotes returns the stored notes of a professor, newest first. A zero
// professorID returns every note.
func (s *Store) GetNotes(professorID int64) ([]Note, error) {
	var notes []Note
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(notesBucket).ForEach(func(_ []byte, v []byte) error {
			var n Note
			ok, err := s.unwrap(v, &n)
			if err != nil || !ok {
				return nil
			}
			if professorID == 0 || n.ProfessorID == professorID {
				notes = append(notes, n)
			}
			return nil
		})
	})
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].CreatedAt > notes[j].CreatedAt
	})
	return notes, err
}

// AllSchools returns every live school sorted by name.
func (s *Store) AllSchools() ([]School, error) {
	var schools []School
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(schoolsBucket).ForEach(func(_ []byte, v []byte) error {
			var school School
			ok, err := s.unwrap(v, &school)
			if err != nil || !ok {
				return nil
			}
			schools = append(schools, school)
			return nil
		})
	})
	sort.Slice(schools, func(i, j int) bool {
		return strings.ToLower(schools[i].Name) < strings.ToLower(schools[j].Name)
	})
	return schools, err
}

// AllProfessors returns every live professor sorted by name.
func (s *Store) AllProfessors() ([]Professor, error) {
	var professors []Professor
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(professorsBucket).ForEach(func(_ []byte, v []byte) error {
			var p Professor
			ok, err := s.unwrap(v, &p)
			if err != nil || !ok {
				return nil
			}
			professors = append(professors, p)
			return nil
		})
	})
	sort.Slice(professors, func(i, j int) bool {
		return strings.ToLower(professors[i].Name) < strings.ToLower(professors[j].Name)
	})
	return professors, err
}

// PurgeExpired deletes expired entries and returns how many were removed.
func (s *Store) PurgeExpired() (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			c := tx.Bucket(name).Cursor()
			for k, v := c.First(); k != nil; k, v = c.Next() {
				var e entry
				if err := json.Unmarshal(v, &e); err != nil {
					continue
				}
				if e.ExpiresAt.IsZero() || s.now().Before(e.ExpiresAt) {
					continue
				}
				if err := c.Delete(); err != nil {
					return err
				}
				removed++
			}
		}
		return nil
	})
	return removed, err
}

// Clear wipes every bucket. Called on logout.
func (s *Store) Clear() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	s.notify()
	return nil
}
