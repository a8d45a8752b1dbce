package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	bleveQuery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/pders01/profe/internal/debuglog"
	"github.com/pders01/profe/internal/storage"
)

// ErrClosed is returned by searches after Close.
var ErrClosed = errors.New("search index closed")

// DefaultLimit caps offline hits per query.
const DefaultLimit = 100

// fieldBoosts weights each text field; prefix matches get a slightly lower
// boost than full-term matches.
var fieldBoosts = []struct {
	field string
	boost float64
}{
	{"name", 4.0},
	{"title", 4.0},
	{"subject", 2.0},
	{"address", 1.0},
	{"content", 1.0},
}

// Index is an in-memory Bleve index over everything the session store has
// seen. It rebuilds itself lazily after the store changes.
type Index struct {
	store *storage.Store

	mu    sync.RWMutex
	idx   bleve.Index
	dirty atomic.Bool
}

// NewIndex builds the index from store and keeps it in sync with later
// writes.
func NewIndex(store *storage.Store) (*Index, error) {
	ix := &Index{store: store}
	if err := ix.Rebuild(); err != nil {
		return nil, err
	}
	store.OnWrite(func() { ix.dirty.Store(true) })
	return ix, nil
}

func buildIndexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = standard.Name

	dm := bleve.NewDocumentMapping()

	for _, fb := range fieldBoosts {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = standard.Name
		fm.Store = false
		fm.IncludeTermVectors = fb.field != "content"
		dm.AddFieldMappingsAt(fb.field, fm)
	}

	for _, name := range []string{"kind", "professor_id"} {
		km := bleve.NewTextFieldMapping()
		km.Analyzer = keyword.Name
		km.Store = true
		dm.AddFieldMappingsAt(name, km)
	}

	im.DefaultMapping = dm
	return im
}

func docID(kind Kind, id int64) string {
	return string(kind) + ":" + strconv.FormatInt(id, 10)
}

func parseDocID(s string) (Kind, int64, bool) {
	kind, raw, ok := strings.Cut(s, ":")
	if !ok {
		return "", 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return "", 0, false
	}
	return Kind(kind), id, true
}

// Rebuild discards the index and re-reads every live entry from the store.
func (ix *Index) Rebuild() error {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return fmt.Errorf("creating index: %w", err)
	}

	schools, err := ix.store.AllSchools()
	if err != nil {
		return fmt.Errorf("reading schools: %w", err)
	}
	professors, err := ix.store.AllProfessors()
	if err != nil {
		return fmt.Errorf("reading professors: %w", err)
	}
	notes, err := ix.store.GetNotes(0)
	if err != nil {
		return fmt.Errorf("reading notes: %w", err)
	}

	batch := idx.NewBatch()
	for _, s := range schools {
		_ = batch.Index(docID(KindSchool, s.ID), map[string]any{
			"kind":    string(KindSchool),
			"name":    fold(s.Name),
			"address": fold(s.Address),
		})
	}
	for _, p := range professors {
		_ = batch.Index(docID(KindProfessor, p.ID), map[string]any{
			"kind":    string(KindProfessor),
			"name":    fold(p.Name),
			"subject": fold(p.Subject),
		})
	}
	for _, n := range notes {
		_ = batch.Index(docID(KindNote, n.ID), map[string]any{
			"kind":         string(KindNote),
			"title":        fold(n.Title),
			"subject":      fold(n.Subject),
			"content":      fold(n.Content),
			"professor_id": strconv.FormatInt(n.ProfessorID, 10),
		})
	}
	if err := idx.Batch(batch); err != nil {
		idx.Close()
		return fmt.Errorf("indexing: %w", err)
	}

	ix.mu.Lock()
	old := ix.idx
	ix.idx = idx
	ix.dirty.Store(false)
	ix.mu.Unlock()
	if old != nil {
		old.Close()
	}

	debuglog.Debugf("offline index rebuilt: %d schools, %d professors, %d notes", len(schools), len(professors), len(notes))
	return nil
}

func (ix *Index) refresh() error {
	if ix.dirty.Load() {
		return ix.Rebuild()
	}
	return nil
}

// Search returns hits of kind for query, best first. restrict adds exact
// keyword constraints such as {"professor_id": "7"}.
func (ix *Index) Search(kind Kind, query string, limit int, restrict map[string]string) ([]Hit, error) {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}
	if err := ix.refresh(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	var should []bleveQuery.Query
	for _, tok := range terms {
		for _, fb := range fieldBoosts {
			m := bleve.NewMatchQuery(tok)
			m.SetField(fb.field)
			m.SetBoost(fb.boost)
			p := bleve.NewPrefixQuery(tok)
			p.SetField(fb.field)
			p.SetBoost(fb.boost * 0.9)
			should = append(should, m, p)
		}
	}

	kindQ := bleve.NewTermQuery(string(kind))
	kindQ.SetField("kind")
	must := []bleveQuery.Query{kindQ, bleve.NewDisjunctionQuery(should...)}
	for field, value := range restrict {
		tq := bleve.NewTermQuery(value)
		tq.SetField(field)
		must = append(must, tq)
	}

	req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(must...), limit, 0, false)

	ix.mu.RLock()
	if ix.idx == nil {
		ix.mu.RUnlock()
		return nil, ErrClosed
	}
	res, err := ix.idx.Search(req)
	ix.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		k, id, ok := parseDocID(h.ID)
		if !ok {
			continue
		}
		hits = append(hits, Hit{Kind: k, ID: id, Score: h.Score})
	}
	return hits, nil
}

// SearchSchools resolves school hits through the store. It has the shape of
// a search controller's fetch function.
func (ix *Index) SearchSchools(ctx context.Context, q string) ([]storage.School, error) {
	hits, err := ix.Search(KindSchool, q, DefaultLimit, nil)
	if err != nil {
		return nil, err
	}
	out := make([]storage.School, 0, len(hits))
	for _, h := range hits {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := ix.store.GetSchool(h.ID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, nil
}

func (ix *Index) SearchProfessors(ctx context.Context, q string) ([]storage.Professor, error) {
	hits, err := ix.Search(KindProfessor, q, DefaultLimit, nil)
	if err != nil {
		return nil, err
	}
	out := make([]storage.Professor, 0, len(hits))
	for _, h := range hits {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := ix.store.GetProfessor(h.ID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

// SearchNotes limits hits to one professor unless professorID is zero.
func (ix *Index) SearchNotes(ctx context.Context, professorID int64, q string) ([]storage.Note, error) {
	var restrict map[string]string
	if professorID != 0 {
		restrict = map[string]string{"professor_id": strconv.FormatInt(professorID, 10)}
	}
	hits, err := ix.Search(KindNote, q, DefaultLimit, restrict)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	notes, err := ix.store.GetNotes(professorID)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]storage.Note, len(notes))
	for _, n := range notes {
		byID[n.ID] = n
	}
	out := make([]storage.Note, 0, len(hits))
	for _, h := range hits {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if n, ok := byID[h.ID]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}

// DocCount reports total documents in the index.
func (ix *Index) DocCount() (int, error) {
	if err := ix.refresh(); err != nil {
		return 0, err
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.idx == nil {
		return 0, ErrClosed
	}
	n, err := ix.idx.DocCount()
	return int(n), err
}

func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.idx == nil {
		return nil
	}
	err := ix.idx.Close()
	ix.idx = nil
	return err
}
