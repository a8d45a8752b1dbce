package search

import (
	"context"

	"github.com/pders01/profe/internal/storage"
)

// Kind names a document type in the index.
type Kind string

const (
	KindSchool    Kind = "school"
	KindProfessor Kind = "professor"
	KindNote      Kind = "note"
)

// Hit is one index match.
type Hit struct {
	Kind  Kind
	ID    int64
	Score float64
}

// Searcher defines the offline search API used by the CLI and TUI when the
// remote API is not consulted.
type Searcher interface {
	SearchSchools(ctx context.Context, q string) ([]storage.School, error)
	SearchProfessors(ctx context.Context, q string) ([]storage.Professor, error)
	SearchNotes(ctx context.Context, professorID int64, q string) ([]storage.Note, error)
}

// DebugStatser provides lightweight stats for visibility/debugging.
type DebugStatser interface {
	DocCount() (int, error)
}
