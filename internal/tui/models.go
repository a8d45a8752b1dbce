package tui

import (
	"github.com/pders01/profe/internal/api"
	"github.com/pders01/profe/internal/storage"
)

type View int

const (
	ViewSchools View = iota
	ViewProfessors
	ViewSchool
	ViewProfessor
	ViewNotes
	ViewReader
)

func (v View) String() string {
	switch v {
	case ViewSchools:
		return "schools"
	case ViewProfessors:
		return "professors"
	case ViewSchool:
		return "school"
	case ViewProfessor:
		return "professor"
	case ViewNotes:
		return "notes"
	case ViewReader:
		return "reader"
	default:
		return "unknown"
	}
}

type randomSchoolsMsg struct {
	schools []storage.School
	err     error
}

type schoolLoadedMsg struct {
	id     int64
	school *storage.School
	err    error
}

type professorLoadedMsg struct {
	professor storage.Professor
	detail    *api.ProfessorDetail
	err       error
}

type notesLoadedMsg struct {
	professorID int64
	notes       []storage.Note
	err         error
}

type schoolNamesMsg struct {
	names map[int64]string
	err   error
}

type noteRenderedMsg struct {
	noteID  int64
	content string
}

type errorMsg struct {
	err error
}

type statusMsg struct {
	text string
	kind StatusKind
}
