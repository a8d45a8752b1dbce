package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/pders01/profe/internal/pagination"
	"github.com/pders01/profe/internal/searchctl"
	"github.com/pders01/profe/internal/storage"
)

const (
	outputTable = "table"
	outputJSON  = "json"

	maxCellWidth = 48
)

func validateOutput(format string) error {
	switch format {
	case outputTable, outputJSON:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (use table or json)", format)
	}
}

// listing is the JSON shape of one page of results.
type listing[T any] struct {
	Query      string          `json:"query"`
	Data       []T             `json:"data"`
	Pagination pagination.Meta `json:"pagination"`
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func writePage[T any](w io.Writer, format string, snap searchctl.Snapshot[T], headers []string, row func(T) []string) error {
	meta := pagination.NewMeta(snap.Page, snap.PageSize, len(snap.Results))
	if format == outputJSON {
		items := snap.Items
		if items == nil {
			items = []T{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(listing[T]{Query: snap.DebouncedQuery, Data: items, Pagination: meta})
	}

	if len(snap.Items) == 0 {
		_, err := fmt.Fprintln(w, "No results")
		return err
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(r, _ int) lipgloss.Style {
			if r == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
	for _, item := range snap.Items {
		t.Row(row(item)...)
	}
	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "page %d of %d, %d results\n", meta.CurrentPage, meta.TotalPages, meta.TotalItems)
	return err
}

func cell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > maxCellWidth {
		return string(r[:maxCellWidth-1]) + "…"
	}
	return s
}

func id(n int64) string { return strconv.FormatInt(n, 10) }

func writeSchools(w io.Writer, format string, snap searchctl.Snapshot[storage.School]) error {
	return writePage(w, format, snap, []string{"ID", "School", "Address", "Reviews"}, func(s storage.School) []string {
		return []string{id(s.ID), cell(s.Name), cell(s.Address), strconv.Itoa(s.TotalReviews)}
	})
}

func writeProfessors(w io.Writer, format string, snap searchctl.Snapshot[storage.Professor], schoolNames map[int64]string) error {
	return writePage(w, format, snap, []string{"ID", "Professor", "Subject", "School", "Reviews"}, func(p storage.Professor) []string {
		school := schoolNames[p.SchoolID]
		if school == "" && p.SchoolID > 0 {
			school = "#" + id(p.SchoolID)
		}
		return []string{id(p.ID), cell(p.Name), cell(p.Subject), cell(school), strconv.Itoa(p.TotalReviews)}
	})
}

func writeNotes(w io.Writer, format string, snap searchctl.Snapshot[storage.Note]) error {
	return writePage(w, format, snap, []string{"ID", "Title", "Subject", "Files", "Created"}, func(n storage.Note) []string {
		return []string{id(n.ID), cell(n.Title), cell(n.Subject), strconv.Itoa(len(n.FilesURL)), n.CreatedAt}
	})
}
