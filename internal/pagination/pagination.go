package pagination

import (
	"errors"
	"fmt"
)

const (
	DefaultPage    = 1
	DefaultDelta   = 2
	MinPageSize    = 1
	MaxPageSize    = 100
	SchoolPageSize = 8
	NotePageSize   = 6
)

var ErrInvalidPageSize = fmt.Errorf("page size must be between %d and %d", MinPageSize, MaxPageSize)

var ErrInvalidPage = errors.New("page must be >= 1")

// ValidatePageSize reports whether size is usable.
func ValidatePageSize(size int) error {
	if size < MinPageSize || size > MaxPageSize {
		return fmt.Errorf("%w: got %d", ErrInvalidPageSize, size)
	}
	return nil
}

// TotalPages returns ceil(total/size). It is 0 for an empty set.
func TotalPages(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	pages := total / size
	if total%size > 0 {
		pages++
	}
	return pages
}

// Clamp moves page into [1, max(1, TotalPages(total, size))].
func Clamp(page, total, size int) int {
	last := TotalPages(total, size)
	if last < 1 {
		last = 1
	}
	if page < 1 {
		return 1
	}
	if page > last {
		return last
	}
	return page
}

// Bounds returns the half-open [start, end) range of page within total items.
// The page is clamped first.
func Bounds(page, total, size int) (start, end int) {
	if total <= 0 || size <= 0 {
		return 0, 0
	}
	page = Clamp(page, total, size)
	start = (page - 1) * size
	end = start + size
	if end > total {
		end = total
	}
	return start, end
}

// Slice returns the items visible on page. The result aliases items.
func Slice[T any](items []T, page, size int) []T {
	start, end := Bounds(page, len(items), size)
	return items[start:end]
}

// Cell is one entry of a paginator window: either a page number or a gap.
type Cell struct {
	Page int
	Gap  bool
}

// Window lays out paginator cells: the first page, current±delta, and the
// last page, with gaps where pages are skipped.
func Window(current, total, delta int) []Cell {
	if total < 1 {
		return []Cell{{Page: 1}}
	}
	if delta < 0 {
		delta = DefaultDelta
	}
	current = max(1, min(current, total))

	left := max(2, current-delta)
	right := min(total-1, current+delta)

	cells := []Cell{{Page: 1}}
	if left > 2 {
		cells = append(cells, Cell{Gap: true})
	}
	for i := left; i <= right; i++ {
		cells = append(cells, Cell{Page: i})
	}
	if right < total-1 {
		cells = append(cells, Cell{Gap: true})
	}
	if total > 1 {
		cells = append(cells, Cell{Page: total})
	}
	return cells
}
