package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pders01/profe/internal/pagination"
)

// renderHeader returns a styled header with an optional muted subtitle.
func renderHeader(title, subtitle string, width int) string {
	rows := []string{HeaderStyle.Render(truncateEnd(title, width-2))}
	if subtitle != "" {
		rows = append(rows, renderMuted(truncateEnd(subtitle, width-2)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// renderInputFrame draws a rounded border around a rendered input.
func renderInputFrame(inputView string, focused bool, contentWidth int) string {
	borderColor := MutedColor
	if focused {
		borderColor = AccentColor
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(0, 1).
		Width(max(contentWidth, 10) + 4).
		Render(inputView)
}

func renderCentered(width, height int, content string) string {
	return lipgloss.NewStyle().
		Width(width).
		Height(max(height, 1)).
		Align(lipgloss.Center, lipgloss.Center).
		Render(content)
}

func renderMuted(text string) string {
	return ItemDetailStyle.Render(text)
}

// renderItem draws a two-line list entry.
func renderItem(title, detail string, selected bool, width int) string {
	title = truncateEnd(title, width-4)
	if selected {
		title = SelectedItemStyle.Render("› " + title)
	} else {
		title = ItemTitleStyle.Render("  " + title)
	}
	if detail == "" {
		return title
	}
	return title + "\n" + renderMuted("  "+truncateEnd(detail, width-4))
}

// renderPager draws "‹ 1 … 4 [5] 6 … 12 ›" for the given page state.
func renderPager(page, totalPages int) string {
	if totalPages <= 1 {
		return ""
	}
	var b strings.Builder
	if page > 1 {
		b.WriteString("‹ ")
	} else {
		b.WriteString("  ")
	}
	for i, cell := range pagination.Window(page, totalPages, pagination.DefaultDelta) {
		if i > 0 {
			b.WriteByte(' ')
		}
		switch {
		case cell.Gap:
			b.WriteString(renderMuted("…"))
		case cell.Page == page:
			b.WriteString(CurrentPageStyle.Render(strconv.Itoa(cell.Page)))
		default:
			b.WriteString(renderMuted(strconv.Itoa(cell.Page)))
		}
	}
	if page < totalPages {
		b.WriteString(" ›")
	}
	return b.String()
}

// renderTags draws review tags as chips.
func renderTags(tags []string, width int) string {
	if len(tags) == 0 {
		return ""
	}
	chips := make([]string, 0, len(tags))
	used := 0
	for _, tag := range tags {
		chip := TagStyle.Render(tag)
		w := lipgloss.Width(chip) + 1
		if used+w > width && len(chips) > 0 {
			break
		}
		chips = append(chips, chip)
		used += w
	}
	return strings.Join(chips, " ")
}
