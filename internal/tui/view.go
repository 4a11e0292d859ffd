package tui

import (
	"fmt"
	"strings"

	"github.com/Sternrassler/userlist/internal/user"
	"github.com/charmbracelet/lipgloss"
)

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteByte('\n')

	h := m.listHeight()
	end := min(m.offset+h, len(m.items))
	for i := m.offset; i < end; i++ {
		b.WriteString(m.renderRow(i, m.items[i]))
		b.WriteByte('\n')
	}
	for i := end - m.offset; i < h; i++ {
		b.WriteByte('\n')
	}

	b.WriteString(m.renderStatus())
	b.WriteByte('\n')
	b.WriteString(m.help.View(m.keys))

	return b.String()
}

func (m Model) renderHeader() string {
	sort := m.sort
	if sort == "" {
		sort = "default"
	}
	title := TitleStyle.Render(m.title)
	info := SubtitleStyle.Render(fmt.Sprintf("  %d of %d  sort: %s", len(m.items), m.total, sort))
	return title + info
}

func (m Model) renderRow(i int, u user.User) string {
	created := ""
	if !u.CreatedAt.IsZero() {
		created = u.CreatedAt.Format("2006-01-02")
	}
	line := fmt.Sprintf("%-24s %-32s %-14s %s",
		truncate(u.Name, 24), truncate(u.Email, 32), truncate(u.Username, 14), created)

	if i == m.cursor {
		return SelectedStyle.Width(max(m.width, lipgloss.Width(line))).Render(line)
	}
	return line
}

func (m Model) renderStatus() string {
	switch {
	case m.gate.Busy().Get():
		return m.spinner.View() + DimStyle.Render(" Loading more…")
	case m.err != nil:
		return ErrorStyle.Render("Error: "+m.err.Error()) + DimStyle.Render("  (r to retry)")
	case !m.hasMore.Get():
		return DimStyle.Render("End of list")
	default:
		return ""
	}
}

func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	if len(r) > width-1 {
		r = r[:width-1]
	}
	return string(r) + "…"
}
