package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/taxilian/tplan/internal/collection"
	"github.com/taxilian/tplan/internal/format"
	"github.com/taxilian/tplan/internal/nav"
	"github.com/taxilian/tplan/internal/prefs"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("229")).
				Background(lipgloss.Color("57"))

	editingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	statusColors = map[string]lipgloss.Color{
		"open":        lipgloss.Color("252"),
		"in progress": lipgloss.Color("214"),
		"overdue":     lipgloss.Color("196"),
		"done":        lipgloss.Color("42"),
	}

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	crumbStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	inputStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	detailLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205"))

	boardColumnStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("241")).
				Padding(0, 1)

	// Content area padding
	contentPadding = 2
)

// now is replaced in tests.
var now = time.Now

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.header())
	b.WriteString("\n\n")

	switch m.pane {
	case PaneManagers:
		b.WriteString(m.managersView())
	case PaneReport:
		b.WriteString(m.reportView())
	default:
		if m.layout == prefs.ViewBoard {
			b.WriteString(m.boardView())
		} else {
			b.WriteString(m.tableView())
		}
	}

	// Modal and input line
	if m.confirm != nil {
		b.WriteString("\n")
		b.WriteString(inputStyle.Render(m.confirm.prompt))
	} else if m.inputMode != InputNone {
		b.WriteString("\n")
		b.WriteString(m.input.View())
	}

	// Status message
	switch {
	case m.err != nil:
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
	case m.warning != "":
		b.WriteString("\n")
		b.WriteString(warningStyle.Render(m.warning))
	case m.message != "":
		b.WriteString("\n")
		b.WriteString(messageStyle.Render(m.message))
	}

	b.WriteString("\n\n")
	b.WriteString(m.helpView())

	// Apply padding to entire content
	padStyle := lipgloss.NewStyle().
		PaddingLeft(contentPadding).
		PaddingRight(contentPadding).
		PaddingTop(1)

	return padStyle.Render(b.String())
}

func (m Model) header() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("tplan"))
	b.WriteString("  ")
	b.WriteString(breadcrumbs(m.ctrl.Breadcrumbs()))
	if m.loading {
		b.WriteString("  ")
		b.WriteString(m.spinner.View())
	}
	return b.String()
}

// breadcrumbs renders the trail with the index used to jump back to each
// entry. The current node has no index.
func breadcrumbs(entries []nav.Entry) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		if i == len(entries)-1 {
			parts[i] = crumbStyle.Bold(true).Render(e.Title)
			continue
		}
		parts[i] = dimStyle.Render(fmt.Sprintf("%d:", i)) + crumbStyle.Render(e.Title)
	}
	return strings.Join(parts, dimStyle.Render(" › "))
}

func (m Model) rowWidth() int {
	w := m.width - (contentPadding * 2)
	if w < 60 {
		w = 80
	}
	return w
}

func (m Model) tableView() string {
	rows := m.ctrl.Rows()
	if len(rows) == 0 {
		return "No items here. Press n to create one.\n"
	}

	var b strings.Builder
	b.WriteString(dimStyle.Render(m.tableHeader()))
	b.WriteString("\n")

	visibleHeight := m.height - 10
	if visibleHeight < 5 {
		visibleHeight = 15
	}
	start := 0
	if m.cursor >= visibleHeight {
		start = m.cursor - visibleHeight + 1
	}
	end := min(start+visibleHeight, len(rows))

	width := m.rowWidth()
	for i := start; i < end; i++ {
		line := m.formatRow(rows[i], width)
		switch {
		case i == m.cursor:
			b.WriteString(selectedRowStyle.Width(width).Render(line))
		case rows[i].Editing:
			b.WriteString(editingStyle.Render(line))
		default:
			b.WriteString(line)
		}
		b.WriteString("\n")
	}
	return b.String()
}

var columnWidths = map[string]int{
	"kind":       1,
	"progress":   17,
	"difficulty": 6,
	"color":      2,
	"begin":      10,
	"end":        10,
	"owner":      12,
	"managers":   3,
}

func (m Model) titleWidth(width int) int {
	used := 2 // edit marker
	for _, c := range m.columns {
		if c != "title" {
			used += columnWidths[c] + 1
		}
	}
	tw := width - used
	if tw < 20 {
		tw = 20
	}
	return tw
}

func (m Model) tableHeader() string {
	names := map[string]string{
		"kind": " ", "title": "Title", "progress": "Progress", "difficulty": "Diff",
		"color": "  ", "begin": "Begin", "end": "End", "owner": "Owner", "managers": "Mgr",
	}
	tw := m.titleWidth(m.rowWidth())
	parts := []string{" "}
	for _, c := range m.columns {
		w := columnWidths[c]
		if c == "title" {
			w = tw
		}
		parts = append(parts, fmt.Sprintf("%-*s", w, names[c]))
	}
	return strings.Join(parts, " ")
}

// formatRow returns a plain text line for the configured columns. The color
// swatch is the only styled cell.
func (m Model) formatRow(row collection.Row, width int) string {
	a := row.Node.Attrs()
	marker := " "
	if row.Editing {
		marker = "*"
	}
	tw := m.titleWidth(width)
	parts := []string{marker}
	for _, c := range m.columns {
		var cell string
		switch c {
		case "kind":
			cell = format.KindGlyph(a.Kind)
		case "title":
			cell = truncate(format.Title(*a), tw)
			cell = fmt.Sprintf("%-*s", tw, cell)
		case "progress":
			cell = fmt.Sprintf("%-17s", format.Progress(*a, 10))
		case "difficulty":
			cell = fmt.Sprintf("%-6s", format.DifficultyLabel(a.DiffLevel))
		case "color":
			cell = format.Swatch(a.ColorText())
		case "begin":
			cell = fmt.Sprintf("%-10s", format.Date(a.BeginTime))
		case "end":
			cell = fmt.Sprintf("%-10s", format.Date(a.EndTime))
		case "owner":
			owner := "-"
			if a.Owner != nil {
				owner = a.Owner.Username
			}
			cell = fmt.Sprintf("%-12s", truncate(owner, 12))
		case "managers":
			cell = fmt.Sprintf("%3d", a.ManagersCount)
		}
		parts = append(parts, cell)
	}
	return strings.Join(parts, " ")
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 3 {
		return string(r[:width])
	}
	return string(r[:width-3]) + "..."
}

// boardLanes buckets rows by display status, keeping row order in each lane.
func boardLanes(rows []collection.Row) (lanes [3][]collection.Row) {
	for _, r := range rows {
		a := r.Node.Attrs()
		switch {
		case a.Done():
			lanes[2] = append(lanes[2], r)
		case a.Progress > 0:
			lanes[1] = append(lanes[1], r)
		default:
			lanes[0] = append(lanes[0], r)
		}
	}
	return lanes
}

func (m Model) boardView() string {
	rows := m.ctrl.Rows()
	if len(rows) == 0 {
		return "No items here. Press n to create one.\n"
	}
	lanes := boardLanes(rows)
	titles := [3]string{"Open", "In progress", "Done"}
	laneWidth := m.rowWidth()/3 - 4
	if laneWidth < 18 {
		laneWidth = 18
	}

	cols := make([]string, 0, 3)
	for i, lane := range lanes {
		var b strings.Builder
		b.WriteString(detailLabelStyle.Render(fmt.Sprintf("%s (%d)", titles[i], len(lane))))
		b.WriteString("\n")
		for _, r := range lane {
			b.WriteString(m.formatCard(r, laneWidth))
			b.WriteString("\n")
		}
		cols = append(cols, boardColumnStyle.Width(laneWidth).Render(b.String()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func (m Model) formatCard(r collection.Row, width int) string {
	a := r.Node.Attrs()
	marker := format.KindGlyph(a.Kind)
	if r.Editing {
		marker = "*"
	}
	line := fmt.Sprintf("%s %s", marker, truncate(format.Title(*a), width-6))
	status := format.StatusDisplay(*a, now())
	if r.Index == m.cursor {
		return selectedRowStyle.Render(line)
	}
	return lipgloss.NewStyle().Foreground(statusColors[status]).Render(line) + " " + format.Swatch(a.ColorText())
}

func (m Model) managersView() string {
	var b strings.Builder
	if m.delegation == nil {
		return ""
	}
	b.WriteString(detailLabelStyle.Render("Managers of item " + m.delegation.ItemID().String()))
	b.WriteString("\n\n")
	managers := m.delegation.Managers()
	if len(managers) == 0 {
		b.WriteString(dimStyle.Render("No delegated managers. Press i to invite someone."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(dimStyle.Render(fmt.Sprintf("  %-16s", "user")))
	for i, name := range capabilityNames {
		b.WriteString(dimStyle.Render(fmt.Sprintf(" %d:%s", i+1, name)))
	}
	b.WriteString("\n")
	for i, mgr := range managers {
		var line strings.Builder
		line.WriteString(fmt.Sprintf("  %-16s", truncate(mgr.User.Username, 16)))
		for j, name := range capabilityNames {
			mark := "-"
			if capabilityValue(mgr.Permissions, j) {
				mark = "✓"
			}
			line.WriteString(fmt.Sprintf(" %-*s", len(name)+2, mark))
		}
		if i == m.managerCursor {
			b.WriteString(selectedRowStyle.Render(line.String()))
		} else {
			b.WriteString(line.String())
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) reportView() string {
	var b strings.Builder
	b.WriteString(detailLabelStyle.Render("Report: " + m.reportTitle))
	b.WriteString("\n\n")
	b.WriteString(format.Markdown(m.reportText, m.rowWidth()))
	b.WriteString("\n")
	return b.String()
}

func (m Model) helpView() string {
	switch {
	case m.confirm != nil:
		return helpStyle.Render("y:confirm  n:cancel")
	case m.inputMode != InputNone:
		return helpStyle.Render("enter:apply  esc:cancel")
	case m.pane == PaneManagers:
		return helpStyle.Render("j/k:nav  1-6:toggle grant  X:revoke  i:invite  esc:close")
	case m.pane == PaneReport:
		return helpStyle.Render("esc:close")
	}
	lines := []string{
		"j/k:nav  enter:open  h:back  0-9:crumb  n:new/commit  e:edit/save  D:delete  x:done  c:color  p:progress",
		"while editing: t:title d:description f:difficulty K:task/project   m:managers R:report v:board/table r:refresh q:quit",
	}
	return helpStyle.Render(strings.Join(lines, "\n"))
}
