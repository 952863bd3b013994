// Package format provides display helpers shared by the CLI and the TUI.
package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/taxilian/tplan/internal/model"
)

// KindGlyph returns a one-cell marker for the item kind.
func KindGlyph(k model.Kind) string {
	switch k {
	case model.KindProject:
		return "▣"
	case model.KindTask:
		return "•"
	default:
		return "?"
	}
}

// DifficultyLabel returns easy/medium/hard, or "-" when undetermined.
func DifficultyLabel(d model.DiffLevel) string {
	switch d {
	case model.DiffEasy:
		return "easy"
	case model.DiffMedium:
		return "medium"
	case model.DiffHard:
		return "hard"
	default:
		return "-"
	}
}

// ParseDifficulty is the inverse of DifficultyLabel. It also accepts 0-3.
func ParseDifficulty(s string) (model.DiffLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "-", "0", "none", "unset":
		return model.DiffUnset, nil
	case "1", "easy":
		return model.DiffEasy, nil
	case "2", "medium":
		return model.DiffMedium, nil
	case "3", "hard":
		return model.DiffHard, nil
	}
	return model.DiffUnset, fmt.Errorf("invalid difficulty %q (use easy, medium, hard or -)", s)
}

// ProgressBar renders progress as a fixed-width bar followed by the percentage.
func ProgressBar(progress, width int) string {
	if width <= 0 {
		width = 10
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	filled := progress * width / 100
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + fmt.Sprintf("] %3d%%", progress)
}

// Checkbox renders a task's completion state.
func Checkbox(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}

// Progress picks the checkbox for tasks and the bar for projects.
func Progress(a model.Attributes, width int) string {
	if a.Kind == model.KindTask {
		return Checkbox(a.Done())
	}
	return ProgressBar(a.Progress, width)
}

// Swatch renders a small block in the item's color tag, or blank space.
func Swatch(color string) string {
	if color == "" {
		return "  "
	}
	return lipgloss.NewStyle().Background(lipgloss.Color(color)).Render("  ")
}

// IsOverdue returns true if the item has an end time before now and is not done.
// Unparseable end times are never overdue.
func IsOverdue(a model.Attributes, now time.Time) bool {
	if a.Done() || a.EndTime == nil {
		return false
	}
	end, ok := parseTime(*a.EndTime)
	if !ok {
		return false
	}
	return now.After(end)
}

// StatusDisplay returns done, overdue, or in progress/open.
func StatusDisplay(a model.Attributes, now time.Time) string {
	switch {
	case a.Done():
		return "done"
	case IsOverdue(a, now):
		return "overdue"
	case a.Progress > 0:
		return "in progress"
	default:
		return "open"
	}
}

// Date shortens an ISO-8601 timestamp to its date, or "-" when unset.
func Date(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	if t, ok := parseTime(*s); ok {
		return t.Format("2006-01-02")
	}
	return *s
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Title returns the item title or a placeholder for untitled items.
func Title(a model.Attributes) string {
	if t := a.TitleText(); t != "" {
		return t
	}
	return "(untitled)"
}
