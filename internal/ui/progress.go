// Package ui renders session state for the terminal.
// This file implements the progress bar, status box, and question list.
package ui

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

const (
	defaultWidth = 80
	barWidth     = 30
	titleWidth   = 45
)

// Category is one row of the category breakdown.
type Category struct {
	ID    string
	Score float64
	Max   float64
}

// Status is everything the status view shows.
type Status struct {
	SessionID  string
	Phase      string
	Score      float64
	MaxScore   float64
	Percent    float64
	Answered   int
	Total      int
	Index      int
	Current    string // title of the current question
	Categories []Category
	Goal       float64
	Notice     string // e.g. the resume prompt
}

// QuestionRow is one leaf in the question list.
type QuestionRow struct {
	Index    int
	ID       string
	Title    string
	Points   float64
	Answer   int // 0 when unanswered
	Current  bool
	Category string
}

// Display writes styled output. Styling is dropped when the writer is not a
// terminal.
type Display struct {
	w     io.Writer
	isTTY bool
	width int
}

// NewDisplay creates a Display for w, detecting whether w is a terminal.
func NewDisplay(w io.Writer) *Display {
	d := &Display{w: w, width: defaultWidth}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		d.isTTY = true
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			d.width = width
		}
	}
	return d
}

// IsTTY reports whether output is styled.
func (d *Display) IsTTY() bool { return d.isTTY }

func (d *Display) render(s lipgloss.Style, text string) string {
	if !d.isTTY {
		return text
	}
	return s.Render(text)
}

// Println writes a plain line.
func (d *Display) Println(a ...any) {
	fmt.Fprintln(d.w, a...)
}

// Success writes a green line.
func (d *Display) Success(format string, a ...any) {
	fmt.Fprintln(d.w, d.render(SuccessStyle, fmt.Sprintf(format, a...)))
}

// Warn writes an amber line.
func (d *Display) Warn(format string, a ...any) {
	fmt.Fprintln(d.w, d.render(WarningStyle, fmt.Sprintf(format, a...)))
}

// Error writes a red line.
func (d *Display) Error(format string, a ...any) {
	fmt.Fprintln(d.w, d.render(ErrorStyle, fmt.Sprintf(format, a...)))
}

// ProgressBar renders fraction (clamped to 0..1) as a bar of width cells.
func (d *Display) ProgressBar(fraction float64, width int) string {
	if math.IsNaN(fraction) || fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	full := int(math.Round(fraction * float64(width)))
	if !d.isTTY {
		return "[" + strings.Repeat("#", full) + strings.Repeat("-", width-full) + "]"
	}
	return ProgressFullStyle.Render(strings.Repeat("█", full)) +
		ProgressEmptyStyle.Render(strings.Repeat("░", width-full))
}

// RenderStatus writes the status view.
func (d *Display) RenderStatus(s Status) {
	var b strings.Builder

	b.WriteString(d.render(TitleStyle, "Gauge self-assessment"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s\n", d.render(DimStyle, fmt.Sprintf("session %s (%s)", shortID(s.SessionID), s.Phase)))
	b.WriteString("\n")

	fmt.Fprintf(&b, "Score     %s %5.1f / %.0f\n", d.ProgressBar(ratio(s.Score, s.MaxScore), barWidth), s.Score, s.MaxScore)
	fmt.Fprintf(&b, "Answered  %s %3d / %d\n", d.ProgressBar(s.Percent/100, barWidth), s.Answered, s.Total)
	if s.Goal > 0 {
		fmt.Fprintf(&b, "Goal      %5.1f\n", s.Goal)
	}
	if s.Current != "" {
		fmt.Fprintf(&b, "Current   %d. %s\n", s.Index+1, truncate(s.Current, titleWidth))
	}

	if len(s.Categories) > 0 {
		b.WriteString("\n")
		for _, c := range s.Categories {
			fmt.Fprintf(&b, "  %-14s %s %5.1f / %.0f\n", truncate(c.ID, 14), d.ProgressBar(ratio(c.Score, c.Max), barWidth/2), c.Score, c.Max)
		}
	}

	out := strings.TrimRight(b.String(), "\n")
	if d.isTTY {
		out = BoxStyle.MaxWidth(d.width).Render(out)
	}
	fmt.Fprintln(d.w, out)

	if s.Notice != "" {
		d.Warn("%s", s.Notice)
	}
}

// RenderQuestions writes the leaf list with answers and a current marker.
func (d *Display) RenderQuestions(rows []QuestionRow) {
	category := ""
	for _, r := range rows {
		if r.Category != category {
			category = r.Category
			fmt.Fprintln(d.w, d.render(TitleStyle, category))
		}

		marker := " "
		if r.Current {
			marker = ">"
		}
		answer := d.render(DimStyle, " -")
		if r.Answer > 0 {
			answer = fmt.Sprintf("%2d", r.Answer)
		}
		line := fmt.Sprintf("%s %2d. %-*s %s  %s", marker, r.Index+1, titleWidth, truncate(r.Title, titleWidth), answer,
			d.render(DimStyle, fmt.Sprintf("%s (%.0f pts)", r.ID, r.Points)))
		if r.Current {
			line = d.render(SelectedStyle, line)
		}
		fmt.Fprintln(d.w, line)
	}
}

func ratio(v, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return v / max
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
