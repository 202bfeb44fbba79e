// Package report summarizes archived assessments into a trend report.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/berth-dev/gauge/internal/log"
	"github.com/berth-dev/gauge/internal/store"
)

// recentLimit is how many sessions the report lists individually.
const recentLimit = 5

// Report holds trend statistics over the archived sessions.
type Report struct {
	Sessions    int
	Average     float64
	Best        float64
	Worst       float64
	Latest      float64
	Previous    float64
	HasPrevious bool
	MaxScore    float64
	Goal        float64 // 0 when unset
	FirstAt     time.Time
	LatestAt    time.Time
	AvgDuration time.Duration
	Recent      []store.Summary // most recent first

	// Counted from the event journal.
	Expired         int
	PublishFailures int
}

// Delta is the change from the previous session to the latest one.
func (r *Report) Delta() float64 {
	if !r.HasPrevious {
		return 0
	}
	return r.Latest - r.Previous
}

// GoalGap is how far the latest score is below the goal; negative means the
// goal has been passed.
func (r *Report) GoalGap() float64 {
	return r.Goal - r.Latest
}

// HistorySource lists archived sessions, most recent first.
type HistorySource interface {
	History(ctx context.Context) ([]store.Summary, error)
}

// EventCounter tallies journal events. *log.Journal satisfies it.
type EventCounter interface {
	Count(f log.Filter) (map[string]int, error)
}

// reportEvents are the journal events a Report counts.
var reportEvents = log.Filter{Events: []string{log.EventSessionExpired, log.EventPublishFailed}}

// GenerateReport loads history and the journal and builds a Report. A nil or
// unreadable journal leaves the event counts at zero.
func GenerateReport(ctx context.Context, src HistorySource, journal EventCounter, maxScore, goal float64) (*Report, error) {
	history, err := src.History(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	var counts map[string]int
	if journal != nil {
		if c, countErr := journal.Count(reportEvents); countErr == nil {
			counts = c
		}
	}
	return Build(history, counts, maxScore, goal), nil
}

// Build computes a Report from history, most recent first, and journal event
// counts keyed by event name.
func Build(history []store.Summary, counts map[string]int, maxScore, goal float64) *Report {
	r := &Report{
		Sessions:        len(history),
		MaxScore:        maxScore,
		Goal:            goal,
		Expired:         counts[log.EventSessionExpired],
		PublishFailures: counts[log.EventPublishFailed],
	}

	if len(history) == 0 {
		return r
	}

	r.Latest = history[0].TotalScore
	r.LatestAt = history[0].CompletedAt
	r.FirstAt = history[len(history)-1].CompletedAt
	if len(history) > 1 {
		r.Previous = history[1].TotalScore
		r.HasPrevious = true
	}

	r.Best, r.Worst = history[0].TotalScore, history[0].TotalScore
	var sum float64
	var secs int64
	for _, h := range history {
		sum += h.TotalScore
		secs += h.DurationSeconds
		if h.TotalScore > r.Best {
			r.Best = h.TotalScore
		}
		if h.TotalScore < r.Worst {
			r.Worst = h.TotalScore
		}
	}
	r.Average = sum / float64(len(history))
	r.AvgDuration = time.Duration(secs/int64(len(history))) * time.Second

	n := len(history)
	if n > recentLimit {
		n = recentLimit
	}
	r.Recent = append([]store.Summary(nil), history[:n]...)
	return r
}

// FormatReport produces a terminal-friendly, human-readable summary string.
func FormatReport(r *Report) string {
	var b strings.Builder

	b.WriteString("========================================\n")
	b.WriteString("  Gauge Report\n")
	b.WriteString("========================================\n")
	b.WriteString("\n")

	if r.Sessions == 0 {
		b.WriteString("No submitted assessments yet.\n")
		b.WriteString("========================================\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Sessions:    %d (%s to %s)\n", r.Sessions,
		r.FirstAt.Local().Format("2006-01-02"), r.LatestAt.Local().Format("2006-01-02"))
	fmt.Fprintf(&b, "Latest:      %s\n", formatScore(r.Latest, r.MaxScore))
	if r.HasPrevious {
		fmt.Fprintf(&b, "  Change:    %+.1f\n", r.Delta())
	}
	fmt.Fprintf(&b, "Average:     %.1f\n", r.Average)
	fmt.Fprintf(&b, "Best:        %.1f\n", r.Best)
	fmt.Fprintf(&b, "Worst:       %.1f\n", r.Worst)
	if r.AvgDuration > 0 {
		fmt.Fprintf(&b, "Avg time:    %s\n", formatDuration(r.AvgDuration))
	}
	b.WriteString("\n")

	if r.Goal > 0 {
		if gap := r.GoalGap(); gap > 0 {
			fmt.Fprintf(&b, "Goal:        %.1f (%.1f to go)\n", r.Goal, gap)
		} else {
			fmt.Fprintf(&b, "Goal:        %.1f (reached)\n", r.Goal)
		}
		b.WriteString("\n")
	}

	b.WriteString("Recent:\n")
	for _, s := range r.Recent {
		line := fmt.Sprintf("  - %s  %5.1f", s.CompletedAt.Local().Format("2006-01-02 15:04"), s.TotalScore)
		if s.Notes != "" {
			line += "  " + firstLine(s.Notes)
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")

	if r.Expired > 0 {
		fmt.Fprintf(&b, "Expired:     %d abandoned sessions\n", r.Expired)
	}
	if r.PublishFailures > 0 {
		fmt.Fprintf(&b, "Unshared:    %d publish failures\n", r.PublishFailures)
	}

	b.WriteString("========================================\n")

	return b.String()
}

// WriteReport writes the formatted report to {dir}/report.md.
// Creates the directory if it does not exist.
func WriteReport(dir string, report *Report) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}

	path := filepath.Join(dir, "report.md")
	if err := os.WriteFile(path, []byte(FormatReport(report)), 0644); err != nil {
		return "", fmt.Errorf("writing report file: %w", err)
	}
	return path, nil
}

func formatScore(score, max float64) string {
	if max <= 0 {
		return fmt.Sprintf("%.1f", score)
	}
	return fmt.Sprintf("%.1f / %.0f", score, max)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 40 {
		s = s[:37] + "..."
	}
	return s
}

// formatDuration produces a human-readable duration string such as "5m 32s"
// or "1h 12m 5s". Sub-second durations are shown as "< 1s".
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "< 1s"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
