// status.go implements "gauge status" and "gauge questions".
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/berth-dev/gauge/internal/scoring"
	"github.com/berth-dev/gauge/internal/session"
	"github.com/berth-dev/gauge/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show score and progress of the current assessment",
	RunE:  runStatus,
}

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "List every question with its current answer",
	RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
		e.out.RenderQuestions(questionRows(e.mgr))
		return nil
	}),
}

var runStatus = withEnv(func(cmd *cobra.Command, args []string, e *env) error {
	printStatus(e)
	return nil
})

func printStatus(e *env) {
	e.out.RenderStatus(statusView(e.mgr))
}

// statusView maps a Manager snapshot onto the status screen.
func statusView(m *session.Manager) ui.Status {
	snap := m.Snapshot()
	tree := m.Tree()

	maxes := scoring.CategoryMax(tree)
	cats := make([]ui.Category, 0, len(maxes))
	for _, id := range tree.Categories() {
		cats = append(cats, ui.Category{ID: id, Score: snap.CategoryScores[id], Max: maxes[id]})
	}

	return ui.Status{
		SessionID:  snap.SessionID,
		Phase:      snap.Phase.String(),
		Score:      snap.Score,
		MaxScore:   snap.MaxScore,
		Percent:    snap.PercentComplete,
		Answered:   scoring.Answered(tree, snap.Answers),
		Total:      tree.Len(),
		Index:      snap.Index,
		Current:    tree.Leaves()[snap.Index].Title,
		Categories: cats,
		Goal:       snap.Preferences.Goal,
		Notice:     notice(snap),
	}
}

// notice is the resume prompt shown while loaded answers await a decision.
func notice(snap session.Snapshot) string {
	if !snap.HasSavedSession {
		return ""
	}
	if snap.IsHistoricalPreFill {
		return "Answers were pre-filled from your last assessment. Run 'gauge resume' to keep them or 'gauge fresh' to start blank."
	}
	return fmt.Sprintf("You have an unfinished assessment (%d answered). Run 'gauge resume' to continue or 'gauge fresh' to start over.",
		len(snap.Answers))
}

func questionRows(m *session.Manager) []ui.QuestionRow {
	tree := m.Tree()
	answers := m.Answers()
	current := m.CurrentIndex()

	leaves := tree.Leaves()
	rows := make([]ui.QuestionRow, 0, len(leaves))
	for i, q := range leaves {
		rows = append(rows, ui.QuestionRow{
			Index:    i,
			ID:       q.ID,
			Title:    q.Title,
			Points:   q.Points,
			Answer:   answers[q.ID],
			Current:  i == current,
			Category: tree.Category(q.ID),
		})
	}
	return rows
}
