// submit.go implements the "gauge submit" command.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/berth-dev/gauge/internal/scoring"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Archive the assessment and start a new one",
	Long: `Archive the current assessment with its score. Unanswered questions
count as the minimum rating. When sharing is enabled the anonymized score
is also published.`,
	RunE: withEnv(runSubmit),
}

var notesFlag string

func init() {
	submitCmd.Flags().StringVar(&notesFlag, "notes", "", "Free-text notes stored with the assessment")
}

func runSubmit(cmd *cobra.Command, args []string, e *env) error {
	answers := e.mgr.Answers()
	tree := e.mgr.Tree()
	if missing := tree.Len() - scoring.Answered(tree, answers); missing > 0 {
		e.out.Warn("%d unanswered questions will count as %d.", missing, scoring.MinRating)
	}

	id, err := e.mgr.Submit(cmd.Context(), notesFlag)
	if err != nil {
		return err
	}

	hs, err := e.mgr.HistoricalSession(cmd.Context(), id)
	if err != nil {
		return err
	}
	e.out.Success("Submitted: %.1f / %.0f", hs.TotalScore, e.mgr.MaxScore())
	e.out.Println("Saved as " + id)
	return nil
}
