// session.go implements the commands that move through an assessment:
// start, resume, fresh, answer, next, and prev.
package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/berth-dev/gauge/internal/scoring"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Open the assessment and show where you left off",
	Long: `Open the current assessment. Answers from an unfinished session, or
pre-filled from your last submitted one, wait for you to choose between
'gauge resume' and 'gauge fresh'. Answering a question also resumes.`,
	RunE: runStatus,
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Keep the loaded answers and continue",
	RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
		if !e.mgr.ResumeSession(cmd.Context()) {
			e.out.Println("Nothing to resume.")
			return nil
		}
		if first := e.mgr.FirstUnanswered(); first >= 0 && first != e.mgr.CurrentIndex() {
			e.mgr.GoTo(cmd.Context(), first)
		}
		e.out.Success("Resumed.")
		printStatus(e)
		return nil
	}),
}

var freshCmd = &cobra.Command{
	Use:   "fresh",
	Short: "Discard the in-progress answers and start blank",
	Long:  `Discard the in-progress answers and start blank. Submitted assessments are kept.`,
	RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
		e.mgr.StartFresh(cmd.Context())
		e.out.Success("Started a new assessment.")
		printStatus(e)
		return nil
	}),
}

var answerCmd = &cobra.Command{
	Use:   "answer [question] <rating>",
	Short: "Rate a question from 1 to 10",
	Long: `Rate a question from 1 to 10. The question is a leaf id such as
"health.sleep" or its position in 'gauge questions'. Without a question the
current one is rated and the cursor moves to the next.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: withEnv(runAnswer),
}

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Move to the next question",
	RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
		if !e.mgr.Next(cmd.Context()) {
			e.out.Warn("Already at the last question.")
		}
		printCurrent(e)
		return nil
	}),
}

var prevCmd = &cobra.Command{
	Use:   "prev",
	Short: "Move to the previous question",
	RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
		if !e.mgr.Previous(cmd.Context()) {
			e.out.Warn("Already at the first question.")
		}
		printCurrent(e)
		return nil
	}),
}

func runAnswer(cmd *cobra.Command, args []string, e *env) error {
	ctx := cmd.Context()

	rating, err := strconv.Atoi(args[len(args)-1])
	if err != nil || !scoring.ValidRating(rating) {
		return fmt.Errorf("rating must be a whole number from %d to %d, got %q",
			scoring.MinRating, scoring.MaxRating, args[len(args)-1])
	}

	advance := len(args) == 1
	id := e.mgr.CurrentQuestion().ID
	if !advance {
		id, err = resolveQuestion(e, args[0])
		if err != nil {
			return err
		}
	}

	if !e.mgr.SetAnswer(ctx, id, rating) {
		return fmt.Errorf("answer for %s was not accepted", id)
	}
	e.out.Success("%s = %d  (score %.1f / %.0f)", id, rating, e.mgr.Score(), e.mgr.MaxScore())

	if advance {
		if !e.mgr.Next(ctx) {
			if first := e.mgr.FirstUnanswered(); first >= 0 {
				e.mgr.GoTo(ctx, first)
			} else {
				e.out.Println("All questions answered. Run 'gauge submit' when ready.")
				return nil
			}
		}
		printCurrent(e)
	}
	return nil
}

// resolveQuestion accepts a leaf id or a 1-based position.
func resolveQuestion(e *env, arg string) (string, error) {
	tree := e.mgr.Tree()
	if tree.IsLeaf(arg) {
		return arg, nil
	}
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > tree.Len() {
			return "", fmt.Errorf("question position must be 1-%d", tree.Len())
		}
		return tree.Leaves()[n-1].ID, nil
	}
	return "", fmt.Errorf("unknown question %q; see 'gauge questions'", arg)
}

func printCurrent(e *env) {
	q := e.mgr.CurrentQuestion()
	i := e.mgr.CurrentIndex()
	line := fmt.Sprintf("%d/%d  %s  (%s)", i+1, e.mgr.Tree().Len(), q.Title, q.ID)
	if v, ok := e.mgr.Answers()[q.ID]; ok {
		line += fmt.Sprintf("  current: %d", v)
	}
	e.out.Println(line)
}
