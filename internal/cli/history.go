// history.go implements "gauge history" and its show, delete, and clear subcommands.
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/berth-dev/gauge/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List submitted assessments",
	RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
		list, err := e.mgr.History(cmd.Context())
		if err != nil {
			return err
		}
		if len(list) == 0 {
			e.out.Println("No submitted assessments yet.")
			return nil
		}
		for _, s := range list {
			line := fmt.Sprintf("%s  %s  %5.1f  %s", s.ID, s.CompletedAt.Local().Format("2006-01-02 15:04"),
				s.TotalScore, formatSeconds(s.DurationSeconds))
			if s.Notes != "" {
				line += "  " + strings.SplitN(s.Notes, "\n", 2)[0]
			}
			e.out.Println(line)
		}
		return nil
	}),
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one submitted assessment",
	Args:  cobra.ExactArgs(1),
	RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
		hs, err := e.mgr.HistoricalSession(cmd.Context(), args[0])
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no assessment with id %s", args[0])
		}
		if err != nil {
			return err
		}

		e.out.Println(fmt.Sprintf("%s  %s", hs.ID, hs.CompletedAt.Local().Format("2006-01-02 15:04")))
		e.out.Println(fmt.Sprintf("Score:    %.1f / %.0f", hs.TotalScore, e.mgr.MaxScore()))
		e.out.Println("Duration: " + formatSeconds(hs.DurationSeconds))
		if hs.Notes != "" {
			e.out.Println("Notes:    " + hs.Notes)
		}
		e.out.Println()
		for _, r := range hs.Responses {
			e.out.Println(fmt.Sprintf("  %-32s %2d", r.QuestionID, r.Value))
		}
		return nil
	}),
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one submitted assessment",
	Args:  cobra.ExactArgs(1),
	RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
		err := e.mgr.DeleteHistorical(cmd.Context(), args[0])
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no assessment with id %s", args[0])
		}
		if err != nil {
			return err
		}
		e.out.Success("Deleted %s.", args[0])
		return nil
	}),
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every submitted assessment",
	RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
		if !yesFlag && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Delete all submitted assessments?") {
			e.out.Println("Aborted.")
			return nil
		}
		n, err := e.mgr.ClearHistory(cmd.Context())
		if err != nil {
			return err
		}
		e.out.Success("Deleted %d assessments.", n)
		return nil
	}),
}

var yesFlag bool

func init() {
	historyClearCmd.Flags().BoolVarP(&yesFlag, "yes", "y", false, "Do not ask for confirmation")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyClearCmd)
}

// confirm asks a y/N question on out and reads the reply from in.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	reader := bufio.NewReader(in)
	answer, _ := reader.ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes"
}

func formatSeconds(secs int64) string {
	switch {
	case secs <= 0:
		return "-"
	case secs < 60:
		return fmt.Sprintf("%ds", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm", secs/60)
	case secs < 86400:
		return fmt.Sprintf("%dh%02dm", secs/3600, (secs%3600)/60)
	default:
		return fmt.Sprintf("%dd", secs/86400)
	}
}
