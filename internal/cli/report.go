// report.go implements the "gauge report" command.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/berth-dev/gauge/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize trends across submitted assessments",
	RunE:  withEnv(runReport),
}

var writeReportFlag bool

func init() {
	reportCmd.Flags().BoolVar(&writeReportFlag, "write", false, "Also write report.md to the data directory")
}

func runReport(cmd *cobra.Command, args []string, e *env) error {
	r, err := report.GenerateReport(cmd.Context(), e.mgr, e.journal, e.mgr.MaxScore(), e.mgr.Preferences().Goal)
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), report.FormatReport(r))

	if writeReportFlag {
		path, err := report.WriteReport(e.dir, r)
		if err != nil {
			return err
		}
		e.out.Println("Written to " + path)
	}
	return nil
}
