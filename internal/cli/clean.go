// clean.go implements the "gauge clean" command for pruning old assessments.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/berth-dev/gauge/internal/cleanup"
	"github.com/berth-dev/gauge/internal/store"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove old submitted assessments",
	Long: `Remove old submitted assessments.

By default, removes assessments older than history.max_age_days from
config.yaml. Use --keep to keep only the N most recent instead.
Use --dry-run to preview what would be removed.`,
	RunE: withEnv(runClean),
}

var (
	keepFlag   int
	dryRunFlag bool
)

func init() {
	cleanCmd.Flags().IntVar(&keepFlag, "keep", 0, "Keep only the last N assessments (0 = use age-based cleanup)")
	cleanCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Preview what would be removed without deleting")
}

func runClean(cmd *cobra.Command, args []string, e *env) error {
	var pruned []store.Summary
	var err error

	if keepFlag > 0 {
		pruned, err = cleanup.PruneKeepRecent(cmd.Context(), e.mgr, keepFlag, dryRunFlag)
	} else {
		maxAge := e.cfg.History.MaxAgeDays
		if maxAge <= 0 {
			return fmt.Errorf("history.max_age_days is not set; pass --keep or set it in config.yaml")
		}
		pruned, err = cleanup.PruneByAge(cmd.Context(), e.mgr, maxAge, time.Now(), dryRunFlag)
	}
	if err != nil {
		return err
	}

	if len(pruned) == 0 {
		e.out.Println("Nothing to clean up.")
		return nil
	}

	verb := "Removed"
	if dryRunFlag {
		verb = "Would remove"
	}
	for _, s := range pruned {
		e.out.Println(fmt.Sprintf("  %s  %s  %5.1f", s.ID, s.CompletedAt.Local().Format("2006-01-02"), s.TotalScore))
	}
	e.out.Println(fmt.Sprintf("%s %d assessments.", verb, len(pruned)))
	return nil
}
