// prefs.go implements the "gauge prefs" command.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or change preferences",
	Long: `Show preferences, or change them with flags:

  --prefill   seed a new assessment from the last submitted one
  --sharing   publish the anonymized score on submit
  --goal      target score shown in status and report (0 clears it)`,
	RunE: withEnv(runPrefs),
}

var (
	prefillFlag bool
	sharingFlag bool
	goalFlag    float64
)

func init() {
	prefsCmd.Flags().BoolVar(&prefillFlag, "prefill", true, "Pre-fill new assessments from history")
	prefsCmd.Flags().BoolVar(&sharingFlag, "sharing", false, "Publish anonymized results")
	prefsCmd.Flags().Float64Var(&goalFlag, "goal", 0, "Target score")
}

func runPrefs(cmd *cobra.Command, args []string, e *env) error {
	ctx := cmd.Context()
	flags := cmd.Flags()

	if flags.Changed("prefill") {
		if err := e.mgr.SetPreFill(ctx, prefillFlag); err != nil {
			return err
		}
	}
	if flags.Changed("sharing") {
		if sharingFlag && e.cfg.Sharing.Endpoint == "" {
			e.out.Warn("No sharing endpoint is configured; results will not leave this machine.")
		}
		if err := e.mgr.SetSharing(ctx, sharingFlag); err != nil {
			return err
		}
	}
	if flags.Changed("goal") {
		if err := e.mgr.SetGoal(ctx, goalFlag); err != nil {
			return err
		}
	}

	p := e.mgr.Preferences()
	e.out.Println(fmt.Sprintf("prefill: %t", p.PreFill))
	e.out.Println(fmt.Sprintf("sharing: %t", p.Sharing))
	if p.Goal > 0 {
		e.out.Println(fmt.Sprintf("goal:    %.1f", p.Goal))
	} else {
		e.out.Println("goal:    none")
	}
	return nil
}
