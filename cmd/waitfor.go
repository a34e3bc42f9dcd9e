package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/getgrowly/vault-lifecycle/pkg/lifecycle"
	"github.com/getgrowly/vault-lifecycle/pkg/vault"
)

func newWaitForCmd() *cobra.Command {
	var (
		initialized bool
		sealed      bool
		standby     bool
		interval    time.Duration
		quiet       bool
	)

	cmd := &cobra.Command{
		Use:   "wait-for",
		Short: "Wait for Vault health to report the given state",
		Long: `Poll the Vault health endpoint until it reports every given flag.
Only flags set on the command line are compared.

Examples:
  vaultctl wait-for --initialized
  vaultctl wait-for --sealed=false --standby=false`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := map[string]bool{}
			if cmd.Flags().Changed("initialized") {
				target["initialized"] = initialized
			}
			if cmd.Flags().Changed("sealed") {
				target["sealed"] = sealed
			}
			if cmd.Flags().Changed("standby") {
				target["standby"] = standby
			}

			orch, err := newOrchestrator(false)
			if err != nil {
				return err
			}
			orch.Interval = interval

			if !quiet {
				s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
				s.Suffix = fmt.Sprintf(" Waiting for health returning %v", target)
				s.Start()
				defer s.Stop()

				limit := orch.WaitLimit()
				orch.OnAttempt = func(attempt int, _ vault.HealthState) {
					s.Lock()
					s.Suffix = attemptSuffix(target, attempt, limit)
					s.Unlock()
				}
			}

			result, err := orch.WaitFor(cmd.Context(), target)
			if err != nil {
				return err
			}
			if result.Outcome == lifecycle.Exhausted {
				return &lifecycle.AbortError{
					Message: fmt.Sprintf("Failed after %d attempts...", result.Attempts),
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), text.FgGreen.Sprint("Done!"))
			return nil
		},
	}

	cmd.Flags().BoolVar(&initialized, "initialized", false, "expected initialized state")
	cmd.Flags().BoolVar(&sealed, "sealed", false, "expected sealed state")
	cmd.Flags().BoolVar(&standby, "standby", false, "expected standby state")
	cmd.Flags().DurationVar(&interval, "interval", lifecycle.DefaultInterval, "pause between attempts")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not show a progress spinner")
	return cmd
}

func attemptSuffix(target map[string]bool, attempt, limit int) string {
	return fmt.Sprintf(" Waiting for health returning %v (attempt %d/%d)", target, attempt, limit)
}
