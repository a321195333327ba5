package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/engine/update"
	"go.trai.ch/forge/internal/ui/style"
)

func (c *CLI) newUpdatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "updates",
		Short: "List newer versions of locked definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			check, err := c.app.CheckUpdates(cmd.Context())
			if err != nil {
				return err
			}
			p := newPrinter(cmd.OutOrStdout())
			if !check.HasUpdates {
				p.ok("all %d locked definitions are up to date", check.Total)
				return nil
			}
			rows := make([][]string, len(check.Updates))
			for i, u := range check.Updates {
				breaking := ""
				if u.Breaking {
					breaking = "breaking"
				}
				rows[i] = []string{u.Type.String(), u.Name, u.Current, u.Latest, breaking}
			}
			p.table([]string{"TYPE", "NAME", "CURRENT", "LATEST", ""}, rows)
			if n := len(check.BreakingChanges); n > 0 {
				p.notice("%d updates change the major version", n)
			}
			return nil
		},
	}
}

func (c *CLI) newUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update [names...]",
		Short: "Move locked definitions to newer versions",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetString("strategy")
			strategy, err := domain.ParseUpdateStrategy(raw)
			if err != nil {
				return err
			}
			prerelease, _ := cmd.Flags().GetBool("prerelease")
			skipBreaking, _ := cmd.Flags().GetBool("skip-breaking")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			result, err := c.app.ApplyUpdates(cmd.Context(), update.ApplyOptions{
				Strategy:          strategy,
				IncludePrerelease: prerelease,
				SkipBreaking:      skipBreaking,
				Packages:          args,
				DryRun:            dryRun,
			})
			if err != nil {
				return err
			}
			printUpdateResult(newPrinter(cmd.OutOrStdout()), result)
			if !result.Success {
				return domain.Annotate(domain.ErrUpdateFailed, "failed", len(result.Failed))
			}
			return nil
		},
	}
	cmd.Flags().StringP("strategy", "s", string(domain.StrategyLatest), "Update strategy: patch, minor or latest")
	cmd.Flags().Bool("prerelease", false, "Allow prerelease versions")
	cmd.Flags().Bool("skip-breaking", false, "Skip updates that change the major version")
	cmd.Flags().BoolP("dry-run", "n", false, "Show what would change without writing the lockfile")
	return cmd
}

func printUpdateResult(p *printer, result *domain.UpdateResult) {
	verb := "updated"
	if result.DryRun {
		verb = "would update"
	}
	for _, u := range result.Updated {
		p.ok("%s %s %s %s %s", verb, u.Name, u.From, style.Arrow, u.To)
	}
	for _, s := range result.Skipped {
		p.notice("skipped %s %s (%s available, %s)", s.Name, s.Current, s.Available, s.Reason)
	}
	for _, f := range result.Failed {
		p.bad("%s: %s", f.Name, f.Error)
	}
	if len(result.Updated) == 0 && len(result.Skipped) == 0 && len(result.Failed) == 0 {
		p.ok("nothing to update")
	}
}
