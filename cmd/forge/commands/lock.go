package commands

import (
	"slices"
	"strconv"

	"github.com/spf13/cobra"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/zerr"
)

func (c *CLI) newLockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Resolve the configured requirements and write the lockfile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			force, _ := cmd.Flags().GetBool("force")
			lf, err := c.app.GenerateLockfile(cmd.Context(), force)
			if err != nil {
				return err
			}
			newPrinter(cmd.OutOrStdout()).ok("locked %d agents and %d tools in %s",
				len(lf.Agents), len(lf.Tools), c.app.LockfilePath())
			return nil
		},
	}
	cmd.Flags().BoolP("force", "f", false, "Overwrite an existing lockfile")

	cmd.AddCommand(c.newLockValidateCmd())
	cmd.AddCommand(c.newLockShowCmd())
	return cmd
}

func (c *CLI) newLockValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the lockfile against the current sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := c.app.ValidateLockfile(cmd.Context())
			if err != nil {
				return err
			}
			p := newPrinter(cmd.OutOrStdout())
			if result.Valid {
				p.ok("lockfile is up to date")
				return nil
			}
			for _, msg := range result.Errors {
				p.bad("%s", msg)
			}
			return zerr.With(zerr.Wrap(domain.ErrDriftDetected, c.app.LockfilePath()), "problems", len(result.Errors))
		},
	}
}

func (c *CLI) newLockShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the locked versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lf, err := c.app.LoadLockfile(cmd.Context())
			if err != nil {
				return err
			}
			var rows [][]string
			for _, typ := range domain.DefinitionTypes {
				entries := lf.Entries(typ)
				names := make([]string, 0, len(entries))
				for name := range entries {
					names = append(names, name)
				}
				slices.Sort(names)
				for _, name := range names {
					e := entries[name]
					rows = append(rows, []string{typ.String(), name, e.Version, e.Source.String()})
				}
			}
			p := newPrinter(cmd.OutOrStdout())
			p.table([]string{"TYPE", "NAME", "VERSION", "SOURCE"}, rows)
			p.field("generated", lf.GeneratedAt.Format("2006-01-02 15:04:05Z07:00"))
			p.field("schema", strconv.Itoa(lf.SchemaVersion))
			return nil
		},
	}
}
