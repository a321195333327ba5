package commands

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.trai.ch/forge/internal/core/domain"
)

func (c *CLI) newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <name[@range]>",
		Short: "Resolve a definition to an exact version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := c.app.Resolve(cmd.Context(), definitionType(cmd), args[0])
			if err != nil {
				return err
			}
			p := newPrinter(cmd.OutOrStdout())
			p.ok("%s@%s", resolved.Name(), resolved.ExactVersion)
			p.field("type", resolved.Type().String())
			p.field("source", resolved.Source.String())
			p.field("location", resolved.Location)
			p.field("checksum", resolved.Checksum)
			return nil
		},
	}
}

func (c *CLI) newExistsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exists <name[@range]>",
		Short: "Report whether a definition can be resolved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := c.app.Exists(cmd.Context(), definitionType(cmd), args[0])
			if err != nil {
				return err
			}
			p := newPrinter(cmd.OutOrStdout())
			if ok {
				p.ok("%s is available", args[0])
			} else {
				p.bad("%s is not available", args[0])
			}
			return nil
		},
	}
}

func (c *CLI) newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available definitions across all sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			typ := definitionType(cmd)
			names, _ := cmd.Flags().GetStringSlice("source")
			sources := make([]domain.SourceKind, 0, len(names))
			for _, name := range names {
				kind, err := domain.ParseSourceKind(name)
				if err != nil {
					return err
				}
				sources = append(sources, kind)
			}

			defs, err := c.app.ListAvailable(cmd.Context(), typ, sources...)
			if err != nil {
				return err
			}
			p := newPrinter(cmd.OutOrStdout())
			if len(defs) == 0 {
				p.notice("no %s found", typ.Plural())
				return nil
			}
			rows := make([][]string, len(defs))
			for i, d := range defs {
				rows[i] = []string{d.Name, strings.Join(d.Versions, ", "), joinKinds(d.Sources)}
			}
			p.table([]string{"NAME", "VERSIONS", "SOURCES"}, rows)
			return nil
		},
	}
	cmd.Flags().StringSliceP("source", "s", nil, "Only list these sources (local, global, stockyard)")
	return cmd
}

func (c *CLI) newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <name[@range]>",
		Short: "Show a resolved definition and its available versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := c.app.Info(cmd.Context(), definitionType(cmd), args[0])
			if err != nil {
				return err
			}
			def := info.Resolved.Definition
			p := newPrinter(cmd.OutOrStdout())
			p.header(def.Name + "@" + info.Resolved.ExactVersion)
			p.field("type", def.Type.String())
			p.field("description", def.Description)
			p.field("author", def.Author)
			p.field("tags", strings.Join(def.Tags, ", "))
			p.field("source", info.Resolved.Source.String())
			p.field("agents", strings.Join(def.Dependencies.Agents, ", "))
			p.field("tools", strings.Join(def.Dependencies.Tools, ", "))
			if n := len(def.CacheSources); n > 0 {
				p.field("cache", strconv.Itoa(n)+" sources")
			}
			p.field("versions", strings.Join(info.AvailableVersions, ", "))
			return nil
		},
	}
}
