package commands

import (
	"context"

	"github.com/spf13/cobra"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/engine/contentcache"
)

type cacheOp func(ctx context.Context, typ domain.DefinitionType, spec string) ([]contentcache.Result, error)

func (c *CLI) newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage content referenced by definition cache sources",
	}
	cmd.AddCommand(c.newCacheOpCmd("preload", "Load every cache source of a definition", "cached", c.app.CachePreload))
	cmd.AddCommand(c.newCacheOpCmd("refresh", "Drop and reload the cache sources of a definition", "refreshed", c.app.CacheRefresh))
	cmd.AddCommand(c.newCacheOpCmd("check", "Check that every cache source of a definition is reachable", "reachable", c.app.CacheCheckAccessible))
	return cmd
}

func (c *CLI) newCacheOpCmd(use, short, verb string, op cacheOp) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <name[@range]>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := op(cmd.Context(), definitionType(cmd), args[0])
			if err != nil {
				return err
			}
			p := newPrinter(cmd.OutOrStdout())
			if len(results) == 0 {
				p.notice("%s declares no cache sources", args[0])
				return nil
			}
			failed := 0
			for _, r := range results {
				name := r.Key
				if name == "" {
					name = string(r.Source.Type)
				}
				if r.Err != nil {
					failed++
					p.bad("%s: %s", name, r.Err.Error())
					continue
				}
				p.ok("%s %s", verb, name)
			}
			if failed > 0 {
				return domain.Annotate(domain.ErrSourceUnavailable, "failed", failed)
			}
			return nil
		},
	}
}
