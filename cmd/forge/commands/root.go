// Package commands implements the CLI commands for forge.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/forge/internal/build"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/engine/contentcache"
	"go.trai.ch/forge/internal/engine/update"
)

// CLI represents the command line interface for forge.
type CLI struct {
	app     Application
	rootCmd *cobra.Command
}

// Application represents the application logic interface.
type Application interface {
	Resolve(ctx context.Context, typ domain.DefinitionType, spec string) (*domain.ResolvedDefinition, error)
	ListAvailable(ctx context.Context, typ domain.DefinitionType, sources ...domain.SourceKind) ([]domain.AvailableDefinition, error)
	Exists(ctx context.Context, typ domain.DefinitionType, spec string) (bool, error)
	Info(ctx context.Context, typ domain.DefinitionType, spec string) (*domain.DefinitionInfo, error)

	GenerateLockfile(ctx context.Context, force bool) (*domain.Lockfile, error)
	LoadLockfile(ctx context.Context) (*domain.Lockfile, error)
	ValidateLockfile(ctx context.Context) (*domain.LockValidation, error)
	LockfilePath() string

	CachePreload(ctx context.Context, typ domain.DefinitionType, spec string) ([]contentcache.Result, error)
	CacheRefresh(ctx context.Context, typ domain.DefinitionType, spec string) ([]contentcache.Result, error)
	CacheCheckAccessible(ctx context.Context, typ domain.DefinitionType, spec string) ([]contentcache.Result, error)

	CheckUpdates(ctx context.Context) (*domain.UpdateCheck, error)
	ApplyUpdates(ctx context.Context, opts update.ApplyOptions) (*domain.UpdateResult, error)

	SetJSONLogs(enable bool)
}

// New creates a new CLI instance with the given app.
func New(a Application) *CLI {
	rootCmd := &cobra.Command{
		Use:           "forge",
		Short:         "Resolve, lock and cache agent and tool definitions",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	rootCmd.PersistentFlags().Bool("json", false, "Write logs as JSON")
	rootCmd.PersistentFlags().BoolP("tool", "t", false, "Operate on tool definitions instead of agents")

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		if jsonLogs, _ := cmd.Flags().GetBool("json"); jsonLogs {
			c.app.SetJSONLogs(true)
		}
	}

	rootCmd.AddCommand(c.newResolveCmd())
	rootCmd.AddCommand(c.newExistsCmd())
	rootCmd.AddCommand(c.newListCmd())
	rootCmd.AddCommand(c.newInfoCmd())
	rootCmd.AddCommand(c.newLockCmd())
	rootCmd.AddCommand(c.newUpdatesCmd())
	rootCmd.AddCommand(c.newUpdateCmd())
	rootCmd.AddCommand(c.newCacheCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

// definitionType reads the --tool flag.
func definitionType(cmd *cobra.Command) domain.DefinitionType {
	if tool, _ := cmd.Flags().GetBool("tool"); tool {
		return domain.TypeTool
	}
	return domain.TypeAgent
}
