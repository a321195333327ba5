package lockfile_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.trai.ch/forge/internal/adapters/definition"
	"go.trai.ch/forge/internal/adapters/lockstore"
	"go.trai.ch/forge/internal/adapters/registry"
	"go.trai.ch/forge/internal/adapters/telemetry"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/forge/internal/core/ports/mocks"
	"go.trai.ch/forge/internal/engine/lockfile"
	"go.trai.ch/forge/internal/engine/resolver"
	"go.uber.org/mock/gomock"
)

type def struct {
	typ    domain.DefinitionType
	name   string
	ver    string
	agents []string
	tools  []string
}

func (d def) yaml() string {
	var b strings.Builder
	b.WriteString("name: " + d.name + "\nversion: " + d.ver + "\ntype: " + d.typ.String() + "\n")
	if len(d.agents) > 0 || len(d.tools) > 0 {
		b.WriteString("dependencies:\n")
		if len(d.agents) > 0 {
			b.WriteString("  agents: [" + strings.Join(quoted(d.agents), ", ") + "]\n")
		}
		if len(d.tools) > 0 {
			b.WriteString("  tools: [" + strings.Join(quoted(d.tools), ", ") + "]\n")
		}
	}
	return b.String()
}

func quoted(specs []string) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = `"` + s + `"`
	}
	return out
}

func publish(t *testing.T, root string, d def) string {
	t.Helper()
	dir := filepath.Join(root, d.typ.Plural(), d.name, d.ver)
	require.NoError(t, os.MkdirAll(dir, domain.DirPerm))
	path := filepath.Join(dir, d.typ.String()+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(d.yaml()), domain.FilePerm))
	return path
}

// workspace is a project with a local and a global registry.
type workspace struct {
	local, global string
	lockPath      string
	logger        *mocks.MockLogger
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	ctrl := gomock.NewController(t)
	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Debug(gomock.Any()).AnyTimes()
	logger.EXPECT().Info(gomock.Any()).AnyTimes()

	dir := t.TempDir()
	return &workspace{
		local:    filepath.Join(dir, ".forge"),
		global:   filepath.Join(dir, "home", ".forge", "registry"),
		lockPath: filepath.Join(dir, "forge.lock"),
		logger:   logger,
	}
}

func (w *workspace) manager(t *testing.T, reqs ...domain.Requirement) *lockfile.Manager {
	t.Helper()
	validator, err := definition.NewValidator()
	require.NoError(t, err)

	providers := []ports.SourceProvider{
		registry.New(domain.SourceLocal, w.local),
		registry.New(domain.SourceGlobal, w.global),
	}
	tracer := telemetry.NewNoOpTracer()
	res := resolver.New(providers, definition.NewLoader(), validator, tracer, w.logger)
	return lockfile.New(res, lockstore.New(w.lockPath), reqs, tracer, w.logger)
}

func agent(spec string) domain.Requirement {
	return domain.Requirement{Type: domain.TypeAgent, Spec: spec}
}

func tool(spec string) domain.Requirement {
	return domain.Requirement{Type: domain.TypeTool, Spec: spec}
}
