package update_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/forge/internal/adapters/definition"
	"go.trai.ch/forge/internal/adapters/lockstore"
	"go.trai.ch/forge/internal/adapters/registry"
	"go.trai.ch/forge/internal/adapters/telemetry"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/forge/internal/core/ports/mocks"
	"go.trai.ch/forge/internal/engine/resolver"
	"go.trai.ch/forge/internal/engine/update"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	local, global string
	store         *lockstore.Store
	manager       *update.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Debug(gomock.Any()).AnyTimes()
	logger.EXPECT().Info(gomock.Any()).AnyTimes()
	logger.EXPECT().Warn(gomock.Any()).AnyTimes()

	validator, err := definition.NewValidator()
	require.NoError(t, err)

	dir := t.TempDir()
	f := &fixture{
		local:  filepath.Join(dir, "local"),
		global: filepath.Join(dir, "global"),
		store:  lockstore.New(filepath.Join(dir, "forge.lock")),
	}
	providers := []ports.SourceProvider{
		registry.New(domain.SourceLocal, f.local),
		registry.New(domain.SourceGlobal, f.global),
	}
	tracer := telemetry.NewNoOpTracer()
	res := resolver.New(providers, definition.NewLoader(), validator, tracer, logger)
	f.manager = update.New(res, f.store, tracer, logger)
	return f
}

func (f *fixture) publish(t *testing.T, root string, typ domain.DefinitionType, name string, versions ...string) {
	t.Helper()
	for _, v := range versions {
		dir := filepath.Join(root, typ.Plural(), name, v)
		require.NoError(t, os.MkdirAll(dir, domain.DirPerm))
		content := "name: " + name + "\nversion: " + v + "\ntype: " + typ.String() + "\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, typ.String()+".yaml"), []byte(content), domain.FilePerm))
	}
}

func (f *fixture) lock(t *testing.T, entries map[string]domain.LockedEntry, tools map[string]domain.LockedEntry) {
	t.Helper()
	lf := domain.NewLockfile(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	for k, v := range entries {
		lf.Agents[k] = v
	}
	for k, v := range tools {
		lf.Tools[k] = v
	}
	require.NoError(t, f.store.Save(lf))
}

func global(v string) domain.LockedEntry {
	return domain.LockedEntry{Version: v, Source: domain.SourceGlobal, Checksum: "old"}
}

func TestCheckUpdates(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	f.publish(t, f.global, domain.TypeAgent, "reviewer", "1.0.0", "1.1.0", "2.0.0")
	f.publish(t, f.global, domain.TypeAgent, "planner", "1.0.0", "1.0.1")
	f.publish(t, f.global, domain.TypeTool, "grep", "3.0.0", "3.1.0-beta.1")
	f.lock(t,
		map[string]domain.LockedEntry{"reviewer": global("1.0.0"), "planner": global("1.0.0")},
		map[string]domain.LockedEntry{"grep": global("3.0.0")},
	)

	check, err := f.manager.CheckUpdates(t.Context())
	require.NoError(t, err)

	assert.True(t, check.HasUpdates)
	assert.Equal(t, 2, check.Total)
	assert.Equal(t, []domain.AvailableUpdate{
		{Name: "planner", Type: domain.TypeAgent, Current: "1.0.0", Latest: "1.0.1", Source: domain.SourceGlobal},
		{Name: "reviewer", Type: domain.TypeAgent, Current: "1.0.0", Latest: "2.0.0", Source: domain.SourceGlobal, Breaking: true},
	}, check.Updates)
	require.Len(t, check.BreakingChanges, 1)
	assert.Equal(t, "reviewer", check.BreakingChanges[0].Name)
}

func TestCheckUpdates_NoLockfile(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.CheckUpdates(t.Context())
	require.ErrorIs(t, err, domain.ErrLockfileMissing)
}

func TestApplyUpdates_Strategies(t *testing.T) {
	tests := []struct {
		name     string
		strategy domain.UpdateStrategy
		want     string
		skipped  domain.SkipReason
	}{
		{name: "patch", strategy: domain.StrategyPatch, want: "1.2.5"},
		{name: "minor", strategy: domain.StrategyMinor, want: "1.4.0"},
		{name: "latest", strategy: domain.StrategyLatest, want: "2.1.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.publish(t, f.global, domain.TypeAgent, "reviewer", "1.2.3", "1.2.5", "1.3.0", "1.4.0", "2.1.0", "2.2.0-rc.1")
			f.lock(t, map[string]domain.LockedEntry{"reviewer": global("1.2.3")}, nil)

			result, err := f.manager.ApplyUpdates(t.Context(), update.ApplyOptions{Strategy: tt.strategy})
			require.NoError(t, err)
			assert.True(t, result.Success)
			assert.Equal(t, []domain.AppliedUpdate{
				{Name: "reviewer", Type: domain.TypeAgent, From: "1.2.3", To: tt.want},
			}, result.Updated)

			lf, err := f.store.Load()
			require.NoError(t, err)
			assert.Equal(t, tt.want, lf.Agents["reviewer"].Version)
			assert.Len(t, lf.Agents["reviewer"].Checksum, 64)
		})
	}
}

func TestApplyUpdates_Prerelease(t *testing.T) {
	f := newFixture(t)
	f.publish(t, f.global, domain.TypeTool, "grep", "1.0.0", "1.1.0-beta.1")
	f.lock(t, nil, map[string]domain.LockedEntry{"grep": global("1.0.0")})

	result, err := f.manager.ApplyUpdates(t.Context(), update.ApplyOptions{Strategy: domain.StrategyMinor})
	require.NoError(t, err)
	assert.Empty(t, result.Updated)

	result, err = f.manager.ApplyUpdates(t.Context(), update.ApplyOptions{Strategy: domain.StrategyMinor, IncludePrerelease: true})
	require.NoError(t, err)
	require.Len(t, result.Updated, 1)
	assert.Equal(t, "1.1.0-beta.1", result.Updated[0].To)
}

func TestApplyUpdates_SkipReasons(t *testing.T) {
	f := newFixture(t)
	f.publish(t, f.global, domain.TypeAgent, "breaker", "1.0.0", "2.0.0")
	f.publish(t, f.global, domain.TypeAgent, "bounded", "1.0.0", "2.0.0")
	f.publish(t, f.local, domain.TypeAgent, "handmade", "1.0.0", "1.5.0")
	f.lock(t, map[string]domain.LockedEntry{
		"breaker":  global("1.0.0"),
		"bounded":  global("1.0.0"),
		"handmade": {Version: "1.0.0", Source: domain.SourceLocal, Checksum: "x"},
	}, nil)

	result, err := f.manager.ApplyUpdates(t.Context(), update.ApplyOptions{
		Strategy:     domain.StrategyLatest,
		SkipBreaking: true,
		Packages:     []string{"breaker", "handmade"},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Updated)
	assert.Equal(t, []domain.SkippedUpdate{
		{Name: "breaker", Type: domain.TypeAgent, Current: "1.0.0", Available: "2.0.0", Reason: domain.SkipBreaking},
		{Name: "handmade", Type: domain.TypeAgent, Current: "1.0.0", Available: "1.5.0", Reason: domain.SkipManual},
	}, result.Skipped)

	result, err = f.manager.ApplyUpdates(t.Context(), update.ApplyOptions{
		Strategy: domain.StrategyMinor,
		Packages: []string{"bounded"},
	})
	require.NoError(t, err)
	assert.Equal(t, []domain.SkippedUpdate{
		{Name: "bounded", Type: domain.TypeAgent, Current: "1.0.0", Available: "2.0.0", Reason: domain.SkipConstraint},
	}, result.Skipped)
}

func TestApplyUpdates_DryRun(t *testing.T) {
	f := newFixture(t)
	f.publish(t, f.global, domain.TypeAgent, "reviewer", "1.0.0", "1.1.0")
	f.publish(t, f.global, domain.TypeAgent, "planner", "1.0.0")
	// planner 1.1.0 is listed but its definition names another agent.
	dir := filepath.Join(f.global, "agents", "planner", "1.1.0")
	require.NoError(t, os.MkdirAll(dir, domain.DirPerm))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agent.yaml"),
		[]byte("name: other\nversion: 1.1.0\ntype: agent\n"), domain.FilePerm))
	f.lock(t, map[string]domain.LockedEntry{"reviewer": global("1.0.0"), "planner": global("1.0.0")}, nil)
	before, err := os.ReadFile(f.store.Path())
	require.NoError(t, err)

	result, err := f.manager.ApplyUpdates(t.Context(), update.ApplyOptions{DryRun: true})
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.False(t, result.Success)
	assert.Equal(t, []domain.AppliedUpdate{
		{Name: "reviewer", Type: domain.TypeAgent, From: "1.0.0", To: "1.1.0"},
	}, result.Updated)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "planner", result.Failed[0].Name)
	assert.Contains(t, result.Failed[0].Error, domain.ErrDefinitionMismatch.Error())

	after, err := os.ReadFile(f.store.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestApplyUpdates_Failure(t *testing.T) {
	f := newFixture(t)
	f.publish(t, f.global, domain.TypeAgent, "reviewer", "1.0.0")
	// 1.1.0 is listed but its definition claims another version.
	dir := filepath.Join(f.global, "agents", "reviewer", "1.1.0")
	require.NoError(t, os.MkdirAll(dir, domain.DirPerm))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agent.yaml"),
		[]byte("name: reviewer\nversion: 9.9.9\ntype: agent\n"), domain.FilePerm))
	f.lock(t, map[string]domain.LockedEntry{"reviewer": global("1.0.0")}, nil)

	result, err := f.manager.ApplyUpdates(t.Context(), update.ApplyOptions{})
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "reviewer", result.Failed[0].Name)
	assert.Contains(t, result.Failed[0].Error, domain.ErrDefinitionMismatch.Error())

	lf, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", lf.Agents["reviewer"].Version)
}

func TestApplyUpdates_InvalidStrategy(t *testing.T) {
	f := newFixture(t)
	f.publish(t, f.global, domain.TypeAgent, "reviewer", "1.0.0", "1.1.0")
	f.lock(t, map[string]domain.LockedEntry{"reviewer": global("1.0.0")}, nil)

	_, err := f.manager.ApplyUpdates(t.Context(), update.ApplyOptions{Strategy: "major"})
	require.ErrorIs(t, err, domain.ErrInvalidStrategy)

	// Rejected even when nothing would be updated.
	f.lock(t, map[string]domain.LockedEntry{"reviewer": global("1.1.0")}, nil)
	_, err = f.manager.ApplyUpdates(t.Context(), update.ApplyOptions{Strategy: "bogus"})
	require.ErrorIs(t, err, domain.ErrInvalidStrategy)
}

func TestApplyUpdates_SkipBreakingKeepsMajor(t *testing.T) {
	f := newFixture(t)
	f.publish(t, f.global, domain.TypeAgent, "reviewer", "1.0.0", "1.5.0", "2.0.0")
	f.lock(t, map[string]domain.LockedEntry{"reviewer": global("1.0.0")}, nil)

	result, err := f.manager.ApplyUpdates(t.Context(), update.ApplyOptions{
		Strategy:     domain.StrategyLatest,
		SkipBreaking: true,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, result.Skipped)
	assert.Equal(t, []domain.AppliedUpdate{
		{Name: "reviewer", Type: domain.TypeAgent, From: "1.0.0", To: "1.5.0"},
	}, result.Updated)

	lf, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, "1.5.0", lf.Agents["reviewer"].Version)
}
