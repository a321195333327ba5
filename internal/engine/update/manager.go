// Package update finds and applies newer versions of locked definitions.
package update

import (
	"context"
	"runtime"
	"slices"
	"sort"
	"strconv"
	"time"

	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/forge/internal/engine/resolver"
	"go.trai.ch/forge/internal/engine/version"
	"golang.org/x/sync/errgroup"
)

// Resolver is the subset of the definition resolver the manager needs.
type Resolver interface {
	VersionSources(ctx context.Context, typ domain.DefinitionType, name string) (map[string][]domain.SourceKind, error)
	ResolveWithOptions(ctx context.Context, typ domain.DefinitionType, spec string, opts resolver.Options) (*domain.ResolvedDefinition, error)
}

// ApplyOptions controls which updates are applied.
type ApplyOptions struct {
	Strategy          domain.UpdateStrategy
	IncludePrerelease bool
	SkipBreaking      bool
	// Packages restricts the run to these names. Empty means every entry.
	Packages []string
	DryRun   bool
}

// Manager checks and applies updates against the lockfile.
type Manager struct {
	resolver Resolver
	store    ports.LockfileStore
	tracer   ports.Tracer
	logger   ports.Logger
	now      func() time.Time
}

// New creates a Manager.
func New(res Resolver, store ports.LockfileStore, tracer ports.Tracer, logger ports.Logger) *Manager {
	return &Manager{
		resolver: res,
		store:    store,
		tracer:   tracer,
		logger:   logger,
		now:      time.Now,
	}
}

type entry struct {
	typ    domain.DefinitionType
	name   string
	locked domain.LockedEntry
}

// candidates is what the providers currently offer for one entry.
type candidates struct {
	sources map[string][]domain.SourceKind
	all     []string
	err     error
}

func (c candidates) latest(opts ...version.Option) (string, bool) {
	best, ok, err := version.MaxSatisfying(c.all, domain.LatestRange, opts...)
	if err != nil {
		return "", false
	}
	return best, ok
}

// CheckUpdates reports every locked entry with a newer version, regardless of strategy.
func (m *Manager) CheckUpdates(ctx context.Context) (*domain.UpdateCheck, error) {
	ctx, span := m.tracer.Start(ctx, "update.check")
	defer span.End()

	lf, err := m.store.Load()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	entries := lockedEntries(lf, nil)
	found := m.lookup(ctx, entries)
	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	result := &domain.UpdateCheck{}
	for i, e := range entries {
		c := found[i]
		if c.err != nil {
			m.logger.Warn("cannot check " + e.typ.String() + " " + e.name + ": " + c.err.Error())
			continue
		}
		latest, ok := c.latest()
		if !ok || version.Compare(latest, e.locked.Version) <= 0 {
			continue
		}

		u := domain.AvailableUpdate{
			Name:     e.name,
			Type:     e.typ,
			Current:  e.locked.Version,
			Latest:   latest,
			Source:   firstSource(c.sources[latest]),
			Breaking: !version.SameMajor(latest, e.locked.Version),
		}
		result.Updates = append(result.Updates, u)
		if u.Breaking {
			result.BreakingChanges = append(result.BreakingChanges, u)
		}
	}
	result.Total = len(result.Updates)
	result.HasUpdates = result.Total > 0

	span.SetAttribute("updates", result.Total)
	return result, nil
}

// ApplyUpdates moves locked entries forward within the chosen strategy.
// Targets are resolved in both modes; DryRun only skips saving the lockfile.
// Dependencies are not re-walked.
func (m *Manager) ApplyUpdates(ctx context.Context, opts ApplyOptions) (*domain.UpdateResult, error) {
	strategy, err := domain.ParseUpdateStrategy(string(opts.Strategy))
	if err != nil {
		return nil, err
	}
	ctx, span := m.tracer.Start(ctx, "update.apply",
		ports.WithAttribute("strategy", string(strategy)),
		ports.WithAttribute("dry_run", opts.DryRun),
	)
	defer span.End()

	lf, err := m.store.Load()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	entries := lockedEntries(lf, opts.Packages)
	found := m.lookup(ctx, entries)

	var matchOpts []version.Option
	if opts.IncludePrerelease {
		matchOpts = append(matchOpts, version.WithPrerelease())
	}

	result := &domain.UpdateResult{DryRun: opts.DryRun}
	type planned struct {
		entry
		target string
	}
	var plan []planned

	for i, e := range entries {
		c := found[i]
		if c.err != nil {
			result.Failed = append(result.Failed, domain.FailedUpdate{Name: e.name, Type: e.typ, Error: c.err.Error()})
			continue
		}
		latest, ok := c.latest(matchOpts...)
		if !ok || version.Compare(latest, e.locked.Version) <= 0 {
			continue
		}

		skip := func(reason domain.SkipReason) {
			result.Skipped = append(result.Skipped, domain.SkippedUpdate{
				Name: e.name, Type: e.typ, Current: e.locked.Version, Available: latest, Reason: reason,
			})
		}

		if e.locked.Source == domain.SourceLocal {
			skip(domain.SkipManual)
			continue
		}

		target, err := targetVersion(c.all, e.locked.Version, strategy, opts.SkipBreaking, matchOpts)
		if err != nil {
			result.Failed = append(result.Failed, domain.FailedUpdate{Name: e.name, Type: e.typ, Error: err.Error()})
			continue
		}
		if target == "" {
			if opts.SkipBreaking && strategy == domain.StrategyLatest && !version.SameMajor(latest, e.locked.Version) {
				skip(domain.SkipBreaking)
			} else {
				skip(domain.SkipConstraint)
			}
			continue
		}
		plan = append(plan, planned{entry: e, target: target})
	}

	resolved := make([]*domain.ResolvedDefinition, len(plan))
	errs := make([]error, len(plan))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, p := range plan {
		g.Go(func() error {
			ropts := resolver.Options{Fresh: true, IncludePrerelease: opts.IncludePrerelease}
			resolved[i], errs[i] = m.resolver.ResolveWithOptions(gctx, p.typ, p.name+"@"+p.target, ropts)
			return nil
		})
	}
	_ = g.Wait()

	for i, p := range plan {
		if errs[i] != nil {
			result.Failed = append(result.Failed, domain.FailedUpdate{Name: p.name, Type: p.typ, Error: errs[i].Error()})
			continue
		}
		if !opts.DryRun {
			lf.Set(resolved[i])
		}
		result.Updated = append(result.Updated, domain.AppliedUpdate{Name: p.name, Type: p.typ, From: p.locked.Version, To: p.target})
	}

	if !opts.DryRun && len(result.Updated) > 0 {
		lf.GeneratedAt = m.now().UTC()
		if err := m.store.Save(lf); err != nil {
			span.RecordError(err)
			return nil, err
		}
		m.logger.Info("updated " + strconv.Itoa(len(result.Updated)) + " definitions in " + m.store.Path())
	}

	result.Success = len(result.Failed) == 0
	span.SetAttribute("updated", len(result.Updated))
	return result, nil
}

// targetVersion picks the highest version allowed by strategy that is newer
// than current. With skipBreaking the search stays within current's major.
// It returns "" when nothing newer is allowed.
func targetVersion(
	all []string,
	current string,
	strategy domain.UpdateStrategy,
	skipBreaking bool,
	opts []version.Option,
) (string, error) {
	expr := domain.LatestRange
	var err error
	switch {
	case strategy == domain.StrategyPatch:
		expr, err = version.PatchRange(current)
	case strategy == domain.StrategyMinor, skipBreaking:
		expr, err = version.MinorRange(current)
	}
	if err != nil {
		return "", err
	}

	best, ok, err := version.MaxSatisfying(all, expr, opts...)
	if err != nil {
		return "", err
	}
	if !ok || version.Compare(best, current) <= 0 {
		return "", nil
	}
	return best, nil
}

// lookup fetches the offered versions of every entry in parallel.
func (m *Manager) lookup(ctx context.Context, entries []entry) []candidates {
	out := make([]candidates, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, e := range entries {
		g.Go(func() error {
			sources, err := m.resolver.VersionSources(gctx, e.typ, e.name)
			if err != nil {
				out[i] = candidates{err: err}
				return nil
			}
			all := make([]string, 0, len(sources))
			for v := range sources {
				all = append(all, v)
			}
			out[i] = candidates{sources: sources, all: version.Sort(all)}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// lockedEntries lists entries agents first, by name, optionally filtered.
func lockedEntries(lf *domain.Lockfile, only []string) []entry {
	var out []entry
	for _, typ := range domain.DefinitionTypes {
		locked := lf.Agents
		if typ == domain.TypeTool {
			locked = lf.Tools
		}
		names := make([]string, 0, len(locked))
		for name := range locked {
			if len(only) == 0 || slices.Contains(only, name) {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		for _, name := range names {
			out = append(out, entry{typ: typ, name: name, locked: locked[name]})
		}
	}
	return out
}

func firstSource(kinds []domain.SourceKind) domain.SourceKind {
	if len(kinds) == 0 {
		return ""
	}
	return kinds[0]
}
