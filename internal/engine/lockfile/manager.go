// Package lockfile generates, loads and validates forge lockfiles.
package lockfile

import (
	"context"
	"runtime"
	"sort"
	"strconv"
	"time"

	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/forge/internal/engine/version"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// Resolver is the subset of the definition resolver the manager needs.
type Resolver interface {
	Resolve(ctx context.Context, typ domain.DefinitionType, spec string) (*domain.ResolvedDefinition, error)
	ResolveFresh(ctx context.Context, typ domain.DefinitionType, spec string) (*domain.ResolvedDefinition, error)
}

// GenerateOptions controls lockfile generation.
type GenerateOptions struct {
	// Force overwrites an existing lockfile.
	Force bool
}

// Manager builds lockfiles from the configured requirements.
type Manager struct {
	resolver     Resolver
	store        ports.LockfileStore
	requirements []domain.Requirement
	tracer       ports.Tracer
	logger       ports.Logger
	now          func() time.Time
}

// New creates a Manager locking the given top-level requirements.
func New(
	resolver Resolver,
	store ports.LockfileStore,
	requirements []domain.Requirement,
	tracer ports.Tracer,
	logger ports.Logger,
) *Manager {
	return &Manager{
		resolver:     resolver,
		store:        store,
		requirements: requirements,
		tracer:       tracer,
		logger:       logger,
		now:          time.Now,
	}
}

// Path returns where the lockfile is stored.
func (m *Manager) Path() string {
	return m.store.Path()
}

// Generate resolves the transitive closure of the requirements, rejects
// cycles and name conflicts, and saves the result.
func (m *Manager) Generate(ctx context.Context, opts GenerateOptions) (*domain.Lockfile, error) {
	ctx, span := m.tracer.Start(ctx, "lockfile.generate", ports.WithAttribute("force", opts.Force))
	defer span.End()

	lf, err := m.generate(ctx, opts)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttribute("entries", lf.Len())
	return lf, nil
}

func (m *Manager) generate(ctx context.Context, opts GenerateOptions) (*domain.Lockfile, error) {
	if !opts.Force {
		exists, err := m.store.Exists()
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, domain.Annotate(domain.ErrLockfileExists, "path", m.store.Path())
		}
	}

	closure, err := m.walk(ctx)
	if err != nil {
		return nil, err
	}

	graph := domain.NewGraph()
	for _, name := range closure.order {
		r := closure.resolved[name]
		graph.AddNode(domain.DependencyNode{
			Name:         name,
			Version:      r.ExactVersion,
			Type:         r.Type(),
			Dependencies: closure.deps[name],
		})
	}

	if cycles := graph.DetectCycles(); len(cycles) > 0 {
		return nil, &domain.CycleError{Cycles: cycles}
	}
	sorted, ok := graph.TopologicalSort()
	if !ok {
		return nil, &domain.CycleError{}
	}

	lf := domain.NewLockfile(m.now())
	for _, name := range sorted {
		lf.Set(closure.resolved[name])
	}

	if err := m.store.Save(lf); err != nil {
		return nil, err
	}
	m.logger.Info("locked " + strconv.Itoa(lf.Len()) + " definitions in " + m.store.Path())
	return lf, nil
}

// topLevel names the configured requirements as a dependent.
const topLevel = "requirements"

// closure is the transitive set of resolved definitions, keyed by name.
type closure struct {
	order       []string
	resolved    map[string]*domain.ResolvedDefinition
	deps        map[string][]string
	constraints map[string][]constraint
}

// constraint is one range requested for a name and who requested it.
type constraint struct {
	from string
	rng  string
}

type pending struct {
	name string
	req  domain.Requirement
}

type request struct {
	from string
	req  domain.Requirement
}

// walk resolves requirements breadth-first, one level at a time in parallel.
// The first resolution of a name is pinned; every later range requested for
// that name must accept the pinned version.
func (m *Manager) walk(ctx context.Context) (*closure, error) {
	c := &closure{
		resolved:    make(map[string]*domain.ResolvedDefinition),
		deps:        make(map[string][]string),
		constraints: make(map[string][]constraint),
	}
	types := make(map[string]domain.DefinitionType)

	top := make([]request, len(m.requirements))
	for i, req := range m.requirements {
		top[i] = request{from: topLevel, req: req}
	}
	level, err := c.enqueue(types, top)
	if err != nil {
		return nil, err
	}

	for depth := 0; len(level) > 0; depth++ {
		results := make([]*domain.ResolvedDefinition, len(level))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(runtime.NumCPU())
		for i, p := range level {
			g.Go(func() error {
				r, err := m.resolver.Resolve(gctx, p.req.Type, p.req.Spec)
				if err != nil {
					return err
				}
				results[i] = r
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		m.logger.Debug("resolved level " + strconv.Itoa(depth) + " with " + strconv.Itoa(len(level)) + " definitions")

		var next []request
		for i, p := range level {
			r := results[i]
			c.order = append(c.order, p.name)
			c.resolved[p.name] = r

			specs := r.Definition.DependencySpecs()
			names := make([]string, 0, len(specs))
			for _, dep := range specs {
				id, err := domain.ParseIdentifier(dep.Spec)
				if err != nil {
					return nil, domain.Annotate(err, "dependent", p.name)
				}
				names = append(names, id.Name)
			}
			c.deps[p.name] = names
			for _, spec := range specs {
				next = append(next, request{from: p.name, req: spec})
			}
		}

		level, err = c.enqueue(types, next)
		if err != nil {
			return nil, err
		}
	}

	if err := c.verify(); err != nil {
		return nil, err
	}
	return c, nil
}

// enqueue records every requested range and returns the requirements whose
// names have not been seen yet. A name requested as both an agent and a tool
// is a conflict.
func (c *closure) enqueue(types map[string]domain.DefinitionType, reqs []request) ([]pending, error) {
	var out []pending
	for _, r := range reqs {
		id, err := domain.ParseIdentifier(r.req.Spec)
		if err != nil {
			return nil, domain.Annotate(err, "dependent", r.from)
		}
		c.constraints[id.Name] = append(c.constraints[id.Name], constraint{from: r.from, rng: id.Range})

		if seen, ok := types[id.Name]; ok {
			if seen != r.req.Type {
				err := zerr.Wrap(domain.ErrNameConflict, id.Name)
				return nil, zerr.With(zerr.With(err, "name", id.Name), "types", []string{seen.String(), r.req.Type.String()})
			}
			continue
		}
		types[id.Name] = r.req.Type
		out = append(out, pending{name: id.Name, req: r.req})
	}
	return out, nil
}

// verify checks that each pinned version satisfies every range requested for
// its name, not only the one it was resolved from.
func (c *closure) verify() error {
	for _, name := range c.order {
		pinned := c.resolved[name].ExactVersion
		cs := c.constraints[name]
		for _, con := range cs {
			if version.IsLatest(con.rng) {
				continue
			}
			ok, err := version.Satisfies(pinned, con.rng)
			if err != nil {
				return domain.Annotate(err, "dependent", con.from)
			}
			if ok {
				continue
			}
			msg := name + "@" + con.rng + " required by " + con.from + " but " + pinned + " is locked for " + cs[0].from
			err = zerr.With(zerr.Wrap(domain.ErrNoSatisfyingVersion, msg), "name", name)
			err = zerr.With(err, "range", con.rng)
			err = zerr.With(err, "locked", pinned)
			return zerr.With(err, "dependents", []string{cs[0].from, con.from})
		}
	}
	return nil
}

// Load reads the lockfile from the store.
func (m *Manager) Load(_ context.Context) (*domain.Lockfile, error) {
	return m.store.Load()
}

type lockedRef struct {
	typ   domain.DefinitionType
	name  string
	entry domain.LockedEntry
}

// Validate re-resolves every entry at its locked version and reports drift.
// The lockfile is never modified.
func (m *Manager) Validate(ctx context.Context, lf *domain.Lockfile) (*domain.LockValidation, error) {
	ctx, span := m.tracer.Start(ctx, "lockfile.validate", ports.WithAttribute("entries", lf.Len()))
	defer span.End()

	result := &domain.LockValidation{}
	if lf.SchemaVersion != domain.LockfileSchemaVersion {
		result.Errors = append(result.Errors, "unsupported schema version "+strconv.Itoa(lf.SchemaVersion))
	}

	refs := sortedEntries(lf)
	problems := make([]string, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, ref := range refs {
		g.Go(func() error {
			problems[i] = m.check(gctx, ref)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	for _, p := range problems {
		if p != "" {
			result.Errors = append(result.Errors, p)
		}
	}
	result.Valid = len(result.Errors) == 0
	span.SetAttribute("valid", result.Valid)
	return result, nil
}

// check returns a drift description, or "" when the entry still resolves identically.
func (m *Manager) check(ctx context.Context, ref lockedRef) string {
	label := ref.typ.String() + " " + ref.name + "@" + ref.entry.Version
	resolved, err := m.resolver.ResolveFresh(ctx, ref.typ, ref.name+"@"+ref.entry.Version)
	if err != nil {
		return label + ": no longer available (" + err.Error() + ")"
	}
	if resolved.Source != ref.entry.Source {
		return label + ": source changed from " + ref.entry.Source.String() + " to " + resolved.Source.String()
	}
	if resolved.Checksum != ref.entry.Checksum {
		return label + ": " + domain.ErrChecksumMismatch.Error()
	}
	return ""
}

func sortedEntries(lf *domain.Lockfile) []lockedRef {
	refs := make([]lockedRef, 0, lf.Len())
	for _, typ := range domain.DefinitionTypes {
		entries := lf.Agents
		if typ == domain.TypeTool {
			entries = lf.Tools
		}
		names := make([]string, 0, len(entries))
		for name := range entries {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			refs = append(refs, lockedRef{typ: typ, name: name, entry: entries[name]})
		}
	}
	return refs
}
