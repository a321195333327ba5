package domain

import (
	"strconv"

	"go.trai.ch/zerr"
)

// UpdateStrategy restricts how far an update may move a locked version.
type UpdateStrategy string

const (
	// StrategyPatch stays within the locked major.minor.
	StrategyPatch UpdateStrategy = "patch"
	// StrategyMinor stays within the locked major.
	StrategyMinor UpdateStrategy = "minor"
	// StrategyLatest is unconstrained.
	StrategyLatest UpdateStrategy = "latest"
)

// ParseUpdateStrategy validates a strategy name. Empty means latest.
func ParseUpdateStrategy(s string) (UpdateStrategy, error) {
	switch UpdateStrategy(s) {
	case "", StrategyLatest:
		return StrategyLatest, nil
	case StrategyPatch, StrategyMinor:
		return UpdateStrategy(s), nil
	default:
		return "", zerr.With(zerr.Wrap(ErrInvalidStrategy, "unknown strategy "+strconv.Quote(s)), "strategy", s)
	}
}

// SkipReason explains why an available update was not applied.
type SkipReason string

const (
	// SkipBreaking means the candidate changes the major version.
	SkipBreaking SkipReason = "breaking"
	// SkipManual means the entry is pinned to the local source and managed by hand.
	SkipManual SkipReason = "manual"
	// SkipConstraint means a newer version exists only outside the strategy range.
	SkipConstraint SkipReason = "constraint"
)

// AvailableUpdate describes a newer version for a locked entry.
type AvailableUpdate struct {
	Name     string
	Type     DefinitionType
	Current  string
	Latest   string
	Source   SourceKind
	Breaking bool
}

// UpdateCheck is the outcome of checking every locked entry for updates.
type UpdateCheck struct {
	HasUpdates      bool
	Updates         []AvailableUpdate
	BreakingChanges []AvailableUpdate
	Total           int
}

// AppliedUpdate records one entry moved to a new version.
type AppliedUpdate struct {
	Name string
	Type DefinitionType
	From string
	To   string
}

// FailedUpdate records an entry whose update could not be resolved.
type FailedUpdate struct {
	Name  string
	Type  DefinitionType
	Error string
}

// SkippedUpdate records an entry left untouched.
type SkippedUpdate struct {
	Name      string
	Type      DefinitionType
	Current   string
	Available string
	Reason    SkipReason
}

// UpdateResult is the outcome of applying updates.
type UpdateResult struct {
	Success bool
	DryRun  bool
	Updated []AppliedUpdate
	Failed  []FailedUpdate
	Skipped []SkippedUpdate
}
