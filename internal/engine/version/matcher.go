// Package version implements semantic version range matching.
package version

import (
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/zerr"
)

// Range is a parsed version range expression.
type Range struct {
	expr        string
	constraints *semver.Constraints
}

// Option configures matching.
type Option func(*options)

type options struct {
	includePrerelease bool
}

// WithPrerelease lets prerelease versions satisfy ranges that do not mention one.
func WithPrerelease() Option {
	return func(o *options) {
		o.includePrerelease = true
	}
}

// IsLatest reports whether expr means "any version".
func IsLatest(expr string) bool {
	switch strings.TrimSpace(expr) {
	case "", domain.LatestRange, "*", "x", "X":
		return true
	default:
		return false
	}
}

// ParseRange parses exact versions, latest, caret, tilde, x-ranges and
// comparator sets joined by spaces (AND) and || (OR).
func ParseRange(expr string) (*Range, error) {
	expr = strings.TrimSpace(expr)
	if IsLatest(expr) {
		return &Range{expr: domain.LatestRange}, nil
	}

	c, err := semver.NewConstraint(zeroMajorCaret(expr))
	if err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrInvalidRange, err.Error()), "range", expr)
	}
	return &Range{expr: expr, constraints: c}, nil
}

// zeroMajorCaret rewrites caret terms on a 0.y.z version to stay within the
// minor version, so ^0.0.3 means >=0.0.3 <0.1.0.
func zeroMajorCaret(expr string) string {
	groups := strings.Split(expr, "||")
	for i, group := range groups {
		terms := strings.Fields(group)
		for j, term := range terms {
			parts := strings.Split(term, ",")
			for k, part := range parts {
				parts[k] = rewriteCaret(part)
			}
			terms[j] = strings.Join(parts, ",")
		}
		groups[i] = strings.Join(terms, " ")
	}
	return strings.Join(groups, " || ")
}

func rewriteCaret(term string) string {
	raw, ok := strings.CutPrefix(term, "^")
	if !ok {
		return term
	}
	v, err := semver.StrictNewVersion(strings.TrimPrefix(raw, "v"))
	if err != nil || v.Major() != 0 {
		return term
	}
	next := v.IncMinor()
	return ">=" + v.String() + " <" + next.String()
}

// String returns the original expression.
func (r *Range) String() string {
	return r.expr
}

// Latest reports whether the range is unconstrained.
func (r *Range) Latest() bool {
	return r.constraints == nil
}

// Contains reports whether v satisfies the range.
func (r *Range) Contains(v *semver.Version, opts ...Option) bool {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if r.constraints == nil {
		return v.Prerelease() == "" || o.includePrerelease
	}

	c := *r.constraints
	c.IncludePrerelease = o.includePrerelease
	return c.Check(v)
}

// MaxSatisfying returns the highest version in versions that satisfies expr.
// Unparseable versions are skipped. Build metadata is ignored for precedence
// but kept in the returned string. The boolean is false when nothing matches.
func MaxSatisfying(versions []string, expr string, opts ...Option) (string, bool, error) {
	r, err := ParseRange(expr)
	if err != nil {
		return "", false, err
	}
	best, ok := r.Max(versions, opts...)
	return best, ok, nil
}

// Max returns the highest version in versions that satisfies the range.
func (r *Range) Max(versions []string, opts ...Option) (string, bool) {
	var best *semver.Version
	for _, raw := range versions {
		v, err := Parse(raw)
		if err != nil {
			continue
		}
		if !r.Contains(v, opts...) {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
		}
	}

	if best == nil {
		return "", false
	}
	return best.Original(), true
}

// Satisfies reports whether a single version satisfies expr.
func Satisfies(version, expr string, opts ...Option) (bool, error) {
	r, err := ParseRange(expr)
	if err != nil {
		return false, err
	}
	v, err := Parse(version)
	if err != nil {
		return false, nil
	}
	return r.Contains(v, opts...), nil
}

// Parse parses a version string, tolerating a leading "v".
func Parse(raw string) (*semver.Version, error) {
	return semver.NewVersion(strings.TrimSpace(raw))
}

// Compare returns -1, 0 or 1 comparing a to b by semver precedence.
// Unparseable versions sort before parseable ones.
func Compare(a, b string) int {
	va, errA := Parse(a)
	vb, errB := Parse(b)
	switch {
	case errA != nil && errB != nil:
		return strings.Compare(a, b)
	case errA != nil:
		return -1
	case errB != nil:
		return 1
	}
	return va.Compare(vb)
}

// Major returns the major component of v.
func Major(v string) (uint64, bool) {
	parsed, err := Parse(v)
	if err != nil {
		return 0, false
	}
	return parsed.Major(), true
}

// SameMajor reports whether a and b share a major version.
func SameMajor(a, b string) bool {
	va, errA := Parse(a)
	vb, errB := Parse(b)
	if errA != nil || errB != nil {
		return false
	}
	return va.Major() == vb.Major()
}

// PatchRange returns the range that stays within current's major.minor.
func PatchRange(current string) (string, error) {
	v, err := Parse(current)
	if err != nil {
		return "", zerr.With(zerr.Wrap(domain.ErrInvalidRange, err.Error()), "version", current)
	}
	next := v.IncMinor()
	return ">=" + v.String() + " <" + next.String(), nil
}

// MinorRange returns the range that stays within current's major.
func MinorRange(current string) (string, error) {
	v, err := Parse(current)
	if err != nil {
		return "", zerr.With(zerr.Wrap(domain.ErrInvalidRange, err.Error()), "version", current)
	}
	next := v.IncMajor()
	return ">=" + v.String() + " <" + next.String(), nil
}

// IsExact reports whether expr names a single full version (X.Y.Z with
// optional prerelease and build metadata) rather than a range.
func IsExact(expr string) bool {
	_, err := semver.StrictNewVersion(strings.TrimPrefix(strings.TrimSpace(expr), "="))
	return err == nil
}

// Sort orders versions ascending by semver precedence, dropping unparseable
// entries and duplicates that differ only in build metadata.
func Sort(versions []string) []string {
	parsed := make([]*semver.Version, 0, len(versions))
	seen := make(map[string]struct{}, len(versions))
	for _, raw := range versions {
		v, err := Parse(raw)
		if err != nil {
			continue
		}
		if _, dup := seen[v.Original()]; dup {
			continue
		}
		seen[v.Original()] = struct{}{}
		parsed = append(parsed, v)
	}

	slices.SortStableFunc(parsed, func(a, b *semver.Version) int {
		return a.Compare(b)
	})

	out := make([]string, len(parsed))
	for i, v := range parsed {
		out[i] = v.Original()
	}
	return out
}
