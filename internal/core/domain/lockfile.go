package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// LockfileSchemaVersion is the lockfile format version written by this build.
const LockfileSchemaVersion = 1

// Lockfile is a pinned snapshot of resolved versions, sources and checksums.
type Lockfile struct {
	SchemaVersion int                    `json:"schemaVersion"`
	GeneratedAt   time.Time              `json:"generatedAt"`
	Agents        map[string]LockedEntry `json:"agents"`
	Tools         map[string]LockedEntry `json:"tools"`
}

// LockedEntry pins one definition.
type LockedEntry struct {
	Version  string     `json:"version"`
	Source   SourceKind `json:"source"`
	Checksum string     `json:"checksum"`
}

// NewLockfile creates an empty lockfile stamped with the given time.
func NewLockfile(now time.Time) *Lockfile {
	return &Lockfile{
		SchemaVersion: LockfileSchemaVersion,
		GeneratedAt:   now.UTC(),
		Agents:        make(map[string]LockedEntry),
		Tools:         make(map[string]LockedEntry),
	}
}

// Entries returns the entry map for the given type.
func (l *Lockfile) Entries(t DefinitionType) map[string]LockedEntry {
	if t == TypeTool {
		if l.Tools == nil {
			l.Tools = make(map[string]LockedEntry)
		}
		return l.Tools
	}
	if l.Agents == nil {
		l.Agents = make(map[string]LockedEntry)
	}
	return l.Agents
}

// Set pins a resolved definition.
func (l *Lockfile) Set(r *ResolvedDefinition) {
	l.Entries(r.Type())[r.Name()] = LockedEntry{
		Version:  r.ExactVersion,
		Source:   r.Source,
		Checksum: r.Checksum,
	}
}

// Len returns the total number of locked entries.
func (l *Lockfile) Len() int {
	return len(l.Agents) + len(l.Tools)
}

// Checksum computes the content checksum recorded in lockfiles.
func Checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// LockValidation is the outcome of validating a lockfile against current provider state.
type LockValidation struct {
	Valid  bool
	Errors []string
}
