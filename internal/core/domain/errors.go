package domain

import (
	"errors"

	"go.trai.ch/zerr"
)

var (
	// ErrNotFound is returned when no source provider knows the requested definition name.
	ErrNotFound = zerr.New("definition not found")

	// ErrNoSatisfyingVersion is returned when a definition exists but no version matches the range.
	ErrNoSatisfyingVersion = zerr.New("no version satisfies range")

	// ErrSourceUnavailable is returned when every configured source provider failed.
	ErrSourceUnavailable = zerr.New("source unavailable")

	// ErrNoProviders is returned when resolution is attempted without any enabled source provider.
	ErrNoProviders = zerr.New("no source providers configured")

	// ErrInvalidRange is returned when a version range expression cannot be parsed.
	ErrInvalidRange = zerr.New("invalid version range")

	// ErrInvalidIdentifier is returned when a name spec is empty or malformed.
	ErrInvalidIdentifier = zerr.New("invalid definition identifier")

	// ErrInvalidDefinitionType is returned for definition types other than agent or tool.
	ErrInvalidDefinitionType = zerr.New("invalid definition type, expected 'agent' or 'tool'")

	// ErrInvalidSource is returned for source names other than local, global or stockyard.
	ErrInvalidSource = zerr.New("invalid source, expected 'local', 'global' or 'stockyard'")

	// ErrCycleDetected is returned when a cycle is detected in the definition dependency graph.
	ErrCycleDetected = zerr.New("cycle detected")

	// ErrNameConflict is returned when an agent and a tool share the same name in one graph.
	ErrNameConflict = zerr.New("agent and tool share the same name")

	// ErrLockfileMissing is returned when the lockfile does not exist.
	ErrLockfileMissing = zerr.New("lockfile not found")

	// ErrLockfileCorrupt is returned when the lockfile cannot be parsed.
	ErrLockfileCorrupt = zerr.New("lockfile is corrupt")

	// ErrLockfileExists is returned when generating over an existing lockfile without force.
	ErrLockfileExists = zerr.New("lockfile already exists, use force to overwrite")

	// ErrLockfileWriteFailed is returned when the lockfile cannot be written.
	ErrLockfileWriteFailed = zerr.New("failed to write lockfile")

	// ErrChecksumMismatch is returned when a definition's checksum differs from the locked one.
	ErrChecksumMismatch = zerr.New("checksum mismatch")

	// ErrDriftDetected is returned when a lockfile no longer matches the provider state.
	ErrDriftDetected = zerr.New("lockfile drift detected")

	// ErrDefinitionParse is returned when definition content is not valid YAML.
	ErrDefinitionParse = zerr.New("failed to parse definition")

	// ErrDefinitionInvalid is returned when a definition does not match the schema.
	ErrDefinitionInvalid = zerr.New("definition failed schema validation")

	// ErrDefinitionMismatch is returned when a loaded definition disagrees with the requested name or version.
	ErrDefinitionMismatch = zerr.New("definition does not match requested name or version")

	// ErrIntegrationUnavailable is returned when an external reference is requested without a fetcher.
	ErrIntegrationUnavailable = zerr.New("integration not available")

	// ErrUnknownSourceType is returned for cache sources with an unrecognized type.
	ErrUnknownSourceType = zerr.New("unknown cache source type")

	// ErrInvalidReference is returned when an external reference URI is malformed.
	ErrInvalidReference = zerr.New("invalid external reference, expected scheme://org/project/path")

	// ErrNoGlobMatches is returned when a glob cache source matches no files.
	ErrNoGlobMatches = zerr.New("glob matched no files")

	// ErrSourceReadFailed is returned when a cache source cannot be read.
	ErrSourceReadFailed = zerr.New("failed to read cache source")

	// ErrCatalogRequestFailed is returned when the stockyard catalog request fails.
	ErrCatalogRequestFailed = zerr.New("catalog request failed")

	// ErrCatalogParseFailed is returned when the stockyard catalog response cannot be parsed.
	ErrCatalogParseFailed = zerr.New("failed to parse catalog response")

	// ErrConfigReadFailed is returned when the config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrInvalidStrategy is returned for update strategies other than patch, minor or latest.
	ErrInvalidStrategy = zerr.New("invalid update strategy, expected 'patch', 'minor' or 'latest'")

	// ErrUpdateFailed is returned when one or more entries could not be updated.
	ErrUpdateFailed = zerr.New("some updates failed")
)

// Annotate attaches a metadata pair to err. Errors without a cause, such as
// the sentinels above, are wrapped first so errors.Is keeps matching them.
func Annotate(err error, key string, value any) error {
	if err == nil {
		return nil
	}
	if errors.Unwrap(err) == nil {
		err = zerr.Wrap(err, "")
	}
	return zerr.With(err, key, value)
}
