package domain

const (
	// ForgeDirName is the name of the project registry directory.
	ForgeDirName = ".forge"

	// RegistryDirName is the name of the global registry directory under the user's forge home.
	RegistryDirName = "registry"

	// LockFileName is the name of the lockfile.
	LockFileName = "forge.lock"

	// ConfigFileName is the base name of the project configuration file.
	ConfigFileName = "forge"

	// DefinitionFileName is the fallback definition file name inside a version directory.
	DefinitionFileName = "definition.yaml"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644
)

// DefaultLocalRegistryPath returns the default project registry root.
func DefaultLocalRegistryPath() string {
	return ForgeDirName
}

// DefaultLockfilePath returns the default lockfile location.
func DefaultLockfilePath() string {
	return LockFileName
}

// DefinitionFileNames returns the candidate file names for a definition type, in lookup order.
func DefinitionFileNames(t DefinitionType) []string {
	return []string{string(t) + ".yaml", DefinitionFileName}
}
