package ports

// ContentReader reads local content for file and glob cache sources.
// Relative paths and patterns are resolved against the reader's root.
//
//go:generate mockgen -source=content.go -destination=mocks/mock_content.go -package=mocks
type ContentReader interface {
	// ReadFile returns the text of a single file.
	ReadFile(path string) (string, error)

	// Glob returns the sorted files matching pattern. No match is an error.
	Glob(pattern string) ([]string, error)
}
