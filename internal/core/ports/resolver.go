package ports

// EntryResolver defines the interface for expanding entry point declarations.
//
//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_resolver.go -package=mocks -source=resolver.go
type EntryResolver interface {
	// ResolveEntries expands literal paths and glob patterns relative to root
	// into absolute file paths. Literal paths come first, in declaration order,
	// followed by the sorted matches of each pattern. A literal path that does
	// not exist is an error; a pattern without matches is not.
	ResolveEntries(patterns []string, root string) ([]string, error)

	// Match reports whether the path relative to root matches any of the patterns.
	Match(patterns []string, rel string) (bool, error)
}
