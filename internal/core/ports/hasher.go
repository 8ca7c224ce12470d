package ports

// Hasher defines the interface for fingerprinting module contents.
//
//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_hasher.go -package=mocks -source=hasher.go
type Hasher interface {
	// Hash returns the content fingerprint of the file at path.
	Hash(path string) (string, error)

	// Forget drops any memoized fingerprint for path.
	Forget(path string)
}
