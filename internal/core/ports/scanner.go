package ports

// ImportScan is the result of scanning one module for imports.
type ImportScan struct {
	// Imports are the absolute paths of the local modules the file imports,
	// in source order and without duplicates.
	Imports []string
	// Unresolved are the absolute candidate paths of relative imports that do not
	// exist yet. Creating one of them should trigger a rescan of the importer.
	Unresolved []string
	// External are the absolute paths of local modules imported through a
	// specifier matching an external pattern. They are not bundled into the
	// importer, but the importer waits for them when they are build targets.
	External []string
}

// ImportScanner defines the interface for discovering module dependencies.
//
//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_scanner.go -package=mocks -source=scanner.go
type ImportScanner interface {
	// Scan reads the module at path and resolves its local imports.
	// Bare package imports are ignored.
	Scan(path, root string, external []string) (ImportScan, error)
}
