package driven

// LoaderFactory creates loaders bound to a source root.
// Filtering configuration (include/exclude patterns) is fixed at
// factory construction; the root varies per index run.
type LoaderFactory interface {
	// Create returns a Loader for the given source root.
	Create(root string) (Loader, error)
}
