package config

import "context"

// Loader is the interface for a format-specific project loader.
type Loader interface {
	// Load reads the project file at path and translates it into the
	// format-agnostic model. Relative paths in the result are already
	// resolved against the project directory.
	Load(ctx context.Context, path string) (*Model, error)
}
