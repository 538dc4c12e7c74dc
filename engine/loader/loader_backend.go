package loader

import "context"

// loaderBackend turns fetched bytes of one file format into a parse result.
// Concrete implementations (e.g., gltfLoaderBackend) handle format-specific details.
type loaderBackend interface {
	// Parse builds a result from the raw file contents.
	//
	// Parameters:
	//   - ctx: cancels pending work
	//   - data: the file contents
	//   - path: the base that relative uris resolve against
	//
	// Returns:
	//   - *GLTF: the parse result
	//   - error: error if the data cannot be parsed
	Parse(ctx context.Context, data []byte, path string) (*GLTF, error)
}
