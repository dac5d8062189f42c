package loader

import (
	"io"

	"github.com/Carmen-Shannon/gltf-runtime/engine/model"
)

// loaderBackend defines the generic interface for importing documents from files or streams.
// Concrete implementations (e.g., gltfLoaderBackend) handle format-specific details.
type loaderBackend interface {
	// Load performs a full import from the given file path.
	//
	// Parameters:
	//   - path: the file path to load
	//
	// Returns:
	//   - *model.ImportedModel: the imported model data
	//   - error: error if loading fails
	Load(path string) (*model.ImportedModel, error)

	// LoadReader performs a full import from a reader stream.
	//
	// Parameters:
	//   - name: the model name
	//   - r: the reader providing model data
	//   - isGLB: true if the reader provides GLB binary data
	//
	// Returns:
	//   - *model.ImportedModel: the imported model data
	//   - error: error if loading fails
	LoadReader(name string, r io.Reader, isGLB bool) (*model.ImportedModel, error)
}
