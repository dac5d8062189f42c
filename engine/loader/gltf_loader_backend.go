package loader

import (
	"io"

	"github.com/Carmen-Shannon/gltf-runtime/engine/model"
)

// gltfLoaderBackend is the loaderBackend for .gltf and .glb documents.
// It delegates to a gltfImporter configured by the Loader.
type gltfLoaderBackend struct {
	importer gltfImporter
}

var _ loaderBackend = &gltfLoaderBackend{}

func newGLTFLoaderBackend(importer gltfImporter) *gltfLoaderBackend {
	return &gltfLoaderBackend{importer: importer}
}

func (b *gltfLoaderBackend) Load(path string) (*model.ImportedModel, error) {
	return b.importer.Import(path)
}

func (b *gltfLoaderBackend) LoadReader(name string, r io.Reader, isGLB bool) (*model.ImportedModel, error) {
	return b.importer.ImportReader(name, r, isGLB)
}
