package loader

import (
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// ParserBuilderOption is a functional option for configuring a Parser.
type ParserBuilderOption func(*gltfParserImpl)

// WithBufferLoader sets the loader used to resolve external buffer URIs.
//
// Parameters:
//   - loader: the buffer loader
//
// Returns:
//   - ParserBuilderOption: a function that applies the buffer loader option
func WithBufferLoader(loader BufferLoader) ParserBuilderOption {
	return func(p *gltfParserImpl) {
		p.bufferLoader = loader
	}
}

// WithLogger sets the logger for warnings such as disconnected skeleton joints or skipped channels.
// The default discards everything.
//
// Parameters:
//   - logger: the sugared logger
//
// Returns:
//   - ParserBuilderOption: a function that applies the logger option
func WithLogger(logger *zap.SugaredLogger) ParserBuilderOption {
	return func(p *gltfParserImpl) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithSceneBasis sets the change-of-basis matrix applied to node transforms, inverse bind matrices,
// animation values and vertex attributes.
//
// Parameters:
//   - basis: a rotation or reflection matrix
//
// Returns:
//   - ParserBuilderOption: a function that applies the basis option
func WithSceneBasis(basis mgl32.Mat4) ParserBuilderOption {
	return func(p *gltfParserImpl) {
		p.basisMatrix = basis
	}
}

// WithSceneScale sets the unit scale applied to translations and positions.
//
// Parameters:
//   - scale: the scale factor (values <= 0 are ignored)
//
// Returns:
//   - ParserBuilderOption: a function that applies the scale option
func WithSceneScale(scale float32) ParserBuilderOption {
	return func(p *gltfParserImpl) {
		if scale > 0 {
			p.sceneScale = scale
		}
	}
}
