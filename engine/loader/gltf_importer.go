package loader

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/gltf-runtime/engine/model"
	"github.com/Carmen-Shannon/gltf-runtime/engine/profiler"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ImportConfig controls a full document import.
type ImportConfig struct {
	// Skeleton is applied to the primary skin (the skin of the first skinned mesh, else skin 0).
	// Every other skin is built with the default config.
	Skeleton SkeletonConfig

	// Animation is applied to every animation. Its Skeleton field is replaced per animation by the
	// first imported skeleton the animation targets.
	Animation AnimationConfig

	// MeshOnly skips skins and animations.
	MeshOnly bool
}

// gltfImporterImpl is the implementation of the gltfImporter interface.
type gltfImporterImpl struct {
	config        ImportConfig
	parserOptions []ParserBuilderOption
	logger        *zap.SugaredLogger
	profiler      *profiler.Profiler
}

// gltfImporter defines the interface for orchestrating a full glTF/GLB import.
// Node and scene failures abort the import; a failing mesh, skin or animation is skipped and its error
// is accumulated on the ImportedModel.
type gltfImporter interface {
	// Import parses a glTF/GLB file and extracts everything into an ImportedModel.
	//
	// Parameters:
	//   - path: the file path to the glTF or GLB file
	//
	// Returns:
	//   - *model.ImportedModel: the imported model
	//   - error: parse, node or scene failures
	Import(path string) (*model.ImportedModel, error)

	// ImportReader parses a glTF document from a reader and extracts everything.
	//
	// Parameters:
	//   - name: the model name
	//   - r: the reader providing glTF/GLB data
	//   - isGLB: true if the reader provides GLB binary data
	//
	// Returns:
	//   - *model.ImportedModel: the imported model
	//   - error: parse, node or scene failures
	ImportReader(name string, r io.Reader, isGLB bool) (*model.ImportedModel, error)
}

var _ gltfImporter = &gltfImporterImpl{}

// newGLTFImporter creates a glTF importer.
//
// Parameters:
//   - config: the import config
//   - logger: the logger for skipped-entity warnings
//   - prof: the stage profiler (may be nil)
//   - parserOptions: options applied to every parser the importer creates
//
// Returns:
//   - gltfImporter: the importer
func newGLTFImporter(config ImportConfig, logger *zap.SugaredLogger, prof *profiler.Profiler, parserOptions ...ParserBuilderOption) gltfImporter {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &gltfImporterImpl{
		config:        config,
		parserOptions: append([]ParserBuilderOption{WithLogger(logger)}, parserOptions...),
		logger:        logger,
		profiler:      prof,
	}
}

func (imp *gltfImporterImpl) Import(path string) (*model.ImportedModel, error) {
	stop := imp.profiler.Track("parse")
	parser, err := parseFile(path, imp.parserOptions...)
	stop()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return imp.importFromParser(parser, path)
}

func (imp *gltfImporterImpl) ImportReader(name string, r io.Reader, isGLB bool) (*model.ImportedModel, error) {
	stop := imp.profiler.Track("parse")
	parser, err := parseReader(r, isGLB, imp.parserOptions...)
	stop()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return imp.importFromParser(parser, name)
}

// importFromParser extracts everything from an already parsed document.
func (imp *gltfImporterImpl) importFromParser(p *gltfParserImpl, fallbackName string) (*model.ImportedModel, error) {
	doc := p.document
	imported := &model.ImportedModel{Name: gltfExtractModelName(p, fallbackName)}
	logger := imp.logger.With("model", imported.Name)

	var err error
	stop := imp.profiler.Track("nodes")
	imported.Nodes, err = p.LoadAllNodes()
	if err == nil {
		imported.Scenes, err = p.LoadScenes()
	}
	stop()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", imported.Name, err)
	}

	var errs error

	stop = imp.profiler.Track("meshes")
	imported.Meshes = make([][]model.Primitive, len(doc.Meshes))
	for i := range doc.Meshes {
		prims, err := p.LoadPrimitives(i)
		if err != nil {
			logger.Warnw("skipping mesh", "mesh", i, "error", err)
			errs = multierr.Append(errs, err)
			continue
		}
		imported.Meshes[i] = prims
	}
	stop()

	if imp.config.MeshOnly {
		imported.Errors = errs
		return imported, nil
	}

	stop = imp.profiler.Track("skeletons")
	primarySkin := 0
	for i := range doc.Meshes {
		if si := p.skeletons.FindSkinForMesh(i); si != model.NoIndex {
			primarySkin = si
			break
		}
	}
	imported.Skeletons = make([]*model.Skeleton, len(doc.Skins))
	for i := range doc.Skins {
		config := SkeletonConfig{}
		if i == primarySkin {
			config = imp.config.Skeleton
		}
		skeleton, err := p.BuildSkeleton(i, config)
		if err != nil {
			logger.Warnw("skipping skin", "skin", i, "error", err)
			errs = multierr.Append(errs, err)
			continue
		}
		imported.Skeletons[i] = skeleton
	}
	stop()

	stop = imp.profiler.Track("animations")
	owner := make(map[int]*model.Skeleton)
	for _, skeleton := range imported.Skeletons {
		if skeleton == nil {
			continue
		}
		for _, animIndex := range p.animations.AnimationsTargetingNodes(skeleton.NodeToBone) {
			if _, taken := owner[animIndex]; !taken {
				owner[animIndex] = skeleton
			}
		}
	}
	for i := range doc.Animations {
		config := imp.config.Animation
		config.Skeleton = owner[i]
		clip, err := p.BuildAnimationTracks(i, config)
		if err != nil {
			logger.Warnw("skipping animation", "animation", i, "error", err)
			errs = multierr.Append(errs, err)
			continue
		}
		imported.Animations = append(imported.Animations, clip)
	}
	stop()

	imported.Errors = errs
	logger.Debugw("imported model",
		"nodes", len(imported.Nodes),
		"meshes", len(imported.Meshes),
		"skeletons", len(imported.Skeletons),
		"animations", len(imported.Animations),
		"skipped", len(multierr.Errors(errs)),
	)
	return imported, nil
}

// gltfExtractModelName derives a model name from the default scene or a path fallback.
func gltfExtractModelName(p *gltfParserImpl, fallback string) string {
	if idx := p.DefaultSceneIndex(); idx != model.NoIndex {
		if name := p.document.Scenes[idx].Name; name != "" {
			return name
		}
	}
	if fallback != "" {
		return strings.TrimSuffix(filepath.Base(fallback), filepath.Ext(fallback))
	}
	return "unnamed_model"
}
