package model

// model is the implementation of the Model interface.
type model struct {
	name       string
	nodes      []Node
	scenes     []Scene
	meshes     [][]Primitive
	skeletons  []*Skeleton
	animations []*AnimationClip
	errs       error
}

// Model defines the read-only view of an imported glTF document.
// It is produced by the Library after a successful import and is safe to share between goroutines
// because nothing mutates it after construction.
type Model interface {
	// Name retrieves the model identifier.
	//
	// Returns:
	//   - string: the model name
	Name() string

	// Nodes retrieves the node hierarchy.
	//
	// Returns:
	//   - []Node: all nodes in document order
	Nodes() []Node

	// Scenes retrieves the document's scenes.
	//
	// Returns:
	//   - []Scene: the scenes
	Scenes() []Scene

	// Meshes retrieves the decoded primitives, one slice per mesh index.
	//
	// Returns:
	//   - [][]Primitive: the primitives per mesh
	Meshes() [][]Primitive

	// Skinned reports whether at least one skeleton was built.
	//
	// Returns:
	//   - bool: true if the model has bone data
	Skinned() bool

	// Skeleton retrieves the skeleton built for a skin.
	// Returns nil when the index is out of range or the skin failed to build.
	//
	// Parameters:
	//   - skinIndex: the skin index
	//
	// Returns:
	//   - *Skeleton: the skeleton or nil
	Skeleton(skinIndex int) *Skeleton

	// Animations retrieves all animation clips that built successfully.
	//
	// Returns:
	//   - []*AnimationClip: the animation clips
	Animations() []*AnimationClip

	// AnimationCount returns the number of available animation clips.
	//
	// Returns:
	//   - int: the animation count
	AnimationCount() int

	// AnimationNames returns the names of all animation clips.
	//
	// Returns:
	//   - []string: the animation clip names
	AnimationNames() []string

	// GetAnimationIndex returns the index of an animation by name, or -1 if not found.
	//
	// Parameters:
	//   - name: the animation clip name to search for
	//
	// Returns:
	//   - int: the animation index, or -1 if not found
	GetAnimationIndex(name string) int

	// Errors returns the accumulated failures of entities skipped during import, or nil.
	//
	// Returns:
	//   - error: the combined entity errors
	Errors() error
}

var _ Model = &model{}

// NewModel creates a new Model instance with the specified options applied.
//
// Parameters:
//   - options: a variadic list of ModelBuilderOption functions to configure the Model
//
// Returns:
//   - Model: a new instance of Model configured with the provided options
func NewModel(options ...ModelBuilderOption) Model {
	m := &model{}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// NewModelFromImport wraps an ImportedModel.
//
// Parameters:
//   - imported: the importer output
//
// Returns:
//   - Model: the read-only model
func NewModelFromImport(imported *ImportedModel) Model {
	return NewModel(
		WithName(imported.Name),
		WithNodes(imported.Nodes),
		WithScenes(imported.Scenes),
		WithMeshes(imported.Meshes),
		WithSkeletons(imported.Skeletons),
		WithAnimations(imported.Animations),
		WithErrors(imported.Errors),
	)
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Nodes() []Node {
	return m.nodes
}

func (m *model) Scenes() []Scene {
	return m.scenes
}

func (m *model) Meshes() [][]Primitive {
	return m.meshes
}

func (m *model) Skinned() bool {
	for _, s := range m.skeletons {
		if s != nil && len(s.Bones) > 0 {
			return true
		}
	}
	return false
}

func (m *model) Skeleton(skinIndex int) *Skeleton {
	if skinIndex < 0 || skinIndex >= len(m.skeletons) {
		return nil
	}
	return m.skeletons[skinIndex]
}

func (m *model) Animations() []*AnimationClip {
	return m.animations
}

func (m *model) AnimationCount() int {
	return len(m.animations)
}

func (m *model) AnimationNames() []string {
	names := make([]string, len(m.animations))
	for i, anim := range m.animations {
		names[i] = anim.Name
	}
	return names
}

func (m *model) GetAnimationIndex(name string) int {
	for i, anim := range m.animations {
		if anim.Name == name {
			return i
		}
	}
	return -1
}

func (m *model) Errors() error {
	return m.errs
}
