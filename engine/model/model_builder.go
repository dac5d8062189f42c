package model

// ModelBuilderOption is a functional option for configuring a Model via NewModel.
type ModelBuilderOption func(*model)

// WithName is an option builder that sets the name of the Model.
//
// Parameters:
//   - name: the model identifier
//
// Returns:
//   - ModelBuilderOption: a function that applies the name option to a model
func WithName(name string) ModelBuilderOption {
	return func(m *model) {
		m.name = name
	}
}

// WithNodes is an option builder that sets the node hierarchy of the Model.
//
// Parameters:
//   - nodes: the nodes in document order
//
// Returns:
//   - ModelBuilderOption: a function that applies the nodes option to a model
func WithNodes(nodes []Node) ModelBuilderOption {
	return func(m *model) {
		m.nodes = nodes
	}
}

// WithScenes is an option builder that sets the scenes of the Model.
//
// Parameters:
//   - scenes: the scenes to set
//
// Returns:
//   - ModelBuilderOption: a function that applies the scenes option to a model
func WithScenes(scenes []Scene) ModelBuilderOption {
	return func(m *model) {
		m.scenes = scenes
	}
}

// WithMeshes is an option builder that sets the decoded primitives of the Model.
//
// Parameters:
//   - meshes: the primitives per mesh index
//
// Returns:
//   - ModelBuilderOption: a function that applies the meshes option to a model
func WithMeshes(meshes [][]Primitive) ModelBuilderOption {
	return func(m *model) {
		m.meshes = meshes
	}
}

// WithSkeletons is an option builder that sets the per-skin skeletons of the Model.
//
// Parameters:
//   - skeletons: one skeleton per skin index (nil entries allowed)
//
// Returns:
//   - ModelBuilderOption: a function that applies the skeletons option to a model
func WithSkeletons(skeletons []*Skeleton) ModelBuilderOption {
	return func(m *model) {
		m.skeletons = skeletons
	}
}

// WithAnimations is an option builder that sets the animation clips of the Model.
//
// Parameters:
//   - animations: the animation clips to set
//
// Returns:
//   - ModelBuilderOption: a function that applies the animations option to a model
func WithAnimations(animations []*AnimationClip) ModelBuilderOption {
	return func(m *model) {
		m.animations = animations
	}
}

// WithErrors is an option builder that records entity failures skipped during import.
//
// Parameters:
//   - err: the combined entity errors (may be nil)
//
// Returns:
//   - ModelBuilderOption: a function that applies the errors option to a model
func WithErrors(err error) ModelBuilderOption {
	return func(m *model) {
		m.errs = err
	}
}
