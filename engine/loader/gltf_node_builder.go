package loader

import (
	"github.com/Carmen-Shannon/gltf-runtime/common"
	"github.com/Carmen-Shannon/gltf-runtime/engine/model"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/tiendc/go-deepcopy"
)

// loadAllNodes builds (once) and returns the internal node list. Callers inside the package must not
// mutate the result; exported accessors hand out deep copies.
func (p *gltfParserImpl) loadAllNodes() ([]model.Node, error) {
	if p.nodes != nil {
		return p.nodes, nil
	}

	count := len(p.document.Nodes)
	nodes := make([]model.Node, count)
	for i := range p.document.Nodes {
		node, err := p.buildNode(i)
		if err != nil {
			return nil, err
		}
		nodes[i] = node
	}

	// Parent links come from scanning every child list; a node may appear in at most one.
	for i := range nodes {
		for _, child := range nodes[i].ChildrenIndices {
			if nodes[child].ParentIndex != model.NoIndex {
				return nil, common.NewError(common.ErrStructural, "node %d is a child of both node %d and node %d",
					child, nodes[child].ParentIndex, i)
			}
			nodes[child].ParentIndex = i
		}
	}

	// Every parent chain must terminate within count steps.
	for i := range nodes {
		steps := 0
		for cur := nodes[i].ParentIndex; cur != model.NoIndex; cur = nodes[cur].ParentIndex {
			steps++
			if steps > count {
				return nil, common.NewError(common.ErrStructural, "node %d is part of a parent cycle", i)
			}
		}
	}

	p.nodes = nodes
	return nodes, nil
}

// buildNode converts one document node, without its parent link.
func (p *gltfParserImpl) buildNode(index int) (model.Node, error) {
	src := &p.document.Nodes[index]
	count := len(p.document.Nodes)

	node := model.Node{
		Index:       index,
		Name:        src.Name,
		MeshIndex:   model.NoIndex,
		SkinIndex:   model.NoIndex,
		ParentIndex: model.NoIndex,
	}

	if src.Mesh != nil {
		if *src.Mesh < 0 || *src.Mesh >= len(p.document.Meshes) {
			return model.Node{}, common.NewError(common.ErrResource, "node %d: mesh %d out of range", index, *src.Mesh)
		}
		node.MeshIndex = *src.Mesh
	}
	if src.Skin != nil {
		if *src.Skin < 0 || *src.Skin >= len(p.document.Skins) {
			return model.Node{}, common.NewError(common.ErrResource, "node %d: skin %d out of range", index, *src.Skin)
		}
		node.SkinIndex = *src.Skin
	}

	node.ChildrenIndices = make([]int, 0, len(src.Children))
	for _, child := range src.Children {
		if child < 0 || child >= count {
			return model.Node{}, common.NewError(common.ErrResource, "node %d: child %d out of range", index, child)
		}
		node.ChildrenIndices = append(node.ChildrenIndices, child)
	}

	node.Transform = p.basis.Transform(nodeLocalTransform(src))
	return node, nil
}

// nodeLocalTransform reads the node's matrix, or its TRS properties with glTF defaults.
// A matrix takes precedence when both are present.
func nodeLocalTransform(src *gltfNode) common.Transform {
	if src.Matrix != nil {
		return common.TransformFromMat4(mgl32.Mat4(*src.Matrix))
	}

	t := common.IdentityTransform()
	if src.Translation != nil {
		t.Translation = mgl32.Vec3(*src.Translation)
	}
	if src.Rotation != nil {
		r := src.Rotation
		t.Rotation = mgl32.Quat{W: r[3], V: mgl32.Vec3{r[0], r[1], r[2]}}
	}
	if src.Scale != nil {
		t.Scale = mgl32.Vec3(*src.Scale)
	}
	return t
}

// node returns the internal node after validating the index.
func (p *gltfParserImpl) node(index int) (*model.Node, error) {
	nodes, err := p.loadAllNodes()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(nodes) {
		return nil, common.NewError(common.ErrResource, "node %d out of range (%d nodes)", index, len(nodes))
	}
	return &nodes[index], nil
}

func (p *gltfParserImpl) LoadNode(index int) (model.Node, error) {
	n, err := p.node(index)
	if err != nil {
		return model.Node{}, err
	}
	var out model.Node
	if err := deepcopy.Copy(&out, n); err != nil {
		return model.Node{}, err
	}
	return out, nil
}

func (p *gltfParserImpl) LoadNodeByName(name string) (model.Node, bool, error) {
	nodes, err := p.loadAllNodes()
	if err != nil {
		return model.Node{}, false, err
	}
	for i := range nodes {
		if nodes[i].Name == name {
			n, err := p.LoadNode(i)
			return n, err == nil, err
		}
	}
	return model.Node{}, false, nil
}

func (p *gltfParserImpl) LoadAllNodes() ([]model.Node, error) {
	nodes, err := p.loadAllNodes()
	if err != nil {
		return nil, err
	}
	var out []model.Node
	if err := deepcopy.Copy(&out, nodes); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *gltfParserImpl) LoadScene(index int) (model.Scene, error) {
	if index < 0 || index >= len(p.document.Scenes) {
		return model.Scene{}, common.NewError(common.ErrResource, "scene %d out of range (%d scenes)", index, len(p.document.Scenes))
	}
	src := &p.document.Scenes[index]
	scene := model.Scene{
		Index:            index,
		Name:             src.Name,
		RootNodesIndices: make([]int, 0, len(src.Nodes)),
	}
	for _, root := range src.Nodes {
		if root < 0 || root >= len(p.document.Nodes) {
			return model.Scene{}, common.NewError(common.ErrResource, "scene %d: node %d out of range", index, root)
		}
		scene.RootNodesIndices = append(scene.RootNodesIndices, root)
	}
	return scene, nil
}

func (p *gltfParserImpl) LoadScenes() ([]model.Scene, error) {
	scenes := make([]model.Scene, 0, len(p.document.Scenes))
	for i := range p.document.Scenes {
		scene, err := p.LoadScene(i)
		if err != nil {
			return nil, err
		}
		scenes = append(scenes, scene)
	}
	return scenes, nil
}

func (p *gltfParserImpl) DefaultSceneIndex() int {
	if len(p.document.Scenes) == 0 {
		return model.NoIndex
	}
	if p.document.Scene != nil && *p.document.Scene >= 0 && *p.document.Scene < len(p.document.Scenes) {
		return *p.document.Scene
	}
	return 0
}

// --- Hierarchy Queries ---

func (p *gltfParserImpl) ComposeTransformUpward(index int) (common.Transform, error) {
	n, err := p.node(index)
	if err != nil {
		return common.Transform{}, err
	}
	t := n.Transform
	for cur := n.ParentIndex; cur != model.NoIndex; cur = p.nodes[cur].ParentIndex {
		t = t.Mul(p.nodes[cur].Transform)
	}
	return t, nil
}

func (p *gltfParserImpl) ComposeTransformBetween(from, to int) (common.Transform, error) {
	n, err := p.node(from)
	if err != nil {
		return common.Transform{}, err
	}
	if _, err := p.node(to); err != nil {
		return common.Transform{}, err
	}
	if from == to {
		return common.IdentityTransform(), nil
	}

	t := n.Transform
	for cur := n.ParentIndex; cur != to; cur = p.nodes[cur].ParentIndex {
		if cur == model.NoIndex {
			return common.Transform{}, common.NewError(common.ErrStructural, "node %d is not an ancestor of node %d", to, from)
		}
		t = t.Mul(p.nodes[cur].Transform)
	}
	return t, nil
}

func (p *gltfParserImpl) FindTopRoot(index int) (int, error) {
	n, err := p.node(index)
	if err != nil {
		return model.NoIndex, err
	}
	cur := n.Index
	for p.nodes[cur].ParentIndex != model.NoIndex {
		cur = p.nodes[cur].ParentIndex
	}
	return cur, nil
}

func (p *gltfParserImpl) HasRoot(index, root int) (bool, error) {
	if _, err := p.node(index); err != nil {
		return false, err
	}
	if _, err := p.node(root); err != nil {
		return false, err
	}
	return p.hasRoot(index, root), nil
}

// hasRoot assumes both indices are valid.
func (p *gltfParserImpl) hasRoot(index, root int) bool {
	for cur := index; cur != model.NoIndex; cur = p.nodes[cur].ParentIndex {
		if cur == root {
			return true
		}
	}
	return false
}

func (p *gltfParserImpl) FindCommonRoot(indices []int) (int, error) {
	if len(indices) == 0 {
		return model.NoIndex, common.NewError(common.ErrResource, "no nodes to find a common root for")
	}
	for _, idx := range indices {
		if _, err := p.node(idx); err != nil {
			return model.NoIndex, err
		}
	}

	// Walk the first node's ancestor chain from the bottom; the first candidate covering every index wins.
	top := indices[0]
	for candidate := indices[0]; candidate != model.NoIndex; candidate = p.nodes[candidate].ParentIndex {
		top = candidate
		covered := true
		for _, idx := range indices[1:] {
			if !p.hasRoot(idx, candidate) {
				covered = false
				break
			}
		}
		if covered {
			return candidate, nil
		}
	}

	p.logger.Warnw("nodes do not share a common root; falling back to the top root of the first node",
		"nodes", indices, "fallback", top)
	return top, nil
}
