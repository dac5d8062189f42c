package loader

import (
	"bytes"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/gltf-runtime/common"
	"github.com/Carmen-Shannon/gltf-runtime/engine/profiler"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// characterFixture is the rig with one clean animation and one with broken keyframe times.
func characterFixture() *gltfFixture {
	f := rigFixture()
	times := f.floats(gltfAccessorTypeScalar, 0, 1)
	moves := f.floats(gltfAccessorTypeVec3, 0, 0, 0, 0, 0, 2)
	walk := map[string]any{"name": "walk"}
	animChannel(walk, animSampler(walk, times, moves, ""), 1, "translation")
	f.add("animations", walk)

	badTimes := f.floats(gltfAccessorTypeScalar, 1, 0)
	broken := map[string]any{"name": "broken"}
	animChannel(broken, animSampler(broken, badTimes, moves, ""), 2, "translation")
	f.add("animations", broken)
	return f
}

func TestImporterSkipsBrokenEntities(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	imp := newGLTFImporter(ImportConfig{
		Skeleton:  SkeletonConfig{Sockets: map[string]SocketConfig{"hat": {BoneName: "spine"}}},
		Animation: AnimationConfig{RootMotion: RootMotionRemove},
	}, zap.New(core).Sugar(), nil)

	path := characterFixture().writeFile(t, t.TempDir(), "hero.gltf")
	imported, err := imp.Import(path)
	require.NoError(t, err)

	assert.Equal(t, "hero", imported.Name)
	assert.Len(t, imported.Nodes, 5)
	require.Len(t, imported.Meshes, 1)
	assert.Len(t, imported.Meshes[0][0].Positions, 3)

	require.Len(t, imported.Skeletons, 1)
	require.NotNil(t, imported.Skeletons[0])
	assert.Len(t, imported.Skeletons[0].Sockets, 1)

	require.Len(t, imported.Animations, 1)
	walk := imported.Animations[0]
	assert.Equal(t, "walk", walk.Name)
	assert.Equal(t, 0, walk.Channels[0].BoneIndex)
	require.NotNil(t, walk.RootMotion)
	assert.Equal(t, 1, walk.RootMotion.NodeIndex)

	errs := multierr.Errors(imported.Errors)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], common.ErrSchema)
	assert.Equal(t, 1, logs.FilterMessage("skipping animation").Len())
}

func TestImporterAppliesOverridesToFirstSkinnedMesh(t *testing.T) {
	// Mesh 0 is static; mesh 1 is bound to skin 1, which becomes the primary skin.
	f := rigFixture()
	pos := f.floats(gltfAccessorTypeVec3, 0, 0, 0, 1, 0, 0, 0, 1, 0)
	f.get("meshes", 0)["name"] = "prop"
	delete(f.get("nodes", 4), "skin")
	addMesh(f, "body", map[string]any{"attributes": map[string]int{"POSITION": pos}})
	f.add("skins", map[string]any{"joints": []int{1, 2}})
	f.add("nodes", map[string]any{"name": "skinned body", "mesh": 1, "skin": 1})

	imp := newGLTFImporter(ImportConfig{
		Skeleton: SkeletonConfig{Sockets: map[string]SocketConfig{"hat": {BoneName: "spine"}}},
	}, nil, nil)
	imported, err := imp.ImportReader("", bytes.NewReader(f.gltfJSON(t)), false)
	require.NoError(t, err)

	require.Len(t, imported.Skeletons, 2)
	require.NotNil(t, imported.Skeletons[0])
	require.NotNil(t, imported.Skeletons[1])
	assert.Empty(t, imported.Skeletons[0].Sockets)
	require.Len(t, imported.Skeletons[1].Sockets, 1)
	assert.Equal(t, "hat", imported.Skeletons[1].Sockets[0].Name)
	assert.NoError(t, imported.Errors)
}

func TestImporterMeshOnly(t *testing.T) {
	imp := newGLTFImporter(ImportConfig{MeshOnly: true}, nil, nil)
	f := characterFixture()
	f.add("scenes", map[string]any{"name": "Hero Scene", "nodes": []int{0, 4}})

	imported, err := imp.ImportReader("stream", bytes.NewReader(f.glb(t)), true)
	require.NoError(t, err)
	assert.Equal(t, "Hero Scene", imported.Name)
	assert.Len(t, imported.Meshes, 1)
	assert.Nil(t, imported.Skeletons)
	assert.Empty(t, imported.Animations)
	assert.NoError(t, imported.Errors)
}

func TestImporterFailsOnBrokenNodeGraph(t *testing.T) {
	f := newFixture()
	f.node("a", nil, 1)
	f.node("b", nil, 0)
	imp := newGLTFImporter(ImportConfig{}, nil, nil)

	_, err := imp.ImportReader("", bytes.NewReader(f.gltfJSON(t)), false)
	assert.ErrorIs(t, err, common.ErrStructural)
}

func TestGLTFExtractModelName(t *testing.T) {
	p := newFixture().parse(t)
	assert.Equal(t, "unnamed_model", gltfExtractModelName(p, ""))
	assert.Equal(t, "robot", gltfExtractModelName(p, filepath.Join("assets", "robot.glb")))
}

func TestLoaderCachesModels(t *testing.T) {
	dir := t.TempDir()
	path := characterFixture().writeFile(t, dir, "hero.gltf")
	prof := profiler.NewProfiler(nil)
	l := NewLoader(BackendTypeGLTF, WithProfiler(prof), WithLoaderLogger(zap.NewNop().Sugar()))

	m, err := l.Load(path)
	require.NoError(t, err)
	assert.True(t, m.Skinned())
	assert.Equal(t, []string{"walk"}, m.AnimationNames())
	assert.Error(t, m.Errors())

	again, err := l.Load(path)
	require.NoError(t, err)
	assert.Same(t, m, again)
	assert.Same(t, m, l.Get(path))
	assert.Len(t, l.Models(), 1)

	stages := map[string]bool{}
	for _, s := range prof.Stats() {
		stages[s.Stage] = true
		assert.Equal(t, 1, s.Calls)
	}
	assert.Equal(t, map[string]bool{"parse": true, "nodes": true, "meshes": true, "skeletons": true, "animations": true}, stages)

	l.Evict(path)
	assert.Nil(t, l.Get(path))

	_, err = l.Load(filepath.Join(dir, "hero.fbx"))
	assert.ErrorIs(t, err, common.ErrResource)
}

func TestLoaderLoadReader(t *testing.T) {
	l := NewLoader(BackendTypeGLTF, WithImportConfig(ImportConfig{MeshOnly: true}))

	m, err := l.LoadReader("stream", bytes.NewReader(characterFixture().glb(t)), true)
	require.NoError(t, err)
	assert.False(t, m.Skinned())
	assert.Same(t, m, l.Get("stream"))

	_, err = l.LoadReader("garbage", bytes.NewReader([]byte("not gltf")), false)
	assert.ErrorIs(t, err, common.ErrSchema)
	assert.Nil(t, l.Get("garbage"))
}

func TestLoaderLoadAll(t *testing.T) {
	dir := t.TempDir()
	a := characterFixture().writeFile(t, dir, "a.gltf")
	b := rigFixture().writeFile(t, dir, "b.gltf")
	missing := filepath.Join(dir, "missing.gltf")
	unsupported := filepath.Join(dir, "c.obj")

	l := NewLoader(BackendTypeGLTF, WithWorkers(2))
	models, err := l.LoadAll([]string{a, b, missing, unsupported})

	require.Len(t, models, 2)
	assert.Contains(t, models, a)
	assert.Contains(t, models, b)
	assert.Len(t, multierr.Errors(err), 2)
	assert.ErrorIs(t, err, common.ErrResource)
	assert.Same(t, models[a], l.Get(a))

	empty, err := l.LoadAll(nil)
	assert.NoError(t, err)
	assert.Empty(t, empty)
}

// countingPool records Stop calls on a real worker pool.
type countingPool struct {
	worker.DynamicWorkerPool
	stops *atomic.Int32
}

func (p countingPool) Stop() {
	p.stops.Add(1)
	p.DynamicWorkerPool.Stop()
}

func TestLoaderLoadAllStopsPool(t *testing.T) {
	var created, stops atomic.Int32
	original := newWorkerPool
	newWorkerPool = func(maxWorkers, queueSize int, idleTimeout time.Duration) worker.DynamicWorkerPool {
		created.Add(1)
		return countingPool{DynamicWorkerPool: original(maxWorkers, queueSize, idleTimeout), stops: &stops}
	}
	t.Cleanup(func() { newWorkerPool = original })

	dir := t.TempDir()
	path := rigFixture().writeFile(t, dir, "rig.gltf")
	l := NewLoader(BackendTypeGLTF, WithWorkers(2))
	for range 3 {
		models, err := l.LoadAll([]string{path})
		require.NoError(t, err)
		assert.Len(t, models, 1)
	}
	assert.Equal(t, int32(3), created.Load())
	assert.Equal(t, int32(3), stops.Load())
}

func TestLoaderWithModel(t *testing.T) {
	l := NewLoader(BackendTypeGLTF)
	m, err := l.LoadReader("seed", bytes.NewReader(newFixture().gltfJSON(t)), false)
	require.NoError(t, err)

	seeded := NewLoader(BackendTypeGLTF, WithModel("seed", m))
	assert.Same(t, m, seeded.Get("seed"))
}
