package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/gltf-runtime/common"
	"github.com/Carmen-Shannon/gltf-runtime/engine/loader"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, mgl32.Ident4(), cfg.BasisMatrix())
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "import.yaml", `
scene_scale: 100
scene_basis: z-up
workers: 8
log:
  debug: true
skeleton:
  root_node: 2
  bones:
    spine:
      translation: [0, 7, 0]
  sockets:
    hat:
      bone: head
      transform:
        translation: [0, 0.1, 0]
        rotation: [0, 0, 0, 2]
animation:
  remove_root_motion: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, float32(100), cfg.SceneScale)
	assert.Equal(t, BasisZUp, cfg.SceneBasis)
	assert.Equal(t, 8, cfg.Workers)
	assert.True(t, cfg.Log.Debug)

	sk := cfg.SkeletonConfig()
	require.NotNil(t, sk.RootNode)
	assert.Equal(t, 2, *sk.RootNode)
	assert.Equal(t, mgl32.Vec3{0, 7, 0}, sk.CustomSkeleton["spine"].Translation)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, sk.CustomSkeleton["spine"].Scale)
	hat := sk.Sockets["hat"]
	assert.Equal(t, "head", hat.BoneName)
	assert.Equal(t, mgl32.QuatIdent(), hat.Transform.Rotation)

	anim := cfg.AnimationConfig()
	assert.Equal(t, loader.RootMotionRemove, anim.RootMotion)
	assert.Nil(t, anim.Skeleton)

	// z-up maps glTF +Y to +Z.
	up := cfg.BasisMatrix().Mul4x1(mgl32.Vec4{0, 1, 0, 0})
	assert.Equal(t, mgl32.Vec4{0, 0, 1, 0}, up)
	assert.Len(t, cfg.ParserOptions(), 2)
}

func TestLoadTOML(t *testing.T) {
	path := writeConfig(t, "import.toml", `
scene_scale = 0.01
mesh_only = true

[animation]
preserve_root_motion = true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.01, cfg.SceneScale, 1e-7)
	assert.True(t, cfg.ImportConfig().MeshOnly)
	assert.Equal(t, loader.RootMotionPreserve, cfg.ImportConfig().Animation.RootMotion)
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "import.json", `{"workers": 2, "scene_basis": "gltf"}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Workers)
}

func TestLoadRejectsInvalidConfigs(t *testing.T) {
	cases := map[string][2]string{
		"both root motion flags": {"a.yaml", "animation:\n  preserve_root_motion: true\n  remove_root_motion: true\n"},
		"unknown basis":          {"b.yaml", "scene_basis: x-up\n"},
		"non-positive scale":     {"c.yaml", "scene_scale: -1\n"},
		"too many workers":       {"d.toml", "workers = 1000\n"},
		"socket without bone":    {"e.yaml", "skeleton:\n  sockets:\n    hat: {}\n"},
		"negative root node":     {"f.json", `{"skeleton": {"root_node": -1}}`},
		"unsupported extension":  {"g.ini", "workers=2"},
		"malformed yaml":         {"h.yaml", "workers: [\n"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, c[0], c[1]))
			assert.ErrorIs(t, err, common.ErrConfig)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, common.ErrConfig)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(EnvSceneScale, "2.5")
	t.Setenv(EnvWorkers, "16")
	t.Setenv(EnvDebug, "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, float32(2.5), cfg.SceneScale)
	assert.Equal(t, 16, cfg.Workers)
	assert.True(t, cfg.Log.Debug)

	// File values win over the environment.
	cfg, err = Load(writeConfig(t, "import.yaml", "workers: 3\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, float32(2.5), cfg.SceneScale)

	t.Setenv(EnvWorkers, "many")
	_, err = Load("")
	assert.ErrorIs(t, err, common.ErrConfig)
}

func TestLoadEnvFile(t *testing.T) {
	path := writeConfig(t, ".env", EnvSceneBasis+"=z-up\n")
	t.Setenv(EnvSceneBasis, "")
	require.NoError(t, os.Unsetenv(EnvSceneBasis))

	require.NoError(t, LoadEnv(path))
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, BasisZUp, cfg.SceneBasis)

	assert.ErrorIs(t, LoadEnv(filepath.Join(t.TempDir(), "absent.env")), common.ErrConfig)
}
