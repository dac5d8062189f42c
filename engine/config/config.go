package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/gltf-runtime/common"
	"github.com/Carmen-Shannon/gltf-runtime/engine/loader"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load. File values take precedence over them.
const (
	EnvSceneScale = "GLTF_SCENE_SCALE"
	EnvSceneBasis = "GLTF_SCENE_BASIS"
	EnvWorkers    = "GLTF_WORKERS"
	EnvDebug      = "GLTF_DEBUG"
)

// Scene basis names.
const (
	BasisGLTF = "gltf"
	BasisZUp  = "z-up"
)

// Config is the file-driven import configuration.
type Config struct {
	// SceneScale multiplies translations and positions (e.g. 100 for meters to centimeters).
	SceneScale float32 `yaml:"scene_scale" toml:"scene_scale" json:"scene_scale" validate:"gt=0"`

	// SceneBasis names the target coordinate system.
	SceneBasis string `yaml:"scene_basis" toml:"scene_basis" json:"scene_basis" validate:"oneof=gltf z-up"`

	// Workers is the batch import concurrency.
	Workers int `yaml:"workers" toml:"workers" json:"workers" validate:"gte=1,lte=256"`

	// MeshOnly skips skins and animations.
	MeshOnly bool `yaml:"mesh_only" toml:"mesh_only" json:"mesh_only"`

	Log       Log       `yaml:"log" toml:"log" json:"log"`
	Skeleton  Skeleton  `yaml:"skeleton" toml:"skeleton" json:"skeleton"`
	Animation Animation `yaml:"animation" toml:"animation" json:"animation"`
}

// Log configures the logger.
type Log struct {
	Development bool     `yaml:"development" toml:"development" json:"development"`
	Debug       bool     `yaml:"debug" toml:"debug" json:"debug"`
	Output      []string `yaml:"output" toml:"output" json:"output"`
}

// Transform is a TRS transform as written in config files. Missing rotation and scale default to identity.
type Transform struct {
	Translation [3]float32  `yaml:"translation" toml:"translation" json:"translation"`
	Rotation    *[4]float32 `yaml:"rotation" toml:"rotation" json:"rotation"`
	Scale       *[3]float32 `yaml:"scale" toml:"scale" json:"scale"`
}

// Socket attaches a named transform to a bone.
type Socket struct {
	Bone      string    `yaml:"bone" toml:"bone" json:"bone" validate:"required"`
	Transform Transform `yaml:"transform" toml:"transform" json:"transform"`
}

// Skeleton configures skeleton building.
type Skeleton struct {
	// RootNode forces the skeleton root node.
	RootNode *int `yaml:"root_node" toml:"root_node" json:"root_node" validate:"omitempty,gte=0"`

	// Bones overrides the bind pose of named bones.
	Bones map[string]Transform `yaml:"bones" toml:"bones" json:"bones"`

	// Sockets adds attachment points keyed by socket name.
	Sockets map[string]Socket `yaml:"sockets" toml:"sockets" json:"sockets" validate:"dive"`
}

// Animation configures animation building. At most one root motion flag may be set.
type Animation struct {
	RootNode           *int `yaml:"root_node" toml:"root_node" json:"root_node" validate:"omitempty,gte=0"`
	PreserveRootMotion bool `yaml:"preserve_root_motion" toml:"preserve_root_motion" json:"preserve_root_motion"`
	RemoveRootMotion   bool `yaml:"remove_root_motion" toml:"remove_root_motion" json:"remove_root_motion"`
}

var validate = validator.New()

// Default returns the configuration used when no file is given.
//
// Returns:
//   - *Config: the default config
func Default() *Config {
	return &Config{
		SceneScale: 1,
		SceneBasis: BasisGLTF,
		Workers:    4,
	}
}

// LoadEnv loads .env files into the process environment without overriding variables that are already set.
// With no files it reads ./.env and ignores its absence.
//
// Parameters:
//   - files: the .env files to read
//
// Returns:
//   - error: error if a file exists but cannot be parsed
func LoadEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil {
		if len(files) == 0 && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return common.WrapError(common.ErrConfig, err, "failed to load env files")
	}
	return nil
}

// Load builds a config from defaults, then environment variables, then the file at path (YAML, TOML or
// JSON by extension), and validates the result. An empty path skips the file.
//
// Parameters:
//   - path: the config file path (may be empty)
//
// Returns:
//   - *Config: the validated config
//   - error: ErrConfig if the file cannot be read, decoded or validated
func Load(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, common.WrapError(common.ErrConfig, err, "failed to read config %q", path)
		}
		if err := unmarshal(filepath.Ext(path), data, cfg); err != nil {
			return nil, common.WrapError(common.ErrConfig, err, "failed to decode config %q", path)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func unmarshal(ext string, data []byte, cfg *Config) error {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	case ".toml":
		return toml.Unmarshal(data, cfg)
	case ".json":
		return json.Unmarshal(data, cfg)
	default:
		return errors.New("unsupported config extension " + ext)
	}
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(EnvSceneScale); ok {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return common.WrapError(common.ErrConfig, err, "%s", EnvSceneScale)
		}
		c.SceneScale = float32(f)
	}
	if v, ok := os.LookupEnv(EnvSceneBasis); ok {
		c.SceneBasis = v
	}
	if v, ok := os.LookupEnv(EnvWorkers); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return common.WrapError(common.ErrConfig, err, "%s", EnvWorkers)
		}
		c.Workers = n
	}
	if v, ok := os.LookupEnv(EnvDebug); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return common.WrapError(common.ErrConfig, err, "%s", EnvDebug)
		}
		c.Log.Debug = b
	}
	return nil
}

// Validate checks field constraints and that the root motion flags are not both set.
//
// Returns:
//   - error: ErrConfig describing the first violation
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return common.WrapError(common.ErrConfig, err, "invalid config")
	}
	if c.Animation.PreserveRootMotion && c.Animation.RemoveRootMotion {
		return common.NewError(common.ErrConfig, "preserve_root_motion and remove_root_motion are mutually exclusive")
	}
	return nil
}

// BasisMatrix returns the change-of-basis matrix for SceneBasis.
//
// Returns:
//   - mgl32.Mat4: the basis matrix (identity for glTF space)
func (c *Config) BasisMatrix() mgl32.Mat4 {
	if c.SceneBasis == BasisZUp {
		// +Y up to +Z up: y -> z, z -> -y.
		return mgl32.Mat4{
			1, 0, 0, 0,
			0, 0, 1, 0,
			0, -1, 0, 0,
			0, 0, 0, 1,
		}
	}
	return mgl32.Ident4()
}

// ParserOptions converts the scene settings into parser options.
//
// Returns:
//   - []loader.ParserBuilderOption: the basis and scale options
func (c *Config) ParserOptions() []loader.ParserBuilderOption {
	return []loader.ParserBuilderOption{
		loader.WithSceneBasis(c.BasisMatrix()),
		loader.WithSceneScale(c.SceneScale),
	}
}

// SkeletonConfig converts the skeleton section.
//
// Returns:
//   - loader.SkeletonConfig: the skeleton config
func (c *Config) SkeletonConfig() loader.SkeletonConfig {
	out := loader.SkeletonConfig{RootNode: c.Skeleton.RootNode}
	if len(c.Skeleton.Bones) > 0 {
		out.CustomSkeleton = make(map[string]common.Transform, len(c.Skeleton.Bones))
		for name, t := range c.Skeleton.Bones {
			out.CustomSkeleton[name] = t.ToTransform()
		}
	}
	if len(c.Skeleton.Sockets) > 0 {
		out.Sockets = make(map[string]loader.SocketConfig, len(c.Skeleton.Sockets))
		for name, s := range c.Skeleton.Sockets {
			out.Sockets[name] = loader.SocketConfig{BoneName: s.Bone, Transform: s.Transform.ToTransform()}
		}
	}
	return out
}

// AnimationConfig converts the animation section. The skeleton is left for the caller to set.
//
// Returns:
//   - loader.AnimationConfig: the animation config
func (c *Config) AnimationConfig() loader.AnimationConfig {
	out := loader.AnimationConfig{RootNode: c.Animation.RootNode, RootMotion: loader.RootMotionPreserve}
	if c.Animation.RemoveRootMotion {
		out.RootMotion = loader.RootMotionRemove
	}
	return out
}

// ImportConfig converts the whole config for the Loader.
//
// Returns:
//   - loader.ImportConfig: the import config
func (c *Config) ImportConfig() loader.ImportConfig {
	return loader.ImportConfig{
		Skeleton:  c.SkeletonConfig(),
		Animation: c.AnimationConfig(),
		MeshOnly:  c.MeshOnly,
	}
}

// ToTransform converts to a common.Transform, filling identity defaults.
//
// Returns:
//   - common.Transform: the transform
func (t Transform) ToTransform() common.Transform {
	out := common.IdentityTransform()
	out.Translation = mgl32.Vec3(t.Translation)
	if t.Rotation != nil {
		r := t.Rotation
		out.Rotation = mgl32.Quat{W: r[3], V: mgl32.Vec3{r[0], r[1], r[2]}}.Normalize()
	}
	if t.Scale != nil {
		out.Scale = mgl32.Vec3(*t.Scale)
	}
	return out
}
