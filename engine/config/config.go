package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
)

const (
	BackendVulkan = "vulkan"
	BackendSoft   = "soft"

	VariantTriangle   = "triangle"
	VariantMesh       = "mesh"
	VariantPointCloud = "pointcloud"

	// FramesInFlight is the only supported frame ring size.
	FramesInFlight = 2
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Application struct {
	Name     string `toml:"name"`
	Width    uint32 `toml:"width"`
	Height   uint32 `toml:"height"`
	LogLevel string `toml:"log_level"`
}

type Renderer struct {
	Backend        string `toml:"backend"`
	Variant        string `toml:"variant"`
	FramesInFlight int    `toml:"frames_in_flight"`
	Validation     bool   `toml:"validation"`
	FenceTimeout   string `toml:"fence_timeout"`
	UploadTimeout  string `toml:"upload_timeout"`
	MaxFrames      uint64 `toml:"max_frames"`
	MaxObjects     uint32 `toml:"max_objects"`
	// SceneRadius is the radius, in units, of the disk of triangles drawn
	// around the model by the mesh variant.
	SceneRadius    int    `toml:"scene_radius"`
}

type Assets struct {
	Root      string `toml:"root"`
	ShaderDir string `toml:"shader_dir"`
	Model     string `toml:"model"`
}

type PointCloud struct {
	Points      uint32  `toml:"points"`
	Seed        uint64  `toml:"seed"`
	Radius      float32 `toml:"radius"`
	Frames      string  `toml:"frames"`
	FrameWidth  uint32  `toml:"frame_width"`
	FrameHeight uint32  `toml:"frame_height"`
	FPS         float64 `toml:"fps"`
}

type Soft struct {
	SubmitLatency string `toml:"submit_latency"`
}

// Config is the full engine configuration. Durations are kept as strings in
// the file and parsed by the accessor methods.
type Config struct {
	Application Application `toml:"application"`
	Renderer    Renderer    `toml:"renderer"`
	Assets      Assets      `toml:"assets"`
	PointCloud  PointCloud  `toml:"pointcloud"`
	Soft        Soft        `toml:"soft"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Application: Application{
			Name:     "Framering",
			Width:    1700,
			Height:   900,
			LogLevel: "info",
		},
		Renderer: Renderer{
			Backend:        BackendVulkan,
			Variant:        VariantMesh,
			FramesInFlight: FramesInFlight,
			Validation:     true,
			FenceTimeout:   "1s",
			UploadTimeout:  "10s",
			MaxObjects:     10000,
			SceneRadius:    40,
		},
		Assets: Assets{
			Root:      "assets",
			ShaderDir: "shaders",
			Model:     "models/monkey_smooth.obj",
		},
		PointCloud: PointCloud{
			Points:      1_000_000,
			Seed:        1,
			Radius:      40,
			FrameWidth:  640,
			FrameHeight: 360,
			FPS:         15,
		},
		Soft: Soft{
			SubmitLatency: "2ms",
		},
	}
}

// Load reads a TOML file over the defaults. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open config %s", path)
	}
	defer f.Close()

	if err := cfg.Decode(f); err != nil {
		return nil, errors.Wrapf(err, "could not load config %s", path)
	}
	return cfg, nil
}

// Decode overlays the TOML document read from r. Unknown keys are an error.
func (c *Config) Decode(r io.Reader) error {
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return errors.Mark(errors.Newf("unknown keys:\n%s", strict.String()), ErrInvalidConfig)
		}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return errors.Mark(errors.Wrapf(err, "line %d column %d", row, col), ErrInvalidConfig)
		}
		return errors.Mark(err, ErrInvalidConfig)
	}
	return nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Application.Width == 0 || c.Application.Height == 0 {
		add("application.width and application.height must be positive, got %dx%d", c.Application.Width, c.Application.Height)
	}
	switch strings.ToLower(c.Application.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		add("application.log_level %q is not one of debug, info, warn, error", c.Application.LogLevel)
	}

	switch c.Renderer.Backend {
	case BackendVulkan, BackendSoft:
	default:
		add("renderer.backend %q is not one of %s, %s", c.Renderer.Backend, BackendVulkan, BackendSoft)
	}
	switch c.Renderer.Variant {
	case VariantTriangle, VariantMesh, VariantPointCloud:
	default:
		add("renderer.variant %q is not one of %s, %s, %s", c.Renderer.Variant, VariantTriangle, VariantMesh, VariantPointCloud)
	}
	if c.Renderer.FramesInFlight != FramesInFlight {
		add("renderer.frames_in_flight must be %d, got %d", FramesInFlight, c.Renderer.FramesInFlight)
	}
	if c.Renderer.MaxObjects == 0 {
		add("renderer.max_objects must be positive")
	}
	if c.Renderer.SceneRadius < 0 {
		add("renderer.scene_radius must not be negative, got %d", c.Renderer.SceneRadius)
	}
	checkDuration := func(key, value string, allowZero bool) {
		d, err := time.ParseDuration(value)
		if err != nil {
			add("%s %q is not a duration", key, value)
			return
		}
		if d < 0 || (d == 0 && !allowZero) {
			add("%s must be positive, got %s", key, d)
		}
	}
	checkDuration("renderer.fence_timeout", c.Renderer.FenceTimeout, false)
	checkDuration("renderer.upload_timeout", c.Renderer.UploadTimeout, false)
	checkDuration("soft.submit_latency", c.Soft.SubmitLatency, true)

	if c.Assets.Root == "" {
		add("assets.root must be set")
	}
	if c.Renderer.Variant == VariantPointCloud {
		if c.PointCloud.Points == 0 {
			add("pointcloud.points must be positive")
		}
		if c.PointCloud.Frames != "" {
			if c.PointCloud.FrameWidth == 0 || c.PointCloud.FrameWidth%8 != 0 || c.PointCloud.FrameHeight == 0 {
				add("pointcloud.frame_width must be a positive multiple of 8 and frame_height positive, got %dx%d",
					c.PointCloud.FrameWidth, c.PointCloud.FrameHeight)
			}
			if c.PointCloud.FPS <= 0 {
				add("pointcloud.fps must be positive")
			}
		}
	}

	if len(problems) > 0 {
		return errors.Mark(errors.Newf("%s", strings.Join(problems, "; ")), ErrInvalidConfig)
	}
	return nil
}

// FenceTimeout bounds the wait on a frame slot fence.
func (c *Config) FenceTimeout() time.Duration {
	return parseDuration(c.Renderer.FenceTimeout)
}

// UploadTimeout bounds the wait on the upload fence.
func (c *Config) UploadTimeout() time.Duration {
	return parseDuration(c.Renderer.UploadTimeout)
}

// SubmitLatency is the simulated execution time of a software submission.
func (c *Config) SubmitLatency() time.Duration {
	return parseDuration(c.Soft.SubmitLatency)
}

// FrameInterval is the time one bitmap animation frame stays on screen.
func (c *Config) FrameInterval() time.Duration {
	if c.PointCloud.FPS <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / c.PointCloud.FPS)
}

// parseDuration is only used on validated values; an unparsable string
// yields zero.
func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
