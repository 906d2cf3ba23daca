// Package config loads the handbow configuration from a YAML file, a .env
// file and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ayusman/handbow/internal/bow"
	"github.com/ayusman/handbow/internal/capture"
	"github.com/ayusman/handbow/internal/control"
	"github.com/ayusman/handbow/internal/detector"
	"github.com/ayusman/handbow/internal/game"
	"github.com/ayusman/handbow/internal/geom"
	"github.com/ayusman/handbow/internal/physics"
	"github.com/ayusman/handbow/internal/scoring"
)

// ErrInvalid is returned when a configuration value is out of range.
var ErrInvalid = errors.New("invalid configuration")

// Environment variables that override the file.
const (
	EnvCamera    = "HANDBOW_CAMERA"
	EnvAddr      = "HANDBOW_ADDR"
	EnvDataDir   = "HANDBOW_DATA_DIR"
	EnvMooerUser = "MOOER_CAM_USER"
	EnvMooerPass = "MOOER_CAM_PASS"
	EnvMooerHost = "MOOER_CAM_IP"
)

const defaultDirName = ".handbow"

// Config is the complete handbow configuration.
type Config struct {
	Screen  ScreenConfig  `yaml:"screen"`
	Camera  CameraConfig  `yaml:"camera"`
	Control ControlConfig `yaml:"control"`
	Bow     BowConfig     `yaml:"bow"`
	Physics PhysicsConfig `yaml:"physics"`
	Target  TargetConfig  `yaml:"target"`
	Session SessionConfig `yaml:"session"`
	Server  ServerConfig  `yaml:"server"`
	Plugins PluginsConfig `yaml:"plugins"`
	DataDir string        `yaml:"data_dir"` // sqlite database and user assets
}

// ScreenConfig is the logical playfield size.
type ScreenConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// CameraConfig selects the camera and tunes the capture worker.
type CameraConfig struct {
	Source          string          `yaml:"source"` // device index, rtsp url, "mooer", "auto" or a video path
	Width           int             `yaml:"width"`
	Height          int             `yaml:"height"`
	FPS             int             `yaml:"fps"`
	IdleFPS         int             `yaml:"idle_fps"`
	ActiveFPS       int             `yaml:"active_fps"`
	IdleAfter       time.Duration   `yaml:"idle_after"`
	StaleAfter      time.Duration   `yaml:"stale_after"`
	MotionThreshold float64         `yaml:"motion_threshold"`
	PreviewQuality  int             `yaml:"preview_quality"`
	Mooer           MooerConfig     `yaml:"mooer"`
	Detector        detector.Config `yaml:"detector"`
}

// MooerConfig holds the pan-tilt camera credentials.
type MooerConfig struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
}

// ControlConfig tunes input smoothing and the pull tracker.
type ControlConfig struct {
	Mirror         bool    `yaml:"mirror"`
	Smoothing      float64 `yaml:"smoothing"`
	MouseSmoothing float64 `yaml:"mouse_smoothing"`
	AnchorFollow   float64 `yaml:"anchor_follow"`
	MinConfidence  float64 `yaml:"min_confidence"`
}

// BowConfig tunes the draw and release detection.
type BowConfig struct {
	PullThreshold    float64 `yaml:"pull_threshold"`
	ReleaseThreshold float64 `yaml:"release_threshold"`
	PowerPerPixel    float64 `yaml:"power_per_pixel"`
	MinPower         float64 `yaml:"min_power"`
	MaxPower         float64 `yaml:"max_power"`
	AbandonTicks     int     `yaml:"abandon_ticks"`
}

// PhysicsConfig describes the flight simulation.
type PhysicsConfig struct {
	OriginX       float64 `yaml:"origin_x"`
	OriginY       float64 `yaml:"origin_y"`
	Gravity       float64 `yaml:"gravity"`
	VelocityScale float64 `yaml:"velocity_scale"`
	GroundY       float64 `yaml:"ground_y"`
	BoardStrike   bool    `yaml:"board_strike"` // stop arrows at the target board plane
	TrailLength   int     `yaml:"trail_length"`
}

// TargetConfig describes the target face.
type TargetConfig struct {
	X     float64        `yaml:"x"`
	Y     float64        `yaml:"y"`
	Rings []scoring.Ring `yaml:"rings"`
}

// SessionConfig holds the per-round settings.
type SessionConfig struct {
	Arrows int `yaml:"arrows"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr   string `yaml:"addr"`
	WebDir string `yaml:"web_dir"` // empty searches the usual locations
}

// PluginsConfig configures event plugins.
type PluginsConfig struct {
	Dir       string        `yaml:"dir"`
	Timeout   time.Duration `yaml:"timeout"`
	QueueSize int           `yaml:"queue_size"`
}

// Default returns the complete default configuration.
func Default() *Config {
	ctl := control.DefaultConfig()
	b := bow.DefaultConfig()
	phys := physics.DefaultConfig()
	worker := capture.DefaultWorkerConfig()

	return &Config{
		Screen: ScreenConfig{Width: ctl.ScreenWidth, Height: ctl.ScreenHeight},
		Camera: CameraConfig{
			Source:          string(capture.SourceAuto),
			Width:           capture.DefaultWidth,
			Height:          capture.DefaultHeight,
			FPS:             capture.DefaultFPS,
			IdleFPS:         worker.IdleFPS,
			ActiveFPS:       worker.ActiveFPS,
			IdleAfter:       worker.IdleAfter,
			StaleAfter:      worker.StaleAfter,
			MotionThreshold: worker.MotionThreshold,
			PreviewQuality:  worker.PreviewQuality,
			Mooer:           MooerConfig{User: "admin", Password: "password", Host: "192.168.1.55"},
			Detector:        detector.DefaultConfig(),
		},
		Control: ControlConfig{
			Mirror:         ctl.Mirror,
			Smoothing:      ctl.Smoothing,
			MouseSmoothing: ctl.MouseSmoothing,
			AnchorFollow:   ctl.AnchorFollow,
			MinConfidence:  ctl.MinConfidence,
		},
		Bow: BowConfig{
			PullThreshold:    b.PullThreshold,
			ReleaseThreshold: b.ReleaseThreshold,
			PowerPerPixel:    b.PowerPerPixel,
			MinPower:         b.MinPower,
			MaxPower:         b.MaxPower,
			AbandonTicks:     b.AbandonTicks,
		},
		Physics: PhysicsConfig{
			OriginX:       phys.Origin.X,
			OriginY:       phys.Origin.Y,
			Gravity:       phys.Gravity,
			VelocityScale: phys.VelocityScale,
			GroundY:       phys.GroundY,
			BoardStrike:   true,
			TrailLength:   phys.TrailCapacity,
		},
		Target: TargetConfig{
			X:     scoring.DefaultCenter.X,
			Y:     scoring.DefaultCenter.Y,
			Rings: append([]scoring.Ring(nil), scoring.DefaultRings...),
		},
		Session: SessionConfig{Arrows: game.DefaultArrows},
		Server:  ServerConfig{Addr: ":8080"},
		Plugins: PluginsConfig{Dir: "plugins", Timeout: 5 * time.Second, QueueSize: 64},
		DataDir: defaultDataDir(),
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultDirName
	}
	return filepath.Join(home, defaultDirName)
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.ApplyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv loads variables from the given .env files into the process
// environment. Missing files are ignored; variables already set win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides file values with environment variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvCamera); v != "" {
		c.Camera.Source = v
	}
	if v := getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
	if v := getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := getenv(EnvMooerUser); v != "" {
		c.Camera.Mooer.User = v
	}
	if v := getenv(EnvMooerPass); v != "" {
		c.Camera.Mooer.Password = v
	}
	if v := getenv(EnvMooerHost); v != "" {
		c.Camera.Mooer.Host = v
	}
}

// Validate checks every section and wraps the first problem in ErrInvalid.
func (c *Config) Validate() error {
	if !finite(c.Screen.Width, c.Screen.Height) || c.Screen.Width <= 0 || c.Screen.Height <= 0 {
		return fmt.Errorf("%w: screen size %vx%v", ErrInvalid, c.Screen.Width, c.Screen.Height)
	}
	if _, err := c.Source(); err != nil {
		return fmt.Errorf("%w: camera: %v", ErrInvalid, err)
	}
	if c.Camera.PreviewQuality < 0 || c.Camera.PreviewQuality > 100 {
		return fmt.Errorf("%w: preview quality %d", ErrInvalid, c.Camera.PreviewQuality)
	}
	if err := c.Tuning().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := c.BowConfig().Validate(); err != nil {
		return fmt.Errorf("%w: bow: %v", ErrInvalid, err)
	}
	p := c.Physics
	if !finite(p.OriginX, p.OriginY, p.Gravity, p.VelocityScale, p.GroundY) {
		return fmt.Errorf("%w: physics values must be finite", ErrInvalid)
	}
	if p.Gravity <= 0 || p.VelocityScale <= 0 {
		return fmt.Errorf("%w: gravity and velocity scale must be positive", ErrInvalid)
	}
	if p.TrailLength < 1 {
		return fmt.Errorf("%w: trail length must be at least 1, got %d", ErrInvalid, p.TrailLength)
	}
	if _, err := c.Target.target(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Session.Arrows <= 0 {
		return fmt.Errorf("%w: session needs at least one arrow, got %d", ErrInvalid, c.Session.Arrows)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server address is empty", ErrInvalid)
	}
	if c.Plugins.QueueSize < 0 || c.Plugins.Timeout < 0 {
		return fmt.Errorf("%w: plugin queue and timeout must not be negative", ErrInvalid)
	}
	return nil
}

// MooerURL returns the pan-tilt camera stream URL.
func (c *Config) MooerURL() string {
	m := c.Camera.Mooer
	return capture.MooerURL(m.User, m.Password, m.Host)
}

// Source returns the configured camera source.
func (c *Config) Source() (capture.Source, error) {
	src, err := capture.ParseSource(c.Camera.Source, c.MooerURL())
	if err != nil {
		return capture.Source{}, err
	}
	src.Width, src.Height, src.FPS = c.Camera.Width, c.Camera.Height, c.Camera.FPS
	if err := src.Validate(); err != nil {
		return capture.Source{}, err
	}
	return src, nil
}

// WorkerConfig returns the capture worker settings.
func (c *Config) WorkerConfig() capture.WorkerConfig {
	return capture.WorkerConfig{
		IdleFPS:         c.Camera.IdleFPS,
		ActiveFPS:       c.Camera.ActiveFPS,
		IdleAfter:       c.Camera.IdleAfter,
		StaleAfter:      c.Camera.StaleAfter,
		MotionThreshold: c.Camera.MotionThreshold,
		PreviewQuality:  c.Camera.PreviewQuality,
	}
}

// ControlConfig returns the input extractor settings.
func (c *Config) ControlConfig() control.Config {
	return control.Config{
		ScreenWidth:    c.Screen.Width,
		ScreenHeight:   c.Screen.Height,
		Mirror:         c.Control.Mirror,
		Smoothing:      c.Control.Smoothing,
		MouseSmoothing: c.Control.MouseSmoothing,
		AnchorFollow:   c.Control.AnchorFollow,
		MinConfidence:  c.Control.MinConfidence,
	}
}

// BowConfig returns the draw state machine settings.
func (c *Config) BowConfig() bow.Config {
	return bow.Config{
		PullThreshold:    c.Bow.PullThreshold,
		ReleaseThreshold: c.Bow.ReleaseThreshold,
		PowerPerPixel:    c.Bow.PowerPerPixel,
		MinPower:         c.Bow.MinPower,
		MaxPower:         c.Bow.MaxPower,
		AbandonTicks:     c.Bow.AbandonTicks,
	}
}

// GameConfig returns the session settings with the physics playfield
// sized to the screen.
func (c *Config) GameConfig() (game.Config, error) {
	target, err := c.Target.target()
	if err != nil {
		return game.Config{}, err
	}

	phys := physics.DefaultConfig()
	phys.Origin = geom.Vec2{X: c.Physics.OriginX, Y: c.Physics.OriginY}
	phys.Gravity = c.Physics.Gravity
	phys.VelocityScale = c.Physics.VelocityScale
	phys.GroundY = c.Physics.GroundY
	phys.MinX, phys.MaxX = 0, c.Screen.Width
	phys.TrailCapacity = c.Physics.TrailLength
	if c.Physics.BoardStrike {
		phys.BoardX = target.Center().X
	}

	return game.Config{
		Arrows:  c.Session.Arrows,
		Bow:     c.BowConfig(),
		Physics: phys,
		Target:  target,
	}, nil
}

func (t TargetConfig) target() (*scoring.Target, error) {
	return scoring.NewTarget(geom.Vec2{X: t.X, Y: t.Y}, t.Rings)
}

// DatabasePath returns the sqlite database location inside DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "handbow.db")
}
