// Package config loads facegate settings from a YAML file and FACEGATE_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env"
	"gopkg.in/yaml.v3"

	"github.com/ayusman/facegate/internal/detector"
	"github.com/ayusman/facegate/internal/embed"
	"github.com/ayusman/facegate/internal/engine"
	"github.com/ayusman/facegate/internal/match"
)

// Config holds every runtime setting. Environment variables override the
// YAML file, which overrides Default.
type Config struct {
	DataDir  string `yaml:"data_dir" env:"FACEGATE_DATA_DIR"`
	DBPath   string `yaml:"db_path" env:"FACEGATE_DB_PATH"`
	HooksDir string `yaml:"hooks_dir" env:"FACEGATE_HOOKS_DIR"`
	WebDir   string `yaml:"web_dir" env:"FACEGATE_WEB_DIR"`
	Addr     string `yaml:"addr" env:"FACEGATE_ADDR"`

	// Camera is a device index or a stream URL.
	Camera string `yaml:"camera" env:"FACEGATE_CAMERA"`
	FPS    int    `yaml:"fps" env:"FACEGATE_FPS"`

	// Backend selects the inference runtime: dnn or ort.
	Backend string `yaml:"backend" env:"FACEGATE_BACKEND"`
	Threads int    `yaml:"threads" env:"FACEGATE_THREADS"`

	DetectorModel  string  `yaml:"detector_model" env:"FACEGATE_DETECTOR_MODEL"`
	InputWidth     int     `yaml:"input_width" env:"FACEGATE_INPUT_WIDTH"`
	InputHeight    int     `yaml:"input_height" env:"FACEGATE_INPUT_HEIGHT"`
	ConfThreshold  float32 `yaml:"conf_threshold" env:"FACEGATE_CONF_THRESHOLD"`
	IoUThreshold   float32 `yaml:"iou_threshold" env:"FACEGATE_IOU_THRESHOLD"`
	Selection      string  `yaml:"selection" env:"FACEGATE_SELECTION"`
	EmbedderModel  string  `yaml:"embedder_model" env:"FACEGATE_EMBEDDER_MODEL"`
	EmbeddingDim   int     `yaml:"embedding_dim" env:"FACEGATE_EMBEDDING_DIM"`
	EmbedderOutput string  `yaml:"embedder_output" env:"FACEGATE_EMBEDDER_OUTPUT"`
	MatchThreshold float64 `yaml:"match_threshold" env:"FACEGATE_MATCH_THRESHOLD"`

	// AutoRecognize runs recognition whenever someone is in front of the
	// camera.
	AutoRecognize     bool          `yaml:"auto_recognize" env:"FACEGATE_AUTO_RECOGNIZE"`
	Cooldown          time.Duration `yaml:"cooldown" env:"FACEGATE_COOLDOWN"`
	PresenceThreshold float64       `yaml:"presence_threshold" env:"FACEGATE_PRESENCE_THRESHOLD"`
	HookTimeout       time.Duration `yaml:"hook_timeout" env:"FACEGATE_HOOK_TIMEOUT"`
}

// Default returns the built-in configuration rooted at ~/.facegate.
func Default() Config {
	dataDir := ".facegate"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".facegate")
	}

	anchors := detector.DefaultAnchorConfig()
	return Config{
		DataDir:           dataDir,
		Addr:              ":8080",
		Camera:            "0",
		FPS:               5,
		Backend:           "dnn",
		Threads:           1,
		InputWidth:        anchors.Width,
		InputHeight:       anchors.Height,
		ConfThreshold:     detector.DefaultDecodeParams().ConfThreshold,
		IoUThreshold:      detector.DefaultIoUThreshold,
		Selection:         detector.SelectLargest.String(),
		EmbeddingDim:      embed.DefaultConfig().Dim,
		EmbedderOutput:    embed.DefaultConfig().Output,
		MatchThreshold:    match.DefaultThreshold,
		AutoRecognize:     false,
		Cooldown:          3 * time.Second,
		PresenceThreshold: 0.02,
		HookTimeout:       5 * time.Second,
	}
}

// Load reads path (skipped when empty) over Default, applies environment
// overrides, fills derived paths and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	cfg.fill()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) fill() {
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "facegate.db")
	}
	if c.HooksDir == "" {
		c.HooksDir = filepath.Join(c.DataDir, "hooks")
	}
	if c.DetectorModel == "" {
		c.DetectorModel = filepath.Join(c.DataDir, "models", "retinaface.onnx")
	}
	if c.EmbedderModel == "" {
		c.EmbedderModel = filepath.Join(c.DataDir, "models", "arcface.onnx")
	}
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error

	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if c.FPS <= 0 {
		errs = append(errs, fmt.Errorf("fps must be positive, got %d", c.FPS))
	}
	if c.ConfThreshold < 0 || c.ConfThreshold > 1 {
		errs = append(errs, fmt.Errorf("conf_threshold must be in [0, 1], got %v", c.ConfThreshold))
	}
	if c.IoUThreshold <= 0 || c.IoUThreshold > 1 {
		errs = append(errs, fmt.Errorf("iou_threshold must be in (0, 1], got %v", c.IoUThreshold))
	}
	if c.MatchThreshold <= 0 || c.MatchThreshold > 1 {
		errs = append(errs, fmt.Errorf("match_threshold must be in (0, 1], got %v", c.MatchThreshold))
	}
	if c.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("embedding_dim must be positive, got %d", c.EmbeddingDim))
	}
	if _, err := detector.ParseSelectionPolicy(c.Selection); err != nil {
		errs = append(errs, err)
	}
	if err := c.DetectorConfig().Anchors.Validate(); err != nil {
		errs = append(errs, err)
	}
	switch c.Backend {
	case "", "dnn", "opencv", "ort", "onnxruntime":
	default:
		errs = append(errs, fmt.Errorf("%w: %q", engine.ErrUnknownBackend, c.Backend))
	}
	if c.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("cooldown must not be negative, got %s", c.Cooldown))
	}
	if c.PresenceThreshold < 0 || c.PresenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("presence_threshold must be in [0, 1], got %v", c.PresenceThreshold))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// DetectorConfig returns the detector settings.
func (c Config) DetectorConfig() detector.Config {
	dc := detector.DefaultConfig()
	dc.Anchors.Width = c.InputWidth
	dc.Anchors.Height = c.InputHeight
	dc.Decode.ConfThreshold = c.ConfThreshold
	dc.IoUThreshold = c.IoUThreshold
	return dc
}

// DetectorModelConfig returns the engine settings for the detector.
func (c Config) DetectorModelConfig() engine.ModelConfig {
	mc := detector.ModelConfig(c.Backend, c.DetectorModel, c.DetectorConfig())
	mc.Threads = c.Threads
	return mc
}

// EmbedConfig returns the embedding model settings.
func (c Config) EmbedConfig() embed.Config {
	ec := embed.DefaultConfig()
	ec.Dim = c.EmbeddingDim
	ec.Output = c.EmbedderOutput
	return ec
}

// EmbedderModelConfig returns the engine settings for the embedder.
func (c Config) EmbedderModelConfig() engine.ModelConfig {
	mc := embed.ModelConfig(c.Backend, c.EmbedderModel, c.EmbedConfig())
	mc.Threads = c.Threads
	return mc
}

// SelectionPolicy returns the parsed face selection policy.
func (c Config) SelectionPolicy() detector.SelectionPolicy {
	p, _ := detector.ParseSelectionPolicy(c.Selection)
	return p
}

// Fingerprint identifies the embedding model the stored faces depend on.
func (c Config) Fingerprint() string {
	return fmt.Sprintf("%s:%d", filepath.Base(c.EmbedderModel), c.EmbeddingDim)
}

// EnsureDirs creates the data and hooks directories.
func (c Config) EnsureDirs() error {
	for _, dir := range []string{c.DataDir, filepath.Dir(c.DBPath), c.HooksDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
