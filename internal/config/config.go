package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

type Config struct {
	Stage      StageConfig      `toml:"stage"`
	Session    SessionConfig    `toml:"session"`
	Placement  PlacementConfig  `toml:"placement"`
	Animation  AnimationConfig  `toml:"animation"`
	Assets     AssetsConfig     `toml:"assets"`
	Milestones MilestonesConfig `toml:"milestones"`
	Journal    JournalConfig    `toml:"journal"`
	Control    ControlConfig    `toml:"control"`
	Scenario   ScenarioConfig   `toml:"scenario"`
	Logging    LoggingConfig    `toml:"logging"`
}

type StageConfig struct {
	TickRate     time.Duration `toml:"tick_rate" env:"ARSTAGE_TICK_RATE"`
	TickDuration float64       `toml:"tick_duration"` // animation seconds per tick at time scale 1
}

type SessionConfig struct {
	RequiredFeatures []string `toml:"required_features"`
	OptionalFeatures []string `toml:"optional_features"`
	AutoStart        bool     `toml:"auto_start" env:"ARSTAGE_AUTO_START"`
}

type PlacementConfig struct {
	Template      string     `toml:"template"`
	Scale         float64    `toml:"scale"`          // multiplies the template base scale
	Offset        [3]float64 `toml:"offset"`         // added to the hit position
	PositionScale float64    `toml:"position_scale"` // applied after Offset
	PostOffset    [3]float64 `toml:"post_offset"`    // added after PositionScale
	FaceViewer    bool       `toml:"face_viewer"`
	TiltRadians   float64    `toml:"tilt_radians"` // extra rotation about local X after facing
	FallStep      float64    `toml:"fall_step"`    // meters per tick
	Floor         float64    `toml:"floor"`
	Animate       bool       `toml:"animate"` // give each clone its own clip track
}

type AnimationConfig struct {
	TracksFile       string  `toml:"tracks_file"`
	DefaultTimeScale float64 `toml:"default_time_scale"`
}

type AssetsConfig struct {
	Manifest string `toml:"manifest"`
	Root     string `toml:"root" env:"ARSTAGE_ASSET_ROOT"`
}

type MilestonesConfig struct {
	File       string `toml:"file"`
	ScriptsDir string `toml:"scripts_dir"`
}

type JournalConfig struct {
	DSN                string        `toml:"dsn" env:"ARSTAGE_JOURNAL_DSN"`
	MaxOpenConns       int           `toml:"max_open_conns"`
	MaxIdleConns       int           `toml:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `toml:"conn_max_lifetime"`
	FlushIntervalTicks int           `toml:"flush_interval_ticks"`
	MaxBuffered        int           `toml:"max_buffered"` // entries held while the journal is failing
}

// Enabled reports whether a journal database is configured.
func (c JournalConfig) Enabled() bool { return c.DSN != "" }

type ControlConfig struct {
	BindAddress string `toml:"bind_address" env:"ARSTAGE_BIND_ADDRESS"`
	QueueSize   int    `toml:"queue_size"`
}

type ScenarioConfig struct {
	File string `toml:"file" env:"ARSTAGE_SCENARIO"`
}

type LoggingConfig struct {
	Level  string `toml:"level" env:"ARSTAGE_LOG_LEVEL"`
	Format string `toml:"format" env:"ARSTAGE_LOG_FORMAT"` // "json" or "console"
}

// Load reads the TOML file at path over the defaults, then applies
// ARSTAGE_* environment overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings the tick loop cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Stage.TickRate <= 0 {
		errs = append(errs, errors.New("stage.tick_rate must be positive"))
	}
	if c.Stage.TickDuration <= 0 {
		errs = append(errs, errors.New("stage.tick_duration must be positive"))
	}
	if c.Placement.FallStep < 0 {
		errs = append(errs, errors.New("placement.fall_step must not be negative"))
	}
	if math.IsNaN(c.Placement.Floor) || math.IsInf(c.Placement.Floor, 0) {
		errs = append(errs, errors.New("placement.floor must be finite"))
	}
	if c.Placement.Scale <= 0 || c.Placement.PositionScale <= 0 {
		errs = append(errs, errors.New("placement.scale and placement.position_scale must be positive"))
	}
	if c.Control.QueueSize <= 0 {
		errs = append(errs, errors.New("control.queue_size must be positive"))
	}
	if c.Journal.FlushIntervalTicks <= 0 {
		errs = append(errs, errors.New("journal.flush_interval_ticks must be positive"))
	}
	if c.Journal.MaxBuffered <= 0 {
		errs = append(errs, errors.New("journal.max_buffered must be positive"))
	}
	return errors.Join(errs...)
}

func Defaults() *Config {
	return &Config{
		Stage: StageConfig{
			TickRate:     50 * time.Millisecond,
			TickDuration: 0.05,
		},
		Session: SessionConfig{
			RequiredFeatures: []string{"hit-test"},
			OptionalFeatures: []string{"dom-overlay"},
			AutoStart:        true,
		},
		Placement: PlacementConfig{
			Scale:         1,
			PositionScale: 1,
			FaceViewer:    true,
			FallStep:      0.1,
			Floor:         -1,
		},
		Animation: AnimationConfig{
			TracksFile:       "data/yaml/tracks.yaml",
			DefaultTimeScale: 1,
		},
		Assets: AssetsConfig{
			Manifest: "data/yaml/assets.yaml",
		},
		Milestones: MilestonesConfig{
			File:       "data/yaml/milestones.yaml",
			ScriptsDir: "scripts",
		},
		Journal: JournalConfig{
			MaxOpenConns:       4,
			MaxIdleConns:       1,
			ConnMaxLifetime:    30 * time.Minute,
			FlushIntervalTicks: 100,
			MaxBuffered:        10000,
		},
		Control: ControlConfig{
			BindAddress: "127.0.0.1:7080",
			QueueSize:   128,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
