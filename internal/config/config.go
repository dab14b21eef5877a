// Package config provides configuration management for cortexrig
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/normanking/cortexrig/internal/logging"
	"github.com/normanking/cortexrig/internal/retarget"
	"github.com/normanking/cortexrig/internal/viseme"
)

// EnvPrefix prefixes environment overrides, e.g. CORTEXRIG_ENGINE_FPS.
const EnvPrefix = "CORTEXRIG"

var ErrInvalid = errors.New("invalid config")

// Config holds all engine configuration
type Config struct {
	Log     logging.Config `mapstructure:"log" yaml:"log"`
	Clips   ClipsConfig    `mapstructure:"clips" yaml:"clips"`
	LipSync LipSyncConfig  `mapstructure:"lipsync" yaml:"lipsync"`
	Engine  EngineConfig   `mapstructure:"engine" yaml:"engine"`
}

// ClipsConfig configures clip loading, retargeting and the rotation classes
type ClipsConfig struct {
	Dir     string   `mapstructure:"dir" yaml:"dir"`
	Idle    []string `mapstructure:"idle" yaml:"idle"`
	Talking []string `mapstructure:"talking" yaml:"talking"`
	// Exclude lists bones to drop per clip name, e.g. the jaw of talking clips.
	Exclude     map[string][]string `mapstructure:"exclude" yaml:"exclude"`
	Prefixes    []string            `mapstructure:"prefixes" yaml:"prefixes"`
	FadeSeconds float32             `mapstructure:"fade_seconds" yaml:"fade_seconds"`
	Watch       bool                `mapstructure:"watch" yaml:"watch"`
}

// LipSyncConfig configures the viseme blender
type LipSyncConfig struct {
	viseme.Params `mapstructure:",squash" yaml:",inline"`
	ProfilesFile  string `mapstructure:"profiles_file" yaml:"profiles_file"`
}

// EngineConfig configures the frame loop
type EngineConfig struct {
	Debug          bool   `mapstructure:"debug" yaml:"debug"` // panic on retarget invariant violations
	FPS            int    `mapstructure:"fps" yaml:"fps"`
	DefaultEmotion string `mapstructure:"default_emotion" yaml:"default_emotion"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Log: logging.DefaultConfig(),
		Clips: ClipsConfig{
			Dir:     "clips",
			Idle:    []string{"idle", "breathing"},
			Talking: []string{"talking", "talking2"},
			Exclude: map[string][]string{
				"talking":  {"Jaw"},
				"talking2": {"Jaw"},
			},
			Prefixes:    append([]string(nil), retarget.DefaultPrefixes...),
			FadeSeconds: 0.5,
		},
		LipSync: LipSyncConfig{Params: viseme.DefaultParams()},
		Engine: EngineConfig{
			FPS:            60,
			DefaultEmotion: viseme.Neutral,
		},
	}
}

// ExcludeFor returns the bone exclusions of a clip. Viper lower-cases map
// keys, so the lookup falls back to the lower-cased name.
func (c ClipsConfig) ExcludeFor(clip string) []string {
	if ex, ok := c.Exclude[clip]; ok {
		return ex
	}
	return c.Exclude[strings.ToLower(clip)]
}

// Names returns every clip named by the rotation classes, idle first.
func (c ClipsConfig) Names() []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range append(append([]string(nil), c.Idle...), c.Talking...) {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// Validate checks ranges the engine depends on.
func (c *Config) Validate() error {
	var errs []error
	if c.Clips.FadeSeconds < 0 {
		errs = append(errs, fmt.Errorf("clips.fade_seconds must be >= 0"))
	}
	s := c.LipSync.Smoothing
	if s.LipRate <= 0 || s.JawRate <= 0 || s.ExpressionRate <= 0 || s.BlinkRate <= 0 || s.DecayRate <= 0 {
		errs = append(errs, fmt.Errorf("lipsync.smoothing rates must be > 0"))
	}
	b := c.LipSync.Blink
	if b.MinInterval <= b.Duration || b.MaxInterval < b.MinInterval {
		errs = append(errs, fmt.Errorf("lipsync.blink needs duration < min_interval <= max_interval"))
	}
	if f := c.LipSync.MouthEmotionFactor; f < 0 || f > 1 {
		errs = append(errs, fmt.Errorf("lipsync.mouth_emotion_factor must be in [0,1]"))
	}
	if fb := c.LipSync.Fallback; fb.Floor < 0 || fb.Floor > 1 {
		errs = append(errs, fmt.Errorf("lipsync.fallback.floor must be in [0,1]"))
	}
	if c.Engine.FPS <= 0 {
		errs = append(errs, fmt.Errorf("engine.fps must be > 0"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	setDefaults(v, DefaultConfig())
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("log.level", string(d.Log.Level))
	v.SetDefault("log.dir", d.Log.Dir)
	v.SetDefault("log.console", d.Log.Console)
	v.SetDefault("log.json", d.Log.JSON)

	v.SetDefault("clips.dir", d.Clips.Dir)
	v.SetDefault("clips.idle", d.Clips.Idle)
	v.SetDefault("clips.talking", d.Clips.Talking)
	v.SetDefault("clips.exclude", d.Clips.Exclude)
	v.SetDefault("clips.prefixes", d.Clips.Prefixes)
	v.SetDefault("clips.fade_seconds", d.Clips.FadeSeconds)
	v.SetDefault("clips.watch", d.Clips.Watch)

	l := d.LipSync
	v.SetDefault("lipsync.profiles_file", l.ProfilesFile)
	v.SetDefault("lipsync.mouth_emotion_factor", l.MouthEmotionFactor)
	v.SetDefault("lipsync.lookup.hold_window", l.Lookup.HoldWindow)
	v.SetDefault("lipsync.lookup.end_guard", l.Lookup.EndGuard)
	v.SetDefault("lipsync.fallback.jaw_amplitude", l.Fallback.JawAmplitude)
	v.SetDefault("lipsync.fallback.lip_amplitude", l.Fallback.LipAmplitude)
	v.SetDefault("lipsync.fallback.floor", l.Fallback.Floor)
	v.SetDefault("lipsync.fallback.decay_seconds", l.Fallback.DecaySeconds)
	v.SetDefault("lipsync.fallback.base_frequency", l.Fallback.BaseFrequency)
	v.SetDefault("lipsync.smoothing.lip_rate", l.Smoothing.LipRate)
	v.SetDefault("lipsync.smoothing.jaw_rate", l.Smoothing.JawRate)
	v.SetDefault("lipsync.smoothing.expression_rate", l.Smoothing.ExpressionRate)
	v.SetDefault("lipsync.smoothing.blink_rate", l.Smoothing.BlinkRate)
	v.SetDefault("lipsync.smoothing.decay_rate", l.Smoothing.DecayRate)
	v.SetDefault("lipsync.blink.min_interval", l.Blink.MinInterval)
	v.SetDefault("lipsync.blink.max_interval", l.Blink.MaxInterval)
	v.SetDefault("lipsync.blink.duration", l.Blink.Duration)
	v.SetDefault("lipsync.blink.drift_period", l.Blink.DriftPeriod)

	v.SetDefault("engine.debug", d.Engine.Debug)
	v.SetDefault("engine.fps", d.Engine.FPS)
	v.SetDefault("engine.default_emotion", d.Engine.DefaultEmotion)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads configuration from a YAML file merged over defaults and
// environment overrides. An empty path uses defaults and environment only.
func Load(path string) (*Config, error) {
	v := newViper(path)
	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return decode(v)
}

// Watch loads path and calls onChange with every valid revision written
// afterwards. Invalid revisions are logged and skipped.
func Watch(path string, log zerolog.Logger, onChange func(*Config)) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: watch needs a config file", ErrInvalid)
	}
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		next, err := decode(v)
		if err != nil {
			log.Warn().Err(err).Str("file", e.Name).Msg("Ignoring invalid config change")
			return
		}
		log.Info().Str("file", e.Name).Msg("Config reloaded")
		onChange(next)
	})
	v.WatchConfig()
	return cfg, nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
