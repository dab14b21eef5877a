package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/cortexrig/internal/logging"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cortexrig.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []string{"idle", "breathing"}, cfg.Clips.Idle)
	assert.Equal(t, []string{"talking", "talking2"}, cfg.Clips.Talking)
	assert.Equal(t, []string{"Jaw"}, cfg.Clips.ExcludeFor("talking"))
	assert.Nil(t, cfg.Clips.ExcludeFor("idle"))
	assert.Equal(t, []string{"idle", "breathing", "talking", "talking2"}, cfg.Clips.Names())
	assert.InDelta(t, 0.3, cfg.LipSync.MouthEmotionFactor, 1e-6)
	assert.Equal(t, 60, cfg.Engine.FPS)
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, def.Clips.Idle, cfg.Clips.Idle)
	assert.Equal(t, def.Clips.Prefixes, cfg.Clips.Prefixes)
	assert.Equal(t, def.LipSync.Smoothing, cfg.LipSync.Smoothing)
	assert.Equal(t, def.LipSync.Blink, cfg.LipSync.Blink)
	assert.Equal(t, logging.LevelInfo, cfg.Log.Level)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
clips:
  dir: /srv/clips
  idle: [idle, breathing, stretch]
  exclude:
    Talking: [Jaw, Tongue]
lipsync:
  mouth_emotion_factor: 0.5
  smoothing:
    jaw_rate: 4
engine:
  debug: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/clips", cfg.Clips.Dir)
	assert.Equal(t, []string{"idle", "breathing", "stretch"}, cfg.Clips.Idle)
	assert.Equal(t, []string{"Jaw", "Tongue"}, cfg.Clips.ExcludeFor("Talking"))
	assert.InDelta(t, 0.5, cfg.LipSync.MouthEmotionFactor, 1e-6)
	assert.InDelta(t, 4, cfg.LipSync.Smoothing.JawRate, 1e-6)
	assert.InDelta(t, 18, cfg.LipSync.Smoothing.LipRate, 1e-6, "unset keys keep defaults")
	assert.True(t, cfg.Engine.Debug)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CORTEXRIG_ENGINE_FPS", "30")
	t.Setenv("CORTEXRIG_LIPSYNC_FALLBACK_FLOOR", "0.5")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Engine.FPS)
	assert.InDelta(t, 0.5, cfg.LipSync.Fallback.Floor, 1e-6)
}

func TestLoad_Invalid(t *testing.T) {
	path := writeFile(t, "engine:\n  fps: 0\nlipsync:\n  mouth_emotion_factor: 2\n")
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestMarshal_RoundTrip(t *testing.T) {
	def := DefaultConfig()
	def.Engine.FPS = 24
	data, err := Marshal(def)
	require.NoError(t, err)

	cfg, err := Load(writeFile(t, string(data)))
	require.NoError(t, err)
	assert.Equal(t, 24, cfg.Engine.FPS)
	assert.Equal(t, def.Clips.Talking, cfg.Clips.Talking)
	assert.Equal(t, def.LipSync.Lookup, cfg.LipSync.Lookup)
}

func TestWatch_InitialLoad(t *testing.T) {
	_, err := Watch("", zerolog.Nop(), func(*Config) {})
	assert.ErrorIs(t, err, ErrInvalid)

	cfg, err := Watch(writeFile(t, "engine:\n  fps: 50\n"), zerolog.Nop(), func(*Config) {})
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Engine.FPS)
}
