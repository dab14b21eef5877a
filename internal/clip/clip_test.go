package clip

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const talkingYAML = `
name: talking
tracks:
  - name: mixamorigHips.position
    times: [0, 1]
    values: [0, 0, 0, 0, 2, 0]
  - bone: mixamorigJaw
    property: quaternion
    times: [0, 2]
    values: [0, 0, 0, 1, 0, 0, 0, 1]
`

const idleJSON = `{
  "name": "idle",
  "duration": 3,
  "tracks": [
    {"name": "mixamorigSpine.scale", "times": [0], "values": [1, 1, 1]}
  ]
}`

func TestSplitTrackName(t *testing.T) {
	tests := []struct {
		in       string
		wantBone string
		wantProp Property
		wantOK   bool
	}{
		{"mixamorigJaw.quaternion", "mixamorigJaw", Rotation, true},
		{"Hips.position", "Hips", Translation, true},
		{"Hips.scale", "Hips", Scale, true},
		{"Hips.translation", "Hips", Translation, true},
		{"Hips", "", "", false},
		{"Hips.morphTargetInfluences", "", "", false},
		{".position", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			bone, prop, ok := SplitTrackName(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantBone, bone)
			assert.Equal(t, tt.wantProp, prop)
		})
	}
}

func TestDecode_YAML(t *testing.T) {
	c, err := Decode("fallback", strings.NewReader(talkingYAML))
	require.NoError(t, err)

	assert.Equal(t, "talking", c.Name)
	assert.InDelta(t, 2, c.Duration, 1e-6, "duration defaults to last keyframe")
	require.Len(t, c.Tracks, 2)
	assert.Equal(t, "mixamorigHips", c.Tracks[0].Bone)
	assert.Equal(t, Translation, c.Tracks[0].Property)
	assert.Equal(t, Linear, c.Tracks[0].Interpolation)
	assert.Equal(t, Rotation, c.Tracks[1].Property)
	assert.Equal(t, []string{"mixamorigHips", "mixamorigJaw"}, c.Bones())
}

func TestDecode_JSON(t *testing.T) {
	c, err := Decode("fallback", strings.NewReader(idleJSON))
	require.NoError(t, err)
	assert.Equal(t, "idle", c.Name)
	assert.InDelta(t, 3, c.Duration, 1e-6)
}

func TestDecode_Invalid(t *testing.T) {
	bad := `
name: broken
tracks:
  - name: Hips.position
    times: [0, 1]
    values: [0, 0, 0]
`
	_, err := Decode("broken", strings.NewReader(bad))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidClip))

	_, err = Decode("x", strings.NewReader("tracks:\n  - name: Hips\n    times: [0]\n    values: [0,0,0]\n"))
	assert.True(t, errors.Is(err, ErrInvalidClip))
}

func TestSample(t *testing.T) {
	c, err := Decode("talking", strings.NewReader(talkingYAML))
	require.NoError(t, err)

	pos := c.Tracks[0]
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, pos.SampleVec3(0.5))
	assert.Equal(t, mgl32.Vec3{0, 0, 0}, pos.SampleVec3(-1))
	assert.Equal(t, mgl32.Vec3{0, 2, 0}, pos.SampleVec3(5))

	pos.Interpolation = Step
	assert.Equal(t, mgl32.Vec3{0, 0, 0}, pos.SampleVec3(0.9))

	rot := c.Tracks[1]
	q := rot.SampleQuat(1)
	assert.InDelta(t, 1, q.W, 1e-5)
}

func TestDirLoaderAndStore(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "talking.yaml"), []byte(talkingYAML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "idle.json"), []byte(idleJSON), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	loader := DirLoader{Dir: dir}
	names, err := loader.Names()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"talking", "idle"}, names)

	store := NewStore(loader, zerolog.Nop())
	loaded, err := store.Preload([]string{"idle", "breathing", "talking"})
	require.NoError(t, err)
	assert.Equal(t, []string{"idle", "talking"}, loaded)

	first, err := store.Get("talking")
	require.NoError(t, err)
	second, err := store.Get("talking")
	require.NoError(t, err)
	assert.Same(t, first, second, "cached clips are shared")

	assert.True(t, store.Evict("talking"))
	third, err := store.Get("talking")
	require.NoError(t, err)
	assert.NotSame(t, first, third)

	_, err = store.Get("breathing")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, []string{"idle", "talking"}, store.Names())
}

func TestStorePutWithoutLoader(t *testing.T) {
	store := NewStore(nil, zerolog.Nop())
	_, err := store.Get("idle")
	assert.True(t, errors.Is(err, ErrNotFound))

	store.Put(&Clip{Name: "idle", Duration: 1})
	c, err := store.Get("idle")
	require.NoError(t, err)
	assert.Equal(t, "idle", c.Name)
}

func TestNameFromPath(t *testing.T) {
	name, ok := NameFromPath("/clips/talking2.json")
	assert.True(t, ok)
	assert.Equal(t, "talking2", name)

	_, ok = NameFromPath("/clips/readme.md")
	assert.False(t, ok)
}

type mapLoader map[string]*Clip

func (m mapLoader) Load(name string) (*Clip, error) {
	if c, ok := m[name]; ok {
		return c, nil
	}
	return nil, ErrNotFound
}

func TestChain(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "talking.yaml"), []byte(talkingYAML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("tracks: [{bone: Hips}]"), 0644))

	embedded := &Clip{Name: "idle", Duration: 1}
	chain := Chain{DirLoader{Dir: dir}, mapLoader{"idle": embedded, "broken": embedded}}

	c, err := chain.Load("talking")
	require.NoError(t, err)
	assert.Equal(t, "talking", c.Name)

	c, err = chain.Load("idle")
	require.NoError(t, err)
	assert.Same(t, embedded, c)

	_, err = chain.Load("broken")
	assert.ErrorIs(t, err, ErrInvalidClip, "a bad file is not skipped")

	_, err = chain.Load("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
