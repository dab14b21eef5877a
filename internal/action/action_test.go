package action

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/cortexrig/internal/clip"
	"github.com/normanking/cortexrig/internal/retarget"
	"github.com/normanking/cortexrig/internal/skeleton"
)

func constClip(name string, duration float32, bone string, prop clip.Property, value ...float32) *retarget.Clip {
	values := append(append([]float32(nil), value...), value...)
	return &retarget.Clip{
		Name:     name,
		Duration: duration,
		Tracks: []clip.Track{{
			Bone:          bone,
			Property:      prop,
			Interpolation: clip.Linear,
			Times:         []float32{0, duration},
			Values:        values,
		}},
	}
}

func newTestManager() *Manager {
	m := NewManager([]string{"talking"}, zerolog.Nop())
	m.Add(constClip("idle", 1, "Hips", clip.Translation, 1, 1, 0))
	m.Add(constClip("breathing", 2, "Hips", clip.Translation, 0, 2, 0))
	m.Add(constClip("talking", 1, "Hips", clip.Translation, 0, 0, 1))
	return m
}

func TestManager_CrossFade(t *testing.T) {
	m := newTestManager()
	require.True(t, m.Play("idle", 0))
	assert.Equal(t, float32(1), m.Action("idle").Weight)

	require.True(t, m.Play("talking", 0.5))
	m.Tick(0.25)
	assert.InDelta(t, 0.5, m.Action("idle").Weight, 1e-6)
	assert.InDelta(t, 0.5, m.Action("talking").Weight, 1e-6)

	m.Tick(0.25)
	assert.InDelta(t, 0, m.Action("idle").Weight, 1e-6)
	assert.InDelta(t, 1, m.Action("talking").Weight, 1e-6)
	assert.False(t, m.Action("idle").Running)
	assert.Equal(t, "talking", m.Current().Name)
}

func TestManager_OnceClampsAndFinishes(t *testing.T) {
	m := newTestManager()
	require.True(t, m.Play("idle", 0))
	assert.Equal(t, LoopOnce, m.Action("idle").Loop)

	assert.False(t, m.Tick(0.6))
	assert.True(t, m.Tick(0.6))
	assert.True(t, m.CurrentFinished())
	assert.Equal(t, float32(1), m.Action("idle").Playhead)

	require.True(t, m.Play("idle", 0), "a finished current action restarts")
	assert.False(t, m.CurrentFinished())
	assert.Equal(t, float32(0), m.Action("idle").Playhead)
}

func TestManager_TalkingRepeats(t *testing.T) {
	m := newTestManager()
	require.True(t, m.Play("talking", 0))
	assert.Equal(t, LoopRepeat, m.Action("talking").Loop)

	assert.False(t, m.Tick(1.5))
	assert.InDelta(t, 0.5, m.Action("talking").Playhead, 1e-5)
	assert.False(t, m.CurrentFinished())
}

func TestManager_PlayRunningIsNoop(t *testing.T) {
	m := newTestManager()
	require.True(t, m.Play("talking", 0))
	m.Tick(0.3)
	require.True(t, m.Play("talking", 0.5))
	assert.InDelta(t, 0.3, m.Action("talking").Playhead, 1e-6)
}

func TestManager_RefusesUnknownAndEmpty(t *testing.T) {
	m := newTestManager()
	m.Add(&retarget.Clip{Name: "tail", Duration: 1})

	assert.False(t, m.Play("missing", 0))
	assert.False(t, m.Play("tail", 0))
	assert.False(t, m.Playable("tail"))
	assert.True(t, m.Has("tail"))
	assert.Nil(t, m.Current())
}

func TestManager_Stop(t *testing.T) {
	m := newTestManager()
	require.True(t, m.Play("talking", 0))

	m.Stop("talking", 0.5)
	assert.Nil(t, m.Current())
	m.Tick(0.25)
	assert.InDelta(t, 0.5, m.Action("talking").Weight, 1e-6)
	assert.True(t, m.Action("talking").Running)

	m.Tick(0.25)
	assert.InDelta(t, 0, m.Action("talking").Weight, 1e-6)
	assert.False(t, m.Action("talking").Running)

	assert.NotPanics(t, func() { m.Stop("missing", 0.5) })
	assert.Nil(t, m.Current())
}

func TestManager_ResetAndClear(t *testing.T) {
	m := newTestManager()
	m.Play("idle", 0)
	m.Tick(0.2)

	m.Reset()
	assert.Nil(t, m.Current())
	assert.Equal(t, float32(0), m.Action("idle").Weight)
	assert.Len(t, m.Names(), 3)

	m.Clear()
	assert.Empty(t, m.Names())
	assert.False(t, m.Has("idle"))
}

func TestManager_PoseBlendsWithBind(t *testing.T) {
	skel := skeleton.New("s", []skeleton.Bone{
		{Name: "Hips", Parent: -1, Local: skeleton.Transform{
			Translation: mgl32.Vec3{0, 1, 0},
			Rotation:    mgl32.QuatIdent(),
			Scale:       mgl32.Vec3{1, 1, 1},
		}},
		{Name: "Spine", Parent: 0, Local: skeleton.IdentityTransform()},
	})
	m := newTestManager()

	rest := m.Pose(skel)
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, rest["Hips"].Translation)

	m.Play("idle", 1)
	m.Tick(0.5)
	pose := m.Pose(skel)
	hips := pose["Hips"].Translation
	assert.InDelta(t, 0.5, hips.X(), 1e-5)
	assert.InDelta(t, 1, hips.Y(), 1e-5)
	assert.InDelta(t, 0, hips.Z(), 1e-5)
	assert.Equal(t, skeleton.IdentityTransform(), pose["Spine"])
}

func TestManager_PoseRotation(t *testing.T) {
	skel := skeleton.New("s", []skeleton.Bone{{Name: "Head", Parent: -1, Local: skeleton.IdentityTransform()}})
	q := mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0})
	m := NewManager(nil, zerolog.Nop())
	m.Add(constClip("nod", 1, "Head", clip.Rotation, q.V.X(), q.V.Y(), q.V.Z(), q.W))

	require.True(t, m.Play("nod", 0))
	m.Tick(0.1)
	got := m.Pose(skel)["Head"].Rotation
	assert.True(t, got.ApproxEqualThreshold(q, 1e-4), "got %v want %v", got, q)
}
