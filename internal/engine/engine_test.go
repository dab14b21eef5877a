package engine

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/cortexrig/internal/clip"
	"github.com/normanking/cortexrig/internal/config"
	"github.com/normanking/cortexrig/internal/skeleton"
	"github.com/normanking/cortexrig/internal/syncclock"
	"github.com/normanking/cortexrig/internal/viseme"
)

const dt = float32(1.0 / 60)

type fakeAudio struct {
	id       string
	current  float64
	duration float64
	paused   bool
	ended    bool
}

func (a *fakeAudio) ID() string           { return a.id }
func (a *fakeAudio) CurrentTime() float64 { return a.current }
func (a *fakeAudio) Duration() float64    { return a.duration }
func (a *fakeAudio) Paused() bool         { return a.paused }
func (a *fakeAudio) Ended() bool          { return a.ended }

type recordingRenderer struct {
	morphs map[skeleton.MorphSlot]float32
	poses  int
	bones  map[string]skeleton.Transform
}

func newRecordingRenderer() *recordingRenderer {
	return &recordingRenderer{morphs: make(map[skeleton.MorphSlot]float32)}
}

func (r *recordingRenderer) SetMorphWeight(mesh string, slot int, w float32) {
	r.morphs[skeleton.MorphSlot{Mesh: mesh, Slot: slot}] = w
}

func (r *recordingRenderer) ApplyPose(bones map[string]skeleton.Transform) {
	r.poses++
	r.bones = bones
}

func rotationClip(name string, duration float32, bones ...string) *clip.Clip {
	c := &clip.Clip{Name: name, Duration: duration}
	for _, b := range bones {
		c.Tracks = append(c.Tracks, clip.Track{
			Bone:          b,
			Property:      clip.Rotation,
			Interpolation: clip.Linear,
			Times:         []float32{0, duration},
			Values:        []float32{0, 0, 0, 1, 0, 0, 0, 1},
		})
	}
	return c
}

func testStore() *clip.Store {
	s := clip.NewStore(nil, zerolog.Nop())
	s.Put(rotationClip("idle", 1, "mixamorigHips", "mixamorigSpine"))
	s.Put(rotationClip("breathing", 2, "mixamorigSpine"))
	s.Put(rotationClip("talking", 1, "mixamorigHips", "mixamorigJaw", "mixamorigHead"))
	s.Put(rotationClip("talking2", 1, "mixamorigHead", "mixamorigJaw"))
	return s
}

func testAvatar(id string) *skeleton.Avatar {
	names := []string{"Hips", "Spine", "Neck", "Head", "Jaw"}
	bones := make([]skeleton.Bone, len(names))
	for i, n := range names {
		bones[i] = skeleton.Bone{Name: n, Parent: i - 1, Local: skeleton.IdentityTransform()}
	}
	return &skeleton.Avatar{
		Skeleton: skeleton.New(id, bones),
		Morphs: skeleton.MorphDictionary{
			"Face":  {"jawOpen": 0, "mouthClose": 1, "eyeBlinkLeft": 2, "browDownLeft": 3},
			"Teeth": {"jawOpen": 0},
		},
	}
}

func newTestEngine(r Renderer) *Engine {
	return New(Options{
		Config:   config.DefaultConfig(),
		Clips:    testStore(),
		Renderer: r,
		Log:      zerolog.Nop(),
	})
}

func speech() []syncclock.Phoneme {
	return []syncclock.Phoneme{
		{Start: 0, End: 0.2, Value: "m"},
		{Start: 0.2, End: 0.8, Value: "a"},
	}
}

func TestEngine_BindRequiresSkeleton(t *testing.T) {
	e := newTestEngine(nil)
	assert.ErrorIs(t, e.Bind(nil), ErrNoSkeleton)
	assert.ErrorIs(t, e.Bind(&skeleton.Avatar{}), ErrNoSkeleton)
}

func TestEngine_Bind(t *testing.T) {
	e := newTestEngine(nil)
	require.NoError(t, e.Bind(testAvatar("a")))

	st := e.State()
	assert.Equal(t, "a", st.SkeletonID)
	assert.Equal(t, "idle", st.Locomotion)
	assert.Equal(t, "idle", st.CurrentAction)
	assert.Equal(t, "idle", st.IdleCursor)
	assert.ElementsMatch(t, []string{"idle", "breathing", "talking", "talking2"}, st.Actions)
	assert.Equal(t, 4, st.RetargetCache)
	assert.Contains(t, st.MissingMorphs, "mouthPucker")

	talking := e.Retargeted("talking")
	require.NotNil(t, talking)
	for _, tr := range talking.Clip.Tracks {
		assert.NotEqual(t, "Jaw", tr.Bone, "talking clips never drive the jaw bone")
	}
	assert.Len(t, talking.Clip.Tracks, 2)
}

func TestEngine_SpeakAndReturnToIdle(t *testing.T) {
	r := newRecordingRenderer()
	e := newTestEngine(r)
	require.NoError(t, e.Bind(testAvatar("a")))

	src := &fakeAudio{id: "resp-1", duration: 1.5}
	e.PushPhonemes(speech(), src)

	var frame Frame
	for i := 0; i < 30; i++ {
		src.current = float64(i) * float64(dt)
		frame = e.Tick(dt)
	}

	st := e.State()
	assert.True(t, st.Speaking)
	assert.Equal(t, "speaking", st.Locomotion)
	assert.Equal(t, "talking", st.CurrentAction)
	assert.Equal(t, "active", st.Mouth)
	assert.Greater(t, frame.Blendshapes["jawOpen"], float32(0.1))
	assert.Equal(t, frame.Weights[viseme.JawOpen], frame.Blendshapes["jawOpen"])

	assert.Equal(t, frame.Blendshapes["jawOpen"], r.morphs[skeleton.MorphSlot{Mesh: "Teeth", Slot: 0}])
	assert.Equal(t, 30, r.poses)
	assert.Contains(t, r.bones, "Hips")

	src.ended = true
	e.Tick(dt)
	st = e.State()
	assert.False(t, st.Speaking)
	assert.Equal(t, "idle", st.Locomotion)
	assert.Equal(t, "breathing", st.CurrentAction, "idle rotation moves on from the first idle clip")
	assert.Equal(t, 0.0, st.Sync.Elapsed)
}

func TestEngine_NewResponseRestartsClock(t *testing.T) {
	e := newTestEngine(nil)
	require.NoError(t, e.Bind(testAvatar("a")))

	first := &fakeAudio{id: "resp-1", current: 0.7, duration: 1}
	e.PushPhonemes(speech(), first)
	e.Tick(dt)
	require.InDelta(t, 0.7, e.State().Sync.Elapsed, 1e-9)

	second := []syncclock.Phoneme{{Start: 0.3, End: 0.6, Value: "o"}}
	e.PushPhonemes(second, nil)
	e.Tick(dt)

	st := e.State()
	assert.True(t, st.Sync.TimerMode)
	assert.InDelta(t, float64(dt), st.Sync.Elapsed, 1e-6)
	assert.Equal(t, 2, st.Sync.Responses)
}

func TestEngine_AvatarSwapTearsDown(t *testing.T) {
	e := newTestEngine(nil)
	require.NoError(t, e.Bind(testAvatar("a")))

	src := &fakeAudio{id: "resp-1", current: 0.1, duration: 1}
	e.PushPhonemes(speech(), src)
	e.Tick(dt)
	require.Equal(t, "speaking", e.State().Locomotion)

	require.NoError(t, e.Bind(testAvatar("b")))
	st := e.State()
	assert.Equal(t, "b", st.SkeletonID)
	assert.Equal(t, syncclock.State{}, st.Sync, "audio source and timeline dropped")
	assert.Equal(t, "idle", st.Locomotion)
	assert.Equal(t, "idle", st.IdleCursor)
	assert.Empty(t, st.TalkingCursor)
	assert.Equal(t, 4, st.RetargetCache, "only entries for the new skeleton remain")
	assert.Equal(t, "b", e.Retargeted("idle").Clip.SkeletonID)

	e.Tick(dt)
	assert.False(t, e.State().Speaking)
}

func TestEngine_TickWithoutAvatar(t *testing.T) {
	e := newTestEngine(nil)
	e.SetEmotion("happy")
	frame := e.Tick(dt)

	assert.Nil(t, frame.Bones)
	assert.Nil(t, frame.Blendshapes)
	assert.Equal(t, "happy", e.State().Emotion)
	assert.Equal(t, 0, e.State().Pending)
}

func TestEngine_EmotionOverlay(t *testing.T) {
	e := newTestEngine(nil)
	require.NoError(t, e.Bind(testAvatar("a")))
	e.SetEmotion("angry")

	var frame Frame
	for i := 0; i < 240; i++ {
		frame = e.Tick(dt)
	}
	assert.InDelta(t, 0.6, frame.Blendshapes["browDownLeft"], 1e-3)
	assert.InDelta(t, 0.3, frame.Blendshapes["mouthFrownLeft"], 1e-3)
}

func TestEngine_ClipChanged(t *testing.T) {
	e := newTestEngine(nil)
	require.NoError(t, e.Bind(testAvatar("a")))
	require.Equal(t, "idle", e.State().CurrentAction)

	e.ClipChanged("idle")
	e.Tick(dt)
	st := e.State()
	assert.NotContains(t, st.Actions, "idle", "a clip that no longer loads is dropped")
	assert.Equal(t, "breathing", st.CurrentAction, "losing the current clip rotates to the next idle clip")
	assert.Equal(t, "idle", st.Locomotion)

	for i := 0; i < 600; i++ {
		e.Tick(dt)
	}
	assert.Equal(t, "breathing", e.State().CurrentAction)

	e.ClipChanged("breathing")
	e.Tick(dt)
	st = e.State()
	assert.NotContains(t, st.Actions, "breathing")
	assert.Empty(t, st.CurrentAction, "no idle clip left to play")
	assert.Equal(t, "idle", st.Locomotion)
}

func TestEngine_ClipChangedNotCurrent(t *testing.T) {
	e := newTestEngine(nil)
	require.NoError(t, e.Bind(testAvatar("a")))

	e.ClipChanged("talking2")
	e.Tick(dt)
	st := e.State()
	assert.NotContains(t, st.Actions, "talking2")
	assert.Equal(t, "idle", st.CurrentAction)
}

func TestEngine_BindDropsPendingSpeech(t *testing.T) {
	e := newTestEngine(nil)
	require.NoError(t, e.Bind(testAvatar("a")))

	e.PushPhonemes(speech(), &fakeAudio{id: "resp-1", current: 0.1, duration: 1})
	e.AudioPlay()
	e.SetEmotion("sad")
	require.NoError(t, e.Bind(testAvatar("b")))
	assert.Equal(t, 1, e.State().Pending, "only the emotion survives the swap")

	e.Tick(dt)
	st := e.State()
	assert.False(t, st.Speaking)
	assert.Equal(t, 0, st.Sync.Responses)
	assert.Equal(t, "sad", st.Emotion)
}

func TestEngine_AudioEvents(t *testing.T) {
	e := newTestEngine(nil)
	require.NoError(t, e.Bind(testAvatar("a")))

	e.PushPhonemes(speech(), nil)
	e.AudioSourceReplaced(&fakeAudio{id: "resp-1", paused: true, duration: 1})
	e.Tick(dt)
	assert.False(t, e.State().Speaking)

	e.AudioPlay()
	e.AudioTimeUpdate(0.4)
	e.Tick(dt)
	st := e.State()
	assert.Equal(t, "resp-1", st.Sync.SourceID)
	assert.Equal(t, 2, st.Phonemes)
}

func TestEngine_Retune(t *testing.T) {
	e := newTestEngine(nil)
	require.NoError(t, e.Bind(testAvatar("a")))

	profiles := viseme.DefaultProfiles()
	profiles.Override(viseme.Profile{
		Name:    "angry",
		Weights: viseme.Weights{viseme.BrowDownLeft: 0.9},
	})
	p := viseme.DefaultParams()
	p.Smoothing.ExpressionRate = 20
	e.Retune(p, profiles)
	e.SetEmotion("angry")

	var frame Frame
	for i := 0; i < 120; i++ {
		frame = e.Tick(dt)
	}
	assert.InDelta(t, 0.9, frame.Blendshapes["browDownLeft"], 1e-3)
	assert.Zero(t, frame.Blendshapes["mouthFrownLeft"])
}

func TestInbox_DrainOrder(t *testing.T) {
	var in Inbox
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			in.Push(Event{Type: EventTypeAudioPlay})
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, in.Len())
	assert.Len(t, in.Drain(), 8)
	assert.Equal(t, 0, in.Len())

	in.Push(Event{Type: EventTypeEmotion, Label: "a"})
	in.Push(Event{Type: EventTypeEmotion, Label: "b"})
	got := in.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Label)
	assert.Equal(t, "b", got[1].Label)

	in.Push(Event{Type: EventTypeAudioPause})
	in.Push(Event{Type: EventTypeEmotion, Label: "c"})
	in.Push(Event{Type: EventTypePhonemes})
	in.Push(Event{Type: EventTypeClipChanged, Label: "idle"})
	assert.Equal(t, 2, in.Discard(speechEvents...))
	got = in.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, EventTypeEmotion, got[0].Type)
	assert.Equal(t, EventTypeClipChanged, got[1].Type)
}
