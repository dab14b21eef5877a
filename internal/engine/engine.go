// Package engine is the per-frame scheduler that ties clips, retargeting,
// the action manager, the audio sync clock and the viseme blender together.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/cortexrig/internal/action"
	"github.com/normanking/cortexrig/internal/clip"
	"github.com/normanking/cortexrig/internal/config"
	"github.com/normanking/cortexrig/internal/logging"
	"github.com/normanking/cortexrig/internal/retarget"
	"github.com/normanking/cortexrig/internal/skeleton"
	"github.com/normanking/cortexrig/internal/syncclock"
	"github.com/normanking/cortexrig/internal/viseme"
)

var ErrNoSkeleton = errors.New("avatar has no skeleton")

// Renderer consumes each frame. SetMorphWeight receives one write per bound
// (mesh, slot); ApplyPose receives local bone transforms.
type Renderer interface {
	viseme.MorphWriter
	ApplyPose(bones map[string]skeleton.Transform)
}

// Frame is the engine's only output.
type Frame struct {
	Bones       map[string]skeleton.Transform
	Blendshapes map[string]float32
	Weights     viseme.Weights
}

// Options configures an Engine.
type Options struct {
	Config   *config.Config
	Clips    *clip.Store
	Profiles *viseme.Profiles
	Renderer Renderer
	Log      zerolog.Logger
}

// Engine owns all per-avatar animation state. Tick, Bind and Unbind must be
// called from the frame loop goroutine; the event methods may be called from
// anywhere.
type Engine struct {
	cfg      *config.Config
	store    *clip.Store
	renderer Renderer
	log      zerolog.Logger
	frameLog zerolog.Logger

	inbox    Inbox
	resolver *retarget.Resolver
	actions  *action.Manager
	loco     *action.Locomotion
	clock    *syncclock.Clock
	blender  *viseme.Blender

	avatar  *skeleton.Avatar
	binding *viseme.MorphBinding
	emotion string
	frames  uint64
	last    viseme.Weights
}

// New creates an engine with no avatar bound.
func New(opts Options) *Engine {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	store := opts.Clips
	if store == nil {
		store = clip.NewStore(nil, opts.Log)
	}
	log := opts.Log

	e := &Engine{
		cfg:      cfg,
		store:    store,
		renderer: opts.Renderer,
		log:      log,
		frameLog: logging.Sampled(log, 1, 5*time.Second),
		resolver: retarget.NewResolver(retarget.Options{
			Prefixes: cfg.Clips.Prefixes,
			Debug:    cfg.Engine.Debug,
		}, log.With().Str("component", "retarget").Logger()),
		clock:   syncclock.New(log.With().Str("component", "syncclock").Logger()),
		blender: viseme.NewBlender(cfg.LipSync.Params, opts.Profiles, log.With().Str("component", "viseme").Logger()),
		emotion: cfg.Engine.DefaultEmotion,
	}
	e.actions = action.NewManager(cfg.Clips.Talking, log.With().Str("component", "action").Logger())
	e.loco = action.NewLocomotion(e.actions, action.LocomotionConfig{
		Idle:    cfg.Clips.Idle,
		Talking: cfg.Clips.Talking,
		Fade:    cfg.Clips.FadeSeconds,
	}, log.With().Str("component", "locomotion").Logger())
	return e
}

// Bind tears down the current avatar, if any, and binds a new one: morphs
// are resolved once, every configured clip is retargeted and the idle
// rotation starts.
func (e *Engine) Bind(avatar *skeleton.Avatar) error {
	if avatar == nil || avatar.Skeleton == nil {
		return ErrNoSkeleton
	}
	e.Unbind()

	e.avatar = avatar
	e.binding = viseme.Bind(avatar.Morphs)
	if missing := e.binding.Missing(); len(missing) > 0 {
		e.log.Info().
			Int("bound", e.binding.Bound()).
			Strs("missing", missing).
			Msg("Blendshapes missing from avatar meshes")
	}

	loaded, err := e.store.Preload(e.cfg.Clips.Names())
	if err != nil {
		e.log.Warn().Err(err).Msg("Some clips failed to load")
	}
	for _, name := range e.store.Names() {
		e.addClip(name)
	}

	e.log.Info().
		Str("skeleton", avatar.Skeleton.ID).
		Int("bones", len(avatar.Skeleton.Bones)).
		Strs("clips", loaded).
		Msg("Avatar bound")

	e.loco.Start()
	return nil
}

// Unbind performs a full teardown: actions dropped, rotation cursors
// cleared, audio source and pending speech events dropped, retarget cache
// entries of the skeleton invalidated and smoothed weights zeroed.
func (e *Engine) Unbind() {
	if e.avatar == nil {
		return
	}
	id := e.avatar.Skeleton.ID
	e.actions.Clear()
	e.loco.Reset()
	e.clock.Reset()
	pending := e.inbox.Discard(speechEvents...)
	dropped := e.resolver.Invalidate(id)
	e.blender.Reset()
	e.last = viseme.Weights{}
	e.avatar = nil
	e.binding = nil
	e.log.Info().Str("skeleton", id).Int("retargetsDropped", dropped).Int("eventsDropped", pending).Msg("Avatar unbound")
}

func (e *Engine) addClip(name string) bool {
	src, err := e.store.Get(name)
	if err != nil {
		if !errors.Is(err, clip.ErrNotFound) {
			e.log.Warn().Err(err).Str("clip", name).Msg("Clip failed to load")
		}
		return false
	}
	rc := e.resolver.Retarget(src, e.avatar.Skeleton, e.cfg.Clips.ExcludeFor(name))
	e.actions.Add(rc)
	return true
}

// PushPhonemes queues a speech response. src may be nil until the host
// attaches audio.
func (e *Engine) PushPhonemes(batch []syncclock.Phoneme, src syncclock.AudioClockSource) {
	e.inbox.Push(Event{Type: EventTypePhonemes, Phonemes: append([]syncclock.Phoneme(nil), batch...), Source: src})
}

func (e *Engine) SetEmotion(label string) {
	e.inbox.Push(Event{Type: EventTypeEmotion, Label: label})
}

func (e *Engine) AudioPlay()  { e.inbox.Push(Event{Type: EventTypeAudioPlay}) }
func (e *Engine) AudioPause() { e.inbox.Push(Event{Type: EventTypeAudioPause}) }
func (e *Engine) AudioEnded() { e.inbox.Push(Event{Type: EventTypeAudioEnded}) }

func (e *Engine) AudioTimeUpdate(t float64) {
	e.inbox.Push(Event{Type: EventTypeAudioTime, Time: t})
}

func (e *Engine) AudioSourceReplaced(src syncclock.AudioClockSource) {
	e.inbox.Push(Event{Type: EventTypeAudioReplaced, Source: src})
}

// ClipChanged queues a reload of a clip whose file changed.
func (e *Engine) ClipChanged(name string) {
	e.inbox.Push(Event{Type: EventTypeClipChanged, Label: name})
}

// Retune queues new lip-sync tuning. profiles may be nil to keep the
// current emotion table.
func (e *Engine) Retune(p viseme.Params, profiles *viseme.Profiles) {
	e.inbox.Push(Event{Type: EventTypeRetune, Params: &p, Profiles: profiles})
}

// WatchClips forwards watcher changes into the inbox until the watcher's
// channel closes.
func (e *Engine) WatchClips(ctx context.Context, w *clip.Watcher) error {
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()
	for name := range w.Changes() {
		e.ClipChanged(name)
	}
	err := <-errc
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (e *Engine) apply(ev Event) {
	switch ev.Type {
	case EventTypePhonemes:
		e.clock.SetPhonemes(ev.Phonemes, ev.Source)
	case EventTypeEmotion:
		e.emotion = ev.Label
	case EventTypeAudioPlay:
		e.clock.OnPlay()
	case EventTypeAudioPause:
		e.clock.OnPause()
	case EventTypeAudioTime:
		e.clock.OnTimeUpdate(ev.Time)
	case EventTypeAudioEnded:
		e.clock.OnEnded()
	case EventTypeAudioReplaced:
		e.clock.OnSourceReplaced(ev.Source)
	case EventTypeClipChanged:
		e.reloadClip(ev.Label)
	case EventTypeRetune:
		e.blender.SetParams(*ev.Params)
		e.blender.SetProfiles(ev.Profiles)
		e.log.Info().Msg("Lip-sync retuned")
	default:
		e.log.Warn().Str("type", string(ev.Type)).Msg("Unknown event type")
	}
}

func (e *Engine) reloadClip(name string) {
	e.store.Evict(name)
	e.resolver.InvalidateClip(name)
	if e.avatar == nil {
		return
	}

	wasCurrent := false
	if cur := e.actions.Current(); cur != nil && cur.Name == name {
		wasCurrent = true
	}
	if !e.addClip(name) {
		e.actions.Remove(name)
		e.log.Info().Str("clip", name).Msg("Clip removed")
		if wasCurrent {
			e.loco.Restart()
		}
		return
	}
	e.log.Info().Str("clip", name).Msg("Clip reloaded")
	if wasCurrent && !e.actions.Play(name, 0) {
		e.loco.Restart()
	}
}

// Tick advances one frame by dt seconds and returns its output.
func (e *Engine) Tick(dt float32) Frame {
	for _, ev := range e.inbox.Drain() {
		e.apply(ev)
	}

	e.clock.Advance(float64(dt))
	if e.avatar == nil {
		return Frame{}
	}

	speaking := e.clock.IsSpeaking()
	finished := e.actions.Tick(dt)
	if started := e.loco.Update(speaking, finished); started != "" {
		e.log.Debug().Str("action", started).Str("state", e.loco.State().String()).Msg("Locomotion started clip")
	}

	weights := e.blender.Update(dt, e.clock.Elapsed(), e.clock.Phonemes(), e.emotion, e.clock.State())
	pose := e.actions.Pose(e.avatar.Skeleton)
	e.last = weights
	e.frames++

	if e.renderer != nil {
		e.binding.Apply(&weights, e.renderer)
		e.renderer.ApplyPose(pose)
	}

	e.frameLog.Debug().
		Uint64("frame", e.frames).
		Bool("speaking", speaking).
		Float64("elapsed", e.clock.Elapsed()).
		Str("mouth", e.blender.Last().Source.String()).
		Msg("Frame")

	return Frame{Bones: pose, Blendshapes: weights.Map(), Weights: weights}
}
