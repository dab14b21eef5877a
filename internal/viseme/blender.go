package viseme

import (
	"github.com/rs/zerolog"

	"github.com/normanking/cortexrig/internal/syncclock"
)

// Params gathers every lip-sync tuning knob.
type Params struct {
	Lookup    LookupParams    `mapstructure:"lookup" yaml:"lookup"`
	Fallback  FallbackParams  `mapstructure:"fallback" yaml:"fallback"`
	Smoothing SmoothingParams `mapstructure:"smoothing" yaml:"smoothing"`
	Blink     BlinkParams     `mapstructure:"blink" yaml:"blink"`
	// MouthEmotionFactor scales emotion on mouth channels during speech.
	MouthEmotionFactor float32 `mapstructure:"mouth_emotion_factor" yaml:"mouth_emotion_factor"`
}

func DefaultParams() Params {
	return Params{
		Lookup:             DefaultLookupParams(),
		Fallback:           DefaultFallbackParams(),
		Smoothing:          DefaultSmoothingParams(),
		Blink:              DefaultBlinkParams(),
		MouthEmotionFactor: 0.3,
	}
}

// Blender computes and smooths blendshape weights once per frame. It is
// owned by the frame loop and not safe for concurrent use.
type Blender struct {
	params   Params
	profiles *Profiles
	smoother *Smoother
	blinker  *Blinker
	log      zerolog.Logger

	last        Selection
	lastEmotion string
}

func NewBlender(p Params, profiles *Profiles, log zerolog.Logger) *Blender {
	if profiles == nil {
		profiles = DefaultProfiles()
	}
	return &Blender{
		params:   p,
		profiles: profiles,
		smoother: NewSmoother(p.Smoothing),
		blinker:  NewBlinker(p.Blink),
		log:      log,
		last:     Selection{Index: -1},
	}
}

// SetProfiles swaps the emotion table, e.g. after a config reload.
func (b *Blender) SetProfiles(p *Profiles) {
	if p != nil {
		b.profiles = p
	}
}

// SetParams retunes the blender in place. Smoothed weights and the blink
// clock carry over.
func (b *Blender) SetParams(p Params) {
	b.params = p
	b.smoother.params = p.Smoothing
	b.blinker.params = p.Blink
}

// Params returns the active tuning.
func (b *Blender) Params() Params {
	return b.params
}

// ComputeFrame returns the target weights for this instant: the mouth shape
// from the timeline or the fallback, plus the emotion overlay.
func (b *Blender) ComputeFrame(elapsed float64, phonemes []syncclock.Phoneme, emotion string, audio syncclock.State) Weights {
	sel := Lookup(elapsed, phonemes, audio, b.params.Lookup)
	if sel.Source != b.last.Source {
		b.log.Debug().
			Str("from", b.last.Source.String()).
			Str("to", sel.Source.String()).
			Float64("elapsed", elapsed).
			Msg("Mouth source changed")
	}
	b.last = sel

	var target Weights
	switch sel.Source {
	case SourceActive, SourceLeadIn, SourceHold:
		applyClass(&target, ClassOf(sel.Phoneme.Value), 1)
	case SourceFallback:
		target = b.params.Fallback.Fallback(elapsed, sel.InFallback)
	}

	prof, ok := b.profiles.Get(emotion)
	if emotion != b.lastEmotion {
		if !ok {
			b.log.Warn().Str("emotion", emotion).Msg("Unknown emotion, using neutral")
		}
		b.lastEmotion = emotion
	}

	speaking := sel.Speaking()
	for i, v := range prof.Weights {
		if v == 0 {
			continue
		}
		c := Channel(i)
		if speaking && c.IsMouth() {
			v *= b.params.MouthEmotionFactor
		}
		target.Add(c, v)
	}
	return target
}

// Smooth overlays the blink on target and advances the smoothed weights.
func (b *Blender) Smooth(target Weights, dt float32) Weights {
	if blink := b.blinker.Update(float64(dt)); blink > 0 {
		target.Set(EyeBlinkLeft, max(target[EyeBlinkLeft], blink))
		target.Set(EyeBlinkRight, max(target[EyeBlinkRight], blink))
	}
	return b.smoother.Smooth(target, dt)
}

// Update is ComputeFrame followed by Smooth.
func (b *Blender) Update(dt float32, elapsed float64, phonemes []syncclock.Phoneme, emotion string, audio syncclock.State) Weights {
	return b.Smooth(b.ComputeFrame(elapsed, phonemes, emotion, audio), dt)
}

// Current returns the smoothed weights without advancing.
func (b *Blender) Current() Weights {
	return b.smoother.Current()
}

// Last returns the most recent timeline selection.
func (b *Blender) Last() Selection {
	return b.last
}

// Reset zeroes the smoothed weights and restarts the blink clock.
func (b *Blender) Reset() {
	b.smoother.Reset()
	b.blinker.Reset()
	b.last = Selection{Index: -1}
	b.lastEmotion = ""
}
