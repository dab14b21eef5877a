package viseme

import "math"

// FallbackParams shapes the procedural talking motion used when audio plays
// without a usable phoneme. The values are tuning constants.
type FallbackParams struct {
	JawAmplitude  float32 `mapstructure:"jaw_amplitude" yaml:"jaw_amplitude"`
	LipAmplitude  float32 `mapstructure:"lip_amplitude" yaml:"lip_amplitude"`
	Floor         float32 `mapstructure:"floor" yaml:"floor"`
	DecaySeconds  float32 `mapstructure:"decay_seconds" yaml:"decay_seconds"`
	BaseFrequency float64 `mapstructure:"base_frequency" yaml:"base_frequency"`
}

func DefaultFallbackParams() FallbackParams {
	return FallbackParams{
		JawAmplitude:  0.35,
		LipAmplitude:  0.15,
		Floor:         0.35,
		DecaySeconds:  1.5,
		BaseFrequency: 1.2,
	}
}

type oscillator struct {
	ratio, phase, gain float64
}

// Rates relative to BaseFrequency span roughly 1.2 to 3.0 Hz at the default.
var (
	jawOsc = []oscillator{{1.0, 0, 0.45}, {1.75, 1.3, 0.35}, {2.5, 2.1, 0.2}}
	lipOsc = []oscillator{{1.4, 0.7, 0.5}, {2.1, 2.6, 0.3}, {2.5, 4.0, 0.2}}
)

func (p FallbackParams) wave(osc []oscillator, t, offset float64) float32 {
	var sum float64
	for _, o := range osc {
		sum += o.gain * (0.5 + 0.5*math.Sin(2*math.Pi*p.BaseFrequency*o.ratio*t+o.phase+offset))
	}
	return float32(sum)
}

// Envelope is the amplitude scale after inFallback seconds of fallback. It
// starts at 1 and decays toward Floor.
func (p FallbackParams) Envelope(inFallback float64) float32 {
	if p.DecaySeconds <= 0 {
		return p.Floor
	}
	decay := float32(math.Exp(-inFallback / float64(p.DecaySeconds)))
	return p.Floor + (1-p.Floor)*decay
}

// Fallback synthesizes mouth weights at time t. The result is a pure
// function of its inputs.
func (p FallbackParams) Fallback(t, inFallback float64) Weights {
	env := p.Envelope(inFallback)
	jaw := p.JawAmplitude * env
	lip := p.LipAmplitude * env

	var w Weights
	w.Set(JawOpen, jaw*p.wave(jawOsc, t, 0))
	w.Set(MouthFunnel, lip*p.wave(lipOsc, t, 0))
	w.Set(MouthPucker, lip*0.6*p.wave(lipOsc, t, math.Pi))
	smile := lip * 0.5 * p.wave(lipOsc, t, math.Pi/2)
	w.Set(MouthSmileLeft, smile)
	w.Set(MouthSmileRight, smile)
	stretch := lip * 0.5 * p.wave(jawOsc, t, 3*math.Pi/2)
	w.Set(MouthStretchLeft, stretch)
	w.Set(MouthStretchRight, stretch)
	return w
}
