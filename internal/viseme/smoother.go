package viseme

import "math"

// SmoothingParams are per-channel-class convergence rates in 1/s.
type SmoothingParams struct {
	LipRate        float32 `mapstructure:"lip_rate" yaml:"lip_rate"`
	JawRate        float32 `mapstructure:"jaw_rate" yaml:"jaw_rate"`
	ExpressionRate float32 `mapstructure:"expression_rate" yaml:"expression_rate"`
	BlinkRate      float32 `mapstructure:"blink_rate" yaml:"blink_rate"`
	// DecayRate applies to any non-blink channel whose target is zero.
	DecayRate float32 `mapstructure:"decay_rate" yaml:"decay_rate"`
}

func DefaultSmoothingParams() SmoothingParams {
	return SmoothingParams{
		LipRate:        18,
		JawRate:        10,
		ExpressionRate: 6,
		BlinkRate:      30,
		DecayRate:      8,
	}
}

// Smoother holds the rendered weights and moves them toward each frame's
// target with an exponential approach.
type Smoother struct {
	params  SmoothingParams
	current Weights
}

func NewSmoother(p SmoothingParams) *Smoother {
	return &Smoother{params: p}
}

// Rate returns the convergence rate used for c given its target.
func (s *Smoother) Rate(c Channel, target float32) float32 {
	switch {
	case c.IsBlink():
		return s.params.BlinkRate
	case target == 0:
		return s.params.DecayRate
	case c.IsJaw():
		return s.params.JawRate
	case c.IsMouth():
		return s.params.LipRate
	default:
		return s.params.ExpressionRate
	}
}

// Smooth advances the current weights by dt toward target and returns them.
func (s *Smoother) Smooth(target Weights, dt float32) Weights {
	if dt <= 0 {
		return s.current
	}
	for i := range s.current {
		c := Channel(i)
		t := clamp01(target[i])
		k := 1 - float32(math.Exp(float64(-s.Rate(c, t)*dt)))
		s.current.Set(c, s.current[i]+(t-s.current[i])*k)
	}
	return s.current
}

func (s *Smoother) Current() Weights {
	return s.current
}

func (s *Smoother) Reset() {
	s.current.Reset()
}
