package viseme

import "math"

// BlinkParams controls the automatic blink. The gap between blinks drifts
// between MinInterval and MaxInterval over DriftPeriod seconds.
type BlinkParams struct {
	MinInterval float64 `mapstructure:"min_interval" yaml:"min_interval"`
	MaxInterval float64 `mapstructure:"max_interval" yaml:"max_interval"`
	Duration    float64 `mapstructure:"duration" yaml:"duration"`
	DriftPeriod float64 `mapstructure:"drift_period" yaml:"drift_period"`
}

func DefaultBlinkParams() BlinkParams {
	return BlinkParams{
		MinInterval: 2,
		MaxInterval: 4,
		Duration:    0.15,
		DriftPeriod: 17,
	}
}

// Blinker produces a deterministic blink signal of 0 or 1.
type Blinker struct {
	params BlinkParams
	clock  float64
	next   float64
	until  float64
}

func NewBlinker(p BlinkParams) *Blinker {
	b := &Blinker{params: p}
	b.Reset()
	return b
}

// Interval is the gap before the next blink when scheduled at time t.
func (b *Blinker) Interval(t float64) float64 {
	lo, hi := b.params.MinInterval, b.params.MaxInterval
	mid, half := (lo+hi)/2, (hi-lo)/2
	if b.params.DriftPeriod <= 0 {
		return mid
	}
	return mid + half*math.Sin(2*math.Pi*t/b.params.DriftPeriod)
}

// Update advances the blink clock and returns the eyelid target.
func (b *Blinker) Update(dt float64) float32 {
	b.clock += dt
	if b.clock >= b.next {
		b.until = b.next + b.params.Duration
		b.next += b.Interval(b.next)
		if b.next <= b.clock {
			b.next = b.clock + b.Interval(b.clock)
		}
	}
	if b.clock < b.until {
		return 1
	}
	return 0
}

func (b *Blinker) Reset() {
	b.clock = 0
	b.until = 0
	b.next = b.Interval(0)
}
