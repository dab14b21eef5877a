// Package syncclock derives elapsed speech time from an external audio
// playback clock, falling back to a local stopwatch when no audio source is
// attached.
package syncclock

import (
	"math"

	"github.com/rs/zerolog"
)

// NewResponseStartDelta is how far the first phoneme's start must move before
// a batch counts as a new speech response.
const NewResponseStartDelta = 0.1

// Phoneme is one unit of speech timing, in audio-relative seconds.
type Phoneme struct {
	Start float64 `json:"start" yaml:"start"`
	End   float64 `json:"end" yaml:"end"`
	Value string  `json:"value" yaml:"value"`
}

// AudioClockSource is implemented by the host's audio player.
type AudioClockSource interface {
	ID() string
	CurrentTime() float64
	Duration() float64
	Paused() bool
	Ended() bool
}

// State is the clock's bookkeeping, exposed for inspection.
type State struct {
	Elapsed   float64 `json:"elapsed"`
	Duration  float64 `json:"duration"`
	Playing   bool    `json:"playing"`
	Ended     bool    `json:"ended"`
	SourceID  string  `json:"source_id,omitempty"`
	TimerMode bool    `json:"timer_mode"`
	Responses int     `json:"responses"`
}

// Clock tracks the current speech response. It is not safe for concurrent
// use; the frame loop owns it.
type Clock struct {
	state    State
	source   AudioClockSource
	phonemes []Phoneme
	log      zerolog.Logger
}

func New(log zerolog.Logger) *Clock {
	return &Clock{log: log}
}

func (c *Clock) Elapsed() float64  { return c.state.Elapsed }
func (c *Clock) Duration() float64 { return c.state.Duration }
func (c *Clock) IsPlaying() bool   { return c.state.Playing }
func (c *Clock) IsEnded() bool     { return c.state.Ended }
func (c *Clock) State() State      { return c.state }

// Source returns the attached audio source, or nil in timer mode.
func (c *Clock) Source() AudioClockSource { return c.source }

// Phonemes returns the current response's timeline.
func (c *Clock) Phonemes() []Phoneme { return c.phonemes }

// HasActivePhonemes reports whether a non-empty timeline is loaded.
func (c *Clock) HasActivePhonemes() bool { return len(c.phonemes) > 0 }

// IsSpeaking is the locomotion state machine's input.
func (c *Clock) IsSpeaking() bool {
	return c.HasActivePhonemes() && c.state.Playing && !c.state.Ended
}

// SetPhonemes replaces the timeline. src may be nil when the audio has not
// been attached yet. It returns true when the batch was recognized as a new
// response, in which case the clock was force-reset.
func (c *Clock) SetPhonemes(batch []Phoneme, src AudioClockSource) bool {
	batch = append([]Phoneme(nil), batch...)
	reason := c.newResponse(batch, src)
	c.phonemes = batch

	if reason == "" {
		if src != nil && c.source == nil {
			c.OnSourceReplaced(src)
		}
		return false
	}

	c.log.Debug().Str("reason", reason).Int("phonemes", len(batch)).Msg("New speech response")
	responses := c.state.Responses + 1
	c.source = nil
	c.state = State{Responses: responses}

	if src != nil {
		c.OnSourceReplaced(src)
	} else if len(batch) > 0 {
		c.startTimer()
	}
	return true
}

func (c *Clock) newResponse(batch []Phoneme, src AudioClockSource) string {
	prev := c.phonemes
	switch {
	case src != nil && c.state.SourceID != "" && src.ID() != c.state.SourceID:
		return "source changed"
	case len(prev) == 0:
		if len(batch) == 0 {
			return ""
		}
		return "first batch"
	case len(batch) == 0:
		return "timeline cleared"
	case math.Abs(batch[0].Start-prev[0].Start) > NewResponseStartDelta:
		return "first start moved"
	case len(batch) != len(prev):
		return "length changed"
	case batch[0].Value != prev[0].Value:
		return "first value changed"
	}
	return ""
}

func (c *Clock) startTimer() {
	c.state.TimerMode = true
	c.state.Playing = true
	c.state.Ended = false
	c.state.Elapsed = 0
	c.state.Duration = c.lastEnd()
	c.log.Debug().Float64("duration", c.state.Duration).Msg("No audio source, timer mode")
}

func (c *Clock) lastEnd() float64 {
	if len(c.phonemes) == 0 {
		return 0
	}
	return c.phonemes[len(c.phonemes)-1].End
}

// OnSourceReplaced attaches a new audio source and slaves the clock to it.
// A nil source detaches and falls back to timer mode when a timeline exists.
func (c *Clock) OnSourceReplaced(src AudioClockSource) {
	c.source = src
	if src == nil {
		c.state.SourceID = ""
		if c.HasActivePhonemes() {
			c.startTimer()
		}
		return
	}
	c.state.SourceID = src.ID()
	c.state.TimerMode = false
	c.state.Elapsed = src.CurrentTime()
	c.state.Duration = src.Duration()
	c.state.Ended = src.Ended()
	c.state.Playing = !src.Paused() && !c.state.Ended
}

func (c *Clock) OnPlay() {
	c.state.Playing = true
	c.state.Ended = false
}

func (c *Clock) OnPause() {
	c.state.Playing = false
}

// OnTimeUpdate slaves elapsed to the audio position. While playing, elapsed
// never moves backwards.
func (c *Clock) OnTimeUpdate(currentTime float64) {
	if c.state.Playing && currentTime < c.state.Elapsed {
		return
	}
	c.state.Elapsed = currentTime
}

// OnEnded marks the response finished and rewinds elapsed.
func (c *Clock) OnEnded() {
	c.state.Ended = true
	c.state.Playing = false
	c.state.Elapsed = 0
}

// Advance runs once per frame. With a source attached it polls the source,
// otherwise it runs the timer-mode stopwatch.
func (c *Clock) Advance(dt float64) {
	if src := c.source; src != nil {
		c.state.Duration = src.Duration()
		switch {
		case src.Ended():
			if !c.state.Ended {
				c.OnEnded()
			}
		case src.Paused():
			c.OnPause()
		default:
			if !c.state.Playing {
				c.OnPlay()
			}
			c.OnTimeUpdate(src.CurrentTime())
		}
		return
	}

	if !c.state.TimerMode || !c.state.Playing {
		return
	}
	c.state.Elapsed += dt
	if c.state.Elapsed >= c.state.Duration {
		c.log.Debug().Float64("elapsed", c.state.Elapsed).Msg("Timer mode finished")
		c.OnEnded()
	}
}

// Reset drops the source, the timeline and all bookkeeping.
func (c *Clock) Reset() {
	c.source = nil
	c.phonemes = nil
	c.state = State{}
}
