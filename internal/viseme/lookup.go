package viseme

import (
	"math"

	"github.com/normanking/cortexrig/internal/syncclock"
)

// Source says where a frame's mouth shape came from.
type Source int

const (
	SourceNone Source = iota
	SourceActive
	SourceLeadIn
	SourceHold
	SourceFallback
)

func (s Source) String() string {
	switch s {
	case SourceActive:
		return "active"
	case SourceLeadIn:
		return "lead-in"
	case SourceHold:
		return "hold"
	case SourceFallback:
		return "fallback"
	default:
		return "none"
	}
}

// LookupParams tunes the edges of the timeline.
type LookupParams struct {
	// HoldWindow is how long the last phoneme is held past its end.
	HoldWindow float64 `mapstructure:"hold_window" yaml:"hold_window"`
	// EndGuard stops hold and fallback this close to the audio's end.
	EndGuard float64 `mapstructure:"end_guard" yaml:"end_guard"`
}

func DefaultLookupParams() LookupParams {
	return LookupParams{HoldWindow: 0.5, EndGuard: 0.1}
}

// Selection is the result of a timeline lookup.
type Selection struct {
	Source  Source
	Index   int
	Phoneme syncclock.Phoneme
	// InFallback is the time spent in procedural fallback so far.
	InFallback float64
}

// Speaking reports whether a real, non-silent phoneme drives the mouth.
func (s Selection) Speaking() bool {
	switch s.Source {
	case SourceActive, SourceLeadIn, SourceHold:
		return !IsSilence(s.Phoneme.Value)
	}
	return false
}

// Lookup picks the phoneme for elapsed. Gaps between intervals are silence.
// Past the last interval, while audio keeps playing and is not within
// EndGuard of its duration, the last phoneme is held for HoldWindow and
// procedural fallback takes over after that. An empty timeline with audio
// playing goes straight to fallback.
func Lookup(elapsed float64, phonemes []syncclock.Phoneme, audio syncclock.State, p LookupParams) Selection {
	for i, ph := range phonemes {
		if ph.Start <= elapsed && elapsed < ph.End {
			return Selection{Source: SourceActive, Index: i, Phoneme: ph}
		}
	}

	if !audio.Playing || audio.Ended {
		return Selection{Index: -1}
	}
	if audio.Duration > 0 && elapsed >= audio.Duration-p.EndGuard {
		return Selection{Index: -1}
	}
	if len(phonemes) == 0 {
		return Selection{Source: SourceFallback, Index: -1, InFallback: math.Max(elapsed, 0)}
	}

	first := 0
	last := 0
	for i, ph := range phonemes {
		if ph.Start < phonemes[first].Start {
			first = i
		}
		if ph.End >= phonemes[last].End {
			last = i
		}
	}

	if elapsed < phonemes[first].Start {
		return Selection{Source: SourceLeadIn, Index: first, Phoneme: phonemes[first]}
	}

	lastEnd := phonemes[last].End
	if elapsed < lastEnd {
		return Selection{Index: -1}
	}
	since := elapsed - lastEnd
	if since <= p.HoldWindow {
		return Selection{Source: SourceHold, Index: last, Phoneme: phonemes[last]}
	}
	return Selection{Source: SourceFallback, Index: -1, InFallback: since - p.HoldWindow}
}
