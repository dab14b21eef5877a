package engine

import (
	"slices"
	"sync"

	"github.com/normanking/cortexrig/internal/syncclock"
	"github.com/normanking/cortexrig/internal/viseme"
)

// EventType identifies an input queued for the next frame.
type EventType string

const (
	// Speech events
	EventTypePhonemes EventType = "speech.phonemes"
	EventTypeEmotion  EventType = "speech.emotion"

	// Audio clock events
	EventTypeAudioPlay     EventType = "audio.play"
	EventTypeAudioPause    EventType = "audio.pause"
	EventTypeAudioTime     EventType = "audio.time_update"
	EventTypeAudioEnded    EventType = "audio.ended"
	EventTypeAudioReplaced EventType = "audio.source_replaced"

	// Asset events
	EventTypeClipChanged EventType = "clip.changed"

	// Config events
	EventTypeRetune EventType = "config.lipsync"
)

// speechEvents belong to the avatar they were queued for.
var speechEvents = []EventType{
	EventTypePhonemes,
	EventTypeAudioPlay,
	EventTypeAudioPause,
	EventTypeAudioTime,
	EventTypeAudioEnded,
	EventTypeAudioReplaced,
}

// Event is one queued input. Only the fields of its type are set.
type Event struct {
	Type     EventType
	Phonemes []syncclock.Phoneme
	Source   syncclock.AudioClockSource
	Time     float64
	Label    string
	Params   *viseme.Params
	Profiles *viseme.Profiles
}

// Inbox collects events from host callbacks and watcher goroutines. The
// frame loop drains it once per tick; producers never touch engine state.
type Inbox struct {
	mu     sync.Mutex
	events []Event
	spare  []Event
}

// Push appends an event. Safe for concurrent use.
func (b *Inbox) Push(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

// Drain returns the queued events in arrival order and empties the inbox.
// The returned slice is only valid until the next Drain.
func (b *Inbox) Drain() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.events
	b.events = b.spare[:0]
	b.spare = out
	return out
}

// Len returns the number of queued events.
func (b *Inbox) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// Discard drops queued events of the given types, keeping the rest in
// order. It returns how many were dropped.
func (b *Inbox) Discard(types ...EventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.events[:0]
	for _, ev := range b.events {
		if !slices.Contains(types, ev.Type) {
			kept = append(kept, ev)
		}
	}
	dropped := len(b.events) - len(kept)
	clear(b.events[len(kept):])
	b.events = kept
	return dropped
}
