package engine

import (
	"github.com/normanking/cortexrig/internal/action"
	"github.com/normanking/cortexrig/internal/syncclock"
	"github.com/normanking/cortexrig/internal/viseme"
)

// EngineState is a snapshot of everything the frame loop tracks between
// frames.
type EngineState struct {
	SkeletonID    string          `json:"skeleton_id,omitempty"`
	Locomotion    string          `json:"locomotion"`
	CurrentAction string          `json:"current_action,omitempty"`
	IdleCursor    string          `json:"idle_cursor,omitempty"`
	TalkingCursor string          `json:"talking_cursor,omitempty"`
	Actions       []string        `json:"actions"`
	Emotion       string          `json:"emotion"`
	Speaking      bool            `json:"speaking"`
	Sync          syncclock.State `json:"sync"`
	Phonemes      int             `json:"phonemes"`
	Mouth         string          `json:"mouth"`
	Frames        uint64          `json:"frames"`
	Pending       int             `json:"pending_events"`
	RetargetCache int             `json:"retarget_cache"`

	MissingMorphs      []string `json:"missing_morphs,omitempty"`
	SkippedMorphWrites uint64   `json:"skipped_morph_writes"`

	Weights viseme.Weights `json:"-"`
}

// State snapshots the engine. Call from the frame loop goroutine.
func (e *Engine) State() EngineState {
	idle, talking := e.loco.Cursors()
	st := EngineState{
		Locomotion:    e.loco.State().String(),
		IdleCursor:    idle,
		TalkingCursor: talking,
		Actions:       e.actions.Names(),
		Emotion:       e.emotion,
		Speaking:      e.clock.IsSpeaking(),
		Sync:          e.clock.State(),
		Phonemes:      len(e.clock.Phonemes()),
		Mouth:         e.blender.Last().Source.String(),
		Frames:        e.frames,
		Pending:       e.inbox.Len(),
		RetargetCache: e.resolver.Len(),
		Weights:       e.last,
	}
	if cur := e.actions.Current(); cur != nil {
		st.CurrentAction = cur.Name
	}
	if e.avatar != nil {
		st.SkeletonID = e.avatar.Skeleton.ID
	}
	if e.binding != nil {
		st.MissingMorphs = e.binding.Missing()
		st.SkippedMorphWrites = e.binding.Skipped()
	}
	return st
}

// Locomotion exposes the state machine for inspection.
func (e *Engine) Locomotion() action.State {
	return e.loco.State()
}

// Retargeted returns the action manager's view of a clip, or nil.
func (e *Engine) Retargeted(name string) *action.Action {
	return e.actions.Action(name)
}
