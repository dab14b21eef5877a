// Package action plays retargeted clips as weighted, fading actions on the
// body-locomotion layer and decides which clip runs next.
package action

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/normanking/cortexrig/internal/clip"
	"github.com/normanking/cortexrig/internal/retarget"
)

// LoopMode controls what happens at the end of a clip.
type LoopMode int

const (
	// LoopOnce clamps at the last frame and marks the action finished.
	LoopOnce LoopMode = iota
	// LoopRepeat wraps forever.
	LoopRepeat
)

func (m LoopMode) String() string {
	if m == LoopRepeat {
		return "repeat"
	}
	return "once"
}

// Action is a playable instance of a retargeted clip.
type Action struct {
	Name string
	Clip *retarget.Clip
	Loop LoopMode

	Weight     float32
	FadeTarget float32
	FadeRate   float32 // weight units per second
	Playhead   float32

	Running  bool
	Finished bool

	// tracks indexes the clip by bone then property for pose sampling.
	tracks map[string]*boneTracks
}

type boneTracks struct {
	translation *clip.Track
	rotation    *clip.Track
	scale       *clip.Track
}

func newAction(c *retarget.Clip) *Action {
	a := &Action{
		Name:   c.Name,
		Clip:   c,
		tracks: make(map[string]*boneTracks),
	}
	for i := range c.Tracks {
		tr := &c.Tracks[i]
		bt, ok := a.tracks[tr.Bone]
		if !ok {
			bt = &boneTracks{}
			a.tracks[tr.Bone] = bt
		}
		switch tr.Property {
		case clip.Translation:
			if bt.translation == nil {
				bt.translation = tr
			}
		case clip.Rotation:
			if bt.rotation == nil {
				bt.rotation = tr
			}
		case clip.Scale:
			if bt.scale == nil {
				bt.scale = tr
			}
		}
	}
	return a
}

// Duration of the underlying clip in seconds.
func (a *Action) Duration() float32 {
	return a.Clip.Duration
}

func (a *Action) fadeTo(target, seconds float32) {
	a.FadeTarget = target
	if seconds <= 0 {
		a.Weight = target
		a.FadeRate = 0
		return
	}
	a.FadeRate = float32(math.Abs(float64(target-a.Weight))) / seconds
}

// advance moves weight toward its fade target and the playhead forward.
// It returns true when a LoopOnce action reaches its end during this step.
func (a *Action) advance(dt float32) bool {
	switch {
	case a.Weight < a.FadeTarget:
		a.Weight = min(a.FadeTarget, a.Weight+a.FadeRate*dt)
	case a.Weight > a.FadeTarget:
		a.Weight = max(a.FadeTarget, a.Weight-a.FadeRate*dt)
	}

	if a.Weight <= 0 && a.FadeTarget <= 0 {
		a.Weight = 0
		a.Running = false
		return false
	}
	if !a.Running {
		return false
	}

	a.Playhead += dt
	dur := a.Duration()
	if a.Loop == LoopRepeat {
		if dur > 0 {
			a.Playhead = float32(math.Mod(float64(a.Playhead), float64(dur)))
		}
		return false
	}
	if a.Playhead >= dur {
		a.Playhead = dur
		a.Running = false
		a.Finished = true
		return true
	}
	return false
}

// Manager owns every action of the current avatar.
type Manager struct {
	actions map[string]*Action
	order   []string
	current string
	talking map[string]bool
	log     zerolog.Logger
}

// NewManager creates a Manager. Clips named in talking loop forever; all
// others play once and clamp.
func NewManager(talking []string, log zerolog.Logger) *Manager {
	m := &Manager{
		actions: make(map[string]*Action),
		talking: make(map[string]bool, len(talking)),
		log:     log,
	}
	for _, name := range talking {
		m.talking[name] = true
	}
	return m
}

// Add registers a retargeted clip as an action, replacing any action of the
// same name.
func (m *Manager) Add(c *retarget.Clip) {
	if _, ok := m.actions[c.Name]; !ok {
		m.order = append(m.order, c.Name)
	}
	m.actions[c.Name] = newAction(c)
	if m.current == c.Name {
		m.current = ""
	}
}

// Remove drops an action. Removing the current action leaves nothing current.
func (m *Manager) Remove(name string) {
	if _, ok := m.actions[name]; !ok {
		return
	}
	delete(m.actions, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if m.current == name {
		m.current = ""
	}
}

// Has reports whether name is registered.
func (m *Manager) Has(name string) bool {
	_, ok := m.actions[name]
	return ok
}

// Playable reports whether name is registered and has tracks to drive.
func (m *Manager) Playable(name string) bool {
	a, ok := m.actions[name]
	return ok && !a.Clip.Empty()
}

// Action returns the named action or nil.
func (m *Manager) Action(name string) *Action {
	return m.actions[name]
}

// Names returns registered action names in registration order.
func (m *Manager) Names() []string {
	return append([]string(nil), m.order...)
}

// Current returns the current action or nil.
func (m *Manager) Current() *Action {
	if m.current == "" {
		return nil
	}
	return m.actions[m.current]
}

// CurrentFinished reports whether the current action is a LoopOnce action
// that has reached its end.
func (m *Manager) CurrentFinished() bool {
	a := m.Current()
	return a != nil && a.Finished
}

// Play cross-fades to name over fade seconds. Playing the running current
// action is a no-op; unknown and empty clips are refused.
func (m *Manager) Play(name string, fade float32) bool {
	next, ok := m.actions[name]
	if !ok {
		m.log.Warn().Str("action", name).Msg("Unknown action, ignoring play")
		return false
	}
	if next.Clip.Empty() {
		m.log.Warn().Str("action", name).Msg("Action has no retargeted tracks, refusing to play")
		return false
	}
	if m.current == name && next.Running && !next.Finished {
		return true
	}

	if prev := m.Current(); prev != nil && prev != next {
		prev.fadeTo(0, fade)
	}

	next.Playhead = 0
	next.Finished = false
	next.Running = true
	if m.talking[name] {
		next.Loop = LoopRepeat
	} else {
		next.Loop = LoopOnce
	}
	next.fadeTo(1, fade)
	m.current = name

	m.log.Debug().Str("action", name).Str("loop", next.Loop.String()).Float32("fade", fade).Msg("Action playing")
	return true
}

// Stop fades an action out. Stopping the current action leaves nothing current.
func (m *Manager) Stop(name string, fade float32) {
	a, ok := m.actions[name]
	if !ok {
		m.log.Warn().Str("action", name).Msg("Unknown action, ignoring stop")
		return
	}
	a.fadeTo(0, fade)
	if m.current == name {
		m.current = ""
	}
}

// Tick advances every action by dt. It returns true when the current
// LoopOnce action finished during this tick.
func (m *Manager) Tick(dt float32) bool {
	finished := false
	for _, name := range m.order {
		a := m.actions[name]
		if a.advance(dt) && name == m.current {
			finished = true
		}
	}
	return finished
}

// Reset stops every action immediately and forgets the current one. Actions
// stay registered.
func (m *Manager) Reset() {
	for _, a := range m.actions {
		a.Weight, a.FadeTarget, a.FadeRate = 0, 0, 0
		a.Playhead = 0
		a.Running, a.Finished = false, false
	}
	m.current = ""
}

// Clear drops every action. Used on avatar swap, where retargeted clips bound
// to the old skeleton must not outlive it.
func (m *Manager) Clear() {
	m.actions = make(map[string]*Action)
	m.order = nil
	m.current = ""
}
