package action

import "github.com/rs/zerolog"

// State of the locomotion layer.
type State int

const (
	StateIdle State = iota
	StateSpeaking
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}

// Player is what the state machine drives. *Manager implements it.
type Player interface {
	Play(name string, fade float32) bool
	Playable(name string) bool
}

// LocomotionConfig lists the clip classes used by the rotation policy.
type LocomotionConfig struct {
	Idle    []string
	Talking []string
	Fade    float32
}

// Locomotion switches between idle-class and talking-class clips. It only
// calls Play on a state edge, or when the running LoopOnce clip finished.
type Locomotion struct {
	cfg     LocomotionConfig
	player  Player
	state   State
	idle    Rotation
	talking Rotation
	log     zerolog.Logger
}

// NewLocomotion creates a state machine in StateIdle.
func NewLocomotion(player Player, cfg LocomotionConfig, log zerolog.Logger) *Locomotion {
	return &Locomotion{
		cfg:    cfg,
		player: player,
		state:  StateIdle,
		log:    log,
	}
}

// State returns the current state.
func (l *Locomotion) State() State {
	return l.state
}

// Cursors returns the last idle and talking clips chosen.
func (l *Locomotion) Cursors() (idle, talking string) {
	return l.idle.Last(), l.talking.Last()
}

// Start plays the first clip of the current state. Call once after binding
// an avatar.
func (l *Locomotion) Start() string {
	return l.enter(l.state)
}

// Restart re-enters the current state and plays its next clip. Used when
// the current clip disappears without finishing.
func (l *Locomotion) Restart() string {
	l.log.Debug().Str("state", l.state.String()).Msg("Locomotion restart")
	return l.enter(l.state)
}

// Update feeds this frame's speaking flag and whether the current clip just
// finished. It returns the clip it started, or "".
func (l *Locomotion) Update(speaking, currentFinished bool) string {
	target := StateIdle
	if speaking {
		target = StateSpeaking
	}
	if target != l.state {
		l.log.Debug().Str("from", l.state.String()).Str("to", target.String()).Msg("Locomotion state change")
		l.state = target
		return l.enter(target)
	}
	if currentFinished {
		return l.enter(l.state)
	}
	return ""
}

// Reset returns to StateIdle and clears both rotation cursors.
func (l *Locomotion) Reset() {
	l.state = StateIdle
	l.idle.Reset()
	l.talking.Reset()
}

func (l *Locomotion) enter(s State) string {
	rot, names := &l.idle, l.cfg.Idle
	if s == StateSpeaking {
		rot, names = &l.talking, l.cfg.Talking
	}

	candidates := make([]string, 0, len(names))
	for _, n := range names {
		if l.player.Playable(n) {
			candidates = append(candidates, n)
		}
	}

	name, ok := rot.Next(candidates)
	if !ok {
		l.log.Debug().Str("state", s.String()).Msg("No playable clips for state")
		return ""
	}
	if !l.player.Play(name, l.cfg.Fade) {
		return ""
	}
	return name
}
