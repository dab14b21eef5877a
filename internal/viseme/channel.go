// Package viseme turns a phoneme timeline, an emotion label and the audio
// clock into smoothed ARKit-style blendshape weights.
package viseme

import "strings"

// Channel indexes one of the 52 ARKit blendshapes.
type Channel int

const (
	BrowDownLeft Channel = iota
	BrowDownRight
	BrowInnerUp
	BrowOuterUpLeft
	BrowOuterUpRight
	CheekPuff
	CheekSquintLeft
	CheekSquintRight
	EyeBlinkLeft
	EyeBlinkRight
	EyeLookDownLeft
	EyeLookDownRight
	EyeLookInLeft
	EyeLookInRight
	EyeLookOutLeft
	EyeLookOutRight
	EyeLookUpLeft
	EyeLookUpRight
	EyeSquintLeft
	EyeSquintRight
	EyeWideLeft
	EyeWideRight
	JawForward
	JawLeft
	JawOpen
	JawRight
	MouthClose
	MouthDimpleLeft
	MouthDimpleRight
	MouthFrownLeft
	MouthFrownRight
	MouthFunnel
	MouthLeft
	MouthLowerDownLeft
	MouthLowerDownRight
	MouthPressLeft
	MouthPressRight
	MouthPucker
	MouthRight
	MouthRollLower
	MouthRollUpper
	MouthShrugLower
	MouthShrugUpper
	MouthSmileLeft
	MouthSmileRight
	MouthStretchLeft
	MouthStretchRight
	MouthUpperUpLeft
	MouthUpperUpRight
	NoseSneerLeft
	NoseSneerRight
	TongueOut
	ChannelCount
)

var channelNames = [ChannelCount]string{
	"browDownLeft", "browDownRight", "browInnerUp", "browOuterUpLeft", "browOuterUpRight",
	"cheekPuff", "cheekSquintLeft", "cheekSquintRight",
	"eyeBlinkLeft", "eyeBlinkRight",
	"eyeLookDownLeft", "eyeLookDownRight", "eyeLookInLeft", "eyeLookInRight",
	"eyeLookOutLeft", "eyeLookOutRight", "eyeLookUpLeft", "eyeLookUpRight",
	"eyeSquintLeft", "eyeSquintRight", "eyeWideLeft", "eyeWideRight",
	"jawForward", "jawLeft", "jawOpen", "jawRight",
	"mouthClose", "mouthDimpleLeft", "mouthDimpleRight", "mouthFrownLeft", "mouthFrownRight",
	"mouthFunnel", "mouthLeft", "mouthLowerDownLeft", "mouthLowerDownRight",
	"mouthPressLeft", "mouthPressRight", "mouthPucker", "mouthRight",
	"mouthRollLower", "mouthRollUpper", "mouthShrugLower", "mouthShrugUpper",
	"mouthSmileLeft", "mouthSmileRight", "mouthStretchLeft", "mouthStretchRight",
	"mouthUpperUpLeft", "mouthUpperUpRight",
	"noseSneerLeft", "noseSneerRight",
	"tongueOut",
}

var channelByLower = func() map[string]Channel {
	m := make(map[string]Channel, ChannelCount)
	for i, n := range channelNames {
		m[strings.ToLower(n)] = Channel(i)
	}
	return m
}()

func (c Channel) String() string {
	if c < 0 || c >= ChannelCount {
		return "invalid"
	}
	return channelNames[c]
}

// ChannelByName resolves a blendshape name, ignoring case.
func ChannelByName(name string) (Channel, bool) {
	c, ok := channelByLower[strings.ToLower(name)]
	return c, ok
}

// IsMouth reports whether the channel belongs to the mouth, jaw or tongue,
// the channels lip-sync owns while speech is active.
func (c Channel) IsMouth() bool {
	return (c >= JawForward && c <= MouthUpperUpRight) || c == TongueOut
}

// IsJaw reports whether the channel moves the jaw.
func (c Channel) IsJaw() bool {
	return c >= JawForward && c <= JawRight
}

// IsBlink reports whether the channel is an eyelid blink.
func (c Channel) IsBlink() bool {
	return c == EyeBlinkLeft || c == EyeBlinkRight
}

// Weights holds one value per channel, each in [0,1].
type Weights [ChannelCount]float32

// Set stores v clamped to [0,1].
func (w *Weights) Set(c Channel, v float32) {
	w[c] = clamp01(v)
}

func (w *Weights) Get(c Channel) float32 {
	return w[c]
}

// Add accumulates v into c, clamped.
func (w *Weights) Add(c Channel, v float32) {
	w[c] = clamp01(w[c] + v)
}

func (w *Weights) Reset() {
	*w = Weights{}
}

// Map returns every channel keyed by blendshape name.
func (w *Weights) Map() map[string]float32 {
	out := make(map[string]float32, ChannelCount)
	for i, v := range w {
		out[channelNames[i]] = v
	}
	return out
}

// WeightsFromMap builds Weights from blendshape names. Unknown names are
// returned separately.
func WeightsFromMap(m map[string]float32) (Weights, []string) {
	var w Weights
	var unknown []string
	for name, v := range m {
		c, ok := ChannelByName(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		w.Set(c, v)
	}
	return w, unknown
}

func clamp01(v float32) float32 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
