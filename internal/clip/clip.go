// Package clip holds authored animation clips, keyframe sampling and the
// named clip store.
package clip

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// Common errors
var (
	ErrNotFound    = errors.New("clip not found")
	ErrInvalidClip = errors.New("invalid clip")
)

// Property is the animated channel of a bone.
type Property string

const (
	Translation Property = "translation"
	Rotation    Property = "rotation"
	Scale       Property = "scale"
)

// Components is the number of floats per keyframe value.
func (p Property) Components() int {
	if p == Rotation {
		return 4
	}
	return 3
}

// ParseProperty accepts glTF and three.js spellings.
func ParseProperty(s string) (Property, bool) {
	switch strings.ToLower(s) {
	case "translation", "position":
		return Translation, true
	case "rotation", "quaternion":
		return Rotation, true
	case "scale":
		return Scale, true
	}
	return "", false
}

// Interpolation between keyframes.
type Interpolation string

const (
	Linear Interpolation = "linear"
	Step   Interpolation = "step"
)

// Track is one bone property's keyframes. Rotation values are x,y,z,w.
type Track struct {
	Bone          string
	Property      Property
	Interpolation Interpolation
	Times         []float32
	Values        []float32
}

// SplitTrackName splits "mixamorigJaw.quaternion" into bone and property.
func SplitTrackName(name string) (string, Property, bool) {
	i := strings.LastIndex(name, ".")
	if i <= 0 || i == len(name)-1 {
		return "", "", false
	}
	prop, ok := ParseProperty(name[i+1:])
	if !ok {
		return "", "", false
	}
	return name[:i], prop, true
}

// Name returns the bone.property form used in diagnostics.
func (t Track) Name() string {
	return t.Bone + "." + string(t.Property)
}

// WithBone returns a copy of the track bound to a different bone. Keyframe
// slices are shared; clips are read-only once loaded.
func (t Track) WithBone(bone string) Track {
	t.Bone = bone
	return t
}

// Clip is an authored motion. Clips are cached and shared, never mutated.
type Clip struct {
	Name     string
	Duration float32
	Tracks   []Track
}

// Validate checks keyframe layout and fills in Duration when it is zero.
func (c *Clip) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidClip)
	}
	var last float32
	for i, tr := range c.Tracks {
		if tr.Bone == "" {
			return fmt.Errorf("%w: %s track %d has no bone", ErrInvalidClip, c.Name, i)
		}
		if len(tr.Times) == 0 {
			return fmt.Errorf("%w: %s track %s has no keyframes", ErrInvalidClip, c.Name, tr.Name())
		}
		if len(tr.Values) != len(tr.Times)*tr.Property.Components() {
			return fmt.Errorf("%w: %s track %s has %d values for %d keyframes",
				ErrInvalidClip, c.Name, tr.Name(), len(tr.Values), len(tr.Times))
		}
		if !sort.SliceIsSorted(tr.Times, func(a, b int) bool { return tr.Times[a] < tr.Times[b] }) {
			return fmt.Errorf("%w: %s track %s times not ascending", ErrInvalidClip, c.Name, tr.Name())
		}
		if end := tr.Times[len(tr.Times)-1]; end > last {
			last = end
		}
		if tr.Interpolation == "" {
			c.Tracks[i].Interpolation = Linear
		}
	}
	if c.Duration <= 0 {
		c.Duration = last
	}
	return nil
}

// Bones returns the distinct bone names referenced by the clip's tracks.
func (c *Clip) Bones() []string {
	seen := make(map[string]struct{}, len(c.Tracks))
	var out []string
	for _, tr := range c.Tracks {
		if _, ok := seen[tr.Bone]; ok {
			continue
		}
		seen[tr.Bone] = struct{}{}
		out = append(out, tr.Bone)
	}
	return out
}

// segment finds the keyframe pair around t and the blend factor between them.
func (t *Track) segment(at float32) (int, int, float32) {
	n := len(t.Times)
	if n == 1 || at <= t.Times[0] {
		return 0, 0, 0
	}
	if at >= t.Times[n-1] {
		return n - 1, n - 1, 0
	}
	hi := sort.Search(n, func(i int) bool { return t.Times[i] > at })
	lo := hi - 1
	span := t.Times[hi] - t.Times[lo]
	if span <= 0 || t.Interpolation == Step {
		return lo, lo, 0
	}
	return lo, hi, (at - t.Times[lo]) / span
}

// SampleVec3 samples a translation or scale track at time at.
func (t *Track) SampleVec3(at float32) mgl32.Vec3 {
	lo, hi, f := t.segment(at)
	a := t.vec3(lo)
	if lo == hi {
		return a
	}
	b := t.vec3(hi)
	return a.Add(b.Sub(a).Mul(f))
}

// SampleQuat samples a rotation track at time at.
func (t *Track) SampleQuat(at float32) mgl32.Quat {
	lo, hi, f := t.segment(at)
	a := t.quat(lo)
	if lo == hi {
		return a
	}
	return mgl32.QuatSlerp(a, t.quat(hi), f)
}

func (t *Track) vec3(i int) mgl32.Vec3 {
	v := t.Values[i*3 : i*3+3]
	return mgl32.Vec3{v[0], v[1], v[2]}
}

func (t *Track) quat(i int) mgl32.Quat {
	v := t.Values[i*4 : i*4+4]
	return mgl32.Quat{W: v[3], V: mgl32.Vec3{v[0], v[1], v[2]}}.Normalize()
}
