// Package skeleton holds the target bone hierarchy and per-mesh morph target
// dictionaries handed to the engine by the asset loader.
package skeleton

import (
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// Transform is a bone's local translation/rotation/scale.
type Transform struct {
	Translation mgl32.Vec3
	Rotation    mgl32.Quat
	Scale       mgl32.Vec3
}

// IdentityTransform has no translation, no rotation and unit scale.
func IdentityTransform() Transform {
	return Transform{
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

// Mat4 returns the TRS matrix for the transform.
func (t Transform) Mat4() mgl32.Mat4 {
	m := mgl32.Translate3D(t.Translation[0], t.Translation[1], t.Translation[2])
	m = m.Mul4(t.Rotation.Normalize().Mat4())
	return m.Mul4(mgl32.Scale3D(t.Scale[0], t.Scale[1], t.Scale[2]))
}

// Bone is one joint of the hierarchy. Parent is -1 for roots.
type Bone struct {
	Name   string
	Parent int
	Local  Transform
}

// Skeleton is immutable once built.
type Skeleton struct {
	ID    string
	Bones []Bone

	byName  map[string]int
	byLower map[string]int
}

// New builds a Skeleton and its name indexes. An empty id gets a random uuid.
// Duplicate bone names keep the first occurrence in the index.
func New(id string, bones []Bone) *Skeleton {
	if id == "" {
		id = uuid.NewString()
	}
	s := &Skeleton{
		ID:      id,
		Bones:   append([]Bone(nil), bones...),
		byName:  make(map[string]int, len(bones)),
		byLower: make(map[string]int, len(bones)),
	}
	for i, b := range s.Bones {
		if _, ok := s.byName[b.Name]; !ok {
			s.byName[b.Name] = i
		}
		lower := strings.ToLower(b.Name)
		if _, ok := s.byLower[lower]; !ok {
			s.byLower[lower] = i
		}
	}
	return s
}

// Has reports whether a bone with exactly this name exists.
func (s *Skeleton) Has(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// Lookup resolves name exactly, then case-insensitively, returning the bone's
// real name.
func (s *Skeleton) Lookup(name string) (string, bool) {
	if i, ok := s.byName[name]; ok {
		return s.Bones[i].Name, true
	}
	if i, ok := s.byLower[strings.ToLower(name)]; ok {
		return s.Bones[i].Name, true
	}
	return "", false
}

// Names returns bone names in hierarchy order.
func (s *Skeleton) Names() []string {
	names := make([]string, len(s.Bones))
	for i, b := range s.Bones {
		names[i] = b.Name
	}
	return names
}
