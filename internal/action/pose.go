package action

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/normanking/cortexrig/internal/clip"
	"github.com/normanking/cortexrig/internal/skeleton"
)

// Pose blends every weighted action into local bone transforms for skel.
// Per bone and property, action samples are weighted by action weight; when
// the weights sum below one the bind pose fills the remainder, above one
// they are normalized. Bones no action drives keep the bind pose.
func (m *Manager) Pose(skel *skeleton.Skeleton) map[string]skeleton.Transform {
	pose := make(map[string]skeleton.Transform, len(skel.Bones))

	var active []*Action
	for _, name := range m.order {
		if a := m.actions[name]; a.Weight > 0 {
			active = append(active, a)
		}
	}

	for _, bone := range skel.Bones {
		bind := bone.Local
		if len(active) == 0 {
			pose[bone.Name] = bind
			continue
		}

		var tAcc, sAcc vec3Blend
		var rAcc quatBlend
		for _, a := range active {
			bt, ok := a.tracks[bone.Name]
			if !ok {
				continue
			}
			if bt.translation != nil {
				tAcc.add(sampleVec3(bt.translation, a.Playhead), a.Weight)
			}
			if bt.rotation != nil {
				rAcc.add(sampleQuat(bt.rotation, a.Playhead), a.Weight)
			}
			if bt.scale != nil {
				sAcc.add(sampleVec3(bt.scale, a.Playhead), a.Weight)
			}
		}

		pose[bone.Name] = skeleton.Transform{
			Translation: tAcc.result(bind.Translation),
			Rotation:    rAcc.result(bind.Rotation),
			Scale:       sAcc.result(bind.Scale),
		}
	}
	return pose
}

func sampleVec3(tr *clip.Track, at float32) mgl32.Vec3 {
	return tr.SampleVec3(at)
}

func sampleQuat(tr *clip.Track, at float32) mgl32.Quat {
	return tr.SampleQuat(at)
}

type vec3Blend struct {
	sum    mgl32.Vec3
	weight float32
}

func (b *vec3Blend) add(v mgl32.Vec3, w float32) {
	b.sum = b.sum.Add(v.Mul(w))
	b.weight += w
}

func (b *vec3Blend) result(bind mgl32.Vec3) mgl32.Vec3 {
	switch {
	case b.weight <= 0:
		return bind
	case b.weight >= 1:
		return b.sum.Mul(1 / b.weight)
	default:
		return b.sum.Add(bind.Mul(1 - b.weight))
	}
}

// quatBlend accumulates sign-aligned weighted quaternions (normalized lerp).
type quatBlend struct {
	sum    mgl32.Quat
	weight float32
	seeded bool
}

func (b *quatBlend) add(q mgl32.Quat, w float32) {
	if !b.seeded {
		b.sum = q.Scale(w)
		b.weight = w
		b.seeded = true
		return
	}
	if b.sum.Dot(q) < 0 {
		q = q.Scale(-1)
	}
	b.sum = b.sum.Add(q.Scale(w))
	b.weight += w
}

func (b *quatBlend) result(bind mgl32.Quat) mgl32.Quat {
	if !b.seeded || b.weight <= 0 {
		return bind
	}
	if b.weight < 1 {
		if b.sum.Dot(bind) < 0 {
			bind = bind.Scale(-1)
		}
		return b.sum.Add(bind.Scale(1 - b.weight)).Normalize()
	}
	return b.sum.Normalize()
}
