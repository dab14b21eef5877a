package gltfasset

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/cortexrig/internal/clip"
)

func intPtr(i int) *int { return &i }

func floatBytes(vals ...float32) []byte {
	out := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// testDocument builds Armature(Hips -> Jaw) plus a head mesh with two
// morph targets and one animation rotating the jaw.
func testDocument() *gltf.Document {
	var data []byte
	times := floatBytes(0, 1)
	rots := floatBytes(0, 0, 0, 1, 0.7071068, 0, 0, 0.7071068)
	data = append(data, times...)
	data = append(data, rots...)

	return &gltf.Document{
		Buffers: []*gltf.Buffer{{ByteLength: len(data), Data: data}},
		BufferViews: []*gltf.BufferView{
			{Buffer: 0, ByteOffset: 0, ByteLength: len(times)},
			{Buffer: 0, ByteOffset: len(times), ByteLength: len(rots)},
		},
		Accessors: []*gltf.Accessor{
			{BufferView: intPtr(0), ComponentType: gltf.ComponentFloat, Count: 2, Type: gltf.AccessorScalar},
			{BufferView: intPtr(1), ComponentType: gltf.ComponentFloat, Count: 2, Type: gltf.AccessorVec4},
		},
		Meshes: []*gltf.Mesh{{
			Name:   "HeadMesh",
			Extras: map[string]any{"targetNames": []any{"jawOpen", "eyeBlinkLeft"}},
		}},
		Nodes: []*gltf.Node{
			{Name: "mixamorigHips", Children: []int{1}, Translation: [3]float64{0, 1, 0}},
			{Name: "mixamorigJaw"},
			{Name: "Head", Mesh: intPtr(0)},
		},
		Skins: []*gltf.Skin{{Joints: []int{0, 1}}},
		Animations: []*gltf.Animation{{
			Name: "talking",
			Channels: []*gltf.AnimationChannel{
				{Sampler: 0, Target: gltf.AnimationChannelTarget{Node: intPtr(1), Path: gltf.TRSRotation}},
				{Sampler: 0, Target: gltf.AnimationChannelTarget{Node: intPtr(2), Path: gltf.TRSWeights}},
			},
			Samplers: []*gltf.AnimationSampler{
				{Input: 0, Output: 1, Interpolation: gltf.InterpolationLinear},
			},
		}},
	}
}

func TestFromDocument(t *testing.T) {
	asset, err := FromDocument(testDocument(), "", "hannah")
	require.NoError(t, err)

	skel := asset.Avatar.Skeleton
	require.NotNil(t, skel)
	assert.Equal(t, "hannah", skel.ID)
	assert.Equal(t, []string{"mixamorigHips", "mixamorigJaw"}, skel.Names())
	assert.Equal(t, -1, skel.Bones[0].Parent)
	assert.Equal(t, 0, skel.Bones[1].Parent)
	assert.InDelta(t, 1, skel.Bones[0].Local.Translation.Y(), 1e-6)
	assert.InDelta(t, 1, skel.Bones[1].Local.Scale.X(), 1e-6, "missing scale defaults to 1")

	assert.Equal(t, map[string]int{"jawOpen": 0, "eyeBlinkLeft": 1}, asset.Avatar.Morphs["Head"])

	require.Len(t, asset.Clips, 1)
	c := asset.Clips[0]
	assert.Equal(t, "talking", c.Name)
	assert.InDelta(t, 1, c.Duration, 1e-6)
	require.Len(t, c.Tracks, 1, "morph weight channels are skipped")
	assert.Equal(t, "mixamorigJaw", c.Tracks[0].Bone)
	assert.Equal(t, clip.Rotation, c.Tracks[0].Property)
	assert.Len(t, c.Tracks[0].Values, 8)
}

func TestFromDocument_NoSkeleton(t *testing.T) {
	doc := &gltf.Document{Nodes: []*gltf.Node{{Mesh: intPtr(0)}}, Meshes: []*gltf.Mesh{{}}}
	_, err := FromDocument(doc, "", "")
	assert.True(t, errors.Is(err, ErrNoSkeleton))
}

func TestClipLoader(t *testing.T) {
	asset, err := FromDocument(testDocument(), "", "")
	require.NoError(t, err)

	loader := NewClipLoader(asset)
	c, err := loader.Load("talking")
	require.NoError(t, err)
	assert.Equal(t, "talking", c.Name)
	assert.Equal(t, []string{"talking"}, loader.Names())

	_, err = loader.Load("idle")
	assert.True(t, errors.Is(err, clip.ErrNotFound))
}

func TestSplineValues(t *testing.T) {
	// two keyframes of a scalar-ish 1-component track: (in, v, out) each
	got := splineValues([]float32{9, 1, 9, 9, 2, 9}, 1)
	assert.Equal(t, []float32{1, 2}, got)
}
