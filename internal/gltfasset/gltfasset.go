// Package gltfasset turns a glTF/GLB document into the skeleton, morph
// dictionary and animation clips the engine consumes. Decoding is done by
// qmuntal/gltf; this package only walks the document.
package gltfasset

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"

	"github.com/normanking/cortexrig/internal/clip"
	"github.com/normanking/cortexrig/internal/skeleton"
)

// Common errors
var (
	ErrNoSkeleton       = errors.New("document has no skeleton")
	ErrUnsupportedData  = errors.New("unsupported accessor data")
	ErrAnimationMissing = errors.New("animation not found")
)

// Asset is everything extracted from one document.
type Asset struct {
	Avatar skeleton.Avatar
	Clips  []*clip.Clip
}

// Load opens a .gltf or .glb file.
func Load(path string) (*Asset, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}
	return FromDocument(doc, filepath.Dir(path), strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
}

// FromDocument extracts an Asset. baseDir resolves external buffer URIs that
// were not already loaded; id becomes the skeleton ID when non-empty.
func FromDocument(doc *gltf.Document, baseDir, id string) (*Asset, error) {
	r := &reader{doc: doc, baseDir: baseDir}

	skel, err := r.skeleton(id)
	if err != nil {
		return nil, err
	}

	clips := make([]*clip.Clip, 0, len(doc.Animations))
	for i := range doc.Animations {
		c, err := r.animation(i)
		if err != nil {
			return nil, err
		}
		clips = append(clips, c)
	}

	return &Asset{
		Avatar: skeleton.Avatar{Skeleton: skel, Morphs: r.morphs()},
		Clips:  clips,
	}, nil
}

// ClipLoader serves the animations of a document as a clip.Loader.
type ClipLoader struct {
	clips map[string]*clip.Clip
}

// NewClipLoader indexes an asset's clips by name.
func NewClipLoader(a *Asset) *ClipLoader {
	l := &ClipLoader{clips: make(map[string]*clip.Clip, len(a.Clips))}
	for _, c := range a.Clips {
		l.clips[c.Name] = c
	}
	return l
}

// Load implements clip.Loader.
func (l *ClipLoader) Load(name string) (*clip.Clip, error) {
	c, ok := l.clips[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s: %w", clip.ErrNotFound, name, ErrAnimationMissing)
	}
	return c, nil
}

// Names lists the embedded animation names, sorted.
func (l *ClipLoader) Names() []string {
	names := make([]string, 0, len(l.clips))
	for n := range l.clips {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type reader struct {
	doc     *gltf.Document
	baseDir string
	buffers map[int][]byte
}

// skeleton collects skin joints in skin order; documents without skins fall
// back to every node that carries no mesh.
func (r *reader) skeleton(id string) (*skeleton.Skeleton, error) {
	parents := make(map[int]int, len(r.doc.Nodes))
	for i, n := range r.doc.Nodes {
		for _, child := range n.Children {
			parents[int(child)] = i
		}
	}

	var nodes []int
	seen := make(map[int]bool)
	for _, skin := range r.doc.Skins {
		for _, j := range skin.Joints {
			if !seen[int(j)] {
				seen[int(j)] = true
				nodes = append(nodes, int(j))
			}
		}
	}
	if len(nodes) == 0 {
		for i, n := range r.doc.Nodes {
			if n.Mesh == nil && n.Name != "" {
				seen[i] = true
				nodes = append(nodes, i)
			}
		}
	}
	if len(nodes) == 0 {
		return nil, ErrNoSkeleton
	}

	position := make(map[int]int, len(nodes))
	for pos, n := range nodes {
		position[n] = pos
	}

	bones := make([]skeleton.Bone, len(nodes))
	for pos, ni := range nodes {
		n := r.doc.Nodes[ni]
		parent := -1
		if p, ok := parents[ni]; ok && seen[p] {
			parent = position[p]
		}
		t, rot, s := n.Translation, n.RotationOrDefault(), n.ScaleOrDefault()
		bones[pos] = skeleton.Bone{
			Name:   n.Name,
			Parent: parent,
			Local: skeleton.Transform{
				Translation: mgl32.Vec3{float32(t[0]), float32(t[1]), float32(t[2])},
				Rotation:    mgl32.Quat{W: float32(rot[3]), V: mgl32.Vec3{float32(rot[0]), float32(rot[1]), float32(rot[2])}},
				Scale:       mgl32.Vec3{float32(s[0]), float32(s[1]), float32(s[2])},
			},
		}
	}
	return skeleton.New(id, bones), nil
}

// morphs reads per-mesh blendshape names from the mesh "targetNames" extras,
// keyed by the name of the node instancing the mesh.
func (r *reader) morphs() skeleton.MorphDictionary {
	dict := make(skeleton.MorphDictionary)
	for ni, n := range r.doc.Nodes {
		if n.Mesh == nil {
			continue
		}
		mesh := r.doc.Meshes[*n.Mesh]
		names := targetNames(mesh.Extras)
		if len(names) == 0 {
			continue
		}
		key := n.Name
		if key == "" {
			key = mesh.Name
		}
		if key == "" {
			key = fmt.Sprintf("mesh_%d", ni)
		}
		slots := make(map[string]int, len(names))
		for slot, name := range names {
			if name != "" {
				slots[name] = slot
			}
		}
		dict[key] = slots
	}
	return dict
}

func targetNames(extras any) []string {
	m, ok := extras.(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := m["targetNames"].([]any)
	if !ok {
		return nil
	}
	names := make([]string, len(raw))
	for i, v := range raw {
		if s, ok := v.(string); ok {
			names[i] = s
		}
	}
	return names
}

func (r *reader) animation(idx int) (*clip.Clip, error) {
	anim := r.doc.Animations[idx]
	name := anim.Name
	if name == "" {
		name = fmt.Sprintf("animation_%d", idx)
	}

	c := &clip.Clip{Name: name}
	for _, ch := range anim.Channels {
		if ch.Target.Node == nil {
			continue
		}
		var prop clip.Property
		switch ch.Target.Path {
		case gltf.TRSTranslation:
			prop = clip.Translation
		case gltf.TRSRotation:
			prop = clip.Rotation
		case gltf.TRSScale:
			prop = clip.Scale
		default:
			// Morph weight channels are owned by the blend engine.
			continue
		}

		sampler := anim.Samplers[ch.Sampler]
		times, err := r.floats(int(sampler.Input), 1)
		if err != nil {
			return nil, fmt.Errorf("animation %s input: %w", name, err)
		}
		values, err := r.floats(int(sampler.Output), prop.Components())
		if err != nil {
			return nil, fmt.Errorf("animation %s output: %w", name, err)
		}

		interp := clip.Linear
		switch sampler.Interpolation {
		case gltf.InterpolationStep:
			interp = clip.Step
		case gltf.InterpolationCubicSpline:
			values = splineValues(values, prop.Components())
		}

		c.Tracks = append(c.Tracks, clip.Track{
			Bone:          r.doc.Nodes[*ch.Target.Node].Name,
			Property:      prop,
			Interpolation: interp,
			Times:         times,
			Values:        values,
		})
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// splineValues keeps the value element of each (in-tangent, value,
// out-tangent) triple; the tangents are dropped and the track is sampled
// linearly.
func splineValues(values []float32, comps int) []float32 {
	stride := comps * 3
	out := make([]float32, 0, len(values)/3)
	for i := 0; i+stride <= len(values); i += stride {
		out = append(out, values[i+comps:i+2*comps]...)
	}
	return out
}

// floats reads a float accessor, expecting comps components per element.
func (r *reader) floats(accessorIdx, comps int) ([]float32, error) {
	acc := r.doc.Accessors[accessorIdx]
	if acc.ComponentType != gltf.ComponentFloat {
		return nil, fmt.Errorf("%w: accessor %d component type %v", ErrUnsupportedData, accessorIdx, acc.ComponentType)
	}
	if acc.BufferView == nil {
		return nil, fmt.Errorf("%w: accessor %d has no buffer view", ErrUnsupportedData, accessorIdx)
	}
	view := r.doc.BufferViews[*acc.BufferView]
	data, err := r.buffer(int(view.Buffer))
	if err != nil {
		return nil, err
	}

	count := int(acc.Count)
	stride := int(view.ByteStride)
	if stride == 0 {
		stride = comps * 4
	}
	offset := int(view.ByteOffset) + int(acc.ByteOffset)
	if need := offset + (count-1)*stride + comps*4; count > 0 && need > len(data) {
		return nil, fmt.Errorf("%w: accessor %d overruns buffer", ErrUnsupportedData, accessorIdx)
	}

	out := make([]float32, 0, count*comps)
	for i := 0; i < count; i++ {
		base := offset + i*stride
		for c := 0; c < comps; c++ {
			bits := binary.LittleEndian.Uint32(data[base+c*4:])
			out = append(out, math.Float32frombits(bits))
		}
	}
	return out, nil
}

func (r *reader) buffer(idx int) ([]byte, error) {
	if data, ok := r.buffers[idx]; ok {
		return data, nil
	}
	buf := r.doc.Buffers[idx]
	data := buf.Data
	if len(data) == 0 {
		if buf.URI == "" || strings.HasPrefix(buf.URI, "data:") {
			return nil, fmt.Errorf("%w: buffer %d has no loaded data", ErrUnsupportedData, idx)
		}
		var err error
		data, err = os.ReadFile(filepath.Join(r.baseDir, buf.URI))
		if err != nil {
			return nil, fmt.Errorf("read buffer file: %w", err)
		}
	}
	if r.buffers == nil {
		r.buffers = make(map[int][]byte)
	}
	r.buffers[idx] = data
	return data, nil
}
