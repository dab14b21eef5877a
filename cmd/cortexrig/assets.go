package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/normanking/cortexrig/internal/clip"
	"github.com/normanking/cortexrig/internal/gltfasset"
	"github.com/normanking/cortexrig/internal/skeleton"
	"github.com/normanking/cortexrig/internal/syncclock"
	"github.com/normanking/cortexrig/internal/viseme"
)

// referenceBones is a Mixamo-shaped humanoid without the vendor prefix,
// listed parent first.
var referenceBones = []struct {
	name   string
	parent string
}{
	{"Hips", ""},
	{"Spine", "Hips"},
	{"Spine1", "Spine"},
	{"Spine2", "Spine1"},
	{"Neck", "Spine2"},
	{"Head", "Neck"},
	{"Jaw", "Head"},
	{"LeftEye", "Head"},
	{"RightEye", "Head"},
	{"LeftShoulder", "Spine2"},
	{"LeftArm", "LeftShoulder"},
	{"LeftForeArm", "LeftArm"},
	{"LeftHand", "LeftForeArm"},
	{"RightShoulder", "Spine2"},
	{"RightArm", "RightShoulder"},
	{"RightForeArm", "RightArm"},
	{"RightHand", "RightForeArm"},
	{"LeftUpLeg", "Hips"},
	{"LeftLeg", "LeftUpLeg"},
	{"LeftFoot", "LeftLeg"},
	{"RightUpLeg", "Hips"},
	{"RightLeg", "RightUpLeg"},
	{"RightFoot", "RightLeg"},
}

// referenceAvatar is used when no avatar file is given. Its head mesh
// carries every ARKit blendshape; the teeth mesh only follows the jaw.
func referenceAvatar() *skeleton.Avatar {
	index := make(map[string]int, len(referenceBones))
	bones := make([]skeleton.Bone, len(referenceBones))
	for i, rb := range referenceBones {
		parent := -1
		if rb.parent != "" {
			parent = index[rb.parent]
		}
		index[rb.name] = i
		bones[i] = skeleton.Bone{Name: rb.name, Parent: parent, Local: skeleton.IdentityTransform()}
	}

	head := make(map[string]int, viseme.ChannelCount)
	for c := viseme.Channel(0); c < viseme.ChannelCount; c++ {
		head[c.String()] = int(c)
	}
	return &skeleton.Avatar{
		Skeleton: skeleton.New("reference-"+uuid.NewString(), bones),
		Morphs: skeleton.MorphDictionary{
			"Head":  head,
			"Teeth": {viseme.JawOpen.String(): 0, viseme.TongueOut.String(): 1},
		},
	}
}

// loadAvatar returns the avatar and the clip loaders that serve it: the
// clip directory first, then any animations embedded in the avatar file.
func loadAvatar(path, clipsDir string) (*skeleton.Avatar, clip.Chain, error) {
	loaders := clip.Chain{clip.DirLoader{Dir: clipsDir}}
	if path == "" {
		return referenceAvatar(), loaders, nil
	}

	asset, err := gltfasset.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if len(asset.Clips) > 0 {
		loaders = append(loaders, gltfasset.NewClipLoader(asset))
	}
	return &asset.Avatar, loaders, nil
}

// clipNames lists every clip the loaders can serve, configured names first.
func clipNames(configured []string, loaders clip.Chain) []string {
	seen := make(map[string]struct{})
	var names []string
	add := func(n string) {
		if _, ok := seen[n]; ok {
			return
		}
		seen[n] = struct{}{}
		names = append(names, n)
	}
	for _, n := range configured {
		add(n)
	}

	var extra []string
	for _, l := range loaders {
		switch l := l.(type) {
		case clip.DirLoader:
			if found, err := l.Names(); err == nil {
				extra = append(extra, found...)
			}
		case *gltfasset.ClipLoader:
			extra = append(extra, l.Names()...)
		}
	}
	sort.Strings(extra)
	for _, n := range extra {
		add(n)
	}
	return names
}

// loadProfiles layers the configured profile file over the built-ins.
func loadProfiles(path string) (*viseme.Profiles, error) {
	if path == "" {
		return viseme.DefaultProfiles(), nil
	}
	return viseme.LoadProfiles(path)
}

// script is a speech response read from disk: either a bare phoneme list or
// a document with an emotion label.
type script struct {
	Emotion  string              `yaml:"emotion"`
	Phonemes []syncclock.Phoneme `yaml:"phonemes"`
}

// readScript reads a JSON or YAML phoneme file.
func readScript(path string) (*script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read phonemes: %w", err)
	}
	return parseScript(data)
}

func parseScript(data []byte) (*script, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse phonemes: %w", err)
	}
	s := &script{}
	if len(doc.Content) == 0 {
		return s, nil
	}

	root := doc.Content[0]
	var err error
	switch root.Kind {
	case yaml.SequenceNode:
		err = root.Decode(&s.Phonemes)
	case yaml.MappingNode:
		err = root.Decode(s)
	default:
		err = fmt.Errorf("expected a list or a mapping, got %s", root.Tag)
	}
	if err != nil {
		return nil, fmt.Errorf("parse phonemes: %w", err)
	}
	return s, nil
}

func (s *script) end() float64 {
	var end float64
	for _, p := range s.Phonemes {
		end = max(end, p.End)
	}
	return end
}

// simAudio is an audio player that advances with the simulated frame clock.
type simAudio struct {
	id       string
	position float64
	duration float64
	paused   bool
	ended    bool
}

func newSimAudio(duration float64) *simAudio {
	return &simAudio{id: uuid.NewString(), duration: duration}
}

func (a *simAudio) ID() string           { return a.id }
func (a *simAudio) CurrentTime() float64 { return a.position }
func (a *simAudio) Duration() float64    { return a.duration }
func (a *simAudio) Paused() bool         { return a.paused }
func (a *simAudio) Ended() bool          { return a.ended }

func (a *simAudio) advance(dt float64) {
	if a.paused || a.ended {
		return
	}
	a.position += dt
	if a.position >= a.duration {
		a.position = a.duration
		a.ended = true
	}
}
