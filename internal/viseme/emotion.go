package viseme

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Neutral is the all-zero profile used for empty and unknown labels.
const Neutral = "neutral"

var ErrInvalidProfile = errors.New("invalid emotion profile")

// Profile is a named expression preset.
type Profile struct {
	Name    string
	Weights Weights
}

func profile(name string, values map[Channel]float32) Profile {
	p := Profile{Name: name}
	for c, v := range values {
		p.Weights.Set(c, v)
	}
	return p
}

func builtinProfiles() map[string]Profile {
	list := []Profile{
		{Name: Neutral},
		profile("attentive", map[Channel]float32{
			BrowInnerUp: 0.15, EyeWideLeft: 0.1, EyeWideRight: 0.1,
			MouthSmileLeft: 0.05, MouthSmileRight: 0.05,
		}),
		profile("thinking", map[Channel]float32{
			BrowInnerUp: 0.25, EyeLookUpLeft: 0.3, EyeLookUpRight: 0.3,
			MouthPressLeft: 0.1, MouthPressRight: 0.1,
		}),
		profile("concerned", map[Channel]float32{
			BrowInnerUp: 0.35, BrowDownLeft: 0.2, BrowDownRight: 0.2,
			MouthFrownLeft: 0.15, MouthFrownRight: 0.15,
		}),
		profile("confident", map[Channel]float32{
			MouthSmileLeft: 0.2, MouthSmileRight: 0.2,
			CheekSquintLeft: 0.1, CheekSquintRight: 0.1,
			EyeSquintLeft: 0.05, EyeSquintRight: 0.05,
		}),
		profile("surprised", map[Channel]float32{
			BrowInnerUp: 0.4, BrowOuterUpLeft: 0.3, BrowOuterUpRight: 0.3,
			EyeWideLeft: 0.4, EyeWideRight: 0.4, JawOpen: 0.2,
		}),
		profile("happy", map[Channel]float32{
			MouthSmileLeft: 0.4, MouthSmileRight: 0.4,
			CheekSquintLeft: 0.25, CheekSquintRight: 0.25,
			EyeSquintLeft: 0.15, EyeSquintRight: 0.15,
		}),
		profile("sad", map[Channel]float32{
			BrowInnerUp: 0.4, BrowDownLeft: 0.1, BrowDownRight: 0.1,
			MouthFrownLeft: 0.25, MouthFrownRight: 0.25,
			EyeSquintLeft: 0.1, EyeSquintRight: 0.1,
		}),
		profile("angry", map[Channel]float32{
			BrowDownLeft: 0.6, BrowDownRight: 0.6,
			EyeSquintLeft: 0.25, EyeSquintRight: 0.25,
			NoseSneerLeft: 0.3, NoseSneerRight: 0.3,
			MouthPressLeft: 0.4, MouthPressRight: 0.4,
			MouthFrownLeft: 0.3, MouthFrownRight: 0.3,
			JawForward: 0.1,
		}),
	}
	out := make(map[string]Profile, len(list))
	for _, p := range list {
		out[p.Name] = p
	}
	return out
}

var aliases = map[string]string{
	"":          Neutral,
	"calm":      Neutral,
	"joy":       "happy",
	"joyful":    "happy",
	"excited":   "happy",
	"sadness":   "sad",
	"anger":     "angry",
	"mad":       "angry",
	"surprise":  "surprised",
	"worried":   "concerned",
	"curious":   "thinking",
	"listening": "attentive",
}

// Profiles is a lookup table of emotion profiles.
type Profiles struct {
	byName map[string]Profile
}

// DefaultProfiles returns the built-in table.
func DefaultProfiles() *Profiles {
	return &Profiles{byName: builtinProfiles()}
}

// Get resolves a label through aliases. Unknown labels yield the neutral
// profile and ok=false.
func (p *Profiles) Get(label string) (Profile, bool) {
	key := strings.ToLower(strings.TrimSpace(label))
	if alias, ok := aliases[key]; ok {
		key = alias
	}
	if prof, ok := p.byName[key]; ok {
		return prof, true
	}
	return p.byName[Neutral], false
}

// Names returns the profile names in sorted order.
func (p *Profiles) Names() []string {
	names := make([]string, 0, len(p.byName))
	for n := range p.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Override replaces or adds a profile.
func (p *Profiles) Override(prof Profile) {
	prof.Name = strings.ToLower(prof.Name)
	p.byName[prof.Name] = prof
}

// LoadProfiles reads a YAML file of the form
//
//	happy:
//	  mouthSmileLeft: 0.5
//
// and layers it over the built-in table. The neutral profile cannot be
// overridden.
func LoadProfiles(path string) (*Profiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read emotion profiles: %w", err)
	}
	return ParseProfiles(data)
}

// ParseProfiles is LoadProfiles over an in-memory document.
func ParseProfiles(data []byte) (*Profiles, error) {
	var doc map[string]map[string]float32
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}

	profiles := DefaultProfiles()
	for name, values := range doc {
		if strings.EqualFold(name, Neutral) {
			return nil, fmt.Errorf("%w: %q is reserved", ErrInvalidProfile, Neutral)
		}
		w, unknown := WeightsFromMap(values)
		if len(unknown) > 0 {
			sort.Strings(unknown)
			return nil, fmt.Errorf("%w: %s: unknown blendshapes %s", ErrInvalidProfile, name, strings.Join(unknown, ", "))
		}
		profiles.Override(Profile{Name: name, Weights: w})
	}
	return profiles, nil
}
