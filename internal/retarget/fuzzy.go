package retarget

import "strings"

// substitutions maps a lower-cased side-less bone base to the spellings other
// rigs use for the same joint. Mixamo and VRM humanoid naming differ mostly
// in the leg, toe and arm segments and in how the spine chain is counted.
var substitutions = map[string][]string{
	"upleg":      {"UpperLeg"},
	"upperleg":   {"UpLeg"},
	"leg":        {"LowerLeg"},
	"lowerleg":   {"Leg"},
	"toebase":    {"Toes", "Toe"},
	"toes":       {"ToeBase"},
	"toe":        {"ToeBase"},
	"forearm":    {"Forearm", "ForeArm", "LowerArm"},
	"lowerarm":   {"ForeArm"},
	"arm":        {"UpperArm"},
	"upperarm":   {"Arm"},
	"spine1":     {"Chest"},
	"spine2":     {"UpperChest"},
	"chest":      {"Spine1"},
	"upperchest": {"Spine2"},
}

type side struct {
	prefix string
	suffix []string
}

var sides = []side{
	{prefix: "Left", suffix: []string{"_L", ".L", "_l", ".l"}},
	{prefix: "Right", suffix: []string{"_R", ".R", "_r", ".r"}},
}

// splitSide separates a Left/Right marker, given either as a prefix
// ("LeftUpLeg", "leftUpperLeg") or a suffix ("UpperLeg_L"), from the base name.
func splitSide(name string) (base string, s *side) {
	lower := strings.ToLower(name)
	for i := range sides {
		sd := &sides[i]
		lp := strings.ToLower(sd.prefix)
		if strings.HasPrefix(lower, lp) && len(name) > len(lp) {
			return name[len(lp):], sd
		}
		for _, suf := range sd.suffix {
			if strings.HasSuffix(name, suf) && len(name) > len(suf) {
				return name[:len(name)-len(suf)], sd
			}
		}
	}
	return name, nil
}

// Alternatives returns fuzzy candidate spellings for a canonical bone name,
// in priority order: side marker moved between prefix and suffix form or
// removed, then segment substitutions combined with each side form.
// Candidates are meant to be compared case-insensitively.
func Alternatives(canonical string) []string {
	base, sd := splitSide(canonical)

	bases := []string{base}
	bases = append(bases, substitutions[strings.ToLower(base)]...)

	var out []string
	seen := map[string]bool{strings.ToLower(canonical): true}
	add := func(s string) {
		if s == "" {
			return
		}
		k := strings.ToLower(s)
		if seen[k] {
			return
		}
		seen[k] = true
		out = append(out, s)
	}

	for _, b := range bases {
		if sd == nil {
			add(b)
			continue
		}
		add(sd.prefix + b)
		for _, suf := range sd.suffix[:2] {
			add(b + suf)
		}
	}
	if sd != nil {
		// Removal last: a side-less match is the weakest binding.
		for _, b := range bases {
			add(b)
		}
	}
	return out
}
