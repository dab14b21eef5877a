package skeleton

import "sort"

// MorphDictionary maps mesh name -> blendshape name -> influence slot.
type MorphDictionary map[string]map[string]int

// MorphSlot is one resolved (mesh, slot) destination for a blendshape.
type MorphSlot struct {
	Mesh string
	Slot int
}

// Slots returns every (mesh, slot) pair carrying the named blendshape,
// ordered by mesh name so renderer writes are deterministic.
func (d MorphDictionary) Slots(name string) []MorphSlot {
	var out []MorphSlot
	for mesh, targets := range d {
		if slot, ok := targets[name]; ok {
			out = append(out, MorphSlot{Mesh: mesh, Slot: slot})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Mesh < out[j].Mesh })
	return out
}

// Meshes returns the mesh names in sorted order.
func (d MorphDictionary) Meshes() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Avatar is what the asset loader hands to the engine for one character.
type Avatar struct {
	Skeleton *Skeleton
	Morphs   MorphDictionary
}
