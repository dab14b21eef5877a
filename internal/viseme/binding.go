package viseme

import (
	"strings"

	"github.com/normanking/cortexrig/internal/skeleton"
)

// MorphWriter receives per-mesh blendshape writes. Renderers implement it.
type MorphWriter interface {
	SetMorphWeight(mesh string, slot int, weight float32)
}

// MorphBinding is the channel to (mesh, slot) table for one avatar, resolved
// once when the avatar is bound.
type MorphBinding struct {
	slots   [ChannelCount][]skeleton.MorphSlot
	missing []Channel
	skipped uint64
}

// Bind resolves every channel against d, exact name first and then ignoring
// case.
func Bind(d skeleton.MorphDictionary) *MorphBinding {
	folded := make(map[string][]skeleton.MorphSlot)
	for _, mesh := range d.Meshes() {
		for name, slot := range d[mesh] {
			key := strings.ToLower(name)
			folded[key] = append(folded[key], skeleton.MorphSlot{Mesh: mesh, Slot: slot})
		}
	}

	b := &MorphBinding{}
	for i, name := range channelNames {
		slots := d.Slots(name)
		if len(slots) == 0 {
			slots = folded[strings.ToLower(name)]
		}
		if len(slots) == 0 {
			b.missing = append(b.missing, Channel(i))
			continue
		}
		b.slots[i] = slots
	}
	return b
}

// Apply writes w to every bound slot. Nonzero weights on unbound channels
// are counted and skipped.
func (b *MorphBinding) Apply(w *Weights, out MorphWriter) {
	for i, slots := range b.slots {
		if len(slots) == 0 {
			if w[i] != 0 {
				b.skipped++
			}
			continue
		}
		for _, s := range slots {
			out.SetMorphWeight(s.Mesh, s.Slot, w[i])
		}
	}
}

// Slots returns the destinations of c.
func (b *MorphBinding) Slots(c Channel) []skeleton.MorphSlot {
	return b.slots[c]
}

// Missing lists the channels no mesh carries.
func (b *MorphBinding) Missing() []string {
	out := make([]string, len(b.missing))
	for i, c := range b.missing {
		out[i] = c.String()
	}
	return out
}

// Bound is the number of channels with at least one destination.
func (b *MorphBinding) Bound() int {
	return int(ChannelCount) - len(b.missing)
}

// Skipped counts writes dropped because the channel had no destination.
func (b *MorphBinding) Skipped() uint64 {
	return b.skipped
}
