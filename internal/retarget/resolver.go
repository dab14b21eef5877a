// Package retarget rebinds animation clip tracks authored for one skeleton's
// bone names onto a target skeleton.
package retarget

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/normanking/cortexrig/internal/clip"
	"github.com/normanking/cortexrig/internal/skeleton"
)

// DefaultPrefixes are the vendor prefixes stripped from source bone names.
// Longer spellings come first so "mixamorig:Hips" does not leave a colon.
var DefaultPrefixes = []string{"mixamorig:", "mixamorig_", "mixamorig"}

// Clip is an AnimationClip rewritten for one skeleton.
type Clip struct {
	Name       string
	Duration   float32
	SkeletonID string
	Tracks     []clip.Track

	// Bindings maps source bone name to target bone name for every kept bone.
	Bindings map[string]string
	// Unmapped lists source bones that matched nothing on the skeleton.
	Unmapped []string
	// Excluded lists source bones dropped by the exclusion list.
	Excluded []string
}

// Empty reports whether no track survived retargeting. Such clips must not
// be played; they would silently idle.
func (c *Clip) Empty() bool {
	return len(c.Tracks) == 0
}

// Options configures a Resolver.
type Options struct {
	Prefixes []string
	// Debug panics when a produced track is bound to a bone the skeleton
	// lacks. Otherwise the track is dropped and the violation logged.
	Debug bool
}

// Resolver retargets clips and caches results per (clip, skeleton, exclude set).
type Resolver struct {
	mu       sync.Mutex
	prefixes []string
	debug    bool
	cache    map[cacheKey]*Clip
	log      zerolog.Logger
}

type cacheKey struct {
	clip     string
	skeleton string
	exclude  string
}

// NewResolver creates a Resolver. Empty Prefixes means DefaultPrefixes.
func NewResolver(opts Options, log zerolog.Logger) *Resolver {
	prefixes := opts.Prefixes
	if len(prefixes) == 0 {
		prefixes = DefaultPrefixes
	}
	return &Resolver{
		prefixes: prefixes,
		debug:    opts.Debug,
		cache:    make(map[cacheKey]*Clip),
		log:      log,
	}
}

// Retarget rewrites src for skel. It never fails: bones that can't be bound
// are dropped and recorded.
func (r *Resolver) Retarget(src *clip.Clip, skel *skeleton.Skeleton, exclude []string) *Clip {
	key := cacheKey{clip: src.Name, skeleton: skel.ID, exclude: excludeKey(exclude)}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.cache[key]; ok {
		return cached
	}

	out := r.retarget(src, skel, exclude)
	r.cache[key] = out

	ev := r.log.Debug().
		Str("clip", src.Name).
		Str("skeleton", skel.ID).
		Int("tracks", len(out.Tracks)).
		Int("sourceTracks", len(src.Tracks)).
		Int("excluded", len(out.Excluded))
	if len(out.Unmapped) > 0 {
		ev = ev.Strs("unmapped", out.Unmapped)
	}
	ev.Msg("Clip retargeted")
	if out.Empty() {
		r.log.Warn().Str("clip", src.Name).Str("skeleton", skel.ID).Msg("Retargeted clip has no tracks")
	}
	return out
}

func (r *Resolver) retarget(src *clip.Clip, skel *skeleton.Skeleton, exclude []string) *Clip {
	out := &Clip{
		Name:       src.Name,
		Duration:   src.Duration,
		SkeletonID: skel.ID,
		Bindings:   make(map[string]string),
	}

	type resolution struct {
		target   string
		excluded bool
		ok       bool
	}
	resolved := make(map[string]resolution)

	for _, tr := range src.Tracks {
		res, seen := resolved[tr.Bone]
		if !seen {
			switch {
			case Excluded(tr.Bone, exclude):
				res = resolution{excluded: true}
				out.Excluded = append(out.Excluded, tr.Bone)
			default:
				target, ok := r.Resolve(tr.Bone, skel)
				res = resolution{target: target, ok: ok}
				if ok {
					out.Bindings[tr.Bone] = target
				} else {
					out.Unmapped = append(out.Unmapped, tr.Bone)
				}
			}
			resolved[tr.Bone] = res
		}
		if res.excluded || !res.ok {
			continue
		}
		if !skel.Has(res.target) {
			r.violation(src.Name, tr, res.target)
			continue
		}
		out.Tracks = append(out.Tracks, tr.WithBone(res.target))
	}
	return out
}

func (r *Resolver) violation(clipName string, tr clip.Track, target string) {
	msg := fmt.Sprintf("retarget: clip %s track %s bound to missing bone %q", clipName, tr.Name(), target)
	if r.debug {
		panic(msg)
	}
	r.log.Error().Str("clip", clipName).Str("track", tr.Name()).Str("bone", target).Msg("Dropped track bound to missing bone")
}

// Resolve finds the skeleton bone for a source bone name: prefix strip,
// exact, case-insensitive, then fuzzy alternatives. First match wins.
func (r *Resolver) Resolve(source string, skel *skeleton.Skeleton) (string, bool) {
	canonical := StripPrefix(source, r.prefixes)

	if skel.Has(canonical) {
		return canonical, true
	}
	if name, ok := skel.Lookup(canonical); ok {
		return name, true
	}
	for _, alt := range r.alternatives(source, canonical) {
		if name, ok := skel.Lookup(alt); ok {
			return name, true
		}
	}
	return "", false
}

// alternatives lists fuzzy candidates for canonical. The untouched source
// name goes first so a target rig that keeps the vendor prefix still binds.
func (r *Resolver) alternatives(source, canonical string) []string {
	alts := []string{source}
	for _, p := range r.prefixes {
		alts = append(alts, p+canonical)
	}
	return append(alts, Alternatives(canonical)...)
}

// Invalidate drops every cached result for a skeleton and returns how many
// entries were removed.
func (r *Resolver) Invalidate(skeletonID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k := range r.cache {
		if k.skeleton == skeletonID {
			delete(r.cache, k)
			n++
		}
	}
	return n
}

// InvalidateClip drops every cached result derived from a source clip.
func (r *Resolver) InvalidateClip(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k := range r.cache {
		if k.clip == name {
			delete(r.cache, k)
			n++
		}
	}
	return n
}

// Len returns the number of cached results.
func (r *Resolver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}

// Excluded reports whether bone matches any exclusion entry by
// case-insensitive containment in either direction.
func Excluded(bone string, exclude []string) bool {
	lb := strings.ToLower(bone)
	for _, e := range exclude {
		le := strings.ToLower(strings.TrimSpace(e))
		if le == "" {
			continue
		}
		if strings.Contains(lb, le) || strings.Contains(le, lb) {
			return true
		}
	}
	return false
}

// StripPrefix removes the first matching vendor prefix, compared
// case-insensitively. A name that is only the prefix is returned unchanged.
func StripPrefix(name string, prefixes []string) string {
	lower := strings.ToLower(name)
	for _, p := range prefixes {
		lp := strings.ToLower(p)
		if lp != "" && len(name) > len(p) && strings.HasPrefix(lower, lp) {
			return name[len(p):]
		}
	}
	return name
}

func excludeKey(exclude []string) string {
	if len(exclude) == 0 {
		return ""
	}
	keys := make([]string, 0, len(exclude))
	for _, e := range exclude {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			keys = append(keys, e)
		}
	}
	sort.Strings(keys)
	return strings.Join(keys, "\x00")
}
