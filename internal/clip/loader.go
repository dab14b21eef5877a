package clip

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader resolves a clip name to a parsed clip.
type Loader interface {
	Load(name string) (*Clip, error)
}

// clipFile is the on-disk layout. JSON files use the same keys; yaml.v3
// reads both.
type clipFile struct {
	Name     string      `yaml:"name"`
	Duration float32     `yaml:"duration"`
	Tracks   []trackFile `yaml:"tracks"`
}

type trackFile struct {
	// Name is the combined "bone.property" form; Bone/Property win when set.
	Name          string    `yaml:"name"`
	Bone          string    `yaml:"bone"`
	Property      string    `yaml:"property"`
	Interpolation string    `yaml:"interpolation"`
	Times         []float32 `yaml:"times"`
	Values        []float32 `yaml:"values"`
}

// Chain tries each loader in order. A loader reporting ErrNotFound passes
// the name on; any other error stops the search.
type Chain []Loader

func (c Chain) Load(name string) (*Clip, error) {
	for _, l := range c {
		clip, err := l.Load(name)
		if err == nil {
			return clip, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Extensions tried by DirLoader, in order.
var Extensions = []string{".yaml", ".yml", ".json"}

// DirLoader reads <dir>/<name>.{yaml,yml,json}.
type DirLoader struct {
	Dir string
}

// Load reads and validates the named clip.
func (l DirLoader) Load(name string) (*Clip, error) {
	for _, ext := range Extensions {
		path := filepath.Join(l.Dir, name+ext)
		f, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("open clip %s: %w", path, err)
		}
		c, err := Decode(name, f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("decode clip %s: %w", path, err)
		}
		return c, nil
	}
	return nil, fmt.Errorf("%w: %s in %s", ErrNotFound, name, l.Dir)
}

// Names lists the clip names available in the directory.
func (l DirLoader) Names() ([]string, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		return nil, fmt.Errorf("list clips: %w", err)
	}
	seen := make(map[string]struct{})
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name, ok := NameFromPath(e.Name())
		if !ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names, nil
}

// NameFromPath returns the clip name for a clip file path.
func NameFromPath(path string) (string, bool) {
	base := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(base))
	for _, known := range Extensions {
		if ext == known {
			return strings.TrimSuffix(base, filepath.Ext(base)), true
		}
	}
	return "", false
}

// Decode parses one clip document. fallbackName is used when the document
// has no name of its own.
func Decode(fallbackName string, r io.Reader) (*Clip, error) {
	var raw clipFile
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClip, err)
	}

	c := &Clip{
		Name:     raw.Name,
		Duration: raw.Duration,
		Tracks:   make([]Track, 0, len(raw.Tracks)),
	}
	if c.Name == "" {
		c.Name = fallbackName
	}

	for i, rt := range raw.Tracks {
		bone, prop := rt.Bone, Property("")
		if rt.Property != "" {
			p, ok := ParseProperty(rt.Property)
			if !ok {
				return nil, fmt.Errorf("%w: track %d has unknown property %q", ErrInvalidClip, i, rt.Property)
			}
			prop = p
		}
		if rt.Name != "" && (bone == "" || prop == "") {
			b, p, ok := SplitTrackName(rt.Name)
			if !ok {
				return nil, fmt.Errorf("%w: track name %q is not bone.property", ErrInvalidClip, rt.Name)
			}
			if bone == "" {
				bone = b
			}
			if prop == "" {
				prop = p
			}
		}
		if prop == "" {
			return nil, fmt.Errorf("%w: track %d has no property", ErrInvalidClip, i)
		}
		c.Tracks = append(c.Tracks, Track{
			Bone:          bone,
			Property:      prop,
			Interpolation: Interpolation(strings.ToLower(rt.Interpolation)),
			Times:         rt.Times,
			Values:        rt.Values,
		})
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
