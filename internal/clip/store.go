package clip

import (
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Store caches clips by name. Clips are shared read-only between callers.
type Store struct {
	mu     sync.RWMutex
	loader Loader
	clips  map[string]*Clip
	log    zerolog.Logger
}

// NewStore creates a store backed by loader. A nil loader makes a store that
// only serves clips added with Put.
func NewStore(loader Loader, log zerolog.Logger) *Store {
	return &Store{
		loader: loader,
		clips:  make(map[string]*Clip),
		log:    log,
	}
}

// Get returns the cached clip, loading it on first use.
func (s *Store) Get(name string) (*Clip, error) {
	s.mu.RLock()
	c, ok := s.clips[name]
	s.mu.RUnlock()
	if ok {
		return c, nil
	}
	if s.loader == nil {
		return nil, ErrNotFound
	}

	c, err := s.loader.Load(name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another caller may have loaded it meanwhile; keep the first copy.
	if existing, ok := s.clips[name]; ok {
		return existing, nil
	}
	s.clips[name] = c
	s.log.Debug().Str("clip", name).Int("tracks", len(c.Tracks)).Float32("duration", c.Duration).Msg("Clip loaded")
	return c, nil
}

// Put registers an already-built clip, replacing any cached copy.
func (s *Store) Put(c *Clip) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clips[c.Name] = c
}

// Preload loads every name, returning the ones that loaded. Missing clips
// are logged and skipped; any other error is returned after the loop.
func (s *Store) Preload(names []string) ([]string, error) {
	var loaded []string
	var errs []error
	for _, name := range names {
		if _, err := s.Get(name); err != nil {
			if errors.Is(err, ErrNotFound) {
				s.log.Warn().Str("clip", name).Msg("Clip not found, skipping")
				continue
			}
			errs = append(errs, err)
			continue
		}
		loaded = append(loaded, name)
	}
	return loaded, errors.Join(errs...)
}

// Evict drops a cached clip so the next Get reloads it.
func (s *Store) Evict(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.clips[name]
	delete(s.clips, name)
	return ok
}

// Names returns the cached clip names, sorted.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.clips))
	for name := range s.clips {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
