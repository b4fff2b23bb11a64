// Package profiles serves named submission presets back to clients.
//
// A profile file is a YAML mapping of profile name to an arbitrary
// overlay the client merges into its own job submission. The proxy never
// applies profiles server side; it only publishes them so every notebook
// sees the same presets.
package profiles

import (
	"fmt"
	"os"
	"sort"

	"sigs.k8s.io/yaml"
)

// Store holds the loaded profile map.
type Store struct {
	profiles map[string]any
}

// New creates a Store from an in-memory profile map. A nil map yields an
// empty store.
func New(profiles map[string]any) *Store {
	if profiles == nil {
		profiles = map[string]any{}
	}
	return &Store{profiles: profiles}
}

// Load reads a profile file. An empty path yields an empty store, matching
// a deployment with no profiles configured.
func Load(path string) (*Store, error) {
	if path == "" {
		return New(nil), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file %s: %w", path, err)
	}

	var profiles map[string]any
	if err := yaml.Unmarshal(raw, &profiles); err != nil {
		return nil, fmt.Errorf("failed to parse profile file %s: %w", path, err)
	}

	return New(profiles), nil
}

// All returns the full profile map for serving. Never nil.
func (s *Store) All() map[string]any {
	return s.profiles
}

// Get returns one profile by name.
func (s *Store) Get(name string) (any, bool) {
	profile, ok := s.profiles[name]
	return profile, ok
}

// Names returns the profile names in sorted order.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.profiles))
	for name := range s.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of profiles.
func (s *Store) Len() int {
	return len(s.profiles)
}
