package model

import (
	"sort"
	"sync"

	"github.com/c360studio/contentmesh/task"
)

// Registry maps task kinds to generation profiles.
type Registry struct {
	mu       sync.RWMutex
	profiles map[task.Kind]*Profile
	defaults *Profile
}

// NewRegistry creates a registry with the given profiles.
// Kinds without a profile use the generic profile, then a neutral default.
func NewRegistry(profiles map[task.Kind]*Profile) *Registry {
	if profiles == nil {
		profiles = make(map[task.Kind]*Profile)
	}
	return &Registry{
		profiles: profiles,
		defaults: &Profile{
			Description: "Fallback profile for unconfigured kinds",
			Temperature: 0.7,
			FixedTokens: 1024,
		},
	}
}

// NewDefaultRegistry creates a registry with the settings the services have
// always used against the Gemini generateContent API.
func NewDefaultRegistry() *Registry {
	return NewRegistry(map[task.Kind]*Profile{
		task.KindContentGeneration: {
			Description:   "Long-form HTML blog posts",
			Temperature:   0.7,
			TopK:          40,
			TopP:          0.95,
			TokensPerWord: 2,
		},
		task.KindGeneric: {
			Description:   "General-purpose HTML articles",
			Temperature:   0.7,
			TopK:          40,
			TopP:          0.95,
			TokensPerWord: 2,
		},
		task.KindSocialPost: {
			Description: "Short social media posts with hashtags",
			Temperature: 0.8,
			FixedTokens: 256,
		},
		task.KindIntentParse: {
			Description: "Structured intent extraction",
			Temperature: 0.1,
			FixedTokens: 1000,
		},
	})
}

// Resolve returns the profile for a kind.
func (r *Registry) Resolve(kind task.Kind) *Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.profiles[kind]; ok {
		return p
	}
	if p, ok := r.profiles[task.KindGeneric]; ok {
		return p
	}
	return r.defaults
}

// Generation returns the call parameters for a kind and target size.
func (r *Registry) Generation(kind task.Kind, targetSize int) Generation {
	return r.Resolve(kind).Generation(targetSize)
}

// SetProfile updates or adds the profile for a kind.
func (r *Registry) SetProfile(kind task.Kind, p *Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.profiles[kind] = p
}

// ListKinds returns all kinds with an explicit profile, sorted.
func (r *Registry) ListKinds() []task.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]task.Kind, 0, len(r.profiles))
	for k := range r.profiles {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
