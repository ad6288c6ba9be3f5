// Package model holds static model capability profiles and their registry.
package model

import (
	"fmt"
	"sort"
	"sync"

	"github.com/zen-systems/taskgate/pkg/complexity"
)

// Capability describes a model along four axes, each scored 1-10.
type Capability struct {
	Reasoning  int `yaml:"reasoning" json:"reasoning"`
	Speed      int `yaml:"speed" json:"speed"`
	Creativity int `yaml:"creativity" json:"creativity"`
	Accuracy   int `yaml:"accuracy" json:"accuracy"`
}

// Profile is the static description of one completion model. Loaded at
// startup and immutable for the process lifetime; Registry.Reload swaps the
// whole set for hot reload.
type Profile struct {
	ID            string
	Provider      string
	ProviderModel string
	Capability    Capability
	CostPerUnit   float64
	MaxInput      int
	Suitable      []complexity.Class
}

// SuitableFor reports whether the profile declares support for a class.
func (p *Profile) SuitableFor(class complexity.Class) bool {
	for _, c := range p.Suitable {
		if c == class {
			return true
		}
	}
	return false
}

// Admits reports whether an input of n bytes fits within the declared
// input limit. A zero or negative limit means unlimited.
func (p *Profile) Admits(n int) bool {
	return p.MaxInput <= 0 || n <= p.MaxInput
}

// CapabilityRank is the scalar used to order models by overall capability.
// Reasoning and accuracy dominate; speed matters least for correctness.
func (p *Profile) CapabilityRank() int {
	return 3*p.Capability.Reasoning + 3*p.Capability.Accuracy + 2*p.Capability.Creativity + p.Capability.Speed
}

// Registry is the process-wide profile set. Read-mostly: populated at
// startup, swapped wholesale on reload, never mutated in place.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
	order    []string
}

// NewRegistry builds a registry from profiles, rejecting duplicates and
// profiles with no declared suitable classes.
func NewRegistry(profiles []Profile) (*Registry, error) {
	r := &Registry{}
	if err := r.Reload(profiles); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload replaces the entire profile set.
func (r *Registry) Reload(profiles []Profile) error {
	byID := make(map[string]*Profile, len(profiles))
	order := make([]string, 0, len(profiles))
	for i := range profiles {
		p := profiles[i]
		if p.ID == "" {
			return fmt.Errorf("model profile missing id")
		}
		if _, dup := byID[p.ID]; dup {
			return fmt.Errorf("duplicate model profile %q", p.ID)
		}
		if len(p.Suitable) == 0 {
			return fmt.Errorf("model profile %q declares no suitable classes", p.ID)
		}
		byID[p.ID] = &p
		order = append(order, p.ID)
	}
	sort.Strings(order)

	r.mu.Lock()
	r.profiles = byID
	r.order = order
	r.mu.Unlock()
	return nil
}

// Get returns a profile by id.
func (r *Registry) Get(id string) (*Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[id]
	return p, ok
}

// All returns every profile in stable id order.
func (r *Registry) All() []*Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Profile, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.profiles[id])
	}
	return out
}

// ForClass returns the profiles declaring support for a class, in stable
// id order.
func (r *Registry) ForClass(class complexity.Class) []*Profile {
	var out []*Profile
	for _, p := range r.All() {
		if p.SuitableFor(class) {
			out = append(out, p)
		}
	}
	return out
}

// CheapestFor returns the lowest cost-per-unit profile supporting class
// that admits an input of inputLen bytes.
func (r *Registry) CheapestFor(class complexity.Class, inputLen int) (*Profile, bool) {
	var best *Profile
	for _, p := range r.ForClass(class) {
		if !p.Admits(inputLen) {
			continue
		}
		if best == nil || p.CostPerUnit < best.CostPerUnit {
			best = p
		}
	}
	return best, best != nil
}

// BestFor returns the highest-capability profile supporting class that
// admits an input of inputLen bytes.
func (r *Registry) BestFor(class complexity.Class, inputLen int) (*Profile, bool) {
	var best *Profile
	for _, p := range r.ForClass(class) {
		if !p.Admits(inputLen) {
			continue
		}
		if best == nil || p.CapabilityRank() > best.CapabilityRank() {
			best = p
		}
	}
	return best, best != nil
}
