package profile

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// ErrNotFound is the sentinel returned by registry lookups when no profile
// matches. It is a normal, expected outcome — callers fall back to the
// generic default profile.
var ErrNotFound = fmt.Errorf("profile not found")

// Source supplies the profile table at startup. Implemented by the sqlite
// store and by test fixtures.
type Source interface {
	LoadProfiles() ([]*Profile, error)
}

// Registry is the immutable lookup of exercise profiles. Built once at
// startup, read-only afterwards, shared across all sessions without
// locking.
type Registry struct {
	byID  map[string]*Profile
	names []nameEntry // normalised name → id, sorted by id for stable matching
}

type nameEntry struct {
	normalised string
	id         string
}

// NewRegistry builds a registry from the given source. Any load or
// validation failure is fatal to initialisation: the engine must not run
// with a partial profile table.
func NewRegistry(src Source) (*Registry, error) {
	profiles, err := src.LoadProfiles()
	if err != nil {
		return nil, fmt.Errorf("failed to load exercise profiles: %w", err)
	}
	return NewRegistryFromProfiles(profiles)
}

// NewRegistryFromProfiles builds a registry directly from a profile slice.
func NewRegistryFromProfiles(profiles []*Profile) (*Registry, error) {
	r := &Registry{byID: make(map[string]*Profile, len(profiles))}
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate profile id %q", p.ID)
		}
		r.byID[p.ID] = p
		r.names = append(r.names, nameEntry{normalised: normaliseName(p.Name), id: p.ID})
		if norm := normaliseName(p.ID); norm != normaliseName(p.Name) {
			r.names = append(r.names, nameEntry{normalised: norm, id: p.ID})
		}
	}
	// Sorting by id makes name matching deterministic when several
	// profiles contain the query as a substring.
	sort.Slice(r.names, func(i, j int) bool { return r.names[i].id < r.names[j].id })
	return r, nil
}

// Len returns the number of registered profiles.
func (r *Registry) Len() int { return len(r.byID) }

// Lookup returns the profile for the given identifier, or ErrNotFound.
// O(1).
func (r *Registry) Lookup(id string) (*Profile, error) {
	if p, ok := r.byID[id]; ok {
		return p, nil
	}
	return nil, ErrNotFound
}

// MatchByName resolves free text to a profile using normalised substring
// containment in either direction: the query containing a profile name, or
// a profile name containing the query. The longest-named containment wins;
// ties break to the lower profile id. Returns ErrNotFound when nothing
// matches.
func (r *Registry) MatchByName(text string) (*Profile, error) {
	query := normaliseName(text)
	if query == "" {
		return nil, ErrNotFound
	}

	// Exact normalised match first.
	for _, e := range r.names {
		if e.normalised == query {
			return r.byID[e.id], nil
		}
	}

	bestLen := 0
	bestID := ""
	for _, e := range r.names {
		if e.normalised == "" {
			continue
		}
		contained := strings.Contains(query, e.normalised) || strings.Contains(e.normalised, query)
		if !contained {
			continue
		}
		// Prefer the longest profile name involved in the containment;
		// the names slice is id-sorted so the first hit at a given length
		// is the lowest id.
		if len(e.normalised) > bestLen {
			bestLen = len(e.normalised)
			bestID = e.id
		}
	}
	if bestID == "" {
		return nil, ErrNotFound
	}
	return r.byID[bestID], nil
}

// Resolve looks up by identifier first, then by name. When neither
// matches, the generic default profile is returned with fallback=true so
// the caller can inform the user.
func (r *Registry) Resolve(idOrName string) (p *Profile, fallback bool) {
	if found, err := r.Lookup(idOrName); err == nil {
		return found, false
	}
	if found, err := r.MatchByName(idOrName); err == nil {
		return found, false
	}
	return Default(), true
}

// All returns every registered profile, sorted by id. Used by
// auto-recognition and the admin endpoints.
func (r *Registry) All() []*Profile {
	out := make([]*Profile, 0, len(r.byID))
	for _, p := range r.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// normaliseName lowercases and strips everything but letters and digits so
// "Bicep Curl (dumbbell)" and "bicep-curl" compare equal.
func normaliseName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
