package profile

import (
	"errors"
	"testing"
)

func namedProfile(id, name string) *Profile {
	p := validProfile()
	p.ID = id
	p.Name = name
	return p
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistryFromProfiles([]*Profile{
		namedProfile("bicep-curl", "Bicep Curl"),
		namedProfile("hammer-curl", "Hammer Curl"),
		namedProfile("squat", "Squat"),
	})
	if err != nil {
		t.Fatalf("NewRegistryFromProfiles: %v", err)
	}
	return r
}

func TestRegistryLookup(t *testing.T) {
	r := testRegistry(t)

	p, err := r.Lookup("squat")
	if err != nil {
		t.Fatalf("Lookup(squat): %v", err)
	}
	if p.ID != "squat" {
		t.Errorf("ID = %s, want squat", p.ID)
	}

	if _, err := r.Lookup("deadlift"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup(deadlift) err = %v, want ErrNotFound", err)
	}
	if r.Len() != 3 {
		t.Errorf("Len() = %d, want 3", r.Len())
	}
}

func TestRegistryRejectsDuplicateID(t *testing.T) {
	_, err := NewRegistryFromProfiles([]*Profile{
		namedProfile("bicep-curl", "Bicep Curl"),
		namedProfile("bicep-curl", "Another Curl"),
	})
	if err == nil {
		t.Fatal("Duplicate id accepted")
	}
}

func TestRegistryRejectsInvalidProfile(t *testing.T) {
	bad := validProfile()
	bad.MinAngleRange = 0
	if _, err := NewRegistryFromProfiles([]*Profile{bad}); err == nil {
		t.Fatal("Invalid profile accepted")
	}
}

func TestMatchByName(t *testing.T) {
	r := testRegistry(t)

	cases := []struct {
		query string
		want  string
	}{
		{"Bicep Curl", "bicep-curl"},           // exact
		{"bicep curl", "bicep-curl"},           // case-insensitive
		{"BICEP-CURL", "bicep-curl"},           // punctuation stripped
		{"bicep curl (dumbbell)", "bicep-curl"}, // query contains name
		{"bicep", "bicep-curl"},                // name contains query
		{"goblet squat", "squat"},
		{"hammer", "hammer-curl"},
	}
	for _, tc := range cases {
		p, err := r.MatchByName(tc.query)
		if err != nil {
			t.Errorf("MatchByName(%q): %v", tc.query, err)
			continue
		}
		if p.ID != tc.want {
			t.Errorf("MatchByName(%q) = %s, want %s", tc.query, p.ID, tc.want)
		}
	}
}

func TestMatchByNameNotFound(t *testing.T) {
	r := testRegistry(t)

	for _, query := range []string{"", "   ", "deadlift", "(((", "rowing machine"} {
		if _, err := r.MatchByName(query); !errors.Is(err, ErrNotFound) {
			t.Errorf("MatchByName(%q) err = %v, want ErrNotFound", query, err)
		}
	}
}

// When a query is contained in several names, the longest name wins; equal
// lengths resolve to the lower profile id.
func TestMatchByNameAmbiguity(t *testing.T) {
	r, err := NewRegistryFromProfiles([]*Profile{
		namedProfile("curl-basic", "Curl"),
		namedProfile("curl-concentration", "Concentration Curl"),
	})
	if err != nil {
		t.Fatalf("NewRegistryFromProfiles: %v", err)
	}

	// "curl" matches "Curl" exactly; the exact match short-circuits.
	p, err := r.MatchByName("curl")
	if err != nil || p.ID != "curl-basic" {
		t.Errorf("MatchByName(curl) = %v, %v; want curl-basic", p, err)
	}

	// Both names are contained in the query; the longer one wins.
	p, err = r.MatchByName("seated concentration curl set")
	if err != nil || p.ID != "curl-concentration" {
		t.Errorf("MatchByName(long query) = %v, %v; want curl-concentration", p, err)
	}
}

func TestResolve(t *testing.T) {
	r := testRegistry(t)

	p, fallback := r.Resolve("hammer-curl")
	if fallback || p.ID != "hammer-curl" {
		t.Errorf("Resolve(id) = %s fallback=%v", p.ID, fallback)
	}

	p, fallback = r.Resolve("Hammer Curl")
	if fallback || p.ID != "hammer-curl" {
		t.Errorf("Resolve(name) = %s fallback=%v", p.ID, fallback)
	}

	p, fallback = r.Resolve("unknown exercise")
	if !fallback {
		t.Error("Resolve(unknown) did not report fallback")
	}
	if p.ID != DefaultProfileID {
		t.Errorf("Fallback profile = %s, want %s", p.ID, DefaultProfileID)
	}
}

func TestAllIsSortedByID(t *testing.T) {
	r := testRegistry(t)

	all := r.All()
	if len(all) != 3 {
		t.Fatalf("All() returned %d profiles, want 3", len(all))
	}
	want := []string{"bicep-curl", "hammer-curl", "squat"}
	for i, p := range all {
		if p.ID != want[i] {
			t.Errorf("All()[%d] = %s, want %s", i, p.ID, want[i])
		}
	}
}
