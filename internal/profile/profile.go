// Package profile defines per-exercise numeric threshold profiles and the
// read-only registry that serves them to every session.
package profile

import (
	"fmt"
	"time"
)

// Profile holds the immutable numeric thresholds and constraints for one
// exercise pattern. Profiles are loaded once at startup and shared
// read-only across all sessions.
type Profile struct {
	// ID is the stable exercise identifier, e.g. "bicep-curl".
	ID string `json:"id"`
	// Name is the human-readable exercise name used for fuzzy matching.
	Name string `json:"name"`

	// PrimaryAngles lists the feature-vector indices that carry this
	// exercise's movement signal, in order of importance.
	PrimaryAngles []int `json:"primary_angles"`

	// MirrorPairs lists index pairs of left/right mirrored angles used by
	// the form scorer's symmetry check. May be empty for unilateral or
	// trunk-dominant movements.
	MirrorPairs [][2]int `json:"mirror_pairs,omitempty"`

	// RestAngle is the expected primary-angle value (degrees) in the
	// start/end pose; PeakAngle the value at full contraction. The two
	// define the direction and span of the movement.
	RestAngle float64 `json:"rest_angle"`
	PeakAngle float64 `json:"peak_angle"`

	// MinAngleRange is the minimum peak-to-trough excursion (degrees)
	// required for a cycle to count as a repetition.
	MinAngleRange float64 `json:"min_angle_range"`

	// VelocityThreshold is the minimum angular speed (degrees/frame)
	// distinguishing deliberate motion from drift.
	VelocityThreshold float64 `json:"velocity_threshold"`

	// MinTransitionCount is the minimum number of distinct phase changes
	// required since the last counted rep before a new rep may count.
	MinTransitionCount int `json:"min_transition_count"`

	// Cooldown is the minimum elapsed time between two counted reps.
	Cooldown time.Duration `json:"cooldown"`

	// DwellFrames is the number of consecutive below-threshold-velocity
	// frames required in the end phase before the cycle may close.
	DwellFrames int `json:"dwell_frames"`

	// Reference is the ordered sequence of primary-angle snapshots for one
	// canonical repetition, used only by auto-recognition.
	Reference []float64 `json:"reference,omitempty"`
}

// Span returns the signed angular distance from rest to peak.
func (p *Profile) Span() float64 {
	return p.PeakAngle - p.RestAngle
}

// Progress maps a primary-angle value to normalised cycle progress:
// 0 at the rest pose, 1 at the peak pose. Values are clamped to [0, 1.2]
// so slight over-extension past the nominal peak does not wrap.
func (p *Profile) Progress(angle float64) float64 {
	span := p.Span()
	if span == 0 {
		return 0
	}
	prog := (angle - p.RestAngle) / span
	if prog < 0 {
		return 0
	}
	if prog > 1.2 {
		return 1.2
	}
	return prog
}

// Validate checks that the profile's thresholds are internally consistent.
func (p *Profile) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("profile has empty id")
	}
	if len(p.PrimaryAngles) == 0 {
		return fmt.Errorf("profile %s: no primary angles", p.ID)
	}
	if p.Span() == 0 {
		return fmt.Errorf("profile %s: rest and peak angles are equal", p.ID)
	}
	if p.MinAngleRange <= 0 {
		return fmt.Errorf("profile %s: min_angle_range must be positive, got %f", p.ID, p.MinAngleRange)
	}
	if p.VelocityThreshold <= 0 {
		return fmt.Errorf("profile %s: velocity_threshold must be positive, got %f", p.ID, p.VelocityThreshold)
	}
	if p.MinTransitionCount < 0 {
		return fmt.Errorf("profile %s: min_transition_count must be non-negative, got %d", p.ID, p.MinTransitionCount)
	}
	if p.Cooldown < 0 {
		return fmt.Errorf("profile %s: cooldown must be non-negative, got %s", p.ID, p.Cooldown)
	}
	if p.DwellFrames < 0 {
		return fmt.Errorf("profile %s: dwell_frames must be non-negative, got %d", p.ID, p.DwellFrames)
	}
	return nil
}

// DefaultProfileID identifies the conservative fallback profile used when
// an exercise cannot be resolved.
const DefaultProfileID = "generic-movement"

// Default returns the generic fallback profile: conservative thresholds
// suitable for unknown movements. Unknown-exercise lookups fall back to
// this rather than failing the session.
func Default() *Profile {
	return &Profile{
		ID:            DefaultProfileID,
		Name:          "Generic Movement",
		PrimaryAngles: []int{0},
		RestAngle:     170,
		PeakAngle:     60,
		// Deliberately strict so unknown movements under-count rather
		// than over-count.
		MinAngleRange:      45,
		VelocityThreshold:  1.5,
		MinTransitionCount: 3,
		Cooldown:           1200 * time.Millisecond,
		DwellFrames:        2,
	}
}
