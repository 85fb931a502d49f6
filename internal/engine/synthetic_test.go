package engine

import (
	"testing"
	"time"

	"github.com/formsense/repcount/internal/profile"
)

// curlProfile is the reference exercise used across the engine tests: a
// bicep-curl style movement from 170° rest to 50° full contraction on a
// single primary angle.
func curlProfile() *profile.Profile {
	return &profile.Profile{
		ID:                 "bicep-curl",
		Name:               "Bicep Curl",
		PrimaryAngles:      []int{0},
		RestAngle:          170,
		PeakAngle:          50,
		MinAngleRange:      60,
		VelocityThreshold:  2.0, // degrees/frame
		MinTransitionCount: 3,
		Cooldown:           500 * time.Millisecond,
		DwellFrames:        2,
		Reference:          []float64{170, 150, 110, 70, 50, 70, 110, 150, 170},
	}
}

// curlCycle is one well-formed repetition at ~10 frames/second: rest,
// descent to full contraction, hold, return, and a settled tail long
// enough for the velocity average to decay and the dwell requirement to
// accumulate. The trailing rest frames mean the next cycle's first motion
// frame closes this cycle and counts the rep.
func curlCycle() []float64 {
	return []float64{
		170, 170, // settled rest
		160, 130, 100, 70, // concentric descent
		50, 50, 50, 50, // full contraction, settling
		70, 100, 130, 160, // eccentric return
		170, 170, 170, 170, 170, 170, // settled rest tail
	}
}

// jitterFrames is a short burst of sub-threshold idle motion around the
// rest pose.
func jitterFrames() []float64 {
	return []float64{169, 171, 170}
}

// feedAngles pushes single-angle frames through a session at the given
// frame interval and returns the timestamp after the last frame.
func feedAngles(t *testing.T, s *Session, angles []float64, start time.Time, dt time.Duration) time.Time {
	t.Helper()
	ts := start
	for i, a := range angles {
		result := s.ProcessFrame(FeatureVector{Angles: []float64{a}, Timestamp: ts})
		if result.Status != StatusOK {
			t.Fatalf("Frame %d (angle %.0f) rejected: %s", i, a, result.Status)
		}
		ts = ts.Add(dt)
	}
	return ts
}

func newCurlSession(t *testing.T) *Session {
	t.Helper()
	cfg := SessionConfig{
		WindowCapacity:     36,
		PhaseHistoryLength: 20,
		Classifier: ClassifierConfig{
			ConfidenceFloor: 0.75,
			LowProgressMax:  0.15,
			PeakProgressMin: 0.85,
		},
		Form: FormConfig{
			SymmetryWeight:   0.3,
			RangeWeight:      0.4,
			SmoothnessWeight: 0.3,
		},
	}
	s := NewSession("test-session", cfg)
	s.SetProfile(curlProfile(), false)
	return s
}
