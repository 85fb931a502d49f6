package engine

import (
	"math"
	"testing"
	"time"

	"github.com/formsense/repcount/internal/profile"
)

// bilateralProfile mirrors angle 0 against angle 1, the layout of a
// two-sided movement like a barbell curl.
func bilateralProfile() *profile.Profile {
	p := curlProfile()
	p.PrimaryAngles = []int{0, 1}
	p.MirrorPairs = [][2]int{{0, 1}}
	return p
}

func testFormScorer() *FormScorer {
	return NewFormScorer(FormConfig{
		SymmetryWeight:   0.3,
		RangeWeight:      0.4,
		SmoothnessWeight: 0.3,
	})
}

// pairWindow builds a window of two-angle frames at 100ms spacing.
func pairWindow(pairs ...[2]float64) *Window {
	w := NewWindow(36)
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, p := range pairs {
		w.Push(FeatureVector{
			Angles:    []float64{p[0], p[1]},
			Timestamp: base.Add(time.Duration(i) * 100 * time.Millisecond),
		})
	}
	return w
}

func TestAssessPerfectBilateralMotion(t *testing.T) {
	fs := testFormScorer()
	// Both sides track exactly through a full-range descent at constant
	// tempo.
	w := pairWindow(
		[2]float64{170, 170},
		[2]float64{150, 150},
		[2]float64{130, 130},
		[2]float64{110, 110},
		[2]float64{90, 90},
	)

	a := fs.Assess(w, bilateralProfile())
	if math.Abs(a.Score-1) > 1e-9 {
		t.Errorf("Score = %f, want 1", a.Score)
	}
	if a.Symmetry != 1 {
		t.Errorf("Symmetry = %f, want 1", a.Symmetry)
	}
	if a.Range != 1 {
		t.Errorf("Range = %f, want 1", a.Range)
	}
	if a.Smoothness != 1 {
		t.Errorf("Smoothness = %f, want 1", a.Smoothness)
	}
	if len(a.Tips) != 0 {
		t.Errorf("Tips = %v, want none", a.Tips)
	}
}

func TestAssessAsymmetricMotionTips(t *testing.T) {
	fs := testFormScorer()
	// The right side lags the left by a constant 50 degrees; tempo and
	// range stay clean so only the symmetry tip should fire.
	w := pairWindow(
		[2]float64{170, 120},
		[2]float64{150, 100},
		[2]float64{130, 80},
		[2]float64{110, 60},
		[2]float64{90, 40},
	)

	a := fs.Assess(w, bilateralProfile())
	// Mean divergence 50 over a 60 degree scale.
	if math.Abs(a.Symmetry-1.0/6.0) > 1e-9 {
		t.Errorf("Symmetry = %f, want %f", a.Symmetry, 1.0/6.0)
	}
	if len(a.Tips) != 1 || a.Tips[0] != TipSymmetry {
		t.Errorf("Tips = %v, want only the symmetry tip", a.Tips)
	}
}

func TestAssessTinyOscillationTipsRange(t *testing.T) {
	fs := testFormScorer()
	w := windowOf(170, 171, 170, 171, 170)

	a := fs.Assess(w, curlProfile())
	if a.Range >= 0.1 {
		t.Errorf("Range = %f, want near zero for a 1 degree wiggle", a.Range)
	}
	if len(a.Tips) != 1 || a.Tips[0] != TipRange {
		t.Errorf("Tips = %v, want only the range tip", a.Tips)
	}
}

func TestAssessJerkyMotionTipsSmoothness(t *testing.T) {
	fs := testFormScorer()
	// Full-threshold swings every frame: plenty of range, no control.
	w := windowOf(170, 130, 170, 130, 170)

	a := fs.Assess(w, curlProfile())
	if a.Smoothness >= 0.5 {
		t.Errorf("Smoothness = %f, want below the tip threshold", a.Smoothness)
	}
	if len(a.Tips) != 1 || a.Tips[0] != TipSmoothness {
		t.Errorf("Tips = %v, want only the smoothness tip", a.Tips)
	}
}

func TestAssessWithoutMirrorPairsSkipsSymmetry(t *testing.T) {
	fs := testFormScorer()
	w := windowOf(170, 150, 130, 110, 90)

	a := fs.Assess(w, curlProfile())
	if a.Symmetry != 0 {
		t.Errorf("Symmetry = %f, want 0 for a unilateral profile", a.Symmetry)
	}
	for _, tip := range a.Tips {
		if tip == TipSymmetry {
			t.Error("Symmetry tip emitted for a profile with no mirror pairs")
		}
	}
	// Remaining weights renormalise: range 1 and smoothness 1 still score
	// a perfect 1 without the symmetry term.
	if math.Abs(a.Score-1) > 1e-9 {
		t.Errorf("Score = %f, want 1 from renormalised weights", a.Score)
	}
}

func TestAssessShortWindowIsZero(t *testing.T) {
	fs := testFormScorer()

	if a := fs.Assess(NewWindow(36), curlProfile()); a.Score != 0 || a.Tips != nil {
		t.Errorf("Empty window assessment = %+v, want zero value", a)
	}
	if a := fs.Assess(windowOf(170), curlProfile()); a.Score != 0 || a.Tips != nil {
		t.Errorf("Single-frame assessment = %+v, want zero value", a)
	}
}
