package engine

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/formsense/repcount/internal/config"
	"github.com/formsense/repcount/internal/profile"
)

// Form feedback tips. Kept short and composable; the client decides
// presentation.
const (
	TipSymmetry   = "keep both sides moving together"
	TipRange      = "work through the full range of motion"
	TipSmoothness = "slow down and control the movement"
)

// Thresholds below which a sub-score contributes its tip.
const (
	symmetryTipBelow   = 0.7
	rangeTipBelow      = 0.6
	smoothnessTipBelow = 0.5
)

// FormConfig holds the sub-score weights for the quality scorer.
type FormConfig struct {
	SymmetryWeight   float64
	RangeWeight      float64
	SmoothnessWeight float64
}

// FormConfigFromTuning builds a FormConfig from a loaded TuningConfig.
func FormConfigFromTuning(cfg *config.TuningConfig) FormConfig {
	return FormConfig{
		SymmetryWeight:   cfg.GetFormSymmetryWeight(),
		RangeWeight:      cfg.GetFormRangeWeight(),
		SmoothnessWeight: cfg.GetFormSmoothnessWeight(),
	}
}

// FormAssessment is the scorer's output for one frame window.
type FormAssessment struct {
	Score      float64 // [0, 1] weighted combination
	Symmetry   float64
	Range      float64
	Smoothness float64
	Tips       []string
}

// FormScorer produces a 0–1 quality score and qualitative tips from the
// same window used by the phase classifier. It runs independently of rep
// counting and carries no state of its own.
type FormScorer struct {
	cfg FormConfig
}

// NewFormScorer creates a form scorer with the given weights.
func NewFormScorer(cfg FormConfig) *FormScorer {
	return &FormScorer{cfg: cfg}
}

// Assess scores the current window against the profile. An empty window
// yields a zero assessment with no tips.
func (fs *FormScorer) Assess(w *Window, prof *profile.Profile) FormAssessment {
	if w.Size() < 2 {
		return FormAssessment{}
	}

	frames := w.Recent(w.Size())

	sym, hasSym := fs.symmetry(frames, prof)
	rng := fs.rangeOfMotion(frames, prof)
	smooth := fs.smoothness(frames, prof)

	// Weighted average; symmetry drops out for exercises without
	// mirrored angle pairs.
	symW := fs.cfg.SymmetryWeight
	if !hasSym {
		symW = 0
	}
	totalW := symW + fs.cfg.RangeWeight + fs.cfg.SmoothnessWeight
	if totalW == 0 {
		return FormAssessment{}
	}
	score := (symW*sym + fs.cfg.RangeWeight*rng + fs.cfg.SmoothnessWeight*smooth) / totalW

	a := FormAssessment{
		Score:      clamp01(score),
		Symmetry:   sym,
		Range:      rng,
		Smoothness: smooth,
	}
	if hasSym && sym < symmetryTipBelow {
		a.Tips = append(a.Tips, TipSymmetry)
	}
	if rng < rangeTipBelow {
		a.Tips = append(a.Tips, TipRange)
	}
	if smooth < smoothnessTipBelow {
		a.Tips = append(a.Tips, TipSmoothness)
	}
	return a
}

// symmetry scores left/right balance across the profile's mirrored angle
// pairs: 1.0 when both sides track each other exactly, decaying with the
// mean absolute divergence. Returns false when the profile has no pairs.
func (fs *FormScorer) symmetry(frames []FeatureVector, prof *profile.Profile) (float64, bool) {
	if len(prof.MirrorPairs) == 0 {
		return 0, false
	}

	// Divergence is scaled against the profile's expected range so a 10°
	// drift on a 100° movement scores better than on a 30° one.
	scale := prof.MinAngleRange
	if scale <= 0 {
		scale = 45
	}

	var sum float64
	var counted int
	for _, fv := range frames {
		for _, pair := range prof.MirrorPairs {
			l, r := pair[0], pair[1]
			if l < 0 || r < 0 || l >= len(fv.Angles) || r >= len(fv.Angles) {
				continue
			}
			sum += math.Abs(fv.Angles[l] - fv.Angles[r])
			counted++
		}
	}
	if counted == 0 {
		return 0, false
	}
	meanDiff := sum / float64(counted)
	return clamp01(1 - meanDiff/scale), true
}

// rangeOfMotion scores the achieved primary-angle excursion across the
// window relative to the profile's minimum counting range.
func (fs *FormScorer) rangeOfMotion(frames []FeatureVector, prof *profile.Profile) float64 {
	if prof.MinAngleRange <= 0 {
		return 0
	}
	lo := math.Inf(1)
	hi := math.Inf(-1)
	for _, fv := range frames {
		a := meanAt(fv, prof.PrimaryAngles)
		if math.IsNaN(a) {
			continue
		}
		if a < lo {
			lo = a
		}
		if a > hi {
			hi = a
		}
	}
	if math.IsInf(lo, 1) {
		return 0
	}
	return clamp01((hi - lo) / prof.MinAngleRange)
}

// smoothness scores the inverse of velocity variance across the window:
// controlled, even tempo scores near 1; jerky motion decays toward 0.
func (fs *FormScorer) smoothness(frames []FeatureVector, prof *profile.Profile) float64 {
	if len(frames) < 3 {
		return 1
	}
	vels := make([]float64, 0, len(frames)-1)
	for i := 1; i < len(frames); i++ {
		prev := meanAt(frames[i-1], prof.PrimaryAngles)
		curr := meanAt(frames[i], prof.PrimaryAngles)
		if math.IsNaN(prev) || math.IsNaN(curr) {
			continue
		}
		vels = append(vels, curr-prev)
	}
	if len(vels) < 2 {
		return 1
	}
	variance := stat.Variance(vels, nil)

	// Normalise against the profile's velocity threshold: variance on the
	// order of the threshold squared is acceptable tempo variation.
	ref := prof.VelocityThreshold * prof.VelocityThreshold
	if ref <= 0 {
		ref = 1
	}
	return 1 / (1 + variance/(4*ref))
}

// meanAt averages the given indices of one frame, NaN if none are valid.
func meanAt(fv FeatureVector, indices []int) float64 {
	var sum float64
	var counted int
	for _, idx := range indices {
		if idx < 0 || idx >= len(fv.Angles) {
			continue
		}
		sum += fv.Angles[idx]
		counted++
	}
	if counted == 0 {
		return math.NaN()
	}
	return sum / float64(counted)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
