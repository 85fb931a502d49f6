package engine

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/formsense/repcount/internal/config"
	"github.com/formsense/repcount/internal/profile"
)

// ClassifierConfig holds the tunable classifier parameters.
type ClassifierConfig struct {
	// ConfidenceFloor is the minimum confidence required to emit a phase
	// different from the previous one. Below it the classifier holds.
	ConfidenceFloor float64
	// LowProgressMax bounds the low-position zone: cycle progress below
	// this value is the start/end region.
	LowProgressMax float64
	// PeakProgressMin bounds the peak zone: progress at or above this
	// value is the peak region.
	PeakProgressMin float64
}

// ClassifierConfigFromTuning builds a ClassifierConfig from a loaded
// TuningConfig.
func ClassifierConfigFromTuning(cfg *config.TuningConfig) ClassifierConfig {
	return ClassifierConfig{
		ConfidenceFloor: cfg.GetConfidenceFloor(),
		LowProgressMax:  cfg.GetLowProgressMax(),
		PeakProgressMin: cfg.GetPeakProgressMin(),
	}
}

// phaseOrder fixes the row order of the prototype matrix.
var phaseOrder = []Phase{PhaseStart, PhaseQuarter, PhasePeak, PhaseReturn, PhaseEnd}

// Observation is the classifier's per-frame output consumed by the rep
// counter.
type Observation struct {
	Phase      Phase
	Confidence float64 // [0, 1]
	// Progress is the normalised cycle position of the latest frame.
	Progress float64
	// Velocity is the mean angular speed over the primary angles in
	// degrees/frame (signed, raw units).
	Velocity float64
	// Guarded reports that a rule guard overrode the learned label.
	Guarded bool
	// Held reports that confidence fell below the floor and the previous
	// phase was retained instead of the raw classification.
	Held bool
}

// Classifier maps (current feature vector, memory window, active profile)
// to a phase label with confidence. It combines a calibrated sequence
// scorer over the windowed primary angles with rule guards derived from
// the profile. The guards take precedence whenever they conflict with the
// learned score: a single end-pose frame that resembles the start pose
// must never be relabelled start while the athlete is stationary.
type Classifier struct {
	cfg ClassifierConfig

	// prototypes is the 5×2 matrix of per-phase feature prototypes in
	// (progress, direction) space; sigmas the per-feature kernel widths.
	// Calibrated offline from labelled angle trajectories; the scorer is
	// a pure function of the window with no hidden state of its own.
	prototypes *mat.Dense
	sigmas     []float64
}

// NewClassifier creates a classifier with the calibrated phase model.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	protos := mat.NewDense(len(phaseOrder), 2, []float64{
		// progress, direction
		0.08, 0.8, // start: low position, motion beginning
		0.45, 1.0, // quarter: mid position, moving toward peak
		1.00, 0.0, // peak: full contraction, momentarily still
		0.50, -1.0, // return: mid position, moving toward rest
		0.05, 0.0, // end: low position, settled
	})
	return &Classifier{
		cfg:        cfg,
		prototypes: protos,
		sigmas:     []float64{0.30, 0.55},
	}
}

// Classify emits a (phase, confidence) pair for the latest frame in the
// window. prev is the phase currently held by the session's state machine.
func (c *Classifier) Classify(w *Window, prof *profile.Profile, prev Phase) Observation {
	if w.Size() == 0 {
		return Observation{Phase: prev, Confidence: 0}
	}

	angle := w.MeanAngle(prof.PrimaryAngles)
	rawVel := w.MeanVelocity(prof.PrimaryAngles)
	prog := prof.Progress(angle)

	// Direction of travel in cycle terms: positive toward peak, clamped
	// to [-1, 1] at the profile's velocity threshold.
	dir := 0.0
	if prof.VelocityThreshold > 0 {
		signed := rawVel
		if prof.Span() < 0 {
			signed = -rawVel
		}
		dir = signed / prof.VelocityThreshold
		if dir > 1 {
			dir = 1
		}
		if dir < -1 {
			dir = -1
		}
	}

	raw, conf := c.score(prog, dir)
	obs := Observation{
		Phase:      raw,
		Confidence: conf,
		Progress:   prog,
		Velocity:   rawVel,
	}

	still := math.Abs(rawVel) < prof.VelocityThreshold
	lowZone := prog < c.cfg.LowProgressMax
	peakZone := prog >= c.cfg.PeakProgressMin

	// Rule guards. Each one overrides the learned label outright and
	// bypasses the confidence floor — the biomechanical rule is
	// authoritative regardless of how the model scored the frame.
	switch {
	case lowZone && still:
		// A stationary low pose is end once the cycle has passed its
		// peak, and start before any meaningful motion. Raw confidence
		// must never flip this: the end pose is frame-for-frame
		// indistinguishable from the start pose that would trigger the
		// next count.
		if prev == PhasePeak || prev == PhaseReturn || prev == PhaseEnd {
			obs.Phase = PhaseEnd
		} else {
			obs.Phase = PhaseStart
		}
		obs.Guarded = true
	case prev == PhaseEnd && obs.Phase == PhaseStart && still:
		// Leaving end requires velocity above threshold; a still frame
		// that merely resembles the start pose holds end.
		obs.Phase = PhaseEnd
		obs.Guarded = true
	case peakZone && still:
		obs.Phase = PhasePeak
		obs.Guarded = true
	}
	if obs.Guarded && obs.Phase != raw {
		// Guarded label: confidence reflects the model's score for the
		// label actually emitted.
		obs.Confidence = c.scoreFor(obs.Phase, prog, dir)
	}

	// Confidence floor: hold the previous phase rather than emit an
	// uncertain new one. Dwelling in the current phase is always allowed.
	if !obs.Guarded && obs.Confidence < c.cfg.ConfidenceFloor && obs.Phase != prev && prev != PhaseUnknown {
		obs.Phase = prev
		obs.Held = true
	}

	return obs
}

// score runs the phase model over the (progress, direction) features and
// returns the best-scoring phase with its kernel response as confidence.
func (c *Classifier) score(prog, dir float64) (Phase, float64) {
	f := mat.NewVecDense(2, []float64{prog, dir})

	best := -1
	bestScore := 0.0
	for k := range phaseOrder {
		proto := c.prototypes.RowView(k).(*mat.VecDense)
		s := c.kernel(f, proto)
		if best < 0 || s > bestScore {
			best = k
			bestScore = s
		}
	}
	return phaseOrder[best], bestScore
}

// scoreFor returns the kernel response of one specific phase.
func (c *Classifier) scoreFor(p Phase, prog, dir float64) float64 {
	f := mat.NewVecDense(2, []float64{prog, dir})
	for k, ph := range phaseOrder {
		if ph == p {
			proto := c.prototypes.RowView(k).(*mat.VecDense)
			return c.kernel(f, proto)
		}
	}
	return 0
}

// kernel is a diagonal Gaussian radial basis over the feature space,
// responding 1.0 at the prototype and decaying with distance.
func (c *Classifier) kernel(f, proto *mat.VecDense) float64 {
	var d2 float64
	for i := 0; i < f.Len(); i++ {
		d := (f.AtVec(i) - proto.AtVec(i)) / c.sigmas[i]
		d2 += d * d
	}
	return math.Exp(-d2 / 2)
}
