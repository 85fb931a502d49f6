package engine

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/formsense/repcount/internal/config"
	"github.com/formsense/repcount/internal/profile"
)

// recognitionPoints is the fixed length trajectories are resampled to
// before comparison, so sequences recorded at different frame rates and
// tempos compare shape against shape.
const recognitionPoints = 32

// RecognizerConfig holds the auto-recognition parameters.
type RecognizerConfig struct {
	// MinSimilarity is the cosine-similarity floor below which the
	// observed trajectory is reported as unrecognised.
	MinSimilarity float64
	// Frames is the number of initial frames consumed from the window.
	Frames int
}

// RecognizerConfigFromTuning builds a RecognizerConfig from a loaded
// TuningConfig.
func RecognizerConfigFromTuning(cfg *config.TuningConfig) RecognizerConfig {
	return RecognizerConfig{
		MinSimilarity: cfg.GetMinSimilarity(),
		Frames:        cfg.GetRecognitionFrames(),
	}
}

// RecognitionResult reports the best-matching profile for an observed
// trajectory, or Recognized=false when nothing clears the similarity
// floor.
type RecognitionResult struct {
	Profile    *profile.Profile
	Similarity float64
	Recognized bool
}

// Recognizer infers the active exercise profile from an initial window of
// frames by cosine similarity against each profile's reference trajectory.
// It runs once at session start or on an explicit re-identify request —
// never on the per-frame hot path.
type Recognizer struct {
	cfg      RecognizerConfig
	registry *profile.Registry

	// references holds each profile's resampled, shape-normalised
	// reference, precomputed at construction. Ordered by profile id so
	// similarity ties deterministically break to the lower identifier.
	references []referenceShape
}

type referenceShape struct {
	id    string
	prof  *profile.Profile
	shape []float64
}

// NewRecognizer precomputes normalised reference shapes for every profile
// in the registry that carries a reference trajectory.
func NewRecognizer(cfg RecognizerConfig, registry *profile.Registry) *Recognizer {
	r := &Recognizer{cfg: cfg, registry: registry}
	for _, p := range registry.All() { // All() is id-sorted
		if len(p.Reference) < 2 {
			continue
		}
		shape := normaliseShape(resample(p.Reference, recognitionPoints))
		if shape == nil {
			continue
		}
		r.references = append(r.references, referenceShape{id: p.ID, prof: p, shape: shape})
	}
	return r
}

// Identify compares the observed primary-angle trajectory in the window
// against every reference. The highest similarity at or above the floor
// wins; ties break to the lower profile identifier (an explicit, arbitrary
// tie-break). Returns Recognized=false when the window is too short or no
// reference clears the floor.
func (r *Recognizer) Identify(w *Window) RecognitionResult {
	frames := w.Recent(r.cfg.Frames)
	if len(frames) < 2 {
		return RecognitionResult{}
	}

	best := RecognitionResult{}
	for _, ref := range r.references {
		series := make([]float64, 0, len(frames))
		for _, fv := range frames {
			a := meanAt(fv, ref.prof.PrimaryAngles)
			if !math.IsNaN(a) {
				series = append(series, a)
			}
		}
		if len(series) < 2 {
			continue
		}
		observed := normaliseShape(resample(series, recognitionPoints))
		if observed == nil {
			continue
		}
		sim := cosineSimilarity(observed, ref.shape)
		// Strictly-greater comparison over the id-sorted reference list
		// implements the lower-id tie-break.
		if sim > best.Similarity {
			best.Similarity = sim
			best.Profile = ref.prof
		}
	}

	if best.Profile == nil || best.Similarity < r.cfg.MinSimilarity {
		return RecognitionResult{Similarity: best.Similarity}
	}
	best.Recognized = true
	return best
}

// resample linearly interpolates a series to n evenly spaced points.
func resample(series []float64, n int) []float64 {
	if len(series) < 2 || n < 2 {
		return nil
	}
	out := make([]float64, n)
	step := float64(len(series)-1) / float64(n-1)
	for i := 0; i < n; i++ {
		pos := float64(i) * step
		lo := int(pos)
		if lo >= len(series)-1 {
			out[i] = series[len(series)-1]
			continue
		}
		frac := pos - float64(lo)
		out[i] = series[lo]*(1-frac) + series[lo+1]*frac
	}
	return out
}

// normaliseShape centres a series and scales it to unit standard
// deviation, so comparison is over trajectory shape rather than absolute
// angle values or amplitude. Returns nil for a flat series, which has no
// shape to compare.
func normaliseShape(series []float64) []float64 {
	if len(series) == 0 {
		return nil
	}
	mean, std := stat.MeanStdDev(series, nil)
	if std == 0 || math.IsNaN(std) {
		return nil
	}
	out := make([]float64, len(series))
	for i, v := range series {
		out[i] = (v - mean) / std
	}
	return out
}

// cosineSimilarity returns the cosine of the angle between two equal
// length vectors, in [-1, 1].
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}
