package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/formsense/repcount/internal/config"
	"github.com/formsense/repcount/internal/profile"
)

// Frame statuses reported in per-frame results. Input problems are
// returned as part of the normal result, never raised as errors, and
// leave session state untouched.
const (
	StatusOK             = "ok"
	StatusBadVectorLen   = "bad_vector_length"
	StatusNonMonotonicTS = "non_monotonic_timestamp"
	StatusEmptyVector    = "empty_vector"
)

// FrameResult is the engine's per-frame output.
type FrameResult struct {
	Phase      Phase    `json:"phase"`
	RepCount   int      `json:"rep_count"`
	Confidence float64  `json:"confidence"`
	Feedback   []string `json:"feedback,omitempty"`
	FormScore  float64  `json:"form_score"`
	Counted    bool     `json:"counted,omitempty"`
	Status     string   `json:"status"`
}

// Summary is the session roll-up served by summary retrieval and persisted
// when the session ends.
type Summary struct {
	SessionID     string        `json:"session_id"`
	ExerciseID    string        `json:"exercise_id"`
	RepCount      int           `json:"rep_count"`
	MeanFormScore float64       `json:"mean_form_score"`
	Duration      time.Duration `json:"duration"`
	SampleCount   int           `json:"sample_count"`
}

// RepEvent records one counted repetition for persistence.
type RepEvent struct {
	SessionID  string
	ExerciseID string
	RepNumber  int
	CycleRange float64
	FormScore  float64
	Timestamp  time.Time
}

// SessionConfig bundles the per-session engine parameters.
type SessionConfig struct {
	WindowCapacity     int
	PhaseHistoryLength int
	Classifier         ClassifierConfig
	Form               FormConfig

	// Fallback is the profile scored against until an exercise is set or
	// recognised. Nil means the built-in generic default.
	Fallback *profile.Profile
}

// SessionConfigFromTuning builds a SessionConfig from a loaded
// TuningConfig.
func SessionConfigFromTuning(cfg *config.TuningConfig) SessionConfig {
	return SessionConfig{
		WindowCapacity:     cfg.GetWindowCapacity(),
		PhaseHistoryLength: cfg.GetPhaseHistoryLength(),
		Classifier:         ClassifierConfigFromTuning(cfg),
		Form:               FormConfigFromTuning(cfg),
		Fallback:           FallbackProfileFromTuning(cfg),
	}
}

// FallbackProfileFromTuning builds the generic fallback profile with the
// default_* threshold overrides from the tuning snapshot applied.
func FallbackProfileFromTuning(cfg *config.TuningConfig) *profile.Profile {
	p := profile.Default()
	p.MinAngleRange = cfg.GetDefaultMinAngleRange()
	p.VelocityThreshold = cfg.GetDefaultVelocityThreshold()
	p.MinTransitionCount = cfg.GetDefaultMinTransitionCount()
	p.Cooldown = cfg.GetDefaultCooldown()
	p.DwellFrames = cfg.GetDefaultDwellFrames()
	return p
}

// Session owns all mutable state for one exercising user: the active
// profile, the temporal memory window, the phase state machine, and the
// accumulated form statistics. Every method is safe to call concurrently;
// a single mutex serialises frame processing against control operations,
// and frames must be delivered in arrival order by the caller.
type Session struct {
	mu sync.Mutex

	id  string
	cfg SessionConfig

	prof     *profile.Profile
	fallback bool

	window     *Window
	phases     *PhaseHistory
	classifier *Classifier
	counter    *Counter
	scorer     *FormScorer

	startedAt time.Time
	// Frame clock: timestamps are monotonic per session and may differ
	// from server wall time, so duration is computed frame-to-frame.
	firstTimestamp time.Time
	lastTimestamp  time.Time
	vectorLen      int // fixed from the first accepted frame

	// Running form-score summary: accumulated, never overwritten.
	formSum   float64
	formCount int

	// lastCycleRange is the excursion of the most recently counted cycle.
	lastCycleRange float64
}

// NewSession creates a session with no active profile. Frames processed
// before a profile is set are scored against the generic default.
func NewSession(id string, cfg SessionConfig) *Session {
	fallbackProf := cfg.Fallback
	if fallbackProf == nil {
		fallbackProf = profile.Default()
	}
	return &Session{
		id:         id,
		cfg:        cfg,
		prof:       fallbackProf,
		fallback:   true,
		window:     NewWindow(cfg.WindowCapacity),
		phases:     NewPhaseHistory(cfg.PhaseHistoryLength),
		classifier: NewClassifier(cfg.Classifier),
		counter:    NewCounter(cfg.Classifier.ConfidenceFloor),
		scorer:     NewFormScorer(cfg.Form),
		startedAt:  time.Now(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// SetProfile activates an exercise profile. fallback marks the generic
// default, surfaced to the caller so the client can inform the user.
// Setting a profile mid-session restarts the cycle state but preserves
// the repetition count.
func (s *Session) SetProfile(p *profile.Profile, fallback bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prof = p
	s.fallback = fallback
}

// Profile returns the active profile and whether it is the fallback.
func (s *Session) Profile() (*profile.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prof, s.fallback
}

// ProcessFrame ingests one feature vector and returns the per-frame
// result. Malformed frames are reported in the result status and leave
// all session state untouched; the session is never terminated by bad
// input.
func (s *Session) ProcessFrame(fv FeatureVector) FrameResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(fv.Angles) == 0 {
		return s.resultWithStatus(StatusEmptyVector)
	}
	if s.vectorLen == 0 {
		s.vectorLen = len(fv.Angles)
	} else if len(fv.Angles) != s.vectorLen {
		return s.resultWithStatus(StatusBadVectorLen)
	}
	if !s.lastTimestamp.IsZero() && !fv.Timestamp.After(s.lastTimestamp) {
		return s.resultWithStatus(StatusNonMonotonicTS)
	}
	if s.firstTimestamp.IsZero() {
		s.firstTimestamp = fv.Timestamp
	}
	s.lastTimestamp = fv.Timestamp

	s.window.Push(fv)

	obs := s.classifier.Classify(s.window, s.prof, s.counter.State())
	angle := s.window.MeanAngle(s.prof.PrimaryAngles)
	outcome := s.counter.Observe(obs, angle, fv.Timestamp, s.prof)
	s.phases.Append(outcome.State, fv.Timestamp)
	if outcome.Counted {
		s.lastCycleRange = outcome.CycleRange
	}

	assessment := s.scorer.Assess(s.window, s.prof)
	// The scorer has no signal below two frames; such frames are not form
	// samples and must not pull the running mean toward zero.
	if s.window.Size() >= 2 {
		s.formSum += assessment.Score
		s.formCount++
	}

	return FrameResult{
		Phase:      outcome.State,
		RepCount:   outcome.RepCount,
		Confidence: obs.Confidence,
		Feedback:   assessment.Tips,
		FormScore:  assessment.Score,
		Counted:    outcome.Counted,
		Status:     StatusOK,
	}
}

// resultWithStatus reports the current state alongside an input-error
// status. Caller holds the lock.
func (s *Session) resultWithStatus(status string) FrameResult {
	return FrameResult{
		Phase:    s.counter.State(),
		RepCount: s.counter.RepCount(),
		Status:   status,
	}
}

// Identify runs one-shot auto-recognition over the session's current
// window and, on a match, activates the recognised profile. Safe to call
// while frames are in flight.
func (s *Session) Identify(rec *Recognizer) RecognitionResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := rec.Identify(s.window)
	if result.Recognized {
		s.prof = result.Profile
		s.fallback = false
	}
	return result
}

// Reset zeroes the repetition count, clears the window and phase history,
// and returns the state machine to start. Safe to call at any time,
// including mid-cycle.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter.Reset()
	s.window.Clear()
	s.phases.Clear()
	s.firstTimestamp = time.Time{}
	s.lastTimestamp = time.Time{}
	s.formSum = 0
	s.formCount = 0
}

// Summary returns the session roll-up. Safe against in-flight frames.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	mean := 0.0
	if s.formCount > 0 {
		mean = s.formSum / float64(s.formCount)
	}
	var duration time.Duration
	if !s.firstTimestamp.IsZero() {
		duration = s.lastTimestamp.Sub(s.firstTimestamp)
	}
	return Summary{
		SessionID:     s.id,
		ExerciseID:    s.prof.ID,
		RepCount:      s.counter.RepCount(),
		MeanFormScore: mean,
		Duration:      duration,
		SampleCount:   s.formCount,
	}
}

// PhaseHistory returns the recent phase labels with timestamps.
func (s *Session) PhaseHistory() []PhaseRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phases.Records()
}

// LastCycleRange exposes the angular excursion of the most recently
// counted cycle, used when recording rep events.
func (s *Session) LastCycleRange() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCycleRange
}

// String implements fmt.Stringer for log lines.
func (s *Session) String() string {
	return fmt.Sprintf("session %s (%s)", s.id, s.prof.ID)
}
