package engine

import (
	"time"

	"github.com/formsense/repcount/internal/profile"
)

// RejectReason explains why a phase transition was not applied. Rejections
// are expected steady-state outcomes, never errors.
type RejectReason string

const (
	RejectNone            RejectReason = ""
	RejectInvalidEdge     RejectReason = "invalid_edge"
	RejectRangeTooSmall   RejectReason = "range_too_small"
	RejectTooFewChanges   RejectReason = "too_few_transitions"
	RejectCooldown        RejectReason = "cooldown"
	RejectLowConfidence   RejectReason = "low_confidence"
	RejectDwellIncomplete RejectReason = "dwell_incomplete"
)

// TransitionOutcome reports the result of feeding one observation to the
// counter.
type TransitionOutcome struct {
	State    Phase
	RepCount int
	// Counted is true when this observation closed a full cycle and
	// incremented the repetition count.
	Counted bool
	// Accepted is true when the observation changed state or dwelt in the
	// current state; false when the edge was rejected.
	Accepted bool
	Reason   RejectReason
	// CycleRange is the angular excursion of the just-completed cycle,
	// set only when Counted is true.
	CycleRange float64
}

// Counter is the finite-state machine that validates phase transitions and
// increments the repetition count only on a fully gated end→start edge.
// One Counter per session; not safe for concurrent use (the owning session
// serialises access).
type Counter struct {
	confidenceFloor float64

	state       Phase
	repCount    int
	lastRepAt   time.Time
	haveLastRep bool

	// transitions counts distinct phase changes since the last counted
	// rep, guarding against tiny twitches being counted as cycles.
	transitions int

	// cycleMin/cycleMax track the primary-angle excursion of the current
	// cycle.
	cycleMin     float64
	cycleMax     float64
	cycleTracked bool

	// dwellTicks counts consecutive below-threshold-velocity frames
	// observed while in the end phase. The machine is only eligible to
	// leave end once this reaches the profile's dwell requirement,
	// confirming a genuine pause rather than an oscillation artifact.
	dwellTicks int
}

// NewCounter creates a counter in the unknown state, waiting for the first
// valid classification.
func NewCounter(confidenceFloor float64) *Counter {
	return &Counter{
		confidenceFloor: confidenceFloor,
		state:           PhaseUnknown,
	}
}

// State returns the current phase.
func (c *Counter) State() Phase { return c.state }

// RepCount returns the monotonic repetition count.
func (c *Counter) RepCount() int { return c.repCount }

// LastRepAt returns the timestamp of the most recently counted rep and
// whether one has been counted.
func (c *Counter) LastRepAt() (time.Time, bool) { return c.lastRepAt, c.haveLastRep }

// CycleRange returns the angular excursion observed in the current cycle.
func (c *Counter) CycleRange() float64 {
	if !c.cycleTracked {
		return 0
	}
	return c.cycleMax - c.cycleMin
}

// Observe feeds one classified frame into the state machine. angle is the
// mean primary-angle value for the frame; ts its timestamp.
func (c *Counter) Observe(obs Observation, angle float64, ts time.Time, prof *profile.Profile) TransitionOutcome {
	// Track the cycle's angular excursion on every frame, counted or not.
	if !c.cycleTracked {
		c.cycleMin = angle
		c.cycleMax = angle
		c.cycleTracked = true
	} else {
		if angle < c.cycleMin {
			c.cycleMin = angle
		}
		if angle > c.cycleMax {
			c.cycleMax = angle
		}
	}

	next := obs.Phase

	// Dwelling in the current phase is always valid. Settled frames spent
	// in end accumulate dwell ticks; a velocity spike while nominally in
	// end restarts the dwell, so oscillation artifacts cannot satisfy it.
	if next == c.state {
		if c.state == PhaseEnd {
			if absFloat(obs.Velocity) < prof.VelocityThreshold {
				c.dwellTicks++
			} else {
				c.dwellTicks = 0
			}
		}
		return c.outcome(true, false, RejectNone)
	}

	if !ValidTransition(c.state, next) {
		// The incoming classification is discarded and the current state
		// retained. No error is raised: rejections are the steady state
		// for noisy input.
		return c.outcome(false, false, RejectInvalidEdge)
	}

	// end→start is the single edge that both transitions state and counts
	// a repetition, gated by every one of the cycle-validity conditions.
	if c.state == PhaseEnd && next == PhaseStart {
		if reason := c.repGate(obs, ts, prof); reason != RejectNone {
			return c.outcome(false, false, reason)
		}
		completed := c.CycleRange()
		c.state = PhaseStart
		c.repCount++
		c.lastRepAt = ts
		c.haveLastRep = true
		c.transitions = 0
		c.dwellTicks = 0
		// New cycle: excursion tracking restarts at the current pose.
		c.cycleMin = angle
		c.cycleMax = angle
		out := c.outcome(true, true, RejectNone)
		out.CycleRange = completed
		return out
	}

	c.state = next
	c.transitions++
	if next == PhaseEnd {
		// Fresh dwell for the new end pose.
		c.dwellTicks = 0
	}
	return c.outcome(true, false, RejectNone)
}

// repGate evaluates the five AND-ed conditions for counting a repetition.
func (c *Counter) repGate(obs Observation, ts time.Time, prof *profile.Profile) RejectReason {
	if c.CycleRange() < prof.MinAngleRange {
		return RejectRangeTooSmall
	}
	if c.transitions < prof.MinTransitionCount {
		return RejectTooFewChanges
	}
	if c.haveLastRep && ts.Sub(c.lastRepAt) < prof.Cooldown {
		return RejectCooldown
	}
	if obs.Confidence < c.confidenceFloor {
		return RejectLowConfidence
	}
	dwellRequired := prof.DwellFrames
	if dwellRequired < 1 {
		dwellRequired = 1
	}
	if c.dwellTicks < dwellRequired {
		return RejectDwellIncomplete
	}
	return RejectNone
}

// Reset zeroes the repetition count and returns the machine to the start
// state. Safe to call at any time, including mid-cycle.
func (c *Counter) Reset() {
	c.state = PhaseStart
	c.repCount = 0
	c.lastRepAt = time.Time{}
	c.haveLastRep = false
	c.transitions = 0
	c.cycleTracked = false
	c.cycleMin = 0
	c.cycleMax = 0
	c.dwellTicks = 0
}

func (c *Counter) outcome(accepted, counted bool, reason RejectReason) TransitionOutcome {
	return TransitionOutcome{
		State:    c.state,
		RepCount: c.repCount,
		Counted:  counted,
		Accepted: accepted,
		Reason:   reason,
	}
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
