package engine

import "time"

// Phase represents a discrete stage of a single repetition's motion cycle.
type Phase string

const (
	// PhaseUnknown is the state before the first valid classification.
	PhaseUnknown Phase = "unknown"
	// PhaseStart is the resting pose at the beginning of a cycle.
	PhaseStart Phase = "start"
	// PhaseQuarter is the early concentric portion of the movement.
	PhaseQuarter Phase = "quarter"
	// PhasePeak is the point of maximum contraction/flexion.
	PhasePeak Phase = "peak"
	// PhaseReturn is the eccentric portion back toward rest.
	PhaseReturn Phase = "return"
	// PhaseEnd is the settled pose at the bottom of the cycle. Leaving
	// PhaseEnd back to PhaseStart is the only edge that counts a rep.
	PhaseEnd Phase = "end"
)

// validEdges is the set of accepted phase transitions. Self-transitions
// (dwelling in a phase) are always valid and are not listed here.
// start→peak is included so that quarter may be skipped under fast motion.
var validEdges = map[Phase]map[Phase]bool{
	PhaseUnknown: {PhaseStart: true, PhaseEnd: true},
	PhaseStart:   {PhaseQuarter: true, PhasePeak: true},
	PhaseQuarter: {PhasePeak: true},
	PhasePeak:    {PhaseReturn: true},
	PhaseReturn:  {PhaseEnd: true},
	PhaseEnd:     {PhaseStart: true},
}

// ValidTransition reports whether moving from to next is a biomechanically
// acceptable phase transition. Dwelling (from == next) is always valid.
func ValidTransition(from, next Phase) bool {
	if from == next {
		return true
	}
	return validEdges[from][next]
}

// PhaseRecord is one entry in a session's phase history.
type PhaseRecord struct {
	Phase     Phase
	Timestamp time.Time
}

// PhaseHistory maintains a bounded list of the most recent phase labels
// with their timestamps. Independent of (and typically shorter than) the
// feature window.
type PhaseHistory struct {
	records  []PhaseRecord
	capacity int
}

// NewPhaseHistory creates a phase history holding at most capacity records.
func NewPhaseHistory(capacity int) *PhaseHistory {
	if capacity < 1 {
		capacity = 20
	}
	return &PhaseHistory{
		records:  make([]PhaseRecord, 0, capacity),
		capacity: capacity,
	}
}

// Append records a phase observation, evicting the oldest if at capacity.
func (ph *PhaseHistory) Append(p Phase, ts time.Time) {
	ph.records = append(ph.records, PhaseRecord{Phase: p, Timestamp: ts})
	if len(ph.records) > ph.capacity {
		ph.records = ph.records[len(ph.records)-ph.capacity:]
	}
}

// Records returns the history from oldest to newest. The returned slice is
// a copy and safe to retain.
func (ph *PhaseHistory) Records() []PhaseRecord {
	out := make([]PhaseRecord, len(ph.records))
	copy(out, ph.records)
	return out
}

// Last returns the most recent record, or a zero record if empty.
func (ph *PhaseHistory) Last() (PhaseRecord, bool) {
	if len(ph.records) == 0 {
		return PhaseRecord{}, false
	}
	return ph.records[len(ph.records)-1], true
}

// Len returns the number of stored records.
func (ph *PhaseHistory) Len() int { return len(ph.records) }

// Clear removes all records.
func (ph *PhaseHistory) Clear() { ph.records = ph.records[:0] }
