package engine

import "time"

// FeatureVector is one frame of pose-derived joint angles, in degrees,
// plus the frame timestamp. Produced externally; treated as opaque numeric
// input here.
type FeatureVector struct {
	Angles    []float64
	Timestamp time.Time
}

// Window maintains a fixed-capacity ring of the most recent feature
// vectors for one session. Oldest entries are evicted first. All queries
// on an empty window return zero values rather than erroring.
type Window struct {
	frames   []FeatureVector
	capacity int
	head     int // next write position
	size     int // current number of frames stored
}

// DefaultVelocityFrames is the moving-average span used by VelocityAt.
// Three frames gives reasonable noise resistance at 10–15 fps without
// smearing genuine direction changes.
const DefaultVelocityFrames = 3

// NewWindow creates a window with the specified capacity.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 36
	}
	return &Window{
		frames:   make([]FeatureVector, capacity),
		capacity: capacity,
	}
}

// Push appends a frame, evicting the oldest if at capacity. O(1).
func (w *Window) Push(fv FeatureVector) {
	w.frames[w.head] = fv
	w.head = (w.head + 1) % w.capacity
	if w.size < w.capacity {
		w.size++
	}
}

// Previous returns the frame n steps back from the most recent.
// Previous(1) is the most recently pushed frame. Returns false if the
// requested frame does not exist.
func (w *Window) Previous(n int) (FeatureVector, bool) {
	if n < 1 || n > w.size {
		return FeatureVector{}, false
	}
	idx := (w.head - n + w.capacity) % w.capacity
	return w.frames[idx], true
}

// Recent returns the last n frames ordered oldest to newest. If fewer
// than n frames are stored, all stored frames are returned. The result
// is a copy and re-readable without mutating the window.
func (w *Window) Recent(n int) []FeatureVector {
	if n > w.size {
		n = w.size
	}
	if n <= 0 {
		return nil
	}
	out := make([]FeatureVector, n)
	for i := 0; i < n; i++ {
		idx := (w.head - n + i + w.capacity) % w.capacity
		out[i] = w.frames[idx]
	}
	return out
}

// Size returns the current number of stored frames.
func (w *Window) Size() int { return w.size }

// Capacity returns the maximum number of frames that can be stored.
func (w *Window) Capacity() int { return w.capacity }

// Clear removes all frames.
func (w *Window) Clear() {
	for i := range w.frames {
		w.frames[i] = FeatureVector{}
	}
	w.head = 0
	w.size = 0
}

// VelocityAt returns the angular speed in degrees per frame at the given
// angle index, computed as a moving average of finite differences over the
// last DefaultVelocityFrames frames. Sign indicates direction. Returns 0
// if fewer than two frames are stored or the index is out of range.
func (w *Window) VelocityAt(angleIndex int) float64 {
	return w.velocityOver(angleIndex, DefaultVelocityFrames)
}

// velocityOver averages finite differences across up to span most recent
// frame pairs.
func (w *Window) velocityOver(angleIndex, span int) float64 {
	if w.size < 2 {
		return 0
	}
	pairs := span
	if pairs > w.size-1 {
		pairs = w.size - 1
	}
	var sum float64
	var counted int
	for i := 1; i <= pairs; i++ {
		newer, _ := w.Previous(i)
		older, _ := w.Previous(i + 1)
		if angleIndex < 0 || angleIndex >= len(newer.Angles) || angleIndex >= len(older.Angles) {
			continue
		}
		sum += newer.Angles[angleIndex] - older.Angles[angleIndex]
		counted++
	}
	if counted == 0 {
		return 0
	}
	return sum / float64(counted)
}

// MeanVelocity returns the average of VelocityAt across the given angle
// indices. Used to summarise motion over a profile's primary angles.
func (w *Window) MeanVelocity(angleIndices []int) float64 {
	if len(angleIndices) == 0 {
		return 0
	}
	var sum float64
	for _, idx := range angleIndices {
		sum += w.VelocityAt(idx)
	}
	return sum / float64(len(angleIndices))
}

// MeanAngle returns the mean of the given angle indices in the most recent
// frame, or 0 if the window is empty.
func (w *Window) MeanAngle(angleIndices []int) float64 {
	latest, ok := w.Previous(1)
	if !ok || len(angleIndices) == 0 {
		return 0
	}
	var sum float64
	var counted int
	for _, idx := range angleIndices {
		if idx < 0 || idx >= len(latest.Angles) {
			continue
		}
		sum += latest.Angles[idx]
		counted++
	}
	if counted == 0 {
		return 0
	}
	return sum / float64(counted)
}

// TimeDeltaSeconds returns the time delta between the two most recent
// frames, or 0 if fewer than two frames are stored.
func (w *Window) TimeDeltaSeconds() float64 {
	if w.size < 2 {
		return 0
	}
	current, _ := w.Previous(1)
	previous, _ := w.Previous(2)
	return current.Timestamp.Sub(previous.Timestamp).Seconds()
}
