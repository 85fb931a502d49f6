package engine

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func frameAt(angle float64, ts time.Time) FeatureVector {
	return FeatureVector{Angles: []float64{angle}, Timestamp: ts}
}

func TestWindowPushAndEvict(t *testing.T) {
	w := NewWindow(3)
	base := time.Now()

	for i := 0; i < 5; i++ {
		w.Push(frameAt(float64(i), base.Add(time.Duration(i)*time.Second)))
	}

	if w.Size() != 3 {
		t.Errorf("Size() = %d, want 3", w.Size())
	}
	if w.Capacity() != 3 {
		t.Errorf("Capacity() = %d, want 3", w.Capacity())
	}

	// Only the newest three frames survive, oldest first.
	got := w.Recent(3)
	want := []FeatureVector{
		frameAt(2, base.Add(2*time.Second)),
		frameAt(3, base.Add(3*time.Second)),
		frameAt(4, base.Add(4*time.Second)),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Recent(3) mismatch (-want +got):\n%s", diff)
	}
}

func TestWindowRecentIsReReadable(t *testing.T) {
	w := NewWindow(4)
	base := time.Now()
	for i := 0; i < 4; i++ {
		w.Push(frameAt(float64(i*10), base.Add(time.Duration(i)*time.Second)))
	}

	first := w.Recent(2)
	second := w.Recent(2)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Repeated Recent(2) calls disagree (-first +second):\n%s", diff)
	}
	// Mutating the returned slice must not affect the window.
	first[0].Angles[0] = -999
	third := w.Recent(2)
	if third[0].Angles[0] == -999 {
		t.Error("Recent() returned a view into internal storage")
	}
}

func TestWindowRecentFewerThanRequested(t *testing.T) {
	w := NewWindow(10)
	w.Push(frameAt(1, time.Now()))
	w.Push(frameAt(2, time.Now()))

	got := w.Recent(5)
	if len(got) != 2 {
		t.Errorf("Recent(5) with 2 frames returned %d frames", len(got))
	}
}

func TestWindowPrevious(t *testing.T) {
	w := NewWindow(3)
	base := time.Now()
	w.Push(frameAt(1, base))
	w.Push(frameAt(2, base.Add(time.Second)))

	latest, ok := w.Previous(1)
	if !ok || latest.Angles[0] != 2 {
		t.Errorf("Previous(1) = %+v, %v; want angle 2", latest, ok)
	}
	older, ok := w.Previous(2)
	if !ok || older.Angles[0] != 1 {
		t.Errorf("Previous(2) = %+v, %v; want angle 1", older, ok)
	}
	if _, ok := w.Previous(3); ok {
		t.Error("Previous(3) should report missing frame")
	}
	if _, ok := w.Previous(0); ok {
		t.Error("Previous(0) should report missing frame")
	}
}

func TestWindowEmptyQueriesReturnZero(t *testing.T) {
	w := NewWindow(5)

	if v := w.VelocityAt(0); v != 0 {
		t.Errorf("VelocityAt on empty window = %f, want 0", v)
	}
	if a := w.MeanAngle([]int{0}); a != 0 {
		t.Errorf("MeanAngle on empty window = %f, want 0", a)
	}
	if d := w.TimeDeltaSeconds(); d != 0 {
		t.Errorf("TimeDeltaSeconds on empty window = %f, want 0", d)
	}
	if got := w.Recent(3); got != nil {
		t.Errorf("Recent on empty window = %v, want nil", got)
	}
}

func TestWindowVelocityMovingAverage(t *testing.T) {
	w := NewWindow(10)
	base := time.Now()
	// Constant +2 deg/frame climb.
	for i, a := range []float64{100, 102, 104, 106} {
		w.Push(frameAt(a, base.Add(time.Duration(i)*100*time.Millisecond)))
	}
	if v := w.VelocityAt(0); v != 2 {
		t.Errorf("VelocityAt = %f, want 2", v)
	}

	// Two frames: single finite difference.
	w2 := NewWindow(10)
	w2.Push(frameAt(100, base))
	w2.Push(frameAt(95, base.Add(100*time.Millisecond)))
	if v := w2.VelocityAt(0); v != -5 {
		t.Errorf("VelocityAt with 2 frames = %f, want -5", v)
	}
}

func TestWindowVelocitySmoothsNoise(t *testing.T) {
	w := NewWindow(10)
	base := time.Now()
	// A bounce: the average over 3 diffs damps the spike.
	for i, a := range []float64{170, 170, 176, 170} {
		w.Push(frameAt(a, base.Add(time.Duration(i)*100*time.Millisecond)))
	}
	// diffs: 0, +6, -6 -> mean 0
	if v := w.VelocityAt(0); v != 0 {
		t.Errorf("VelocityAt = %f, want 0 after smoothing", v)
	}
}

func TestWindowMeanAngle(t *testing.T) {
	w := NewWindow(5)
	w.Push(FeatureVector{Angles: []float64{100, 120, 80}, Timestamp: time.Now()})

	if a := w.MeanAngle([]int{0, 1}); a != 110 {
		t.Errorf("MeanAngle([0,1]) = %f, want 110", a)
	}
	if a := w.MeanAngle([]int{2}); a != 80 {
		t.Errorf("MeanAngle([2]) = %f, want 80", a)
	}
	// Out-of-range indices are skipped.
	if a := w.MeanAngle([]int{0, 99}); a != 100 {
		t.Errorf("MeanAngle([0,99]) = %f, want 100", a)
	}
}

func TestWindowClear(t *testing.T) {
	w := NewWindow(3)
	w.Push(frameAt(1, time.Now()))
	w.Push(frameAt(2, time.Now()))

	w.Clear()
	if w.Size() != 0 {
		t.Errorf("Size after Clear = %d, want 0", w.Size())
	}
	if _, ok := w.Previous(1); ok {
		t.Error("Previous(1) after Clear should report missing frame")
	}
}
