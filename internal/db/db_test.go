package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/formsense/repcount/internal/engine"
	"github.com/formsense/repcount/internal/profile"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testProfile(id, name string) *profile.Profile {
	return &profile.Profile{
		ID:                 id,
		Name:               name,
		PrimaryAngles:      []int{0, 1},
		MirrorPairs:        [][2]int{{0, 1}},
		RestAngle:          170,
		PeakAngle:          50,
		MinAngleRange:      60,
		VelocityThreshold:  2.0,
		MinTransitionCount: 3,
		Cooldown:           1200 * time.Millisecond,
		DwellFrames:        2,
		Reference:          []float64{170, 150, 110, 70, 50, 70, 110, 150, 170},
	}
}

func TestUpsertAndLoadProfiles(t *testing.T) {
	db := setupTestDB(t)

	p := testProfile("bicep-curl", "Bicep Curl")
	if err := db.UpsertProfile(p); err != nil {
		t.Fatalf("UpsertProfile failed: %v", err)
	}

	loaded, err := db.LoadProfiles()
	if err != nil {
		t.Fatalf("LoadProfiles failed: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("Expected 1 profile, got %d", len(loaded))
	}

	got := loaded[0]
	if got.ID != "bicep-curl" || got.Name != "Bicep Curl" {
		t.Errorf("Unexpected identity: %s / %s", got.ID, got.Name)
	}
	if len(got.PrimaryAngles) != 2 || got.PrimaryAngles[0] != 0 {
		t.Errorf("Primary angles not round-tripped: %v", got.PrimaryAngles)
	}
	if len(got.MirrorPairs) != 1 || got.MirrorPairs[0] != [2]int{0, 1} {
		t.Errorf("Mirror pairs not round-tripped: %v", got.MirrorPairs)
	}
	if got.Cooldown != 1200*time.Millisecond {
		t.Errorf("Cooldown not round-tripped: %v", got.Cooldown)
	}
	if len(got.Reference) != 9 {
		t.Errorf("Reference trajectory not round-tripped: %d points", len(got.Reference))
	}
}

func TestUpsertProfileOverwrites(t *testing.T) {
	db := setupTestDB(t)

	p := testProfile("squat", "Squat")
	if err := db.UpsertProfile(p); err != nil {
		t.Fatalf("First upsert failed: %v", err)
	}

	p.MinAngleRange = 80
	p.Reference = []float64{170, 90, 170}
	if err := db.UpsertProfile(p); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	loaded, err := db.LoadProfiles()
	if err != nil {
		t.Fatalf("LoadProfiles failed: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("Expected 1 profile after overwrite, got %d", len(loaded))
	}
	if loaded[0].MinAngleRange != 80 {
		t.Errorf("Expected updated range 80, got %v", loaded[0].MinAngleRange)
	}
	if len(loaded[0].Reference) != 3 {
		t.Errorf("Expected updated reference of 3 points, got %d", len(loaded[0].Reference))
	}
}

func TestUpsertProfileRejectsInvalid(t *testing.T) {
	db := setupTestDB(t)

	p := testProfile("bad", "Bad")
	p.PrimaryAngles = nil
	if err := db.UpsertProfile(p); err == nil {
		t.Error("Expected validation error for profile without primary angles, got nil")
	}
}

func TestRecordSummaryAndRecent(t *testing.T) {
	db := setupTestDB(t)

	for i, id := range []string{"s-1", "s-2", "s-3"} {
		s := engine.Summary{
			SessionID:     id,
			ExerciseID:    "bicep-curl",
			RepCount:      i + 1,
			MeanFormScore: 0.8,
			Duration:      90 * time.Second,
			SampleCount:   500,
		}
		if err := db.RecordSummary(s); err != nil {
			t.Fatalf("RecordSummary(%s) failed: %v", id, err)
		}
	}

	recent, err := db.RecentSummaries(2)
	if err != nil {
		t.Fatalf("RecentSummaries failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Expected 2 summaries, got %d", len(recent))
	}
	if recent[0].DurationMs != 90000 {
		t.Errorf("Expected duration 90000ms, got %d", recent[0].DurationMs)
	}
}

func TestRecordSummaryUpsertsOnSessionID(t *testing.T) {
	db := setupTestDB(t)

	s := engine.Summary{SessionID: "s-1", ExerciseID: "squat", RepCount: 3}
	if err := db.RecordSummary(s); err != nil {
		t.Fatalf("First RecordSummary failed: %v", err)
	}
	s.RepCount = 8
	if err := db.RecordSummary(s); err != nil {
		t.Fatalf("Second RecordSummary failed: %v", err)
	}

	recent, err := db.RecentSummaries(10)
	if err != nil {
		t.Fatalf("RecentSummaries failed: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("Expected 1 summary row, got %d", len(recent))
	}
	if recent[0].RepCount != 8 {
		t.Errorf("Expected rep count 8 after upsert, got %d", recent[0].RepCount)
	}
}

func TestRecordRepEvents(t *testing.T) {
	db := setupTestDB(t)

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		e := engine.RepEvent{
			SessionID:  "s-1",
			ExerciseID: "bicep-curl",
			RepNumber:  i,
			CycleRange: 110.5,
			FormScore:  0.9,
			Timestamp:  base.Add(time.Duration(i) * 5 * time.Second),
		}
		if err := db.RecordRepEvent(e); err != nil {
			t.Fatalf("RecordRepEvent(%d) failed: %v", i, err)
		}
	}
	// Another session's events must not leak into the query.
	other := engine.RepEvent{SessionID: "s-2", ExerciseID: "squat", RepNumber: 1, Timestamp: base}
	if err := db.RecordRepEvent(other); err != nil {
		t.Fatalf("RecordRepEvent for second session failed: %v", err)
	}

	events, err := db.RepEventsForSession("s-1")
	if err != nil {
		t.Fatalf("RepEventsForSession failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}
	for i, e := range events {
		if e.RepNumber != i+1 {
			t.Errorf("Events out of order at %d: rep_number %d", i, e.RepNumber)
		}
	}
	if events[0].Timestamp.IsZero() {
		t.Error("Timestamp not round-tripped")
	}
}

func TestProfileCount(t *testing.T) {
	db := setupTestDB(t)

	n, err := db.ProfileCount()
	if err != nil {
		t.Fatalf("ProfileCount failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 profiles in fresh db, got %d", n)
	}

	if err := db.UpsertProfile(testProfile("lunge", "Lunge")); err != nil {
		t.Fatalf("UpsertProfile failed: %v", err)
	}
	n, err = db.ProfileCount()
	if err != nil {
		t.Fatalf("ProfileCount failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 profile, got %d", n)
	}
}
