// Package db provides sqlite persistence for exercise profiles, reference
// trajectories, and session summaries.
package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/formsense/repcount/internal/engine"
	"github.com/formsense/repcount/internal/profile"
)

type DB struct {
	*sql.DB
}

// NewDB opens (creating if necessary) the sqlite database at path and
// ensures the schema exists. The inline schema matches migrations/0001 so
// test databases work without running the migration tooling.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS exercise_profiles (
			id                   TEXT PRIMARY KEY,
			name                 TEXT NOT NULL,
			primary_angles       TEXT NOT NULL,
			mirror_pairs         TEXT,
			rest_angle           DOUBLE NOT NULL,
			peak_angle           DOUBLE NOT NULL,
			min_angle_range      DOUBLE NOT NULL,
			velocity_threshold   DOUBLE NOT NULL,
			min_transition_count BIGINT NOT NULL,
			cooldown_ms          BIGINT NOT NULL,
			dwell_frames         BIGINT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS reference_trajectories (
			profile_id        TEXT PRIMARY KEY,
			points            TEXT NOT NULL,
			FOREIGN KEY(profile_id) REFERENCES exercise_profiles(id)
		);
		CREATE TABLE IF NOT EXISTS session_summaries (
			session_id        TEXT PRIMARY KEY,
			exercise_id       TEXT,
			rep_count         BIGINT,
			mean_form_score   DOUBLE,
			duration_ms       BIGINT,
			sample_count      BIGINT,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS rep_events (
			event_id          INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id        TEXT,
			exercise_id       TEXT,
			rep_number        BIGINT,
			cycle_range       DOUBLE,
			form_score        DOUBLE,
			timestamp         TIMESTAMP
		);
	`)
	if err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

// UpsertProfile writes a profile (and its reference trajectory, if any)
// to the store. Used by content import tooling.
func (db *DB) UpsertProfile(p *profile.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	primary, err := json.Marshal(p.PrimaryAngles)
	if err != nil {
		return fmt.Errorf("failed to marshal primary angles: %w", err)
	}
	mirrors, err := json.Marshal(p.MirrorPairs)
	if err != nil {
		return fmt.Errorf("failed to marshal mirror pairs: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO exercise_profiles
			(id, name, primary_angles, mirror_pairs, rest_angle, peak_angle,
			 min_angle_range, velocity_threshold, min_transition_count,
			 cooldown_ms, dwell_frames)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			primary_angles = excluded.primary_angles,
			mirror_pairs = excluded.mirror_pairs,
			rest_angle = excluded.rest_angle,
			peak_angle = excluded.peak_angle,
			min_angle_range = excluded.min_angle_range,
			velocity_threshold = excluded.velocity_threshold,
			min_transition_count = excluded.min_transition_count,
			cooldown_ms = excluded.cooldown_ms,
			dwell_frames = excluded.dwell_frames
	`, p.ID, p.Name, string(primary), string(mirrors), p.RestAngle, p.PeakAngle,
		p.MinAngleRange, p.VelocityThreshold, p.MinTransitionCount,
		p.Cooldown.Milliseconds(), p.DwellFrames)
	if err != nil {
		return fmt.Errorf("failed to upsert profile %s: %w", p.ID, err)
	}

	if len(p.Reference) > 0 {
		points, err := json.Marshal(p.Reference)
		if err != nil {
			return fmt.Errorf("failed to marshal reference trajectory: %w", err)
		}
		_, err = db.Exec(`
			INSERT INTO reference_trajectories (profile_id, points)
			VALUES (?, ?)
			ON CONFLICT(profile_id) DO UPDATE SET points = excluded.points
		`, p.ID, string(points))
		if err != nil {
			return fmt.Errorf("failed to upsert reference trajectory for %s: %w", p.ID, err)
		}
	}

	return nil
}

// LoadProfiles reads the full profile table with reference trajectories.
// Implements profile.Source for registry construction at startup.
func (db *DB) LoadProfiles() ([]*profile.Profile, error) {
	rows, err := db.Query(`
		SELECT p.id, p.name, p.primary_angles, p.mirror_pairs,
		       p.rest_angle, p.peak_angle, p.min_angle_range,
		       p.velocity_threshold, p.min_transition_count,
		       p.cooldown_ms, p.dwell_frames, t.points
		FROM exercise_profiles p
		LEFT JOIN reference_trajectories t ON t.profile_id = p.id
		ORDER BY p.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	var out []*profile.Profile
	for rows.Next() {
		var p profile.Profile
		var primary, mirrors string
		var points sql.NullString
		var cooldownMs int64
		if err := rows.Scan(&p.ID, &p.Name, &primary, &mirrors,
			&p.RestAngle, &p.PeakAngle, &p.MinAngleRange,
			&p.VelocityThreshold, &p.MinTransitionCount,
			&cooldownMs, &p.DwellFrames, &points); err != nil {
			return nil, fmt.Errorf("failed to scan profile row: %w", err)
		}
		if err := json.Unmarshal([]byte(primary), &p.PrimaryAngles); err != nil {
			return nil, fmt.Errorf("profile %s: bad primary_angles: %w", p.ID, err)
		}
		if mirrors != "" {
			if err := json.Unmarshal([]byte(mirrors), &p.MirrorPairs); err != nil {
				return nil, fmt.Errorf("profile %s: bad mirror_pairs: %w", p.ID, err)
			}
		}
		if points.Valid && points.String != "" {
			if err := json.Unmarshal([]byte(points.String), &p.Reference); err != nil {
				return nil, fmt.Errorf("profile %s: bad reference trajectory: %w", p.ID, err)
			}
		}
		p.Cooldown = time.Duration(cooldownMs) * time.Millisecond
		out = append(out, &p)
	}
	return out, rows.Err()
}

// RecordSummary persists a completed-session summary.
func (db *DB) RecordSummary(s engine.Summary) error {
	_, err := db.Exec(`
		INSERT INTO session_summaries
			(session_id, exercise_id, rep_count, mean_form_score, duration_ms, sample_count)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			rep_count = excluded.rep_count,
			mean_form_score = excluded.mean_form_score,
			duration_ms = excluded.duration_ms,
			sample_count = excluded.sample_count
	`, s.SessionID, s.ExerciseID, s.RepCount, s.MeanFormScore,
		s.Duration.Milliseconds(), s.SampleCount)
	if err != nil {
		return fmt.Errorf("failed to record session summary: %w", err)
	}
	return nil
}

// RecordRepEvent persists one counted repetition.
func (db *DB) RecordRepEvent(e engine.RepEvent) error {
	_, err := db.Exec(`
		INSERT INTO rep_events
			(session_id, exercise_id, rep_number, cycle_range, form_score, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.SessionID, e.ExerciseID, e.RepNumber, e.CycleRange, e.FormScore,
		e.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to record rep event: %w", err)
	}
	return nil
}

// SummaryRecord is a persisted session summary row.
type SummaryRecord struct {
	SessionID     string    `json:"session_id"`
	ExerciseID    string    `json:"exercise_id"`
	RepCount      int       `json:"rep_count"`
	MeanFormScore float64   `json:"mean_form_score"`
	DurationMs    int64     `json:"duration_ms"`
	SampleCount   int       `json:"sample_count"`
	Timestamp     time.Time `json:"timestamp"`
}

// RecentSummaries returns the most recent session summaries, newest first.
func (db *DB) RecentSummaries(limit int) ([]SummaryRecord, error) {
	if limit < 1 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT session_id, exercise_id, rep_count, mean_form_score,
		       duration_ms, sample_count, timestamp
		FROM session_summaries
		ORDER BY timestamp DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer rows.Close()

	var out []SummaryRecord
	for rows.Next() {
		var r SummaryRecord
		var ts string
		if err := rows.Scan(&r.SessionID, &r.ExerciseID, &r.RepCount,
			&r.MeanFormScore, &r.DurationMs, &r.SampleCount, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		// sqlite's CURRENT_TIMESTAMP stores "2006-01-02 15:04:05" in UTC.
		if parsed, err := time.Parse("2006-01-02 15:04:05", ts); err == nil {
			r.Timestamp = parsed
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RepEventRecord is a persisted rep event row.
type RepEventRecord struct {
	SessionID  string    `json:"session_id"`
	ExerciseID string    `json:"exercise_id"`
	RepNumber  int       `json:"rep_number"`
	CycleRange float64   `json:"cycle_range"`
	FormScore  float64   `json:"form_score"`
	Timestamp  time.Time `json:"timestamp"`
}

// RepEventsForSession returns a session's counted reps in order.
func (db *DB) RepEventsForSession(sessionID string) ([]RepEventRecord, error) {
	rows, err := db.Query(`
		SELECT session_id, exercise_id, rep_number, cycle_range, form_score, timestamp
		FROM rep_events
		WHERE session_id = ?
		ORDER BY rep_number
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rep events: %w", err)
	}
	defer rows.Close()

	var out []RepEventRecord
	for rows.Next() {
		var r RepEventRecord
		var ts string
		if err := rows.Scan(&r.SessionID, &r.ExerciseID, &r.RepNumber,
			&r.CycleRange, &r.FormScore, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan rep event row: %w", err)
		}
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			r.Timestamp = parsed
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ProfileCount returns the number of stored exercise profiles.
func (db *DB) ProfileCount() (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM exercise_profiles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count profiles: %w", err)
	}
	return n, nil
}
