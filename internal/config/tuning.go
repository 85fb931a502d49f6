package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for engine tuning
// parameters. The schema matches the /api/params endpoint so the same
// JSON can be used for both startup configuration and runtime updates.
// All fields are optional; the Get* accessors supply defaults for any
// field not present, so partial configs are safe.
type TuningConfig struct {
	// Temporal memory params
	WindowCapacity     *int `json:"window_capacity,omitempty"`
	PhaseHistoryLength *int `json:"phase_history_length,omitempty"`

	// Classifier params
	ConfidenceFloor *float64 `json:"confidence_floor,omitempty"`
	LowProgressMax  *float64 `json:"low_progress_max,omitempty"`
	PeakProgressMin *float64 `json:"peak_progress_min,omitempty"`

	// Frame ingestion params
	TargetFPS  *int `json:"target_fps,omitempty"`
	QueueBound *int `json:"queue_bound,omitempty"`

	// Auto-recognition params
	MinSimilarity     *float64 `json:"min_similarity,omitempty"`
	RecognitionFrames *int     `json:"recognition_frames,omitempty"`

	// Fallback-profile thresholds, applied when an exercise cannot be
	// resolved to a stored profile.
	DefaultMinAngleRange      *float64 `json:"default_min_angle_range,omitempty"`
	DefaultVelocityThreshold  *float64 `json:"default_velocity_threshold,omitempty"`
	DefaultMinTransitionCount *int     `json:"default_min_transition_count,omitempty"`
	DefaultCooldown           *string  `json:"default_cooldown,omitempty"` // duration string like "1200ms"
	DefaultDwellFrames        *int     `json:"default_dwell_frames,omitempty"`

	// Form scorer weights
	FormSymmetryWeight   *float64 `json:"form_symmetry_weight,omitempty"`
	FormRangeWeight      *float64 `json:"form_range_weight,omitempty"`
	FormSmoothnessWeight *float64 `json:"form_smoothness_weight,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file is
// validated to ensure it has a .json extension and is under the max file
// size. Fields omitted from the JSON retain their defaults.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from
// DefaultConfigPath. It searches for the file in the current directory and
// common parent directories. Panics if the file cannot be loaded —
// intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.ConfidenceFloor != nil {
		if *c.ConfidenceFloor < 0 || *c.ConfidenceFloor > 1 {
			return fmt.Errorf("confidence_floor must be between 0 and 1, got %f", *c.ConfidenceFloor)
		}
	}
	if c.MinSimilarity != nil {
		if *c.MinSimilarity < 0 || *c.MinSimilarity > 1 {
			return fmt.Errorf("min_similarity must be between 0 and 1, got %f", *c.MinSimilarity)
		}
	}
	if c.LowProgressMax != nil && c.PeakProgressMin != nil {
		if *c.LowProgressMax >= *c.PeakProgressMin {
			return fmt.Errorf("low_progress_max (%f) must be below peak_progress_min (%f)",
				*c.LowProgressMax, *c.PeakProgressMin)
		}
	}
	if c.WindowCapacity != nil {
		if *c.WindowCapacity < 2 {
			return fmt.Errorf("window_capacity must be at least 2, got %d", *c.WindowCapacity)
		}
	}
	if c.TargetFPS != nil {
		if *c.TargetFPS < 1 {
			return fmt.Errorf("target_fps must be positive, got %d", *c.TargetFPS)
		}
	}
	if c.QueueBound != nil {
		if *c.QueueBound < 1 {
			return fmt.Errorf("queue_bound must be positive, got %d", *c.QueueBound)
		}
	}
	if c.DefaultCooldown != nil && *c.DefaultCooldown != "" {
		if _, err := time.ParseDuration(*c.DefaultCooldown); err != nil {
			return fmt.Errorf("invalid default_cooldown '%s': %w", *c.DefaultCooldown, err)
		}
	}
	return nil
}

// GetWindowCapacity returns the window_capacity value or the default.
// 36 frames is roughly 3 seconds at the 12 fps processing target.
func (c *TuningConfig) GetWindowCapacity() int {
	if c.WindowCapacity == nil {
		return 36
	}
	return *c.WindowCapacity
}

// GetPhaseHistoryLength returns the phase_history_length value or the default.
func (c *TuningConfig) GetPhaseHistoryLength() int {
	if c.PhaseHistoryLength == nil {
		return 20
	}
	return *c.PhaseHistoryLength
}

// GetConfidenceFloor returns the confidence_floor value or the default.
func (c *TuningConfig) GetConfidenceFloor() float64 {
	if c.ConfidenceFloor == nil {
		return 0.75
	}
	return *c.ConfidenceFloor
}

// GetLowProgressMax returns the low_progress_max value or the default.
func (c *TuningConfig) GetLowProgressMax() float64 {
	if c.LowProgressMax == nil {
		return 0.15
	}
	return *c.LowProgressMax
}

// GetPeakProgressMin returns the peak_progress_min value or the default.
func (c *TuningConfig) GetPeakProgressMin() float64 {
	if c.PeakProgressMin == nil {
		return 0.85
	}
	return *c.PeakProgressMin
}

// GetTargetFPS returns the target_fps value or the default.
func (c *TuningConfig) GetTargetFPS() int {
	if c.TargetFPS == nil {
		return 12
	}
	return *c.TargetFPS
}

// GetQueueBound returns the queue_bound value or the default.
func (c *TuningConfig) GetQueueBound() int {
	if c.QueueBound == nil {
		return 8
	}
	return *c.QueueBound
}

// GetMinSimilarity returns the min_similarity value or the default.
func (c *TuningConfig) GetMinSimilarity() float64 {
	if c.MinSimilarity == nil {
		return 0.7
	}
	return *c.MinSimilarity
}

// GetRecognitionFrames returns the recognition_frames value or the default.
func (c *TuningConfig) GetRecognitionFrames() int {
	if c.RecognitionFrames == nil {
		return 45
	}
	return *c.RecognitionFrames
}

// GetDefaultMinAngleRange returns the default_min_angle_range value or the default.
func (c *TuningConfig) GetDefaultMinAngleRange() float64 {
	if c.DefaultMinAngleRange == nil {
		return 45
	}
	return *c.DefaultMinAngleRange
}

// GetDefaultVelocityThreshold returns the default_velocity_threshold value or the default.
func (c *TuningConfig) GetDefaultVelocityThreshold() float64 {
	if c.DefaultVelocityThreshold == nil {
		return 1.5
	}
	return *c.DefaultVelocityThreshold
}

// GetDefaultMinTransitionCount returns the default_min_transition_count value or the default.
func (c *TuningConfig) GetDefaultMinTransitionCount() int {
	if c.DefaultMinTransitionCount == nil {
		return 3
	}
	return *c.DefaultMinTransitionCount
}

// GetDefaultCooldown parses and returns the default_cooldown as a time.Duration.
func (c *TuningConfig) GetDefaultCooldown() time.Duration {
	if c.DefaultCooldown == nil || *c.DefaultCooldown == "" {
		return 1200 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.DefaultCooldown)
	if err != nil {
		return 1200 * time.Millisecond
	}
	return d
}

// GetDefaultDwellFrames returns the default_dwell_frames value or the default.
func (c *TuningConfig) GetDefaultDwellFrames() int {
	if c.DefaultDwellFrames == nil {
		return 2
	}
	return *c.DefaultDwellFrames
}

// GetFormSymmetryWeight returns the form_symmetry_weight value or the default.
func (c *TuningConfig) GetFormSymmetryWeight() float64 {
	if c.FormSymmetryWeight == nil {
		return 0.3
	}
	return *c.FormSymmetryWeight
}

// GetFormRangeWeight returns the form_range_weight value or the default.
func (c *TuningConfig) GetFormRangeWeight() float64 {
	if c.FormRangeWeight == nil {
		return 0.4
	}
	return *c.FormRangeWeight
}

// GetFormSmoothnessWeight returns the form_smoothness_weight value or the default.
func (c *TuningConfig) GetFormSmoothnessWeight() float64 {
	if c.FormSmoothnessWeight == nil {
		return 0.3
	}
	return *c.FormSmoothnessWeight
}
