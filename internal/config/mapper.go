// Package config holds the tunable configuration surface of spec.md §6.
// Adapted from the teacher's internal/config/tuning.go: a single
// pointer-field struct so a partial JSON document only overrides the
// fields it mentions, a Validate step, and a size/extension-guarded
// loader.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the single source of truth for default tuning
// values, analogous to the teacher's tuning.defaults.json.
const DefaultConfigPath = "config/mapper.defaults.json"

// MapperConfig is the root configuration for the mapping system,
// covering every option in spec.md §6's configuration-surface table plus
// the verbose flag supplemented from tsdf_server.cc (see SPEC_FULL.md).
type MapperConfig struct {
	VoxelsPerSide      *int     `json:"voxels_per_side,omitempty"`
	VoxelSize          *float64 `json:"voxel_size,omitempty"`
	TruncationDistance *float64 `json:"truncation_distance,omitempty"`
	MaxWeight          *float64 `json:"max_weight,omitempty"`

	Method            *string `json:"method,omitempty"` // "simple" | "merged" | "fast"
	IntegratorThreads *int    `json:"integrator_threads,omitempty"`

	MaxRayLengthM *float64 `json:"max_ray_length_m,omitempty"`
	MinRayLengthM *float64 `json:"min_ray_length_m,omitempty"`

	UseConstWeight   *bool `json:"use_const_weight,omitempty"`
	UseWeightDropoff *bool `json:"use_weight_dropoff,omitempty"`

	MinTimeBetweenMsgsSec *float64 `json:"min_time_between_msgs_sec,omitempty"`

	MaxBlockDistanceFromBody *float64 `json:"max_block_distance_from_body,omitempty"`

	PointcloudDeintegrationQueueLength *int `json:"pointcloud_deintegration_queue_length,omitempty"`

	SubmapIntervalSec *float64 `json:"submap_interval,omitempty"`

	UpdateMeshEveryNSec  *float64 `json:"update_mesh_every_n_sec,omitempty"`
	PublishMapEveryNSec  *float64 `json:"publish_map_every_n_sec,omitempty"`

	EnableICP               *bool `json:"enable_icp,omitempty"`
	AccumulateICPCorrections *bool `json:"accumulate_icp_corrections,omitempty"`

	PublishMapWithTrajectory *bool `json:"publish_map_with_trajectory,omitempty"`

	// Verbose is the verbosity flag supplemented from tsdf_server.cc
	// (see SPEC_FULL.md); no component reads it, and no timing log is
	// gated on it.
	Verbose *bool `json:"verbose,omitempty"`
}

// EmptyMapperConfig returns a MapperConfig with all fields nil. Use
// LoadMapperConfig to populate from a file.
func EmptyMapperConfig() *MapperConfig {
	return &MapperConfig{}
}

// LoadMapperConfig loads a MapperConfig from a JSON file, rejecting
// paths without a .json extension and files over 1MB, matching the
// teacher's LoadTuningConfig guard.
func LoadMapperConfig(path string) (*MapperConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyMapperConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults, searching upward
// from the current directory. Panics if not found; intended for test
// setup the way the teacher's MustLoadDefaultConfig is.
func MustLoadDefaultConfig() *MapperConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadMapperConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks structural validity of any fields that are set.
func (c *MapperConfig) Validate() error {
	if c.VoxelsPerSide != nil && *c.VoxelsPerSide <= 0 {
		return fmt.Errorf("voxels_per_side must be positive, got %d", *c.VoxelsPerSide)
	}
	if c.VoxelSize != nil && *c.VoxelSize <= 0 {
		return fmt.Errorf("voxel_size must be positive, got %f", *c.VoxelSize)
	}
	if c.TruncationDistance != nil && *c.TruncationDistance <= 0 {
		return fmt.Errorf("truncation_distance must be positive, got %f", *c.TruncationDistance)
	}
	if c.MaxWeight != nil && *c.MaxWeight <= 0 {
		return fmt.Errorf("max_weight must be positive, got %f", *c.MaxWeight)
	}
	if c.Method != nil {
		switch *c.Method {
		case "simple", "merged", "fast":
		default:
			return fmt.Errorf("method must be one of simple|merged|fast, got %q", *c.Method)
		}
	}
	if c.IntegratorThreads != nil && *c.IntegratorThreads <= 0 {
		return fmt.Errorf("integrator_threads must be positive, got %d", *c.IntegratorThreads)
	}
	if c.MinRayLengthM != nil && c.MaxRayLengthM != nil && *c.MinRayLengthM >= *c.MaxRayLengthM {
		return fmt.Errorf("min_ray_length_m (%f) must be less than max_ray_length_m (%f)", *c.MinRayLengthM, *c.MaxRayLengthM)
	}
	if c.PointcloudDeintegrationQueueLength != nil && *c.PointcloudDeintegrationQueueLength < 0 {
		return fmt.Errorf("pointcloud_deintegration_queue_length must be non-negative, got %d", *c.PointcloudDeintegrationQueueLength)
	}
	if c.SubmapIntervalSec != nil && *c.SubmapIntervalSec < 0 {
		return fmt.Errorf("submap_interval must be non-negative, got %f", *c.SubmapIntervalSec)
	}
	return nil
}

// Accessor methods below return a documented default whenever the
// corresponding field is nil, the same shape as the teacher's Get*
// methods.

func (c *MapperConfig) GetVoxelsPerSide() int {
	if c.VoxelsPerSide == nil {
		return 16
	}
	return *c.VoxelsPerSide
}

func (c *MapperConfig) GetVoxelSize() float64 {
	if c.VoxelSize == nil {
		return 0.1
	}
	return *c.VoxelSize
}

func (c *MapperConfig) GetTruncationDistance() float64 {
	if c.TruncationDistance == nil {
		return 4 * c.GetVoxelSize()
	}
	return *c.TruncationDistance
}

func (c *MapperConfig) GetMaxWeight() float64 {
	if c.MaxWeight == nil {
		return 10000
	}
	return *c.MaxWeight
}

func (c *MapperConfig) GetMethod() string {
	if c.Method == nil {
		return "merged"
	}
	return *c.Method
}

func (c *MapperConfig) GetIntegratorThreads() int {
	if c.IntegratorThreads == nil {
		return 4
	}
	return *c.IntegratorThreads
}

func (c *MapperConfig) GetMaxRayLengthM() float64 {
	if c.MaxRayLengthM == nil {
		return 20.0
	}
	return *c.MaxRayLengthM
}

func (c *MapperConfig) GetMinRayLengthM() float64 {
	if c.MinRayLengthM == nil {
		return 0.1
	}
	return *c.MinRayLengthM
}

func (c *MapperConfig) GetUseConstWeight() bool {
	return c.UseConstWeight != nil && *c.UseConstWeight
}

func (c *MapperConfig) GetUseWeightDropoff() bool {
	return c.UseWeightDropoff != nil && *c.UseWeightDropoff
}

func (c *MapperConfig) GetMinTimeBetweenMsgsSec() float64 {
	if c.MinTimeBetweenMsgsSec == nil {
		return 0
	}
	return *c.MinTimeBetweenMsgsSec
}

func (c *MapperConfig) GetMaxBlockDistanceFromBody() float64 {
	if c.MaxBlockDistanceFromBody == nil {
		return 0 // 0 disables distance-based eviction
	}
	return *c.MaxBlockDistanceFromBody
}

func (c *MapperConfig) GetPointcloudDeintegrationQueueLength() int {
	if c.PointcloudDeintegrationQueueLength == nil {
		return 0 // disabled
	}
	return *c.PointcloudDeintegrationQueueLength
}

func (c *MapperConfig) GetSubmapIntervalSec() float64 {
	if c.SubmapIntervalSec == nil {
		return 0 // disabled
	}
	return *c.SubmapIntervalSec
}

func (c *MapperConfig) GetUpdateMeshEveryNSec() float64 {
	if c.UpdateMeshEveryNSec == nil {
		return 0
	}
	return *c.UpdateMeshEveryNSec
}

func (c *MapperConfig) GetPublishMapEveryNSec() float64 {
	if c.PublishMapEveryNSec == nil {
		return 0
	}
	return *c.PublishMapEveryNSec
}

func (c *MapperConfig) GetEnableICP() bool {
	return c.EnableICP != nil && *c.EnableICP
}

func (c *MapperConfig) GetAccumulateICPCorrections() bool {
	return c.AccumulateICPCorrections != nil && *c.AccumulateICPCorrections
}

func (c *MapperConfig) GetPublishMapWithTrajectory() bool {
	return c.PublishMapWithTrajectory != nil && *c.PublishMapWithTrajectory
}

func (c *MapperConfig) GetVerbose() bool {
	return c.Verbose != nil && *c.Verbose
}
