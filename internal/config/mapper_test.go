package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()

	require.NotNil(t, cfg.VoxelsPerSide)
	assert.Equal(t, 16, cfg.GetVoxelsPerSide())
	assert.Equal(t, "merged", cfg.GetMethod())
	assert.InDelta(t, 0.1, cfg.GetVoxelSize(), 1e-9)
}

func TestLoadMapperConfig_RejectsNonJSON(t *testing.T) {
	_, err := LoadMapperConfig("mapper.defaults.txt")
	assert.Error(t, err)
}

func TestValidate_RejectsUnknownMethod(t *testing.T) {
	bogus := "quantum"
	cfg := &MapperConfig{Method: &bogus}
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsInvertedRayLengthWindow(t *testing.T) {
	min, max := 10.0, 5.0
	cfg := &MapperConfig{MinRayLengthM: &min, MaxRayLengthM: &max}
	assert.Error(t, cfg.Validate())
}

func TestGetters_DefaultsOnNil(t *testing.T) {
	cfg := EmptyMapperConfig()
	assert.False(t, cfg.GetEnableICP())
	assert.Equal(t, 0, cfg.GetPointcloudDeintegrationQueueLength())
	assert.Equal(t, 0.0, cfg.GetSubmapIntervalSec())
	assert.Equal(t, "merged", cfg.GetMethod())
}
