package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternConfig_Merge_OnlyOverridesPresentKeys(t *testing.T) {
	altitude := 50.0
	merged := DefaultPatternConfig().Merge(PatternOverrides{FlightAltitude: &altitude})

	assert.Equal(t, PatternConfig{
		LineSpacing:    20,
		FlightAltitude: 50,
		FlightVelocity: 4.0,
		FenceBuffer:    5,
		OptimizeAngle:  true,
		Angle:          90,
	}, merged)
}

func TestPatternConfig_Merge_EmptyOverridesKeepDefaults(t *testing.T) {
	assert.Equal(t, DefaultPatternConfig(), DefaultPatternConfig().Merge(PatternOverrides{}))
}

func TestPatternRequest_DecodePartialParams(t *testing.T) {
	var req PatternRequest
	require.NoError(t, json.Unmarshal([]byte(`{"filename":"field.kml","params":{"optimize_angle":false,"angle":45}}`), &req))
	require.NotNil(t, req.Params)

	merged := DefaultPatternConfig().Merge(*req.Params)
	assert.False(t, merged.OptimizeAngle)
	assert.Equal(t, 45.0, merged.Angle)
	assert.Equal(t, 30.0, merged.FlightAltitude)
}
