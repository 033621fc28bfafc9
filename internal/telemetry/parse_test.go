package telemetry

import (
	"errors"
	"strings"
	"testing"

	"scout-gateway/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "Crop Name,Pixel Center X Y,Latitude,Longitude,Confidence,Timestamp,Yaw\n"

func TestParseCSV_ValidRows(t *testing.T) {
	p, err := parseCSV(strings.NewReader(header +
		"crop_001.jpg,(320 240),24.4539,54.3773,0.91,2025-06-01T10:00:00,87.5\n" +
		"crop_002.jpg,(100 80),24.4540,54.3780,0.72,2025-06-01T10:00:05,\n"))
	require.NoError(t, err)
	require.Len(t, p.records, 2)
	assert.Equal(t, []string{"crop_001.jpg", "crop_002.jpg"}, p.order)

	r := p.records["crop_001.jpg"]
	assert.Equal(t, "(320 240)", r.Center)
	require.NotNil(t, r.Latitude)
	assert.InDelta(t, 24.4539, *r.Latitude, 1e-9)
	require.NotNil(t, r.Yaw)
	assert.InDelta(t, 87.5, *r.Yaw, 1e-9)

	assert.Nil(t, p.records["crop_002.jpg"].Yaw)
}

func TestParseCSV_SkipsRowWithoutName(t *testing.T) {
	p, err := parseCSV(strings.NewReader(header +
		"crop_001.jpg,(1 1),10,20,0.5,t1,\n" +
		",(2 2),11,21,0.6,t2,\n" +
		"crop_003.jpg,(3 3),12,22,0.7,t3,\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"crop_001.jpg", "crop_003.jpg"}, p.order)
	require.Len(t, p.skipped, 1)
	assert.True(t, errors.Is(p.skipped[0], models.ErrParseSkip))
	assert.Contains(t, p.skipped[0].Error(), "line 3")
}

func TestParseCSV_SkipsMalformedOrOutOfRangeCoordinates(t *testing.T) {
	p, err := parseCSV(strings.NewReader(header +
		"bad_lat.jpg,(1 1),91,20,0.5,t1,\n" +
		"bad_lon.jpg,(1 1),10,-181,0.5,t1,\n" +
		"nan.jpg,(1 1),abc,20,0.5,t1,\n" +
		"ok.jpg,(1 1),-90,180,0.5,t1,\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"ok.jpg"}, p.order)
	assert.Len(t, p.skipped, 3)
}

func TestParseCSV_SkipsNonFiniteNumbers(t *testing.T) {
	p, err := parseCSV(strings.NewReader(header +
		"ok.jpg,(1 1),47.1,8.5,0.9,t1,\n" +
		"nan_lat.jpg,(1 2),NaN,8.5,0.9,t2,\n" +
		"inf_conf.jpg,(1 2),47.1,8.5,Inf,t2,\n" +
		"neg_inf_lon.jpg,(1 2),47.1,-Inf,0.9,t2,\n" +
		"nan_yaw.jpg,(1 2),47.1,8.5,0.9,t2,nan\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"ok.jpg"}, p.order)
	require.Len(t, p.skipped, 4)
	for _, skip := range p.skipped {
		assert.ErrorIs(t, skip, models.ErrParseSkip)
	}
}

func TestParseCSV_MissingOptionalColumns(t *testing.T) {
	p, err := parseCSV(strings.NewReader("Crop Name,Latitude,Longitude\n" +
		"crop_001.jpg,1.5,2.5\n" +
		"crop_002.jpg\n"))
	require.NoError(t, err)
	require.Len(t, p.records, 2)

	r1 := p.records["crop_001.jpg"]
	assert.Equal(t, "", r1.Center)
	assert.Equal(t, "", r1.Timestamp)
	assert.Nil(t, r1.Confidence)
	assert.Nil(t, r1.Yaw)
	assert.True(t, r1.HasPosition())

	assert.False(t, p.records["crop_002.jpg"].HasPosition())
}

func TestParseCSV_MissingNameColumnSkipsEveryRow(t *testing.T) {
	p, err := parseCSV(strings.NewReader("Latitude,Longitude\n1,2\n3,4\n"))
	require.NoError(t, err)
	assert.Empty(t, p.records)
	assert.Len(t, p.skipped, 2)
}

func TestParseCSV_DuplicateNameLastWinsKeepsFirstPosition(t *testing.T) {
	p, err := parseCSV(strings.NewReader(header +
		"a.jpg,(1 1),1,1,0.1,t1,\n" +
		"b.jpg,(2 2),2,2,0.2,t2,\n" +
		"a.jpg,(9 9),3,3,0.3,t3,\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, p.order)
	assert.Equal(t, "(9 9)", p.records["a.jpg"].Center)
}

func TestParseCSV_HandlesBOMAndEmptyFile(t *testing.T) {
	p, err := parseCSV(strings.NewReader("\ufeff" + header + "a.jpg,(1 1),1,1,0.1,t1,\n"))
	require.NoError(t, err)
	assert.Contains(t, p.records, "a.jpg")

	_, err = parseCSV(strings.NewReader(""))
	assert.Error(t, err)
}
