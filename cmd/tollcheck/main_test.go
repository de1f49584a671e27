package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/geofence/detect"
	"github.com/luxfi/geofence/internal/catalog"
	"github.com/luxfi/geofence/zone"
)

func TestReadTrace(t *testing.T) {
	samples, err := readTrace(strings.NewReader(`lat,lon,unix_ms
# leaving Pinhal Novo
38.65676812, -8.89353369, 1700000000000
38.66,-8.89,1700000060000
`))
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, zone.Point{Lat: 38.65676812, Lon: -8.89353369}, samples[0].Point)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), samples[0].At)
	assert.Equal(t, time.Minute, samples[1].At.Sub(samples[0].At))
}

func TestReadTraceErrors(t *testing.T) {
	_, err := readTrace(strings.NewReader("38.6,-8.8,1\n38.6,north,2\n"))
	assert.ErrorContains(t, err, "line 2")

	_, err = readTrace(strings.NewReader("38.6,-8.8\n38.6,-8.8\n"))
	assert.Error(t, err)

	samples, err := readTrace(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestAuditor(t *testing.T) {
	a := &auditor{zones: catalog.Fallback()}
	inside := zone.Point{Lat: 38.65676812, Lon: -8.89353369}

	a.check(inside, &detect.Report{Results: []detect.Result{{Inside: true, Code: "1212"}}})
	assert.Equal(t, 1, a.agreed)

	a.check(inside, &detect.Report{Results: []detect.Result{{Inside: false, Code: "1212"}}})
	assert.Equal(t, 1, a.agreed)
	require.Len(t, a.diffs, 1)
	assert.Contains(t, a.diffs[0], "inside polygon")

	a.check(zone.Point{Lat: 38.66, Lon: -8.89}, &detect.Report{})
	assert.Equal(t, 2, a.agreed)
	assert.Equal(t, 3, a.checked)
}

func TestReferenceLocations(t *testing.T) {
	assert.Len(t, referenceLocations, 8)
	for _, loc := range referenceLocations {
		assert.NotEmpty(t, loc.Description)
		assert.False(t, loc.IsZero())
	}
}
