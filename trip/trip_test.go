// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package trip

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/geofence/detect"
	"github.com/luxfi/geofence/zone"
)

var testZones = []zone.Zone{
	{Code: "1212", Name: "Pinhal Novo 2", Highway: "A12", Type: zone.Closed},
	{Code: "0102", Name: "Alverca", Highway: "A1", Type: zone.Closed},
	{Code: "0901", Name: "Odivelas", Highway: "A9", Type: zone.Open},
}

func inside(zi int) *detect.Report {
	return &detect.Report{Results: []detect.Result{
		{Inside: false, Code: "other", Zone: -1},
		{Inside: true, Code: testZones[zi].Code, Zone: zi},
	}}
}

func kinds(evs []Event) []Kind {
	var out []Kind
	for _, ev := range evs {
		out = append(out, ev.Kind)
	}
	return out
}

func TestClosedTrip(t *testing.T) {
	tr := NewTracker(testZones, 0)
	t0 := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	evs := tr.Observe(t0, zone.Point{Lat: 38.6568, Lon: -8.8935}, inside(0))
	require.Equal(t, []Kind{Entry}, kinds(evs))
	assert.Equal(t, "Pinhal Novo 2", evs[0].Name)
	assert.Equal(t, "A12", evs[0].Highway)

	open, ok := tr.Open()
	require.True(t, ok)
	assert.Equal(t, "1212", open.Code)

	// same toll again
	assert.Empty(t, tr.Observe(t0.Add(10*time.Second), zone.Point{}, inside(0)))

	evs = tr.Observe(t0.Add(25*time.Minute), zone.Point{Lat: 38.8923, Lon: -9.0481}, inside(1))
	require.Equal(t, []Kind{Exit}, kinds(evs))

	_, ok = tr.Open()
	assert.False(t, ok)

	legs := tr.Legs()
	require.Len(t, legs, 1)
	assert.Equal(t, "Pinhal Novo 2 - Alverca", legs[0].String())
	assert.Equal(t, 25*time.Minute, legs[0].Duration())

	// next hit starts a new trip
	evs = tr.Observe(t0.Add(time.Hour), zone.Point{}, inside(1))
	assert.Equal(t, []Kind{Entry}, kinds(evs))
	assert.Equal(t, []Kind{Entry, Exit, Entry}, kinds(tr.Events()))
}

func TestOpenPassDedup(t *testing.T) {
	tr := NewTracker(testZones, 0)
	t0 := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	assert.Equal(t, []Kind{Pass}, kinds(tr.Observe(t0, zone.Point{}, inside(2))))
	assert.Empty(t, tr.Observe(t0.Add(4*time.Minute), zone.Point{}, inside(2)))
	assert.Equal(t, []Kind{Pass}, kinds(tr.Observe(t0.Add(9*time.Minute), zone.Point{}, inside(2))))

	// OPEN passes leave the CLOSED trip state alone
	_, ok := tr.Open()
	assert.False(t, ok)
	assert.Empty(t, tr.Legs())
}

func TestCustomWindow(t *testing.T) {
	tr := NewTracker(testZones, time.Minute)
	t0 := time.Unix(1_700_000_000, 0)
	tr.Observe(t0, zone.Point{}, inside(2))
	assert.Len(t, tr.Observe(t0.Add(90*time.Second), zone.Point{}, inside(2)), 1)
}

func TestNoMatch(t *testing.T) {
	tr := NewTracker(testZones, 0)
	assert.Nil(t, tr.Observe(time.Now(), zone.Point{}, nil))
	assert.Nil(t, tr.Observe(time.Now(), zone.Point{}, &detect.Report{Message: detect.NoZonesEvaluated}))
	assert.Nil(t, tr.Observe(time.Now(), zone.Point{}, &detect.Report{Results: []detect.Result{{Code: "1212"}}}))
	assert.Empty(t, tr.Events())
}
