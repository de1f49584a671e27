// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package detect

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/geofence"
	"github.com/luxfi/geofence/index"
	"github.com/luxfi/geofence/internal/catalog"
	"github.com/luxfi/geofence/zone"
)

var (
	ctxOnce sync.Once
	testCtx *geofence.Context
	ctxErr  error
)

func newTestContext(t *testing.T) *geofence.Context {
	t.Helper()
	ctxOnce.Do(func() {
		testCtx, ctxErr = geofence.NewContextFromLiteral(geofence.PN13QP206)
	})
	require.NoError(t, ctxErr)
	return testCtx
}

func newDetector(t *testing.T, zones []zone.Zone, icfg index.Config, cfg Config) *Detector {
	t.Helper()
	s := geofence.NewSession(newTestContext(t))
	cache, err := zone.EncryptCentroids(s.Enc, zones)
	require.NoError(t, err)
	ix, err := index.Build(s, zones, icfg)
	require.NoError(t, err)
	d, err := New(s, zones, cache, ix, cfg)
	require.NoError(t, err)
	return d
}

// point returns a single-geofence zone whose centroid is exactly c.
func point(code string, c zone.Point) zone.Zone {
	const h = 0.0001
	return zone.Zone{
		Code:      code,
		Name:      code,
		Type:      zone.Open,
		Reference: c,
		Geofences: []zone.Geofence{{Points: []zone.Point{
			{Lat: c.Lat - h, Lon: c.Lon - h},
			{Lat: c.Lat - h, Lon: c.Lon + h},
			{Lat: c.Lat + h, Lon: c.Lon + h},
			{Lat: c.Lat + h, Lon: c.Lon - h},
		}}},
	}
}

func TestPinhalNovo(t *testing.T) {
	d := newDetector(t, catalog.Fallback(), index.Config{}, DefaultConfig())

	tests := []struct {
		name     string
		p        zone.Point
		inside   bool
		geofence int
	}{
		{"Fence1Centroid", zone.Point{Lat: 38.65676812, Lon: -8.89353369}, true, 0},
		{"Fence2Centroid", zone.Point{Lat: 38.65615898, Lon: -8.89664495}, true, 1},
		{"FarOutside", zone.Point{Lat: 38.66, Lon: -8.89}, false, -1},
		{"South", zone.Point{Lat: 38.65, Lon: -8.9}, false, -1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			report, err := d.Detect(context.Background(), tc.p)
			require.NoError(t, err)
			assert.Equal(t, 1, report.Band)
			assert.Equal(t, 1, report.Candidates)
			require.Len(t, report.Results, 1)

			res := report.Results[0]
			assert.Equal(t, "1212", res.Code)
			assert.Equal(t, tc.inside, res.Inside)
			assert.Equal(t, tc.geofence, res.Geofence)
			assert.Contains(t, res.Message, "Pinhal Novo 2 (1212)")
			assert.Positive(t, report.Rounds)
		})
	}
}

func TestEmptyBand(t *testing.T) {
	d := newDetector(t, catalog.Fallback(), index.Config{}, DefaultConfig())

	for _, p := range []zone.Point{{Lat: 36.5, Lon: -8}, {Lat: 38.82052119, Lon: -9.18781516}} {
		report, err := d.Detect(context.Background(), p)
		require.NoError(t, err)
		assert.Empty(t, report.Results)
		assert.Equal(t, NoZonesEvaluated, report.Message)
		assert.Zero(t, report.Candidates)
		assert.Equal(t, 1.0, report.Filtered())
		assert.Empty(t, report.Matches())
	}
}

func TestBatchPadding(t *testing.T) {
	zones := []zone.Zone{
		point("a", zone.Point{Lat: 0.5, Lon: 0.5}),
		point("b", zone.Point{Lat: 0.25, Lon: -0.5}),
		point("c", zone.Point{Lat: 0.75, Lon: 0.1}),
	}
	d := newDetector(t, zones, index.Config{Boundaries: []float64{-1, 1}}, DefaultConfig())
	batches := d.Index().Batches(0)
	require.Len(t, batches, 1)
	require.Equal(t, 3, batches[0].Occupancy())

	// Padded slots hold (0, 0), so a query there would match them.
	q, err := d.EncryptQuery(zone.Point{})
	require.NoError(t, err)
	results, err := d.CheckBatch(q, &batches[0])
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.False(t, r.Inside, r.Code)
		assert.Equal(t, 0, r.Geofence)
	}

	report, err := d.Detect(context.Background(), zone.Point{Lat: 0.25, Lon: -0.5})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, report.Matches())
	assert.Len(t, report.Results, 3)
}

func TestPolicies(t *testing.T) {
	centre := zone.Point{Lat: 38.5, Lon: -8.5}
	twin := zone.Point{Lat: 38.5, Lon: -8.6}
	bounds := index.Config{Boundaries: []float64{38, 39}}
	t1 := DefaultThresholds.Primary

	multi := point("multi", centre)
	multi.Geofences = append(multi.Geofences, point("", twin).Geofences...)
	zones := []zone.Zone{multi, point("single", centre)}

	// Squared distance just past the primary radius, inside the buffer window.
	borderline := zone.Point{Lat: centre.Lat + math.Sqrt(t1+1e-8), Lon: centre.Lon}
	// Outside the buffer window.
	beyond := zone.Point{Lat: centre.Lat + math.Sqrt(t1+5e-8), Lon: centre.Lon}

	tests := []struct {
		policy      Policy
		p           zone.Point
		multi       bool
		single      bool
		multiBuffer bool
	}{
		{LegacyAsymmetric, borderline, true, false, true},
		{BufferEverywhere, borderline, true, true, true},
		{NoBuffer, borderline, false, false, false},
		{LegacyAsymmetric, beyond, false, false, false},
		{BufferEverywhere, beyond, false, false, false},
		{LegacyAsymmetric, centre, true, true, false},
		{NoBuffer, centre, true, true, false},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprintf("%s/%v", tc.policy, tc.p), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Policy = tc.policy
			d := newDetector(t, append([]zone.Zone(nil), zones...), bounds, cfg)

			report, err := d.Detect(context.Background(), tc.p)
			require.NoError(t, err)
			require.Len(t, report.Results, 2)

			m, s := report.Results[0], report.Results[1]
			assert.Equal(t, "multi", m.Code)
			assert.Equal(t, tc.multi, m.Inside)
			assert.Equal(t, tc.multiBuffer, m.Buffered)
			assert.Equal(t, "single", s.Code)
			assert.Equal(t, tc.single, s.Inside)
			if tc.multi {
				assert.Equal(t, 0, m.Geofence)
			}
		})
	}
}

func TestFirstMatch(t *testing.T) {
	c := zone.Point{Lat: 38.5, Lon: -8.5}
	z := point("dup", c)
	z.Geofences = append(z.Geofences, z.Geofences[0])
	d := newDetector(t, []zone.Zone{z}, index.Config{Boundaries: []float64{38, 39}}, DefaultConfig())

	q, err := d.EncryptQuery(c)
	require.NoError(t, err)
	res, err := d.CheckZone(q, 0)
	require.NoError(t, err)
	assert.True(t, res.Inside)
	assert.Equal(t, 0, res.Geofence)
	assert.Contains(t, res.Message, "checked 1")
}

func TestParallel(t *testing.T) {
	zones := catalog.Fallback()
	for i := 0; i < 11; i++ {
		zones = append(zones, point(fmt.Sprintf("z%02d", i), zone.Point{Lat: 38.5 + float64(i)*0.01, Lon: -8.9 + float64(i)*0.0001}))
	}
	query := zone.Point{Lat: 38.53, Lon: -8.8997}

	seq := newDetector(t, append([]zone.Zone(nil), zones...), index.Config{}, DefaultConfig())
	cfg := DefaultConfig()
	cfg.Parallelism = 4
	par := newDetector(t, append([]zone.Zone(nil), zones...), index.Config{}, cfg)

	want, err := seq.Detect(context.Background(), query)
	require.NoError(t, err)
	got, err := par.Detect(context.Background(), query)
	require.NoError(t, err)

	require.Len(t, want.Results, len(zones))
	assert.Equal(t, []string{"z03"}, want.Matches())
	if diff := cmp.Diff(want.Results, got.Results); diff != "" {
		t.Errorf("parallel results differ (-seq +par):\n%s", diff)
	}
	assert.Equal(t, want.Rounds, got.Rounds)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = par.Detect(ctx, query)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestContextMismatch(t *testing.T) {
	d := newDetector(t, catalog.Fallback(), index.Config{}, DefaultConfig())

	other, err := geofence.NewContextFromLiteral(geofence.PN13QP206)
	require.NoError(t, err)
	q, err := encryptQuery(geofence.NewEncryptor(other), zone.Point{Lat: 38.65676812, Lon: -8.89353369}, d.Index().Width())
	require.NoError(t, err)

	_, err = d.DetectQuery(context.Background(), q)
	assert.ErrorIs(t, err, geofence.ErrParameterMismatch)
}

func TestNewValidates(t *testing.T) {
	s := geofence.NewSession(newTestContext(t))
	zones := catalog.Fallback()
	cache, err := zone.EncryptCentroids(s.Enc, zones)
	require.NoError(t, err)
	ix, err := index.Build(s, zones, index.Config{})
	require.NoError(t, err)

	_, err = New(s, append(zones, zones...), cache, ix, DefaultConfig())
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Thresholds.Buffer = cfg.Thresholds.Primary / 2
	_, err = New(s, zones, cache, ix, cfg)
	assert.Error(t, err)
}

func TestPolicyNames(t *testing.T) {
	for _, p := range []Policy{LegacyAsymmetric, BufferEverywhere, NoBuffer} {
		got, err := ParsePolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, LegacyAsymmetric, p)

	_, err = ParsePolicy("sometimes")
	assert.Error(t, err)
	assert.Equal(t, "Policy(7)", Policy(7).String())
}

func TestThresholds(t *testing.T) {
	th := DefaultThresholds
	require.NoError(t, th.Validate())

	assert.True(t, th.primary(2e-8))
	assert.False(t, th.primary(1e-8))
	assert.True(t, th.borderline(-1e-8))
	assert.False(t, th.borderline(-3e-8))
	assert.False(t, th.borderline(2e-8))
	assert.True(t, th.buffer(-5e-8))
	assert.False(t, th.buffer(-2e-7))

	th.Primary = 0
	assert.Error(t, th.Validate())
}

func TestLocate(t *testing.T) {
	d := newDetector(t, catalog.Fallback(), index.Config{}, DefaultConfig())

	band, rounds, err := d.Locate(zone.Point{Lat: 38.6545, Lon: -8.9})
	require.NoError(t, err)
	assert.Equal(t, 1, band)
	assert.LessOrEqual(t, rounds, 8)

	band, _, err = d.Locate(zone.Point{Lat: 36.0, Lon: -8.9})
	require.NoError(t, err)
	assert.Equal(t, -1, band)
}
