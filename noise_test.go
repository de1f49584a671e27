// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package geofence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRate(t *testing.T) {
	const threshold = 0.00000036
	assert.Equal(t, NoiseExcellent, Rate(1e-14, threshold))
	assert.Equal(t, NoiseGood, Rate(1e-11, threshold))
	assert.Equal(t, NoiseWarning, Rate(1e-8, threshold))
}

func TestMeasureNoise(t *testing.T) {
	ctx := newTestContext(t)

	samples := []NoiseSample{
		{38.65676812, -8.89353369, 38.65676800, -8.89353350},
		{38.65615898, -8.89664495, 38.65615898, -8.89664495},
		{38.82052119, -9.18781516, 38.82, -9.18},
	}
	report, err := MeasureNoise(ctx, samples, 0.00000036)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Samples)
	assert.InDelta(t, 45, report.LogScaleIn, 1e-9)
	assert.InDelta(t, 45, report.LogScaleOut, 0.5)
	assert.Less(t, report.Max, 1e-8)
	assert.LessOrEqual(t, report.Mean, report.Max)

	_, err = MeasureNoise(ctx, nil, 0.00000036)
	assert.Error(t, err)
}
