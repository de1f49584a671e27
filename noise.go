// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package geofence

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

// Metres per degree near 38.7N, used to express errors as ground distance.
const (
	MetresPerDegreeLat = 111320.0
	MetresPerDegreeLon = 86600.0
)

// NoiseSample pairs a query coordinate with a centroid
type NoiseSample struct {
	Lat, Lon    float64
	CentroidLat float64
	CentroidLon float64
}

// SquaredDistance is the plaintext reference distance in squared degrees
func (s NoiseSample) SquaredDistance() float64 {
	dLat := s.Lat - s.CentroidLat
	dLon := s.Lon - s.CentroidLon
	return dLat*dLat + dLon*dLon
}

// NoiseRating grades the distance error against a decision threshold
type NoiseRating string

const (
	NoiseExcellent NoiseRating = "excellent"
	NoiseGood      NoiseRating = "good"
	NoiseWarning   NoiseRating = "warning"
)

// NoiseReport summarises the absolute error of encrypted squared distances
type NoiseReport struct {
	Samples     int
	Mean        float64
	Median      float64
	StdDev      float64
	Max         float64
	MeanMetres  float64
	LogScaleIn  float64
	LogScaleOut float64
	Threshold   float64
	Rating      NoiseRating
}

// Rate grades an error against threshold: three orders of magnitude of
// headroom is good, six is excellent.
func Rate(err, threshold float64) NoiseRating {
	switch {
	case err < threshold*1e-6:
		return NoiseExcellent
	case err < threshold*1e-3:
		return NoiseGood
	default:
		return NoiseWarning
	}
}

// MeasureNoise runs the encrypted distance chain on every sample and compares
// the decrypted result with the plaintext distance.
func MeasureNoise(ctx *Context, samples []NoiseSample, threshold float64) (NoiseReport, error) {
	if len(samples) == 0 {
		return NoiseReport{}, fmt.Errorf("measure noise: no samples")
	}
	enc := NewEncryptor(ctx)
	dec := NewDecryptor(ctx)
	eval := NewEvaluator(ctx)

	report := NoiseReport{
		Samples:    len(samples),
		LogScaleIn: ctx.params.LogScale(),
		Threshold:  threshold,
	}
	errs := make([]float64, 0, len(samples))
	metres := make([]float64, 0, len(samples))
	for i, s := range samples {
		cts := make([]*Ciphertext, 4)
		for j, x := range []float64{s.Lat, s.Lon, s.CentroidLat, s.CentroidLon} {
			ct, err := enc.EncryptScalar(x)
			if err != nil {
				return report, fmt.Errorf("sample %d: %w", i, err)
			}
			cts[j] = ct
		}
		d2, err := eval.SquaredDistance(cts[0], cts[1], cts[2], cts[3])
		if err != nil {
			return report, fmt.Errorf("sample %d: %w", i, err)
		}
		report.LogScaleOut = d2.LogScale()
		got, err := dec.DecryptScalar(d2)
		if err != nil {
			return report, fmt.Errorf("sample %d: %w", i, err)
		}
		e := math.Abs(got - s.SquaredDistance())
		errs = append(errs, e)
		metres = append(metres, math.Sqrt(e)*math.Sqrt(MetresPerDegreeLat*MetresPerDegreeLon))
	}

	report.Mean, _ = stats.Mean(errs)
	report.Median, _ = stats.Median(errs)
	report.StdDev, _ = stats.StandardDeviation(errs)
	report.Max, _ = stats.Max(errs)
	report.MeanMetres, _ = stats.Mean(metres)
	report.Rating = Rate(report.Max, threshold)
	return report, nil
}
