// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package detect

import (
	"fmt"

	"github.com/luxfi/geofence"
	"github.com/luxfi/geofence/index"
	"github.com/luxfi/geofence/internal/metrics"
)

// margin decrypts threshold - d2
func (d *Detector) margin(d2 *geofence.Ciphertext, threshold float64, stage string) ([]float64, error) {
	s := d.session
	m, err := s.Eval.Margin(s.Enc, d2, threshold)
	if err != nil {
		return nil, err
	}
	values, err := s.Dec.DecryptVector(m)
	if err != nil {
		return nil, err
	}
	d.decrypted(stage, 1)
	return values, nil
}

// CheckZone tests q against every geofence of zone zi in order and stops at
// the first match.
func (d *Detector) CheckZone(q *Query, zi int) (Result, error) {
	z := &d.zones[zi]
	res := Result{Zone: zi, Code: z.Code, Geofence: -1}
	centroids := d.cache.Centroids(zi)
	t := d.cfg.Thresholds

	checked := 0
	for g, c := range centroids {
		checked++
		d2, err := d.session.Eval.SquaredDistance(q.Lat, q.Lon, c.Lat, c.Lon)
		if err != nil {
			return res, fmt.Errorf("geofence %d: %w", g, err)
		}
		m, err := d.margin(d2, t.Primary, metrics.StagePrimary)
		if err != nil {
			return res, fmt.Errorf("geofence %d: %w", g, err)
		}
		inside := t.primary(m[0])
		if !inside && d.cfg.Policy.single() && t.borderline(m[0]) {
			b, err := d.margin(d2, t.Buffer, metrics.StageBuffer)
			if err != nil {
				return res, fmt.Errorf("geofence %d buffer: %w", g, err)
			}
			inside = t.buffer(b[0])
			res.Buffered = inside
		}
		if inside {
			res.Inside = true
			res.Geofence = g
			res.Message = fmt.Sprintf("%s: inside geofence %d (checked %d)", z.Label(), g+1, checked)
			metrics.MatchesTotal.WithLabelValues("single").Inc()
			if res.Buffered {
				metrics.BufferAcceptsTotal.Inc()
			}
			return res, nil
		}
	}
	res.Message = fmt.Sprintf("%s: outside all geofences (checked %d)", z.Label(), checked)
	return res, nil
}

// CheckBatch tests q against every zone of b in one operation chain.
// Only the first Occupancy slots are reported; padding never is.
func (d *Detector) CheckBatch(q *Query, b *index.Batch) ([]Result, error) {
	d2, err := d.session.Eval.SquaredDistance(q.LatVec, q.LonVec, b.Lat, b.Lon)
	if err != nil {
		return nil, err
	}
	t := d.cfg.Thresholds
	m, err := d.margin(d2, t.Primary, metrics.StageBatch)
	if err != nil {
		return nil, err
	}

	n := b.Occupancy()
	inside := make([]bool, n)
	buffered := make([]bool, n)
	retry := false
	for i := 0; i < n; i++ {
		inside[i] = t.primary(m[i])
		retry = retry || t.borderline(m[i])
	}
	if retry && d.cfg.Policy.batched() {
		bm, err := d.margin(d2, t.Buffer, metrics.StageBuffer)
		if err != nil {
			return nil, fmt.Errorf("buffer: %w", err)
		}
		for i := 0; i < n; i++ {
			if t.borderline(m[i]) && t.buffer(bm[i]) {
				inside[i], buffered[i] = true, true
				metrics.BufferAcceptsTotal.Inc()
			}
		}
	}

	results := make([]Result, n)
	for i := 0; i < n; i++ {
		z := &d.zones[b.Zones[i]]
		results[i] = Result{
			Inside:   inside[i],
			Code:     b.Codes[i],
			Geofence: 0,
			Zone:     b.Zones[i],
			Buffered: buffered[i],
		}
		if inside[i] {
			results[i].Message = z.Label() + ": inside geofence (batched)"
			metrics.MatchesTotal.WithLabelValues("batch").Inc()
		} else {
			results[i].Message = z.Label() + ": outside geofence (batched)"
		}
	}
	return results, nil
}
