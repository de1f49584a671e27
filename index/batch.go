// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package index

import (
	"fmt"

	"github.com/luxfi/geofence"
	"github.com/luxfi/geofence/zone"
)

// DefaultWidth is the number of zones packed per batch
const DefaultWidth = 8

// Batch packs the first-geofence centroids of up to Width zones, one
// ciphertext per axis. Slots past Occupancy hold zero and carry no zone.
type Batch struct {
	Zones []int
	Codes []string
	Lat   *geofence.Ciphertext
	Lon   *geofence.Ciphertext
	width int
}

// Occupancy returns the number of real zones in the batch
func (b *Batch) Occupancy() int {
	return len(b.Zones)
}

// Width returns the number of packed slots
func (b *Batch) Width() int {
	return b.width
}

// Pack chunks indices into groups of width and encrypts each group's
// first-geofence centroids. Short groups are zero-padded.
func Pack(enc *geofence.Encryptor, zones []zone.Zone, indices []int, width int) ([]Batch, error) {
	if width < 1 {
		return nil, fmt.Errorf("index: batch width %d out of range", width)
	}
	var batches []Batch
	for start := 0; start < len(indices); start += width {
		end := min(start+width, len(indices))
		group := indices[start:end]

		lats := make([]float64, width)
		lons := make([]float64, width)
		codes := make([]string, len(group))
		for slot, i := range group {
			z := &zones[i]
			if len(z.Geofences) == 0 {
				return nil, fmt.Errorf("index: zone %s has no geofence", z.Code)
			}
			c := z.Geofences[0].Centroid()
			lats[slot], lons[slot] = c.Lat, c.Lon
			codes[slot] = z.Code
		}

		lat, err := enc.EncryptVector(lats)
		if err != nil {
			return nil, fmt.Errorf("pack latitudes: %w", err)
		}
		lon, err := enc.EncryptVector(lons)
		if err != nil {
			return nil, fmt.Errorf("pack longitudes: %w", err)
		}
		batches = append(batches, Batch{
			Zones: append([]int(nil), group...),
			Codes: codes,
			Lat:   lat,
			Lon:   lon,
			width: width,
		})
	}
	return batches, nil
}
