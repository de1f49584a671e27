// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package index partitions zones into latitude bands and locates the band of
// an encrypted query latitude by binary search.
//
// Band i covers [boundary[i], boundary[i+1]). Zone assignment and query
// search use the same primitive: the encrypted differences lat-boundary[i]
// and boundary[i+1]-lat are decrypted and tested for sign. Longitude is not
// indexed.
package index

import (
	"errors"
	"fmt"
	"time"

	"github.com/luxfi/geofence"
	"github.com/luxfi/geofence/internal/logger"
	"github.com/luxfi/geofence/internal/metrics"
	"github.com/luxfi/geofence/zone"
)

// ErrBoundaries is returned for fewer than two or non-increasing boundaries.
var ErrBoundaries = errors.New("index: boundaries must be strictly increasing")

// PortugalBoundaries split mainland Portugal's toll network into 15 bands.
var PortugalBoundaries = []float64{
	37.0529959999999952,
	38.1679199999999967,
	38.6606671200000023,
	38.7783333300000013,
	38.9366590000000025,
	39.2592164299999984,
	39.4927777800000026,
	39.6586739999999985,
	39.9023405900000027,
	40.1986227400000008,
	40.5093333300000014,
	40.7078160000000033,
	40.9788888899999982,
	41.2311111100000013,
	41.5397497200000017,
	41.9787167000000033,
}

// Config parameterises Build
type Config struct {
	// Boundaries are the ascending band edges; nil selects PortugalBoundaries.
	Boundaries []float64
	// Width is the batch width; 0 selects DefaultWidth.
	Width int
}

// Index is the band structure over a zone list. It is immutable once built
// and safe to share between goroutines.
type Index struct {
	bounds     []float64
	boundaries []*geofence.Ciphertext
	bands      [][]int
	batches    [][]Batch
	sequential [][]int
	width      int
}

func validate(bounds []float64) error {
	if len(bounds) < 2 {
		return fmt.Errorf("%w: need at least 2, have %d", ErrBoundaries, len(bounds))
	}
	for i := 1; i < len(bounds); i++ {
		if !(bounds[i] > bounds[i-1]) {
			return fmt.Errorf("%w: boundary %d (%v) <= boundary %d (%v)", ErrBoundaries, i, bounds[i], i-1, bounds[i-1])
		}
	}
	return nil
}

// Build encrypts the boundaries, assigns every zone to a band (writing
// zones[i].Band) and packs each band's single-geofence zones into batches.
// Zones whose reference latitude falls in no band join the last band.
func Build(s *geofence.Session, zones []zone.Zone, cfg Config) (*Index, error) {
	start := time.Now()
	bounds := cfg.Boundaries
	if bounds == nil {
		bounds = PortugalBoundaries
	}
	if err := validate(bounds); err != nil {
		return nil, err
	}
	width := cfg.Width
	if width == 0 {
		width = DefaultWidth
	}
	if width < 1 || width > s.Context().Parameters().Slots() {
		return nil, fmt.Errorf("index: batch width %d out of range", width)
	}

	ix := &Index{
		bounds:     append([]float64(nil), bounds...),
		boundaries: make([]*geofence.Ciphertext, len(bounds)),
		width:      width,
	}
	for i, b := range bounds {
		ct, err := s.Enc.EncryptScalar(b)
		if err != nil {
			return nil, fmt.Errorf("encrypt boundary %d: %w", i, err)
		}
		ix.boundaries[i] = ct
	}

	nb := ix.Bands()
	ix.bands = make([][]int, nb)
	rounds := 0
	for i := range zones {
		lat, err := s.Enc.EncryptScalar(zones[i].Reference.Lat)
		if err != nil {
			return nil, fmt.Errorf("zone %s: %w", zones[i].Code, err)
		}
		band := nb - 1
		for b := 0; b < nb; b++ {
			in, err := ix.within(s, lat, b)
			rounds += 2
			if err != nil {
				return nil, fmt.Errorf("zone %s band %d: %w", zones[i].Code, b, err)
			}
			if in == 0 {
				band = b
				break
			}
		}
		zones[i].Band = band
		ix.bands[band] = append(ix.bands[band], i)
	}

	ix.batches = make([][]Batch, nb)
	ix.sequential = make([][]int, nb)
	for b, members := range ix.bands {
		var packable []int
		for _, i := range members {
			if zones[i].Batchable() {
				packable = append(packable, i)
			} else {
				ix.sequential[b] = append(ix.sequential[b], i)
			}
		}
		batches, err := Pack(s.Enc, zones, packable, width)
		if err != nil {
			return nil, fmt.Errorf("band %d: %w", b, err)
		}
		ix.batches[b] = batches
	}

	elapsed := time.Since(start)
	metrics.DecryptRoundsTotal.WithLabelValues(metrics.StageBuild).Add(float64(rounds))
	metrics.IndexZones.Set(float64(len(zones)))
	metrics.IndexBuildDurationMs.Observe(float64(elapsed.Milliseconds()))
	logger.L().Info("index_built",
		"zones", len(zones),
		"bands", nb,
		"width", width,
		"decrypt_rounds", rounds,
		"duration_ms", elapsed.Milliseconds(),
	)
	return ix, nil
}

// within classifies lat against band b: 0 inside, -1 below, +1 at or above
// the upper edge.
func (ix *Index) within(s *geofence.Session, lat *geofence.Ciphertext, b int) (int, error) {
	low, err := s.Sign(lat, ix.boundaries[b])
	if err != nil {
		return 0, err
	}
	high, err := s.Sign(ix.boundaries[b+1], lat)
	if err != nil {
		return 0, err
	}
	switch {
	case low < 0:
		return -1, nil
	case high > 0:
		return 0, nil
	default:
		return 1, nil
	}
}

// Locate finds the band containing the encrypted latitude by binary search.
// It returns the band (or -1 when the latitude lies outside every band) and
// the number of decryptions spent.
func (ix *Index) Locate(s *geofence.Session, lat *geofence.Ciphertext) (band, rounds int, err error) {
	left, right := 0, ix.Bands()-1
	for left <= right {
		mid := (left + right) / 2
		pos, err := ix.within(s, lat, mid)
		rounds += 2
		if err != nil {
			return -1, rounds, err
		}
		switch pos {
		case 0:
			return mid, rounds, nil
		case -1:
			right = mid - 1
		default:
			left = mid + 1
		}
	}
	return -1, rounds, nil
}

// Bands returns the number of bands
func (ix *Index) Bands() int {
	return len(ix.bounds) - 1
}

// Width returns the batch width
func (ix *Index) Width() int {
	return ix.width
}

// Bounds returns the plaintext edges of band b
func (ix *Index) Bounds(b int) (low, high float64) {
	return ix.bounds[b], ix.bounds[b+1]
}

// Zones returns the indices of the zones assigned to band b, in catalog order.
// Out-of-range bands have no zones.
func (ix *Index) Zones(b int) []int {
	if b < 0 || b >= len(ix.bands) {
		return nil
	}
	return ix.bands[b]
}

// Batches returns the packed single-geofence zones of band b
func (ix *Index) Batches(b int) []Batch {
	if b < 0 || b >= len(ix.batches) {
		return nil
	}
	return ix.batches[b]
}

// Sequential returns the multi-geofence zones of band b, which are checked
// one geofence at a time.
func (ix *Index) Sequential(b int) []int {
	if b < 0 || b >= len(ix.sequential) {
		return nil
	}
	return ix.sequential[b]
}

// BandSummary describes one band
type BandSummary struct {
	Band       int     `json:"band"`
	Low        float64 `json:"low"`
	High       float64 `json:"high"`
	Zones      int     `json:"zones"`
	Batches    int     `json:"batches"`
	Sequential int     `json:"sequential"`
}

// Summary describes every band
func (ix *Index) Summary() []BandSummary {
	out := make([]BandSummary, ix.Bands())
	for b := range out {
		low, high := ix.Bounds(b)
		out[b] = BandSummary{
			Band:       b,
			Low:        low,
			High:       high,
			Zones:      len(ix.bands[b]),
			Batches:    len(ix.batches[b]),
			Sequential: len(ix.sequential[b]),
		}
	}
	return out
}
