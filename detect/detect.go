// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package detect decides toll-zone membership of an encrypted coordinate.
//
// A query is located in a latitude band, then every zone of the band is
// tested by comparing the encrypted squared distance to each geofence
// centroid with a threshold. Single-geofence zones are tested in packed
// batches; multi-geofence zones one geofence at a time, first match wins.
package detect

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/luxfi/geofence"
	"github.com/luxfi/geofence/index"
	"github.com/luxfi/geofence/internal/logger"
	"github.com/luxfi/geofence/internal/metrics"
	"github.com/luxfi/geofence/zone"
)

// NoZonesEvaluated is the report message for a latitude outside every band
const NoZonesEvaluated = "no zones evaluated"

// Config parameterises a Detector
type Config struct {
	Policy     Policy
	Thresholds Thresholds
	// Parallelism bounds concurrent batch and zone checks within one query.
	// Values below 2 run them sequentially.
	Parallelism int
}

// DefaultConfig returns the legacy policy with default thresholds
func DefaultConfig() Config {
	return Config{Policy: LegacyAsymmetric, Thresholds: DefaultThresholds, Parallelism: 1}
}

// Result is the decision for one zone
type Result struct {
	Inside bool   `json:"isInside"`
	Code   string `json:"tollCode"`
	// Geofence is the matching geofence, 0 for batched checks and -1 when
	// a single-path check found no match.
	Geofence int    `json:"geofenceIndex"`
	Message  string `json:"message"`
	Zone     int    `json:"-"`
	Buffered bool   `json:"buffered,omitempty"`
}

// Timings are per-stage durations in milliseconds
type Timings struct {
	Locate    float64 `json:"binarySearchMs"`
	Precision float64 `json:"precisionMs"`
	Total     float64 `json:"totalMs"`
}

// Report is the outcome of one query
type Report struct {
	Band       int      `json:"band"`
	Zones      int      `json:"zones"`
	Candidates int      `json:"candidates"`
	Results    []Result `json:"results"`
	Message    string   `json:"message,omitempty"`
	Rounds     int64    `json:"decryptRounds"`
	Timings    Timings  `json:"timings"`
}

// Filtered returns the fraction of zones pruned by the band search
func (r *Report) Filtered() float64 {
	if r.Zones == 0 {
		return 0
	}
	return float64(r.Zones-r.Candidates) / float64(r.Zones)
}

// Matches returns the codes of the zones reported inside, in result order
func (r *Report) Matches() []string {
	var codes []string
	for _, res := range r.Results {
		if res.Inside {
			codes = append(codes, res.Code)
		}
	}
	return codes
}

// Query is an encrypted coordinate: scalars for the single path and
// replicated vectors for batches.
type Query struct {
	Lat, Lon       *geofence.Ciphertext
	LatVec, LonVec *geofence.Ciphertext
}

// Detector answers membership queries against a built index. Build-time
// structures are shared read-only; the session is private, so use
// ShallowCopy for each goroutine.
type Detector struct {
	session *geofence.Session
	zones   []zone.Zone
	cache   *zone.Cache
	index   *index.Index
	cfg     Config
	rounds  atomic.Int64
}

// New creates a detector. zones, cache and ix must come from the same build.
func New(s *geofence.Session, zones []zone.Zone, cache *zone.Cache, ix *index.Index, cfg Config) (*Detector, error) {
	if cache.Len() != len(zones) {
		return nil, fmt.Errorf("detect: cache holds %d zones, catalog %d", cache.Len(), len(zones))
	}
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	return &Detector{session: s, zones: zones, cache: cache, index: ix, cfg: cfg}, nil
}

// ShallowCopy returns a detector with its own session over the same index
func (d *Detector) ShallowCopy() *Detector {
	return &Detector{
		session: d.session.ShallowCopy(),
		zones:   d.zones,
		cache:   d.cache,
		index:   d.index,
		cfg:     d.cfg,
	}
}

// Zones returns the catalog the detector was built on
func (d *Detector) Zones() []zone.Zone {
	return d.zones
}

// Index returns the spatial index
func (d *Detector) Index() *index.Index {
	return d.index
}

// Config returns the detector configuration
func (d *Detector) Config() Config {
	return d.cfg
}

func (d *Detector) decrypted(stage string, n int) {
	d.rounds.Add(int64(n))
	metrics.DecryptRoundsTotal.WithLabelValues(stage).Add(float64(n))
}

// EncryptQuery encrypts p for both evaluation paths
func (d *Detector) EncryptQuery(p zone.Point) (*Query, error) {
	return encryptQuery(d.session.Enc, p, d.index.Width())
}

func encryptQuery(enc *geofence.Encryptor, p zone.Point, width int) (*Query, error) {
	q := &Query{}
	var err error
	if q.Lat, err = enc.EncryptScalar(p.Lat); err != nil {
		return nil, fmt.Errorf("encrypt query: %w", err)
	}
	if q.Lon, err = enc.EncryptScalar(p.Lon); err != nil {
		return nil, fmt.Errorf("encrypt query: %w", err)
	}
	lats := make([]float64, width)
	lons := make([]float64, width)
	for i := range lats {
		lats[i], lons[i] = p.Lat, p.Lon
	}
	if q.LatVec, err = enc.EncryptVector(lats); err != nil {
		return nil, fmt.Errorf("encrypt query: %w", err)
	}
	if q.LonVec, err = enc.EncryptVector(lons); err != nil {
		return nil, fmt.Errorf("encrypt query: %w", err)
	}
	return q, nil
}

// Detect encrypts p and evaluates it against its band.
func (d *Detector) Detect(ctx context.Context, p zone.Point) (*Report, error) {
	q, err := d.EncryptQuery(p)
	if err != nil {
		return nil, err
	}
	return d.DetectQuery(ctx, q)
}

// Locate encrypts the latitude of p and returns its band (-1 when outside
// every band) and the decryptions spent, without evaluating any zone.
func (d *Detector) Locate(p zone.Point) (band, rounds int, err error) {
	lat, err := d.session.Enc.EncryptScalar(p.Lat)
	if err != nil {
		return -1, 0, fmt.Errorf("encrypt query: %w", err)
	}
	band, rounds, err = d.index.Locate(d.session, lat)
	d.decrypted(metrics.StageLocate, rounds)
	return band, rounds, err
}

// DetectQuery evaluates an encrypted query. A latitude outside every band
// yields an empty report, not an error.
func (d *Detector) DetectQuery(ctx context.Context, q *Query) (*Report, error) {
	total := geofence.NewTimer("total")
	d.rounds.Store(0)
	metrics.QueriesTotal.Inc()

	report := &Report{Zones: len(d.zones), Band: -1}

	locate := geofence.NewTimer(metrics.StageLocate)
	band, rounds, err := d.index.Locate(d.session, q.Lat)
	d.decrypted(metrics.StageLocate, rounds)
	if err != nil {
		return nil, fmt.Errorf("locate band: %w", err)
	}
	report.Timings.Locate = locate.Milliseconds()
	metrics.QueryDurationMs.WithLabelValues(metrics.StageLocate).Observe(report.Timings.Locate)

	members := d.index.Zones(band)
	report.Band = band
	report.Candidates = len(members)
	if len(members) == 0 {
		metrics.EmptyBandsTotal.Inc()
		report.Message = NoZonesEvaluated
		report.Rounds = d.rounds.Load()
		report.Timings.Total = total.Milliseconds()
		return report, nil
	}

	precision := geofence.NewTimer("precision")
	results, err := d.evaluate(ctx, q, band)
	if err != nil {
		return nil, err
	}
	report.Timings.Precision = precision.Milliseconds()
	metrics.QueryDurationMs.WithLabelValues("precision").Observe(report.Timings.Precision)

	// Band order, so the outcome does not depend on scheduling.
	for _, zi := range members {
		if res, ok := results[zi]; ok {
			report.Results = append(report.Results, res)
		}
	}
	report.Rounds = d.rounds.Load()
	report.Timings.Total = total.Milliseconds()
	metrics.QueryDurationMs.WithLabelValues("total").Observe(report.Timings.Total)

	logger.L().Debug("query_done",
		"band", band,
		"candidates", report.Candidates,
		"matches", len(report.Matches()),
		"decrypt_rounds", report.Rounds,
		"total_ms", report.Timings.Total,
	)
	return report, nil
}

func (d *Detector) evaluate(ctx context.Context, q *Query, band int) (map[int]Result, error) {
	batches := d.index.Batches(band)
	sequential := d.index.Sequential(band)
	out := make([][]Result, len(batches)+len(sequential))

	task := func(ctx context.Context, w *Detector, i int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i < len(batches) {
			res, err := w.CheckBatch(q, &batches[i])
			if err != nil {
				return fmt.Errorf("batch %d: %w", i, err)
			}
			out[i] = res
			return nil
		}
		zi := sequential[i-len(batches)]
		res, err := w.CheckZone(q, zi)
		if err != nil {
			return fmt.Errorf("zone %s: %w", d.zones[zi].Code, err)
		}
		out[i] = []Result{res}
		return nil
	}

	if d.cfg.Parallelism < 2 || len(out) < 2 {
		for i := range out {
			if err := task(ctx, d, i); err != nil {
				return nil, err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(d.cfg.Parallelism)
		for i := range out {
			w := d.ShallowCopy()
			g.Go(func() error {
				defer func() { d.rounds.Add(w.rounds.Load()) }()
				return task(gctx, w, i)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	results := make(map[int]Result)
	for _, rs := range out {
		for _, r := range rs {
			results[r.Zone] = r
		}
	}
	return results, nil
}
