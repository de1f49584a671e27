// Package engine assembles a ready Detector: keys, catalog, centroid cache
// and band index, built once before any query runs.
package engine

import (
	"context"
	"fmt"

	"github.com/luxfi/geofence"
	"github.com/luxfi/geofence/detect"
	"github.com/luxfi/geofence/index"
	"github.com/luxfi/geofence/internal/catalog"
	"github.com/luxfi/geofence/internal/config"
	"github.com/luxfi/geofence/internal/logger"
	"github.com/luxfi/geofence/internal/storage"
	"github.com/luxfi/geofence/zone"
)

// NewDetector encrypts the centroids of zones, builds the index and wraps
// both in a detector. zones is retained and its Band fields are written.
func NewDetector(c *geofence.Context, zones []zone.Zone, icfg index.Config, dcfg detect.Config) (*detect.Detector, error) {
	s := geofence.NewSession(c)

	t := geofence.NewTimer("cache")
	cache, err := zone.EncryptCentroids(s.Enc, zones)
	if err != nil {
		return nil, fmt.Errorf("encrypt centroids: %w", err)
	}
	cacheMs := t.Milliseconds()

	ix, err := index.Build(s, zones, icfg)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}

	d, err := detect.New(s, zones, cache, ix, dcfg)
	if err != nil {
		return nil, err
	}
	logger.L().Info("detector_ready",
		"zones", len(zones),
		"bands", ix.Bands(),
		"policy", dcfg.Policy.String(),
		"cache_ms", cacheMs,
	)
	return d, nil
}

// LoadZones opens the configured catalog source. Any failure falls back to
// the built-in catalog.
func LoadZones(ctx context.Context, cfg *config.Config) []zone.Zone {
	fallback := catalog.Fallback()
	store, err := storage.Open(ctx, cfg.Catalog.Source, cfg.Catalog.Location)
	if err != nil {
		logger.L().Warn("catalog_fallback", "source", cfg.Catalog.Source, "error", err.Error())
		return fallback
	}
	defer store.Close()
	return catalog.LoadOrFallback(ctx, store, cfg.Catalog.Name, fallback)
}

// Load generates keys for the configured parameter set and builds a
// detector over the configured catalog.
func Load(ctx context.Context, cfg *config.Config) (*detect.Detector, error) {
	params, err := cfg.Parameters()
	if err != nil {
		return nil, err
	}
	dcfg, err := cfg.DetectConfig()
	if err != nil {
		return nil, err
	}

	t := geofence.NewTimer("keys")
	c := geofence.NewContext(params)
	logger.L().Info("keys_generated",
		"params", cfg.Params,
		"log_n", params.N(),
		"log_qp", params.LogQP(),
		"ms", t.Milliseconds(),
	)

	return NewDetector(c, LoadZones(ctx, cfg), cfg.IndexConfig(), dcfg)
}
