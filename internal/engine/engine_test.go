package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/geofence/internal/config"
	"github.com/luxfi/geofence/zone"
)

func TestLoadZones(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "catalog", "testdata", "tolls.json"))
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tolls.json"), data, 0o644))

	cfg := config.Default()
	cfg.Catalog.Location = dir
	assert.Len(t, LoadZones(context.Background(), cfg), 7)

	cfg.Catalog.Name = "absent.json"
	zones := LoadZones(context.Background(), cfg)
	require.Len(t, zones, 1)
	assert.Equal(t, "1212", zones[0].Code)

	cfg.Catalog.Source = "memory"
	assert.Len(t, LoadZones(context.Background(), cfg), 1)
}

func TestLoad(t *testing.T) {
	cfg := config.Default()
	cfg.Catalog.Source = "memory"

	d, err := Load(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 15, d.Index().Bands())

	report, err := d.Detect(context.Background(), zone.Point{Lat: 38.65676812, Lon: -8.89353369})
	require.NoError(t, err)
	assert.Equal(t, []string{"1212"}, report.Matches())
}
