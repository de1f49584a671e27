package catalog

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/geofence/internal/storage"
	"github.com/luxfi/geofence/zone"
)

func TestParseSample(t *testing.T) {
	data, err := os.ReadFile("testdata/tolls.json")
	require.NoError(t, err)

	zones, sum, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, Summary{Records: 12, Accepted: 7, Rejected: 5, Missing: 1}, sum)

	codes := make([]string, len(zones))
	for i, z := range zones {
		codes[i] = z.Code
	}
	assert.Equal(t, []string{"1212", "0901", "0102", "1601", "0125", "0104", "0201"}, codes)

	pinhal := zones[0]
	assert.Equal(t, "Pinhal Novo 2", pinhal.Name)
	assert.Equal(t, "A12", pinhal.Highway)
	assert.Equal(t, zone.Closed, pinhal.Type)
	assert.Equal(t, zone.Point{Lat: 38.65451852, Lon: -8.897964775}, pinhal.Reference)
	require.Len(t, pinhal.Geofences, 2)
	assert.Len(t, pinhal.Geofences[0].Points, 8)
	assert.Len(t, pinhal.Geofences[1].Points, 6)
	assert.Equal(t, Fallback()[0].Geofences, pinhal.Geofences)

	carregado := zones[6]
	assert.Empty(t, carregado.Highway)
	assert.Equal(t, 39.015, carregado.Reference.Lat)
}

func TestParseRecords(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		codes   []string
		missing int
	}{
		{
			name:  "Minimal",
			doc:   `{"tollsList":[{"code":"1","geofences":[{"geofencePoints":[{"latitude":38.1,"longitude":-8.1}]}]}]}`,
			codes: []string{"1"},
			// name, highway, type, latitude, longitude
			missing: 5,
		},
		{
			name:  "ReservedPrefixes",
			doc:   `{"tollsList":[{"code":"5001","geofences":[{"geofencePoints":[{"latitude":1,"longitude":1}]}]},{"code":"9990","geofences":[{"geofencePoints":[{"latitude":1,"longitude":1}]}]},{"code":"1500","geofences":[{"geofencePoints":[{"latitude":1,"longitude":1}]}]}]}`,
			codes: []string{"1500"},
		},
		{
			name:  "ZeroPointsDropped",
			doc:   `{"tollsList":[{"code":"2","geofences":[{"geofencePoints":[{"latitude":0,"longitude":0}]},{"geofencePoints":[{"latitude":0,"longitude":0},{"latitude":38,"longitude":-8}]}]}]}`,
			codes: []string{"2"},
		},
		{
			name:  "MalformedRecordSkipped",
			doc:   `{"tollsList":[42,{"code":"3","geofences":[{"geofencePoints":[{"latitude":"38.5","longitude":"-8.5"}]}]}]}`,
			codes: []string{"3"},
		},
		{
			name:  "NumericCode",
			doc:   `{"tollsList":[{"code":1234,"geofences":[{"geofencePoints":[{"latitude":1,"longitude":1}]}]}]}`,
			codes: []string{"1234"},
		},
		{
			name: "Empty",
			doc:  `{"tollsList":[]}`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			zones, sum, err := Parse([]byte(tc.doc))
			require.NoError(t, err)
			var codes []string
			for _, z := range zones {
				codes = append(codes, z.Code)
			}
			assert.Equal(t, tc.codes, codes)
			if tc.missing > 0 {
				assert.Equal(t, tc.missing, sum.Missing)
			}
		})
	}

	zones, _, err := Parse([]byte(`{"tollsList":[{"code":"2","geofences":[{"geofencePoints":[{"latitude":0,"longitude":0},{"latitude":38,"longitude":-8}]}]}]}`))
	require.NoError(t, err)
	require.Len(t, zones[0].Geofences, 1)
	assert.Equal(t, []zone.Point{{Lat: 38, Lon: -8}}, zones[0].Geofences[0].Points)
}

func TestParseBrokenRecord(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		codes []string
		sum   Summary
	}{
		{
			name:  "TrailingComma",
			doc:   `{"tollsList":[{"code":"1","geofences":[{"geofencePoints":[{"latitude":38.1,"longitude":-8.1}]}]},{"code":"2","latitude":38.8,}]}`,
			codes: []string{"1"},
			sum:   Summary{Records: 2, Accepted: 1, Rejected: 1, Missing: 5},
		},
		{
			name:  "BrokenFirst",
			doc:   `{"tollsList":[{"code":"2",,"name":"x"}, {"code":"3","name":"A {b}","geofences":[{"geofencePoints":[{"latitude":38.5,"longitude":-8.5}]}]}]}`,
			codes: []string{"3"},
			sum:   Summary{Records: 2, Accepted: 1, Rejected: 1, Missing: 4},
		},
		{
			name:  "Truncated",
			doc:   `{"tollsList":[{"code":"4","geofences":[{"geofencePoints":[{"latitude":38.5,"longitude":-8.5}]}]},{"code":"5","geof`,
			codes: []string{"4"},
			sum:   Summary{Records: 2, Accepted: 1, Rejected: 1, Missing: 5},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			zones, sum, err := Parse([]byte(tc.doc))
			require.NoError(t, err)
			var codes []string
			for _, z := range zones {
				codes = append(codes, z.Code)
			}
			assert.Equal(t, tc.codes, codes)
			assert.Equal(t, tc.sum, sum)
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, doc := range []string{`not json`, `{"zones":[]}`, `[]`, `{"tollsList":5,}`, `{"zones":[1,}`} {
		_, _, err := Parse([]byte(doc))
		assert.ErrorIs(t, err, ErrCatalog, doc)
	}
}

func TestLoadOrFallback(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage(0)

	t.Run("Missing", func(t *testing.T) {
		_, err := Load(ctx, store, "tolls.json")
		assert.ErrorIs(t, err, ErrCatalog)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		zones := LoadOrFallback(ctx, store, "tolls.json", Fallback())
		require.Len(t, zones, 1)
		assert.Equal(t, "1212", zones[0].Code)
	})

	t.Run("NoValidRecords", func(t *testing.T) {
		_, err := store.Store(ctx, "empty.json", []byte(`{"tollsList":[{"code":"","geofences":[]}]}`))
		require.NoError(t, err)

		zones, err := Load(ctx, store, "empty.json")
		require.NoError(t, err)
		assert.Empty(t, zones)

		zones = LoadOrFallback(ctx, store, "empty.json", Fallback())
		require.Len(t, zones, 1)
		assert.Equal(t, "Pinhal Novo 2", zones[0].Name)
	})

	t.Run("Valid", func(t *testing.T) {
		data, err := os.ReadFile("testdata/tolls.json")
		require.NoError(t, err)
		_, err = store.Store(ctx, "tolls.json", data)
		require.NoError(t, err)

		zones := LoadOrFallback(ctx, store, "tolls.json", Fallback())
		assert.Len(t, zones, 7)
	})
}

func TestFallbackIsFresh(t *testing.T) {
	a := Fallback()
	a[0].Band = 3
	a[0].Geofences[0].Points[0].Lat = 0
	b := Fallback()
	assert.Zero(t, b[0].Band)
	assert.Equal(t, 38.656802634221954, b[0].Geofences[0].Points[0].Lat)
}
