// Package catalog loads toll zones from a {"tollsList": [...]} document.
//
// Loading is lenient: a record with a missing or malformed field keeps the
// zero value for that field. Records are rejected only when they have no
// code, no usable geofence, or a code reserved for test data (500*, 999*).
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/luxfi/geofence/internal/logger"
	"github.com/luxfi/geofence/internal/storage"
	"github.com/luxfi/geofence/zone"
)

// ErrCatalog is returned when a document cannot be read or has no tollsList.
var ErrCatalog = errors.New("catalog: cannot load toll zones")

var reservedPrefixes = []string{"500", "999"}

// Summary counts what happened to the records of a document
type Summary struct {
	Records  int
	Accepted int
	Rejected int
	// Missing counts absent or malformed fields that took their zero value.
	Missing int
}

type document struct {
	TollsList *[]json.RawMessage `json:"tollsList"`
}

// Parse decodes a catalog document. A document that is not valid JSON is
// scanned record by record, so one broken record does not discard the others.
func Parse(data []byte) ([]zone.Zone, Summary, error) {
	records, err := tollsList(data)
	if err != nil {
		return nil, Summary{}, err
	}

	var sum Summary
	zones := make([]zone.Zone, 0, len(records))
	for i, raw := range records {
		sum.Records++
		z, missing, err := parseRecord(raw)
		sum.Missing += len(missing)
		if err != nil {
			sum.Rejected++
			logger.L().Debug("catalog_record_rejected", "record", i, "code", z.Code, "reason", err.Error())
			continue
		}
		if len(missing) > 0 {
			logger.L().Warn("catalog_record_defaulted", "record", i, "code", z.Code, "fields", missing)
		}
		zones = append(zones, z)
		sum.Accepted++
	}
	return zones, sum, nil
}

func tollsList(data []byte) ([]json.RawMessage, error) {
	var doc document
	err := json.Unmarshal(data, &doc)
	var syntax *json.SyntaxError
	switch {
	case err == nil && doc.TollsList == nil:
		return nil, fmt.Errorf("%w: tollsList not found", ErrCatalog)
	case err == nil:
		return *doc.TollsList, nil
	case errors.As(err, &syntax):
		logger.L().Warn("catalog_malformed", "offset", syntax.Offset, "error", err.Error())
		return scanTollsList(data)
	default:
		return nil, fmt.Errorf("%w: %v", ErrCatalog, err)
	}
}

// scanTollsList splits the tollsList array of a malformed document into its
// elements without decoding them.
func scanTollsList(data []byte) ([]json.RawMessage, error) {
	key := []byte(`"tollsList"`)
	at := bytes.Index(data, key)
	if at < 0 {
		return nil, fmt.Errorf("%w: tollsList not found", ErrCatalog)
	}
	i := skipSpace(data, at+len(key))
	if i >= len(data) || data[i] != ':' {
		return nil, fmt.Errorf("%w: tollsList is not an array", ErrCatalog)
	}
	i = skipSpace(data, i+1)
	if i >= len(data) || data[i] != '[' {
		return nil, fmt.Errorf("%w: tollsList is not an array", ErrCatalog)
	}

	var out []json.RawMessage
	for i = skipSpace(data, i+1); i < len(data) && data[i] != ']'; i = skipSpace(data, i) {
		if data[i] == ',' {
			i++
			continue
		}
		end := elementEnd(data, i)
		out = append(out, json.RawMessage(data[i:end]))
		i = end
	}
	return out, nil
}

// elementEnd returns the offset just past the array element starting at i.
// An object ends at its matching brace, anything else at the next comma or
// closing bracket outside a string.
func elementEnd(data []byte, i int) int {
	object := data[i] == '{'
	depth := 0
	inString, escaped := false, false
	for j := i; j < len(data); j++ {
		c := data[j]
		switch {
		case escaped:
			escaped = false
		case inString:
			if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
		case object && c == '{':
			depth++
		case object && c == '}':
			depth--
			if depth == 0 {
				return j + 1
			}
		case !object && (c == ',' || c == ']'):
			return j
		}
	}
	return len(data)
}

func skipSpace(data []byte, i int) int {
	for i < len(data) {
		switch data[i] {
		case ' ', '\t', '\n', '\r':
			i++
		default:
			return i
		}
	}
	return i
}

func parseRecord(raw json.RawMessage) (zone.Zone, []string, error) {
	var z zone.Zone
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return z, nil, fmt.Errorf("not an object: %w", err)
	}

	var missing []string
	str := func(key string) string {
		s, ok := stringField(fields[key])
		if !ok {
			missing = append(missing, key)
		}
		return s
	}
	num := func(key string) float64 {
		f, ok := numberField(fields[key])
		if !ok {
			missing = append(missing, key)
		}
		return f
	}

	z.Code = str("code")
	z.Name = str("name")
	z.Highway = str("highway")
	z.Type = zone.Type(strings.ToUpper(str("type")))
	z.Reference = zone.Point{Lat: num("latitude"), Lon: num("longitude")}
	z.Geofences = geofences(fields["geofences"])

	switch {
	case z.Code == "":
		return z, missing, errors.New("empty code")
	case reserved(z.Code):
		return z, missing, errors.New("reserved code")
	case len(z.Geofences) == 0:
		return z, missing, errors.New("no geofences")
	}
	return z, missing, nil
}

func reserved(code string) bool {
	for _, p := range reservedPrefixes {
		if strings.HasPrefix(code, p) {
			return true
		}
	}
	return false
}

func stringField(raw json.RawMessage) (string, bool) {
	if raw == nil {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

func numberField(raw json.RawMessage) (float64, bool) {
	if raw == nil {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// geofences keeps each geofence that has at least one point other than (0, 0).
func geofences(raw json.RawMessage) []zone.Geofence {
	var items []json.RawMessage
	if raw == nil || json.Unmarshal(raw, &items) != nil {
		return nil
	}
	var out []zone.Geofence
	for _, item := range items {
		var g struct {
			Points []json.RawMessage `json:"geofencePoints"`
		}
		if json.Unmarshal(item, &g) != nil {
			continue
		}
		var fence zone.Geofence
		for _, rp := range g.Points {
			var p struct {
				Lat json.RawMessage `json:"latitude"`
				Lon json.RawMessage `json:"longitude"`
			}
			if json.Unmarshal(rp, &p) != nil {
				continue
			}
			lat, _ := numberField(p.Lat)
			lon, _ := numberField(p.Lon)
			pt := zone.Point{Lat: lat, Lon: lon}
			if pt.IsZero() {
				continue
			}
			fence.Points = append(fence.Points, pt)
		}
		if len(fence.Points) > 0 {
			out = append(out, fence)
		}
	}
	return out
}

// Load reads and parses the document stored under name.
func Load(ctx context.Context, store storage.Storage, name string) ([]zone.Zone, error) {
	data, err := store.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalog, err)
	}
	zones, sum, err := Parse(data)
	if err != nil {
		return nil, err
	}
	logger.L().Info("catalog_loaded",
		"name", name,
		"digest", storage.ComputeDigest(data).Short(),
		"records", sum.Records,
		"zones", sum.Accepted,
		"rejected", sum.Rejected,
		"defaulted_fields", sum.Missing,
	)
	return zones, nil
}

// LoadOrFallback loads name and returns fallback when loading fails or no
// zone survives validation.
func LoadOrFallback(ctx context.Context, store storage.Storage, name string, fallback []zone.Zone) []zone.Zone {
	zones, err := Load(ctx, store, name)
	if err != nil {
		logger.L().Warn("catalog_fallback", "name", name, "error", err.Error())
		return fallback
	}
	if len(zones) == 0 {
		logger.L().Warn("catalog_fallback", "name", name, "error", "no valid zones")
		return fallback
	}
	return zones
}
