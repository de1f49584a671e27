package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/luxfi/geofence/detect"
	"github.com/luxfi/geofence/trip"
	"github.com/luxfi/geofence/zone"
)

// sample is one GPS fix of a trace
type sample struct {
	zone.Point
	At time.Time
}

// readTrace parses lat,lon,unix_ms rows. A first row that does not parse is
// taken as a header; any later bad row is an error.
func readTrace(r io.Reader) ([]sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var out []sample
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		s, err := parseSample(rec)
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, s)
	}
}

func parseSample(rec []string) (sample, error) {
	if len(rec) < 3 {
		return sample{}, fmt.Errorf("want lat,lon,unix_ms, have %d fields", len(rec))
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
	if err != nil {
		return sample{}, fmt.Errorf("latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
	if err != nil {
		return sample{}, fmt.Errorf("longitude: %w", err)
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(rec[2]), 10, 64)
	if err != nil {
		return sample{}, fmt.Errorf("timestamp: %w", err)
	}
	return sample{Point: zone.Point{Lat: lat, Lon: lon}, At: time.UnixMilli(ms).UTC()}, nil
}

func replay(ctx context.Context, d *detect.Detector, path string, window time.Duration, a *auditor) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	samples, err := readTrace(f)
	if err != nil {
		return fmt.Errorf("read trace %s: %w", path, err)
	}
	fmt.Printf("\nReplaying %d samples from %s\n", len(samples), path)

	tracker := trip.NewTracker(d.Zones(), window)
	for _, s := range samples {
		report, err := d.Detect(ctx, s.Point)
		if err != nil {
			return fmt.Errorf("sample at %s: %w", s.At.Format(time.RFC3339), err)
		}
		if a != nil {
			a.check(s.Point, report)
		}
		for _, ev := range tracker.Observe(s.At, s.Point, report) {
			fmt.Printf("  %s  %-5s %s (%s) %s\n", ev.At.Format(time.RFC3339), ev.Kind, ev.Name, ev.Code, ev.Highway)
		}
	}

	legs := tracker.Legs()
	fmt.Printf("\nCompleted legs: %d\n", len(legs))
	for _, leg := range legs {
		fmt.Printf("  %s (%s)\n", leg, leg.Duration().Round(time.Second))
	}
	if open, ok := tracker.Open(); ok {
		fmt.Printf("Trip in progress since %s at %s\n", open.At.Format(time.RFC3339), open.Name)
	}
	return nil
}
