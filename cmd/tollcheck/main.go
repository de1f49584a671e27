// Command tollcheck builds the encrypted index over a toll catalog and
// checks reference locations (or a recorded GPS trace) against it.
//
// Usage:
//
//	tollcheck -dir internal/catalog/testdata
//	tollcheck -trace drive.csv -verify
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/luxfi/geofence"
	"github.com/luxfi/geofence/detect"
	"github.com/luxfi/geofence/internal/config"
	"github.com/luxfi/geofence/internal/engine"
	"github.com/luxfi/geofence/internal/logger"
	"github.com/luxfi/geofence/trip"
	"github.com/luxfi/geofence/zone"
)

// location is a named reference coordinate
type location struct {
	zone.Point
	Description string
}

var referenceLocations = []location{
	{zone.Point{Lat: 38.65676812, Lon: -8.89353369}, "Pinhal Novo 2, fence 1 (exact centroid)"},
	{zone.Point{Lat: 38.65615898, Lon: -8.89664495}, "Pinhal Novo 2, fence 2 (exact centroid)"},
	{zone.Point{Lat: 38.82052119, Lon: -9.18781516}, "Odivelas (close to centroid)"},
	{zone.Point{Lat: 38.89223341, Lon: -9.04816278}, "Alverca (close to centroid)"},
	{zone.Point{Lat: 38.74311485, Lon: -9.27516933}, "Queluz 1 (close to centroid)"},
	{zone.Point{Lat: 40.57061698, Lon: -8.56225855}, "Aveiro Sul (close to centroid)"},
	{zone.Point{Lat: 38.66, Lon: -8.89}, "Far outside"},
	{zone.Point{Lat: 38.65, Lon: -8.90}, "South"},
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "YAML configuration file")
		dir        = flag.String("dir", "", "catalog directory (overrides config)")
		name       = flag.String("catalog", "", "catalog document name (overrides config)")
		params     = flag.String("params", "", "parameter set: "+strings.Join(geofence.ParameterSetNames(), ", "))
		policy     = flag.String("policy", "", "buffer policy: legacy-asymmetric, buffer-everywhere, no-buffer")
		parallel   = flag.Int("parallel", 0, "concurrent checks per query")
		tracePath  = flag.String("trace", "", "replay a lat,lon,unix_ms CSV trace instead of the reference locations")
		window     = flag.Duration("window", trip.DefaultWindow, "OPEN toll dedup window for -trace")
		verify     = flag.Bool("verify", false, "audit decisions against plaintext point-in-polygon")
	)
	flag.Parse()
	logger.Setup()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *dir != "" {
		cfg.Catalog.Source, cfg.Catalog.Location = "file", *dir
	}
	if *name != "" {
		cfg.Catalog.Name = *name
	}
	if *params != "" {
		cfg.Params = *params
	}
	if *policy != "" {
		cfg.Detect.Policy = *policy
	}
	if *parallel > 0 {
		cfg.Detect.Parallelism = *parallel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	fmt.Println("Privacy-preserving toll detection")
	fmt.Println("=================================")

	start := time.Now()
	ctx := context.Background()
	d, err := engine.Load(ctx, cfg)
	if err != nil {
		return err
	}
	ix := d.Index()
	fmt.Printf("Loaded %d toll zones, %d bands, batch width %d (%s)\n",
		len(d.Zones()), ix.Bands(), ix.Width(), d.Config().Policy)
	fmt.Printf("Setup: %d ms\n", time.Since(start).Milliseconds())

	var a *auditor
	if *verify {
		a = &auditor{zones: d.Zones()}
	}

	if *tracePath != "" {
		err = replay(ctx, d, *tracePath, *window, a)
	} else {
		err = checkReference(ctx, d, a)
	}
	if err != nil {
		return err
	}
	if a != nil {
		a.print()
	}

	fmt.Printf("\nTotal execution time: %d ms (heap %d MB)\n", time.Since(start).Milliseconds(), geofence.HeapMB())
	return nil
}

func checkReference(ctx context.Context, d *detect.Detector, a *auditor) error {
	fmt.Println("\nTesting GPS locations:")
	fmt.Println("======================")

	var total float64
	for i, loc := range referenceLocations {
		fmt.Printf("\nTest %d: %s (%.8f, %.8f)\n", i+1, loc.Description, loc.Lat, loc.Lon)
		report, err := d.Detect(ctx, loc.Point)
		if err != nil {
			return fmt.Errorf("%s: %w", loc.Description, err)
		}
		printReport(report)
		total += report.Timings.Total
		if a != nil {
			a.check(loc.Point, report)
		}
	}

	fmt.Printf("\nTotal checking time: %.1f ms\n", total)
	fmt.Printf("Average time per coordinate: %.1f ms\n", total/float64(len(referenceLocations)))
	return nil
}

func printReport(r *detect.Report) {
	if r.Band < 0 {
		fmt.Printf("  Band: none (%s)\n", r.Message)
	} else {
		fmt.Printf("  Band: %d\n", r.Band)
	}
	fmt.Printf("  Binary search: %.1f ms\n", r.Timings.Locate)
	fmt.Printf("  Precision checks: %.1f ms\n", r.Timings.Precision)
	fmt.Printf("  Total time: %.1f ms (%d decryptions)\n", r.Timings.Total, r.Rounds)
	fmt.Printf("  Zones filtered: %d/%d (%.1f%% reduction)\n", r.Zones-r.Candidates, r.Zones, 100*r.Filtered())

	matches := 0
	for _, res := range r.Results {
		if res.Inside {
			matches++
		}
	}
	if matches == 0 {
		fmt.Println("  Result: NO TOLL")
		return
	}
	fmt.Printf("  Result: TOLL DETECTED (%d zones)\n", matches)
	for _, res := range r.Results {
		if res.Inside {
			buffered := ""
			if res.Buffered {
				buffered = " [buffer]"
			}
			fmt.Printf("    Toll: %s%s\n", res.Message, buffered)
		}
	}
}
