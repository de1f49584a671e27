// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

//go:build profile

// Command profile runs performance profiling on the membership pipeline.
//
// Usage:
//
//	go build -tags profile -o profile ./cmd/profile
//	./profile -cpu=cpu.prof -mem=mem.prof -iterations=50
//
// Analyze profiles:
//
//	go tool pprof -http=:8080 cpu.prof
//	go tool pprof -http=:8081 mem.prof
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/luxfi/geofence"
	"github.com/luxfi/geofence/detect"
	"github.com/luxfi/geofence/index"
	"github.com/luxfi/geofence/internal/catalog"
	"github.com/luxfi/geofence/internal/engine"
	"github.com/luxfi/geofence/zone"
)

var (
	cpuProfile = flag.String("cpu", "", "write cpu profile to file")
	memProfile = flag.String("mem", "", "write memory profile to file")
	iterations = flag.Int("iterations", 20, "number of iterations for each operation")
	operation  = flag.String("op", "all", "operation to profile: all, keygen, distance, query, noise")
	params     = flag.String("params", geofence.DefaultParameterSet, "parameter set")
)

func main() {
	flag.Parse()

	lit, err := geofence.ParametersByName(*params)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	profiler := geofence.NewProfiler(geofence.ProfileConfig{
		CPUProfile: *cpuProfile,
		MemProfile: *memProfile,
	})
	if err := profiler.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start profiler: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Running %d iterations of '%s' on %s\n", *iterations, *operation, *params)
	fmt.Printf("GOMAXPROCS: %d\n", runtime.GOMAXPROCS(0))

	switch *operation {
	case "all":
		profileKeyGen(lit)
		profileDistance(lit)
		profileQuery(lit)
		profileNoise(lit)
	case "keygen":
		profileKeyGen(lit)
	case "distance":
		profileDistance(lit)
	case "query":
		profileQuery(lit)
	case "noise":
		profileNoise(lit)
	default:
		fmt.Fprintf(os.Stderr, "Unknown operation: %s\n", *operation)
		os.Exit(1)
	}

	d, err := profiler.Stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("\nProfiled %v, heap %d MB\n", d.Round(time.Millisecond), geofence.HeapMB())
}

func average(t *geofence.Timer, n int) {
	fmt.Printf("  %-28s %v/op\n", t.Name(), t.Stop()/time.Duration(n))
}

func mustContext(lit geofence.ParametersLiteral) *geofence.Context {
	c, err := geofence.NewContextFromLiteral(lit)
	if err != nil {
		panic(err)
	}
	return c
}

func profileKeyGen(lit geofence.ParametersLiteral) {
	fmt.Println("\n=== Key Generation ===")
	p, err := geofence.NewParametersFromLiteral(lit)
	if err != nil {
		panic(err)
	}
	kg := geofence.NewKeyGenerator(p)
	n := max(*iterations/10, 1)
	t := geofence.NewTimer("key set")
	for i := 0; i < n; i++ {
		kg.GenKeySet()
	}
	average(t, n)
}

func profileDistance(lit geofence.ParametersLiteral) {
	fmt.Println("\n=== Encrypted Distance ===")
	s := geofence.NewSession(mustContext(lit))

	t := geofence.NewTimer("encrypt scalar")
	for i := 0; i < *iterations; i++ {
		if _, err := s.Enc.EncryptScalar(38.65); err != nil {
			panic(err)
		}
	}
	average(t, *iterations)

	qLat, _ := s.Enc.EncryptScalar(38.65676812)
	qLon, _ := s.Enc.EncryptScalar(-8.89353369)
	cLat, _ := s.Enc.EncryptScalar(38.6568)
	cLon, _ := s.Enc.EncryptScalar(-8.8935)

	t = geofence.NewTimer("squared distance + margin")
	for i := 0; i < *iterations; i++ {
		d2, err := s.Eval.SquaredDistance(qLat, qLon, cLat, cLon)
		if err != nil {
			panic(err)
		}
		m, err := s.Eval.Margin(s.Enc, d2, detect.DefaultThresholds.Primary)
		if err != nil {
			panic(err)
		}
		if _, err := s.Dec.DecryptScalar(m); err != nil {
			panic(err)
		}
	}
	average(t, *iterations)
}

func profileQuery(lit geofence.ParametersLiteral) {
	fmt.Println("\n=== Detection ===")
	c := mustContext(lit)

	t := geofence.NewTimer("build (fallback catalog)")
	d, err := engine.NewDetector(c, catalog.Fallback(), index.Config{}, detect.DefaultConfig())
	if err != nil {
		panic(err)
	}
	average(t, 1)

	points := []zone.Point{
		{Lat: 38.65676812, Lon: -8.89353369},
		{Lat: 38.66, Lon: -8.89},
		{Lat: 45.0, Lon: -8.0},
	}
	ctx := context.Background()
	t = geofence.NewTimer("detect")
	var rounds int64
	for i := 0; i < *iterations; i++ {
		r, err := d.Detect(ctx, points[i%len(points)])
		if err != nil {
			panic(err)
		}
		rounds += r.Rounds
	}
	average(t, *iterations)
	fmt.Printf("  decryptions/query            %.1f\n", float64(rounds)/float64(*iterations))
}

func profileNoise(lit geofence.ParametersLiteral) {
	fmt.Println("\n=== Noise ===")
	c := mustContext(lit)

	centroid := zone.Point{Lat: 38.65676812, Lon: -8.89353369}
	samples := make([]geofence.NoiseSample, *iterations)
	for i := range samples {
		off := float64(i) * 1e-5
		samples[i] = geofence.NoiseSample{
			Lat:         centroid.Lat + off,
			Lon:         centroid.Lon - off/2,
			CentroidLat: centroid.Lat,
			CentroidLon: centroid.Lon,
		}
	}

	r, err := geofence.MeasureNoise(c, samples, detect.DefaultThresholds.Primary)
	if err != nil {
		panic(err)
	}
	fmt.Printf("  samples      %d\n", r.Samples)
	fmt.Printf("  scale        2^%.1f -> 2^%.1f\n", r.LogScaleIn, r.LogScaleOut)
	fmt.Printf("  mean error   %.3e (%.4f m)\n", r.Mean, r.MeanMetres)
	fmt.Printf("  median       %.3e\n", r.Median)
	fmt.Printf("  stddev       %.3e\n", r.StdDev)
	fmt.Printf("  max          %.3e\n", r.Max)
	fmt.Printf("  rating       %s (threshold %.2e)\n", r.Rating, r.Threshold)
}
