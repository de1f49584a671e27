// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package geofence

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"time"
)

// ProfileConfig names the pprof outputs of a Profiler. Empty paths are skipped.
type ProfileConfig struct {
	CPUProfile string
	MemProfile string
}

// Profiler brackets a workload with CPU and heap profiling
type Profiler struct {
	config  ProfileConfig
	cpuFile *os.File
	start   time.Time
}

// NewProfiler creates a new profiler with the given configuration
func NewProfiler(config ProfileConfig) *Profiler {
	return &Profiler{config: config}
}

// Start begins CPU profiling if configured
func (p *Profiler) Start() error {
	p.start = time.Now()
	if p.config.CPUProfile == "" {
		return nil
	}
	f, err := os.Create(p.config.CPUProfile)
	if err != nil {
		return fmt.Errorf("create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return fmt.Errorf("start CPU profile: %w", err)
	}
	p.cpuFile = f
	return nil
}

// Stop ends CPU profiling, writes the heap profile and returns the profiled duration.
func (p *Profiler) Stop() (time.Duration, error) {
	d := time.Since(p.start)
	if p.cpuFile != nil {
		pprof.StopCPUProfile()
		p.cpuFile.Close()
		p.cpuFile = nil
	}
	if p.config.MemProfile != "" {
		f, err := os.Create(p.config.MemProfile)
		if err != nil {
			return d, fmt.Errorf("create memory profile: %w", err)
		}
		defer f.Close()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			return d, fmt.Errorf("write memory profile: %w", err)
		}
	}
	return d, nil
}

// HeapMB returns the live heap in megabytes
func HeapMB() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Alloc / 1024 / 1024
}

// Timer measures one stage of a query
type Timer struct {
	name  string
	start time.Time
}

// NewTimer starts a timer
func NewTimer(name string) *Timer {
	return &Timer{name: name, start: time.Now()}
}

// Name returns the stage name
func (t *Timer) Name() string {
	return t.name
}

// Stop returns the elapsed time
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// Milliseconds returns the elapsed time in fractional milliseconds
func (t *Timer) Milliseconds() float64 {
	return float64(time.Since(t.start).Microseconds()) / 1000
}
