// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package detect

import (
	"fmt"
	"strings"
)

// Policy selects where the stability buffer applies
type Policy int

const (
	// LegacyAsymmetric buffers the single-geofence path only; batches use the
	// primary threshold alone.
	LegacyAsymmetric Policy = iota
	// BufferEverywhere buffers borderline slots of batches as well.
	BufferEverywhere
	// NoBuffer uses the primary threshold on both paths.
	NoBuffer
)

var policyNames = [...]string{
	LegacyAsymmetric: "legacy-asymmetric",
	BufferEverywhere: "buffer-everywhere",
	NoBuffer:         "no-buffer",
}

func (p Policy) String() string {
	if p < 0 || int(p) >= len(policyNames) {
		return fmt.Sprintf("Policy(%d)", int(p))
	}
	return policyNames[p]
}

// ParsePolicy is the inverse of Policy.String. Empty selects LegacyAsymmetric.
func ParsePolicy(s string) (Policy, error) {
	if s == "" {
		return LegacyAsymmetric, nil
	}
	for p, name := range policyNames {
		if strings.EqualFold(s, name) {
			return Policy(p), nil
		}
	}
	return 0, fmt.Errorf("unknown buffer policy %q", s)
}

func (p Policy) single() bool {
	return p != NoBuffer
}

func (p Policy) batched() bool {
	return p == BufferEverywhere
}

// Thresholds are squared-degree radii and decision tolerances.
//
// A margin is threshold minus squared distance. The primary check accepts
// margin(Primary) > PrimaryTolerance. A rejected margin above -BufferWindow is
// re-checked and accepted when margin(Buffer) > BufferTolerance.
type Thresholds struct {
	Primary          float64 `yaml:"primary" json:"primary"`
	Buffer           float64 `yaml:"buffer" json:"buffer"`
	PrimaryTolerance float64 `yaml:"primary_tolerance" json:"primaryTolerance"`
	BufferWindow     float64 `yaml:"buffer_window" json:"bufferWindow"`
	BufferTolerance  float64 `yaml:"buffer_tolerance" json:"bufferTolerance"`
}

// DefaultThresholds put the primary radius near 60 m and the buffer near 70 m
// at Portuguese latitudes.
var DefaultThresholds = Thresholds{
	Primary:          0.00000036,
	Buffer:           0.00000049,
	PrimaryTolerance: 1e-8,
	BufferWindow:     2e-8,
	BufferTolerance:  -1e-7,
}

// Validate checks the thresholds are usable
func (t Thresholds) Validate() error {
	if t.Primary <= 0 {
		return fmt.Errorf("primary threshold must be positive, got %v", t.Primary)
	}
	if t.Buffer < t.Primary {
		return fmt.Errorf("buffer threshold %v below primary %v", t.Buffer, t.Primary)
	}
	if t.BufferWindow < 0 {
		return fmt.Errorf("buffer window must not be negative, got %v", t.BufferWindow)
	}
	return nil
}

func (t Thresholds) primary(margin float64) bool {
	return margin > t.PrimaryTolerance
}

func (t Thresholds) borderline(margin float64) bool {
	return !t.primary(margin) && margin > -t.BufferWindow
}

func (t Thresholds) buffer(margin float64) bool {
	return margin > t.BufferTolerance
}
