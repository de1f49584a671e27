// Package geofence - Parameter Sets
//
// Named CKKS parameter sets selectable from configuration.
//
// # Precision budget
//
// The membership test computes (q_lat-c_lat)^2 + (q_lon-c_lon)^2 and compares
// it with thresholds near 4e-7 squared degrees, using a decision tolerance of
// 1e-8. The chain needs one multiplication and one rescale, so every set has
// at least two levels above the base prime, and the scale must leave the
// encryption error well under 1e-8 after one rescale.
//
//	Name        LogN  LogQ            LogP  Scale  Security
//	-------------------------------------------------------
//	PN13QP206   13    55,45,45        61    2^45   128-bit
//	PN13QP200   13    60,40,40        60    2^40   128-bit
//	PN14QP271   14    60,50,50,50     61    2^50   128-bit
//
// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause
package geofence

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultParameterSet names the set used when configuration is silent
const DefaultParameterSet = "PN13QP206"

var parameterSets = map[string]ParametersLiteral{
	"PN13QP206": PN13QP206,
	"PN13QP200": PN13QP200,
	"PN14QP271": PN14QP271,
}

// ParametersByName resolves a named parameter set (case-insensitive).
// An empty name selects DefaultParameterSet.
func ParametersByName(name string) (ParametersLiteral, error) {
	if name == "" {
		name = DefaultParameterSet
	}
	lit, ok := parameterSets[strings.ToUpper(name)]
	if !ok {
		return ParametersLiteral{}, fmt.Errorf("unknown parameter set %q (have %s)", name, strings.Join(ParameterSetNames(), ", "))
	}
	return lit, nil
}

// ParameterSetNames lists the registered set names in order
func ParameterSetNames() []string {
	names := make([]string, 0, len(parameterSets))
	for name := range parameterSets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
