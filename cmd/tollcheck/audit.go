package main

import (
	"fmt"

	"github.com/luxfi/geofence/detect"
	"github.com/luxfi/geofence/zone"
)

// auditRadius bounds the plaintext polygon search around a query
const auditRadius = 2000.0

// auditor compares encrypted decisions with a plaintext point-in-polygon
// test over nearby zones.
type auditor struct {
	zones   []zone.Zone
	checked int
	agreed  int
	diffs   []string
}

func (a *auditor) check(p zone.Point, r *detect.Report) {
	encrypted := make(map[string]bool)
	for _, code := range r.Matches() {
		encrypted[code] = true
	}
	polygon := make(map[string]bool)
	for _, z := range zone.Near(a.zones, p, auditRadius) {
		if z.Contains(p) >= 0 {
			polygon[z.Code] = true
		}
	}

	a.checked++
	same := len(encrypted) == len(polygon)
	for code := range encrypted {
		if !polygon[code] {
			same = false
			a.diffs = append(a.diffs, fmt.Sprintf("(%.6f, %.6f): %s inside by centroid distance, outside polygon", p.Lat, p.Lon, code))
		}
	}
	for code := range polygon {
		if !encrypted[code] {
			same = false
			a.diffs = append(a.diffs, fmt.Sprintf("(%.6f, %.6f): %s inside polygon, outside by centroid distance", p.Lat, p.Lon, code))
		}
	}
	if same {
		a.agreed++
	}
}

func (a *auditor) print() {
	fmt.Printf("\nPolygon audit: %d/%d points agree\n", a.agreed, a.checked)
	for _, d := range a.diffs {
		fmt.Println("  " + d)
	}
}
