// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package zone holds toll zones, their geofences and the encrypted centroids
// the membership test compares against.
package zone

import (
	"math"
)

// Point is a WGS84 coordinate in degrees
type Point struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// IsZero reports whether p is (0, 0), the placeholder for a missing point
func (p Point) IsZero() bool {
	return p.Lat == 0 && p.Lon == 0
}

// HaversineMetres returns the great-circle distance from p to q
func (p Point) HaversineMetres(q Point) float64 {
	const earthRadius = 6371000.0
	rad := math.Pi / 180
	dLat := (q.Lat - p.Lat) * rad
	dLon := (q.Lon - p.Lon) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(p.Lat*rad)*math.Cos(q.Lat*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadius * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Geofence is an ordered ring of points
type Geofence struct {
	Points []Point `json:"geofencePoints"`
}

// Centroid returns the arithmetic mean of the points, or (0, 0) for an empty ring.
func (g Geofence) Centroid() Point {
	if len(g.Points) == 0 {
		return Point{}
	}
	var c Point
	for _, p := range g.Points {
		c.Lat += p.Lat
		c.Lon += p.Lon
	}
	n := float64(len(g.Points))
	return Point{Lat: c.Lat / n, Lon: c.Lon / n}
}

// Contains reports whether p lies inside the ring (even-odd rule).
// Plaintext only; used to audit encrypted decisions, never on the query path.
func (g Geofence) Contains(p Point) bool {
	n := len(g.Points)
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := g.Points[i], g.Points[j]
		if (a.Lat > p.Lat) != (b.Lat > p.Lat) &&
			p.Lon < (b.Lon-a.Lon)*(p.Lat-a.Lat)/(b.Lat-a.Lat+1e-12)+a.Lon {
			inside = !inside
		}
	}
	return inside
}

// Type distinguishes closed-system tolls (charged between entry and exit)
// from open-system tolls (charged on each pass).
type Type string

const (
	Closed Type = "CLOSED"
	Open   Type = "OPEN"
)

// Zone is one toll point with its geofences
type Zone struct {
	Code      string     `json:"code"`
	Name      string     `json:"name"`
	Highway   string     `json:"highway"`
	Type      Type       `json:"type"`
	Reference Point      `json:"reference"`
	Geofences []Geofence `json:"geofences"`
	// Band is assigned once by the spatial index and read-only afterwards.
	Band int `json:"band"`
}

// Batchable reports whether the zone fits in one slot of a packed batch
func (z *Zone) Batchable() bool {
	return len(z.Geofences) == 1
}

// Centroids returns the centroid of every geofence, in order
func (z *Zone) Centroids() []Point {
	cs := make([]Point, len(z.Geofences))
	for i, g := range z.Geofences {
		cs[i] = g.Centroid()
	}
	return cs
}

// Contains returns the index of the first geofence containing p, or -1
func (z *Zone) Contains(p Point) int {
	for i, g := range z.Geofences {
		if g.Contains(p) {
			return i
		}
	}
	return -1
}

// Label formats the zone as "name (code)"
func (z *Zone) Label() string {
	return z.Name + " (" + z.Code + ")"
}

// Near returns the zones whose reference point lies within radius metres of p.
func Near(zones []Zone, p Point, radius float64) []Zone {
	var out []Zone
	for _, z := range zones {
		if z.Reference.HaversineMetres(p) <= radius {
			out = append(out, z)
		}
	}
	return out
}
