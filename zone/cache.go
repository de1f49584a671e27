// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package zone

import (
	"fmt"

	"github.com/luxfi/geofence"
)

// EncryptedCentroid is the encrypted mean point of one geofence
type EncryptedCentroid struct {
	Lat *geofence.Ciphertext
	Lon *geofence.Ciphertext
}

// Cache holds the encrypted centroid of every geofence of every zone.
// It is filled once and read-only afterwards; Centroids(i) has exactly
// len(zones[i].Geofences) entries.
type Cache struct {
	centroids [][]EncryptedCentroid
}

// EncryptCentroids encrypts every geofence centroid of zones.
func EncryptCentroids(enc *geofence.Encryptor, zones []Zone) (*Cache, error) {
	c := &Cache{centroids: make([][]EncryptedCentroid, len(zones))}
	for i := range zones {
		cs := zones[i].Centroids()
		c.centroids[i] = make([]EncryptedCentroid, len(cs))
		for j, p := range cs {
			lat, err := enc.EncryptScalar(p.Lat)
			if err != nil {
				return nil, fmt.Errorf("zone %s geofence %d: %w", zones[i].Code, j, err)
			}
			lon, err := enc.EncryptScalar(p.Lon)
			if err != nil {
				return nil, fmt.Errorf("zone %s geofence %d: %w", zones[i].Code, j, err)
			}
			c.centroids[i][j] = EncryptedCentroid{Lat: lat, Lon: lon}
		}
	}
	return c, nil
}

// Len returns the number of zones in the cache
func (c *Cache) Len() int {
	return len(c.centroids)
}

// Centroids returns the encrypted centroids of zone i
func (c *Cache) Centroids(i int) []EncryptedCentroid {
	if i < 0 || i >= len(c.centroids) {
		return nil
	}
	return c.centroids[i]
}
