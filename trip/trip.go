// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package trip turns a stream of membership decisions into toll events.
//
// CLOSED tolls charge by the pair of tolls a vehicle enters and leaves by,
// so the first hit opens a trip and a hit at another CLOSED toll closes it
// as a Leg. OPEN tolls charge per passage and emit a Pass for every hit,
// collapsing repeated hits on the same toll within a dedup window.
package trip

import (
	"fmt"
	"sync"
	"time"

	"github.com/luxfi/geofence/detect"
	"github.com/luxfi/geofence/internal/logger"
	"github.com/luxfi/geofence/zone"
)

// DefaultWindow is the default OPEN toll dedup window
const DefaultWindow = 5 * time.Minute

// Kind classifies an Event
type Kind string

const (
	Entry Kind = "entry"
	Exit  Kind = "exit"
	Pass  Kind = "pass"
)

// Event is one toll observation
type Event struct {
	Kind    Kind       `json:"kind"`
	At      time.Time  `json:"at"`
	Code    string     `json:"tollCode"`
	Name    string     `json:"tollName"`
	Highway string     `json:"highway,omitempty"`
	Point   zone.Point `json:"point"`
}

// Leg is a completed CLOSED-toll trip
type Leg struct {
	Entry Event `json:"entryTripToll"`
	Exit  Event `json:"exitTripToll"`
}

// Duration returns the time between entry and exit
func (l Leg) Duration() time.Duration {
	return l.Exit.At.Sub(l.Entry.At)
}

func (l Leg) String() string {
	return fmt.Sprintf("%s - %s", l.Entry.Name, l.Exit.Name)
}

// Tracker is safe for concurrent use; observations are applied in call order.
type Tracker struct {
	zones  []zone.Zone
	window time.Duration

	mu       sync.Mutex
	open     *Event
	lastPass map[string]time.Time
	legs     []Leg
	events   []Event
}

// NewTracker creates a tracker over the catalog the detector was built on.
// A non-positive window selects DefaultWindow.
func NewTracker(zones []zone.Zone, window time.Duration) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tracker{
		zones:    zones,
		window:   window,
		lastPass: make(map[string]time.Time),
	}
}

// Observe applies the first inside result of r, if any, and returns the
// events it produced.
func (t *Tracker) Observe(at time.Time, p zone.Point, r *detect.Report) []Event {
	if r == nil {
		return nil
	}
	for _, res := range r.Results {
		if res.Inside {
			return t.hit(at, p, res)
		}
	}
	return nil
}

func (t *Tracker) hit(at time.Time, p zone.Point, res detect.Result) []Event {
	ev := Event{At: at, Code: res.Code, Point: p}
	typ := zone.Closed
	if res.Zone >= 0 && res.Zone < len(t.zones) {
		z := &t.zones[res.Zone]
		ev.Name, ev.Highway, typ = z.Name, z.Highway, z.Type
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Event
	switch typ {
	case zone.Open:
		if last, ok := t.lastPass[ev.Code]; ok && at.Sub(last) < t.window {
			return nil
		}
		t.lastPass[ev.Code] = at
		ev.Kind = Pass
		out = append(out, ev)
	default:
		switch {
		case t.open == nil:
			ev.Kind = Entry
			entry := ev
			t.open = &entry
			out = append(out, ev)
		case t.open.Code == ev.Code:
			return nil
		default:
			ev.Kind = Exit
			leg := Leg{Entry: *t.open, Exit: ev}
			t.legs = append(t.legs, leg)
			t.open = nil
			out = append(out, ev)
			logger.L().Info("trip_leg", "entry", leg.Entry.Code, "exit", leg.Exit.Code, "duration", leg.Duration().String())
		}
	}
	t.events = append(t.events, out...)
	return out
}

// Open returns the entry of the trip in progress
func (t *Tracker) Open() (Event, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.open == nil {
		return Event{}, false
	}
	return *t.open, true
}

// Legs returns the completed legs
func (t *Tracker) Legs() []Leg {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Leg(nil), t.legs...)
}

// Events returns every event emitted so far
func (t *Tracker) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Event(nil), t.events...)
}
