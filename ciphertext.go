// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package geofence

import (
	"math"
	"sync/atomic"

	"github.com/luxfi/lattice/v7/core/rlwe"
)

// Ciphertext is an opaque encrypted real vector.
//
// Fresh encryptions may be used any number of times. Values produced by an
// Evaluator are derived: they may feed further evaluation until decrypted,
// after which they are consumed.
type Ciphertext struct {
	ct      *rlwe.Ciphertext
	ctx     *Context
	slots   int
	derived bool
	used    atomic.Bool
}

func (c *Context) wrap(ct *rlwe.Ciphertext, slots int, derived bool) *Ciphertext {
	return &Ciphertext{ct: ct, ctx: c, slots: slots, derived: derived}
}

// Level returns the remaining multiplicative level
func (v *Ciphertext) Level() int {
	return v.ct.Level()
}

// LogScale returns log2 of the current scale
func (v *Ciphertext) LogScale() float64 {
	return math.Log2(v.ct.Scale.Float64())
}

// Slots returns the number of meaningful slots
func (v *Ciphertext) Slots() int {
	return v.slots
}

// Derived reports whether v was produced by evaluation
func (v *Ciphertext) Derived() bool {
	return v.derived
}

// Consumed reports whether v has been decrypted
func (v *Ciphertext) Consumed() bool {
	return v.derived && v.used.Load()
}

func (v *Ciphertext) live() error {
	if v.Consumed() {
		return ErrConsumed
	}
	return nil
}

func (v *Ciphertext) consume() error {
	if !v.derived {
		return nil
	}
	if v.used.Swap(true) {
		return ErrConsumed
	}
	return nil
}
