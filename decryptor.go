// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package geofence

import (
	"fmt"

	"github.com/luxfi/lattice/v7/core/rlwe"
	"github.com/luxfi/lattice/v7/schemes/ckks"
)

// Decryptor reveals encrypted values. It is the only path from a Ciphertext
// back to plaintext.
type Decryptor struct {
	ctx       *Context
	encoder   *ckks.Encoder
	decryptor *rlwe.Decryptor
}

// NewDecryptor creates a new decryptor from the context secret key
func NewDecryptor(ctx *Context) *Decryptor {
	return &Decryptor{
		ctx:       ctx,
		encoder:   ckks.NewEncoder(ctx.params.ckks),
		decryptor: rlwe.NewDecryptor(ctx.params.ckks, ctx.keys.SK),
	}
}

// ShallowCopy returns a decryptor safe to use from another goroutine
func (dec *Decryptor) ShallowCopy() *Decryptor {
	return NewDecryptor(dec.ctx)
}

// DecryptScalar returns slot 0 of v
func (dec *Decryptor) DecryptScalar(v *Ciphertext) (float64, error) {
	values, err := dec.decrypt(v, 1)
	if err != nil {
		return 0, err
	}
	return values[0], nil
}

// DecryptVector returns the meaningful slots of v
func (dec *Decryptor) DecryptVector(v *Ciphertext) ([]float64, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: nil value", ErrParameterMismatch)
	}
	return dec.decrypt(v, v.slots)
}

func (dec *Decryptor) decrypt(v *Ciphertext, n int) ([]float64, error) {
	if err := dec.ctx.check(v); err != nil {
		return nil, err
	}
	if err := v.consume(); err != nil {
		return nil, err
	}
	pt := dec.decryptor.DecryptNew(v.ct)
	values := make([]float64, n)
	if err := dec.encoder.Decode(pt, values); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return values, nil
}
