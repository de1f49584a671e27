// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package geofence

import (
	"fmt"

	"github.com/luxfi/lattice/v7/core/rlwe"
	"github.com/luxfi/lattice/v7/schemes/ckks"
)

// Encryptor encodes real values and encrypts them under the context public key
type Encryptor struct {
	ctx       *Context
	encoder   *ckks.Encoder
	encryptor *rlwe.Encryptor
}

// NewEncryptor creates a new encryptor for ctx
func NewEncryptor(ctx *Context) *Encryptor {
	return &Encryptor{
		ctx:       ctx,
		encoder:   ckks.NewEncoder(ctx.params.ckks),
		encryptor: rlwe.NewEncryptor(ctx.params.ckks, ctx.keys.PK),
	}
}

// ShallowCopy returns an encryptor sharing keys but not buffers, safe to use
// from another goroutine.
func (enc *Encryptor) ShallowCopy() *Encryptor {
	return NewEncryptor(enc.ctx)
}

// EncryptScalar encrypts x in slot 0 at the top level and default scale
func (enc *Encryptor) EncryptScalar(x float64) (*Ciphertext, error) {
	return enc.EncryptVector([]float64{x})
}

// EncryptVector encrypts xs slot-wise at the top level and default scale.
// Slots beyond len(xs) hold zero.
func (enc *Encryptor) EncryptVector(xs []float64) (*Ciphertext, error) {
	params := enc.ctx.params.ckks
	pt := ckks.NewPlaintext(params, params.MaxLevel())
	return enc.encrypt(xs, pt)
}

// EncryptLike encrypts xs at the level and scale of ref, so the result can be
// subtracted from ref without further alignment.
func (enc *Encryptor) EncryptLike(xs []float64, ref *Ciphertext) (*Ciphertext, error) {
	if err := enc.ctx.check(ref); err != nil {
		return nil, err
	}
	pt := ckks.NewPlaintext(enc.ctx.params.ckks, ref.Level())
	pt.Scale = ref.ct.Scale
	return enc.encrypt(xs, pt)
}

func (enc *Encryptor) encrypt(xs []float64, pt *rlwe.Plaintext) (*Ciphertext, error) {
	if len(xs) == 0 || len(xs) > enc.ctx.params.Slots() {
		return nil, fmt.Errorf("%w: %d values, %d slots", ErrSlots, len(xs), enc.ctx.params.Slots())
	}
	if err := enc.encoder.Encode(xs, pt); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	ct, err := enc.encryptor.EncryptNew(pt)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	return enc.ctx.wrap(ct, len(xs), false), nil
}
