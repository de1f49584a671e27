// Package geofence implements approximate homomorphic arithmetic (CKKS) for
// privacy-preserving geofence membership tests.
//
// Coordinates, band boundaries and zone centroids are encrypted under a single
// Context. Evaluation works on encrypted values only; the few plaintext reveals
// (signs of differences and threshold margins) go through a Decryptor.
//
// This implementation is built on luxfi/lattice primitives:
//   - CKKS encoding of real vectors into slots
//   - RLWE public-key encryption
//   - relinearized multiplication and rescaling
//
// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause
package geofence

import (
	"errors"
	"fmt"
	"math"

	"github.com/luxfi/lattice/v7/core/rlwe"
	"github.com/luxfi/lattice/v7/schemes/ckks"
)

var (
	// ErrParameterMismatch is returned when values produced under different
	// contexts are combined.
	ErrParameterMismatch = errors.New("geofence: scheme parameter mismatch")
	// ErrConsumed is returned when a derived value is reused after it was decrypted.
	ErrConsumed = errors.New("geofence: derived value already consumed")
	// ErrLevel is returned when a value has no level left to rescale.
	ErrLevel = errors.New("geofence: level exhausted")
	// ErrSlots is returned when a vector does not fit in the available slots.
	ErrSlots = errors.New("geofence: vector exceeds slot count")
)

// Parameters defines the CKKS parameter set
type Parameters struct {
	ckks ckks.Parameters
}

// ParametersLiteral is a user-friendly parameter specification
type ParametersLiteral struct {
	// LogN is log2 of the ring degree
	LogN int
	// LogQ holds the bit sizes of the ciphertext moduli, first prime first
	LogQ []int
	// LogP holds the bit sizes of the key-switching moduli
	LogP []int
	// LogDefaultScale is log2 of the encoding scale
	LogDefaultScale int
}

// Standard parameter sets
var (
	// PN13QP206 is the default set. Two rescalable levels at scale 2^45
	// leave about 30 bits of fractional precision after the distance chain.
	// N=8192, logQP=206
	PN13QP206 = ParametersLiteral{
		LogN:            13,
		LogQ:            []int{55, 45, 45},
		LogP:            []int{61},
		LogDefaultScale: 45,
	}

	// PN13QP200 mirrors the 60/40/40/60 chain at scale 2^40.
	// N=8192, logQP=200
	PN13QP200 = ParametersLiteral{
		LogN:            13,
		LogQ:            []int{60, 40, 40},
		LogP:            []int{60},
		LogDefaultScale: 40,
	}

	// PN14QP271 trades speed for precision. Used by noise studies.
	// N=16384, logQP=271
	PN14QP271 = ParametersLiteral{
		LogN:            14,
		LogQ:            []int{60, 50, 50, 50},
		LogP:            []int{61},
		LogDefaultScale: 50,
	}
)

// NewParametersFromLiteral creates Parameters from a literal specification
func NewParametersFromLiteral(lit ParametersLiteral) (params Parameters, err error) {
	params.ckks, err = ckks.NewParametersFromLiteral(ckks.ParametersLiteral{
		LogN:            lit.LogN,
		LogQ:            lit.LogQ,
		LogP:            lit.LogP,
		LogDefaultScale: lit.LogDefaultScale,
	})
	if err != nil {
		return params, fmt.Errorf("ckks parameters: %w", err)
	}
	return params, nil
}

// N returns the ring degree
func (p Parameters) N() int {
	return p.ckks.N()
}

// Slots returns the number of real slots per ciphertext
func (p Parameters) Slots() int {
	return p.ckks.MaxSlots()
}

// MaxLevel returns the level of fresh encryptions
func (p Parameters) MaxLevel() int {
	return p.ckks.MaxLevel()
}

// LogScale returns log2 of the default encoding scale
func (p Parameters) LogScale() float64 {
	return math.Log2(p.ckks.DefaultScale().Float64())
}

// LogQP returns the total modulus size in bits
func (p Parameters) LogQP() float64 {
	return p.ckks.LogQP()
}

// KeySet holds the keys of a context
type KeySet struct {
	SK  *rlwe.SecretKey
	PK  *rlwe.PublicKey
	RLK *rlwe.RelinearizationKey
}

// KeyGenerator generates CKKS keys
type KeyGenerator struct {
	params Parameters
	kgen   *rlwe.KeyGenerator
}

// NewKeyGenerator creates a new key generator
func NewKeyGenerator(params Parameters) *KeyGenerator {
	return &KeyGenerator{
		params: params,
		kgen:   rlwe.NewKeyGenerator(params.ckks),
	}
}

// GenKeySet generates a secret key with its public and relinearization keys
func (kg *KeyGenerator) GenKeySet() *KeySet {
	sk, pk := kg.kgen.GenKeyPairNew()
	return &KeySet{
		SK:  sk,
		PK:  pk,
		RLK: kg.kgen.GenRelinearizationKeyNew(sk),
	}
}

// Context binds a parameter set to one key set. It is built once and passed
// explicitly to every component; values from different contexts never mix.
type Context struct {
	params Parameters
	keys   *KeySet
	evk    *rlwe.MemEvaluationKeySet
}

// NewContext generates fresh keys for params.
func NewContext(params Parameters) *Context {
	return NewContextWithKeys(params, NewKeyGenerator(params).GenKeySet())
}

// NewContextWithKeys wraps an existing key set.
func NewContextWithKeys(params Parameters, keys *KeySet) *Context {
	return &Context{
		params: params,
		keys:   keys,
		evk:    rlwe.NewMemEvaluationKeySet(keys.RLK),
	}
}

// NewContextFromLiteral is a convenience for NewParametersFromLiteral followed by NewContext.
func NewContextFromLiteral(lit ParametersLiteral) (*Context, error) {
	params, err := NewParametersFromLiteral(lit)
	if err != nil {
		return nil, err
	}
	return NewContext(params), nil
}

// Parameters returns the parameter set of the context
func (c *Context) Parameters() Parameters {
	return c.params
}

func (c *Context) check(values ...*Ciphertext) error {
	for _, v := range values {
		if v == nil {
			return fmt.Errorf("%w: nil value", ErrParameterMismatch)
		}
		if v.ctx != c {
			return ErrParameterMismatch
		}
	}
	return nil
}
