// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package geofence

import (
	"fmt"

	"github.com/luxfi/lattice/v7/core/rlwe"
	"github.com/luxfi/lattice/v7/schemes/ckks"
)

// Evaluator performs arithmetic on encrypted values.
// Every result is a new derived value; inputs are never modified.
type Evaluator struct {
	ctx  *Context
	eval *ckks.Evaluator
}

// NewEvaluator creates a new evaluator with the context relinearization key
func NewEvaluator(ctx *Context) *Evaluator {
	return &Evaluator{
		ctx:  ctx,
		eval: ckks.NewEvaluator(ctx.params.ckks, ctx.evk),
	}
}

// ShallowCopy returns an evaluator with its own buffers, safe to use from
// another goroutine.
func (eval *Evaluator) ShallowCopy() *Evaluator {
	return NewEvaluator(eval.ctx)
}

func (eval *Evaluator) inputs(values ...*Ciphertext) error {
	if err := eval.ctx.check(values...); err != nil {
		return err
	}
	for _, v := range values {
		if err := v.live(); err != nil {
			return err
		}
	}
	return nil
}

func slots(a, b *Ciphertext) int {
	if a.slots > b.slots {
		return a.slots
	}
	return b.slots
}

// Sub returns a - b
func (eval *Evaluator) Sub(a, b *Ciphertext) (*Ciphertext, error) {
	if err := eval.inputs(a, b); err != nil {
		return nil, err
	}
	ct, err := eval.eval.SubNew(a.ct, b.ct)
	if err != nil {
		return nil, fmt.Errorf("sub: %w", err)
	}
	return eval.ctx.wrap(ct, slots(a, b), true), nil
}

// Add returns a + b
func (eval *Evaluator) Add(a, b *Ciphertext) (*Ciphertext, error) {
	if err := eval.inputs(a, b); err != nil {
		return nil, err
	}
	ct, err := eval.eval.AddNew(a.ct, b.ct)
	if err != nil {
		return nil, fmt.Errorf("add: %w", err)
	}
	return eval.ctx.wrap(ct, slots(a, b), true), nil
}

// Square returns a*a, relinearized. The scale is squared; call Rescale
// before combining with fresh values.
func (eval *Evaluator) Square(a *Ciphertext) (*Ciphertext, error) {
	if err := eval.inputs(a); err != nil {
		return nil, err
	}
	if a.Level() == 0 {
		return nil, ErrLevel
	}
	ct, err := eval.eval.MulRelinNew(a.ct, a.ct)
	if err != nil {
		return nil, fmt.Errorf("square: %w", err)
	}
	return eval.ctx.wrap(ct, a.slots, true), nil
}

// Rescale divides a by the last prime of its modulus chain, dropping one level.
func (eval *Evaluator) Rescale(a *Ciphertext) (*Ciphertext, error) {
	if err := eval.inputs(a); err != nil {
		return nil, err
	}
	if a.Level() == 0 {
		return nil, ErrLevel
	}
	out := rlwe.NewCiphertext(eval.ctx.params.ckks, a.ct.Degree(), a.Level()-1)
	if err := eval.eval.Rescale(a.ct, out); err != nil {
		return nil, fmt.Errorf("rescale: %w", err)
	}
	return eval.ctx.wrap(out, a.slots, true), nil
}

// Align returns a copy of v brought down to ref's level with ref's scale
// written over its own. The scales of both must already agree up to
// rescaling drift; the overwrite only removes that drift.
func (eval *Evaluator) Align(ref, v *Ciphertext) (*Ciphertext, error) {
	if err := eval.inputs(ref, v); err != nil {
		return nil, err
	}
	if v.Level() < ref.Level() {
		return nil, fmt.Errorf("%w: cannot raise level %d to %d", ErrLevel, v.Level(), ref.Level())
	}
	ct := v.ct.CopyNew()
	if diff := v.Level() - ref.Level(); diff > 0 {
		eval.eval.DropLevel(ct, diff)
	}
	ct.Scale = ref.ct.Scale
	return eval.ctx.wrap(ct, v.slots, true), nil
}
