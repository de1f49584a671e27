// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package geofence

// SquaredDistance returns (qLat-cLat)^2 + (qLon-cLon)^2 in squared degrees,
// rescaled once and aligned so the two terms share level and scale.
// Inputs may be scalars or slot vectors of the same width.
func (eval *Evaluator) SquaredDistance(qLat, qLon, cLat, cLon *Ciphertext) (*Ciphertext, error) {
	dLat, err := eval.Sub(qLat, cLat)
	if err != nil {
		return nil, err
	}
	dLon, err := eval.Sub(qLon, cLon)
	if err != nil {
		return nil, err
	}
	latSq, err := eval.squareRescale(dLat)
	if err != nil {
		return nil, err
	}
	lonSq, err := eval.squareRescale(dLon)
	if err != nil {
		return nil, err
	}
	lonSq, err = eval.Align(latSq, lonSq)
	if err != nil {
		return nil, err
	}
	return eval.Add(latSq, lonSq)
}

func (eval *Evaluator) squareRescale(d *Ciphertext) (*Ciphertext, error) {
	sq, err := eval.Square(d)
	if err != nil {
		return nil, err
	}
	return eval.Rescale(sq)
}

// Margin returns threshold - d2, with the threshold encrypted at the level and
// scale of d2 and replicated over its slots.
func (eval *Evaluator) Margin(enc *Encryptor, d2 *Ciphertext, threshold float64) (*Ciphertext, error) {
	values := make([]float64, d2.Slots())
	for i := range values {
		values[i] = threshold
	}
	t, err := enc.EncryptLike(values, d2)
	if err != nil {
		return nil, err
	}
	return eval.Sub(t, d2)
}
