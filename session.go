// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package geofence

// Session bundles the encryptor, decryptor and evaluator of one context.
// A Session is not safe for concurrent use; give each goroutine its own
// ShallowCopy.
type Session struct {
	Enc  *Encryptor
	Dec  *Decryptor
	Eval *Evaluator
}

// NewSession creates a session for ctx
func NewSession(ctx *Context) *Session {
	return &Session{
		Enc:  NewEncryptor(ctx),
		Dec:  NewDecryptor(ctx),
		Eval: NewEvaluator(ctx),
	}
}

// Context returns the context the session was built from
func (s *Session) Context() *Context {
	return s.Eval.ctx
}

// ShallowCopy returns a session sharing keys but not buffers
func (s *Session) ShallowCopy() *Session {
	return &Session{
		Enc:  s.Enc.ShallowCopy(),
		Dec:  s.Dec.ShallowCopy(),
		Eval: s.Eval.ShallowCopy(),
	}
}

// Sign decrypts a - b and returns its value. Both a and b stay reusable.
func (s *Session) Sign(a, b *Ciphertext) (float64, error) {
	d, err := s.Eval.Sub(a, b)
	if err != nil {
		return 0, err
	}
	return s.Dec.DecryptScalar(d)
}
