// Copyright ©2026 The fixedpoint Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fixedpoint provides Anderson acceleration for fixed-point
// iterations.
//
// A fixed-point iteration produces iterates
//  x_{k+1} = g(x_k)
// seeking x* with g(x*) = x*. The residual of an iterate is f = x - g(x),
// zero at a fixed point. Given the sequence of pairs (x_k, g_k) produced by
// an outer solver, an Accelerator may overwrite the candidate g_k in place
// with an extrapolated value that converges faster than the underlying
// iteration. Whenever the extrapolation cannot be trusted the candidate is
// left untouched, so the iteration degrades gracefully to the plain
// fixed-point map.
package fixedpoint

// Ops describes the fixed-point map g of
// the iteration x_{k+1} = g(x_k).
type Ops struct {
	// Apply computes g(x) and stores the
	// result into dst.
	// It must be non-nil.
	Apply func(dst, x []float64)
}

// Accelerator is an extrapolation scheme for a fixed-point iteration.
//
// The outer solver drives an Accelerator with three calls per iteration:
// CheckActivation, then UpdateHistory with the current pair (g, x), then
// Accelerate which may overwrite g in place with an extrapolated candidate.
// The vectors passed to UpdateHistory and Accelerate are borrowed, and only
// g may be modified. An Accelerator is not safe for concurrent use.
type Accelerator interface {
	// Init initializes the accelerator for vectors of length dim. It
	// must be called before any other method and may be called again to
	// begin a new solve.
	Init(dim int) error

	// CheckActivation may latch the accelerator active based on the
	// outer iteration counter. Once active, an accelerator stays active
	// until Reset.
	CheckActivation(iter int)

	// CheckActivationResiduals may latch the accelerator active based
	// on the outer solver's primal and dual residual norms. Policies
	// that do not consume residual norms ignore the call.
	CheckActivationResiduals(rPrim, rDual, maxPrim, maxDual float64)

	// UpdateHistory records the pair (g, x) of the current iteration.
	UpdateHistory(g, x []float64, iter int)

	// Accelerate overwrites g with an extrapolated candidate if a
	// trustworthy one is available, and otherwise leaves g untouched.
	// It never modifies x.
	Accelerate(g, x []float64, iter int)

	// Safeguard reports whether an accelerated candidate with residual
	// norm norm should be kept, given the reference norm of the
	// non-accelerated step. It always accepts when safeguarding is
	// disabled.
	Safeguard(iter int, norm, ref float64) bool

	// WasSuccessful reports whether the most recent call to Accelerate
	// modified the candidate.
	WasSuccessful() bool

	// IsActive reports whether activation has latched.
	IsActive() bool

	// IsSafeguarding reports whether accelerated candidates must be
	// validated through Safeguard.
	IsSafeguarding() bool

	// Mem returns the history capacity.
	Mem() int

	// Reset wipes all recorded history and unlatches activation.
	Reset()
}

// None is an Accelerator that never accelerates. It enables uniform
// dispatch in an outer solver when acceleration is disabled.
type None struct{}

func (None) Init(dim int) error { return nil }

func (None) CheckActivation(iter int) {}

func (None) CheckActivationResiduals(rPrim, rDual, maxPrim, maxDual float64) {}

func (None) UpdateHistory(g, x []float64, iter int) {}

func (None) Accelerate(g, x []float64, iter int) {}

func (None) Safeguard(iter int, norm, ref float64) bool { return true }

func (None) WasSuccessful() bool { return false }

func (None) IsActive() bool { return false }

func (None) IsSafeguarding() bool { return false }

func (None) Mem() int { return 0 }

func (None) Reset() {}

func reuse(v []float64, n int) []float64 {
	if cap(v) < n {
		return make([]float64, n)
	}
	return v[:n]
}

func reuseInts(v []int, n int) []int {
	if cap(v) < n {
		return make([]int, n)
	}
	return v[:n]
}

func zero(v []float64) {
	for i := range v {
		v[i] = 0
	}
}

const dlamchE = 1.0 / (1 << 53)
