// Copyright ©2026 The fixedpoint Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fixedpoint

import (
	"errors"
	"time"

	"gonum.org/v1/gonum/floats"
)

// BroydenType selects the least-squares formulation used to compute the
// extrapolation coefficients.
type BroydenType int

const (
	// TypeII forms the normal equations from the residual deltas,
	//  M = Fᵀ F, rhs = Fᵀ f.
	TypeII BroydenType = iota
	// TypeI forms the mixed normal equations
	//  M = Xᵀ F, rhs = Xᵀ f.
	TypeI
)

// Regularizer selects the diagonal damping added to the normal equations
// before the solve.
type Regularizer int

const (
	// NoRegularizer leaves the normal equations undamped.
	NoRegularizer Regularizer = iota
	// Tikhonov adds Lambda to the diagonal.
	Tikhonov
	// Frobenius adds Lambda*(‖X‖²_F + ‖F‖²_F) to the diagonal and
	// records the damping value in the diagnostics.
	Frobenius
)

// Memory selects what happens when the history buffer is full.
type Memory int

const (
	// RollingMemory overwrites the oldest delta and keeps going.
	RollingMemory Memory = iota
	// RestartedMemory drops the entire history and rebuilds it from
	// scratch, recording a restart in the diagnostics.
	RestartedMemory
)

var (
	ErrDimension      = errors.New("fixedpoint: dimension not positive")
	ErrDepth          = errors.New("fixedpoint: history depth less than 3")
	ErrStartIteration = errors.New("fixedpoint: activation start iteration less than 2")
	ErrAccuracy       = errors.New("fixedpoint: negative activation accuracy")
)

// Anderson implements Anderson acceleration for fixed-point iterations.
//
// It keeps a limited history of iterate, candidate and residual deltas and
// replaces the candidate g_k with
//  g_k - G η,
// where the coefficients η solve a small regularized least-squares problem
// against the residual history. When the solve fails or produces
// unreasonable coefficients the candidate is left untouched, so the outer
// solver proceeds with the plain fixed-point step.
//
// The zero value is ready for Init and selects Type-II Broyden updates, no
// regularization, rolling memory and immediate activation.
type Anderson struct {
	// Type selects the Broyden formulation.
	Type BroydenType

	// Regularizer selects the diagonal damping of the normal equations.
	Regularizer Regularizer

	// Lambda is the regularization scalar.
	// If it is zero, it will be set to 1e-8.
	Lambda float64

	// Memory selects the behavior when the history buffer is full.
	Memory Memory

	// Depth is the history capacity m. It must be at least 3 and is
	// clamped to the vector length.
	// If it is zero, it will be set to 5.
	Depth int

	// Activation selects when the accelerator becomes live.
	Activation Activation

	// Safeguarded enables residual-norm validation of accelerated
	// candidates through Safeguard.
	Safeguarded bool

	// Slack is the safeguarding factor τ. An accelerated candidate is
	// kept when its residual norm is at most Slack times the reference.
	// If it is zero, it will be set to 2.
	Slack float64

	// LogDiagnostics enables the append-only diagnostics records.
	// Counters are maintained regardless.
	LogDiagnostics bool

	dim int // Vector length.
	mem int // History capacity after clamping.

	// Number of deltas pushed since the last restart. The next delta is
	// written to row iter mod mem, and only rows below min(iter, mem)
	// are ever read.
	iter      int
	initPhase bool
	activated bool
	success   bool

	// Delta histories, mem rows of length dim under a flat slice with
	// leading dimension dim.
	dx, dg, df []float64

	m    []float64 // mem×mem normal-equations workspace.
	eta  []float64
	ipiv []int

	xPrev, gPrev, fPrev []float64
	f                   []float64

	diag Diagnostics
}

// Init implements the Accelerator interface. All buffers are allocated
// here with fixed capacity; no allocation happens during the iteration.
func (a *Anderson) Init(dim int) error {
	if dim <= 0 {
		return ErrDimension
	}
	if a.Depth == 0 {
		a.Depth = 5
	}
	if a.Depth < 3 {
		return ErrDepth
	}
	if err := a.Activation.validate(); err != nil {
		return err
	}
	if a.Lambda == 0 {
		a.Lambda = 1e-8
	}
	if a.Slack == 0 {
		a.Slack = 2
	}

	a.dim = dim
	a.mem = min(a.Depth, dim)

	a.dx = reuse(a.dx, a.mem*dim)
	a.dg = reuse(a.dg, a.mem*dim)
	a.df = reuse(a.df, a.mem*dim)
	a.m = reuse(a.m, a.mem*a.mem)
	a.eta = reuse(a.eta, a.mem)
	a.ipiv = reuseInts(a.ipiv, a.mem)
	a.xPrev = reuse(a.xPrev, dim)
	a.gPrev = reuse(a.gPrev, dim)
	a.fPrev = reuse(a.fPrev, dim)
	a.f = reuse(a.f, dim)

	a.Reset()
	a.diag = Diagnostics{}
	return nil
}

// UpdateHistory records the pair (g, x) of the current iteration. The
// first call only captures the previous-iterate triple; every later call
// pushes the deltas to the previous pair into the history. iter is the
// outer solver's iteration counter and is used only for diagnostics.
func (a *Anderson) UpdateHistory(g, x []float64, iter int) {
	if a.LogDiagnostics {
		defer func(start time.Time) {
			a.diag.UpdateHistoryTime += time.Since(start)
		}(time.Now())
	}

	floats.SubTo(a.f, x, g)
	if a.initPhase {
		copy(a.xPrev, x)
		copy(a.gPrev, g)
		copy(a.fPrev, a.f)
		a.initPhase = false
		return
	}

	j := a.iter % a.mem
	if j == 0 && a.iter != 0 && a.Memory == RestartedMemory {
		// The buffer has just wrapped. Drop the history and rebuild
		// it, starting with the delta pushed below.
		a.Restart()
		if a.LogDiagnostics {
			a.diag.Restarts = append(a.diag.Restarts, RestartRecord{Iter: iter, Reason: MemoryFull})
		}
	}

	off := j * a.dim
	floats.SubTo(a.dx[off:off+a.dim], x, a.xPrev)
	floats.SubTo(a.dg[off:off+a.dim], g, a.gPrev)
	floats.SubTo(a.df[off:off+a.dim], a.f, a.fPrev)

	copy(a.xPrev, x)
	copy(a.gPrev, g)
	copy(a.fPrev, a.f)
	a.iter++
}

// Safeguard implements the Accelerator interface. The reference norm is
// supplied by the outer solver; both norms are treated as opaque.
func (a *Anderson) Safeguard(iter int, norm, ref float64) bool {
	if !a.Safeguarded {
		return true
	}
	ok := norm <= a.Slack*ref
	if ok {
		a.diag.Accepted++
	} else {
		a.diag.Declined++
	}
	if a.LogDiagnostics {
		a.diag.Safeguards = append(a.diag.Safeguards, SafeguardRecord{
			Iter:  iter,
			Norm:  norm,
			Ref:   ref,
			Slack: a.Slack,
		})
	}
	return ok
}

// Reset wipes all history and unlatches activation. Allocations and
// diagnostics are preserved.
func (a *Anderson) Reset() {
	zero(a.dx)
	zero(a.dg)
	zero(a.df)
	zero(a.m)
	zero(a.eta)
	zero(a.xPrev)
	zero(a.gPrev)
	zero(a.fPrev)
	zero(a.f)
	a.iter = 0
	a.initPhase = true
	a.activated = false
	a.success = false
}

// Restart drops the accumulated history without touching the buffer
// contents. Stale rows are unreachable because rows are only read for
// indexes below min(iter, mem).
func (a *Anderson) Restart() {
	a.iter = 0
}

// WasSuccessful reports whether the most recent call to Accelerate
// modified the candidate.
func (a *Anderson) WasSuccessful() bool { return a.success }

// IsActive reports whether activation has latched.
func (a *Anderson) IsActive() bool { return a.activated }

// IsSafeguarding reports whether accelerated candidates must be validated
// through Safeguard.
func (a *Anderson) IsSafeguarding() bool { return a.Safeguarded }

// Mem returns the history capacity after clamping.
func (a *Anderson) Mem() int { return a.mem }

// Diagnostics returns the diagnostics records accumulated so far. The
// returned value is owned by the accelerator and valid until the next call
// to Init.
func (a *Anderson) Diagnostics() *Diagnostics { return &a.diag }
