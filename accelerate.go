// Copyright ©2026 The fixedpoint Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fixedpoint

import (
	"time"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/lapack/lapack64"
)

// maxCoefNorm caps ‖η‖₂. Coefficients beyond it indicate a nearly singular
// least-squares problem and would produce a wild extrapolation.
const maxCoefNorm = 1e4

// Accelerate overwrites g with the extrapolated candidate
//  g - G η,
// where η solves the l×l normal equations assembled from the delta
// history, l = min(number of deltas pushed since the last restart, mem).
// iter is the outer solver's iteration counter and is used only for
// diagnostics. With fewer than 3 deltas, a singular system, or ‖η‖₂
// above the cap, g is left exactly as passed in and the failure is tagged
// in the diagnostics. x is never modified.
func (a *Anderson) Accelerate(g, x []float64, iter int) {
	if a.LogDiagnostics {
		defer func(start time.Time) {
			a.diag.AccelerateTime += time.Since(start)
		}(time.Now())
	}

	a.success = false
	l := min(a.iter, a.mem)
	if l < 3 {
		a.logFailure(iter, NotEnoughColumns)
		return
	}

	d := a.dim
	bi := blas64.Implementation()

	// Assemble the normal equations and the right-hand side. The delta
	// histories are stored one delta per row, so with row-major BLAS
	// the spec's column formulation
	//  M = Xᵀ F  (Type-I),  M = Fᵀ F  (Type-II)
	// becomes a NoTrans×Trans product of the row blocks.
	lhs := a.df
	if a.Type == TypeI {
		lhs = a.dx
	}
	bi.Dgemm(blas.NoTrans, blas.Trans, l, l, d, 1, lhs, d, a.df, d, 0, a.m, a.mem)
	bi.Dgemv(blas.NoTrans, l, d, 1, lhs, d, a.f, 1, 0, a.eta, 1)

	switch a.Regularizer {
	case Tikhonov:
		for i := 0; i < l; i++ {
			a.m[i*a.mem+i] += a.Lambda
		}
	case Frobenius:
		nx := floats.Norm(a.dx[:l*d], 2)
		nf := floats.Norm(a.df[:l*d], 2)
		beta := a.Lambda * (nx*nx + nf*nf)
		for i := 0; i < l; i++ {
			a.m[i*a.mem+i] += beta
		}
		if a.LogDiagnostics {
			a.diag.Damping = append(a.diag.Damping, beta)
		}
	}

	// Solve M η = rhs by LU with partial pivoting, the gesv equivalent.
	// Type-II yields a symmetric positive semidefinite M, but the
	// general factorization is used for all variants.
	lu := blas64.General{Rows: l, Cols: l, Stride: a.mem, Data: a.m}
	if !lapack64.Getrf(lu, a.ipiv[:l]) {
		a.logFailure(iter, SingularSystem)
		return
	}
	rhs := blas64.General{Rows: l, Cols: 1, Stride: 1, Data: a.eta[:l]}
	lapack64.Getrs(blas.NoTrans, lu, rhs, a.ipiv[:l])

	if floats.Norm(a.eta[:l], 2) > maxCoefNorm {
		a.logFailure(iter, UnreasonableCoefficients)
		return
	}

	// g ← g - G η. The candidate deltas sit one per row, so the spec's
	// column gemv is the transposed product here.
	bi.Dgemv(blas.Trans, l, d, -1, a.dg, d, a.eta, 1, 1, g, 1)
	a.success = true
}

// AffineWeights recovers from the coefficients η the weights α of the
// affine combination the extrapolation implicitly applies:
//  α[0] = η[0]
//  α[i] = η[i] - η[i-1]   for 0 < i < len(η)
//  α[n] = 1 - η[n-1],     n = len(η).
// The weights sum to 1 up to floating point. η must not be empty.
func AffineWeights(eta []float64) []float64 {
	n := len(eta)
	alpha := make([]float64, n+1)
	alpha[0] = eta[0]
	for i := 1; i < n; i++ {
		alpha[i] = eta[i] - eta[i-1]
	}
	alpha[n] = 1 - eta[n-1]
	return alpha
}
