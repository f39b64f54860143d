// Copyright ©2026 The fixedpoint Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fixedpoint

import (
	"errors"
	"time"

	"gonum.org/v1/gonum/floats"
)

// Settings holds various settings for
// driving a fixed-point iteration.
type Settings struct {
	// Tolerance specifies the error
	// tolerance for the final iterate.
	// The iteration stops when
	//  |x - g(x)| < Tolerance * (1 + |x|).
	// Tolerance must be smaller than one
	// and greater than the machine
	// epsilon.
	Tolerance float64

	// MaxIterations is the limit on the
	// number of iterations.
	// If it is zero, it will be set
	// to 1000.
	MaxIterations int
}

func defaultSettings(s *Settings) {
	if s.Tolerance == 0 {
		s.Tolerance = 1e-8
	}
	if s.MaxIterations == 0 {
		s.MaxIterations = 1000
	}
}

// Stats holds statistics about a fixed-point solve.
type Stats struct {
	// Iterations is the number of outer
	// iterations.
	Iterations int
	// Applies is the number of
	// evaluations of the fixed-point
	// map.
	Applies int
	// Accelerated is the number of
	// iterations in which the candidate
	// was replaced by an extrapolated
	// value.
	Accelerated int
	// Accepted and Declined count the
	// safeguarding decisions made by
	// the driver.
	Accepted, Declined int
	// ResidualNorm is the final norm of
	// the residual x - g(x).
	ResidualNorm float64
	// StartTime is an approximate time
	// when the solve was started.
	StartTime time.Time
	// Runtime is an approximate duration
	// of the solve.
	Runtime time.Duration
}

// Result holds the result of a fixed-point solve.
type Result struct {
	// X is the final iterate.
	X []float64
	// Stats holds the statistics of the
	// solve.
	Stats Stats
}

// ErrIterationLimit is returned by Solve when the iteration limit is
// reached before the residual drops below the tolerance.
var ErrIterationLimit = errors.New("fixedpoint: iteration limit reached")

// Solve runs the fixed-point iteration x_{k+1} = g(x_k) from the initial
// point x0, opportunistically replacing candidates with extrapolated
// values produced by accel. A nil accel disables acceleration.
//
// When accel is safeguarding, a successful extrapolation is validated at
// the next iteration: if the residual norm has grown beyond the
// accelerator's slack times the pre-extrapolation norm, the driver reverts
// to the retained plain candidate and continues from there.
//
// settings provide means for adjusting the iterative process. Zero values
// of the fields mean default values.
func Solve(g Ops, x0 []float64, accel Accelerator, settings Settings) (Result, error) {
	stats := Stats{StartTime: time.Now()}

	dim := len(x0)
	if g.Apply == nil {
		panic("fixedpoint: nil fixed-point map")
	}
	if dim == 0 {
		return Result{Stats: stats}, nil
	}

	defaultSettings(&settings)
	if settings.Tolerance < dlamchE || 1 <= settings.Tolerance {
		panic("fixedpoint: invalid tolerance")
	}

	if accel == nil {
		accel = None{}
	}
	if err := accel.Init(dim); err != nil {
		return Result{Stats: stats}, err
	}

	x := make([]float64, dim)
	copy(x, x0)
	gx := make([]float64, dim)
	f := make([]float64, dim)
	plain := make([]float64, dim)

	var (
		refNorm float64
		pending bool
		err     error
	)
	for k := 0; ; k++ {
		g.Apply(gx, x)
		stats.Applies++
		floats.SubTo(f, x, gx)
		fnorm := floats.Norm(f, 2)

		if pending {
			pending = false
			if accel.Safeguard(k, fnorm, refNorm) {
				stats.Accepted++
			} else {
				// The extrapolated step made things worse.
				// Fall back to the plain candidate retained
				// when it was taken.
				stats.Declined++
				copy(x, plain)
				g.Apply(gx, x)
				stats.Applies++
				floats.SubTo(f, x, gx)
				fnorm = floats.Norm(f, 2)
			}
		}

		stats.ResidualNorm = fnorm
		if fnorm < settings.Tolerance*(1+floats.Norm(x, 2)) {
			break
		}
		if stats.Iterations == settings.MaxIterations {
			err = ErrIterationLimit
			break
		}
		stats.Iterations++

		accel.CheckActivation(k)
		if accel.IsActive() {
			accel.UpdateHistory(gx, x, k)
			if accel.IsSafeguarding() {
				copy(plain, gx)
			}
			accel.Accelerate(gx, x, k)
			if accel.WasSuccessful() {
				stats.Accelerated++
				if accel.IsSafeguarding() {
					pending = true
					refNorm = fnorm
				}
			}
		}
		copy(x, gx)
	}

	stats.Runtime = time.Since(stats.StartTime)
	return Result{
		X:     x,
		Stats: stats,
	}, err
}
