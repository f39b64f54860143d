// Copyright ©2026 The fixedpoint Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fixedpoint

// ActivationPolicy selects when an Anderson accelerator becomes live.
type ActivationPolicy int

const (
	// Immediate activates as soon as the outer iteration counter
	// reaches 2.
	Immediate ActivationPolicy = iota
	// ByIteration activates when the outer iteration counter reaches
	// Activation.StartIter.
	ByIteration
	// ByAccuracy activates when both outer residual norms drop below
	// the relative threshold derived from Activation.Accuracy.
	ByAccuracy
	// ByIterationOrAccuracy activates when either of the two preceding
	// conditions holds.
	ByIterationOrAccuracy
)

// Activation describes an activation policy. Activation is latching: once
// an accelerator has become live it stays live until Reset. Calls carrying
// data that a policy does not consume are no-ops.
type Activation struct {
	Policy ActivationPolicy

	// StartIter is the outer iteration at which ByIteration and
	// ByIterationOrAccuracy activate. It must be at least 2.
	StartIter int

	// Accuracy is the threshold ε of ByAccuracy and
	// ByIterationOrAccuracy. The accelerator activates when
	//  r_prim < ε + ε*max_norm_prim and r_dual < ε + ε*max_norm_dual.
	// It must not be negative.
	Accuracy float64
}

func (p Activation) validate() error {
	switch p.Policy {
	case ByIteration, ByIterationOrAccuracy:
		if p.StartIter < 2 {
			return ErrStartIteration
		}
	}
	switch p.Policy {
	case ByAccuracy, ByIterationOrAccuracy:
		if p.Accuracy < 0 {
			return ErrAccuracy
		}
	}
	return nil
}

// CheckActivation implements the Accelerator interface.
func (a *Anderson) CheckActivation(iter int) {
	if a.activated {
		return
	}
	switch a.Activation.Policy {
	case Immediate:
		a.activated = iter >= 2
	case ByIteration, ByIterationOrAccuracy:
		a.activated = iter >= a.Activation.StartIter
	}
}

// CheckActivationResiduals implements the Accelerator interface.
func (a *Anderson) CheckActivationResiduals(rPrim, rDual, maxPrim, maxDual float64) {
	if a.activated {
		return
	}
	switch a.Activation.Policy {
	case ByAccuracy, ByIterationOrAccuracy:
		eps := a.Activation.Accuracy
		a.activated = rPrim < eps+eps*maxPrim && rDual < eps+eps*maxDual
	}
}
