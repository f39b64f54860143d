// Copyright ©2026 The fixedpoint Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fixedpoint

import "time"

// RestartReason tags an entry of the restart log.
type RestartReason int

const (
	// MemoryFull records that a full history buffer was dropped under
	// RestartedMemory.
	MemoryFull RestartReason = iota
)

// FailureTag tags an acceleration attempt that left the candidate
// untouched.
type FailureTag int

const (
	// NotEnoughColumns: fewer than 3 deltas were available.
	NotEnoughColumns FailureTag = iota
	// SingularSystem: the LU factorization of the normal equations
	// failed.
	SingularSystem
	// UnreasonableCoefficients: the solved coefficients exceeded the
	// magnitude cap.
	UnreasonableCoefficients
)

// RestartRecord is an entry of the restart log.
type RestartRecord struct {
	Iter   int
	Reason RestartReason
}

// FailureRecord is an entry of the acceleration-status log.
type FailureRecord struct {
	Iter int
	Tag  FailureTag
}

// SafeguardRecord is an entry of the safeguarding log.
type SafeguardRecord struct {
	Iter      int
	Norm, Ref float64
	Slack     float64
}

// Diagnostics holds the append-only records of an Anderson accelerator.
// Record appends are gated by Anderson.LogDiagnostics; the accept/decline
// counters are maintained unconditionally. The records are not consumed by
// the accelerator itself and grow without bound while logging is enabled,
// so a long-running solver should drain or disable them.
type Diagnostics struct {
	// Restarts records every dropped history.
	Restarts []RestartRecord
	// Failures records every acceleration attempt that left the
	// candidate untouched.
	Failures []FailureRecord
	// Safeguards records every safeguarding decision.
	Safeguards []SafeguardRecord
	// Damping records the diagonal damping applied by the Frobenius
	// regularizer.
	Damping []float64

	// Accepted and Declined count the safeguarding decisions.
	Accepted, Declined int

	// UpdateHistoryTime and AccelerateTime accumulate the wall-clock
	// time spent in the two entry points while logging is enabled.
	UpdateHistoryTime time.Duration
	AccelerateTime    time.Duration
}

func (a *Anderson) logFailure(iter int, tag FailureTag) {
	if a.LogDiagnostics {
		a.diag.Failures = append(a.diag.Failures, FailureRecord{Iter: iter, Tag: tag})
	}
}
