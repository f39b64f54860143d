// Copyright ©2026 The fixedpoint Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fixedpoint

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/floats"
)

func randomVec(n int, rnd *rand.Rand) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = rnd.NormFloat64()
	}
	return v
}

func constVec(n int, c float64) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = c
	}
	return v
}

func clone(v []float64) []float64 {
	w := make([]float64, len(v))
	copy(w, v)
	return w
}

func TestInitValidation(t *testing.T) {
	for _, tc := range []struct {
		name string
		a    Anderson
		dim  int
		want error
	}{
		{name: "zero dim", dim: 0, want: ErrDimension},
		{name: "negative dim", dim: -1, want: ErrDimension},
		{name: "small depth", a: Anderson{Depth: 2}, dim: 4, want: ErrDepth},
		{name: "early start", a: Anderson{Activation: Activation{Policy: ByIteration, StartIter: 1}}, dim: 4, want: ErrStartIteration},
		{name: "negative accuracy", a: Anderson{Activation: Activation{Policy: ByAccuracy, Accuracy: -1}}, dim: 4, want: ErrAccuracy},
		{name: "union early start", a: Anderson{Activation: Activation{Policy: ByIterationOrAccuracy, Accuracy: 1e-4}}, dim: 4, want: ErrStartIteration},
	} {
		if err := tc.a.Init(tc.dim); !errors.Is(err, tc.want) {
			t.Errorf("Case %v: got error %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestInitDefaultsAndClamp(t *testing.T) {
	var a Anderson
	if err := a.Init(3); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if a.Depth != 5 {
		t.Errorf("depth not defaulted, got %v", a.Depth)
	}
	if a.Mem() != 3 {
		t.Errorf("mem not clamped to dim, got %v", a.Mem())
	}
	if a.Lambda != 1e-8 || a.Slack != 2 {
		t.Errorf("scalar defaults not applied, got λ=%v τ=%v", a.Lambda, a.Slack)
	}

	var b Anderson
	if err := b.Init(10); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if b.Mem() != 5 {
		t.Errorf("got mem %v, want 5", b.Mem())
	}
}

func TestUpdateHistoryInvariants(t *testing.T) {
	const dim = 6
	rnd := rand.New(rand.NewSource(1))

	a := Anderson{Depth: 4}
	if err := a.Init(dim); err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	// The first call only captures the previous-iterate triple.
	a.UpdateHistory(randomVec(dim, rnd), randomVec(dim, rnd), 0)
	if a.initPhase {
		t.Fatal("init phase not left after first call")
	}
	if a.iter != 0 {
		t.Fatalf("got iter %v after first call, want 0", a.iter)
	}

	for k := 1; k <= 9; k++ {
		x := randomVec(dim, rnd)
		g := randomVec(dim, rnd)
		xPrev := clone(a.xPrev)
		gPrev := clone(a.gPrev)

		a.UpdateHistory(g, x, k)

		if a.iter != k {
			t.Fatalf("push %v: got iter %v", k, a.iter)
		}
		j := (k - 1) % a.mem
		for i := 0; i < dim; i++ {
			if a.dx[j*dim+i] != x[i]-xPrev[i] {
				t.Fatalf("push %v: wrong Δx in row %v", k, j)
			}
			if a.dg[j*dim+i] != g[i]-gPrev[i] {
				t.Fatalf("push %v: wrong Δg in row %v", k, j)
			}
		}
		// Column consistency F = X - G over all valid rows.
		l := min(k, a.mem)
		for r := 0; r < l; r++ {
			for i := 0; i < dim; i++ {
				diff := a.df[r*dim+i] - (a.dx[r*dim+i] - a.dg[r*dim+i])
				if math.Abs(diff) > 1e-12 {
					t.Fatalf("push %v: row %v violates F = X - G by %v", k, r, diff)
				}
			}
		}
		if !floats.Equal(a.xPrev, x) || !floats.Equal(a.gPrev, g) {
			t.Fatalf("push %v: previous pair not updated", k)
		}
	}
}

func TestMemoryWrapRolling(t *testing.T) {
	const dim = 4
	a := Anderson{Depth: 3, LogDiagnostics: true}
	if err := a.Init(dim); err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	// x_k = 2^k, so the delta of push k is 2^(k-1) in every component.
	a.UpdateHistory(constVec(dim, 0), constVec(dim, 1), 0)
	for k := 1; k <= 7; k++ {
		a.UpdateHistory(constVec(dim, 0), constVec(dim, math.Pow(2, float64(k))), k)
		if a.iter != k {
			t.Fatalf("push %v: got iter %v", k, a.iter)
		}
	}

	if len(a.diag.Restarts) != 0 {
		t.Errorf("rolling memory logged %v restarts", len(a.diag.Restarts))
	}
	// Rows now hold the deltas of pushes 7, 5 and 6.
	for r, want := range []float64{64, 16, 32} {
		if a.dx[r*dim] != want {
			t.Errorf("row %v: got Δx %v, want %v", r, a.dx[r*dim], want)
		}
	}
}

func TestMemoryWrapRestarted(t *testing.T) {
	const dim = 4
	a := Anderson{Depth: 3, Memory: RestartedMemory, LogDiagnostics: true}
	if err := a.Init(dim); err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	a.UpdateHistory(constVec(dim, 0), constVec(dim, 1), 0)
	wantIter := []int{1, 2, 3, 1, 2, 3, 1}
	for k := 1; k <= 7; k++ {
		a.UpdateHistory(constVec(dim, 0), constVec(dim, float64(k+1)), k)
		if a.iter != wantIter[k-1] {
			t.Fatalf("push %v: got iter %v, want %v", k, a.iter, wantIter[k-1])
		}
	}

	if len(a.diag.Restarts) != 2 {
		t.Fatalf("got %v restarts, want 2", len(a.diag.Restarts))
	}
	for i, wantAt := range []int{4, 7} {
		rec := a.diag.Restarts[i]
		if rec.Iter != wantAt || rec.Reason != MemoryFull {
			t.Errorf("restart %v: got (%v, %v), want (%v, MemoryFull)", i, rec.Iter, rec.Reason, wantAt)
		}
	}
}

func TestResetClears(t *testing.T) {
	const dim = 5
	rnd := rand.New(rand.NewSource(2))

	var a Anderson
	if err := a.Init(dim); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	for k := 0; k <= 3; k++ {
		a.UpdateHistory(randomVec(dim, rnd), randomVec(dim, rnd), k)
	}
	a.CheckActivation(2)
	if !a.IsActive() {
		t.Fatal("accelerator not activated")
	}
	a.Accelerate(randomVec(dim, rnd), randomVec(dim, rnd), 4)

	a.Reset()

	if a.iter != 0 || !a.initPhase || a.IsActive() || a.WasSuccessful() {
		t.Errorf("state not reset: iter=%v initPhase=%v active=%v success=%v",
			a.iter, a.initPhase, a.IsActive(), a.WasSuccessful())
	}
	for _, buf := range [][]float64{a.dx, a.dg, a.df, a.m, a.eta, a.xPrev, a.gPrev, a.fPrev, a.f} {
		for _, v := range buf {
			if v != 0 {
				t.Fatal("buffer not zeroed by Reset")
			}
		}
	}

	// Right after a reset there is no history to extrapolate from.
	a.LogDiagnostics = true
	g := randomVec(dim, rnd)
	a.Accelerate(g, randomVec(dim, rnd), 5)
	if a.WasSuccessful() {
		t.Error("unexpected success with empty history")
	}
	if len(a.diag.Failures) != 1 || a.diag.Failures[0].Tag != NotEnoughColumns {
		t.Errorf("got failures %v, want a single NotEnoughColumns", a.diag.Failures)
	}
}

func TestRestartKeepsContents(t *testing.T) {
	const dim = 4
	rnd := rand.New(rand.NewSource(3))

	var a Anderson
	if err := a.Init(dim); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	for k := 0; k <= 2; k++ {
		a.UpdateHistory(randomVec(dim, rnd), randomVec(dim, rnd), k)
	}
	dx := clone(a.dx)

	a.Restart()

	if a.iter != 0 {
		t.Errorf("got iter %v after restart, want 0", a.iter)
	}
	if a.initPhase {
		t.Error("restart must not re-enter the init phase")
	}
	if !floats.Equal(a.dx, dx) {
		t.Error("restart modified buffer contents")
	}
}

func TestSafeguardAccounting(t *testing.T) {
	a := Anderson{Safeguarded: true, LogDiagnostics: true}
	if err := a.Init(4); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if !a.IsSafeguarding() {
		t.Fatal("IsSafeguarding is false")
	}

	if !a.Safeguard(3, 1.0, 0.6) {
		t.Error("declined a norm within slack")
	}
	if a.Safeguard(4, 1.3, 0.6) {
		t.Error("accepted a norm beyond slack")
	}
	if a.diag.Accepted != 1 || a.diag.Declined != 1 {
		t.Errorf("got counts accept=%v decline=%v, want 1/1", a.diag.Accepted, a.diag.Declined)
	}
	if len(a.diag.Safeguards) != 2 {
		t.Fatalf("got %v safeguard records, want 2", len(a.diag.Safeguards))
	}
	rec := a.diag.Safeguards[1]
	if rec.Iter != 4 || rec.Norm != 1.3 || rec.Ref != 0.6 || rec.Slack != 2 {
		t.Errorf("unexpected safeguard record %+v", rec)
	}

	// Without safeguarding every candidate is accepted and nothing is
	// recorded.
	var b Anderson
	if err := b.Init(4); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if !b.Safeguard(1, 100, 1) {
		t.Error("unsafeguarded accelerator declined a candidate")
	}
	if d := b.Diagnostics(); d.Accepted != 0 || d.Declined != 0 {
		t.Errorf("unsafeguarded accelerator counted decisions: %+v", d)
	}
}
