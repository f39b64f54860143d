// Copyright ©2026 The fixedpoint Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fixedpoint_test

import (
	"fmt"

	"github.com/vladimir-ch/fixedpoint"
)

func ExampleSolve() {
	// Affine contraction with fixed point [2, 4, 5].
	rates := []float64{0.5, 0.25, 0.8}
	shift := []float64{1, 3, 1}
	g := fixedpoint.Ops{Apply: func(dst, x []float64) {
		for i := range dst {
			dst[i] = rates[i]*x[i] + shift[i]
		}
	}}

	res, err := fixedpoint.Solve(g, []float64{0, 0, 0}, &fixedpoint.Anderson{}, fixedpoint.Settings{
		Tolerance: 1e-12,
	})
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Printf("Solution: %.4f\n", res.X)

	// Output:
	// Solution: [2.0000 4.0000 5.0000]
}
