package verb_traj

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// DefaultSmoothingWindow is the RMS deviation, in radians, a smoothed joint
// trajectory may drift from the IK output.
const DefaultSmoothingWindow = 0.15

const maxSmoothingPasses = 200

// SmoothJoints smooths each joint independently. Every pass moves interior
// samples halfway toward the mean of their neighbours; passing stops before a
// joint's RMS deviation from its input would exceed tol. End points never move.
func SmoothJoints(joints [][]float64, tol float64) [][]float64 {
	out := make([][]float64, len(joints))
	for i, row := range joints {
		out[i] = append([]float64(nil), row...)
	}
	if len(joints) < 3 || tol <= 0 {
		return out
	}

	dof := len(joints[0])
	for _, row := range joints {
		if len(row) != dof {
			return out
		}
	}

	for j := 0; j < dof; j++ {
		orig := make([]float64, len(joints))
		for i, row := range joints {
			orig[i] = row[j]
		}
		smoothed := smoothSeries(orig, tol)
		for i := range out {
			out[i][j] = smoothed[i]
		}
	}
	return out
}

func smoothSeries(orig []float64, tol float64) []float64 {
	n := len(orig)
	cur := append([]float64(nil), orig...)
	next := make([]float64, n)
	for pass := 0; pass < maxSmoothingPasses; pass++ {
		next[0], next[n-1] = cur[0], cur[n-1]
		for i := 1; i < n-1; i++ {
			next[i] = 0.5*cur[i] + 0.25*(cur[i-1]+cur[i+1])
		}
		if rms(orig, next) > tol {
			break
		}
		if floats.EqualApprox(cur, next, 1e-12) {
			break
		}
		cur, next = next, cur
	}
	return cur
}

func rms(a, b []float64) float64 {
	return floats.Distance(a, b, 2) / math.Sqrt(float64(len(a)))
}
