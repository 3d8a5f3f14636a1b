package kernels

// This is a simplified heat distribution simulation, based on an
// implementation by Wilfried Verachtert.
//
// See https://en.wikipedia.org/wiki/Heat_equation for some theoretical
// background.

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// NewHeatGrid returns an (m+2)x(n+2) matrix filled with init, with a
// border of the given top, right, bottom, and left temperatures.
func NewHeatGrid(m, n int, init, t, r, b, l float64) *mat.Dense {
	m += 2
	n += 2
	data := make([]float64, m*n)
	for i := range data {
		data[i] = init
	}
	u := mat.NewDense(m, n, data)
	for i := 0; i < n; i++ {
		u.Set(0, i, t)
		u.Set(m-1, i, b)
	}
	for i := 0; i < m; i++ {
		u.Set(i, 0, l)
		u.Set(i, n-1, r)
	}
	return u
}

// HeatStep computes one Jacobi step from v into the interior of u.
func HeatStep(u, v *mat.Dense, tune Tuning) error {
	rows, cols := u.Dims()
	return tune.forRange(rows-2, func(low, high int) error {
		for row := low + 1; row < high+1; row++ {
			uRow := u.RawRowView(row)
			vRow := v.RawRowView(row)
			vRowUp := v.RawRowView(row - 1)
			vRowDn := v.RawRowView(row + 1)
			for col := 1; col < cols-1; col++ {
				uRow[col] = (vRowUp[col] + vRowDn[col] + vRow[col-1] + vRow[col+1]) / 4.0
			}
		}
		return nil
	})
}

// MaxDiff returns the largest absolute difference between the
// interiors of m1 and m2.
func MaxDiff(m1, m2 *mat.Dense, tune Tuning) (float64, error) {
	rows, cols := m1.Dims()
	return rangeReduce(tune, rows-2,
		func(low, high int) (result float64, _ error) {
			for row := low + 1; row < high+1; row++ {
				r1 := m1.RawRowView(row)
				r2 := m2.RawRowView(row)
				for col := 1; col < cols-1; col++ {
					result = math.Max(result, math.Abs(r1[col]-r2[col]))
				}
			}
			return result, nil
		},
		func(x, y float64) (float64, error) { return math.Max(x, y), nil },
	)
}

// HeatSimulation runs steps pairs of Jacobi steps on u and returns the
// final difference between the last two iterates.
func HeatSimulation(u *mat.Dense, steps int, tune Tuning) (float64, error) {
	v := mat.DenseCopyOf(u)
	for step := 0; step < steps; step++ {
		if err := HeatStep(v, u, tune); err != nil {
			return 0, err
		}
		if err := HeatStep(u, v, tune); err != nil {
			return 0, err
		}
	}
	return MaxDiff(u, v, tune)
}
