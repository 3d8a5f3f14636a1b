package kernels

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func sequentialHeatStep(u, v *mat.Dense) {
	rows, cols := u.Dims()
	for row := 1; row < rows-1; row++ {
		for col := 1; col < cols-1; col++ {
			u.Set(row, col, (v.At(row-1, col)+v.At(row+1, col)+v.At(row, col-1)+v.At(row, col+1))/4.0)
		}
	}
}

func TestNewHeatGrid(t *testing.T) {
	u := NewHeatGrid(4, 3, 75, 0, 100, 50, 25)
	rows, cols := u.Dims()
	assert.Equal(t, 6, rows)
	assert.Equal(t, 5, cols)
	assert.Equal(t, 75.0, u.At(2, 2))
	assert.Equal(t, 0.0, u.At(0, 2))
	assert.Equal(t, 50.0, u.At(5, 2))
	assert.Equal(t, 25.0, u.At(2, 0))
	assert.Equal(t, 100.0, u.At(2, 4))
}

func TestHeatStepMatchesSequential(t *testing.T) {
	v := NewHeatGrid(100, 80, 75, 0, 100, 100, 100)
	want := mat.DenseCopyOf(v)
	sequentialHeatStep(want, v)
	for _, tune := range tunings {
		got := mat.DenseCopyOf(v)
		require.NoError(t, HeatStep(got, v, tune))
		assert.True(t, mat.Equal(want, got), "tuning %+v", tune)
	}
}

func TestMaxDiff(t *testing.T) {
	u := NewHeatGrid(50, 50, 0, 0, 0, 0, 0)
	v := mat.DenseCopyOf(u)
	v.Set(30, 20, -2.5)
	v.Set(40, 10, 1.5)
	d, err := MaxDiff(u, v, Tuning{MinIterationsPerThread: 7})
	require.NoError(t, err)
	assert.Equal(t, 2.5, d)
}

func TestHeatSimulationConverges(t *testing.T) {
	u := NewHeatGrid(32, 32, 75, 0, 100, 100, 100)
	first, err := HeatSimulation(u, 10, Tuning{})
	require.NoError(t, err)
	second, err := HeatSimulation(u, 200, Tuning{})
	require.NoError(t, err)
	assert.Less(t, second, first)
	assert.False(t, math.IsNaN(second))
}
