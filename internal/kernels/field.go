// Package kernels contains numeric kernels built on the parallel
// package. They serve as realistic workloads for benchmarks and for
// checking the engine against sequential results.
package kernels

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// ErrLengthMismatch is returned when vector operands differ in length.
var ErrLengthMismatch = errors.New("length mismatch")

func checkLengths(a, b int) error {
	if a != b {
		return fmt.Errorf("%w: %d != %d", ErrLengthMismatch, a, b)
	}
	return nil
}

// FieldBatchMul sets dst[i] = a[i] * b[i].
func FieldBatchMul(dst, a, b []fr.Element, tune Tuning) error {
	if err := checkLengths(len(a), len(b)); err != nil {
		return err
	}
	if err := checkLengths(len(dst), len(a)); err != nil {
		return err
	}
	return tune.forRange(len(a), func(low, high int) error {
		for i := low; i < high; i++ {
			dst[i].Mul(&a[i], &b[i])
		}
		return nil
	})
}

// FieldInnerProduct returns the sum of a[i] * b[i].
func FieldInnerProduct(a, b []fr.Element, tune Tuning) (fr.Element, error) {
	if err := checkLengths(len(a), len(b)); err != nil {
		return fr.Element{}, err
	}
	return rangeReduce(tune, len(a),
		func(low, high int) (sum fr.Element, _ error) {
			var t fr.Element
			for i := low; i < high; i++ {
				t.Mul(&a[i], &b[i])
				sum.Add(&sum, &t)
			}
			return sum, nil
		},
		func(x, y fr.Element) (fr.Element, error) {
			return *x.Add(&x, &y), nil
		},
	)
}

// FieldPowers returns x^0, x^1, ..., x^(n-1). Each chunk starts from
// one exponentiation and continues by repeated multiplication.
func FieldPowers(x fr.Element, n int, tune Tuning) []fr.Element {
	powers := make([]fr.Element, n)
	_ = tune.forRange(n, func(low, high int) error {
		if low == high {
			return nil
		}
		powers[low].Exp(x, big.NewInt(int64(low)))
		for i := low + 1; i < high; i++ {
			powers[i].Mul(&powers[i-1], &x)
		}
		return nil
	})
	return powers
}
