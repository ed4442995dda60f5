// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package primitives

import (
	safemath "github.com/ava-labs/avalanchego/utils/math"
)

// Gas is a unit of metered computation.
type Gas = uint64

func SafeAddGas(a, b Gas) (Gas, error) {
	v, err := safemath.Add64(a, b)
	if err != nil {
		return 0, ErrIntegerOverflow
	}
	return v, nil
}

func SafeMulGas(a, b Gas) (Gas, error) {
	v, err := safemath.Mul64(a, b)
	if err != nil {
		return 0, ErrIntegerOverflow
	}
	return v, nil
}

func SafeSubGas(a, b Gas) (Gas, error) {
	if b > a {
		return 0, ErrIntegerOverflow
	}
	return a - b, nil
}

func SaturatingSubGas(a, b Gas) Gas {
	if b > a {
		return 0
	}
	return a - b
}

// SumGas adds every value in [values] with overflow detection.
func SumGas(values ...Gas) (Gas, error) {
	var (
		total Gas
		err   error
	)
	for _, v := range values {
		total, err = SafeAddGas(total, v)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
