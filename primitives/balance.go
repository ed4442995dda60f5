// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package primitives

import (
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

// BalanceLen is the number of bytes of a little-endian encoded balance.
const BalanceLen = 16

// Balance is an amount of tokens. Valid balances fit in 128 bits.
type Balance = uint256.Int

var (
	// ErrIntegerOverflow is returned by every checked arithmetic helper.
	ErrIntegerOverflow = errors.New("integer overflow")

	errInvalidBalance    = errors.New("invalid balance")
	errInvalidBalanceLen = errors.New("balance must be 16 bytes")

	maxBalance = new(uint256.Int).Sub(
		new(uint256.Int).Lsh(uint256.NewInt(1), 128),
		uint256.NewInt(1),
	)
)

// NewBalance returns [v] as a balance.
func NewBalance(v uint64) Balance { return *uint256.NewInt(v) }

// MaxBalance returns 2^128 - 1.
func MaxBalance() Balance { return *maxBalance }

func fitsBalance(z *uint256.Int) bool { return z.BitLen() <= 128 }

func SafeAddBalance(a, b Balance) (Balance, error) {
	var z uint256.Int
	if _, overflow := z.AddOverflow(&a, &b); overflow || !fitsBalance(&z) {
		return Balance{}, ErrIntegerOverflow
	}
	return z, nil
}

func SafeSubBalance(a, b Balance) (Balance, error) {
	if a.Lt(&b) {
		return Balance{}, ErrIntegerOverflow
	}
	var z uint256.Int
	z.Sub(&a, &b)
	return z, nil
}

func SafeMulBalance(a, b Balance) (Balance, error) {
	var z uint256.Int
	if _, overflow := z.MulOverflow(&a, &b); overflow || !fitsBalance(&z) {
		return Balance{}, ErrIntegerOverflow
	}
	return z, nil
}

// SaturatingAddBalance returns a+b, or MaxBalance if the sum does not fit.
func SaturatingAddBalance(a, b Balance) Balance {
	z, err := SafeAddBalance(a, b)
	if err != nil {
		return MaxBalance()
	}
	return z
}

// SaturatingSubBalance returns a-b, or zero if b > a.
func SaturatingSubBalance(a, b Balance) Balance {
	z, err := SafeSubBalance(a, b)
	if err != nil {
		return Balance{}
	}
	return z
}

// SafeGasToBalance returns the price of [gas] units at [gasPrice].
func SafeGasToBalance(gasPrice Balance, gas Gas) (Balance, error) {
	return SafeMulBalance(gasPrice, NewBalance(gas))
}

// SumBalances adds every balance in [values] with overflow detection.
func SumBalances(values ...Balance) (Balance, error) {
	var (
		total Balance
		err   error
	)
	for _, v := range values {
		total, err = SafeAddBalance(total, v)
		if err != nil {
			return Balance{}, err
		}
	}
	return total, nil
}

// BalanceFromString parses a base-10 balance.
func BalanceFromString(s string) (Balance, error) {
	b, ok := new(big.Int).SetString(s, 10)
	if !ok || b.Sign() < 0 {
		return Balance{}, errInvalidBalance
	}
	z, overflow := uint256.FromBig(b)
	if overflow || !fitsBalance(z) {
		return Balance{}, ErrIntegerOverflow
	}
	return *z, nil
}

// BalanceString formats [b] in base 10.
func BalanceString(b Balance) string { return b.ToBig().String() }

// BalanceToLE encodes [b] as 16 little-endian bytes, the layout guests use.
func BalanceToLE(b Balance) []byte {
	out := make([]byte, BalanceLen)
	binary.LittleEndian.PutUint64(out[:8], b[0])
	binary.LittleEndian.PutUint64(out[8:], b[1])
	return out
}

// BalanceFromLE decodes 16 little-endian bytes.
func BalanceFromLE(raw []byte) (Balance, error) {
	if len(raw) != BalanceLen {
		return Balance{}, errInvalidBalanceLen
	}
	var z Balance
	z[0] = binary.LittleEndian.Uint64(raw[:8])
	z[1] = binary.LittleEndian.Uint64(raw[8:])
	return z, nil
}
