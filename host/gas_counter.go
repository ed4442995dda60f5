// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package host

import (
	"github.com/ava-labs/receiptvm/primitives"
)

// GasCounter tracks the gas a call burns and the gas it uses. Used gas
// includes gas prepaid to receipts the call creates, so burnt <= used.
type GasCounter struct {
	burntGas      primitives.Gas
	usedGas       primitives.Gas
	maxGasBurnt   primitives.Gas
	prepaidGas    primitives.Gas
	isView        bool
	regularOpCost primitives.Gas

	profile Profile
}

func NewGasCounter(maxGasBurnt, prepaidGas primitives.Gas, regularOpCost uint32, isView bool) *GasCounter {
	return &GasCounter{
		maxGasBurnt:   maxGasBurnt,
		prepaidGas:    prepaidGas,
		isView:        isView,
		regularOpCost: primitives.Gas(regularOpCost),
		profile:       make(Profile),
	}
}

func (g *GasCounter) deductGas(burnGas, useGas primitives.Gas) error {
	newBurnt, err := primitives.SafeAddGas(g.burntGas, burnGas)
	if err != nil {
		return newHostError(IntegerOverflow, "burnt gas")
	}
	newUsed, err := primitives.SafeAddGas(g.usedGas, useGas)
	if err != nil {
		return newHostError(IntegerOverflow, "used gas")
	}
	if newBurnt <= g.maxGasBurnt && (g.isView || newUsed <= g.prepaidGas) {
		g.burntGas = newBurnt
		g.usedGas = newUsed
		return nil
	}

	var res error
	if newBurnt > g.maxGasBurnt {
		res = &HostError{Kind: GasLimitExceeded}
	} else {
		res = &HostError{Kind: GasExceeded}
	}
	maxBurnt := g.maxGasBurnt
	if g.prepaidGas < maxBurnt {
		maxBurnt = g.prepaidGas
	}
	g.burntGas = minGas(newBurnt, maxBurnt)
	g.usedGas = minGas(newUsed, g.prepaidGas)
	return res
}

func minGas(a, b primitives.Gas) primitives.Gas {
	if a < b {
		return a
	}
	return b
}

// PayWasmGas charges [opcodes] regular operations.
func (g *GasCounter) PayWasmGas(opcodes uint32) error {
	value, err := primitives.SafeMulGas(primitives.Gas(opcodes), g.regularOpCost)
	if err != nil {
		return newHostError(IntegerOverflow, "wasm gas")
	}
	g.profile.add("wasm_instruction", value)
	return g.deductGas(value, value)
}

// PayBase charges a flat ext cost.
func (g *GasCounter) PayBase(name string, cost primitives.Gas) error {
	g.profile.add(name, cost)
	return g.deductGas(cost, cost)
}

// PayPer charges an ext cost [num] times.
func (g *GasCounter) PayPer(name string, cost primitives.Gas, num uint64) error {
	value, err := primitives.SafeMulGas(cost, num)
	if err != nil {
		return newHostError(IntegerOverflow, "%s x %d", name, num)
	}
	g.profile.add(name, value)
	return g.deductGas(value, value)
}

// PayActionBase burns the send fee of an action and uses its execution fee.
func (g *GasCounter) PayActionBase(name string, fee primitives.Fee, sir bool) error {
	burn := fee.SendFee(sir)
	use, err := primitives.SafeAddGas(burn, fee.ExecFee())
	if err != nil {
		return newHostError(IntegerOverflow, "%s fee", name)
	}
	g.profile.add(name, use)
	return g.deductGas(burn, use)
}

// PayActionPerByte is PayActionBase for [numBytes] bytes.
func (g *GasCounter) PayActionPerByte(name string, fee primitives.Fee, numBytes uint64, sir bool) error {
	burn, err := primitives.SafeMulGas(fee.SendFee(sir), numBytes)
	if err != nil {
		return newHostError(IntegerOverflow, "%s fee", name)
	}
	exec, err := primitives.SafeMulGas(fee.ExecFee(), numBytes)
	if err != nil {
		return newHostError(IntegerOverflow, "%s fee", name)
	}
	use, err := primitives.SafeAddGas(burn, exec)
	if err != nil {
		return newHostError(IntegerOverflow, "%s fee", name)
	}
	g.profile.add(name, use)
	return g.deductGas(burn, use)
}

// PayActionAccumulated charges precomputed burnt and used gas.
func (g *GasCounter) PayActionAccumulated(name string, burn, use primitives.Gas) error {
	g.profile.add(name, use)
	return g.deductGas(burn, use)
}

// PrepayGas reserves [use] for a receipt created by the call.
func (g *GasCounter) PrepayGas(use primitives.Gas) error {
	return g.deductGas(0, use)
}

func (g *GasCounter) BurntGas() primitives.Gas { return g.burntGas }

func (g *GasCounter) UsedGas() primitives.Gas { return g.usedGas }

func (g *GasCounter) Profile() Profile { return g.profile }
