// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package host

import (
	"sort"

	"github.com/ava-labs/receiptvm/primitives"
)

type ReturnDataKind uint8

const (
	ReturnNone ReturnDataKind = iota
	ReturnValue
	// ReturnReceiptIndex defers the result to a receipt created by the call.
	ReturnReceiptIndex
)

// ReturnData is what a function call hands back to its caller.
type ReturnData struct {
	Kind         ReturnDataKind
	Value        []byte
	ReceiptIndex uint64
}

func ReturnDataValue(value []byte) ReturnData {
	return ReturnData{Kind: ReturnValue, Value: value}
}

func ReturnDataReceiptIndex(index uint64) ReturnData {
	return ReturnData{Kind: ReturnReceiptIndex, ReceiptIndex: index}
}

type PromiseResultKind uint8

const (
	PromiseNotReady PromiseResultKind = iota
	PromiseSuccessful
	PromiseFailed
)

// PromiseResult is the outcome of a receipt this call depends on.
type PromiseResult struct {
	Kind PromiseResultKind
	Data []byte
}

// Profile attributes gas to the cost that charged it.
type Profile map[string]primitives.Gas

func (p Profile) add(name string, gas primitives.Gas) {
	p[name] += gas
}

// Merge adds every entry of [other] to [p].
func (p Profile) Merge(other Profile) {
	for name, gas := range other {
		p[name] += gas
	}
}

// Names returns the profiled costs in lexical order.
func (p Profile) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// VMOutcome is the effect of a function call on its account.
type VMOutcome struct {
	Balance      primitives.Balance
	StorageUsage uint64
	ReturnData   ReturnData
	BurntGas     primitives.Gas
	UsedGas      primitives.Gas
	Logs         []string
	Profile      Profile
}
