// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package testcontracts holds the contracts used by the runtime tests and
// the standalone chain.
package testcontracts

import (
	"github.com/ava-labs/receiptvm/host"
)

const (
	TestContractName = "test_contract"
	CallerName       = "caller"
	CalleeName       = "callee"
)

// Programs returns every contract of this package.
func Programs() []*host.Program {
	return []*host.Program{
		testContract(),
		caller(),
		callee(),
	}
}

// NewRegistry returns a registry with every contract of this package.
func NewRegistry() *host.Registry {
	registry := host.NewRegistry()
	if err := registry.Register(Programs()...); err != nil {
		panic(err)
	}
	return registry
}

func TestContractCode() []byte { return host.NativeCode(TestContractName) }
func CallerCode() []byte       { return host.NativeCode(CallerName) }
func CalleeCode() []byte       { return host.NativeCode(CalleeName) }
