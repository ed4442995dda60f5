// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package host

import (
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"

	"github.com/ava-labs/receiptvm/primitives"
)

// ContractCode is deployed code together with its hash.
type ContractCode struct {
	Code []byte
	Hash ids.ID
}

func NewContractCode(code []byte) *ContractCode {
	return &ContractCode{Code: code, Hash: hashing.ComputeHash256Array(code)}
}

// Engine runs contract methods.
type Engine interface {
	// Run calls [method] of [code]. The outcome is returned along with the
	// error when the failure happened after the call started, so the gas
	// burnt so far can be charged.
	Run(
		code *ContractCode,
		method string,
		ext External,
		ctx *VMContext,
		config *primitives.VMConfig,
		fees *primitives.RuntimeFeesConfig,
		promiseResults []PromiseResult,
	) (*VMOutcome, error)

	// Precompile prepares [code] so later runs don't pay for it.
	Precompile(code *ContractCode, config *primitives.VMConfig) error
}
