// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package host

import (
	"github.com/ava-labs/receiptvm/primitives"
)

// VMContext is everything a contract can observe about the call it is
// executing.
type VMContext struct {
	// CurrentAccountID is the account whose contract is executing.
	CurrentAccountID string
	// SignerAccountID signed the transaction that led to this call.
	SignerAccountID string
	SignerAccountPK []byte
	// PredecessorAccountID is the immediate caller. It equals the signer
	// when the call comes straight from a transaction.
	PredecessorAccountID string
	Input                []byte

	BlockNumber    uint64
	BlockTimestamp uint64

	// AccountBalance excludes AttachedDeposit.
	AccountBalance       primitives.Balance
	AccountLockedBalance primitives.Balance
	StorageUsage         uint64

	AttachedDeposit primitives.Balance
	PrepaidGas      primitives.Gas
	RandomSeed      []byte

	// IsView restricts the call to read-only host functions.
	IsView bool

	// OutputDataReceivers will receive the result of this call. It is
	// only populated for the last action of a receipt.
	OutputDataReceivers []string
}
