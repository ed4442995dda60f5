// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package primitives

import (
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
)

// StateChangeCauseKind is the reason a key changed.
type StateChangeCauseKind uint8

const (
	CauseNotWritableToDisk StateChangeCauseKind = iota
	CauseInitialState
	CauseTransactionProcessing
	CauseActionReceiptProcessingStarted
	CauseActionReceiptGasReward
	CauseReceiptProcessing
	CausePostponedReceipt
	CauseUpdatedDelayedReceipts
)

func (k StateChangeCauseKind) String() string {
	switch k {
	case CauseNotWritableToDisk:
		return "NotWritableToDisk"
	case CauseInitialState:
		return "InitialState"
	case CauseTransactionProcessing:
		return "TransactionProcessing"
	case CauseActionReceiptProcessingStarted:
		return "ActionReceiptProcessingStarted"
	case CauseActionReceiptGasReward:
		return "ActionReceiptGasReward"
	case CauseReceiptProcessing:
		return "ReceiptProcessing"
	case CausePostponedReceipt:
		return "PostponedReceipt"
	case CauseUpdatedDelayedReceipts:
		return "UpdatedDelayedReceipts"
	default:
		return "Unknown"
	}
}

// StateChangeCause pairs a kind with the transaction or receipt hash it
// refers to, if any.
type StateChangeCause struct {
	Kind StateChangeCauseKind `serialize:"true" json:"kind"`
	Hash ids.ID               `serialize:"true" json:"hash"`
}

func (c StateChangeCause) String() string {
	if c.Hash == ids.Empty {
		return c.Kind.String()
	}
	return fmt.Sprintf("%s(%s)", c.Kind, c.Hash)
}

// StateChangeValue is the value of a key after a change. Deleted marks a
// removal.
type StateChangeValue struct {
	Value   []byte `serialize:"true" json:"value"`
	Deleted bool   `serialize:"true" json:"deleted"`
}

type StateChangeWithCause struct {
	Cause StateChangeCause `serialize:"true" json:"cause"`
	Value StateChangeValue `serialize:"true" json:"value"`
}

// StateChangesForKey lists every committed change to a key in order.
type StateChangesForKey struct {
	TrieKey []byte                 `serialize:"true" json:"trieKey"`
	Changes []StateChangeWithCause `serialize:"true" json:"changes"`
}
