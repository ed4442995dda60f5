// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package host

import (
	"github.com/ava-labs/receiptvm/primitives"
)

// External is the runtime capability a contract call works against: the
// contract's storage and the receipts the call creates. Receipt indices
// are local to one call and start at 0.
type External interface {
	StorageSet(key, value []byte) error
	// StorageGet returns false if [key] is not set.
	StorageGet(key []byte) ([]byte, bool, error)
	StorageRemove(key []byte) error
	StorageRemoveSubtree(prefix []byte) error
	StorageHasKey(key []byte) (bool, error)

	// CreateReceipt creates a receipt to [receiverID] that waits for the
	// receipts at [receiptIndices] and returns its index.
	CreateReceipt(receiptIndices []uint64, receiverID string) (uint64, error)

	AppendActionCreateAccount(receiptIndex uint64) error
	AppendActionDeployContract(receiptIndex uint64, code []byte) error
	AppendActionFunctionCall(
		receiptIndex uint64,
		methodName string,
		args []byte,
		deposit primitives.Balance,
		gas primitives.Gas,
	) error
	AppendActionTransfer(receiptIndex uint64, deposit primitives.Balance) error
	AppendActionAddKey(receiptIndex uint64, publicKey []byte, accessKey *primitives.AccessKey) error
	AppendActionDeleteKey(receiptIndex uint64, publicKey []byte) error
	AppendActionDeleteAccount(receiptIndex uint64, beneficiaryID string) error

	// TouchedNodesCount is the number of state nodes read or written so far.
	TouchedNodesCount() uint64
}
