// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package primitives

import (
	"encoding/binary"
	"math"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
)

// CryptoHash is a sha256 digest.
type CryptoHash = ids.ID

// HashBytes returns the sha256 digest of [b].
func HashBytes(b []byte) ids.ID {
	return ids.ID(hashing.ComputeHash256Array(b))
}

// CreateNonceWithNonce derives a new hash from [base] and [salt].
func CreateNonceWithNonce(base ids.ID, salt uint64) ids.ID {
	buf := make([]byte, len(base)+8)
	copy(buf, base[:])
	binary.LittleEndian.PutUint64(buf[len(base):], salt)
	return HashBytes(buf)
}

// CreateReceiptIDFromTransaction returns the id of the receipt a transaction
// is converted into.
func CreateReceiptIDFromTransaction(txHash ids.ID) ids.ID {
	return CreateNonceWithNonce(txHash, 0)
}

// CreateReceiptIDFromReceipt returns the id of the [index]th receipt produced
// while executing [receiptID].
func CreateReceiptIDFromReceipt(receiptID ids.ID, index uint64) ids.ID {
	return CreateNonceWithNonce(receiptID, index)
}

// CreateActionHash returns a unique hash for the [index]th action of a
// receipt. It never collides with a receipt id derived from the same receipt.
func CreateActionHash(receiptID ids.ID, index uint64) ids.ID {
	return CreateNonceWithNonce(receiptID, math.MaxUint64-index)
}

// CreateDataID returns the id of the [index]th data dependency created while
// executing the action identified by [actionHash].
func CreateDataID(actionHash ids.ID, index uint64) ids.ID {
	return CreateNonceWithNonce(actionHash, index)
}

// CreateRandomSeed mixes the block seed with the action hash so every
// function call observes a distinct seed.
func CreateRandomSeed(actionHash ids.ID, blockSeed ids.ID) []byte {
	buf := make([]byte, 0, len(actionHash)+len(blockSeed))
	buf = append(buf, actionHash[:]...)
	buf = append(buf, blockSeed[:]...)
	seed := HashBytes(buf)
	return seed[:]
}
