// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"encoding/binary"

	"github.com/ava-labs/avalanchego/ids"
)

// Column is the first byte of every trie key.
type Column byte

const (
	ColAccount Column = iota
	ColContractCode
	ColAccessKey
	ColReceivedData
	ColPostponedReceiptID
	ColPendingDataCount
	ColPostponedReceipt
	ColDelayedReceiptIndices
	ColDelayedReceipt
	ColContractData
)

// Account ids never contain a comma, so it separates the id from the rest of
// the key.
const accountSeparator = ','

func (c Column) String() string {
	switch c {
	case ColAccount:
		return "Account"
	case ColContractCode:
		return "ContractCode"
	case ColAccessKey:
		return "AccessKey"
	case ColReceivedData:
		return "ReceivedData"
	case ColPostponedReceiptID:
		return "PostponedReceiptId"
	case ColPendingDataCount:
		return "PendingDataCount"
	case ColPostponedReceipt:
		return "PostponedReceipt"
	case ColDelayedReceiptIndices:
		return "DelayedReceiptIndices"
	case ColDelayedReceipt:
		return "DelayedReceipt"
	case ColContractData:
		return "ContractData"
	default:
		return "Unknown"
	}
}

func accountKey(col Column, accountID string, suffix []byte) []byte {
	key := make([]byte, 0, 2+len(accountID)+len(suffix))
	key = append(key, byte(col))
	key = append(key, accountID...)
	if suffix != nil {
		key = append(key, accountSeparator)
		key = append(key, suffix...)
	}
	return key
}

func AccountKey(accountID string) []byte {
	return accountKey(ColAccount, accountID, nil)
}

func ContractCodeKey(accountID string) []byte {
	return accountKey(ColContractCode, accountID, nil)
}

func AccessKeyKey(accountID string, publicKey []byte) []byte {
	return accountKey(ColAccessKey, accountID, publicKey)
}

// AccessKeyPrefix prefixes every access key of [accountID].
func AccessKeyPrefix(accountID string) []byte {
	return accountKey(ColAccessKey, accountID, []byte{})
}

func ReceivedDataKey(receiverID string, dataID ids.ID) []byte {
	return accountKey(ColReceivedData, receiverID, dataID[:])
}

func PostponedReceiptIDKey(receiverID string, dataID ids.ID) []byte {
	return accountKey(ColPostponedReceiptID, receiverID, dataID[:])
}

func PendingDataCountKey(receiverID string, receiptID ids.ID) []byte {
	return accountKey(ColPendingDataCount, receiverID, receiptID[:])
}

func PostponedReceiptKey(receiverID string, receiptID ids.ID) []byte {
	return accountKey(ColPostponedReceipt, receiverID, receiptID[:])
}

func DelayedReceiptIndicesKey() []byte {
	return []byte{byte(ColDelayedReceiptIndices)}
}

func DelayedReceiptKey(index uint64) []byte {
	key := make([]byte, 9)
	key[0] = byte(ColDelayedReceipt)
	binary.BigEndian.PutUint64(key[1:], index)
	return key
}

func ContractDataKey(accountID string, key []byte) []byte {
	return accountKey(ColContractData, accountID, key)
}

// ContractDataPrefix prefixes every storage key of [accountID]'s contract.
func ContractDataPrefix(accountID string) []byte {
	return accountKey(ColContractData, accountID, []byte{})
}

// SplitContractDataKey returns the contract storage key of a ContractData
// trie key of [accountID].
func SplitContractDataKey(accountID string, trieKey []byte) ([]byte, bool) {
	prefix := ContractDataPrefix(accountID)
	if len(trieKey) < len(prefix) || string(trieKey[:len(prefix)]) != string(prefix) {
		return nil, false
	}
	return trieKey[len(prefix):], true
}

// SplitAccessKeyKey returns the public key of an AccessKey trie key of
// [accountID].
func SplitAccessKeyKey(accountID string, trieKey []byte) ([]byte, bool) {
	prefix := AccessKeyPrefix(accountID)
	if len(trieKey) < len(prefix) || string(trieKey[:len(prefix)]) != string(prefix) {
		return nil, false
	}
	return trieKey[len(prefix):], true
}
