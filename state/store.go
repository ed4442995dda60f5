// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/receiptvm/primitives"
)

// These helpers return *primitives.StorageError on failure: database errors
// are StorageInternalError and undecodable values StorageInconsistentState.

func get(u *TrieUpdate, key []byte, v interface{}) (bool, error) {
	b, ok, err := u.Get(key)
	if err != nil {
		return false, primitives.NewStorageInternalError(err)
	}
	if !ok {
		return false, nil
	}
	if err := primitives.Unmarshal(b, v); err != nil {
		return false, primitives.NewStorageInconsistentState("couldn't decode %s at %x: %s", Column(key[0]), key, err)
	}
	return true, nil
}

func set(u *TrieUpdate, key []byte, v interface{}) error {
	b, err := primitives.Marshal(v)
	if err != nil {
		return primitives.NewStorageInternalError(err)
	}
	if err := u.Set(key, b); err != nil {
		return primitives.NewStorageInternalError(err)
	}
	return nil
}

func remove(u *TrieUpdate, key []byte) error {
	if err := u.Remove(key); err != nil {
		return primitives.NewStorageInternalError(err)
	}
	return nil
}

// GetAccount returns nil if [accountID] does not exist.
func GetAccount(u *TrieUpdate, accountID string) (*primitives.Account, error) {
	account := &primitives.Account{}
	ok, err := get(u, AccountKey(accountID), account)
	if !ok || err != nil {
		return nil, err
	}
	return account, nil
}

func SetAccount(u *TrieUpdate, accountID string, account *primitives.Account) error {
	return set(u, AccountKey(accountID), account)
}

// GetAccessKey returns nil if the key does not exist.
func GetAccessKey(u *TrieUpdate, accountID string, publicKey []byte) (*primitives.AccessKey, error) {
	key := &primitives.AccessKey{}
	ok, err := get(u, AccessKeyKey(accountID, publicKey), key)
	if !ok || err != nil {
		return nil, err
	}
	return key, nil
}

func SetAccessKey(u *TrieUpdate, accountID string, publicKey []byte, key *primitives.AccessKey) error {
	return set(u, AccessKeyKey(accountID, publicKey), key)
}

func RemoveAccessKey(u *TrieUpdate, accountID string, publicKey []byte) error {
	return remove(u, AccessKeyKey(accountID, publicKey))
}

// GetCode returns nil if no contract is deployed.
func GetCode(u *TrieUpdate, accountID string) ([]byte, error) {
	code, ok, err := u.Get(ContractCodeKey(accountID))
	if err != nil {
		return nil, primitives.NewStorageInternalError(err)
	}
	if !ok {
		return nil, nil
	}
	return code, nil
}

func SetCode(u *TrieUpdate, accountID string, code []byte) error {
	if err := u.Set(ContractCodeKey(accountID), code); err != nil {
		return primitives.NewStorageInternalError(err)
	}
	return nil
}

// GetReceivedData returns nil if the data has not been received.
func GetReceivedData(u *TrieUpdate, receiverID string, dataID ids.ID) (*primitives.ReceivedData, error) {
	data := &primitives.ReceivedData{}
	ok, err := get(u, ReceivedDataKey(receiverID, dataID), data)
	if !ok || err != nil {
		return nil, err
	}
	return data, nil
}

func SetReceivedData(u *TrieUpdate, receiverID string, dataID ids.ID, data *primitives.ReceivedData) error {
	return set(u, ReceivedDataKey(receiverID, dataID), data)
}

func RemoveReceivedData(u *TrieUpdate, receiverID string, dataID ids.ID) error {
	return remove(u, ReceivedDataKey(receiverID, dataID))
}

// GetPostponedReceiptID returns the id of the receipt waiting for [dataID].
func GetPostponedReceiptID(u *TrieUpdate, receiverID string, dataID ids.ID) (ids.ID, bool, error) {
	var receiptID ids.ID
	ok, err := get(u, PostponedReceiptIDKey(receiverID, dataID), &receiptID)
	return receiptID, ok, err
}

func SetPostponedReceiptID(u *TrieUpdate, receiverID string, dataID ids.ID, receiptID ids.ID) error {
	return set(u, PostponedReceiptIDKey(receiverID, dataID), &receiptID)
}

func RemovePostponedReceiptID(u *TrieUpdate, receiverID string, dataID ids.ID) error {
	return remove(u, PostponedReceiptIDKey(receiverID, dataID))
}

// GetPendingDataCount returns how many inputs the postponed receipt still
// waits for.
func GetPendingDataCount(u *TrieUpdate, receiverID string, receiptID ids.ID) (uint32, bool, error) {
	var count uint32
	ok, err := get(u, PendingDataCountKey(receiverID, receiptID), &count)
	return count, ok, err
}

func SetPendingDataCount(u *TrieUpdate, receiverID string, receiptID ids.ID, count uint32) error {
	return set(u, PendingDataCountKey(receiverID, receiptID), &count)
}

func RemovePendingDataCount(u *TrieUpdate, receiverID string, receiptID ids.ID) error {
	return remove(u, PendingDataCountKey(receiverID, receiptID))
}

// GetPostponedReceipt returns nil if the receipt isn't postponed.
func GetPostponedReceipt(u *TrieUpdate, receiverID string, receiptID ids.ID) (*primitives.Receipt, error) {
	receipt := &primitives.Receipt{}
	ok, err := get(u, PostponedReceiptKey(receiverID, receiptID), receipt)
	if !ok || err != nil {
		return nil, err
	}
	return receipt, nil
}

func SetPostponedReceipt(u *TrieUpdate, receipt *primitives.Receipt) error {
	return set(u, PostponedReceiptKey(receipt.ReceiverID, receipt.ReceiptID), receipt)
}

func RemovePostponedReceipt(u *TrieUpdate, receiverID string, receiptID ids.ID) error {
	return remove(u, PostponedReceiptKey(receiverID, receiptID))
}

// GetDelayedReceiptIndices returns the zero value if the queue was never used.
func GetDelayedReceiptIndices(u *TrieUpdate) (primitives.DelayedReceiptIndices, error) {
	var indices primitives.DelayedReceiptIndices
	_, err := get(u, DelayedReceiptIndicesKey(), &indices)
	return indices, err
}

func SetDelayedReceiptIndices(u *TrieUpdate, indices primitives.DelayedReceiptIndices) error {
	return set(u, DelayedReceiptIndicesKey(), &indices)
}

// GetDelayedReceipt returns nil if there is no receipt at [index].
func GetDelayedReceipt(u *TrieUpdate, index uint64) (*primitives.Receipt, error) {
	receipt := &primitives.Receipt{}
	ok, err := get(u, DelayedReceiptKey(index), receipt)
	if !ok || err != nil {
		return nil, err
	}
	return receipt, nil
}

func SetDelayedReceipt(u *TrieUpdate, index uint64, receipt *primitives.Receipt) error {
	return set(u, DelayedReceiptKey(index), receipt)
}

func RemoveDelayedReceipt(u *TrieUpdate, index uint64) error {
	return remove(u, DelayedReceiptKey(index))
}

// RemoveAccount removes the account along with its contract code, access
// keys and contract data.
func RemoveAccount(u *TrieUpdate, accountID string) error {
	if err := remove(u, AccountKey(accountID)); err != nil {
		return err
	}
	if err := remove(u, ContractCodeKey(accountID)); err != nil {
		return err
	}
	for _, prefix := range [][]byte{AccessKeyPrefix(accountID), ContractDataPrefix(accountID)} {
		keys, err := u.Keys(prefix)
		if err != nil {
			return primitives.NewStorageInternalError(err)
		}
		for _, key := range keys {
			if err := remove(u, key); err != nil {
				return err
			}
		}
	}
	return nil
}
