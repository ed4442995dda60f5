// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/receiptvm/primitives"
	"github.com/ava-labs/receiptvm/state"
)

var (
	errGenesisAccountMissing       = errors.New("genesis record for an account that doesn't exist")
	errGenesisNotActionReceipt     = errors.New("postponed genesis receipt must be an action receipt")
	errGenesisPostponedWithoutData = errors.New("postponed genesis receipt must wait on input data")
)

// ComputeStorageUsage returns the storage each account of [records] is
// accounted for.
func ComputeStorageUsage(records []primitives.StateRecord, config *primitives.RuntimeConfig) (map[string]uint64, error) {
	usage := make(map[string]uint64)
	storage := &config.Fees.StorageUsage
	for _, record := range records {
		switch record := record.(type) {
		case *primitives.AccountRecord:
			usage[record.AccountID] += storage.NumBytesAccount
		case *primitives.DataRecord:
			usage[record.AccountID] += storage.NumExtraBytesRecord + uint64(len(record.Key)) + uint64(len(record.Value))
		case *primitives.ContractRecord:
			usage[record.AccountID] += uint64(len(record.Code))
		case *primitives.AccessKeyRecord:
			keyUsage, err := accessKeyStorageUsage(&config.Fees, record.PublicKey, &record.AccessKey)
			if err != nil {
				return nil, err
			}
			usage[record.AccountID] += keyUsage
		}
	}
	return usage, nil
}

// ApplyGenesisState writes [records] on top of the empty state of [tries]
// and returns the resulting changes. The changes are not applied.
func ApplyGenesisState(
	tries *state.Tries,
	records []primitives.StateRecord,
	config *primitives.RuntimeConfig,
) (*state.TrieChanges, error) {
	u, err := tries.NewTrieUpdate(ids.Empty)
	if err != nil {
		return nil, err
	}

	var (
		postponed []*primitives.Receipt
		indices   primitives.DelayedReceiptIndices
	)
	for _, record := range records {
		switch record := record.(type) {
		case *primitives.AccountRecord:
			account := record.Account
			err = state.SetAccount(u, record.AccountID, &account)
		case *primitives.DataRecord:
			err = u.Set(state.ContractDataKey(record.AccountID, record.Key), copyBytes(record.Value))
		case *primitives.ContractRecord:
			err = state.SetCode(u, record.AccountID, record.Code)
		case *primitives.AccessKeyRecord:
			accessKey := record.AccessKey
			err = state.SetAccessKey(u, record.AccountID, record.PublicKey, &accessKey)
		case *primitives.PostponedReceiptRecord:
			receipt := record.Receipt
			postponed = append(postponed, &receipt)
		case *primitives.ReceivedDataRecord:
			err = state.SetReceivedData(u, record.AccountID, record.DataID, &primitives.ReceivedData{
				Data:    record.Data,
				HasData: record.HasData,
			})
		case *primitives.DelayedReceiptRecord:
			receipt := record.Receipt
			err = DelayReceipt(u, &indices, &receipt)
		default:
			err = fmt.Errorf("unknown genesis record %T", record)
		}
		if err != nil {
			return nil, err
		}
	}

	usage, err := ComputeStorageUsage(records, config)
	if err != nil {
		return nil, err
	}
	for accountID, storageUsage := range usage {
		account, err := state.GetAccount(u, accountID)
		if err != nil {
			return nil, err
		}
		if account == nil {
			return nil, fmt.Errorf("%w: %s", errGenesisAccountMissing, accountID)
		}
		account.StorageUsage = storageUsage
		if err := state.SetAccount(u, accountID, account); err != nil {
			return nil, err
		}
	}

	for _, receipt := range postponed {
		if err := postponeGenesisReceipt(u, receipt); err != nil {
			return nil, err
		}
	}
	if indices != (primitives.DelayedReceiptIndices{}) {
		if err := state.SetDelayedReceiptIndices(u, indices); err != nil {
			return nil, err
		}
	}

	if err := u.Commit(primitives.StateChangeCause{Kind: primitives.CauseInitialState}); err != nil {
		return nil, err
	}
	changes, _, err := u.Finalize()
	return changes, err
}

func postponeGenesisReceipt(u *state.TrieUpdate, receipt *primitives.Receipt) error {
	actionReceipt, ok := receipt.Action()
	if !ok {
		return fmt.Errorf("%w: %s", errGenesisNotActionReceipt, receipt.ReceiptID)
	}
	accountID := receipt.ReceiverID

	var pending uint32
	for _, dataID := range actionReceipt.InputDataIDs {
		data, err := state.GetReceivedData(u, accountID, dataID)
		if err != nil {
			return err
		}
		if data != nil {
			continue
		}
		pending++
		if err := state.SetPostponedReceiptID(u, accountID, dataID, receipt.ReceiptID); err != nil {
			return err
		}
	}
	if pending == 0 {
		return fmt.Errorf("%w: %s", errGenesisPostponedWithoutData, receipt.ReceiptID)
	}
	if err := state.SetPendingDataCount(u, accountID, receipt.ReceiptID, pending); err != nil {
		return err
	}
	return state.SetPostponedReceipt(u, receipt)
}
