// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"fmt"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/receiptvm/host"
	"github.com/ava-labs/receiptvm/primitives"
	"github.com/ava-labs/receiptvm/state"
)

var _ host.External = &RuntimeExt{}

type pendingReceipt struct {
	receiverID string
	receipt    *primitives.ActionReceipt
}

// RuntimeExt gives a function call access to the storage of [accountID]
// and collects the receipts it creates.
type RuntimeExt struct {
	u               *state.TrieUpdate
	codes           *codeCache
	accountID       string
	signerID        string
	signerPublicKey []byte
	gasPrice        primitives.Balance
	actionHash      ids.ID

	dataCount uint64
	receipts  []pendingReceipt
	touched   uint64
}

func NewRuntimeExt(
	u *state.TrieUpdate,
	codes *codeCache,
	accountID string,
	signerID string,
	signerPublicKey []byte,
	gasPrice primitives.Balance,
	actionHash ids.ID,
) *RuntimeExt {
	return &RuntimeExt{
		u:               u,
		codes:           codes,
		accountID:       accountID,
		signerID:        signerID,
		signerPublicKey: signerPublicKey,
		gasPrice:        gasPrice,
		actionHash:      actionHash,
	}
}

func (e *RuntimeExt) AccountID() string { return e.accountID }

// GetCode returns the contract deployed with [codeHash], or nil.
func (e *RuntimeExt) GetCode(codeHash ids.ID) (*host.ContractCode, error) {
	logger.Debug("calling contract", "account", e.accountID)
	return e.codes.get(codeHash, func() ([]byte, error) {
		return state.GetCode(e.u, e.accountID)
	})
}

// IntoReceipts returns the receipts created by the call. Their ids are
// assigned by the caller.
func (e *RuntimeExt) IntoReceipts(predecessorID string) []*primitives.Receipt {
	receipts := make([]*primitives.Receipt, len(e.receipts))
	for i, r := range e.receipts {
		receipts[i] = &primitives.Receipt{
			PredecessorID: predecessorID,
			ReceiverID:    r.receiverID,
			Body:          r.receipt,
		}
	}
	return receipts
}

func (e *RuntimeExt) newDataID() ids.ID {
	dataID := primitives.CreateDataID(e.actionHash, e.dataCount)
	e.dataCount++
	return dataID
}

func (e *RuntimeExt) appendAction(receiptIndex uint64, action primitives.Action) error {
	if receiptIndex >= uint64(len(e.receipts)) {
		return &host.HostError{
			Kind: host.InvalidReceiptIndex,
			Msg:  fmt.Sprintf("receipt index %d", receiptIndex),
		}
	}
	r := e.receipts[receiptIndex].receipt
	r.Actions = append(r.Actions, action)
	return nil
}

func (e *RuntimeExt) StorageSet(key, value []byte) error {
	e.touched++
	return e.u.Set(state.ContractDataKey(e.accountID, key), copyBytes(value))
}

func (e *RuntimeExt) StorageGet(key []byte) ([]byte, bool, error) {
	e.touched++
	return e.u.Get(state.ContractDataKey(e.accountID, key))
}

func (e *RuntimeExt) StorageRemove(key []byte) error {
	e.touched++
	return e.u.Remove(state.ContractDataKey(e.accountID, key))
}

func (e *RuntimeExt) StorageHasKey(key []byte) (bool, error) {
	e.touched++
	return e.u.Has(state.ContractDataKey(e.accountID, key))
}

func (e *RuntimeExt) StorageRemoveSubtree(prefix []byte) error {
	keys, err := e.u.Keys(state.ContractDataKey(e.accountID, prefix))
	if err != nil {
		return err
	}
	for _, key := range keys {
		if _, ok := state.SplitContractDataKey(e.accountID, key); !ok {
			return &host.InconsistentStateError{Msg: "can't parse data key from raw key for contract data"}
		}
		e.touched++
		if err := e.u.Remove(key); err != nil {
			return err
		}
	}
	return nil
}

func (e *RuntimeExt) CreateReceipt(receiptIndices []uint64, receiverID string) (uint64, error) {
	inputDataIDs := make([]ids.ID, 0, len(receiptIndices))
	for _, index := range receiptIndices {
		if index >= uint64(len(e.receipts)) {
			return 0, &host.HostError{
				Kind: host.InvalidReceiptIndex,
				Msg:  fmt.Sprintf("receipt index %d", index),
			}
		}
		dataID := e.newDataID()
		r := e.receipts[index].receipt
		r.OutputDataReceivers = append(r.OutputDataReceivers, primitives.DataReceiver{
			DataID:     dataID,
			ReceiverID: receiverID,
		})
		inputDataIDs = append(inputDataIDs, dataID)
	}

	e.receipts = append(e.receipts, pendingReceipt{
		receiverID: receiverID,
		receipt: &primitives.ActionReceipt{
			SignerID:        e.signerID,
			SignerPublicKey: e.signerPublicKey,
			GasPrice:        e.gasPrice,
			InputDataIDs:    inputDataIDs,
		},
	})
	return uint64(len(e.receipts) - 1), nil
}

func (e *RuntimeExt) AppendActionCreateAccount(receiptIndex uint64) error {
	return e.appendAction(receiptIndex, &primitives.CreateAccountAction{})
}

func (e *RuntimeExt) AppendActionDeployContract(receiptIndex uint64, code []byte) error {
	return e.appendAction(receiptIndex, &primitives.DeployContractAction{Code: code})
}

func (e *RuntimeExt) AppendActionFunctionCall(
	receiptIndex uint64,
	methodName string,
	args []byte,
	deposit primitives.Balance,
	gas primitives.Gas,
) error {
	return e.appendAction(receiptIndex, &primitives.FunctionCallAction{
		MethodName: methodName,
		Args:       args,
		Gas:        gas,
		Deposit:    deposit,
	})
}

func (e *RuntimeExt) AppendActionTransfer(receiptIndex uint64, deposit primitives.Balance) error {
	return e.appendAction(receiptIndex, &primitives.TransferAction{Deposit: deposit})
}

func (e *RuntimeExt) AppendActionAddKey(receiptIndex uint64, publicKey []byte, accessKey *primitives.AccessKey) error {
	return e.appendAction(receiptIndex, &primitives.AddKeyAction{PublicKey: publicKey, AccessKey: *accessKey})
}

func (e *RuntimeExt) AppendActionDeleteKey(receiptIndex uint64, publicKey []byte) error {
	return e.appendAction(receiptIndex, &primitives.DeleteKeyAction{PublicKey: publicKey})
}

func (e *RuntimeExt) AppendActionDeleteAccount(receiptIndex uint64, beneficiaryID string) error {
	return e.appendAction(receiptIndex, &primitives.DeleteAccountAction{BeneficiaryID: beneficiaryID})
}

func (e *RuntimeExt) TouchedNodesCount() uint64 { return e.touched }

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append(make([]byte, 0, len(b)), b...)
}
