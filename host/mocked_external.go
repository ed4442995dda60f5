// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package host

import (
	"bytes"

	"github.com/ava-labs/receiptvm/primitives"
)

var _ External = &MockedExternal{}

// MockedReceipt is a receipt recorded by MockedExternal.
type MockedReceipt struct {
	ReceiptIndices []uint64
	ReceiverID     string
	Actions        []primitives.Action
}

// MockedExternal keeps storage in a map and records created receipts.
type MockedExternal struct {
	FakeTrie map[string][]byte
	Receipts []*MockedReceipt
}

func NewMockedExternal() *MockedExternal {
	return &MockedExternal{FakeTrie: make(map[string][]byte)}
}

func (m *MockedExternal) StorageSet(key, value []byte) error {
	m.FakeTrie[string(key)] = append([]byte{}, value...)
	return nil
}

func (m *MockedExternal) StorageGet(key []byte) ([]byte, bool, error) {
	value, ok := m.FakeTrie[string(key)]
	return value, ok, nil
}

func (m *MockedExternal) StorageRemove(key []byte) error {
	delete(m.FakeTrie, string(key))
	return nil
}

func (m *MockedExternal) StorageRemoveSubtree(prefix []byte) error {
	for key := range m.FakeTrie {
		if bytes.HasPrefix([]byte(key), prefix) {
			delete(m.FakeTrie, key)
		}
	}
	return nil
}

func (m *MockedExternal) StorageHasKey(key []byte) (bool, error) {
	_, ok := m.FakeTrie[string(key)]
	return ok, nil
}

func (m *MockedExternal) CreateReceipt(receiptIndices []uint64, receiverID string) (uint64, error) {
	for _, index := range receiptIndices {
		if index >= uint64(len(m.Receipts)) {
			return 0, newHostError(InvalidReceiptIndex, "receipt index %d", index)
		}
	}
	m.Receipts = append(m.Receipts, &MockedReceipt{
		ReceiptIndices: receiptIndices,
		ReceiverID:     receiverID,
	})
	return uint64(len(m.Receipts) - 1), nil
}

func (m *MockedExternal) appendAction(receiptIndex uint64, action primitives.Action) error {
	if receiptIndex >= uint64(len(m.Receipts)) {
		return newHostError(InvalidReceiptIndex, "receipt index %d", receiptIndex)
	}
	receipt := m.Receipts[receiptIndex]
	receipt.Actions = append(receipt.Actions, action)
	return nil
}

func (m *MockedExternal) AppendActionCreateAccount(receiptIndex uint64) error {
	return m.appendAction(receiptIndex, &primitives.CreateAccountAction{})
}

func (m *MockedExternal) AppendActionDeployContract(receiptIndex uint64, code []byte) error {
	return m.appendAction(receiptIndex, &primitives.DeployContractAction{Code: code})
}

func (m *MockedExternal) AppendActionFunctionCall(
	receiptIndex uint64,
	methodName string,
	args []byte,
	deposit primitives.Balance,
	gas primitives.Gas,
) error {
	return m.appendAction(receiptIndex, &primitives.FunctionCallAction{
		MethodName: methodName,
		Args:       args,
		Gas:        gas,
		Deposit:    deposit,
	})
}

func (m *MockedExternal) AppendActionTransfer(receiptIndex uint64, deposit primitives.Balance) error {
	return m.appendAction(receiptIndex, &primitives.TransferAction{Deposit: deposit})
}

func (m *MockedExternal) AppendActionAddKey(receiptIndex uint64, publicKey []byte, accessKey *primitives.AccessKey) error {
	return m.appendAction(receiptIndex, &primitives.AddKeyAction{PublicKey: publicKey, AccessKey: *accessKey})
}

func (m *MockedExternal) AppendActionDeleteKey(receiptIndex uint64, publicKey []byte) error {
	return m.appendAction(receiptIndex, &primitives.DeleteKeyAction{PublicKey: publicKey})
}

func (m *MockedExternal) AppendActionDeleteAccount(receiptIndex uint64, beneficiaryID string) error {
	return m.appendAction(receiptIndex, &primitives.DeleteAccountAction{BeneficiaryID: beneficiaryID})
}

func (*MockedExternal) TouchedNodesCount() uint64 { return 0 }
