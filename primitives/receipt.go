// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package primitives

import (
	"github.com/ava-labs/avalanchego/ids"
)

// ReceiptBody is either an *ActionReceipt or a *DataReceipt.
type ReceiptBody interface {
	isReceiptBody()
}

// Receipt is a unit of execution addressed to [ReceiverID].
type Receipt struct {
	PredecessorID string      `serialize:"true"`
	ReceiverID    string      `serialize:"true"`
	ReceiptID     ids.ID      `serialize:"true"`
	Body          ReceiptBody `serialize:"true"`
}

// DataReceiver is an account expecting the result of an action receipt.
type DataReceiver struct {
	DataID     ids.ID `serialize:"true"`
	ReceiverID string `serialize:"true"`
}

type ActionReceipt struct {
	SignerID            string         `serialize:"true"`
	SignerPublicKey     []byte         `serialize:"true"`
	GasPrice            Balance        `serialize:"true"`
	OutputDataReceivers []DataReceiver `serialize:"true"`
	InputDataIDs        []ids.ID       `serialize:"true"`
	Actions             []Action       `serialize:"true"`
}

// DataReceipt delivers the result of an action receipt. A failed execution
// is delivered with HasData unset.
type DataReceipt struct {
	DataID  ids.ID `serialize:"true"`
	Data    []byte `serialize:"true"`
	HasData bool   `serialize:"true"`
}

func (*ActionReceipt) isReceiptBody() {}
func (*DataReceipt) isReceiptBody()   {}

// Action returns the action body, if this is an action receipt.
func (r *Receipt) Action() (*ActionReceipt, bool) {
	a, ok := r.Body.(*ActionReceipt)
	return a, ok
}

// Data returns the data body, if this is a data receipt.
func (r *Receipt) Data() (*DataReceipt, bool) {
	d, ok := r.Body.(*DataReceipt)
	return d, ok
}

// IsRefund returns true for receipts issued by the system account.
func (r *Receipt) IsRefund() bool { return IsSystemAccount(r.PredecessorID) }

func (r *Receipt) Bytes() ([]byte, error) {
	return Codec.Marshal(CodecVersion, r)
}

// NewBalanceRefund returns a receipt returning [refund] to [receiverID].
func NewBalanceRefund(receiverID string, refund Balance) *Receipt {
	return &Receipt{
		PredecessorID: SystemAccountID,
		ReceiverID:    receiverID,
		Body: &ActionReceipt{
			SignerID:        SystemAccountID,
			SignerPublicKey: []byte{},
			Actions:         []Action{&TransferAction{Deposit: refund}},
		},
	}
}

// NewGasRefund returns a receipt returning unspent gas to the signer. The
// signer key is kept so a function call key's allowance can be restored.
func NewGasRefund(receiverID string, refund Balance, signerPublicKey []byte) *Receipt {
	return &Receipt{
		PredecessorID: SystemAccountID,
		ReceiverID:    receiverID,
		Body: &ActionReceipt{
			SignerID:        receiverID,
			SignerPublicKey: signerPublicKey,
			Actions:         []Action{&TransferAction{Deposit: refund}},
		},
	}
}

// ReceivedData is the payload of a data receipt stored until its action
// receipt executes.
type ReceivedData struct {
	Data    []byte `serialize:"true"`
	HasData bool   `serialize:"true"`
}

// DelayedReceiptIndices bounds the delayed receipt queue.
// FirstIndex <= NextAvailableIndex always holds.
type DelayedReceiptIndices struct {
	FirstIndex         uint64 `serialize:"true"`
	NextAvailableIndex uint64 `serialize:"true"`
}

func (d DelayedReceiptIndices) Len() uint64 { return d.NextAvailableIndex - d.FirstIndex }
