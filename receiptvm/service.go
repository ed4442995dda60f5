// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package receiptvm

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/formatting"
	"github.com/ava-labs/avalanchego/utils/json"
	"github.com/mr-tron/base58"

	"github.com/ava-labs/receiptvm/primitives"
)

var errEmptyAccountID = errors.New("account ID must be provided")

// Service is the API service for this VM
type Service struct{ vm *VM }

// SendTransactionArgs carries an encoded signed transaction
type SendTransactionArgs struct {
	Transaction string              `json:"transaction"`
	Encoding    formatting.Encoding `json:"encoding"`
}

// SendTransactionReply is the hash the transaction is known by
type SendTransactionReply struct {
	TxID ids.ID `json:"txID"`
}

// SendTransaction queues a signed transaction for the next block
func (s *Service) SendTransaction(_ *http.Request, args *SendTransactionArgs, reply *SendTransactionReply) error {
	txBytes, err := formatting.Decode(args.Encoding, args.Transaction)
	if err != nil {
		return fmt.Errorf("couldn't decode transaction: %w", err)
	}
	stx, err := primitives.ParseSignedTransaction(txBytes)
	if err != nil {
		return fmt.Errorf("couldn't parse transaction: %w", err)
	}
	reply.TxID, err = s.vm.SendTransaction(stx)
	return err
}

// GetBlockArgs selects a block by ID or by height
// If both are empty, the latest block is returned
type GetBlockArgs struct {
	ID     ids.ID       `json:"id"`
	Height *json.Uint64 `json:"height,omitempty"`
}

// GetBlockReply is a block without its bodies
type GetBlockReply struct {
	ID               ids.ID      `json:"id"`
	ParentID         ids.ID      `json:"parentID"`
	Height           json.Uint64 `json:"height"`
	Timestamp        json.Uint64 `json:"timestamp"`
	GasPrice         string      `json:"gasPrice"`
	GasLimit         json.Uint64 `json:"gasLimit"`
	PrevStateRoot    ids.ID      `json:"prevStateRoot"`
	StateRoot        ids.ID      `json:"stateRoot"`
	Transactions     []ids.ID    `json:"transactions"`
	IncomingReceipts []ids.ID    `json:"incomingReceipts"`
	OutgoingReceipts []ids.ID    `json:"outgoingReceipts"`
}

// GetBlock gets the block whose ID is [args.ID]
// If [args.ID] is empty, get the latest block
func (s *Service) GetBlock(_ *http.Request, args *GetBlockArgs, reply *GetBlockReply) error {
	var (
		blk *Block
		err error
	)
	switch {
	case args.ID != ids.Empty:
		blk, err = s.vm.GetBlock(args.ID)
	case args.Height != nil:
		blk, err = s.vm.GetBlockAtHeight(uint64(*args.Height))
	default:
		blk = s.vm.LastAccepted()
	}
	if err != nil {
		return fmt.Errorf("couldn't get block: %w", err)
	}

	reply.ID = blk.ID()
	reply.ParentID = blk.Parent()
	reply.Height = json.Uint64(blk.Height())
	reply.Timestamp = json.Uint64(blk.Timestamp())
	reply.GasPrice = primitives.BalanceString(blk.GasPrice)
	reply.GasLimit = json.Uint64(blk.GasLimit)
	reply.PrevStateRoot = blk.PrevStateRoot
	reply.StateRoot = blk.StateRoot
	reply.Transactions = make([]ids.ID, len(blk.Transactions))
	for i, stx := range blk.Transactions {
		reply.Transactions[i] = stx.Hash()
	}
	reply.IncomingReceipts = receiptIDs(blk.IncomingReceipts)
	reply.OutgoingReceipts = receiptIDs(blk.OutgoingReceipts)
	return nil
}

// OutcomeArgs names a transaction or receipt
type OutcomeArgs struct {
	ID ids.ID `json:"id"`
}

// OutcomeReply is an execution outcome
type OutcomeReply struct {
	ID          ids.ID      `json:"id"`
	Logs        []string    `json:"logs"`
	ReceiptIDs  []ids.ID    `json:"receiptIDs"`
	GasBurnt    json.Uint64 `json:"gasBurnt"`
	TokensBurnt string      `json:"tokensBurnt"`
	ExecutorID  string      `json:"executorID"`
	Status      string      `json:"status"`
	// Value is set for SuccessValue
	Value string `json:"value,omitempty"`
	// ReceiptID is set for SuccessReceiptId
	ReceiptID ids.ID `json:"receiptID"`
	// Failure is set for Failure
	Failure string `json:"failure,omitempty"`
}

// GetOutcome returns the outcome of the transaction or receipt [args.ID]
func (s *Service) GetOutcome(_ *http.Request, args *OutcomeArgs, reply *OutcomeReply) error {
	outcome, err := s.vm.Outcome(args.ID)
	if err != nil {
		return err
	}
	return reply.set(args.ID, outcome)
}

// ResolveTransaction produces blocks until the transaction [args.ID] has a
// final outcome and returns it
func (s *Service) ResolveTransaction(_ *http.Request, args *OutcomeArgs, reply *OutcomeReply) error {
	id, outcome, err := s.vm.ResolveTransaction(args.ID)
	if err != nil {
		return err
	}
	return reply.set(id, outcome)
}

func (r *OutcomeReply) set(id ids.ID, outcome *primitives.ExecutionOutcome) error {
	r.ID = id
	r.Logs = outcome.Logs
	r.ReceiptIDs = outcome.ReceiptIDs
	r.GasBurnt = json.Uint64(outcome.GasBurnt)
	r.TokensBurnt = primitives.BalanceString(outcome.TokensBurnt)
	r.ExecutorID = outcome.ExecutorID

	switch status := outcome.Status.(type) {
	case primitives.StatusSuccessValue:
		r.Status = "SuccessValue"
		value, err := formatting.EncodeWithChecksum(formatting.Hex, status.Value)
		if err != nil {
			return err
		}
		r.Value = value
	case primitives.StatusSuccessReceiptID:
		r.Status = "SuccessReceiptId"
		r.ReceiptID = status.ReceiptID
	case primitives.StatusFailure:
		r.Status = "Failure"
		r.Failure = status.Error.Error()
	default:
		r.Status = "Unknown"
	}
	return nil
}

// AccountArgs names an account
type AccountArgs struct {
	AccountID string `json:"accountID"`
}

// AccountReply is an account record
type AccountReply struct {
	Amount       string      `json:"amount"`
	Locked       string      `json:"locked"`
	CodeHash     string      `json:"codeHash"`
	StorageUsage json.Uint64 `json:"storageUsage"`
	Nonce        json.Uint64 `json:"nonce"`
}

// ViewAccount returns the account [args.AccountID] at the head
func (s *Service) ViewAccount(_ *http.Request, args *AccountArgs, reply *AccountReply) error {
	if args.AccountID == "" {
		return errEmptyAccountID
	}
	account, err := s.vm.ViewAccount(args.AccountID)
	if err != nil {
		return err
	}
	reply.Amount = primitives.BalanceString(account.Amount)
	reply.Locked = primitives.BalanceString(account.Locked)
	reply.CodeHash = base58.Encode(account.CodeHash[:])
	reply.StorageUsage = json.Uint64(account.StorageUsage)
	reply.Nonce = json.Uint64(account.Nonce)
	return nil
}

// ViewStateArgs selects the contract data of an account under a prefix
type ViewStateArgs struct {
	AccountID string              `json:"accountID"`
	Prefix    string              `json:"prefix"`
	Encoding  formatting.Encoding `json:"encoding"`
}

// StateItemReply is one contract data record
type StateItemReply struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ViewStateReply is the contract data under the requested prefix
type ViewStateReply struct {
	Values   []StateItemReply    `json:"values"`
	Encoding formatting.Encoding `json:"encoding"`
}

// ViewState returns the contract data of [args.AccountID]
func (s *Service) ViewState(_ *http.Request, args *ViewStateArgs, reply *ViewStateReply) error {
	if args.AccountID == "" {
		return errEmptyAccountID
	}
	var prefix []byte
	if args.Prefix != "" {
		var err error
		prefix, err = formatting.Decode(args.Encoding, args.Prefix)
		if err != nil {
			return fmt.Errorf("couldn't decode prefix: %w", err)
		}
	}
	items, err := s.vm.ViewState(args.AccountID, prefix)
	if err != nil {
		return err
	}

	reply.Values = make([]StateItemReply, len(items))
	for i, item := range items {
		key, err := formatting.EncodeWithChecksum(args.Encoding, item.Key)
		if err != nil {
			return err
		}
		value, err := formatting.EncodeWithChecksum(args.Encoding, item.Value)
		if err != nil {
			return err
		}
		reply.Values[i] = StateItemReply{Key: key, Value: value}
	}
	reply.Encoding = args.Encoding
	return nil
}

// CallFunctionArgs is a view call
type CallFunctionArgs struct {
	AccountID  string              `json:"accountID"`
	MethodName string              `json:"methodName"`
	Args       string              `json:"args"`
	Encoding   formatting.Encoding `json:"encoding"`
}

// CallFunctionReply is the value and logs of a view call
type CallFunctionReply struct {
	Result   string              `json:"result"`
	Logs     []string            `json:"logs"`
	Encoding formatting.Encoding `json:"encoding"`
}

// CallFunction runs a contract method in view mode
func (s *Service) CallFunction(_ *http.Request, args *CallFunctionArgs, reply *CallFunctionReply) error {
	if args.AccountID == "" {
		return errEmptyAccountID
	}
	var input []byte
	if args.Args != "" {
		var err error
		input, err = formatting.Decode(args.Encoding, args.Args)
		if err != nil {
			return fmt.Errorf("couldn't decode args: %w", err)
		}
	}
	value, logs, err := s.vm.ViewMethodCall(args.AccountID, args.MethodName, input)
	if err != nil {
		return err
	}
	reply.Result, err = formatting.EncodeWithChecksum(args.Encoding, value)
	if err != nil {
		return err
	}
	reply.Logs = logs
	reply.Encoding = args.Encoding
	return nil
}

func receiptIDs(receipts []*primitives.Receipt) []ids.ID {
	receiptIDs := make([]ids.ID, len(receipts))
	for i, receipt := range receipts {
		receiptIDs[i] = receipt.ReceiptID
	}
	return receiptIDs
}
