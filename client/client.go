// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"context"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/formatting"
	"github.com/ava-labs/avalanchego/utils/json"
	"github.com/ava-labs/avalanchego/utils/rpc"

	"github.com/ava-labs/receiptvm/primitives"
	"github.com/ava-labs/receiptvm/receiptvm"
	"github.com/ava-labs/receiptvm/runtime"
)

// Client defines receiptvm client operations.
type Client interface {
	// SendTransaction queues a signed transaction and returns its hash
	SendTransaction(ctx context.Context, stx *primitives.SignedTransaction) (ids.ID, error)

	// GetBlock fetches a block by ID. ids.Empty fetches the head.
	GetBlock(ctx context.Context, blockID ids.ID) (*receiptvm.GetBlockReply, error)
	// GetBlockAtHeight fetches the block at [height]
	GetBlockAtHeight(ctx context.Context, height uint64) (*receiptvm.GetBlockReply, error)

	// GetOutcome fetches the outcome of a transaction or receipt
	GetOutcome(ctx context.Context, id ids.ID) (*receiptvm.OutcomeReply, error)
	// ResolveTransaction waits for the final outcome of a transaction
	ResolveTransaction(ctx context.Context, txID ids.ID) (*receiptvm.OutcomeReply, error)

	ViewAccount(ctx context.Context, accountID string) (*receiptvm.AccountReply, error)
	ViewState(ctx context.Context, accountID string, prefix []byte) ([]runtime.StateItem, error)
	// CallFunction runs a view method and returns its value and logs
	CallFunction(ctx context.Context, accountID string, method string, args []byte) ([]byte, []string, error)
}

// New creates a new client object for the node at [uri].
func New(uri string) Client {
	req := rpc.NewEndpointRequester(uri, "/ext/"+receiptvm.Name, receiptvm.Name)
	return &client{req: req}
}

type client struct {
	req rpc.EndpointRequester
}

func (cli *client) SendTransaction(ctx context.Context, stx *primitives.SignedTransaction) (ids.ID, error) {
	txBytes, err := stx.Bytes()
	if err != nil {
		return ids.Empty, err
	}
	encoded, err := formatting.EncodeWithChecksum(formatting.Hex, txBytes)
	if err != nil {
		return ids.Empty, err
	}

	resp := new(receiptvm.SendTransactionReply)
	err = cli.req.SendRequest(ctx,
		"sendTransaction",
		&receiptvm.SendTransactionArgs{Transaction: encoded, Encoding: formatting.Hex},
		resp,
	)
	return resp.TxID, err
}

func (cli *client) GetBlock(ctx context.Context, blockID ids.ID) (*receiptvm.GetBlockReply, error) {
	resp := new(receiptvm.GetBlockReply)
	err := cli.req.SendRequest(ctx,
		"getBlock",
		&receiptvm.GetBlockArgs{ID: blockID},
		resp,
	)
	return resp, err
}

func (cli *client) GetBlockAtHeight(ctx context.Context, height uint64) (*receiptvm.GetBlockReply, error) {
	h := json.Uint64(height)
	resp := new(receiptvm.GetBlockReply)
	err := cli.req.SendRequest(ctx,
		"getBlock",
		&receiptvm.GetBlockArgs{Height: &h},
		resp,
	)
	return resp, err
}

func (cli *client) GetOutcome(ctx context.Context, id ids.ID) (*receiptvm.OutcomeReply, error) {
	resp := new(receiptvm.OutcomeReply)
	err := cli.req.SendRequest(ctx, "getOutcome", &receiptvm.OutcomeArgs{ID: id}, resp)
	return resp, err
}

func (cli *client) ResolveTransaction(ctx context.Context, txID ids.ID) (*receiptvm.OutcomeReply, error) {
	resp := new(receiptvm.OutcomeReply)
	err := cli.req.SendRequest(ctx, "resolveTransaction", &receiptvm.OutcomeArgs{ID: txID}, resp)
	return resp, err
}

func (cli *client) ViewAccount(ctx context.Context, accountID string) (*receiptvm.AccountReply, error) {
	resp := new(receiptvm.AccountReply)
	err := cli.req.SendRequest(ctx, "viewAccount", &receiptvm.AccountArgs{AccountID: accountID}, resp)
	return resp, err
}

func (cli *client) ViewState(ctx context.Context, accountID string, prefix []byte) ([]runtime.StateItem, error) {
	args := &receiptvm.ViewStateArgs{AccountID: accountID, Encoding: formatting.Hex}
	if len(prefix) > 0 {
		encoded, err := formatting.EncodeWithChecksum(formatting.Hex, prefix)
		if err != nil {
			return nil, err
		}
		args.Prefix = encoded
	}

	resp := new(receiptvm.ViewStateReply)
	if err := cli.req.SendRequest(ctx, "viewState", args, resp); err != nil {
		return nil, err
	}
	items := make([]runtime.StateItem, len(resp.Values))
	for i, value := range resp.Values {
		key, err := formatting.Decode(resp.Encoding, value.Key)
		if err != nil {
			return nil, err
		}
		data, err := formatting.Decode(resp.Encoding, value.Value)
		if err != nil {
			return nil, err
		}
		items[i] = runtime.StateItem{Key: key, Value: data}
	}
	return items, nil
}

func (cli *client) CallFunction(ctx context.Context, accountID string, method string, args []byte) ([]byte, []string, error) {
	encoded, err := formatting.EncodeWithChecksum(formatting.Hex, args)
	if err != nil {
		return nil, nil, err
	}

	resp := new(receiptvm.CallFunctionReply)
	err = cli.req.SendRequest(ctx,
		"callFunction",
		&receiptvm.CallFunctionArgs{
			AccountID:  accountID,
			MethodName: method,
			Args:       encoded,
			Encoding:   formatting.Hex,
		},
		resp,
	)
	if err != nil {
		return nil, nil, err
	}
	value, err := formatting.Decode(resp.Encoding, resp.Result)
	if err != nil {
		return nil, nil, err
	}
	return value, resp.Logs, nil
}
