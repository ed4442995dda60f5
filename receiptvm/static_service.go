// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package receiptvm

import (
	"fmt"
	"net/http"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/formatting"
	"github.com/ava-labs/avalanchego/utils/json"

	"github.com/ava-labs/receiptvm/primitives"
)

// StaticService defines the chain independent service of the receipt vm
type StaticService struct{}

// CreateStaticService ...
func CreateStaticService() *StaticService {
	return &StaticService{}
}

// EncoderArgs are arguments for Encode
type EncoderArgs struct {
	Data     string              `json:"data"`
	Encoding formatting.Encoding `json:"encoding"`
}

// EncoderReply is the reply from Encoder
type EncoderReply struct {
	Bytes    string              `json:"bytes"`
	Encoding formatting.Encoding `json:"encoding"`
}

// Encode returns the encoded data
func (ss *StaticService) Encode(_ *http.Request, args *EncoderArgs, reply *EncoderReply) error {
	bytes, err := formatting.EncodeWithChecksum(args.Encoding, []byte(args.Data))
	if err != nil {
		return fmt.Errorf("couldn't encode data as string: %s", err)
	}
	reply.Bytes = bytes
	reply.Encoding = args.Encoding
	return nil
}

// DecoderArgs are arguments for Decode
type DecoderArgs struct {
	Bytes    string              `json:"bytes"`
	Encoding formatting.Encoding `json:"encoding"`
}

// DecoderReply is the reply from Decoder
type DecoderReply struct {
	Data     string              `json:"data"`
	Encoding formatting.Encoding `json:"encoding"`
}

// Decode returns the Decoded data
func (ss *StaticService) Decode(_ *http.Request, args *DecoderArgs, reply *DecoderReply) error {
	bytes, err := formatting.Decode(args.Encoding, args.Bytes)
	if err != nil {
		return fmt.Errorf("couldn't Decode data as string: %s", err)
	}
	reply.Data = string(bytes)
	reply.Encoding = args.Encoding
	return nil
}

// TransactionArgs is an encoded signed transaction
type TransactionArgs struct {
	Transaction string              `json:"transaction"`
	Encoding    formatting.Encoding `json:"encoding"`
}

// TransactionReply is the parsed form of a signed transaction
type TransactionReply struct {
	TxID       ids.ID      `json:"txID"`
	SignerID   string      `json:"signerID"`
	PublicKey  string      `json:"publicKey"`
	Nonce      json.Uint64 `json:"nonce"`
	ReceiverID string      `json:"receiverID"`
	Actions    []string    `json:"actions"`
}

// ParseTransaction decodes a signed transaction without checking it
// against any state
func (ss *StaticService) ParseTransaction(_ *http.Request, args *TransactionArgs, reply *TransactionReply) error {
	txBytes, err := formatting.Decode(args.Encoding, args.Transaction)
	if err != nil {
		return fmt.Errorf("couldn't decode transaction: %w", err)
	}
	stx, err := primitives.ParseSignedTransaction(txBytes)
	if err != nil {
		return fmt.Errorf("couldn't parse transaction: %w", err)
	}
	tx := &stx.Transaction
	reply.TxID = stx.Hash()
	reply.SignerID = tx.SignerID
	reply.PublicKey = primitives.PublicKeyString(tx.PublicKey)
	reply.Nonce = json.Uint64(tx.Nonce)
	reply.ReceiverID = tx.ReceiverID
	reply.Actions = make([]string, len(tx.Actions))
	for i, action := range tx.Actions {
		reply.Actions[i] = action.Name()
	}
	return nil
}
