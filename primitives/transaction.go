// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package primitives

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
)

var errTxWrongVersion = errors.New("wrong transaction codec version")

// Transaction is the unsigned body of a SignedTransaction.
type Transaction struct {
	SignerID   string   `serialize:"true"`
	PublicKey  []byte   `serialize:"true"`
	Nonce      uint64   `serialize:"true"`
	ReceiverID string   `serialize:"true"`
	BlockHash  ids.ID   `serialize:"true"`
	Actions    []Action `serialize:"true"`
}

// Bytes returns the canonical encoding that is hashed and signed.
func (tx *Transaction) Bytes() ([]byte, error) {
	return Codec.Marshal(CodecVersion, tx)
}

// Hash returns the sha256 of the canonical encoding.
func (tx *Transaction) Hash() (ids.ID, error) {
	b, err := tx.Bytes()
	if err != nil {
		return ids.Empty, err
	}
	return HashBytes(b), nil
}

// Sign produces a SignedTransaction with [signer]'s signature over the hash.
func (tx *Transaction) Sign(signer Signer) (*SignedTransaction, error) {
	hash, err := tx.Hash()
	if err != nil {
		return nil, err
	}
	sig, err := signer.Sign(hash[:])
	if err != nil {
		return nil, fmt.Errorf("couldn't sign transaction: %w", err)
	}
	stx := &SignedTransaction{Transaction: *tx, Signature: sig}
	return stx, stx.Init()
}

// SignedTransaction is a transaction together with its signature. Its hash
// and size are cached by Init.
type SignedTransaction struct {
	Transaction Transaction `serialize:"true"`
	Signature   []byte      `serialize:"true"`

	hash ids.ID
	size uint64
}

// Init computes the cached hash and size.
func (stx *SignedTransaction) Init() error {
	hash, err := stx.Transaction.Hash()
	if err != nil {
		return err
	}
	b, err := Codec.Marshal(CodecVersion, stx)
	if err != nil {
		return err
	}
	stx.hash = hash
	stx.size = uint64(len(b))
	return nil
}

func (stx *SignedTransaction) Hash() ids.ID { return stx.hash }

// Size is the length of the encoded signed transaction.
func (stx *SignedTransaction) Size() uint64 { return stx.size }

func (stx *SignedTransaction) Bytes() ([]byte, error) {
	return Codec.Marshal(CodecVersion, stx)
}

// ParseSignedTransaction decodes and initializes a signed transaction.
func ParseSignedTransaction(b []byte) (*SignedTransaction, error) {
	stx := &SignedTransaction{}
	version, err := Codec.Unmarshal(b, stx)
	if err != nil {
		return nil, err
	}
	if version != CodecVersion {
		return nil, errTxWrongVersion
	}
	return stx, stx.Init()
}

// NewSignedTransaction builds and signs a transaction carrying [actions].
func NewSignedTransaction(
	nonce uint64,
	signerID string,
	receiverID string,
	signer Signer,
	actions []Action,
	blockHash ids.ID,
) (*SignedTransaction, error) {
	tx := &Transaction{
		SignerID:   signerID,
		PublicKey:  signer.PublicKey(),
		Nonce:      nonce,
		ReceiverID: receiverID,
		BlockHash:  blockHash,
		Actions:    actions,
	}
	return tx.Sign(signer)
}

// SendMoney returns a signed transfer of [deposit] tokens.
func SendMoney(
	nonce uint64,
	signerID string,
	receiverID string,
	signer Signer,
	deposit Balance,
	blockHash ids.ID,
) (*SignedTransaction, error) {
	return NewSignedTransaction(
		nonce,
		signerID,
		receiverID,
		signer,
		[]Action{&TransferAction{Deposit: deposit}},
		blockHash,
	)
}
