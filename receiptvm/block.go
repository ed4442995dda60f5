// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package receiptvm

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"

	"github.com/ava-labs/receiptvm/primitives"
)

var (
	errBlockWrongVersion = errors.New("wrong block codec version")
	errWrongParent       = errors.New("block doesn't build on its parent")
	errWrongHeight       = errors.New("block height isn't one more than its parent's")
	errTimestampTooEarly = errors.New("block's timestamp is earlier than its parent's timestamp")
	errWrongPrevRoot     = errors.New("block doesn't start from its parent's state root")
)

// Block is one Apply of the runtime.
// Each block contains:
// 1) The transactions pulled from the mempool
// 2) The receipts produced by the previous block
// 3) The outcomes and receipts the Apply produced
type Block struct {
	PrntID        ids.ID             `serialize:"true" json:"parentID"`  // parent's ID
	Hght          uint64             `serialize:"true" json:"height"`    // This block's height. The genesis block is at height 0.
	Tmstmp        uint64             `serialize:"true" json:"timestamp"` // Nanoseconds since the genesis time
	GasPrice      primitives.Balance `serialize:"true" json:"-"`
	GasLimit      primitives.Gas     `serialize:"true" json:"gasLimit"`
	PrevStateRoot ids.ID             `serialize:"true" json:"prevStateRoot"`
	StateRoot     ids.ID             `serialize:"true" json:"stateRoot"`

	Transactions     []*primitives.SignedTransaction      `serialize:"true" json:"-"`
	IncomingReceipts []*primitives.Receipt                `serialize:"true" json:"-"`
	OutgoingReceipts []*primitives.Receipt                `serialize:"true" json:"-"`
	Outcomes         []*primitives.ExecutionOutcomeWithID `serialize:"true" json:"-"`

	id    ids.ID // hold this block's ID
	bytes []byte // this block's encoded bytes
}

// ID returns the ID of this block
func (b *Block) ID() ids.ID { return b.id }

// Parent returns [b]'s parent's ID
func (b *Block) Parent() ids.ID { return b.PrntID }

// Height returns this block's height. The genesis block has height 0.
func (b *Block) Height() uint64 { return b.Hght }

// Timestamp returns this block's time.
func (b *Block) Timestamp() uint64 { return b.Tmstmp }

// Bytes returns the byte repr. of this block
func (b *Block) Bytes() []byte { return b.bytes }

// initialize encodes [b] and derives its ID from the encoding.
func (b *Block) initialize() error {
	bytes, err := primitives.Codec.Marshal(primitives.CodecVersion, b)
	if err != nil {
		return fmt.Errorf("couldn't marshal block: %w", err)
	}
	b.bytes = bytes
	b.id = hashing.ComputeHash256Array(bytes)
	return nil
}

// Verify checks that [b] follows [parent].
func (b *Block) Verify(parent *Block) error {
	if b.PrntID != parent.ID() {
		return errWrongParent
	}
	if b.Hght != parent.Hght+1 {
		return errWrongHeight
	}
	if b.Tmstmp < parent.Tmstmp {
		return errTimestampTooEarly
	}
	if b.PrevStateRoot != parent.StateRoot {
		return errWrongPrevRoot
	}
	return nil
}

// ParseBlock decodes a block and restores the cached fields of its
// transactions.
func ParseBlock(bytes []byte) (*Block, error) {
	blk := &Block{}
	version, err := primitives.Codec.Unmarshal(bytes, blk)
	if err != nil {
		return nil, err
	}
	if version != primitives.CodecVersion {
		return nil, errBlockWrongVersion
	}
	for _, stx := range blk.Transactions {
		if err := stx.Init(); err != nil {
			return nil, err
		}
	}
	blk.bytes = bytes
	blk.id = hashing.ComputeHash256Array(bytes)
	return blk, nil
}
