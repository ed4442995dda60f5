// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package receiptvm

import (
	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/wrappers"
)

const (
	blockCacheSize = 8192
)

var _ BlockState = &blockState{}

// BlockState stores blocks by ID and indexes them by height.
type BlockState interface {
	GetBlock(blkID ids.ID) (*Block, error)
	PutBlock(blk *Block) error
	GetBlockIDAtHeight(height uint64) (ids.ID, error)

	ClearCache()
}

type blockState struct {
	blkCache cache.Cacher
	blockDB  database.Database
	heightDB database.Database
}

func NewBlockState(blockDB, heightDB database.Database) BlockState {
	return &blockState{
		blkCache: &cache.LRU{Size: blockCacheSize},
		blockDB:  blockDB,
		heightDB: heightDB,
	}
}

func (s *blockState) GetBlock(blkID ids.ID) (*Block, error) {
	if blkIntf, ok := s.blkCache.Get(blkID); ok {
		return blkIntf.(*Block), nil
	}

	blkBytes, err := s.blockDB.Get(blkID[:])
	if err != nil {
		return nil, err
	}

	blk, err := ParseBlock(blkBytes)
	if err != nil {
		return nil, err
	}

	s.blkCache.Put(blkID, blk)
	return blk, nil
}

func (s *blockState) PutBlock(blk *Block) error {
	blkID := blk.ID()
	s.blkCache.Put(blkID, blk)
	if err := s.blockDB.Put(blkID[:], blk.Bytes()); err != nil {
		return err
	}

	p := wrappers.Packer{Bytes: make([]byte, wrappers.LongLen)}
	p.PackLong(blk.Height())
	return s.heightDB.Put(p.Bytes, blkID[:])
}

func (s *blockState) GetBlockIDAtHeight(height uint64) (ids.ID, error) {
	p := wrappers.Packer{Bytes: make([]byte, wrappers.LongLen)}
	p.PackLong(height)
	idBytes, err := s.heightDB.Get(p.Bytes)
	if err != nil {
		return ids.Empty, err
	}
	return ids.ToID(idBytes)
}

func (s *blockState) ClearCache() {
	s.blkCache.Flush()
}
