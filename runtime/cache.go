// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"sync"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/receiptvm/host"
)

const codeCacheSize = 128

// codeCache keeps recently called contracts by code hash.
type codeCache struct {
	lock  sync.Mutex
	codes *cache.LRU
}

func newCodeCache(size int) *codeCache {
	return &codeCache{codes: &cache.LRU{Size: size}}
}

// get returns the code hashed to [codeHash], reading it with [load] on a
// miss. A nil result means nothing is deployed.
func (c *codeCache) get(codeHash ids.ID, load func() ([]byte, error)) (*host.ContractCode, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if code, ok := c.codes.Get(codeHash); ok {
		return code.(*host.ContractCode), nil
	}
	raw, err := load()
	if err != nil || raw == nil {
		return nil, err
	}
	code := host.NewContractCode(raw)
	if code.Hash != codeHash {
		return code, nil
	}
	c.codes.Put(codeHash, code)
	return code, nil
}

func (c *codeCache) put(code *host.ContractCode) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.codes.Put(code.Hash, code)
}
