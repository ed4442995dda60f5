// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package receiptvm

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/receiptvm/primitives"
)

var (
	errEmptyMempool    = errors.New("empty mempool")
	errDuplicateTx     = errors.New("transaction is already in the mempool")
	defaultMempoolSize = 1024
)

// mempool is a bounded FIFO of signed transactions.
type mempool struct {
	lock    sync.Mutex
	pending map[ids.ID]struct{}
	txs     chan *primitives.SignedTransaction
}

func newMempool(size int) *mempool {
	return &mempool{
		pending: make(map[ids.ID]struct{}, size),
		txs:     make(chan *primitives.SignedTransaction, size),
	}
}

func (m *mempool) Add(stx *primitives.SignedTransaction) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	txID := stx.Hash()
	if _, ok := m.pending[txID]; ok {
		return errDuplicateTx
	}

	select {
	case m.txs <- stx:
		m.pending[txID] = struct{}{}
		return nil
	default:
		return fmt.Errorf("failed to add Tx(%s) to mempool due to full at size (%d)", txID, cap(m.txs))
	}
}

func (m *mempool) Next() (*primitives.SignedTransaction, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	select {
	case stx := <-m.txs:
		delete(m.pending, stx.Hash())
		return stx, nil
	default:
		return nil, errEmptyMempool
	}
}

// Drain removes every transaction in arrival order.
func (m *mempool) Drain() []*primitives.SignedTransaction {
	var txs []*primitives.SignedTransaction
	for {
		stx, err := m.Next()
		if err != nil {
			return txs
		}
		txs = append(txs, stx)
	}
}

func (m *mempool) Has(txID ids.ID) bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	_, ok := m.pending[txID]
	return ok
}

func (m *mempool) Len() int {
	return len(m.txs)
}
