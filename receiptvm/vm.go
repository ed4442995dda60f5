// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package receiptvm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/version"
	"github.com/gorilla/rpc/v2"
	log "github.com/inconshreveable/log15"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/receiptvm/host"
	"github.com/ava-labs/receiptvm/primitives"
	"github.com/ava-labs/receiptvm/runtime"
	"github.com/ava-labs/receiptvm/state"

	cjson "github.com/ava-labs/avalanchego/utils/json"
)

const (
	Name = "receiptvm"

	// maxStateViewSize bounds the contract state returned by ViewState.
	maxStateViewSize = 50_000
)

var (
	Version = version.NewDefaultVersion(0, 1, 0)

	logger = log.New("module", Name)

	ErrOutcomeNotFound = errors.New("outcome not found")
	errNoGenesis       = errors.New("genesis is required to initialize an empty database")
)

// VM is a standalone single-shard chain. Every block is one Apply of the
// runtime, and the receipts a block produces are the incoming receipts of
// the next one.
type VM struct {
	lock sync.RWMutex

	genesis *Genesis
	state   State
	runtime *runtime.Runtime
	viewer  *runtime.TrieViewer
	mempool *mempool
	metrics *metrics

	// lastAccepted is the head of the chain
	lastAccepted *Block
	// rejected are the transactions dropped before inclusion
	rejected map[ids.ID]error
}

// New opens a chain stored in [db]. An empty [db] is initialized from
// [genesis]. Metrics are registered on [registerer] when it is not nil.
func New(
	db database.Database,
	genesis *Genesis,
	engine host.Engine,
	registerer prometheus.Registerer,
) (*VM, error) {
	if genesis == nil {
		genesis = DefaultGenesis()
	}
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	runtimeMetrics, err := runtime.NewMetrics(registerer)
	if err != nil {
		return nil, fmt.Errorf("couldn't register runtime metrics: %w", err)
	}
	vmMetrics, err := newMetrics(registerer)
	if err != nil {
		return nil, fmt.Errorf("couldn't register vm metrics: %w", err)
	}

	rt := runtime.NewRuntime(engine, runtimeMetrics)
	vm := &VM{
		genesis:  genesis,
		state:    NewState(db),
		runtime:  rt,
		viewer:   runtime.NewTrieViewer(rt, maxStateViewSize, genesis.RuntimeConfig.Wasm.Limits.MaxGasBurntView),
		mempool:  newMempool(defaultMempoolSize),
		metrics:  vmMetrics,
		rejected: make(map[ids.ID]error),
	}
	logger.Info("Initializing Receipt VM", "Version", Version)
	if err := vm.initialize(); err != nil {
		return nil, err
	}
	return vm, nil
}

func (vm *VM) initialize() error {
	initialized, err := vm.state.IsInitialized()
	if err != nil {
		return err
	}
	if !initialized {
		return vm.initGenesis()
	}

	lastAcceptedID, err := vm.state.GetLastAccepted()
	if err != nil {
		return fmt.Errorf("couldn't get last accepted block: %w", err)
	}
	vm.lastAccepted, err = vm.state.GetBlock(lastAcceptedID)
	if err != nil {
		return fmt.Errorf("couldn't get block %s: %w", lastAcceptedID, err)
	}
	vm.metrics.height.Set(float64(vm.lastAccepted.Height()))
	logger.Info("loaded chain", "height", vm.lastAccepted.Height(), "block", lastAcceptedID)
	return nil
}

// initGenesis writes the genesis state and block.
func (vm *VM) initGenesis() error {
	if vm.genesis.RuntimeConfig == nil {
		return errNoGenesis
	}
	tries := vm.state.Tries()
	changes, err := runtime.ApplyGenesisState(tries, vm.genesis.StateRecords, vm.genesis.RuntimeConfig)
	if err != nil {
		return fmt.Errorf("couldn't apply genesis state: %w", err)
	}
	if err := tries.ApplyChanges(changes); err != nil {
		vm.state.Abort()
		return err
	}

	genesisBlock := &Block{
		PrntID:    ids.Empty,
		Hght:      vm.genesis.GenesisHeight,
		Tmstmp:    vm.genesis.GenesisTime,
		GasPrice:  vm.genesis.GasPrice,
		GasLimit:  vm.genesis.GasLimit,
		StateRoot: changes.NewRoot,
	}
	if err := genesisBlock.initialize(); err != nil {
		vm.state.Abort()
		return err
	}
	if err := vm.state.PutBlock(genesisBlock); err != nil {
		vm.state.Abort()
		return fmt.Errorf("couldn't save genesis block: %w", err)
	}
	if err := vm.state.SetLastAccepted(genesisBlock.ID()); err != nil {
		vm.state.Abort()
		return err
	}
	if err := vm.state.SetInitialized(); err != nil {
		vm.state.Abort()
		return err
	}
	if err := vm.state.Commit(); err != nil {
		return err
	}
	vm.lastAccepted = genesisBlock
	logger.Info("initialized genesis", "block", genesisBlock.ID(), "root", changes.NewRoot)
	return nil
}

// LastAccepted returns the head block.
func (vm *VM) LastAccepted() *Block {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	return vm.lastAccepted
}

// GetBlock returns the block with ID [blkID].
func (vm *VM) GetBlock(blkID ids.ID) (*Block, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	return vm.state.GetBlock(blkID)
}

// GetBlockAtHeight returns the block at [height].
func (vm *VM) GetBlockAtHeight(height uint64) (*Block, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	blkID, err := vm.state.GetBlockIDAtHeight(height)
	if err != nil {
		return nil, err
	}
	return vm.state.GetBlock(blkID)
}

// SendTransaction checks [stx] against the head state and queues it for
// the next block.
func (vm *VM) SendTransaction(stx *primitives.SignedTransaction) (ids.ID, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	txID := stx.Hash()
	u, err := vm.state.Tries().NewTrieUpdate(vm.lastAccepted.StateRoot)
	if err != nil {
		return ids.Empty, err
	}
	defer u.Rollback()

	if _, err := runtime.VerifyAndChargeTransaction(vm.genesis.RuntimeConfig, u, vm.lastAccepted.GasPrice, stx, true); err != nil {
		return ids.Empty, fmt.Errorf("invalid transaction %s: %w", txID, err)
	}
	if err := vm.mempool.Add(stx); err != nil {
		return ids.Empty, err
	}
	delete(vm.rejected, txID)
	vm.metrics.mempoolSize.Set(float64(vm.mempool.Len()))
	logger.Debug("queued transaction", "txID", txID, "signer", stx.Transaction.SignerID)
	return txID, nil
}

// ProduceBlock applies the mempool and the pending receipts on top of the
// head and accepts the result.
func (vm *VM) ProduceBlock() (*Block, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	return vm.produceBlock()
}

// ProduceBlocks produces [n] blocks.
func (vm *VM) ProduceBlocks(n int) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	for i := 0; i < n; i++ {
		if _, err := vm.produceBlock(); err != nil {
			return err
		}
	}
	return nil
}

// ProcessAll produces blocks until no transactions or receipts are left.
func (vm *VM) ProcessAll() error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	for {
		if _, err := vm.produceBlock(); err != nil {
			return err
		}
		pending, err := vm.hasPendingWork()
		if err != nil || !pending {
			return err
		}
	}
}

// Outcome returns the outcome produced for the transaction or receipt
// [id].
func (vm *VM) Outcome(id ids.ID) (*primitives.ExecutionOutcome, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	return vm.outcome(id)
}

func (vm *VM) outcome(id ids.ID) (*primitives.ExecutionOutcome, error) {
	outcome, err := vm.state.GetOutcome(id)
	if err == database.ErrNotFound {
		return nil, fmt.Errorf("%w: %s", ErrOutcomeNotFound, id)
	}
	return outcome, err
}

// ResolveTransaction produces blocks until the transaction [txID] has a
// final outcome. It follows the receipt a successful outcome points to and
// returns the ID and the outcome at the end of the chain.
func (vm *VM) ResolveTransaction(txID ids.ID) (ids.ID, *primitives.ExecutionOutcome, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if err, ok := vm.rejected[txID]; ok {
		return txID, nil, err
	}
	id := txID
	for {
		outcome, err := vm.state.GetOutcome(id)
		switch {
		case err == nil:
			next, ok := outcome.Status.(primitives.StatusSuccessReceiptID)
			if !ok {
				return id, outcome, nil
			}
			id = next.ReceiptID
			continue
		case err != database.ErrNotFound:
			return id, nil, err
		}

		pending, err := vm.hasPendingWork()
		if err != nil {
			return id, nil, err
		}
		if !pending {
			return id, nil, fmt.Errorf("%w: %s", ErrOutcomeNotFound, id)
		}
		if _, err := vm.produceBlock(); err != nil {
			return id, nil, err
		}
		if err, ok := vm.rejected[txID]; ok {
			return txID, nil, err
		}
	}
}

// ViewAccount returns the account [accountID] at the head.
func (vm *VM) ViewAccount(accountID string) (*primitives.Account, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	u, err := vm.headUpdate()
	if err != nil {
		return nil, err
	}
	return vm.viewer.ViewAccount(u, accountID)
}

// ViewAccessKey returns the access key [publicKey] of [accountID].
func (vm *VM) ViewAccessKey(accountID string, publicKey []byte) (*primitives.AccessKey, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	u, err := vm.headUpdate()
	if err != nil {
		return nil, err
	}
	return vm.viewer.ViewAccessKey(u, accountID, publicKey)
}

// ViewState returns the contract data of [accountID] under [prefix].
func (vm *VM) ViewState(accountID string, prefix []byte) ([]runtime.StateItem, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	u, err := vm.headUpdate()
	if err != nil {
		return nil, err
	}
	return vm.viewer.ViewState(u, accountID, prefix)
}

// ViewMethodCall runs [method] of [accountID] in view mode and returns the
// value and logs.
func (vm *VM) ViewMethodCall(accountID string, method string, args []byte) ([]byte, []string, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	u, err := vm.headUpdate()
	if err != nil {
		return nil, nil, err
	}
	viewState := &runtime.ViewApplyState{
		BlockNumber:    vm.lastAccepted.Height(),
		BlockTimestamp: vm.lastAccepted.Timestamp(),
		Config:         vm.genesis.RuntimeConfig,
	}
	return vm.viewer.CallFunction(u, viewState, accountID, method, args)
}

// Run produces a block every [interval] while there is work to do, until
// [ctx] is done.
func (vm *VM) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		vm.lock.Lock()
		pending, err := vm.hasPendingWork()
		if err == nil && pending {
			_, err = vm.produceBlock()
		}
		vm.lock.Unlock()
		if err != nil {
			logger.Error("couldn't produce block", "err", err)
		}
	}
}

// CreateHandlers returns a map where:
// Keys: The path extension for this VM's API
// Values: The handler for the API
func (vm *VM) CreateHandlers() (map[string]http.Handler, error) {
	handler, err := newHandler(Name, &Service{vm: vm})
	if err != nil {
		return nil, err
	}
	staticHandler, err := newHandler(Name, CreateStaticService())
	if err != nil {
		return nil, err
	}
	return map[string]http.Handler{
		"":        handler,
		"/static": staticHandler,
	}, nil
}

// Shutdown closes the database.
func (vm *VM) Shutdown() error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	return vm.state.Close()
}

func newHandler(name string, service interface{}) (http.Handler, error) {
	server := rpc.NewServer()
	codec := cjson.NewCodec()
	server.RegisterCodec(codec, "application/json")
	server.RegisterCodec(codec, "application/json;charset=UTF-8")
	return server, server.RegisterService(service, name)
}

func (vm *VM) headUpdate() (*state.TrieUpdate, error) {
	return vm.state.Tries().NewTrieUpdate(vm.lastAccepted.StateRoot)
}

// hasPendingWork reports whether the next block has anything to apply.
func (vm *VM) hasPendingWork() (bool, error) {
	if vm.mempool.Len() > 0 || len(vm.lastAccepted.OutgoingReceipts) > 0 {
		return true, nil
	}
	u, err := vm.headUpdate()
	if err != nil {
		return false, err
	}
	indices, err := state.GetDelayedReceiptIndices(u)
	if err != nil {
		return false, err
	}
	return indices.Len() > 0, nil
}

// selectTransactions drains the mempool and keeps the transactions that
// are still valid on top of [parent], in order. The rest are rejected.
func (vm *VM) selectTransactions(parent *Block) ([]*primitives.SignedTransaction, error) {
	candidates := vm.mempool.Drain()
	vm.metrics.mempoolSize.Set(0)
	if len(candidates) == 0 {
		return nil, nil
	}

	u, err := vm.state.Tries().NewTrieUpdate(parent.StateRoot)
	if err != nil {
		return nil, err
	}
	txs := make([]*primitives.SignedTransaction, 0, len(candidates))
	for _, stx := range candidates {
		_, err := runtime.VerifyAndChargeTransaction(vm.genesis.RuntimeConfig, u, parent.GasPrice, stx, true)
		var invalid primitives.InvalidTxError
		switch {
		case errors.As(err, &invalid):
			u.Rollback()
			vm.rejected[stx.Hash()] = err
			vm.metrics.rejectedTxs.Inc()
			logger.Warn("dropping transaction", "txID", stx.Hash(), "err", err)
			continue
		case err != nil:
			return nil, err
		}
		cause := primitives.StateChangeCause{Kind: primitives.CauseTransactionProcessing, Hash: stx.Hash()}
		if err := u.Commit(cause); err != nil {
			return nil, err
		}
		txs = append(txs, stx)
	}
	return txs, nil
}

func (vm *VM) produceBlock() (*Block, error) {
	parent := vm.lastAccepted
	txs, err := vm.selectTransactions(parent)
	if err != nil {
		return nil, err
	}

	blk := &Block{
		PrntID:           parent.ID(),
		Hght:             parent.Hght + 1,
		Tmstmp:           parent.Tmstmp + vm.genesis.BlockProdTime,
		GasPrice:         parent.GasPrice,
		GasLimit:         parent.GasLimit,
		PrevStateRoot:    parent.StateRoot,
		Transactions:     txs,
		IncomingReceipts: parent.OutgoingReceipts,
	}
	applyState := &runtime.ApplyState{
		BlockNumber:    blk.Hght,
		BlockTimestamp: blk.Tmstmp,
		GasPrice:       blk.GasPrice,
		GasLimit:       blk.GasLimit,
		HasGasLimit:    blk.GasLimit != 0,
		RandomSeed:     parent.ID(),
		Config:         vm.genesis.RuntimeConfig,
	}
	result, err := vm.runtime.Apply(vm.state.Tries(), parent.StateRoot, applyState, blk.IncomingReceipts, txs)
	if err != nil {
		return nil, err
	}
	blk.StateRoot = result.StateRoot
	blk.OutgoingReceipts = result.OutgoingReceipts
	blk.Outcomes = result.Outcomes
	if err := blk.initialize(); err != nil {
		return nil, err
	}
	if err := blk.Verify(parent); err != nil {
		return nil, err
	}
	if err := vm.acceptBlock(blk, result.TrieChanges); err != nil {
		return nil, err
	}
	return blk, nil
}

// acceptBlock writes the state changes, the block and its outcomes in one
// commit and moves the head to [blk].
func (vm *VM) acceptBlock(blk *Block, changes *state.TrieChanges) error {
	if err := vm.writeBlock(blk, changes); err != nil {
		vm.state.Abort()
		return err
	}
	if err := vm.state.Commit(); err != nil {
		return err
	}
	vm.lastAccepted = blk
	vm.metrics.blocks.Inc()
	vm.metrics.height.Set(float64(blk.Height()))
	logger.Info("accepted block",
		"height", blk.Height(),
		"block", blk.ID(),
		"txs", len(blk.Transactions),
		"incoming", len(blk.IncomingReceipts),
		"outgoing", len(blk.OutgoingReceipts),
	)
	return nil
}

func (vm *VM) writeBlock(blk *Block, changes *state.TrieChanges) error {
	if err := vm.state.Tries().ApplyChanges(changes); err != nil {
		return err
	}
	if err := vm.state.PutBlock(blk); err != nil {
		return fmt.Errorf("couldn't save block %s: %w", blk.ID(), err)
	}
	for _, outcome := range blk.Outcomes {
		if err := vm.state.PutOutcome(outcome); err != nil {
			return err
		}
	}
	return vm.state.SetLastAccepted(blk.ID())
}
