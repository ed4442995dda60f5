// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"errors"
	"fmt"
	"time"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/receiptvm/host"
	"github.com/ava-labs/receiptvm/primitives"
	"github.com/ava-labs/receiptvm/state"
)

var (
	ErrAccountDoesNotExist   = errors.New("account doesn't exist")
	ErrNoContractCode        = errors.New("contract code doesn't exist")
	ErrAccessKeyDoesNotExist = errors.New("access key doesn't exist")
	ErrAccountStateTooLarge  = errors.New("state of the account is too large to be viewed")
)

// CallFunctionError is a view call that failed inside the contract.
type CallFunctionError struct {
	Err error
}

func (e *CallFunctionError) Error() string {
	return fmt.Sprintf("wasm execution failed with error: %s", e.Err)
}

func (e *CallFunctionError) Unwrap() error { return e.Err }

// ViewApplyState is the block context of a view call.
type ViewApplyState struct {
	BlockNumber    uint64
	BlockTimestamp uint64
	Config         *primitives.RuntimeConfig
}

// StateItem is a contract data record with the account prefix removed.
type StateItem struct {
	Key   []byte
	Value []byte
}

// TrieViewer answers read-only queries about the state.
type TrieViewer struct {
	runtime *Runtime

	stateSizeLimit    uint64
	hasStateSizeLimit bool
	maxGasBurntView   primitives.Gas
}

// NewTrieViewer returns a viewer running view calls on [runtime] with at
// most [maxGasBurntView] gas. A zero [stateSizeLimit] disables the limit.
func NewTrieViewer(runtime *Runtime, stateSizeLimit uint64, maxGasBurntView primitives.Gas) *TrieViewer {
	return &TrieViewer{
		runtime:           runtime,
		stateSizeLimit:    stateSizeLimit,
		hasStateSizeLimit: stateSizeLimit != 0,
		maxGasBurntView:   maxGasBurntView,
	}
}

func (v *TrieViewer) ViewAccount(u *state.TrieUpdate, accountID string) (*primitives.Account, error) {
	account, err := state.GetAccount(u, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountDoesNotExist, accountID)
	}
	return account, nil
}

func (v *TrieViewer) ViewContractCode(u *state.TrieUpdate, accountID string) (*host.ContractCode, error) {
	if _, err := v.ViewAccount(u, accountID); err != nil {
		return nil, err
	}
	code, err := state.GetCode(u, accountID)
	if err != nil {
		return nil, err
	}
	if code == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoContractCode, accountID)
	}
	return host.NewContractCode(code), nil
}

func (v *TrieViewer) ViewAccessKey(u *state.TrieUpdate, accountID string, publicKey []byte) (*primitives.AccessKey, error) {
	accessKey, err := state.GetAccessKey(u, accountID, publicKey)
	if err != nil {
		return nil, err
	}
	if accessKey == nil {
		return nil, fmt.Errorf("%w: %s of %s", ErrAccessKeyDoesNotExist, primitives.PublicKeyString(publicKey), accountID)
	}
	return accessKey, nil
}

// ViewState returns the contract data of [accountID] under [prefix] in key
// order.
func (v *TrieViewer) ViewState(u *state.TrieUpdate, accountID string, prefix []byte) ([]StateItem, error) {
	account, err := v.ViewAccount(u, accountID)
	if err != nil {
		return nil, err
	}
	if v.hasStateSizeLimit {
		code, err := state.GetCode(u, accountID)
		if err != nil {
			return nil, err
		}
		if primitives.SaturatingSubGas(account.StorageUsage, uint64(len(code))) > v.stateSizeLimit {
			return nil, fmt.Errorf("%w: %s", ErrAccountStateTooLarge, accountID)
		}
	}

	items := []StateItem{}
	err = u.Iterate(state.ContractDataKey(accountID, prefix), func(key, value []byte) error {
		dataKey, ok := state.SplitContractDataKey(accountID, key)
		if !ok {
			return primitives.NewStorageInconsistentState("can't parse data key %x of %s", key, accountID)
		}
		items = append(items, StateItem{Key: copyBytes(dataKey), Value: copyBytes(value)})
		return nil
	})
	return items, err
}

// CallFunction runs [method] of [contractID] in view mode and returns its
// value and logs. Changes made to [u] are discarded.
func (v *TrieViewer) CallFunction(
	u *state.TrieUpdate,
	viewState *ViewApplyState,
	contractID string,
	method string,
	args []byte,
) ([]byte, []string, error) {
	defer u.Rollback()

	start := time.Now()
	account, err := v.ViewAccount(u, contractID)
	if err != nil {
		return nil, nil, err
	}

	config := viewState.Config
	if config == nil {
		config = primitives.TestRuntimeConfig()
	}
	viewConfig := *config
	viewConfig.Wasm.Limits.MaxGasBurntView = v.maxGasBurntView

	applyState := &ApplyState{
		BlockNumber:    viewState.BlockNumber,
		BlockTimestamp: viewState.BlockTimestamp,
		RandomSeed:     u.Root(),
		Config:         &viewConfig,
	}
	ext := NewRuntimeExt(u, v.runtime.codes, contractID, contractID, nil, primitives.Balance{}, ids.Empty)
	actionReceipt := &primitives.ActionReceipt{SignerID: contractID}
	call := &primitives.FunctionCallAction{
		MethodName: method,
		Args:       args,
		Gas:        v.maxGasBurntView,
	}

	outcome, err := v.runtime.executeFunctionCall(
		applyState,
		ext,
		account,
		contractID,
		actionReceipt,
		nil,
		call,
		ids.Empty,
		true,
		true,
	)
	var logs []string
	if outcome != nil {
		logs = outcome.Logs
	}
	if err != nil {
		logger.Debug("view call failed",
			"contract", contractID,
			"method", method,
			"duration", time.Since(start),
			"err", err,
		)
		return nil, logs, &CallFunctionError{Err: err}
	}
	logger.Debug("view call",
		"contract", contractID,
		"method", method,
		"duration", time.Since(start),
	)
	if outcome.ReturnData.Kind != host.ReturnValue {
		return []byte{}, logs, nil
	}
	return outcome.ReturnData.Value, logs, nil
}
