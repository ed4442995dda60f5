// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/receiptvm/host"
	"github.com/ava-labs/receiptvm/primitives"
	"github.com/ava-labs/receiptvm/sdk/testcontracts"
)

const testContractID = "test.near"

func setupViewer(t *testing.T, stateSizeLimit uint64) (*testEnv, *TrieViewer) {
	records := contractRecords(testContractID, testcontracts.TestContractCode(), toYocto(10))
	records = append(records, &primitives.DataRecord{
		AccountID: testContractID,
		Key:       []byte("hello"),
		Value:     []byte("world"),
	})
	env := setupRuntime(t, toYocto(1_000), primitives.Balance{}, 1_000_000_000_000_000, records...)
	limits := primitives.DefaultVMLimitConfig()
	return env, NewTrieViewer(env.runtime, stateSizeLimit, limits.MaxGasBurntView)
}

func viewState(env *testEnv) *ViewApplyState {
	return &ViewApplyState{
		BlockNumber:    env.applyState.BlockNumber,
		BlockTimestamp: env.applyState.BlockTimestamp,
		Config:         env.applyState.Config,
	}
}

func TestViewAccount(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	env, viewer := setupViewer(t, 0)

	account, err := viewer.ViewAccount(env.update(t), testContractID)
	require.NoError(err)
	assert.Equal(toYocto(10), account.Amount)
	assert.Equal(host.NewContractCode(testcontracts.TestContractCode()).Hash, account.CodeHash)

	_, err = viewer.ViewAccount(env.update(t), "missing.near")
	assert.True(errors.Is(err, ErrAccountDoesNotExist))
}

func TestViewContractCode(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	env, viewer := setupViewer(t, 0)

	code, err := viewer.ViewContractCode(env.update(t), testContractID)
	require.NoError(err)
	assert.Equal(testcontracts.TestContractCode(), code.Code)

	_, err = viewer.ViewContractCode(env.update(t), aliceID)
	assert.True(errors.Is(err, ErrNoContractCode))
}

func TestViewAccessKey(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	env, viewer := setupViewer(t, 0)

	key, err := viewer.ViewAccessKey(env.update(t), aliceID, env.signer.PublicKey())
	require.NoError(err)
	assert.True(key.IsFullAccess())

	other := primitives.NewTestSigner("other")
	_, err = viewer.ViewAccessKey(env.update(t), aliceID, other.PublicKey())
	assert.True(errors.Is(err, ErrAccessKeyDoesNotExist))
}

func TestViewState(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	env, viewer := setupViewer(t, 0)

	stx := env.tx(t, 1, testContractID, &primitives.FunctionCallAction{
		MethodName: "write_key_value",
		Args:       []byte(`{"key":"foo","value":"bar"}`),
		Gas:        10_000_000_000_000,
	})
	outcomes := env.run(t, stx)
	_, ok := finalOutcome(t, outcomes, stx.Hash()).Status.(primitives.StatusSuccessValue)
	require.True(ok)

	items, err := viewer.ViewState(env.update(t), testContractID, nil)
	require.NoError(err)
	assert.Equal([]StateItem{
		{Key: []byte("foo"), Value: []byte("bar")},
		{Key: []byte("hello"), Value: []byte("world")},
	}, items)

	items, err = viewer.ViewState(env.update(t), testContractID, []byte("he"))
	require.NoError(err)
	assert.Equal([]StateItem{{Key: []byte("hello"), Value: []byte("world")}}, items)

	items, err = viewer.ViewState(env.update(t), aliceID, nil)
	require.NoError(err)
	assert.Empty(items)
}

func TestViewStateTooLarge(t *testing.T) {
	assert := assert.New(t)

	env, viewer := setupViewer(t, 1)
	_, err := viewer.ViewState(env.update(t), testContractID, nil)
	assert.True(errors.Is(err, ErrAccountStateTooLarge))
}

func TestCallFunction(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	env, viewer := setupViewer(t, 0)

	value, _, err := viewer.CallFunction(env.update(t), viewState(env), testContractID, "read_value", []byte(`{"key":"hello"}`))
	require.NoError(err)
	assert.Equal([]byte(`"world"`), value)

	value, _, err = viewer.CallFunction(env.update(t), viewState(env), testContractID, "ext_account_id", nil)
	require.NoError(err)
	assert.Equal([]byte(`"test.near"`), value)

	value, logs, err := viewer.CallFunction(env.update(t), viewState(env), testContractID, "log_something", nil)
	require.NoError(err)
	assert.Equal([]byte{}, value)
	assert.Equal([]string{"hello"}, logs)
}

func TestCallFunctionProhibitedInView(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	env, viewer := setupViewer(t, 0)
	root := env.root

	_, _, err := viewer.CallFunction(env.update(t), viewState(env), testContractID, "write_key_value", []byte(`{"key":"foo","value":"bar"}`))
	var callErr *CallFunctionError
	require.True(errors.As(err, &callErr))
	var hostErr *host.HostError
	require.True(errors.As(err, &hostErr))
	assert.Equal(host.ProhibitedInView, hostErr.Kind)

	items, err := viewer.ViewState(env.update(t), testContractID, []byte("foo"))
	require.NoError(err)
	assert.Empty(items)
	assert.Equal(root, env.root)
}

func TestCallFunctionMissingMethod(t *testing.T) {
	assert := assert.New(t)

	env, viewer := setupViewer(t, 0)

	_, _, err := viewer.CallFunction(env.update(t), viewState(env), testContractID, "nope", nil)
	var resolveErr *host.MethodResolveError
	assert.True(errors.As(err, &resolveErr))

	_, _, err = viewer.CallFunction(env.update(t), viewState(env), "missing.near", "noop", nil)
	assert.True(errors.Is(err, ErrAccountDoesNotExist))
}
