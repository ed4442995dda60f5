// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"errors"
	"testing"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/receiptvm/host"
	"github.com/ava-labs/receiptvm/primitives"
	"github.com/ava-labs/receiptvm/sdk/testcontracts"
	"github.com/ava-labs/receiptvm/state"
)

const (
	aliceID  = "alice.near"
	bobID    = "bob.near"
	gasPrice = 5000
)

var yocto = new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(24))

func toYocto(n uint64) primitives.Balance {
	var b primitives.Balance
	b.Mul(uint256.NewInt(n), yocto)
	return b
}

type testEnv struct {
	runtime    *Runtime
	tries      *state.Tries
	root       ids.ID
	applyState *ApplyState
	signer     *primitives.InMemorySigner
}

// setupRuntime creates alice with a full access key plus [extra] records.
func setupRuntime(
	t *testing.T,
	initialBalance primitives.Balance,
	initialLocked primitives.Balance,
	gasLimit primitives.Gas,
	extra ...primitives.StateRecord,
) *testEnv {
	require := require.New(t)

	signer := primitives.NewTestSigner(aliceID)
	records := []primitives.StateRecord{
		&primitives.AccountRecord{
			AccountID: aliceID,
			Account:   primitives.Account{Amount: initialBalance, Locked: initialLocked},
		},
		&primitives.AccessKeyRecord{
			AccountID: aliceID,
			PublicKey: signer.PublicKey(),
			AccessKey: *primitives.FullAccessKey(),
		},
	}
	records = append(records, extra...)

	config := primitives.TestRuntimeConfig()
	tries := state.NewTestTries()
	changes, err := ApplyGenesisState(tries, records, config)
	require.NoError(err)
	require.NoError(tries.ApplyChanges(changes))

	return &testEnv{
		runtime: NewRuntime(host.NewNativeEngine(testcontracts.NewRegistry()), nil),
		tries:   tries,
		root:    changes.NewRoot,
		applyState: &ApplyState{
			BlockNumber:    1,
			BlockTimestamp: 100,
			GasPrice:       primitives.NewBalance(gasPrice),
			GasLimit:       gasLimit,
			HasGasLimit:    true,
			Config:         config,
		},
		signer: signer,
	}
}

func contractRecords(accountID string, code []byte, amount primitives.Balance) []primitives.StateRecord {
	return []primitives.StateRecord{
		&primitives.AccountRecord{
			AccountID: accountID,
			Account: primitives.Account{
				Amount:   amount,
				CodeHash: host.NewContractCode(code).Hash,
			},
		},
		&primitives.ContractRecord{AccountID: accountID, Code: code},
	}
}

func (e *testEnv) apply(t *testing.T, incoming []*primitives.Receipt, txs []*primitives.SignedTransaction) *ApplyResult {
	require := require.New(t)

	result, err := e.runtime.Apply(e.tries, e.root, e.applyState, incoming, txs)
	require.NoError(err)
	require.NoError(e.tries.ApplyChanges(result.TrieChanges))
	e.root = result.StateRoot
	return result
}

// run applies [txs] and then feeds outgoing receipts back until there are
// none left.
func (e *testEnv) run(t *testing.T, txs ...*primitives.SignedTransaction) map[ids.ID]*primitives.ExecutionOutcome {
	outcomes := make(map[ids.ID]*primitives.ExecutionOutcome)
	var incoming []*primitives.Receipt
	for i := 0; i < 16; i++ {
		result := e.apply(t, incoming, txs)
		for _, outcome := range result.Outcomes {
			outcomes[outcome.ID] = &outcome.Outcome
		}
		incoming, txs = result.OutgoingReceipts, nil
		if len(incoming) == 0 && e.delayedLen(t) == 0 {
			return outcomes
		}
	}
	t.Fatal("receipts are still pending")
	return nil
}

func (e *testEnv) update(t *testing.T) *state.TrieUpdate {
	u, err := e.tries.NewTrieUpdate(e.root)
	require.NoError(t, err)
	return u
}

func (e *testEnv) account(t *testing.T, accountID string) *primitives.Account {
	account, err := state.GetAccount(e.update(t), accountID)
	require.NoError(t, err)
	return account
}

func (e *testEnv) delayedLen(t *testing.T) uint64 {
	indices, err := state.GetDelayedReceiptIndices(e.update(t))
	require.NoError(t, err)
	return indices.Len()
}

func (e *testEnv) tx(t *testing.T, nonce uint64, receiverID string, actions ...primitives.Action) *primitives.SignedTransaction {
	stx, err := primitives.NewSignedTransaction(nonce, aliceID, receiverID, e.signer, actions, ids.Empty)
	require.NoError(t, err)
	return stx
}

// finalOutcome follows the SuccessReceiptID chain starting at [id].
func finalOutcome(t *testing.T, outcomes map[ids.ID]*primitives.ExecutionOutcome, id ids.ID) *primitives.ExecutionOutcome {
	for {
		outcome, ok := outcomes[id]
		require.True(t, ok, "missing outcome %s", id)
		next, ok := outcome.Status.(primitives.StatusSuccessReceiptID)
		if !ok {
			return outcome
		}
		id = next.ReceiptID
	}
}

func generateReceipts(smallTransfer primitives.Balance, n int) []*primitives.Receipt {
	receipts := make([]*primitives.Receipt, n)
	receiptID := ids.Empty
	for i := range receipts {
		receiptID = primitives.HashBytes(receiptID[:])
		deposit := smallTransfer
		deposit.AddUint64(&deposit, uint64(i))
		receipts[i] = &primitives.Receipt{
			PredecessorID: bobID,
			ReceiverID:    aliceID,
			ReceiptID:     receiptID,
			Body: &primitives.ActionReceipt{
				SignerID:        bobID,
				SignerPublicKey: []byte{},
				GasPrice:        primitives.NewBalance(gasPrice),
				Actions:         []primitives.Action{&primitives.TransferAction{Deposit: deposit}},
			},
		}
	}
	return receipts
}

func newRefundReceipts(smallTransfer primitives.Balance, n int) []*primitives.Receipt {
	receipts := make([]*primitives.Receipt, n)
	for i := range receipts {
		refund := smallTransfer
		refund.AddUint64(&refund, uint64(i))
		receipts[i] = primitives.NewBalanceRefund(aliceID, refund)
	}
	return receipts
}

// expectedBalance is the balance after receiving the first [k] generated
// transfers.
func expectedBalance(initial, smallTransfer primitives.Balance, k uint64) primitives.Balance {
	var transfers, expected primitives.Balance
	transfers.Mul(&smallTransfer, uint256.NewInt(k))
	expected.Add(&initial, &transfers)
	if k > 0 {
		expected.AddUint64(&expected, k*(k-1)/2)
	}
	return expected
}

func outcomeIDs(result *ApplyResult) []ids.ID {
	out := make([]ids.ID, len(result.Outcomes))
	for i, outcome := range result.Outcomes {
		out[i] = outcome.ID
	}
	return out
}

func TestApplyNoop(t *testing.T) {
	assert := assert.New(t)

	env := setupRuntime(t, toYocto(1_000_000), primitives.Balance{}, 1_000_000_000_000_000)
	root := env.root
	result := env.apply(t, nil, nil)
	assert.Equal(root, result.StateRoot)
	assert.Empty(result.Outcomes)
	assert.Empty(result.OutgoingReceipts)
}

func TestApplyDelayedReceiptsFeedAllAtOnce(t *testing.T) {
	assert := assert.New(t)

	initial := toYocto(1_000_000)
	smallTransfer := toYocto(10_000)
	env := setupRuntime(t, initial, toYocto(500_000), 1)

	const n = 10
	receipts := generateReceipts(smallTransfer, n)
	for i := uint64(1); i <= n+3; i++ {
		var incoming []*primitives.Receipt
		if i == 1 {
			incoming = receipts
		}
		env.apply(t, incoming, nil)

		processed := i
		if processed > n {
			processed = n
		}
		expected := expectedBalance(initial, smallTransfer, processed)
		assert.Equal(expected, env.account(t, aliceID).Amount, "block %d", i)
		assert.Equal(n-processed, env.delayedLen(t), "block %d", i)
	}
}

func TestApplyRefundReceipts(t *testing.T) {
	assert := assert.New(t)

	initial := toYocto(1_000_000)
	smallTransfer := toYocto(10_000)
	env := setupRuntime(t, initial, toYocto(500_000), 1)

	const n = 10
	receipts := newRefundReceipts(smallTransfer, n)
	for i := uint64(1); i <= n+3; i++ {
		var incoming []*primitives.Receipt
		if i == 1 {
			incoming = receipts
		}
		result := env.apply(t, incoming, nil)
		assert.True(result.Stats.TxBurntAmount.IsZero())

		processed := i
		if processed > n {
			processed = n
		}
		expected := expectedBalance(initial, smallTransfer, processed)
		assert.Equal(expected, env.account(t, aliceID).Amount, "block %d", i)
	}
}

func TestApplyDelayedReceiptsAddMoreUsingChunks(t *testing.T) {
	assert := assert.New(t)

	initial := toYocto(1_000_000)
	smallTransfer := toYocto(10_000)
	env := setupRuntime(t, initial, toYocto(500_000), 1)

	fees := &env.applyState.Config.Fees
	receiptGasCost := fees.ActionReceiptCreation.ExecFee() + ExecFee(fees, &primitives.TransferAction{}, aliceID)
	env.applyState.GasLimit = receiptGasCost * 3

	const n = 40
	receipts := generateReceipts(smallTransfer, n)
	for i := uint64(1); i <= n/3+3; i++ {
		var incoming []*primitives.Receipt
		if start := (i - 1) * 4; start < n {
			incoming = receipts[start : start+4]
		}
		env.apply(t, incoming, nil)

		processed := i * 3
		if processed > n {
			processed = n
		}
		expected := expectedBalance(initial, smallTransfer, processed)
		assert.Equal(expected, env.account(t, aliceID).Amount, "block %d", i)
	}
}

func TestApplyDelayedReceiptsLocalTx(t *testing.T) {
	assert := assert.New(t)

	smallTransfer := toYocto(10_000)
	env := setupRuntime(t, toYocto(1_000_000), toYocto(500_000), 1)

	const receiptExecFee = 1000
	config := primitives.FreeRuntimeConfig()
	config.Fees.ActionReceiptCreation.Execution = receiptExecFee
	env.applyState.Config = config
	env.applyState.GasLimit = receiptExecFee * 3

	receipts := generateReceipts(smallTransfer, 6)
	txs := make([]*primitives.SignedTransaction, 9)
	txReceipts := make([]ids.ID, len(txs))
	for i := range txs {
		stx, err := primitives.SendMoney(uint64(i+1), aliceID, aliceID, env.signer, smallTransfer, ids.Empty)
		require.NoError(t, err)
		txs[i] = stx
		txReceipts[i] = primitives.CreateReceiptIDFromTransaction(stx.Hash())
	}

	// Only three receipts fit in a block. The receipt of tx 3 and both
	// incoming receipts are delayed.
	result := env.apply(t, receipts[0:2], txs[0:4])
	assert.Equal([]ids.ID{
		txs[0].Hash(),
		txs[1].Hash(),
		txs[2].Hash(),
		txs[3].Hash(),
		txReceipts[0],
		txReceipts[1],
		txReceipts[2],
	}, outcomeIDs(result))

	// Local receipts go before the delayed queue, which goes before the
	// incoming receipts.
	result = env.apply(t, receipts[2:3], txs[4:5])
	assert.Equal([]ids.ID{
		txs[4].Hash(),
		txReceipts[4],
		txReceipts[3],
		receipts[0].ReceiptID,
	}, outcomeIDs(result))

	result = env.apply(t, receipts[3:4], txs[5:9])
	assert.Equal([]ids.ID{
		txs[5].Hash(),
		txs[6].Hash(),
		txs[7].Hash(),
		txs[8].Hash(),
		txReceipts[5],
		txReceipts[6],
		txReceipts[7],
	}, outcomeIDs(result))

	result = env.apply(t, receipts[4:5], nil)
	assert.Equal([]ids.ID{
		receipts[1].ReceiptID,
		receipts[2].ReceiptID,
		txReceipts[8],
	}, outcomeIDs(result))
	assert.Len(result.ProcessedDelayedReceipts, 3)

	result = env.apply(t, receipts[5:6], nil)
	assert.Equal([]ids.ID{
		receipts[3].ReceiptID,
		receipts[4].ReceiptID,
		receipts[5].ReceiptID,
	}, outcomeIDs(result))
	assert.Zero(env.delayedLen(t))
}

func TestApplyDeficitGasForTransfer(t *testing.T) {
	assert := assert.New(t)

	env := setupRuntime(t, toYocto(1_000_000), toYocto(500_000), 1_000_000_000_000_000)
	receipts := generateReceipts(toYocto(10_000), 1)
	receipts[0].Body.(*primitives.ActionReceipt).GasPrice = primitives.NewBalance(gasPrice / 10)

	result := env.apply(t, receipts, nil)
	var expected primitives.Balance
	expected.Mul(&result.Stats.TxBurntAmount, uint256.NewInt(9))
	assert.Equal(expected, result.Stats.GasDeficitAmount)
	assert.False(expected.IsZero())
}

func TestApplyDeficitGasForFunctionCallCovered(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	env := setupRuntime(t, toYocto(1_000_000), toYocto(500_000), 1_000_000_000_000_000)
	fees := &env.applyState.Config.Fees

	const gas = 200_000_000_000_000
	receiptPrice := primitives.NewBalance(gasPrice / 10)
	actions := []primitives.Action{&primitives.FunctionCallAction{
		MethodName: "hello",
		Args:       []byte("world"),
		Gas:        gas,
	}}
	execFees, err := TotalPrepaidExecFees(fees, actions, aliceID)
	require.NoError(err)
	expectedGasBurnt := fees.ActionReceiptCreation.ExecFee() + execFees

	receipts := []*primitives.Receipt{{
		PredecessorID: bobID,
		ReceiverID:    aliceID,
		Body: &primitives.ActionReceipt{
			SignerID:        bobID,
			SignerPublicKey: []byte{},
			GasPrice:        receiptPrice,
			Actions:         actions,
		},
	}}
	totalReceiptCost, err := primitives.SafeGasToBalance(receiptPrice, gas+expectedGasBurnt)
	require.NoError(err)
	burntAmount, err := primitives.SafeGasToBalance(primitives.NewBalance(gasPrice), expectedGasBurnt)
	require.NoError(err)
	expectedRefund, err := primitives.SafeSubBalance(totalReceiptCost, burntAmount)
	require.NoError(err)

	result := env.apply(t, receipts, nil)
	assert.True(result.Stats.GasDeficitAmount.IsZero())

	require.NotEmpty(result.OutgoingReceipts)
	refund, ok := result.OutgoingReceipts[0].Action()
	require.True(ok)
	require.Len(refund.Actions, 1)
	transfer, ok := refund.Actions[0].(*primitives.TransferAction)
	require.True(ok)
	assert.Equal(expectedRefund, transfer.Deposit)
	assert.Equal(bobID, result.OutgoingReceipts[0].ReceiverID)

	// There's no contract on alice.
	status, ok := result.Outcomes[0].Outcome.Status.(primitives.StatusFailure)
	require.True(ok)
	var fcErr primitives.FunctionCallError
	assert.True(errors.As(status.Error, &fcErr))
	assert.Equal(primitives.CompilationError, fcErr.Kind)
}

func TestApplyDeficitGasForFunctionCallPartial(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	env := setupRuntime(t, toYocto(1_000_000), toYocto(500_000), 1_000_000_000_000_000)
	fees := &env.applyState.Config.Fees

	const gas = 1_000_000
	receiptPrice := primitives.NewBalance(gasPrice / 10)
	actions := []primitives.Action{&primitives.FunctionCallAction{
		MethodName: "hello",
		Args:       []byte("world"),
		Gas:        gas,
	}}
	execFees, err := TotalPrepaidExecFees(fees, actions, aliceID)
	require.NoError(err)
	expectedGasBurnt := fees.ActionReceiptCreation.ExecFee() + execFees

	receipts := []*primitives.Receipt{{
		PredecessorID: bobID,
		ReceiverID:    aliceID,
		Body: &primitives.ActionReceipt{
			SignerID:        bobID,
			SignerPublicKey: []byte{},
			GasPrice:        receiptPrice,
			Actions:         actions,
		},
	}}
	totalReceiptCost, err := primitives.SafeGasToBalance(receiptPrice, gas+expectedGasBurnt)
	require.NoError(err)
	burntAmount, err := primitives.SafeGasToBalance(primitives.NewBalance(gasPrice), expectedGasBurnt)
	require.NoError(err)
	expectedDeficit, err := primitives.SafeSubBalance(burntAmount, totalReceiptCost)
	require.NoError(err)

	result := env.apply(t, receipts, nil)
	assert.Equal(expectedDeficit, result.Stats.GasDeficitAmount)
	assert.Equal(totalReceiptCost, result.Stats.TxBurntAmount)
	// The whole refund went into covering the deficit.
	assert.Empty(result.OutgoingReceipts)
}

func TestApplyInvalidTransaction(t *testing.T) {
	assert := assert.New(t)

	env := setupRuntime(t, toYocto(1_000), primitives.Balance{}, 1_000_000_000_000_000)

	stx := env.tx(t, 1, bobID, &primitives.TransferAction{Deposit: toYocto(1)})
	env.apply(t, nil, []*primitives.SignedTransaction{stx})

	_, err := env.runtime.Apply(env.tries, env.root, env.applyState, nil, []*primitives.SignedTransaction{stx})
	var nonceErr primitives.InvalidNonceError
	assert.True(errors.As(err, &nonceErr))
	assert.Equal(uint64(1), nonceErr.AkNonce)

	tooMuch := env.tx(t, 2, bobID, &primitives.TransferAction{Deposit: toYocto(1_000)})
	_, err = env.runtime.Apply(env.tries, env.root, env.applyState, nil, []*primitives.SignedTransaction{tooMuch})
	var balanceErr primitives.NotEnoughBalanceError
	assert.True(errors.As(err, &balanceErr))
}

func TestApplyInvalidIncomingReceipt(t *testing.T) {
	assert := assert.New(t)

	env := setupRuntime(t, toYocto(1_000), primitives.Balance{}, 1_000_000_000_000_000)
	receipts := generateReceipts(toYocto(1), 1)
	receipts[0].PredecessorID = "Bob"

	_, err := env.runtime.Apply(env.tries, env.root, env.applyState, receipts, nil)
	var failure *primitives.ReceiptValidationFailure
	assert.True(errors.As(err, &failure))
}

func TestTransferToNewAccount(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	initial := toYocto(1_000)
	env := setupRuntime(t, initial, primitives.Balance{}, 1_000_000_000_000_000)

	stx := env.tx(t, 1, bobID, &primitives.TransferAction{Deposit: toYocto(1)})
	outcomes := env.run(t, stx)

	outcome := finalOutcome(t, outcomes, stx.Hash())
	status, ok := outcome.Status.(primitives.StatusFailure)
	require.True(ok)
	var missing primitives.AccountDoesNotExistError
	assert.True(errors.As(status.Error, &missing))
	assert.Equal(bobID, missing.AccountID)

	// The deposit came back, only gas was spent.
	alice := env.account(t, aliceID)
	assert.True(alice.Amount.Lt(&initial))
	var spent primitives.Balance
	spent.Sub(&initial, &alice.Amount)
	one := toYocto(1)
	assert.True(spent.Lt(&one))
	assert.Nil(env.account(t, bobID))
}

func TestCreateAccount(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	env := setupRuntime(t, toYocto(1_000), primitives.Balance{}, 1_000_000_000_000_000)
	newSigner := primitives.NewTestSigner("sub.alice.near")

	stx := env.tx(t, 1, "sub.alice.near",
		&primitives.CreateAccountAction{},
		&primitives.TransferAction{Deposit: toYocto(10)},
		&primitives.AddKeyAction{PublicKey: newSigner.PublicKey(), AccessKey: *primitives.FullAccessKey()},
	)
	outcomes := env.run(t, stx)
	_, ok := finalOutcome(t, outcomes, stx.Hash()).Status.(primitives.StatusSuccessValue)
	assert.True(ok)

	account := env.account(t, "sub.alice.near")
	require.NotNil(account)
	assert.Equal(toYocto(10), account.Amount)
	keyUsage, err := accessKeyStorageUsage(&env.applyState.Config.Fees, newSigner.PublicKey(), primitives.FullAccessKey())
	require.NoError(err)
	assert.Equal(env.applyState.Config.Fees.StorageUsage.NumBytesAccount+keyUsage, account.StorageUsage)

	// Only the parent can create a sub-account.
	stx = env.tx(t, 2, "sub.bob.near", &primitives.CreateAccountAction{})
	outcomes = env.run(t, stx)
	status, ok := finalOutcome(t, outcomes, stx.Hash()).Status.(primitives.StatusFailure)
	require.True(ok)
	var actionErr *primitives.ActionError
	require.True(errors.As(status.Error, &actionErr))
	assert.True(actionErr.HasIndex)
	assert.Zero(actionErr.Index)
	var notAllowed primitives.CreateAccountNotAllowedError
	assert.True(errors.As(status.Error, &notAllowed))
	assert.Equal("sub.bob.near", notAllowed.AccountID)

	// A failed second action fails the whole receipt.
	stx = env.tx(t, 3, "another.alice.near",
		&primitives.CreateAccountAction{},
		&primitives.DeleteKeyAction{PublicKey: newSigner.PublicKey()},
	)
	outcomes = env.run(t, stx)
	status, ok = finalOutcome(t, outcomes, stx.Hash()).Status.(primitives.StatusFailure)
	require.True(ok)
	require.True(errors.As(status.Error, &actionErr))
	assert.Equal(uint64(1), actionErr.Index)
	assert.Nil(env.account(t, "another.alice.near"))
}

func TestImplicitAccountCreation(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	env := setupRuntime(t, toYocto(1_000), primitives.Balance{}, 1_000_000_000_000_000)
	implicitSigner := primitives.NewTestSigner("implicit")
	implicitID := primitives.ImplicitAccountIDFromPublicKey(implicitSigner.PublicKey())

	stx := env.tx(t, 1, implicitID, &primitives.TransferAction{Deposit: toYocto(5)})
	outcomes := env.run(t, stx)
	_, ok := finalOutcome(t, outcomes, stx.Hash()).Status.(primitives.StatusSuccessValue)
	assert.True(ok)

	account := env.account(t, implicitID)
	require.NotNil(account)
	assert.Equal(toYocto(5), account.Amount)
	key, err := state.GetAccessKey(env.update(t), implicitID, implicitSigner.PublicKey())
	require.NoError(err)
	require.NotNil(key)
	assert.True(key.IsFullAccess())

	// Implicit accounts can't be created explicitly.
	otherID := primitives.ImplicitAccountIDFromPublicKey(primitives.NewTestSigner("other").PublicKey())
	stx = env.tx(t, 2, otherID, &primitives.CreateAccountAction{})
	outcomes = env.run(t, stx)
	status, ok := finalOutcome(t, outcomes, stx.Hash()).Status.(primitives.StatusFailure)
	require.True(ok)
	var onlyImplicit primitives.OnlyImplicitAccountCreationAllowedError
	assert.True(errors.As(status.Error, &onlyImplicit))
}

func TestDeleteAccount(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	bobSigner := primitives.NewTestSigner(bobID)
	env := setupRuntime(t, toYocto(1_000), primitives.Balance{}, 1_000_000_000_000_000,
		&primitives.AccountRecord{AccountID: bobID, Account: primitives.Account{Amount: toYocto(1)}},
		&primitives.AccessKeyRecord{AccountID: bobID, PublicKey: bobSigner.PublicKey(), AccessKey: *primitives.FullAccessKey()},
	)

	stx := env.tx(t, 1, aliceID, &primitives.DeleteAccountAction{BeneficiaryID: bobID})
	outcomes := env.run(t, stx)
	_, ok := finalOutcome(t, outcomes, stx.Hash()).Status.(primitives.StatusSuccessValue)
	assert.True(ok)
	assert.Nil(env.account(t, aliceID))

	bob := env.account(t, bobID)
	require.NotNil(bob)
	almostAll := toYocto(999)
	assert.True(bob.Amount.Gt(&almostAll))

	key, err := state.GetAccessKey(env.update(t), aliceID, env.signer.PublicKey())
	require.NoError(err)
	assert.Nil(key)
}

func TestDeleteAccountWithLargeState(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	const numKeys = 200
	records := []primitives.StateRecord{
		&primitives.AccountRecord{AccountID: bobID, Account: primitives.Account{Amount: toYocto(1)}},
	}
	for i := 0; i < numKeys; i++ {
		records = append(records, &primitives.DataRecord{
			AccountID: aliceID,
			Key:       []byte{'k', byte(i)},
			Value:     make([]byte, 100),
		})
	}
	env := setupRuntime(t, toYocto(1_000), primitives.Balance{}, 1_000_000_000_000_000, records...)
	alice := env.account(t, aliceID)
	require.NotNil(alice)
	require.Greater(alice.StorageUsage, primitives.MaxAccountDeletionStorageUsage)
	bobBefore := env.account(t, bobID).Amount

	stx := env.tx(t, 1, aliceID, &primitives.DeleteAccountAction{BeneficiaryID: bobID})
	outcomes := env.run(t, stx)
	status, ok := finalOutcome(t, outcomes, stx.Hash()).Status.(primitives.StatusFailure)
	require.True(ok)
	var largeState primitives.DeleteAccountWithLargeStateError
	require.True(errors.As(status.Error, &largeState))
	assert.Equal(aliceID, largeState.AccountID)

	assert.NotNil(env.account(t, aliceID))
	keys, err := env.update(t).Keys(state.ContractDataPrefix(aliceID))
	require.NoError(err)
	assert.Len(keys, numKeys)
	assert.Equal(bobBefore, env.account(t, bobID).Amount)
}

func TestDeleteAccountStaking(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	env := setupRuntime(t, toYocto(1_000), toYocto(1), 1_000_000_000_000_000)
	stx := env.tx(t, 1, aliceID, &primitives.DeleteAccountAction{BeneficiaryID: bobID})
	outcomes := env.run(t, stx)
	status, ok := finalOutcome(t, outcomes, stx.Hash()).Status.(primitives.StatusFailure)
	require.True(ok)
	var staking primitives.DeleteAccountStakingError
	assert.True(errors.As(status.Error, &staking))
	assert.NotNil(env.account(t, aliceID))
}

func TestCrossContractCall(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	const (
		callerID = "caller.near"
		calleeID = "callee.near"
	)
	var records []primitives.StateRecord
	records = append(records, contractRecords(callerID, testcontracts.CallerCode(), toYocto(10))...)
	records = append(records, contractRecords(calleeID, testcontracts.CalleeCode(), toYocto(10))...)
	env := setupRuntime(t, toYocto(1_000), primitives.Balance{}, 0, records...)
	env.applyState.HasGasLimit = false

	stx := env.tx(t, 1, callerID, &primitives.FunctionCallAction{
		MethodName: "call_with_callback",
		Args:       []byte(`{"callee":"callee.near","value":"hi"}`),
		Gas:        100_000_000_000_000,
	})
	outcomes := env.run(t, stx)

	outcome := finalOutcome(t, outcomes, stx.Hash())
	status, ok := outcome.Status.(primitives.StatusSuccessValue)
	require.True(ok, "unexpected status %s", outcome.Status)
	assert.Equal([]byte("callback:hi"), status.Value)
	assert.Equal(callerID, outcome.ExecutorID)

	// The contract earned part of the gas it burnt.
	caller := env.account(t, callerID)
	ten := toYocto(10)
	assert.True(caller.Amount.Gt(&ten))

	stx = env.tx(t, 2, callerID, &primitives.FunctionCallAction{
		MethodName: "call_echo",
		Args:       []byte(`{"callee":"callee.near","value":"direct"}`),
		Gas:        100_000_000_000_000,
	})
	outcomes = env.run(t, stx)
	outcome = finalOutcome(t, outcomes, stx.Hash())
	status, ok = outcome.Status.(primitives.StatusSuccessValue)
	require.True(ok, "unexpected status %s", outcome.Status)
	assert.Equal([]byte("direct"), status.Value)
	assert.Equal(calleeID, outcome.ExecutorID)
}

func TestPostponedReceipt(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	env := setupRuntime(t, toYocto(1_000), primitives.Balance{}, 1_000_000_000_000_000)
	dataID := primitives.HashBytes([]byte("data"))
	waiting := generateReceipts(toYocto(1), 1)[0]
	waiting.Body.(*primitives.ActionReceipt).InputDataIDs = []ids.ID{dataID}

	result := env.apply(t, []*primitives.Receipt{waiting}, nil)
	assert.Empty(result.Outcomes)
	postponed, err := state.GetPostponedReceipt(env.update(t), aliceID, waiting.ReceiptID)
	require.NoError(err)
	assert.NotNil(postponed)

	data := &primitives.Receipt{
		PredecessorID: bobID,
		ReceiverID:    aliceID,
		ReceiptID:     primitives.HashBytes([]byte("data receipt")),
		Body:          &primitives.DataReceipt{DataID: dataID, Data: []byte("payload"), HasData: true},
	}
	result = env.apply(t, []*primitives.Receipt{data}, nil)
	require.Len(result.Outcomes, 1)
	assert.Equal(waiting.ReceiptID, result.Outcomes[0].ID)

	u := env.update(t)
	postponed, err = state.GetPostponedReceipt(u, aliceID, waiting.ReceiptID)
	require.NoError(err)
	assert.Nil(postponed)
	received, err := state.GetReceivedData(u, aliceID, dataID)
	require.NoError(err)
	assert.Nil(received)
	assert.Equal(expectedBalance(toYocto(1_000), toYocto(1), 1), env.account(t, aliceID).Amount)
}

func TestActionResultMerge(t *testing.T) {
	assert := assert.New(t)

	result := newActionResult()
	first := newActionResult()
	first.GasBurnt, first.GasUsed = 10, 20
	first.NewReceipts = []*primitives.Receipt{{}, {}}
	first.Logs = []string{"a"}
	assert.NoError(result.merge(first))

	second := newActionResult()
	second.GasBurnt, second.GasBurntForFunctionCall, second.GasUsed = 5, 5, 5
	second.NewReceipts = []*primitives.Receipt{{}}
	second.Result = host.ReturnDataReceiptIndex(0)
	second.Logs = []string{"b"}
	assert.NoError(result.merge(second))

	assert.Equal(primitives.Gas(15), result.GasBurnt)
	assert.Equal(primitives.Gas(5), result.GasBurntForFunctionCall)
	assert.Equal(primitives.Gas(25), result.GasUsed)
	assert.Equal(uint64(2), result.Result.ReceiptIndex)
	assert.Len(result.NewReceipts, 3)
	assert.Equal([]string{"a", "b"}, result.Logs)

	failed := newActionResult()
	actionFailed(failed, primitives.AccountAlreadyExistsError{AccountID: aliceID})
	assert.NoError(result.merge(failed))
	assert.Empty(result.NewReceipts)
	assert.True(result.failed())

	bad := newActionResult()
	bad.GasBurnt, bad.GasUsed = 2, 1
	assert.Error(result.merge(bad))
}
