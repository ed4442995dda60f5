// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"errors"
	"testing"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/receiptvm/primitives"
	"github.com/ava-labs/receiptvm/state"
)

func balanceUpdates(t *testing.T, amounts map[string]primitives.Balance) (*state.TrieUpdate, *state.TrieUpdate) {
	require := require.New(t)

	var records []primitives.StateRecord
	for accountID, amount := range amounts {
		records = append(records, &primitives.AccountRecord{
			AccountID: accountID,
			Account:   primitives.Account{Amount: amount},
		})
	}
	tries := state.NewTestTries()
	changes, err := ApplyGenesisState(tries, records, primitives.TestRuntimeConfig())
	require.NoError(err)
	require.NoError(tries.ApplyChanges(changes))

	initial, err := tries.NewTrieUpdate(changes.NewRoot)
	require.NoError(err)
	final, err := tries.NewTrieUpdate(changes.NewRoot)
	require.NoError(err)
	return initial, final
}

func setAmount(t *testing.T, u *state.TrieUpdate, accountID string, amount primitives.Balance) {
	account, err := state.GetAccount(u, accountID)
	require.NoError(t, err)
	account.Amount = amount
	require.NoError(t, state.SetAccount(u, accountID, account))
}

func TestCheckBalanceNoop(t *testing.T) {
	initial, final := balanceUpdates(t, map[string]primitives.Balance{aliceID: toYocto(1)})
	fees := primitives.DefaultFeesConfig()
	assert.NoError(t, CheckBalance(&fees, initial, final, nil, nil, nil, &ApplyStats{}))
}

func TestCheckBalanceRefund(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	fees := primitives.DefaultFeesConfig()
	refund := primitives.NewBalanceRefund(aliceID, primitives.NewBalance(1000))
	incoming := []*primitives.Receipt{refund}

	initial, final := balanceUpdates(t, map[string]primitives.Balance{aliceID: primitives.NewBalance(1000)})
	setAmount(t, final, aliceID, primitives.NewBalance(2000))
	assert.NoError(CheckBalance(&fees, initial, final, incoming, nil, nil, &ApplyStats{}))

	// The refund went nowhere.
	initial, final = balanceUpdates(t, map[string]primitives.Balance{aliceID: primitives.NewBalance(1000)})
	err := CheckBalance(&fees, initial, final, incoming, nil, nil, &ApplyStats{})
	var mismatch *primitives.BalanceMismatchError
	require.True(errors.As(err, &mismatch))
	assert.Equal(primitives.NewBalance(1000), mismatch.IncomingReceiptsBalance)
	assert.Equal(primitives.NewBalance(1000), mismatch.FinalAccountsBalance)
}

func TestCheckBalanceTxToReceipt(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	fees := primitives.DefaultFeesConfig()
	gasPrice := primitives.NewBalance(100)
	deposit := primitives.NewBalance(500_000_000)
	initialAmount := toYocto(1)

	signer := primitives.NewTestSigner(aliceID)
	stx, err := primitives.SendMoney(1, aliceID, bobID, signer, deposit, ids.Empty)
	require.NoError(err)
	cost, err := TxCost(&fees, &stx.Transaction, gasPrice, false)
	require.NoError(err)

	receipt := &primitives.Receipt{
		PredecessorID: aliceID,
		ReceiverID:    bobID,
		ReceiptID:     primitives.CreateReceiptIDFromTransaction(stx.Hash()),
		Body: &primitives.ActionReceipt{
			SignerID:        aliceID,
			SignerPublicKey: signer.PublicKey(),
			GasPrice:        cost.ReceiptGasPrice,
			Actions:         stx.Transaction.Actions,
		},
	}
	txs := []*primitives.SignedTransaction{stx}
	outgoing := []*primitives.Receipt{receipt}

	initial, final := balanceUpdates(t, map[string]primitives.Balance{aliceID: initialAmount})
	remaining, err := primitives.SafeSubBalance(initialAmount, cost.TotalCost)
	require.NoError(err)
	setAmount(t, final, aliceID, remaining)

	assert.NoError(CheckBalance(&fees, initial, final, nil, txs, outgoing, &ApplyStats{TxBurntAmount: cost.BurntAmount}))

	// Forgetting the burnt tokens breaks the equation.
	err = CheckBalance(&fees, initial, final, nil, txs, outgoing, &ApplyStats{})
	var mismatch *primitives.BalanceMismatchError
	assert.True(errors.As(err, &mismatch))
	assert.Contains(err.Error(), "balance mismatch")
}

func TestCheckBalanceDelayedReceipt(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	fees := primitives.DefaultFeesConfig()
	receipt := generateReceipts(primitives.NewBalance(10), 1)[0]
	incoming := []*primitives.Receipt{receipt}

	initial, final := balanceUpdates(t, map[string]primitives.Balance{aliceID: primitives.NewBalance(1000)})
	indices, err := state.GetDelayedReceiptIndices(final)
	require.NoError(err)
	require.NoError(DelayReceipt(final, &indices, receipt))
	require.NoError(state.SetDelayedReceiptIndices(final, indices))

	assert.NoError(CheckBalance(&fees, initial, final, incoming, nil, nil, &ApplyStats{}))
}
