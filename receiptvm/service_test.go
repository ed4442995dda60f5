// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package receiptvm

import (
	"testing"

	"github.com/ava-labs/avalanchego/utils/formatting"
	"github.com/ava-labs/avalanchego/utils/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/receiptvm/primitives"
	"github.com/ava-labs/receiptvm/runtime"
)

func hexEncode(t *testing.T, b []byte) string {
	s, err := formatting.EncodeWithChecksum(formatting.Hex, b)
	require.NoError(t, err)
	return s
}

func TestService(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	vm, signer, _ := newTestVM(t)
	service := &Service{vm: vm}

	stx := writeTx(t, signer, 1, `{"key":"foo","value":"bar"}`)
	txBytes, err := stx.Bytes()
	require.NoError(err)

	sendReply := &SendTransactionReply{}
	require.NoError(service.SendTransaction(nil, &SendTransactionArgs{
		Transaction: hexEncode(t, txBytes),
		Encoding:    formatting.Hex,
	}, sendReply))
	assert.Equal(stx.Hash(), sendReply.TxID)

	resolveReply := &OutcomeReply{}
	require.NoError(service.ResolveTransaction(nil, &OutcomeArgs{ID: sendReply.TxID}, resolveReply))
	assert.Equal("SuccessValue", resolveReply.Status)
	assert.Equal(contractID, resolveReply.ExecutorID)
	assert.NotZero(resolveReply.GasBurnt)

	txReply := &OutcomeReply{}
	require.NoError(service.GetOutcome(nil, &OutcomeArgs{ID: sendReply.TxID}, txReply))
	assert.Equal("SuccessReceiptId", txReply.Status)
	assert.Equal(rootID, txReply.ExecutorID)

	height := json.Uint64(1)
	blockReply := &GetBlockReply{}
	require.NoError(service.GetBlock(nil, &GetBlockArgs{Height: &height}, blockReply))
	assert.Equal(json.Uint64(1), blockReply.Height)
	assert.Equal(txReply.ReceiptID, blockReply.OutgoingReceipts[0])
	require.Len(blockReply.Transactions, 1)
	assert.Equal(stx.Hash(), blockReply.Transactions[0])

	headReply := &GetBlockReply{}
	require.NoError(service.GetBlock(nil, &GetBlockArgs{}, headReply))
	assert.Equal(vm.LastAccepted().ID(), headReply.ID)

	accountReply := &AccountReply{}
	require.NoError(service.ViewAccount(nil, &AccountArgs{AccountID: contractID}, accountReply))
	// The contract earns its share of the gas the call burnt inside the vm.
	fees := &vm.genesis.RuntimeConfig.Fees
	vmBurnt := uint64(resolveReply.GasBurnt) -
		fees.ActionReceiptCreation.ExecFee() -
		runtime.ExecFee(fees, stx.Transaction.Actions[0], contractID)
	rewardGas := vmBurnt * fees.BurntGasReward.Numerator / fees.BurntGasReward.Denominator
	require.NotZero(rewardGas)
	reward, err := primitives.SafeGasToBalance(vm.genesis.GasPrice, rewardGas)
	require.NoError(err)
	expected, err := primitives.SafeAddBalance(toYocto(10), reward)
	require.NoError(err)
	assert.Equal(primitives.BalanceString(expected), accountReply.Amount)
	assert.NotZero(accountReply.StorageUsage)
	assert.Error(service.ViewAccount(nil, &AccountArgs{}, &AccountReply{}))

	stateReply := &ViewStateReply{}
	require.NoError(service.ViewState(nil, &ViewStateArgs{
		AccountID: contractID,
		Prefix:    hexEncode(t, []byte("fo")),
		Encoding:  formatting.Hex,
	}, stateReply))
	require.Len(stateReply.Values, 1)
	assert.Equal(hexEncode(t, []byte("foo")), stateReply.Values[0].Key)
	assert.Equal(hexEncode(t, []byte("bar")), stateReply.Values[0].Value)

	callReply := &CallFunctionReply{}
	require.NoError(service.CallFunction(nil, &CallFunctionArgs{
		AccountID:  contractID,
		MethodName: "read_value",
		Args:       hexEncode(t, []byte(`{"key":"foo"}`)),
		Encoding:   formatting.Hex,
	}, callReply))
	result, err := formatting.Decode(formatting.Hex, callReply.Result)
	require.NoError(err)
	assert.Equal([]byte(`"bar"`), result)
}

func TestServiceSendMalformedTransaction(t *testing.T) {
	vm, _, _ := newTestVM(t)
	service := &Service{vm: vm}

	err := service.SendTransaction(nil, &SendTransactionArgs{
		Transaction: hexEncode(t, []byte("not a transaction")),
		Encoding:    formatting.Hex,
	}, &SendTransactionReply{})
	assert.Error(t, err)
	assert.Zero(t, vm.mempool.Len())
}

func TestStaticService(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	service := CreateStaticService()
	encoded := &EncoderReply{}
	require.NoError(service.Encode(nil, &EncoderArgs{Data: "receipt", Encoding: formatting.Hex}, encoded))
	decoded := &DecoderReply{}
	require.NoError(service.Decode(nil, &DecoderArgs{Bytes: encoded.Bytes, Encoding: encoded.Encoding}, decoded))
	assert.Equal("receipt", decoded.Data)

	signer := primitives.NewTestSigner(rootID)
	stx := createAccountTx(t, signer, 7, toYocto(1))
	txBytes, err := stx.Bytes()
	require.NoError(err)
	txReply := &TransactionReply{}
	require.NoError(service.ParseTransaction(nil, &TransactionArgs{
		Transaction: hexEncode(t, txBytes),
		Encoding:    formatting.Hex,
	}, txReply))
	assert.Equal(stx.Hash(), txReply.TxID)
	assert.Equal(json.Uint64(7), txReply.Nonce)
	assert.Equal(aliceID, txReply.ReceiverID)
	assert.Equal([]string{"CreateAccount", "Transfer", "AddKey"}, txReply.Actions)
}
