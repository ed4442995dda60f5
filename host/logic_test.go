// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package host

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/receiptvm/primitives"
)

const testPrepaidGas primitives.Gas = 100_000_000_000_000

type testLogic struct {
	*Logic
	ext    *MockedExternal
	memory *LinearMemory
	config *primitives.RuntimeConfig
	next   uint64
}

func testContext() *VMContext {
	return &VMContext{
		CurrentAccountID:     "alice",
		SignerAccountID:      "bob",
		SignerAccountPK:      primitives.NewTestSigner("bob").PublicKey(),
		PredecessorAccountID: "carol",
		Input:                []byte("input"),
		BlockNumber:          7,
		BlockTimestamp:       42,
		AccountBalance:       primitives.NewBalance(100),
		StorageUsage:         100,
		AttachedDeposit:      primitives.NewBalance(10),
		PrepaidGas:           testPrepaidGas,
		RandomSeed:           []byte("seed"),
	}
}

func newTestLogicWithConfig(ctx *VMContext, config *primitives.RuntimeConfig, results ...PromiseResult) *testLogic {
	ext := NewMockedExternal()
	memory := NewLinearMemory(config.Wasm.Limits.MaxMemoryPages)
	return &testLogic{
		Logic:  NewLogic(ext, ctx, &config.Wasm, &config.Fees, results, memory),
		ext:    ext,
		memory: memory,
		config: config,
		next:   16,
	}
}

func newTestLogic(ctx *VMContext, results ...PromiseResult) *testLogic {
	return newTestLogicWithConfig(ctx, primitives.TestRuntimeConfig(), results...)
}

// put writes [b] to fresh memory and returns its length and offset.
func (t *testLogic) put(b []byte) (uint64, uint64) {
	ptr := t.next
	t.memory.WriteMemory(ptr, b)
	t.next += uint64(len(b)) + 8
	return uint64(len(b)), ptr
}

func (t *testLogic) putString(s string) (uint64, uint64) {
	return t.put([]byte(s))
}

func (t *testLogic) putBalance(v uint64) uint64 {
	_, ptr := t.put(primitives.BalanceToLE(primitives.NewBalance(v)))
	return ptr
}

func (t *testLogic) register(id uint64) []byte {
	return t.registers[id]
}

func (t *testLogic) readBalance(ptr uint64) primitives.Balance {
	buf := make([]byte, primitives.BalanceLen)
	t.memory.ReadMemory(ptr, buf)
	b, err := primitives.BalanceFromLE(buf)
	if err != nil {
		panic(err)
	}
	return b
}

func utf16Bytes(s string) []byte {
	var b []byte
	for _, r := range s {
		b = append(b, byte(r), 0)
	}
	return b
}

func TestRegisters(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	l := newTestLogic(testContext())

	length, err := l.RegisterLen(0)
	require.NoError(err)
	assert.Equal(uint64(math.MaxUint64), length)

	assert.ErrorIs(l.ReadRegister(0, 0), &HostError{Kind: InvalidRegisterID})

	dataLen, dataPtr := l.putString("hello")
	require.NoError(l.WriteRegister(0, dataLen, dataPtr))
	length, err = l.RegisterLen(0)
	require.NoError(err)
	assert.Equal(uint64(5), length)

	_, out := l.put(make([]byte, 5))
	require.NoError(l.ReadRegister(0, out))
	buf := make([]byte, 5)
	l.memory.ReadMemory(out, buf)
	assert.Equal([]byte("hello"), buf)

	// Out of bounds writes are rejected.
	limit := uint64(l.config.Wasm.Limits.MaxMemoryPages) * PageSize
	assert.ErrorIs(l.ReadRegister(0, limit-1), &HostError{Kind: MemoryAccessViolation})
}

func TestRegisterLimits(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	config := primitives.TestRuntimeConfig()
	config.Wasm.Limits.MaxNumberRegisters = 2
	config.Wasm.Limits.MaxRegisterSize = 4
	l := newTestLogicWithConfig(testContext(), config)

	dataLen, dataPtr := l.putString("ab")
	require.NoError(l.WriteRegister(0, dataLen, dataPtr))
	require.NoError(l.WriteRegister(1, dataLen, dataPtr))
	assert.ErrorIs(l.WriteRegister(2, dataLen, dataPtr), &HostError{Kind: MemoryAccessViolation})

	// Overwriting an existing register doesn't count against the limit.
	assert.NoError(l.WriteRegister(1, dataLen, dataPtr))

	bigLen, bigPtr := l.putString("abcde")
	assert.ErrorIs(l.WriteRegister(0, bigLen, bigPtr), &HostError{Kind: MemoryAccessViolation})
}

func TestContextGetters(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	ctx := testContext()
	l := newTestLogic(ctx)

	require.NoError(l.CurrentAccountID(0))
	assert.Equal([]byte("alice"), l.register(0))
	require.NoError(l.SignerAccountID(1))
	assert.Equal([]byte("bob"), l.register(1))
	require.NoError(l.SignerAccountPK(2))
	assert.Equal(ctx.SignerAccountPK, l.register(2))
	require.NoError(l.PredecessorAccountID(3))
	assert.Equal([]byte("carol"), l.register(3))
	require.NoError(l.Input(4))
	assert.Equal([]byte("input"), l.register(4))
	require.NoError(l.RandomSeed(5))
	assert.Equal([]byte("seed"), l.register(5))

	height, err := l.BlockNumber()
	require.NoError(err)
	assert.Equal(uint64(7), height)
	timestamp, err := l.BlockTimestamp()
	require.NoError(err)
	assert.Equal(uint64(42), timestamp)
	usage, err := l.StorageUsage()
	require.NoError(err)
	assert.Equal(uint64(100), usage)
	prepaid, err := l.PrepaidGas()
	require.NoError(err)
	assert.Equal(testPrepaidGas, prepaid)

	// The attached deposit is part of the balance.
	ptr := l.putBalance(0)
	require.NoError(l.AccountBalance(ptr))
	assert.Equal(primitives.NewBalance(110), l.readBalance(ptr))
	require.NoError(l.AttachedDeposit(ptr))
	assert.Equal(primitives.NewBalance(10), l.readBalance(ptr))

	used, err := l.UsedGas()
	require.NoError(err)
	assert.Equal(l.gasCounter.UsedGas(), used)
	assert.Positive(used)
}

func TestProhibitedInView(t *testing.T) {
	assert := assert.New(t)

	ctx := testContext()
	ctx.IsView = true
	l := newTestLogic(ctx)
	prohibited := &HostError{Kind: ProhibitedInView}

	assert.ErrorIs(l.SignerAccountID(0), prohibited)
	assert.ErrorIs(l.SignerAccountPK(0), prohibited)
	assert.ErrorIs(l.PredecessorAccountID(0), prohibited)
	assert.ErrorIs(l.AttachedDeposit(0), prohibited)
	_, err := l.PrepaidGas()
	assert.ErrorIs(err, prohibited)
	_, err = l.UsedGas()
	assert.ErrorIs(err, prohibited)

	accountLen, accountPtr := l.putString("bob")
	_, err = l.PromiseBatchCreate(accountLen, accountPtr)
	assert.ErrorIs(err, prohibited)
	_, err = l.PromiseResultsCount()
	assert.ErrorIs(err, prohibited)

	keyLen, keyPtr := l.putString("k")
	_, err = l.StorageWrite(keyLen, keyPtr, keyLen, keyPtr, 0)
	assert.ErrorIs(err, prohibited)
	_, err = l.StorageRemove(keyLen, keyPtr, 0)
	assert.ErrorIs(err, prohibited)

	// Reads are allowed.
	found, err := l.StorageRead(keyLen, keyPtr, 0)
	assert.NoError(err)
	assert.Zero(found)
	assert.NoError(l.CurrentAccountID(0))
}

func TestStorageUsage(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	l := newTestLogic(testContext())
	keyLen, keyPtr := l.putString("k")
	valueLen, valuePtr := l.putString("v")
	longLen, longPtr := l.putString("vvv")

	evicted, err := l.StorageWrite(keyLen, keyPtr, valueLen, valuePtr, 0)
	require.NoError(err)
	assert.Zero(evicted)
	assert.Equal(uint64(100+1+1+40), l.currentStorageUsage)

	evicted, err = l.StorageWrite(keyLen, keyPtr, longLen, longPtr, 0)
	require.NoError(err)
	assert.Equal(uint64(1), evicted)
	assert.Equal([]byte("v"), l.register(0))
	assert.Equal(uint64(144), l.currentStorageUsage)

	has, err := l.StorageHasKey(keyLen, keyPtr)
	require.NoError(err)
	assert.Equal(uint64(1), has)

	found, err := l.StorageRead(keyLen, keyPtr, 1)
	require.NoError(err)
	assert.Equal(uint64(1), found)
	assert.Equal([]byte("vvv"), l.register(1))

	removed, err := l.StorageRemove(keyLen, keyPtr, 2)
	require.NoError(err)
	assert.Equal(uint64(1), removed)
	assert.Equal([]byte("vvv"), l.register(2))
	assert.Equal(uint64(100), l.currentStorageUsage)

	removed, err = l.StorageRemove(keyLen, keyPtr, 2)
	require.NoError(err)
	assert.Zero(removed)
	has, err = l.StorageHasKey(keyLen, keyPtr)
	require.NoError(err)
	assert.Zero(has)
	assert.Equal(uint64(100), l.Outcome().StorageUsage)
}

func TestStorageLimits(t *testing.T) {
	assert := assert.New(t)

	config := primitives.TestRuntimeConfig()
	config.Wasm.Limits.MaxLengthStorageKey = 2
	config.Wasm.Limits.MaxLengthStorageValue = 2
	l := newTestLogicWithConfig(testContext(), config)

	shortLen, shortPtr := l.putString("k")
	longLen, longPtr := l.putString("kkk")
	_, err := l.StorageWrite(longLen, longPtr, shortLen, shortPtr, 0)
	assert.ErrorIs(err, &HostError{Kind: KeyLengthExceeded})
	_, err = l.StorageWrite(shortLen, shortPtr, longLen, longPtr, 0)
	assert.ErrorIs(err, &HostError{Kind: ValueLengthExceeded})
	_, err = l.StorageRead(longLen, longPtr, 0)
	assert.ErrorIs(err, &HostError{Kind: KeyLengthExceeded})
}

func TestStorageUsageUnderflow(t *testing.T) {
	ctx := testContext()
	ctx.StorageUsage = 0
	l := newTestLogic(ctx)
	require.NoError(t, l.ext.StorageSet([]byte("k"), []byte("v")))

	keyLen, keyPtr := l.putString("k")
	_, err := l.StorageRemove(keyLen, keyPtr, 0)
	var inconsistent *InconsistentStateError
	assert.ErrorAs(t, err, &inconsistent)
}

func TestPromiseResults(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	l := newTestLogic(testContext(),
		PromiseResult{Kind: PromiseNotReady},
		PromiseResult{Kind: PromiseSuccessful, Data: []byte("ok")},
		PromiseResult{Kind: PromiseFailed},
	)

	count, err := l.PromiseResultsCount()
	require.NoError(err)
	assert.Equal(uint64(3), count)

	for i, expected := range []uint64{0, 1, 2} {
		code, err := l.PromiseResult(uint64(i), 0)
		require.NoError(err)
		assert.Equal(expected, code)
	}
	assert.Equal([]byte("ok"), l.register(0))

	_, err = l.PromiseResult(3, 0)
	assert.ErrorIs(err, &HostError{Kind: InvalidPromiseResultIndex})
}

func TestPromiseCreateThen(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	l := newTestLogic(testContext())
	bobLen, bobPtr := l.putString("bob")
	carolLen, carolPtr := l.putString("carol")
	methodLen, methodPtr := l.putString("method")
	argsLen, argsPtr := l.putString("{}")
	amountPtr := l.putBalance(5)
	zeroPtr := l.putBalance(0)

	first, err := l.PromiseCreate(bobLen, bobPtr, methodLen, methodPtr, argsLen, argsPtr, amountPtr, 1_000)
	require.NoError(err)
	assert.Zero(first)

	second, err := l.PromiseThen(first, carolLen, carolPtr, methodLen, methodPtr, argsLen, argsPtr, zeroPtr, 2_000)
	require.NoError(err)
	assert.Equal(uint64(1), second)

	require.Len(l.ext.Receipts, 2)
	assert.Equal("bob", l.ext.Receipts[0].ReceiverID)
	assert.Empty(l.ext.Receipts[0].ReceiptIndices)
	require.Len(l.ext.Receipts[0].Actions, 1)
	call, ok := l.ext.Receipts[0].Actions[0].(*primitives.FunctionCallAction)
	require.True(ok)
	assert.Equal("method", call.MethodName)
	assert.Equal([]byte("{}"), call.Args)
	assert.Equal(primitives.NewBalance(5), call.Deposit)
	assert.Equal(primitives.Gas(1_000), call.Gas)

	assert.Equal("carol", l.ext.Receipts[1].ReceiverID)
	assert.Equal([]uint64{0}, l.ext.Receipts[1].ReceiptIndices)

	require.NoError(l.PromiseReturn(second))
	outcome := l.Outcome()
	assert.Equal(ReturnReceiptIndex, outcome.ReturnData.Kind)
	assert.Equal(uint64(1), outcome.ReturnData.ReceiptIndex)
	assert.Equal(primitives.NewBalance(105), outcome.Balance)
	// Prepaid gas is used but not burnt.
	assert.GreaterOrEqual(outcome.UsedGas, outcome.BurntGas+3_000)
	assert.Contains(outcome.Profile, "new_receipt")
	assert.Contains(outcome.Profile, "function_call")
}

func TestPromiseBatchThenBurnsDataReceiptFees(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	independent := newTestLogic(testContext())
	bobLen, bobPtr := independent.putString("bob")
	carolLen, carolPtr := independent.putString("carol")
	_, err := independent.PromiseBatchCreate(bobLen, bobPtr)
	require.NoError(err)
	_, err = independent.PromiseBatchCreate(carolLen, carolPtr)
	require.NoError(err)

	chained := newTestLogic(testContext())
	bobLen, bobPtr = chained.putString("bob")
	carolLen, carolPtr = chained.putString("carol")
	first, err := chained.PromiseBatchCreate(bobLen, bobPtr)
	require.NoError(err)
	_, err = chained.PromiseBatchThen(first, carolLen, carolPtr)
	require.NoError(err)

	// bob is not the current account, so the data receipt is sent remotely.
	dataFee := chained.config.Fees.DataReceiptCreation.BaseCost
	extra := dataFee.SendFee(false) + dataFee.ExecFee()
	require.NotZero(extra)

	base := independent.Outcome()
	outcome := chained.Outcome()
	assert.Equal(base.BurntGas+extra, outcome.BurntGas)
	assert.Equal(base.UsedGas+extra, outcome.UsedGas)
}

func TestPromiseBatchErrors(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	l := newTestLogic(testContext())
	amountPtr := l.putBalance(1)
	assert.ErrorIs(l.PromiseBatchActionTransfer(0, amountPtr), &HostError{Kind: InvalidPromiseIndex})

	bobLen, bobPtr := l.putString("bob")
	a, err := l.PromiseBatchCreate(bobLen, bobPtr)
	require.NoError(err)
	b, err := l.PromiseBatchCreate(bobLen, bobPtr)
	require.NoError(err)

	indices := make([]byte, 16)
	binary.LittleEndian.PutUint64(indices, a)
	binary.LittleEndian.PutUint64(indices[8:], b)
	_, indicesPtr := l.put(indices)
	joint, err := l.PromiseAnd(indicesPtr, 2)
	require.NoError(err)
	assert.Equal(uint64(2), joint)

	assert.ErrorIs(l.PromiseBatchActionTransfer(joint, amountPtr), &HostError{Kind: CannotAppendActionToJointPromise})
	assert.ErrorIs(l.PromiseReturn(joint), &HostError{Kind: CannotReturnJointPromise})
	assert.ErrorIs(l.PromiseReturn(9), &HostError{Kind: InvalidPromiseIndex})

	binary.LittleEndian.PutUint64(indices[8:], 7)
	_, badPtr := l.put(indices)
	_, err = l.PromiseAnd(badPtr, 2)
	assert.ErrorIs(err, &HostError{Kind: InvalidPromiseIndex})

	// A receipt after the joint promise waits for both receipts.
	then, err := l.PromiseBatchThen(joint, bobLen, bobPtr)
	require.NoError(err)
	assert.Equal([]uint64{0, 1}, l.ext.Receipts[2].ReceiptIndices)

	emptyLen, emptyPtr := l.putString("")
	assert.ErrorIs(
		l.PromiseBatchActionFunctionCall(then, emptyLen, emptyPtr, emptyLen, emptyPtr, amountPtr, 0),
		&HostError{Kind: EmptyMethodName},
	)

	badLen, badAccountPtr := l.putString("Not Valid")
	_, err = l.PromiseBatchCreate(badLen, badAccountPtr)
	assert.ErrorIs(err, &HostError{Kind: InvalidAccountID})

	tooMuch := l.putBalance(1_000)
	assert.ErrorIs(l.PromiseBatchActionTransfer(a, tooMuch), &HostError{Kind: BalanceExceeded})
	require.NoError(l.PromiseBatchActionTransfer(a, amountPtr))
	assert.Equal(primitives.NewBalance(109), l.Outcome().Balance)
}

func TestPromiseLimit(t *testing.T) {
	config := primitives.TestRuntimeConfig()
	config.Wasm.Limits.MaxPromisesPerFunctionCallAction = 1
	l := newTestLogicWithConfig(testContext(), config)

	bobLen, bobPtr := l.putString("bob")
	_, err := l.PromiseBatchCreate(bobLen, bobPtr)
	require.NoError(t, err)
	_, err = l.PromiseBatchCreate(bobLen, bobPtr)
	assert.ErrorIs(t, err, &HostError{Kind: NumberPromisesExceeded})
}

func TestBatchActions(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	l := newTestLogic(testContext())
	accountLen, accountPtr := l.putString("new.alice")
	idx, err := l.PromiseBatchCreate(accountLen, accountPtr)
	require.NoError(err)

	pk := primitives.NewTestSigner("new.alice").PublicKey()
	pkLen, pkPtr := l.put(pk)
	codeLen, codePtr := l.putString("code")
	receiverLen, receiverPtr := l.putString("alice")
	zeroPtr := l.putBalance(0)

	require.NoError(l.PromiseBatchActionCreateAccount(idx))
	require.NoError(l.PromiseBatchActionDeployContract(idx, codeLen, codePtr))
	require.NoError(l.PromiseBatchActionAddKeyWithFullAccess(idx, pkLen, pkPtr))

	badNamesLen, badNamesPtr := l.putString("a,,b")
	assert.ErrorIs(
		l.PromiseBatchActionAddKeyWithFunctionCall(idx, pkLen, pkPtr, zeroPtr, receiverLen, receiverPtr, badNamesLen, badNamesPtr),
		&HostError{Kind: EmptyMethodName},
	)
	namesLen, namesPtr := l.putString("a,b")
	require.NoError(l.PromiseBatchActionAddKeyWithFunctionCall(idx, pkLen, pkPtr, zeroPtr, receiverLen, receiverPtr, namesLen, namesPtr))
	require.NoError(l.PromiseBatchActionDeleteKey(idx, pkLen, pkPtr))
	require.NoError(l.PromiseBatchActionDeleteAccount(idx, receiverLen, receiverPtr))

	shortLen, shortPtr := l.put(pk[:10])
	assert.ErrorIs(l.PromiseBatchActionDeleteKey(idx, shortLen, shortPtr), &HostError{Kind: InvalidPublicKey})

	actions := l.ext.Receipts[0].Actions
	require.Len(actions, 6)
	assert.IsType(&primitives.CreateAccountAction{}, actions[0])
	assert.Equal([]byte("code"), actions[1].(*primitives.DeployContractAction).Code)
	assert.True(actions[2].(*primitives.AddKeyAction).AccessKey.IsFullAccess())

	permission, ok := actions[3].(*primitives.AddKeyAction).AccessKey.Permission.(*primitives.FunctionCallPermission)
	require.True(ok)
	assert.False(permission.HasAllowance)
	assert.Equal("alice", permission.ReceiverID)
	assert.Equal([]string{"a", "b"}, permission.MethodNames)

	assert.Equal(pk, actions[4].(*primitives.DeleteKeyAction).PublicKey)
	assert.Equal("alice", actions[5].(*primitives.DeleteAccountAction).BeneficiaryID)
}

func TestGasExceeded(t *testing.T) {
	assert := assert.New(t)

	config := primitives.TestRuntimeConfig()
	ctx := testContext()
	ctx.PrepaidGas = 2 * config.Wasm.ExtCosts.Base
	l := newTestLogicWithConfig(ctx, config)

	_, err := l.BlockNumber()
	assert.NoError(err)
	_, err = l.BlockNumber()
	assert.NoError(err)
	_, err = l.BlockNumber()
	assert.ErrorIs(err, &HostError{Kind: GasExceeded})

	outcome := l.Outcome()
	assert.Equal(ctx.PrepaidGas, outcome.BurntGas)
	assert.Equal(ctx.PrepaidGas, outcome.UsedGas)
}

func TestGasLimitExceeded(t *testing.T) {
	assert := assert.New(t)

	config := primitives.TestRuntimeConfig()
	config.Wasm.Limits.MaxGasBurnt = config.Wasm.ExtCosts.Base
	l := newTestLogicWithConfig(testContext(), config)

	_, err := l.BlockNumber()
	assert.NoError(err)
	_, err = l.BlockNumber()
	assert.ErrorIs(err, &HostError{Kind: GasLimitExceeded})
	assert.Equal(config.Wasm.ExtCosts.Base, l.Outcome().BurntGas)

	assert.ErrorIs(l.Gas(1), &HostError{Kind: GasLimitExceeded})
}

func TestLogs(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	config := primitives.TestRuntimeConfig()
	config.Wasm.Limits.MaxNumberLogs = 3
	l := newTestLogicWithConfig(testContext(), config)

	msgLen, msgPtr := l.putString("hello")
	require.NoError(l.LogUTF8(msgLen, msgPtr))

	_, cstrPtr := l.put([]byte("abc\x00"))
	require.NoError(l.LogUTF8(math.MaxUint64, cstrPtr))

	utfLen, utfPtr := l.put(utf16Bytes("hi"))
	require.NoError(l.LogUTF16(utfLen, utfPtr))
	assert.Equal([]string{"hello", "abc", "hi"}, l.Outcome().Logs)

	assert.ErrorIs(l.LogUTF8(msgLen, msgPtr), &HostError{Kind: NumberOfLogsExceeded})
}

func TestBadStrings(t *testing.T) {
	assert := assert.New(t)

	l := newTestLogic(testContext())
	badLen, badPtr := l.put([]byte{0xff, 0xfe})
	assert.ErrorIs(l.LogUTF8(badLen, badPtr), &HostError{Kind: BadUTF8})

	oddLen, oddPtr := l.put([]byte{'a', 0, 'b'})
	assert.ErrorIs(l.LogUTF16(oddLen, oddPtr), &HostError{Kind: BadUTF16})

	// A lone high surrogate.
	loneLen, lonePtr := l.put([]byte{0x00, 0xd8})
	assert.ErrorIs(l.LogUTF16(loneLen, lonePtr), &HostError{Kind: BadUTF16})

	config := primitives.TestRuntimeConfig()
	config.Wasm.Limits.MaxTotalLogLength = 4
	l = newTestLogicWithConfig(testContext(), config)
	longLen, longPtr := l.putString("hello")
	assert.ErrorIs(l.LogUTF8(longLen, longPtr), &HostError{Kind: TotalLogLengthExceeded})
}

func TestPanics(t *testing.T) {
	assert := assert.New(t)

	l := newTestLogic(testContext())
	err := l.Panic()
	assert.ErrorIs(err, &HostError{Kind: GuestPanic})
	assert.Contains(err.Error(), "explicit guest panic")

	msgLen, msgPtr := l.putString("boom")
	err = l.PanicUTF8(msgLen, msgPtr)
	assert.ErrorIs(err, &HostError{Kind: GuestPanic})
	assert.Equal("GuestPanic: boom", err.Error())
}

func TestAbort(t *testing.T) {
	assert := assert.New(t)

	l := newTestLogic(testContext())
	frame := func(s string) uint32 {
		b := utf16Bytes(s)
		prefix := make([]byte, 4, 4+len(b))
		binary.LittleEndian.PutUint32(prefix, uint32(len(b)))
		_, ptr := l.put(append(prefix, b...))
		return uint32(ptr) + 4
	}
	msgPtr := frame("oops")
	filenamePtr := frame("f.ts")

	err := l.Abort(msgPtr, filenamePtr, 1, 2)
	assert.ErrorIs(err, &HostError{Kind: GuestPanic})
	assert.Equal([]string{`ABORT: oops, filename: "f.ts" line: 1 col: 2`}, l.Outcome().Logs)

	assert.ErrorIs(l.Abort(3, filenamePtr, 1, 2), &HostError{Kind: BadUTF16})
}

func TestValueReturn(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	config := primitives.TestRuntimeConfig()
	config.Wasm.Limits.MaxLengthReturnedData = 3
	ctx := testContext()
	ctx.OutputDataReceivers = []string{"bob"}
	l := newTestLogicWithConfig(ctx, config)

	valueLen, valuePtr := l.putString("abc")
	before := l.gasCounter.UsedGas()
	require.NoError(l.ValueReturn(valueLen, valuePtr))
	outcome := l.Outcome()
	assert.Equal(ReturnValue, outcome.ReturnData.Kind)
	assert.Equal([]byte("abc"), outcome.ReturnData.Value)

	perByte := config.Fees.DataReceiptCreation.CostPerByte
	dataFee := 3 * (perByte.SendFee(false) + perByte.ExecFee())
	assert.GreaterOrEqual(outcome.UsedGas-before, dataFee)

	longLen, longPtr := l.putString("abcd")
	assert.ErrorIs(l.ValueReturn(longLen, longPtr), &HostError{Kind: ReturnedValueLengthExceeded})
}

func TestHashes(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	l := newTestLogic(testContext())
	abcLen, abcPtr := l.putString("abc")
	emptyLen, emptyPtr := l.putString("")

	require.NoError(l.Sha256(abcLen, abcPtr, 0))
	assert.Equal("ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", hex.EncodeToString(l.register(0)))

	require.NoError(l.Keccak256(emptyLen, emptyPtr, 1))
	assert.Equal("c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470", hex.EncodeToString(l.register(1)))

	require.NoError(l.Keccak512(emptyLen, emptyPtr, 2))
	assert.Len(l.register(2), 64)

	require.NoError(l.Ripemd160(emptyLen, emptyPtr, 3))
	assert.Equal("9c1185a5c5e9fc54612808977ee8f548b2258d31", hex.EncodeToString(l.register(3)))

	// The input can come from a register.
	require.NoError(l.WriteRegister(4, abcLen, abcPtr))
	require.NoError(l.Sha256(math.MaxUint64, 4, 5))
	assert.Equal(l.register(0), l.register(5))
	assert.Contains(l.Outcome().Profile, "sha256_byte")
}

func TestEcrecover(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	signer := primitives.NewTestSigner("alice")
	msg := []byte("message")
	sig, err := signer.Sign(msg)
	require.NoError(err)
	hash := sha256.Sum256(msg)

	l := newTestLogic(testContext())
	hashLen, hashPtr := l.put(hash[:])
	sigLen, sigPtr := l.put(sig[:64])

	ok, err := l.Ecrecover(hashLen, hashPtr, sigLen, sigPtr, uint64(sig[64]), 0, 0)
	require.NoError(err)
	assert.Equal(uint64(1), ok)
	assert.Equal(signer.PublicKey(), l.register(0))

	shortLen, shortPtr := l.put(sig[:10])
	_, err = l.Ecrecover(hashLen, hashPtr, shortLen, shortPtr, 0, 0, 0)
	assert.ErrorIs(err, &HostError{Kind: ECRecoverError})
	_, err = l.Ecrecover(hashLen, hashPtr, sigLen, sigPtr, 4, 0, 0)
	assert.ErrorIs(err, &HostError{Kind: ECRecoverError})
	_, err = l.Ecrecover(hashLen, hashPtr, sigLen, sigPtr, 0, 2, 0)
	assert.ErrorIs(err, &HostError{Kind: ECRecoverError})

	// A zero r fails the signature check without an error.
	zeroLen, zeroPtr := l.put(make([]byte, 64))
	ok, err = l.Ecrecover(hashLen, hashPtr, zeroLen, zeroPtr, 0, 0, 1)
	require.NoError(err)
	assert.Zero(ok)
}

func TestInvoke(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	l := newTestLogic(testContext())
	height, err := l.Invoke(Call(FnBlockNumber))
	require.NoError(err)
	assert.Equal(uint64(7), height)

	keyLen, keyPtr := l.putString("k")
	evicted, err := l.Invoke(Call(FnStorageWrite, keyLen, keyPtr, keyLen, keyPtr, 0))
	require.NoError(err)
	assert.Zero(evicted)
	found, err := l.Invoke(Call(FnStorageRead, keyLen, keyPtr, 1))
	require.NoError(err)
	assert.Equal(uint64(1), found)
	assert.Equal([]byte("k"), l.register(1))

	var trap *WasmTrap
	_, err = l.Invoke(Call(FnRegisterLen))
	assert.ErrorAs(err, &trap)
	_, err = l.Invoke(Call(FnGas, math.MaxUint32+1))
	assert.ErrorAs(err, &trap)
	_, err = l.Invoke(Call(numHostFunctions))
	assert.ErrorAs(err, &trap)

	assert.Equal("storage_write", FnStorageWrite.String())
}
