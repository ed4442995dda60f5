// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sdk

import (
	"encoding/binary"
	"math"

	"github.com/ava-labs/receiptvm/host"
	"github.com/ava-labs/receiptvm/primitives"
)

const (
	// scratchRegister holds the results of single host calls.
	scratchRegister uint64 = math.MaxUint64 - 1

	notSet uint64 = math.MaxUint64
)

// Env is the host environment seen by a running contract method. Host
// failures abort the method.
type Env struct {
	guest    *host.Guest
	promises *arena
}

func NewEnv(g *host.Guest) *Env {
	env := &Env{guest: g}
	env.promises = newArena(env)
	return env
}

func (e *Env) call(f host.HostFunction, args ...uint64) uint64 {
	return e.guest.Call(f, args...)
}

// put copies [b] into guest memory.
func (e *Env) put(b []byte) (uint64, uint64) {
	ptr := e.guest.Alloc(uint64(len(b)))
	e.guest.Memory.WriteMemory(ptr, b)
	return uint64(len(b)), ptr
}

func (e *Env) putBalance(b primitives.Balance) uint64 {
	_, ptr := e.put(primitives.BalanceToLE(b))
	return ptr
}

func (e *Env) readRegister(registerID uint64) ([]byte, bool) {
	length := e.call(host.FnRegisterLen, registerID)
	if length == notSet {
		return nil, false
	}
	ptr := e.guest.Alloc(length)
	e.call(host.FnReadRegister, registerID, ptr)
	buf := make([]byte, length)
	e.guest.Memory.ReadMemory(ptr, buf)
	return buf, true
}

func (e *Env) scratch() []byte {
	b, ok := e.readRegister(scratchRegister)
	if !ok {
		e.Panic("register was expected to be set")
	}
	return b
}

func (e *Env) readBalance(f host.HostFunction) primitives.Balance {
	ptr := e.guest.Alloc(primitives.BalanceLen)
	e.call(f, ptr)
	buf := make([]byte, primitives.BalanceLen)
	e.guest.Memory.ReadMemory(ptr, buf)
	b, err := primitives.BalanceFromLE(buf)
	if err != nil {
		e.Panic(err.Error())
	}
	return b
}

// Context

func (e *Env) CurrentAccountID() string {
	e.call(host.FnCurrentAccountID, scratchRegister)
	return string(e.scratch())
}

func (e *Env) SignerAccountID() string {
	e.call(host.FnSignerAccountID, scratchRegister)
	return string(e.scratch())
}

func (e *Env) SignerAccountPK() []byte {
	e.call(host.FnSignerAccountPK, scratchRegister)
	return e.scratch()
}

func (e *Env) PredecessorAccountID() string {
	e.call(host.FnPredecessorAccountID, scratchRegister)
	return string(e.scratch())
}

func (e *Env) Input() []byte {
	e.call(host.FnInput, scratchRegister)
	return e.scratch()
}

func (e *Env) BlockNumber() uint64    { return e.call(host.FnBlockNumber) }
func (e *Env) BlockTimestamp() uint64 { return e.call(host.FnBlockTimestamp) }
func (e *Env) StorageUsage() uint64   { return e.call(host.FnStorageUsage) }

func (e *Env) AccountBalance() primitives.Balance {
	return e.readBalance(host.FnAccountBalance)
}

func (e *Env) AccountLockedBalance() primitives.Balance {
	return e.readBalance(host.FnAccountLockedBalance)
}

func (e *Env) AttachedDeposit() primitives.Balance {
	return e.readBalance(host.FnAttachedDeposit)
}

func (e *Env) PrepaidGas() primitives.Gas { return e.call(host.FnPrepaidGas) }
func (e *Env) UsedGas() primitives.Gas    { return e.call(host.FnUsedGas) }

func (e *Env) RandomSeed() []byte {
	e.call(host.FnRandomSeed, scratchRegister)
	return e.scratch()
}

// BurnGas charges [opcodes] regular operations.
func (e *Env) BurnGas(opcodes uint32) {
	e.call(host.FnGas, uint64(opcodes))
}

// Math

func (e *Env) hash(f host.HostFunction, value []byte) []byte {
	length, ptr := e.put(value)
	e.call(f, length, ptr, scratchRegister)
	return e.scratch()
}

func (e *Env) Sha256(value []byte) []byte    { return e.hash(host.FnSha256, value) }
func (e *Env) Keccak256(value []byte) []byte { return e.hash(host.FnKeccak256, value) }
func (e *Env) Keccak512(value []byte) []byte { return e.hash(host.FnKeccak512, value) }
func (e *Env) Ripemd160(value []byte) []byte { return e.hash(host.FnRipemd160, value) }

// Ecrecover returns the compressed key that signed [hash], if any.
func (e *Env) Ecrecover(hash, sig []byte, v byte, rejectMalleable bool) ([]byte, bool) {
	hashLen, hashPtr := e.put(hash)
	sigLen, sigPtr := e.put(sig)
	var flag uint64
	if rejectMalleable {
		flag = 1
	}
	if e.call(host.FnEcrecover, hashLen, hashPtr, sigLen, sigPtr, uint64(v), flag, scratchRegister) == 0 {
		return nil, false
	}
	return e.scratch(), true
}

// Results and logs

func (e *Env) ValueReturn(value []byte) {
	length, ptr := e.put(value)
	e.call(host.FnValueReturn, length, ptr)
}

// Panic aborts the method with [msg].
func (e *Env) Panic(msg string) {
	length, ptr := e.put([]byte(msg))
	e.call(host.FnPanicUTF8, length, ptr)
}

func (e *Env) Log(msg string) {
	length, ptr := e.put([]byte(msg))
	e.call(host.FnLogUTF8, length, ptr)
}

// Storage

// StorageWrite returns true if it replaced an existing value.
func (e *Env) StorageWrite(key, value []byte) bool {
	keyLen, keyPtr := e.put(key)
	valueLen, valuePtr := e.put(value)
	return e.call(host.FnStorageWrite, keyLen, keyPtr, valueLen, valuePtr, scratchRegister) == 1
}

func (e *Env) StorageRead(key []byte) ([]byte, bool) {
	keyLen, keyPtr := e.put(key)
	if e.call(host.FnStorageRead, keyLen, keyPtr, scratchRegister) == 0 {
		return nil, false
	}
	return e.scratch(), true
}

// StorageRemove returns true if the key was set.
func (e *Env) StorageRemove(key []byte) bool {
	keyLen, keyPtr := e.put(key)
	return e.call(host.FnStorageRemove, keyLen, keyPtr, scratchRegister) == 1
}

func (e *Env) StorageHasKey(key []byte) bool {
	keyLen, keyPtr := e.put(key)
	return e.call(host.FnStorageHasKey, keyLen, keyPtr) == 1
}

// Promises

func (e *Env) PromiseBatchCreate(accountID string) uint64 {
	length, ptr := e.put([]byte(accountID))
	return e.call(host.FnPromiseBatchCreate, length, ptr)
}

func (e *Env) PromiseBatchThen(promiseIdx uint64, accountID string) uint64 {
	length, ptr := e.put([]byte(accountID))
	return e.call(host.FnPromiseBatchThen, promiseIdx, length, ptr)
}

func (e *Env) PromiseAnd(promiseIndices ...uint64) uint64 {
	raw := make([]byte, 8*len(promiseIndices))
	for i, idx := range promiseIndices {
		binary.LittleEndian.PutUint64(raw[8*i:], idx)
	}
	_, ptr := e.put(raw)
	return e.call(host.FnPromiseAnd, ptr, uint64(len(promiseIndices)))
}

func (e *Env) PromiseBatchActionCreateAccount(promiseIdx uint64) {
	e.call(host.FnPromiseBatchActionCreateAccount, promiseIdx)
}

func (e *Env) PromiseBatchActionDeployContract(promiseIdx uint64, code []byte) {
	length, ptr := e.put(code)
	e.call(host.FnPromiseBatchActionDeployContract, promiseIdx, length, ptr)
}

func (e *Env) PromiseBatchActionFunctionCall(
	promiseIdx uint64,
	methodName string,
	args []byte,
	amount primitives.Balance,
	gas primitives.Gas,
) {
	methodLen, methodPtr := e.put([]byte(methodName))
	argsLen, argsPtr := e.put(args)
	amountPtr := e.putBalance(amount)
	e.call(host.FnPromiseBatchActionFunctionCall, promiseIdx, methodLen, methodPtr, argsLen, argsPtr, amountPtr, gas)
}

func (e *Env) PromiseBatchActionTransfer(promiseIdx uint64, amount primitives.Balance) {
	e.call(host.FnPromiseBatchActionTransfer, promiseIdx, e.putBalance(amount))
}

func (e *Env) PromiseBatchActionAddKeyWithFullAccess(promiseIdx uint64, publicKey []byte) {
	length, ptr := e.put(publicKey)
	e.call(host.FnPromiseBatchActionAddKeyWithFullAccess, promiseIdx, length, ptr)
}

// PromiseBatchActionAddKeyWithFunctionCall adds a key restricted to
// [methodNames] of [receiverID]. A zero allowance is unlimited.
func (e *Env) PromiseBatchActionAddKeyWithFunctionCall(
	promiseIdx uint64,
	publicKey []byte,
	allowance primitives.Balance,
	receiverID string,
	methodNames string,
) {
	pkLen, pkPtr := e.put(publicKey)
	allowancePtr := e.putBalance(allowance)
	receiverLen, receiverPtr := e.put([]byte(receiverID))
	namesLen, namesPtr := e.put([]byte(methodNames))
	e.call(host.FnPromiseBatchActionAddKeyWithFunctionCall,
		promiseIdx, pkLen, pkPtr, allowancePtr, receiverLen, receiverPtr, namesLen, namesPtr)
}

func (e *Env) PromiseBatchActionDeleteKey(promiseIdx uint64, publicKey []byte) {
	length, ptr := e.put(publicKey)
	e.call(host.FnPromiseBatchActionDeleteKey, promiseIdx, length, ptr)
}

func (e *Env) PromiseBatchActionDeleteAccount(promiseIdx uint64, beneficiaryID string) {
	length, ptr := e.put([]byte(beneficiaryID))
	e.call(host.FnPromiseBatchActionDeleteAccount, promiseIdx, length, ptr)
}

func (e *Env) PromiseResultsCount() uint64 {
	return e.call(host.FnPromiseResultsCount)
}

// PromiseResult returns the result of the [i]th receipt this call waited
// for.
func (e *Env) PromiseResult(i uint64) host.PromiseResult {
	switch e.call(host.FnPromiseResult, i, scratchRegister) {
	case 1:
		return host.PromiseResult{Kind: host.PromiseSuccessful, Data: e.scratch()}
	case 2:
		return host.PromiseResult{Kind: host.PromiseFailed}
	default:
		return host.PromiseResult{Kind: host.PromiseNotReady}
	}
}

func (e *Env) PromiseReturn(promiseIdx uint64) {
	e.call(host.FnPromiseReturn, promiseIdx)
}
