// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package host

import (
	"math"
)

// HostFunction names a host function a guest can call.
type HostFunction uint8

const (
	FnReadRegister HostFunction = iota
	FnRegisterLen
	FnWriteRegister
	FnCurrentAccountID
	FnSignerAccountID
	FnSignerAccountPK
	FnPredecessorAccountID
	FnInput
	FnBlockNumber
	FnBlockTimestamp
	FnStorageUsage
	FnAccountBalance
	FnAccountLockedBalance
	FnAttachedDeposit
	FnPrepaidGas
	FnUsedGas
	FnRandomSeed
	FnSha256
	FnKeccak256
	FnKeccak512
	FnRipemd160
	FnEcrecover
	FnValueReturn
	FnPanic
	FnPanicUTF8
	FnLogUTF8
	FnLogUTF16
	FnAbort
	FnPromiseCreate
	FnPromiseThen
	FnPromiseAnd
	FnPromiseBatchCreate
	FnPromiseBatchThen
	FnPromiseBatchActionCreateAccount
	FnPromiseBatchActionDeployContract
	FnPromiseBatchActionFunctionCall
	FnPromiseBatchActionTransfer
	FnPromiseBatchActionAddKeyWithFullAccess
	FnPromiseBatchActionAddKeyWithFunctionCall
	FnPromiseBatchActionDeleteKey
	FnPromiseBatchActionDeleteAccount
	FnPromiseResultsCount
	FnPromiseResult
	FnPromiseReturn
	FnStorageWrite
	FnStorageRead
	FnStorageRemove
	FnStorageHasKey
	FnGas

	numHostFunctions
)

type signature struct {
	name  string
	arity int
	// u32 lists the arguments that must fit in 32 bits.
	u32 []int
}

var signatures = [numHostFunctions]signature{
	FnReadRegister:                             {name: "read_register", arity: 2},
	FnRegisterLen:                              {name: "register_len", arity: 1},
	FnWriteRegister:                            {name: "write_register", arity: 3},
	FnCurrentAccountID:                         {name: "current_account_id", arity: 1},
	FnSignerAccountID:                          {name: "signer_account_id", arity: 1},
	FnSignerAccountPK:                          {name: "signer_account_pk", arity: 1},
	FnPredecessorAccountID:                     {name: "predecessor_account_id", arity: 1},
	FnInput:                                    {name: "input", arity: 1},
	FnBlockNumber:                              {name: "block_index", arity: 0},
	FnBlockTimestamp:                           {name: "block_timestamp", arity: 0},
	FnStorageUsage:                             {name: "storage_usage", arity: 0},
	FnAccountBalance:                           {name: "account_balance", arity: 1},
	FnAccountLockedBalance:                     {name: "account_locked_balance", arity: 1},
	FnAttachedDeposit:                          {name: "attached_deposit", arity: 1},
	FnPrepaidGas:                               {name: "prepaid_gas", arity: 0},
	FnUsedGas:                                  {name: "used_gas", arity: 0},
	FnRandomSeed:                               {name: "random_seed", arity: 1},
	FnSha256:                                   {name: "sha256", arity: 3},
	FnKeccak256:                                {name: "keccak256", arity: 3},
	FnKeccak512:                                {name: "keccak512", arity: 3},
	FnRipemd160:                                {name: "ripemd160", arity: 3},
	FnEcrecover:                                {name: "ecrecover", arity: 7},
	FnValueReturn:                              {name: "value_return", arity: 2},
	FnPanic:                                    {name: "panic", arity: 0},
	FnPanicUTF8:                                {name: "panic_utf8", arity: 2},
	FnLogUTF8:                                  {name: "log_utf8", arity: 2},
	FnLogUTF16:                                 {name: "log_utf16", arity: 2},
	FnAbort:                                    {name: "abort", arity: 4, u32: []int{0, 1, 2, 3}},
	FnPromiseCreate:                            {name: "promise_create", arity: 8},
	FnPromiseThen:                              {name: "promise_then", arity: 9},
	FnPromiseAnd:                               {name: "promise_and", arity: 2},
	FnPromiseBatchCreate:                       {name: "promise_batch_create", arity: 2},
	FnPromiseBatchThen:                         {name: "promise_batch_then", arity: 3},
	FnPromiseBatchActionCreateAccount:          {name: "promise_batch_action_create_account", arity: 1},
	FnPromiseBatchActionDeployContract:         {name: "promise_batch_action_deploy_contract", arity: 3},
	FnPromiseBatchActionFunctionCall:           {name: "promise_batch_action_function_call", arity: 7},
	FnPromiseBatchActionTransfer:               {name: "promise_batch_action_transfer", arity: 2},
	FnPromiseBatchActionAddKeyWithFullAccess:   {name: "promise_batch_action_add_key_with_full_access", arity: 3},
	FnPromiseBatchActionAddKeyWithFunctionCall: {name: "promise_batch_action_add_key_with_function_call", arity: 8},
	FnPromiseBatchActionDeleteKey:              {name: "promise_batch_action_delete_key", arity: 3},
	FnPromiseBatchActionDeleteAccount:          {name: "promise_batch_action_delete_account", arity: 3},
	FnPromiseResultsCount:                      {name: "promise_results_count", arity: 0},
	FnPromiseResult:                            {name: "promise_result", arity: 2},
	FnPromiseReturn:                            {name: "promise_return", arity: 1},
	FnStorageWrite:                             {name: "storage_write", arity: 5},
	FnStorageRead:                              {name: "storage_read", arity: 3},
	FnStorageRemove:                            {name: "storage_remove", arity: 3},
	FnStorageHasKey:                            {name: "storage_has_key", arity: 2},
	FnGas:                                      {name: "gas", arity: 1, u32: []int{0}},
}

func (f HostFunction) String() string {
	if f >= numHostFunctions {
		return "unknown"
	}
	return signatures[f].name
}

// HostCall is a single call from a guest into the host.
type HostCall struct {
	Func HostFunction
	Args []uint64
}

// Call builds a HostCall.
func Call(f HostFunction, args ...uint64) HostCall {
	return HostCall{Func: f, Args: args}
}

func (c HostCall) check() error {
	if c.Func >= numHostFunctions {
		return &WasmTrap{Msg: "unknown host function"}
	}
	sig := signatures[c.Func]
	if len(c.Args) != sig.arity {
		return &WasmTrap{Msg: "unexpected signature of " + sig.name}
	}
	for _, i := range sig.u32 {
		if c.Args[i] > math.MaxUint32 {
			return &WasmTrap{Msg: "unexpected signature of " + sig.name}
		}
	}
	return nil
}

// Invoke runs [call] and returns its result. Functions without a result
// return 0.
func (l *Logic) Invoke(call HostCall) (uint64, error) {
	if err := call.check(); err != nil {
		return 0, err
	}
	a := call.Args
	switch call.Func {
	case FnReadRegister:
		return 0, l.ReadRegister(a[0], a[1])
	case FnRegisterLen:
		return l.RegisterLen(a[0])
	case FnWriteRegister:
		return 0, l.WriteRegister(a[0], a[1], a[2])
	case FnCurrentAccountID:
		return 0, l.CurrentAccountID(a[0])
	case FnSignerAccountID:
		return 0, l.SignerAccountID(a[0])
	case FnSignerAccountPK:
		return 0, l.SignerAccountPK(a[0])
	case FnPredecessorAccountID:
		return 0, l.PredecessorAccountID(a[0])
	case FnInput:
		return 0, l.Input(a[0])
	case FnBlockNumber:
		return l.BlockNumber()
	case FnBlockTimestamp:
		return l.BlockTimestamp()
	case FnStorageUsage:
		return l.StorageUsage()
	case FnAccountBalance:
		return 0, l.AccountBalance(a[0])
	case FnAccountLockedBalance:
		return 0, l.AccountLockedBalance(a[0])
	case FnAttachedDeposit:
		return 0, l.AttachedDeposit(a[0])
	case FnPrepaidGas:
		return l.PrepaidGas()
	case FnUsedGas:
		return l.UsedGas()
	case FnRandomSeed:
		return 0, l.RandomSeed(a[0])
	case FnSha256:
		return 0, l.Sha256(a[0], a[1], a[2])
	case FnKeccak256:
		return 0, l.Keccak256(a[0], a[1], a[2])
	case FnKeccak512:
		return 0, l.Keccak512(a[0], a[1], a[2])
	case FnRipemd160:
		return 0, l.Ripemd160(a[0], a[1], a[2])
	case FnEcrecover:
		return l.Ecrecover(a[0], a[1], a[2], a[3], a[4], a[5], a[6])
	case FnValueReturn:
		return 0, l.ValueReturn(a[0], a[1])
	case FnPanic:
		return 0, l.Panic()
	case FnPanicUTF8:
		return 0, l.PanicUTF8(a[0], a[1])
	case FnLogUTF8:
		return 0, l.LogUTF8(a[0], a[1])
	case FnLogUTF16:
		return 0, l.LogUTF16(a[0], a[1])
	case FnAbort:
		return 0, l.Abort(uint32(a[0]), uint32(a[1]), uint32(a[2]), uint32(a[3]))
	case FnPromiseCreate:
		return l.PromiseCreate(a[0], a[1], a[2], a[3], a[4], a[5], a[6], a[7])
	case FnPromiseThen:
		return l.PromiseThen(a[0], a[1], a[2], a[3], a[4], a[5], a[6], a[7], a[8])
	case FnPromiseAnd:
		return l.PromiseAnd(a[0], a[1])
	case FnPromiseBatchCreate:
		return l.PromiseBatchCreate(a[0], a[1])
	case FnPromiseBatchThen:
		return l.PromiseBatchThen(a[0], a[1], a[2])
	case FnPromiseBatchActionCreateAccount:
		return 0, l.PromiseBatchActionCreateAccount(a[0])
	case FnPromiseBatchActionDeployContract:
		return 0, l.PromiseBatchActionDeployContract(a[0], a[1], a[2])
	case FnPromiseBatchActionFunctionCall:
		return 0, l.PromiseBatchActionFunctionCall(a[0], a[1], a[2], a[3], a[4], a[5], a[6])
	case FnPromiseBatchActionTransfer:
		return 0, l.PromiseBatchActionTransfer(a[0], a[1])
	case FnPromiseBatchActionAddKeyWithFullAccess:
		return 0, l.PromiseBatchActionAddKeyWithFullAccess(a[0], a[1], a[2])
	case FnPromiseBatchActionAddKeyWithFunctionCall:
		return 0, l.PromiseBatchActionAddKeyWithFunctionCall(a[0], a[1], a[2], a[3], a[4], a[5], a[6], a[7])
	case FnPromiseBatchActionDeleteKey:
		return 0, l.PromiseBatchActionDeleteKey(a[0], a[1], a[2])
	case FnPromiseBatchActionDeleteAccount:
		return 0, l.PromiseBatchActionDeleteAccount(a[0], a[1], a[2])
	case FnPromiseResultsCount:
		return l.PromiseResultsCount()
	case FnPromiseResult:
		return l.PromiseResult(a[0], a[1])
	case FnPromiseReturn:
		return 0, l.PromiseReturn(a[0])
	case FnStorageWrite:
		return l.StorageWrite(a[0], a[1], a[2], a[3], a[4])
	case FnStorageRead:
		return l.StorageRead(a[0], a[1], a[2])
	case FnStorageRemove:
		return l.StorageRemove(a[0], a[1], a[2])
	case FnStorageHasKey:
		return l.StorageHasKey(a[0], a[1])
	default:
		return 0, l.Gas(uint32(a[0]))
	}
}
