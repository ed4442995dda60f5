// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package host

import (
	"fmt"
)

// HostErrorKind is the reason a host function refused a call.
type HostErrorKind uint8

const (
	BadUTF8 HostErrorKind = iota
	BadUTF16
	GasExceeded
	GasLimitExceeded
	BalanceExceeded
	EmptyMethodName
	GuestPanic
	IntegerOverflow
	InvalidPromiseIndex
	CannotAppendActionToJointPromise
	CannotReturnJointPromise
	InvalidPromiseResultIndex
	InvalidRegisterID
	MemoryAccessViolation
	InvalidReceiptIndex
	InvalidAccountID
	InvalidMethodName
	InvalidPublicKey
	ProhibitedInView
	NumberOfLogsExceeded
	KeyLengthExceeded
	ValueLengthExceeded
	TotalLogLengthExceeded
	NumberPromisesExceeded
	NumberInputDataDependenciesExceeded
	ReturnedValueLengthExceeded
	ContractSizeExceeded
	ECRecoverError
)

var hostErrorNames = map[HostErrorKind]string{
	BadUTF8:                             "BadUTF8",
	BadUTF16:                            "BadUTF16",
	GasExceeded:                         "GasExceeded",
	GasLimitExceeded:                    "GasLimitExceeded",
	BalanceExceeded:                     "BalanceExceeded",
	EmptyMethodName:                     "EmptyMethodName",
	GuestPanic:                          "GuestPanic",
	IntegerOverflow:                     "IntegerOverflow",
	InvalidPromiseIndex:                 "InvalidPromiseIndex",
	CannotAppendActionToJointPromise:    "CannotAppendActionToJointPromise",
	CannotReturnJointPromise:            "CannotReturnJointPromise",
	InvalidPromiseResultIndex:           "InvalidPromiseResultIndex",
	InvalidRegisterID:                   "InvalidRegisterId",
	MemoryAccessViolation:               "MemoryAccessViolation",
	InvalidReceiptIndex:                 "InvalidReceiptIndex",
	InvalidAccountID:                    "InvalidAccountId",
	InvalidMethodName:                   "InvalidMethodName",
	InvalidPublicKey:                    "InvalidPublicKey",
	ProhibitedInView:                    "ProhibitedInView",
	NumberOfLogsExceeded:                "NumberOfLogsExceeded",
	KeyLengthExceeded:                   "KeyLengthExceeded",
	ValueLengthExceeded:                 "ValueLengthExceeded",
	TotalLogLengthExceeded:              "TotalLogLengthExceeded",
	NumberPromisesExceeded:              "NumberPromisesExceeded",
	NumberInputDataDependenciesExceeded: "NumberInputDataDependenciesExceeded",
	ReturnedValueLengthExceeded:         "ReturnedValueLengthExceeded",
	ContractSizeExceeded:                "ContractSizeExceeded",
	ECRecoverError:                      "ECRecoverError",
}

func (k HostErrorKind) String() string {
	if name, ok := hostErrorNames[k]; ok {
		return name
	}
	return "Unknown"
}

// HostError is a contract failure detected by a host function. It fails
// the function call without affecting the rest of the block.
type HostError struct {
	Kind HostErrorKind
	Msg  string
}

func newHostError(kind HostErrorKind, format string, args ...interface{}) *HostError {
	return &HostError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func (e *HostError) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Is matches any *HostError of the same kind.
func (e *HostError) Is(target error) bool {
	t, ok := target.(*HostError)
	return ok && t.Kind == e.Kind
}

// ExternalError is a failure of the storage behind External.
type ExternalError struct {
	Err error
}

func (e *ExternalError) Error() string { return "external error: " + e.Err.Error() }

func (e *ExternalError) Unwrap() error { return e.Err }

// InconsistentStateError means the contract's own bookkeeping, such as its
// storage usage, contradicts the state.
type InconsistentStateError struct {
	Msg string
}

func (e *InconsistentStateError) Error() string { return "inconsistent state: " + e.Msg }

// CacheError is a failure of the compiled contract cache.
type CacheError struct {
	Err error
}

func (e *CacheError) Error() string { return "cache error: " + e.Err.Error() }

func (e *CacheError) Unwrap() error { return e.Err }

// CompilationError means the code could not be turned into a program.
type CompilationError struct {
	Msg string
}

func (e *CompilationError) Error() string { return "compilation error: " + e.Msg }

// LinkError means the code refers to a program this engine doesn't know.
type LinkError struct {
	Msg string
}

func (e *LinkError) Error() string { return "link error: " + e.Msg }

// MethodResolveError means the requested method can't be called.
type MethodResolveError struct {
	Method string
}

func (e *MethodResolveError) Error() string {
	if e.Method == "" {
		return "method resolve error: empty method name"
	}
	return fmt.Sprintf("method resolve error: method %q not found", e.Method)
}

// WasmTrap is an abnormal termination of the guest that is not a host error.
type WasmTrap struct {
	Msg string
}

func (e *WasmTrap) Error() string { return "trap: " + e.Msg }

// Nondeterministic means the engine could not guarantee a deterministic
// result. Nodes must not continue after it.
type Nondeterministic struct {
	Msg string
}

func (e *Nondeterministic) Error() string { return "nondeterministic execution: " + e.Msg }

// WasmUnknownError is an engine failure of unknown origin. Nodes must not
// continue after it.
type WasmUnknownError struct {
	Msg string
}

func (e *WasmUnknownError) Error() string { return "unknown engine error: " + e.Msg }

// Trap carries a host function failure out of the guest. Guests panic with
// it through Raise and the engine recovers it.
type Trap struct {
	Err error
}

func (t *Trap) Error() string { return t.Err.Error() }

func (t *Trap) Unwrap() error { return t.Err }

// Raise aborts the running guest with [err].
func Raise(err error) {
	panic(&Trap{Err: err})
}
