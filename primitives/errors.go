// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package primitives

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnexpectedIntegerOverflow is the fatal error for overflows that are not
// attributed to a specific transaction or receipt.
var ErrUnexpectedIntegerOverflow = errors.New("unexpected integer overflow")

// TxExecutionError is the failure recorded in an execution outcome.
type TxExecutionError interface {
	error
	isTxExecutionError()
}

// InvalidTxError rejects a transaction before it becomes a receipt.
type InvalidTxError interface {
	TxExecutionError
	isInvalidTxError()
}

// ReceiptValidationError rejects a malformed receipt.
type ReceiptValidationError interface {
	error
	isReceiptValidationError()
}

// ActionsValidationError rejects a malformed list of actions. It is reported
// both for transactions and for receipts.
type ActionsValidationError interface {
	InvalidTxError
	ReceiptValidationError
	isActionsValidationError()
}

// ActionErrorKind is the reason an action failed.
type ActionErrorKind interface {
	error
	isActionErrorKind()
}

// Invalid transaction errors.

type InvalidSignerIDError struct {
	SignerID string `serialize:"true"`
}

type InvalidReceiverIDError struct {
	ReceiverID string `serialize:"true"`
}

type SignerDoesNotExistError struct {
	SignerID string `serialize:"true"`
}

type InvalidSignatureError struct{}

type InvalidNonceError struct {
	TxNonce uint64 `serialize:"true"`
	AkNonce uint64 `serialize:"true"`
}

type NotEnoughBalanceError struct {
	SignerID string  `serialize:"true"`
	Balance  Balance `serialize:"true"`
	Cost     Balance `serialize:"true"`
}

type CostOverflowError struct{}

type TransactionSizeExceededError struct {
	Size  uint64 `serialize:"true"`
	Limit uint64 `serialize:"true"`
}

// AccessKeyErrorKind enumerates the ways an access key may refuse a
// transaction.
type AccessKeyErrorKind uint8

const (
	AccessKeyNotFound AccessKeyErrorKind = iota
	ReceiverMismatch
	MethodNameMismatch
	RequiresFullAccess
	NotEnoughAllowance
	DepositWithFunctionCall
)

func (k AccessKeyErrorKind) String() string {
	switch k {
	case AccessKeyNotFound:
		return "AccessKeyNotFound"
	case ReceiverMismatch:
		return "ReceiverMismatch"
	case MethodNameMismatch:
		return "MethodNameMismatch"
	case RequiresFullAccess:
		return "RequiresFullAccess"
	case NotEnoughAllowance:
		return "NotEnoughAllowance"
	case DepositWithFunctionCall:
		return "DepositWithFunctionCall"
	default:
		return "Unknown"
	}
}

// InvalidAccessKeyError carries the fields relevant to its Kind; the others
// are left empty.
type InvalidAccessKeyError struct {
	Kind       AccessKeyErrorKind `serialize:"true"`
	AccountID  string             `serialize:"true"`
	PublicKey  []byte             `serialize:"true"`
	TxReceiver string             `serialize:"true"`
	AkReceiver string             `serialize:"true"`
	MethodName string             `serialize:"true"`
	Allowance  Balance            `serialize:"true"`
	Cost       Balance            `serialize:"true"`
}

func (e InvalidSignerIDError) Error() string {
	return fmt.Sprintf("invalid signer account id %q", e.SignerID)
}

func (e InvalidReceiverIDError) Error() string {
	return fmt.Sprintf("invalid receiver account id %q", e.ReceiverID)
}

func (e SignerDoesNotExistError) Error() string {
	return fmt.Sprintf("signer %q does not exist", e.SignerID)
}

func (InvalidSignatureError) Error() string { return "transaction signature is not valid" }

func (e InvalidNonceError) Error() string {
	return fmt.Sprintf("transaction nonce %d must be larger than the signer nonce %d", e.TxNonce, e.AkNonce)
}

func (e NotEnoughBalanceError) Error() string {
	return fmt.Sprintf(
		"signer %q does not have enough balance: %s for cost %s",
		e.SignerID, BalanceString(e.Balance), BalanceString(e.Cost),
	)
}

func (CostOverflowError) Error() string { return "transaction cost overflows" }

func (e TransactionSizeExceededError) Error() string {
	return fmt.Sprintf("transaction size %d exceeds the limit %d", e.Size, e.Limit)
}

func (e InvalidAccessKeyError) Error() string {
	switch e.Kind {
	case AccessKeyNotFound:
		return fmt.Sprintf("access key %s not found for account %q", PublicKeyString(e.PublicKey), e.AccountID)
	case ReceiverMismatch:
		return fmt.Sprintf("transaction receiver %q does not match the access key receiver %q", e.TxReceiver, e.AkReceiver)
	case MethodNameMismatch:
		return fmt.Sprintf("method %q is not allowed by the access key", e.MethodName)
	case NotEnoughAllowance:
		return fmt.Sprintf(
			"access key %s of %q has allowance %s for cost %s",
			PublicKeyString(e.PublicKey), e.AccountID, BalanceString(e.Allowance), BalanceString(e.Cost),
		)
	case DepositWithFunctionCall:
		return "function call access keys can't attach a deposit"
	default:
		return fmt.Sprintf("access key error: %s", e.Kind)
	}
}

func (InvalidSignerIDError) isTxExecutionError()         {}
func (InvalidReceiverIDError) isTxExecutionError()       {}
func (SignerDoesNotExistError) isTxExecutionError()      {}
func (InvalidSignatureError) isTxExecutionError()        {}
func (InvalidNonceError) isTxExecutionError()            {}
func (NotEnoughBalanceError) isTxExecutionError()        {}
func (CostOverflowError) isTxExecutionError()            {}
func (TransactionSizeExceededError) isTxExecutionError() {}
func (InvalidAccessKeyError) isTxExecutionError()        {}

func (InvalidSignerIDError) isInvalidTxError()         {}
func (InvalidReceiverIDError) isInvalidTxError()       {}
func (SignerDoesNotExistError) isInvalidTxError()      {}
func (InvalidSignatureError) isInvalidTxError()        {}
func (InvalidNonceError) isInvalidTxError()            {}
func (NotEnoughBalanceError) isInvalidTxError()        {}
func (CostOverflowError) isInvalidTxError()            {}
func (TransactionSizeExceededError) isInvalidTxError() {}
func (InvalidAccessKeyError) isInvalidTxError()        {}

// Receipt validation errors. InvalidReceiverIDError is shared with
// transactions.

type InvalidPredecessorIDError struct {
	AccountID string `serialize:"true"`
}

type InvalidDataReceiverIDError struct {
	AccountID string `serialize:"true"`
}

type ReturnedValueLengthExceededError struct {
	Length uint64 `serialize:"true"`
	Limit  uint64 `serialize:"true"`
}

type NumberInputDataDependenciesExceededError struct {
	NumberOfInputDataDependencies uint64 `serialize:"true"`
	Limit                         uint64 `serialize:"true"`
}

func (e InvalidPredecessorIDError) Error() string {
	return fmt.Sprintf("invalid predecessor account id %q", e.AccountID)
}

func (e InvalidDataReceiverIDError) Error() string {
	return fmt.Sprintf("invalid data receiver account id %q", e.AccountID)
}

func (e ReturnedValueLengthExceededError) Error() string {
	return fmt.Sprintf("returned value length %d exceeds the limit %d", e.Length, e.Limit)
}

func (e NumberInputDataDependenciesExceededError) Error() string {
	return fmt.Sprintf(
		"number of input data dependencies %d exceeds the limit %d",
		e.NumberOfInputDataDependencies, e.Limit,
	)
}

func (InvalidPredecessorIDError) isReceiptValidationError()                {}
func (InvalidReceiverIDError) isReceiptValidationError()                   {}
func (InvalidSignerIDError) isReceiptValidationError()                     {}
func (InvalidDataReceiverIDError) isReceiptValidationError()               {}
func (ReturnedValueLengthExceededError) isReceiptValidationError()         {}
func (NumberInputDataDependenciesExceededError) isReceiptValidationError() {}

// Actions validation errors.

type DeleteActionMustBeFinalError struct{}

type TotalPrepaidGasExceededError struct {
	TotalPrepaidGas Gas `serialize:"true"`
	Limit           Gas `serialize:"true"`
}

type TotalNumberOfActionsExceededError struct {
	TotalNumberOfActions uint64 `serialize:"true"`
	Limit                uint64 `serialize:"true"`
}

type AddKeyMethodNamesNumberOfBytesExceededError struct {
	TotalNumberOfBytes uint64 `serialize:"true"`
	Limit              uint64 `serialize:"true"`
}

type AddKeyMethodNameLengthExceededError struct {
	Length uint64 `serialize:"true"`
	Limit  uint64 `serialize:"true"`
}

type IntegerOverflowError struct{}

type ContractSizeExceededError struct {
	Size  uint64 `serialize:"true"`
	Limit uint64 `serialize:"true"`
}

type FunctionCallMethodNameLengthExceededError struct {
	Length uint64 `serialize:"true"`
	Limit  uint64 `serialize:"true"`
}

type FunctionCallArgumentsLengthExceededError struct {
	Length uint64 `serialize:"true"`
	Limit  uint64 `serialize:"true"`
}

type FunctionCallZeroAttachedGasError struct{}

func (DeleteActionMustBeFinalError) Error() string {
	return "delete account action must be the last action"
}

func (e TotalPrepaidGasExceededError) Error() string {
	return fmt.Sprintf("total prepaid gas %d exceeds the limit %d", e.TotalPrepaidGas, e.Limit)
}

func (e TotalNumberOfActionsExceededError) Error() string {
	return fmt.Sprintf("total number of actions %d exceeds the limit %d", e.TotalNumberOfActions, e.Limit)
}

func (e AddKeyMethodNamesNumberOfBytesExceededError) Error() string {
	return fmt.Sprintf("access key method names take %d bytes, the limit is %d", e.TotalNumberOfBytes, e.Limit)
}

func (e AddKeyMethodNameLengthExceededError) Error() string {
	return fmt.Sprintf("access key method name length %d exceeds the limit %d", e.Length, e.Limit)
}

func (IntegerOverflowError) Error() string { return "integer overflow while validating actions" }

func (e ContractSizeExceededError) Error() string {
	return fmt.Sprintf("contract size %d exceeds the limit %d", e.Size, e.Limit)
}

func (e FunctionCallMethodNameLengthExceededError) Error() string {
	return fmt.Sprintf("method name length %d exceeds the limit %d", e.Length, e.Limit)
}

func (e FunctionCallArgumentsLengthExceededError) Error() string {
	return fmt.Sprintf("arguments length %d exceeds the limit %d", e.Length, e.Limit)
}

func (FunctionCallZeroAttachedGasError) Error() string {
	return "function call must attach a non-zero amount of gas"
}

func (DeleteActionMustBeFinalError) isTxExecutionError()                {}
func (TotalPrepaidGasExceededError) isTxExecutionError()                {}
func (TotalNumberOfActionsExceededError) isTxExecutionError()           {}
func (AddKeyMethodNamesNumberOfBytesExceededError) isTxExecutionError() {}
func (AddKeyMethodNameLengthExceededError) isTxExecutionError()         {}
func (IntegerOverflowError) isTxExecutionError()                        {}
func (ContractSizeExceededError) isTxExecutionError()                   {}
func (FunctionCallMethodNameLengthExceededError) isTxExecutionError()   {}
func (FunctionCallArgumentsLengthExceededError) isTxExecutionError()    {}
func (FunctionCallZeroAttachedGasError) isTxExecutionError()            {}

func (DeleteActionMustBeFinalError) isInvalidTxError()                {}
func (TotalPrepaidGasExceededError) isInvalidTxError()                {}
func (TotalNumberOfActionsExceededError) isInvalidTxError()           {}
func (AddKeyMethodNamesNumberOfBytesExceededError) isInvalidTxError() {}
func (AddKeyMethodNameLengthExceededError) isInvalidTxError()         {}
func (IntegerOverflowError) isInvalidTxError()                        {}
func (ContractSizeExceededError) isInvalidTxError()                   {}
func (FunctionCallMethodNameLengthExceededError) isInvalidTxError()   {}
func (FunctionCallArgumentsLengthExceededError) isInvalidTxError()    {}
func (FunctionCallZeroAttachedGasError) isInvalidTxError()            {}

func (DeleteActionMustBeFinalError) isReceiptValidationError()                {}
func (TotalPrepaidGasExceededError) isReceiptValidationError()                {}
func (TotalNumberOfActionsExceededError) isReceiptValidationError()           {}
func (AddKeyMethodNamesNumberOfBytesExceededError) isReceiptValidationError() {}
func (AddKeyMethodNameLengthExceededError) isReceiptValidationError()         {}
func (IntegerOverflowError) isReceiptValidationError()                        {}
func (ContractSizeExceededError) isReceiptValidationError()                   {}
func (FunctionCallMethodNameLengthExceededError) isReceiptValidationError()   {}
func (FunctionCallArgumentsLengthExceededError) isReceiptValidationError()    {}
func (FunctionCallZeroAttachedGasError) isReceiptValidationError()            {}

func (DeleteActionMustBeFinalError) isActionsValidationError()                {}
func (TotalPrepaidGasExceededError) isActionsValidationError()                {}
func (TotalNumberOfActionsExceededError) isActionsValidationError()           {}
func (AddKeyMethodNamesNumberOfBytesExceededError) isActionsValidationError() {}
func (AddKeyMethodNameLengthExceededError) isActionsValidationError()         {}
func (IntegerOverflowError) isActionsValidationError()                        {}
func (ContractSizeExceededError) isActionsValidationError()                   {}
func (FunctionCallMethodNameLengthExceededError) isActionsValidationError()   {}
func (FunctionCallArgumentsLengthExceededError) isActionsValidationError()    {}
func (FunctionCallZeroAttachedGasError) isActionsValidationError()            {}

// Action errors.

// ActionError is a failed action of a receipt. Index is set when the failure
// is attributed to a specific action.
type ActionError struct {
	Index    uint64          `serialize:"true"`
	HasIndex bool            `serialize:"true"`
	Kind     ActionErrorKind `serialize:"true"`
}

func (e *ActionError) Error() string {
	if e.HasIndex {
		return fmt.Sprintf("action #%d: %s", e.Index, e.Kind)
	}
	return e.Kind.Error()
}

func (e *ActionError) Unwrap() error { return e.Kind }

func (*ActionError) isTxExecutionError() {}

type AccountAlreadyExistsError struct {
	AccountID string `serialize:"true"`
}

type AccountDoesNotExistError struct {
	AccountID string `serialize:"true"`
}

type CreateAccountOnlyByRegistrarError struct {
	AccountID          string `serialize:"true"`
	RegistrarAccountID string `serialize:"true"`
	PredecessorID      string `serialize:"true"`
}

type CreateAccountNotAllowedError struct {
	AccountID     string `serialize:"true"`
	PredecessorID string `serialize:"true"`
}

type ActorNoPermissionError struct {
	AccountID string `serialize:"true"`
	ActorID   string `serialize:"true"`
}

type DeleteKeyDoesNotExistError struct {
	AccountID string `serialize:"true"`
	PublicKey []byte `serialize:"true"`
}

type AddKeyAlreadyExistsError struct {
	AccountID string `serialize:"true"`
	PublicKey []byte `serialize:"true"`
}

type DeleteAccountStakingError struct {
	AccountID string `serialize:"true"`
}

type DeleteAccountWithLargeStateError struct {
	AccountID string `serialize:"true"`
}

type OnlyImplicitAccountCreationAllowedError struct {
	AccountID string `serialize:"true"`
}

// NewReceiptValidationError is reported when a contract produces a receipt
// that fails validation.
type NewReceiptValidationError struct {
	Err ReceiptValidationError `serialize:"true"`
}

// FunctionCallErrorKind classifies contract execution failures that are
// attributed to the contract.
type FunctionCallErrorKind uint8

const (
	CompilationError FunctionCallErrorKind = iota
	LinkError
	MethodResolveError
	WasmTrap
	HostError
)

func (k FunctionCallErrorKind) String() string {
	switch k {
	case CompilationError:
		return "CompilationError"
	case LinkError:
		return "LinkError"
	case MethodResolveError:
		return "MethodResolveError"
	case WasmTrap:
		return "WasmTrap"
	case HostError:
		return "HostError"
	default:
		return "Unknown"
	}
}

// FunctionCallError is a contract failure. It fails the receipt but leaves
// the rest of the block unaffected.
type FunctionCallError struct {
	Kind    FunctionCallErrorKind `serialize:"true"`
	Message string                `serialize:"true"`
}

func (e AccountAlreadyExistsError) Error() string {
	return fmt.Sprintf("account %q already exists", e.AccountID)
}

func (e AccountDoesNotExistError) Error() string {
	return fmt.Sprintf("account %q does not exist", e.AccountID)
}

func (e CreateAccountOnlyByRegistrarError) Error() string {
	return fmt.Sprintf(
		"top-level account %q can only be created by %q, not %q",
		e.AccountID, e.RegistrarAccountID, e.PredecessorID,
	)
}

func (e CreateAccountNotAllowedError) Error() string {
	return fmt.Sprintf("account %q can't be created by %q", e.AccountID, e.PredecessorID)
}

func (e ActorNoPermissionError) Error() string {
	return fmt.Sprintf("actor %q has no permission to act on %q", e.ActorID, e.AccountID)
}

func (e DeleteKeyDoesNotExistError) Error() string {
	return fmt.Sprintf("account %q has no key %s", e.AccountID, PublicKeyString(e.PublicKey))
}

func (e AddKeyAlreadyExistsError) Error() string {
	return fmt.Sprintf("account %q already has key %s", e.AccountID, PublicKeyString(e.PublicKey))
}

func (e DeleteAccountStakingError) Error() string {
	return fmt.Sprintf("account %q has locked balance and can't be deleted", e.AccountID)
}

func (e DeleteAccountWithLargeStateError) Error() string {
	return fmt.Sprintf("account %q has too much state to be deleted", e.AccountID)
}

func (e OnlyImplicitAccountCreationAllowedError) Error() string {
	return fmt.Sprintf("implicit account %q can only be created by a transfer", e.AccountID)
}

func (e NewReceiptValidationError) Error() string {
	return fmt.Sprintf("new receipt is invalid: %s", e.Err)
}

func (e FunctionCallError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (AccountAlreadyExistsError) isActionErrorKind()               {}
func (AccountDoesNotExistError) isActionErrorKind()                {}
func (CreateAccountOnlyByRegistrarError) isActionErrorKind()       {}
func (CreateAccountNotAllowedError) isActionErrorKind()            {}
func (ActorNoPermissionError) isActionErrorKind()                  {}
func (DeleteKeyDoesNotExistError) isActionErrorKind()              {}
func (AddKeyAlreadyExistsError) isActionErrorKind()                {}
func (DeleteAccountStakingError) isActionErrorKind()               {}
func (DeleteAccountWithLargeStateError) isActionErrorKind()        {}
func (OnlyImplicitAccountCreationAllowedError) isActionErrorKind() {}
func (NewReceiptValidationError) isActionErrorKind()               {}
func (FunctionCallError) isActionErrorKind()                       {}

// Fatal errors.

// StorageErrorKind classifies storage failures.
type StorageErrorKind uint8

const (
	// StorageInternalError is a failure of the underlying database.
	StorageInternalError StorageErrorKind = iota
	// StorageInconsistentState means the state contradicts itself, typically
	// because the input state is corrupted or malicious.
	StorageInconsistentState
)

// StorageError is fatal: apply must be aborted and its changes discarded.
type StorageError struct {
	Kind    StorageErrorKind
	Message string
}

func NewStorageInconsistentState(format string, args ...interface{}) *StorageError {
	return &StorageError{Kind: StorageInconsistentState, Message: fmt.Sprintf(format, args...)}
}

func NewStorageInternalError(err error) *StorageError {
	return &StorageError{Kind: StorageInternalError, Message: err.Error()}
}

func (e *StorageError) Error() string {
	if e.Kind == StorageInconsistentState {
		return "storage inconsistent state: " + e.Message
	}
	return "storage internal error: " + e.Message
}

// ReceiptValidationFailure is the fatal error for an incoming or delayed
// receipt that fails validation.
type ReceiptValidationFailure struct {
	Err ReceiptValidationError
}

func (e *ReceiptValidationFailure) Error() string {
	return fmt.Sprintf("receipt validation failed: %s", e.Err)
}

func (e *ReceiptValidationFailure) Unwrap() error { return e.Err }

// BalanceMismatchError reports every term of the balance equation.
type BalanceMismatchError struct {
	// Inputs
	InitialAccountsBalance          Balance
	IncomingReceiptsBalance         Balance
	ProcessedDelayedReceiptsBalance Balance
	InitialPostponedReceiptsBalance Balance
	// Outputs
	FinalAccountsBalance            Balance
	OutgoingReceiptsBalance         Balance
	NewDelayedReceiptsBalance       Balance
	FinalPostponedReceiptsBalance   Balance
	TxBurntAmount                   Balance
	SlashedBurntAmount              Balance
	OtherBurntAmount                Balance
}

func (e *BalanceMismatchError) Error() string {
	input := SaturatingAddBalance(
		SaturatingAddBalance(e.InitialAccountsBalance, e.IncomingReceiptsBalance),
		SaturatingAddBalance(e.ProcessedDelayedReceiptsBalance, e.InitialPostponedReceiptsBalance),
	)
	output := SaturatingAddBalance(
		SaturatingAddBalance(
			SaturatingAddBalance(e.FinalAccountsBalance, e.OutgoingReceiptsBalance),
			SaturatingAddBalance(e.NewDelayedReceiptsBalance, e.FinalPostponedReceiptsBalance),
		),
		SaturatingAddBalance(
			SaturatingAddBalance(e.TxBurntAmount, e.SlashedBurntAmount),
			e.OtherBurntAmount,
		),
	)
	var b strings.Builder
	fmt.Fprintf(&b, "balance mismatch: input %s, output %s\n", BalanceString(input), BalanceString(output))
	fmt.Fprintf(&b, "\tinitial accounts balance: %s\n", BalanceString(e.InitialAccountsBalance))
	fmt.Fprintf(&b, "\tincoming receipts balance: %s\n", BalanceString(e.IncomingReceiptsBalance))
	fmt.Fprintf(&b, "\tprocessed delayed receipts balance: %s\n", BalanceString(e.ProcessedDelayedReceiptsBalance))
	fmt.Fprintf(&b, "\tinitial postponed receipts balance: %s\n", BalanceString(e.InitialPostponedReceiptsBalance))
	fmt.Fprintf(&b, "\tfinal accounts balance: %s\n", BalanceString(e.FinalAccountsBalance))
	fmt.Fprintf(&b, "\toutgoing receipts balance: %s\n", BalanceString(e.OutgoingReceiptsBalance))
	fmt.Fprintf(&b, "\tnew delayed receipts balance: %s\n", BalanceString(e.NewDelayedReceiptsBalance))
	fmt.Fprintf(&b, "\tfinal postponed receipts balance: %s\n", BalanceString(e.FinalPostponedReceiptsBalance))
	fmt.Fprintf(&b, "\ttx burnt amount: %s\n", BalanceString(e.TxBurntAmount))
	fmt.Fprintf(&b, "\tslashed burnt amount: %s\n", BalanceString(e.SlashedBurntAmount))
	fmt.Fprintf(&b, "\tother burnt amount: %s", BalanceString(e.OtherBurntAmount))
	return b.String()
}
