// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"github.com/ava-labs/receiptvm/primitives"
	"github.com/ava-labs/receiptvm/state"
)

// VerificationResult is what a verified transaction was charged.
type VerificationResult struct {
	// GasBurnt is burnt converting the transaction into a receipt.
	GasBurnt primitives.Gas
	// GasRemaining is attached to the receipt.
	GasRemaining primitives.Gas
	// ReceiptGasPrice is the price the receipt gas was purchased at.
	ReceiptGasPrice primitives.Balance
	// BurntAmount is GasBurnt at the block gas price.
	BurntAmount primitives.Balance
}

// ValidateTransaction checks [stx] in isolation and prices it at [gasPrice].
// The returned error is always a primitives.InvalidTxError.
func ValidateTransaction(
	config *primitives.RuntimeConfig,
	gasPrice primitives.Balance,
	stx *primitives.SignedTransaction,
	verifySignature bool,
) (*TransactionCost, error) {
	tx := &stx.Transaction

	if !primitives.IsValidAccountID(tx.SignerID) {
		return nil, primitives.InvalidSignerIDError{SignerID: tx.SignerID}
	}
	if !primitives.IsValidAccountID(tx.ReceiverID) {
		return nil, primitives.InvalidReceiverIDError{ReceiverID: tx.ReceiverID}
	}

	if verifySignature {
		hash := stx.Hash()
		if !primitives.VerifySignature(tx.PublicKey, hash[:], stx.Signature) {
			return nil, primitives.InvalidSignatureError{}
		}
	}

	limits := &config.Wasm.Limits
	if size := stx.Size(); size > limits.MaxTransactionSize {
		return nil, primitives.TransactionSizeExceededError{Size: size, Limit: limits.MaxTransactionSize}
	}

	if err := ValidateActions(limits, tx.Actions); err != nil {
		return nil, err
	}

	cost, err := TxCost(&config.Fees, tx, gasPrice, tx.SignerID == tx.ReceiverID)
	if err != nil {
		return nil, primitives.CostOverflowError{}
	}
	return cost, nil
}

// VerifyAndChargeTransaction validates [stx] against the signer's state and
// charges the signer. The changes are left uncommitted in [u].
//
// Invalid transactions are reported as primitives.InvalidTxError, storage
// failures as *primitives.StorageError.
func VerifyAndChargeTransaction(
	config *primitives.RuntimeConfig,
	u *state.TrieUpdate,
	gasPrice primitives.Balance,
	stx *primitives.SignedTransaction,
	verifySignature bool,
) (*VerificationResult, error) {
	cost, err := ValidateTransaction(config, gasPrice, stx, verifySignature)
	if err != nil {
		return nil, err
	}
	tx := &stx.Transaction

	signer, err := state.GetAccount(u, tx.SignerID)
	if err != nil {
		return nil, err
	}
	if signer == nil {
		return nil, primitives.SignerDoesNotExistError{SignerID: tx.SignerID}
	}
	accessKey, err := state.GetAccessKey(u, tx.SignerID, tx.PublicKey)
	if err != nil {
		return nil, err
	}
	if accessKey == nil {
		return nil, primitives.InvalidAccessKeyError{
			Kind:      primitives.AccessKeyNotFound,
			AccountID: tx.SignerID,
			PublicKey: tx.PublicKey,
		}
	}

	if tx.Nonce <= signer.Nonce {
		return nil, primitives.InvalidNonceError{TxNonce: tx.Nonce, AkNonce: signer.Nonce}
	}
	signer.Nonce = tx.Nonce

	amount, err := primitives.SafeSubBalance(signer.Amount, cost.TotalCost)
	if err != nil {
		return nil, primitives.NotEnoughBalanceError{
			SignerID: tx.SignerID,
			Balance:  signer.Amount,
			Cost:     cost.TotalCost,
		}
	}
	signer.Amount = amount

	if permission, ok := accessKey.Permission.(*primitives.FunctionCallPermission); ok {
		if err := checkFunctionCallPermission(tx, permission, cost.TotalCost); err != nil {
			return nil, err
		}
		if err := state.SetAccessKey(u, tx.SignerID, tx.PublicKey, accessKey); err != nil {
			return nil, err
		}
	}

	if err := state.SetAccount(u, tx.SignerID, signer); err != nil {
		return nil, err
	}

	return &VerificationResult{
		GasBurnt:        cost.GasBurnt,
		GasRemaining:    cost.GasRemaining,
		ReceiptGasPrice: cost.ReceiptGasPrice,
		BurntAmount:     cost.BurntAmount,
	}, nil
}

// checkFunctionCallPermission restricts [tx] to what [permission] allows and
// charges [totalCost] against its allowance.
func checkFunctionCallPermission(
	tx *primitives.Transaction,
	permission *primitives.FunctionCallPermission,
	totalCost primitives.Balance,
) error {
	if permission.HasAllowance {
		allowance, err := primitives.SafeSubBalance(permission.Allowance, totalCost)
		if err != nil {
			return primitives.InvalidAccessKeyError{
				Kind:      primitives.NotEnoughAllowance,
				AccountID: tx.SignerID,
				PublicKey: tx.PublicKey,
				Allowance: permission.Allowance,
				Cost:      totalCost,
			}
		}
		permission.Allowance = allowance
	}

	if len(tx.Actions) != 1 {
		return primitives.InvalidAccessKeyError{Kind: primitives.RequiresFullAccess}
	}
	call, ok := tx.Actions[0].(*primitives.FunctionCallAction)
	if !ok {
		return primitives.InvalidAccessKeyError{Kind: primitives.RequiresFullAccess}
	}
	if !call.Deposit.IsZero() {
		return primitives.InvalidAccessKeyError{Kind: primitives.DepositWithFunctionCall}
	}
	if tx.ReceiverID != permission.ReceiverID {
		return primitives.InvalidAccessKeyError{
			Kind:       primitives.ReceiverMismatch,
			TxReceiver: tx.ReceiverID,
			AkReceiver: permission.ReceiverID,
		}
	}
	if len(permission.MethodNames) == 0 {
		return nil
	}
	for _, name := range permission.MethodNames {
		if name == call.MethodName {
			return nil
		}
	}
	return primitives.InvalidAccessKeyError{
		Kind:       primitives.MethodNameMismatch,
		MethodName: call.MethodName,
	}
}

// ValidateReceipt checks the shape of [receipt] against [limits].
func ValidateReceipt(limits *primitives.VMLimitConfig, receipt *primitives.Receipt) primitives.ReceiptValidationError {
	if !primitives.IsValidAccountID(receipt.PredecessorID) {
		return primitives.InvalidPredecessorIDError{AccountID: receipt.PredecessorID}
	}
	if !primitives.IsValidAccountID(receipt.ReceiverID) {
		return primitives.InvalidReceiverIDError{ReceiverID: receipt.ReceiverID}
	}

	switch body := receipt.Body.(type) {
	case *primitives.ActionReceipt:
		return validateActionReceipt(limits, body)
	case *primitives.DataReceipt:
		return validateDataReceipt(limits, body)
	default:
		return nil
	}
}

func validateActionReceipt(limits *primitives.VMLimitConfig, receipt *primitives.ActionReceipt) primitives.ReceiptValidationError {
	if !primitives.IsValidAccountID(receipt.SignerID) {
		return primitives.InvalidSignerIDError{SignerID: receipt.SignerID}
	}
	for _, receiver := range receipt.OutputDataReceivers {
		if !primitives.IsValidAccountID(receiver.ReceiverID) {
			return primitives.InvalidDataReceiverIDError{AccountID: receiver.ReceiverID}
		}
	}
	if n := uint64(len(receipt.InputDataIDs)); n > limits.MaxNumberInputDataDependencies {
		return primitives.NumberInputDataDependenciesExceededError{
			NumberOfInputDataDependencies: n,
			Limit:                         limits.MaxNumberInputDataDependencies,
		}
	}
	if err := ValidateActions(limits, receipt.Actions); err != nil {
		return err
	}
	return nil
}

func validateDataReceipt(limits *primitives.VMLimitConfig, receipt *primitives.DataReceipt) primitives.ReceiptValidationError {
	if !receipt.HasData {
		return nil
	}
	if n := uint64(len(receipt.Data)); n > limits.MaxLengthReturnedData {
		return primitives.ReturnedValueLengthExceededError{Length: n, Limit: limits.MaxLengthReturnedData}
	}
	return nil
}

// ValidateActions checks a list of actions against [limits]. It is shared by
// transactions and receipts.
func ValidateActions(limits *primitives.VMLimitConfig, actions []primitives.Action) primitives.ActionsValidationError {
	if n := uint64(len(actions)); n > limits.MaxActionsPerReceipt {
		return primitives.TotalNumberOfActionsExceededError{TotalNumberOfActions: n, Limit: limits.MaxActionsPerReceipt}
	}

	for i, action := range actions {
		if _, ok := action.(*primitives.DeleteAccountAction); ok && i != len(actions)-1 {
			return primitives.DeleteActionMustBeFinalError{}
		}
		if err := validateAction(limits, action); err != nil {
			return err
		}
	}

	totalPrepaidGas, err := primitives.TotalPrepaidGas(actions)
	if err != nil {
		return primitives.IntegerOverflowError{}
	}
	if totalPrepaidGas > limits.MaxTotalPrepaidGas {
		return primitives.TotalPrepaidGasExceededError{TotalPrepaidGas: totalPrepaidGas, Limit: limits.MaxTotalPrepaidGas}
	}
	return nil
}

func validateAction(limits *primitives.VMLimitConfig, action primitives.Action) primitives.ActionsValidationError {
	switch a := action.(type) {
	case *primitives.DeployContractAction:
		if size := uint64(len(a.Code)); size > limits.MaxContractSize {
			return primitives.ContractSizeExceededError{Size: size, Limit: limits.MaxContractSize}
		}
	case *primitives.FunctionCallAction:
		if a.Gas == 0 {
			return primitives.FunctionCallZeroAttachedGasError{}
		}
		if n := uint64(len(a.MethodName)); n > limits.MaxLengthMethodName {
			return primitives.FunctionCallMethodNameLengthExceededError{Length: n, Limit: limits.MaxLengthMethodName}
		}
		if n := uint64(len(a.Args)); n > limits.MaxArgumentsLength {
			return primitives.FunctionCallArgumentsLengthExceededError{Length: n, Limit: limits.MaxArgumentsLength}
		}
	case *primitives.AddKeyAction:
		permission, ok := a.AccessKey.Permission.(*primitives.FunctionCallPermission)
		if !ok {
			return nil
		}
		var total uint64
		for _, name := range permission.MethodNames {
			n := uint64(len(name))
			if n > limits.MaxLengthMethodName {
				return primitives.AddKeyMethodNameLengthExceededError{Length: n, Limit: limits.MaxLengthMethodName}
			}
			total += n
		}
		if total > limits.MaxNumberBytesMethodNames {
			return primitives.AddKeyMethodNamesNumberOfBytesExceededError{TotalNumberOfBytes: total, Limit: limits.MaxNumberBytesMethodNames}
		}
	}
	return nil
}
