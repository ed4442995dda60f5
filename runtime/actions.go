// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/receiptvm/host"
	"github.com/ava-labs/receiptvm/primitives"
	"github.com/ava-labs/receiptvm/state"
)

func actionFailed(result *ActionResult, kind primitives.ActionErrorKind) {
	result.Err = &primitives.ActionError{Kind: kind}
}

// accessKeyStorageUsage is the storage an access key record is accounted
// for.
func accessKeyStorageUsage(config *primitives.RuntimeFeesConfig, publicKey []byte, key *primitives.AccessKey) (uint64, error) {
	b, err := key.Bytes()
	if err != nil {
		return 0, primitives.NewStorageInternalError(err)
	}
	return uint64(len(publicKey)) + uint64(len(b)) + config.StorageUsage.NumExtraBytesRecord, nil
}

// checkAccountExistence fails actions that need the receiver to exist when
// it doesn't, and CreateAccount when it does.
func checkAccountExistence(
	action primitives.Action,
	account *primitives.Account,
	accountID string,
	isTheOnlyAction bool,
	isRefund bool,
) primitives.ActionErrorKind {
	switch action.(type) {
	case *primitives.CreateAccountAction:
		if account != nil {
			return primitives.AccountAlreadyExistsError{AccountID: accountID}
		}
		if primitives.IsImplicitAccountID(accountID) {
			return primitives.OnlyImplicitAccountCreationAllowedError{AccountID: accountID}
		}
	case *primitives.TransferAction:
		if account == nil && !(isTheOnlyAction && !isRefund && primitives.IsImplicitAccountID(accountID)) {
			return primitives.AccountDoesNotExistError{AccountID: accountID}
		}
	default:
		if account == nil {
			return primitives.AccountDoesNotExistError{AccountID: accountID}
		}
	}
	return nil
}

// checkActorPermissions restricts actions that modify an account to the
// account itself.
func checkActorPermissions(
	action primitives.Action,
	account *primitives.Account,
	actorID string,
	accountID string,
) primitives.ActionErrorKind {
	switch action.(type) {
	case *primitives.DeployContractAction, *primitives.AddKeyAction, *primitives.DeleteKeyAction:
		if actorID != accountID {
			return primitives.ActorNoPermissionError{AccountID: accountID, ActorID: actorID}
		}
	case *primitives.DeleteAccountAction:
		if actorID != accountID {
			return primitives.ActorNoPermissionError{AccountID: accountID, ActorID: actorID}
		}
		if !account.Locked.IsZero() {
			return primitives.DeleteAccountStakingError{AccountID: accountID}
		}
	}
	return nil
}

func actionCreateAccount(
	fees *primitives.RuntimeFeesConfig,
	creation *primitives.AccountCreationConfig,
	account **primitives.Account,
	actorID *string,
	accountID string,
	predecessorID string,
	result *ActionResult,
) {
	if primitives.IsTopLevelAccountID(accountID) {
		if uint64(len(accountID)) < creation.MinAllowedTopLevelAccountLength &&
			predecessorID != creation.RegistrarAccountID {
			actionFailed(result, primitives.CreateAccountOnlyByRegistrarError{
				AccountID:          accountID,
				RegistrarAccountID: creation.RegistrarAccountID,
				PredecessorID:      predecessorID,
			})
			return
		}
	} else if !primitives.IsSubAccountOf(accountID, predecessorID) {
		actionFailed(result, primitives.CreateAccountNotAllowedError{
			AccountID:     accountID,
			PredecessorID: predecessorID,
		})
		return
	}

	*actorID = accountID
	*account = primitives.NewAccount(
		primitives.Balance{},
		primitives.Balance{},
		ids.Empty,
		fees.StorageUsage.NumBytesAccount,
	)
}

// actionImplicitAccountCreationTransfer creates the implicit account
// [accountID] with the transferred tokens and the full access key its id
// encodes.
func actionImplicitAccountCreationTransfer(
	u *state.TrieUpdate,
	fees *primitives.RuntimeFeesConfig,
	account **primitives.Account,
	actorID *string,
	accountID string,
	transfer *primitives.TransferAction,
) error {
	publicKey, err := primitives.PublicKeyFromImplicitAccountID(accountID)
	if err != nil {
		return primitives.NewStorageInconsistentState("implicit account id %s doesn't encode a public key", accountID)
	}
	accessKey := primitives.FullAccessKey()
	keyUsage, err := accessKeyStorageUsage(fees, publicKey, accessKey)
	if err != nil {
		return err
	}

	*actorID = accountID
	*account = primitives.NewAccount(
		transfer.Deposit,
		primitives.Balance{},
		ids.Empty,
		fees.StorageUsage.NumBytesAccount+keyUsage,
	)
	return state.SetAccessKey(u, accountID, publicKey, accessKey)
}

func actionTransfer(account *primitives.Account, transfer *primitives.TransferAction) error {
	amount, err := primitives.SafeAddBalance(account.Amount, transfer.Deposit)
	if err != nil {
		return primitives.NewStorageInconsistentState("Account balance integer overflow")
	}
	account.Amount = amount
	return nil
}

// tryRefundAllowance returns a refunded [transfer] to the allowance of the
// function call key that paid for it.
func tryRefundAllowance(
	u *state.TrieUpdate,
	accountID string,
	publicKey []byte,
	transfer *primitives.TransferAction,
) error {
	accessKey, err := state.GetAccessKey(u, accountID, publicKey)
	if err != nil || accessKey == nil {
		return err
	}
	permission, ok := accessKey.Permission.(*primitives.FunctionCallPermission)
	if !ok || !permission.HasAllowance {
		return nil
	}
	allowance := primitives.SaturatingAddBalance(permission.Allowance, transfer.Deposit)
	if !allowance.Gt(&permission.Allowance) {
		return nil
	}
	permission.Allowance = allowance
	return state.SetAccessKey(u, accountID, publicKey, accessKey)
}

func (r *Runtime) actionDeployContract(
	u *state.TrieUpdate,
	accountID string,
	account *primitives.Account,
	deploy *primitives.DeployContractAction,
	config *primitives.RuntimeConfig,
) error {
	code := host.NewContractCode(deploy.Code)
	prevCode, err := state.GetCode(u, accountID)
	if err != nil {
		return err
	}

	usage := primitives.SaturatingSubGas(account.StorageUsage, uint64(len(prevCode)))
	usage, err = primitives.SafeAddGas(usage, uint64(len(code.Code)))
	if err != nil {
		return primitives.NewStorageInconsistentState("Storage usage integer overflow for account %s", accountID)
	}
	account.StorageUsage = usage
	account.CodeHash = code.Hash
	if err := state.SetCode(u, accountID, code.Code); err != nil {
		return err
	}

	if err := r.engine.Precompile(code, &config.Wasm); err != nil {
		logger.Warn("couldn't precompile contract",
			"account", accountID,
			"codeHash", code.Hash,
			"err", err,
		)
		return nil
	}
	r.codes.put(code)
	return nil
}

func actionAddKey(
	fees *primitives.RuntimeFeesConfig,
	u *state.TrieUpdate,
	account *primitives.Account,
	result *ActionResult,
	accountID string,
	addKey *primitives.AddKeyAction,
) error {
	existing, err := state.GetAccessKey(u, accountID, addKey.PublicKey)
	if err != nil {
		return err
	}
	if existing != nil {
		actionFailed(result, primitives.AddKeyAlreadyExistsError{
			AccountID: accountID,
			PublicKey: addKey.PublicKey,
		})
		return nil
	}

	accessKey := addKey.AccessKey
	if err := state.SetAccessKey(u, accountID, addKey.PublicKey, &accessKey); err != nil {
		return err
	}
	keyUsage, err := accessKeyStorageUsage(fees, addKey.PublicKey, &accessKey)
	if err != nil {
		return err
	}
	usage, err := primitives.SafeAddGas(account.StorageUsage, keyUsage)
	if err != nil {
		return primitives.NewStorageInconsistentState("Storage usage integer overflow for account %s", accountID)
	}
	account.StorageUsage = usage
	return nil
}

func actionDeleteKey(
	fees *primitives.RuntimeFeesConfig,
	u *state.TrieUpdate,
	account *primitives.Account,
	result *ActionResult,
	accountID string,
	deleteKey *primitives.DeleteKeyAction,
) error {
	accessKey, err := state.GetAccessKey(u, accountID, deleteKey.PublicKey)
	if err != nil {
		return err
	}
	if accessKey == nil {
		actionFailed(result, primitives.DeleteKeyDoesNotExistError{
			AccountID: accountID,
			PublicKey: deleteKey.PublicKey,
		})
		return nil
	}

	keyUsage, err := accessKeyStorageUsage(fees, deleteKey.PublicKey, accessKey)
	if err != nil {
		return err
	}
	if err := state.RemoveAccessKey(u, accountID, deleteKey.PublicKey); err != nil {
		return err
	}
	account.StorageUsage = primitives.SaturatingSubGas(account.StorageUsage, keyUsage)
	return nil
}

func actionDeleteAccount(
	u *state.TrieUpdate,
	account **primitives.Account,
	actorID *string,
	receipt *primitives.Receipt,
	result *ActionResult,
	accountID string,
	deleteAccount *primitives.DeleteAccountAction,
) error {
	acc := *account
	usage := acc.StorageUsage
	if acc.HasCode() {
		code, err := state.GetCode(u, accountID)
		if err != nil {
			return err
		}
		usage = primitives.SaturatingSubGas(usage, uint64(len(code)))
	}
	if usage > primitives.MaxAccountDeletionStorageUsage {
		actionFailed(result, primitives.DeleteAccountWithLargeStateError{AccountID: accountID})
		return nil
	}

	if !acc.Amount.IsZero() {
		result.NewReceipts = append(result.NewReceipts, primitives.NewBalanceRefund(deleteAccount.BeneficiaryID, acc.Amount))
	}
	if err := state.RemoveAccount(u, accountID); err != nil {
		return err
	}
	*actorID = receipt.PredecessorID
	*account = nil
	return nil
}

// executeFunctionCall runs [call] on the contract of [account]. The outcome
// is returned with the error when gas was burnt before the failure.
func (r *Runtime) executeFunctionCall(
	applyState *ApplyState,
	ext *RuntimeExt,
	account *primitives.Account,
	predecessorID string,
	actionReceipt *primitives.ActionReceipt,
	promiseResults []host.PromiseResult,
	call *primitives.FunctionCallAction,
	actionHash ids.ID,
	isLastAction bool,
	isView bool,
) (*host.VMOutcome, error) {
	code, err := ext.GetCode(account.CodeHash)
	if err != nil {
		return nil, &host.ExternalError{Err: err}
	}
	if code == nil {
		return nil, &host.CompilationError{Msg: fmt.Sprintf("cannot find contract code for account %s", ext.AccountID())}
	}

	var outputDataReceivers []string
	if isLastAction {
		for _, receiver := range actionReceipt.OutputDataReceivers {
			outputDataReceivers = append(outputDataReceivers, receiver.ReceiverID)
		}
	}
	ctx := &host.VMContext{
		CurrentAccountID:     ext.AccountID(),
		SignerAccountID:      actionReceipt.SignerID,
		SignerAccountPK:      actionReceipt.SignerPublicKey,
		PredecessorAccountID: predecessorID,
		Input:                call.Args,
		BlockNumber:          applyState.BlockNumber,
		BlockTimestamp:       applyState.BlockTimestamp,
		AccountBalance:       account.Amount,
		AccountLockedBalance: account.Locked,
		StorageUsage:         account.StorageUsage,
		AttachedDeposit:      call.Deposit,
		PrepaidGas:           call.Gas,
		RandomSeed:           primitives.CreateRandomSeed(actionHash, applyState.RandomSeed),
		IsView:               isView,
		OutputDataReceivers:  outputDataReceivers,
	}
	config := applyState.Config
	return r.engine.Run(code, call.MethodName, ext, ctx, &config.Wasm, &config.Fees, promiseResults)
}

// functionCallFailure turns an engine error into either an action failure
// recorded in [result] or a fatal error. It panics on errors that make the
// execution environment untrustworthy.
func functionCallFailure(err error, result *ActionResult) error {
	var kind primitives.FunctionCallError
	switch e := err.(type) {
	case *host.Nondeterministic:
		panic(fmt.Sprintf("contract runner returned non-deterministic error '%s', aborting", e.Msg))
	case *host.WasmUnknownError:
		panic(fmt.Sprintf("contract runner returned unknown error: %s", e.Msg))
	case *host.ExternalError:
		var storageErr *primitives.StorageError
		if errors.As(e.Err, &storageErr) {
			return storageErr
		}
		return primitives.NewStorageInternalError(e.Err)
	case *host.InconsistentStateError:
		return primitives.NewStorageInconsistentState(e.Msg)
	case *host.CacheError:
		return primitives.NewStorageInconsistentState("Cache error: %s", e.Err)
	case *host.CompilationError:
		kind = primitives.FunctionCallError{Kind: primitives.CompilationError, Message: e.Msg}
	case *host.LinkError:
		kind = primitives.FunctionCallError{Kind: primitives.LinkError, Message: "Link Error: " + e.Msg}
	case *host.MethodResolveError:
		kind = primitives.FunctionCallError{Kind: primitives.MethodResolveError, Message: e.Error()}
	case *host.WasmTrap:
		kind = primitives.FunctionCallError{Kind: primitives.WasmTrap, Message: e.Error()}
	case *host.HostError:
		kind = primitives.FunctionCallError{Kind: primitives.HostError, Message: e.Error()}
	default:
		kind = primitives.FunctionCallError{Kind: primitives.WasmTrap, Message: err.Error()}
	}
	actionFailed(result, kind)
	return nil
}

func (r *Runtime) actionFunctionCall(
	u *state.TrieUpdate,
	applyState *ApplyState,
	account *primitives.Account,
	receipt *primitives.Receipt,
	actionReceipt *primitives.ActionReceipt,
	promiseResults []host.PromiseResult,
	result *ActionResult,
	accountID string,
	call *primitives.FunctionCallAction,
	actionHash ids.ID,
	isLastAction bool,
) error {
	if _, err := primitives.SafeAddBalance(account.Amount, call.Deposit); err != nil {
		return primitives.NewStorageInconsistentState("Account balance integer overflow during function call deposit")
	}

	ext := NewRuntimeExt(
		u,
		r.codes,
		accountID,
		actionReceipt.SignerID,
		actionReceipt.SignerPublicKey,
		actionReceipt.GasPrice,
		actionHash,
	)
	outcome, err := r.executeFunctionCall(
		applyState,
		ext,
		account,
		receipt.PredecessorID,
		actionReceipt,
		promiseResults,
		call,
		actionHash,
		isLastAction,
		false,
	)
	succeeded := err == nil
	if err != nil {
		if fatal := functionCallFailure(err, result); fatal != nil {
			return fatal
		}
	}
	if outcome == nil {
		return nil
	}

	if result.GasBurnt, err = primitives.SafeAddGas(result.GasBurnt, outcome.BurntGas); err != nil {
		return primitives.ErrUnexpectedIntegerOverflow
	}
	if result.GasBurntForFunctionCall, err = primitives.SafeAddGas(result.GasBurntForFunctionCall, outcome.BurntGas); err != nil {
		return primitives.ErrUnexpectedIntegerOverflow
	}
	if result.GasUsed, err = primitives.SafeAddGas(result.GasUsed, outcome.UsedGas); err != nil {
		return primitives.ErrUnexpectedIntegerOverflow
	}
	result.Logs = append(result.Logs, outcome.Logs...)
	result.Profile.Merge(outcome.Profile)

	if succeeded {
		account.Amount = outcome.Balance
		account.StorageUsage = outcome.StorageUsage
		result.Result = outcome.ReturnData
		result.NewReceipts = append(result.NewReceipts, ext.IntoReceipts(accountID)...)
	}
	return nil
}
