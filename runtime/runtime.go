// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"math"
	"strings"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/holiman/uint256"
	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/receiptvm/host"
	"github.com/ava-labs/receiptvm/primitives"
	"github.com/ava-labs/receiptvm/state"
)

var logger = log.New("module", "runtime")

var gwei = uint256.NewInt(1_000_000_000)

// ApplyState is the block context transactions and receipts are applied in.
type ApplyState struct {
	BlockNumber    uint64
	BlockTimestamp uint64
	GasPrice       primitives.Balance
	// GasLimit bounds the gas burnt by a single Apply when HasGasLimit is
	// set. Receipts that don't fit are delayed.
	GasLimit    primitives.Gas
	HasGasLimit bool
	RandomSeed  ids.ID
	Config      *primitives.RuntimeConfig
}

func (s *ApplyState) gasLimit() primitives.Gas {
	if !s.HasGasLimit {
		return math.MaxUint64
	}
	return s.GasLimit
}

// ApplyStats are the tokens removed from circulation during an Apply.
type ApplyStats struct {
	TxBurntAmount      primitives.Balance
	SlashedBurntAmount primitives.Balance
	OtherBurntAmount   primitives.Balance
	GasDeficitAmount   primitives.Balance
}

// ApplyResult is everything an Apply produced. The state is not written
// until TrieChanges are applied to the tries.
type ApplyResult struct {
	StateRoot                ids.ID
	TrieChanges              *state.TrieChanges
	OutgoingReceipts         []*primitives.Receipt
	Outcomes                 []*primitives.ExecutionOutcomeWithID
	StateChanges             []primitives.StateChangesForKey
	Stats                    ApplyStats
	ProcessedDelayedReceipts []*primitives.Receipt
}

// ActionResult accumulates the effect of the actions of one receipt.
type ActionResult struct {
	GasBurnt                primitives.Gas
	GasBurntForFunctionCall primitives.Gas
	GasUsed                 primitives.Gas
	Result                  host.ReturnData
	// Err is set when an action failed. The receipt is then rolled back.
	Err         *primitives.ActionError
	Logs        []string
	NewReceipts []*primitives.Receipt
	Profile     host.Profile
}

func newActionResult() *ActionResult {
	return &ActionResult{Profile: host.Profile{}}
}

func (r *ActionResult) failed() bool { return r.Err != nil }

// merge folds the result of the next action into [r].
func (r *ActionResult) merge(next *ActionResult) error {
	if next.GasBurntForFunctionCall > next.GasBurnt || next.GasBurnt > next.GasUsed {
		return primitives.NewStorageInconsistentState(
			"gas burnt %d, gas burnt for function call %d, gas used %d",
			next.GasBurnt, next.GasBurntForFunctionCall, next.GasUsed,
		)
	}

	var err error
	if r.GasBurnt, err = primitives.SafeAddGas(r.GasBurnt, next.GasBurnt); err != nil {
		return primitives.ErrUnexpectedIntegerOverflow
	}
	if r.GasBurntForFunctionCall, err = primitives.SafeAddGas(r.GasBurntForFunctionCall, next.GasBurntForFunctionCall); err != nil {
		return primitives.ErrUnexpectedIntegerOverflow
	}
	if r.GasUsed, err = primitives.SafeAddGas(r.GasUsed, next.GasUsed); err != nil {
		return primitives.ErrUnexpectedIntegerOverflow
	}
	r.Profile.Merge(next.Profile)
	r.Result = next.Result
	r.Err = next.Err
	r.Logs = append(r.Logs, next.Logs...)
	if r.Result.Kind == host.ReturnReceiptIndex {
		r.Result.ReceiptIndex += uint64(len(r.NewReceipts))
	}
	if r.failed() {
		r.NewReceipts = nil
	} else {
		r.NewReceipts = append(r.NewReceipts, next.NewReceipts...)
	}
	return nil
}

// Runtime applies transactions and receipts to the state.
type Runtime struct {
	engine  host.Engine
	codes   *codeCache
	metrics *Metrics
}

// NewRuntime returns a runtime executing contracts with [engine]. Nil
// [metrics] are replaced by unregistered ones.
func NewRuntime(engine host.Engine, metrics *Metrics) *Runtime {
	if metrics == nil {
		metrics = newNoopMetrics()
	}
	return &Runtime{
		engine:  engine,
		codes:   newCodeCache(codeCacheSize),
		metrics: metrics,
	}
}

// processTransaction charges the signer of [stx] and converts it into its
// first receipt.
func (r *Runtime) processTransaction(
	u *state.TrieUpdate,
	applyState *ApplyState,
	stx *primitives.SignedTransaction,
	stats *ApplyStats,
) (*primitives.Receipt, *primitives.ExecutionOutcomeWithID, error) {
	verification, err := VerifyAndChargeTransaction(applyState.Config, u, applyState.GasPrice, stx, true)
	if err != nil {
		u.Rollback()
		r.metrics.transaction(false)
		return nil, nil, err
	}
	txHash := stx.Hash()
	if err := u.Commit(primitives.StateChangeCause{Kind: primitives.CauseTransactionProcessing, Hash: txHash}); err != nil {
		return nil, nil, err
	}

	tx := &stx.Transaction
	receipt := &primitives.Receipt{
		PredecessorID: tx.SignerID,
		ReceiverID:    tx.ReceiverID,
		ReceiptID:     primitives.CreateReceiptIDFromTransaction(txHash),
		Body: &primitives.ActionReceipt{
			SignerID:        tx.SignerID,
			SignerPublicKey: tx.PublicKey,
			GasPrice:        verification.ReceiptGasPrice,
			Actions:         tx.Actions,
		},
	}
	if stats.TxBurntAmount, err = primitives.SafeAddBalance(stats.TxBurntAmount, verification.BurntAmount); err != nil {
		return nil, nil, primitives.ErrUnexpectedIntegerOverflow
	}
	r.metrics.transaction(true)

	logger.Debug("processed transaction",
		"txID", txHash,
		"signer", tx.SignerID,
		"receiver", tx.ReceiverID,
		"receiptID", receipt.ReceiptID,
	)
	return receipt, &primitives.ExecutionOutcomeWithID{
		ID: txHash,
		Outcome: primitives.ExecutionOutcome{
			ReceiptIDs:  []ids.ID{receipt.ReceiptID},
			GasBurnt:    verification.GasBurnt,
			TokensBurnt: verification.BurntAmount,
			ExecutorID:  tx.SignerID,
			Status:      primitives.StatusSuccessReceiptID{ReceiptID: receipt.ReceiptID},
		},
	}, nil
}

func (r *Runtime) applyAction(
	action primitives.Action,
	u *state.TrieUpdate,
	applyState *ApplyState,
	account **primitives.Account,
	actorID *string,
	receipt *primitives.Receipt,
	actionReceipt *primitives.ActionReceipt,
	promiseResults []host.PromiseResult,
	actionHash ids.ID,
	actionIndex int,
) (*ActionResult, error) {
	config := applyState.Config
	accountID := receipt.ReceiverID
	actions := actionReceipt.Actions
	isRefund := receipt.IsRefund()

	result := newActionResult()
	execFee := ExecFee(&config.Fees, action, accountID)
	result.GasBurnt = execFee
	result.GasUsed = execFee

	if kind := checkAccountExistence(action, *account, accountID, len(actions) == 1, isRefund); kind != nil {
		actionFailed(result, kind)
		return result, nil
	}
	if kind := checkActorPermissions(action, *account, *actorID, accountID); kind != nil {
		actionFailed(result, kind)
		return result, nil
	}

	var err error
	switch action := action.(type) {
	case *primitives.CreateAccountAction:
		actionCreateAccount(&config.Fees, &config.AccountCreation, account, actorID, accountID, receipt.PredecessorID, result)
	case *primitives.DeployContractAction:
		err = r.actionDeployContract(u, accountID, *account, action, config)
	case *primitives.TransferAction:
		if *account == nil {
			err = actionImplicitAccountCreationTransfer(u, &config.Fees, account, actorID, accountID, action)
			break
		}
		if err = actionTransfer(*account, action); err != nil {
			break
		}
		if isRefund && actionReceipt.SignerID == accountID {
			err = tryRefundAllowance(u, accountID, actionReceipt.SignerPublicKey, action)
		}
	case *primitives.AddKeyAction:
		err = actionAddKey(&config.Fees, u, *account, result, accountID, action)
	case *primitives.DeleteKeyAction:
		err = actionDeleteKey(&config.Fees, u, *account, result, accountID, action)
	case *primitives.FunctionCallAction:
		err = r.actionFunctionCall(
			u,
			applyState,
			*account,
			receipt,
			actionReceipt,
			promiseResults,
			result,
			accountID,
			action,
			actionHash,
			actionIndex+1 == len(actions),
		)
	case *primitives.DeleteAccountAction:
		err = actionDeleteAccount(u, account, actorID, receipt, result, accountID, action)
	default:
		err = primitives.NewStorageInconsistentState("unknown action %T", action)
	}
	return result, err
}

func (r *Runtime) applyActionReceipt(
	u *state.TrieUpdate,
	applyState *ApplyState,
	receipt *primitives.Receipt,
	outgoing *[]*primitives.Receipt,
	stats *ApplyStats,
) (*primitives.ExecutionOutcomeWithID, error) {
	actionReceipt, ok := receipt.Action()
	if !ok {
		return nil, primitives.NewStorageInconsistentState("receipt %s is not an action receipt", receipt.ReceiptID)
	}
	config := applyState.Config
	accountID := receipt.ReceiverID
	isRefund := receipt.IsRefund()

	promiseResults := make([]host.PromiseResult, 0, len(actionReceipt.InputDataIDs))
	for _, dataID := range actionReceipt.InputDataIDs {
		data, err := state.GetReceivedData(u, accountID, dataID)
		if err != nil {
			return nil, err
		}
		if data == nil {
			return nil, primitives.NewStorageInconsistentState("received data should be in the state")
		}
		if err := state.RemoveReceivedData(u, accountID, dataID); err != nil {
			return nil, err
		}
		if data.HasData {
			promiseResults = append(promiseResults, host.PromiseResult{Kind: host.PromiseSuccessful, Data: data.Data})
		} else {
			promiseResults = append(promiseResults, host.PromiseResult{Kind: host.PromiseFailed})
		}
	}
	if err := u.Commit(primitives.StateChangeCause{
		Kind: primitives.CauseActionReceiptProcessingStarted,
		Hash: receipt.ReceiptID,
	}); err != nil {
		return nil, err
	}

	account, err := state.GetAccount(u, accountID)
	if err != nil {
		return nil, err
	}
	actorID := receipt.PredecessorID
	result := newActionResult()
	execFee := config.Fees.ActionReceiptCreation.ExecFee()
	result.GasBurnt = execFee
	result.GasUsed = execFee

	for i, action := range actionReceipt.Actions {
		actionHash := primitives.CreateActionHash(receipt.ReceiptID, uint64(i))
		next, err := r.applyAction(
			action,
			u,
			applyState,
			&account,
			&actorID,
			receipt,
			actionReceipt,
			promiseResults,
			actionHash,
			i,
		)
		if err != nil {
			return nil, err
		}
		if !next.failed() {
			for _, newReceipt := range next.NewReceipts {
				if verr := ValidateReceipt(&config.Wasm.Limits, newReceipt); verr != nil {
					actionFailed(next, primitives.NewReceiptValidationError{Err: verr})
					break
				}
			}
		}
		if err := result.merge(next); err != nil {
			return nil, err
		}
		if result.failed() {
			result.Err.Index = uint64(i)
			result.Err.HasIndex = true
			break
		}
	}

	if !result.failed() && account != nil {
		if err := state.SetAccount(u, accountID, account); err != nil {
			return nil, err
		}
	}

	var deficit primitives.Balance
	if isRefund {
		if result.failed() {
			deposit, err := primitives.TotalDeposit(actionReceipt.Actions)
			if err != nil {
				return nil, primitives.ErrUnexpectedIntegerOverflow
			}
			if stats.OtherBurntAmount, err = primitives.SafeAddBalance(stats.OtherBurntAmount, deposit); err != nil {
				return nil, primitives.ErrUnexpectedIntegerOverflow
			}
		}
	} else {
		deficit, err = generateRefundReceipts(applyState.GasPrice, receipt, actionReceipt, result, &config.Fees)
		if err != nil {
			return nil, err
		}
	}
	if stats.GasDeficitAmount, err = primitives.SafeAddBalance(stats.GasDeficitAmount, deficit); err != nil {
		return nil, primitives.ErrUnexpectedIntegerOverflow
	}

	if result.failed() {
		u.Rollback()
	} else if err := u.Commit(primitives.StateChangeCause{
		Kind: primitives.CauseReceiptProcessing,
		Hash: receipt.ReceiptID,
	}); err != nil {
		return nil, err
	}

	var gasBurnt primitives.Gas
	if !isRefund {
		gasBurnt = result.GasBurnt
	}
	burntCost, err := primitives.SafeGasToBalance(applyState.GasPrice, gasBurnt)
	if err != nil {
		return nil, primitives.ErrUnexpectedIntegerOverflow
	}
	txBurntAmount, err := primitives.SafeSubBalance(burntCost, deficit)
	if err != nil {
		return nil, primitives.ErrUnexpectedIntegerOverflow
	}
	tokensBurnt := txBurntAmount

	reward := config.Fees.BurntGasReward
	rewardGas := result.GasBurntForFunctionCall * reward.Numerator / reward.Denominator
	rewardCost, err := primitives.SafeGasToBalance(applyState.GasPrice, rewardGas)
	if err != nil {
		return nil, primitives.ErrUnexpectedIntegerOverflow
	}
	receiverReward := primitives.SaturatingSubBalance(rewardCost, deficit)
	if !receiverReward.IsZero() {
		account, err := state.GetAccount(u, accountID)
		if err != nil {
			return nil, err
		}
		if account != nil {
			if txBurntAmount, err = primitives.SafeSubBalance(txBurntAmount, receiverReward); err != nil {
				return nil, primitives.ErrUnexpectedIntegerOverflow
			}
			if account.Amount, err = primitives.SafeAddBalance(account.Amount, receiverReward); err != nil {
				return nil, primitives.ErrUnexpectedIntegerOverflow
			}
			if err := state.SetAccount(u, accountID, account); err != nil {
				return nil, err
			}
			if err := u.Commit(primitives.StateChangeCause{
				Kind: primitives.CauseActionReceiptGasReward,
				Hash: receipt.ReceiptID,
			}); err != nil {
				return nil, err
			}
		}
	}
	if stats.TxBurntAmount, err = primitives.SafeAddBalance(stats.TxBurntAmount, txBurntAmount); err != nil {
		return nil, primitives.ErrUnexpectedIntegerOverflow
	}

	if len(actionReceipt.OutputDataReceivers) != 0 {
		if !result.failed() && result.Result.Kind == host.ReturnReceiptIndex {
			index := result.Result.ReceiptIndex
			if index >= uint64(len(result.NewReceipts)) {
				return nil, primitives.NewStorageInconsistentState("the receipt for receipt index %d should exist", index)
			}
			newActionReceipt, ok := result.NewReceipts[index].Action()
			if !ok {
				return nil, primitives.NewStorageInconsistentState("receipt index %d should point to an action receipt", index)
			}
			newActionReceipt.OutputDataReceivers = append(newActionReceipt.OutputDataReceivers, actionReceipt.OutputDataReceivers...)
		} else {
			var (
				data    []byte
				hasData bool
			)
			if !result.failed() {
				hasData = true
				data = []byte{}
				if result.Result.Kind == host.ReturnValue {
					data = result.Result.Value
				}
			}
			for _, receiver := range actionReceipt.OutputDataReceivers {
				result.NewReceipts = append(result.NewReceipts, &primitives.Receipt{
					PredecessorID: accountID,
					ReceiverID:    receiver.ReceiverID,
					Body: &primitives.DataReceipt{
						DataID:  receiver.DataID,
						Data:    copyBytes(data),
						HasData: hasData,
					},
				})
			}
		}
	}

	receiptIDs := []ids.ID{}
	for i, newReceipt := range result.NewReceipts {
		newReceipt.ReceiptID = primitives.CreateReceiptIDFromReceipt(receipt.ReceiptID, uint64(i))
		if _, ok := newReceipt.Action(); ok {
			receiptIDs = append(receiptIDs, newReceipt.ReceiptID)
		}
		*outgoing = append(*outgoing, newReceipt)
	}

	var status primitives.ExecutionStatus
	switch {
	case result.failed():
		status = primitives.StatusFailure{Error: result.Err}
	case result.Result.Kind == host.ReturnReceiptIndex:
		status = primitives.StatusSuccessReceiptID{
			ReceiptID: primitives.CreateReceiptIDFromReceipt(receipt.ReceiptID, result.Result.ReceiptIndex),
		}
	case result.Result.Kind == host.ReturnValue:
		status = primitives.StatusSuccessValue{Value: result.Result.Value}
	default:
		status = primitives.StatusSuccessValue{Value: []byte{}}
	}

	if len(result.Logs) != 0 {
		logger.Debug(strings.Join(result.Logs, "\n"), "receiptID", receipt.ReceiptID)
	}
	r.metrics.gasBurnt.Add(float64(result.GasBurnt))
	return &primitives.ExecutionOutcomeWithID{
		ID: receipt.ReceiptID,
		Outcome: primitives.ExecutionOutcome{
			Logs:        result.Logs,
			ReceiptIDs:  receiptIDs,
			GasBurnt:    result.GasBurnt,
			TokensBurnt: tokensBurnt,
			ExecutorID:  accountID,
			Status:      status,
		},
	}, nil
}

// generateRefundReceipts refunds the unspent deposit and gas of
// [actionReceipt] and returns the gas deficit the refund couldn't cover.
func generateRefundReceipts(
	currentGasPrice primitives.Balance,
	receipt *primitives.Receipt,
	actionReceipt *primitives.ActionReceipt,
	result *ActionResult,
	config *primitives.RuntimeFeesConfig,
) (primitives.Balance, error) {
	totalDeposit, err := primitives.TotalDeposit(actionReceipt.Actions)
	if err != nil {
		return primitives.Balance{}, primitives.ErrUnexpectedIntegerOverflow
	}
	prepaidGas, err := primitives.TotalPrepaidGas(actionReceipt.Actions)
	if err != nil {
		return primitives.Balance{}, primitives.ErrUnexpectedIntegerOverflow
	}
	prepaidExecGas, err := TotalPrepaidExecFees(config, actionReceipt.Actions, receipt.ReceiverID)
	if err != nil {
		return primitives.Balance{}, primitives.ErrUnexpectedIntegerOverflow
	}
	totalGas, err := primitives.SumGas(prepaidGas, prepaidExecGas, config.ActionReceiptCreation.ExecFee())
	if err != nil {
		return primitives.Balance{}, primitives.ErrUnexpectedIntegerOverflow
	}

	var (
		depositRefund primitives.Balance
		spent         = result.GasUsed
	)
	if result.failed() {
		depositRefund = totalDeposit
		spent = result.GasBurnt
	}
	gasRefund, err := primitives.SafeSubGas(totalGas, spent)
	if err != nil {
		return primitives.Balance{}, primitives.ErrUnexpectedIntegerOverflow
	}
	gasBalanceRefund, err := primitives.SafeGasToBalance(actionReceipt.GasPrice, gasRefund)
	if err != nil {
		return primitives.Balance{}, primitives.ErrUnexpectedIntegerOverflow
	}

	var deficit primitives.Balance
	if currentGasPrice.Gt(&actionReceipt.GasPrice) {
		priceDiff, _ := primitives.SafeSubBalance(currentGasPrice, actionReceipt.GasPrice)
		if deficit, err = primitives.SafeGasToBalance(priceDiff, result.GasBurnt); err != nil {
			return primitives.Balance{}, primitives.ErrUnexpectedIntegerOverflow
		}
		if !gasBalanceRefund.Lt(&deficit) {
			gasBalanceRefund, _ = primitives.SafeSubBalance(gasBalanceRefund, deficit)
			deficit = primitives.Balance{}
		} else {
			deficit, _ = primitives.SafeSubBalance(deficit, gasBalanceRefund)
			gasBalanceRefund = primitives.Balance{}
		}
	} else {
		priceDiff, _ := primitives.SafeSubBalance(actionReceipt.GasPrice, currentGasPrice)
		surplus, err := primitives.SafeGasToBalance(priceDiff, result.GasBurnt)
		if err != nil {
			return primitives.Balance{}, primitives.ErrUnexpectedIntegerOverflow
		}
		if gasBalanceRefund, err = primitives.SafeAddBalance(gasBalanceRefund, surplus); err != nil {
			return primitives.Balance{}, primitives.ErrUnexpectedIntegerOverflow
		}
	}

	if !depositRefund.IsZero() {
		result.NewReceipts = append(result.NewReceipts, primitives.NewBalanceRefund(receipt.PredecessorID, depositRefund))
	}
	if !gasBalanceRefund.IsZero() {
		result.NewReceipts = append(result.NewReceipts, primitives.NewGasRefund(
			actionReceipt.SignerID,
			gasBalanceRefund,
			actionReceipt.SignerPublicKey,
		))
	}
	return deficit, nil
}

// processReceipt either executes [receipt] or, for an action receipt
// waiting on input data, postpones it. A nil outcome means nothing was
// executed.
func (r *Runtime) processReceipt(
	u *state.TrieUpdate,
	applyState *ApplyState,
	receipt *primitives.Receipt,
	outgoing *[]*primitives.Receipt,
	stats *ApplyStats,
) (*primitives.ExecutionOutcomeWithID, error) {
	accountID := receipt.ReceiverID

	switch body := receipt.Body.(type) {
	case *primitives.DataReceipt:
		received := &primitives.ReceivedData{Data: body.Data, HasData: body.HasData}
		if err := state.SetReceivedData(u, accountID, body.DataID, received); err != nil {
			return nil, err
		}
		receiptID, ok, err := state.GetPostponedReceiptID(u, accountID, body.DataID)
		if err != nil {
			return nil, err
		}
		if ok {
			if err := state.RemovePostponedReceiptID(u, accountID, body.DataID); err != nil {
				return nil, err
			}
			pending, ok, err := state.GetPendingDataCount(u, accountID, receiptID)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, primitives.NewStorageInconsistentState("pending data count should be in the state")
			}
			switch pending {
			case 0:
				return nil, primitives.NewStorageInconsistentState("pending data count is 0, but there is a new DataReceipt")
			case 1:
				if err := state.RemovePendingDataCount(u, accountID, receiptID); err != nil {
					return nil, err
				}
				ready, err := state.GetPostponedReceipt(u, accountID, receiptID)
				if err != nil {
					return nil, err
				}
				if ready == nil {
					return nil, primitives.NewStorageInconsistentState("pending receipt should be in the state")
				}
				if err := state.RemovePostponedReceipt(u, accountID, receiptID); err != nil {
					return nil, err
				}
				logger.Debug("postponed receipt is ready", "receiptID", receiptID, "receiver", accountID)
				r.metrics.receipt("processed")
				return r.applyActionReceipt(u, applyState, ready, outgoing, stats)
			default:
				if err := state.SetPendingDataCount(u, accountID, receiptID, pending-1); err != nil {
					return nil, err
				}
			}
		}
	case *primitives.ActionReceipt:
		var pending uint32
		for _, dataID := range body.InputDataIDs {
			data, err := state.GetReceivedData(u, accountID, dataID)
			if err != nil {
				return nil, err
			}
			if data != nil {
				continue
			}
			pending++
			if err := state.SetPostponedReceiptID(u, accountID, dataID, receipt.ReceiptID); err != nil {
				return nil, err
			}
		}
		if pending == 0 {
			r.metrics.receipt("processed")
			return r.applyActionReceipt(u, applyState, receipt, outgoing, stats)
		}
		if err := state.SetPendingDataCount(u, accountID, receipt.ReceiptID, pending); err != nil {
			return nil, err
		}
		if err := state.SetPostponedReceipt(u, receipt); err != nil {
			return nil, err
		}
		logger.Debug("postponed receipt", "receiptID", receipt.ReceiptID, "receiver", accountID, "pending", pending)
		r.metrics.receipt("postponed")
	default:
		return nil, primitives.NewStorageInconsistentState("unknown receipt body %T", receipt.Body)
	}

	if err := u.Commit(primitives.StateChangeCause{
		Kind: primitives.CausePostponedReceipt,
		Hash: receipt.ReceiptID,
	}); err != nil {
		return nil, err
	}
	return nil, nil
}

// Apply applies [transactions] and [incoming] receipts on top of [root].
// Local receipts go first, then the delayed queue, then [incoming], as long
// as the gas limit allows. The rest is delayed.
//
// Any returned error is fatal for the block. The state of [tries] is left
// untouched either way.
func (r *Runtime) Apply(
	tries *state.Tries,
	root ids.ID,
	applyState *ApplyState,
	incoming []*primitives.Receipt,
	transactions []*primitives.SignedTransaction,
) (*ApplyResult, error) {
	start := time.Now()
	result, err := r.apply(tries, root, applyState, incoming, transactions)
	if err != nil {
		logger.Error("couldn't apply block",
			"height", applyState.BlockNumber,
			"root", root,
			"err", err,
		)
		return nil, err
	}
	r.metrics.applyDuration.Observe(time.Since(start).Seconds())
	return result, nil
}

func (r *Runtime) apply(
	tries *state.Tries,
	root ids.ID,
	applyState *ApplyState,
	incoming []*primitives.Receipt,
	transactions []*primitives.SignedTransaction,
) (*ApplyResult, error) {
	initial, err := tries.NewTrieUpdate(root)
	if err != nil {
		return nil, primitives.NewStorageInternalError(err)
	}
	u, err := tries.NewTrieUpdate(root)
	if err != nil {
		return nil, primitives.NewStorageInternalError(err)
	}

	var (
		stats         ApplyStats
		outgoing      []*primitives.Receipt
		local         []*primitives.Receipt
		outcomes      []*primitives.ExecutionOutcomeWithID
		processed     []*primitives.Receipt
		totalGasBurnt primitives.Gas
		limits        = &applyState.Config.Wasm.Limits
		gasLimit      = applyState.gasLimit()
	)

	for _, stx := range transactions {
		receipt, outcome, err := r.processTransaction(u, applyState, stx, &stats)
		if err != nil {
			return nil, err
		}
		if receipt.ReceiverID == stx.Transaction.SignerID {
			local = append(local, receipt)
		} else {
			outgoing = append(outgoing, receipt)
		}
		if totalGasBurnt, err = primitives.SafeAddGas(totalGasBurnt, outcome.Outcome.GasBurnt); err != nil {
			return nil, primitives.ErrUnexpectedIntegerOverflow
		}
		outcomes = append(outcomes, outcome)
	}

	indices, err := state.GetDelayedReceiptIndices(u)
	if err != nil {
		return nil, err
	}
	initialIndices := indices

	process := func(receipt *primitives.Receipt) error {
		outcome, err := r.processReceipt(u, applyState, receipt, &outgoing, &stats)
		if err != nil {
			return err
		}
		if outcome == nil {
			return nil
		}
		if totalGasBurnt, err = primitives.SafeAddGas(totalGasBurnt, outcome.Outcome.GasBurnt); err != nil {
			return primitives.ErrUnexpectedIntegerOverflow
		}
		outcomes = append(outcomes, outcome)
		return nil
	}
	delay := func(receipt *primitives.Receipt) error {
		logger.Debug("delaying receipt",
			"receiptID", receipt.ReceiptID,
			"receiver", receipt.ReceiverID,
			"index", indices.NextAvailableIndex,
		)
		r.metrics.receipt("delayed")
		return DelayReceipt(u, &indices, receipt)
	}

	for _, receipt := range local {
		if totalGasBurnt < gasLimit {
			err = process(receipt)
		} else {
			err = delay(receipt)
		}
		if err != nil {
			return nil, err
		}
	}

	for indices.FirstIndex < indices.NextAvailableIndex && totalGasBurnt < gasLimit {
		receipt, err := state.GetDelayedReceipt(u, indices.FirstIndex)
		if err != nil {
			return nil, err
		}
		if receipt == nil {
			return nil, primitives.NewStorageInconsistentState("Delayed receipt #%d should be in the state", indices.FirstIndex)
		}
		if verr := ValidateReceipt(limits, receipt); verr != nil {
			return nil, primitives.NewStorageInconsistentState(
				"Delayed receipt #%d in the state is invalid: %s", indices.FirstIndex, verr,
			)
		}
		if err := state.RemoveDelayedReceipt(u, indices.FirstIndex); err != nil {
			return nil, err
		}
		indices.FirstIndex++
		if err := process(receipt); err != nil {
			return nil, err
		}
		processed = append(processed, receipt)
	}

	for _, receipt := range incoming {
		if verr := ValidateReceipt(limits, receipt); verr != nil {
			return nil, &primitives.ReceiptValidationFailure{Err: verr}
		}
		if totalGasBurnt < gasLimit {
			err = process(receipt)
		} else {
			err = delay(receipt)
		}
		if err != nil {
			return nil, err
		}
	}

	if indices != initialIndices {
		if err := state.SetDelayedReceiptIndices(u, indices); err != nil {
			return nil, err
		}
	}

	if err := CheckBalance(&applyState.Config.Fees, initial, u, incoming, transactions, outgoing, &stats); err != nil {
		return nil, err
	}

	if err := u.Commit(primitives.StateChangeCause{Kind: primitives.CauseUpdatedDelayedReceipts}); err != nil {
		return nil, err
	}
	changes, stateChanges, err := u.Finalize()
	if err != nil {
		return nil, primitives.NewStorageInternalError(err)
	}

	r.metrics.delayedQueueLen.Set(float64(indices.Len()))
	var burntGwei uint256.Int
	burntGwei.Div(&stats.TxBurntAmount, gwei)
	r.metrics.tokensBurntInGwei.Add(float64(burntGwei.Uint64()))

	logger.Info("applied block",
		"height", applyState.BlockNumber,
		"root", changes.NewRoot,
		"gasBurnt", totalGasBurnt,
		"outgoing", len(outgoing),
		"delayed", indices.Len(),
	)
	return &ApplyResult{
		StateRoot:                changes.NewRoot,
		TrieChanges:              changes,
		OutgoingReceipts:         outgoing,
		Outcomes:                 outcomes,
		StateChanges:             stateChanges,
		Stats:                    stats,
		ProcessedDelayedReceipts: processed,
	}, nil
}

// DelayReceipt appends [receipt] to the delayed queue. The caller persists
// [indices].
func DelayReceipt(u *state.TrieUpdate, indices *primitives.DelayedReceiptIndices, receipt *primitives.Receipt) error {
	if err := state.SetDelayedReceipt(u, indices.NextAvailableIndex, receipt); err != nil {
		return err
	}
	if indices.NextAvailableIndex == math.MaxUint64 {
		return primitives.NewStorageInconsistentState("Next available index for delayed receipt exceeded the integer limit")
	}
	indices.NextAvailableIndex++
	return nil
}
