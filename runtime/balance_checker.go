// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/receiptvm/primitives"
	"github.com/ava-labs/receiptvm/state"
)

type postponedKey struct {
	accountID string
	receiptID ids.ID
}

// CheckBalance verifies that no tokens were created or lost between
// [initial] and [final]. Every term of the equation is reported in a
// *primitives.BalanceMismatchError when it doesn't hold.
func CheckBalance(
	config *primitives.RuntimeFeesConfig,
	initial *state.TrieUpdate,
	final *state.TrieUpdate,
	incomingReceipts []*primitives.Receipt,
	transactions []*primitives.SignedTransaction,
	outgoingReceipts []*primitives.Receipt,
	stats *ApplyStats,
) error {
	initialIndices, err := state.GetDelayedReceiptIndices(initial)
	if err != nil {
		return err
	}
	finalIndices, err := state.GetDelayedReceiptIndices(final)
	if err != nil {
		return err
	}
	processedDelayed, err := delayedReceipts(initial, initialIndices.FirstIndex, finalIndices.FirstIndex)
	if err != nil {
		return err
	}
	newDelayed, err := delayedReceipts(final, initialIndices.NextAvailableIndex, finalIndices.NextAvailableIndex)
	if err != nil {
		return err
	}

	var (
		accountIDs []string
		seen       = make(map[string]struct{})
	)
	addAccount := func(id string) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			accountIDs = append(accountIDs, id)
		}
	}
	for _, tx := range transactions {
		addAccount(tx.Transaction.SignerID)
	}
	for _, r := range incomingReceipts {
		addAccount(r.ReceiverID)
	}
	for _, r := range processedDelayed {
		addAccount(r.ReceiverID)
	}

	initialAccounts, err := totalAccountsBalance(initial, accountIDs)
	if err != nil {
		return err
	}
	finalAccounts, err := totalAccountsBalance(final, accountIDs)
	if err != nil {
		return err
	}

	incoming, err := receiptsCost(config, incomingReceipts)
	if err != nil {
		return err
	}
	outgoing, err := receiptsCost(config, outgoingReceipts)
	if err != nil {
		return err
	}
	processedDelayedBalance, err := receiptsCost(config, processedDelayed)
	if err != nil {
		return err
	}
	newDelayedBalance, err := receiptsCost(config, newDelayed)
	if err != nil {
		return err
	}

	var postponed []postponedKey
	seenPostponed := make(map[postponedKey]struct{})
	for _, r := range append(append([]*primitives.Receipt{}, incomingReceipts...), processedDelayed...) {
		key := postponedKey{accountID: r.ReceiverID}
		switch body := r.Body.(type) {
		case *primitives.ActionReceipt:
			key.receiptID = r.ReceiptID
		case *primitives.DataReceipt:
			receiptID, ok, err := state.GetPostponedReceiptID(initial, r.ReceiverID, body.DataID)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			key.receiptID = receiptID
		default:
			continue
		}
		if _, ok := seenPostponed[key]; !ok {
			seenPostponed[key] = struct{}{}
			postponed = append(postponed, key)
		}
	}
	initialPostponed, err := totalPostponedReceiptsCost(config, initial, postponed)
	if err != nil {
		return err
	}
	finalPostponed, err := totalPostponedReceiptsCost(config, final, postponed)
	if err != nil {
		return err
	}

	initialBalance, err := primitives.SumBalances(initialAccounts, incoming, processedDelayedBalance, initialPostponed)
	if err != nil {
		return primitives.ErrUnexpectedIntegerOverflow
	}
	finalBalance, err := primitives.SumBalances(
		finalAccounts,
		outgoing,
		newDelayedBalance,
		finalPostponed,
		stats.TxBurntAmount,
		stats.SlashedBurntAmount,
		stats.OtherBurntAmount,
	)
	if err != nil {
		return primitives.ErrUnexpectedIntegerOverflow
	}
	if initialBalance.Eq(&finalBalance) {
		return nil
	}
	return &primitives.BalanceMismatchError{
		InitialAccountsBalance:          initialAccounts,
		IncomingReceiptsBalance:         incoming,
		ProcessedDelayedReceiptsBalance: processedDelayedBalance,
		InitialPostponedReceiptsBalance: initialPostponed,
		FinalAccountsBalance:            finalAccounts,
		OutgoingReceiptsBalance:         outgoing,
		NewDelayedReceiptsBalance:       newDelayedBalance,
		FinalPostponedReceiptsBalance:   finalPostponed,
		TxBurntAmount:                   stats.TxBurntAmount,
		SlashedBurntAmount:              stats.SlashedBurntAmount,
		OtherBurntAmount:                stats.OtherBurntAmount,
	}
}

func delayedReceipts(u *state.TrieUpdate, from, to uint64) ([]*primitives.Receipt, error) {
	var receipts []*primitives.Receipt
	for index := from; index < to; index++ {
		receipt, err := state.GetDelayedReceipt(u, index)
		if err != nil {
			return nil, err
		}
		if receipt == nil {
			return nil, primitives.NewStorageInconsistentState("Delayed receipt #%d should be in the state", index)
		}
		receipts = append(receipts, receipt)
	}
	return receipts, nil
}

func totalAccountsBalance(u *state.TrieUpdate, accountIDs []string) (primitives.Balance, error) {
	var total primitives.Balance
	for _, id := range accountIDs {
		account, err := state.GetAccount(u, id)
		if err != nil {
			return primitives.Balance{}, err
		}
		if account == nil {
			continue
		}
		balance, err := account.TotalBalance()
		if err != nil {
			return primitives.Balance{}, primitives.ErrUnexpectedIntegerOverflow
		}
		if total, err = primitives.SafeAddBalance(total, balance); err != nil {
			return primitives.Balance{}, primitives.ErrUnexpectedIntegerOverflow
		}
	}
	return total, nil
}

// receiptCost is the value a receipt carries: its deposits plus, unless it
// is a refund, the gas it was prepaid with.
func receiptCost(config *primitives.RuntimeFeesConfig, receipt *primitives.Receipt) (primitives.Balance, error) {
	action, ok := receipt.Action()
	if !ok {
		return primitives.Balance{}, nil
	}
	total, err := primitives.TotalDeposit(action.Actions)
	if err != nil {
		return primitives.Balance{}, err
	}
	if receipt.IsRefund() {
		return total, nil
	}
	execFees, err := TotalPrepaidExecFees(config, action.Actions, receipt.ReceiverID)
	if err != nil {
		return primitives.Balance{}, err
	}
	prepaidGas, err := primitives.TotalPrepaidGas(action.Actions)
	if err != nil {
		return primitives.Balance{}, err
	}
	totalGas, err := primitives.SumGas(config.ActionReceiptCreation.ExecFee(), execFees, prepaidGas)
	if err != nil {
		return primitives.Balance{}, err
	}
	gasCost, err := primitives.SafeGasToBalance(action.GasPrice, totalGas)
	if err != nil {
		return primitives.Balance{}, err
	}
	return primitives.SafeAddBalance(total, gasCost)
}

func receiptsCost(config *primitives.RuntimeFeesConfig, receipts []*primitives.Receipt) (primitives.Balance, error) {
	var total primitives.Balance
	for _, receipt := range receipts {
		cost, err := receiptCost(config, receipt)
		if err != nil {
			return primitives.Balance{}, primitives.ErrUnexpectedIntegerOverflow
		}
		if total, err = primitives.SafeAddBalance(total, cost); err != nil {
			return primitives.Balance{}, primitives.ErrUnexpectedIntegerOverflow
		}
	}
	return total, nil
}

func totalPostponedReceiptsCost(
	config *primitives.RuntimeFeesConfig,
	u *state.TrieUpdate,
	keys []postponedKey,
) (primitives.Balance, error) {
	var total primitives.Balance
	for _, key := range keys {
		receipt, err := state.GetPostponedReceipt(u, key.accountID, key.receiptID)
		if err != nil {
			return primitives.Balance{}, err
		}
		if receipt == nil {
			continue
		}
		cost, err := receiptCost(config, receipt)
		if err != nil {
			return primitives.Balance{}, primitives.ErrUnexpectedIntegerOverflow
		}
		if total, err = primitives.SafeAddBalance(total, cost); err != nil {
			return primitives.Balance{}, primitives.ErrUnexpectedIntegerOverflow
		}
	}
	return total, nil
}
