// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"math"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/ava-labs/receiptvm/primitives"
)

// TransactionCost is what converting a transaction into a receipt costs the
// signer.
type TransactionCost struct {
	// GasBurnt is burnt converting the transaction and sending the receipt.
	GasBurnt primitives.Gas
	// GasRemaining is the gas purchased for executing the receipt.
	GasRemaining primitives.Gas
	// ReceiptGasPrice is the price GasRemaining was purchased at.
	ReceiptGasPrice primitives.Balance
	// TotalCost is charged from the signer.
	TotalCost primitives.Balance
	// BurntAmount is the price of GasBurnt.
	BurntAmount primitives.Balance
}

// SafeGasPriceInflated returns ceil(gasPrice * (ratio)^exponent).
func SafeGasPriceInflated(gasPrice primitives.Balance, ratio primitives.Rational, exponent uint8) (primitives.Balance, error) {
	e := big.NewInt(int64(exponent))
	numer := new(big.Int).Exp(new(big.Int).SetUint64(ratio.Numerator), e, nil)
	denom := new(big.Int).Exp(new(big.Int).SetUint64(ratio.Denominator), e, nil)
	if denom.Sign() == 0 {
		return primitives.Balance{}, primitives.ErrIntegerOverflow
	}

	inflated := new(big.Int).Mul(numer, gasPrice.ToBig())
	inflated.Add(inflated, denom)
	inflated.Sub(inflated, big.NewInt(1))
	inflated.Quo(inflated, denom)

	z, overflow := uint256.FromBig(inflated)
	if overflow || z.BitLen() > 128 {
		return primitives.Balance{}, primitives.ErrIntegerOverflow
	}
	return *z, nil
}

// addKeyFee is the [fee] of an AddKey action.
func addKeyFee(cfg *primitives.ActionCreationConfig, action *primitives.AddKeyAction, fee func(primitives.Fee) primitives.Gas) primitives.Gas {
	permission, ok := action.AccessKey.Permission.(*primitives.FunctionCallPermission)
	if !ok {
		return fee(cfg.AddKeyCost.FullAccessCost)
	}
	var numBytes uint64
	for _, name := range permission.MethodNames {
		numBytes += uint64(len(name)) + 1
	}
	return fee(cfg.AddKeyCost.FunctionCallCost) + fee(cfg.AddKeyCost.FunctionCallCostPerByte)*numBytes
}

// TotalSendFees is the send part of the fees of [actions].
func TotalSendFees(
	config *primitives.RuntimeFeesConfig,
	senderIsReceiver bool,
	actions []primitives.Action,
	receiverID string,
) (primitives.Gas, error) {
	cfg := &config.ActionCreation
	send := func(f primitives.Fee) primitives.Gas { return f.SendFee(senderIsReceiver) }

	var (
		result primitives.Gas
		err    error
	)
	for _, action := range actions {
		var delta primitives.Gas
		switch a := action.(type) {
		case *primitives.CreateAccountAction:
			delta = send(cfg.CreateAccountCost)
		case *primitives.DeployContractAction:
			delta = send(cfg.DeployContractCost) + send(cfg.DeployContractCostPerByte)*uint64(len(a.Code))
		case *primitives.FunctionCallAction:
			numBytes := uint64(len(a.MethodName) + len(a.Args))
			delta = send(cfg.FunctionCallCost) + send(cfg.FunctionCallCostPerByte)*numBytes
		case *primitives.TransferAction:
			delta = cfg.TransferSendFee(senderIsReceiver, primitives.IsImplicitAccountID(receiverID))
		case *primitives.AddKeyAction:
			delta = addKeyFee(cfg, a, send)
		case *primitives.DeleteKeyAction:
			delta = send(cfg.DeleteKeyCost)
		case *primitives.DeleteAccountAction:
			delta = send(cfg.DeleteAccountCost)
		}
		if result, err = primitives.SafeAddGas(result, delta); err != nil {
			return 0, err
		}
	}
	return result, nil
}

// ExecFee is the gas burnt executing [action] on [receiverID].
func ExecFee(config *primitives.RuntimeFeesConfig, action primitives.Action, receiverID string) primitives.Gas {
	cfg := &config.ActionCreation
	exec := func(f primitives.Fee) primitives.Gas { return f.ExecFee() }

	switch a := action.(type) {
	case *primitives.CreateAccountAction:
		return exec(cfg.CreateAccountCost)
	case *primitives.DeployContractAction:
		return exec(cfg.DeployContractCost) + exec(cfg.DeployContractCostPerByte)*uint64(len(a.Code))
	case *primitives.FunctionCallAction:
		numBytes := uint64(len(a.MethodName) + len(a.Args))
		return exec(cfg.FunctionCallCost) + exec(cfg.FunctionCallCostPerByte)*numBytes
	case *primitives.TransferAction:
		return cfg.TransferExecFee(primitives.IsImplicitAccountID(receiverID))
	case *primitives.AddKeyAction:
		return addKeyFee(cfg, a, exec)
	case *primitives.DeleteKeyAction:
		return exec(cfg.DeleteKeyCost)
	case *primitives.DeleteAccountAction:
		return exec(cfg.DeleteAccountCost)
	default:
		return 0
	}
}

// TotalPrepaidExecFees is the execution part of the fees of [actions].
func TotalPrepaidExecFees(config *primitives.RuntimeFeesConfig, actions []primitives.Action, receiverID string) (primitives.Gas, error) {
	var (
		result primitives.Gas
		err    error
	)
	for _, action := range actions {
		if result, err = primitives.SafeAddGas(result, ExecFee(config, action, receiverID)); err != nil {
			return 0, err
		}
	}
	return result, nil
}

// TxCost prices [tx] at [gasPrice]. Any overflow is reported as
// primitives.ErrIntegerOverflow.
func TxCost(
	config *primitives.RuntimeFeesConfig,
	tx *primitives.Transaction,
	gasPrice primitives.Balance,
	senderIsReceiver bool,
) (*TransactionCost, error) {
	sendFees, err := TotalSendFees(config, senderIsReceiver, tx.Actions, tx.ReceiverID)
	if err != nil {
		return nil, err
	}
	gasBurnt, err := primitives.SafeAddGas(config.ActionReceiptCreation.SendFee(senderIsReceiver), sendFees)
	if err != nil {
		return nil, err
	}
	prepaidGas, err := primitives.TotalPrepaidGas(tx.Actions)
	if err != nil {
		return nil, err
	}

	var receiptGasPrice primitives.Balance
	if !gasPrice.IsZero() {
		var hop uint64
		if tx.SignerID != tx.ReceiverID {
			hop = 1
		}
		var maximumDepth uint64
		if minGas := config.MinReceiptWithFunctionCallGas(); minGas > 0 {
			maximumDepth = prepaidGas / minGas
		}
		exponent, err := primitives.SafeAddGas(hop, maximumDepth)
		if err != nil || exponent > math.MaxUint8 {
			return nil, primitives.ErrIntegerOverflow
		}
		receiptGasPrice, err = SafeGasPriceInflated(gasPrice, config.PessimisticGasPriceInflationRatio, uint8(exponent))
		if err != nil {
			return nil, err
		}
	}

	execFees, err := TotalPrepaidExecFees(config, tx.Actions, tx.ReceiverID)
	if err != nil {
		return nil, err
	}
	gasRemaining, err := primitives.SumGas(prepaidGas, config.ActionReceiptCreation.ExecFee(), execFees)
	if err != nil {
		return nil, err
	}

	burntAmount, err := primitives.SafeGasToBalance(gasPrice, gasBurnt)
	if err != nil {
		return nil, err
	}
	remainingGasAmount, err := primitives.SafeGasToBalance(receiptGasPrice, gasRemaining)
	if err != nil {
		return nil, err
	}
	deposit, err := primitives.TotalDeposit(tx.Actions)
	if err != nil {
		return nil, err
	}
	totalCost, err := primitives.SumBalances(burntAmount, remainingGasAmount, deposit)
	if err != nil {
		return nil, err
	}
	return &TransactionCost{
		GasBurnt:        gasBurnt,
		GasRemaining:    gasRemaining,
		ReceiptGasPrice: receiptGasPrice,
		TotalCost:       totalCost,
		BurntAmount:     burntAmount,
	}, nil
}
