// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package primitives

// Action is a single operation carried by a transaction or action receipt.
type Action interface {
	// AttachedDeposit is the amount of tokens the action moves to the
	// receiver.
	AttachedDeposit() Balance
	// AttachedGas is the gas prepaid for contract execution.
	AttachedGas() Gas
	// Name is a short label used in logs.
	Name() string
}

var (
	_ Action = &CreateAccountAction{}
	_ Action = &DeployContractAction{}
	_ Action = &FunctionCallAction{}
	_ Action = &TransferAction{}
	_ Action = &AddKeyAction{}
	_ Action = &DeleteKeyAction{}
	_ Action = &DeleteAccountAction{}
)

type CreateAccountAction struct{}

func (*CreateAccountAction) AttachedDeposit() Balance { return Balance{} }
func (*CreateAccountAction) AttachedGas() Gas         { return 0 }
func (*CreateAccountAction) Name() string             { return "CreateAccount" }

type DeployContractAction struct {
	Code []byte `serialize:"true"`
}

func (*DeployContractAction) AttachedDeposit() Balance { return Balance{} }
func (*DeployContractAction) AttachedGas() Gas         { return 0 }
func (*DeployContractAction) Name() string             { return "DeployContract" }

type FunctionCallAction struct {
	MethodName string  `serialize:"true"`
	Args       []byte  `serialize:"true"`
	Gas        Gas     `serialize:"true"`
	Deposit    Balance `serialize:"true"`
}

func (a *FunctionCallAction) AttachedDeposit() Balance { return a.Deposit }
func (a *FunctionCallAction) AttachedGas() Gas         { return a.Gas }
func (*FunctionCallAction) Name() string               { return "FunctionCall" }

type TransferAction struct {
	Deposit Balance `serialize:"true"`
}

func (a *TransferAction) AttachedDeposit() Balance { return a.Deposit }
func (*TransferAction) AttachedGas() Gas           { return 0 }
func (*TransferAction) Name() string               { return "Transfer" }

type AddKeyAction struct {
	PublicKey []byte    `serialize:"true"`
	AccessKey AccessKey `serialize:"true"`
}

func (*AddKeyAction) AttachedDeposit() Balance { return Balance{} }
func (*AddKeyAction) AttachedGas() Gas         { return 0 }
func (*AddKeyAction) Name() string             { return "AddKey" }

type DeleteKeyAction struct {
	PublicKey []byte `serialize:"true"`
}

func (*DeleteKeyAction) AttachedDeposit() Balance { return Balance{} }
func (*DeleteKeyAction) AttachedGas() Gas         { return 0 }
func (*DeleteKeyAction) Name() string             { return "DeleteKey" }

type DeleteAccountAction struct {
	BeneficiaryID string `serialize:"true"`
}

func (*DeleteAccountAction) AttachedDeposit() Balance { return Balance{} }
func (*DeleteAccountAction) AttachedGas() Gas         { return 0 }
func (*DeleteAccountAction) Name() string             { return "DeleteAccount" }

// TotalDeposit sums the deposits attached to [actions].
func TotalDeposit(actions []Action) (Balance, error) {
	var (
		total Balance
		err   error
	)
	for _, action := range actions {
		total, err = SafeAddBalance(total, action.AttachedDeposit())
		if err != nil {
			return Balance{}, err
		}
	}
	return total, nil
}

// TotalPrepaidGas sums the gas attached to [actions].
func TotalPrepaidGas(actions []Action) (Gas, error) {
	var (
		total Gas
		err   error
	)
	for _, action := range actions {
		total, err = SafeAddGas(total, action.AttachedGas())
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
