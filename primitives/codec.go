// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package primitives

import (
	"github.com/ava-labs/avalanchego/codec"
	"github.com/ava-labs/avalanchego/codec/linearcodec"
	"github.com/ava-labs/avalanchego/utils/units"
	"github.com/ava-labs/avalanchego/utils/wrappers"
)

const (
	// CodecVersion is the current default codec version
	CodecVersion = 0

	maxCodecSize = 16 * units.MiB
)

// Codecs do serialization and deserialization
var (
	Codec codec.Manager
)

func init() {
	c := linearcodec.NewDefault()
	Codec = codec.NewManager(maxCodecSize)

	errs := wrappers.Errs{}

	// Actions
	errs.Add(
		c.RegisterType(&CreateAccountAction{}),
		c.RegisterType(&DeployContractAction{}),
		c.RegisterType(&FunctionCallAction{}),
		c.RegisterType(&TransferAction{}),
		c.RegisterType(&AddKeyAction{}),
		c.RegisterType(&DeleteKeyAction{}),
		c.RegisterType(&DeleteAccountAction{}),
	)

	// Receipts and access keys
	errs.Add(
		c.RegisterType(&ActionReceipt{}),
		c.RegisterType(&DataReceipt{}),
		c.RegisterType(&FullAccessPermission{}),
		c.RegisterType(&FunctionCallPermission{}),
	)

	// Statuses
	errs.Add(
		c.RegisterType(StatusUnknown{}),
		c.RegisterType(StatusFailure{}),
		c.RegisterType(StatusSuccessValue{}),
		c.RegisterType(StatusSuccessReceiptID{}),
	)

	// Invalid transaction errors
	errs.Add(
		c.RegisterType(InvalidSignerIDError{}),
		c.RegisterType(InvalidReceiverIDError{}),
		c.RegisterType(SignerDoesNotExistError{}),
		c.RegisterType(InvalidSignatureError{}),
		c.RegisterType(InvalidNonceError{}),
		c.RegisterType(NotEnoughBalanceError{}),
		c.RegisterType(CostOverflowError{}),
		c.RegisterType(TransactionSizeExceededError{}),
		c.RegisterType(InvalidAccessKeyError{}),
	)

	// Receipt and actions validation errors
	errs.Add(
		c.RegisterType(InvalidPredecessorIDError{}),
		c.RegisterType(InvalidDataReceiverIDError{}),
		c.RegisterType(ReturnedValueLengthExceededError{}),
		c.RegisterType(NumberInputDataDependenciesExceededError{}),
		c.RegisterType(DeleteActionMustBeFinalError{}),
		c.RegisterType(TotalPrepaidGasExceededError{}),
		c.RegisterType(TotalNumberOfActionsExceededError{}),
		c.RegisterType(AddKeyMethodNamesNumberOfBytesExceededError{}),
		c.RegisterType(AddKeyMethodNameLengthExceededError{}),
		c.RegisterType(IntegerOverflowError{}),
		c.RegisterType(ContractSizeExceededError{}),
		c.RegisterType(FunctionCallMethodNameLengthExceededError{}),
		c.RegisterType(FunctionCallArgumentsLengthExceededError{}),
		c.RegisterType(FunctionCallZeroAttachedGasError{}),
	)

	// Action errors
	errs.Add(
		c.RegisterType(&ActionError{}),
		c.RegisterType(AccountAlreadyExistsError{}),
		c.RegisterType(AccountDoesNotExistError{}),
		c.RegisterType(CreateAccountOnlyByRegistrarError{}),
		c.RegisterType(CreateAccountNotAllowedError{}),
		c.RegisterType(ActorNoPermissionError{}),
		c.RegisterType(DeleteKeyDoesNotExistError{}),
		c.RegisterType(AddKeyAlreadyExistsError{}),
		c.RegisterType(DeleteAccountStakingError{}),
		c.RegisterType(DeleteAccountWithLargeStateError{}),
		c.RegisterType(OnlyImplicitAccountCreationAllowedError{}),
		c.RegisterType(NewReceiptValidationError{}),
		c.RegisterType(FunctionCallError{}),
	)

	// State records
	errs.Add(
		c.RegisterType(&AccountRecord{}),
		c.RegisterType(&DataRecord{}),
		c.RegisterType(&ContractRecord{}),
		c.RegisterType(&AccessKeyRecord{}),
		c.RegisterType(&PostponedReceiptRecord{}),
		c.RegisterType(&ReceivedDataRecord{}),
		c.RegisterType(&DelayedReceiptRecord{}),
	)

	errs.Add(
		Codec.RegisterCodec(CodecVersion, c),
	)
	if errs.Errored() {
		panic(errs.Err)
	}
}

// Marshal encodes [v] with the current codec version.
func Marshal(v interface{}) ([]byte, error) {
	return Codec.Marshal(CodecVersion, v)
}

// Unmarshal decodes [b] into [v].
func Unmarshal(b []byte, v interface{}) error {
	_, err := Codec.Unmarshal(b, v)
	return err
}
