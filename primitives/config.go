// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package primitives

import (
	"math"
)

// Rational is Numerator / Denominator.
type Rational struct {
	Numerator   uint64
	Denominator uint64
}

// Fee is the cost of an operation split into the part paid when the receipt
// is created and the part paid when it executes. Sir ("sender is receiver")
// applies when the receipt stays on the signer's account.
type Fee struct {
	SendSir    Gas
	SendNotSir Gas
	Execution  Gas
}

func (f Fee) SendFee(senderIsReceiver bool) Gas {
	if senderIsReceiver {
		return f.SendSir
	}
	return f.SendNotSir
}

func (f Fee) ExecFee() Gas { return f.Execution }

// MinSendAndExecFee is the smallest possible cost of the operation.
func (f Fee) MinSendAndExecFee() Gas {
	send := f.SendSir
	if f.SendNotSir < send {
		send = f.SendNotSir
	}
	return send + f.Execution
}

func uniformFee(cost Gas) Fee {
	return Fee{SendSir: cost, SendNotSir: cost, Execution: cost}
}

type DataReceiptCreationConfig struct {
	BaseCost    Fee
	CostPerByte Fee
}

type AccessKeyCreationConfig struct {
	FullAccessCost          Fee
	FunctionCallCost        Fee
	FunctionCallCostPerByte Fee
}

type ActionCreationConfig struct {
	CreateAccountCost         Fee
	DeployContractCost        Fee
	DeployContractCostPerByte Fee
	FunctionCallCost          Fee
	FunctionCallCostPerByte   Fee
	TransferCost              Fee
	AddKeyCost                AccessKeyCreationConfig
	DeleteKeyCost             Fee
	DeleteAccountCost         Fee
}

// TransferSendFee is the send fee of a transfer. A transfer to an implicit
// account also pays for creating it with a full access key.
func (c *ActionCreationConfig) TransferSendFee(sir bool, implicitReceiver bool) Gas {
	fee := c.TransferCost.SendFee(sir)
	if implicitReceiver {
		fee += c.CreateAccountCost.SendFee(sir) + c.AddKeyCost.FullAccessCost.SendFee(sir)
	}
	return fee
}

// TransferExecFee is the execution counterpart of TransferSendFee.
func (c *ActionCreationConfig) TransferExecFee(implicitReceiver bool) Gas {
	fee := c.TransferCost.ExecFee()
	if implicitReceiver {
		fee += c.CreateAccountCost.ExecFee() + c.AddKeyCost.FullAccessCost.ExecFee()
	}
	return fee
}

// StorageUsageConfig describes how many bytes each record is accounted for.
type StorageUsageConfig struct {
	NumBytesAccount     uint64
	NumExtraBytesRecord uint64
}

type RuntimeFeesConfig struct {
	ActionReceiptCreation Fee
	DataReceiptCreation   DataReceiptCreationConfig
	ActionCreation        ActionCreationConfig
	StorageUsage          StorageUsageConfig
	// BurntGasReward is the fraction of function call gas credited to the
	// contract account.
	BurntGasReward Rational
	// PessimisticGasPriceInflationRatio is the per-hop gas price growth
	// assumed when pricing prepaid gas.
	PessimisticGasPriceInflationRatio Rational
}

// MinReceiptWithFunctionCallGas is the least gas a receipt carrying a
// function call costs.
func (c *RuntimeFeesConfig) MinReceiptWithFunctionCallGas() Gas {
	return c.ActionReceiptCreation.MinSendAndExecFee() +
		c.ActionCreation.FunctionCallCost.MinSendAndExecFee()
}

// ExtCostsConfig prices host functions.
type ExtCostsConfig struct {
	Base                      Gas
	ContractLoadingBase       Gas
	ContractLoadingBytes      Gas
	ReadMemoryBase            Gas
	ReadMemoryByte            Gas
	WriteMemoryBase           Gas
	WriteMemoryByte           Gas
	ReadRegisterBase          Gas
	ReadRegisterByte          Gas
	WriteRegisterBase         Gas
	WriteRegisterByte         Gas
	UTF8DecodingBase          Gas
	UTF8DecodingByte          Gas
	UTF16DecodingBase         Gas
	UTF16DecodingByte         Gas
	Sha256Base                Gas
	Sha256Byte                Gas
	Keccak256Base             Gas
	Keccak256Byte             Gas
	Keccak512Base             Gas
	Keccak512Byte             Gas
	Ripemd160Base             Gas
	Ripemd160Block            Gas
	EcrecoverBase             Gas
	LogBase                   Gas
	LogByte                   Gas
	StorageWriteBase          Gas
	StorageWriteKeyByte       Gas
	StorageWriteValueByte     Gas
	StorageWriteEvictedByte   Gas
	StorageReadBase           Gas
	StorageReadKeyByte        Gas
	StorageReadValueByte      Gas
	StorageRemoveBase         Gas
	StorageRemoveKeyByte      Gas
	StorageRemoveRetValueByte Gas
	StorageHasKeyBase         Gas
	StorageHasKeyByte         Gas
	TouchingTrieNode          Gas
	PromiseAndBase            Gas
	PromiseAndPerPromise      Gas
	PromiseReturn             Gas
}

// VMLimitConfig bounds what a single contract call may do.
type VMLimitConfig struct {
	MaxGasBurnt                      Gas
	MaxGasBurntView                  Gas
	MaxTotalPrepaidGas               Gas
	MaxActionsPerReceipt             uint64
	MaxNumberLogs                    uint64
	MaxTotalLogLength                uint64
	MaxLengthMethodName              uint64
	MaxArgumentsLength               uint64
	MaxLengthReturnedData            uint64
	MaxContractSize                  uint64
	MaxTransactionSize               uint64
	MaxLengthStorageKey              uint64
	MaxLengthStorageValue            uint64
	MaxPromisesPerFunctionCallAction uint64
	MaxNumberInputDataDependencies   uint64
	MaxNumberBytesMethodNames        uint64
	MaxRegisterSize                  uint64
	MaxNumberRegisters               uint64
	RegistersMemoryLimit             uint64
	// MaxMemoryPages bounds guest linear memory, in 64KiB pages.
	MaxMemoryPages uint32
}

type VMConfig struct {
	ExtCosts      ExtCostsConfig
	GrowMemCost   uint32
	RegularOpCost uint32
	Limits        VMLimitConfig
}

type AccountCreationConfig struct {
	// MinAllowedTopLevelAccountLength is the shortest top-level account id
	// that anyone may create. Shorter ones need the registrar.
	MinAllowedTopLevelAccountLength uint64
	RegistrarAccountID              string
}

type RuntimeConfig struct {
	Fees            RuntimeFeesConfig
	Wasm            VMConfig
	AccountCreation AccountCreationConfig
}

func DefaultFeesConfig() RuntimeFeesConfig {
	return RuntimeFeesConfig{
		ActionReceiptCreation: uniformFee(108_059_500_000),
		DataReceiptCreation: DataReceiptCreationConfig{
			BaseCost:    uniformFee(4_697_339_419_375),
			CostPerByte: uniformFee(59_357_464),
		},
		ActionCreation: ActionCreationConfig{
			CreateAccountCost:         uniformFee(99_607_375_000),
			DeployContractCost:        uniformFee(184_765_750_000),
			DeployContractCostPerByte: uniformFee(6_812_999),
			FunctionCallCost:          uniformFee(2_319_861_500_000),
			FunctionCallCostPerByte:   uniformFee(2_235_934),
			TransferCost:              uniformFee(115_123_062_500),
			AddKeyCost: AccessKeyCreationConfig{
				FullAccessCost:          uniformFee(101_765_125_000),
				FunctionCallCost:        uniformFee(102_217_625_000),
				FunctionCallCostPerByte: uniformFee(1_925_331),
			},
			DeleteKeyCost:     uniformFee(94_946_625_000),
			DeleteAccountCost: uniformFee(147_489_000_000),
		},
		StorageUsage: StorageUsageConfig{
			NumBytesAccount:     100,
			NumExtraBytesRecord: 40,
		},
		BurntGasReward:                    Rational{Numerator: 3, Denominator: 10},
		PessimisticGasPriceInflationRatio: Rational{Numerator: 103, Denominator: 100},
	}
}

// FreeFeesConfig charges nothing for any action.
func FreeFeesConfig() RuntimeFeesConfig {
	return RuntimeFeesConfig{
		BurntGasReward:                    Rational{Numerator: 0, Denominator: 1},
		PessimisticGasPriceInflationRatio: Rational{Numerator: 0, Denominator: 1},
	}
}

func DefaultExtCostsConfig() ExtCostsConfig {
	return ExtCostsConfig{
		Base:                      264_768_111,
		ContractLoadingBase:       35_445_963,
		ContractLoadingBytes:      216_750,
		ReadMemoryBase:            2_609_863_200,
		ReadMemoryByte:            3_801_333,
		WriteMemoryBase:           2_803_794_861,
		WriteMemoryByte:           2_723_772,
		ReadRegisterBase:          2_517_165_186,
		ReadRegisterByte:          98_562,
		WriteRegisterBase:         2_865_522_486,
		WriteRegisterByte:         3_801_564,
		UTF8DecodingBase:          3_111_779_061,
		UTF8DecodingByte:          291_580_479,
		UTF16DecodingBase:         3_543_313_050,
		UTF16DecodingByte:         163_577_493,
		Sha256Base:                4_540_970_250,
		Sha256Byte:                24_117_351,
		Keccak256Base:             5_879_491_275,
		Keccak256Byte:             21_471_105,
		Keccak512Base:             5_811_388_236,
		Keccak512Byte:             36_649_701,
		Ripemd160Base:             853_675_086,
		Ripemd160Block:            680_107_584,
		EcrecoverBase:             278_821_988_457,
		LogBase:                   3_543_313_050,
		LogByte:                   13_198_791,
		StorageWriteBase:          64_196_736_000,
		StorageWriteKeyByte:       70_482_867,
		StorageWriteValueByte:     31_018_539,
		StorageWriteEvictedByte:   32_117_307,
		StorageReadBase:           56_356_845_750,
		StorageReadKeyByte:        30_952_533,
		StorageReadValueByte:      5_611_005,
		StorageRemoveBase:         53_473_030_500,
		StorageRemoveKeyByte:      38_220_384,
		StorageRemoveRetValueByte: 11_531_556,
		StorageHasKeyBase:         54_039_896_625,
		StorageHasKeyByte:         30_790_845,
		TouchingTrieNode:          16_101_955_926,
		PromiseAndBase:            1_465_013_400,
		PromiseAndPerPromise:      5_452_176,
		PromiseReturn:             560_152_386,
	}
}

func DefaultVMLimitConfig() VMLimitConfig {
	return VMLimitConfig{
		MaxGasBurnt:                      200_000_000_000_000,
		MaxGasBurntView:                  200_000_000_000_000,
		MaxTotalPrepaidGas:               300_000_000_000_000,
		MaxActionsPerReceipt:             100,
		MaxNumberLogs:                    100,
		MaxTotalLogLength:                16 * 1024,
		MaxLengthMethodName:              256,
		MaxArgumentsLength:               128 * 1024,
		MaxLengthReturnedData:            128 * 1024,
		MaxContractSize:                  192 * 1024,
		MaxTransactionSize:               256 * 1024,
		MaxLengthStorageKey:              4 * 1024,
		MaxLengthStorageValue:            128 * 1024,
		MaxPromisesPerFunctionCallAction: 1024,
		MaxNumberInputDataDependencies:   128,
		MaxNumberBytesMethodNames:        2000,
		MaxRegisterSize:                  100 * 1024 * 1024,
		MaxNumberRegisters:               100,
		RegistersMemoryLimit:             1024 * 1024 * 1024,
		MaxMemoryPages:                   2048,
	}
}

// DefaultRuntimeConfig returns the protocol parameters used by the node.
func DefaultRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		Fees: DefaultFeesConfig(),
		Wasm: VMConfig{
			ExtCosts:      DefaultExtCostsConfig(),
			GrowMemCost:   1,
			RegularOpCost: 3_856_371,
			Limits:        DefaultVMLimitConfig(),
		},
		AccountCreation: AccountCreationConfig{
			MinAllowedTopLevelAccountLength: 32,
			RegistrarAccountID:              "registrar",
		},
	}
}

// TestRuntimeConfig is the default configuration without the top-level
// account length restriction.
func TestRuntimeConfig() *RuntimeConfig {
	cfg := DefaultRuntimeConfig()
	cfg.AccountCreation.MinAllowedTopLevelAccountLength = 0
	return cfg
}

// FreeRuntimeConfig charges no gas at all.
func FreeRuntimeConfig() *RuntimeConfig {
	cfg := DefaultRuntimeConfig()
	cfg.Fees = FreeFeesConfig()
	cfg.Wasm.ExtCosts = ExtCostsConfig{}
	cfg.Wasm.GrowMemCost = 0
	cfg.Wasm.RegularOpCost = 0
	cfg.AccountCreation.MinAllowedTopLevelAccountLength = 0
	return cfg
}

// NoGasLimit is used when apply is not bounded by a block gas limit.
const NoGasLimit Gas = math.MaxUint64
