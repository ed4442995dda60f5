// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package host

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/holiman/uint256"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck
	"golang.org/x/crypto/sha3"

	"github.com/ava-labs/receiptvm/primitives"
)

// registerSentinel as a length makes the pointer argument a register id.
const registerSentinel = math.MaxUint64

var (
	secp256k1N     = uint256.MustFromHex("0xfffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141")
	secp256k1HalfN = new(uint256.Int).Rsh(secp256k1N, 1)
)

// promise is either a receipt created by the call or a joint promise over
// several receipts.
type promise struct {
	joint          bool
	receiptIndex   uint64
	receiptIndices []uint64
}

// Logic implements every host function for one function call.
type Logic struct {
	ext            External
	context        *VMContext
	config         *primitives.VMConfig
	fees           *primitives.RuntimeFeesConfig
	promiseResults []PromiseResult
	memory         MemoryLike

	currentAccountBalance primitives.Balance
	currentStorageUsage   uint64
	gasCounter            *GasCounter
	returnData            ReturnData

	logs           []string
	totalLogLength uint64

	registers       map[uint64][]byte
	registersMemory uint64

	promises         []promise
	receiptToAccount map[uint64]string
}

// NewLogic prepares a call of [ctx]. The attached deposit is credited to
// the account balance before the call starts.
func NewLogic(
	ext External,
	ctx *VMContext,
	config *primitives.VMConfig,
	fees *primitives.RuntimeFeesConfig,
	promiseResults []PromiseResult,
	memory MemoryLike,
) *Logic {
	maxGasBurnt := config.Limits.MaxGasBurnt
	if ctx.IsView {
		maxGasBurnt = config.Limits.MaxGasBurntView
	}
	return &Logic{
		ext:                   ext,
		context:               ctx,
		config:                config,
		fees:                  fees,
		promiseResults:        promiseResults,
		memory:                memory,
		currentAccountBalance: primitives.SaturatingAddBalance(ctx.AccountBalance, ctx.AttachedDeposit),
		currentStorageUsage:   ctx.StorageUsage,
		gasCounter:            NewGasCounter(maxGasBurnt, ctx.PrepaidGas, config.RegularOpCost, ctx.IsView),
		registers:             make(map[uint64][]byte),
		receiptToAccount:      make(map[uint64]string),
	}
}

// Memory is the guest memory the call reads arguments from.
func (l *Logic) Memory() MemoryLike { return l.memory }

func (l *Logic) costs() *primitives.ExtCostsConfig { return &l.config.ExtCosts }

func (l *Logic) limits() *primitives.VMLimitConfig { return &l.config.Limits }

func (l *Logic) payBase() error {
	return l.gasCounter.PayBase("base", l.costs().Base)
}

func (l *Logic) prohibitedInView(method string) error {
	if l.context.IsView {
		return newHostError(ProhibitedInView, "%s is not allowed in view calls", method)
	}
	return nil
}

func (l *Logic) extError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*HostError); ok {
		return err
	}
	return &ExternalError{Err: err}
}

// Memory helpers

func (l *Logic) tryFitMemory(offset, length uint64) error {
	if !l.memory.FitsMemory(offset, length) {
		return newHostError(MemoryAccessViolation, "%d bytes at %d", length, offset)
	}
	return nil
}

func (l *Logic) memoryGetInto(offset uint64, buf []byte) error {
	costs := l.costs()
	if err := l.gasCounter.PayBase("read_memory_base", costs.ReadMemoryBase); err != nil {
		return err
	}
	if err := l.gasCounter.PayPer("read_memory_byte", costs.ReadMemoryByte, uint64(len(buf))); err != nil {
		return err
	}
	if err := l.tryFitMemory(offset, uint64(len(buf))); err != nil {
		return err
	}
	l.memory.ReadMemory(offset, buf)
	return nil
}

func (l *Logic) memoryGetVec(offset, length uint64) ([]byte, error) {
	if err := l.tryFitMemory(offset, length); err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	if err := l.memoryGetInto(offset, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (l *Logic) memoryGetU8(offset uint64) (byte, error) {
	var buf [1]byte
	err := l.memoryGetInto(offset, buf[:])
	return buf[0], err
}

func (l *Logic) memoryGetU32(offset uint64) (uint32, error) {
	var buf [4]byte
	if err := l.memoryGetInto(offset, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (l *Logic) memoryGetU128(offset uint64) (primitives.Balance, error) {
	buf := make([]byte, primitives.BalanceLen)
	if err := l.memoryGetInto(offset, buf); err != nil {
		return primitives.Balance{}, err
	}
	return primitives.BalanceFromLE(buf)
}

func (l *Logic) memorySetSlice(offset uint64, buf []byte) error {
	costs := l.costs()
	if err := l.gasCounter.PayBase("write_memory_base", costs.WriteMemoryBase); err != nil {
		return err
	}
	if err := l.gasCounter.PayPer("write_memory_byte", costs.WriteMemoryByte, uint64(len(buf))); err != nil {
		return err
	}
	if err := l.tryFitMemory(offset, uint64(len(buf))); err != nil {
		return err
	}
	l.memory.WriteMemory(offset, buf)
	return nil
}

func (l *Logic) memorySetU128(offset uint64, value primitives.Balance) error {
	return l.memorySetSlice(offset, primitives.BalanceToLE(value))
}

// Register helpers

func (l *Logic) internalReadRegister(registerID uint64) ([]byte, error) {
	data, ok := l.registers[registerID]
	if !ok {
		return nil, newHostError(InvalidRegisterID, "register %d", registerID)
	}
	costs := l.costs()
	if err := l.gasCounter.PayBase("read_register_base", costs.ReadRegisterBase); err != nil {
		return nil, err
	}
	if err := l.gasCounter.PayPer("read_register_byte", costs.ReadRegisterByte, uint64(len(data))); err != nil {
		return nil, err
	}
	return data, nil
}

func (l *Logic) internalWriteRegister(registerID uint64, data []byte) error {
	costs := l.costs()
	if err := l.gasCounter.PayBase("write_register_base", costs.WriteRegisterBase); err != nil {
		return err
	}
	if err := l.gasCounter.PayPer("write_register_byte", costs.WriteRegisterByte, uint64(len(data))); err != nil {
		return err
	}

	limits := l.limits()
	old, exists := l.registers[registerID]
	if uint64(len(data)) > limits.MaxRegisterSize ||
		(!exists && uint64(len(l.registers)) >= limits.MaxNumberRegisters) {
		return newHostError(MemoryAccessViolation, "register %d can't hold %d bytes", registerID, len(data))
	}
	usage := l.registersMemory + uint64(len(data))
	if exists {
		usage -= uint64(len(old))
	} else {
		usage += 8
	}
	if usage > limits.RegistersMemoryLimit {
		return newHostError(MemoryAccessViolation, "registers memory limit exceeded")
	}
	l.registers[registerID] = append([]byte{}, data...)
	l.registersMemory = usage
	return nil
}

func (l *Logic) getVecFromMemoryOrRegister(offset, length uint64) ([]byte, error) {
	if length != registerSentinel {
		return l.memoryGetVec(offset, length)
	}
	return l.internalReadRegister(offset)
}

func (l *Logic) checkCanAddALogMessage() error {
	if uint64(len(l.logs)) >= l.limits().MaxNumberLogs {
		return newHostError(NumberOfLogsExceeded, "limit %d", l.limits().MaxNumberLogs)
	}
	return nil
}

func (l *Logic) checkedPushLog(message string) error {
	l.totalLogLength += uint64(len(message))
	if l.totalLogLength > l.limits().MaxTotalLogLength {
		return newHostError(TotalLogLengthExceeded, "length %d, limit %d", l.totalLogLength, l.limits().MaxTotalLogLength)
	}
	l.logs = append(l.logs, message)
	return nil
}

// getUTF8String reads [length] bytes at [ptr], or a null terminated string
// if [length] is the register sentinel.
func (l *Logic) getUTF8String(length, ptr uint64) (string, error) {
	costs := l.costs()
	if err := l.gasCounter.PayBase("utf8_decoding_base", costs.UTF8DecodingBase); err != nil {
		return "", err
	}
	limit := l.limits().MaxTotalLogLength
	maxLen := primitives.SaturatingSubGas(limit, l.totalLogLength)

	var buf []byte
	if length != registerSentinel {
		if length > maxLen {
			return "", newHostError(TotalLogLengthExceeded, "length %d, limit %d", l.totalLogLength+length, limit)
		}
		b, err := l.memoryGetVec(ptr, length)
		if err != nil {
			return "", err
		}
		buf = b
	} else {
		for i := uint64(0); i <= maxLen; i++ {
			c, err := l.memoryGetU8(ptr + i)
			if err != nil {
				return "", err
			}
			if c == 0 {
				break
			}
			if i == maxLen {
				return "", newHostError(TotalLogLengthExceeded, "length %d, limit %d", maxLen+1, limit)
			}
			buf = append(buf, c)
		}
	}
	if err := l.gasCounter.PayPer("utf8_decoding_byte", costs.UTF8DecodingByte, uint64(len(buf))); err != nil {
		return "", err
	}
	if !utf8.Valid(buf) {
		return "", &HostError{Kind: BadUTF8}
	}
	return string(buf), nil
}

// getUTF16String reads a little-endian UTF-16 string of [length] bytes, or
// a null terminated one if [length] is the register sentinel.
func (l *Logic) getUTF16String(length, ptr uint64) (string, error) {
	costs := l.costs()
	if err := l.gasCounter.PayBase("utf16_decoding_base", costs.UTF16DecodingBase); err != nil {
		return "", err
	}
	limit := l.limits().MaxTotalLogLength
	maxLen := primitives.SaturatingSubGas(limit, l.totalLogLength)

	var units []uint16
	if length != registerSentinel {
		input, err := l.memoryGetVec(ptr, length)
		if err != nil {
			return "", err
		}
		if length%2 != 0 {
			return "", &HostError{Kind: BadUTF16}
		}
		units = make([]uint16, 0, len(input)/2)
		for i := 0; i+1 < len(input); i += 2 {
			units = append(units, binary.LittleEndian.Uint16(input[i:]))
		}
	} else {
		var buf [2]byte
		for i := uint64(0); i <= maxLen; i += 2 {
			if err := l.memoryGetInto(ptr+i, buf[:]); err != nil {
				return "", err
			}
			unit := binary.LittleEndian.Uint16(buf[:])
			if unit == 0 {
				break
			}
			if i >= maxLen {
				return "", newHostError(TotalLogLengthExceeded, "length %d, limit %d", maxLen+2, limit)
			}
			units = append(units, unit)
		}
	}
	if err := l.gasCounter.PayPer("utf16_decoding_byte", costs.UTF16DecodingByte, uint64(len(units))*2); err != nil {
		return "", err
	}
	return decodeUTF16(units)
}

func decodeUTF16(units []uint16) (string, error) {
	var b strings.Builder
	for i := 0; i < len(units); i++ {
		r := rune(units[i])
		if utf16.IsSurrogate(r) {
			if i+1 == len(units) {
				return "", &HostError{Kind: BadUTF16}
			}
			r = utf16.DecodeRune(r, rune(units[i+1]))
			if r == utf8.RuneError {
				return "", &HostError{Kind: BadUTF16}
			}
			i++
		}
		b.WriteRune(r)
	}
	return b.String(), nil
}

func (l *Logic) readAndParseAccountID(length, ptr uint64) (string, error) {
	buf, err := l.getVecFromMemoryOrRegister(ptr, length)
	if err != nil {
		return "", err
	}
	costs := l.costs()
	if err := l.gasCounter.PayBase("utf8_decoding_base", costs.UTF8DecodingBase); err != nil {
		return "", err
	}
	if err := l.gasCounter.PayPer("utf8_decoding_byte", costs.UTF8DecodingByte, uint64(len(buf))); err != nil {
		return "", err
	}
	if !utf8.Valid(buf) {
		return "", &HostError{Kind: BadUTF8}
	}
	accountID := string(buf)
	if err := primitives.ValidateAccountID(accountID); err != nil {
		return "", newHostError(InvalidAccountID, "%s", err)
	}
	return accountID, nil
}

// Registers

// ReadRegister copies register [registerID] to guest memory at [ptr].
func (l *Logic) ReadRegister(registerID, ptr uint64) error {
	if err := l.payBase(); err != nil {
		return err
	}
	data, err := l.internalReadRegister(registerID)
	if err != nil {
		return err
	}
	return l.memorySetSlice(ptr, data)
}

// RegisterLen returns the register length, or MaxUint64 if it is unset.
func (l *Logic) RegisterLen(registerID uint64) (uint64, error) {
	if err := l.payBase(); err != nil {
		return 0, err
	}
	data, ok := l.registers[registerID]
	if !ok {
		return registerSentinel, nil
	}
	return uint64(len(data)), nil
}

func (l *Logic) WriteRegister(registerID, dataLen, dataPtr uint64) error {
	if err := l.payBase(); err != nil {
		return err
	}
	data, err := l.memoryGetVec(dataPtr, dataLen)
	if err != nil {
		return err
	}
	return l.internalWriteRegister(registerID, data)
}

// Context

func (l *Logic) CurrentAccountID(registerID uint64) error {
	if err := l.payBase(); err != nil {
		return err
	}
	return l.internalWriteRegister(registerID, []byte(l.context.CurrentAccountID))
}

func (l *Logic) SignerAccountID(registerID uint64) error {
	if err := l.payBase(); err != nil {
		return err
	}
	if err := l.prohibitedInView("signer_account_id"); err != nil {
		return err
	}
	return l.internalWriteRegister(registerID, []byte(l.context.SignerAccountID))
}

func (l *Logic) SignerAccountPK(registerID uint64) error {
	if err := l.payBase(); err != nil {
		return err
	}
	if err := l.prohibitedInView("signer_account_pk"); err != nil {
		return err
	}
	return l.internalWriteRegister(registerID, l.context.SignerAccountPK)
}

func (l *Logic) PredecessorAccountID(registerID uint64) error {
	if err := l.payBase(); err != nil {
		return err
	}
	if err := l.prohibitedInView("predecessor_account_id"); err != nil {
		return err
	}
	return l.internalWriteRegister(registerID, []byte(l.context.PredecessorAccountID))
}

func (l *Logic) Input(registerID uint64) error {
	if err := l.payBase(); err != nil {
		return err
	}
	return l.internalWriteRegister(registerID, l.context.Input)
}

func (l *Logic) BlockNumber() (uint64, error) {
	return l.context.BlockNumber, l.payBase()
}

func (l *Logic) BlockTimestamp() (uint64, error) {
	return l.context.BlockTimestamp, l.payBase()
}

// StorageUsage is the storage usage of the account including changes made
// by this call.
func (l *Logic) StorageUsage() (uint64, error) {
	return l.currentStorageUsage, l.payBase()
}

// AccountBalance writes the current balance as a little-endian u128.
func (l *Logic) AccountBalance(balancePtr uint64) error {
	if err := l.payBase(); err != nil {
		return err
	}
	return l.memorySetU128(balancePtr, l.currentAccountBalance)
}

func (l *Logic) AccountLockedBalance(balancePtr uint64) error {
	if err := l.payBase(); err != nil {
		return err
	}
	return l.memorySetU128(balancePtr, l.context.AccountLockedBalance)
}

func (l *Logic) AttachedDeposit(balancePtr uint64) error {
	if err := l.payBase(); err != nil {
		return err
	}
	if err := l.prohibitedInView("attached_deposit"); err != nil {
		return err
	}
	return l.memorySetU128(balancePtr, l.context.AttachedDeposit)
}

func (l *Logic) PrepaidGas() (uint64, error) {
	if err := l.payBase(); err != nil {
		return 0, err
	}
	if err := l.prohibitedInView("prepaid_gas"); err != nil {
		return 0, err
	}
	return l.context.PrepaidGas, nil
}

func (l *Logic) UsedGas() (uint64, error) {
	if err := l.payBase(); err != nil {
		return 0, err
	}
	if err := l.prohibitedInView("used_gas"); err != nil {
		return 0, err
	}
	return l.gasCounter.UsedGas(), nil
}

func (l *Logic) RandomSeed(registerID uint64) error {
	if err := l.payBase(); err != nil {
		return err
	}
	return l.internalWriteRegister(registerID, l.context.RandomSeed)
}

// Math

func (l *Logic) hash(
	valueLen, valuePtr, registerID uint64,
	baseName string, baseCost primitives.Gas,
	byteName string, byteCost primitives.Gas,
	f func([]byte) []byte,
) error {
	if err := l.gasCounter.PayBase(baseName, baseCost); err != nil {
		return err
	}
	value, err := l.getVecFromMemoryOrRegister(valuePtr, valueLen)
	if err != nil {
		return err
	}
	if err := l.gasCounter.PayPer(byteName, byteCost, uint64(len(value))); err != nil {
		return err
	}
	return l.internalWriteRegister(registerID, f(value))
}

func (l *Logic) Sha256(valueLen, valuePtr, registerID uint64) error {
	costs := l.costs()
	return l.hash(valueLen, valuePtr, registerID,
		"sha256_base", costs.Sha256Base, "sha256_byte", costs.Sha256Byte,
		func(b []byte) []byte {
			digest := sha256.Sum256(b)
			return digest[:]
		},
	)
}

func (l *Logic) Keccak256(valueLen, valuePtr, registerID uint64) error {
	costs := l.costs()
	return l.hash(valueLen, valuePtr, registerID,
		"keccak256_base", costs.Keccak256Base, "keccak256_byte", costs.Keccak256Byte,
		func(b []byte) []byte {
			h := sha3.NewLegacyKeccak256()
			h.Write(b)
			return h.Sum(nil)
		},
	)
}

func (l *Logic) Keccak512(valueLen, valuePtr, registerID uint64) error {
	costs := l.costs()
	return l.hash(valueLen, valuePtr, registerID,
		"keccak512_base", costs.Keccak512Base, "keccak512_byte", costs.Keccak512Byte,
		func(b []byte) []byte {
			h := sha3.NewLegacyKeccak512()
			h.Write(b)
			return h.Sum(nil)
		},
	)
}

// Ripemd160 is charged per 64 byte block of the padded message.
func (l *Logic) Ripemd160(valueLen, valuePtr, registerID uint64) error {
	costs := l.costs()
	if err := l.gasCounter.PayBase("ripemd160_base", costs.Ripemd160Base); err != nil {
		return err
	}
	value, err := l.getVecFromMemoryOrRegister(valuePtr, valueLen)
	if err != nil {
		return err
	}
	blocks := (uint64(len(value))+8)/64 + 1
	if err := l.gasCounter.PayPer("ripemd160_block", costs.Ripemd160Block, blocks); err != nil {
		return err
	}
	h := ripemd160.New()
	h.Write(value)
	return l.internalWriteRegister(registerID, h.Sum(nil))
}

// Ecrecover writes the compressed public key that signed [hash] and returns
// 1, or returns 0 if no key can be recovered.
func (l *Logic) Ecrecover(hashLen, hashPtr, sigLen, sigPtr, v, malleabilityFlag, registerID uint64) (uint64, error) {
	if err := l.gasCounter.PayBase("ecrecover_base", l.costs().EcrecoverBase); err != nil {
		return 0, err
	}
	sig, err := l.getVecFromMemoryOrRegister(sigPtr, sigLen)
	if err != nil {
		return 0, err
	}
	if len(sig) != 64 {
		return 0, newHostError(ECRecoverError, "the length of the signature: %d, exceeds the limit of 64 bytes", len(sig))
	}
	if v >= 4 {
		return 0, newHostError(ECRecoverError, "V recovery byte 0 through 3 are valid but was provided %d", v)
	}
	hash, err := l.getVecFromMemoryOrRegister(hashPtr, hashLen)
	if err != nil {
		return 0, err
	}
	if len(hash) != 32 {
		return 0, newHostError(ECRecoverError, "the length of the hash: %d, exceeds the limit of 32 bytes", len(hash))
	}
	if malleabilityFlag > 1 {
		return 0, newHostError(ECRecoverError, "malleability flag needs to be 0 or 1, but is instead %d", malleabilityFlag)
	}
	if !checkSignatureValues(sig, malleabilityFlag == 1) {
		return 0, nil
	}
	full := make([]byte, 0, primitives.SignatureLen)
	full = append(full, sig...)
	full = append(full, byte(v))
	pk, err := primitives.Ecrecover(hash, full)
	if err != nil {
		return 0, nil
	}
	if err := l.internalWriteRegister(registerID, pk); err != nil {
		return 0, err
	}
	return 1, nil
}

func checkSignatureValues(sig []byte, rejectUpper bool) bool {
	r := new(uint256.Int).SetBytes(sig[:32])
	s := new(uint256.Int).SetBytes(sig[32:64])
	if r.IsZero() || s.IsZero() || !r.Lt(secp256k1N) || !s.Lt(secp256k1N) {
		return false
	}
	return !rejectUpper || !s.Gt(secp256k1HalfN)
}

// Miscellaneous

// ValueReturn sets the result of the call. Each output data receiver is
// charged for the bytes it will receive.
func (l *Logic) ValueReturn(valueLen, valuePtr uint64) error {
	if err := l.payBase(); err != nil {
		return err
	}
	value, err := l.getVecFromMemoryOrRegister(valuePtr, valueLen)
	if err != nil {
		return err
	}
	numBytes := uint64(len(value))
	if numBytes > l.limits().MaxLengthReturnedData {
		return newHostError(ReturnedValueLengthExceeded, "length %d, limit %d", numBytes, l.limits().MaxLengthReturnedData)
	}
	perByte := l.fees.DataReceiptCreation.CostPerByte
	var burn primitives.Gas
	for _, receiver := range l.context.OutputDataReceivers {
		sir := receiver == l.context.CurrentAccountID
		send, err := primitives.SafeMulGas(perByte.SendFee(sir), numBytes)
		if err != nil {
			return newHostError(IntegerOverflow, "data receipt fee")
		}
		exec, err := primitives.SafeMulGas(perByte.ExecFee(), numBytes)
		if err != nil {
			return newHostError(IntegerOverflow, "data receipt fee")
		}
		if burn, err = primitives.SumGas(burn, send, exec); err != nil {
			return newHostError(IntegerOverflow, "data receipt fee")
		}
	}
	if err := l.gasCounter.PayActionAccumulated("value_return", burn, burn); err != nil {
		return err
	}
	l.returnData = ReturnDataValue(value)
	return nil
}

func (l *Logic) Panic() error {
	if err := l.payBase(); err != nil {
		return err
	}
	return newHostError(GuestPanic, "explicit guest panic")
}

func (l *Logic) PanicUTF8(length, ptr uint64) error {
	if err := l.payBase(); err != nil {
		return err
	}
	msg, err := l.getUTF8String(length, ptr)
	if err != nil {
		return err
	}
	return &HostError{Kind: GuestPanic, Msg: msg}
}

func (l *Logic) LogUTF8(length, ptr uint64) error {
	if err := l.payBase(); err != nil {
		return err
	}
	if err := l.checkCanAddALogMessage(); err != nil {
		return err
	}
	message, err := l.getUTF8String(length, ptr)
	if err != nil {
		return err
	}
	if err := l.payLog(message); err != nil {
		return err
	}
	return l.checkedPushLog(message)
}

func (l *Logic) LogUTF16(length, ptr uint64) error {
	if err := l.payBase(); err != nil {
		return err
	}
	if err := l.checkCanAddALogMessage(); err != nil {
		return err
	}
	message, err := l.getUTF16String(length, ptr)
	if err != nil {
		return err
	}
	if err := l.payLog(message); err != nil {
		return err
	}
	return l.checkedPushLog(message)
}

func (l *Logic) payLog(message string) error {
	costs := l.costs()
	if err := l.gasCounter.PayBase("log_base", costs.LogBase); err != nil {
		return err
	}
	return l.gasCounter.PayPer("log_byte", costs.LogByte, uint64(len(message)))
}

// Abort is the AssemblyScript abort handler. Strings are UTF-16 with their
// byte length stored in the 4 bytes before the pointer.
func (l *Logic) Abort(msgPtr, filenamePtr, line, col uint32) error {
	if err := l.payBase(); err != nil {
		return err
	}
	if msgPtr < 4 || filenamePtr < 4 {
		return &HostError{Kind: BadUTF16}
	}
	if err := l.checkCanAddALogMessage(); err != nil {
		return err
	}
	msgLen, err := l.memoryGetU32(uint64(msgPtr - 4))
	if err != nil {
		return err
	}
	filenameLen, err := l.memoryGetU32(uint64(filenamePtr - 4))
	if err != nil {
		return err
	}
	msg, err := l.getUTF16String(uint64(msgLen), uint64(msgPtr))
	if err != nil {
		return err
	}
	filename, err := l.getUTF16String(uint64(filenameLen), uint64(filenamePtr))
	if err != nil {
		return err
	}
	message := fmt.Sprintf("%s, filename: %q line: %d col: %d", msg, filename, line, col)
	if err := l.payLog(message); err != nil {
		return err
	}
	if err := l.checkedPushLog("ABORT: " + message); err != nil {
		return err
	}
	return &HostError{Kind: GuestPanic, Msg: message}
}

// Promises

func (l *Logic) checkedPushPromise(p promise) (uint64, error) {
	index := uint64(len(l.promises))
	l.promises = append(l.promises, p)
	if limit := l.limits().MaxPromisesPerFunctionCallAction; uint64(len(l.promises)) > limit {
		return 0, newHostError(NumberPromisesExceeded, "%d promises, limit %d", len(l.promises), limit)
	}
	return index, nil
}

// payGasForNewReceipt charges the creation of a receipt. [deps] tells, for
// each receipt it waits for, whether that receipt runs on this account.
func (l *Logic) payGasForNewReceipt(sir bool, deps []bool) error {
	fees := l.fees
	burn := fees.ActionReceiptCreation.SendFee(sir)
	var err error
	for _, dep := range deps {
		burn, err = primitives.SumGas(
			burn,
			fees.DataReceiptCreation.BaseCost.SendFee(dep),
			fees.DataReceiptCreation.BaseCost.ExecFee(),
		)
		if err != nil {
			return newHostError(IntegerOverflow, "new receipt fee")
		}
	}
	use, err := primitives.SafeAddGas(fees.ActionReceiptCreation.ExecFee(), burn)
	if err != nil {
		return newHostError(IntegerOverflow, "new receipt fee")
	}
	return l.gasCounter.PayActionAccumulated("new_receipt", burn, use)
}

func (l *Logic) promiseToReceipt(promiseIdx uint64) (uint64, bool, error) {
	if promiseIdx >= uint64(len(l.promises)) {
		return 0, false, newHostError(InvalidPromiseIndex, "promise %d", promiseIdx)
	}
	p := l.promises[promiseIdx]
	if p.joint {
		return 0, false, &HostError{Kind: CannotAppendActionToJointPromise}
	}
	sir := l.receiptToAccount[p.receiptIndex] == l.context.CurrentAccountID
	return p.receiptIndex, sir, nil
}

// PromiseCreate creates a receipt calling [method] on [account].
func (l *Logic) PromiseCreate(
	accountIDLen, accountIDPtr uint64,
	methodNameLen, methodNamePtr uint64,
	argumentsLen, argumentsPtr uint64,
	amountPtr uint64,
	gas primitives.Gas,
) (uint64, error) {
	index, err := l.PromiseBatchCreate(accountIDLen, accountIDPtr)
	if err != nil {
		return 0, err
	}
	err = l.PromiseBatchActionFunctionCall(index, methodNameLen, methodNamePtr, argumentsLen, argumentsPtr, amountPtr, gas)
	return index, err
}

// PromiseThen is PromiseCreate for a receipt that waits for [promiseIdx].
func (l *Logic) PromiseThen(
	promiseIdx uint64,
	accountIDLen, accountIDPtr uint64,
	methodNameLen, methodNamePtr uint64,
	argumentsLen, argumentsPtr uint64,
	amountPtr uint64,
	gas primitives.Gas,
) (uint64, error) {
	index, err := l.PromiseBatchThen(promiseIdx, accountIDLen, accountIDPtr)
	if err != nil {
		return 0, err
	}
	err = l.PromiseBatchActionFunctionCall(index, methodNameLen, methodNamePtr, argumentsLen, argumentsPtr, amountPtr, gas)
	return index, err
}

// PromiseAnd joins the [count] promises whose u64 indices are at [ptr].
func (l *Logic) PromiseAnd(promiseIdxPtr, promiseIdxCount uint64) (uint64, error) {
	if err := l.payBase(); err != nil {
		return 0, err
	}
	if err := l.prohibitedInView("promise_and"); err != nil {
		return 0, err
	}
	costs := l.costs()
	if err := l.gasCounter.PayBase("promise_and_base", costs.PromiseAndBase); err != nil {
		return 0, err
	}
	memLen, err := primitives.SafeMulGas(promiseIdxCount, 8)
	if err != nil {
		return 0, newHostError(IntegerOverflow, "promise count")
	}
	if err := l.gasCounter.PayPer("promise_and_per_promise", costs.PromiseAndPerPromise, memLen); err != nil {
		return 0, err
	}
	raw, err := l.memoryGetVec(promiseIdxPtr, memLen)
	if err != nil {
		return 0, err
	}

	var receipts []uint64
	for i := uint64(0); i < promiseIdxCount; i++ {
		idx := binary.LittleEndian.Uint64(raw[i*8:])
		if idx >= uint64(len(l.promises)) {
			return 0, newHostError(InvalidPromiseIndex, "promise %d", idx)
		}
		p := l.promises[idx]
		if p.joint {
			receipts = append(receipts, p.receiptIndices...)
		} else {
			receipts = append(receipts, p.receiptIndex)
		}
	}
	return l.checkedPushPromise(promise{joint: true, receiptIndices: receipts})
}

func (l *Logic) PromiseBatchCreate(accountIDLen, accountIDPtr uint64) (uint64, error) {
	if err := l.payBase(); err != nil {
		return 0, err
	}
	if err := l.prohibitedInView("promise_batch_create"); err != nil {
		return 0, err
	}
	accountID, err := l.readAndParseAccountID(accountIDLen, accountIDPtr)
	if err != nil {
		return 0, err
	}
	sir := accountID == l.context.CurrentAccountID
	if err := l.payGasForNewReceipt(sir, nil); err != nil {
		return 0, err
	}
	receiptIdx, err := l.ext.CreateReceipt(nil, accountID)
	if err != nil {
		return 0, l.extError(err)
	}
	l.receiptToAccount[receiptIdx] = accountID
	return l.checkedPushPromise(promise{receiptIndex: receiptIdx})
}

func (l *Logic) PromiseBatchThen(promiseIdx, accountIDLen, accountIDPtr uint64) (uint64, error) {
	if err := l.payBase(); err != nil {
		return 0, err
	}
	if err := l.prohibitedInView("promise_batch_then"); err != nil {
		return 0, err
	}
	accountID, err := l.readAndParseAccountID(accountIDLen, accountIDPtr)
	if err != nil {
		return 0, err
	}
	if promiseIdx >= uint64(len(l.promises)) {
		return 0, newHostError(InvalidPromiseIndex, "promise %d", promiseIdx)
	}
	p := l.promises[promiseIdx]
	dependencies := []uint64{p.receiptIndex}
	if p.joint {
		dependencies = append([]uint64{}, p.receiptIndices...)
	}

	sir := accountID == l.context.CurrentAccountID
	deps := make([]bool, len(dependencies))
	for i, idx := range dependencies {
		deps[i] = l.receiptToAccount[idx] == l.context.CurrentAccountID
	}
	if err := l.payGasForNewReceipt(sir, deps); err != nil {
		return 0, err
	}
	receiptIdx, err := l.ext.CreateReceipt(dependencies, accountID)
	if err != nil {
		return 0, l.extError(err)
	}
	l.receiptToAccount[receiptIdx] = accountID
	return l.checkedPushPromise(promise{receiptIndex: receiptIdx})
}

func (l *Logic) PromiseBatchActionCreateAccount(promiseIdx uint64) error {
	if err := l.payBase(); err != nil {
		return err
	}
	if err := l.prohibitedInView("promise_batch_action_create_account"); err != nil {
		return err
	}
	receiptIdx, sir, err := l.promiseToReceipt(promiseIdx)
	if err != nil {
		return err
	}
	if err := l.gasCounter.PayActionBase("create_account", l.fees.ActionCreation.CreateAccountCost, sir); err != nil {
		return err
	}
	return l.extError(l.ext.AppendActionCreateAccount(receiptIdx))
}

func (l *Logic) PromiseBatchActionDeployContract(promiseIdx, codeLen, codePtr uint64) error {
	if err := l.payBase(); err != nil {
		return err
	}
	if err := l.prohibitedInView("promise_batch_action_deploy_contract"); err != nil {
		return err
	}
	code, err := l.getVecFromMemoryOrRegister(codePtr, codeLen)
	if err != nil {
		return err
	}
	numBytes := uint64(len(code))
	if limit := l.limits().MaxContractSize; numBytes > limit {
		return newHostError(ContractSizeExceeded, "size %d, limit %d", numBytes, limit)
	}
	receiptIdx, sir, err := l.promiseToReceipt(promiseIdx)
	if err != nil {
		return err
	}
	creation := &l.fees.ActionCreation
	if err := l.gasCounter.PayActionBase("deploy_contract", creation.DeployContractCost, sir); err != nil {
		return err
	}
	if err := l.gasCounter.PayActionPerByte("deploy_contract_byte", creation.DeployContractCostPerByte, numBytes, sir); err != nil {
		return err
	}
	return l.extError(l.ext.AppendActionDeployContract(receiptIdx, code))
}

func (l *Logic) PromiseBatchActionFunctionCall(
	promiseIdx uint64,
	methodNameLen, methodNamePtr uint64,
	argumentsLen, argumentsPtr uint64,
	amountPtr uint64,
	gas primitives.Gas,
) error {
	if err := l.payBase(); err != nil {
		return err
	}
	if err := l.prohibitedInView("promise_batch_action_function_call"); err != nil {
		return err
	}
	amount, err := l.memoryGetU128(amountPtr)
	if err != nil {
		return err
	}
	methodName, err := l.getVecFromMemoryOrRegister(methodNamePtr, methodNameLen)
	if err != nil {
		return err
	}
	if len(methodName) == 0 {
		return &HostError{Kind: EmptyMethodName}
	}
	if !utf8.Valid(methodName) {
		return &HostError{Kind: BadUTF8}
	}
	arguments, err := l.getVecFromMemoryOrRegister(argumentsPtr, argumentsLen)
	if err != nil {
		return err
	}
	receiptIdx, sir, err := l.promiseToReceipt(promiseIdx)
	if err != nil {
		return err
	}

	numBytes := uint64(len(methodName)) + uint64(len(arguments))
	creation := &l.fees.ActionCreation
	if err := l.gasCounter.PayActionBase("function_call", creation.FunctionCallCost, sir); err != nil {
		return err
	}
	if err := l.gasCounter.PayActionPerByte("function_call_byte", creation.FunctionCallCostPerByte, numBytes, sir); err != nil {
		return err
	}
	if err := l.gasCounter.PrepayGas(gas); err != nil {
		return err
	}
	if err := l.deductBalance(amount); err != nil {
		return err
	}
	return l.extError(l.ext.AppendActionFunctionCall(receiptIdx, string(methodName), arguments, amount, gas))
}

func (l *Logic) deductBalance(amount primitives.Balance) error {
	balance, err := primitives.SafeSubBalance(l.currentAccountBalance, amount)
	if err != nil {
		return newHostError(
			BalanceExceeded, "balance %s, amount %s",
			primitives.BalanceString(l.currentAccountBalance), primitives.BalanceString(amount),
		)
	}
	l.currentAccountBalance = balance
	return nil
}

func (l *Logic) PromiseBatchActionTransfer(promiseIdx, amountPtr uint64) error {
	if err := l.payBase(); err != nil {
		return err
	}
	if err := l.prohibitedInView("promise_batch_action_transfer"); err != nil {
		return err
	}
	amount, err := l.memoryGetU128(amountPtr)
	if err != nil {
		return err
	}
	receiptIdx, sir, err := l.promiseToReceipt(promiseIdx)
	if err != nil {
		return err
	}
	implicit := primitives.IsImplicitAccountID(l.receiptToAccount[receiptIdx])
	creation := &l.fees.ActionCreation
	burn := creation.TransferSendFee(sir, implicit)
	use, err := primitives.SafeAddGas(burn, creation.TransferExecFee(implicit))
	if err != nil {
		return newHostError(IntegerOverflow, "transfer fee")
	}
	if err := l.gasCounter.PayActionAccumulated("transfer", burn, use); err != nil {
		return err
	}
	if err := l.deductBalance(amount); err != nil {
		return err
	}
	return l.extError(l.ext.AppendActionTransfer(receiptIdx, amount))
}

func (l *Logic) readPublicKey(length, ptr uint64) ([]byte, error) {
	pk, err := l.getVecFromMemoryOrRegister(ptr, length)
	if err != nil {
		return nil, err
	}
	if len(pk) != primitives.PublicKeyLen {
		return nil, newHostError(InvalidPublicKey, "length %d", len(pk))
	}
	return pk, nil
}

func (l *Logic) PromiseBatchActionAddKeyWithFullAccess(promiseIdx, publicKeyLen, publicKeyPtr uint64) error {
	if err := l.payBase(); err != nil {
		return err
	}
	if err := l.prohibitedInView("promise_batch_action_add_key_with_full_access"); err != nil {
		return err
	}
	pk, err := l.readPublicKey(publicKeyLen, publicKeyPtr)
	if err != nil {
		return err
	}
	receiptIdx, sir, err := l.promiseToReceipt(promiseIdx)
	if err != nil {
		return err
	}
	if err := l.gasCounter.PayActionBase("add_full_access_key", l.fees.ActionCreation.AddKeyCost.FullAccessCost, sir); err != nil {
		return err
	}
	return l.extError(l.ext.AppendActionAddKey(receiptIdx, pk, primitives.FullAccessKey()))
}

// PromiseBatchActionAddKeyWithFunctionCall adds a function call key. A
// zero allowance is unlimited and method names are comma separated.
func (l *Logic) PromiseBatchActionAddKeyWithFunctionCall(
	promiseIdx uint64,
	publicKeyLen, publicKeyPtr uint64,
	allowancePtr uint64,
	receiverIDLen, receiverIDPtr uint64,
	methodNamesLen, methodNamesPtr uint64,
) error {
	if err := l.payBase(); err != nil {
		return err
	}
	if err := l.prohibitedInView("promise_batch_action_add_key_with_function_call"); err != nil {
		return err
	}
	pk, err := l.readPublicKey(publicKeyLen, publicKeyPtr)
	if err != nil {
		return err
	}
	allowance, err := l.memoryGetU128(allowancePtr)
	if err != nil {
		return err
	}
	receiverID, err := l.readAndParseAccountID(receiverIDLen, receiverIDPtr)
	if err != nil {
		return err
	}
	rawMethodNames, err := l.getVecFromMemoryOrRegister(methodNamesPtr, methodNamesLen)
	if err != nil {
		return err
	}
	var methodNames []string
	if len(rawMethodNames) != 0 {
		if !utf8.Valid(rawMethodNames) {
			return &HostError{Kind: InvalidMethodName}
		}
		for _, name := range strings.Split(string(rawMethodNames), ",") {
			if name == "" {
				return &HostError{Kind: EmptyMethodName}
			}
			methodNames = append(methodNames, name)
		}
	}
	receiptIdx, sir, err := l.promiseToReceipt(promiseIdx)
	if err != nil {
		return err
	}

	addKey := &l.fees.ActionCreation.AddKeyCost
	if err := l.gasCounter.PayActionBase("add_function_call_key", addKey.FunctionCallCost, sir); err != nil {
		return err
	}
	if err := l.gasCounter.PayActionPerByte("add_function_call_key_byte", addKey.FunctionCallCostPerByte, uint64(len(rawMethodNames)), sir); err != nil {
		return err
	}
	permission := &primitives.FunctionCallPermission{
		Allowance:    allowance,
		HasAllowance: !allowance.IsZero(),
		ReceiverID:   receiverID,
		MethodNames:  methodNames,
	}
	return l.extError(l.ext.AppendActionAddKey(receiptIdx, pk, &primitives.AccessKey{Permission: permission}))
}

func (l *Logic) PromiseBatchActionDeleteKey(promiseIdx, publicKeyLen, publicKeyPtr uint64) error {
	if err := l.payBase(); err != nil {
		return err
	}
	if err := l.prohibitedInView("promise_batch_action_delete_key"); err != nil {
		return err
	}
	pk, err := l.readPublicKey(publicKeyLen, publicKeyPtr)
	if err != nil {
		return err
	}
	receiptIdx, sir, err := l.promiseToReceipt(promiseIdx)
	if err != nil {
		return err
	}
	if err := l.gasCounter.PayActionBase("delete_key", l.fees.ActionCreation.DeleteKeyCost, sir); err != nil {
		return err
	}
	return l.extError(l.ext.AppendActionDeleteKey(receiptIdx, pk))
}

func (l *Logic) PromiseBatchActionDeleteAccount(promiseIdx, beneficiaryIDLen, beneficiaryIDPtr uint64) error {
	if err := l.payBase(); err != nil {
		return err
	}
	if err := l.prohibitedInView("promise_batch_action_delete_account"); err != nil {
		return err
	}
	beneficiaryID, err := l.readAndParseAccountID(beneficiaryIDLen, beneficiaryIDPtr)
	if err != nil {
		return err
	}
	receiptIdx, sir, err := l.promiseToReceipt(promiseIdx)
	if err != nil {
		return err
	}
	if err := l.gasCounter.PayActionBase("delete_account", l.fees.ActionCreation.DeleteAccountCost, sir); err != nil {
		return err
	}
	return l.extError(l.ext.AppendActionDeleteAccount(receiptIdx, beneficiaryID))
}

func (l *Logic) PromiseResultsCount() (uint64, error) {
	if err := l.payBase(); err != nil {
		return 0, err
	}
	if err := l.prohibitedInView("promise_results_count"); err != nil {
		return 0, err
	}
	return uint64(len(l.promiseResults)), nil
}

// PromiseResult returns 0 if the result is not ready, 1 if it succeeded
// and 2 if it failed. A successful result is written to [registerID].
func (l *Logic) PromiseResult(resultIdx, registerID uint64) (uint64, error) {
	if err := l.payBase(); err != nil {
		return 0, err
	}
	if err := l.prohibitedInView("promise_result"); err != nil {
		return 0, err
	}
	if resultIdx >= uint64(len(l.promiseResults)) {
		return 0, newHostError(InvalidPromiseResultIndex, "result %d", resultIdx)
	}
	result := l.promiseResults[resultIdx]
	switch result.Kind {
	case PromiseSuccessful:
		if err := l.internalWriteRegister(registerID, result.Data); err != nil {
			return 0, err
		}
		return 1, nil
	case PromiseFailed:
		return 2, nil
	default:
		return 0, nil
	}
}

// PromiseReturn makes the result of [promiseIdx] the result of the call.
func (l *Logic) PromiseReturn(promiseIdx uint64) error {
	if err := l.payBase(); err != nil {
		return err
	}
	if err := l.prohibitedInView("promise_return"); err != nil {
		return err
	}
	if err := l.gasCounter.PayBase("promise_return", l.costs().PromiseReturn); err != nil {
		return err
	}
	if promiseIdx >= uint64(len(l.promises)) {
		return newHostError(InvalidPromiseIndex, "promise %d", promiseIdx)
	}
	p := l.promises[promiseIdx]
	if p.joint {
		return &HostError{Kind: CannotReturnJointPromise}
	}
	l.returnData = ReturnDataReceiptIndex(p.receiptIndex)
	return nil
}

// Storage

func (l *Logic) readStorageKey(keyLen, keyPtr uint64) ([]byte, error) {
	key, err := l.getVecFromMemoryOrRegister(keyPtr, keyLen)
	if err != nil {
		return nil, err
	}
	if limit := l.limits().MaxLengthStorageKey; uint64(len(key)) > limit {
		return nil, newHostError(KeyLengthExceeded, "length %d, limit %d", len(key), limit)
	}
	return key, nil
}

func (l *Logic) payTouchedNodes(before uint64) error {
	touched := l.ext.TouchedNodesCount() - before
	return l.gasCounter.PayPer("touching_trie_node", l.costs().TouchingTrieNode, touched)
}

// StorageWrite sets [key] to [value]. It returns 1 and writes the evicted
// value to [registerID] if the key was set, 0 otherwise.
func (l *Logic) StorageWrite(keyLen, keyPtr, valueLen, valuePtr, registerID uint64) (uint64, error) {
	if err := l.payBase(); err != nil {
		return 0, err
	}
	if err := l.prohibitedInView("storage_write"); err != nil {
		return 0, err
	}
	costs := l.costs()
	if err := l.gasCounter.PayBase("storage_write_base", costs.StorageWriteBase); err != nil {
		return 0, err
	}
	key, err := l.readStorageKey(keyLen, keyPtr)
	if err != nil {
		return 0, err
	}
	value, err := l.getVecFromMemoryOrRegister(valuePtr, valueLen)
	if err != nil {
		return 0, err
	}
	if limit := l.limits().MaxLengthStorageValue; uint64(len(value)) > limit {
		return 0, newHostError(ValueLengthExceeded, "length %d, limit %d", len(value), limit)
	}
	if err := l.gasCounter.PayPer("storage_write_key_byte", costs.StorageWriteKeyByte, uint64(len(key))); err != nil {
		return 0, err
	}
	if err := l.gasCounter.PayPer("storage_write_value_byte", costs.StorageWriteValueByte, uint64(len(value))); err != nil {
		return 0, err
	}

	before := l.ext.TouchedNodesCount()
	evicted, existed, err := l.ext.StorageGet(key)
	if err != nil {
		return 0, l.extError(err)
	}
	if err := l.ext.StorageSet(key, value); err != nil {
		return 0, l.extError(err)
	}
	if err := l.payTouchedNodes(before); err != nil {
		return 0, err
	}

	if existed {
		usage, err := primitives.SafeSubGas(l.currentStorageUsage, uint64(len(evicted)))
		if err != nil {
			return 0, &InconsistentStateError{Msg: "storage usage underflow"}
		}
		if usage, err = primitives.SafeAddGas(usage, uint64(len(value))); err != nil {
			return 0, &InconsistentStateError{Msg: "storage usage overflow"}
		}
		l.currentStorageUsage = usage
		if err := l.gasCounter.PayPer("storage_write_evicted_byte", costs.StorageWriteEvictedByte, uint64(len(evicted))); err != nil {
			return 0, err
		}
		if err := l.internalWriteRegister(registerID, evicted); err != nil {
			return 0, err
		}
		return 1, nil
	}

	usage, err := primitives.SumGas(
		l.currentStorageUsage,
		uint64(len(value)),
		uint64(len(key)),
		l.fees.StorageUsage.NumExtraBytesRecord,
	)
	if err != nil {
		return 0, &InconsistentStateError{Msg: "storage usage overflow"}
	}
	l.currentStorageUsage = usage
	return 0, nil
}

// StorageRead writes the value of [key] to [registerID] and returns 1, or
// returns 0 if the key is not set.
func (l *Logic) StorageRead(keyLen, keyPtr, registerID uint64) (uint64, error) {
	if err := l.payBase(); err != nil {
		return 0, err
	}
	costs := l.costs()
	if err := l.gasCounter.PayBase("storage_read_base", costs.StorageReadBase); err != nil {
		return 0, err
	}
	key, err := l.readStorageKey(keyLen, keyPtr)
	if err != nil {
		return 0, err
	}
	if err := l.gasCounter.PayPer("storage_read_key_byte", costs.StorageReadKeyByte, uint64(len(key))); err != nil {
		return 0, err
	}
	before := l.ext.TouchedNodesCount()
	value, ok, err := l.ext.StorageGet(key)
	if err != nil {
		return 0, l.extError(err)
	}
	if err := l.payTouchedNodes(before); err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	if err := l.gasCounter.PayPer("storage_read_value_byte", costs.StorageReadValueByte, uint64(len(value))); err != nil {
		return 0, err
	}
	if err := l.internalWriteRegister(registerID, value); err != nil {
		return 0, err
	}
	return 1, nil
}

// StorageRemove removes [key]. It returns 1 and writes the removed value to
// [registerID] if the key was set, 0 otherwise.
func (l *Logic) StorageRemove(keyLen, keyPtr, registerID uint64) (uint64, error) {
	if err := l.payBase(); err != nil {
		return 0, err
	}
	if err := l.prohibitedInView("storage_remove"); err != nil {
		return 0, err
	}
	costs := l.costs()
	if err := l.gasCounter.PayBase("storage_remove_base", costs.StorageRemoveBase); err != nil {
		return 0, err
	}
	key, err := l.readStorageKey(keyLen, keyPtr)
	if err != nil {
		return 0, err
	}
	if err := l.gasCounter.PayPer("storage_remove_key_byte", costs.StorageRemoveKeyByte, uint64(len(key))); err != nil {
		return 0, err
	}
	before := l.ext.TouchedNodesCount()
	removed, ok, err := l.ext.StorageGet(key)
	if err != nil {
		return 0, l.extError(err)
	}
	if err := l.ext.StorageRemove(key); err != nil {
		return 0, l.extError(err)
	}
	if err := l.payTouchedNodes(before); err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	if err := l.gasCounter.PayPer("storage_remove_ret_value_byte", costs.StorageRemoveRetValueByte, uint64(len(removed))); err != nil {
		return 0, err
	}
	freed, err := primitives.SumGas(uint64(len(removed)), uint64(len(key)), l.fees.StorageUsage.NumExtraBytesRecord)
	if err != nil {
		return 0, &InconsistentStateError{Msg: "storage usage overflow"}
	}
	usage, err := primitives.SafeSubGas(l.currentStorageUsage, freed)
	if err != nil {
		return 0, &InconsistentStateError{Msg: "storage usage underflow"}
	}
	l.currentStorageUsage = usage
	if err := l.internalWriteRegister(registerID, removed); err != nil {
		return 0, err
	}
	return 1, nil
}

func (l *Logic) StorageHasKey(keyLen, keyPtr uint64) (uint64, error) {
	if err := l.payBase(); err != nil {
		return 0, err
	}
	costs := l.costs()
	if err := l.gasCounter.PayBase("storage_has_key_base", costs.StorageHasKeyBase); err != nil {
		return 0, err
	}
	key, err := l.readStorageKey(keyLen, keyPtr)
	if err != nil {
		return 0, err
	}
	if err := l.gasCounter.PayPer("storage_has_key_byte", costs.StorageHasKeyByte, uint64(len(key))); err != nil {
		return 0, err
	}
	before := l.ext.TouchedNodesCount()
	ok, err := l.ext.StorageHasKey(key)
	if err != nil {
		return 0, l.extError(err)
	}
	if err := l.payTouchedNodes(before); err != nil {
		return 0, err
	}
	if ok {
		return 1, nil
	}
	return 0, nil
}

// Gas charges [opcodes] regular operations.
func (l *Logic) Gas(opcodes uint32) error {
	return l.gasCounter.PayWasmGas(opcodes)
}

// ChargeContractLoading charges for loading [codeLen] bytes of code.
func (l *Logic) ChargeContractLoading(codeLen uint64) error {
	costs := l.costs()
	if err := l.gasCounter.PayBase("contract_loading_base", costs.ContractLoadingBase); err != nil {
		return err
	}
	return l.gasCounter.PayPer("contract_loading_bytes", costs.ContractLoadingBytes, codeLen)
}

// Outcome returns the effect of the call so far.
func (l *Logic) Outcome() *VMOutcome {
	profile := make(Profile)
	profile.Merge(l.gasCounter.Profile())
	return &VMOutcome{
		Balance:      l.currentAccountBalance,
		StorageUsage: l.currentStorageUsage,
		ReturnData:   l.returnData,
		BurntGas:     l.gasCounter.BurntGas(),
		UsedGas:      l.gasCounter.UsedGas(),
		Logs:         append([]string{}, l.logs...),
		Profile:      profile,
	}
}
