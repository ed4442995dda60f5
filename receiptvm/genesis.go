// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package receiptvm

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/ava-labs/receiptvm/primitives"
)

const (
	defaultGasPrice      = 100_000_000
	defaultBlockProdTime = 1_000_000_000
	rootSignerSeed       = "test"
)

// GenesisAccount is an account funded at genesis, in the form it is read
// from a genesis file.
type GenesisAccount struct {
	AccountID string `mapstructure:"account_id" json:"accountID"`
	Amount    string `mapstructure:"amount" json:"amount"`
	PublicKey string `mapstructure:"public_key" json:"publicKey"`
}

// Genesis describes the first block and the initial state.
type Genesis struct {
	// GenesisTime is the timestamp of the genesis block in nanoseconds.
	GenesisTime   uint64
	GenesisHeight uint64
	GasPrice      primitives.Balance
	// GasLimit bounds the gas burnt by a block. Zero disables the limit.
	GasLimit primitives.Gas
	// BlockProdTime is added to the timestamp of every new block.
	BlockProdTime uint64
	RuntimeConfig *primitives.RuntimeConfig
	StateRecords  []primitives.StateRecord
}

// DefaultGenesis returns an empty genesis with the test runtime config.
func DefaultGenesis() *Genesis {
	return &Genesis{
		GasPrice:      primitives.NewBalance(defaultGasPrice),
		BlockProdTime: defaultBlockProdTime,
		RuntimeConfig: primitives.TestRuntimeConfig(),
	}
}

// InitRootSigner funds [accountID] with 10^33 tokens and gives it a full
// access key derived from a fixed seed.
func (g *Genesis) InitRootSigner(accountID string) (*primitives.InMemorySigner, error) {
	signer, err := primitives.NewInMemorySigner(accountID, rootSignerSeed)
	if err != nil {
		return nil, err
	}
	var amount uint256.Int
	amount.Exp(uint256.NewInt(10), uint256.NewInt(33))
	g.addAccount(accountID, amount, signer.PublicKey())
	return signer, nil
}

// AddAccounts appends the records of [accounts].
func (g *Genesis) AddAccounts(accounts []GenesisAccount) error {
	for _, account := range accounts {
		if err := primitives.ValidateAccountID(account.AccountID); err != nil {
			return fmt.Errorf("invalid genesis account %q: %w", account.AccountID, err)
		}
		amount, err := primitives.BalanceFromString(account.Amount)
		if err != nil {
			return fmt.Errorf("invalid amount of %s: %w", account.AccountID, err)
		}
		var publicKey []byte
		if account.PublicKey != "" {
			publicKey, err = primitives.ParsePublicKey(account.PublicKey)
			if err != nil {
				return fmt.Errorf("invalid public key of %s: %w", account.AccountID, err)
			}
		}
		g.addAccount(account.AccountID, amount, publicKey)
	}
	return nil
}

func (g *Genesis) addAccount(accountID string, amount primitives.Balance, publicKey []byte) {
	g.StateRecords = append(g.StateRecords, &primitives.AccountRecord{
		AccountID: accountID,
		Account:   primitives.Account{Amount: amount},
	})
	if publicKey == nil {
		return
	}
	g.StateRecords = append(g.StateRecords, &primitives.AccessKeyRecord{
		AccountID: accountID,
		PublicKey: publicKey,
		AccessKey: *primitives.FullAccessKey(),
	})
}
