// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/receiptvm/primitives"
)

const genesisYAML = `
accounts:
  - account_id: alice
    amount: "1000"
  - account_id: bob
    amount: "5"
`

func TestGetGenesis(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "genesis.yaml")
	require.NoError(os.WriteFile(path, []byte(genesisYAML), 0o600))

	fs := buildFlagSet()
	require.NoError(fs.Parse([]string{
		"--" + gasPriceKey, "7",
		"--" + gasLimitKey, "1000",
		"--" + blockIntervalKey, "2s",
		"--" + registrarAccountKey, "reg",
		"--" + rootAccountKey, "",
		"--" + genesisFileKey, path,
	}))
	v, err := getViper(fs)
	require.NoError(err)

	genesis, err := getGenesis(v)
	require.NoError(err)
	assert.Equal(primitives.NewBalance(7), genesis.GasPrice)
	assert.Equal(primitives.Gas(1000), genesis.GasLimit)
	assert.Equal(uint64(2*time.Second), genesis.BlockProdTime)
	assert.Equal("reg", genesis.RuntimeConfig.AccountCreation.RegistrarAccountID)

	require.Len(genesis.StateRecords, 2)
	alice, ok := genesis.StateRecords[0].(*primitives.AccountRecord)
	require.True(ok)
	assert.Equal("alice", alice.AccountID)
	assert.Equal(primitives.NewBalance(1000), alice.Account.Amount)
}

func TestGetGenesisRootAccount(t *testing.T) {
	fs := buildFlagSet()
	require.NoError(t, fs.Parse(nil))
	v, err := getViper(fs)
	require.NoError(t, err)

	genesis, err := getGenesis(v)
	require.NoError(t, err)
	// The root account record and its access key.
	assert.Len(t, genesis.StateRecords, 2)
}

func TestGetGenesisInvalidGasPrice(t *testing.T) {
	fs := buildFlagSet()
	require.NoError(t, fs.Parse([]string{"--" + gasPriceKey, "cheap"}))
	v, err := getViper(fs)
	require.NoError(t, err)

	_, err = getGenesis(v)
	assert.Error(t, err)
}
