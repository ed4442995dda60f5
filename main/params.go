// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ava-labs/receiptvm/primitives"
	"github.com/ava-labs/receiptvm/receiptvm"
)

const (
	versionKey          = "version"
	httpHostKey         = "http-host"
	httpPortKey         = "http-port"
	dbDirKey            = "db-dir"
	logLevelKey         = "log-level"
	gasLimitKey         = "gas-limit"
	gasPriceKey         = "gas-price"
	blockIntervalKey    = "block-interval"
	genesisFileKey      = "genesis-file"
	rootAccountKey      = "root-account"
	registrarAccountKey = "registrar-account"

	envPrefix = "receiptvm"
)

func buildFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet(receiptvm.Name, pflag.ContinueOnError)

	fs.Bool(versionKey, false, "If true, prints the version and quits")
	fs.String(httpHostKey, "127.0.0.1", "Address of the HTTP server")
	fs.Uint(httpPortKey, 9650, "Port of the HTTP server")
	fs.String(dbDirKey, "", "Path to the leveldb directory. Empty keeps all state in memory")
	fs.String(logLevelKey, "info", "The log level. One of {crit, error, warn, info, debug}")
	fs.Uint64(gasLimitKey, 0, "Gas limit of a block. Zero disables the limit")
	fs.String(gasPriceKey, "100000000", "Gas price in yocto tokens")
	fs.Duration(blockIntervalKey, time.Second, "How often a block is produced while there is pending work")
	fs.String(genesisFileKey, "", "Path to a file with the genesis accounts")
	fs.String(rootAccountKey, "root", "Account funded at genesis with the well-known test key")
	fs.String(registrarAccountKey, "registrar", "Account allowed to create short top-level accounts")

	return fs
}

// getViper returns the viper environment for the binary
func getViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}
	return v, nil
}

// genesisFile is the document read from [genesisFileKey].
type genesisFile struct {
	Accounts []receiptvm.GenesisAccount `mapstructure:"accounts"`
}

// getGenesis builds the genesis described by the flags and the optional
// genesis file.
func getGenesis(v *viper.Viper) (*receiptvm.Genesis, error) {
	genesis := receiptvm.DefaultGenesis()
	genesis.GasLimit = v.GetUint64(gasLimitKey)
	gasPrice, err := primitives.BalanceFromString(v.GetString(gasPriceKey))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", gasPriceKey, err)
	}
	genesis.GasPrice = gasPrice
	genesis.BlockProdTime = uint64(v.GetDuration(blockIntervalKey))
	genesis.RuntimeConfig.AccountCreation.RegistrarAccountID = v.GetString(registrarAccountKey)

	if rootID := v.GetString(rootAccountKey); rootID != "" {
		if _, err := genesis.InitRootSigner(rootID); err != nil {
			return nil, err
		}
	}

	path := v.GetString(genesisFileKey)
	if path == "" {
		return genesis, nil
	}
	fv := viper.New()
	fv.SetConfigFile(path)
	if err := fv.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("couldn't read genesis file %s: %w", path, err)
	}
	var file genesisFile
	if err := fv.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("couldn't parse genesis file %s: %w", path, err)
	}
	if err := genesis.AddAccounts(file.Accounts); err != nil {
		return nil, err
	}
	return genesis, nil
}
