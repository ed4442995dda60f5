// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/leveldb"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/utils/logging"
	log "github.com/inconshreveable/log15"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ava-labs/receiptvm/host"
	"github.com/ava-labs/receiptvm/receiptvm"
	"github.com/ava-labs/receiptvm/sdk/testcontracts"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %s\n", receiptvm.Name, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	fs := buildFlagSet()
	cmd := &cobra.Command{
		Use:          receiptvm.Name,
		Short:        "Runs a standalone receipt-based execution node",
		SilenceUsage: true,
		RunE: func(*cobra.Command, []string) error {
			v, err := getViper(fs)
			if err != nil {
				return err
			}
			// Print version and exit
			if v.GetBool(versionKey) {
				fmt.Printf("%s@%s\n", receiptvm.Name, receiptvm.Version)
				return nil
			}
			return run(v)
		},
	}
	cmd.Flags().AddFlagSet(fs)
	return cmd
}

func run(v *viper.Viper) error {
	lvl, err := log.LvlFromString(v.GetString(logLevelKey))
	if err != nil {
		return err
	}
	log.Root().SetHandler(log.LvlFilterHandler(lvl, log.StreamHandler(os.Stderr, log.TerminalFormat())))

	genesis, err := getGenesis(v)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	db, err := openDatabase(v.GetString(dbDirKey))
	if err != nil {
		return err
	}

	vm, err := receiptvm.New(db, genesis, host.NewNativeEngine(testcontracts.NewRegistry()), registry)
	if err != nil {
		return err
	}
	defer func() {
		if err := vm.Shutdown(); err != nil {
			log.Error("couldn't shut down", "err", err)
		}
	}()

	handlers, err := vm.CreateHandlers()
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	for extension, handler := range handlers {
		mux.Handle("/ext/"+receiptvm.Name+extension, handler)
	}
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	addr := net.JoinHostPort(v.GetString(httpHostKey), strconv.Itoa(int(v.GetUint(httpPortKey))))
	server := &http.Server{Addr: addr, Handler: mux}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go vm.Run(ctx, v.GetDuration(blockIntervalKey))
	go func() {
		<-ctx.Done()
		if err := server.Shutdown(context.Background()); err != nil {
			log.Error("couldn't stop http server", "err", err)
		}
	}()

	log.Info("serving", "addr", addr, "height", vm.LastAccepted().Height())
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func openDatabase(dir string) (database.Database, error) {
	if dir == "" {
		return memdb.New(), nil
	}
	return leveldb.New(dir, nil, logging.NoLog{})
}
