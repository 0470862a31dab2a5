package main

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/mitchellh/mapstructure"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/medweb3/medtrace/pkg/app"
	pg "github.com/medweb3/medtrace/pkg/database/postgres"
	"github.com/medweb3/medtrace/pkg/ledger"
	"github.com/medweb3/medtrace/pkg/ledger/account"
	"github.com/medweb3/medtrace/pkg/ledger/account/leveldb"
	"github.com/medweb3/medtrace/pkg/ledger/account/memory"
	"github.com/medweb3/medtrace/pkg/ledger/account/postgres"
	"github.com/medweb3/medtrace/pkg/solana"
)

const (
	storeLevelDB  = "leveldb"
	storeMemory   = "memory"
	storePostgres = "postgres"
)

type cliConfig struct {
	Store   string `mapstructure:"store"`
	DataDir string `mapstructure:"data_dir"`

	PostgresURL                string `mapstructure:"postgres_url"`
	PostgresMaxOpenConnections int    `mapstructure:"postgres_max_open_connections"`
	PostgresMaxIdleConnections int    `mapstructure:"postgres_max_idle_connections"`
}

var defaultCLIConfig = cliConfig{
	Store:   storeLevelDB,
	DataDir: ".medtrace",
}

func decodeCLIConfig(config app.Config) (*cliConfig, error) {
	decoded := defaultCLIConfig

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &decoded,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(map[string]interface{}(config)); err != nil {
		return nil, errors.Wrap(err, "invalid app config")
	}

	if len(decoded.DataDir) == 0 {
		return nil, errors.New("data dir is required")
	}
	return &decoded, nil
}

// node is the app run by every ledger backed command. It owns the account
// store and the bank executing transactions against it.
type node struct {
	log    *logrus.Entry
	config *cliConfig
	bank   *ledger.Bank

	closeStore func() error
	stopOnce   sync.Once
}

func newNode() *node {
	return &node{
		log: logrus.StandardLogger().WithField("type", "cmd/node"),
	}
}

// Init implements app.App.Init
func (n *node) Init(config app.Config, _ *newrelic.Application) error {
	decoded, err := decodeCLIConfig(config)
	if err != nil {
		return err
	}
	n.config = decoded

	store, closeStore, err := openStore(decoded)
	if err != nil {
		return err
	}
	n.closeStore = closeStore

	bank, err := ledger.New(context.Background(), store, ledger.SystemClock{}, ledger.WithEnvConfigs())
	if err != nil {
		_ = closeStore()
		return err
	}
	n.bank = bank
	return nil
}

// Stop implements app.App.Stop
func (n *node) Stop() {
	n.stopOnce.Do(func() {
		if n.closeStore == nil {
			return
		}
		if err := n.closeStore(); err != nil {
			n.log.WithError(err).Warn("failure closing account store")
		}
	})
}

func (n *node) keys() *keyring {
	return newKeyring(n.config.DataDir)
}

// submit signs and processes a transaction paid for by the first signer,
// printing its outcome and program logs.
func (n *node) submit(ctx context.Context, out io.Writer, signers []ed25519.PrivateKey, instructions ...solana.Instruction) error {
	txn := solana.NewTransaction(signers[0].Public().(ed25519.PublicKey), instructions...)
	txn.SetBlockhash(n.bank.GetLatestBlockhash())
	if err := txn.Sign(signers...); err != nil {
		return errors.Wrap(err, "failed to sign transaction")
	}

	result, err := n.bank.ProcessTransaction(ctx, &txn)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "signature: %s\n", result.Signature)
	fmt.Fprintf(out, "ledger slot: %d\n", result.Slot)
	fmt.Fprintf(out, "fee: %d\n", result.Fee)
	if len(result.Logs) > 0 {
		fmt.Fprintln(out, "logs:")
		for _, line := range result.Logs {
			fmt.Fprintf(out, "  %s\n", line)
		}
	}
	return result.Failure()
}

func openStore(config *cliConfig) (account.Store, func() error, error) {
	switch config.Store {
	case storeLevelDB:
		return leveldb.Open(filepath.Join(config.DataDir, "ledger"))
	case storeMemory:
		return memory.New(), func() error { return nil }, nil
	case storePostgres:
		db, err := pg.Open(&pg.Config{
			URL:                config.PostgresURL,
			MaxOpenConnections: config.PostgresMaxOpenConnections,
			MaxIdleConnections: config.PostgresMaxIdleConnections,
		})
		if err != nil {
			return nil, nil, err
		}
		return postgres.New(db), db.Close, nil
	default:
		return nil, nil, errors.Errorf("unknown store %q", config.Store)
	}
}
