// electrum.go starts the neutrino light client that backs ElectrumWallet,
// directly adapted from backend-engineer1-land's chainregistry.go SPV-mode
// branch (neutrino.Config + neutrino.NewChainService + svc.Start()), minus
// the lnd-specific ChainNotifier/FilteredChainView wiring this module has no
// use for.
package bitcoin

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcwallet/walletdb"
	"github.com/lightninglabs/neutrino"

	"github.com/jude-swap/swap/common"
)

func init() {
	neutrino.WaitForMoreCFHeaders = time.Second
	neutrino.MaxPeers = 8
	neutrino.BanDuration = 5 * time.Second
}

// ChainServiceConfig configures the neutrino light client backing an
// ElectrumWallet.
type ChainServiceConfig struct {
	DataDir      string
	Params       *chaincfg.Params
	AddPeers     []string
	ConnectPeers []string
}

// StartChainService opens (creating if absent) the neutrino database under
// cfg.DataDir and starts a light client connected to the configured peers.
// Callers are responsible for calling the returned cleanup func at
// shutdown; it stops the service and closes the neutrino database.
func StartChainService(cfg ChainServiceConfig) (*neutrino.ChainService, func(), error) {
	dbName := filepath.Join(cfg.DataDir, "neutrino.db")
	db, err := walletdb.Create("bdb", dbName, true, common.WalletRPCStartupTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("bitcoin: unable to open neutrino database: %w", err)
	}

	svc, err := neutrino.NewChainService(neutrino.Config{
		DataDir:      cfg.DataDir,
		Database:     db,
		ChainParams:  *cfg.Params,
		AddPeers:     cfg.AddPeers,
		ConnectPeers: cfg.ConnectPeers,
	})
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("bitcoin: unable to create neutrino chain service: %w", err)
	}

	if err := svc.Start(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("bitcoin: unable to start neutrino chain service: %w", err)
	}

	cleanup := func() {
		svc.Stop()
		db.Close()
	}
	return svc, cleanup, nil
}

// SetChainService binds a started neutrino client to an ElectrumWallet so
// Broadcast/WatchForTx/Status can answer from real chain state instead of
// the in-process bookkeeping used by the capability stub.
func (w *ElectrumWallet) SetChainService(svc *neutrino.ChainService) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.chain = svc
}
