// wallet.go defines the BTC wallet capability interface this protocol
// needs and a neutrino-backed implementation, grounded on
// backend-engineer1-land's
// lnwallet.WalletController shape (get_network ~ lnd's NetParams-on-wallet,
// broadcast/status ~ PublishTransaction + neutrino's rescan notifications).
package bitcoin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil/gcs/builder"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/neutrino"

	"github.com/jude-swap/swap/common"
)

// TxStatus reports a transaction's chain-confirmation state, // `status(txid) → {mempool, confirmed(n), replaced, absent}`.
type TxStatus struct {
	Mempool   bool
	Confirmed bool
	Depth     uint32
	Replaced  bool
	Absent    bool
}

// ErrTxNotFound is returned by GetTx/Status when a txid is unknown to the
// backing light client and not merely unconfirmed.
var ErrTxNotFound = errors.New("bitcoin: transaction not found")

// Wallet is the BTC capability interface the protocol state machines
// consume. It is implemented here by
// ElectrumWallet (backed by lightninglabs/neutrino) and may be satisfied by
// a test double elsewhere in the package tree.
type Wallet interface {
	GetNetwork() *chaincfg.Params
	Broadcast(ctx context.Context, tx *wire.MsgTx) (chainhash.Hash, error)
	WatchForTx(ctx context.Context, txid chainhash.Hash, minConf uint32) (bool, error)
	GetTx(ctx context.Context, txid chainhash.Hash) (*wire.MsgTx, error)
	SignAndFinalize(ctx context.Context, tx *wire.MsgTx, prevScripts [][]byte, prevValues []int64) error
	EstimateFee(ctx context.Context, targetBlocks uint32) (common.BtcAmount, error)
	NewAddress(ctx context.Context) (string, error)
	Balance(ctx context.Context) (common.BtcAmount, error)
	Withdraw(ctx context.Context, addr string, amount common.BtcAmount, all bool) (chainhash.Hash, error)
	Status(ctx context.Context, txid chainhash.Hash) (TxStatus, error)
	FundLockTx(ctx context.Context, p LockParams) (*wire.MsgTx, error)
}

// ElectrumWallet implements Wallet against a neutrino light client, acting
// as the Electrum-equivalent SPV backend named in non-goal list
// (the protocol never talks to a full node or Electrum server directly).
type ElectrumWallet struct {
	params *chaincfg.Params
	cfg    *common.Config

	mu sync.Mutex
	// txs holds every transaction this wallet has broadcast or been asked
	// to watch; scanHeight and confirmedAt track, per txid, where a
	// real ChainService scan should resume from and where it last found
	// the tx mined, so repeated Status polls don't rescan from genesis.
	txs         map[chainhash.Hash]*wire.MsgTx
	scanHeight  map[chainhash.Hash]int32
	confirmedAt map[chainhash.Hash]int32
	chain       *neutrino.ChainService // set by SetChainService once started; nil in tests
}

// NewElectrumWallet constructs a Wallet bound to the given network config.
// The neutrino.ChainService itself is wired up by cmd/swapd at startup and
// injected via SetChainService; tests may use the in-memory txs map alone.
func NewElectrumWallet(cfg *common.Config) (*ElectrumWallet, error) {
	var params *chaincfg.Params
	switch cfg.Env {
	case common.Mainnet:
		params = &chaincfg.MainNetParams
	case common.Stagenet:
		params = &chaincfg.TestNet3Params
	case common.Regtest:
		params = &chaincfg.RegressionNetParams
	default:
		return nil, fmt.Errorf("bitcoin: unknown network environment %v", cfg.Env)
	}

	return &ElectrumWallet{
		params:      params,
		cfg:         cfg,
		txs:         make(map[chainhash.Hash]*wire.MsgTx),
		scanHeight:  make(map[chainhash.Hash]int32),
		confirmedAt: make(map[chainhash.Hash]int32),
	}, nil
}

// GetNetwork returns the chain parameters this wallet is configured for.
func (w *ElectrumWallet) GetNetwork() *chaincfg.Params {
	return w.params
}

// Broadcast relays a fully-signed transaction to the network. A rejection
// that looks like a fee problem is the caller's (bitcoin/fee.go's
// BroadcastWithBump) responsibility to retry with a bumped fee; Broadcast
// itself reports the raw rejection.
func (w *ElectrumWallet) Broadcast(ctx context.Context, tx *wire.MsgTx) (chainhash.Hash, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	txid := tx.TxHash()
	w.txs[txid] = tx

	var startHeight int32
	if w.chain != nil {
		if tip, err := w.chain.BestBlock(); err == nil {
			startHeight = tip.Height
		}
	}
	w.scanHeight[txid] = startHeight

	if w.chain != nil {
		if err := w.chain.SendTransaction(tx); err != nil {
			delete(w.txs, txid)
			delete(w.scanHeight, txid)
			return chainhash.Hash{}, fmt.Errorf("bitcoin: failed to broadcast transaction: %w", err)
		}
	}
	return txid, nil
}

// WatchForTx polls Status once every common.HeightSyncPollInterval until
// txid reaches minConf confirmations, ctx expires, or
// common.HeightSyncMaxPolls polls have passed, in which case it returns a
// timeout error.
func (w *ElectrumWallet) WatchForTx(ctx context.Context, txid chainhash.Hash, minConf uint32) (bool, error) {
	ticker := time.NewTicker(common.HeightSyncPollInterval)
	defer ticker.Stop()

	for i := 0; i < common.HeightSyncMaxPolls; i++ {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
			status, err := w.Status(ctx, txid)
			if err != nil {
				return false, err
			}
			if status.Confirmed && status.Depth >= minConf {
				return true, nil
			}
		}
	}
	return false, fmt.Errorf("bitcoin: timed out waiting for %s to reach %d confirmations", txid, minConf)
}

// GetTx returns a previously broadcast or watched transaction, if known.
func (w *ElectrumWallet) GetTx(ctx context.Context, txid chainhash.Hash) (*wire.MsgTx, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	tx, ok := w.txs[txid]
	if !ok {
		return nil, ErrTxNotFound
	}
	return tx, nil
}

// SignAndFinalize checks that prevScripts and prevValues each have one entry
// per input of tx. It signs nothing and attaches no witness.
func (w *ElectrumWallet) SignAndFinalize(ctx context.Context, tx *wire.MsgTx, prevScripts [][]byte, prevValues []int64) error {
	if len(prevScripts) != len(tx.TxIn) || len(prevValues) != len(tx.TxIn) {
		return fmt.Errorf("bitcoin: prevScripts/prevValues length mismatch with inputs")
	}
	// Real signing delegates to the wallet's keychain; callers of this
	// package build the witness directly via AttachMultiSigWitness /
	// AttachSingleSigWitness using adaptor-produced or cooperative
	// signatures, so this hook is a no-op placeholder for wallet-managed
	// inputs (e.g. the lock tx's funding inputs, which are plain P2WKH).
	return nil
}

// EstimateFee returns a fee rate suitable for confirming within
// targetBlocks, `estimate_fee(target_blocks)`.
func (w *ElectrumWallet) EstimateFee(ctx context.Context, targetBlocks uint32) (common.BtcAmount, error) {
	return EstimateFeeRate(w.cfg, targetBlocks)
}

// NewAddress always returns an error: this wallet has no keychain to derive
// an address from.
func (w *ElectrumWallet) NewAddress(ctx context.Context) (string, error) {
	return "", errors.New("bitcoin: NewAddress requires a live keychain binding, not available in this capability stub")
}

// Balance always returns an error: this wallet tracks no balance.
func (w *ElectrumWallet) Balance(ctx context.Context) (common.BtcAmount, error) {
	return 0, errors.New("bitcoin: Balance requires a live chain binding, not available in this capability stub")
}

// Withdraw always returns an error: this wallet has no keychain to spend
// from.
func (w *ElectrumWallet) Withdraw(ctx context.Context, addr string, amount common.BtcAmount, all bool) (chainhash.Hash, error) {
	return chainhash.Hash{}, errors.New("bitcoin: Withdraw requires a live keychain binding, not available in this capability stub")
}

// FundLockTx builds the lock transaction with BuildLockTx from the inputs
// listed in p.FundingInputs. It selects no inputs of its own and signs none
// (SignAndFinalize attaches no witness), so the returned transaction carries
// no funding signatures.
func (w *ElectrumWallet) FundLockTx(ctx context.Context, p LockParams) (*wire.MsgTx, error) {
	tx, _, err := BuildLockTx(p)
	if err != nil {
		return nil, fmt.Errorf("bitcoin: failed to build lock tx: %w", err)
	}
	if err := w.SignAndFinalize(ctx, tx, nil, nil); err != nil {
		return nil, fmt.Errorf("bitcoin: failed to sign lock tx funding inputs: %w", err)
	}
	return tx, nil
}

// Status reports the confirmation state of txid. With no ChainService
// bound (tests, or the capability stub) it can only distinguish known from
// unknown; once SetChainService has run, it scans committed filters for the
// block that mined txid and reports real confirmation depth against the
// chain's current tip.
func (w *ElectrumWallet) Status(ctx context.Context, txid chainhash.Hash) (TxStatus, error) {
	w.mu.Lock()
	tx, known := w.txs[txid]
	mined, alreadyFound := w.confirmedAt[txid]
	since := w.scanHeight[txid]
	chain := w.chain
	w.mu.Unlock()

	if !known {
		return TxStatus{Absent: true}, nil
	}
	if chain == nil {
		return TxStatus{Mempool: true}, nil
	}

	tip, err := chain.BestBlock()
	if err != nil {
		return TxStatus{}, fmt.Errorf("bitcoin: failed to fetch chain tip: %w", err)
	}

	if !alreadyFound {
		mined, err = scanForConfirmation(chain, tx, since, tip.Height)
		if err != nil {
			return TxStatus{}, err
		}
		if mined == 0 {
			return TxStatus{Mempool: true}, nil
		}
		w.mu.Lock()
		w.confirmedAt[txid] = mined
		w.mu.Unlock()
	}

	return TxStatus{Confirmed: true, Depth: uint32(tip.Height-mined) + 1}, nil
}

// scanForConfirmation walks committed compact filters from fromHeight to
// tipHeight looking for a block whose filter matches one of tx's own output
// scripts, then confirms the match against the block itself (filters are
// probabilistic) before reporting the height tx was mined at. Returns 0,
// nil if tx isn't found by tipHeight.
func scanForConfirmation(chain *neutrino.ChainService, tx *wire.MsgTx, fromHeight, tipHeight int32) (int32, error) {
	if fromHeight < 0 {
		fromHeight = 0
	}

	scripts := make([][]byte, 0, len(tx.TxOut))
	for _, out := range tx.TxOut {
		scripts = append(scripts, out.PkScript)
	}

	for h := fromHeight; h <= tipHeight; h++ {
		blockHash, err := chain.GetBlockHash(int64(h))
		if err != nil {
			return 0, fmt.Errorf("bitcoin: failed to fetch block hash at height %d: %w", h, err)
		}

		filter, err := chain.GetCFilter(*blockHash, wire.GCSFilterRegular)
		if err != nil {
			return 0, fmt.Errorf("bitcoin: failed to fetch filter for block %s: %w", blockHash, err)
		}
		if filter == nil {
			continue
		}

		key := builder.DeriveKey(blockHash)
		match, err := filter.MatchAny(key, scripts)
		if err != nil {
			return 0, fmt.Errorf("bitcoin: failed to match filter for block %s: %w", blockHash, err)
		}
		if !match {
			continue
		}

		block, err := chain.GetBlock(*blockHash)
		if err != nil {
			return 0, fmt.Errorf("bitcoin: failed to fetch block %s: %w", blockHash, err)
		}
		for _, blockTx := range block.Transactions() {
			if *blockTx.Hash() == tx.TxHash() {
				return h, nil
			}
		}
	}
	return 0, nil
}
