// Package jude wraps judecoin-wallet-rpc and judecoind behind the JUDE
// wallet/daemon capability interfaces this protocol needs, directly adapted
// from noot-atomic-swap/monero/client.go's monero.Client — same method set
// (GetBalance, GetAddress, Transfer, SweepAll, GetHeight, Refresh,
// CreateWallet/OpenWallet-by-keys) — rebound to the real
// github.com/MarinX/monerorpc client used by bingcicle-atomic-swap instead
// of a hand-rolled JSON-RPC caller.
package jude

import (
	"context"
	"fmt"
	"sync"

	"github.com/MarinX/monerorpc/wallet"

	"github.com/jude-swap/swap/common"
	mcrypto "github.com/jude-swap/swap/crypto/jude"
)

// TransferProof is the receipt a sender presents to prove a transfer was
// broadcast.
type TransferProof struct {
	TxHash string
	TxKey  string
	Amount common.JudeAmount
}

// Refreshed reports the wallet-rpc refresh cursor's resulting height, per
// `refresh() → Refreshed`.
type Refreshed struct {
	Height uint64
}

// Wallet is the JUDE wallet-rpc capability the protocol state machines
// consume.
type Wallet interface {
	CreateWallet(ctx context.Context, name, language string) error
	OpenOrCreateFromKeys(ctx context.Context, name string, kp *mcrypto.PrivateKeyPair, restoreHeight uint64) error
	Transfer(ctx context.Context, dest mcrypto.Address, amount common.JudeAmount) (*TransferProof, error)
	FindTransfer(ctx context.Context, dest mcrypto.Address, sinceHeight uint64) (*TransferProof, error)
	GetBalance(ctx context.Context, accountIdx uint64) (common.JudeAmount, common.JudeAmount, error) // balance, unlocked
	GetHeight(ctx context.Context) (uint64, error)
	Refresh(ctx context.Context) (*Refreshed, error)
	GetAddress(ctx context.Context, accountIdx uint64) (mcrypto.Address, error)
	SweepAll(ctx context.Context, dest mcrypto.Address) (*TransferProof, error)
}

// RPCWallet implements Wallet against a running judecoin-wallet-rpc process
// via the monerorpc client library.
type RPCWallet struct {
	mu     sync.Mutex
	client wallet.Wallet
	env    common.Environment
}

// NewRPCWallet wraps an already-constructed monerorpc wallet client, built
// by cmd/swapd from the configured wallet-rpc endpoint.
func NewRPCWallet(client wallet.Wallet, env common.Environment) *RPCWallet {
	return &RPCWallet{client: client, env: env}
}

// CreateWallet creates a brand-new wallet-rpc wallet file, // `create_wallet(name, language)`.
func (w *RPCWallet) CreateWallet(ctx context.Context, name, language string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, err := w.client.CreateWallet(&wallet.CreateWalletRequest{
		Filename: name,
		Language: language,
	})
	if err != nil {
		return fmt.Errorf("jude: create_wallet failed: %w", err)
	}
	return nil
}

// OpenOrCreateFromKeys restores (or creates, if absent) a wallet from an
// existing spend/view key pair, the mechanism both Alice's refund-sweep
// path and Bob's joint-key sweep (and jude-recovery reprint) use.
func (w *RPCWallet) OpenOrCreateFromKeys(ctx context.Context, name string, kp *mcrypto.PrivateKeyPair, restoreHeight uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	spend := kp.SpendKey().Bytes()
	view := kp.ViewKey().Bytes()

	_, err := w.client.GenerateFromKeys(&wallet.GenerateFromKeysRequest{
		Filename:      name,
		Address:       string(kp.Address(w.env)),
		SpendKey:      fmt.Sprintf("%x", spend),
		ViewKey:       fmt.Sprintf("%x", view),
		RestoreHeight: restoreHeight,
	})
	if err != nil {
		return fmt.Errorf("jude: open_or_create_from_keys failed: %w", err)
	}
	return nil
}

// Transfer sends amount to dest and returns a proof of broadcast
// (`transfer(dest_addr, amount) → TransferProof`). This is the operation
// behind the XmrLocked transition: Alice funds the joint spend-key output.
func (w *RPCWallet) Transfer(ctx context.Context, dest mcrypto.Address, amount common.JudeAmount) (*TransferProof, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	resp, err := w.client.Transfer(&wallet.TransferRequest{
		Destinations: []wallet.Destination{
			{Address: string(dest), Amount: amount.Uint64()},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("jude: transfer failed: %w", err)
	}

	return &TransferProof{
		TxHash: resp.TxHash,
		TxKey:  resp.TxKey,
		Amount: amount,
	}, nil
}

// FindTransfer looks for an already-broadcast outgoing transfer to dest at
// or after sinceHeight
// (`get_transfers(out=true, filter_by_height=true, min_height)`). Returns a
// nil proof (no error) when nothing matches. This is the resume-time check
// BtcLocked.Transition uses to avoid submitting a second real transfer
// after a crash that happened between Transfer succeeding and
// XmrLockTransactionSent being persisted.
func (w *RPCWallet) FindTransfer(ctx context.Context, dest mcrypto.Address, sinceHeight uint64) (*TransferProof, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	resp, err := w.client.GetTransfers(&wallet.GetTransfersRequest{
		Out:            true,
		FilterByHeight: true,
		MinHeight:      sinceHeight,
	})
	if err != nil {
		return nil, fmt.Errorf("jude: get_transfers failed: %w", err)
	}

	for _, t := range resp.Out {
		if mcrypto.Address(t.Address) != dest {
			continue
		}
		return &TransferProof{
			TxHash: t.Txid,
			TxKey:  t.TxKey,
			Amount: common.JudeAmount(t.Amount),
		}, nil
	}
	return nil, nil
}

// GetBalance returns the wallet's total and unlocked balance, // `get_balance`.
func (w *RPCWallet) GetBalance(ctx context.Context, accountIdx uint64) (common.JudeAmount, common.JudeAmount, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	resp, err := w.client.GetBalance(&wallet.GetBalanceRequest{AccountIndex: accountIdx})
	if err != nil {
		return 0, 0, fmt.Errorf("jude: get_balance failed: %w", err)
	}

	return common.JudeAmount(resp.Balance), common.JudeAmount(resp.UnlockedBalance), nil
}

// GetHeight returns the wallet's synced blockchain height, // `get_height`.
func (w *RPCWallet) GetHeight(ctx context.Context) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	resp, err := w.client.GetHeight()
	if err != nil {
		return 0, fmt.Errorf("jude: get_height failed: %w", err)
	}
	return resp.Height, nil
}

// Refresh re-scans the chain for new wallet activity, // `refresh() → Refreshed`. Bob polls this while waiting for the
// XmrLockProofReceived → XmrLocked transition to confirm the joint output
// is actually visible to his own wallet, not just Alice's say-so.
func (w *RPCWallet) Refresh(ctx context.Context) (*Refreshed, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.client.Refresh(&wallet.RefreshRequest{}); err != nil {
		return nil, fmt.Errorf("jude: refresh failed: %w", err)
	}
	resp, err := w.client.GetHeight()
	if err != nil {
		return nil, fmt.Errorf("jude: get_height failed: %w", err)
	}
	return &Refreshed{Height: resp.Height}, nil
}

// GetAddress returns the wallet's primary (or sub-account) address, per
// `get_address(account=0)`.
func (w *RPCWallet) GetAddress(ctx context.Context, accountIdx uint64) (mcrypto.Address, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	resp, err := w.client.GetAddress(&wallet.GetAddressRequest{AccountIndex: accountIdx})
	if err != nil {
		return "", fmt.Errorf("jude: get_address failed: %w", err)
	}
	return mcrypto.Address(resp.Address), nil
}

// SweepAll sends the wallet's entire unlocked balance to dest, // `sweep_all(dest_addr)`. This is the jude-recovery operation's final step:
// once the joint spend key is reconstructed and opened as a wallet, sweep
// every atom out to a user-controlled address.
func (w *RPCWallet) SweepAll(ctx context.Context, dest mcrypto.Address) (*TransferProof, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	resp, err := w.client.SweepAll(&wallet.SweepAllRequest{Address: string(dest)})
	if err != nil {
		return nil, fmt.Errorf("jude: sweep_all failed: %w", err)
	}

	var txHash, txKey string
	if len(resp.TxHashList) > 0 {
		txHash = resp.TxHashList[0]
	}
	if len(resp.TxKeyList) > 0 {
		txKey = resp.TxKeyList[0]
	}

	return &TransferProof{TxHash: txHash, TxKey: txKey}, nil
}
