// daemon.go wraps judecoind (as opposed to judecoin-wallet-rpc) for the
// chain-observation queries the protocol needs independent of wallet state:
// current height and transaction confirmation depth. Grounded on the same
// monero.Client idiom as wallet.go, using monerorpc's sibling daemon
// package instead of its wallet package.
package jude

import (
	"context"
	"fmt"

	"github.com/MarinX/monerorpc/daemon"
)

// Daemon is the judecoind capability used to independently confirm chain
// state the wallet-rpc layer reports.
type Daemon interface {
	GetHeight(ctx context.Context) (uint64, error)
	GetTxConfirmations(ctx context.Context, txHash string) (uint64, error)
	GenerateBlocks(ctx context.Context, count uint64, walletAddr string) error
}

// RPCDaemon implements Daemon against a running judecoind process.
type RPCDaemon struct {
	client daemon.Daemon
}

// NewRPCDaemon wraps an already-constructed monerorpc daemon client.
func NewRPCDaemon(client daemon.Daemon) *RPCDaemon {
	return &RPCDaemon{client: client}
}

// GetHeight returns the daemon's current chain height.
func (d *RPCDaemon) GetHeight(ctx context.Context) (uint64, error) {
	resp, err := d.client.GetHeight()
	if err != nil {
		return 0, fmt.Errorf("jude: daemon get_height failed: %w", err)
	}
	return resp.Height, nil
}

// GetTxConfirmations returns how many blocks have confirmed txHash, read
// from the daemon rather than a wallet's refresh cursor. No state
// transition in this module calls it.
func (d *RPCDaemon) GetTxConfirmations(ctx context.Context, txHash string) (uint64, error) {
	resp, err := d.client.GetTransactions(&daemon.GetTransactionsRequest{
		TxsHashes: []string{txHash},
		Decode:    true,
	})
	if err != nil {
		return 0, fmt.Errorf("jude: daemon get_transactions failed: %w", err)
	}
	if len(resp.Txs) == 0 {
		return 0, fmt.Errorf("jude: transaction %s not found by daemon", txHash)
	}
	return resp.Txs[0].Confirmations, nil
}

// GenerateBlocks mines count blocks to walletAddr, the regtest bring-up
// primitive the jude/harness package uses to mature coinbase outputs and
// confirm test transfers.
func (d *RPCDaemon) GenerateBlocks(ctx context.Context, count uint64, walletAddr string) error {
	_, err := d.client.GenerateBlocks(&daemon.GenerateBlocksRequest{
		AmountOfBlocks: count,
		WalletAddress:  walletAddr,
	})
	if err != nil {
		return fmt.Errorf("jude: daemon generateblocks failed: %w", err)
	}
	return nil
}
