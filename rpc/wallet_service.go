package rpc

import (
	"fmt"
	"net/http"

	"github.com/jude-swap/swap/common"
	"github.com/jude-swap/swap/common/rpctypes"
)

// WalletService exposes the local BTC wallet's balance, withdrawal, and
// key-export operations, the surface swapcli's `balance`, `withdraw-btc`,
// and `export-bitcoin-wallet` subcommands drive.
type WalletService struct {
	backend Backend
}

// NewWalletService constructs a WalletService bound to backend.
func NewWalletService(backend Backend) *WalletService {
	return &WalletService{backend: backend}
}

// Balance reports the local BTC wallet's confirmed balance.
func (s *WalletService) Balance(r *http.Request, _ *struct{}, reply *rpctypes.BalanceResponse) error {
	bal, err := s.backend.Balance(r.Context())
	if err != nil {
		return err
	}
	reply.ConfirmedBalanceSats = bal.ConfirmedBalance.Uint64()
	return nil
}

// Withdraw sends BTC from the local wallet to an address.
func (s *WalletService) Withdraw(r *http.Request, req *rpctypes.WithdrawBtcRequest, reply *rpctypes.WithdrawBtcResponse) error {
	var amount common.BtcAmount
	if !req.All {
		f, err := common.ParseDecimalAmount(req.Amount)
		if err != nil {
			return fmt.Errorf("rpc: invalid withdraw amount: %w", err)
		}
		amount = common.BtcToSats(f)
	}

	txid, err := s.backend.WithdrawBtc(r.Context(), req.Address, amount, req.All)
	if err != nil {
		return err
	}
	reply.TxID = txid
	return nil
}

// Export writes the node's BTC key backup to the requested path.
func (s *WalletService) Export(r *http.Request, req *rpctypes.ExportBitcoinWalletRequest, reply *rpctypes.ExportBitcoinWalletResponse) error {
	if err := s.backend.ExportBitcoinWallet(r.Context(), req.Path); err != nil {
		return err
	}
	reply.Path = req.Path
	return nil
}
