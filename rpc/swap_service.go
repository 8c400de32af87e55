package rpc

import (
	"fmt"
	"net/http"

	"github.com/jude-swap/swap/common"
	"github.com/jude-swap/swap/common/rpctypes"
	pswap "github.com/jude-swap/swap/protocol/swap"
)

// SwapService exposes the three C6 recovery operations plus swap
// history/status lookups, the surface swapcli's `cancel`, `refund`,
// `jude-recovery`, and `history` subcommands drive, plus swap initiation,
// resume and rendezvous seller listing.
type SwapService struct {
	backend Backend
}

// NewSwapService constructs a SwapService bound to backend.
func NewSwapService(backend Backend) *SwapService {
	return &SwapService{backend: backend}
}

// Cancel forces the cancel branch for the given swap.
func (s *SwapService) Cancel(r *http.Request, req *rpctypes.SwapIDRequest, reply *rpctypes.StatusResponse) error {
	status, err := s.backend.Cancel(r.Context(), req.ID)
	if err != nil {
		return err
	}
	reply.ID = req.ID
	reply.Status = status.String()
	return nil
}

// Refund forces Alice's refund recovery operation for the given swap.
func (s *SwapService) Refund(r *http.Request, req *rpctypes.SwapIDRequest, reply *rpctypes.StatusResponse) error {
	status, err := s.backend.Refund(r.Context(), req.ID)
	if err != nil {
		return err
	}
	reply.ID = req.ID
	reply.Status = status.String()
	return nil
}

// JudeRecovery re-derives and returns the joint JUDE key material for a
// swap whose automatic sweep wallet failed.
func (s *SwapService) JudeRecovery(r *http.Request, req *rpctypes.SwapIDRequest, reply *rpctypes.JudeRecoveryResponse) error {
	info, err := s.backend.JudeRecovery(r.Context(), req.ID)
	if err != nil {
		return err
	}
	reply.ID = req.ID
	reply.Address = info.Address
	reply.SpendKey = info.SpendKey
	reply.ViewKey = info.ViewKey
	return nil
}

// GetOngoingSwap reports one ongoing swap's negotiated amounts and status.
func (s *SwapService) GetOngoingSwap(_ *http.Request, req *rpctypes.SwapIDRequest, reply *rpctypes.SwapInfoResponse) error {
	info, ok := s.backend.SwapManager().GetSwap(req.ID)
	if !ok {
		return fmt.Errorf("rpc: no swap with id %s", req.ID)
	}
	fillSwapInfo(info, reply)
	return nil
}

// GetOngoingSwaps lists every swap still in progress.
func (s *SwapService) GetOngoingSwaps(_ *http.Request, _ *struct{}, reply *rpctypes.GetOngoingSwapsResponse) error {
	for _, info := range s.backend.SwapManager().GetOngoingSwaps() {
		resp := new(rpctypes.SwapInfoResponse)
		fillSwapInfo(info, resp)
		reply.Swaps = append(reply.Swaps, resp)
	}
	return nil
}

// GetPastSwaps lists every swap that reached a terminal status.
func (s *SwapService) GetPastSwaps(_ *http.Request, _ *struct{}, reply *rpctypes.GetPastSwapsResponse) error {
	for _, info := range s.backend.SwapManager().GetPastSwaps() {
		resp := new(rpctypes.SwapInfoResponse)
		fillSwapInfo(info, resp)
		reply.Swaps = append(reply.Swaps, resp)
	}
	return nil
}

// BuyJude dials a seller and starts a swap as Alice, returning its id
// immediately while the swap runs in the background.
func (s *SwapService) BuyJude(r *http.Request, req *rpctypes.BuyJudeRequest, reply *rpctypes.BuyJudeResponse) error {
	id, err := s.backend.BuyJude(r.Context(), req.Multiaddr,
		common.BtcToSats(req.BtcAmount), common.JudeToPiconero(req.JudeAmount))
	if err != nil {
		return err
	}
	reply.ID = id
	return nil
}

// Resume restarts the Run loop for a persisted swap not currently tracked
// as in-progress.
func (s *SwapService) Resume(r *http.Request, req *rpctypes.ResumeRequest, reply *rpctypes.StatusResponse) error {
	status, err := s.backend.Resume(r.Context(), req.ID)
	if err != nil {
		return err
	}
	reply.ID = req.ID
	reply.Status = status.String()
	return nil
}

// ListSellers queries a rendezvous point for currently registered sellers.
func (s *SwapService) ListSellers(r *http.Request, req *rpctypes.ListSellersRequest, reply *rpctypes.ListSellersResponse) error {
	sellers, err := s.backend.ListSellers(r.Context(), req.RendezvousPoint)
	if err != nil {
		return err
	}
	for _, seller := range sellers {
		reply.Sellers = append(reply.Sellers, rpctypes.Seller{PeerID: seller.PeerID, Addrs: seller.Addrs})
	}
	return nil
}

func fillSwapInfo(info *pswap.Info, reply *rpctypes.SwapInfoResponse) {
	reply.ID = info.ID()
	reply.Provides = info.Provides().String()
	reply.ProvidedAmount = info.ProvidedAmount()
	reply.ReceivedAmount = info.ReceivedAmount()
	reply.Status = info.Status().String()
}
