package rpc

import (
	"net/http"

	"github.com/jude-swap/swap/common/rpctypes"
)

// NetService exposes libp2p host introspection: listening addresses and
// connected peers.
type NetService struct {
	backend Backend
}

// NewNetService constructs a NetService bound to backend.
func NewNetService(backend Backend) *NetService {
	return &NetService{backend: backend}
}

// Addresses lists this node's libp2p listening multiaddresses.
func (s *NetService) Addresses(_ *http.Request, _ *struct{}, reply *rpctypes.AddressesResponse) error {
	host := s.backend.Host()
	if host == nil {
		reply.Addrs = nil
		return nil
	}
	info := host.AddrInfo()
	for _, a := range info.Addrs {
		reply.Addrs = append(reply.Addrs, a.String()+"/p2p/"+info.ID.String())
	}
	return nil
}

// Peers lists currently connected peer ids.
func (s *NetService) Peers(_ *http.Request, _ *struct{}, reply *rpctypes.PeersResponse) error {
	host := s.backend.Host()
	if host == nil {
		reply.PeerIDs = nil
		return nil
	}
	for _, p := range host.Peers() {
		reply.PeerIDs = append(reply.PeerIDs, p.String())
	}
	return nil
}
