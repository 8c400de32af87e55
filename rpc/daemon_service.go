package rpc

import (
	"net/http"

	"github.com/jude-swap/swap/common/rpctypes"
)

// Version is swapd's reported version string, returned by the
// daemon.Version RPC method; no swapcli subcommand calls it.
const Version = "0.1.0"

// DaemonService exposes swapd lifecycle methods: version and shutdown.
type DaemonService struct {
	backend Backend
}

// NewDaemonService constructs a DaemonService bound to backend.
func NewDaemonService(backend Backend) *DaemonService {
	return &DaemonService{backend: backend}
}

// Version returns swapd's version string.
func (s *DaemonService) Version(_ *http.Request, _ *struct{}, reply *rpctypes.VersionResponse) error {
	reply.Version = Version
	return nil
}

// Shutdown begins swapd's graceful shutdown.
func (s *DaemonService) Shutdown(_ *http.Request, _ *struct{}, reply *rpctypes.ShutdownResponse) error {
	s.backend.Shutdown()
	reply.Ok = true
	return nil
}
